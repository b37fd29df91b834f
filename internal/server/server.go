package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	authdomain "github.com/smallbiznis/flowmarket/internal/auth/domain"
	"github.com/smallbiznis/flowmarket/internal/auth/session"
	"github.com/smallbiznis/flowmarket/internal/config"
	"github.com/smallbiznis/flowmarket/internal/observability"
	obsmiddleware "github.com/smallbiznis/flowmarket/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/flowmarket/internal/observability/metrics"
	obstracing "github.com/smallbiznis/flowmarket/internal/observability/tracing"
	"github.com/smallbiznis/flowmarket/internal/ratelimit"
	"github.com/smallbiznis/flowmarket/internal/registration"
	"github.com/smallbiznis/flowmarket/internal/registration/navigator"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine   *gin.Engine
	cfg      config.Config
	log      *zap.Logger
	visits   *registration.Store
	routes   *navigator.Routes
	authsvc  authdomain.Service
	sessions *session.Manager
	limiter  *ratelimit.SubmitLimiter
	metrics  *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin      *gin.Engine
	Cfg      config.Config
	Log      *zap.Logger
	Visits   *registration.Store
	Routes   *navigator.Routes
	Authsvc  authdomain.Service
	Sessions *session.Manager
	Limiter  *ratelimit.SubmitLimiter `optional:"true"`
	Metrics  *obsmetrics.Metrics      `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:   p.Gin,
		cfg:      p.Cfg,
		log:      p.Log.Named("http"),
		visits:   p.Visits,
		routes:   p.Routes,
		authsvc:  p.Authsvc,
		sessions: p.Sessions,
		limiter:  p.Limiter,
		metrics:  p.Metrics,
	}

	svc.registerAuthRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.GET("/confirm", s.ConfirmEmail)
	auth.POST("/logout", s.Logout)

	register := auth.Group("/register", s.VisitContext())
	{
		register.GET("", s.GetRegistration)
		register.PUT("/fields", s.SetRegistrationFields)
		register.POST("", s.SubmitRateLimit("credentials"), s.SubmitCredentials)
		register.POST("/providers/:provider", s.SubmitRateLimit("provider"), s.SubmitProvider)
		register.POST("/acknowledge", s.AcknowledgeRegistration)
	}

	auth.GET("/callback/:provider", s.VisitContext(), s.ProviderCallback)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
