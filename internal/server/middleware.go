package server

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/flowmarket/internal/observability/context"
	"github.com/smallbiznis/flowmarket/internal/registration"
)

const (
	visitCookieName = "_rvid"
	contextFlowKey  = "registration_flow"
)

// VisitContext binds the request to the visitor's registration flow,
// starting a new one when the cookie is missing or the visit was evicted.
func (s *Server) VisitContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := c.Cookie(visitCookieName)
		flow, created := s.visits.GetOrCreate(strings.TrimSpace(id))
		if created {
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(visitCookieName, flow.ID, 0, "/auth", "", s.cfg.AuthCookieSecure, true)
		}

		ctx := obscontext.WithVisitID(c.Request.Context(), flow.ID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextFlowKey, flow)
		c.Next()
	}
}

func flowFrom(c *gin.Context) *registration.Flow {
	v, ok := c.Get(contextFlowKey)
	if !ok {
		return nil
	}
	flow, _ := v.(*registration.Flow)
	return flow
}

// SubmitRateLimit throttles submissions per client address when a limiter
// is configured.
func (s *Server) SubmitRateLimit(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, res := s.limiter.Allow(c.Request.Context(), scope, c.ClientIP())
		if res != nil {
			c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		}
		if allowed {
			c.Next()
			return
		}

		s.metrics.RecordRateLimited(c.Request.Context(), scope)
		if res != nil && res.RetryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
		}
		AbortWithError(c, ErrRateLimited)
	}
}
