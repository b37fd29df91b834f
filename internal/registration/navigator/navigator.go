// Package navigator turns navigation intents into browser paths.
package navigator

import (
	"context"
	"sync"

	"github.com/smallbiznis/flowmarket/internal/config"
	"github.com/smallbiznis/flowmarket/internal/registration/domain"
	"go.uber.org/zap"
)

// Recorder keeps the latest navigation intent of one visit.
type Recorder struct {
	mu    sync.Mutex
	route domain.RouteID
	log   *zap.Logger
}

func NewRecorder(log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{log: log}
}

func (r *Recorder) GoTo(ctx context.Context, route domain.RouteID) {
	r.mu.Lock()
	r.route = route
	r.mu.Unlock()
	r.log.Debug("navigation requested", zap.String("route", string(route)))
}

// Last returns the latest intent, if any.
func (r *Recorder) Last() (domain.RouteID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.route, r.route != ""
}

// Routes resolves route ids against the hot-reloadable registration policy.
type Routes struct {
	policy *config.PolicyHolder
}

func NewRoutes(policy *config.PolicyHolder) *Routes {
	return &Routes{policy: policy}
}

// Path returns the browser path for route.
func (r *Routes) Path(route domain.RouteID) (string, bool) {
	paths := r.policy.Get().Routes
	switch route {
	case domain.RouteSignIn:
		return paths.SignIn, true
	case domain.RouteAuthenticatedHome:
		return paths.AuthenticatedHome, true
	default:
		return "", false
	}
}

// RegisterPath is where a visit returns when no navigation was requested.
func (r *Routes) RegisterPath() string {
	return r.policy.Get().Routes.Register
}

var _ domain.Navigator = (*Recorder)(nil)
