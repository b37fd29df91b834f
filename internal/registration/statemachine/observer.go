package statemachine

import (
	"context"

	"github.com/smallbiznis/flowmarket/internal/registration/domain"
)

// Observer receives every accepted transition. Implementations should return
// quickly; they run on the goroutine that drove the transition.
type Observer interface {
	OnTransition(ctx context.Context, from, to domain.State)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, from, to domain.State)

func (f ObserverFunc) OnTransition(ctx context.Context, from, to domain.State) {
	f(ctx, from, to)
}

// NoopObserver ignores all transitions.
type NoopObserver struct{}

func (NoopObserver) OnTransition(context.Context, domain.State, domain.State) {}

// CompositeObserver fans out transitions to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver forwards transitions to each non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnTransition(ctx context.Context, from, to domain.State) {
	for _, o := range c.observers {
		o.OnTransition(ctx, from, to)
	}
}
