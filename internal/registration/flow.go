// Package registration assembles one registration flow per page visit.
package registration

import (
	"context"
	"sync"

	"github.com/smallbiznis/flowmarket/internal/observability/logger"
	"github.com/smallbiznis/flowmarket/internal/observability/metrics"
	"github.com/smallbiznis/flowmarket/internal/registration/consent"
	"github.com/smallbiznis/flowmarket/internal/registration/gateway"
	"github.com/smallbiznis/flowmarket/internal/registration/navigator"
	"github.com/smallbiznis/flowmarket/internal/registration/service"
	"github.com/smallbiznis/flowmarket/internal/registration/statemachine"
	"go.uber.org/zap"
)

// Flow is the orchestrator state of a single visit.
type Flow struct {
	ID         string
	Controller *service.Controller
	Navigator  *navigator.Recorder
	Consent    *consent.Broker

	mu  sync.Mutex
	run *Run
}

// Run tracks a provider submission running in the background.
type Run struct {
	done     chan struct{}
	accepted bool
}

// Done is closed once the submission has an outcome or was dropped.
func (r *Run) Done() <-chan struct{} { return r.done }

// Accepted reports whether the submission was admitted. Valid after Done.
func (r *Run) Accepted() bool { return r.accepted }

func (r *Run) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// StartProvider runs a provider submission detached from ctx's cancellation,
// so it outlives the request that started it and waits for the callback.
func (f *Flow) StartProvider(ctx context.Context, providerID string) *Run {
	run := &Run{done: make(chan struct{})}
	bg := context.WithoutCancel(ctx)

	go func() {
		defer close(run.done)
		run.accepted = f.Controller.SubmitWithProvider(bg, providerID)
	}()

	f.mu.Lock()
	if f.run == nil || f.run.finished() {
		f.run = run
	}
	f.mu.Unlock()
	return run
}

// CurrentRun returns the provider submission the visit is waiting on. A
// dropped attempt never replaces a pending one.
func (f *Flow) CurrentRun() *Run {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.run
}

// Factory builds flows sharing the process-wide gateway and telemetry.
type Factory struct {
	log         *zap.Logger
	gateway     *gateway.Gateway
	metrics     *metrics.Metrics
	transitions *metrics.TransitionMetrics
}

func NewFactory(log *zap.Logger, gw *gateway.Gateway, m *metrics.Metrics, tm *metrics.TransitionMetrics) *Factory {
	return &Factory{
		log:         log.Named("registration"),
		gateway:     gw,
		metrics:     m,
		transitions: tm,
	}
}

func (f *Factory) NewFlow(id string) *Flow {
	log := logger.WithVisit(f.log, id)
	broker := consent.NewBroker()
	recorder := navigator.NewRecorder(log)

	return &Flow{
		ID: id,
		Controller: service.New(
			log,
			f.gateway.WithConsent(broker),
			recorder,
			f.metrics,
			statemachine.NewCompositeObserver(LoggingObserver(log), MetricsObserver(f.transitions)),
		),
		Navigator: recorder,
		Consent:   broker,
	}
}
