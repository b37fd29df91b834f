package registration

import (
	"context"

	"github.com/smallbiznis/flowmarket/internal/observability/logger"
	"github.com/smallbiznis/flowmarket/internal/observability/metrics"
	"github.com/smallbiznis/flowmarket/internal/registration/domain"
	"github.com/smallbiznis/flowmarket/internal/registration/statemachine"
	"go.uber.org/zap"
)

// LoggingObserver writes one line per state transition.
func LoggingObserver(log *zap.Logger) statemachine.Observer {
	return statemachine.ObserverFunc(func(ctx context.Context, from, to domain.State) {
		fields := []zap.Field{
			zap.String("from", string(from.Status)),
			zap.String("to", string(to.Status)),
			zap.String("path", string(to.Path)),
		}
		if to.Status == domain.StatusFailed {
			fields = append(fields, zap.String("reason", to.Err))
		}
		logger.WithContext(ctx, log).Info("registration transition", fields...)
	})
}

// MetricsObserver counts transitions by edge.
func MetricsObserver(m *metrics.TransitionMetrics) statemachine.Observer {
	if m == nil {
		return statemachine.NoopObserver{}
	}
	return statemachine.ObserverFunc(func(_ context.Context, from, to domain.State) {
		m.RecordTransition(string(from.Status), string(to.Status), string(to.Path))
	})
}
