package registration

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/flowmarket/internal/clock"
	"github.com/smallbiznis/flowmarket/internal/config"
	"github.com/smallbiznis/flowmarket/internal/registration/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const sweepInterval = time.Minute

type visit struct {
	flow     *Flow
	lastSeen time.Time
}

// Store keeps live flows by visit id and evicts idle ones.
type Store struct {
	mu      sync.Mutex
	visits  map[string]*visit
	factory *Factory
	clock   clock.Clock
	policy  *config.PolicyHolder
	log     *zap.Logger
}

func NewStore(factory *Factory, clk clock.Clock, policy *config.PolicyHolder, log *zap.Logger) *Store {
	return &Store{
		visits:  make(map[string]*visit),
		factory: factory,
		clock:   clk,
		policy:  policy,
		log:     log.Named("registration.store"),
	}
}

// Get returns the flow for id and marks it as seen.
func (s *Store) Get(id string) (*Flow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.visits[id]
	if !ok {
		return nil, false
	}
	v.lastSeen = s.clock.Now()
	return v.flow, true
}

// Create starts a new visit with a fresh id.
func (s *Store) Create() *Flow {
	id := ulid.Make().String()
	flow := s.factory.NewFlow(id)

	s.mu.Lock()
	s.visits[id] = &visit{flow: flow, lastSeen: s.clock.Now()}
	s.mu.Unlock()
	return flow
}

// GetOrCreate returns the flow for id, or a new one when id is unknown.
func (s *Store) GetOrCreate(id string) (*Flow, bool) {
	if id != "" {
		if flow, ok := s.Get(id); ok {
			return flow, false
		}
	}
	return s.Create(), true
}

// Sweep drops visits idle longer than the policy allows. Visits with a
// submission in flight are kept.
func (s *Store) Sweep() int {
	cutoff := s.clock.Now().Add(-s.policy.Get().VisitIdleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, v := range s.visits {
		if v.lastSeen.After(cutoff) || v.flow.Controller.State().Status == domain.StatusSubmitting {
			continue
		}
		delete(s.visits, id)
		removed++
	}
	return removed
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.visits)
}

func (s *Store) run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.log.Debug("evicted idle visits", zap.Int("count", n))
			}
		}
	}
}

func startSweeper(lc fx.Lifecycle, s *Store) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
