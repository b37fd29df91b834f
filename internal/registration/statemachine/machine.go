// Package statemachine tracks the lifecycle of one registration attempt.
//
// The machine is the only place that knows whether a submission is in
// flight: there is no separate loading flag. Transitions outside the table
// below are rejected with domain.ErrInvalidTransition and leave the state
// untouched.
//
//	Idle       -> Submitting   (credentials | provider)
//	Failed     -> Submitting   (retry)
//	Submitting -> Failed       (gateway error)
//	Submitting -> Succeeded    (gateway success, path kept)
//
// Succeeded has no outgoing transitions.
package statemachine

import (
	"context"
	"sync"

	"github.com/smallbiznis/flowmarket/internal/registration/domain"
)

var validTransitions = map[domain.Status][]domain.Status{
	domain.StatusIdle:       {domain.StatusSubmitting},
	domain.StatusFailed:     {domain.StatusSubmitting},
	domain.StatusSubmitting: {domain.StatusFailed, domain.StatusSucceeded},
	domain.StatusSucceeded:  {},
}

type subscription struct {
	id       uint64
	observer Observer
}

// Machine is safe for concurrent use.
type Machine struct {
	mu     sync.RWMutex
	state  domain.State
	nextID uint64
	subs   []subscription
}

// New returns a machine in Idle. Observers are notified of every transition
// after it has been applied.
func New(observers ...Observer) *Machine {
	m := &Machine{state: domain.State{Status: domain.StatusIdle}}
	for _, o := range observers {
		if o != nil {
			m.Subscribe(o)
		}
	}
	return m
}

// Current returns the current state.
func (m *Machine) Current() domain.State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Subscribe registers an observer and returns a function removing it.
func (m *Machine) Subscribe(o Observer) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	m.subs = append(m.subs, subscription{id: id, observer: o})

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, s := range m.subs {
			if s.id == id {
				m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
				return
			}
		}
	}
}

// Begin enters Submitting for the given path. It fails when a submission is
// already in flight or the flow has succeeded.
func (m *Machine) Begin(ctx context.Context, path domain.Path) error {
	return m.transition(ctx, domain.StatusSubmitting, func(from domain.State) domain.State {
		return domain.State{Status: domain.StatusSubmitting, Path: path}
	})
}

// Fail records a gateway error. The message replaces any earlier one.
func (m *Machine) Fail(ctx context.Context, message string) error {
	return m.transition(ctx, domain.StatusFailed, func(from domain.State) domain.State {
		return domain.State{Status: domain.StatusFailed, Err: message, Path: from.Path}
	})
}

// Succeed records a gateway success on the in-flight path.
func (m *Machine) Succeed(ctx context.Context) error {
	return m.transition(ctx, domain.StatusSucceeded, func(from domain.State) domain.State {
		return domain.State{Status: domain.StatusSucceeded, Path: from.Path}
	})
}

func (m *Machine) transition(ctx context.Context, to domain.Status, next func(from domain.State) domain.State) error {
	m.mu.Lock()
	from := m.state
	if !allowed(from.Status, to) {
		m.mu.Unlock()
		return domain.ErrInvalidTransition
	}
	m.state = next(from)
	current := m.state
	observers := make([]Observer, 0, len(m.subs))
	for _, s := range m.subs {
		observers = append(observers, s.observer)
	}
	m.mu.Unlock()

	for _, o := range observers {
		o.OnTransition(ctx, from, current)
	}
	return nil
}

func allowed(from, to domain.Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
