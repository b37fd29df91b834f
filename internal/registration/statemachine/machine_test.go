package statemachine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/smallbiznis/flowmarket/internal/registration/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu          sync.Mutex
	transitions [][2]domain.State
}

func (r *recordingObserver) OnTransition(_ context.Context, from, to domain.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, [2]domain.State{from, to})
}

func TestNewMachineStartsIdle(t *testing.T) {
	m := New()
	assert.Equal(t, domain.State{Status: domain.StatusIdle}, m.Current())
}

func TestCredentialLifecycle(t *testing.T) {
	ctx := context.Background()
	obs := &recordingObserver{}
	m := New(obs)

	require.NoError(t, m.Begin(ctx, domain.PathCredentials))
	assert.Equal(t, domain.State{Status: domain.StatusSubmitting, Path: domain.PathCredentials}, m.Current())

	require.NoError(t, m.Succeed(ctx))
	state := m.Current()
	assert.Equal(t, domain.StatusSucceeded, state.Status)
	assert.Equal(t, domain.PathCredentials, state.Path)
	assert.True(t, state.AwaitingAcknowledgment())

	require.Len(t, obs.transitions, 2)
	assert.Equal(t, domain.StatusIdle, obs.transitions[0][0].Status)
	assert.Equal(t, domain.StatusSucceeded, obs.transitions[1][1].Status)
}

func TestProviderSuccessKeepsDistinctPath(t *testing.T) {
	ctx := context.Background()
	m := New()

	require.NoError(t, m.Begin(ctx, domain.PathProvider))
	require.NoError(t, m.Succeed(ctx))

	state := m.Current()
	assert.Equal(t, domain.StatusSucceeded, state.Status)
	assert.Equal(t, domain.PathProvider, state.Path)
	assert.False(t, state.AwaitingAcknowledgment())
}

func TestBeginWhileSubmittingIsRejected(t *testing.T) {
	ctx := context.Background()
	m := New()
	require.NoError(t, m.Begin(ctx, domain.PathCredentials))

	err := m.Begin(ctx, domain.PathProvider)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, domain.PathCredentials, m.Current().Path)
}

func TestFailThenRetry(t *testing.T) {
	ctx := context.Background()
	m := New()

	require.NoError(t, m.Begin(ctx, domain.PathCredentials))
	require.NoError(t, m.Fail(ctx, "first"))
	assert.Equal(t, domain.State{Status: domain.StatusFailed, Err: "first", Path: domain.PathCredentials}, m.Current())

	require.NoError(t, m.Begin(ctx, domain.PathProvider))
	assert.Equal(t, "", m.Current().Err)

	require.NoError(t, m.Fail(ctx, "second"))
	assert.Equal(t, "second", m.Current().Err)
	assert.Equal(t, domain.PathProvider, m.Current().Path)
}

func TestSucceededIsTerminal(t *testing.T) {
	ctx := context.Background()
	m := New()
	require.NoError(t, m.Begin(ctx, domain.PathCredentials))
	require.NoError(t, m.Succeed(ctx))

	assert.ErrorIs(t, m.Begin(ctx, domain.PathCredentials), domain.ErrInvalidTransition)
	assert.ErrorIs(t, m.Fail(ctx, "late"), domain.ErrInvalidTransition)
	assert.ErrorIs(t, m.Succeed(ctx), domain.ErrInvalidTransition)
	assert.Equal(t, domain.StatusSucceeded, m.Current().Status)
}

func TestOutcomeWithoutSubmissionIsRejected(t *testing.T) {
	ctx := context.Background()
	m := New()

	assert.ErrorIs(t, m.Succeed(ctx), domain.ErrInvalidTransition)
	assert.ErrorIs(t, m.Fail(ctx, "x"), domain.ErrInvalidTransition)
	assert.Equal(t, domain.StatusIdle, m.Current().Status)
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	ctx := context.Background()
	m := New()

	var calls int32
	cancel := m.Subscribe(ObserverFunc(func(context.Context, domain.State, domain.State) {
		atomic.AddInt32(&calls, 1)
	}))
	require.NoError(t, m.Begin(ctx, domain.PathCredentials))
	cancel()
	require.NoError(t, m.Fail(ctx, "boom"))

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestObserverCanReadStateDuringNotification(t *testing.T) {
	ctx := context.Background()
	m := New()

	var seen domain.State
	m.Subscribe(ObserverFunc(func(context.Context, domain.State, domain.State) {
		seen = m.Current()
	}))
	require.NoError(t, m.Begin(ctx, domain.PathCredentials))

	assert.Equal(t, domain.StatusSubmitting, seen.Status)
}

func TestConcurrentBeginAdmitsExactlyOne(t *testing.T) {
	ctx := context.Background()
	m := New()

	var admitted int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Begin(ctx, domain.PathCredentials) == nil {
				atomic.AddInt32(&admitted, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), admitted)
}

func TestCompositeObserverSkipsNil(t *testing.T) {
	a := &recordingObserver{}
	b := &recordingObserver{}
	composite := NewCompositeObserver(a, nil, b)

	composite.OnTransition(context.Background(), domain.State{}, domain.State{Status: domain.StatusSubmitting})

	assert.Len(t, a.transitions, 1)
	assert.Len(t, b.transitions, 1)
}
