package channel

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepLog struct {
	mu    sync.Mutex
	steps []string
	at    map[string]time.Time
}

func (l *stepLog) mark(step string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.at == nil {
		l.at = map[string]time.Time{}
	}
	l.steps = append(l.steps, step)
	l.at[step] = time.Now()
}

func (l *stepLog) snapshot() ([]string, map[string]time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	at := make(map[string]time.Time, len(l.at))
	for k, v := range l.at {
		at[k] = v
	}
	return append([]string(nil), l.steps...), at
}

func waitFor(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("continuation did not run")
	}
}

func TestPoolScheduler_ChainedContinuations(t *testing.T) {
	sched, err := NewPoolScheduler(2)
	require.NoError(t, err)
	defer sched.Release()

	log := &stepLog{}
	done := make(chan struct{})
	start := time.Now()

	sched.After(0, func() { log.mark("immediate") })
	sched.After(30*time.Millisecond, func() {
		log.mark("delay")
		sched.After(20*time.Millisecond, func() {
			log.mark("send")
			close(done)
		})
	})
	waitFor(t, done)

	steps, at := log.snapshot()
	assert.Equal(t, []string{"immediate", "delay", "send"}, steps)
	assert.GreaterOrEqual(t, at["delay"].Sub(start), 30*time.Millisecond)
	assert.GreaterOrEqual(t, at["send"].Sub(start), 50*time.Millisecond)
	assert.GreaterOrEqual(t, at["send"].Sub(at["delay"]), 20*time.Millisecond)
}

func TestPoolScheduler_RunsAfterRelease(t *testing.T) {
	sched, err := NewPoolScheduler(1)
	require.NoError(t, err)

	done := make(chan struct{})
	sched.After(20*time.Millisecond, func() { close(done) })
	sched.Release()
	waitFor(t, done)

	// the pool is closed, an immediate task still runs
	again := make(chan struct{})
	sched.After(0, func() { close(again) })
	waitFor(t, again)
}

func TestPoolScheduler_DispatchSequence(t *testing.T) {
	sched, err := NewPoolScheduler(2)
	require.NoError(t, err)
	defer sched.Release()

	api := &fakeAPI{}
	d := newTestDispatcher(configuredStore(nil), api, sched)

	start := time.Now()
	resp, err := d.SendText(context.Background(), "573001234567", "Paz",
		WithDelay(10*time.Millisecond, 20*time.Millisecond),
		WithPresenceWindow(15*time.Millisecond))
	elapsed := time.Since(start)
	require.NoError(t, err)
	assert.NotNil(t, resp["key"])

	calls := api.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "SendPresence", calls[0].Method)
	assert.Equal(t, "SendText", calls[1].Method)
	assert.Equal(t, 15, calls[0].Req.(PresenceRequest).Options.Delay)
	assert.GreaterOrEqual(t, elapsed, 25*time.Millisecond)
}

func TestPoolScheduler_PanickingStageCompletesDispatch(t *testing.T) {
	sched, err := NewPoolScheduler(2)
	require.NoError(t, err)
	defer sched.Release()

	api := &fakeAPI{sendPanic: "provider client exploded"}
	d := newTestDispatcher(configuredStore(nil), api, sched)

	result := make(chan error, 1)
	go func() {
		_, err := d.SendText(context.Background(), "573001234567", "Paz",
			WithDelay(0, 5*time.Millisecond),
			WithPresenceWindow(time.Millisecond))
		result <- err
	}()

	select {
	case err := <-result:
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDispatchAborted)
		assert.Contains(t, err.Error(), "provider client exploded")
	case <-time.After(5 * time.Second):
		t.Fatal("dispatch hung after a panicking stage")
	}
}
