package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"gw-transfer-batch/internal/custom_err"
	"gw-transfer-batch/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func santiago(t *testing.T) *time.Location {
	t.Helper()
	loc, err := LoadLocation("America/Santiago")
	require.NoError(t, err)
	return loc
}

type fakeTimer struct {
	ch      chan time.Time
	stopped bool
}

func (f *fakeTimer) C() <-chan time.Time { return f.ch }

func (f *fakeTimer) Stop() bool {
	f.stopped = true
	return true
}

// fakeClock fires every timer immediately and moves time forward by its
// duration, unless hold is set.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	hold   bool
	delays []time.Duration
	timers []*fakeTimer
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.delays = append(c.delays, d)
	t := &fakeTimer{ch: make(chan time.Time, 1)}
	c.timers = append(c.timers, t)
	if !c.hold {
		c.now = c.now.Add(d)
		t.ch <- c.now
	}
	return t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestNextTrigger(t *testing.T) {
	loc := santiago(t)

	tests := []struct {
		name      string
		now       time.Time
		wantNext  time.Time
		wantDelay time.Duration
	}{
		{
			name:      "one hour before",
			now:       time.Date(2025, 7, 9, 22, 0, 0, 0, loc),
			wantNext:  time.Date(2025, 7, 9, 23, 0, 0, 0, loc),
			wantDelay: time.Hour,
		},
		{
			name:      "past trigger rolls to tomorrow",
			now:       time.Date(2025, 7, 9, 23, 30, 0, 0, loc),
			wantNext:  time.Date(2025, 7, 10, 23, 0, 0, 0, loc),
			wantDelay: 23*time.Hour + 30*time.Minute,
		},
		{
			name:      "exactly at trigger",
			now:       time.Date(2025, 7, 9, 23, 0, 0, 0, loc),
			wantNext:  time.Date(2025, 7, 9, 23, 0, 0, 0, loc),
			wantDelay: 0,
		},
		{
			name:      "end of month",
			now:       time.Date(2025, 1, 31, 23, 59, 0, 0, loc),
			wantNext:  time.Date(2025, 2, 1, 23, 0, 0, 0, loc),
			wantDelay: 23*time.Hour + time.Minute,
		},
		{
			name:      "daylight saving starts overnight",
			now:       time.Date(2025, 9, 6, 23, 30, 0, 0, loc),
			wantNext:  time.Date(2025, 9, 7, 23, 0, 0, 0, loc),
			wantDelay: 22*time.Hour + 30*time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := NextTrigger(tt.now, loc, 23)
			assert.True(t, tt.wantNext.Equal(next), "got %s", next)
			assert.Equal(t, tt.wantDelay, next.Sub(tt.now))
		})
	}
}

func TestNextTrigger_ConvertsFromUTC(t *testing.T) {
	loc := santiago(t)
	// 02:00 UTC is 22:00 of the previous day in Santiago during winter.
	now := time.Date(2025, 7, 10, 2, 0, 0, 0, time.UTC)

	next := NextTrigger(now, loc, 23)

	assert.Equal(t, time.Hour, next.Sub(now))
	assert.Equal(t, 9, next.Day())
}

func TestScheduler_Delay(t *testing.T) {
	loc := santiago(t)
	clock := &fakeClock{now: time.Date(2025, 7, 9, 22, 0, 0, 0, loc)}
	s := New(func(context.Context) error { return nil }, Config{Hour: 23, Location: loc}, clock, logger.Discard())

	assert.Equal(t, time.Hour, s.Delay())
}

func TestScheduler_DebugRunsOnceWithoutWaiting(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 7, 9, 10, 0, 0, 0, time.UTC)}
	calls := 0
	s := New(func(context.Context) error {
		calls++
		return nil
	}, Config{Hour: 23, Location: time.UTC, DebugMode: true}, clock, logger.Discard())

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, 1, calls)
	assert.Empty(t, clock.delays)
}

func TestScheduler_DebugReturnsJobError(t *testing.T) {
	s := New(func(context.Context) error { return custom_err.ErrInputNotFound },
		Config{Hour: 23, Location: time.UTC, DebugMode: true}, &fakeClock{}, logger.Discard())

	assert.ErrorIs(t, s.Run(context.Background()), custom_err.ErrInputNotFound)
}

func TestScheduler_CancelDuringSleepSkipsJob(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 7, 9, 10, 0, 0, 0, time.UTC), hold: true}
	called := false
	s := New(func(context.Context) error {
		called = true
		return nil
	}, Config{Hour: 23, Location: time.UTC}, clock, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		clock.mu.Lock()
		defer clock.mu.Unlock()
		return len(clock.timers) == 1
	}, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
	assert.False(t, called)
	assert.Equal(t, 13*time.Hour, clock.delays[0])
	assert.True(t, clock.timers[0].stopped)
}

func TestScheduler_LoopsDaily(t *testing.T) {
	loc := santiago(t)
	clock := &fakeClock{now: time.Date(2025, 7, 9, 22, 0, 0, 0, loc)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs []time.Time
	s := New(func(jobCtx context.Context) error {
		runs = append(runs, clock.Now())
		clock.advance(time.Minute)
		if len(runs) == 3 {
			cancel()
			assert.NoError(t, jobCtx.Err())
		}
		return errors.New("chunk failures are logged, loop keeps going")
	}, Config{Hour: 23, Location: loc}, clock, logger.Discard())

	require.NoError(t, s.Run(ctx))

	require.Len(t, runs, 3)
	for i, r := range runs {
		want := time.Date(2025, 7, 9+i, 23, 0, 0, 0, loc)
		assert.True(t, want.Equal(r), "run %d at %s", i, r)
	}
	assert.Equal(t, []time.Duration{time.Hour, 23*time.Hour + 59*time.Minute, 23*time.Hour + 59*time.Minute}, clock.delays)
}

func TestSystemClock(t *testing.T) {
	var c SystemClock
	timer := c.NewTimer(time.Millisecond)

	select {
	case <-timer.C():
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	assert.False(t, timer.Stop())
	assert.WithinDuration(t, time.Now(), c.Now(), time.Second)
}

func TestScheduler_FastJobRunsOncePerTrigger(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 7, 9, 22, 0, 0, 0, time.UTC)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs []time.Time
	s := New(func(context.Context) error {
		runs = append(runs, clock.Now())
		if len(runs) == 2 {
			cancel()
		}
		return custom_err.ErrInputNotFound
	}, Config{Hour: 23, Location: time.UTC}, clock, logger.Discard())

	require.NoError(t, s.Run(ctx))

	require.Len(t, runs, 2)
	assert.True(t, time.Date(2025, 7, 9, 23, 0, 0, 0, time.UTC).Equal(runs[0]))
	assert.True(t, time.Date(2025, 7, 10, 23, 0, 0, 0, time.UTC).Equal(runs[1]))
	assert.Equal(t, []time.Duration{time.Hour, 24 * time.Hour}, clock.delays)
}

func TestScheduler_WallClockBehindFiredTrigger(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 7, 9, 22, 0, 0, 0, time.UTC)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	s := New(func(context.Context) error {
		calls++
		if calls == 1 {
			// the wall clock was stepped back while the timer slept
			clock.advance(-time.Second)
			return nil
		}
		cancel()
		return nil
	}, Config{Hour: 23, Location: time.UTC}, clock, logger.Discard())

	require.NoError(t, s.Run(ctx))

	assert.Equal(t, 2, calls)
	require.Len(t, clock.delays, 2)
	assert.Equal(t, 24*time.Hour+time.Second, clock.delays[1])
}
