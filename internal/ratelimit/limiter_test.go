package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type failingStore struct{}

func (failingStore) Incr(context.Context, string, time.Duration, time.Time) (int, time.Time, error) {
	return 0, time.Time{}, errors.New("connection refused")
}

type panickingStore struct{}

func (panickingStore) Incr(context.Context, string, time.Duration, time.Time) (int, time.Time, error) {
	panic("boom")
}

var fivePerWindow = Policy{Name: "auth", Window: 15 * time.Minute, MaxRequests: 5}

func newTestLimiter(store Store) (*Limiter, *fakeClock) {
	clk := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	return New(store, nil, WithClock(clk.Now)), clk
}

func TestLimiter_AllowsExactlyMaxThenDenies(t *testing.T) {
	l, _ := newTestLimiter(NewMemoryStore())
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		d := l.Check(ctx, fivePerWindow, "10.0.0.1:ua")
		require.True(t, d.Allowed, "request %d should be allowed", i)
		assert.Equal(t, 5-i, d.Remaining)
	}

	d := l.Check(ctx, fivePerWindow, "10.0.0.1:ua")
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, 5, d.Limit)
	assert.Equal(t, 15*60, d.RetryAfterSeconds)
}

func TestLimiter_RetryAfterRoundsUp(t *testing.T) {
	l, clk := newTestLimiter(NewMemoryStore())
	ctx := context.Background()
	p := Policy{Name: "p", Window: 10 * time.Second, MaxRequests: 1}

	require.True(t, l.Check(ctx, p, "k").Allowed)
	clk.Advance(8*time.Second + 300*time.Millisecond)
	d := l.Check(ctx, p, "k")
	require.False(t, d.Allowed)
	assert.Equal(t, 2, d.RetryAfterSeconds)
}

func TestLimiter_NewWindowResetsCounter(t *testing.T) {
	store := NewMemoryStore()
	l, clk := newTestLimiter(store)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		l.Check(ctx, fivePerWindow, "k")
	}
	clk.Advance(15 * time.Minute)

	d := l.Check(ctx, fivePerWindow, "k")
	require.True(t, d.Allowed)
	assert.Equal(t, 4, d.Remaining)

	count, _, err := store.Incr(ctx, l.Key(fivePerWindow, "k"), fivePerWindow.Window, clk.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, count, "window restarted at 1, this is the second hit")
}

func TestLimiter_PoliciesHaveIndependentKeyspaces(t *testing.T) {
	l, _ := newTestLimiter(NewMemoryStore())
	ctx := context.Background()
	other := Policy{Name: "admin", Window: 15 * time.Minute, MaxRequests: 100}

	for i := 0; i < 5; i++ {
		l.Check(ctx, fivePerWindow, "k")
	}
	assert.False(t, l.Check(ctx, fivePerWindow, "k").Allowed)
	assert.True(t, l.Check(ctx, other, "k").Allowed)
	assert.True(t, l.Check(ctx, fivePerWindow, "other-client").Allowed)
}

func TestLimiter_FailsOpenOnStoreError(t *testing.T) {
	l, _ := newTestLimiter(failingStore{})
	for i := 0; i < 20; i++ {
		d := l.Check(context.Background(), fivePerWindow, "k")
		require.True(t, d.Allowed)
		assert.True(t, d.FailedOpen)
	}
}

func TestLimiter_FailsOpenOnStorePanic(t *testing.T) {
	l, _ := newTestLimiter(panickingStore{})
	d := l.Check(context.Background(), fivePerWindow, "k")
	assert.True(t, d.Allowed)
	assert.True(t, d.FailedOpen)
}

func TestLimiter_FailsOpenWhenRedisUnreachable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	l, _ := newTestLimiter(NewRedisStore(rdb))
	d := l.Check(context.Background(), fivePerWindow, "k")
	assert.True(t, d.Allowed)
	assert.True(t, d.FailedOpen)
}

func TestLimiter_ConcurrentChecksCountEveryRequest(t *testing.T) {
	l, _ := newTestLimiter(NewMemoryStore())
	p := Policy{Name: "burst", Window: time.Hour, MaxRequests: 50}

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Check(context.Background(), p, "k").Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

func TestMemoryStore_SweepEvictsExpiredWindows(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, _, _ = s.Incr(ctx, "short", time.Minute, now)
	_, _, _ = s.Incr(ctx, "long", time.Hour, now)
	require.Equal(t, 2, s.Len())

	assert.Equal(t, 1, s.Sweep(now.Add(2*time.Minute)))
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, s.Sweep(now.Add(2*time.Hour)))
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_RunSweeperStopsOnCancel(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.RunSweeper(ctx, 5*time.Millisecond) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
