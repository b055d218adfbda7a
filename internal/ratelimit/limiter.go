// Package ratelimit implements fixed-window request counting per client key.
//
// A Limiter evaluates named policies against an injected Store.  The store
// holds one counter per (policy, client) pair; policies are plain
// configuration values.  When the store fails the limiter allows the request
// and logs the failure: availability of the guarded operation wins over
// strict enforcement.
package ratelimit

import (
	"context"
	"math"
	"time"

	"github.com/iliyamo/workbook-assignment/internal/logger"
)

// Policy is a fixed-window limit for one class of operations.
type Policy struct {
	Name        string        `yaml:"-"`
	Window      time.Duration `yaml:"window"`
	MaxRequests int           `yaml:"max_requests"`
}

// Store counts hits inside fixed windows.  Incr starts a new window with a
// count of 1 when none exists for key or the existing one has elapsed, and
// otherwise increments it.  It returns the count after the increment and the
// time the current window ends.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration, now time.Time) (count int, resetAt time.Time, err error)
}

// Decision is the outcome of a single check.
type Decision struct {
	Allowed           bool
	Limit             int
	Remaining         int
	ResetTime         time.Time
	RetryAfterSeconds int
	// FailedOpen is set when the store errored and the request was let through.
	FailedOpen bool
}

// Limiter applies policies to client keys.
type Limiter struct {
	store  Store
	prefix string
	log    *logger.Logger
	now    func() time.Time
}

// Option customises a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(l *Limiter) { l.now = now } }

// WithPrefix namespaces every store key.
func WithPrefix(p string) Option { return func(l *Limiter) { l.prefix = p } }

// New returns a Limiter over store.  A nil log discards fail-open warnings.
func New(store Store, log *logger.Logger, opts ...Option) *Limiter {
	if log == nil {
		log = logger.Nop()
	}
	l := &Limiter{store: store, prefix: "rl", log: log, now: time.Now}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Key returns the store key for a policy and client.  Each policy owns its
// own keyspace.
func (l *Limiter) Key(p Policy, clientKey string) string {
	return l.prefix + ":" + p.Name + ":" + clientKey
}

// Check counts one request from clientKey against p.
func (l *Limiter) Check(ctx context.Context, p Policy, clientKey string) (d Decision) {
	now := l.now()
	d = Decision{Allowed: true, Limit: p.MaxRequests, Remaining: p.MaxRequests}

	defer func() {
		if r := recover(); r != nil {
			l.log.Warn("rate limit store panicked; allowing request", "policy", p.Name, "panic", r)
			d = Decision{Allowed: true, Limit: p.MaxRequests, Remaining: p.MaxRequests, FailedOpen: true}
		}
	}()

	if l.store == nil || p.MaxRequests <= 0 || p.Window <= 0 {
		return d
	}

	count, resetAt, err := l.store.Incr(ctx, l.Key(p, clientKey), p.Window, now)
	if err != nil {
		l.log.Warn("rate limit store unavailable; allowing request", "policy", p.Name, "error", err)
		d.FailedOpen = true
		return d
	}

	d.ResetTime = resetAt
	d.Remaining = p.MaxRequests - count
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if count > p.MaxRequests {
		d.Allowed = false
		d.RetryAfterSeconds = retryAfter(resetAt, now)
	}
	return d
}

// retryAfter is ceil((resetAt-now)/1s), at least 1 so that clients never
// retry immediately into the same window.
func retryAfter(resetAt, now time.Time) int {
	secs := int(math.Ceil(float64(resetAt.Sub(now).Milliseconds()) / 1000.0))
	if secs < 1 {
		secs = 1
	}
	return secs
}
