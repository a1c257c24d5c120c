// Package refresh implements single-flight access token refresh.
//
// A Coordinator owns the refresh state. The first caller of Acquire while
// the state is idle becomes the leader: it flips the state to refreshing
// and calls the Refresher. Callers arriving while a refresh is in flight
// are queued and receive the leader's outcome. The state returns to idle
// in the same critical section that detaches the queue, so no waiter can
// be enqueued into a cycle that has already been settled.
//
// A cycle only writes to the token store if the store has not changed
// since the cycle started. A logout during a refresh therefore stays a
// logout: the new token is dropped and every caller of that cycle gets a
// RefreshError wrapping ErrSessionChanged.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/authpipe/internal/client/tokenstore"
	"github.com/dmitrijs2005/authpipe/internal/logging"
)

const defaultTimeout = 30 * time.Second

// Refresher exchanges the out-of-band refresh credential for a new access
// token.
type Refresher interface {
	Refresh(ctx context.Context) (string, error)
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context) (string, error)

func (f RefresherFunc) Refresh(ctx context.Context) (string, error) { return f(ctx) }

// Sink is told when a refresh cycle fails and the session is gone.
type Sink interface {
	OnUnauthenticated(ctx context.Context)
}

// Discarder is implemented by sinks that must drop leftovers of a refresh
// whose session ended while it was in flight, such as the rotated refresh
// cookie.
type Discarder interface {
	OnRefreshDiscarded(ctx context.Context)
}

// Metrics observes refresh cycles.
type Metrics interface {
	RefreshStarted()
	RefreshFinished(err error, waiters int)
	WaiterQueued()
}

type nopMetrics struct{}

func (nopMetrics) RefreshStarted()             {}
func (nopMetrics) RefreshFinished(error, int) {}
func (nopMetrics) WaiterQueued()              {}

type state int

const (
	stateIdle state = iota
	stateRefreshing
)

type result struct {
	token string
	err   error
}

// waiter is a queued caller. The channel is buffered so settling never
// blocks, even when the caller already gave up on its context.
type waiter struct {
	seq uint64
	ch  chan result
}

// Stats are cumulative counters since the Coordinator was created.
type Stats struct {
	Refreshes int64
	Failures  int64
	Waiters   int64
}

type Coordinator struct {
	refresher Refresher
	store     tokenstore.Store
	sink      Sink
	logger    logging.Logger
	metrics   Metrics
	timeout   time.Duration

	mu    sync.Mutex
	state state
	queue []*waiter
	seq   uint64

	// onSettle observes each waiter as it is settled; nil outside tests.
	onSettle func(*waiter)

	refreshes atomic.Int64
	failures  atomic.Int64
	waiters   atomic.Int64
}

type Option func(*Coordinator)

// WithSink sets the hook invoked once per failed refresh cycle.
func WithSink(s Sink) Option {
	return func(c *Coordinator) { c.sink = s }
}

func WithLogger(l logging.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

func WithMetrics(m Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithTimeout bounds a single refresh call. Zero or negative keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func NewCoordinator(refresher Refresher, store tokenstore.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		refresher: refresher,
		store:     store,
		logger:    logging.Nop(),
		metrics:   nopMetrics{},
		timeout:   defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "refresh")
	return c
}

// Acquire returns a freshly refreshed access token.
//
// At most one Refresher call is outstanding at any time. A caller whose ctx
// ends while queued gets ctx.Err(); its slot is still settled when the
// cycle finishes. The leader's refresh call is detached from the leader's
// cancellation and bounded by the configured timeout instead, since its
// outcome is shared with every queued caller.
func (c *Coordinator) Acquire(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.state == stateRefreshing {
		c.seq++
		w := &waiter{seq: c.seq, ch: make(chan result, 1)}
		c.queue = append(c.queue, w)
		c.waiters.Add(1)
		c.mu.Unlock()

		c.metrics.WaiterQueued()

		select {
		case r := <-w.ch:
			return r.token, r.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	c.state = stateRefreshing
	version := c.store.Version()
	c.mu.Unlock()

	return c.lead(ctx, version)
}

func (c *Coordinator) lead(ctx context.Context, version uint64) (string, error) {
	c.refreshes.Add(1)
	c.metrics.RefreshStarted()
	c.logger.Debug(ctx, "refresh started")

	detached := context.WithoutCancel(ctx)
	token, err := c.callRefresher(detached)

	if err != nil {
		rerr := asRefreshError(err)

		// A session replaced meanwhile is not ours to end.
		cleared := c.store.SetIfVersion(version, "")
		queued := c.finish()
		c.settle(queued, result{err: rerr})

		c.failures.Add(1)
		c.metrics.RefreshFinished(rerr, len(queued))
		c.logger.Warn(ctx, "refresh failed", "waiters", len(queued), "error", rerr)

		if cleared && c.sink != nil {
			c.sink.OnUnauthenticated(detached)
		}
		return "", rerr
	}

	if !c.store.SetIfVersion(version, token) {
		return "", c.discard(detached)
	}
	queued := c.finish()
	c.settle(queued, result{token: token})

	c.metrics.RefreshFinished(nil, len(queued))
	c.logger.Info(ctx, "refresh succeeded", "waiters", len(queued))
	return token, nil
}

// discard settles a cycle whose session changed while the refresher ran.
func (c *Coordinator) discard(ctx context.Context) error {
	rerr := &RefreshError{Cause: ErrSessionChanged}

	queued := c.finish()
	c.settle(queued, result{err: rerr})

	c.failures.Add(1)
	c.metrics.RefreshFinished(rerr, len(queued))
	c.logger.Info(ctx, "refreshed token discarded, session changed", "waiters", len(queued))

	if d, ok := c.sink.(Discarder); ok {
		d.OnRefreshDiscarded(ctx)
	}
	return rerr
}

// callRefresher runs the Refresher under the timeout. An empty token or a
// panic counts as failure so the state can never stay refreshing.
func (c *Coordinator) callRefresher(ctx context.Context) (token string, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			token, err = "", &RefreshError{Cause: fmt.Errorf("refresher panic: %v", p)}
		}
	}()

	token, err = c.refresher.Refresh(ctx)
	if err == nil && token == "" {
		err = &RefreshError{Cause: errEmptyToken}
	}
	return token, err
}

// finish returns the state to idle and detaches the queue atomically.
func (c *Coordinator) finish() []*waiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = stateIdle
	queued := c.queue
	c.queue = nil
	return queued
}

// settle hands r to every waiter in arrival order.
func (c *Coordinator) settle(queued []*waiter, r result) {
	for _, w := range queued {
		w.ch <- r
		if c.onSettle != nil {
			c.onSettle(w)
		}
	}
}

// Refreshing reports whether a refresh cycle is in flight.
func (c *Coordinator) Refreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateRefreshing
}

func (c *Coordinator) Stats() Stats {
	return Stats{
		Refreshes: c.refreshes.Load(),
		Failures:  c.failures.Load(),
		Waiters:   c.waiters.Load(),
	}
}

func asRefreshError(err error) *RefreshError {
	var rerr *RefreshError
	if errors.As(err, &rerr) {
		return rerr
	}
	return &RefreshError{Cause: err}
}
