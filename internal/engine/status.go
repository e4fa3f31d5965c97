package engine

import (
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/roach88/nbhd/internal/clock"
	"github.com/roach88/nbhd/internal/community"
	"github.com/roach88/nbhd/internal/telemetry"
)

// Notice is the one user-visible message raised when automatic retries are
// exhausted.
type Notice struct {
	Actor    community.ActorID
	Attempt  int64
	Failures int
	Err      error
	Message  string
	At       time.Time
}

// StatusController owns loading, last error, the attempt counter, and the
// retry and safety timers.
//
// State machine:
//
//	Idle -> Loading -> Success -> Idle
//	                -> Failure -> BackoffWait -> Loading   (at most maxRetries times)
//	                -> Failure -> TerminalFailure -> Idle  (notice raised once)
//
// All methods must be called from the engine loop goroutine. Timer
// callbacks reach the controller through the loop-bound scheduler, so the
// controller never needs a lock of its own.
type StatusController struct {
	store   *StateStore
	clock   *Clock
	sched   clock.Scheduler
	backoff *backoff.ExponentialBackOff
	logger  *slog.Logger
	metrics *telemetry.Metrics

	maxRetries    int
	safetyTimeout time.Duration

	// trigger starts the cycle for a freshly issued attempt number.
	trigger func(attempt int64)
	// abandon releases a cycle that the safety timeout gave up on.
	abandon func(attempt int64)
	// notify delivers the terminal notice.
	notify func(Notice)

	actor       community.ActorID
	retries     int
	failures    int
	noticed     bool
	inFlight    int64
	startedAt   time.Time
	retryTimer  clock.Timer
	safetyTimer clock.Timer
}

// statusConfig carries controller tuning from the engine options.
type statusConfig struct {
	maxRetries     int
	safetyTimeout  time.Duration
	backoffInitial time.Duration
	backoffMax     time.Duration
}

func newStatusController(
	store *StateStore,
	c *Clock,
	sched clock.Scheduler,
	cfg statusConfig,
	logger *slog.Logger,
	metrics *telemetry.Metrics,
) *StatusController {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     cfg.backoffInitial,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         cfg.backoffMax,
	}
	b.Reset()

	return &StatusController{
		store:         store,
		clock:         c,
		sched:         sched,
		backoff:       b,
		logger:        logger,
		metrics:       metrics,
		maxRetries:    cfg.maxRetries,
		safetyTimeout: cfg.safetyTimeout,
		trigger:       func(int64) {},
		abandon:       func(int64) {},
		notify:        func(Notice) {},
	}
}

// RequestRefresh resets the retry budget and issues a new attempt number.
// It is the only external trigger for a new cycle.
func (c *StatusController) RequestRefresh() {
	c.stopRetry()
	c.retries = 0
	c.failures = 0
	c.noticed = false
	c.backoff.Reset()
	c.bump()
}

// StartCycle marks attempt as in flight: loading on, error and candidates
// cleared, start time recorded, safety timer armed.
func (c *StatusController) StartCycle(attempt int64) {
	c.stopSafety()
	c.inFlight = attempt
	c.startedAt = c.sched.Now()
	c.safetyTimer = c.sched.AfterFunc(c.safetyTimeout, func() {
		c.onSafetyTimeout(attempt)
	})

	c.store.update(func(s *State) {
		s.Loading = true
		s.LastError = nil
		s.Candidates = nil
	})
}

// CompleteCycle ends the in-flight cycle successfully. Loading is cleared
// unconditionally.
func (c *StatusController) CompleteCycle() {
	c.complete(nil)
}

// complete ends the cycle, applying commit in the same store update so
// subscribers never see the result without the loading transition.
func (c *StatusController) complete(commit func(*State)) {
	c.stopSafety()
	d := c.elapsed()
	c.inFlight = 0
	c.retries = 0
	c.failures = 0
	c.noticed = false
	c.backoff.Reset()

	c.store.update(func(s *State) {
		if commit != nil {
			commit(s)
		}
		s.Loading = false
	})
	c.metrics.ObserveCycle(telemetry.ResultSuccess, d)
}

// FailCycle records err, clears loading, and either arms the next retry or,
// once the budget is spent, raises the terminal notice exactly once.
func (c *StatusController) FailCycle(err error) {
	c.stopSafety()
	d := c.elapsed()
	attempt := c.inFlight
	if attempt == 0 {
		attempt = c.clock.Current()
	}
	c.inFlight = 0
	c.failures++

	// Timers are armed before the store publishes, so an observer that sees
	// the failure also sees the retry it scheduled.
	var notice *Notice
	switch {
	case c.retries < c.maxRetries && IsRetryable(err):
		delay := c.backoff.NextBackOff()
		c.retries++
		c.stopRetry()
		c.retryTimer = c.sched.AfterFunc(delay, c.onRetry)
		c.metrics.RetryScheduled()
		c.logger.Info("retry scheduled",
			"actor", c.actor,
			"attempt", attempt,
			"retry", c.retries,
			"delay", delay,
			"error", err,
		)
	case !c.noticed:
		c.noticed = true
		notice = &Notice{
			Actor:    c.actor,
			Attempt:  attempt,
			Failures: c.failures,
			Err:      err,
			Message:  "could not load your community, refresh to try again",
			At:       c.sched.Now(),
		}
	}

	c.store.update(func(s *State) {
		s.LastError = err
		s.Loading = false
	})
	c.metrics.ObserveCycle(telemetry.ResultFailure, d)

	if notice != nil {
		c.metrics.TerminalNotice()
		c.logger.Warn("retries exhausted",
			"actor", c.actor,
			"attempt", attempt,
			"failures", c.failures,
			"error", err,
		)
		c.notify(*notice)
	}
}

// Idle cancels both timers and forgets the in-flight cycle. Used when the
// actor signs out and when the engine shuts down.
func (c *StatusController) Idle() {
	c.stopSafety()
	c.stopRetry()
	c.inFlight = 0
	c.retries = 0
	c.failures = 0
	c.noticed = false
	c.backoff.Reset()
}

// InFlight reports whether attempt is the cycle currently awaiting a result.
func (c *StatusController) InFlight(attempt int64) bool {
	return attempt != 0 && c.inFlight == attempt
}

// Retries returns the number of automatic retries scheduled since the last
// refresh or success.
func (c *StatusController) Retries() int {
	return c.retries
}

func (c *StatusController) setActor(a community.ActorID) {
	c.actor = a
}

func (c *StatusController) bump() {
	n := c.clock.Next()
	c.store.update(func(s *State) { s.Attempt = n })
	c.trigger(n)
}

func (c *StatusController) onRetry() {
	c.retryTimer = nil
	c.bump()
}

func (c *StatusController) onSafetyTimeout(attempt int64) {
	if !c.InFlight(attempt) {
		return
	}
	c.safetyTimer = nil
	c.metrics.SafetyTimeout()
	c.logger.Warn("safety timeout fired",
		"actor", c.actor,
		"attempt", attempt,
		"after", c.safetyTimeout,
	)
	c.abandon(attempt)
	c.FailCycle(NewTimeoutError(c.actor, attempt, c.safetyTimeout))
}

func (c *StatusController) elapsed() time.Duration {
	if c.startedAt.IsZero() {
		return 0
	}
	d := c.sched.Now().Sub(c.startedAt)
	c.startedAt = time.Time{}
	return d
}

func (c *StatusController) stopSafety() {
	if c.safetyTimer != nil {
		c.safetyTimer.Stop()
		c.safetyTimer = nil
	}
}

func (c *StatusController) stopRetry() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}
