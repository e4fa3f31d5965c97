package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/nbhd/internal/clock"
	"github.com/roach88/nbhd/internal/community"
	"github.com/roach88/nbhd/internal/gateway"
	"github.com/roach88/nbhd/internal/telemetry"
)

// Defaults for the status controller.
const (
	DefaultMaxRetries     = 3
	DefaultSafetyTimeout  = 10 * time.Second
	DefaultBackoffInitial = 1 * time.Second
	DefaultBackoffMax     = 10 * time.Second

	defaultNoticeBuffer = 8
	tracerName          = "github.com/roach88/nbhd/internal/engine"
)

// ErrAlreadyRunning is returned by Run when another Run is active.
var ErrAlreadyRunning = errors.New("engine already running")

// Engine is the resolution orchestrator: a single-writer event loop that
// sequences fetch cycles and commits the winning result.
//
// CRITICAL: All mutations happen in the loop goroutine (Run, or Drain in
// tests). External callers use SetActor and the Accessor, which only enqueue.
//
// Thread-safety model:
//   - SetActor(), Accessor(), Stop(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - Drain(): never concurrently with Run()
//
// INVARIANTS:
//   - a result is committed only if its attempt is still current and in flight
//   - a superseded or timed-out result never mutates the store
//   - after shutdown the store is never mutated
type Engine struct {
	store    *StateStore
	clock    *Clock
	queue    *eventQueue
	resolver *Resolver
	status   *StatusController
	sched    clock.Scheduler
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	tracer   trace.Tracer
	notices  chan Notice
	dispatch func(func())

	statusCfg statusConfig

	runCtx        context.Context
	running       atomic.Bool
	closed        atomic.Bool
	actor         community.ActorID
	actorSet      bool
	cancel        context.CancelFunc
	cancelAttempt int64
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithStateStore injects the shared state store owned by the caller.
func WithStateStore(s *StateStore) EngineOption {
	return func(e *Engine) {
		e.store = s
	}
}

// WithScheduler sets the wall-time scheduler for retry and safety timers.
// Default: clock.Real{}.
func WithScheduler(s clock.Scheduler) EngineOption {
	return func(e *Engine) {
		e.sched = s
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMetrics records cycle outcomes on m.
func WithMetrics(m *telemetry.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithTracer sets the tracer for cycle and strategy spans.
// Default: the global OpenTelemetry provider.
func WithTracer(t trace.Tracer) EngineOption {
	return func(e *Engine) {
		e.tracer = t
	}
}

// WithMaxRetries sets the automatic retry budget (default 3).
func WithMaxRetries(n int) EngineOption {
	return func(e *Engine) {
		e.statusCfg.maxRetries = n
	}
}

// WithSafetyTimeout sets the hard upper bound on a cycle (default 10s).
func WithSafetyTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.statusCfg.safetyTimeout = d
	}
}

// WithBackoff sets the first retry delay and the delay cap (default 1s, 10s).
// Delays double between retries.
func WithBackoff(initial, limit time.Duration) EngineOption {
	return func(e *Engine) {
		e.statusCfg.backoffInitial = initial
		e.statusCfg.backoffMax = limit
	}
}

// WithInlineDispatch runs the resolver on the loop goroutine instead of a
// fetch goroutine. Only for deterministic harness runs against gateways
// that never block.
func WithInlineDispatch() EngineOption {
	return func(e *Engine) {
		e.dispatch = func(f func()) { f() }
	}
}

// New creates an Engine resolving against gw.
//
// Options can be passed to configure the engine (e.g., WithStateStore,
// WithScheduler). A nil gw is accepted; every cycle then fails with
// GATEWAY_UNAVAILABLE and is retried like any other failure.
func New(gw gateway.Gateway, opts ...EngineOption) *Engine {
	e := &Engine{
		clock:    NewClock(),
		queue:    newEventQueue(),
		sched:    clock.Real{},
		logger:   slog.Default(),
		notices:  make(chan Notice, defaultNoticeBuffer),
		dispatch: func(f func()) { go f() },
		runCtx:   context.Background(),
	}
	e.statusCfg = statusConfig{
		maxRetries:     DefaultMaxRetries,
		safetyTimeout:  DefaultSafetyTimeout,
		backoffInitial: DefaultBackoffInitial,
		backoffMax:     DefaultBackoffMax,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.store == nil {
		e.store = NewStateStore()
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}

	e.resolver = NewResolver(gw, e.tracer)
	e.status = newStatusController(
		e.store,
		e.clock,
		&loopScheduler{inner: e.sched, queue: e.queue},
		e.statusCfg,
		e.logger,
		e.metrics,
	)
	e.status.trigger = e.startCycle
	e.status.abandon = e.abandonCycle
	e.status.notify = e.deliverNotice

	return e
}

// Accessor returns the presentation-facing view of the engine.
func (e *Engine) Accessor() *Accessor {
	return &Accessor{store: e.store, engine: e}
}

// SetActor reports a new signed-in identity. An empty actor signs out.
// Thread-safe: may be called from any goroutine.
//
// Returns false if the engine has been stopped.
func (e *Engine) SetActor(actor community.ActorID) bool {
	return e.queue.Enqueue(Event{Type: EventActorChanged, Actor: actor})
}

// Run starts the single-writer event loop.
// Blocks until ctx is cancelled or Stop() is called.
//
// On return the engine is shut down: timers are cancelled, the in-flight
// cycle's context is cancelled, and late results are dropped.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	e.runCtx = ctx
	defer e.shutdown()

	e.logger.Info("engine starting")
	e.settleUnidentified()

	for {
		if ev, ok := e.queue.TryDequeue(); ok {
			e.processEvent(ev)
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel closes when the queue is closed, which
			// fires this case immediately.
			if e.queue.Closed() && e.queue.Len() == 0 {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Drain processes every queued event, including events enqueued while
// draining, and returns how many it handled. It never blocks.
//
// Drain replaces Run in deterministic tests (WithInlineDispatch plus a
// clock.Manual scheduler). It must not be called while Run is active.
func (e *Engine) Drain(ctx context.Context) int {
	e.runCtx = ctx
	e.settleUnidentified()
	n := 0
	for {
		ev, ok := e.queue.TryDequeue()
		if !ok {
			return n
		}
		e.processEvent(ev)
		n++
	}
}

// Stop gracefully shuts down the engine. Run returns once the queue is
// drained. Thread-safe: may be called from any goroutine.
func (e *Engine) Stop() {
	e.closed.Store(true)
	e.queue.Close()
}

func (e *Engine) shutdown() {
	e.closed.Store(true)
	e.queue.Close()
	e.status.Idle()
	e.cancelCycle()
	e.logger.Info("engine stopped")
}

// processEvent routes an event to its handler.
// CRITICAL: Called only from the loop goroutine - single-writer guarantee.
func (e *Engine) processEvent(ev Event) {
	if e.closed.Load() {
		e.logger.Debug("dropping event after stop", "type", ev.Type.String())
		return
	}
	switch ev.Type {
	case EventActorChanged:
		e.handleActor(ev.Actor)
	case EventRefresh:
		e.logger.Debug("refresh requested", "actor", e.actor)
		e.status.RequestRefresh()
	case EventCycleResult:
		e.handleResult(ev)
	case EventTimer:
		if ev.Fire != nil {
			ev.Fire()
		}
	default:
		e.logger.Error("unknown event type", "type", int(ev.Type))
	}
}

func (e *Engine) handleActor(raw community.ActorID) {
	actor := community.NormalizeActor(raw)
	if e.actorSet && actor == e.actor {
		e.logger.Debug("actor unchanged", "actor", actor)
		return
	}

	previous := e.actor
	e.actor = actor
	e.actorSet = true
	e.status.setActor(actor)
	e.logger.Info("actor changed", "from", previous, "to", actor)

	// The previous actor's selection must not leak into the new actor's cycle.
	e.store.update(func(s *State) {
		s.Active = nil
		s.Privileged = false
	})
	e.status.RequestRefresh()
}

// settleUnidentified treats an engine that has never been told an actor as
// signed out, so loading does not outlive the absence of an identity. The
// attempt is not bumped and no gateway call is made.
func (e *Engine) settleUnidentified() {
	if e.actorSet {
		return
	}
	e.actorSet = true
	e.status.setActor(e.actor)
	e.store.update(func(s *State) {
		s.Loading = false
	})
}

// startCycle is the status controller's trigger for a new attempt.
func (e *Engine) startCycle(attempt int64) {
	e.cancelCycle()
	if e.closed.Load() {
		return
	}
	if e.actor.SignedOut() {
		e.signOut(attempt)
		return
	}

	previous := e.store.Snapshot().ActiveID()
	e.status.StartCycle(attempt)

	ctx, cancel := context.WithCancel(e.runCtx)
	e.cancel = cancel
	e.cancelAttempt = attempt

	actor := e.actor
	e.logger.Debug("cycle started", "actor", actor, "attempt", attempt, "previous", previous)
	e.dispatch(func() {
		res, err := e.fetch(ctx, actor, attempt, previous)
		e.queue.Enqueue(Event{
			Type:       EventCycleResult,
			Actor:      actor,
			Attempt:    attempt,
			Resolution: &res,
			Err:        err,
		})
	})
}

// fetch runs the resolver inside a cycle span. A panicking gateway becomes a
// query failure so the cycle still reaches the loop.
func (e *Engine) fetch(ctx context.Context, actor community.ActorID, attempt int64, previous string) (res Resolution, err error) {
	ctx, span := e.tracer.Start(ctx, "resolve.cycle",
		trace.WithAttributes(
			attribute.String("nbhd.actor", string(actor)),
			attribute.Int64("nbhd.attempt", attempt),
		),
	)
	defer func() {
		if p := recover(); p != nil {
			res = Resolution{}
			err = NewQueryError(actor, "", fmt.Errorf("resolver panic: %v", p))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.String("nbhd.strategy", res.Strategy))
		}
		span.End()
	}()

	return e.resolver.Resolve(ctx, actor, previous)
}

func (e *Engine) signOut(attempt int64) {
	e.status.Idle()
	e.store.update(func(s *State) {
		s.Active = nil
		s.Candidates = nil
		s.Privileged = false
		s.Loading = false
		s.LastError = nil
	})
	e.metrics.ObserveCycle(telemetry.ResultSignedOut, 0)
	e.logger.Info("signed out, resolution cleared", "attempt", attempt)
}

func (e *Engine) handleResult(ev Event) {
	if e.closed.Load() {
		return
	}
	if ev.Attempt != e.store.Attempt() || !e.status.InFlight(ev.Attempt) {
		e.metrics.ObserveCycle(telemetry.ResultStale, 0)
		e.logger.Debug("discarding stale result",
			"actor", ev.Actor,
			"attempt", ev.Attempt,
			"current", e.store.Attempt(),
		)
		return
	}
	e.cancelCycle()

	if ev.Err != nil {
		var re *ResolutionError
		if errors.As(ev.Err, &re) {
			re.Attempt = ev.Attempt
			if re.Actor == "" {
				re.Actor = ev.Actor
			}
		}
		e.logger.Warn("cycle failed",
			"actor", ev.Actor,
			"attempt", ev.Attempt,
			"error", ev.Err,
		)
		e.status.FailCycle(ev.Err)
		return
	}

	res := Resolution{}
	if ev.Resolution != nil {
		res = *ev.Resolution
	}
	e.status.complete(func(s *State) {
		s.Active = res.Active
		s.Candidates = res.Candidates
		s.Privileged = res.Privileged
	})
	e.metrics.ObserveStrategy(res.Strategy)

	activeID := ""
	if res.Active != nil {
		activeID = res.Active.ID
	}
	e.logger.Info("cycle committed",
		"actor", ev.Actor,
		"attempt", ev.Attempt,
		"strategy", res.Strategy,
		"active", activeID,
		"candidates", len(res.Candidates),
	)
}

func (e *Engine) abandonCycle(attempt int64) {
	if e.cancelAttempt == attempt {
		e.cancelCycle()
	}
}

func (e *Engine) cancelCycle() {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
		e.cancelAttempt = 0
	}
}

func (e *Engine) deliverNotice(n Notice) {
	select {
	case e.notices <- n:
	default:
		e.logger.Warn("notice dropped: no reader", "attempt", n.Attempt)
	}
}

// loopScheduler re-routes timer callbacks through the event queue so they
// run on the loop goroutine.
type loopScheduler struct {
	inner clock.Scheduler
	queue *eventQueue
}

func (s *loopScheduler) Now() time.Time {
	return s.inner.Now()
}

func (s *loopScheduler) AfterFunc(d time.Duration, f func()) clock.Timer {
	t := &loopTimer{}
	t.inner = s.inner.AfterFunc(d, func() {
		s.queue.Enqueue(Event{Type: EventTimer, Fire: func() {
			if !t.stopped.Load() {
				f()
			}
		}})
	})
	return t
}

// loopTimer suppresses a callback that was already queued when Stop ran.
type loopTimer struct {
	inner   clock.Timer
	stopped atomic.Bool
}

func (t *loopTimer) Stop() bool {
	already := t.stopped.Swap(true)
	return t.inner.Stop() && !already
}
