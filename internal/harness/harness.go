package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/nbhd/internal/clock"
	"github.com/roach88/nbhd/internal/community"
	"github.com/roach88/nbhd/internal/engine"
	"github.com/roach88/nbhd/internal/gateway"
	"github.com/roach88/nbhd/internal/store"
)

// Harness holds the per-run engine, store, and manual clock.
type Harness struct {
	store   *store.Store
	gw      *faultGateway
	engine  *engine.Engine
	sched   *clock.Manual
	logger  *slog.Logger
	notices int
}

// Option configures a harness run.
type Option func(*Harness)

// WithLogger routes engine logs to l. Default: discarded.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database and seed the fixture
// 2. Build an engine with inline dispatch and a manual clock
// 3. Execute each step, drain the queue, record a trace event
// 4. Check the step's expectations
func Run(ctx context.Context, sc *Scenario, opts ...Option) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if _, err := st.Seed(ctx, &sc.Fixture); err != nil {
		return nil, fmt.Errorf("seed fixture: %w", err)
	}

	h := &Harness{
		store:  st,
		gw:     newFaultGateway(st),
		sched:  clock.NewManual(clock.Epoch),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}

	engineOpts := []engine.EngineOption{
		engine.WithScheduler(h.sched),
		engine.WithInlineDispatch(),
		engine.WithLogger(h.logger),
	}
	if sc.Engine.MaxRetries != nil {
		engineOpts = append(engineOpts, engine.WithMaxRetries(*sc.Engine.MaxRetries))
	}
	if sc.Engine.SafetyTimeout > 0 {
		engineOpts = append(engineOpts, engine.WithSafetyTimeout(sc.Engine.SafetyTimeout))
	}
	h.engine = engine.New(h.gw, engineOpts...)

	result := NewResult()
	for i, step := range sc.Steps {
		ev := h.execute(ctx, i+1, step)
		result.Trace = append(result.Trace, ev)
		if step.Expect != nil {
			for _, msg := range checkExpect(ev, *step.Expect) {
				result.AddError(fmt.Sprintf("step %d (%s): %s", ev.Step, ev.Action, msg))
			}
		}
	}
	h.engine.Stop()

	return result, nil
}

func (h *Harness) execute(ctx context.Context, n int, step Step) TraceEvent {
	ev := TraceEvent{Step: n}
	acc := h.engine.Accessor()

	switch {
	case step.Actor != nil:
		actor := community.ActorID(*step.Actor)
		ev.Action = "actor " + string(actor)
		if actor.SignedOut() {
			ev.Action = "actor (signed out)"
		}
		h.engine.SetActor(actor)
	case step.Refresh:
		ev.Action = "refresh"
		acc.Refresh()
	case step.Select != "":
		ev.Action = "select " + step.Select
		ev.Rejected = !acc.SetActiveCommunity(step.Select)
	case step.Advance > 0:
		ev.Action = "advance " + step.Advance.String()
		h.sched.Advance(step.Advance)
	case step.Fail != "":
		kind := step.Error
		if kind == "" {
			kind = ErrorQuery
		}
		ev.Action = fmt.Sprintf("fail %s (%s)", step.Fail, kind)
		var err error = errInjected
		if kind == ErrorUnavailable {
			err = gateway.ErrUnavailable
		}
		h.gw.fail(step.Fail, err, step.Times)
	case step.Heal:
		ev.Action = "heal"
		h.gw.heal()
	}

	h.engine.Drain(ctx)
	h.collectNotices()

	ev.Calls = h.gw.takeCalls()
	ev.State = viewState(acc.Snapshot())
	ev.Timers = h.timers()
	ev.Notices = h.notices
	return ev
}

func (h *Harness) collectNotices() {
	for {
		select {
		case <-h.engine.Accessor().Notices():
			h.notices++
		default:
			return
		}
	}
}

func (h *Harness) timers() []string {
	out := []string{}
	for _, d := range h.sched.Deadlines() {
		out = append(out, d.String())
	}
	return out
}

func viewState(s engine.State) StateView {
	v := StateView{
		Attempt:    s.Attempt,
		Active:     s.ActiveID(),
		Candidates: []string{},
		Privileged: s.Privileged,
		Loading:    s.Loading,
		Error:      errorCode(s.LastError),
	}
	for _, c := range s.Candidates {
		v.Candidates = append(v.Candidates, c.ID)
	}
	return v
}

// errorCode reduces an error to its resolution code for stable traces.
func errorCode(err error) string {
	if err == nil {
		return ""
	}
	var re *engine.ResolutionError
	if errors.As(err, &re) {
		return string(re.Code)
	}
	return err.Error()
}

func checkExpect(ev TraceEvent, want Expect) []string {
	var errs []string
	got := ev.State
	if want.Active != nil && got.Active != *want.Active {
		errs = append(errs, fmt.Sprintf("active = %q, want %q", got.Active, *want.Active))
	}
	if want.Candidates != nil && !slices.Equal(got.Candidates, want.Candidates) {
		errs = append(errs, fmt.Sprintf("candidates = %v, want %v", got.Candidates, want.Candidates))
	}
	if want.Loading != nil && got.Loading != *want.Loading {
		errs = append(errs, fmt.Sprintf("loading = %t, want %t", got.Loading, *want.Loading))
	}
	if want.Privileged != nil && got.Privileged != *want.Privileged {
		errs = append(errs, fmt.Sprintf("privileged = %t, want %t", got.Privileged, *want.Privileged))
	}
	if want.Error != nil && got.Error != *want.Error {
		errs = append(errs, fmt.Sprintf("error = %q, want %q", got.Error, *want.Error))
	}
	if want.Notices != nil && ev.Notices != *want.Notices {
		errs = append(errs, fmt.Sprintf("notices = %d, want %d", ev.Notices, *want.Notices))
	}
	if want.Calls != nil && len(ev.Calls) != *want.Calls {
		errs = append(errs, fmt.Sprintf("calls = %d, want %d", len(ev.Calls), *want.Calls))
	}
	return errs
}
