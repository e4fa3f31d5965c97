package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/nbhd/internal/community"
	"github.com/roach88/nbhd/internal/engine"
)

// DefaultResolveWait covers a full retry budget under the default settings:
// four safety timeouts plus 1s+2s+4s of backoff.
const DefaultResolveWait = time.Minute

// errEngineStopped is returned by awaitSettled when the subscription closes.
var errEngineStopped = errors.New("engine stopped before the cycle settled")

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	Database string
	Actor    string
	Select   string
	Wait     time.Duration
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve an actor's community context once",
		Long: `Run the resolution engine for one actor and print the settled state.

The command waits until the first cycle succeeds, or until automatic
retries are exhausted. --select then switches the active community to
another candidate without fetching again.

Exit codes: 0 resolved, 1 resolution failed or --select is not a candidate,
2 invalid flags or configuration.

Example:
  nbhd resolve --db ./nbhd.db --actor u1
  nbhd resolve --db ./nbhd.db --actor u1 --select c2 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default $NBHD_DB or nbhd.db)")
	cmd.Flags().StringVar(&opts.Actor, "actor", "", "signed-in actor ID (required)")
	cmd.Flags().StringVar(&opts.Select, "select", "", "candidate community ID to make active")
	cmd.Flags().DurationVar(&opts.Wait, "wait", DefaultResolveWait, "maximum time to wait for the cycle to settle")
	_ = cmd.MarkFlagRequired("actor")

	return cmd
}

func runResolve(opts *ResolveOptions, cmd *cobra.Command) error {
	f := newFormatter(cmd, opts.RootOptions)

	actor := community.NormalizeActor(community.ActorID(opts.Actor))
	if actor.SignedOut() {
		return f.Fail(CodeConfig, NewExitError(ExitCommandError, "--actor must not be empty"))
	}
	if opts.Wait <= 0 {
		return f.Fail(CodeConfig, NewExitError(ExitCommandError, fmt.Sprintf("--wait must be positive, got %s", opts.Wait)))
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.Wait)
	defer cancel()

	rt, err := newRuntime(ctx, cmd, opts.RootOptions, opts.Database)
	if err != nil {
		return f.Fail(CodeConfig, err)
	}
	defer func() {
		if err := rt.shutdown(context.WithoutCancel(ctx)); err != nil {
			rt.logger.Error("shutdown failed", "error", err)
		}
	}()

	acc := rt.engine.Accessor()
	updates, unsubscribe := acc.Subscribe(16)
	defer unsubscribe()

	rt.start(ctx)
	rt.engine.SetActor(actor)

	state, notice, err := awaitSettled(ctx, acc, updates)
	if err != nil {
		return f.FailWith(CodeResolve,
			WrapExitError(ExitFailure, "resolution did not settle", err),
			newResolutionView(actor, acc.Snapshot(), nil))
	}

	view := newResolutionView(actor, state, notice)
	if notice != nil {
		if f.Format != "json" {
			if werr := f.Success(view); werr != nil {
				return werr
			}
		}
		return f.FailWith(CodeResolve,
			WrapExitError(ExitFailure, notice.Message, notice.Err),
			view)
	}

	if opts.Select != "" {
		if !acc.SetActiveCommunity(opts.Select) {
			return f.FailWith(CodeSelect,
				NewExitError(ExitFailure, fmt.Sprintf("community %q is not a candidate for %s", opts.Select, actor)),
				view)
		}
		view = newResolutionView(actor, acc.Snapshot(), nil)
	}

	return f.Success(view)
}

// awaitSettled blocks until the actor's first cycle ends: a success, or a
// failure whose retry budget is spent. It returns the settled state and the
// terminal notice, if one was raised.
func awaitSettled(ctx context.Context, acc *engine.Accessor, updates <-chan engine.State) (engine.State, *engine.Notice, error) {
	started := false
	for {
		select {
		case <-ctx.Done():
			return acc.Snapshot(), nil, ctx.Err()

		case s, ok := <-updates:
			if !ok {
				return acc.Snapshot(), nil, errEngineStopped
			}
			if s.Loading {
				started = true
				continue
			}
			if started && s.LastError == nil {
				return s, nil, nil
			}

		case n := <-acc.Notices():
			return acc.Snapshot(), &n, nil
		}
	}
}
