package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/nbhd/internal/store"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	Database string
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed <fixture>",
		Short: "Load a YAML or CUE fixture into the database",
		Long: `Load communities, memberships, and privileged actors from a fixture.

The file extension selects the format: .yaml/.yml is parsed strictly,
.cue is validated against the built-in fixture schema. Seeding is
idempotent: existing communities are left untouched and memberships are
upserted.

Example:
  nbhd seed --db ./nbhd.db ./fixtures/elm.yaml
  NBHD_DB=/tmp/nbhd.db nbhd seed ./fixtures/elm.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default $NBHD_DB or nbhd.db)")

	return cmd
}

func runSeed(opts *SeedOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(cmd, opts.RootOptions)

	cfg, err := loadConfig(opts.Database)
	if err != nil {
		return f.Fail(CodeConfig, err)
	}
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	fixture, err := store.LoadFixture(path)
	if err != nil {
		return f.Fail(CodeFixture, WrapExitError(ExitCommandError, "failed to load fixture", err))
	}

	st, err := openStore(cfg, logger)
	if err != nil {
		return f.Fail(CodeStore, err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	res, err := st.Seed(cmd.Context(), fixture)
	if err != nil {
		return f.Fail(CodeStore, WrapExitError(ExitCommandError, "failed to seed database", err))
	}
	logger.Info("fixture seeded",
		"path", path,
		"communities", res.Communities,
		"memberships", res.Memberships,
		"privileged", res.Privileged,
	)

	return f.Success(seedView{Fixture: path, SeedResult: res})
}
