package cli

import (
	"github.com/spf13/cobra"
)

// CommunitiesOptions holds flags for the communities command.
type CommunitiesOptions struct {
	*RootOptions
	Database string
}

// NewCommunitiesCommand creates the communities command.
func NewCommunitiesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CommunitiesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "communities",
		Short: "List every community in the catalog",
		Long: `List every community in catalog order.

Example:
  nbhd communities --db ./nbhd.db
  nbhd communities --db ./nbhd.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommunities(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default $NBHD_DB or nbhd.db)")

	return cmd
}

func runCommunities(opts *CommunitiesOptions, cmd *cobra.Command) error {
	f := newFormatter(cmd, opts.RootOptions)

	cfg, err := loadConfig(opts.Database)
	if err != nil {
		return f.Fail(CodeConfig, err)
	}
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	st, err := openStore(cfg, logger)
	if err != nil {
		return f.Fail(CodeStore, err)
	}
	defer st.Close()

	list, err := st.FetchAllCommunities(cmd.Context())
	if err != nil {
		return f.Fail(CodeStore, WrapExitError(ExitCommandError, "failed to list communities", err))
	}
	f.VerboseLog("%d communities in %s", len(list), cfg.DBPath)

	return f.Success(communityList(list))
}
