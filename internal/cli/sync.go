package cli

import (
	"github.com/spf13/cobra"
)

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the local cache with the remote listing",
		Long: `Fetch the remote listing, store content whose hash changed and evict
hashes no page references any more.

Example:
  pageloader sync --db ./pages.db
  pageloader sync --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp(rootOpts, "")
			defer a.close()
			if err := a.ready(cmd.Context()); err != nil {
				return err
			}

			res, err := a.ctrl.Load(cmd.Context())
			if werr := writeResult(cmd.OutOrStdout(), rootOpts.Format, res); werr != nil {
				return werr
			}
			if err != nil {
				return WrapExitError(ExitFailure, "sync", err)
			}
			return nil
		},
	}
}
