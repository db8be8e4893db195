package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print a raw value from the local store",
		Long: `Print the value stored under key: "pages" for the manifest, or a
content hash for a page fragment.

Example:
  pageloader get pages
  pageloader get 3b18e512dba79e4c8300dd08aeb37f8e728b8dad`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := openStore(rootOpts.Config)
			defer store.Close()

			v, ok, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "read store", err)
			}
			if !ok {
				return NewExitError(ExitFailure, fmt.Sprintf("key %q not found", args[0]))
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(v))
			return err
		},
	}
}

// KeyLister is implemented by backends that can enumerate their keys.
type KeyLister interface {
	Keys(ctx context.Context) ([]string, error)
}

// NewKeysCommand creates the keys command.
func NewKeysCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List the keys in the local store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lazy := openStore(rootOpts.Config)
			defer lazy.Close()

			store, err := lazy.Ready(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "open store", err)
			}
			lister, ok := store.(KeyLister)
			if !ok {
				return NewExitError(ExitCommandError, fmt.Sprintf("the %s backend cannot list keys", rootOpts.Config.StoreBackend))
			}
			keys, err := lister.Keys(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "list keys", err)
			}
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), keys)
			}
			for _, k := range keys {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), k); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
