package cli

import (
	"github.com/spf13/cobra"
)

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	var locale string

	cmd := &cobra.Command{
		Use:   "show [page]",
		Short: "Print a page, or the menu when no page is given",
		Long: `Display a page the way a reader would see it: cached content first,
corrected by the live content and the reconciliation that follows.

Example:
  pageloader show 01en-Intro
  pageloader show 01en-Intro --locale fr
  pageloader show --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start := ""
			if len(args) == 1 {
				start = args[0]
			}
			a := newApp(rootOpts, start)
			defer a.close()
			if err := a.ready(cmd.Context()); err != nil {
				return err
			}

			// A failed reconciliation still leaves the cached page on screen.
			if _, err := a.ctrl.Load(cmd.Context()); err != nil {
				rootOpts.Log.Warn("reconciliation incomplete", "error", err)
			}
			if locale != "" {
				if err := a.ctrl.SwitchLocale(cmd.Context(), locale); err != nil {
					return WrapExitError(ExitFailure, "switch locale", err)
				}
			}
			a.ctrl.Wait()

			st := a.screen.State()
			return writeShown(cmd.OutOrStdout(), rootOpts.Format, shownPage{
				Page:   a.history.Current(),
				Locale: st.Locale,
				HTML:   st.HTML,
				Menu:   st.Menu,
			})
		},
	}

	cmd.Flags().StringVar(&locale, "locale", "", "switch to the page's sibling in this locale")

	return cmd
}
