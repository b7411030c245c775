package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rshade/finwatch/internal/config"
	"github.com/rshade/finwatch/internal/record"
)

// newWatchlistCmd creates the watchlist command group.
func newWatchlistCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "watchlist", Short: "Manage watchlist views"}
	cmd.AddCommand(newWatchlistListCmd(), newWatchlistAddCmd(), newWatchlistRemoveCmd())
	return cmd
}

func newWatchlistListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [view]",
		Short: "List views, or the keys of one view",
		Example: `  # All views with their keys
  finwatch watchlist list

  # One key per line for scripting
  finwatch watchlist list tech`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wl, err := openWatchlist(config.GetGlobalConfig())
			if err != nil {
				return err
			}

			if len(args) == 1 {
				keys, verr := wl.View(args[0])
				if verr != nil {
					return verr
				}
				for _, k := range keys {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), k)
				}
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "VIEW\tCOUNT\tKEYS")
			for _, name := range wl.ViewNames() {
				keys, verr := wl.View(name)
				if verr != nil {
					return verr
				}
				_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\n", name, len(keys), strings.Join(record.Strings(keys), " "))
			}
			return tw.Flush()
		},
	}
}

func newWatchlistAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add VIEW KEY...",
		Short: "Add keys to a view, creating the view if needed",
		Example: `  finwatch watchlist add tech AAPL MSFT NVDA
  finwatch watchlist add favorites BRK.B`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := record.ParseKeys(args[1:])
			if err != nil {
				return err
			}
			wl, err := openWatchlist(config.GetGlobalConfig())
			if err != nil {
				return err
			}

			wl.Add(args[0], keys...)
			if err := wl.Save(); err != nil {
				return err
			}
			logger.Debug().Ctx(cmd.Context()).Str("view", args[0]).Int("keys", len(keys)).Msg("watchlist updated")
			cmd.Printf("Added %d key(s) to %s\n", len(keys), args[0])
			return nil
		},
	}
}

func newWatchlistRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove VIEW KEY...",
		Aliases: []string{"rm"},
		Short:   "Remove keys from a view",
		Example: `  finwatch watchlist remove tech NVDA`,
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := record.ParseKeys(args[1:])
			if err != nil {
				return err
			}
			wl, err := openWatchlist(config.GetGlobalConfig())
			if err != nil {
				return err
			}

			n, err := wl.Remove(args[0], keys...)
			if err != nil {
				return err
			}
			if err := wl.Save(); err != nil {
				return err
			}
			cmd.Printf("Removed %d key(s) from %s\n", n, args[0])
			return nil
		},
	}
}
