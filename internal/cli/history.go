package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"dermassist/client/internal/app"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List your previous scans",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			a.Session.Initialize(ctx)
			snap := a.Session.Snapshot()
			if !snap.IsLoggedIn {
				return errors.New("not signed in: run 'dermassist login' first")
			}

			h := a.History.Load(ctx, snap.Token)
			if h.Error != "" {
				return errors.New(h.Error)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total scans: %d   High risk: %d   Safe: %d\n\n", h.Total, h.HighRisk, h.Safe)
			if h.Total == 0 {
				fmt.Fprintln(out, "No scans yet.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tDIAGNOSIS\tRISK\tCONFIDENCE")
			for _, s := range h.Scans {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d%%\n", s.Date, s.Name, s.Tier.Label(), s.Confidence)
			}
			return tw.Flush()
		})
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
}
