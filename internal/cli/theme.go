package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"dermassist/client/internal/app"
)

var themeCmd = &cobra.Command{
	Use:       "theme [light|dark|toggle]",
	Short:     "Show or change the interface theme",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"light", "dark", "toggle"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if len(args) == 1 {
				switch args[0] {
				case "light":
					a.Theme.Set(ctx, false)
				case "dark":
					a.Theme.Set(ctx, true)
				case "toggle":
					a.Theme.Toggle(ctx)
				}
			}

			name := "light"
			if a.Theme.IsDark() {
				name = "dark"
			}
			fmt.Fprintln(cmd.OutOrStdout(), name)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(themeCmd)
}
