package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"dermassist/client/internal/app"
	"dermassist/client/internal/config"
	"dermassist/client/internal/log"
)

// Version information (set by build flags)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "dermassist",
	Short: "AI-assisted skin lesion screening client",
	Long: `dermassist - AI-assisted skin lesion screening client

Runs the DermAssist web interface locally (dermassist serve) and exposes the
same account, analysis and history operations on the command line.

DermAssist is a screening aid, not a diagnosis. Always consult a dermatologist.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default: ./dermassist.yaml, ~/.dermassist/dermassist.yaml)")
	rootCmd.PersistentFlags().String("backend", "", "Backend base URL (overrides config)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose logging")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "dermassist %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

func loadConfig(cmd *cobra.Command) (*config.AppConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if backendURL, _ := cmd.Flags().GetString("backend"); backendURL != "" {
		cfg.Backend.BaseURL = backendURL
	}
	return cfg, nil
}

// withApp builds the services for a one-shot command. Unless verbose is set
// only warnings reach stderr.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := log.NewWithWriter(cmd.ErrOrStderr(), cfg.Environment)
	if verbose, _ := cmd.Flags().GetBool("verbose"); !verbose {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}
