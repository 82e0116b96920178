package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"dermassist/client/internal/app"
	"dermassist/client/internal/capture"
	"dermassist/client/internal/diagnosis"
	"dermassist/client/internal/service"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <image>",
	Short: "Screen a JPEG or PNG image of a skin lesion",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().Bool("json", false, "Print the raw prediction as JSON")
}

var errUnsupportedImage = errors.New("unsupported image: only JPEG and PNG files are accepted")

func runAnalyze(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		picker := capture.NewComponent(nil, capture.Options{}, a.Log)
		if !picker.Upload(filepath.Base(args[0]), "", data) {
			return errUnsupportedImage
		}

		// The token only files the scan under the user's history.
		a.Session.Initialize(ctx)
		token := a.Session.Snapshot().Token

		analysis := service.NewAnalysisService(a.Backend, 0, a.Log)
		prediction, err := analysis.Analyze(ctx, picker.Image(), token)
		if err != nil {
			return errors.New(service.AnalysisMessage(err))
		}

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(prediction)
		}
		printResult(cmd.OutOrStdout(), diagnosis.Present(prediction))
		return nil
	})
}

func printResult(w io.Writer, r diagnosis.Result) {
	fmt.Fprintf(w, "%s (%.1f%% confidence)\n", r.Name, r.ConfidencePercent())
	fmt.Fprintf(w, "Risk: %s\n", r.Tier.Label())

	if len(r.Differential) > 0 {
		fmt.Fprintln(w, "\nOther possibilities:")
		for _, s := range r.Differential {
			fmt.Fprintf(w, "  %-22s %5.1f%%\n", s.Code.DisplayName(), s.Percent())
		}
	}

	fmt.Fprintln(w, "\nWhy:")
	for _, f := range r.Features {
		fmt.Fprintf(w, "  - %s\n", f.Text)
	}

	fmt.Fprintf(w, "\n%s\n%s\n", r.Recommendation.Title, r.Recommendation.Urgency)
	for i, action := range r.Recommendation.Actions {
		fmt.Fprintf(w, "  %d. %s\n", i+1, action)
	}
}
