package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"cropguard/internal/analyses"
	"cropguard/internal/bootstrap"
	"cropguard/internal/shared/config"
	"cropguard/internal/shared/telemetry"
)

// imageAnalyzer is the part of the orchestrator the CLI needs.
type imageAnalyzer interface {
	Analyze(ctx context.Context, image []byte, imageRef string) (analyses.AnalysisReport, error)
}

type analyzerFactory func(cfg config.Config) (imageAnalyzer, error)

func buildAnalyzer(cfg config.Config) (imageAnalyzer, error) {
	app, err := bootstrap.BuildPipeline(cfg)
	if err != nil {
		return nil, err
	}
	return app.Orchestrator, nil
}

func main() {
	defer telemetry.Sync()
	if err := newRootCmd(os.Stdout, config.Load, buildAnalyzer).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer, load func() config.Config, build analyzerFactory) *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:           "cropguard",
		Short:         "Detect crop pests and diseases from leaf photos",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if logLevel != "" {
				telemetry.SetLevel(logLevel)
			}
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	// LOG_LEVEL may come from a .env file, which only Load reads.
	loadConfig := func() config.Config {
		cfg := load()
		if logLevel == "" {
			telemetry.SetLevel(cfg.LogLevel)
		}
		return cfg
	}

	root.AddCommand(
		newAnalyzeCmd(out, loadConfig, build),
		newServeCmd(loadConfig),
		newCheckConfigCmd(out, loadConfig),
	)
	return root
}
