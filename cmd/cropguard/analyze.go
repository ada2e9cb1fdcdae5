package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"cropguard/internal/analyses"
	"cropguard/internal/imagecheck"
	"cropguard/internal/shared/config"
)

const defaultConcurrency = 4

type fileResult struct {
	Path   string                   `json:"path"`
	Report *analyses.AnalysisReport `json:"report,omitempty"`
	Error  string                   `json:"error,omitempty"`
}

func newAnalyzeCmd(out io.Writer, load func() config.Config, build analyzerFactory) *cobra.Command {
	var asJSON bool
	var concurrency int

	cmd := &cobra.Command{
		Use:   "analyze IMAGE...",
		Short: "Analyze one or more leaf photos without storing them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := load()
			if missing := cfg.Credentials.Missing(); len(missing) > 0 {
				return fmt.Errorf("missing credentials: %s", strings.Join(missing, ", "))
			}
			analyzer, err := build(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()

			results, err := analyzeFiles(ctx, analyzer, imagecheck.New(cfg.MaxImageBytes), args, concurrency)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(results); err != nil {
					return err
				}
			} else {
				printResults(out, results)
			}

			failed := 0
			for _, r := range results {
				if r.Error != "" {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d analyses failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print reports as JSON")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", defaultConcurrency, "analyses to run at once")
	return cmd
}

// analyzeFiles runs one analysis per path, at most concurrency at a time, and
// returns results in input order. A failing file does not stop the others;
// only cancellation of ctx aborts the batch.
func analyzeFiles(ctx context.Context, a imageAnalyzer, v *imagecheck.Validator, paths []string, concurrency int) ([]fileResult, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	results := make([]fileResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, p := range paths {
		g.Go(func() error {
			results[i] = analyzeFile(gctx, a, v, p)
			if err := gctx.Err(); err != nil {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func analyzeFile(ctx context.Context, a imageAnalyzer, v *imagecheck.Validator, path string) fileResult {
	res := fileResult{Path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	if _, err := v.Validate(data); err != nil {
		res.Error = err.Error()
		return res
	}
	report, err := a.Analyze(ctx, data, filepath.Base(path))
	if err != nil {
		res.Error = describeError(err)
		return res
	}
	res.Report = &report
	return res
}

func describeError(err error) string {
	var ae *analyses.AnalysisError
	if errors.As(err, &ae) && ae.Cause == analyses.CauseClassificationFailed {
		return "classification failed: " + ae.Err.Error()
	}
	return err.Error()
}

func printResults(out io.Writer, results []fileResult) {
	for _, r := range results {
		if r.Error != "" {
			fmt.Fprintf(out, "%s: error: %s\n", r.Path, r.Error)
			continue
		}
		rep := r.Report
		fmt.Fprintf(out, "%s: %s (%s) severity=%s confidence=%.1f%%",
			r.Path, rep.PestName, rep.CropType, rep.Severity, rep.ConfidenceScore*100)
		if rep.ImmediateActionNeeded {
			fmt.Fprint(out, " IMMEDIATE ACTION")
		}
		fmt.Fprintln(out)
		fmt.Fprintf(out, "  treatment: %s\n", rep.Treatment)
		fmt.Fprintf(out, "  recovery: %s\n", rep.RecoveryTimeline)
		for _, tip := range rep.PreventionTips {
			fmt.Fprintf(out, "  - %s\n", tip)
		}
	}
}
