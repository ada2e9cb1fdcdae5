package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"cropguard/internal/shared/config"
)

func newCheckConfigCmd(out io.Writer, load func() config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Report missing credentials and invalid settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := load()
			t := cfg.Tunables
			fmt.Fprintf(out, "classifier: %s (confidence=%d overlap=%d)\n", t.ClassifierEndpoint, t.ClassifierConfidence, t.ClassifierOverlap)
			fmt.Fprintf(out, "llm:        %s model=%s max_tokens=%d temperature=%.2f\n", t.LLMBaseURL, t.LLMModel, t.LLMMaxTokens, t.LLMTemperature)
			fmt.Fprintf(out, "store:      %s\n", cfg.ObjectStoreType)
			if cfg.DatabaseURL == "" {
				fmt.Fprintln(out, "history:    memory")
			} else {
				fmt.Fprintln(out, "history:    postgres")
			}

			var problems []string
			if missing := cfg.Credentials.Missing(); len(missing) > 0 {
				problems = append(problems, "missing credentials: "+strings.Join(missing, ", "))
			}
			if err := cfg.Validate(); err != nil {
				problems = append(problems, err.Error())
			}
			if len(problems) > 0 {
				for _, p := range problems {
					fmt.Fprintf(out, "problem:    %s\n", p)
				}
				return fmt.Errorf("configuration incomplete")
			}
			fmt.Fprintln(out, "ok")
			return nil
		},
	}
}
