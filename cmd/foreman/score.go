package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/c360studio/foreman/quality"
	"github.com/c360studio/foreman/task"
)

func scoreCmd(configPath, logLevel *string) *cobra.Command {
	var docType string
	var threshold float64

	cmd := &cobra.Command{
		Use:   "score <file>",
		Short: "Run the quality gate on a content file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup(*configPath, *logLevel)
			if err != nil {
				return err
			}

			t := task.Type(docType)
			if !t.Valid() {
				return fmt.Errorf("unknown document type: %s", docType)
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read content file: %w", err)
			}

			gate := cfg.Quality.Threshold
			if cmd.Flags().Changed("threshold") {
				gate = threshold
			}

			scorer := quality.NewHeuristicScorer()
			result := scorer.Evaluate(string(data), t, gate)
			printResult(result, gate)

			if !result.Valid || result.Score < gate {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&docType, "type", "t", "spec", "Document type (spec, design, implementation, test, review)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Override the configured quality threshold")
	return cmd
}

func printResult(result *quality.Result, threshold float64) {
	verdict := "PASS"
	if !result.Valid || result.Score < threshold {
		verdict = "FAIL"
	}
	fmt.Printf("%s  score=%.2f threshold=%.2f\n", verdict, result.Score, threshold)

	for _, msg := range result.Errors {
		fmt.Printf("  error: %s\n", msg)
	}
	for _, msg := range result.Warnings {
		fmt.Printf("  warning: %s\n", msg)
	}
	for _, msg := range result.Suggestions {
		fmt.Printf("  suggestion: %s\n", msg)
	}
}
