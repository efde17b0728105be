package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/c360studio/foreman/crossdoc"
)

func alignCmd(configPath, logLevel *string) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "align <glob>...",
		Short: "Check cross-document alignment of planning documents",
		Long: `Align scores a set of planning documents (product, structure, tech)
against the shared alignment vocabularies and reports missing dependencies.

Globs support ** recursion, e.g. 'docs/**/*.md'.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, err := setup(*configPath, *logLevel)
			if err != nil {
				return err
			}

			paths, err := expandGlobs(args)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return fmt.Errorf("no documents matched")
			}

			if err := runAlignment(paths); err != nil {
				return err
			}

			if !watch {
				return nil
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			watcher, err := crossdoc.NewWatcher(0, logger)
			if err != nil {
				return fmt.Errorf("create watcher: %w", err)
			}
			defer watcher.Stop()

			if err := watcher.Add(paths); err != nil {
				return fmt.Errorf("watch documents: %w", err)
			}
			watcher.Start(ctx)

			for {
				select {
				case <-ctx.Done():
					return nil
				case ev, ok := <-watcher.Events():
					if !ok {
						return nil
					}
					fmt.Printf("\n%s changed, revalidating\n", ev.Path)
					if err := runAlignment(paths); err != nil {
						fmt.Fprintf(os.Stderr, "Error: %v\n", err)
					}
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Revalidate when documents change")
	return cmd
}

// expandGlobs resolves doublestar patterns to a sorted, deduplicated file
// list. Plain paths pass through unchanged.
func expandGlobs(patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		if matches == nil {
			// Not a pattern, treat as a literal path.
			if _, err := os.Stat(pattern); err == nil {
				matches = []string{pattern}
			}
		}
		for _, m := range matches {
			seen[m] = struct{}{}
		}
	}

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func runAlignment(paths []string) error {
	docs, err := crossdoc.LoadDocuments(paths)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("no recognized planning documents in %d files", len(paths))
	}

	result := crossdoc.NewValidator().Alignment(docs)

	fmt.Printf("Overall alignment: %.2f\n", result.OverallAlignment)
	for _, docType := range []crossdoc.DocumentType{
		crossdoc.DocumentTypeProduct,
		crossdoc.DocumentTypeStructure,
		crossdoc.DocumentTypeTech,
	} {
		score, ok := result.Documents[docType]
		if !ok {
			continue
		}
		fmt.Printf("  %-10s %.2f (product=%.2f structure=%.2f technology=%.2f)\n",
			docType, score.Average,
			score.Axes[crossdoc.AxisProduct],
			score.Axes[crossdoc.AxisStructure],
			score.Axes[crossdoc.AxisTechnology])
	}

	for _, issue := range result.Issues {
		fmt.Printf("  issue: %s\n", issue)
	}
	for _, rec := range result.Recommendations {
		fmt.Printf("  recommendation: %s\n", rec)
	}
	return nil
}
