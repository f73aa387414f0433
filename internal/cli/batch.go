package cli

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/bsdetector/internal/annotate"
	"github.com/ppiankov/bsdetector/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
	urlTimeout   time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Investigate multiple URLs from a file in parallel",
	Long: `Batch investigates every URL listed in a file (one per line, '#' starts
a comment) with a bounded number of concurrent workers. Every investigation
is stored; with --output-dir each record is also written as JSON.

Example:
  bsdetector batch urls.txt
  bsdetector batch urls.txt --concurrency 4 --output-dir ./reports
  bsdetector batch urls.txt --timeout 30m --url-timeout 5m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", min(runtime.NumCPU(), 4), "number of concurrent workers")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "", "write one JSON record per URL into this directory")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().DurationVar(&urlTimeout, "url-timeout", 5*time.Minute, "timeout for each investigation")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	svc, cfg, logger, err := buildService(ctx)
	if err != nil {
		return err
	}
	defer closeService(svc, logger)

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  bsdetector batch\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", concurrency)
	fmt.Fprintf(os.Stderr, "  Model:        %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	if outputDir != "" {
		fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	fmt.Fprintf(os.Stderr, "\n")

	processor := worker.NewBatchProcessor(svc, concurrency, urlTimeout, logger)
	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	successCount := 0
	failureCount := 0

	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.URL, result.Error)
			continue
		}
		successCount++

		if outputDir != "" {
			path := filepath.Join(outputDir, sanitizeFilename(result.URL)+".json")
			if err := writeJSONFile(path, result.Record); err != nil {
				fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", result.URL, err)
				continue
			}
		}

		counts := annotate.Count(result.Record.Replacements)
		fmt.Fprintf(os.Stderr, "✓ %s (%d annotations, %s)\n", result.URL, counts.Total(), result.Duration.Round(time.Second))
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d URLs\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "\n")

	if failureCount > 0 && successCount == 0 {
		return fmt.Errorf("all %d investigations failed", failureCount)
	}
	return nil
}

func writeJSONFile(path string, v interface{}) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return printJSON(f, v)
}

// sanitizeFilename turns a URL into a safe, bounded file name
func sanitizeFilename(raw string) string {
	s := raw
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		s = u.Host + u.Path
	}

	s = strings.Trim(s, "/")
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)

	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		s = "record"
	}
	return s
}
