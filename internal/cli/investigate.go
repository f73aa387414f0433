package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/bsdetector/internal/annotate"
	"github.com/ppiankov/bsdetector/internal/model"
	"github.com/ppiankov/bsdetector/internal/report"
)

var (
	investigateJSON    bool
	investigateTimeout time.Duration
	renderWidth        int
)

// investigateCmd represents the investigate command
var investigateCmd = &cobra.Command{
	Use:   "investigate <url>",
	Short: "Investigate the claims of a single URL",
	Long: `Investigate scrapes the page, lets the agent research its claims and
prints the resulting report. The investigation always runs fresh and is
stored, annotations included, for later lookups.

Example:
  bsdetector investigate https://example.com/launch
  bsdetector investigate https://example.com/launch --json > record.json`,
	Args: cobra.ExactArgs(1),
	RunE: runInvestigate,
}

func init() {
	rootCmd.AddCommand(investigateCmd)

	investigateCmd.Flags().BoolVar(&investigateJSON, "json", false, "print the full investigation record as JSON")
	investigateCmd.Flags().DurationVar(&investigateTimeout, "timeout", 5*time.Minute, "overall investigation timeout")
	investigateCmd.Flags().IntVar(&renderWidth, "width", 100, "terminal word wrap width")
}

func runInvestigate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), investigateTimeout)
	defer cancel()

	svc, _, logger, err := buildService(ctx)
	if err != nil {
		return err
	}
	defer closeService(svc, logger)

	if verbose {
		fmt.Fprintf(os.Stderr, "Investigating: %s\n", args[0])
	}

	record, err := svc.Investigate(ctx, args[0])
	if err != nil {
		return fmt.Errorf("investigation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if investigateJSON {
		return printJSON(out, record)
	}
	return printRecord(out, record, renderWidth)
}

func printRecord(w io.Writer, record *model.InvestigationRecord, width int) error {
	rep := model.NewStructuredReport(record.RawChatOutput)
	if record.Report != nil {
		rep = *record.Report
	}

	if _, err := fmt.Fprint(w, report.RenderTerminal(report.RenderMarkdown(rep), width)); err != nil {
		return err
	}

	counts := annotate.Count(record.Replacements)
	_, err := fmt.Fprintf(w, "\nAnnotations: %d (false %d, suspicious %d, verified %d, fluff %d)\n",
		counts.Total(), counts.False, counts.Suspicious, counts.Verified, counts.Fluff)
	return err
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}
