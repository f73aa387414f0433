package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/bsdetector/internal/report"
)

var (
	annotateTimeout time.Duration
	reportTimeout   time.Duration
	reportJSON      bool
)

// annotateCmd represents the annotate command
var annotateCmd = &cobra.Command{
	Use:   "annotate <url>",
	Short: "Print inline annotations for a URL as JSON",
	Long: `Annotate returns the annotations for a URL, reusing stored results when
they exist and running a full investigation otherwise.

Example:
  bsdetector annotate https://example.com/launch`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), annotateTimeout)
		defer cancel()

		svc, _, logger, err := buildService(ctx)
		if err != nil {
			return err
		}
		defer closeService(svc, logger)

		res, err := svc.Annotate(ctx, args[0])
		if err != nil {
			return fmt.Errorf("annotate failed: %w", err)
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report <url>",
	Short: "Show the latest stored report for a URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
		defer cancel()

		svc, _, logger, err := buildService(ctx)
		if err != nil {
			return err
		}
		defer closeService(svc, logger)

		res, err := svc.Report(ctx, args[0])
		if err != nil {
			return fmt.Errorf("report lookup failed: %w", err)
		}

		out := cmd.OutOrStdout()
		if reportJSON {
			return printJSON(out, res)
		}
		if !res.Found || res.Report == nil {
			_, err := fmt.Fprintf(out, "No report stored for %s\n", args[0])
			return err
		}

		if res.CreatedAt != nil {
			if _, err := fmt.Fprintf(out, "Investigated %s\n", res.CreatedAt.Local().Format(time.RFC1123)); err != nil {
				return err
			}
		}
		_, err = fmt.Fprint(out, report.RenderTerminal(report.RenderMarkdown(*res.Report), renderWidth))
		return err
	},
}

func init() {
	rootCmd.AddCommand(annotateCmd)
	rootCmd.AddCommand(reportCmd)

	annotateCmd.Flags().DurationVar(&annotateTimeout, "timeout", 5*time.Minute, "overall timeout")
	reportCmd.Flags().DurationVar(&reportTimeout, "timeout", 30*time.Second, "overall timeout")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "print the lookup result as JSON")
	reportCmd.Flags().IntVar(&renderWidth, "width", 100, "terminal word wrap width")
}
