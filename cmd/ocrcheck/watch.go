package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/local/ocrcheck/internal/analyzer"
	"github.com/local/ocrcheck/internal/report"
)

var watchSettle time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Analyze PDFs as they arrive in a directory",
	Long: `Watch <dir> and analyze each PDF once it has stopped changing.

Every result is printed as one line and published to the configured sinks.
Stop with Ctrl+C.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		runner, closeSinks, err := newRunner(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeSinks()
		stopMetrics := startMetrics(ctx, cfg)
		defer stopMetrics()

		settle := cfg.Worker.WatchSettle
		if cmd.Flags().Changed("settle") {
			settle = watchSettle
		}
		out := cmd.OutOrStdout()
		return runner.Watch(ctx, args[0], settle, func(r analyzer.Result) {
			line := fmt.Sprintf("%-40s %s", r.Filename, report.Status(r.OCRRequired))
			if r.Failed() {
				line += "  [ERROR] " + r.Error
			}
			fmt.Fprintln(out, line)
		})
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchSettle, "settle", 2*time.Second, "quiet period before a new file is analyzed")
}
