package main

import (
	"github.com/spf13/cobra"

	"github.com/local/ocrcheck/internal/report"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file.pdf>",
	Short: "Analyze one PDF and show every measurement",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		runner, closeSinks, err := newRunner(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeSinks()

		res := runner.AnalyzeOne(ctx, args[0])
		return report.WriteResult(cmd.OutOrStdout(), cfg.Output.Format, res)
	},
}
