package main

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/local/ocrcheck/internal/analyzer"
	"github.com/local/ocrcheck/internal/batch"
	"github.com/local/ocrcheck/internal/report"
	"github.com/local/ocrcheck/internal/storage"
)

var (
	scanCSV    string
	scanNoCSV  bool
	scanUpload string
)

var scanCmd = &cobra.Command{
	Use:   "scan <dir>",
	Short: "Analyze every PDF in a directory",
	Long: `Analyze the PDF files directly inside <dir> (not recursive) and print a summary.

Documents that cannot be opened are reported as requiring OCR.
Results are written to a CSV report and, when configured, stored in Redis,
queued for OCR and uploaded to S3.

Examples:
  ocrcheck scan ./inbox
  ocrcheck scan ./inbox -o json --csv out/report.csv
  ocrcheck scan ./inbox --upload s3://reports/ocr`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		dir := args[0]

		runner, closeSinks, err := newRunner(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeSinks()
		stopMetrics := startMetrics(ctx, cfg)
		defer stopMetrics()

		results, err := runner.Run(ctx, dir)
		if errors.Is(err, batch.ErrInvalidDir) {
			return fmt.Errorf("directory %s not found", dir)
		}
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No PDF files found in %s\n", dir)
			return nil
		}

		if err := report.Write(cmd.OutOrStdout(), cfg.Output.Format, report.Summarize(results)); err != nil {
			return err
		}
		saveReports(cmd, runID, results)
		return nil
	},
}

// saveReports writes the CSV and uploads it. Failures are logged; the scan
// itself already succeeded.
func saveReports(cmd *cobra.Command, runID string, results []analyzer.Result) {
	csvPath := cfg.Output.CSVPath
	if cmd.Flags().Changed("csv") {
		csvPath = scanCSV
	}
	if !scanNoCSV && csvPath != "" {
		if err := report.SaveCSV(csvPath, results); err != nil {
			log.Error().Err(err).Str("path", csvPath).Msg("save csv report failed")
		} else {
			fmt.Fprintf(cmd.ErrOrStderr(), "Results saved to %s\n", csvPath)
		}
	}

	uri := cfg.S3.ReportURI
	if cmd.Flags().Changed("upload") {
		uri = scanUpload
	}
	if uri == "" {
		return
	}
	ctx := cmd.Context()
	data, err := report.EncodeCSV(results)
	if err != nil {
		log.Error().Err(err).Msg("encode csv report failed")
		return
	}
	up, err := storage.NewReportUploader(ctx, uri, storage.Options{
		Region:          cfg.S3.Region,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
		Attempts:        uint(max(cfg.S3.UploadAttempts, 1)),
	})
	if err != nil {
		log.Error().Err(err).Str("uri", uri).Msg("report upload disabled")
		return
	}
	dest, err := up.UploadCSV(ctx, runID, data)
	if err != nil {
		log.Error().Err(err).Str("uri", uri).Msg("report upload failed")
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Report uploaded to %s\n", dest)
}

func init() {
	scanCmd.Flags().StringVar(&scanCSV, "csv", "ocr_analysis_report.csv", "CSV report path")
	scanCmd.Flags().BoolVar(&scanNoCSV, "no-csv", false, "do not write the CSV report")
	scanCmd.Flags().StringVar(&scanUpload, "upload", "", "upload the CSV report to s3://bucket/prefix")
}
