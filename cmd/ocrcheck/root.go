package main

import (
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/local/ocrcheck/internal/config"
	"github.com/local/ocrcheck/internal/logger"
)

var (
	envFile      string
	outputFormat string
	backendName  string
	samplePages  int
	dpi          float64
	rasterTO     time.Duration
	concurrency  int

	cfg config.Config
	// runID tags every log line of one invocation and names uploaded reports.
	runID string
)

var rootCmd = &cobra.Command{
	Use:   "ocrcheck",
	Short: "Decide which PDF files need OCR",
	Long: `ocrcheck inspects PDF files and decides, per file, whether OCR is needed.

It combines two signals:
  - the embedded text layer (pages with extractable text, characters per page)
  - the visual ink density of the first pages, rendered with pdftoppm or MuPDF

Configuration comes from the environment (and an optional .env file);
flags override it.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(envFile)
		if err != nil {
			return err
		}
		applyFlags(cmd, &c)
		cfg = c
		runID = uuid.NewString()

		return logger.Init(logger.Options{
			Level:        cfg.Logging.Level,
			Pretty:       cfg.Logging.Pretty,
			File:         cfg.Logging.File,
			MaxSizeMB:    cfg.Logging.MaxSizeMB,
			MaxBackups:   cfg.Logging.MaxBackups,
			MaxAgeDays:   cfg.Logging.MaxAgeDays,
			Compress:     cfg.Logging.Compress,
			Console:      cmd.ErrOrStderr(),
			Fields:       map[string]string{"run_id": runID, "command": cmd.Name()},
			SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
			AxiomAPIKey:  cfg.Axiom.APIKey,
			AxiomOrgID:   cfg.Axiom.OrgID,
			AxiomDataset: cfg.Axiom.Dataset,
			AxiomFlush:   cfg.Axiom.FlushInterval,
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Close()
	},
}

// applyFlags copies explicitly set flags over the env configuration.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("output") {
		c.Output.Format = outputFormat
	}
	if flags.Changed("backend") {
		c.Analysis.Backend = backendName
	}
	if flags.Changed("sample-pages") {
		c.Analysis.SamplePages = samplePages
	}
	if flags.Changed("dpi") {
		c.Analysis.DPI = dpi
	}
	if flags.Changed("raster-timeout") {
		c.Analysis.RasterTimeout = rasterTO
	}
	if flags.Changed("concurrency") {
		c.Worker.Concurrency = concurrency
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	pf.StringVarP(&outputFormat, "output", "o", "text", "report format: text, json or yaml")
	pf.StringVar(&backendName, "backend", "pdftoppm", "raster backend: pdftoppm, mupdf or none")
	pf.IntVar(&samplePages, "sample-pages", 5, "leading pages rendered for visual density (max 10)")
	pf.Float64Var(&dpi, "dpi", 100, "render resolution for visual density")
	pf.DurationVar(&rasterTO, "raster-timeout", 60*time.Second, "per-document render deadline")
	pf.IntVarP(&concurrency, "concurrency", "j", 0, "documents analyzed in parallel (0 = CPU count, max 8)")

	rootCmd.AddCommand(scanCmd, analyzeCmd, watchCmd, doctorCmd, versionCmd)
}
