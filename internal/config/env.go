package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/local/ocrcheck/internal/decision"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// AnalysisConfig controls how a single document is measured and classified.
type AnalysisConfig struct {
	Thresholds    decision.Thresholds
	SamplePages   int
	DPI           float64
	Backend       string // "pdftoppm"|"mupdf"|"none"
	RasterTimeout time.Duration
	Extensions    []string
	Fingerprint   bool
}

// WorkerConfig defines batch concurrency.
type WorkerConfig struct {
	Concurrency int
	WatchSettle time.Duration
}

// OutputConfig defines report destinations.
type OutputConfig struct {
	CSVPath string
	Format  string // "text"|"json"|"yaml"
}

// RedisConfig enables the result store and the OCR queue when URL is set.
type RedisConfig struct {
	URL         string
	ResultTTL   time.Duration
	QueueStream string
}

// S3Config enables report upload when ReportURI is set.
type S3Config struct {
	ReportURI       string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	UploadAttempts  int
}

// MetricsConfig enables the Prometheus endpoint and/or textfile dump.
type MetricsConfig struct {
	Addr     string
	Textfile string
}

// Config is the top-level configuration.
type Config struct {
	Logging  LoggingConfig
	Axiom    AxiomConfig
	Analysis AnalysisConfig
	Worker   WorkerConfig
	Output   OutputConfig
	Redis    RedisConfig
	S3       S3Config
	Metrics  MetricsConfig
}

// Load reads the given .env files (default ".env") into the environment and
// then calls FromEnv. Missing files are ignored; variables already set win.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}
	return FromEnv(), nil
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	// Logging defaults
	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", ""),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	// Axiom defaults
	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_ocrcheck",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	// Analysis defaults
	def := decision.DefaultThresholds()
	cfg.Analysis = AnalysisConfig{
		Thresholds: decision.Thresholds{
			MinTextPagesRatio: parseFloat(getEnv("OCR_MIN_TEXT_PAGES_RATIO", ""), def.MinTextPagesRatio),
			MinVisualDensity:  parseFloat(getEnv("OCR_MIN_VISUAL_DENSITY", ""), def.MinVisualDensity),
			LargeFileMB:       parseFloat(getEnv("OCR_LARGE_FILE_MB", ""), def.LargeFileMB),
			MinAvgTextPerPage: parseFloat(getEnv("OCR_MIN_AVG_TEXT_PER_PAGE", ""), def.MinAvgTextPerPage),
			ManyPages:         parseInt(getEnv("OCR_MANY_PAGES", ""), def.ManyPages),
			ManyPagesMinRatio: parseFloat(getEnv("OCR_MANY_PAGES_MIN_RATIO", ""), def.ManyPagesMinRatio),
		},
		SamplePages:   parseInt(getEnv("OCR_SAMPLE_PAGES", "5"), 5),
		DPI:           parseFloat(getEnv("RASTER_DPI", "100"), 100),
		Backend:       strings.ToLower(getEnv("RASTER_BACKEND", "pdftoppm")),
		RasterTimeout: parseDuration(getEnv("RASTER_TIMEOUT", "60s"), 60*time.Second),
		Extensions:    parseList(getEnv("SCAN_EXTENSIONS", ".pdf")),
		Fingerprint:   parseBool(getEnv("OCR_FINGERPRINT", "true")),
	}

	// Worker defaults; zero lets the batch runner pick from the CPU count.
	cfg.Worker = WorkerConfig{
		Concurrency: parseInt(getEnv("WORKER_CONCURRENCY", "0"), 0),
		WatchSettle: parseDuration(getEnv("WATCH_SETTLE", "2s"), 2*time.Second),
	}

	cfg.Output = OutputConfig{
		CSVPath: getEnv("REPORT_CSV", "ocr_analysis_report.csv"),
		Format:  strings.ToLower(getEnv("REPORT_FORMAT", "text")),
	}

	cfg.Redis = RedisConfig{
		URL:         getEnv("REDIS_URL", ""),
		ResultTTL:   parseDuration(getEnv("RESULT_TTL", "168h"), 7*24*time.Hour),
		QueueStream: getEnv("OCR_QUEUE_STREAM", "jobs:ocr:needed"),
	}

	cfg.S3 = S3Config{
		ReportURI:       getEnv("REPORT_S3_URI", ""),
		Region:          getEnv("AWS_REGION", ""),
		AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		UploadAttempts:  parseInt(getEnv("S3_UPLOAD_ATTEMPTS", "3"), 3),
	}

	cfg.Metrics = MetricsConfig{
		Addr:     getEnv("METRICS_ADDR", ""),
		Textfile: getEnv("METRICS_TEXTFILE", ""),
	}

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return n
	}
	return def
}

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		return f
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
		return d
	}
	return def
}

// parseList splits a comma separated list, dropping empty items.
func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
