package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/local/ocrcheck/internal/config"
	"github.com/local/ocrcheck/internal/raster"
	"github.com/local/ocrcheck/internal/report"
	"github.com/local/ocrcheck/internal/statuscheck"
	"github.com/local/ocrcheck/internal/storage"
	"github.com/local/ocrcheck/internal/store"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check rasterizers, Redis and S3",
	Long: `Check the tools and services a scan depends on.

Exits non-zero when no raster backend is usable, because every document
would then be reported as requiring OCR.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		checker, cleanup, err := newChecker(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		s := checker.Summary(cmd.Context())
		if err := writeDoctor(cmd.OutOrStdout(), cfg.Output.Format, s); err != nil {
			return err
		}
		if !s.Ready() {
			return errors.New("raster backend unavailable")
		}
		return nil
	},
}

func newChecker(ctx context.Context, c config.Config) (*statuscheck.Checker, func(), error) {
	backend, err := raster.New(c.Analysis.Backend)
	if err != nil {
		return nil, nil, err
	}
	opts := statuscheck.Options{Backend: backend}
	cleanup := func() {}

	if c.Redis.URL != "" {
		client, err := store.Connect(ctx, c.Redis.URL)
		if err != nil {
			opts.RedisErr = err
		} else {
			opts.Redis = statuscheck.PingFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() })
			cleanup = func() { _ = client.Close() }
		}
	}

	if c.S3.ReportURI != "" {
		if loc, err := storage.ParseS3URI(c.S3.ReportURI); err == nil {
			opts.S3Bucket = loc.Bucket
			awsCfg, err := storage.LoadAWSConfig(ctx, storage.Options{
				Region:          c.S3.Region,
				AccessKeyID:     c.S3.AccessKeyID,
				SecretAccessKey: c.S3.SecretAccessKey,
			})
			if err == nil {
				opts.S3 = s3.NewFromConfig(awsCfg)
			}
		}
	}
	return statuscheck.New(opts), cleanup, nil
}

func writeDoctor(w io.Writer, format string, s statuscheck.Summary) error {
	switch strings.ToLower(format) {
	case report.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case report.FormatYAML:
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	}
	rows := []struct {
		name string
		st   statuscheck.Status
	}{
		{"raster (" + s.Backend + ")", s.Raster},
		{"pdftoppm", s.Pdftoppm},
		{"mutool", s.Mutool},
		{"redis", s.Redis},
		{"s3", s.S3},
	}
	for _, r := range rows {
		mark := "ok"
		if !r.st.OK {
			mark = "--"
		}
		if _, err := fmt.Fprintf(w, "[%s] %-20s %s\n", mark, r.name, r.st.Message); err != nil {
			return err
		}
	}
	for _, warn := range s.Warnings {
		if _, err := fmt.Fprintf(w, "WARNING: %s\n", warn); err != nil {
			return err
		}
	}
	return nil
}
