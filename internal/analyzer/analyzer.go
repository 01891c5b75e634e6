package analyzer

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/blake2b"

	"github.com/local/ocrcheck/internal/decision"
	"github.com/local/ocrcheck/internal/density"
	"github.com/local/ocrcheck/internal/textlayer"
)

// TypeChecker verifies that a file's content is the expected document format.
type TypeChecker interface {
	RequirePDF(filePath string) error
}

// DensityEstimator measures visual ink density for a document.
type DensityEstimator interface {
	Available() bool
	Estimate(ctx context.Context, pdfPath string, n, totalPages int) float64
}

// Options configures an Analyzer. Zero values fall back to defaults.
type Options struct {
	Opener      textlayer.Opener
	Density     DensityEstimator
	Types       TypeChecker
	Thresholds  *decision.Thresholds
	SamplePages int
	// Fingerprint enables BLAKE2b hashing of each document.
	Fingerprint bool
	// CountPages inspects documents MuPDF cannot open. Defaults to pdfcpu.
	CountPages PageCounter
}

// Analyzer sequences the per-document steps: file metrics, text layer,
// visual density and the decision rules.
type Analyzer struct {
	opener      textlayer.Opener
	density     DensityEstimator
	types       TypeChecker
	thresholds  decision.Thresholds
	samplePages int
	fingerprint bool
	countPages  PageCounter
}

// New creates an Analyzer.
func New(opts Options) *Analyzer {
	a := &Analyzer{
		opener:      opts.Opener,
		density:     opts.Density,
		types:       opts.Types,
		thresholds:  decision.DefaultThresholds(),
		samplePages: opts.SamplePages,
		fingerprint: opts.Fingerprint,
		countPages:  opts.CountPages,
	}
	if a.countPages == nil {
		a.countPages = api.PageCountFile
	}
	if a.opener == nil {
		a.opener = textlayer.DefaultOpener()
	}
	if opts.Thresholds != nil {
		a.thresholds = *opts.Thresholds
	}
	if a.samplePages <= 0 {
		a.samplePages = density.DefaultSamplePages
	}
	return a
}

// Thresholds returns the thresholds the analyzer decides with.
func (a *Analyzer) Thresholds() decision.Thresholds { return a.thresholds }

// FileMetricsFor stats path and returns its basename and size in MB.
func FileMetricsFor(path string) (FileMetrics, error) {
	st, err := os.Stat(path)
	if err != nil {
		return FileMetrics{}, err
	}
	if st.IsDir() {
		return FileMetrics{}, fmt.Errorf("%s is a directory", path)
	}
	return FileMetrics{Filename: filepath.Base(path), SizeMB: bytesToMB(st.Size())}, nil
}

// Analyze runs the full pipeline for one document.
// On an unrecoverable error it returns a zero Result and the error; callers
// record it with ErrorResult.
func (a *Analyzer) Analyze(ctx context.Context, path string) (Result, error) {
	start := time.Now()

	fm, err := FileMetricsFor(path)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", textlayer.ErrDocumentOpen, err)
	}
	log.Debug().Str("file", fm.Filename).Float64("size_mb", fm.SizeMB).Msg("file metrics")

	if a.types != nil {
		if err := a.types.RequirePDF(path); err != nil {
			return Result{}, fmt.Errorf("%w: %v", textlayer.ErrDocumentOpen, err)
		}
	}

	text, err := textlayer.AnalyzeWith(a.opener, path)
	if err != nil {
		if errors.Is(err, textlayer.ErrDocumentOpen) {
			err = diagnoseOpen(a.countPages, path, err)
		}
		return Result{}, err
	}

	var vis float64
	skipped := a.density == nil || !a.density.Available()
	if !skipped {
		vis = a.density.Estimate(ctx, path, a.samplePages, text.TotalPages)
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("visual density interrupted: %w", err)
		}
	} else {
		log.Warn().Str("file", fm.Filename).Msg("raster backend not found; skipping visual analysis (density=0)")
	}

	verdict := decision.Evaluate(decision.Input{
		Text:    text,
		Density: vis,
		File:    decision.FileInfo{SizeMB: fm.SizeMB},
	}, a.thresholds)

	res := Result{
		Filename:       fm.Filename,
		Path:           path,
		HasTextLayer:   text.HasTextLayer(),
		TextPagesRatio: text.TextPagesRatio(),
		AvgTextDensity: vis,
		OCRRequired:    verdict.OCRRequired,
		FileSizeMB:     fm.SizeMB,
		TotalPages:     text.TotalPages,
		PagesWithText:  text.PagesWithText,
		AvgTextPerPage: text.AvgTextPerPage(),
		Rules:          verdict.Fired,
		DensitySkipped: skipped,
	}

	if a.fingerprint {
		if sum, err := Fingerprint(path); err == nil {
			res.Fingerprint = sum
		} else {
			log.Warn().Err(err).Str("file", fm.Filename).Msg("fingerprint failed")
		}
	}

	log.Info().
		Str("file", fm.Filename).
		Int("pages", text.TotalPages).
		Int("pages_with_text", text.PagesWithText).
		Float64("text_pages_ratio", res.TextPagesRatio).
		Float64("avg_text_per_page", res.AvgTextPerPage).
		Float64("density", vis).
		Bool("ocr_required", res.OCRRequired).
		Strs("rules", res.Rules).
		Dur("took", time.Since(start)).
		Msg("document analyzed")

	return res, nil
}

// Fingerprint returns the hex BLAKE2b-256 digest of the file at path.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
