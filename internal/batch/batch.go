package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/local/ocrcheck/internal/analyzer"
	"github.com/local/ocrcheck/internal/filetype"
)

// ErrInvalidDir is returned when the input directory is missing or not a directory.
var ErrInvalidDir = errors.New("input directory invalid")

// DocumentAnalyzer analyzes a single document.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, path string) (analyzer.Result, error)
}

// Sink receives every result as soon as it is available.
// Sinks are best-effort: errors are logged and never stop the batch.
type Sink interface {
	Name() string
	Publish(ctx context.Context, r analyzer.Result) error
}

// Observer is notified after each document. Implementations must be safe for concurrent use.
type Observer interface {
	Observe(r analyzer.Result, took time.Duration)
}

// SinkObserver is an optional Observer extension told about failed publications.
type SinkObserver interface {
	SinkFailed(sink string)
}

// Config configures a Runner.
type Config struct {
	Concurrency int
	Extensions  []string
}

// Runner analyzes a directory of documents with a bounded worker pool.
type Runner struct {
	cfg      Config
	analyzer DocumentAnalyzer
	sinks    []Sink
	observer Observer
}

// New creates a Runner. Concurrency <= 0 uses the CPU count, capped at 8.
func New(cfg Config, a DocumentAnalyzer, sinks ...Sink) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = runtime.NumCPU()
		if cfg.Concurrency > 8 {
			cfg.Concurrency = 8
		}
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = []string{".pdf"}
	}
	return &Runner{cfg: cfg, analyzer: a, sinks: sinks}
}

// WithObserver sets an observer notified after every document.
func (r *Runner) WithObserver(o Observer) *Runner {
	r.observer = o
	return r
}

// FindDocuments lists direct children of dir whose extension matches exts.
// Subdirectories are not searched.
func FindDocuments(dir string, exts []string) ([]string, error) {
	st, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDir, err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidDir, dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if filetype.MatchesExtension(e.Name(), exts) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}

// Run analyzes every matching document in dir and returns the results sorted for reporting.
// Only an invalid dir is an error; per-document failures become error rows.
func (r *Runner) Run(ctx context.Context, dir string) ([]analyzer.Result, error) {
	paths, err := FindDocuments(dir, r.cfg.Extensions)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		log.Warn().Str("dir", dir).Msg("no PDF files found in directory")
		return nil, nil
	}
	log.Info().Str("dir", dir).Int("files", len(paths)).Int("workers", r.cfg.Concurrency).Msg("found PDF files")

	results := r.AnalyzeAll(ctx, paths)
	SortResults(results)
	return results, nil
}

// AnalyzeAll analyzes paths concurrently. The returned slice is in input order.
// Documents not started before ctx is cancelled are recorded as errors.
func (r *Runner) AnalyzeAll(ctx context.Context, paths []string) []analyzer.Result {
	results := make([]analyzer.Result, len(paths))
	var done atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(r.cfg.Concurrency)
	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = analyzer.ErrorResult(p, fmt.Errorf("not processed: %w", err))
				return nil
			}
			results[i] = r.AnalyzeOne(ctx, p)
			n := done.Add(1)
			log.Debug().Int64("done", n).Int("total", len(paths)).Str("file", filepath.Base(p)).Msg("progress")
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// AnalyzeOne analyzes a single document and never fails: errors become error rows.
// The result is published to every sink.
func (r *Runner) AnalyzeOne(ctx context.Context, path string) (res analyzer.Result) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Str("file", path).Msg("document analysis panicked")
			res = analyzer.ErrorResult(path, fmt.Errorf("analysis panicked: %v", rec))
		}
		if r.observer != nil {
			r.observer.Observe(res, time.Since(start))
		}
		r.publish(ctx, res)
	}()

	res, err := r.analyzer.Analyze(ctx, path)
	if err != nil {
		log.Error().Err(err).Str("file", filepath.Base(path)).Msg("document analysis failed")
		return analyzer.ErrorResult(path, err)
	}
	return res
}

func (r *Runner) publish(ctx context.Context, res analyzer.Result) {
	for _, s := range r.sinks {
		if err := s.Publish(ctx, res); err != nil {
			log.Warn().Err(err).Str("sink", s.Name()).Str("file", res.Filename).Msg("publish result failed")
			if so, ok := r.observer.(SinkObserver); ok {
				so.SinkFailed(s.Name())
			}
		}
	}
}

// SortResults orders OCR-required documents first, then by filename.
func SortResults(results []analyzer.Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].OCRRequired != results[j].OCRRequired {
			return results[i].OCRRequired
		}
		return results[i].Filename < results[j].Filename
	})
}
