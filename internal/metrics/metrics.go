package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/local/ocrcheck/internal/analyzer"
)

// Result labels for documents_total.
const (
	ResultOCRRequired = "ocr_required"
	ResultNotRequired = "not_required"
	ResultError       = "error"
)

// Registry holds the ocrcheck collectors.
var Registry = prometheus.NewRegistry()

var (
	documents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ocrcheck",
			Name:      "documents_total",
			Help:      "Documents analyzed by result (ocr_required, not_required, error)",
		},
		[]string{"result"},
	)

	analysisLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ocrcheck",
			Name:      "analysis_duration_seconds",
			Help:      "Duration of single document analysis",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	rulesFired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ocrcheck",
			Name:      "rules_fired_total",
			Help:      "OCR rules that fired, by rule name",
		},
		[]string{"rule"},
	)

	densitySkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ocrcheck",
			Name:      "density_skipped_total",
			Help:      "Documents whose visual density was not measured",
		},
	)

	pagesScanned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ocrcheck",
			Name:      "pages_scanned_total",
			Help:      "Pages visited by the text layer scan",
		},
	)

	sinkErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ocrcheck",
			Name:      "sink_errors_total",
			Help:      "Failed result publications by sink",
		},
		[]string{"sink"},
	)
)

var initOnce sync.Once

// Init registers collectors. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		Registry.MustRegister(documents, analysisLatency, rulesFired, densitySkipped, pagesScanned, sinkErrors)
	})
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// ResultLabel maps a result to its documents_total label.
func ResultLabel(r analyzer.Result) string {
	switch {
	case r.Failed():
		return ResultError
	case r.OCRRequired:
		return ResultOCRRequired
	default:
		return ResultNotRequired
	}
}

// ObserveResult records one analyzed document.
func ObserveResult(r analyzer.Result, dur time.Duration) {
	documents.WithLabelValues(ResultLabel(r)).Inc()
	analysisLatency.Observe(dur.Seconds())
	for _, rule := range r.Rules {
		rulesFired.WithLabelValues(rule).Inc()
	}
	if r.DensitySkipped {
		densitySkipped.Inc()
	}
	pagesScanned.Add(float64(r.TotalPages))
}

func IncSinkError(sink string) { sinkErrors.WithLabelValues(sink).Inc() }

// Observer adapts ObserveResult to the batch runner.
type Observer struct{}

func (Observer) Observe(r analyzer.Result, dur time.Duration) { ObserveResult(r, dur) }

func (Observer) SinkFailed(sink string) { IncSinkError(sink) }

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("metrics server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
