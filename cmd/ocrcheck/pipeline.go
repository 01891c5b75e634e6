package main

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/local/ocrcheck/internal/analyzer"
	"github.com/local/ocrcheck/internal/batch"
	"github.com/local/ocrcheck/internal/config"
	"github.com/local/ocrcheck/internal/density"
	"github.com/local/ocrcheck/internal/filetype"
	"github.com/local/ocrcheck/internal/metrics"
	"github.com/local/ocrcheck/internal/queue"
	"github.com/local/ocrcheck/internal/raster"
	"github.com/local/ocrcheck/internal/statuscheck"
	"github.com/local/ocrcheck/internal/store"
)

// newRunner wires the analyzer, the optional Redis sinks and metrics.
// The returned func releases the sinks.
func newRunner(ctx context.Context, c config.Config) (*batch.Runner, func(), error) {
	backend, err := raster.New(c.Analysis.Backend)
	if err != nil {
		return nil, nil, err
	}
	if !backend.Available() {
		log.Warn().Str("backend", backend.Name()).Msg(statuscheck.WarnNoBackend)
	}

	th := c.Analysis.Thresholds
	a := analyzer.New(analyzer.Options{
		Density:     density.New(backend, c.Analysis.DPI, c.Analysis.RasterTimeout),
		Types:       filetype.New(),
		Thresholds:  &th,
		SamplePages: c.Analysis.SamplePages,
		Fingerprint: c.Analysis.Fingerprint,
	})

	sinks, closeSinks := newSinks(ctx, c)
	metrics.Init()
	r := batch.New(batch.Config{
		Concurrency: c.Worker.Concurrency,
		Extensions:  c.Analysis.Extensions,
	}, a, sinks...).WithObserver(metrics.Observer{})
	return r, closeSinks, nil
}

// newSinks connects to Redis when configured. A connection failure only
// disables the sinks.
func newSinks(ctx context.Context, c config.Config) ([]batch.Sink, func()) {
	if c.Redis.URL == "" {
		return nil, func() {}
	}
	client, err := store.Connect(ctx, c.Redis.URL)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, results will not be stored or queued")
		return nil, func() {}
	}
	sinks := []batch.Sink{
		store.NewResultStore(client, c.Redis.ResultTTL),
		queue.NewRedisQueue(client, c.Redis.QueueStream),
	}
	return sinks, func() { _ = client.Close() }
}

// startMetrics serves /metrics while ctx lives; the returned func stops the
// server and writes the textfile dump when configured.
func startMetrics(ctx context.Context, c config.Config) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	if c.Metrics.Addr != "" {
		go func() {
			defer close(done)
			if err := metrics.Serve(ctx, c.Metrics.Addr); err != nil {
				log.Warn().Err(err).Str("addr", c.Metrics.Addr).Msg("metrics server failed")
			}
		}()
	} else {
		close(done)
	}
	return func() {
		cancel()
		<-done
		if c.Metrics.Textfile == "" {
			return
		}
		if err := metrics.WriteTextfile(c.Metrics.Textfile); err != nil {
			log.Warn().Err(err).Str("path", c.Metrics.Textfile).Msg("write metrics textfile failed")
		}
	}
}
