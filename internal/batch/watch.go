package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/local/ocrcheck/internal/analyzer"
	"github.com/local/ocrcheck/internal/filetype"
)

// DefaultSettle is how long a file must stay quiet before it is analyzed.
const DefaultSettle = 2 * time.Second

// Watch analyzes documents as they appear in dir until ctx is cancelled.
// Each new or rewritten file is analyzed once after it has been quiet for settle.
// onResult is called from a single goroutine.
func (r *Runner) Watch(ctx context.Context, dir string, settle time.Duration, onResult func(analyzer.Result)) error {
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		return fmt.Errorf("%w: %s", ErrInvalidDir, dir)
	}
	if settle <= 0 {
		settle = DefaultSettle
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	log.Info().Str("dir", dir).Dur("settle", settle).Msg("watching for PDF files")

	ready := make(chan string, 64)
	var mu sync.Mutex
	timers := map[string]*time.Timer{}

	schedule := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := timers[path]; ok {
			t.Reset(settle)
			return
		}
		timers[path] = time.AfterFunc(settle, func() {
			mu.Lock()
			delete(timers, path)
			mu.Unlock()
			select {
			case ready <- path:
			case <-ctx.Done():
			}
		})
	}
	defer func() {
		mu.Lock()
		for _, t := range timers {
			t.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("dir", dir).Msg("watch stopped")
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !r.watchable(ev) {
				continue
			}
			schedule(ev.Name)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Str("dir", dir).Msg("watcher error")
		case path := <-ready:
			if st, err := os.Stat(path); err != nil || st.IsDir() {
				continue
			}
			res := r.AnalyzeOne(ctx, path)
			if onResult != nil {
				onResult(res)
			}
		}
	}
}

func (r *Runner) watchable(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
		return false
	}
	return filetype.MatchesExtension(filepath.Base(ev.Name), r.cfg.Extensions)
}
