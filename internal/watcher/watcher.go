package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nguyentantai21042004/triage-synth/internal/logger"
)

type implWatcher struct {
	opts      Options
	handler   EventHandler
	logger    logger.Logger
	watcher   *fsnotify.Watcher
	semaphore chan struct{}
	wg        sync.WaitGroup

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// Start begins monitoring the directory for new or replaced record files.
func (w *implWatcher) Start(ctx context.Context) error {
	w.logger.Info(ctx, "File watcher started (max concurrent: %d). Monitoring: %s for *%s",
		w.opts.MaxConcurrent, w.opts.Dir, w.opts.Suffix)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info(ctx, "Waiting for ongoing processing to complete...")
			w.wg.Wait()
			w.logger.Info(ctx, "File watcher stopped")
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				w.wg.Wait()
				return fmt.Errorf("watcher events channel closed")
			}

			// atomic writers land files with a rename, which shows up as Create
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !w.matches(event.Name) {
				w.logger.Debug(ctx, "Ignoring file: %s", event.Name)
				continue
			}
			if !w.claim(event.Name) {
				continue
			}

			w.logger.Info(ctx, "New record detected: %s", event.Name)

			select {
			case w.semaphore <- struct{}{}:
				w.wg.Add(1)
				go func(path string) {
					defer w.wg.Done()
					defer func() { <-w.semaphore }()
					defer w.release(path)

					select {
					case <-time.After(w.opts.Settle):
					case <-ctx.Done():
						return
					}

					if err := w.handler(ctx, path); err != nil {
						w.logger.Error(ctx, "Failed to process %s: %v", path, err)
					}
				}(event.Name)
			case <-ctx.Done():
				w.release(event.Name)
				w.wg.Wait()
				return ctx.Err()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				w.wg.Wait()
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error(ctx, "Watcher error: %v", err)
		}
	}
}

// Stop closes the file watcher
func (w *implWatcher) Stop() error {
	return w.watcher.Close()
}

// matches skips hidden files, which covers in-progress temp files.
func (w *implWatcher) matches(path string) bool {
	name := filepath.Base(path)
	return !strings.HasPrefix(name, ".") && strings.HasSuffix(name, w.opts.Suffix)
}

// claim collapses bursts of events for one file into a single handler run.
func (w *implWatcher) claim(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, busy := w.inFlight[path]; busy {
		return false
	}
	w.inFlight[path] = struct{}{}
	return true
}

func (w *implWatcher) release(path string) {
	w.mu.Lock()
	delete(w.inFlight, path)
	w.mu.Unlock()
}
