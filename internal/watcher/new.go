package watcher

import (
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nguyentantai21042004/triage-synth/internal/logger"
)

// Options configures a Watcher.
type Options struct {
	Dir    string
	Suffix string
	// MaxConcurrent bounds in-flight handlers; defaults to 2.
	MaxConcurrent int
	// Settle is how long to wait after an event before handling the file,
	// so that writers can finish. Defaults to 500ms.
	Settle time.Duration
}

// New creates a new Watcher instance with concurrency control
func New(opts Options, handler EventHandler, log logger.Logger) (Watcher, error) {
	if opts.Suffix == "" {
		return nil, fmt.Errorf("watch suffix is required")
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 2
	}
	if opts.Settle <= 0 {
		opts.Settle = 500 * time.Millisecond
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(opts.Dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("add watch path: %w", err)
	}

	return &implWatcher{
		opts:      opts,
		handler:   handler,
		logger:    log,
		watcher:   fw,
		semaphore: make(chan struct{}, opts.MaxConcurrent),
		inFlight:  make(map[string]struct{}),
	}, nil
}
