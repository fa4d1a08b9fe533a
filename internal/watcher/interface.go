package watcher

import "context"

// Watcher monitors a directory and hands matching files to a handler.
type Watcher interface {
	// Start blocks until ctx is done, then waits for in-flight handlers.
	Start(ctx context.Context) error
	Stop() error
}

// EventHandler is a function that handles file events
type EventHandler func(ctx context.Context, filePath string) error
