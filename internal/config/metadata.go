package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Metadata is the reproducibility snapshot written at the end of every run.
type Metadata struct {
	RunID      string    `json:"run_id"`
	Stage      string    `json:"stage"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Config     *Config   `json:"config"`
}

// NewRunID returns a fresh identifier for a pipeline run.
func NewRunID() string {
	return uuid.NewString()
}

// WriteMetadata serializes the exported configuration of a run to path,
// creating parent directories as needed. Secrets never live in Config, so
// the snapshot is safe to keep next to the dataset.
func WriteMetadata(path string, meta Metadata) error {
	if meta.RunID == "" {
		meta.RunID = NewRunID()
	}
	if meta.FinishedAt.IsZero() {
		meta.FinishedAt = time.Now()
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create metadata dir: %w", err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}
