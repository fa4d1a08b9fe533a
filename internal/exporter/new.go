package exporter

import (
	"github.com/nguyentantai21042004/triage-synth/internal/logger"
)

type implExporter struct {
	suffix string
	logger logger.Logger
}

// New creates an Exporter for record files ending in suffix.
func New(suffix string, log logger.Logger) Exporter {
	return &implExporter{
		suffix: suffix,
		logger: log,
	}
}
