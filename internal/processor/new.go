package processor

import (
	"time"

	"github.com/nguyentantai21042004/triage-synth/internal/config"
	"github.com/nguyentantai21042004/triage-synth/internal/llm"
	"github.com/nguyentantai21042004/triage-synth/internal/logger"
)

type implProcessor struct {
	cfg     *config.Config
	llm     llm.Client
	logger  logger.Logger
	timeout time.Duration
	now     func() time.Time
}

// New creates a new Processor instance
func New(cfg *config.Config, client llm.Client, log logger.Logger) Processor {
	timeout := time.Duration(cfg.LLM.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 600 * time.Second
	}
	return &implProcessor{
		cfg:     cfg,
		llm:     client,
		logger:  log,
		timeout: timeout,
		now:     time.Now,
	}
}
