package processor

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/nguyentantai21042004/triage-synth/internal/dataset"
	"github.com/nguyentantai21042004/triage-synth/internal/prompt"
	"github.com/nguyentantai21042004/triage-synth/pkg/llmjson"
)

func (p *implProcessor) GenerateKeywords(ctx context.Context) (Report, error) {
	cfg := p.cfg.Keywords
	report := Report{Stage: "keywords", Total: 1}

	examples, err := p.sampleExamples(ctx)
	if err != nil {
		return report, err
	}
	p.logger.Info(ctx, "Requesting %d keyword phrases (%d examples)", cfg.Samples, len(examples))

	var keywords []string
	if err := p.askField(ctx, cfg.StageConfig, prompt.KeywordSystem, prompt.Keywords(cfg.Samples, examples), "keywords", &keywords); err != nil {
		report.Failed = 1
		return report, fmt.Errorf("generate keywords: %w", err)
	}
	if len(keywords) == 0 {
		report.Failed = 1
		return report, fmt.Errorf("generate keywords: reply contained no keywords: %w", llmjson.ErrMissingField)
	}

	if err := dataset.SaveKeywords(p.cfg.Paths.Keywords, keywords); err != nil {
		report.Failed = 1
		return report, fmt.Errorf("save keywords: %w", err)
	}

	report.Succeeded = 1
	report.Records = len(keywords)
	report.Files = []string{p.cfg.Paths.Keywords}
	p.logger.Info(ctx, "Saved %d keyword phrases to %s", len(keywords), p.cfg.Paths.Keywords)
	return report, nil
}

// sampleExamples picks up to Samples first keywords from the example
// records. A fixed seed makes the pick reproducible.
func (p *implProcessor) sampleExamples(ctx context.Context) ([]string, error) {
	cfg := p.cfg.Keywords
	if cfg.ExamplesDir == "" {
		return nil, nil
	}

	items, err := dataset.Load(ctx, cfg.ExamplesDir, cfg.ExamplesPattern, p.logger)
	if err != nil {
		return nil, fmt.Errorf("load examples: %w", err)
	}

	pool := make([]string, 0, len(items))
	for _, it := range items {
		if kw := it.Record.Summary.KeyWords; len(kw) > 0 && kw[0] != "" {
			pool = append(pool, kw[0])
		}
	}

	seed := uint64(time.Now().UnixNano())
	if cfg.Seed != nil {
		seed = uint64(*cfg.Seed)
	}
	r := rand.New(rand.NewPCG(seed, seed))
	r.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	return pool[:min(cfg.Samples, len(pool))], nil
}
