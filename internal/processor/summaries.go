package processor

import (
	"context"
	"fmt"

	"github.com/nguyentantai21042004/triage-synth/internal/batch"
	"github.com/nguyentantai21042004/triage-synth/internal/dataset"
	"github.com/nguyentantai21042004/triage-synth/internal/prompt"
	"github.com/nguyentantai21042004/triage-synth/pkg/llmjson"
)

func (p *implProcessor) GenerateSummaries(ctx context.Context) (Report, error) {
	cfg := p.cfg.Summaries
	report := Report{Stage: "summaries"}

	keywords, err := dataset.LoadKeywords(p.cfg.Paths.Keywords)
	if err != nil {
		return report, err
	}
	p.logger.Info(ctx, "Loaded %d keywords", len(keywords))

	res, err := batch.Run(ctx, keywords, batch.Options{ChunkSize: cfg.BatchSize, MaxWorkers: cfg.MaxWorkers}, p.summarizeChunk, p.logger)
	if err != nil {
		return report, err
	}
	report.Total = len(res.Outcomes)
	report.Succeeded = res.Succeeded
	report.Failed = res.Failed

	if len(res.Records) > 0 {
		files, err := dataset.SaveNumbered(p.cfg.Paths.Output, p.cfg.Paths.Suffix, res.Records, p.now())
		report.Files = files
		report.Records = len(files)
		if err != nil {
			return report, fmt.Errorf("save summaries: %w", err)
		}
	}

	p.logger.Info(ctx, "Total %d summaries saved at %s", report.Records, p.cfg.Paths.Output)
	return report, nil
}

// summarizeChunk is the unit of work for one keyword chunk. It logs exactly
// one line for the chunk.
func (p *implProcessor) summarizeChunk(ctx context.Context, c batch.Chunk[string]) ([]dataset.CallRecord, error) {
	cfg := p.cfg.Summaries

	var raw []dataset.CallRecord
	err := p.askField(ctx, cfg.StageConfig, prompt.SummarySystem, prompt.Summaries(cfg.PerKeyword, c.Units), "summaries", &raw)
	if err != nil {
		p.logger.Error(ctx, "Failed to generate summaries for batch %d: %v", c.Index+1, err)
		return nil, err
	}

	records := raw[:0]
	for _, r := range raw {
		if len(r.Summary.Text) == 0 {
			continue
		}
		records = append(records, dataset.CallRecord{Summary: r.Summary})
	}
	if len(records) == 0 {
		err := fmt.Errorf("reply contained no usable summaries: %w", llmjson.ErrMissingField)
		p.logger.Error(ctx, "Failed to generate summaries for batch %d: %v", c.Index+1, err)
		return nil, err
	}

	p.logger.Info(ctx, "Generated %d summaries for batch %d", len(records), c.Index+1)
	return records, nil
}
