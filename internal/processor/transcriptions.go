package processor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/nguyentantai21042004/triage-synth/internal/batch"
	"github.com/nguyentantai21042004/triage-synth/internal/dataset"
	"github.com/nguyentantai21042004/triage-synth/internal/prompt"
	"github.com/nguyentantai21042004/triage-synth/pkg/llmjson"
)

const transcriptionField = "transcription"

var errNoSummary = errors.New("record has no summary text")

func (p *implProcessor) GenerateTranscriptions(ctx context.Context) (Report, error) {
	cfg := p.cfg.Transcriptions
	report := Report{Stage: "transcriptions"}

	items, err := dataset.Load(ctx, p.cfg.Paths.Output, "*"+p.cfg.Paths.Suffix, p.logger)
	if err != nil {
		return report, err
	}
	report.Total = len(items)

	pending := make([]dataset.Item, 0, len(items))
	for _, it := range items {
		if it.HasField(transcriptionField) {
			p.logger.Info(ctx, "Transcription already exists. Skipping file: %s", it.Path)
			report.Skipped++
			continue
		}
		pending = append(pending, it)
	}

	var succeeded, failed atomic.Int64
	fn := func(ctx context.Context, c batch.Chunk[dataset.Item]) ([]string, error) {
		var written []string
		var lastErr error
		for _, it := range c.Units {
			if err := p.transcribe(ctx, it); err != nil {
				failed.Add(1)
				lastErr = err
				continue
			}
			succeeded.Add(1)
			written = append(written, it.Path)
		}
		if len(written) == 0 && lastErr != nil {
			return nil, lastErr
		}
		return written, nil
	}

	res, err := batch.Run(ctx, pending, batch.Options{ChunkSize: cfg.BatchSize, MaxWorkers: cfg.MaxWorkers}, fn, p.logger)
	if err != nil {
		return report, err
	}

	report.Succeeded = int(succeeded.Load())
	report.Failed = int(failed.Load())
	// units that never ran (cancelled or panicked chunk) count as failures
	if settled := report.Succeeded + report.Failed; settled < len(pending) {
		report.Failed += len(pending) - settled
	}
	report.Files = res.Records
	report.Records = len(res.Records)

	p.logger.Info(ctx, "Done. Success: %d, Failures: %d, Skipped: %d, Total: %d",
		report.Succeeded, report.Failed, report.Skipped, report.Total)
	return report, nil
}

func (p *implProcessor) TranscribeFile(ctx context.Context, path string) error {
	item, err := dataset.ReadItem(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if item.HasField(transcriptionField) {
		p.logger.Info(ctx, "Transcription already exists. Skipping file: %s", path)
		return nil
	}
	return p.transcribe(ctx, item)
}

// transcribe generates the call for one record and writes it back to the
// record's own file. It logs exactly one line for the unit.
func (p *implProcessor) transcribe(ctx context.Context, item dataset.Item) error {
	err := p.transcribeItem(ctx, item)
	if err != nil {
		p.logger.Error(ctx, "Failed to create transcription for %s: %v", item.Path, err)
		return err
	}
	p.logger.Info(ctx, "Created transcription for file: %s", item.Path)
	return nil
}

func (p *implProcessor) transcribeItem(ctx context.Context, item dataset.Item) error {
	summary := item.Record.Summary
	if len(summary.Text) == 0 {
		return errNoSummary
	}

	var turns []dataset.Turn
	if err := p.askField(ctx, p.cfg.Transcriptions.StageConfig, prompt.TranscriptionSystem, prompt.Transcription(summary.Text), transcriptionField, &turns); err != nil {
		return err
	}
	if len(turns) == 0 {
		return fmt.Errorf("reply contained an empty transcription: %w", llmjson.ErrMissingField)
	}

	if err := dataset.WriteBack(item, turns); err != nil {
		return fmt.Errorf("write back: %w", err)
	}
	return nil
}
