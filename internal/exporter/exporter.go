package exporter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nguyentantai21042004/triage-synth/internal/dataset"
)

func (e *implExporter) ExportAll(ctx context.Context, srcDir, destDir string) (Result, error) {
	var res Result

	items, err := dataset.Load(ctx, srcDir, "*"+e.suffix, e.logger)
	if err != nil {
		return res, fmt.Errorf("load records: %w", err)
	}
	if len(items) == 0 {
		e.logger.Info(ctx, "No records found in %s", srcDir)
		return res, nil
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return res, fmt.Errorf("create dest dir: %w", err)
	}

	for i, it := range items {
		name := strings.TrimSuffix(filepath.Base(it.Path), ".json")
		if len(it.Record.Transcription) == 0 {
			e.logger.Debug(ctx, "[%d/%d] No transcription, skipping: %s", i+1, len(items), name)
			res.Skipped++
			continue
		}

		md := renderMarkdown(it.Record)

		mdPath := filepath.Join(destDir, name+".md")
		if err := os.WriteFile(mdPath, []byte(md), 0644); err != nil {
			e.logger.Error(ctx, "Failed to write %s: %v", mdPath, err)
			res.Failed++
			continue
		}

		docxPath := filepath.Join(destDir, name+".docx")
		if err := markdownToDocx(it.Record.CallID, md, docxPath); err != nil {
			e.logger.Error(ctx, "Failed to write %s: %v", docxPath, err)
			res.Failed++
			continue
		}

		e.logger.Info(ctx, "[%d/%d] %s -> %s", i+1, len(items), name, docxPath)
		res.Exported++
	}

	e.logger.Info(ctx, "Export complete: %d exported, %d skipped, %d failed", res.Exported, res.Skipped, res.Failed)
	return res, nil
}

func renderMarkdown(rec dataset.CallRecord) string {
	var sb strings.Builder

	sb.WriteString("## Summary\n\n")
	for _, s := range rec.Summary.Text {
		fmt.Fprintf(&sb, "- %s\n", s)
	}
	if len(rec.Summary.KeyWords) > 0 {
		fmt.Fprintf(&sb, "\n**Keywords:** %s\n", strings.Join(rec.Summary.KeyWords, ", "))
	}
	if len(rec.Participants) > 0 {
		fmt.Fprintf(&sb, "\n**Participants:** %s\n", strings.Join(rec.Participants, ", "))
	}

	sb.WriteString("\n## Transcript\n\n")
	for _, t := range rec.Transcription {
		fmt.Fprintf(&sb, "**%s:** %s\n", t.Speaker, t.Text)
	}
	return sb.String()
}
