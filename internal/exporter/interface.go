package exporter

import "context"

// Exporter renders transcribed call records as reviewable documents.
type Exporter interface {
	// ExportAll writes a .md and a .docx file into destDir for every record
	// in srcDir that carries a transcription.
	ExportAll(ctx context.Context, srcDir, destDir string) (Result, error)
}

type Result struct {
	Exported int
	Skipped  int
	Failed   int
}
