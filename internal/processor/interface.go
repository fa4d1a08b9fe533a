package processor

import "context"

// Processor runs the three generation stages of the pipeline.
type Processor interface {
	// GenerateKeywords writes a fresh keyword list modeled on example records.
	GenerateKeywords(ctx context.Context) (Report, error)
	// GenerateSummaries turns the keyword list into numbered summary records.
	GenerateSummaries(ctx context.Context) (Report, error)
	// GenerateTranscriptions adds a call transcript to every record that
	// does not have one yet.
	GenerateTranscriptions(ctx context.Context) (Report, error)
	// TranscribeFile processes a single record file.
	TranscribeFile(ctx context.Context, path string) error
}

// Report summarizes one stage run.
type Report struct {
	Stage     string
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Records   int
	Files     []string
}
