package processor

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nguyentantai21042004/triage-synth/internal/config"
	"github.com/nguyentantai21042004/triage-synth/internal/dataset"
	"github.com/nguyentantai21042004/triage-synth/internal/llm"
	"github.com/nguyentantai21042004/triage-synth/internal/logger"
)

type fakeLLM struct {
	mu    sync.Mutex
	reqs  []llm.Request
	calls atomic.Int32
	reply func(ctx context.Context, req llm.Request) (string, error)
}

func (f *fakeLLM) Invoke(ctx context.Context, req llm.Request) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	return f.reply(ctx, req)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{
		LLM: config.LLMConfig{Provider: "ollama"},
		Paths: config.PathsConfig{
			Keywords: filepath.Join(root, "keywords.json"),
			Output:   filepath.Join(root, "output"),
		},
		Summaries:      config.SummariesConfig{BatchSize: 1, MaxWorkers: 2},
		Transcriptions: config.TranscriptionConfig{MaxWorkers: 2},
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func newTestProcessor(cfg *config.Config, client llm.Client, l logger.Logger) *implProcessor {
	p := New(cfg, client, l).(*implProcessor)
	p.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	return p
}

func transportFailure() error {
	return &llm.TransportError{Provider: "ollama", Err: context.DeadlineExceeded}
}

const oneSummaryReply = "```json\n" + `{"summaries":[{"summary":{"text":["Child of 2 years refuses puree since Monday.","Drinks milk normally."],"key_words":["refuses to eat"]}}]}` + "\n```"

func TestGenerateSummariesOneChunkFails(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, dataset.SaveKeywords(cfg.Paths.Keywords, []string{"fever for two days", "refuses to eat"}))

	client := &fakeLLM{reply: func(ctx context.Context, req llm.Request) (string, error) {
		if strings.Contains(req.User, "fever for two days") {
			return "", transportFailure()
		}
		return oneSummaryReply, nil
	}}

	core, logs := observer.New(zapcore.DebugLevel)
	p := newTestProcessor(cfg, client, logger.NewWithCore(core))

	report, err := p.GenerateSummaries(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), client.calls.Load())
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Records)
	assert.Equal(t, []string{filepath.Join(cfg.Paths.Output, "1e.json")}, report.Files)

	item, err := dataset.ReadItem(report.Files[0])
	require.NoError(t, err)
	assert.Equal(t, "1-record-1700000000001_ms", item.Record.CallID)
	assert.Equal(t, []string{"refuses to eat"}, item.Record.Summary.KeyWords)
	assert.False(t, item.HasField("transcription"))

	assert.Equal(t, 1, logs.FilterMessageSnippet("Failed to generate summaries for batch 1").Len())
	assert.Equal(t, 1, logs.FilterMessageSnippet("Generated 1 summaries for batch 2").Len())
	assert.Equal(t, 1, logs.FilterMessage("Batch run complete: 1 succeeded, 1 failed, 1 records").Len())
}

func TestGenerateSummariesRequestShape(t *testing.T) {
	cfg := testConfig(t)
	cfg.Summaries.BatchSize = 10
	require.NoError(t, dataset.SaveKeywords(cfg.Paths.Keywords, []string{"cough at night"}))

	client := &fakeLLM{reply: func(ctx context.Context, req llm.Request) (string, error) {
		return oneSummaryReply, nil
	}}
	p := newTestProcessor(cfg, client, logger.NewNop())

	_, err := p.GenerateSummaries(context.Background())
	require.NoError(t, err)

	require.Len(t, client.reqs, 1)
	req := client.reqs[0]
	assert.True(t, req.JSON)
	assert.Equal(t, cfg.Summaries.Model, req.Model)
	assert.Equal(t, 0.6, req.Temperature)
	assert.Equal(t, 10000, req.MaxTokens)
	assert.Contains(t, req.User, "Generate 2 different summaries per keyword.")
	assert.Contains(t, req.User, `"cough at night"`)
	assert.Contains(t, req.System, `"summaries"`)
}

func TestGenerateSummariesNoInput(t *testing.T) {
	cfg := testConfig(t)
	client := &fakeLLM{reply: func(ctx context.Context, req llm.Request) (string, error) {
		return oneSummaryReply, nil
	}}
	p := newTestProcessor(cfg, client, logger.NewNop())

	_, err := p.GenerateSummaries(context.Background())
	assert.ErrorIs(t, err, dataset.ErrNoInput)

	require.NoError(t, os.WriteFile(cfg.Paths.Keywords, []byte(`{"keywords":[]}`), 0o644))
	_, err = p.GenerateSummaries(context.Background())
	assert.ErrorIs(t, err, dataset.ErrNoInput)

	assert.Zero(t, client.calls.Load())
	_, statErr := os.Stat(cfg.Paths.Output)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestGenerateSummariesUnusableReplies(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{name: "not json", reply: "Sure! Here are your summaries."},
		{name: "missing key", reply: `{"items":[]}`},
		{name: "wrong shape", reply: `{"summaries":"none"}`},
		{name: "empty list", reply: `{"summaries":[]}`},
		{name: "no text", reply: `{"summaries":[{"summary":{"text":[],"key_words":["x"]}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			require.NoError(t, dataset.SaveKeywords(cfg.Paths.Keywords, []string{"rash"}))

			client := &fakeLLM{reply: func(ctx context.Context, req llm.Request) (string, error) {
				return tt.reply, nil
			}}
			p := newTestProcessor(cfg, client, logger.NewNop())

			report, err := p.GenerateSummaries(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 1, report.Failed)
			assert.Zero(t, report.Records)
		})
	}
}

func TestSummaryCallTimeout(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, dataset.SaveKeywords(cfg.Paths.Keywords, []string{"stuck", "fine"}))

	client := &fakeLLM{reply: func(ctx context.Context, req llm.Request) (string, error) {
		if strings.Contains(req.User, "stuck") {
			<-ctx.Done()
			return "", &llm.TransportError{Provider: "fake", Err: ctx.Err()}
		}
		return oneSummaryReply, nil
	}}
	p := newTestProcessor(cfg, client, logger.NewNop())
	p.timeout = 30 * time.Millisecond

	report, err := p.GenerateSummaries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
}

func writeRecord(t *testing.T, dir, name string, v any) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	data, err := json.MarshalIndent(v, "", "  ")
	require.NoError(t, err)
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

const transcriptReply = `{"transcription":[
  {"speaker":"NURSE","text":"Pediatric line, how can I help?"},
  {"speaker":"CALLER","text":"My son has had a fever for two days."},
  {"speaker":"NURSE","text":"Has he been drinking?"},
  {"speaker":"CALLER","text":"Uh, yes, mostly water."}
]}`

func TestGenerateTranscriptionsSkipsDoneUnits(t *testing.T) {
	cfg := testConfig(t)
	done := writeRecord(t, cfg.Paths.Output, "1e.json", map[string]any{
		"call_id":       "1-record-1_ms",
		"participants":  []string{"NURSE", "CALLER"},
		"transcription": []map[string]string{{"speaker": "NURSE", "text": "Hello"}},
		"summary":       map[string]any{"text": []string{"Old."}, "key_words": []string{"old"}},
	})
	todo := writeRecord(t, cfg.Paths.Output, "2e.json", map[string]any{
		"call_id": "2-record-2_ms",
		"summary": map[string]any{"text": []string{"Boy of 3 years has fever for two days."}, "key_words": []string{"fever for two days"}},
	})
	before, err := os.ReadFile(done)
	require.NoError(t, err)

	client := &fakeLLM{reply: func(ctx context.Context, req llm.Request) (string, error) {
		return transcriptReply, nil
	}}
	p := newTestProcessor(cfg, client, logger.NewNop())

	report, err := p.GenerateTranscriptions(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), client.calls.Load())
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Succeeded)
	assert.Zero(t, report.Failed)
	assert.Equal(t, []string{todo}, report.Files)
	assert.Contains(t, client.reqs[0].User, "Generate a transcription for the following text:\nBoy of 3 years has fever for two days.")

	after, err := os.ReadFile(done)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	item, err := dataset.ReadItem(todo)
	require.NoError(t, err)
	assert.Equal(t, "2-record-2_ms", item.Record.CallID)
	assert.Equal(t, []string{"NURSE", "CALLER"}, item.Record.Participants)
	assert.Len(t, item.Record.Transcription, 4)
	assert.Equal(t, []string{"fever for two days"}, item.Record.Summary.KeyWords)

	// second run has nothing left to do
	report, err = p.GenerateTranscriptions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), client.calls.Load())
	assert.Equal(t, 2, report.Skipped)
}

func TestGenerateTranscriptionsFailureLeavesFile(t *testing.T) {
	cfg := testConfig(t)
	bad := writeRecord(t, cfg.Paths.Output, "1e.json", map[string]any{
		"call_id": "1-record-1_ms",
		"summary": map[string]any{"text": "Infant with green stool.", "key_words": []string{"green mucus in stool"}},
	})
	good := writeRecord(t, cfg.Paths.Output, "2e.json", map[string]any{
		"call_id": "2-record-2_ms",
		"summary": map[string]any{"text": []string{"Toddler coughs at night."}, "key_words": []string{"cough"}},
	})
	before, err := os.ReadFile(bad)
	require.NoError(t, err)

	client := &fakeLLM{reply: func(ctx context.Context, req llm.Request) (string, error) {
		if strings.Contains(req.User, "green stool") {
			return "", transportFailure()
		}
		return transcriptReply, nil
	}}
	core, logs := observer.New(zapcore.InfoLevel)
	p := newTestProcessor(cfg, client, logger.NewWithCore(core))

	report, err := p.GenerateTranscriptions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)

	after, err := os.ReadFile(bad)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	item, err := dataset.ReadItem(good)
	require.NoError(t, err)
	assert.True(t, item.HasField("transcription"))

	assert.Equal(t, 1, logs.FilterMessage("Done. Success: 1, Failures: 1, Skipped: 0, Total: 2").Len())
}

func TestGenerateTranscriptionsMissingOutputDir(t *testing.T) {
	cfg := testConfig(t)
	client := &fakeLLM{reply: func(ctx context.Context, req llm.Request) (string, error) { return transcriptReply, nil }}
	p := newTestProcessor(cfg, client, logger.NewNop())

	_, err := p.GenerateTranscriptions(context.Background())
	assert.Error(t, err)
}

func TestTranscribeFile(t *testing.T) {
	cfg := testConfig(t)
	path := writeRecord(t, cfg.Paths.Output, "5e.json", map[string]any{
		"call_id": "5-record-5_ms",
		"summary": map[string]any{"text": []string{"Baby cries after vaccination."}, "key_words": []string{"cries after vaccination"}},
	})

	client := &fakeLLM{reply: func(ctx context.Context, req llm.Request) (string, error) { return transcriptReply, nil }}
	p := newTestProcessor(cfg, client, logger.NewNop())

	require.NoError(t, p.TranscribeFile(context.Background(), path))
	require.NoError(t, p.TranscribeFile(context.Background(), path))
	assert.Equal(t, int32(1), client.calls.Load())

	noSummary := writeRecord(t, cfg.Paths.Output, "6e.json", map[string]any{"call_id": "6"})
	err := p.TranscribeFile(context.Background(), noSummary)
	assert.ErrorIs(t, err, errNoSummary)
	assert.Equal(t, int32(1), client.calls.Load())
}

func TestTranscribeFileKeepsSummary(t *testing.T) {
	cfg := testConfig(t)
	path := writeRecord(t, cfg.Paths.Output, "7e.json", map[string]any{
		"call_id": "7-record-7_ms",
		"summary": map[string]any{
			"text":      "Infant with green stool.",
			"key_words": []string{"green mucus in stool"},
			"urgency":   "high",
		},
	})

	client := &fakeLLM{reply: func(ctx context.Context, req llm.Request) (string, error) { return transcriptReply, nil }}
	p := newTestProcessor(cfg, client, logger.NewNop())
	require.NoError(t, p.TranscribeFile(context.Background(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, map[string]any{
		"text":      "Infant with green stool.",
		"key_words": []any{"green mucus in stool"},
		"urgency":   "high",
	}, got["summary"])
	assert.Equal(t, []any{"NURSE", "CALLER"}, got["participants"])
	assert.Len(t, got["transcription"], 4)
}

func TestGenerateKeywords(t *testing.T) {
	cfg := testConfig(t)
	examples := t.TempDir()
	for i, kw := range []string{"vomiting since last night", "rash after bath", "won't settle"} {
		writeRecord(t, examples, string(rune('1'+i))+"e.json", map[string]any{
			"call_id": "x",
			"summary": map[string]any{"text": []string{"."}, "key_words": []string{kw, "secondary"}},
		})
	}
	seed := int64(42)
	cfg.Keywords.ExamplesDir = examples
	cfg.Keywords.Samples = 2
	cfg.Keywords.Seed = &seed

	client := &fakeLLM{reply: func(ctx context.Context, req llm.Request) (string, error) {
		return `{"keywords":["green mucus in stool","crying all night"]}`, nil
	}}
	p := newTestProcessor(cfg, client, logger.NewNop())

	report, err := p.GenerateKeywords(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Records)

	require.Len(t, client.reqs, 1)
	user := client.reqs[0].User
	assert.True(t, strings.HasPrefix(user, "Generate 2 keyword phrases based on the following examples:\n"))
	assert.NotContains(t, user, "secondary")
	assert.Equal(t, 0.9, client.reqs[0].Temperature)

	got, err := dataset.LoadKeywords(cfg.Paths.Keywords)
	require.NoError(t, err)
	assert.Equal(t, []string{"green mucus in stool", "crying all night"}, got)

	// same seed, same sample
	_, err = p.GenerateKeywords(context.Background())
	require.NoError(t, err)
	assert.Equal(t, user, client.reqs[1].User)
}

func TestGenerateKeywordsUnusableReply(t *testing.T) {
	cfg := testConfig(t)
	client := &fakeLLM{reply: func(ctx context.Context, req llm.Request) (string, error) {
		return `{"keywords":[]}`, nil
	}}
	p := newTestProcessor(cfg, client, logger.NewNop())

	report, err := p.GenerateKeywords(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, report.Failed)

	_, statErr := os.Stat(cfg.Paths.Keywords)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestGenerateKeywordsWithoutExamples(t *testing.T) {
	cfg := testConfig(t)
	client := &fakeLLM{reply: func(ctx context.Context, req llm.Request) (string, error) {
		return "```\n{\"keywords\":[\"fever\"]}\n```", nil
	}}
	p := newTestProcessor(cfg, client, logger.NewNop())

	_, err := p.GenerateKeywords(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Generate 20 keyword phrases.", client.reqs[0].User)
}
