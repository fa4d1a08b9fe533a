package dataset

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nguyentantai21042004/triage-synth/internal/logger"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadOrdersByNumericPrefix(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "10e.json", `{"call_id":"10","summary":{"text":["ten"],"key_words":["k"]}}`)
	writeFile(t, dir, "2e.json", `{"call_id":"2","summary":{"text":["two"],"key_words":["k"]}}`)
	writeFile(t, dir, "1e.json", `{"call_id":"1","summary":{"text":"one","key_words":["k"]}}`)
	writeFile(t, dir, "bad e.json", `{not json`)
	writeFile(t, dir, "notes.txt", `ignored`)

	items, err := Load(context.Background(), dir, "*e.json", logger.NewNop())
	require.NoError(t, err)
	require.Len(t, items, 3)

	var ids []string
	for _, it := range items {
		ids = append(ids, it.Record.CallID)
	}
	assert.Equal(t, []string{"1", "2", "10"}, ids)
	assert.Equal(t, Sentences{"one"}, items[0].Record.Summary.Text)
}

func TestLoadMissingDir(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope"), "*e.json", logger.NewNop())
	assert.Error(t, err)
}

func TestItemHasField(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "1e.json", `{"call_id":"1","transcription":[],"summary":{"text":[],"key_words":[]}}`)

	item, err := ReadItem(p)
	require.NoError(t, err)
	// present but empty still counts as already processed
	assert.True(t, item.HasField("transcription"))
	assert.False(t, item.HasField("participants"))
	assert.Empty(t, item.Record.Transcription)
}

func TestSaveNumbered(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "3e.json", `{}`)
	writeFile(t, dir, "7e.json", `{}`)
	writeFile(t, dir, "draft-e.json", `{}`)

	now := time.UnixMilli(1_700_000_000_000)
	records := []CallRecord{
		{CallID: "ignored", Summary: Summary{Text: Sentences{"Baby has fever <38.5°>."}, KeyWords: []string{"fever for two days"}}},
		{Summary: Summary{Text: Sentences{"Refuses puree."}, KeyWords: []string{"refuses to eat"}}},
	}

	paths, err := SaveNumbered(dir, "e.json", records, now)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "8e.json"), filepath.Join(dir, "9e.json")}, paths)

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	content := string(data)

	assert.True(t, strings.HasPrefix(content, "{\n  \"call_id\": \"8-record-1700000000008_ms\""), content)
	assert.Contains(t, content, "<38.5°>")
	assert.NotContains(t, content, "transcription")
	assert.NotContains(t, content, "participants")

	var back CallRecord
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, []string{"fever for two days"}, back.Summary.KeyWords)
}

func TestSaveNumberedCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out", "nested")
	paths, err := SaveNumbered(dir, "e.json", []CallRecord{{}}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "1e.json")}, paths)
}

func TestWriteBackAtomic(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "1e.json", `{"call_id":"1-record-1_ms","summary":{"text":["a"],"key_words":["k"]}}`)

	item, err := ReadItem(p)
	require.NoError(t, err)
	turns := []Turn{{Speaker: "NURSE", Text: "Hello"}, {Speaker: "CALLER", Text: "Hi"}}
	require.NoError(t, WriteBack(item, turns))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file must not be left behind")

	got, err := ReadItem(p)
	require.NoError(t, err)
	want := CallRecord{
		CallID:        "1-record-1_ms",
		Participants:  []string{"NURSE", "CALLER"},
		Transcription: turns,
		Summary:       Summary{Text: Sentences{"a"}, KeyWords: []string{"k"}},
	}
	if diff := cmp.Diff(want, got.Record); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}

	var keys []string
	dec := json.NewDecoder(strings.NewReader(mustRead(t, p)))
	_, _ = dec.Token()
	for dec.More() {
		tok, err := dec.Token()
		require.NoError(t, err)
		keys = append(keys, tok.(string))
		var skip json.RawMessage
		require.NoError(t, dec.Decode(&skip))
	}
	assert.Equal(t, []string{"call_id", "participants", "transcription", "summary"}, keys)
}

func TestWriteBackKeepsSummaryVerbatim(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "3e.json", `{
  "call_id": "3-record-3_ms",
  "summary": {"text": "Infant with green stool.", "key_words": ["green stool"], "urgency": "high"}
}`)

	item, err := ReadItem(p)
	require.NoError(t, err)
	require.NoError(t, WriteBack(item, []Turn{{Speaker: "NURSE", Text: "Hello"}}))

	var got struct {
		Summary map[string]any `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(mustRead(t, p)), &got))
	assert.Equal(t, map[string]any{
		"text":      "Infant with green stool.",
		"key_words": []any{"green stool"},
		"urgency":   "high",
	}, got.Summary)
}

func mustRead(t *testing.T, p string) string {
	t.Helper()
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	return string(data)
}

func TestKeywordsFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "data", "keywords.json")

	_, err := LoadKeywords(p)
	assert.ErrorIs(t, err, ErrNoInput)

	require.NoError(t, SaveKeywords(p, []string{"fever for two days", "refuses to eat"}))
	got, err := LoadKeywords(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"fever for two days", "refuses to eat"}, got)

	require.NoError(t, SaveKeywords(p, nil))
	_, err = LoadKeywords(p)
	assert.ErrorIs(t, err, ErrNoInput)

	bad := writeFile(t, dir, "bad.json", `[`)
	_, err = LoadKeywords(bad)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoInput)
}

func TestSentencesUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Sentences
		wantErr bool
	}{
		{name: "list", input: `["a","b"]`, want: Sentences{"a", "b"}},
		{name: "string", input: `"single line"`, want: Sentences{"single line"}},
		{name: "empty string", input: `""`, want: nil},
		{name: "null", input: `null`, want: nil},
		{name: "number", input: `12`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Sentences
			err := json.Unmarshal([]byte(tt.input), &s)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, s)
		})
	}
}

func TestParticipants(t *testing.T) {
	turns := []Turn{
		{Speaker: "NURSE", Text: "How long has the fever lasted?"},
		{Speaker: "CALLER", Text: "Two days."},
		{Speaker: "NURSE", Text: "Any vomiting?"},
		{Speaker: "", Text: "(line noise)"},
		{Speaker: "DOCTOR", Text: "I'll take over."},
	}
	assert.Equal(t, []string{"NURSE", "CALLER", "DOCTOR"}, Participants(turns))
	assert.Nil(t, Participants(nil))
}
