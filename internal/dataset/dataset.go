package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nguyentantai21042004/triage-synth/internal/logger"
)

// ErrNoInput means the upstream collection for a stage is absent or empty.
var ErrNoInput = errors.New("no input")

// Item is one loaded record file. Fields keeps the raw top-level keys so
// callers can test for presence independently of the typed view.
type Item struct {
	Path   string
	Record CallRecord
	Fields map[string]json.RawMessage
}

// HasField reports whether the file carried the top-level key.
func (it Item) HasField(name string) bool {
	_, ok := it.Fields[name]
	return ok
}

// Load reads every file in dir matching pattern. The directory must exist.
// Files are ordered by numeric prefix, then by name. Files that fail to
// decode are logged and skipped.
func Load(ctx context.Context, dir, pattern string, l logger.Logger) ([]Item, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("data dir %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data dir %s: not a directory", dir)
	}

	paths, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	sortByPrefix(paths)

	items := make([]Item, 0, len(paths))
	for _, p := range paths {
		item, err := ReadItem(p)
		if err != nil {
			l.Warn(ctx, "Skipping %s: %v", p, err)
			continue
		}
		items = append(items, item)
	}

	l.Info(ctx, "Loaded %d files from %s", len(items), dir)
	return items, nil
}

// ReadItem decodes a single record file.
func ReadItem(path string) (Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Item{}, err
	}

	item := Item{Path: path}
	if err := json.Unmarshal(data, &item.Fields); err != nil {
		return Item{}, fmt.Errorf("decode: %w", err)
	}
	if err := json.Unmarshal(data, &item.Record); err != nil {
		return Item{}, fmt.Errorf("decode record: %w", err)
	}
	return item, nil
}

// SaveNumbered writes one file per record, continuing from the highest
// numeric prefix already present in dir. Each record gets a fresh call_id.
// It returns the written paths in order.
func SaveNumbered(dir, suffix string, records []CallRecord, now time.Time) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	next, err := NextIndex(dir, suffix)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(records))
	for i, rec := range records {
		n := next + i
		rec.CallID = fmt.Sprintf("%d-record-%d_ms", n, now.UnixMilli()+int64(n))

		path := filepath.Join(dir, strconv.Itoa(n)+suffix)
		if err := writeJSON(path, rec); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// NextIndex returns one past the highest N among files named "<N><suffix>".
func NextIndex(dir, suffix string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 1, nil
		}
		return 0, fmt.Errorf("read output dir: %w", err)
	}

	highest := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, suffix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(name, suffix))
		if err != nil || n < 0 {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest + 1, nil
}

// transcribedRecord is the write-back shape. The summary is carried as the
// raw bytes read from disk so keys and value types survive unchanged.
type transcribedRecord struct {
	CallID        string          `json:"call_id"`
	Participants  []string        `json:"participants"`
	Transcription []Turn          `json:"transcription"`
	Summary       json.RawMessage `json:"summary"`
}

// WriteBack atomically replaces item's file with the record completed by
// turns. The item's summary is written back exactly as it was read.
func WriteBack(item Item, turns []Turn) error {
	summary, ok := item.Fields["summary"]
	if !ok {
		raw, err := json.Marshal(item.Record.Summary)
		if err != nil {
			return fmt.Errorf("encode summary: %w", err)
		}
		summary = raw
	}
	return writeJSON(item.Path, transcribedRecord{
		CallID:        item.Record.CallID,
		Participants:  Participants(turns),
		Transcription: turns,
		Summary:       summary,
	})
}

type keywordsFile struct {
	Keywords []string `json:"keywords"`
}

// LoadKeywords reads the keyword list. A missing file or an empty list is
// reported as ErrNoInput.
func LoadKeywords(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("keywords file %s not found: %w", path, ErrNoInput)
		}
		return nil, fmt.Errorf("read keywords: %w", err)
	}

	var kf keywordsFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("decode keywords %s: %w", path, err)
	}
	if len(kf.Keywords) == 0 {
		return nil, fmt.Errorf("keywords file %s is empty: %w", path, ErrNoInput)
	}
	return kf.Keywords, nil
}

func SaveKeywords(path string, keywords []string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create keywords dir: %w", err)
		}
	}
	return writeJSON(path, keywordsFile{Keywords: keywords})
}

// writeJSON encodes v with two-space indentation and no HTML escaping, then
// moves it into place with a rename from a hidden temp file in the same dir.
func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func sortByPrefix(paths []string) {
	sort.SliceStable(paths, func(i, j int) bool {
		a, b := filepath.Base(paths[i]), filepath.Base(paths[j])
		na, okA := numericPrefix(a)
		nb, okB := numericPrefix(b)
		switch {
		case okA && okB && na != nb:
			return na < nb
		case okA != okB:
			return okA
		default:
			return a < b
		}
	})
}

func numericPrefix(name string) (int, bool) {
	end := 0
	for end < len(name) && name[end] >= '0' && name[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(name[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
