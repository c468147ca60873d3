package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// jsonScanner is the shared discovery+metadata-scan engine behind every
// JSON/JSONL-backed producer (VS Code family, Cursor, Cline, Claude Code,
// Continue.dev, Gemini CLI, Antigravity, OpenCode, Zed). Each producer only
// supplies a file predicate and a per-file metadata extractor; the walking,
// parallel scan, and newest-first ordering are shared, per spec.md §4.B's
// "cheap-path extraction only" and "scanning ... runs in parallel" notes.
type jsonScanner struct {
	fs      afero.Fs
	match   func(path string, info os.FileInfo) bool
	extract func(fs afero.Fs, path string, info os.FileInfo) (SessionFile, bool, error)
}

func (s jsonScanner) scan(ctx context.Context, location string) ([]SessionFile, error) {
	var paths []string
	var infos []os.FileInfo
	err := afero.Walk(s.fs, location, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // per-entry stat errors are skipped, not fatal to the walk
		}
		if info.IsDir() {
			return nil
		}
		if s.match(path, info) {
			paths = append(paths, path)
			infos = append(infos, info)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	files := parallelScan(paths, nil, func(path string) (SessionFile, bool, error) {
		var info os.FileInfo
		for i, p := range paths {
			if p == path {
				info = infos[i]
				break
			}
		}
		return s.extract(s.fs, path, info)
	})
	sortNewestFirst(files)
	return files, nil
}

// firstNLines reads at most n lines from path, bounding memory use on large
// JSONL transcripts per spec.md §4.B ("first 30 lines").
func firstNLines(fs afero.Fs, path string, n int) ([]string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, 0, 64*1024)
	chunk := make([]byte, 4096)
	lines := make([]string, 0, n)
	for len(lines) < n {
		nr, err := f.Read(chunk)
		if nr > 0 {
			buf = append(buf, chunk[:nr]...)
			for {
				idx := indexByte(buf, '\n')
				if idx < 0 {
					break
				}
				lines = append(lines, string(buf[:idx]))
				buf = buf[idx+1:]
				if len(lines) >= n {
					break
				}
			}
		}
		if err != nil {
			if len(buf) > 0 && len(lines) < n {
				lines = append(lines, string(buf))
			}
			break
		}
	}
	return lines, nil
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}

// jsonField is a minimal helper for peeking at a handful of known keys of a
// JSON object without decoding the whole document into a generic map.
type jsonField struct {
	Title       *string         `json:"title"`
	Summary     *string         `json:"summary"`
	Name        *string         `json:"name"`
	ID          *string         `json:"id"`
	SessionID   *string         `json:"sessionId"`
	CreatedAt   json.RawMessage `json:"createdAt"`
	Timestamp   json.RawMessage `json:"timestamp"`
	RequesterID *string         `json:"requesterUsername"`
	Requests    json.RawMessage `json:"requests"`
	Workspace   *string         `json:"workspace"`
}

func (j jsonField) title() string {
	for _, p := range []*string{j.Title, j.Summary, j.Name} {
		if p != nil && strings.TrimSpace(*p) != "" {
			return strings.TrimSpace(*p)
		}
	}
	return ""
}

func (j jsonField) id() string {
	for _, p := range []*string{j.ID, j.SessionID} {
		if p != nil && *p != "" {
			return *p
		}
	}
	return ""
}

// parseTimestamp accepts either an RFC3339 string or a Unix millis number.
func parseTimestamp(raw json.RawMessage) *time.Time {
	if len(raw) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return &t
		}
	}
	var ms int64
	if err := json.Unmarshal(raw, &ms); err == nil && ms > 0 {
		t := time.UnixMilli(ms).UTC()
		return &t
	}
	return nil
}

func hasSuffix(name string, suffixes ...string) bool {
	for _, sfx := range suffixes {
		if strings.HasSuffix(name, sfx) {
			return true
		}
	}
	return false
}

func joinAll(parts ...string) string { return filepath.Join(parts...) }

// jsonUnmarshalLenient decodes a single JSON object, tolerating trailing
// garbage after the first value (some producers append newline-delimited
// diagnostics after the JSON body).
func jsonUnmarshalLenient(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	return dec.Decode(v)
}

