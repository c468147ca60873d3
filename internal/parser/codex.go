package parser

import (
	"bufio"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/shshwtsuthar/echovault/internal/model"
)

// codexParser parses Codex CLI rollout transcripts: one JSON object per
// line, each a turn with a "role"/"type" and "content"/"text" field.
// Grounded on original apps/core/src/extractors/codex.rs's rollout schema.
type codexParser struct{}

func newCodexParser() *codexParser { return &codexParser{} }

func (c *codexParser) SourceName() string { return "codex" }

func (c *codexParser) CanParse(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".jsonl") && strings.HasPrefix(filepath.Base(path), "rollout-")
}

func (c *codexParser) Parse(fs afero.Fs, path string) (model.Conversation, error) {
	f, err := fs.Open(path)
	if err != nil {
		return model.Conversation{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	conv := model.Conversation{ID: baseNameNoExt(path), Source: "codex"}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(line, &fields); err != nil {
			continue
		}
		roleRaw := firstStringField(fields, "role", "type")
		content := firstStringField(fields, "content", "text", "message")
		ts := parseAnyTimestamp(fields["timestamp"])
		if ts == nil {
			ts = parseAnyTimestamp(fields["ts"])
		}

		if roleRaw == "" && content == "" {
			continue
		}
		role := model.NormalizeRole(roleRaw)
		if role == model.RoleInfo {
			content = model.AnnotateInfo(roleRaw, content)
		}
		conv.Messages = append(conv.Messages, model.Message{
			Role:      role,
			Content:   content,
			Timestamp: ts,
		})
		if conv.CreatedAt == nil && ts != nil {
			conv.CreatedAt = ts
		}
		if ts != nil {
			conv.UpdatedAt = ts
		}
	}
	if err := sc.Err(); err != nil {
		return model.Conversation{}, fmt.Errorf("scan %s: %w", path, err)
	}

	for _, m := range conv.Messages {
		if m.Role == model.RoleUser && strings.TrimSpace(m.Content) != "" {
			conv.Title = model.TruncateTitle(firstLine(m.Content), 80)
			break
		}
	}
	if conv.Title == "" {
		conv.Title = baseNameNoExt(path)
	}
	return conv, nil
}
