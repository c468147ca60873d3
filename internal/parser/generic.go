package parser

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/shshwtsuthar/echovault/internal/model"
)

// messageShape describes how one producer's JSON session file lays out its
// message list, letting a single genericJSONParser body serve every
// producer whose storage is "one JSON object, one array of turns" (VS Code
// family, Cursor, Cline, Claude Code, Gemini CLI, Continue.dev, Antigravity,
// OpenCode, Zed) — each with its own field names but identical shape.
// CanParse accepts only .json files, so the .jsonl transcripts the
// claude-code extractor copies into the vault are not parsed by it.
type messageShape struct {
	arrayField     []string // candidate keys for the message/turn array
	roleField      []string
	contentField   []string
	timestampField []string
	toolNameField  []string
	modelField     []string
}

var vscodeMessageShape = messageShape{
	arrayField:     []string{"requests"},
	roleField:      []string{"role", "kind"},
	contentField:   []string{"message", "response", "text", "content"},
	timestampField: []string{"timestamp"},
	modelField:     []string{"model"},
}

var clineMessageShape = messageShape{
	arrayField:     []string{"messages", "history"},
	roleField:      []string{"role"},
	contentField:   []string{"content", "text"},
	timestampField: []string{"ts", "timestamp"},
	toolNameField:  []string{"tool", "tool_name"},
}

var claudeCodeMessageShape = messageShape{
	arrayField:     []string{"messages"},
	roleField:      []string{"role", "type"},
	contentField:   []string{"content", "text"},
	timestampField: []string{"timestamp"},
	modelField:     []string{"model"},
	toolNameField:  []string{"tool_name", "name"},
}

var geminiMessageShape = messageShape{
	arrayField:     []string{"messages", "turns"},
	roleField:      []string{"role", "author"},
	contentField:   []string{"content", "text", "parts"},
	timestampField: []string{"timestamp"},
}

var continueMessageShape = messageShape{
	arrayField:     []string{"history", "messages"},
	roleField:      []string{"role"},
	contentField:   []string{"content", "message"},
	timestampField: []string{"timestamp"},
}

type genericJSONParser struct {
	name  string
	shape messageShape
}

func newGenericJSONParser(name string, shape messageShape) *genericJSONParser {
	return &genericJSONParser{name: name, shape: shape}
}

func (g *genericJSONParser) SourceName() string { return g.name }

func (g *genericJSONParser) CanParse(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

func (g *genericJSONParser) Parse(fs afero.Fs, path string) (model.Conversation, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return model.Conversation{}, fmt.Errorf("read %s: %w", path, err)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return model.Conversation{}, fmt.Errorf("parse %s: %w", path, err)
	}

	conv := model.Conversation{
		ID:     baseNameNoExt(path),
		Source: g.name,
		Title:  model.TruncateTitle(firstStringField(top, "title", "summary", "name"), 80),
	}
	if ts := parseAnyTimestamp(top["createdAt"]); ts != nil {
		conv.CreatedAt = ts
	}
	if ts := parseAnyTimestamp(top["updatedAt"]); ts != nil {
		conv.UpdatedAt = ts
	}

	var arr []json.RawMessage
	for _, key := range g.shape.arrayField {
		if raw, ok := top[key]; ok {
			_ = json.Unmarshal(raw, &arr)
			if len(arr) > 0 {
				break
			}
		}
	}

	for _, rawTurn := range arr {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(rawTurn, &fields); err != nil {
			continue
		}
		roleRaw := firstStringField(fields, g.shape.roleField...)
		content := firstStringField(fields, g.shape.contentField...)
		toolName := firstStringField(fields, g.shape.toolNameField...)
		modelName := firstStringField(fields, g.shape.modelField...)
		var ts *time.Time
		for _, k := range g.shape.timestampField {
			if raw, ok := fields[k]; ok {
				if t := parseAnyTimestamp(raw); t != nil {
					ts = t
					break
				}
			}
		}

		role := model.NormalizeRole(roleRaw)
		if toolName != "" {
			role = model.RoleTool
		}
		if role == model.RoleInfo {
			content = model.AnnotateInfo(roleRaw, content)
		}
		conv.Messages = append(conv.Messages, model.Message{
			Role:      role,
			Content:   content,
			Timestamp: ts,
			ToolName:  toolName,
			Model:     modelName,
		})
	}

	if conv.Title == "" && len(conv.Messages) > 0 {
		for _, m := range conv.Messages {
			if m.Role == model.RoleUser && strings.TrimSpace(m.Content) != "" {
				conv.Title = model.TruncateTitle(firstLine(m.Content), 80)
				break
			}
		}
	}
	if conv.Title == "" {
		conv.Title = baseNameNoExt(path)
	}

	return conv, nil
}

func firstStringField(m map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		raw, ok := m[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}

func parseAnyTimestamp(raw json.RawMessage) *time.Time {
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

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

func baseNameNoExt(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
