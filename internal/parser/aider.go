package parser

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/shshwtsuthar/echovault/internal/model"
)

// aiderTimestampLayout mirrors the original apps/core/src/parsers/aider.rs
// "# aider chat started at <ts>" header format.
const aiderTimestampLayout = "2006-01-02 15:04:05"

// aiderParser parses Aider's running Markdown chat history: a sequence of
// "# aider chat started at ..." session headers, each followed by
// "#### <user turn>" lines and plain-text assistant responses.
type aiderParser struct{}

func newAiderParser() *aiderParser { return &aiderParser{} }

func (a *aiderParser) SourceName() string { return "aider" }

func (a *aiderParser) CanParse(path string) bool {
	return strings.HasSuffix(path, ".chat.history.md") || strings.HasSuffix(path, ".md")
}

func (a *aiderParser) Parse(fs afero.Fs, path string) (model.Conversation, error) {
	f, err := fs.Open(path)
	if err != nil {
		return model.Conversation{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	conv := model.Conversation{ID: baseNameNoExt(path), Source: "aider"}
	var pendingAssistant strings.Builder

	flushAssistant := func() {
		text := strings.TrimSpace(pendingAssistant.String())
		if text != "" {
			conv.Messages = append(conv.Messages, model.Message{Role: model.RoleAssistant, Content: text})
		}
		pendingAssistant.Reset()
	}

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "# aider chat started at "):
			flushAssistant()
			ts := strings.TrimPrefix(line, "# aider chat started at ")
			if t, err := time.Parse(aiderTimestampLayout, ts); err == nil {
				if conv.CreatedAt == nil {
					conv.CreatedAt = &t
				}
				conv.UpdatedAt = &t
			}
		case strings.HasPrefix(line, "#### "):
			flushAssistant()
			turn := strings.TrimSpace(strings.TrimPrefix(line, "#### "))
			turn = strings.TrimPrefix(turn, "/ask ")
			turn = strings.TrimPrefix(turn, "/code ")
			conv.Messages = append(conv.Messages, model.Message{Role: model.RoleUser, Content: turn})
			if conv.Title == "" {
				conv.Title = model.TruncateTitle(turn, 80)
			}
		default:
			pendingAssistant.WriteString(line)
			pendingAssistant.WriteByte('\n')
		}
	}
	flushAssistant()
	if err := sc.Err(); err != nil {
		return model.Conversation{}, fmt.Errorf("scan %s: %w", path, err)
	}
	if conv.Title == "" {
		conv.Title = baseNameNoExt(path)
	}
	return conv, nil
}
