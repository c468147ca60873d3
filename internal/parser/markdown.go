package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shshwtsuthar/echovault/internal/model"
)

// WriteMarkdown renders conv as the stable Markdown-with-frontmatter
// document of spec.md §4.C/§6: a YAML frontmatter block with keys in fixed
// order, followed by one "## <Role>" section per message. Grounded on the
// original apps/core/src/parsers/markdown_writer.rs.
func WriteMarkdown(conv model.Conversation) string {
	var b strings.Builder

	b.WriteString("---\n")
	fmt.Fprintf(&b, "id: %s\n", conv.ID)
	fmt.Fprintf(&b, "source: %s\n", conv.Source)
	if conv.Title != "" {
		fmt.Fprintf(&b, "title: %s\n", quoteYAML(conv.Title))
	}
	if conv.Workspace != "" {
		fmt.Fprintf(&b, "workspace: %s\n", quoteYAML(conv.Workspace))
	}
	if conv.CreatedAt != nil {
		fmt.Fprintf(&b, "created_at: %s\n", conv.CreatedAt.UTC().Format(rfc3339))
	}
	if conv.UpdatedAt != nil {
		fmt.Fprintf(&b, "updated_at: %s\n", conv.UpdatedAt.UTC().Format(rfc3339))
	}
	if conv.Model != "" {
		fmt.Fprintf(&b, "model: %s\n", conv.Model)
	}
	if len(conv.Tags) > 0 {
		fmt.Fprintf(&b, "tags: [%s]\n", strings.Join(conv.Tags, ", "))
	}
	fmt.Fprintf(&b, "message_count: %d\n", len(conv.Messages))
	fmt.Fprintf(&b, "user_messages: %d\n", conv.CountByRole(model.RoleUser))
	fmt.Fprintf(&b, "assistant_messages: %d\n", conv.CountByRole(model.RoleAssistant))
	b.WriteString("---\n\n")

	for _, m := range conv.Messages {
		b.WriteString(sectionHeading(m))
		b.WriteString("\n\n")
		content := strings.TrimSpace(m.Content)
		if content == "" {
			content = "*(empty)*"
		}
		b.WriteString(content)
		b.WriteString("\n\n")
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

const rfc3339 = "2006-01-02T15:04:05Z07:00"

// Frontmatter is the decoded form of a WriteMarkdown document's YAML
// frontmatter block.
type Frontmatter struct {
	ID                string
	Source            string
	Title             string
	Workspace         string
	CreatedAt         *time.Time
	UpdatedAt         *time.Time
	Model             string
	Tags              []string
	MessageCount      int
	UserMessages      int
	AssistantMessages int
}

// ParseFrontmatter recovers every key WriteMarkdown wrote from doc's
// frontmatter block, the read-side counterpart spec.md §4.C's round-trip
// invariant requires. Grounded on the original
// apps/core/src/parsers/markdown_writer.rs's paired writer/reader.
func ParseFrontmatter(doc string) (Frontmatter, error) {
	const open = "---\n"
	if !strings.HasPrefix(doc, open) {
		return Frontmatter{}, fmt.Errorf("parse frontmatter: missing opening \"---\"")
	}
	rest := doc[len(open):]
	end := strings.Index(rest, "\n---\n")
	if end < 0 {
		return Frontmatter{}, fmt.Errorf("parse frontmatter: missing closing \"---\"")
	}
	block := rest[:end]

	var fm Frontmatter
	for _, line := range strings.Split(block, "\n") {
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		switch key {
		case "id":
			fm.ID = value
		case "source":
			fm.Source = value
		case "title":
			s, err := unquoteYAML(value)
			if err != nil {
				return Frontmatter{}, fmt.Errorf("parse frontmatter title: %w", err)
			}
			fm.Title = s
		case "workspace":
			s, err := unquoteYAML(value)
			if err != nil {
				return Frontmatter{}, fmt.Errorf("parse frontmatter workspace: %w", err)
			}
			fm.Workspace = s
		case "created_at":
			t, err := time.Parse(rfc3339, value)
			if err != nil {
				return Frontmatter{}, fmt.Errorf("parse frontmatter created_at: %w", err)
			}
			fm.CreatedAt = &t
		case "updated_at":
			t, err := time.Parse(rfc3339, value)
			if err != nil {
				return Frontmatter{}, fmt.Errorf("parse frontmatter updated_at: %w", err)
			}
			fm.UpdatedAt = &t
		case "model":
			fm.Model = value
		case "tags":
			inner := strings.TrimSuffix(strings.TrimPrefix(value, "["), "]")
			if inner != "" {
				fm.Tags = strings.Split(inner, ", ")
			}
		case "message_count":
			n, err := strconv.Atoi(value)
			if err != nil {
				return Frontmatter{}, fmt.Errorf("parse frontmatter message_count: %w", err)
			}
			fm.MessageCount = n
		case "user_messages":
			n, err := strconv.Atoi(value)
			if err != nil {
				return Frontmatter{}, fmt.Errorf("parse frontmatter user_messages: %w", err)
			}
			fm.UserMessages = n
		case "assistant_messages":
			n, err := strconv.Atoi(value)
			if err != nil {
				return Frontmatter{}, fmt.Errorf("parse frontmatter assistant_messages: %w", err)
			}
			fm.AssistantMessages = n
		}
	}
	return fm, nil
}

// unquoteYAML reverses quoteYAML's escaping.
func unquoteYAML(s string) (string, error) {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return "", fmt.Errorf("value not double-quoted: %q", s)
	}
	inner := s[1 : len(s)-1]
	var b strings.Builder
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		if c == '\\' && i+1 < len(inner) {
			i++
			b.WriteByte(inner[i])
			continue
		}
		b.WriteByte(c)
	}
	return b.String(), nil
}

func sectionHeading(m model.Message) string {
	var heading string
	switch m.Role {
	case model.RoleTool:
		name := m.ToolName
		if name == "" {
			name = "unknown"
		}
		heading = "## Tool: " + name
	default:
		heading = "## " + roleTitle(m.Role)
		if m.Role == model.RoleAssistant && m.Model != "" {
			heading += " (" + m.Model + ")"
		}
	}
	if m.Timestamp != nil {
		heading += " <small>" + m.Timestamp.UTC().Format("15:04:05") + "</small>"
	}
	return heading
}

func roleTitle(r model.Role) string {
	switch r {
	case model.RoleUser:
		return "User"
	case model.RoleAssistant:
		return "Assistant"
	case model.RoleSystem:
		return "System"
	case model.RoleInfo:
		return "Info"
	default:
		return "Info"
	}
}

// quoteYAML wraps s in double quotes, escaping backslash and double-quote
// characters, per spec.md §4.C's Markdown emission rule.
func quoteYAML(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
