package parser

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/shshwtsuthar/echovault/internal/model"
)

func TestWriteMarkdown_FrontmatterKeyOrder(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	conv := model.Conversation{
		ID:        "abc",
		Source:    "codex",
		Title:     `a "quoted" \ title`,
		Workspace: "my workspace",
		CreatedAt: &created,
		Model:     "gpt-5",
		Tags:      []string{"a", "b"},
		Messages: []model.Message{
			{Role: model.RoleUser, Content: "hello"},
			{Role: model.RoleAssistant, Content: "hi there", Model: "gpt-5"},
		},
	}

	out := WriteMarkdown(conv)
	require.True(t, strings.HasPrefix(out, "---\nid: abc\nsource: codex\n"))
	require.Contains(t, out, `title: "a \"quoted\" \\ title"`)
	require.Contains(t, out, `workspace: "my workspace"`)
	require.Contains(t, out, "created_at: 2024-01-02T03:04:05Z")
	require.Contains(t, out, "tags: [a, b]")
	require.Contains(t, out, "message_count: 2")
	require.Contains(t, out, "user_messages: 1")
	require.Contains(t, out, "assistant_messages: 1")
	require.Contains(t, out, "## User")
	require.Contains(t, out, "## Assistant (gpt-5)")
}

func TestWriteMarkdown_EmptyContentSentinel(t *testing.T) {
	conv := model.Conversation{
		ID: "x", Source: "aider",
		Messages: []model.Message{{Role: model.RoleUser, Content: "   "}},
	}
	out := WriteMarkdown(conv)
	require.Contains(t, out, "*(empty)*")
}

func TestParseFrontmatter_RoundTripsWriteMarkdown(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	updated := time.Date(2024, 1, 2, 4, 0, 0, 0, time.UTC)
	conv := model.Conversation{
		ID:        "abc",
		Source:    "codex",
		Title:     `a "quoted" \ title`,
		Workspace: "my workspace",
		CreatedAt: &created,
		UpdatedAt: &updated,
		Model:     "gpt-5",
		Tags:      []string{"a", "b"},
		Messages: []model.Message{
			{Role: model.RoleUser, Content: "hello"},
			{Role: model.RoleAssistant, Content: "hi there", Model: "gpt-5"},
		},
	}

	fm, err := ParseFrontmatter(WriteMarkdown(conv))
	require.NoError(t, err)
	require.Equal(t, conv.ID, fm.ID)
	require.Equal(t, conv.Source, fm.Source)
	require.Equal(t, conv.Title, fm.Title)
	require.Equal(t, conv.Workspace, fm.Workspace)
	require.True(t, conv.CreatedAt.Equal(*fm.CreatedAt))
	require.True(t, conv.UpdatedAt.Equal(*fm.UpdatedAt))
	require.Equal(t, conv.Model, fm.Model)
	require.Equal(t, conv.Tags, fm.Tags)
	require.Equal(t, len(conv.Messages), fm.MessageCount)
	require.Equal(t, conv.CountByRole(model.RoleUser), fm.UserMessages)
	require.Equal(t, conv.CountByRole(model.RoleAssistant), fm.AssistantMessages)
}

func TestParseFrontmatter_MissingDelimiterErrors(t *testing.T) {
	_, err := ParseFrontmatter("no frontmatter block here\n")
	require.Error(t, err)
}

func TestGenericJSONParser_ParsesVSCodeShape(t *testing.T) {
	fs := afero.NewMemMapFs()
	content := `{
		"requests": [
			{"role": "user", "message": "first question"},
			{"role": "assistant", "response": "an answer", "model": "gpt-5"}
		]
	}`
	require.NoError(t, afero.WriteFile(fs, "/vault/vscode-copilot/sess1.json", []byte(content), 0o644))

	p := newGenericJSONParser("vscode-copilot", vscodeMessageShape)
	conv, err := p.Parse(fs, "/vault/vscode-copilot/sess1.json")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	require.Equal(t, model.RoleUser, conv.Messages[0].Role)
	require.Equal(t, model.RoleAssistant, conv.Messages[1].Role)
	require.Equal(t, "first question", conv.Title)
}

func TestGenericJSONParser_AnnotatesErrorAndWarningContent(t *testing.T) {
	fs := afero.NewMemMapFs()
	content := `{
		"requests": [
			{"role": "error", "message": "disk full"},
			{"kind": "warning", "message": "deprecated flag"}
		]
	}`
	require.NoError(t, afero.WriteFile(fs, "/vault/vscode-copilot/sess2.json", []byte(content), 0o644))

	p := newGenericJSONParser("vscode-copilot", vscodeMessageShape)
	conv, err := p.Parse(fs, "/vault/vscode-copilot/sess2.json")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	require.Equal(t, model.RoleInfo, conv.Messages[0].Role)
	require.Equal(t, "**Error:** disk full", conv.Messages[0].Content)
	require.Equal(t, model.RoleInfo, conv.Messages[1].Role)
	require.Equal(t, "**Warning:** deprecated flag", conv.Messages[1].Content)
}

func TestAiderParser_StripsCommandPrefixFromTitle(t *testing.T) {
	fs := afero.NewMemMapFs()
	content := "# aider chat started at 2024-03-01 10:00:00\n\n#### /ask How do I implement this?\n\nSome response.\n"
	require.NoError(t, afero.WriteFile(fs, "/vault/aider/project.chat.history.md", []byte(content), 0o644))

	p := newAiderParser()
	conv, err := p.Parse(fs, "/vault/aider/project.chat.history.md")
	require.NoError(t, err)
	require.Equal(t, "How do I implement this?", conv.Title)
	require.False(t, conv.IsEmpty())
}
