package extractor

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestCopyIncremental_SkipsWhenCurrent(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/session.json", []byte(`{"title":"hi"}`), 0o644))
	info, err := fs.Stat("/src/session.json")
	require.NoError(t, err)

	b := newBase(fs, "vscode-copilot")
	f := SessionFile{SourcePath: "/src/session.json", ModTime: info.ModTime(), Size: info.Size()}

	dest, err := b.copyIncremental(f, "/vault")
	require.NoError(t, err)
	require.Equal(t, "/vault/vscode-copilot/session.json", dest)

	// Second copy with unchanged size/mtime must be skipped (spec.md §8
	// invariant 2: copy idempotence).
	dest2, err := b.copyIncremental(f, "/vault")
	require.NoError(t, err)
	require.Empty(t, dest2)
}

func TestCopyIncremental_RecopiesWhenNewer(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/session.json", []byte(`{}`), 0o644))
	b := newBase(fs, "vscode-copilot")

	old := SessionFile{SourcePath: "/src/session.json", ModTime: time.Unix(1000, 0), Size: 2}
	_, err := b.copyIncremental(old, "/vault")
	require.NoError(t, err)

	// The vault copy's mtime is the time of the first copy, so "newer" must
	// be later than that, not merely later than the first call's ModTime.
	newer := SessionFile{SourcePath: "/src/session.json", ModTime: time.Now().Add(time.Hour), Size: 2}
	dest, err := b.copyIncremental(newer, "/vault")
	require.NoError(t, err)
	require.NotEmpty(t, dest)
}

func TestAiderExtractHistory_StripsAskPrefix(t *testing.T) {
	fs := afero.NewMemMapFs()
	content := "# aider chat started at 2024-03-01 10:00:00\n\n#### /ask How do I implement this?\n\nSome response.\n"
	require.NoError(t, afero.WriteFile(fs, "/proj/.aider-history/.aider.chat.history.md", []byte(content), 0o644))
	info, err := fs.Stat("/proj/.aider-history/.aider.chat.history.md")
	require.NoError(t, err)

	a := newAider(fs)
	sf, ok, err := a.extractHistory(fs, "/proj/.aider-history/.aider.chat.history.md", info)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "How do I implement this?", sf.Title)
	require.NotNil(t, sf.CreatedAt)
	require.Equal(t, 2024, sf.CreatedAt.Year())
}

func TestJetBrainsExtractor_RequiresComponentMarker(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/cfg/ws1/workspace/workspace.xml", []byte(`<project><component name="Unrelated"/></project>`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/cfg/ws2/workspace/workspace.xml", []byte(`<project><component name="AiAssistantHistory"/></project>`), 0o644))

	j := newJetBrains(fs)
	files, err := j.ListSessionFiles(context.Background(), "/cfg")
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "ws2", files[0].ID)
}
