package extractor

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/shshwtsuthar/echovault/internal/platform"
)

// jetbrainsComponentMarkers are the <component name="..."> values the
// original apps/core/src/extractors/jetbrains.rs recognizes as carrying AI
// Assistant chat history inside a workspace.xml.
var jetbrainsComponentMarkers = [][]byte{
	[]byte(`name="AiAssistantConversation"`),
	[]byte(`name="ChatSessionStateTemp"`),
	[]byte(`name="AiAssistantHistory"`),
}

// jetBrains scans JetBrains IDE config roots for per-workspace XML files
// carrying one of the known AI Assistant component markers.
type jetBrains struct{ base }

func newJetBrains(fs afero.Fs) *jetBrains { return &jetBrains{base: newBase(fs, "jetbrains")} }

func (j *jetBrains) FindStorageLocations(res *platform.Resolver) []string {
	var out []string
	for _, rel := range []string{
		filepath.Join("Library", "Application Support", "JetBrains"),
		filepath.Join("AppData", "Roaming", "JetBrains"),
		filepath.Join(".config", "JetBrains"),
	} {
		out = append(out, res.Candidates("JETBRAINS_CONFIG", rel)...)
	}
	return out
}

func (j *jetBrains) WorkspaceName(location string) string { return filepath.Base(location) }

func (j *jetBrains) ListSessionFiles(ctx context.Context, location string) ([]SessionFile, error) {
	scanner := jsonScanner{
		fs: j.fs,
		match: func(path string, info os.FileInfo) bool {
			return filepath.Base(filepath.Dir(path)) == "workspace" && hasSuffix(path, ".xml")
		},
		extract: j.extractWorkspaceXML,
	}
	return scanner.scan(ctx, location)
}

func (j *jetBrains) extractWorkspaceXML(fs afero.Fs, path string, info os.FileInfo) (SessionFile, bool, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return SessionFile{}, false, err
	}
	matched := false
	for _, marker := range jetbrainsComponentMarkers {
		if bytes.Contains(data, marker) {
			matched = true
			break
		}
	}
	if !matched {
		return SessionFile{}, false, nil
	}
	sf := SessionFile{
		SourcePath: path,
		ID:         filepath.Base(filepath.Dir(filepath.Dir(path))),
		Title:      filepath.Base(filepath.Dir(filepath.Dir(path))),
	}
	if info != nil {
		sf.ModTime = info.ModTime()
		sf.Size = info.Size()
	}
	sf.CreatedAt = &sf.ModTime
	return sf, true, nil
}

func (j *jetBrains) CopyToVault(f SessionFile, vaultDir string) (string, error) {
	return j.copyIncremental(f, vaultDir)
}
