package extractor

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/shshwtsuthar/echovault/internal/model"
	"github.com/shshwtsuthar/echovault/internal/platform"
)

// vscodeCopilotRelPaths / cursorRelPaths are the relative-to-$HOME storage
// roots named in spec.md §4.B's producer registry: both VS Code Copilot
// Chat and Cursor keep `workspaceStorage/<hash>/chatSessions/*.json`, just
// under distinct application-support roots.
var vscodeCopilotRelPaths = []string{
	filepath.Join("Library", "Application Support", "Code", "User", "workspaceStorage"),
	filepath.Join("AppData", "Roaming", "Code", "User", "workspaceStorage"),
	filepath.Join(".config", "Code", "User", "workspaceStorage"),
}

var cursorRelPaths = []string{
	filepath.Join("Library", "Application Support", "Cursor", "User", "workspaceStorage"),
	filepath.Join("AppData", "Roaming", "Cursor", "User", "workspaceStorage"),
	filepath.Join(".config", "Cursor", "User", "workspaceStorage"),
}

// vscodeFamily covers any producer whose storage is
// <root>/<workspace-hash>/chatSessions/*.json, one JSON object per session.
type vscodeFamily struct {
	base
	relPaths []string
	envVar   string
}

func newVSCodeFamily(fs afero.Fs, name string, relPaths []string) *vscodeFamily {
	return &vscodeFamily{base: newBase(fs, name), relPaths: relPaths}
}

func (v *vscodeFamily) FindStorageLocations(res *platform.Resolver) []string {
	var out []string
	for _, rel := range v.relPaths {
		out = append(out, res.Candidates("", rel)...)
	}
	return out
}

func (v *vscodeFamily) WorkspaceName(location string) string {
	return filepath.Base(filepath.Dir(location))
}

func (v *vscodeFamily) ListSessionFiles(ctx context.Context, location string) ([]SessionFile, error) {
	scanner := jsonScanner{
		fs: v.fs,
		match: func(path string, info os.FileInfo) bool {
			return filepath.Base(filepath.Dir(path)) == "chatSessions" && hasSuffix(path, ".json")
		},
		extract: func(fs afero.Fs, path string, info os.FileInfo) (SessionFile, bool, error) {
			return scanSingleJSONObject(fs, path, info)
		},
	}
	return scanner.scan(ctx, location)
}

func (v *vscodeFamily) CopyToVault(f SessionFile, vaultDir string) (string, error) {
	return v.copyIncremental(f, vaultDir)
}

// scanSingleJSONObject is the common metadata-scan body for producers that
// store one complete JSON object per session file.
func scanSingleJSONObject(fs afero.Fs, path string, info os.FileInfo) (SessionFile, bool, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return SessionFile{}, false, err
	}
	var jf jsonField
	_ = jsonUnmarshalLenient(data, &jf)

	id := jf.id()
	if id == "" {
		id = baseNameNoExt(path)
	}
	sf := SessionFile{
		SourcePath: path,
		ID:         id,
		Title:      truncateTitle(jf.title(), 80),
		CreatedAt:  parseTimestamp(firstNonEmpty(jf.CreatedAt, jf.Timestamp)),
	}
	if info != nil {
		sf.ModTime = info.ModTime()
		sf.Size = info.Size()
	}
	return sf, true, nil
}

func firstNonEmpty(candidates ...[]byte) []byte {
	for _, c := range candidates {
		if len(c) > 0 {
			return c
		}
	}
	return nil
}

func baseNameNoExt(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}

// --- Cline: per-task folder with api_conversation_history.json ---

type cline struct{ base }

func newCline(fs afero.Fs) *cline { return &cline{base: newBase(fs, "cline")} }

func (c *cline) FindStorageLocations(res *platform.Resolver) []string {
	rel := filepath.Join(".vscode-server", "data", "User", "globalStorage", "saoudrizwan.claude-dev", "tasks")
	alt := filepath.Join("AppData", "Roaming", "Code", "User", "globalStorage", "saoudrizwan.claude-dev", "tasks")
	out := res.Candidates("", rel)
	out = append(out, res.Candidates("", alt)...)
	return out
}

func (c *cline) WorkspaceName(location string) string { return filepath.Base(location) }

func (c *cline) ListSessionFiles(ctx context.Context, location string) ([]SessionFile, error) {
	scanner := jsonScanner{
		fs: c.fs,
		match: func(path string, info os.FileInfo) bool {
			return filepath.Base(path) == "api_conversation_history.json"
		},
		extract: func(fs afero.Fs, path string, info os.FileInfo) (SessionFile, bool, error) {
			sf, ok, err := scanSingleJSONObject(fs, path, info)
			if ok {
				sf.ID = filepath.Base(filepath.Dir(path))
				if sf.Title == "" {
					sf.Title = sf.ID
				}
			}
			return sf, ok, err
		},
	}
	return scanner.scan(ctx, location)
}

func (c *cline) CopyToVault(f SessionFile, vaultDir string) (string, error) {
	return c.copyIncremental(f, vaultDir)
}

// --- Claude Code: ~/.claude/projects/<project>/*.jsonl session transcripts ---

type claudeCode struct{ base }

func newClaudeCode(fs afero.Fs) *claudeCode { return &claudeCode{base: newBase(fs, "claude-code")} }

func (c *claudeCode) FindStorageLocations(res *platform.Resolver) []string {
	return res.Candidates("CLAUDE_CONFIG_DIR", filepath.Join(".claude", "projects"))
}

func (c *claudeCode) WorkspaceName(location string) string { return filepath.Base(location) }

func (c *claudeCode) ListSessionFiles(ctx context.Context, location string) ([]SessionFile, error) {
	scanner := jsonScanner{
		fs: c.fs,
		match: func(path string, info os.FileInfo) bool {
			return hasSuffix(path, ".jsonl")
		},
		extract: func(fs afero.Fs, path string, info os.FileInfo) (SessionFile, bool, error) {
			return scanJSONLHead(fs, path, info, 30)
		},
	}
	return scanner.scan(ctx, location)
}

func (c *claudeCode) CopyToVault(f SessionFile, vaultDir string) (string, error) {
	return c.copyIncremental(f, vaultDir)
}

// scanJSONLHead extracts metadata from the first maxLines lines of a JSONL
// transcript, never materializing the full file, per spec.md §4.B.
func scanJSONLHead(fs afero.Fs, path string, info os.FileInfo, maxLines int) (SessionFile, bool, error) {
	lines, err := firstNLines(fs, path, maxLines)
	if err != nil {
		return SessionFile{}, false, err
	}
	sf := SessionFile{SourcePath: path, ID: baseNameNoExt(path)}
	if info != nil {
		sf.ModTime = info.ModTime()
		sf.Size = info.Size()
	}
	for _, line := range lines {
		var jf jsonField
		if jsonUnmarshalLenient([]byte(line), &jf) != nil {
			continue
		}
		if sf.Title == "" {
			sf.Title = truncateTitle(jf.title(), 80)
		}
		if sf.CreatedAt == nil {
			sf.CreatedAt = parseTimestamp(firstNonEmpty(jf.CreatedAt, jf.Timestamp))
		}
		if sf.Title != "" && sf.CreatedAt != nil {
			break
		}
	}
	if sf.CreatedAt == nil {
		sf.CreatedAt = &sf.ModTime
	}
	return sf, true, nil
}

// --- Gemini CLI: ~/.gemini/tmp/<hash>/chats/*.json ---

type geminiCLI struct{ base }

func newGeminiCLI(fs afero.Fs) *geminiCLI { return &geminiCLI{base: newBase(fs, "gemini-cli")} }

func (g *geminiCLI) FindStorageLocations(res *platform.Resolver) []string {
	return res.Candidates("GEMINI_HOME", filepath.Join(".gemini", "tmp"))
}

func (g *geminiCLI) WorkspaceName(location string) string { return filepath.Base(location) }

func (g *geminiCLI) ListSessionFiles(ctx context.Context, location string) ([]SessionFile, error) {
	scanner := jsonScanner{
		fs: g.fs,
		match: func(path string, info os.FileInfo) bool {
			return filepath.Base(filepath.Dir(path)) == "chats" && hasSuffix(path, ".json")
		},
		extract: func(fs afero.Fs, path string, info os.FileInfo) (SessionFile, bool, error) {
			return scanSingleJSONObject(fs, path, info)
		},
	}
	return scanner.scan(ctx, location)
}

func (g *geminiCLI) CopyToVault(f SessionFile, vaultDir string) (string, error) {
	return g.copyIncremental(f, vaultDir)
}

// --- Continue.dev: ~/.continue/sessions/*.json, excluding the sessions.json index ---

type continueDev struct{ base }

func newContinueDev(fs afero.Fs) *continueDev { return &continueDev{base: newBase(fs, "continue-dev")} }

func (c *continueDev) FindStorageLocations(res *platform.Resolver) []string {
	return res.Candidates("CONTINUE_GLOBAL_DIR", filepath.Join(".continue", "sessions"))
}

func (c *continueDev) WorkspaceName(location string) string { return filepath.Base(filepath.Dir(location)) }

func (c *continueDev) ListSessionFiles(ctx context.Context, location string) ([]SessionFile, error) {
	scanner := jsonScanner{
		fs: c.fs,
		match: func(path string, info os.FileInfo) bool {
			return hasSuffix(path, ".json") && filepath.Base(path) != "sessions.json"
		},
		extract: func(fs afero.Fs, path string, info os.FileInfo) (SessionFile, bool, error) {
			return scanSingleJSONObject(fs, path, info)
		},
	}
	return scanner.scan(ctx, location)
}

func (c *continueDev) CopyToVault(f SessionFile, vaultDir string) (string, error) {
	return c.copyIncremental(f, vaultDir)
}

// --- Antigravity: IDE fork whose chat sessions mirror the VS Code layout
// but with uuid/filename slash-qualified session ids (original session.rs).

type antigravity struct{ base }

func newAntigravity(fs afero.Fs) *antigravity { return &antigravity{base: newBase(fs, "antigravity")} }

func (a *antigravity) FindStorageLocations(res *platform.Resolver) []string {
	return res.Candidates("ANTIGRAVITY_HOME", filepath.Join(".antigravity", "chatSessions"))
}

func (a *antigravity) WorkspaceName(location string) string { return filepath.Base(location) }

func (a *antigravity) ListSessionFiles(ctx context.Context, location string) ([]SessionFile, error) {
	scanner := jsonScanner{
		fs: a.fs,
		match: func(path string, info os.FileInfo) bool {
			return hasSuffix(path, ".json")
		},
		extract: func(fs afero.Fs, path string, info os.FileInfo) (SessionFile, bool, error) {
			sf, ok, err := scanSingleJSONObject(fs, path, info)
			if ok {
				// Antigravity qualifies session ids as "<uuid>/<filename>" so a
				// session can be looked up without knowing its containing
				// directory structure.
				sf.ID = filepath.Base(filepath.Dir(path)) + "/" + baseNameNoExt(path)
			}
			return sf, ok, err
		},
	}
	return scanner.scan(ctx, location)
}

func (a *antigravity) CopyToVault(f SessionFile, vaultDir string) (string, error) {
	return a.copyIncremental(f, vaultDir)
}

// --- OpenCode: ~/.local/share/opencode/project/<hash>/session/*.json ---

type openCode struct{ base }

func newOpenCode(fs afero.Fs) *openCode { return &openCode{base: newBase(fs, "opencode")} }

func (o *openCode) FindStorageLocations(res *platform.Resolver) []string {
	return res.Candidates("OPENCODE_DATA_DIR", filepath.Join(".local", "share", "opencode", "project"))
}

func (o *openCode) WorkspaceName(location string) string { return filepath.Base(location) }

func (o *openCode) ListSessionFiles(ctx context.Context, location string) ([]SessionFile, error) {
	scanner := jsonScanner{
		fs: o.fs,
		match: func(path string, info os.FileInfo) bool {
			return filepath.Base(filepath.Dir(path)) == "session" && hasSuffix(path, ".json")
		},
		extract: func(fs afero.Fs, path string, info os.FileInfo) (SessionFile, bool, error) {
			return scanSingleJSONObject(fs, path, info)
		},
	}
	return scanner.scan(ctx, location)
}

func (o *openCode) CopyToVault(f SessionFile, vaultDir string) (string, error) {
	return o.copyIncremental(f, vaultDir)
}

// --- Zed: ~/.local/share/zed/conversations/*.json (non-ACP native history) ---

type zed struct{ base }

func newZed(fs afero.Fs) *zed { return &zed{base: newBase(fs, "zed")} }

func (z *zed) FindStorageLocations(res *platform.Resolver) []string {
	out := res.Candidates("ZED_DATA_DIR", filepath.Join(".local", "share", "zed", "conversations"))
	out = append(out, res.Candidates("", filepath.Join("Library", "Application Support", "Zed", "conversations"))...)
	return out
}

func (z *zed) WorkspaceName(location string) string { return filepath.Base(location) }

func (z *zed) ListSessionFiles(ctx context.Context, location string) ([]SessionFile, error) {
	scanner := jsonScanner{
		fs: z.fs,
		match: func(path string, info os.FileInfo) bool {
			return hasSuffix(path, ".json")
		},
		extract: func(fs afero.Fs, path string, info os.FileInfo) (SessionFile, bool, error) {
			return scanSingleJSONObject(fs, path, info)
		},
	}
	return scanner.scan(ctx, location)
}

func (z *zed) CopyToVault(f SessionFile, vaultDir string) (string, error) {
	return z.copyIncremental(f, vaultDir)
}

// truncateTitle matches the shared truncation law of spec.md §4.B/§8
// (60-80 code points, ellipsis suffix); delegated to internal/model so the
// parser framework and extractor framework apply the identical rule.
func truncateTitle(s string, limit int) string {
	return model.TruncateTitle(s, limit)
}
