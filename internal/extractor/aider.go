package extractor

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/shshwtsuthar/echovault/internal/platform"
)

// aiderTimestampLayout matches the original `# aider chat started at
// <ts>` header format from apps/core/src/parsers/aider.rs.
const aiderTimestampLayout = "2006-01-02 15:04:05"

// aider scans a project's .aider.chat.history.md (Aider writes one running
// log per project directory, newest entries appended at the end).
type aider struct{ base }

func newAider(fs afero.Fs) *aider { return &aider{base: newBase(fs, "aider")} }

func (a *aider) FindStorageLocations(res *platform.Resolver) []string {
	return res.Candidates("AIDER_HISTORY_DIR", ".aider-history")
}

func (a *aider) WorkspaceName(location string) string { return filepath.Base(filepath.Dir(location)) }

func (a *aider) ListSessionFiles(ctx context.Context, location string) ([]SessionFile, error) {
	scanner := jsonScanner{
		fs: a.fs,
		match: func(path string, info os.FileInfo) bool {
			return hasSuffix(path, ".chat.history.md", ".md")
		},
		extract: a.extractHistory,
	}
	return scanner.scan(ctx, location)
}

func (a *aider) extractHistory(fs afero.Fs, path string, info os.FileInfo) (SessionFile, bool, error) {
	f, err := fs.Open(path)
	if err != nil {
		return SessionFile{}, false, err
	}
	defer f.Close()

	sf := SessionFile{SourcePath: path, ID: baseNameNoExt(path)}
	if info != nil {
		sf.ModTime = info.ModTime()
		sf.Size = info.Size()
	}

	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() && lineNo < 30 {
		lineNo++
		line := sc.Text()
		if strings.HasPrefix(line, "# aider chat started at ") {
			ts := strings.TrimPrefix(line, "# aider chat started at ")
			if t, err := time.Parse(aiderTimestampLayout, ts); err == nil {
				sf.CreatedAt = &t
			}
			continue
		}
		if sf.Title == "" && strings.HasPrefix(line, "#### ") {
			title := strings.TrimSpace(strings.TrimPrefix(line, "#### "))
			title = strings.TrimPrefix(title, "/ask ")
			title = strings.TrimPrefix(title, "/code ")
			sf.Title = truncateTitle(title, 80)
		}
	}
	if sf.CreatedAt == nil {
		sf.CreatedAt = &sf.ModTime
	}
	return sf, true, nil
}

func (a *aider) CopyToVault(f SessionFile, vaultDir string) (string, error) {
	return a.copyIncremental(f, vaultDir)
}
