package extractor

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/spf13/afero"

	"github.com/shshwtsuthar/echovault/internal/platform"
)

// codex implements the Codex CLI producer: sessions live at
// $CODEX_HOME/sessions/YYYY/MM/DD/rollout-*.jsonl, grounded on the original
// apps/core/src/extractors/codex.rs (which parallelizes this scan with
// rayon; Go achieves the same with parallelScan's goroutine fan-out).
type codex struct{ base }

func newCodex(fs afero.Fs) *codex { return &codex{base: newBase(fs, "codex")} }

func (c *codex) FindStorageLocations(res *platform.Resolver) []string {
	return res.Candidates("CODEX_HOME", filepath.Join(".codex", "sessions"))
}

func (c *codex) WorkspaceName(location string) string { return filepath.Base(location) }

var rolloutFilenameTimestamp = regexp.MustCompile(`rollout-(\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2})`)

func (c *codex) ListSessionFiles(ctx context.Context, location string) ([]SessionFile, error) {
	scanner := jsonScanner{
		fs: c.fs,
		match: func(path string, info os.FileInfo) bool {
			return hasSuffix(path, ".jsonl") && regexp.MustCompile(`^rollout-`).MatchString(filepath.Base(path))
		},
		extract: func(fs afero.Fs, path string, info os.FileInfo) (SessionFile, bool, error) {
			sf, ok, err := scanJSONLHead(fs, path, info, 30)
			if !ok || err != nil {
				return sf, ok, err
			}
			if sf.CreatedAt == nil || sf.CreatedAt.Equal(sf.ModTime) {
				if m := rolloutFilenameTimestamp.FindStringSubmatch(filepath.Base(path)); m != nil {
					if t, perr := time.Parse("2006-01-02T15-04-05", m[1]); perr == nil {
						sf.CreatedAt = &t
					}
				}
			}
			if sf.CreatedAt == nil {
				sf.CreatedAt = &sf.ModTime
			}
			return sf, true, nil
		},
	}
	return scanner.scan(ctx, location)
}

func (c *codex) CopyToVault(f SessionFile, vaultDir string) (string, error) {
	return c.copyIncremental(f, vaultDir)
}
