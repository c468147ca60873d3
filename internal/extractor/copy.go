package extractor

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"
)

// base is embedded by every concrete producer; it implements the shared
// incremental-copy policy of spec.md §4.B so each producer only needs to
// supply discovery and metadata-scan logic.
type base struct {
	fs   afero.Fs
	name string
}

func newBase(fs afero.Fs, name string) base { return base{fs: fs, name: name} }

func (b base) SourceName() string { return b.name }

// copyIncremental implements spec.md §4.B's incremental copy policy:
// destination is <vaultDir>/<source>/<basename(src)>; copy occurs iff the
// destination is missing, or source mtime exceeds destination mtime, or
// sizes differ. Returns "" (no error) when the copy is skipped as current.
func (b base) copyIncremental(f SessionFile, vaultDir string) (string, error) {
	destDir := filepath.Join(vaultDir, b.name)
	dest := filepath.Join(destDir, filepath.Base(f.SourcePath))

	if info, err := b.fs.Stat(dest); err == nil {
		sameSize := info.Size() == f.Size
		notNewer := !f.ModTime.After(info.ModTime())
		if sameSize && notNewer {
			return "", nil
		}
	}

	if err := b.fs.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", destDir, err)
	}

	src, err := b.fs.Open(f.SourcePath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", f.SourcePath, err)
	}
	defer src.Close()

	out, err := b.fs.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return "", fmt.Errorf("copy %s -> %s: %w", f.SourcePath, dest, err)
	}
	return dest, nil
}
