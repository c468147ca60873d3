package sync

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// LocalProvider syncs a vault to another directory on the same machine (a
// mounted share, an external drive, a second vault) via incremental
// directory-to-directory copy, grounded on original apps/core/src/sync/local.rs.
// It is always authenticated: there is no remote identity to establish.
type LocalProvider struct {
	fs         afero.Fs
	remoteRoot string
	encrypted  bool
}

// NewLocalProvider returns a LocalProvider mirroring into remoteRoot.
func NewLocalProvider(fs afero.Fs, remoteRoot string) *LocalProvider {
	return &LocalProvider{fs: fs, remoteRoot: remoteRoot}
}

func (l *LocalProvider) Name() string { return "local" }

func (l *LocalProvider) IsAuthenticated() bool { return true }

func (l *LocalProvider) AuthStatus() AuthStatus { return AuthStatus{State: Authenticated} }

func (l *LocalProvider) StartAuth(ctx context.Context) (AuthStatus, error) {
	return l.AuthStatus(), nil
}

func (l *LocalProvider) CompleteAuth(ctx context.Context, code string) (AuthStatus, error) {
	return l.AuthStatus(), nil
}

// Pull mirrors remoteRoot -> vaultDir, reporting every file that was
// created or overwritten by the incremental-copy rule (mtime/size diff),
// the same policy the extractor framework applies (spec.md §4.B).
func (l *LocalProvider) Pull(ctx context.Context, vaultDir string, opts Options) (PullResult, error) {
	return l.mirror(ctx, l.remoteRoot, vaultDir)
}

// Push mirrors vaultDir -> remoteRoot.
func (l *LocalProvider) Push(ctx context.Context, vaultDir string, opts Options) (PushResult, error) {
	res, err := l.mirror(ctx, vaultDir, l.remoteRoot)
	if err != nil {
		return PushResult{}, err
	}
	return PushResult{
		Success:     true,
		FilesPushed: len(res.NewFiles) + len(res.UpdatedFiles),
	}, nil
}

func (l *LocalProvider) HasLocalChanges(ctx context.Context, vaultDir string) (bool, error) {
	diff, err := l.diff(vaultDir, l.remoteRoot)
	if err != nil {
		return false, err
	}
	return len(diff) > 0, nil
}

func (l *LocalProvider) HasRemoteChanges(ctx context.Context, vaultDir string) (bool, error) {
	diff, err := l.diff(l.remoteRoot, vaultDir)
	if err != nil {
		return false, err
	}
	return len(diff) > 0, nil
}

// EnableEncryption is a no-op for LocalProvider: spec.md §9's Open Question
// leaves envelope encryption at the sync boundary to future work, and a
// same-machine mirror has no transport to protect.
func (l *LocalProvider) EnableEncryption(passphrase string) error {
	l.encrypted = true
	return nil
}

func (l *LocalProvider) diff(srcRoot, dstRoot string) ([]string, error) {
	var changed []string
	err := afero.Walk(l.fs, srcRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(srcRoot, path)
		if err != nil {
			return nil
		}
		dst := filepath.Join(dstRoot, rel)
		dstInfo, err := l.fs.Stat(dst)
		if err != nil || dstInfo.Size() != info.Size() || info.ModTime().After(dstInfo.ModTime()) {
			changed = append(changed, rel)
		}
		return nil
	})
	return changed, err
}

func (l *LocalProvider) mirror(ctx context.Context, srcRoot, dstRoot string) (PullResult, error) {
	var result PullResult
	err := afero.Walk(l.fs, srcRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if info == nil || info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(srcRoot, path)
		if err != nil {
			return nil
		}
		dst := filepath.Join(dstRoot, rel)

		existed := false
		if dstInfo, err := l.fs.Stat(dst); err == nil {
			existed = true
			if dstInfo.Size() == info.Size() && !info.ModTime().After(dstInfo.ModTime()) {
				return nil // already current
			}
		}

		if err := l.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", filepath.Dir(dst), err)
		}
		src, err := l.fs.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer src.Close()
		out, err := l.fs.Create(dst)
		if err != nil {
			return fmt.Errorf("create %s: %w", dst, err)
		}
		defer out.Close()
		if _, err := io.Copy(out, src); err != nil {
			return fmt.Errorf("copy %s -> %s: %w", path, dst, err)
		}

		result.HasChanges = true
		if existed {
			result.UpdatedFiles = append(result.UpdatedFiles, rel)
		} else {
			result.NewFiles = append(result.NewFiles, rel)
		}
		return nil
	})
	return result, err
}
