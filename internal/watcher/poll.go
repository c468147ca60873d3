package watcher

import (
	"os"
	"path/filepath"
	"time"
)

// readDirMtimes returns the modification time of every regular file
// directly inside dir, keyed by full path.
func readDirMtimes(dir string) (map[string]time.Time, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make(map[string]time.Time, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out[filepath.Join(dir, e.Name())] = info.ModTime()
	}
	return out, nil
}
