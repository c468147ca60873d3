package platform

import (
	"os"
	"path/filepath"
)

// WSLDistro describes one discovered WSL distribution, grounded on the
// original Rust utils/wsl.rs WslDistro struct.
type WSLDistro struct {
	Name     string
	BasePath string
}

// wslRoots lists the UNC roots to probe, in preference order: \\wsl.localhost
// is preferred on Windows 11+ (more robust, survives network changes);
// \\wsl$ is the Windows 10 1903+ fallback.
var wslRoots = []string{`\\wsl.localhost`, `\\wsl$`}

// ListWSLDistros enumerates WSL distributions visible under the UNC roots.
// Returns nil on non-Windows platforms per spec.md §4.A.
func ListWSLDistros(goos string) []WSLDistro {
	if goos != "windows" {
		return nil
	}

	var distros []WSLDistro
	seen := make(map[string]bool)

	for _, root := range wslRoots {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() || seen[e.Name()] {
				continue
			}
			seen[e.Name()] = true
			distros = append(distros, WSLDistro{
				Name:     e.Name(),
				BasePath: filepath.Join(root, e.Name()),
			})
		}
		// If \\wsl.localhost produced results, don't also try \\wsl$.
		if len(distros) > 0 {
			break
		}
	}

	return distros
}

// ResolveWSLHomes scans /home/* within a WSL distribution's filesystem, plus
// /root, returning every home directory found.
func ResolveWSLHomes(distro WSLDistro) []string {
	var homes []string

	homeDir := filepath.Join(distro.BasePath, "home")
	if entries, err := os.ReadDir(homeDir); err == nil {
		for _, e := range entries {
			if e.IsDir() {
				homes = append(homes, filepath.Join(homeDir, e.Name()))
			}
		}
	}

	rootHome := filepath.Join(distro.BasePath, "root")
	if st, err := os.Stat(rootHome); err == nil && st.IsDir() {
		homes = append(homes, rootHome)
	}

	return homes
}
