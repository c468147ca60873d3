// Package platform enumerates candidate storage roots for a producer's
// relative subpath across native OS locations, config/data directories,
// explicit environment overrides, and — on Windows — WSL distributions.
// Grounded on the original Rust apps/core/src/utils/wsl.rs and spec.md §4.A.
package platform

import (
	"os"
	"path/filepath"
	"runtime"
)

// Resolver enumerates candidate roots for producer storage locations.
type Resolver struct {
	// GOOS overrides runtime.GOOS for tests. Empty means use runtime.GOOS.
	GOOS string

	// HomeDir overrides the user home directory for tests. Empty means
	// resolve from the environment.
	HomeDir string
}

// NewResolver returns a Resolver bound to the live OS and environment.
func NewResolver() *Resolver {
	return &Resolver{}
}

func (r *Resolver) goos() string {
	if r.GOOS != "" {
		return r.GOOS
	}
	return runtime.GOOS
}

func (r *Resolver) homeDir() (string, error) {
	if r.HomeDir != "" {
		return r.HomeDir, nil
	}
	return os.UserHomeDir()
}

// Candidates enumerates candidate roots for relSubpath, in search order:
//  1. the value of envOverride, if set
//  2. $HOME/relSubpath
//  3. the OS config directory joined with relSubpath
//  4. the OS data directory joined with relSubpath (Windows only)
//  5. on Windows, each WSL distribution's /home/<user> and /root joined
//     with relSubpath
//
// Only paths that currently exist are returned; the result is de-duplicated
// while preserving search order. Non-Windows platforms skip step 5 and
// return it as empty, per spec.md §4.A.
func (r *Resolver) Candidates(envOverride, relSubpath string) []string {
	var ordered []string
	seen := make(map[string]bool)
	add := func(p string) {
		if p == "" {
			return
		}
		clean := filepath.Clean(p)
		if seen[clean] {
			return
		}
		if _, err := os.Stat(clean); err != nil {
			return
		}
		seen[clean] = true
		ordered = append(ordered, clean)
	}

	if envOverride != "" {
		if v := os.Getenv(envOverride); v != "" {
			add(v)
		}
	}

	if home, err := r.homeDir(); err == nil {
		add(filepath.Join(home, relSubpath))
	}

	if cfg, err := os.UserConfigDir(); err == nil {
		add(filepath.Join(cfg, relSubpath))
	}

	if r.goos() == "windows" {
		if data, err := os.UserCacheDir(); err == nil {
			add(filepath.Join(data, relSubpath))
		}
		for _, p := range r.wslCandidates(relSubpath) {
			add(p)
		}
	}

	return ordered
}

// wslCandidates enumerates WSL distribution home directories joined with
// relSubpath. Returns nil on non-Windows platforms.
func (r *Resolver) wslCandidates(relSubpath string) []string {
	if r.goos() != "windows" {
		return nil
	}
	var paths []string
	for _, distro := range ListWSLDistros(r.goos()) {
		for _, home := range ResolveWSLHomes(distro) {
			paths = append(paths, filepath.Join(home, relSubpath))
		}
	}
	return paths
}
