// Package extractor implements the producer discovery and incremental-copy
// framework of spec.md §4.B. Each producer is a small, stateless value
// satisfying the Extractor interface; Registry dispatches across the fixed
// producer set by SourceName. Grounded on the teacher's source.Source
// trait-by-interface pattern (source/source.go) and on the original Rust
// apps/core/src/extractors/mod.rs Extractor trait.
package extractor

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/shshwtsuthar/echovault/internal/platform"
)

// SessionFile names one discovered artifact and the cheap metadata scanned
// from it, per spec.md §4.B Metadata scanning.
type SessionFile struct {
	SourcePath    string
	ID            string
	Title         string
	WorkspaceName string
	CreatedAt     *time.Time
	ModTime       time.Time
	Size          int64
}

// Extractor is the per-producer contract of spec.md §4.B.
type Extractor interface {
	// SourceName returns the stable producer identifier, e.g. "codex".
	SourceName() string

	// FindStorageLocations returns every directory this producer may have
	// written session artifacts under, in search-order.
	FindStorageLocations(res *platform.Resolver) []string

	// WorkspaceName returns a display name for a location, best-effort.
	WorkspaceName(location string) string

	// ListSessionFiles scans location and returns every session artifact,
	// newest-first by CreatedAt (falling back to ModTime).
	ListSessionFiles(ctx context.Context, location string) ([]SessionFile, error)

	// CopyToVault copies one discovered file into vaultDir under the
	// incremental-copy policy and returns the destination path, or "" if
	// the copy was skipped because the destination is already current.
	CopyToVault(f SessionFile, vaultDir string) (string, error)
}

// Registry holds the fixed set of producers named in spec.md §4.B.
type Registry struct {
	fs         afero.Fs
	extractors []Extractor
}

// NewRegistry builds the registry over fs (afero.NewOsFs() in production,
// an in-memory afero.Fs in tests).
func NewRegistry(fs afero.Fs) *Registry {
	r := &Registry{fs: fs}
	r.extractors = []Extractor{
		newVSCodeFamily(fs, "vscode-copilot", vscodeCopilotRelPaths),
		newVSCodeFamily(fs, "cursor", cursorRelPaths),
		newCline(fs),
		newClaudeCode(fs),
		newCodex(fs),
		newGeminiCLI(fs),
		newContinueDev(fs),
		newJetBrains(fs),
		newAntigravity(fs),
		newOpenCode(fs),
		newZed(fs),
		newAider(fs),
	}
	return r
}

// All returns every registered extractor.
func (r *Registry) All() []Extractor { return r.extractors }

// ByName looks up a single extractor by SourceName.
func (r *Registry) ByName(name string) (Extractor, bool) {
	for _, e := range r.extractors {
		if e.SourceName() == name {
			return e, true
		}
	}
	return nil, false
}

// EnabledNames filters the registry to producers named in enabled, or every
// producer when enabled is empty (config extractors.enabled_sources[]).
func (r *Registry) EnabledNames(enabled []string) []Extractor {
	if len(enabled) == 0 {
		return r.extractors
	}
	want := make(map[string]bool, len(enabled))
	for _, n := range enabled {
		want[n] = true
	}
	var out []Extractor
	for _, e := range r.extractors {
		if want[e.SourceName()] {
			out = append(out, e)
		}
	}
	return out
}

// RunResult summarizes one producer's pass over one location.
type RunResult struct {
	Source       string
	Location     string
	Discovered   int
	Copied       int
	Skipped      int
	CopyFailures int
}

// CopiedFile records one successful (or already-current) CopyToVault
// outcome, preserving the original on-disk path and size spec.md §3.1
// names alongside the session registry's other attributes — information
// that exists only at extraction time and is otherwise lost once the raw
// artifact is copied into the vault.
type CopiedFile struct {
	Source       string
	VaultPath    string // destination path under vaultDir
	OriginalPath string
	Size         int64
}

// CountSessions returns how many session files ListSessionFiles found,
// per spec.md §4.B count_sessions.
func CountSessions(ctx context.Context, e Extractor, location string) (int, error) {
	files, err := e.ListSessionFiles(ctx, location)
	if err != nil {
		return 0, err
	}
	return len(files), nil
}

// RunAll walks every enabled producer across every storage location it
// reports and incrementally copies discovered session files into vaultDir.
// Locations run sequentially; files within a location are scanned
// data-parallel inside ListSessionFiles implementations, per spec.md §5.
func RunAll(ctx context.Context, reg *Registry, res *platform.Resolver, vaultDir string, enabled []string, log zerolog.Logger) ([]RunResult, []CopiedFile) {
	var results []RunResult
	var copied []CopiedFile
	for _, e := range reg.EnabledNames(enabled) {
		for _, loc := range e.FindStorageLocations(res) {
			rr := RunResult{Source: e.SourceName(), Location: loc}
			files, err := e.ListSessionFiles(ctx, loc)
			if err != nil {
				log.Warn().Err(err).Str("source", e.SourceName()).Str("location", loc).Msg("list session files failed")
				results = append(results, rr)
				continue
			}
			rr.Discovered = len(files)
			for _, f := range files {
				dest, err := e.CopyToVault(f, vaultDir)
				if err != nil {
					rr.CopyFailures++
					log.Warn().Err(err).Str("source", e.SourceName()).Str("file", f.SourcePath).Msg("copy to vault failed")
					continue
				}
				if dest == "" {
					rr.Skipped++
					// Already current: the vault path is deterministic from
					// the copyIncremental naming convention even though no
					// byte-copy happened this run, so the session registry
					// can still be populated/refreshed on every pass.
					dest = filepath.Join(vaultDir, e.SourceName(), filepath.Base(f.SourcePath))
				} else {
					rr.Copied++
				}
				copied = append(copied, CopiedFile{
					Source:       e.SourceName(),
					VaultPath:    dest,
					OriginalPath: f.SourcePath,
					Size:         f.Size,
				})
			}
			results = append(results, rr)
		}
	}
	return results, copied
}

// parallelScan runs fn over each element of items concurrently and collects
// results in input order, matching spec.md §4.B "scanning ... runs in
// parallel across files". A single file's error is logged and the file
// dropped; it never aborts the location scan.
func parallelScan(items []string, log func(path string, err error), fn func(path string) (SessionFile, bool, error)) []SessionFile {
	type indexed struct {
		idx int
		sf  SessionFile
		ok  bool
	}
	out := make(chan indexed, len(items))
	var wg sync.WaitGroup
	for i, path := range items {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			sf, ok, err := fn(path)
			if err != nil {
				if log != nil {
					log(path, err)
				}
				out <- indexed{idx: i, ok: false}
				return
			}
			out <- indexed{idx: i, sf: sf, ok: ok}
		}(i, path)
	}
	go func() {
		wg.Wait()
		close(out)
	}()

	results := make([]*SessionFile, len(items))
	for r := range out {
		if r.ok {
			sf := r.sf
			results[r.idx] = &sf
		}
	}
	files := make([]SessionFile, 0, len(items))
	for _, r := range results {
		if r != nil {
			files = append(files, *r)
		}
	}
	return files
}

// sortNewestFirst orders files by CreatedAt (falling back to ModTime),
// descending, per spec.md §4.B list_session_files contract.
func sortNewestFirst(files []SessionFile) {
	less := func(i, j int) bool {
		ti := files[i].ModTime
		if files[i].CreatedAt != nil {
			ti = *files[i].CreatedAt
		}
		tj := files[j].ModTime
		if files[j].CreatedAt != nil {
			tj = *files[j].CreatedAt
		}
		return ti.After(tj)
	}
	insertionSort(files, less)
}

// insertionSort avoids pulling in sort.Slice's reflection for this small,
// already-mostly-ordered case; stable and allocation-free.
func insertionSort(files []SessionFile, less func(i, j int) bool) {
	for i := 1; i < len(files); i++ {
		for j := i; j > 0 && less(j, j-1); j-- {
			files[j], files[j-1] = files[j-1], files[j]
		}
	}
}
