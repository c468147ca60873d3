// Package vault manages the on-disk vault directory tree: vault.json
// metadata, the filesystem layout named in spec.md §6, and (in index.go /
// crdt.go) the session registry and CRDT change log. Grounded on the
// original Rust apps/core/src/vault.rs.
package vault

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// metadataVersion is the vault.json schema version. Version 2 dropped the
// legacy encrypted layout in favor of the plaintext + CRDT-index layout —
// see spec.md §9 Open question.
const metadataVersion = 2

// Metadata is the contents of <vault>/vault.json.
type Metadata struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMetadata returns Metadata stamped with now.
func NewMetadata(now time.Time) Metadata {
	return Metadata{Version: metadataVersion, CreatedAt: now}
}

func metadataPath(vaultDir string) string {
	return filepath.Join(vaultDir, "vault.json")
}

// MetadataExists reports whether vault.json exists in vaultDir.
func MetadataExists(vaultDir string) bool {
	_, err := os.Stat(metadataPath(vaultDir))
	return err == nil
}

// LoadMetadata reads vault.json from vaultDir.
func LoadMetadata(vaultDir string) (Metadata, error) {
	data, err := os.ReadFile(metadataPath(vaultDir))
	if err != nil {
		return Metadata{}, fmt.Errorf("read vault.json: %w", err)
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return Metadata{}, fmt.Errorf("parse vault.json: %w", err)
	}
	return m, nil
}

// Save writes m as vault.json under vaultDir.
func (m Metadata) Save(vaultDir string) error {
	if err := os.MkdirAll(vaultDir, 0o755); err != nil {
		return fmt.Errorf("create vault dir: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal vault.json: %w", err)
	}
	if err := os.WriteFile(metadataPath(vaultDir), data, 0o644); err != nil {
		return fmt.Errorf("write vault.json: %w", err)
	}
	return nil
}

// Layout names the well-known subdirectories of a vault, per spec.md §6.
type Layout struct {
	Root string
}

func NewLayout(root string) Layout { return Layout{Root: root} }

func (l Layout) SessionsDir() string              { return filepath.Join(l.Root, "sessions") }
func (l Layout) SourceDir(source string) string   { return filepath.Join(l.SessionsDir(), source) }
func (l Layout) InterceptedDir() string           { return filepath.Join(l.Root, "intercepted") }
func (l Layout) CertsDir() string                 { return filepath.Join(l.Root, "certs") }
func (l Layout) IndexDBPath() string              { return filepath.Join(l.Root, "index.db") }
func (l Layout) MarkdownDir(source string) string { return filepath.Join(l.SessionsDir(), source) }

// EnsureDirs creates every well-known vault subdirectory.
func (l Layout) EnsureDirs() error {
	for _, d := range []string{l.SessionsDir(), l.InterceptedDir(), l.CertsDir()} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	return nil
}

// Open ensures the vault directory tree exists and its vault.json metadata
// is present, creating it on first use. Returns the loaded metadata.
func Open(root string, now time.Time) (Metadata, error) {
	layout := NewLayout(root)
	if err := layout.EnsureDirs(); err != nil {
		return Metadata{}, err
	}
	if MetadataExists(root) {
		return LoadMetadata(root)
	}
	m := NewMetadata(now)
	if err := m.Save(root); err != nil {
		return Metadata{}, err
	}
	return m, nil
}
