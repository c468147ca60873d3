// Package config loads and saves EchoVault's configuration file. The file
// format itself is an external collaborator per spec.md §1 Out-of-scope;
// this package defines the Config struct, its defaults, and load/save,
// grounded on the original Rust apps/core/src/config.rs (which uses the
// same toml crate this package mirrors via BurntSushi/toml).
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// SyncConfig configures remote sync (spec.md §6 Configuration).
type SyncConfig struct {
	RemoteName string `toml:"remote_name"`
	FolderName string `toml:"folder_name"`
}

// ExtractorsConfig configures which producers run.
type ExtractorsConfig struct {
	EnabledSources []string `toml:"enabled_sources"`
}

// InterceptorConfig configures the TLS-intercepting proxy.
type InterceptorConfig struct {
	Port          int      `toml:"port"`
	TargetDomains []string `toml:"target_domains"`
}

// Config is the root EchoVault configuration (spec.md §6).
type Config struct {
	Version     int               `toml:"version"`
	VaultPath   string            `toml:"vault_path"`
	Sync        SyncConfig        `toml:"sync"`
	Extractors  ExtractorsConfig  `toml:"extractors"`
	Interceptor InterceptorConfig `toml:"interceptor"`
}

const currentVersion = 2

// DefaultFolderName is used when SyncConfig.FolderName is unset.
const DefaultFolderName = "EchoVault"

// DefaultPort is the interceptor's default listen port.
const DefaultPort = 18080

// DefaultTargetDomains are the AI API hostnames intercepted out of the box.
var DefaultTargetDomains = []string{
	"generativelanguage.googleapis.com",
	"aiplatform.googleapis.com",
	"api.anthropic.com",
	"api.openai.com",
}

// Default returns a Config with sane defaults rooted at vaultPath.
func Default(vaultPath string) Config {
	return Config{
		Version:   currentVersion,
		VaultPath: vaultPath,
		Sync: SyncConfig{
			FolderName: DefaultFolderName,
		},
		Interceptor: InterceptorConfig{
			Port:          DefaultPort,
			TargetDomains: append([]string(nil), DefaultTargetDomains...),
		},
	}
}

// Load reads and parses a Config from path.
func Load(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if cfg.Sync.FolderName == "" {
		cfg.Sync.FolderName = DefaultFolderName
	}
	if cfg.Interceptor.Port == 0 {
		cfg.Interceptor.Port = DefaultPort
	}
	return cfg, nil
}

// LoadOrDefault loads path if it exists, otherwise returns Default(vaultPath).
func LoadOrDefault(path, vaultPath string) (Config, error) {
	if _, err := os.Stat(path); err != nil {
		return Default(vaultPath), nil
	}
	return Load(path)
}

// Save serializes cfg as TOML to path, creating parent directories as needed.
func (c Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()
	enc := toml.NewEncoder(f)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

// IndexDBPath returns the path to the vault's session index database.
func (c Config) IndexDBPath() string {
	return filepath.Join(c.VaultPath, "index.db")
}

// IsInitialized reports whether a sync remote has been configured.
func (c Config) IsInitialized() bool {
	return c.Sync.RemoteName != ""
}
