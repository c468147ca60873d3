// echovaultd: the EchoVault daemon. It owns the vault directory, runs the
// TLS-intercepting proxy, and on demand runs the extractor and parser
// passes that populate the vault from every installed AI assistant.
//
// Usage:
//
//	echovaultd --vault <path> [--once]
//
// "--once" runs one extractor+parser pass and exits instead of starting
// the proxy and watcher loop.
//
// Environment variables:
//
//	ECHOVAULT_VAULT  Vault directory (overridden by --vault)
//	ECHOVAULT_DEBUG  "1" enables debug-level logging
//
// Grounded on the original recall-proxy's manual flag/env parsing and
// signal-driven graceful shutdown (main.go).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/shshwtsuthar/echovault/internal/ca"
	"github.com/shshwtsuthar/echovault/internal/config"
	"github.com/shshwtsuthar/echovault/internal/extractor"
	"github.com/shshwtsuthar/echovault/internal/logging"
	"github.com/shshwtsuthar/echovault/internal/model"
	"github.com/shshwtsuthar/echovault/internal/parser"
	"github.com/shshwtsuthar/echovault/internal/platform"
	"github.com/shshwtsuthar/echovault/internal/proxy"
	"github.com/shshwtsuthar/echovault/internal/vault"
	"github.com/shshwtsuthar/echovault/internal/watcher"
)

func main() {
	cfg, once, err := parseArgs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[echovaultd] config error: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(os.Stderr, os.Getenv("ECHOVAULT_DEBUG") == "1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("shutting down gracefully")
		cancel()
	}()

	if err := run(ctx, cfg, once, log); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("echovaultd exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, appCfg config.Config, once bool, log zerolog.Logger) error {
	if _, err := vault.Open(appCfg.VaultPath, time.Now()); err != nil {
		return fmt.Errorf("open vault: %w", err)
	}
	layout := vault.NewLayout(appCfg.VaultPath)

	ix, err := vault.OpenIndex(layout.IndexDBPath(), uuid.NewString())
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer ix.Close()

	fs := afero.NewOsFs()
	resolver := platform.NewResolver()

	runExtractAndParse(ctx, appCfg, layout, fs, resolver, ix, log)
	if once {
		return nil
	}

	authority, err := ca.Load(
		filepath.Join(layout.CertsDir(), "echovault-ca.crt"),
		filepath.Join(layout.CertsDir(), "echovault-ca.key"),
	)
	if err != nil {
		return fmt.Errorf("load CA: %w", err)
	}

	p := proxy.New(proxy.Config{
		Port:          appCfg.Interceptor.Port,
		TargetDomains: appCfg.Interceptor.TargetDomains,
		OutDir:        layout.InterceptedDir(),
	}, authority, log)
	if err := p.Start(ctx); err != nil {
		return fmt.Errorf("start proxy: %w", err)
	}

	w, err := watcher.New(30*time.Second, log)
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer w.Stop()
	if err := w.Watch(layout.SessionsDir()); err != nil {
		log.Warn().Err(err).Msg("watch sessions dir failed")
	}
	w.Run(ctx)

	log.Info().Int("port", appCfg.Interceptor.Port).Str("vault", appCfg.VaultPath).Msg("echovaultd running")

	for {
		ev, ok := w.NextTimeout(5 * time.Second)
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !ok {
			continue
		}
		log.Debug().Str("path", ev.Path).Msg("fs event observed, re-extracting")
		runExtractAndParse(ctx, appCfg, layout, fs, resolver, ix, log)
	}
}

func runExtractAndParse(ctx context.Context, appCfg config.Config, layout vault.Layout, fs afero.Fs, resolver *platform.Resolver, ix *vault.Index, log zerolog.Logger) {
	extReg := extractor.NewRegistry(fs)
	results, copiedFiles := extractor.RunAll(ctx, extReg, resolver, layout.SessionsDir(), appCfg.Extractors.EnabledSources, log)
	for _, r := range results {
		log.Info().Str("source", r.Source).Int("discovered", r.Discovered).Int("copied", r.Copied).Int("skipped", r.Skipped).Msg("extractor pass")
	}
	byVaultPath := make(map[string]extractor.CopiedFile, len(copiedFiles))
	for _, cf := range copiedFiles {
		byVaultPath[cf.VaultPath] = cf
	}

	parseReg := parser.NewRegistry()
	successes, failures := parser.Aggregate(ctx, fs, layout.SessionsDir(), parseReg, log)
	for _, f := range failures {
		log.Warn().Err(f.Err).Str("path", f.Path).Msg("parse failed")
	}

	for _, res := range successes {
		conv := res.Conversation
		mdPath := filepath.Join(layout.MarkdownDir(conv.Source), conv.ID+".md")
		mtime := mtimeUnix(conv)

		var fileSize int64
		var originalPath string
		if cf, ok := byVaultPath[res.Path]; ok {
			fileSize = cf.Size
			originalPath = cf.OriginalPath
		}

		outcome, err := ix.Upsert(vault.Session{
			Source:        conv.Source,
			ID:            conv.ID,
			Title:         conv.Title,
			WorkspaceName: conv.Workspace,
			CreatedAt:     conv.CreatedAt,
			MTime:         mtime,
			FileSize:      fileSize,
			VaultPath:     mdPath,
			OriginalPath:  originalPath,
		})
		if err != nil {
			log.Warn().Err(err).Str("id", conv.ID).Msg("index upsert failed")
			continue
		}
		if outcome.Outcome == vault.Skipped || outcome.Outcome == vault.Unchanged {
			continue
		}

		if err := afero.WriteFile(fs, mdPath, []byte(parser.WriteMarkdown(conv)), 0o644); err != nil {
			log.Warn().Err(err).Str("path", mdPath).Msg("write markdown failed")
		}
	}
}

// mtimeUnix derives the comparison timestamp Upsert uses to decide
// Inserted/Updated/Unchanged/Skipped, preferring the conversation's last
// update time and falling back to its creation time.
func mtimeUnix(conv model.Conversation) int64 {
	if conv.UpdatedAt != nil {
		return conv.UpdatedAt.Unix()
	}
	if conv.CreatedAt != nil {
		return conv.CreatedAt.Unix()
	}
	return 0
}

func parseArgs() (config.Config, bool, error) {
	vaultPath := os.Getenv("ECHOVAULT_VAULT")
	once := false

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--vault":
			if i+1 >= len(args) {
				return config.Config{}, false, fmt.Errorf("--vault requires a value")
			}
			i++
			vaultPath = args[i]
		case "--once":
			once = true
		}
	}

	if vaultPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return config.Config{}, false, fmt.Errorf("resolve default vault path: %w", err)
		}
		vaultPath = filepath.Join(home, "EchoVault")
	}

	configPath := filepath.Join(vaultPath, "config.toml")
	cfg, err := config.LoadOrDefault(configPath, vaultPath)
	if err != nil {
		return config.Config{}, false, fmt.Errorf("load config: %w", err)
	}
	return cfg, once, nil
}
