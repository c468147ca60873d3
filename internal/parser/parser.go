// Package parser implements the raw→canonical transformation framework of
// spec.md §4.C: one stateless Parser per producer, an aggregator that walks
// a vault subtree, and (markdown.go) the stable Markdown+frontmatter writer.
// Grounded on the original apps/core/src/parsers/mod.rs Parser trait and
// the teacher's interface-dispatch style (source/source.go).
package parser

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/shshwtsuthar/echovault/internal/model"
)

// Parser is the per-producer contract of spec.md §4.C. Implementations must
// be stateless: CanParse takes only a path and Parse only a filesystem and
// a path, and both may be called concurrently.
type Parser interface {
	SourceName() string
	CanParse(path string) bool
	Parse(fs afero.Fs, path string) (model.Conversation, error)
}

// Registry holds every parser, one per SourceName, in a fixed order.
type Registry struct {
	parsers []Parser
}

// NewRegistry returns the fixed parser set named in spec.md §4.B's producer
// registry (one parser per extractor producer).
func NewRegistry() *Registry {
	return &Registry{parsers: []Parser{
		newGenericJSONParser("vscode-copilot", vscodeMessageShape),
		newGenericJSONParser("cursor", vscodeMessageShape),
		newGenericJSONParser("cline", clineMessageShape),
		newGenericJSONParser("claude-code", claudeCodeMessageShape),
		newGenericJSONParser("gemini-cli", geminiMessageShape),
		newGenericJSONParser("continue-dev", continueMessageShape),
		newGenericJSONParser("antigravity", vscodeMessageShape),
		newGenericJSONParser("opencode", vscodeMessageShape),
		newGenericJSONParser("zed", vscodeMessageShape),
		newCodexParser(),
		newJetBrainsParser(),
		newAiderParser(),
	}}
}

func (r *Registry) All() []Parser { return r.parsers }

// Result pairs a parsed conversation with the path it came from, or an
// error if parsing failed — per spec.md §4.H failure semantics, parse
// errors are collected, never fatal.
type Result struct {
	Path         string
	Conversation model.Conversation
	Err          error
}

// Aggregate walks every parser's vault subtree, invokes CanParse/Parse,
// drops empty conversations, and returns successes (each still carrying the
// raw artifact path it was parsed from) sorted newest-first alongside any
// per-file errors, per spec.md §4.C.
func Aggregate(ctx context.Context, fs afero.Fs, vaultSessionsDir string, reg *Registry, log zerolog.Logger) ([]Result, []Result) {
	var successes []Result
	var failures []Result

	for _, p := range reg.All() {
		root := filepath.Join(vaultSessionsDir, p.SourceName())
		_ = afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
			if err != nil || info == nil || info.IsDir() {
				return nil
			}
			if !p.CanParse(path) {
				return nil
			}
			conv, err := p.Parse(fs, path)
			if err != nil {
				log.Warn().Err(err).Str("source", p.SourceName()).Str("path", path).Msg("parse failed")
				failures = append(failures, Result{Path: path, Err: err})
				return nil
			}
			if conv.IsEmpty() {
				return nil
			}
			successes = append(successes, Result{Path: path, Conversation: conv})
			return nil
		})
	}

	sort.SliceStable(successes, func(i, j int) bool {
		ti := successes[i].Conversation.CreatedAt
		tj := successes[j].Conversation.CreatedAt
		if ti == nil || tj == nil {
			return false
		}
		return ti.After(*tj)
	})
	return successes, failures
}
