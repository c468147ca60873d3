// Package model defines the canonical conversation representation that every
// per-producer parser normalizes into, and that the Markdown writer renders
// from. It mirrors the role taxonomy and message sequencing invariants of
// spec.md §3.2, translated from the original Rust ParsedConversation/Role
// types (apps/core/src/parsers/mod.rs) into idiomatic Go.
package model

import "time"

// Role is the normalized sender of a message. Every producer's native
// vocabulary (human/ai/gemini/model/function/error/...) maps onto one of
// these five values — see NormalizeRole in role.go.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
	RoleInfo      Role = "info"
)

// Message is a single turn in a canonical conversation.
type Message struct {
	Role      Role
	Content   string
	Timestamp *time.Time
	ToolName  string
	Model     string
}

// Conversation is the fully parsed, canonical form of one session, ready for
// Markdown emission or vault indexing.
type Conversation struct {
	ID        string
	Source    string
	Title     string
	Workspace string
	CreatedAt *time.Time
	UpdatedAt *time.Time
	Model     string
	Messages  []Message
	Tags      []string
}

// CountByRole returns the number of messages with the given role.
func (c *Conversation) CountByRole(r Role) int {
	n := 0
	for _, m := range c.Messages {
		if m.Role == r {
			n++
		}
	}
	return n
}

// IsEmpty reports whether the conversation has no message worth keeping:
// every message is system/info, or has only whitespace content. Spec.md
// §3.2 requires such conversations be suppressed from parser output.
func (c *Conversation) IsEmpty() bool {
	for _, m := range c.Messages {
		if m.Role == RoleSystem || m.Role == RoleInfo {
			continue
		}
		if trimmedNotEmpty(m.Content) {
			return false
		}
	}
	return true
}

func trimmedNotEmpty(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return true
		}
	}
	return false
}

// TruncateTitle truncates s to at most limit code points, appending an
// ellipsis when truncated. Spec.md §4.C requires 60-80 code points; callers
// pass the producer-specific limit within that range.
func TruncateTitle(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
