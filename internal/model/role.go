package model

import "strings"

// NormalizeRole maps a producer-native role/type string onto the canonical
// Role taxonomy per spec.md §4.C Role mapping. Unknown values fall back to
// RoleInfo rather than being dropped, so producer surprises remain visible
// rather than silently discarded.
func NormalizeRole(raw string) Role {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "user", "human":
		return RoleUser
	case "assistant", "gemini", "model", "ai":
		return RoleAssistant
	case "system", "system_prompt":
		return RoleSystem
	case "tool", "function", "function_call", "function_result", "tool_call", "tool_result":
		return RoleTool
	case "status", "error", "warning", "info":
		return RoleInfo
	default:
		return RoleInfo
	}
}

// AnnotateInfo prefixes error/warning content per spec.md §4.C: "error/warning
// content is prefixed with **Error:** / **Warning:**". kind is the raw,
// lower-cased producer type string that led to RoleInfo classification.
func AnnotateInfo(kind, content string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "error":
		return "**Error:** " + content
	case "warning":
		return "**Warning:** " + content
	default:
		return content
	}
}
