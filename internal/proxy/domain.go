package proxy

import "strings"

// extractDomain derives the bare hostname from a request target, per
// spec.md §8 concrete scenario 4: a scheme-qualified URL, a bare host:port,
// or a bare host are all accepted; the port (if any) is stripped.
func extractDomain(target string) string {
	s := target
	if idx := strings.Index(s, "://"); idx >= 0 {
		s = s[idx+3:]
	}
	if idx := strings.IndexAny(s, "/?#"); idx >= 0 {
		s = s[:idx]
	}
	if idx := strings.LastIndex(s, "@"); idx >= 0 {
		s = s[idx+1:]
	}
	if strings.HasPrefix(s, "[") {
		if end := strings.Index(s, "]"); end >= 0 {
			return s[1:end] // bracketed IPv6 literal
		}
	}
	if idx := strings.LastIndex(s, ":"); idx >= 0 {
		if !strings.Contains(s[idx+1:], ".") && isAllDigits(s[idx+1:]) {
			return s[:idx]
		}
	}
	return s
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// matchesTargetDomain reports whether host (or any of its parent domains)
// is a suffix match of one of the configured target domains, per spec.md
// §4.E's selective-MITM disposition.
func matchesTargetDomain(host string, targets []string) bool {
	host = strings.ToLower(extractDomain(host))
	for _, t := range targets {
		t = strings.ToLower(t)
		if host == t || strings.HasSuffix(host, "."+t) {
			return true
		}
	}
	return false
}
