// Exchange logging: pairs a request with its response and serializes the
// pair to a per-domain/per-day JSONL file. Grounded on original
// apps/core/src/interceptor/logger.rs, including its exact FNV-1a hash
// constants (regression-tested: short_hash("test") == "d071e5").
package proxy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	fnvOffsetBasis uint32 = 0x811c9dc5
	fnvPrime       uint32 = 0x01000193
)

// shortHash is a six-hex-character FNV-1a hash of s, masked to 24 bits, per
// spec.md §4.F and the regression case in §8 scenario 3.
func shortHash(s string) string {
	h := fnvOffsetBasis
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return fmt.Sprintf("%06x", h&0xFFFFFF)
}

// PendingRequest is the request-side half of an exchange, captured before
// the upstream round-trip, per spec.md §3.4.
type PendingRequest struct {
	Timestamp          time.Time
	Method             string
	URL                string
	RequestContentType *string
	RequestBody        interface{} // JSON value, or a sentinel string, or nil
}

// Exchange is the immutable JSONL record of spec.md §3.4/§6.
type Exchange struct {
	Timestamp           time.Time   `json:"timestamp"`
	Method              string      `json:"method"`
	URL                 string      `json:"url"`
	RequestContentType  *string     `json:"request_content_type"`
	RequestBody         interface{} `json:"request_body"`
	ResponseStatus      int         `json:"response_status"`
	ResponseContentType string      `json:"response_content_type"`
	ResponseBody        interface{} `json:"response_body"`
}

// ExchangeLogger pairs requests with responses via a single-slot mutual
// exclusion cell (spec.md §9 design note: "avoid using a queue") and writes
// paired exchanges as JSONL under outDir.
type ExchangeLogger struct {
	outDir string
	log    zerolog.Logger

	mu      sync.Mutex
	pending *PendingRequest
}

// NewExchangeLogger returns a logger writing under outDir.
func NewExchangeLogger(outDir string, log zerolog.Logger) *ExchangeLogger {
	return &ExchangeLogger{outDir: outDir, log: log}
}

// LogRequest stores req as the single pending request, awaiting its
// response. A request logged before the previous one received a response
// silently replaces it — at most one request is pending at a time, per the
// proxy's strict per-connection request/response ordering (spec.md §5).
func (l *ExchangeLogger) LogRequest(req PendingRequest) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = &req
}

// LogResponse takes the pending request, pairs it with status/contentType/
// body, and appends the resulting exchange to the day's JSONL file. A
// response with no pending request is logged as a warning and dropped
// (spec.md §4.F, §8 invariant 4).
func (l *ExchangeLogger) LogResponse(status int, contentType string, body interface{}) {
	l.mu.Lock()
	req := l.pending
	l.pending = nil
	l.mu.Unlock()

	if req == nil {
		l.log.Warn().Msg("response with no pending request, dropped")
		return
	}

	ex := Exchange{
		Timestamp:           req.Timestamp,
		Method:              req.Method,
		URL:                 req.URL,
		RequestContentType:  req.RequestContentType,
		RequestBody:         req.RequestBody,
		ResponseStatus:      status,
		ResponseContentType: contentType,
		ResponseBody:        body,
	}
	if err := l.write(ex); err != nil {
		l.log.Warn().Err(err).Str("url", ex.URL).Msg("write exchange failed")
	}
}

func (l *ExchangeLogger) write(ex Exchange) error {
	domain := extractDomain(ex.URL)
	date := ex.Timestamp.UTC().Format("2006-01-02")
	dir := filepath.Join(l.outDir, domain, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	ts := ex.Timestamp.UTC()
	timePart := fmt.Sprintf("%s_%03d", ts.Format("150405"), ts.Nanosecond()/1e6)
	name := fmt.Sprintf("%s_%s.jsonl", timePart, shortHash(ex.URL))
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	line, err := json.Marshal(ex)
	if err != nil {
		return fmt.Errorf("marshal exchange: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// DecodeBody returns body as a parsed JSON value if it parses, otherwise
// the "[binary N bytes]" sentinel of spec.md §3.4/§8.
func DecodeBody(body []byte) interface{} {
	if len(body) == 0 {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(body, &v); err == nil {
		return v
	}
	return fmt.Sprintf("[binary %d bytes]", len(body))
}
