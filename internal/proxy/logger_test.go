package proxy

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestShortHash_RegressionVector(t *testing.T) {
	require.Equal(t, "d071e5", shortHash("test"))
}

func TestExtractDomain_Scenarios(t *testing.T) {
	require.Equal(t, "example.com", extractDomain("https://example.com:8080/foo"))
	require.Equal(t, "192.168.1.1", extractDomain("http://192.168.1.1"))
	require.Equal(t, "api.example.com", extractDomain("api.example.com/foo"))
}

func TestExchangeLogger_PairsRequestAndResponse(t *testing.T) {
	dir := t.TempDir()
	l := NewExchangeLogger(dir, zerolog.Nop())

	ts := time.Date(2024, 5, 1, 10, 20, 30, 0, time.UTC)
	l.LogRequest(PendingRequest{Timestamp: ts, Method: "POST", URL: "https://api.example.com/v1"})
	l.LogResponse(200, "application/json", map[string]interface{}{"ok": true})

	entries, err := os.ReadDir(filepath.Join(dir, "api.example.com", "2024-05-01"))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(dir, "api.example.com", "2024-05-01", entries[0].Name()))
	require.NoError(t, err)
	var ex Exchange
	require.NoError(t, json.Unmarshal(data, &ex))
	require.Equal(t, "POST", ex.Method)
	require.Equal(t, 200, ex.ResponseStatus)
}

func TestExchangeLogger_OrphanResponseDropped(t *testing.T) {
	dir := t.TempDir()
	l := NewExchangeLogger(dir, zerolog.Nop())
	l.LogResponse(200, "application/json", nil)

	entries, _ := os.ReadDir(dir)
	require.Empty(t, entries)
}

func TestDecodeBody_SentinelForNonJSON(t *testing.T) {
	require.Equal(t, "[binary 5 bytes]", DecodeBody([]byte("\x00\x01\x02hi")[:5]))
	require.Equal(t, map[string]interface{}{"a": float64(1)}, DecodeBody([]byte(`{"a":1}`)))
}
