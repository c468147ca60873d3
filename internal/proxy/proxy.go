// Package proxy implements the TLS intercepting proxy of spec.md §4.E: a
// loopback HTTP(S) listener that selectively MITMs configured AI-API
// hostnames and blind-tunnels everything else. Grounded on the original
// apps/core/src/interceptor/proxy.rs (built on the `hudsucker` crate) and
// the teacher's graceful-shutdown-via-context idiom (main.go).
package proxy

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/shshwtsuthar/echovault/internal/ca"
)

// State is the proxy's lifecycle state machine: Stopped -> Running{port} ->
// Stopped | Error{msg}, per spec.md §4.H.
type State int

const (
	Stopped State = iota
	Running
	Errored
)

func (s State) String() string {
	switch s {
	case Running:
		return "Running"
	case Errored:
		return "Error"
	default:
		return "Stopped"
	}
}

// Config configures one Proxy instance.
type Config struct {
	Port          int
	TargetDomains []string
	OutDir        string // intercepted-exchange output root (vault "intercepted/" dir)
}

// Proxy is a single loopback intercepting proxy instance.
type Proxy struct {
	cfg Config
	ca  *ca.Authority
	log zerolog.Logger

	logger *ExchangeLogger

	mu        sync.Mutex
	state     State
	port      int
	errReason string
	listener  net.Listener
	wg        sync.WaitGroup
}

// New returns a Proxy in the Stopped state.
func New(cfg Config, authority *ca.Authority, log zerolog.Logger) *Proxy {
	return &Proxy{
		cfg:    cfg,
		ca:     authority,
		log:    log,
		logger: NewExchangeLogger(cfg.OutDir, log),
	}
}

// State reports the current lifecycle state and, if Running, the bound port.
func (p *Proxy) State() (State, int, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, p.port, p.errReason
}

// Start binds the configured port and begins accepting connections. It
// returns once the listener is bound; serving continues in the background
// until ctx is cancelled or Stop is called.
func (p *Proxy) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.state == Running {
		p.mu.Unlock()
		return fmt.Errorf("proxy already running on port %d", p.port)
	}
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", p.cfg.Port))
	if err != nil {
		p.state = Errored
		p.errReason = err.Error()
		p.mu.Unlock()
		return fmt.Errorf("listen: %w", err)
	}
	p.listener = ln
	p.port = ln.Addr().(*net.TCPAddr).Port
	p.state = Running
	p.mu.Unlock()

	p.log.Info().Int("port", p.port).Msg("proxy listening")

	go func() {
		<-ctx.Done()
		p.Stop()
	}()

	p.wg.Add(1)
	go p.serve(ctx, ln)
	return nil
}

// Stop idempotently transitions the proxy to Stopped, closing the
// listener. Safe to call multiple times or concurrently with Start's
// context-cancellation watcher.
func (p *Proxy) Stop() error {
	p.mu.Lock()
	if p.state != Running {
		p.mu.Unlock()
		return nil
	}
	p.state = Stopped
	ln := p.listener
	p.listener = nil
	p.mu.Unlock()

	if ln != nil {
		_ = ln.Close()
	}
	p.wg.Wait()
	return nil
}

func (p *Proxy) serve(ctx context.Context, ln net.Listener) {
	defer p.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			p.mu.Lock()
			stopped := p.state != Running
			p.mu.Unlock()
			if stopped {
				return
			}
			p.log.Warn().Err(err).Msg("accept failed")
			continue
		}
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			defer conn.Close()
			if err := p.handleConnection(ctx, conn); err != nil {
				p.log.Debug().Err(err).Msg("connection closed")
			}
		}()
	}
}

// handleConnection reads one request off conn: a CONNECT (HTTPS tunneling
// handshake) or a plain HTTP request relayed to its absolute URI.
func (p *Proxy) handleConnection(ctx context.Context, conn net.Conn) error {
	reader := bufio.NewReader(conn)
	req, err := http.ReadRequest(reader)
	if err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("read request: %w", err)
	}

	if req.Method == http.MethodConnect {
		return p.handleConnect(ctx, conn, reader, req)
	}
	return p.handlePlainHTTP(ctx, conn, req)
}

// handleConnect decides intercept vs tunnel for a CONNECT target, per
// spec.md §4.E.
func (p *Proxy) handleConnect(ctx context.Context, conn net.Conn, reader *bufio.Reader, req *http.Request) error {
	host := hostOnly(req.URL.Host)
	if host == "" {
		host = hostOnly(req.Host)
	}

	if _, err := io.WriteString(conn, "HTTP/1.1 200 Connection Established\r\n\r\n"); err != nil {
		return fmt.Errorf("write CONNECT response: %w", err)
	}

	if !matchesTargetDomain(host, p.cfg.TargetDomains) {
		return p.tunnel(ctx, conn, req.URL.Host)
	}
	return p.interceptTLS(ctx, conn, host, req.URL.Host)
}

// tunnel opens a raw TCP pipe to target and shuttles bytes untouched.
func (p *Proxy) tunnel(ctx context.Context, client net.Conn, target string) error {
	var d net.Dialer
	upstream, err := d.DialContext(ctx, "tcp", target)
	if err != nil {
		return fmt.Errorf("dial upstream %s: %w", target, err)
	}
	defer upstream.Close()

	errc := make(chan error, 2)
	go func() { _, err := io.Copy(upstream, client); errc <- err }()
	go func() { _, err := io.Copy(client, upstream); errc <- err }()
	<-errc
	return nil
}

// interceptTLS completes a client-facing TLS handshake using a leaf minted
// for host, opens an upstream TLS connection to the real host, and relays
// observed HTTP requests/responses between them.
func (p *Proxy) interceptTLS(ctx context.Context, client net.Conn, host, upstreamAddr string) error {
	leaf, err := p.ca.LeafFor(host)
	if err != nil {
		return fmt.Errorf("mint leaf for %s: %w", host, err)
	}

	tlsClientConn := tls.Server(client, &tls.Config{
		Certificates: []tls.Certificate{*leaf},
	})
	if err := tlsClientConn.HandshakeContext(ctx); err != nil {
		return fmt.Errorf("client tls handshake for %s: %w", host, err)
	}
	defer tlsClientConn.Close()

	var d net.Dialer
	rawUpstream, err := d.DialContext(ctx, "tcp", upstreamAddr)
	if err != nil {
		return fmt.Errorf("dial upstream %s: %w", upstreamAddr, err)
	}
	defer rawUpstream.Close()

	upstreamTLS := tls.Client(rawUpstream, &tls.Config{ServerName: host})
	if err := upstreamTLS.HandshakeContext(ctx); err != nil {
		return fmt.Errorf("upstream tls handshake for %s: %w", host, err)
	}
	defer upstreamTLS.Close()

	clientReader := bufio.NewReader(tlsClientConn)
	for {
		req, err := http.ReadRequest(clientReader)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read intercepted request: %w", err)
		}
		if err := p.proxyOneExchange(req, tlsClientConn, upstreamTLS); err != nil {
			return err
		}
	}
}

// proxyOneExchange observes, logs, and forwards one intercepted
// request/response pair, per spec.md §4.E's rematerialization requirement.
func (p *Proxy) proxyOneExchange(req *http.Request, client io.Writer, upstream *tls.Conn) error {
	var reqBody []byte
	if req.Body != nil {
		reqBody, _ = io.ReadAll(req.Body)
		req.Body.Close()
	}

	var reqCT *string
	if ct := req.Header.Get("Content-Type"); ct != "" {
		reqCT = &ct
	}
	p.logger.LogRequest(PendingRequest{
		Timestamp:          time.Now().UTC(),
		Method:             req.Method,
		URL:                req.URL.String(),
		RequestContentType: reqCT,
		RequestBody:        DecodeBody(reqBody),
	})

	req.Body = io.NopCloser(newBytesReader(reqBody))
	req.ContentLength = int64(len(reqBody))
	if err := req.Write(upstream); err != nil {
		return fmt.Errorf("forward request upstream: %w", err)
	}

	upstreamReader := bufio.NewReader(upstream)
	resp, err := http.ReadResponse(upstreamReader, req)
	if err != nil {
		return fmt.Errorf("read upstream response: %w", err)
	}
	respBody, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	p.logger.LogResponse(resp.StatusCode, resp.Header.Get("Content-Type"), DecodeBody(respBody))

	resp.Body = io.NopCloser(newBytesReader(respBody))
	resp.ContentLength = int64(len(respBody))
	return resp.Write(client)
}

// handlePlainHTTP relays a plain (non-CONNECT) proxy request. Per spec.md
// §4.E, plain HTTP to a target host is also subject to the intercept-vs-
// tunnel disposition: intercepted hosts are observed and logged exactly
// like the TLS path, just without a handshake.
func (p *Proxy) handlePlainHTTP(ctx context.Context, client net.Conn, req *http.Request) error {
	host := hostOnly(req.Host)
	intercept := matchesTargetDomain(host, p.cfg.TargetDomains)

	var d net.Dialer
	upstream, err := d.DialContext(ctx, "tcp", hostWithPort(req.Host, "80"))
	if err != nil {
		return fmt.Errorf("dial upstream %s: %w", req.Host, err)
	}
	defer upstream.Close()

	if !intercept {
		if err := req.Write(upstream); err != nil {
			return err
		}
		_, err := io.Copy(client, upstream)
		return err
	}

	var reqBody []byte
	if req.Body != nil {
		reqBody, _ = io.ReadAll(req.Body)
		req.Body.Close()
	}
	var reqCT *string
	if ct := req.Header.Get("Content-Type"); ct != "" {
		reqCT = &ct
	}
	p.logger.LogRequest(PendingRequest{
		Timestamp:          time.Now().UTC(),
		Method:             req.Method,
		URL:                req.URL.String(),
		RequestContentType: reqCT,
		RequestBody:        DecodeBody(reqBody),
	})
	req.Body = io.NopCloser(newBytesReader(reqBody))
	req.ContentLength = int64(len(reqBody))
	if err := req.Write(upstream); err != nil {
		return fmt.Errorf("forward request upstream: %w", err)
	}

	upstreamReader := bufio.NewReader(upstream)
	resp, err := http.ReadResponse(upstreamReader, req)
	if err != nil {
		return fmt.Errorf("read upstream response: %w", err)
	}
	respBody, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	p.logger.LogResponse(resp.StatusCode, resp.Header.Get("Content-Type"), DecodeBody(respBody))
	resp.Body = io.NopCloser(newBytesReader(respBody))
	resp.ContentLength = int64(len(respBody))
	return resp.Write(client)
}

func hostOnly(hostport string) string {
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}
	return hostport
}

func hostWithPort(hostport, defaultPort string) string {
	if _, _, err := net.SplitHostPort(hostport); err == nil {
		return hostport
	}
	return net.JoinHostPort(hostport, defaultPort)
}

func newBytesReader(b []byte) io.Reader { return &byteSliceReader{b: b} }

// byteSliceReader avoids importing bytes solely for NewReader in this file.
type byteSliceReader struct {
	b   []byte
	pos int
}

func (r *byteSliceReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.pos:])
	r.pos += n
	return n, nil
}
