// Package ca implements the persistent interception root of spec.md §4.D:
// load-or-generate a self-signed CA, mint per-host leaf certificates on
// demand, and cache them. Grounded on original
// apps/core/src/interceptor/cert.rs; no certificate-generation library
// exists anywhere in the retrieval pack (checked against every
// other_examples/manifests/*/go.mod and all full example repos), so this
// is the one component built on stdlib crypto/x509 by necessity rather
// than as a stylistic choice.
package ca

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

const (
	commonName       = "EchoVault Interceptor CA"
	organization     = "EchoVault"
	rootValidityYears = 10
	leafValidityDays  = 825 // under the ~398-day browser ceiling would be nicer per-leaf, but 825 matches a long-lived local trust root
	leafCacheCapacity = 1000
)

// Authority owns the root certificate/key and mints leaf certificates for
// MITM'd hosts on demand, caching them up to leafCacheCapacity entries.
type Authority struct {
	certPath string
	keyPath  string

	rootCert *x509.Certificate
	rootKey  *ecdsa.PrivateKey
	rootTLS  tls.Certificate

	mu    sync.Mutex
	cache map[string]*tls.Certificate
	order []string // insertion order, oldest first; evicted first-in first-out (cache hits do not reorder)
}

// Load loads the CA from certPath/keyPath if both exist, otherwise
// generates and persists a new root, per spec.md §4.D.
func Load(certPath, keyPath string) (*Authority, error) {
	if fileExists(certPath) && fileExists(keyPath) {
		return loadExisting(certPath, keyPath)
	}
	return generate(certPath, keyPath)
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func loadExisting(certPath, keyPath string) (*Authority, error) {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("read CA cert: %w", err)
	}
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read CA key: %w", err)
	}

	certBlock, _ := pem.Decode(certPEM)
	if certBlock == nil {
		return nil, fmt.Errorf("decode CA cert PEM: no block found")
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse CA cert: %w", err)
	}

	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil {
		return nil, fmt.Errorf("decode CA key PEM: no block found")
	}
	key, err := x509.ParseECPrivateKey(keyBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse CA key: %w", err)
	}

	tlsCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("build CA tls keypair: %w", err)
	}

	return &Authority{
		certPath: certPath,
		keyPath:  keyPath,
		rootCert: cert,
		rootKey:  key,
		rootTLS:  tlsCert,
		cache:    make(map[string]*tls.Certificate),
	}, nil
}

func generate(certPath, keyPath string) (*Authority, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate CA key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("generate CA serial: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   commonName,
			Organization: []string{organization},
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().AddDate(rootValidityYears, 0, 0),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("self-sign CA: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("parse generated CA cert: %w", err)
	}

	certPEMBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("marshal CA key: %w", err)
	}
	keyPEMBytes := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	if err := os.MkdirAll(filepath.Dir(certPath), 0o755); err != nil {
		return nil, fmt.Errorf("create CA dir: %w", err)
	}
	if err := os.WriteFile(certPath, certPEMBytes, 0o644); err != nil {
		return nil, fmt.Errorf("write CA cert: %w", err)
	}
	if err := os.WriteFile(keyPath, keyPEMBytes, 0o600); err != nil {
		return nil, fmt.Errorf("write CA key: %w", err)
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(keyPath, 0o600); err != nil {
			return nil, fmt.Errorf("restrict CA key permissions: %w", err)
		}
	}

	tlsCert, err := tls.X509KeyPair(certPEMBytes, keyPEMBytes)
	if err != nil {
		return nil, fmt.Errorf("build CA tls keypair: %w", err)
	}

	return &Authority{
		certPath: certPath,
		keyPath:  keyPath,
		rootCert: cert,
		rootKey:  key,
		rootTLS:  tlsCert,
		cache:    make(map[string]*tls.Certificate),
	}, nil
}

// CertPath and KeyPath expose the CA file locations for OS-trust setup
// instructions (setup.go).
func (a *Authority) CertPath() string { return a.certPath }
func (a *Authority) KeyPath() string  { return a.keyPath }

// RootPEM returns the root certificate's PEM encoding, used to verify CA
// persistence across runs (spec.md §8 invariant 6).
func (a *Authority) RootPEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: a.rootCert.Raw})
}

// LeafFor returns a cached or freshly minted leaf certificate for host,
// signed by this authority. Thread-safe: the leaf cache is guarded by a
// short critical section that never spans I/O (spec.md §9 design note).
func (a *Authority) LeafFor(host string) (*tls.Certificate, error) {
	a.mu.Lock()
	if cert, ok := a.cache[host]; ok {
		a.mu.Unlock()
		return cert, nil
	}
	a.mu.Unlock()

	leaf, err := a.mintLeaf(host)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if cert, ok := a.cache[host]; ok {
		return cert, nil // another goroutine minted it first
	}
	a.evictIfFull()
	a.cache[host] = leaf
	a.order = append(a.order, host)
	return leaf, nil
}

func (a *Authority) evictIfFull() {
	if len(a.cache) < leafCacheCapacity {
		return
	}
	oldest := a.order[0]
	a.order = a.order[1:]
	delete(a.cache, oldest)
}

func (a *Authority) mintLeaf(host string) (*tls.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate leaf key for %s: %w", host, err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("generate leaf serial: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: host, Organization: []string{organization}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().AddDate(0, 0, leafValidityDays),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{host},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, a.rootCert, &key.PublicKey, a.rootKey)
	if err != nil {
		return nil, fmt.Errorf("sign leaf for %s: %w", host, err)
	}

	return &tls.Certificate{
		Certificate: [][]byte{der, a.rootCert.Raw},
		PrivateKey:  key,
	}, nil
}
