// Package tls loads and generates the certificate material that turns an
// instance's listener into an HTTPS listener.
package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// ErrInvalidMaterial is returned when certificate material cannot be read
// or does not form a usable key pair.
const ErrInvalidMaterial = materialError("invalid TLS material")

type materialError string

func (e materialError) Error() string { return string(e) }

// Material is a certificate and private key, given inline as PEM or as
// references to PEM files. File references win when both are set, so a
// reload picks up rotated files.
type Material struct {
	CertPEM  []byte `json:"certPem,omitempty"`
	KeyPEM   []byte `json:"keyPem,omitempty"`
	CertFile string `json:"certFile,omitempty"`
	KeyFile  string `json:"keyFile,omitempty"`
}

// IsZero reports whether no material was provided.
func (m *Material) IsZero() bool {
	return m == nil || (len(m.CertPEM) == 0 && len(m.KeyPEM) == 0 && m.CertFile == "" && m.KeyFile == "")
}

// Certificate reads the material and parses the key pair.
func (m *Material) Certificate() (tls.Certificate, error) {
	if m.IsZero() {
		return tls.Certificate{}, fmt.Errorf("%w: no certificate or key", ErrInvalidMaterial)
	}

	certPEM, keyPEM := m.CertPEM, m.KeyPEM
	if m.CertFile != "" || m.KeyFile != "" {
		var err error
		if certPEM, err = os.ReadFile(m.CertFile); err != nil {
			return tls.Certificate{}, fmt.Errorf("%w: reading certificate: %w", ErrInvalidMaterial, err)
		}
		if keyPEM, err = os.ReadFile(m.KeyFile); err != nil {
			return tls.Certificate{}, fmt.Errorf("%w: reading key: %w", ErrInvalidMaterial, err)
		}
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("%w: %w", ErrInvalidMaterial, err)
	}
	return cert, nil
}

// ServerConfig builds a server TLS configuration from the material.
func (m *Material) ServerConfig() (*tls.Config, error) {
	cert, err := m.Certificate()
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		NextProtos:   []string{"http/1.1"},
	}, nil
}

// CertPool returns a pool trusting the material's certificate. Clients use
// it to reach a listener that serves self-signed material.
func (m *Material) CertPool() (*x509.CertPool, error) {
	cert, err := m.Certificate()
	if err != nil {
		return nil, err
	}
	leaf := cert.Leaf
	if leaf == nil {
		if leaf, err = x509.ParseCertificate(cert.Certificate[0]); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidMaterial, err)
		}
	}
	pool := x509.NewCertPool()
	pool.AddCert(leaf)
	return pool, nil
}
