package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"time"
)

// CertificateConfig contains options for self-signed certificate generation.
type CertificateConfig struct {
	// Organization name for the certificate
	Organization string
	// Common name (CN) for the certificate
	CommonName string
	// DNS names the certificate is valid for
	DNSNames []string
	// IP addresses the certificate is valid for
	IPAddresses []net.IP
	// Validity duration
	ValidFor time.Duration
}

// DefaultCertificateConfig returns a configuration suitable for a listener
// bound on the local machine.
func DefaultCertificateConfig() *CertificateConfig {
	return &CertificateConfig{
		Organization: "embedhttpd",
		CommonName:   "localhost",
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1"), net.ParseIP("::1")},
		ValidFor:     365 * 24 * time.Hour,
	}
}

// ForHost returns the default configuration extended with host, which may
// be a DNS name or an IP address. Wildcard hosts add nothing.
func ForHost(host string) *CertificateConfig {
	cfg := DefaultCertificateConfig()
	switch host {
	case "", "0.0.0.0", "::", "localhost":
		return cfg
	}
	if ip := net.ParseIP(host); ip != nil {
		cfg.IPAddresses = append(cfg.IPAddresses, ip)
	} else {
		cfg.DNSNames = append(cfg.DNSNames, host)
		cfg.CommonName = host
	}
	return cfg
}

// GenerateSelfSigned creates a P-256 key and a self-signed server
// certificate, both PEM encoded.
func GenerateSelfSigned(cfg *CertificateConfig) (*Material, error) {
	if cfg == nil {
		cfg = DefaultCertificateConfig()
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}

	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	notBefore := time.Now().Add(-time.Minute)
	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{cfg.Organization},
			CommonName:   cfg.CommonName,
		},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(cfg.ValidFor),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              cfg.DNSNames,
		IPAddresses:           cfg.IPAddresses,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}

	return &Material{
		CertPEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER}),
		KeyPEM:  pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}),
	}, nil
}
