package bridge

import (
	cryptotls "crypto/tls"
	"crypto/x509"
	"io"
	"strings"
)

func stringsReader(s string) io.Reader { return strings.NewReader(s) }

func tlsClientConfig(pool *x509.CertPool) *cryptotls.Config {
	return &cryptotls.Config{RootCAs: pool, MinVersion: cryptotls.VersionTLS12}
}
