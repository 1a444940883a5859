package server

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// MutualTLSFiles names the PEM files of a listener that only accepts clients
// presenting a certificate signed by CAFile.
type MutualTLSFiles struct {
	CertFile string
	KeyFile  string
	CAFile   string
}

// Load reads the key pair and client CA bundle into a TLS 1.2+ server config.
func (f MutualTLSFiles) Load() (*tls.Config, error) {
	if f.CertFile == "" || f.KeyFile == "" || f.CAFile == "" {
		return nil, errors.New("certificate, key and CA files are all required")
	}

	pair, err := tls.LoadX509KeyPair(f.CertFile, f.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load key pair %s: %w", f.CertFile, err)
	}

	bundle, err := os.ReadFile(f.CAFile)
	if err != nil {
		return nil, fmt.Errorf("read client CA bundle: %w", err)
	}
	clientCAs := x509.NewCertPool()
	if !clientCAs.AppendCertsFromPEM(bundle) {
		return nil, fmt.Errorf("no PEM certificates found in %s", f.CAFile)
	}

	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{pair},
		ClientCAs:    clientCAs,
		ClientAuth:   tls.RequireAndVerifyClientCert,
	}, nil
}
