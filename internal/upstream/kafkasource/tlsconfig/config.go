// Package tlsconfig builds a *tls.Config for the Kafka client dialer:
// CA trust and an optional client certificate for mutual TLS. Server-side
// concerns like client-auth modes don't apply to a client dialer and are
// left out.
package tlsconfig

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log"
	"os"
)

// Config represents the TLS options for connecting to Kafka brokers.
type Config struct {
	Enabled            bool   `yaml:"enabled,omitempty"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify,omitempty"`
	CACert             string `yaml:"ca_cert,omitempty"`
	CACertData         string `yaml:"ca_cert_data,omitempty"`
	ClientCert         string `yaml:"client_cert,omitempty"`
	ClientCertData     string `yaml:"client_cert_data,omitempty"`
	ClientKey          string `yaml:"client_key,omitempty"`
	ClientKeyData      string `yaml:"client_key_data,omitempty"`
	ServerName         string `yaml:"server_name,omitempty"`
	MinVersion         string `yaml:"min_version,omitempty"`
}

// Validate checks the option combinations are internally consistent.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.InsecureSkipVerify {
		log.Printf("WARNING: kafka TLS insecure_skip_verify is enabled; certificate verification is disabled")
	}
	if c.CACert != "" && c.CACertData != "" {
		return fmt.Errorf("cannot specify both ca_cert and ca_cert_data")
	}
	hasCert := c.ClientCert != "" || c.ClientCertData != ""
	hasKey := c.ClientKey != "" || c.ClientKeyData != ""
	if hasCert != hasKey {
		return fmt.Errorf("both client certificate and key must be provided for mutual TLS")
	}
	if c.MinVersion != "" {
		if _, err := parseTLSVersion(c.MinVersion); err != nil {
			return err
		}
	}
	return nil
}

// NewTLSConfig builds a *tls.Config from c, or nil if TLS is disabled.
func (c *Config) NewTLSConfig() (*tls.Config, error) {
	if !c.Enabled {
		return nil, nil
	}

	cfg := &tls.Config{
		InsecureSkipVerify: c.InsecureSkipVerify, // #nosec G402 - explicit opt-in, logged above
		ServerName:         c.ServerName,
		MinVersion:         tls.VersionTLS12,
	}
	if c.MinVersion != "" {
		v, err := parseTLSVersion(c.MinVersion)
		if err != nil {
			return nil, fmt.Errorf("invalid min_version: %w", err)
		}
		cfg.MinVersion = v
	}

	if c.CACert != "" || c.CACertData != "" {
		pool, err := loadCertPool(c.CACert, c.CACertData)
		if err != nil {
			return nil, fmt.Errorf("failed to load CA certificate: %w", err)
		}
		cfg.RootCAs = pool
	}

	if c.ClientCert != "" || c.ClientCertData != "" {
		cert, err := loadKeyPair(c.ClientCert, c.ClientCertData, c.ClientKey, c.ClientKeyData)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	return cfg, nil
}

func loadCertPool(path, inlineData string) (*x509.CertPool, error) {
	data, err := readPEM(path, inlineData)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("failed to parse certificate")
	}
	return pool, nil
}

func loadKeyPair(certPath, certData, keyPath, keyData string) (tls.Certificate, error) {
	cert, err := readPEM(certPath, certData)
	if err != nil {
		return tls.Certificate{}, err
	}
	key, err := readPEM(keyPath, keyData)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.X509KeyPair(cert, key)
}

func readPEM(path, inlineData string) ([]byte, error) {
	if path != "" {
		return os.ReadFile(path)
	}
	if inlineData != "" {
		return []byte(inlineData), nil
	}
	return nil, fmt.Errorf("no certificate data provided")
}

func parseTLSVersion(version string) (uint16, error) {
	switch version {
	case "1.0":
		return tls.VersionTLS10, nil
	case "1.1":
		return tls.VersionTLS11, nil
	case "1.2":
		return tls.VersionTLS12, nil
	case "1.3":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("unknown TLS version: %s (supported: 1.0, 1.1, 1.2, 1.3)", version)
	}
}
