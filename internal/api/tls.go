package api

import (
	"crypto/tls"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// TLSConfig holds certificate paths loaded from the environment.
type TLSConfig struct {
	CertFile string `env:"DIALOGUE_TLS_CERT"`
	KeyFile  string `env:"DIALOGUE_TLS_KEY"`
}

var tlsConfig *TLSConfig

// InitTLS reads DIALOGUE_TLS_CERT and DIALOGUE_TLS_KEY. TLS is enabled only
// when both are set.
func InitTLS() error {
	var cfg TLSConfig
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse tls env: %w", err)
	}
	tlsConfig = nil
	if cfg.CertFile != "" && cfg.KeyFile != "" {
		tlsConfig = &cfg
	}
	return nil
}

// IsTLSEnabled returns true if TLS is configured.
func IsTLSEnabled() bool {
	return tlsConfig != nil && tlsConfig.CertFile != "" && tlsConfig.KeyFile != ""
}

// GetTLSConfig returns the current TLS configuration (may be nil).
func GetTLSConfig() *TLSConfig {
	return tlsConfig
}

// LoadTLSConfig loads the key pair. It returns nil, nil when TLS is off.
func LoadTLSConfig() (*tls.Config, error) {
	if !IsTLSEnabled() {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(tlsConfig.CertFile, tlsConfig.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load tls key pair: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// SetTLSConfigForTest allows tests to set TLS config directly.
func SetTLSConfigForTest(cfg *TLSConfig) {
	tlsConfig = cfg
}
