package api

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestInitTLS(t *testing.T) {
	tests := []struct {
		name    string
		cert    string
		key     string
		enabled bool
	}{
		{"neither", "", "", false},
		{"only cert", "/path/to/cert.pem", "", false},
		{"only key", "", "/path/to/key.pem", false},
		{"both", "/path/to/cert.pem", "/path/to/key.pem", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DIALOGUE_TLS_CERT", tt.cert)
			t.Setenv("DIALOGUE_TLS_KEY", tt.key)
			SetTLSConfigForTest(nil)
			t.Cleanup(func() { SetTLSConfigForTest(nil) })

			if err := InitTLS(); err != nil {
				t.Fatalf("InitTLS failed: %v", err)
			}
			if IsTLSEnabled() != tt.enabled {
				t.Fatalf("IsTLSEnabled() = %v, want %v", IsTLSEnabled(), tt.enabled)
			}
			if tt.enabled {
				cfg := GetTLSConfig()
				if cfg.CertFile != tt.cert || cfg.KeyFile != tt.key {
					t.Errorf("unexpected config %+v", cfg)
				}
			}
		})
	}
}

func TestLoadTLSConfigNotEnabled(t *testing.T) {
	SetTLSConfigForTest(nil)

	cfg, err := LoadTLSConfig()
	if err != nil || cfg != nil {
		t.Errorf("expected nil config and error, got %v, %v", cfg, err)
	}
}

func TestLoadTLSConfigInvalidFiles(t *testing.T) {
	SetTLSConfigForTest(&TLSConfig{
		CertFile: "/nonexistent/cert.pem",
		KeyFile:  "/nonexistent/key.pem",
	})
	t.Cleanup(func() { SetTLSConfigForTest(nil) })

	if _, err := LoadTLSConfig(); err == nil {
		t.Error("expected error for missing files")
	}
}

func TestLoadTLSConfigSelfSigned(t *testing.T) {
	certFile, keyFile := writeSelfSigned(t)
	SetTLSConfigForTest(&TLSConfig{CertFile: certFile, KeyFile: keyFile})
	t.Cleanup(func() { SetTLSConfigForTest(nil) })

	cfg, err := LoadTLSConfig()
	if err != nil {
		t.Fatalf("LoadTLSConfig failed: %v", err)
	}
	if len(cfg.Certificates) != 1 {
		t.Errorf("expected 1 certificate, got %d", len(cfg.Certificates))
	}
}

func writeSelfSigned(t *testing.T) (string, string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		DNSNames:     []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "key.pem")
	if err := os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600); err != nil {
		t.Fatal(err)
	}
	return certFile, keyFile
}
