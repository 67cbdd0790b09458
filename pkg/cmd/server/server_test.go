package server

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseCSRFKey(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantLen int
		wantErr bool
	}{
		{"empty", "", 0, false},
		{"hex", strings.Repeat("ab", 32), 32, false},
		{"plain", strings.Repeat("k", 32), 32, false},
		{"too short", "secret", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCSRFKey(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Len(t, got, tt.wantLen)
		})
	}
}

func selfSigned(t *testing.T) (certPEM, keyPEM []byte) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	assert.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "tracker.example.com"},
		DNSNames:     []string{"tracker.example.com"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	assert.NoError(t, err)
	keyDer, err := x509.MarshalECPrivateKey(key)
	assert.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDer})
}

func TestNewTLSConfig(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dir := t.TempDir()
	certPEM, keyPEM := selfSigned(t)
	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "key.pem")
	assert.NoError(t, os.WriteFile(certFile, certPEM, 0o600))
	assert.NoError(t, os.WriteFile(keyFile, keyPEM, 0o600))

	acme := fmt.Sprintf(
		`{"le":{"Certificates":[{"domain":{"main":"tracker.example.com"},"certificate":%q,"key":%q}]}}`,
		base64.StdEncoding.EncodeToString(certPEM),
		base64.StdEncoding.EncodeToString(keyPEM))
	acmeFile := filepath.Join(dir, "acme.json")
	assert.NoError(t, os.WriteFile(acmeFile, []byte(acme), 0o600))

	tests := []struct {
		name    string
		src     certSource
		wantNil bool
		wantErr bool
	}{
		{name: "disabled", src: certSource{}, wantNil: true},
		{name: "files", src: certSource{certFile: certFile, keyFile: keyFile}},
		{name: "traefik", src: certSource{
			traefikFile: acmeFile, traefikDomain: "tracker.example.com",
		}},
		{name: "traefik unknown domain", src: certSource{
			traefikFile: acmeFile, traefikDomain: "other.example.com",
		}, wantErr: true},
		{name: "missing files", src: certSource{
			certFile: filepath.Join(dir, "nope.pem"), keyFile: keyFile,
		}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := newTLSConfig(ctx, tt.src)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, cfg)
				return
			}
			cert, err := cfg.GetCertificate(&tls.ClientHelloInfo{})
			assert.NoError(t, err)
			assert.NotEmpty(t, cert.Certificate)
		})
	}
}
