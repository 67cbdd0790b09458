// Package traefik reads certificates from a traefik acme.json store.
package traefik

import (
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

var ErrDomainNotFound = errors.New("domain not found")

type acmeEntry struct {
	Certificate string `json:"certificate"`
	Key         string `json:"key"`
}

// LoadCertificate reads the acme store at file and returns the key pair for domain.
func LoadCertificate(file, domain string) (tls.Certificate, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("read acme store: %w", err)
	}
	return ParseCertificate(data, domain)
}

// ParseCertificate extracts the key pair for domain from acme store content.
func ParseCertificate(data []byte, domain string) (tls.Certificate, error) {
	entry, err := lookup(data, domain)
	if err != nil {
		return tls.Certificate{}, err
	}
	certPEM, err := base64.StdEncoding.DecodeString(entry.Certificate)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("decode certificate: %w", err)
	}
	keyPEM, err := base64.StdEncoding.DecodeString(entry.Key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("decode key: %w", err)
	}
	return tls.X509KeyPair(certPEM, keyPEM)
}

// lookup finds the entry of domain in any resolver of the store
func lookup(data []byte, domain string) (*acmeEntry, error) {
	obj, err := oj.Parse(data)
	if err != nil {
		return nil, err
	}
	path, err := jp.ParseString(
		fmt.Sprintf(`$..Certificates[?(@.domain.main == %q)]`, domain))
	if err != nil {
		return nil, err
	}
	res := path.Get(obj)
	if len(res) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrDomainNotFound, domain)
	}
	ret := &acmeEntry{}
	if err := oj.Unmarshal([]byte(oj.JSON(res[0])), ret); err != nil {
		return nil, err
	}
	return ret, nil
}
