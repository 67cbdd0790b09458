package server

import (
	"context"
	"crypto/tls"
	"errors"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/mpapenbr/portion-tracker-go/log"
	"github.com/mpapenbr/portion-tracker-go/pkg/utils/certs/traefik"
)

// certSource names where the server certificate comes from. A traefik acme
// store takes precedence over cert/key files.
type certSource struct {
	certFile      string
	keyFile       string
	traefikFile   string
	traefikDomain string
}

func (s certSource) enabled() bool {
	return (s.traefikFile != "" && s.traefikDomain != "") ||
		(s.certFile != "" && s.keyFile != "")
}

func (s certSource) files() []string {
	if s.traefikFile != "" && s.traefikDomain != "" {
		return []string{s.traefikFile}
	}
	return []string{s.certFile, s.keyFile}
}

type certs struct {
	src  certSource
	log  *log.Logger
	mu   sync.RWMutex
	cert *tls.Certificate
}

// newTLSConfig returns nil if no certificate is configured. The certificate is
// reloaded whenever one of its files changes until ctx is done.
func newTLSConfig(ctx context.Context, src certSource) (*tls.Config, error) {
	if !src.enabled() {
		return nil, nil
	}
	c := &certs{
		src: src,
		log: log.GetFromContext(ctx).Named("certs"),
	}
	if err := c.loadCert(); err != nil {
		return nil, err
	}
	go c.watchAndReloadCerts(ctx)
	return &tls.Config{
		GetCertificate: c.getCertificate,
		MinVersion:     tls.VersionTLS12,
		NextProtos:     []string{"h2", "http/1.1"},
	}, nil
}

func (c *certs) getCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cert == nil {
		return nil, errors.New("no certificate loaded")
	}
	return c.cert, nil
}

func (c *certs) watchAndReloadCerts(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		c.log.Error("could not create fsnotify watcher", log.ErrorField(err))
		return
	}
	defer watcher.Close()
	for _, f := range c.src.files() {
		if err := watcher.Add(f); err != nil {
			c.log.Error("could not watch file", log.String("file", f), log.ErrorField(err))
		}
	}
	for {
		select {
		case <-ctx.Done():
			c.log.Debug("context done, stopping cert reload")
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			c.log.Debug("change detected",
				log.String("file", event.Name), log.String("op", event.Op.String()))
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Chmod) ||
				event.Has(fsnotify.Create) {

				c.log.Info("cert file changed, reloading cert",
					log.String("file", event.Name))
				if err := c.loadCert(); err != nil {
					c.log.Error("could not reload cert", log.ErrorField(err))
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			c.log.Error("watcher error", log.ErrorField(err))
		}
	}
}

func (c *certs) loadCert() error {
	var (
		cert tls.Certificate
		err  error
	)
	if c.src.traefikFile != "" && c.src.traefikDomain != "" {
		c.log.Info("Looking up traefik certs",
			log.String("file", c.src.traefikFile),
			log.String("domain", c.src.traefikDomain))
		cert, err = traefik.LoadCertificate(c.src.traefikFile, c.src.traefikDomain)
	} else {
		c.log.Info("Loading cert",
			log.String("key", c.src.keyFile),
			log.String("cert", c.src.certFile))
		cert, err = tls.LoadX509KeyPair(c.src.certFile, c.src.keyFile)
	}
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cert = &cert
	return nil
}
