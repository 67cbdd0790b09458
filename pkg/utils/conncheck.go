package utils

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/mpapenbr/portion-tracker-go/log"
)

const dialInterval = 200 * time.Millisecond

// WaitForTCP dials addr until a connection succeeds, ctx is done or timeout
// has passed.
func WaitForTCP(ctx context.Context, addr string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	start := time.Now()
	log.Debug("waiting for service", log.String("addr", addr), log.Duration("timeout", timeout))

	var d net.Dialer
	ticker := time.NewTicker(dialInterval)
	defer ticker.Stop()
	for {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			conn.Close()
			log.Debug("service reachable",
				log.String("addr", addr),
				log.Duration("after", time.Since(start)))
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s not reachable within %v: %w", addr, timeout, err)
		case <-ticker.C:
		}
	}
}

// ExtractFromDBURL returns host:port of a postgres connection url or "" if
// dbURL is not one. The port defaults to 5432.
func ExtractFromDBURL(dbURL string) string {
	u, err := url.Parse(dbURL)
	if err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
		return ""
	}
	if u.Hostname() == "" {
		return ""
	}
	port := u.Port()
	if port == "" {
		port = "5432"
	}
	return net.JoinHostPort(u.Hostname(), port)
}
