package server

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	otlpruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/mpapenbr/portion-tracker-go/log"
	"github.com/mpapenbr/portion-tracker-go/pkg/cmd/common"
	"github.com/mpapenbr/portion-tracker-go/pkg/config"
	"github.com/mpapenbr/portion-tracker-go/pkg/race"
	"github.com/mpapenbr/portion-tracker-go/pkg/tracker"
	"github.com/mpapenbr/portion-tracker-go/pkg/web"
)

func NewServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "starts the web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startServer(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&config.Addr,
		"addr",
		"a",
		"localhost:8501",
		"web server listen address")
	cmd.Flags().StringVar(&config.SaveMode,
		"save-mode",
		string(tracker.SaveModeUpsert),
		"how saving today's record treats existing rows (upsert, append)")
	cmd.Flags().StringVar(&config.CSRFKey,
		"csrf-key",
		"",
		"hex encoded 32 byte key for csrf tokens (random if empty)")
	cmd.Flags().StringSliceVar(&config.APIOrigins,
		"api-origins",
		[]string{},
		"browser origins besides the serving host allowed to call the JSON API (* allows any)")
	cmd.Flags().BoolVar(&config.EnableTelemetry,
		"enable-telemetry",
		false,
		"enables telemetry")
	cmd.Flags().StringVar(&config.TelemetryEndpoint,
		"telemetry-endpoint",
		"localhost:4317",
		"Endpoint that receives open telemetry data (use 'stdout' for console output)")
	cmd.Flags().StringVar(&config.TLSCertFile,
		"tls-cert",
		"",
		"path to TLS certificate")
	cmd.Flags().StringVar(&config.TLSKeyFile,
		"tls-key",
		"",
		"path to TLS key")
	cmd.Flags().StringVar(&config.TraefikCerts,
		"traefik-certs",
		"",
		"path to traefik acme.json")
	cmd.Flags().StringVar(&config.TraefikCertDomain,
		"traefik-cert-domain",
		"",
		"domain to lookup in the traefik certs")
	return cmd
}

// parseCSRFKey accepts a hex encoded or a plain 32 byte key
func parseCSRFKey(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	if key, err := hex.DecodeString(s); err == nil && len(key) == 32 {
		return key, nil
	}
	if len(s) == 32 {
		return []byte(s), nil
	}
	return nil, errors.New("csrf key must be 32 bytes (or 64 hex chars)")
}

//nolint:funlen,cyclop // by design
func startServer(ctx context.Context) error {
	logger, err := common.SetupLogger()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.AddToContext(ctx, logger)

	var telemetry *config.Telemetry
	if config.EnableTelemetry {
		log.Info("Enabling telemetry")
		if telemetry, err = config.SetupTelemetry(ctx); err != nil {
			log.Warn("Could not setup telemetry", log.ErrorField(err))
		}
		err = otlpruntime.Start(otlpruntime.WithMinimumReadMemStatsInterval(time.Second))
		if err != nil {
			log.Warn("Could not start runtime metrics", log.ErrorField(err))
		}
	}

	mode, err := tracker.ParseSaveMode(config.SaveMode)
	if err != nil {
		return err
	}
	csrfKey, err := parseCSRFKey(config.CSRFKey)
	if err != nil {
		return err
	}
	recordStore, err := common.NewRecordStore(ctx)
	if err != nil {
		log.Error("record store could not be created", log.ErrorField(err))
		return err
	}
	defer recordStore.Close()

	tlsConfig, err := newTLSConfig(ctx, certSource{
		certFile:      config.TLSCertFile,
		keyFile:       config.TLSKeyFile,
		traefikFile:   config.TraefikCerts,
		traefikDomain: config.TraefikCertDomain,
	})
	if err != nil {
		log.Error("could not load TLS certificate", log.ErrorField(err))
		return err
	}

	h, err := web.NewHandler(
		web.WithService(tracker.NewService(
			tracker.WithStore(recordStore),
			tracker.WithSaveMode(mode),
		)),
		web.WithRaces(race.NewTracker()),
		web.WithCSRFKey(csrfKey),
		web.WithAPIOrigins(config.APIOrigins),
		web.WithSecureCookies(tlsConfig != nil),
		web.WithLogger(logger.Named("web")),
	)
	if err != nil {
		return err
	}
	handler := h.Routes()
	if config.EnableTelemetry {
		handler = otelhttp.NewHandler(handler, "ptrack")
	}

	server := &http.Server{
		Addr:              config.Addr,
		ReadHeaderTimeout: 10 * time.Second,
	}
	setupGoRoutinesDump()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if tlsConfig != nil {
			log.Info("Starting web server (TLS)", log.String("addr", config.Addr))
			server.Handler = handler
			server.TLSConfig = tlsConfig
			err = server.ListenAndServeTLS("", "")
		} else {
			log.Info("Starting web server", log.String("addr", config.Addr))
			server.Handler = h2c.NewHandler(handler, &http2.Server{})
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Debug("Shutting down web server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if err = g.Wait(); err != nil {
		log.Error("web server failed", log.ErrorField(err))
	}
	if telemetry != nil {
		telemetry.Shutdown()
	}
	log.Info("Server terminated")
	//nolint:errcheck // stderr sync fails on some platforms
	log.Sync()
	return err
}

func setupGoRoutinesDump() {
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGQUIT)
		buf := make([]byte, 1<<20)
		for {
			<-sigs
			stacklen := runtime.Stack(buf, true)
			fmt.Printf("=== received SIGQUIT ===\n*** goroutine dump...\n%s\n*** end\n",
				buf[:stacklen])
		}
	}()
}
