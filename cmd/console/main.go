package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	admin "github.com/rflorenc/mapsite-admin"
	"github.com/rflorenc/mapsite-admin/internal/api"
	"github.com/rflorenc/mapsite-admin/internal/config"
	"github.com/rflorenc/mapsite-admin/internal/console"
	"github.com/rflorenc/mapsite-admin/internal/logging"
	"github.com/rflorenc/mapsite-admin/internal/models"
	"github.com/rflorenc/mapsite-admin/internal/platform"
	"github.com/rflorenc/mapsite-admin/internal/view"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// janitorInterval is how often idle sessions and old transfers are dropped.
const janitorInterval = time.Minute

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-v" {
			fmt.Printf("mapsite-console %s (commit: %s, built: %s)\n", version, commit, date)
			os.Exit(0)
		}
	}

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(2)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logging: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("console stopped")
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	backend, err := cfg.BackendSettings()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := platform.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Verify the API is reachable early; sessions still start when it is not
	blog := log.WithField("backend", backend.BaseURL())
	if err := platform.NewClient(backend, platform.WithLogger(log)).Ping(ctx); err != nil {
		blog.WithError(err).Warn("PING FAILED")
	} else {
		blog.Info("PING OK")
	}

	renderer := view.NewRenderer(admin.TemplatesFS())
	if _, err := renderer.Template(api.LayoutTemplate); err != nil {
		return fmt.Errorf("loading layout: %w", err)
	}
	transfers := models.NewTransferStore()
	sessions := api.NewSessionStore(cfg.SessionTTL, func() (*console.Console, error) {
		return console.New(console.Options{
			Backend:   backend,
			BasePath:  cfg.BasePath,
			Renderer:  renderer,
			Transfers: transfers,
			Metrics:   metrics,
			Location:  loc,
			Log:       log,
		})
	}, log)
	reg.MustRegister(sessions.Collector())

	handler := api.NewRouter(&api.Server{
		BasePath:  cfg.BasePath,
		Sessions:  sessions,
		Transfers: transfers,
		Renderer:  renderer,
		Assets:    admin.AssetsFS(),
		Gatherer:  reg,
		Log:       log,
	})

	go janitor(ctx, sessions, transfers, cfg.SessionTTL, log)

	srv := &http.Server{Addr: cfg.Listen, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	log.WithFields(logrus.Fields{"version": version, "listen": cfg.Listen, "base": cfg.BasePath}).Info("map-site console starting")

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func janitor(ctx context.Context, sessions *api.SessionStore, transfers *models.TransferStore, ttl time.Duration, log logrus.FieldLogger) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := sessions.Prune()
			t := transfers.Prune(ttl)
			if s+t > 0 {
				log.WithFields(logrus.Fields{"sessions": s, "transfers": t}).Debug("pruned")
			}
		}
	}
}
