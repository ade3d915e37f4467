// Package main is the entry point for the navigator server binary.
// It dispatches three subcommands (serve, migrate and version) via a switch on
// os.Args. The serve command migrates the postgres catalog on startup.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ai-navigator/navigator/internal/api"
	"github.com/ai-navigator/navigator/internal/catalog"
	"github.com/ai-navigator/navigator/internal/config"
	"github.com/ai-navigator/navigator/internal/db"
	"github.com/ai-navigator/navigator/internal/safego"
	"github.com/ai-navigator/navigator/internal/storage"
	"github.com/ai-navigator/navigator/internal/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/ai-navigator/navigator/internal/storage/azure"
	_ "github.com/ai-navigator/navigator/internal/storage/gcs"
	_ "github.com/ai-navigator/navigator/internal/storage/local"
	_ "github.com/ai-navigator/navigator/internal/storage/s3"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	if command == "version" {
		fmt.Printf("AI Navigator %s\n", api.Version)
		return nil
	}

	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch command {
	case "serve":
		return serve(cfg)
	case "migrate":
		if len(os.Args) < 3 {
			return fmt.Errorf("usage: %s migrate <up|down>", os.Args[0])
		}
		return runMigrations(cfg, os.Args[2])
	default:
		return fmt.Errorf("unknown command: %s\nAvailable commands: serve, migrate, version", command)
	}
}

func serve(cfg *config.Config) error {
	// Initialise structured logger as early as possible so all subsequent log output
	// uses the configured format (json / text) and level.
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, database, err := openCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	if database != nil {
		defer database.Close()
	}

	dir, err := catalog.NewDirectory(ctx, repo)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	telemetry.CatalogSites.Set(float64(dir.Len()))
	slog.Info("catalog loaded", "backend", cfg.Catalog.Backend, "sites", dir.Len())

	if fileRepo, ok := repo.(*catalog.FileRepository); ok && cfg.Catalog.File.Watch {
		reload := catalog.ReloadFunc(dir, func(err error) {
			telemetry.ObserveReload(err)
			if err == nil {
				telemetry.CatalogSites.Set(float64(dir.Len()))
			}
		})
		watcher, err := catalog.NewWatcher(fileRepo.Path(), cfg.Catalog.ReloadThrottle, reload)
		if err != nil {
			return err
		}
		defer watcher.Stop()
		safego.Go("catalog-watcher", func() { watcher.Start(ctx) })
	}

	visits := catalog.NewVisitRecorder(repo, dir, cfg.Visits.FlushInterval)
	visits.OnFlush = telemetry.ObserveVisitFlush
	// Registered after the database defer so the last batch is written first.
	defer visits.Close()

	logos, err := storage.NewStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	if closer, ok := logos.(io.Closer); ok {
		defer closer.Close()
	}
	slog.Info("initialized storage backend", "backend", cfg.Storage.DefaultBackend)

	// Prometheus metrics are served on a dedicated port so they are not
	// reachable through the public ingress path.
	if cfg.Telemetry.Metrics.Enabled {
		metricsAddr := fmt.Sprintf(":%d", cfg.Telemetry.Metrics.PrometheusPort)
		safego.Go("metrics-server", func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			slog.Info("starting Prometheus metrics server", "addr", metricsAddr)
			srv := &http.Server{
				Addr:         metricsAddr,
				Handler:      mux,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 10 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server error", "error", err)
			}
		})
	}

	router, bgServices, err := api.NewRouter(cfg, api.Dependencies{
		Directory: dir,
		Visits:    visits,
		Logos:     logos,
		DB:        database,
	})
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	server := &http.Server{
		Addr:         cfg.Server.GetAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	safego.Go("http-server", func() {
		slog.Info("starting server",
			"addr", cfg.Server.GetAddress(),
			"base_url", cfg.Server.BaseURL,
			"tls", cfg.Security.TLS.Enabled,
			"admin", cfg.Admin.Enabled())

		var err error
		if cfg.Security.TLS.Enabled {
			err = server.ListenAndServeTLS(cfg.Security.TLS.CertFile, cfg.Security.TLS.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		bgServices.Shutdown()
		return fmt.Errorf("failed to start server: %w", err)
	}

	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	// Stop rate limiter goroutines; the deferred visits.Close writes the last batch
	bgServices.Shutdown()

	slog.Info("server stopped gracefully")
	return nil
}

// openCatalog returns the configured repository. For the postgres catalog it
// also returns the database handle, migrated to the latest schema.
func openCatalog(ctx context.Context, cfg *config.Config) (catalog.Repository, *sql.DB, error) {
	if cfg.Catalog.Backend != "postgres" {
		return catalog.NewFileRepository(cfg.Catalog.File.Path), nil, nil
	}

	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("connected to database", "host", cfg.Database.Host, "name", cfg.Database.Name)

	if err := db.RunMigrations(database, "up"); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if version, dirty, err := db.GetMigrationVersion(database); err != nil {
		slog.Warn("failed to get migration version", "error", err)
	} else {
		slog.Info("database schema version", "version", version, "dirty", dirty)
	}

	safego.Go("db-stats", func() { telemetry.StartDBStatsCollector(ctx, database) })

	return catalog.NewPostgresRepository(db.Wrap(database)), database, nil
}

func runMigrations(cfg *config.Config, direction string) error {
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)

	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	slog.Info("running migrations", "direction", direction)

	if err := db.RunMigrations(database, direction); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	slog.Info("migration completed", "version", version, "dirty", dirty)
	return nil
}
