package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wondertwin-ai/demo-management/internal/admin"
	"github.com/wondertwin-ai/demo-management/internal/api"
	"github.com/wondertwin-ai/demo-management/internal/config"
	"github.com/wondertwin-ai/demo-management/internal/demo"
	"github.com/wondertwin-ai/demo-management/internal/media"
	"github.com/wondertwin-ai/demo-management/internal/metrics"
	"github.com/wondertwin-ai/demo-management/internal/server"
	"github.com/wondertwin-ai/demo-management/internal/store"
	"github.com/wondertwin-ai/demo-management/internal/store/sqlite"
	"github.com/wondertwin-ai/demo-management/internal/usermgmt"
)

// backend is what every persistence driver provides.
type backend interface {
	demo.Repository
	admin.StateStore
	Close() error
}

func newServeCmd(o *rootOptions) *cobra.Command {
	var (
		port     int
		seedFile string
		usersURL string
		mediaDir string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Demo Management HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.load(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("seed") {
				cfg.SeedFile = seedFile
			}
			if cmd.Flags().Changed("user-management-url") {
				cfg.UserManagement.URL = usersURL
			}
			if cmd.Flags().Changed("media-dir") {
				cfg.Media.Dir = mediaDir
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := o.logger(cfg)
			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.server.Serve(ctx)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default from config, 8801)")
	cmd.Flags().StringVar(&seedFile, "seed", "", "JSON state file loaded at startup and after every admin reset")
	cmd.Flags().StringVar(&usersURL, "user-management-url", "", "base URL of the user management service")
	cmd.Flags().StringVar(&mediaDir, "media-dir", "", "directory uploaded logos are stored in and served from (default from config, media)")
	return cmd
}

// app is a fully wired service.
type app struct {
	server  *server.Server
	backend backend
	metrics *metrics.Metrics
}

// newApp opens the backend, loads seed data and mounts every route.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var seed []byte
	if cfg.SeedFile != "" {
		seed, err = os.ReadFile(cfg.SeedFile)
		if err != nil {
			be.Close()
			return nil, fmt.Errorf("failed to read seed file: %w", err)
		}
		if err := be.LoadState(ctx, seed); err != nil {
			be.Close()
			return nil, fmt.Errorf("failed to load seed data: %w", err)
		}
		logger.Info("loaded seed data", "file", cfg.SeedFile)
	}

	logos, err := media.New(cfg.Media.Dir, cfg.Media.MaxLogoSize, logger)
	if err != nil {
		be.Close()
		return nil, err
	}

	m := metrics.New()
	opts := []demo.Option{demo.WithLogger(logger), demo.WithObserver(m), demo.WithLogoStore(logos)}
	if cfg.UserManagement.URL != "" {
		opts = append(opts, demo.WithUserDirectory(usermgmt.New(usermgmt.Config{
			BaseURL: cfg.UserManagement.URL,
			Timeout: cfg.UserManagement.Timeout,
			Retries: cfg.UserManagement.Retries,
			Logger:  logger,
		})))
		logger.Info("member assignment checks the user directory", "url", cfg.UserManagement.URL)
	}
	svc := demo.NewService(be, opts...)

	srv := server.New(server.Options{
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Verbose:         cfg.Log.Verbose,
		CORSOrigins:     cfg.CORS.Origins,
		Middleware:      []func(http.Handler) http.Handler{m.Middleware},
	}, logger)

	srv.Router.Method(http.MethodGet, "/metrics", m.Handler())
	logos.Routes(srv.Router)
	api.NewHandler(svc, logger).Routes(srv.Router)
	admin.NewHandler(be, srv.Middleware(), seed).Routes(srv.Router)

	logger.Info("demo management ready",
		"port", cfg.Server.Port,
		"driver", cfg.Database.Driver,
		"api_prefix", api.Prefix,
	)
	return &app{server: srv, backend: be, metrics: m}, nil
}

// Close releases the backend.
func (a *app) Close() error {
	return a.backend.Close()
}

// openBackend opens the configured driver. SQLite databases are migrated on
// open when auto_migrate is set.
func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (backend, error) {
	switch cfg.Database.Driver {
	case "memory":
		return store.NewMemory(), nil
	case "sqlite":
		db, err := sqlite.Open(cfg.Database.DSN, logger)
		if err != nil {
			return nil, err
		}
		if cfg.Database.AutoMigrate {
			if _, err := db.Migrate(ctx); err != nil {
				db.Close()
				return nil, fmt.Errorf("migrating database: %w", err)
			}
		} else if pending, err := pendingMigrations(ctx, db); err != nil {
			db.Close()
			return nil, err
		} else if pending > 0 {
			logger.Warn("database has pending migrations; run migrate up", "pending", pending)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func pendingMigrations(ctx context.Context, db *sqlite.Store) (int, error) {
	status, err := db.MigrationStatus(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, s := range status {
		if !s.Applied {
			n++
		}
	}
	return n, nil
}
