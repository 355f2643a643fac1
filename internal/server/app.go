// Package server initializes and runs the TenantVault daemon: it opens the
// control-plane database, migrates it, and keeps the per-tenant lock/code
// sweep running until shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dmitrijs2005/tenantvault/internal/logging"
	"github.com/dmitrijs2005/tenantvault/internal/server/accounts"
	"github.com/dmitrijs2005/tenantvault/internal/server/auth"
	"github.com/dmitrijs2005/tenantvault/internal/server/config"
	"github.com/dmitrijs2005/tenantvault/internal/server/registry"
	"github.com/dmitrijs2005/tenantvault/internal/server/tenants"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	tenants  tenants.Repository
	provider *tenants.Provider
	registry *registry.Registry
	issuer   *auth.Issuer
	security accounts.SecurityConfig
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	if err := tenants.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	security := accounts.SecurityConfig{
		BcryptCost:    cfg.BcryptCost,
		LockThreshold: cfg.LockThreshold,
		LockDuration:  cfg.LockDuration,
		CodeTTL:       cfg.CodeTTL,
	}

	return &App{
		config:   cfg,
		logger:   logger,
		db:       db,
		tenants:  tenants.NewPostgresRepository(db),
		provider: tenants.NewProvider(logger),
		registry: registry.New(logger),
		issuer:   auth.NewIssuer(cfg.SecretKey, cfg.TokenValidityDuration),
		security: security,
	}, nil
}

// AccountService returns the account security service for one tenant,
// attaching the account entity to the tenant's store on first use.
func (app *App) AccountService(ctx context.Context, t tenants.Tenant) (*accounts.Service, error) {
	h, err := app.provider.Open(ctx, t)
	if err != nil {
		return nil, err
	}
	st, err := accounts.Attach(ctx, app.registry, h, app.security, app.logger)
	if err != nil {
		return nil, err
	}
	return accounts.NewService(st, accounts.RegisterRules(), app.issuer, app.security, app.logger), nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// sweepAll runs the expired-lock/expired-code sweep for every tenant in the
// directory. Per-tenant failures are logged and do not stop the pass.
func (app *App) sweepAll(ctx context.Context) {
	list, err := app.tenants.List(ctx)
	if err != nil {
		app.logger.Error(ctx, "listing tenants failed", "error", err)
		return
	}

	for _, t := range list {
		svc, err := app.AccountService(ctx, *t)
		if err != nil {
			app.logger.Error(ctx, "tenant sweep setup failed", "tenant", t.Slug, "error", err)
			continue
		}
		n, err := svc.Sweep(ctx)
		if err != nil {
			app.logger.Error(ctx, "tenant sweep failed", "tenant", t.Slug, "error", err)
			continue
		}
		if n > 0 {
			app.logger.Info(ctx, "sweep finished", "tenant", t.Slug, "cleared", n)
		}
	}
}

func (app *App) runSweepLoop(ctx context.Context) {
	ticker := time.NewTicker(app.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			app.sweepAll(ctx)
		}
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.runSweepLoop(ctx)
	}()

	wg.Wait()

	app.provider.Close(context.Background())
	if err := app.db.Close(); err != nil {
		app.logger.Warn(context.Background(), "closing control db failed", "error", err)
	}
	app.logger.Info(context.Background(), "Shutdown complete")
}
