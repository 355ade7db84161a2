package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	identityapp "github.com/erp/console/internal/application/identity"
	"github.com/erp/console/internal/domain/identity"
	"github.com/erp/console/internal/infrastructure/config"
	"github.com/erp/console/internal/infrastructure/connectivity"
	"github.com/erp/console/internal/infrastructure/logger"
	"github.com/erp/console/internal/infrastructure/provider"
	"github.com/erp/console/internal/infrastructure/statecache"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting console session core",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("api", cfg.API.BaseURL),
	)

	// Identity provider over the remote auth API
	identityProvider := provider.NewRestProvider(provider.Config{
		BaseURL: cfg.API.BaseURL,
		APIKey:  cfg.API.APIKey,
		Timeout: cfg.API.Timeout,
	}, log)

	// Optional local state cache for session restore
	var cache identityapp.SessionCache
	if cfg.StateCache.Enabled {
		store, err := statecache.Open(cfg.StateCache.Path, log)
		if err != nil {
			log.Fatal("Failed to open state cache", zap.Error(err))
		}
		cache = store
	}

	// Core wiring: store -> tenant scope -> auth manager -> engine
	sessionStore := identityapp.NewSessionStore()
	tenantScope := identityapp.NewTenantScope(cache, log)
	authManager := identityapp.NewAuthManager(
		identityProvider,
		sessionStore,
		tenantScope,
		cache,
		identityapp.AuthManagerConfig{RefreshInterval: cfg.Auth.RefreshInterval},
		log,
	)
	permissions := identityapp.NewPermissionEngine(authManager.CurrentRole)

	authManager.Start()
	defer authManager.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Restore any surviving session before the first paint
	if ident, err := authManager.GetSession(ctx); err != nil {
		log.Info("No active session", zap.Error(err))
	} else if ident != nil {
		log.Info("Session restored",
			zap.String("user_id", ident.UserID),
			zap.String("company_id", ident.CompanyID))

		decision := permissions.CheckAction(identityapp.ActionCheck{
			EntityType: identity.EntityInvoice,
			ActionType: identity.ActionCreate,
		})
		log.Info("Invoice creation gate",
			zap.String("role", string(authManager.CurrentRole().RoleType)),
			zap.Bool("allowed", decision.Allowed),
			zap.String("message", decision.Message))
	}

	// Reachability monitor driving the throttled background refresh
	var reachability identityapp.ConnectivitySource
	if cfg.Connectivity.Enabled {
		pinger := connectivity.NewHTTPPinger(cfg.API.BaseURL+cfg.API.HealthPath, cfg.API.APIKey)
		monitor := connectivity.NewMonitor(connectivity.MonitorConfig{
			PollInterval: cfg.Connectivity.PollInterval,
		}, pinger, log)
		monitor.Start(ctx)
		defer monitor.Stop()
		reachability = monitor
	}

	refresh := time.NewTicker(cfg.Auth.RefreshInterval)
	defer refresh.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Shutting down")
			return
		case <-refresh.C:
			authManager.MaybeRefresh(ctx, reachability)
		}
	}
}
