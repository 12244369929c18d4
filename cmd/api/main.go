package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/teamsheet/platform/internal/app"
	"github.com/teamsheet/platform/internal/auth"
	"github.com/teamsheet/platform/internal/guard"
	"github.com/teamsheet/platform/internal/infra"
	"github.com/teamsheet/platform/internal/mirror"
	"github.com/teamsheet/platform/internal/notify"
	"github.com/teamsheet/platform/internal/projection"
	"github.com/teamsheet/platform/internal/repository"
	"github.com/teamsheet/platform/internal/scheduler"
	"github.com/teamsheet/platform/internal/seed"
	"github.com/teamsheet/platform/internal/service"
	"github.com/teamsheet/platform/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// backend is the opened document store and what must be released with it.
type backend struct {
	store   store.Backend
	events  service.EventSink
	offline bool
	closers []func()
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackend connects the configured store. Any failure falls back to the
// bundled dataset served read-only.
func openBackend(ctx context.Context, cfg *infra.Config, dataset *seed.Dataset, logger *slog.Logger) *backend {
	b := &backend{events: service.NewLogSink(logger)}
	var err error

	switch cfg.StoreBackend {
	case infra.BackendMemory:
		mem := store.NewMemoryStore()
		if cfg.SeedOnStart {
			if err := dataset.Apply(ctx, repository.NewAdapter(mem, logger)); err != nil {
				logger.Warn("seed memory store failed", "error", err)
			}
		}
		b.store = mem
		logger.Info("using in-memory document store", "seeded", cfg.SeedOnStart)
		return b

	case infra.BackendPostgres:
		err = openPostgres(ctx, cfg, b, logger)

	case infra.BackendFirestore:
		err = openFirestore(ctx, cfg, b, logger)
	}

	if cfg.StoreBackend != infra.BackendNone && err == nil {
		return b
	}
	if err != nil {
		logger.Warn("document store unavailable, serving bundled data read-only", "backend", cfg.StoreBackend, "error", err)
		b.close()
	}

	mem := store.NewMemoryStore()
	if err := dataset.Apply(ctx, repository.NewAdapter(mem, logger)); err != nil {
		logger.Error("load bundled dataset failed", "error", err)
	}
	return &backend{store: store.NewReadOnly(mem), events: service.NewLogSink(logger), offline: true}
}

func openFirestore(ctx context.Context, cfg *infra.Config, b *backend, logger *slog.Logger) error {
	client, err := infra.NewFirestoreClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect firestore: %w", err)
	}
	b.closers = append(b.closers, func() { _ = client.Close() })
	b.store = store.NewFirestoreStore(client, logger)
	pingCtx, cancel := context.WithTimeout(ctx, cfg.StartupTimeout)
	defer cancel()
	if err := b.store.Ping(pingCtx); err != nil {
		return fmt.Errorf("ping firestore: %w", err)
	}
	logger.Info("connected to firestore", "project", cfg.FirestoreProjectID)
	return nil
}

func openPostgres(ctx context.Context, cfg *infra.Config, b *backend, logger *slog.Logger) error {
	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	b.closers = append(b.closers, pool.Close)
	logger.Info("connected to postgres")

	if err := infra.RunMigrations(cfg.DSN(), cfg.MigrationsDir, logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	var feed store.ChangeFeed = store.NewLocalFeed()
	if cfg.NATSEnabled {
		nc, err := infra.NewNATSConn(cfg.NATSURL, logger)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		b.closers = append(b.closers, nc.Close)
		feed = store.NewNATSFeed(nc, cfg.NATSSubject, logger)
	}

	b.store = store.NewPostgresStore(pool, feed, logger)
	b.events = repository.NewOutboxWriter(pool, repository.NewOutboxRepository())
	return nil
}

// originChecker mirrors the CORS origin list for the WebSocket handshake.
func originChecker(origins string) func(*http.Request) bool {
	var allowed []string
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			allowed = append(allowed, o)
		}
	}
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

func newNotifier(cfg *infra.Config, logger *slog.Logger) notify.Notifier {
	if cfg.TelegramToken == "" {
		return notify.NewLogNotifier(logger)
	}
	n, err := notify.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID, guard.NewCircuitBreaker(3, 5*time.Minute), logger)
	if err != nil {
		logger.Warn("telegram disabled", "error", err)
		return notify.NewLogNotifier(logger)
	}
	return n
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	dataset, err := seed.Bundled()
	if err != nil {
		return fmt.Errorf("load bundled dataset: %w", err)
	}

	// Document store
	b := openBackend(ctx, cfg, dataset, logger)
	defer b.close()
	adapter := repository.NewAdapter(b.store, logger)

	// Auth
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTeamExpiry, cfg.JWTPlayerExpiry, cfg.JWTAdminExpiry)
	tickets := auth.NewTicketManager(cfg.JWTSecret)

	// Push
	hub := infra.NewWSHub(originChecker(cfg.CORSAllowedOrigins), logger)
	registry := mirror.NewRegistry(ctx, adapter, dataset, logger)
	defer registry.Close()

	// Services
	settingsSvc := service.NewSettingsService(adapter)
	tenantSvc := service.NewTenantService(adapter, cfg.SuperTenantCode, b.events, logger)
	timerSvc := service.NewTimerService(ctx, clockwork.NewRealClock(), settingsSvc, hub, logger)
	defer timerSvc.Close()
	services := app.Services{
		Auth:       service.NewAuthService(tenantSvc, adapter, jwtMgr, guard.NewLockout(), guard.NewRateLimiter(30, time.Minute), logger),
		Tenants:    tenantSvc,
		Roster:     service.NewRosterService(adapter, b.events, logger),
		Matches:    service.NewMatchService(adapter, b.events, logger),
		References: service.NewReferenceService(adapter),
		Settings:   settingsSvc,
		Chat:       service.NewChatService(adapter, guard.NewIdempotencyGuard(), logger),
		Games:      service.NewGameService(adapter, settingsSvc, cfg.Location(), logger),
		Timers:     timerSvc,
	}

	// Scheduled jobs only run against a writable store.
	if !b.offline {
		sched, err := scheduler.NewScheduler(scheduler.Deps{
			Adapter:  adapter,
			Tenants:  tenantSvc,
			Games:    services.Games,
			Matches:  services.Matches,
			Roster:   services.Roster,
			Notifier: newNotifier(cfg, logger),
			Location: cfg.Location(),
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("create scheduler: %w", err)
		}
		if err := sched.Start(); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer func() {
			if err := sched.Stop(); err != nil {
				logger.Warn("scheduler shutdown failed", "error", err)
			}
		}()
	}

	router := app.NewRouter(app.RouterDeps{
		Adapter:            adapter,
		Registry:           registry,
		Hub:                hub,
		JWTMgr:             jwtMgr,
		Tickets:            tickets,
		Cache:              projection.NewInMemoryCache(),
		Services:           services,
		Logger:             logger,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	// Start server
	addr := fmt.Sprintf(":%d", cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", addr, "backend", cfg.StoreBackend, "offline", b.offline)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	// Shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hub.Shutdown(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
