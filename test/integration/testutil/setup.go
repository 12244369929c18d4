//go:build integration

package testutil

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/teamsheet/platform/internal/app"
	"github.com/teamsheet/platform/internal/auth"
	"github.com/teamsheet/platform/internal/guard"
	"github.com/teamsheet/platform/internal/infra"
	"github.com/teamsheet/platform/internal/mirror"
	"github.com/teamsheet/platform/internal/projection"
	"github.com/teamsheet/platform/internal/repository"
	"github.com/teamsheet/platform/internal/seed"
	"github.com/teamsheet/platform/internal/service"
	"github.com/teamsheet/platform/internal/store"
)

const (
	TestJWTSecret   = "integration-test-secret-at-least-32-chars"
	TestSuperCode   = "la comision"
	TestDBHost      = "localhost"
	TestDBPort      = 5435
	TestDBUser      = "teamsheet"
	TestDBPass      = "teamsheet"
	TestDBName      = "teamsheet_test"
	bootstrapDBName = "teamsheet"
)

// TestEnv holds all resources for an integration test.
type TestEnv struct {
	Server   *httptest.Server
	Pool     *pgxpool.Pool
	Store    *store.PostgresStore
	Adapter  *repository.Adapter
	Services app.Services
	JWTMgr   *auth.JWTManager
	t        *testing.T
}

var (
	sharedPool *pgxpool.Pool
	poolOnce   sync.Once
	poolErr    error
)

func dsn(db string) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		TestDBUser, TestDBPass, TestDBHost, TestDBPort, db)
}

func ensureTestDB() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Connect to the main database to create the test database
	bPool, err := pgxpool.New(ctx, dsn(bootstrapDBName))
	if err != nil {
		return fmt.Errorf("connect bootstrap db: %w", err)
	}
	defer bPool.Close()

	var exists bool
	err = bPool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", TestDBName).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check db exists: %w", err)
	}
	if !exists {
		if _, err := bPool.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", TestDBName)); err != nil {
			return fmt.Errorf("create test db: %w", err)
		}
	}
	return nil
}

func runMigrations() error {
	m, err := newMigrate("file://"+filepath.Join(findProjectRoot(), "db", "migrations"), dsn(TestDBName))
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, _ := os.Getwd()
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "."
		}
		dir = parent
	}
}

func getSharedPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	poolOnce.Do(func() {
		if err := ensureTestDB(); err != nil {
			poolErr = err
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		poolCfg, err := pgxpool.ParseConfig(dsn(TestDBName))
		if err != nil {
			poolErr = fmt.Errorf("parse pool config: %w", err)
			return
		}
		poolCfg.MaxConns = 10
		poolCfg.MinConns = 1

		sharedPool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			poolErr = fmt.Errorf("create pool: %w", err)
			return
		}

		if err := runMigrations(); err != nil {
			poolErr = fmt.Errorf("run migrations: %w", err)
			sharedPool.Close()
			sharedPool = nil
		}
	})

	if poolErr != nil {
		t.Fatalf("failed to initialize test pool: %v", poolErr)
	}
	return sharedPool
}

// NewTestEnv creates an httptest.Server running the real router over the
// Postgres document store.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	pool := getSharedPool(t)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx, cancel := context.WithCancel(context.Background())

	pg := store.NewPostgresStore(pool, store.NewLocalFeed(), logger)
	adapter := repository.NewAdapter(pg, logger)
	events := repository.NewOutboxWriter(pool, repository.NewOutboxRepository())

	dataset, err := seed.Bundled()
	if err != nil {
		t.Fatalf("load bundled dataset: %v", err)
	}

	jwtMgr := auth.NewJWTManager(TestJWTSecret, 24*time.Hour, 8*time.Hour, 12*time.Hour)
	tickets := auth.NewTicketManager(TestJWTSecret)
	hub := infra.NewWSHub(nil, logger)
	registry := mirror.NewRegistry(ctx, adapter, dataset, logger)

	settings := service.NewSettingsService(adapter)
	tenants := service.NewTenantService(adapter, TestSuperCode, events, logger)
	timers := service.NewTimerService(ctx, clockwork.NewRealClock(), settings, hub, logger)
	services := app.Services{
		Auth:       service.NewAuthService(tenants, adapter, jwtMgr, guard.NewLockout(), guard.NewRateLimiter(1000, time.Minute), logger),
		Tenants:    tenants,
		Roster:     service.NewRosterService(adapter, events, logger),
		Matches:    service.NewMatchService(adapter, events, logger),
		References: service.NewReferenceService(adapter),
		Settings:   settings,
		Chat:       service.NewChatService(adapter, guard.NewIdempotencyGuard(), logger),
		Games:      service.NewGameService(adapter, settings, time.UTC, logger),
		Timers:     timers,
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
		CORSAllowedOrigins: "*",
	})

	// Clean before test to ensure isolation
	env := &TestEnv{
		Pool:     pool,
		Store:    pg,
		Adapter:  adapter,
		Services: services,
		JWTMgr:   jwtMgr,
		t:        t,
	}
	env.CleanAll()
	env.Server = httptest.NewServer(router)

	t.Cleanup(func() {
		env.Server.Close()
		hub.Shutdown(context.Background())
		timers.Close()
		registry.Close()
		cancel()
		env.CleanAll()
	})
	return env
}
