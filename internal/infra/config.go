package infra

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store backends selectable with STORE_BACKEND. An empty value serves the bundled
// seed dataset read-only.
const (
	BackendNone      = ""
	BackendMemory    = "memory"
	BackendPostgres  = "postgres"
	BackendFirestore = "firestore"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Document store
	StoreBackend string `env:"STORE_BACKEND" envDefault:"memory"`
	SeedOnStart  bool   `env:"SEED_ON_START" envDefault:"true"`

	// Database
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" envDefault:"localhost"`
	PGPort      int    `env:"PGPORT" envDefault:"5435"`
	PGUser      string `env:"PGUSER" envDefault:"teamsheet"`
	PGPassword  string `env:"PGPASSWORD" envDefault:"teamsheet"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"teamsheet"`
	PGMaxConns  int32  `env:"PG_MAX_CONNS" envDefault:"10"`
	PGMinConns  int32  `env:"PG_MIN_CONNS" envDefault:"1"`

	// MigrationsDir overrides the db/migrations lookup.
	MigrationsDir string `env:"MIGRATIONS_DIR"`

	// StartupTimeout bounds the first contact with a backend before falling back
	// to the bundled dataset.
	StartupTimeout time.Duration `env:"STARTUP_TIMEOUT" envDefault:"5s"`

	// NATS change feed for the Postgres backend
	NATSURL     string `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	NATSEnabled bool   `env:"NATS_ENABLED" envDefault:"false"`
	NATSSubject string `env:"NATS_SUBJECT_PREFIX" envDefault:"teamsheet.changes"`

	// Firestore
	FirestoreProjectID       string `env:"FIRESTORE_PROJECT_ID"`
	FirestoreCredentialsFile string `env:"FIRESTORE_CREDENTIALS_FILE"`

	// JWT
	JWTSecret       string        `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	JWTTeamExpiry   time.Duration `env:"JWT_TEAM_EXPIRY" envDefault:"720h"`
	JWTPlayerExpiry time.Duration `env:"JWT_PLAYER_EXPIRY" envDefault:"168h"`
	JWTAdminExpiry  time.Duration `env:"JWT_ADMIN_EXPIRY" envDefault:"8h"`

	// Tenancy
	SuperTenantCode string `env:"SUPER_TENANT_CODE"`

	// Server
	APIPort int `env:"API_PORT" envDefault:"3100"`

	// Kafka
	KafkaBrokers string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled bool   `env:"KAFKA_ENABLED" envDefault:"false"`

	// Outbox relay
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`

	// CORS
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// Telegram reminders
	TelegramToken  string `env:"TELEGRAM_TOKEN"`
	TelegramChatID int64  `env:"TELEGRAM_CHAT_ID"`

	// Scheduler
	SchedulerTimezone string `env:"SCHEDULER_TIMEZONE" envDefault:"America/Argentina/Buenos_Aires"`

	// Dev
	AllowInsecureDefaults bool `env:"ALLOW_INSECURE_DEFAULTS" envDefault:"false"`
}

// LoadConfig reads .env when present, then parses environment variables into a
// Config struct. Variables already set in the environment win over .env.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	return cfg, nil
}

// Validate checks for insecure configuration that must not run in production.
// Set ALLOW_INSECURE_DEFAULTS=true to bypass (local dev only).
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendNone, BackendMemory:
	case BackendPostgres:
		if c.PGMaxConns < 1 {
			return fmt.Errorf("PG_MAX_CONNS must be at least 1")
		}
	case BackendFirestore:
		if c.FirestoreProjectID == "" {
			return fmt.Errorf("FIRESTORE_PROJECT_ID is required with STORE_BACKEND=firestore")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.AllowInsecureDefaults {
		return nil
	}
	if c.JWTSecret == "change-me-in-production" {
		return fmt.Errorf("JWT_SECRET is set to the insecure default; set a strong secret or set ALLOW_INSECURE_DEFAULTS=true for local dev")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET is too short (%d chars); minimum 32 characters required", len(c.JWTSecret))
	}
	return nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}

// Location returns the scheduler time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.SchedulerTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
