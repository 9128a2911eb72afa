package config

import (
	"fmt"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on hosts without a zoneinfo database

	"github.com/ilyakaznacheev/cleanenv"
)

// Store backends.
const (
	BackendSupabase = "supabase"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int    `env:"PORT" env-default:"8080"`
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`

	// HTTP client
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" env-default:"10s"`

	// Resilience
	MaxRetries     int           `env:"MAX_RETRIES" env-default:"3"`
	InitialBackoff time.Duration `env:"INITIAL_BACKOFF" env-default:"100ms"`
	MaxConcurrency int           `env:"MAX_CONCURRENCY" env-default:"8"`

	// Cache
	CacheTTL time.Duration `env:"CACHE_TTL" env-default:"1m"`

	// Observability
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" env-default:""`

	// Record store
	StoreBackend string `env:"STORE_BACKEND" env-default:"supabase"` // supabase | postgres | memory

	// Supabase
	SupabaseURL        string `env:"SUPABASE_URL"`
	SupabaseAnonKey    string `env:"SUPABASE_ANON_KEY"`
	SupabaseServiceKey string `env:"SUPABASE_SERVICE_ROLE_KEY"`
	SupabaseJWTSecret  string `env:"SUPABASE_JWT_SECRET" env-default:"travel-crm-dev-secret-change-me"`
	StorageBucket      string `env:"SUPABASE_STORAGE_BUCKET" env-default:"documents"`

	// Postgres
	DatabaseDSN      string `env:"DATABASE_DSN"`
	DatabaseMaxConns int32  `env:"DATABASE_MAX_CONNS" env-default:"10"`
	DatabaseMigrate  bool   `env:"DATABASE_MIGRATE" env-default:"true"`
	UploadDir        string `env:"UPLOAD_DIR" env-default:"./uploads"`

	// Calendar
	Timezone string `env:"TIMEZONE" env-default:"Asia/Jerusalem"`

	// Documents
	DocumentWarningDays  int   `env:"DOCUMENT_WARNING_DAYS" env-default:"30"`
	DocumentUpcomingDays int   `env:"DOCUMENT_UPCOMING_DAYS" env-default:"90"`
	DocumentNotifyDays   int   `env:"DOCUMENT_NOTIFY_DAYS" env-default:"30"`
	MaxUploadBytes       int64 `env:"MAX_UPLOAD_BYTES" env-default:"10485760"`

	// Notification delivery
	AMQPURL      string `env:"AMQP_URL"`
	AMQPQueue    string `env:"AMQP_QUEUE" env-default:"crm.notifications"`
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" env-default:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	MailFrom     string `env:"MAIL_FROM" env-default:"no-reply@travel-crm.local"`

	// HTTP
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"*"`
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// Validate checks cross-field rules after loading.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendSupabase:
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			return fmt.Errorf("supabase backend requires SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY")
		}
	case BackendPostgres:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("postgres backend requires DATABASE_DSN")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if c.DocumentWarningDays <= 0 {
		return fmt.Errorf("DOCUMENT_WARNING_DAYS must be > 0 (got %d)", c.DocumentWarningDays)
	}
	if c.DocumentUpcomingDays < c.DocumentWarningDays {
		return fmt.Errorf("DOCUMENT_UPCOMING_DAYS (%d) must be >= DOCUMENT_WARNING_DAYS (%d)", c.DocumentUpcomingDays, c.DocumentWarningDays)
	}
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("MAX_CONCURRENCY must be > 0 (got %d)", c.MaxConcurrency)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}
	return nil
}

// Location returns the configured calendar timezone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
