package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Discord  DiscordConfig
	Tickets  TicketsConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters for the staff HTTP API.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// DiscordConfig holds the bot connection values.
type DiscordConfig struct {
	Token string
}

// TicketsConfig carries the process-wide ticket defaults. Per-guild settings
// stored by the settings collaborator override these at runtime.
type TicketsConfig struct {
	ModeratorRoleIDs       []string
	OnDutyRoleID           string
	CategoryID             string
	ArchiveCategoryID      string
	LogChannelID           string
	AuditLogChannelID      string
	FallbackPingModerators bool
	TranscriptEnabled      bool

	// History-scan bounds used by the transcript generator and the archived
	// participant union. Pages beyond the cap are omitted and the omission is
	// noted in the rendered output.
	HistoryPageSize int
	MaxHistoryPages int

	// AuditFieldBudget caps the rendered participant block on the audit
	// record, in characters.
	AuditFieldBudget int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticketbox"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Discord: DiscordConfig{
			Token: os.Getenv("DISCORD_BOT_TOKEN"),
		},
		Tickets: TicketsConfig{
			ModeratorRoleIDs:       getEnvAsList("TICKETS_MODERATOR_ROLE_IDS"),
			OnDutyRoleID:           os.Getenv("TICKETS_ON_DUTY_ROLE_ID"),
			CategoryID:             os.Getenv("TICKETS_CATEGORY_ID"),
			ArchiveCategoryID:      os.Getenv("TICKETS_ARCHIVE_CATEGORY_ID"),
			LogChannelID:           os.Getenv("TICKETS_LOG_CHANNEL_ID"),
			AuditLogChannelID:      os.Getenv("TICKETS_AUDIT_LOG_CHANNEL_ID"),
			FallbackPingModerators: getEnvAsBool("TICKETS_FALLBACK_PING_MODERATORS", true),
			TranscriptEnabled:      getEnvAsBool("TICKETS_TRANSCRIPT_ENABLED", true),
			HistoryPageSize:        getEnvAsInt("TICKETS_HISTORY_PAGE_SIZE", 100),
			MaxHistoryPages:        getEnvAsInt("TICKETS_MAX_HISTORY_PAGES", 40),
			AuditFieldBudget:       getEnvAsInt("TICKETS_AUDIT_FIELD_BUDGET", 900),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
