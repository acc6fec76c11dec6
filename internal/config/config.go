package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"console_go/internal/domain"
)

type Config struct {
	AppName string
	Env     string

	// Upstream platform endpoints consumed by the console.
	APIBaseURL string
	WSURL      string

	OperatorUsername string
	OperatorPassword string

	// Conversation list scope.
	StatusFilter string
	PhoneLineID  *int64

	// Sync engine tuning.
	PollInterval time.Duration
	ReconnectMin time.Duration
	ReconnectMax time.Duration

	// Local operator state (preferences, offline snapshots).
	StateDBPath string
	EncryptKey  string

	// Dev simulator.
	Host               string
	Port               int
	CORSOrigins        []string
	JWTSecret          string
	AccessTokenMinutes int
	DevDBPath          string
	TrafficInterval    time.Duration

	Debug bool
}

func Load() (*Config, error) {
	// Local .env files are a convenience for development; absence is fine.
	_ = godotenv.Load()

	cfg := &Config{
		AppName: getEnv("APP_NAME", "console"),
		Env:     getEnv("APP_ENV", "development"),

		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:8000"),
		WSURL:      getEnv("WS_URL", "ws://localhost:8000/ws"),

		OperatorUsername: getEnv("OPERATOR_USERNAME", "operator"),
		OperatorPassword: os.Getenv("OPERATOR_PASSWORD"),

		StatusFilter: getEnv("STATUS_FILTER", domain.StatusActive),

		PollInterval: getEnvAsDuration("POLL_INTERVAL", 10*time.Second),
		ReconnectMin: getEnvAsDuration("RECONNECT_MIN", 2*time.Second),
		ReconnectMax: getEnvAsDuration("RECONNECT_MAX", 30*time.Second),

		StateDBPath: getEnv("STATE_DB_PATH", "console_state.db"),
		EncryptKey:  os.Getenv("ENCRYPTION_KEY"),

		Host:               getEnv("HTTP_HOST", "0.0.0.0"),
		Port:               getEnvAsInt("HTTP_PORT", 8000),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		AccessTokenMinutes: getEnvAsInt("ACCESS_TOKEN_EXPIRE_MINUTES", 60*24),
		DevDBPath:          getEnv("DEV_DB_PATH", "devserver.db"),
		TrafficInterval:    getEnvAsDuration("TRAFFIC_INTERVAL", 7*time.Second),

		Debug: getEnvAsBool("DEBUG", true),
	}

	if v := os.Getenv("PHONE_LINE_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid PHONE_LINE_ID %q", v)
		}
		cfg.PhoneLineID = &id
	}

	cors := getEnv("CORS_ORIGINS", "")
	if cors != "" {
		parts := strings.Split(cors, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		cfg.CORSOrigins = parts
	} else {
		cfg.CORSOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}

	switch cfg.StatusFilter {
	case domain.StatusActive, domain.StatusArchived, domain.StatusAttention:
	default:
		return nil, fmt.Errorf("invalid STATUS_FILTER %q", cfg.StatusFilter)
	}

	return cfg, nil
}

// ValidateConsole checks the settings the console/follow commands depend on.
func (c *Config) ValidateConsole() error {
	if c.OperatorPassword == "" {
		return fmt.Errorf("OPERATOR_PASSWORD is required")
	}
	if c.EncryptKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}
	return nil
}

// ValidateServer checks the settings the dev simulator depends on.
func (c *Config) ValidateServer() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.OperatorPassword == "" {
		return fmt.Errorf("OPERATOR_PASSWORD is required")
	}
	return nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Scope returns the configured conversation-list scope.
func (c *Config) Scope() domain.Scope {
	return domain.Scope{Status: c.StatusFilter, PhoneLineID: c.PhoneLineID}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvAsBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvAsDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
