package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security" validate:"required"`
	Gateway       GatewayConfig       `mapstructure:"gateway"`
	Notification  NotificationConfig  `mapstructure:"notification"`
	Reconciler    ReconcilerConfig    `mapstructure:"reconciler"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Source          string        `mapstructure:"source"`
}

type SecurityConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
}

// GatewayConfig configures the external payment gateway client.
// WebhookSecret is the shared secret for HMAC verification of inbound
// gateway callbacks.
type GatewayConfig struct {
	BaseURL       string        `mapstructure:"base_url" validate:"required,url"`
	APIKey        string        `mapstructure:"api_key"`
	WebhookSecret string        `mapstructure:"webhook_secret" validate:"required"`
	ReturnURL     string        `mapstructure:"return_url"`
	CallbackURL   string        `mapstructure:"callback_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
}

type NotificationConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	ListingBaseURL string        `mapstructure:"listing_base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
}

type ReconcilerConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	PendingAge   time.Duration `mapstructure:"pending_age"`
	TimeoutAge   time.Duration `mapstructure:"timeout_age"`
	MaxWorkers   int           `mapstructure:"max_workers"`
	JobQueueSize int           `mapstructure:"job_queue_size"`
	BatchSize    int           `mapstructure:"batch_size"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// LoadConfigFromEnv builds a Config entirely from environment variables,
// used for container deployments where no config file is mounted.
func LoadConfigFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("SERVER_PORT", 8120),
			BaseURL:           getEnv("SERVER_BASE_URL", "http://localhost:8120"),
			AllowedOrigins:    getEnv("SERVER_ALLOWED_ORIGINS", "*"),
			ReadHeaderTimeout: getEnvAsDuration("SERVER_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DATABASE_URL", ""),
		},
		Security: SecurityConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Gateway: GatewayConfig{
			BaseURL:       getEnv("GATEWAY_BASE_URL", "https://api.chapa.co/v1"),
			APIKey:        getEnv("GATEWAY_API_KEY", ""),
			WebhookSecret: getEnv("GATEWAY_WEBHOOK_SECRET", ""),
			ReturnURL:     getEnv("GATEWAY_RETURN_URL", ""),
			CallbackURL:   getEnv("GATEWAY_CALLBACK_URL", ""),
			Timeout:       getEnvAsDuration("GATEWAY_TIMEOUT", 10*time.Second),
			MaxAttempts:   getEnvAsInt("GATEWAY_MAX_ATTEMPTS", 3),
		},
		Notification: NotificationConfig{
			BaseURL:        getEnv("NOTIFICATION_SERVICE_URL", ""),
			ListingBaseURL: getEnv("PROPERTY_LISTING_SERVICE_URL", ""),
			Timeout:        getEnvAsDuration("NOTIFICATION_TIMEOUT", 5*time.Second),
			MaxAttempts:    getEnvAsInt("NOTIFICATION_MAX_ATTEMPTS", 3),
		},
		Reconciler: ReconcilerConfig{
			Interval:     getEnvAsDuration("RECONCILER_INTERVAL", 5*time.Minute),
			PendingAge:   getEnvAsDuration("RECONCILER_PENDING_AGE", 30*time.Minute),
			TimeoutAge:   getEnvAsDuration("RECONCILER_TIMEOUT_AGE", 7*24*time.Hour),
			MaxWorkers:   getEnvAsInt("RECONCILER_MAX_WORKERS", 5),
			JobQueueSize: getEnvAsInt("RECONCILER_JOB_QUEUE_SIZE", 100),
			BatchSize:    getEnvAsInt("RECONCILER_BATCH_SIZE", 100),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
	}
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Gateway.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("gateway config: %v", err))
	}

	if err := c.Reconciler.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("reconciler config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.Source == "" {
		return errors.New("source is required")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if len(c.JWTSecret) < 32 {
		return errors.New("jwt secret must be at least 32 characters")
	}
	return nil
}

func (c *GatewayConfig) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base_url is required")
	}
	if c.WebhookSecret == "" {
		return errors.New("webhook_secret is required")
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	return nil
}

func (c *ReconcilerConfig) Validate() error {
	if c.Interval <= 0 {
		return errors.New("interval must be positive")
	}
	if c.TimeoutAge <= c.PendingAge {
		return errors.New("timeout_age must be greater than pending_age")
	}
	return nil
}
