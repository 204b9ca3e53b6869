// Package serverconfig loads the authcache server configuration from the
// environment. Every variable is prefixed AUTHCACHE_.
package serverconfig

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/MrEthical07/authcache"
	"github.com/MrEthical07/authcache/jwt"
	"github.com/MrEthical07/authcache/kv"
	"github.com/MrEthical07/authcache/userdb"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const envPrefix = "authcache"

const minSecretLength = 32

// Config is the server's environment.
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	RedisURL      string `envconfig:"REDIS_URL"`
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBDebug     bool   `envconfig:"DB_DEBUG" default:"false"`

	AccessSecret  string        `envconfig:"ACCESS_SECRET" required:"true"`
	RefreshSecret string        `envconfig:"REFRESH_SECRET" required:"true"`
	ResetSecret   string        `envconfig:"RESET_SECRET" required:"true"`
	AccessTTL     time.Duration `envconfig:"ACCESS_TTL" default:"5m"`
	RefreshTTL    time.Duration `envconfig:"REFRESH_TTL" default:"168h"`
	ResetTTL      time.Duration `envconfig:"RESET_TTL" default:"5m"`
	Issuer        string        `envconfig:"ISSUER" default:"authcache"`

	KeyPrefix    string        `envconfig:"KEY_PREFIX"`
	PrincipalTTL time.Duration `envconfig:"PRINCIPAL_TTL" default:"24h"`
	AuthTimeout  time.Duration `envconfig:"AUTH_TIMEOUT" default:"3s"`

	MetricsEnabled    bool `envconfig:"METRICS_ENABLED" default:"true"`
	LatencyHistograms bool `envconfig:"LATENCY_HISTOGRAMS" default:"true"`

	// OTelMetrics additionally pushes metrics through an OpenTelemetry
	// periodic reader that writes to stderr every OTelInterval.
	OTelMetrics  bool          `envconfig:"OTEL_METRICS" default:"false"`
	OTelInterval time.Duration `envconfig:"OTEL_INTERVAL" default:"60s"`

	// ExposeResetToken returns reset tokens in the forgot-password response.
	// Only allowed in development; production deployments mail them.
	ExposeResetToken bool `envconfig:"EXPOSE_RESET_TOKEN" default:"false"`
}

// IsDev reports whether the server runs in development mode.
func (c *Config) IsDev() bool {
	return strings.EqualFold(c.Environment, "development")
}

// Load reads a .env file in development, processes the environment and
// validates the result.
func Load(logger *zap.Logger) (*Config, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	env := os.Getenv("AUTHCACHE_ENVIRONMENT")
	if env == "" || strings.EqualFold(env, "development") {
		if err := godotenv.Load(); err != nil {
			logger.Info("no .env file found")
		} else {
			logger.Info("loaded .env file")
		}
	}

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var problems []string

	secrets := []struct{ name, value string }{
		{"AUTHCACHE_ACCESS_SECRET", c.AccessSecret},
		{"AUTHCACHE_REFRESH_SECRET", c.RefreshSecret},
		{"AUTHCACHE_RESET_SECRET", c.ResetSecret},
	}
	for _, s := range secrets {
		if len(s.value) < minSecretLength {
			problems = append(problems, fmt.Sprintf("%s must be at least %d characters", s.name, minSecretLength))
		}
	}
	if c.AccessSecret == c.RefreshSecret || c.AccessSecret == c.ResetSecret || c.RefreshSecret == c.ResetSecret {
		problems = append(problems, "AUTHCACHE_ACCESS_SECRET, AUTHCACHE_REFRESH_SECRET and AUTHCACHE_RESET_SECRET must differ")
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		problems = append(problems, "AUTHCACHE_DATABASE_URL is required")
	}
	if c.RefreshTTL <= c.AccessTTL {
		problems = append(problems, "AUTHCACHE_REFRESH_TTL must exceed AUTHCACHE_ACCESS_TTL")
	}
	if c.ExposeResetToken && !c.IsDev() {
		problems = append(problems, "AUTHCACHE_EXPOSE_RESET_TOKEN is only allowed in development")
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, "AUTHCACHE_LOG_LEVEL must be one of debug, info, warn, error")
	}
	if c.OTelMetrics && !c.MetricsEnabled {
		problems = append(problems, "AUTHCACHE_OTEL_METRICS requires AUTHCACHE_METRICS_ENABLED")
	}
	if c.OTelMetrics && c.OTelInterval < time.Second {
		problems = append(problems, "AUTHCACHE_OTEL_INTERVAL must be at least 1s")
	}
	if c.RedisURL == "" && c.RedisAddr == "" {
		problems = append(problems, "one of AUTHCACHE_REDIS_URL or AUTHCACHE_REDIS_ADDR is required")
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New("environment validation failed:\n  " + strings.Join(problems, "\n  "))
}

// MaskSecret keeps the first and last four characters of long secrets.
func MaskSecret(secret string) string {
	if secret == "" {
		return "<not set>"
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

// Fields renders the configuration for a startup log line.
func (c *Config) Fields() []zap.Field {
	return []zap.Field{
		zap.String("environment", c.Environment),
		zap.String("http_addr", c.HTTPAddr),
		zap.String("redis", c.redisTarget()),
		zap.String("access_secret", MaskSecret(c.AccessSecret)),
		zap.String("refresh_secret", MaskSecret(c.RefreshSecret)),
		zap.String("reset_secret", MaskSecret(c.ResetSecret)),
		zap.Duration("access_ttl", c.AccessTTL),
		zap.Duration("refresh_ttl", c.RefreshTTL),
		zap.String("key_prefix", c.KeyPrefix),
		zap.Bool("metrics", c.MetricsEnabled),
		zap.Bool("otel_metrics", c.OTelMetrics),
	}
}

func (c *Config) redisTarget() string {
	if c.RedisURL != "" {
		return MaskSecret(c.RedisURL)
	}
	return c.RedisAddr
}

// Engine maps the environment onto the library configuration.
func (c *Config) Engine() authcache.Config {
	cfg := authcache.DefaultConfig()
	cfg.JWT.SigningMethod = jwt.MethodHS256
	cfg.JWT.AccessKey = jwt.KeyPair{Private: []byte(c.AccessSecret)}
	cfg.JWT.RefreshKey = jwt.KeyPair{Private: []byte(c.RefreshSecret)}
	cfg.JWT.ResetKey = jwt.KeyPair{Private: []byte(c.ResetSecret)}
	cfg.JWT.AccessTTL = c.AccessTTL
	cfg.JWT.RefreshTTL = c.RefreshTTL
	cfg.JWT.ResetTTL = c.ResetTTL
	cfg.JWT.Issuer = c.Issuer
	cfg.Session.KeyPrefix = c.KeyPrefix
	cfg.Cache.PrincipalTTL = c.PrincipalTTL
	cfg.AuthTimeout = c.AuthTimeout
	cfg.Metrics.Enabled = c.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = c.MetricsEnabled && c.LatencyHistograms
	return cfg
}

// Redis returns the store connection settings.
func (c *Config) Redis() kv.RedisConfig {
	return kv.RedisConfig{
		URL:         c.RedisURL,
		Addr:        c.RedisAddr,
		Password:    c.RedisPassword,
		DB:          c.RedisDB,
		DialTimeout: 5 * time.Second,
	}
}

// Database returns the PostgreSQL connection settings.
func (c *Config) Database() userdb.Config {
	return userdb.Config{DSN: c.DatabaseURL, Debug: c.DBDebug}
}
