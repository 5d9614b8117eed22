package viewcounter

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/eringen/viewcounter/counter"
	"github.com/eringen/viewcounter/internal/logger"
	"github.com/eringen/viewcounter/internal/tracing"
	"github.com/eringen/viewcounter/newsletter"
)

// Config holds all configuration for a viewcounter server.
type Config struct {
	Addr string // Listen address (default ":3000")
	Env  string // "development" or "production" (default "development")

	Counter counter.Config // Counter store backend (default sqlite at data/views.db)

	ConvertKitAPISecret string        // Newsletter provider secret; subscriber count is 503 without it
	ConvertKitBaseURL   string        // default https://api.convertkit.com
	UpstreamTimeout     time.Duration // Newsletter request timeout (default 10s)
	StoreTimeout        time.Duration // Bound on a single store call (default 5s)

	EnableCORS         bool          // Add permissive CORS headers to counter routes
	IncrementRateLimit int           // Increments per client IP per minute, 0 disables (default 0)
	TopCacheTTL        time.Duration // Top-pages snapshot TTL (default 30s, negative disables)

	AdminPassword string // Enables the admin area together with SessionSecret
	SessionSecret string // Admin session encryption secret
	CookieSecure  bool   // Set true for HTTPS

	Tracing tracing.Config
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.Env == "" {
		c.Env = "development"
	}
	if c.Counter.Driver == "" {
		c.Counter.Driver = counter.DriverSQLite
	}
	if c.Counter.SQLitePath == "" {
		c.Counter.SQLitePath = "data/views.db"
	}
	if c.Counter.MongoDB == "" {
		c.Counter.MongoDB = "site"
	}
	if c.Counter.PollInterval == 0 {
		c.Counter.PollInterval = counter.DefaultPollInterval
	}
	if c.ConvertKitBaseURL == "" {
		c.ConvertKitBaseURL = newsletter.DefaultBaseURL
	}
	if c.UpstreamTimeout == 0 {
		c.UpstreamTimeout = 10 * time.Second
	}
	if c.StoreTimeout == 0 {
		c.StoreTimeout = 5 * time.Second
	}
	if c.TopCacheTTL == 0 {
		c.TopCacheTTL = 30 * time.Second
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "viewcounter"
	}
	if c.Tracing.Environment == "" {
		c.Tracing.Environment = c.Env
	}
}

// AdminEnabled reports whether the admin area should be mounted.
func (c Config) AdminEnabled() bool {
	return c.AdminPassword != "" && c.SessionSecret != ""
}

// LoadConfig reads configuration from the environment, after loading a
// .env file from the working directory if one exists.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("viewcounter: load .env: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("ADDR", ":3000")
	v.SetDefault("ENV", "development")
	v.SetDefault("COUNTER_DRIVER", counter.DriverSQLite)
	v.SetDefault("DATABASE_PATH", "data/views.db")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("MONGO_DB", "site")
	v.SetDefault("CONVERTKIT_BASE_URL", newsletter.DefaultBaseURL)
	v.SetDefault("UPSTREAM_TIMEOUT", "10s")
	v.SetDefault("STORE_TIMEOUT", "5s")
	v.SetDefault("POLL_INTERVAL", "2s")
	v.SetDefault("INCREMENT_RATE_LIMIT", 0)
	v.SetDefault("TOP_CACHE_TTL", "30s")
	v.SetDefault("OTEL_EXPORTER", "stdout")

	cfg := Config{
		Addr: v.GetString("ADDR"),
		Env:  strings.ToLower(v.GetString("ENV")),
		Counter: counter.Config{
			Driver:              v.GetString("COUNTER_DRIVER"),
			SQLitePath:          v.GetString("DATABASE_PATH"),
			RedisAddr:           v.GetString("REDIS_ADDR"),
			RedisPassword:       v.GetString("REDIS_PASSWORD"),
			RedisDB:             v.GetInt("REDIS_DB"),
			MongoURI:            v.GetString("MONGO_URI"),
			MongoDB:             v.GetString("MONGO_DB"),
			FirebaseCredentials: v.GetString("GOOGLE_SERVICE_ACCOUNT"),
			FirebaseDB:          v.GetString("FIREBASE_DB"),
			PollInterval:        v.GetDuration("POLL_INTERVAL"),
		},
		ConvertKitAPISecret: v.GetString("CONVERTKIT_API_SECRET"),
		ConvertKitBaseURL:   v.GetString("CONVERTKIT_BASE_URL"),
		UpstreamTimeout:     v.GetDuration("UPSTREAM_TIMEOUT"),
		StoreTimeout:        v.GetDuration("STORE_TIMEOUT"),
		EnableCORS:          flagSet(v.GetString("ENABLE_CORS")),
		IncrementRateLimit:  v.GetInt("INCREMENT_RATE_LIMIT"),
		TopCacheTTL:         v.GetDuration("TOP_CACHE_TTL"),
		AdminPassword:       v.GetString("ADMIN_PASSWORD"),
		SessionSecret:       v.GetString("ADMIN_SESSION_SECRET"),
		CookieSecure:        flagSet(v.GetString("COOKIE_SECURE")),
		Tracing: tracing.Config{
			Enabled:  flagSet(v.GetString("OTEL_ENABLED")),
			Exporter: v.GetString("OTEL_EXPORTER"),
			Endpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		},
	}
	if cfg.IncrementRateLimit < 0 {
		return Config{}, fmt.Errorf("viewcounter: INCREMENT_RATE_LIMIT must not be negative")
	}
	if (cfg.AdminPassword == "") != (cfg.SessionSecret == "") {
		return Config{}, fmt.Errorf("viewcounter: ADMIN_PASSWORD and ADMIN_SESSION_SECRET must be set together")
	}
	cfg.setDefaults()
	return cfg, nil
}

// flagSet treats any non-empty value as on, except explicit negatives.
func flagSet(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "0", "false", "no", "off":
		return false
	default:
		return true
	}
}

// Option configures additional App behavior.
type Option func(*App)

// WithStore injects a ready counter store. The App does not close it.
func WithStore(s counter.Store) Option {
	return func(a *App) {
		a.store = s
	}
}

// WithNewsletter replaces the ConvertKit client built from Config.
func WithNewsletter(c *newsletter.Client) Option {
	return func(a *App) {
		a.newsletter = c
	}
}

// WithLogger sets the application logger (default: built from Config.Env).
func WithLogger(l *logger.Logger) Option {
	return func(a *App) {
		a.log = l
	}
}

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App after the built-in routes are mounted.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}
