package counter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/eringen/viewcounter/internal/logger"
)

// Drivers accepted by Config.Driver.
const (
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverMongo    = "mongo"
	DriverFirebase = "firebase"
	DriverMemory   = "memory"
)

// Config selects and configures a backend.
type Config struct {
	Driver string

	SQLitePath string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MongoURI string
	MongoDB  string

	// FirebaseCredentials is the service-account JSON blob.
	FirebaseCredentials string
	// FirebaseDB is the database name or full URL.
	FirebaseDB string

	PollInterval time.Duration
}

// Open connects to the backend named by cfg.Driver.
func Open(ctx context.Context, cfg Config, log *logger.Logger) (Store, error) {
	if log == nil {
		log = logger.NewNop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverSQLite:
		return NewSQLiteStore(cfg.SQLitePath, log, cfg.PollInterval)
	case DriverRedis:
		return NewRedisStore(ctx, &goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, log)
	case DriverMongo:
		return NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDB, log, cfg.PollInterval)
	case DriverFirebase:
		return NewFirebaseStore(ctx, cfg.FirebaseCredentials, cfg.FirebaseDB, log, cfg.PollInterval)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// Connector owns the one store a process uses. Handlers receive the store
// it returns instead of reaching for a package-level client.
type Connector struct {
	mu    sync.Mutex
	store Store
	open  func(context.Context, Config, *logger.Logger) (Store, error)
	wrap  func(Store) Store
	log   *logger.Logger
}

// NewConnector returns a Connector that opens stores with Open and passes
// each new store through wrap (for instrumentation) when wrap is non-nil.
func NewConnector(log *logger.Logger, wrap func(Store) Store) *Connector {
	if log == nil {
		log = logger.NewNop()
	}
	return &Connector{open: Open, wrap: wrap, log: log}
}

// Connect opens the store on first use. Later calls return the same store
// together with ErrAlreadyInitialized.
func (c *Connector) Connect(ctx context.Context, cfg Config) (Store, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store != nil {
		return c.store, ErrAlreadyInitialized
	}
	s, err := c.open(ctx, cfg, c.log)
	if err != nil {
		c.log.Error("counter store initialization failed", "driver", cfg.Driver, "error", err)
		return nil, err
	}
	if c.wrap != nil {
		s = c.wrap(s)
	}
	c.store = s
	c.log.Info("counter store connected", "driver", cfg.Driver)
	return s, nil
}

// Close closes the store if one was opened. The Connector may connect again
// afterwards.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	return err
}
