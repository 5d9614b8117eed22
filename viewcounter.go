// Package viewcounter serves a site's per-page view counters and relays its
// newsletter subscriber count.
//
// POST /view-counter atomically increments a page's counter in the
// configured store and returns the new total; GET /convertkit relays the
// subscriber total from ConvertKit. Read, top-pages, and live-update
// endpoints plus an optional admin stats page sit alongside.
package viewcounter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/eringen/viewcounter/counter"
	"github.com/eringen/viewcounter/internal/logger"
	"github.com/eringen/viewcounter/internal/tracing"
	"github.com/eringen/viewcounter/newsletter"
)

// Version is set at build time via ldflags.
var Version = "dev"

// App wires together the counter store, newsletter client, handlers and
// middleware.
type App struct {
	Config Config
	Echo   *echo.Echo

	log          *logger.Logger
	connector    *counter.Connector
	store        counter.Store
	ownsStore    bool
	newsletter   *newsletter.Client
	topCache     *TopCache
	incLimiter   *RateLimiter
	loginLimiter *RateLimiter
	tracer       trace.Tracer
	stopTracing  func(context.Context) error
	customRoutes []func(*App)
	initialized  bool
}

// New creates an App with the given configuration. Nothing is connected
// until Init or Start.
func New(cfg Config, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true

	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		l, err := logger.New(cfg.Env)
		if err != nil {
			l = logger.NewNop()
		}
		a.log = l
	}
	a.connector = counter.NewConnector(a.log, func(s counter.Store) counter.Store {
		return counter.Instrument(s, a.tracer)
	})
	return a
}

// Logger returns the application logger.
func (a *App) Logger() *logger.Logger { return a.log }

// Counter returns the process-wide counter store, connecting on first use.
func (a *App) Counter(ctx context.Context) (counter.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := a.connector.Connect(ctx, a.Config.Counter)
	if err != nil && !errors.Is(err, counter.ErrAlreadyInitialized) {
		return nil, fmt.Errorf("viewcounter: init counter store: %w", err)
	}
	a.store = s
	a.ownsStore = true
	return s, nil
}

// Init connects the store, builds clients, and mounts middleware and
// routes. It is idempotent.
func (a *App) Init(ctx context.Context) error {
	if a.initialized {
		return nil
	}

	tracer, stop, err := tracing.Init(ctx, a.log, a.Config.Tracing)
	if err != nil {
		return fmt.Errorf("viewcounter: init tracing: %w", err)
	}
	a.stopTracing = stop
	if a.Config.Tracing.Enabled {
		a.tracer = tracer
		if a.store != nil {
			a.store = counter.Instrument(a.store, tracer)
		}
	}

	if _, err := a.Counter(ctx); err != nil {
		return err
	}

	if a.newsletter == nil {
		a.newsletter = newsletter.NewClient(a.Config.ConvertKitAPISecret, a.Config.UpstreamTimeout,
			newsletter.WithBaseURL(a.Config.ConvertKitBaseURL))
	}
	if !a.newsletter.Configured() {
		a.log.Warn("CONVERTKIT_API_SECRET not set; subscriber count disabled")
	}

	a.topCache = NewTopCache(a.store, a.Config.TopCacheTTL)
	if a.Config.IncrementRateLimit > 0 {
		a.incLimiter = NewRateLimiter(a.Config.IncrementRateLimit, time.Minute)
	}
	if a.Config.AdminEnabled() {
		a.loginLimiter = NewRateLimiter(5, time.Minute)
	}

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}

	a.initialized = true
	a.log.Info("viewcounter initialized",
		"driver", a.Config.Counter.Driver,
		"cors", a.Config.EnableCORS,
		"admin", a.Config.AdminEnabled(),
	)
	return nil
}

// Start initializes the app and serves until ctx is cancelled, then shuts
// the server down gracefully.
func (a *App) Start(ctx context.Context) error {
	if err := a.Init(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info("listening", "addr", a.Config.Addr)
		if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.Echo.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (a *App) setupRoutes() {
	e := a.Echo
	cors := corsMiddleware(a.Config.EnableCORS)

	e.GET("/healthz", handleHealth)

	// Counter routes. The /.netlify/functions paths keep existing site
	// builds working unchanged.
	for _, p := range []string{"/view-counter", "/.netlify/functions/view-counter"} {
		e.POST(p, a.handleIncrement, cors)
		e.OPTIONS(p, handlePreflight, cors)
	}
	for _, p := range []string{"/convertkit", "/.netlify/functions/convertkit"} {
		e.GET(p, a.handleSubscriberCount, cors)
		e.OPTIONS(p, handlePreflight, cors)
	}

	e.GET("/api/views", a.handleGetViews, cors)
	e.GET("/api/views/top", a.handleTopViews, cors)
	e.GET("/api/views/stream", a.handleViewStream, cors)

	if a.Config.AdminEnabled() {
		e.GET("/admin/", a.handleAdmin)
		e.POST("/admin/login/", a.handleAdminLogin)
		e.POST("/admin/logout/", handleAdminLogout)
		e.GET("/admin/stats/", a.handleAdminStats)
	}
}

// Close releases the store (when the App opened it), limiters and tracer.
func (a *App) Close() error {
	var errs []error
	if a.incLimiter != nil {
		a.incLimiter.Stop()
	}
	if a.loginLimiter != nil {
		a.loginLimiter.Stop()
	}
	if a.ownsStore {
		if err := a.connector.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	if a.stopTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.stopTracing(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop tracing: %w", err))
		}
	}
	a.log.Sync()
	return errors.Join(errs...)
}
