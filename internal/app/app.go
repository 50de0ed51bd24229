// Package app wires the gateway together and runs it.
package app

import (
	"context"
	"crypto/tls"
	stderrors "errors"
	"fmt"
	"time"

	"edge-gateway/internal/batching"
	"edge-gateway/internal/brokers"
	"edge-gateway/internal/brokers/manager"
	"edge-gateway/internal/cache"
	"edge-gateway/internal/common/errors"
	"edge-gateway/internal/common/logging"
	"edge-gateway/internal/common/utils"
	"edge-gateway/internal/config"
	"edge-gateway/internal/crypto"
	"edge-gateway/internal/facts"
	"edge-gateway/internal/geoip"
	"edge-gateway/internal/handlers"
	"edge-gateway/internal/models"
	"edge-gateway/internal/pipeline"
	"edge-gateway/internal/pipeline/modules"
	"edge-gateway/internal/routing"
	"edge-gateway/internal/server"
	"edge-gateway/internal/settings"
	"edge-gateway/internal/storage"
	"edge-gateway/internal/telemetry"
)

// Version is reported by the health endpoint.
var Version = "dev"

// App holds all the application dependencies
type App struct {
	Config    *config.Config
	Store     storage.Store
	Routes    *routing.Manager
	Certs     *crypto.Manager
	Settings  *settings.Manager
	GeoIP     *geoip.Service
	Sink      brokers.Sink
	Registrar *telemetry.Registrar
	Router    *pipeline.Router
	Handlers  *handlers.Handlers
	Server    *server.Server
	Logger    logging.Logger

	caches []interface{ Close() }
}

// New creates a new application instance with all dependencies. Nothing is
// listening yet; call Start.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logging.Component("app"),
	}

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"storage", app.initializeStorage},
		{"managers", app.initializeManagers},
		{"geoip", app.initializeGeoIP},
		{"telemetry", app.initializeTelemetry},
		{"routing", app.initializeRouting},
		{"server", app.initializeServer},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			app.Close(ctx)
			return nil, fmt.Errorf("initialize %s: %w", step.name, err)
		}
	}
	return app, nil
}

// initializeStorage connects the backing store, retrying while it comes up.
func (app *App) initializeStorage(ctx context.Context) error {
	retry := utils.DefaultRetryConfig()
	retry.RetryableErrors = func(err error) bool {
		return errors.IsType(err, errors.ErrTypeConnection)
	}

	return utils.RetryWithBackoff(ctx, retry, func() error {
		store, err := storage.NewStore(app.Config, app.Logger)
		if err != nil {
			app.Logger.Warn("Store not ready", logging.Err(err), logging.String("kind", app.Config.StoreKind))
			return err
		}
		app.Store = store
		return nil
	})
}

func newCache[V any](app *App, ttl, tti time.Duration) (*cache.Cache[V], error) {
	c, err := cache.New[V](cache.Options{
		Capacity:       app.Config.CacheCapacity,
		TTL:            ttl,
		TTI:            tti,
		ComputeTimeout: app.Config.RequestTimeout,
	})
	if err != nil {
		return nil, err
	}
	app.caches = append(app.caches, c)
	return c, nil
}

func (app *App) initializeManagers(context.Context) error {
	cfg := app.Config

	routes, err := newCache[*models.Route](app, cfg.RouteCacheTTL, cfg.RouteCacheTTI)
	if err != nil {
		return err
	}
	keycerts, err := newCache[*models.Keycert](app, cfg.CertCacheTTL, 0)
	if err != nil {
		return err
	}
	built, err := newCache[*tls.Certificate](app, cfg.CertCacheTTL, 0)
	if err != nil {
		return err
	}
	userSettings, err := newCache[*models.UserSettings](app, cfg.SettingsCacheTTL, 0)
	if err != nil {
		return err
	}

	var encryptor *crypto.KeyEncryptor
	if cfg.EncryptionKey != "" {
		if encryptor, err = crypto.NewKeyEncryptor(cfg.EncryptionKey); err != nil {
			return err
		}
	}

	app.Routes = routing.NewManager(app.Store, routes, logging.Component("routes"))
	app.Certs = crypto.NewManager(app.Store, keycerts, built, crypto.NewBuilder(encryptor, nil), logging.Component("certs"))
	app.Settings = settings.NewManager(app.Store, userSettings, logging.Component("settings"))
	return nil
}

func (app *App) initializeGeoIP(context.Context) error {
	svc, err := geoip.NewService(geoip.ServiceConfig{
		Path:           app.Config.GeoIPPath,
		ReloadSchedule: app.Config.GeoIPReloadSchedule,
	})
	if err != nil {
		return err
	}
	svc.Start()
	app.GeoIP = svc
	return nil
}

func (app *App) initializeTelemetry(ctx context.Context) error {
	cfg := app.Config

	sink, err := manager.NewSink(ctx, cfg, logging.Component("brokers"))
	if err != nil {
		return err
	}
	app.Sink = sink

	sessions, err := telemetry.NewSessionTracker(cfg.CacheCapacity, cfg.SessionTTL)
	if err != nil {
		return err
	}

	app.Registrar, err = telemetry.NewRegistrar(batching.Config{
		BatchSize: cfg.HitBatchSize,
		Consumers: cfg.HitConsumers,
		MaxWait:   cfg.HitMaxWait,
	}, sink, sessions, logging.Component("telemetry"))
	if err != nil {
		sessions.Close()
	}
	return err
}

func (app *App) initializeRouting(context.Context) error {
	cfg := app.Config
	logger := logging.Component("flow")

	mods := modules.Defaults(modules.Config{
		IndexTemplate:    cfg.RootIndexURL,
		ProxyIndex:       cfg.RootProxy,
		NotFoundTemplate: cfg.NotFoundURL,
	}, routing.NewEvaluator(routing.WithLogger(logger)), app.Registrar, logger)

	app.Router = pipeline.NewRouter(pipeline.Options{
		Routes:   app.Routes,
		Settings: app.Settings,
		Locator:  app.GeoIP,
		Debug:    facts.NewDebugOverride(cfg.DebugTokenSecret),
		Timeout:  cfg.RequestTimeout,
		Logger:   logger,
	}, mods...)
	return nil
}

// initializeServer refuses to start TLS listeners without a usable default
// certificate.
func (app *App) initializeServer(ctx context.Context) error {
	cfg := app.Config

	app.Handlers = handlers.New(app.Router, logging.Component("handlers"),
		handlers.WithHealthCheck("store", app.Store),
		handlers.WithHealthCheck("sink", app.Sink),
		handlers.WithVersion(Version),
	)

	var sni *server.SNIResolver
	if len(cfg.TLSAddrs) > 0 {
		if _, err := app.Certs.GetDefaultCertificate(ctx); err != nil {
			return errors.ConfigError(fmt.Sprintf("TLS listeners configured but default certificate unavailable: %v", err))
		}
		sni = server.NewSNIResolver(app.Certs, logging.Component("sni"))
	}

	app.Server = server.New(app.Handlers.Routes(), server.Config{
		HTTPAddrs: cfg.HTTPAddrs,
		TLSAddrs:  cfg.TLSAddrs,
	}, sni, logging.Component("server"))
	return nil
}

// Start opens the listeners.
func (app *App) Start() error {
	return app.Server.Start()
}

// Close stops listeners, drains queued hits, then releases sinks, stores
// and caches. It is safe on a partially initialized App.
func (app *App) Close(ctx context.Context) error {
	var errs []error
	if app.Server != nil {
		if err := app.Server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("server: %w", err))
		}
	}
	if app.Registrar != nil {
		if err := app.Registrar.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry: %w", err))
		}
		stats := app.Registrar.Stats()
		app.Logger.Info("Telemetry drained",
			logging.Int64("enqueued", stats.Enqueued),
			logging.Int64("processed", stats.Processed),
			logging.Int64("dropped", stats.Dropped),
		)
	}
	if app.Sink != nil {
		if err := app.Sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("sink: %w", err))
		}
	}
	if app.GeoIP != nil {
		app.GeoIP.Stop()
	}
	if app.Store != nil {
		if err := app.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	for _, c := range app.caches {
		c.Close()
	}
	return stderrors.Join(errs...)
}
