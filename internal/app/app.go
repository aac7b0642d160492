package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/contract"
	"github.com/xenking/storefront/internal/domain/modifier"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/pricelist"
	"github.com/xenking/storefront/internal/domain/pricing"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/storage/rediscache"
	"github.com/xenking/storefront/pkg/health"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("db", cfg.Database.Driver),
		zap.String("pricing", cfg.Pricing.Strategy),
	)

	st, err := OpenStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	healthSvc := health.New()
	healthSvc.AddReadiness(health.Check{Name: cfg.Database.Driver, Timeout: 5 * time.Second, Func: st.Ping})
	healthSvc.AddLiveness(health.Check{Name: "goroutines", Timeout: time.Second, Func: health.Goroutines(10000)})

	modifiers := st.Modifiers
	if cfg.Redis.Addr != "" {
		client, err := rediscache.New(ctx, cfg.Redis.Addr)
		if err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer func() { _ = client.Close() }()

		modifiers = rediscache.NewModifierRepository(modifiers, client, cfg.Redis.TTL)
		// The cache degrades to storage reads, so Redis only gates readiness
		// after several consecutive failures.
		healthSvc.AddReadiness(health.Check{
			Name:      "redis",
			Timeout:   2 * time.Second,
			FailAfter: 5,
			Func:      func(ctx context.Context) error { return client.Ping(ctx).Err() },
		})
		lg.Info("Modifier rule cache enabled", zap.Duration("ttl", cfg.Redis.TTL))
	}

	h, err := newHandler(cfg, st, modifiers, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return err
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           newRouter(cfg, zctx.From(ctx), m.TracerProvider(), m.MeterProvider(), healthSvc, h),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

func newHandler(
	cfg *Config,
	st *Store,
	modifiers modifier.Repository,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (*handler.Handler, error) {
	strategy, err := pricing.ParseStrategy(cfg.Pricing.Strategy)
	if err != nil {
		return nil, err
	}
	resolver := pricing.NewResolver(strategy, st.Users, st.Products, st.Lists, st.Contracts)

	orders, err := order.NewService(st.Tx, st.Users, st.Products, resolver,
		modifier.NewRepoProvider(modifiers), st.Orders,
		order.WithTracerProvider(tp),
		order.WithMeterProvider(mp),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create order service")
	}

	return handler.NewHandler(
		handler.Config{
			CheckoutLimit:  cfg.RateLimit.Max,
			CheckoutWindow: cfg.RateLimit.Window,
		},
		orders,
		resolver,
		contract.NewService(st.Contracts, st.Products, st.Users),
		pricelist.NewService(st.Lists, st.Products, st.Users),
		auth.NewAuthenticator(st.Tokens, []byte(cfg.TokenPepper)),
	), nil
}

// newRouter mounts the probes and the API under /api behind the middleware
// chain.
func newRouter(
	cfg *Config,
	lg *zap.Logger,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
	healthSvc *health.Health,
	h *handler.Handler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.Instrument("storefront-api", tp, mp),
		httpmiddleware.LogRequests(),
		httpmiddleware.Recovery(),
		httpmiddleware.Secure(httpmiddleware.SecureConfig{HSTS: cfg.HSTS, Dev: cfg.Dev}),
	)
	r.Get("/livez", healthSvc.Live)
	r.Get("/readyz", healthSvc.Ready)
	r.Mount("/api", h.Routes())
	return r
}
