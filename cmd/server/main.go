package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"auctioneer/internal/auction/handler"
	auctionmetrics "auctioneer/internal/auction/metrics"
	"auctioneer/internal/auction/service/bidding"
	"auctioneer/internal/auction/service/lifecycle"
	"auctioneer/internal/auction/service/payment"
	"auctioneer/internal/notification"
	"auctioneer/internal/platform/config"
	"auctioneer/internal/platform/httpserver"
	"auctioneer/internal/platform/logger"
	"auctioneer/internal/platform/metrics"
	platformredis "auctioneer/internal/platform/redis"
	"auctioneer/internal/settings"
	"auctioneer/pkg/platform/circuit"
	"auctioneer/pkg/platform/httputil"
	"auctioneer/pkg/platform/middleware/identity"
	"auctioneer/pkg/platform/middleware/metadata"
	"auctioneer/pkg/platform/middleware/request"
	"auctioneer/pkg/platform/middleware/requesttime"
	"auctioneer/pkg/platform/ratelimit"
)

// main wires high-level dependencies, exposes the HTTP router and runs the
// background passes. Business logic lives in internal service packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("auctioneer stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := newBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	locker, redisClient, err := newLocker(ctx, cfg, log)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	notifier, closeNotifier, err := newNotifier(ctx, cfg, store.directory, log)
	if err != nil {
		return err
	}
	defer closeNotifier()

	auctionMetrics := auctionmetrics.New()
	settingsSvc := settings.New(store.settings, log)

	biddingSvc, err := bidding.New(store.stores, store.tx,
		bidding.WithLogger(log),
		bidding.WithMetrics(auctionMetrics),
		bidding.WithSettings(settingsSvc),
		bidding.WithConfig(bidding.Config{
			MaxAttempts:              cfg.Auction.MaxBidAttempts,
			LeaseThresholdPercentage: cfg.Auction.LeaseThresholdPercentage,
		}),
	)
	if err != nil {
		return err
	}
	lifecycleSvc, err := lifecycle.New(store.stores.Auctions, store.tx,
		lifecycle.WithLogger(log),
		lifecycle.WithMetrics(auctionMetrics),
	)
	if err != nil {
		return err
	}
	paymentSvc, err := payment.New(store.stores, store.tx,
		payment.WithLogger(log),
		payment.WithMetrics(auctionMetrics),
		payment.WithSettings(settingsSvc),
		payment.WithConfig(payment.Config{
			PendingThreshold: cfg.Auction.PendingThreshold(),
			MaxAttempts:      cfg.Auction.MaxBidAttempts,
		}),
	)
	if err != nil {
		return err
	}
	relay, err := notification.NewRelay(store.stores.Outbox, notifier,
		notification.WithLogger(log),
		notification.WithMetrics(auctionMetrics),
		notification.WithBatchSize(cfg.Notification.BatchSize),
		notification.WithMaxAttempts(cfg.Notification.MaxAttempts),
		notification.WithBreaker(circuit.New("notifier",
			circuit.WithFailureThreshold(cfg.Notification.BreakerThreshold),
			circuit.WithCooldown(cfg.Notification.BreakerCooldown),
		)),
	)
	if err != nil {
		return err
	}

	limiter := newRateLimiter(cfg, redisClient, log)
	checks := map[string]func(context.Context) error{store.name: store.Health}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return platformredis.Health(ctx, redisClient) }
	}
	router := newRouter(cfg, log, checks, limiter, handler.New(biddingSvc, paymentSvc, settingsSvc, store.directory, log))
	srv := httpserver.New(cfg.Server.Addr, router, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting auctioneer", "addr", cfg.Server.Addr, "backend", store.name)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	for _, job := range newJobs(cfg, locker, log, lifecycleSvc, paymentSvc, relay) {
		g.Go(func() error {
			log.Info("starting background pass", "job", job.Name())
			if err := job.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newRouter(cfg *config.Config, log *slog.Logger, checks map[string]func(context.Context) error, limiter *ratelimit.Middleware, h *handler.Handler) http.Handler {
	httpMetrics := metrics.New()

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(cfg.Server.RequestTimeout))
	r.Use(httpMetrics.Instrument)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)

	r.Get("/healthz", health(log, checks))
	r.Handle("/metrics", metrics.Handler())

	h.Register(r, identity.RequireUser(log), limiter.PerUser("auction_writes"))
	return r
}

// health reports each dependency as "ok" or "unavailable" and answers 503
// when any of them is down.
func health(log *slog.Logger, checks map[string]func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		report := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				log.WarnContext(ctx, "health check failed", "dependency", name, "error", err)
				report[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			report[name] = "ok"
		}
		httputil.WriteJSON(w, status, report)
	}
}
