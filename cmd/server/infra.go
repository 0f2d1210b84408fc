package main

import (
	"context"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"auctioneer/internal/auction/service/lifecycle"
	"auctioneer/internal/auction/service/payment"
	"auctioneer/internal/notification"
	"auctioneer/internal/platform/config"
	platformredis "auctioneer/internal/platform/redis"
	"auctioneer/pkg/platform/lock"
	"auctioneer/pkg/platform/ratelimit"
	"auctioneer/pkg/platform/scheduler"
)

// newLocker returns a Redis lease when Redis is configured so only one
// replica runs each pass; a single process falls back to in-memory leases.
func newLocker(ctx context.Context, cfg *config.Config, logger *slog.Logger) (lock.Locker, *goredis.Client, error) {
	client, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		return lock.NewMemory(), nil, nil
	}
	logger.InfoContext(ctx, "redis pass leases enabled")
	return lock.NewRedis(client), client, nil
}

// newRateLimiter shares the write window across replicas when Redis is up.
func newRateLimiter(cfg *config.Config, client *goredis.Client, logger *slog.Logger) *ratelimit.Middleware {
	var store ratelimit.Store = ratelimit.NewMemory()
	if client != nil {
		store = ratelimit.NewRedis(client)
	}
	return ratelimit.NewMiddleware(store, cfg.RateLimit.WritesPerWindow, cfg.RateLimit.Window, logger)
}

func newJobs(cfg *config.Config, locker lock.Locker, logger *slog.Logger,
	lc *lifecycle.Service, ps *payment.Service, relay *notification.Relay,
) []*scheduler.Job {
	opts := []scheduler.Option{
		scheduler.WithLocker(locker),
		scheduler.WithLeaseTTL(cfg.Auction.PassLeaseTTL),
		scheduler.WithLogger(logger),
	}
	return []*scheduler.Job{
		scheduler.New(lifecycle.PassName, cfg.Auction.SchedulerInterval(), lc.Pass, opts...),
		scheduler.New(payment.PassName, cfg.Auction.SweepInterval(), ps.Pass, opts...),
		scheduler.New(notification.PassName, cfg.Notification.RelayInterval, relay.Pass, opts...),
	}
}
