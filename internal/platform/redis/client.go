// Package redis dials the Redis instance shared by pass leases and the write
// rate limiter.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"auctioneer/internal/platform/config"
)

const pingTimeout = 3 * time.Second

// Options turns a RedisConfig into go-redis options. Zero-valued knobs keep
// the go-redis defaults.
func Options(cfg config.RedisConfig) (*goredis.Options, error) {
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	return opts, nil
}

// New connects and checks the server answers PING. A blank URL means Redis is
// not configured: New returns a nil client and no error.
func New(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := Options(cfg)
	if err != nil {
		return nil, err
	}
	client := goredis.NewClient(opts)
	if err := Health(ctx, client); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// Health pings with a short deadline of its own.
func Health(ctx context.Context, client goredis.UniversalClient) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
