// Package config loads process configuration from the environment, with an
// optional .env file for local runs.
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env          string `env:"ENV" env-default:"local"`
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	SMTP         SMTPConfig
	Auction      AuctionConfig
	Notification NotificationConfig
	RateLimit    RateLimitConfig
	Log          LogConfig
}

type ServerConfig struct {
	Addr            string        `env:"AUCTIONEER_ADDR" env-default:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" env-default:"10s"`
}

// DatabaseConfig selects the Postgres backend when URL is set; otherwise the
// process runs on the in-memory store.
type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS" env-default:"20"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS" env-default:"5"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME" env-default:"30m"`
	Migrate         bool          `env:"DATABASE_MIGRATE" env-default:"true"`
}

// RedisConfig enables the distributed pass lock when URL is set.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" env-default:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" env-default:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" env-default:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" env-default:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" env-default:"3s"`
}

type KafkaConfig struct {
	Brokers           []string `env:"KAFKA_BROKERS" env-separator:","`
	OutbidTopic       string   `env:"KAFKA_OUTBID_TOPIC" env-default:"auction.outbid"`
	Partitions        int32    `env:"KAFKA_TOPIC_PARTITIONS" env-default:"3"`
	ReplicationFactor int16    `env:"KAFKA_TOPIC_REPLICATION_FACTOR" env-default:"1"`
}

type SMTPConfig struct {
	Host        string `env:"SMTP_HOST"`
	Port        int    `env:"SMTP_PORT" env-default:"587"`
	Username    string `env:"SMTP_USERNAME"`
	Password    string `env:"SMTP_PASSWORD"`
	SenderEmail string `env:"SMTP_SENDER_EMAIL" env-default:"auctions@localhost"`
	Encryption  string `env:"SMTP_ENCRYPTION" env-default:"tls"`
}

type AuctionConfig struct {
	SchedulerIntervalMS      int     `env:"SCHEDULER_INTERVAL_MS" env-default:"600000"`
	SweepIntervalMS          int     `env:"SWEEP_INTERVAL_MS" env-default:"600000"`
	PendingThresholdSeconds  int     `env:"PENDING_THRESHOLD_SECONDS" env-default:"2000"`
	LeaseThresholdPercentage float64 `env:"LEASE_PRICE_THRESHOLD_PERCENTAGE" env-default:"80"`
	MaxBidAttempts           int     `env:"MAX_BID_ATTEMPTS" env-default:"3"`
	// PassLeaseTTL bounds how long one replica holds a background pass.
	PassLeaseTTL time.Duration `env:"PASS_LEASE_TTL" env-default:"5m"`
}

func (a AuctionConfig) SchedulerInterval() time.Duration {
	return time.Duration(a.SchedulerIntervalMS) * time.Millisecond
}

func (a AuctionConfig) SweepInterval() time.Duration {
	return time.Duration(a.SweepIntervalMS) * time.Millisecond
}

func (a AuctionConfig) PendingThreshold() time.Duration {
	return time.Duration(a.PendingThresholdSeconds) * time.Second
}

type NotificationConfig struct {
	RelayInterval    time.Duration `env:"NOTIFY_RELAY_INTERVAL" env-default:"2s"`
	BatchSize        int           `env:"NOTIFY_BATCH_SIZE" env-default:"100"`
	MaxAttempts      int           `env:"NOTIFY_MAX_ATTEMPTS" env-default:"10"`
	BreakerThreshold int           `env:"NOTIFY_BREAKER_THRESHOLD" env-default:"5"`
	BreakerCooldown  time.Duration `env:"NOTIFY_BREAKER_COOLDOWN" env-default:"30s"`
}

// RateLimitConfig throttles bid and offer writes per user. Zero disables it.
type RateLimitConfig struct {
	WritesPerWindow int           `env:"RATE_LIMIT_WRITES" env-default:"30"`
	Window          time.Duration `env:"RATE_LIMIT_WINDOW" env-default:"1m"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" env-default:"info"`
	Format string `env:"LOG_FORMAT" env-default:"json"`
}

// Load reads .env (if present) and then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Auction.SchedulerIntervalMS <= 0 {
		return fmt.Errorf("SCHEDULER_INTERVAL_MS must be positive, got %d", c.Auction.SchedulerIntervalMS)
	}
	if c.Auction.SweepIntervalMS <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL_MS must be positive, got %d", c.Auction.SweepIntervalMS)
	}
	if c.Auction.PendingThresholdSeconds <= 0 {
		return fmt.Errorf("PENDING_THRESHOLD_SECONDS must be positive, got %d", c.Auction.PendingThresholdSeconds)
	}
	if c.Auction.LeaseThresholdPercentage <= 0 || c.Auction.LeaseThresholdPercentage > 100 {
		return fmt.Errorf("LEASE_PRICE_THRESHOLD_PERCENTAGE must be in (0, 100], got %v", c.Auction.LeaseThresholdPercentage)
	}
	return nil
}

// UsesPostgres reports whether DATABASE_URL selects the Postgres backend.
func (c *Config) UsesPostgres() bool { return c.Database.URL != "" }
