// Package payment owns what happens after an auction is awarded: the buyer's
// checkout (Initiate, Complete) and the reconciliation sweep that fails
// payments nobody completed in time.
package payment

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"auctioneer/internal/auction/metrics"
	"auctioneer/internal/auction/ports"
	dErrors "auctioneer/pkg/domain-errors"
	"auctioneer/pkg/platform/sentinel"
)

const (
	PassName = "payment_sweep"

	defaultPendingThreshold = 2000 * time.Second
	defaultEntityTimeout    = 5 * time.Second
	defaultMaxAttempts      = 3
	defaultExpiryDays       = 365
)

type Config struct {
	// PendingThreshold is the fallback when PENDING_THRESHOLD_SECONDS is unset.
	PendingThreshold time.Duration
	MaxAttempts      int
}

func DefaultConfig() Config {
	return Config{
		PendingThreshold: defaultPendingThreshold,
		MaxAttempts:      defaultMaxAttempts,
	}
}

type Service struct {
	stores   ports.Stores
	tx       ports.Tx
	settings ports.Settings
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
	clock    func() time.Time
	config   Config
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithSettings(settings ports.Settings) Option {
	return func(s *Service) {
		s.settings = settings
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

func WithConfig(cfg Config) Option {
	return func(s *Service) {
		if cfg.PendingThreshold > 0 {
			s.config.PendingThreshold = cfg.PendingThreshold
		}
		if cfg.MaxAttempts > 0 {
			s.config.MaxAttempts = cfg.MaxAttempts
		}
	}
}

func New(stores ports.Stores, tx ports.Tx, opts ...Option) (*Service, error) {
	if stores.Auctions == nil || stores.Payments == nil || stores.Domains == nil || stores.Bids == nil {
		return nil, errors.New("auction, payment, bid and domain stores are required")
	}
	if tx == nil {
		return nil, errors.New("transaction runner is required")
	}
	svc := &Service{
		stores: stores,
		tx:     tx,
		logger: slog.Default(),
		tracer: otel.Tracer("auctioneer/payment"),
		clock:  time.Now,
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

func (s *Service) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= s.config.MaxAttempts; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, sentinel.ErrConflict) {
			return translate(err, "payment not found")
		}
		s.metrics.IncrementConflictRetry()
		s.logger.DebugContext(ctx, "retrying after concurrent update", "op", op, "attempt", attempt)
		if ctx.Err() != nil {
			break
		}
	}
	return dErrors.Wrap(err, dErrors.CodeConflict, "payment was modified concurrently, please retry")
}

func translate(err error, notFoundMsg string) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrConflict):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, notFoundMsg)
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeInvalidState, "payment is not in a state that allows this action")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "request timed out")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "storage is temporarily unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "internal error")
	}
}
