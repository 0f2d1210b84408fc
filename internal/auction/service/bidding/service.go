// Package bidding admits bids and the other buyer actions that compete for an
// auction while it is open: leasing it outright and making a fixed offer.
//
// Every mutation runs in ports.Tx keyed by the auction, so admissions on one
// auction are serialized and all-or-nothing. Lost optimistic races are
// retried a bounded number of times before surfacing CodeConflict.
package bidding

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"auctioneer/internal/auction/metrics"
	"auctioneer/internal/auction/models"
	"auctioneer/internal/auction/ports"
	dErrors "auctioneer/pkg/domain-errors"
	"auctioneer/pkg/platform/sentinel"
)

const (
	defaultMaxAttempts       = 3
	defaultLeaseThresholdPct = 80.0
	defaultExpiryDays        = 365
	tracerName               = "auctioneer/bidding"
)

type Config struct {
	// MaxAttempts bounds admission retries after an optimistic conflict.
	MaxAttempts int
	// LeaseThresholdPercentage is the fallback when the setting is unset.
	LeaseThresholdPercentage float64
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:              defaultMaxAttempts,
		LeaseThresholdPercentage: defaultLeaseThresholdPct,
	}
}

type Service struct {
	stores   ports.Stores
	tx       ports.Tx
	settings ports.Settings
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
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

func WithConfig(cfg Config) Option {
	return func(s *Service) {
		if cfg.MaxAttempts > 0 {
			s.config.MaxAttempts = cfg.MaxAttempts
		}
		if cfg.LeaseThresholdPercentage > 0 {
			s.config.LeaseThresholdPercentage = cfg.LeaseThresholdPercentage
		}
	}
}

func New(stores ports.Stores, tx ports.Tx, opts ...Option) (*Service, error) {
	if stores.Auctions == nil || stores.Bids == nil || stores.Domains == nil {
		return nil, errors.New("auction, bid and domain stores are required")
	}
	if tx == nil {
		return nil, errors.New("transaction runner is required")
	}

	svc := &Service{
		stores: stores,
		tx:     tx,
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// withRetry re-runs fn while it fails with an optimistic conflict.
func (s *Service) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= s.config.MaxAttempts; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, sentinel.ErrConflict) {
			return translate(err, "auction not found")
		}
		s.metrics.IncrementConflictRetry()
		s.logger.DebugContext(ctx, "retrying after concurrent update", "op", op, "attempt", attempt)
		if ctx.Err() != nil {
			break
		}
	}
	return dErrors.Wrap(err, dErrors.CodeConflict, "auction was modified concurrently, please retry")
}

// translate maps store sentinels onto domain errors. Errors that already
// carry a domain code and conflicts (left for withRetry) pass through.
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
		return dErrors.Wrap(err, dErrors.CodeInvalidState, "auction is not in a state that allows this action")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "request timed out")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "storage is temporarily unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "internal error")
	}
}

func (s *Service) leaseThreshold(ctx context.Context) float64 {
	pct := s.config.LeaseThresholdPercentage
	if s.settings != nil {
		pct = s.settings.GetNumeric(ctx, models.SettingLeasePriceThresholdPercentage, pct)
	}
	return pct / 100
}
