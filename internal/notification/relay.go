// Package notification delivers outbid notices written to the outbox.
//
// The bid transaction only appends an outbox row. The Relay polls the
// outbox, hands each notice to a ports.Notifier and marks it processed, so
// delivery is at-least-once and never blocks or fails a bid.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"auctioneer/internal/auction/metrics"
	"auctioneer/internal/auction/models"
	"auctioneer/internal/auction/ports"
	"auctioneer/pkg/platform/circuit"
)

const (
	PassName = "outbox_relay"

	defaultBatchSize   = 100
	defaultMaxAttempts = 10
)

var errBreakerOpen = errors.New("notifier circuit breaker is open")

type Relay struct {
	outbox      ports.OutboxStore
	notifier    ports.Notifier
	breaker     *circuit.Breaker
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time
	batchSize   int
	maxAttempts int
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(r *Relay) {
		r.breaker = b
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithMaxAttempts bounds redelivery; an entry that has failed this many times
// is marked processed and counted as abandoned.
func WithMaxAttempts(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Relay) {
		r.now = now
	}
}

func NewRelay(outbox ports.OutboxStore, notifier ports.Notifier, opts ...Option) (*Relay, error) {
	if outbox == nil {
		return nil, errors.New("outbox store is required")
	}
	if notifier == nil {
		return nil, errors.New("notifier is required")
	}
	r := &Relay{
		outbox:      outbox,
		notifier:    notifier,
		logger:      slog.Default(),
		now:         time.Now,
		batchSize:   defaultBatchSize,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.breaker == nil {
		r.breaker = circuit.New("notifier")
	}
	return r, nil
}

// Pass delivers one batch. It stops early when the breaker opens so a dead
// downstream is not hammered once per entry.
func (r *Relay) Pass(ctx context.Context) error {
	entries, err := r.outbox.FetchPending(ctx, r.batchSize)
	if err != nil {
		return fmt.Errorf("fetch outbox: %w", err)
	}

	for i, entry := range entries {
		if ctx.Err() != nil {
			return nil
		}
		err := r.deliver(ctx, entry)
		if errors.Is(err, errBreakerOpen) {
			r.logger.DebugContext(ctx, "notifier unavailable, deferring outbox batch",
				"breaker", r.breaker.Name(),
				"deferred", len(entries)-i,
			)
			return nil
		}
		if err != nil {
			r.logger.WarnContext(ctx, "outbox delivery failed",
				"entry_id", entry.ID,
				"event_type", entry.EventType,
				"attempts", entry.Attempts+1,
				"error", err,
			)
		}
	}
	return nil
}

func (r *Relay) deliver(ctx context.Context, entry *models.OutboxEntry) error {
	if entry.Attempts >= r.maxAttempts {
		r.metrics.IncrementNotificationAbandoned()
		r.logger.ErrorContext(ctx, "abandoning outbox entry after repeated failures",
			"entry_id", entry.ID,
			"event_type", entry.EventType,
			"attempts", entry.Attempts,
		)
		return r.outbox.MarkProcessed(ctx, entry.ID, r.now())
	}

	if entry.EventType != models.EventOutbid {
		// nothing consumes it; drop rather than retry forever
		r.logger.WarnContext(ctx, "skipping unknown outbox event", "entry_id", entry.ID, "event_type", entry.EventType)
		return r.outbox.MarkProcessed(ctx, entry.ID, r.now())
	}

	notice, err := entry.DecodeOutbid()
	if err != nil {
		r.logger.ErrorContext(ctx, "dropping undecodable outbox entry", "entry_id", entry.ID, "error", err)
		return r.outbox.MarkProcessed(ctx, entry.ID, r.now())
	}

	if !r.breaker.Allow() {
		return errBreakerOpen
	}
	if err := r.notifier.SendOutbid(ctx, notice); err != nil {
		r.metrics.IncrementNotificationFailure()
		if _, change := r.breaker.RecordFailure(); change.Opened {
			r.metrics.SetNotifierBreakerOpen(true)
			r.logger.WarnContext(ctx, "notifier circuit breaker opened", "breaker", r.breaker.Name())
		}
		if markErr := r.outbox.MarkFailedAttempt(ctx, entry.ID); markErr != nil {
			return errors.Join(err, markErr)
		}
		return err
	}

	if _, change := r.breaker.RecordSuccess(); change.Closed {
		r.metrics.SetNotifierBreakerOpen(false)
		r.logger.InfoContext(ctx, "notifier circuit breaker closed", "breaker", r.breaker.Name())
	}
	r.metrics.IncrementNotificationDelivered()
	if err := r.outbox.MarkProcessed(ctx, entry.ID, r.now()); err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	return nil
}
