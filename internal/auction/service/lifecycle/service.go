// Package lifecycle drives auctions across their wall-clock boundaries:
// DRAFT auctions open at start time, and ACTIVE auctions or ones held by an
// unanswered offer close and resolve at end time. A pass scans every auction needing attention and handles each in
// its own transaction, so one bad record never stops the batch.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"auctioneer/internal/auction/metrics"
	"auctioneer/internal/auction/models"
	"auctioneer/internal/auction/ports"
	"auctioneer/internal/auction/settlement"
	id "auctioneer/pkg/domain"
	"auctioneer/pkg/platform/sentinel"
)

const (
	PassName             = "auction_scheduler"
	defaultEntityTimeout = 5 * time.Second
	outcomeActivated     = "activated"
)

// watchedStatuses are the states that can change purely with time.
var watchedStatuses = []models.AuctionStatus{
	models.AuctionDraft,
	models.AuctionActive,
	models.AuctionOfferPending,
	models.AuctionPaymentProcessing,
}

// PassConfig is fixed for the duration of one pass.
type PassConfig struct {
	Now           time.Time
	EntityTimeout time.Duration
}

// PassReport summarizes what one pass did.
type PassReport struct {
	Scanned   int
	Activated int
	Awarded   int
	Failed    int
	Errors    int
}

type Service struct {
	auctions ports.AuctionStore
	tx       ports.Tx
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
	clock    func() time.Time
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

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

func New(auctions ports.AuctionStore, tx ports.Tx, opts ...Option) (*Service, error) {
	if auctions == nil {
		return nil, errors.New("auction store is required")
	}
	if tx == nil {
		return nil, errors.New("transaction runner is required")
	}
	svc := &Service{
		auctions: auctions,
		tx:       tx,
		logger:   slog.Default(),
		tracer:   otel.Tracer("auctioneer/lifecycle"),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Pass adapts RunPass to the scheduler, snapshotting the clock once.
func (s *Service) Pass(ctx context.Context) error {
	_, err := s.RunPass(ctx, PassConfig{Now: s.clock().UTC()})
	return err
}

// RunPass processes every auction whose status may change with time. Only a
// failure to list auctions is returned; per-auction errors are logged.
func (s *Service) RunPass(ctx context.Context, cfg PassConfig) (PassReport, error) {
	ctx, span := s.tracer.Start(ctx, "lifecycle.RunPass")
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.ObservePassDuration(PassName, time.Since(start)) }()

	if cfg.EntityTimeout <= 0 {
		cfg.EntityTimeout = defaultEntityTimeout
	}

	candidates, err := s.auctions.FindByStatusIn(ctx, watchedStatuses)
	if err != nil {
		return PassReport{}, fmt.Errorf("list auctions: %w", err)
	}

	report := PassReport{Scanned: len(candidates)}
	for i, a := range candidates {
		if ctx.Err() != nil {
			s.logger.InfoContext(ctx, "scheduler pass interrupted", "unvisited", len(candidates)-i)
			break
		}
		if !due(a, cfg.Now) {
			continue
		}
		outcome, err := s.processAuction(ctx, a.ID, cfg)
		if err != nil {
			report.Errors++
			s.metrics.IncrementPassEntityFailure(PassName)
			s.logger.ErrorContext(ctx, "failed to process auction",
				"auction_id", a.ID,
				"status", a.Status,
				"error", err,
			)
			continue
		}
		switch outcome {
		case outcomeActivated:
			report.Activated++
		case string(settlement.OutcomeAwarded):
			report.Awarded++
		case string(settlement.OutcomeFailed):
			report.Failed++
		}
		if outcome != "" {
			s.metrics.IncrementPassOutcome(PassName, outcome)
		}
	}

	span.SetAttributes(
		attribute.Int("auctions.scanned", report.Scanned),
		attribute.Int("auctions.activated", report.Activated),
		attribute.Int("auctions.errors", report.Errors),
	)
	if report.Activated+report.Awarded+report.Failed+report.Errors > 0 {
		s.logger.InfoContext(ctx, "scheduler pass complete",
			"scanned", report.Scanned,
			"activated", report.Activated,
			"awarded", report.Awarded,
			"failed", report.Failed,
			"errors", report.Errors,
		)
	}
	return report, nil
}

// due is the cheap pre-filter; processAuction re-checks under lock.
func due(a *models.Auction, now time.Time) bool {
	switch a.Status {
	case models.AuctionDraft:
		return !now.Before(a.StartTime)
	case models.AuctionActive, models.AuctionOfferPending:
		return !now.Before(a.EndTime)
	}
	// PAYMENT_PROCESSING waits on the checkout provider, not the clock
	return false
}

func (s *Service) processAuction(ctx context.Context, auctionID id.AuctionID, cfg PassConfig) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.EntityTimeout)
	defer cancel()

	var outcome string
	err := s.tx.RunInTx(ctx, auctionID, func(ctx context.Context, tx ports.Stores) error {
		outcome = ""
		a, err := tx.Auctions.FindByIDForUpdate(ctx, auctionID)
		if err != nil {
			return err
		}
		// another replica or request may have moved it since the scan
		if !due(a, cfg.Now) {
			return nil
		}

		switch a.Status {
		case models.AuctionDraft:
			if err := activate(ctx, tx, a, cfg.Now); err != nil {
				return err
			}
			outcome = outcomeActivated
			return nil

		case models.AuctionActive:
			if err := settlement.End(ctx, tx, a, cfg.Now); err != nil {
				return err
			}
			res, err := settlement.ResolveEnded(ctx, tx, a, cfg.Now)
			if err != nil {
				return err
			}
			outcome = string(res.Outcome)
			return nil

		case models.AuctionOfferPending:
			res, err := expireOffer(ctx, tx, a, cfg.Now)
			if err != nil {
				return err
			}
			outcome = string(res.Outcome)
			return nil
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if outcome != "" {
		s.logger.InfoContext(ctx, "auction transitioned", "auction_id", auctionID, "outcome", outcome)
	}
	return outcome, nil
}

// expireOffer closes an auction whose window ran out while an offer was still
// unanswered. An accepted offer has an open payment and is left to the sweep.
func expireOffer(ctx context.Context, tx ports.Stores, a *models.Auction, now time.Time) (settlement.Result, error) {
	_, err := tx.Payments.FindActiveByAuction(ctx, a.ID)
	switch {
	case err == nil:
		return settlement.Result{}, nil
	case !errors.Is(err, sentinel.ErrNotFound):
		return settlement.Result{}, fmt.Errorf("load open payment: %w", err)
	}

	offer, err := tx.Offers.FindPendingByAuction(ctx, a.ID)
	switch {
	case err == nil:
		if err := tx.Offers.UpdateStatus(ctx, offer.ID, models.OfferRejected, now); err != nil {
			return settlement.Result{}, fmt.Errorf("expire offer: %w", err)
		}
	case !errors.Is(err, sentinel.ErrNotFound):
		return settlement.Result{}, fmt.Errorf("load pending offer: %w", err)
	}

	if err := settlement.End(ctx, tx, a, now); err != nil {
		return settlement.Result{}, err
	}
	return settlement.ResolveEnded(ctx, tx, a, now)
}

func activate(ctx context.Context, tx ports.Stores, a *models.Auction, now time.Time) error {
	if !a.Transition(models.AuctionActive, now) {
		return fmt.Errorf("activate auction %s from %s", a.ID, a.Status)
	}
	if err := tx.Auctions.Update(ctx, a); err != nil {
		return fmt.Errorf("activate auction: %w", err)
	}
	d, err := tx.Domains.FindByID(ctx, a.DomainID)
	if err != nil {
		return fmt.Errorf("load domain: %w", err)
	}
	if d.Status != models.DomainAuctionPending {
		return nil
	}
	d.Status = models.DomainAuctionActive
	d.UpdatedAt = now
	if err := tx.Domains.Update(ctx, d); err != nil {
		return fmt.Errorf("update domain: %w", err)
	}
	return nil
}
