package payment

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"auctioneer/internal/auction/models"
	"auctioneer/internal/auction/ports"
	"auctioneer/internal/auction/settlement"
	id "auctioneer/pkg/domain"
)

// PassConfig is fixed for the duration of one sweep.
type PassConfig struct {
	Now              time.Time
	PendingThreshold time.Duration
	EntityTimeout    time.Duration
}

type SweepReport struct {
	Scanned  int
	Expired  int
	Cascaded int
	Failed   int
	Reopened int
	Errors   int
}

// Pass adapts RunPass to the scheduler. The pending threshold is re-read on
// every pass so operators can change it without a restart.
func (s *Service) Pass(ctx context.Context) error {
	_, err := s.RunPass(ctx, s.passConfig(ctx))
	return err
}

func (s *Service) passConfig(ctx context.Context) PassConfig {
	threshold := s.config.PendingThreshold
	if s.settings != nil {
		seconds := s.settings.GetNumeric(ctx, models.SettingPendingThresholdSeconds, threshold.Seconds())
		if seconds > 0 {
			threshold = time.Duration(seconds * float64(time.Second))
		}
	}
	return PassConfig{Now: s.clock().UTC(), PendingThreshold: threshold}
}

// RunPass fails every PENDING payment created more than PendingThreshold ago
// and lets settlement decide what happens to its auction.
func (s *Service) RunPass(ctx context.Context, cfg PassConfig) (SweepReport, error) {
	ctx, span := s.tracer.Start(ctx, "payment.RunPass")
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.ObservePassDuration(PassName, time.Since(start)) }()

	if cfg.EntityTimeout <= 0 {
		cfg.EntityTimeout = defaultEntityTimeout
	}
	if cfg.PendingThreshold <= 0 {
		cfg.PendingThreshold = s.config.PendingThreshold
	}

	pending, err := s.stores.Payments.FindPendingPayments(ctx)
	if err != nil {
		return SweepReport{}, fmt.Errorf("list pending payments: %w", err)
	}
	cutoff := cfg.Now.Add(-cfg.PendingThreshold)

	report := SweepReport{Scanned: len(pending)}
	for i, p := range pending {
		if ctx.Err() != nil {
			s.logger.InfoContext(ctx, "payment sweep interrupted", "unvisited", len(pending)-i)
			break
		}
		// expire only once strictly older than the threshold
		if !p.CreatedAt.Before(cutoff) {
			continue
		}
		outcome, err := s.expire(ctx, p.AuctionID, p.ID, cutoff, cfg)
		if err != nil {
			report.Errors++
			s.metrics.IncrementPassEntityFailure(PassName)
			s.logger.ErrorContext(ctx, "failed to expire payment",
				"payment_id", p.ID,
				"auction_id", p.AuctionID,
				"error", err,
			)
			continue
		}
		if outcome == "" {
			continue
		}
		report.Expired++
		switch outcome {
		case settlement.OutcomeAwarded:
			report.Cascaded++
		case settlement.OutcomeFailed:
			report.Failed++
		case settlement.OutcomeReopened:
			report.Reopened++
		}
		s.metrics.IncrementPassOutcome(PassName, string(outcome))
	}

	span.SetAttributes(
		attribute.Int("payments.scanned", report.Scanned),
		attribute.Int("payments.expired", report.Expired),
		attribute.Int("payments.errors", report.Errors),
	)
	if report.Expired+report.Errors > 0 {
		s.logger.InfoContext(ctx, "payment sweep complete",
			"scanned", report.Scanned,
			"expired", report.Expired,
			"cascaded", report.Cascaded,
			"failed", report.Failed,
			"reopened", report.Reopened,
			"errors", report.Errors,
		)
	}
	return report, nil
}

func (s *Service) expire(ctx context.Context, auctionID id.AuctionID, paymentID id.PaymentID, cutoff time.Time, cfg PassConfig) (settlement.Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.EntityTimeout)
	defer cancel()

	var outcome settlement.Outcome
	err := s.tx.RunInTx(ctx, auctionID, func(ctx context.Context, tx ports.Stores) error {
		outcome = ""
		a, err := tx.Auctions.FindByIDForUpdate(ctx, auctionID)
		if err != nil {
			return err
		}
		p, err := tx.Payments.FindByID(ctx, paymentID)
		if err != nil {
			return err
		}
		// completed, started or already expired by another replica
		if p.Status != models.PaymentPending || !p.CreatedAt.Before(cutoff) {
			return nil
		}
		res, err := settlement.FailPayment(ctx, tx, a, p, cfg.Now)
		if err != nil {
			return err
		}
		outcome = res.Outcome
		return nil
	})
	if err != nil {
		return "", err
	}
	if outcome != "" {
		s.logger.InfoContext(ctx, "pending payment expired",
			"payment_id", paymentID,
			"auction_id", auctionID,
			"outcome", outcome,
		)
	}
	return outcome, nil
}
