package bidding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"auctioneer/internal/auction/models"
	"auctioneer/internal/auction/ports"
	"auctioneer/internal/auction/pricing"
	id "auctioneer/pkg/domain"
	dErrors "auctioneer/pkg/domain-errors"
	"auctioneer/pkg/requestcontext"
)

type PlaceBidCommand struct {
	AuctionID id.AuctionID
	BidderID  id.UserID
	Amount    decimal.Decimal
}

func (c PlaceBidCommand) Validate() error {
	if c.AuctionID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "auction id is required")
	}
	if c.BidderID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "bidder id is required")
	}
	return nil
}

// BidResult is what the bidder may see. The winner's ceiling is only
// returned to the winner.
type BidResult struct {
	Bid        *models.Bid
	CurrentBid decimal.Decimal
	Winning    bool
	ReserveMet bool
}

// PlaceBid admits one bid. Validation failures leave the auction untouched.
func (s *Service) PlaceBid(ctx context.Context, cmd PlaceBidCommand) (*BidResult, error) {
	ctx, span := s.tracer.Start(ctx, "bidding.PlaceBid")
	defer span.End()
	span.SetAttributes(attribute.String("auction.id", cmd.AuctionID.String()))

	start := time.Now()
	defer func() { s.metrics.ObserveAdmissionLatency(time.Since(start)) }()

	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var result *BidResult
	err := s.withRetry(ctx, "place_bid", func() error {
		var err error
		result, err = s.admit(ctx, cmd)
		return err
	})
	if err != nil {
		code := dErrors.CodeOf(err)
		s.metrics.IncrementBidRejected(string(code))
		span.SetStatus(codes.Error, string(code))
		if code == dErrors.CodeInternal {
			s.logger.ErrorContext(ctx, "bid admission failed",
				"auction_id", cmd.AuctionID,
				"bidder_id", cmd.BidderID,
				"error", err,
			)
		}
		return nil, err
	}

	s.metrics.IncrementBidAccepted()
	s.logger.InfoContext(ctx, "bid accepted",
		"auction_id", cmd.AuctionID,
		"bid_id", result.Bid.ID,
		"winning", result.Winning,
	)
	return result, nil
}

func (s *Service) admit(ctx context.Context, cmd PlaceBidCommand) (*BidResult, error) {
	now := requestcontext.Now(ctx)
	var result *BidResult

	err := s.tx.RunInTx(ctx, cmd.AuctionID, func(ctx context.Context, tx ports.Stores) error {
		a, err := tx.Auctions.FindByIDForUpdate(ctx, cmd.AuctionID)
		if err != nil {
			return translate(err, "auction not found")
		}
		if err := checkOpen(a, now); err != nil {
			return err
		}

		count, err := tx.Bids.CountByAuction(ctx, a.ID)
		if err != nil {
			return translate(err, "auction not found")
		}
		snapshot := pricing.Snapshot{
			CurrentBid:   a.CurrentBid,
			HighestBid:   a.HighestBid,
			MinPrice:     a.MinPrice,
			MinIncrement: a.MinIncrement,
			ReservePrice: a.ReservePrice,
			Winner:       a.CurrentWinner,
			BidCount:     count,
		}
		out, err := pricing.Apply(snapshot, cmd.BidderID, cmd.Amount)
		if err != nil {
			return rejection(err, pricing.MinimumNextBid(snapshot, cmd.BidderID))
		}

		bid := &models.Bid{
			ID:         id.NewBidID(),
			AuctionID:  a.ID,
			DomainID:   a.DomainID,
			BidderID:   cmd.BidderID,
			Amount:     cmd.Amount,
			CurrentBid: out.CurrentBid,
			CreatedAt:  now,
		}
		if err := tx.Bids.Create(ctx, bid); err != nil {
			return translate(err, "auction not found")
		}

		a.CurrentBid = out.CurrentBid
		a.HighestBid = out.HighestBid
		winner := out.Winner
		a.CurrentWinner = &winner
		if out.Winner == cmd.BidderID {
			bidID := bid.ID
			a.WinningBidID = &bidID
		}
		a.UpdatedAt = now
		if err := tx.Auctions.Update(ctx, a); err != nil {
			return translate(err, "auction not found")
		}

		domain, err := tx.Domains.FindByID(ctx, a.DomainID)
		if err != nil {
			return translate(err, "domain not found")
		}
		price := out.CurrentBid
		domain.Status = models.DomainBidReceived
		domain.CurrentHighestBid = &price
		domain.UpdatedAt = now
		if err := tx.Domains.Update(ctx, domain); err != nil {
			return translate(err, "domain not found")
		}

		if out.PreviousWinner != nil && tx.Outbox != nil {
			entry, err := models.NewOutbidEntry(models.OutbidNotice{
				AuctionID:     a.ID,
				DomainID:      domain.ID,
				DomainName:    domain.Name,
				PreviousOwner: *out.PreviousWinner,
				NewCurrentBid: out.CurrentBid,
				OccurredAt:    now,
			})
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode outbid notice")
			}
			if err := tx.Outbox.Append(ctx, entry); err != nil {
				return translate(err, "auction not found")
			}
		}

		result = &BidResult{
			Bid:        bid,
			CurrentBid: out.CurrentBid,
			Winning:    out.Winner == cmd.BidderID,
			ReserveMet: out.ReserveMet(a.ReservePrice),
		}
		return nil
	})
	return result, translate(err, "auction not found")
}

// checkOpen rejects bids outside ACTIVE or outside the bidding window. The
// window check covers the gap before the scheduler's next pass.
func checkOpen(a *models.Auction, now time.Time) error {
	switch {
	case a.Status == models.AuctionDraft || (a.Status == models.AuctionActive && now.Before(a.StartTime)):
		return dErrors.New(dErrors.CodeInvalidState, "auction has not started")
	case a.Status == models.AuctionActive && !now.Before(a.EndTime):
		return dErrors.New(dErrors.CodeInvalidState, "auction has ended")
	case a.Status != models.AuctionActive:
		return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("auction is %s", a.Status))
	}
	return nil
}

func rejection(err error, minimum decimal.Decimal) error {
	switch {
	case errors.Is(err, pricing.ErrInvalidAmount):
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, err.Error())
	case errors.Is(err, pricing.ErrBelowMinPrice),
		errors.Is(err, pricing.ErrIncrementTooSmall),
		errors.Is(err, pricing.ErrBelowOwnCeiling):
		return dErrors.Wrap(err, dErrors.CodeBidTooLow, fmt.Sprintf("bid must be at least %s", minimum.StringFixed(2)))
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to price bid")
	}
}
