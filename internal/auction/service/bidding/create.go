package bidding

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"auctioneer/internal/auction/models"
	"auctioneer/internal/auction/ports"
	id "auctioneer/pkg/domain"
	dErrors "auctioneer/pkg/domain-errors"
	"auctioneer/pkg/requestcontext"
)

type CreateAuctionCommand struct {
	DomainID       id.DomainID
	StartTime      time.Time
	EndTime        time.Time
	MinPrice       decimal.Decimal
	MinIncrement   decimal.Decimal
	ReservePrice   decimal.Decimal
	LeasePrice     decimal.Decimal
	ExpiryDuration int
}

func (c CreateAuctionCommand) Validate(now time.Time) error {
	if c.DomainID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "domain id is required")
	}
	if !c.StartTime.After(now) {
		return dErrors.New(dErrors.CodeInvalidInput, "start time must be in the future")
	}
	if !c.EndTime.After(c.StartTime) {
		return dErrors.New(dErrors.CodeInvalidInput, "end time must be after start time")
	}
	if !c.MinPrice.IsPositive() {
		return dErrors.New(dErrors.CodeInvalidInput, "minimum price must be positive")
	}
	if !c.MinIncrement.IsPositive() {
		return dErrors.New(dErrors.CodeInvalidInput, "minimum increment must be positive")
	}
	if c.ReservePrice.LessThan(c.MinPrice) {
		return dErrors.New(dErrors.CodeInvalidInput, "reserve price cannot be below the minimum price")
	}
	if c.LeasePrice.IsNegative() {
		return dErrors.New(dErrors.CodeInvalidInput, "lease price cannot be negative")
	}
	if c.ExpiryDuration < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "expiry duration cannot be negative")
	}
	for _, v := range []decimal.Decimal{c.MinPrice, c.MinIncrement, c.ReservePrice, c.LeasePrice} {
		if !v.Equal(v.Round(2)) {
			return dErrors.New(dErrors.CodeInvalidInput, "amounts allow at most two decimal places")
		}
	}
	return nil
}

// CreateAuction schedules a DRAFT auction for a listed domain. The scheduler
// activates it at StartTime.
func (s *Service) CreateAuction(ctx context.Context, cmd CreateAuctionCommand) (*models.Auction, error) {
	now := requestcontext.Now(ctx)
	if err := cmd.Validate(now); err != nil {
		return nil, err
	}
	expiry := cmd.ExpiryDuration
	if expiry == 0 {
		expiry = defaultExpiryDays
	}

	auction := &models.Auction{
		ID:             id.NewAuctionID(),
		DomainID:       cmd.DomainID,
		Status:         models.AuctionDraft,
		StartTime:      cmd.StartTime.UTC(),
		EndTime:        cmd.EndTime.UTC(),
		MinPrice:       cmd.MinPrice,
		MinIncrement:   cmd.MinIncrement,
		ReservePrice:   cmd.ReservePrice,
		LeasePrice:     cmd.LeasePrice,
		ExpiryDuration: expiry,
		CurrentBid:     cmd.MinPrice,
		HighestBid:     cmd.MinPrice,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.withRetry(ctx, "create_auction", func() error {
		return s.tx.RunInTx(ctx, auction.ID, func(ctx context.Context, tx ports.Stores) error {
			domain, err := tx.Domains.FindByIDForUpdate(ctx, cmd.DomainID)
			if err != nil {
				return translate(err, "domain not found")
			}
			if domain.Status != models.DomainListed {
				return dErrors.New(dErrors.CodeInvalidState, "domain is not available for auction")
			}
			if err := tx.Auctions.Create(ctx, auction); err != nil {
				return translate(err, "auction not found")
			}
			domain.Status = models.DomainAuctionPending
			domain.CurrentHighestBid = nil
			domain.UpdatedAt = now
			return translate(tx.Domains.Update(ctx, domain), "domain not found")
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "auction created",
		"auction_id", auction.ID,
		"domain_id", auction.DomainID,
		"start_time", auction.StartTime,
		"end_time", auction.EndTime,
	)
	return auction, nil
}

// GetAuction returns committed auction state.
func (s *Service) GetAuction(ctx context.Context, auctionID id.AuctionID) (*models.Auction, error) {
	a, err := s.stores.Auctions.FindByID(ctx, auctionID)
	if err != nil {
		return nil, translate(err, "auction not found")
	}
	return a, nil
}
