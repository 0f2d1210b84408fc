// Package settlement holds the rules for turning an ended auction into a sale
// and for recovering when a buyer's payment fails. Every function runs inside
// the caller's transaction and mutates only through the supplied stores.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"auctioneer/internal/auction/models"
	"auctioneer/internal/auction/ports"
	id "auctioneer/pkg/domain"
	"auctioneer/pkg/platform/sentinel"
)

type Outcome string

const (
	// OutcomeAwarded: a PENDING payment was created for a bidder.
	OutcomeAwarded Outcome = "awarded"
	// OutcomeFailed: no bidder qualified; auction FAILED, domain relisted.
	OutcomeFailed Outcome = "failed"
	// OutcomeReopened: a lease or offer fell through before end time.
	OutcomeReopened Outcome = "reopened"
)

type Result struct {
	Outcome Outcome
	Payment *models.Payment
}

// SalePrice is what a bidder with the given ceiling pays: the settlement
// price, lifted to reserve if needed, never above the ceiling.
func SalePrice(a *models.Auction, ceiling decimal.Decimal) decimal.Decimal {
	return decimal.Min(ceiling, decimal.Max(a.CurrentBid, a.ReservePrice))
}

// ResolveEnded awards an ENDED auction to its top bidder or fails it when no
// bid reaches reserve.
func ResolveEnded(ctx context.Context, tx ports.Stores, a *models.Auction, now time.Time) (Result, error) {
	if a.Status != models.AuctionEnded {
		return Result{}, fmt.Errorf("resolve auction %s in status %s: %w", a.ID, a.Status, sentinel.ErrInvalidState)
	}

	top, err := tx.Bids.FindHighestBid(ctx, a.ID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return failAuction(ctx, tx, a, now)
	}
	if err != nil {
		return Result{}, err
	}
	if top.Amount.LessThan(a.ReservePrice) {
		return failAuction(ctx, tx, a, now)
	}
	return award(ctx, tx, a, top, now)
}

// FailPayment marks p FAILED and moves the auction on: a sale cascades to the
// next qualifying bidder, a lease or offer reopens bidding (or resolves the
// auction if its window has closed).
func FailPayment(ctx context.Context, tx ports.Stores, a *models.Auction, p *models.Payment, now time.Time) (Result, error) {
	if !p.IsOpen() {
		return Result{}, fmt.Errorf("fail payment %s in status %s: %w", p.ID, p.Status, sentinel.ErrInvalidState)
	}
	if err := tx.Payments.UpdateStatus(ctx, p.ID, models.PaymentFailed, now); err != nil {
		return Result{}, fmt.Errorf("fail payment %s: %w", p.ID, err)
	}
	p.Status = models.PaymentFailed
	p.UpdatedAt = now

	if a.Status == models.AuctionPaymentProcessing {
		if err := transition(a, models.AuctionPaymentFailed, now); err != nil {
			return Result{}, err
		}
	}

	if p.Kind == models.PaymentSale {
		return cascade(ctx, tx, a, p, now)
	}
	return Reopen(ctx, tx, a, now)
}

func cascade(ctx context.Context, tx ports.Stores, a *models.Auction, failed *models.Payment, now time.Time) (Result, error) {
	below := failed.Amount
	if failed.BidID != nil {
		bid, err := tx.Bids.FindByID(ctx, *failed.BidID)
		if err != nil {
			return Result{}, fmt.Errorf("load failed bid: %w", err)
		}
		below = bid.Amount
	}

	history, err := tx.Payments.ListByAuction(ctx, a.ID)
	if err != nil {
		return Result{}, fmt.Errorf("load payment history: %w", err)
	}
	excluded := []id.UserID{failed.BidderID}
	for _, p := range history {
		if p.Status == models.PaymentFailed {
			excluded = append(excluded, p.BidderID)
		}
	}

	next, err := tx.Bids.FindNextHighestBid(ctx, a.ID, below, excluded)
	if errors.Is(err, sentinel.ErrNotFound) {
		return failAuction(ctx, tx, a, now)
	}
	if err != nil {
		return Result{}, err
	}
	if next.Amount.LessThan(a.ReservePrice) {
		return failAuction(ctx, tx, a, now)
	}
	return award(ctx, tx, a, next, now)
}

// Reopen returns a lease- or offer-held auction to bidding while its window is
// open; past end time it ends and resolves the auction instead.
func Reopen(ctx context.Context, tx ports.Stores, a *models.Auction, now time.Time) (Result, error) {
	if now.Before(a.EndTime) {
		if err := transition(a, models.AuctionActive, now); err != nil {
			return Result{}, err
		}
		if err := tx.Auctions.Update(ctx, a); err != nil {
			return Result{}, fmt.Errorf("reopen auction: %w", err)
		}
		bids, err := tx.Bids.CountByAuction(ctx, a.ID)
		if err != nil {
			return Result{}, err
		}
		status := models.DomainAuctionActive
		if bids > 0 {
			status = models.DomainBidReceived
		}
		if err := MutateDomain(ctx, tx, a.DomainID, func(d *models.Domain) {
			d.Status = status
			d.UpdatedAt = now
		}); err != nil {
			return Result{}, err
		}
		return Result{Outcome: OutcomeReopened}, nil
	}

	if err := End(ctx, tx, a, now); err != nil {
		return Result{}, err
	}
	return ResolveEnded(ctx, tx, a, now)
}

// End closes bidding on a and marks its domain AUCTION_ENDED. The auction is
// persisted in ENDED; callers follow with ResolveEnded.
func End(ctx context.Context, tx ports.Stores, a *models.Auction, now time.Time) error {
	if err := transition(a, models.AuctionEnded, now); err != nil {
		return err
	}
	if err := tx.Auctions.Update(ctx, a); err != nil {
		return fmt.Errorf("end auction: %w", err)
	}
	return MutateDomain(ctx, tx, a.DomainID, func(d *models.Domain) {
		d.Status = models.DomainAuctionEnded
		d.UpdatedAt = now
	})
}

func award(ctx context.Context, tx ports.Stores, a *models.Auction, bid *models.Bid, now time.Time) (Result, error) {
	bidID := bid.ID
	payment := &models.Payment{
		ID:        id.NewPaymentID(),
		AuctionID: a.ID,
		BidID:     &bidID,
		BidderID:  bid.BidderID,
		Amount:    SalePrice(a, bid.Amount),
		Kind:      models.PaymentSale,
		Status:    models.PaymentPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.Payments.Create(ctx, payment); err != nil {
		return Result{}, fmt.Errorf("create payment: %w", err)
	}

	if err := transition(a, models.AuctionPaymentPending, now); err != nil {
		return Result{}, err
	}
	winner := bid.BidderID
	a.CurrentWinner = &winner
	a.WinningBidID = &bidID
	if err := tx.Auctions.Update(ctx, a); err != nil {
		return Result{}, fmt.Errorf("award auction: %w", err)
	}
	return Result{Outcome: OutcomeAwarded, Payment: payment}, nil
}

func failAuction(ctx context.Context, tx ports.Stores, a *models.Auction, now time.Time) (Result, error) {
	if err := transition(a, models.AuctionFailed, now); err != nil {
		return Result{}, err
	}
	if err := tx.Auctions.Update(ctx, a); err != nil {
		return Result{}, fmt.Errorf("fail auction: %w", err)
	}
	if err := MutateDomain(ctx, tx, a.DomainID, func(d *models.Domain) {
		d.Relist(now)
	}); err != nil {
		return Result{}, err
	}
	return Result{Outcome: OutcomeFailed}, nil
}

func transition(a *models.Auction, next models.AuctionStatus, now time.Time) error {
	if !a.Transition(next, now) {
		return fmt.Errorf("auction %s: %s -> %s: %w", a.ID, a.Status, next, sentinel.ErrInvalidState)
	}
	return nil
}

// MutateDomain loads a domain, applies mutate and writes it back.
func MutateDomain(ctx context.Context, tx ports.Stores, domainID id.DomainID, mutate func(*models.Domain)) error {
	d, err := tx.Domains.FindByID(ctx, domainID)
	if err != nil {
		return fmt.Errorf("load domain: %w", err)
	}
	mutate(d)
	if err := tx.Domains.Update(ctx, d); err != nil {
		return fmt.Errorf("update domain: %w", err)
	}
	return nil
}
