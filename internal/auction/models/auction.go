package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "auctioneer/pkg/domain"
)

type AuctionStatus string

const (
	AuctionDraft             AuctionStatus = "DRAFT"
	AuctionActive            AuctionStatus = "ACTIVE"
	AuctionEnded             AuctionStatus = "ENDED"
	AuctionPaymentPending    AuctionStatus = "PAYMENT_PENDING"
	AuctionPaymentProcessing AuctionStatus = "PAYMENT_PROCESSING"
	AuctionPaymentCompleted  AuctionStatus = "PAYMENT_COMPLETED"
	AuctionPaymentFailed     AuctionStatus = "PAYMENT_FAILED"
	AuctionFailed            AuctionStatus = "FAILED"
	AuctionLeasePending      AuctionStatus = "LEASE_PENDING"
	AuctionOfferPending      AuctionStatus = "OFFER_PENDING"
)

// auctionTransitions is the complete lifecycle graph. Anything not listed is
// rejected by CanTransitionTo.
var auctionTransitions = map[AuctionStatus][]AuctionStatus{
	AuctionDraft:  {AuctionActive},
	AuctionActive: {AuctionEnded, AuctionLeasePending, AuctionOfferPending},
	AuctionEnded:  {AuctionPaymentPending, AuctionFailed},
	// a stalled winner may be replaced by the next bidder, which keeps the
	// auction in PAYMENT_PENDING
	AuctionPaymentPending:    {AuctionPaymentPending, AuctionPaymentProcessing, AuctionFailed},
	AuctionPaymentProcessing: {AuctionPaymentCompleted, AuctionPaymentFailed},
	AuctionPaymentFailed:     {AuctionPaymentPending, AuctionFailed, AuctionActive, AuctionEnded},
	AuctionLeasePending:      {AuctionActive, AuctionEnded, AuctionPaymentProcessing},
	AuctionOfferPending:      {AuctionActive, AuctionEnded, AuctionPaymentProcessing},
}

func (s AuctionStatus) IsValid() bool {
	switch s {
	case AuctionDraft, AuctionActive, AuctionEnded, AuctionPaymentPending,
		AuctionPaymentProcessing, AuctionPaymentCompleted, AuctionPaymentFailed,
		AuctionFailed, AuctionLeasePending, AuctionOfferPending:
		return true
	}
	return false
}

func (s AuctionStatus) IsTerminal() bool {
	return s == AuctionPaymentCompleted || s == AuctionFailed
}

func (s AuctionStatus) CanTransitionTo(next AuctionStatus) bool {
	for _, allowed := range auctionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s AuctionStatus) String() string { return string(s) }

// Auction is the mutable aggregate the bidding engine serializes on.
// CurrentBid is the settlement price if the auction ended now; HighestBid is
// the leader's secret ceiling.
type Auction struct {
	ID             id.AuctionID
	DomainID       id.DomainID
	Status         AuctionStatus
	StartTime      time.Time
	EndTime        time.Time
	MinPrice       decimal.Decimal
	MinIncrement   decimal.Decimal
	ReservePrice   decimal.Decimal
	LeasePrice     decimal.Decimal
	ExpiryDuration int // days the registration runs after purchase
	CurrentBid     decimal.Decimal
	HighestBid     decimal.Decimal
	CurrentWinner  *id.UserID
	WinningBidID   *id.BidID
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Transition moves the auction to next or returns false if the edge is not
// in the lifecycle graph.
func (a *Auction) Transition(next AuctionStatus, now time.Time) bool {
	if !a.Status.CanTransitionTo(next) {
		return false
	}
	a.Status = next
	a.UpdatedAt = now
	return true
}

func (a *Auction) HasWinner() bool {
	return a.CurrentWinner != nil && !a.CurrentWinner.IsNil()
}

func (a *Auction) IsWinner(user id.UserID) bool {
	return a.HasWinner() && *a.CurrentWinner == user
}

// InWindow reports whether now falls within [StartTime, EndTime).
func (a *Auction) InWindow(now time.Time) bool {
	return !now.Before(a.StartTime) && now.Before(a.EndTime)
}

// Clone returns a copy that shares no pointers with a.
func (a *Auction) Clone() *Auction {
	if a == nil {
		return nil
	}
	c := *a
	if a.CurrentWinner != nil {
		w := *a.CurrentWinner
		c.CurrentWinner = &w
	}
	if a.WinningBidID != nil {
		b := *a.WinningBidID
		c.WinningBidID = &b
	}
	return &c
}
