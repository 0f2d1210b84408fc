package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "auctioneer/pkg/domain"
)

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "PENDING"
	PaymentProcessing PaymentStatus = "PROCESSING"
	PaymentPaid       PaymentStatus = "PAID"
	PaymentFailed     PaymentStatus = "FAILED"
)

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentPending, PaymentProcessing, PaymentPaid, PaymentFailed:
		return true
	}
	return false
}

// CanTransitionTo enforces PENDING -> PROCESSING -> PAID, with FAILED
// reachable from either open state.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch s {
	case PaymentPending:
		return next == PaymentProcessing || next == PaymentFailed
	case PaymentProcessing:
		return next == PaymentPaid || next == PaymentFailed
	}
	return false
}

// PaymentKind records what the buyer is paying for. It decides what a
// timeout does to the auction.
type PaymentKind string

const (
	PaymentSale  PaymentKind = "SALE"
	PaymentLease PaymentKind = "LEASE"
	PaymentOffer PaymentKind = "OFFER"
)

type Payment struct {
	ID          id.PaymentID
	AuctionID   id.AuctionID
	BidID       *id.BidID // nil for lease and offer payments
	BidderID    id.UserID
	Amount      decimal.Decimal
	Kind        PaymentKind
	Status      PaymentStatus
	CheckoutRef string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (p *Payment) IsOpen() bool {
	return p.Status == PaymentPending || p.Status == PaymentProcessing
}

// Clone returns a copy that shares no pointers with p.
func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	c := *p
	if p.BidID != nil {
		b := *p.BidID
		c.BidID = &b
	}
	return &c
}
