package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "auctioneer/pkg/domain"
)

type DomainStatus string

const (
	DomainListed           DomainStatus = "LISTED"
	DomainAuctionPending   DomainStatus = "AUCTION_PENDING"
	DomainAuctionActive    DomainStatus = "AUCTION_ACTIVE"
	DomainBidReceived      DomainStatus = "BID_RECEIVED"
	DomainAuctionEnded     DomainStatus = "AUCTION_ENDED"
	DomainLeasePending     DomainStatus = "LEASE_PENDING"
	DomainOfferPending     DomainStatus = "OFFER_PENDING"
	DomainPaymentCompleted DomainStatus = "PAYMENT_COMPLETED"
)

// Domain is the marketplace listing projection the auction keeps in sync.
type Domain struct {
	ID                id.DomainID
	Name              string
	Status            DomainStatus
	CurrentHighestBid *decimal.Decimal
	CurrentOwner      *id.UserID
	RegistrationDate  *time.Time
	RenewalPrice      *decimal.Decimal
	ExpiryDate        *time.Time
	UpdatedAt         time.Time
}

// Relist returns the domain to the marketplace after a failed auction.
func (d *Domain) Relist(now time.Time) {
	d.Status = DomainListed
	d.CurrentHighestBid = nil
	d.UpdatedAt = now
}

// Transfer records a completed sale to owner.
func (d *Domain) Transfer(owner id.UserID, price decimal.Decimal, expiryDays int, now time.Time) {
	registered := now
	expires := now.AddDate(0, 0, expiryDays)
	d.Status = DomainPaymentCompleted
	d.CurrentOwner = &owner
	d.RegistrationDate = &registered
	d.RenewalPrice = &price
	d.ExpiryDate = &expires
	d.UpdatedAt = now
}

// Clone returns a copy that shares no pointers with d.
func (d *Domain) Clone() *Domain {
	if d == nil {
		return nil
	}
	c := *d
	if d.CurrentHighestBid != nil {
		v := *d.CurrentHighestBid
		c.CurrentHighestBid = &v
	}
	if d.CurrentOwner != nil {
		v := *d.CurrentOwner
		c.CurrentOwner = &v
	}
	if d.RegistrationDate != nil {
		v := *d.RegistrationDate
		c.RegistrationDate = &v
	}
	if d.RenewalPrice != nil {
		v := *d.RenewalPrice
		c.RenewalPrice = &v
	}
	if d.ExpiryDate != nil {
		v := *d.ExpiryDate
		c.ExpiryDate = &v
	}
	return &c
}
