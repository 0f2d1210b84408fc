package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "auctioneer/pkg/domain"
)

type OfferStatus string

const (
	OfferPending  OfferStatus = "PENDING"
	OfferAccepted OfferStatus = "ACCEPTED"
	OfferRejected OfferStatus = "REJECTED"
)

// Offer is a direct purchase proposal made before the first bid.
type Offer struct {
	ID        id.OfferID
	AuctionID id.AuctionID
	BidderID  id.UserID
	Amount    decimal.Decimal
	Status    OfferStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}
