package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "auctioneer/pkg/domain"
)

// Bid is an immutable record of one bidder's ceiling. CurrentBid snapshots
// the auction's settlement price right after the bid was applied.
type Bid struct {
	ID         id.BidID
	AuctionID  id.AuctionID
	DomainID   id.DomainID
	BidderID   id.UserID
	Amount     decimal.Decimal
	CurrentBid decimal.Decimal
	CreatedAt  time.Time
}
