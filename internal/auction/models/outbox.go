package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	id "auctioneer/pkg/domain"
)

const EventOutbid = "auction.outbid"

// OutboxEntry is an event written in the same transaction as the state change
// that produced it, delivered later by the relay.
type OutboxEntry struct {
	ID          uuid.UUID
	AggregateID id.AuctionID
	EventType   string
	Payload     []byte
	Attempts    int
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// OutbidNotice tells a previous leader that someone took the lead.
type OutbidNotice struct {
	AuctionID     id.AuctionID    `json:"auction_id"`
	DomainID      id.DomainID     `json:"domain_id"`
	DomainName    string          `json:"domain_name"`
	PreviousOwner id.UserID       `json:"previous_winner"`
	NewCurrentBid decimal.Decimal `json:"current_bid"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

func NewOutbidEntry(notice OutbidNotice) (*OutboxEntry, error) {
	payload, err := json.Marshal(notice)
	if err != nil {
		return nil, err
	}
	return &OutboxEntry{
		ID:          uuid.New(),
		AggregateID: notice.AuctionID,
		EventType:   EventOutbid,
		Payload:     payload,
		CreatedAt:   notice.OccurredAt,
	}, nil
}

func (e *OutboxEntry) DecodeOutbid() (OutbidNotice, error) {
	var n OutbidNotice
	err := json.Unmarshal(e.Payload, &n)
	return n, err
}
