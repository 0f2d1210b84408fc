package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "auctioneer/pkg/domain-errors"
)

// Typed identifiers keep auction, bid, payment and user IDs from being mixed up
// at call sites. They are plain UUIDs underneath.
type (
	AuctionID uuid.UUID
	BidID     uuid.UUID
	PaymentID uuid.UUID
	DomainID  uuid.UUID
	UserID    uuid.UUID
	OfferID   uuid.UUID
)

func (id AuctionID) String() string { return uuid.UUID(id).String() }
func (id BidID) String() string     { return uuid.UUID(id).String() }
func (id PaymentID) String() string { return uuid.UUID(id).String() }
func (id DomainID) String() string  { return uuid.UUID(id).String() }
func (id UserID) String() string    { return uuid.UUID(id).String() }
func (id OfferID) String() string   { return uuid.UUID(id).String() }

func (id AuctionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id BidID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id PaymentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id DomainID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id OfferID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

// NewAuctionID and friends mint random (v4) identifiers.
func NewAuctionID() AuctionID { return AuctionID(uuid.New()) }
func NewBidID() BidID         { return BidID(uuid.New()) }
func NewPaymentID() PaymentID { return PaymentID(uuid.New()) }
func NewDomainID() DomainID   { return DomainID(uuid.New()) }
func NewUserID() UserID       { return UserID(uuid.New()) }
func NewOfferID() OfferID     { return OfferID(uuid.New()) }

func ParseAuctionID(s string) (AuctionID, error) {
	u, err := parseUUID(s, "auction")
	return AuctionID(u), err
}

func ParseBidID(s string) (BidID, error) {
	u, err := parseUUID(s, "bid")
	return BidID(u), err
}

func ParsePaymentID(s string) (PaymentID, error) {
	u, err := parseUUID(s, "payment")
	return PaymentID(u), err
}

func ParseDomainID(s string) (DomainID, error) {
	u, err := parseUUID(s, "domain")
	return DomainID(u), err
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user")
	return UserID(u), err
}

func ParseOfferID(s string) (OfferID, error) {
	u, err := parseUUID(s, "offer")
	return OfferID(u), err
}

// parseUUID is the single trust-boundary parser for every ID type.
// Errors: CodeInvalidInput for empty, malformed or nil UUIDs.
func parseUUID(s, kind string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind+" id")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id cannot be nil")
	}
	return u, nil
}

// Text marshaling lets IDs appear as canonical strings in JSON payloads.

func (id AuctionID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id BidID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id PaymentID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id DomainID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id UserID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id OfferID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }

func (id *AuctionID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *BidID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *PaymentID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *DomainID) UnmarshalText(b []byte) error  { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *UserID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *OfferID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
