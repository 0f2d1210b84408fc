// Package ports declares the storage and delivery contracts the auction
// services depend on. Implementations live under internal/auction/store and
// internal/notification.
//
// Stores report infrastructure facts with pkg/platform/sentinel errors:
// ErrNotFound for missing rows and ErrConflict for lost optimistic races.
package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"auctioneer/internal/auction/models"
	id "auctioneer/pkg/domain"
)

type AuctionStore interface {
	FindByID(ctx context.Context, auctionID id.AuctionID) (*models.Auction, error)
	// FindByIDForUpdate re-reads the row under the transaction's write lock.
	FindByIDForUpdate(ctx context.Context, auctionID id.AuctionID) (*models.Auction, error)
	FindByStatusIn(ctx context.Context, statuses []models.AuctionStatus) ([]*models.Auction, error)
	Create(ctx context.Context, auction *models.Auction) error
	// Update persists auction if its Version still matches the stored row and
	// bumps Version on success. A mismatch returns sentinel.ErrConflict.
	Update(ctx context.Context, auction *models.Auction) error
}

type BidStore interface {
	Create(ctx context.Context, bid *models.Bid) error
	FindByID(ctx context.Context, bidID id.BidID) (*models.Bid, error)
	// FindHighestBid orders by amount desc, then created_at asc.
	FindHighestBid(ctx context.Context, auctionID id.AuctionID) (*models.Bid, error)
	// FindNextHighestBid returns the best bid strictly below belowAmount whose
	// bidder is not in excluded.
	FindNextHighestBid(ctx context.Context, auctionID id.AuctionID, belowAmount decimal.Decimal, excluded []id.UserID) (*models.Bid, error)
	CountByAuction(ctx context.Context, auctionID id.AuctionID) (int, error)
	CountByUserAndAuction(ctx context.Context, userID id.UserID, auctionID id.AuctionID) (int, error)
}

type PaymentStore interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error)
	FindPendingPayments(ctx context.Context) ([]*models.Payment, error)
	// FindActiveByAuction returns the PENDING or PROCESSING payment, if any.
	FindActiveByAuction(ctx context.Context, auctionID id.AuctionID) (*models.Payment, error)
	ListByAuction(ctx context.Context, auctionID id.AuctionID) ([]*models.Payment, error)
	UpdateStatus(ctx context.Context, paymentID id.PaymentID, status models.PaymentStatus, at time.Time) error
	// Update persists status and checkout reference.
	Update(ctx context.Context, payment *models.Payment) error
}

type DomainStore interface {
	FindByID(ctx context.Context, domainID id.DomainID) (*models.Domain, error)
	// FindByIDForUpdate locks the domain row until the transaction ends.
	FindByIDForUpdate(ctx context.Context, domainID id.DomainID) (*models.Domain, error)
	Create(ctx context.Context, domain *models.Domain) error
	Update(ctx context.Context, domain *models.Domain) error
}

type OfferStore interface {
	Create(ctx context.Context, offer *models.Offer) error
	FindByID(ctx context.Context, offerID id.OfferID) (*models.Offer, error)
	FindPendingByAuction(ctx context.Context, auctionID id.AuctionID) (*models.Offer, error)
	UpdateStatus(ctx context.Context, offerID id.OfferID, status models.OfferStatus, at time.Time) error
}

type OutboxStore interface {
	Append(ctx context.Context, entry *models.OutboxEntry) error
	FetchPending(ctx context.Context, limit int) ([]*models.OutboxEntry, error)
	MarkProcessed(ctx context.Context, entryID uuid.UUID, at time.Time) error
	MarkFailedAttempt(ctx context.Context, entryID uuid.UUID) error
}

type SettingStore interface {
	Get(ctx context.Context, key string) (*models.Setting, error)
	Put(ctx context.Context, setting *models.Setting) error
}

// Stores groups the stores a transaction hands to its callback.
type Stores struct {
	Auctions AuctionStore
	Bids     BidStore
	Payments PaymentStore
	Domains  DomainStore
	Offers   OfferStore
	Outbox   OutboxStore
}

// Tx runs fn atomically with respect to a single auction. Writes made through
// the supplied Stores commit together or not at all. Concurrent calls for the
// same auction are serialized.
type Tx interface {
	RunInTx(ctx context.Context, auctionID id.AuctionID, fn func(ctx context.Context, stores Stores) error) error
}

// Notifier delivers outbid notices. Callers treat delivery as best effort.
type Notifier interface {
	SendOutbid(ctx context.Context, notice models.OutbidNotice) error
}

// Settings supplies hot-reloadable numeric knobs.
type Settings interface {
	GetNumeric(ctx context.Context, key string, fallback float64) float64
}

// Directory resolves a bidder's contact address.
type Directory interface {
	EmailOf(ctx context.Context, userID id.UserID) (string, error)
}
