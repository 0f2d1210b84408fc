// Package memory is the in-process backend for the auction stores.
//
// Reads outside a transaction see committed state. Inside RunInTx every write
// is staged and applied atomically on commit, so a callback that fails
// midway leaves nothing behind.
package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"auctioneer/internal/auction/models"
	"auctioneer/internal/auction/ports"
	id "auctioneer/pkg/domain"
)

const defaultTxTimeout = 5 * time.Second

// Store holds committed state for every auction aggregate.
type Store struct {
	mu sync.RWMutex

	auctions map[id.AuctionID]*models.Auction
	bids     map[id.BidID]*models.Bid
	payments map[id.PaymentID]*models.Payment
	domains  map[id.DomainID]*models.Domain
	offers   map[id.OfferID]*models.Offer
	outbox   map[uuid.UUID]*models.OutboxEntry
	settings map[string]*models.Setting
	contacts map[id.UserID]string

	shards    [numShards]sync.Mutex
	txTimeout time.Duration
}

type Option func(*Store)

// WithTxTimeout bounds transactions whose context has no deadline.
func WithTxTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.txTimeout = d
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		auctions:  make(map[id.AuctionID]*models.Auction),
		bids:      make(map[id.BidID]*models.Bid),
		payments:  make(map[id.PaymentID]*models.Payment),
		domains:   make(map[id.DomainID]*models.Domain),
		offers:    make(map[id.OfferID]*models.Offer),
		outbox:    make(map[uuid.UUID]*models.OutboxEntry),
		settings:  make(map[string]*models.Setting),
		contacts:  make(map[id.UserID]string),
		txTimeout: defaultTxTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stores returns non-transactional stores over committed state.
func (s *Store) Stores() ports.Stores {
	return (&view{s: s}).stores()
}

func (s *Store) Settings() *SettingStore { return &SettingStore{s: s} }

func (s *Store) Directory() *Directory { return &Directory{s: s} }

// view is the read/write surface handed out by Stores and RunInTx. A nil
// staging area means writes go straight to committed state.
type view struct {
	s  *Store
	st *staging
}

func (v *view) stores() ports.Stores {
	return ports.Stores{
		Auctions: &auctionStore{v: v},
		Bids:     &bidStore{v: v},
		Payments: &paymentStore{v: v},
		Domains:  &domainStore{v: v},
		Offers:   &offerStore{v: v},
		Outbox:   &outboxStore{v: v},
	}
}

// visibleAuction returns the staged auction if present, else the committed one.
// Callers hold at least s.mu.RLock.
func (v *view) visibleAuction(auctionID id.AuctionID) *models.Auction {
	if v.st != nil {
		if a, ok := v.st.auctions[auctionID]; ok {
			return a
		}
	}
	return v.s.auctions[auctionID]
}

func (v *view) visiblePayments() map[id.PaymentID]*models.Payment {
	if v.st == nil || len(v.st.payments) == 0 {
		return v.s.payments
	}
	merged := make(map[id.PaymentID]*models.Payment, len(v.s.payments)+len(v.st.payments))
	for k, p := range v.s.payments {
		merged[k] = p
	}
	for k, p := range v.st.payments {
		merged[k] = p
	}
	return merged
}

func (v *view) visibleBids(auctionID id.AuctionID) []*models.Bid {
	var out []*models.Bid
	for _, b := range v.s.bids {
		if b.AuctionID == auctionID {
			out = append(out, b)
		}
	}
	if v.st != nil {
		for _, b := range v.st.bids {
			if b.AuctionID == auctionID {
				out = append(out, b)
			}
		}
	}
	// highest first; ties go to the earlier bid
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// read runs fn under the committed-state read lock.
func (v *view) read(fn func()) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	fn()
}

// write runs fn under the committed-state write lock when not staging.
func (v *view) write(fn func()) {
	if v.st != nil {
		v.s.mu.RLock()
		defer v.s.mu.RUnlock()
		fn()
		return
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	fn()
}
