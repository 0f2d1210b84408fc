package memory

import (
	"context"

	"auctioneer/internal/auction/models"
	"auctioneer/internal/auction/ports"
	id "auctioneer/pkg/domain"
	dErrors "auctioneer/pkg/domain-errors"
	"auctioneer/pkg/platform/sentinel"
)

// numShards spreads auctions over independent mutexes so unrelated auctions
// do not contend.
const numShards = 128

type staging struct {
	auctions map[id.AuctionID]*models.Auction
	// expected holds the committed version each staged auction update was
	// based on, re-checked at commit.
	expected map[id.AuctionID]int64
	created  map[id.AuctionID]bool
	bids     []*models.Bid
	payments map[id.PaymentID]*models.Payment
	domains  map[id.DomainID]*models.Domain
	// domBase is the committed domain each staged one was derived from.
	// Domains span shards, so they are checked optimistically at commit.
	domBase map[id.DomainID]*models.Domain
	offers  map[id.OfferID]*models.Offer
	outbox  []*models.OutboxEntry
}

func newStaging() *staging {
	return &staging{
		auctions: make(map[id.AuctionID]*models.Auction),
		expected: make(map[id.AuctionID]int64),
		created:  make(map[id.AuctionID]bool),
		payments: make(map[id.PaymentID]*models.Payment),
		domains:  make(map[id.DomainID]*models.Domain),
		domBase:  make(map[id.DomainID]*models.Domain),
		offers:   make(map[id.OfferID]*models.Offer),
	}
}

var _ ports.Tx = (*Store)(nil)

// RunInTx serializes callbacks per auction shard and commits staged writes
// only when fn returns nil.
func (s *Store) RunInTx(ctx context.Context, auctionID id.AuctionID, fn func(ctx context.Context, stores ports.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.txTimeout)
		defer cancel()
	}

	shard := &s.shards[shardFor(auctionID)]
	shard.Lock()
	defer shard.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	v := &view{s: s, st: newStaging()}
	if err := fn(ctx, v.stores()); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted before commit")
	}
	return s.commit(v.st)
}

func (s *Store) commit(st *staging) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for auctionID, version := range st.expected {
		current, ok := s.auctions[auctionID]
		if !ok || current.Version != version {
			return sentinel.ErrConflict
		}
	}
	for auctionID := range st.created {
		if _, exists := s.auctions[auctionID]; exists {
			return sentinel.ErrConflict
		}
	}
	for domainID := range st.domains {
		if base, tracked := st.domBase[domainID]; tracked && s.domains[domainID] != base {
			return sentinel.ErrConflict
		}
	}

	for k, a := range st.auctions {
		s.auctions[k] = a
	}
	for _, b := range st.bids {
		s.bids[b.ID] = b
	}
	for k, p := range st.payments {
		s.payments[k] = p
	}
	for k, d := range st.domains {
		s.domains[k] = d
	}
	for k, o := range st.offers {
		s.offers[k] = o
	}
	for _, e := range st.outbox {
		s.outbox[e.ID] = e
	}
	return nil
}

func shardFor(auctionID id.AuctionID) int {
	return int(hashString(auctionID.String()) % numShards)
}

// hashString is FNV-1a.
func hashString(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
