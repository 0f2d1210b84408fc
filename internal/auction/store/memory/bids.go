package memory

import (
	"context"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"auctioneer/internal/auction/models"
	id "auctioneer/pkg/domain"
	"auctioneer/pkg/platform/sentinel"
)

type bidStore struct{ v *view }

func (s *bidStore) Create(_ context.Context, bid *models.Bid) error {
	var err error
	s.v.write(func() {
		if _, exists := s.v.s.bids[bid.ID]; exists {
			err = fmt.Errorf("create bid %s: %w", bid.ID, sentinel.ErrConflict)
			return
		}
		b := *bid
		if s.v.st != nil {
			s.v.st.bids = append(s.v.st.bids, &b)
			return
		}
		s.v.s.bids[b.ID] = &b
	})
	return err
}

func (s *bidStore) FindByID(_ context.Context, bidID id.BidID) (*models.Bid, error) {
	var found *models.Bid
	s.v.read(func() {
		if b, ok := s.v.s.bids[bidID]; ok {
			found = b
			return
		}
		if s.v.st != nil {
			for _, b := range s.v.st.bids {
				if b.ID == bidID {
					found = b
					return
				}
			}
		}
	})
	if found == nil {
		return nil, fmt.Errorf("find bid %s: %w", bidID, sentinel.ErrNotFound)
	}
	b := *found
	return &b, nil
}

func (s *bidStore) FindHighestBid(_ context.Context, auctionID id.AuctionID) (*models.Bid, error) {
	var found *models.Bid
	s.v.read(func() {
		if bids := s.v.visibleBids(auctionID); len(bids) > 0 {
			b := *bids[0]
			found = &b
		}
	})
	if found == nil {
		return nil, fmt.Errorf("find highest bid for auction %s: %w", auctionID, sentinel.ErrNotFound)
	}
	return found, nil
}

func (s *bidStore) FindNextHighestBid(_ context.Context, auctionID id.AuctionID, belowAmount decimal.Decimal, excluded []id.UserID) (*models.Bid, error) {
	var found *models.Bid
	s.v.read(func() {
		for _, b := range s.v.visibleBids(auctionID) {
			if b.Amount.LessThan(belowAmount) && !slices.Contains(excluded, b.BidderID) {
				c := *b
				found = &c
				return
			}
		}
	})
	if found == nil {
		return nil, fmt.Errorf("find next highest bid for auction %s: %w", auctionID, sentinel.ErrNotFound)
	}
	return found, nil
}

func (s *bidStore) CountByAuction(_ context.Context, auctionID id.AuctionID) (int, error) {
	var n int
	s.v.read(func() {
		n = len(s.v.visibleBids(auctionID))
	})
	return n, nil
}

func (s *bidStore) CountByUserAndAuction(_ context.Context, userID id.UserID, auctionID id.AuctionID) (int, error) {
	var n int
	s.v.read(func() {
		for _, b := range s.v.visibleBids(auctionID) {
			if b.BidderID == userID {
				n++
			}
		}
	})
	return n, nil
}
