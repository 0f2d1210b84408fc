package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"auctioneer/internal/auction/models"
	id "auctioneer/pkg/domain"
	"auctioneer/pkg/platform/sentinel"
)

type auctionStore struct{ v *view }

func (s *auctionStore) FindByID(_ context.Context, auctionID id.AuctionID) (*models.Auction, error) {
	var found *models.Auction
	s.v.read(func() {
		found = s.v.visibleAuction(auctionID).Clone()
	})
	if found == nil {
		return nil, fmt.Errorf("find auction %s: %w", auctionID, sentinel.ErrNotFound)
	}
	return found, nil
}

// FindByIDForUpdate is FindByID: the shard lock already excludes other writers.
func (s *auctionStore) FindByIDForUpdate(ctx context.Context, auctionID id.AuctionID) (*models.Auction, error) {
	return s.FindByID(ctx, auctionID)
}

func (s *auctionStore) FindByStatusIn(_ context.Context, statuses []models.AuctionStatus) ([]*models.Auction, error) {
	var out []*models.Auction
	s.v.read(func() {
		seen := make(map[id.AuctionID]bool, len(s.v.s.auctions))
		collect := func(auctionID id.AuctionID) {
			if seen[auctionID] {
				return
			}
			seen[auctionID] = true
			if a := s.v.visibleAuction(auctionID); slices.Contains(statuses, a.Status) {
				out = append(out, a.Clone())
			}
		}
		for auctionID := range s.v.s.auctions {
			collect(auctionID)
		}
		if s.v.st != nil {
			for auctionID := range s.v.st.auctions {
				collect(auctionID)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *auctionStore) Create(_ context.Context, auction *models.Auction) error {
	var err error
	s.v.write(func() {
		if s.v.visibleAuction(auction.ID) != nil {
			err = fmt.Errorf("create auction %s: %w", auction.ID, sentinel.ErrConflict)
			return
		}
		auction.Version = 1
		if s.v.st != nil {
			s.v.st.auctions[auction.ID] = auction.Clone()
			s.v.st.created[auction.ID] = true
			return
		}
		s.v.s.auctions[auction.ID] = auction.Clone()
	})
	return err
}

func (s *auctionStore) Update(_ context.Context, auction *models.Auction) error {
	var err error
	s.v.write(func() {
		current := s.v.visibleAuction(auction.ID)
		if current == nil {
			err = fmt.Errorf("update auction %s: %w", auction.ID, sentinel.ErrNotFound)
			return
		}
		if current.Version != auction.Version {
			err = fmt.Errorf("update auction %s: %w", auction.ID, sentinel.ErrConflict)
			return
		}
		next := auction.Clone()
		next.Version++
		if s.v.st != nil {
			if _, staged := s.v.st.expected[auction.ID]; !staged && !s.v.st.created[auction.ID] {
				s.v.st.expected[auction.ID] = current.Version
			}
			s.v.st.auctions[auction.ID] = next
		} else {
			s.v.s.auctions[auction.ID] = next
		}
		auction.Version = next.Version
	})
	return err
}
