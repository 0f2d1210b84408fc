package memory

import (
	"context"
	"fmt"
	"time"

	"auctioneer/internal/auction/models"
	id "auctioneer/pkg/domain"
	"auctioneer/pkg/platform/sentinel"
)

type offerStore struct{ v *view }

func (s *offerStore) visible(offerID id.OfferID) *models.Offer {
	if s.v.st != nil {
		if o, ok := s.v.st.offers[offerID]; ok {
			return o
		}
	}
	return s.v.s.offers[offerID]
}

func (s *offerStore) put(o *models.Offer) {
	if s.v.st != nil {
		s.v.st.offers[o.ID] = o
		return
	}
	s.v.s.offers[o.ID] = o
}

func (s *offerStore) Create(_ context.Context, offer *models.Offer) error {
	var err error
	s.v.write(func() {
		if s.visible(offer.ID) != nil {
			err = fmt.Errorf("create offer %s: %w", offer.ID, sentinel.ErrConflict)
			return
		}
		o := *offer
		s.put(&o)
	})
	return err
}

func (s *offerStore) FindByID(_ context.Context, offerID id.OfferID) (*models.Offer, error) {
	var found *models.Offer
	s.v.read(func() {
		if o := s.visible(offerID); o != nil {
			c := *o
			found = &c
		}
	})
	if found == nil {
		return nil, fmt.Errorf("find offer %s: %w", offerID, sentinel.ErrNotFound)
	}
	return found, nil
}

func (s *offerStore) FindPendingByAuction(_ context.Context, auctionID id.AuctionID) (*models.Offer, error) {
	var found *models.Offer
	s.v.read(func() {
		check := func(o *models.Offer) {
			o = s.visible(o.ID)
			if found == nil && o.AuctionID == auctionID && o.Status == models.OfferPending {
				c := *o
				found = &c
			}
		}
		for _, o := range s.v.s.offers {
			check(o)
		}
		if s.v.st != nil {
			for _, o := range s.v.st.offers {
				check(o)
			}
		}
	})
	if found == nil {
		return nil, fmt.Errorf("find pending offer for auction %s: %w", auctionID, sentinel.ErrNotFound)
	}
	return found, nil
}

func (s *offerStore) UpdateStatus(_ context.Context, offerID id.OfferID, status models.OfferStatus, at time.Time) error {
	var err error
	s.v.write(func() {
		current := s.visible(offerID)
		if current == nil {
			err = fmt.Errorf("update offer %s: %w", offerID, sentinel.ErrNotFound)
			return
		}
		next := *current
		next.Status = status
		next.UpdatedAt = at
		s.put(&next)
	})
	return err
}
