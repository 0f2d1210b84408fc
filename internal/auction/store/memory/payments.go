package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"auctioneer/internal/auction/models"
	id "auctioneer/pkg/domain"
	"auctioneer/pkg/platform/sentinel"
)

type paymentStore struct{ v *view }

func (s *paymentStore) put(p *models.Payment) {
	if s.v.st != nil {
		s.v.st.payments[p.ID] = p
		return
	}
	s.v.s.payments[p.ID] = p
}

func (s *paymentStore) Create(_ context.Context, payment *models.Payment) error {
	var err error
	s.v.write(func() {
		all := s.v.visiblePayments()
		if _, exists := all[payment.ID]; exists {
			err = fmt.Errorf("create payment %s: %w", payment.ID, sentinel.ErrConflict)
			return
		}
		if payment.IsOpen() {
			for _, p := range all {
				if p.AuctionID == payment.AuctionID && p.IsOpen() {
					err = fmt.Errorf("create payment for auction %s: open payment exists: %w", payment.AuctionID, sentinel.ErrConflict)
					return
				}
			}
		}
		s.put(payment.Clone())
	})
	return err
}

func (s *paymentStore) FindByID(_ context.Context, paymentID id.PaymentID) (*models.Payment, error) {
	var found *models.Payment
	s.v.read(func() {
		found = s.v.visiblePayments()[paymentID].Clone()
	})
	if found == nil {
		return nil, fmt.Errorf("find payment %s: %w", paymentID, sentinel.ErrNotFound)
	}
	return found, nil
}

func (s *paymentStore) FindPendingPayments(_ context.Context) ([]*models.Payment, error) {
	var out []*models.Payment
	s.v.read(func() {
		for _, p := range s.v.visiblePayments() {
			if p.Status == models.PaymentPending {
				out = append(out, p.Clone())
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *paymentStore) FindActiveByAuction(_ context.Context, auctionID id.AuctionID) (*models.Payment, error) {
	var found *models.Payment
	s.v.read(func() {
		for _, p := range s.v.visiblePayments() {
			if p.AuctionID == auctionID && p.IsOpen() {
				found = p.Clone()
				return
			}
		}
	})
	if found == nil {
		return nil, fmt.Errorf("find active payment for auction %s: %w", auctionID, sentinel.ErrNotFound)
	}
	return found, nil
}

func (s *paymentStore) ListByAuction(_ context.Context, auctionID id.AuctionID) ([]*models.Payment, error) {
	var out []*models.Payment
	s.v.read(func() {
		for _, p := range s.v.visiblePayments() {
			if p.AuctionID == auctionID {
				out = append(out, p.Clone())
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *paymentStore) UpdateStatus(_ context.Context, paymentID id.PaymentID, status models.PaymentStatus, at time.Time) error {
	var err error
	s.v.write(func() {
		current := s.v.visiblePayments()[paymentID]
		if current == nil {
			err = fmt.Errorf("update payment %s: %w", paymentID, sentinel.ErrNotFound)
			return
		}
		next := current.Clone()
		next.Status = status
		next.UpdatedAt = at
		s.put(next)
	})
	return err
}

func (s *paymentStore) Update(_ context.Context, payment *models.Payment) error {
	var err error
	s.v.write(func() {
		if s.v.visiblePayments()[payment.ID] == nil {
			err = fmt.Errorf("update payment %s: %w", payment.ID, sentinel.ErrNotFound)
			return
		}
		s.put(payment.Clone())
	})
	return err
}
