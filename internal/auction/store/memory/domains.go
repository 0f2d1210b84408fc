package memory

import (
	"context"
	"fmt"

	"auctioneer/internal/auction/models"
	id "auctioneer/pkg/domain"
	"auctioneer/pkg/platform/sentinel"
)

type domainStore struct{ v *view }

func (s *domainStore) visible(domainID id.DomainID) *models.Domain {
	if s.v.st != nil {
		if d, ok := s.v.st.domains[domainID]; ok {
			return d
		}
	}
	return s.v.s.domains[domainID]
}

func (s *domainStore) FindByID(_ context.Context, domainID id.DomainID) (*models.Domain, error) {
	var found *models.Domain
	s.v.read(func() {
		s.track(domainID)
		found = s.visible(domainID).Clone()
	})
	if found == nil {
		return nil, fmt.Errorf("find domain %s: %w", domainID, sentinel.ErrNotFound)
	}
	return found, nil
}

// FindByIDForUpdate reads like FindByID; the commit-time check on the tracked
// snapshot stands in for the row lock.
func (s *domainStore) FindByIDForUpdate(ctx context.Context, domainID id.DomainID) (*models.Domain, error) {
	return s.FindByID(ctx, domainID)
}

// track remembers the committed domain a transaction first saw, so commit can
// refuse to overwrite a domain another transaction changed in the meantime.
func (s *domainStore) track(domainID id.DomainID) {
	if s.v.st == nil {
		return
	}
	if _, seen := s.v.st.domBase[domainID]; !seen {
		s.v.st.domBase[domainID] = s.v.s.domains[domainID]
	}
}

func (s *domainStore) Create(_ context.Context, domain *models.Domain) error {
	var err error
	s.v.write(func() {
		if s.visible(domain.ID) != nil {
			err = fmt.Errorf("create domain %s: %w", domain.ID, sentinel.ErrConflict)
			return
		}
		s.put(domain.Clone())
	})
	return err
}

func (s *domainStore) Update(_ context.Context, domain *models.Domain) error {
	var err error
	s.v.write(func() {
		if s.visible(domain.ID) == nil {
			err = fmt.Errorf("update domain %s: %w", domain.ID, sentinel.ErrNotFound)
			return
		}
		s.put(domain.Clone())
	})
	return err
}

func (s *domainStore) put(d *models.Domain) {
	if s.v.st != nil {
		s.track(d.ID)
		s.v.st.domains[d.ID] = d
		return
	}
	s.v.s.domains[d.ID] = d
}
