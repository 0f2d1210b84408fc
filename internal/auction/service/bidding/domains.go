package bidding

import (
	"context"
	"strings"

	"auctioneer/internal/auction/models"
	id "auctioneer/pkg/domain"
	dErrors "auctioneer/pkg/domain-errors"
	"auctioneer/pkg/requestcontext"
)

const maxDomainNameLen = 253

// ListDomain puts a domain on the marketplace in LISTED state.
func (s *Service) ListDomain(ctx context.Context, name string) (*models.Domain, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || len(name) > maxDomainNameLen || !strings.Contains(name, ".") ||
		strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "domain name must be a fully qualified name")
	}
	domain := &models.Domain{
		ID:        id.NewDomainID(),
		Name:      name,
		Status:    models.DomainListed,
		UpdatedAt: requestcontext.Now(ctx),
	}
	if err := s.stores.Domains.Create(ctx, domain); err != nil {
		return nil, translate(err, "domain not found")
	}
	s.logger.InfoContext(ctx, "domain listed", "domain_id", domain.ID, "name", domain.Name)
	return domain, nil
}

func (s *Service) GetDomain(ctx context.Context, domainID id.DomainID) (*models.Domain, error) {
	d, err := s.stores.Domains.FindByID(ctx, domainID)
	if err != nil {
		return nil, translate(err, "domain not found")
	}
	return d, nil
}
