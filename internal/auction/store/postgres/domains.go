package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"auctioneer/internal/auction/models"
	id "auctioneer/pkg/domain"
	"auctioneer/pkg/platform/sentinel"
)

type DomainStore struct {
	s *Store
}

const domainColumns = `
	id, name, status, current_highest_bid, current_owner,
	registration_date, renewal_price, expiry_date, updated_at`

func (st *DomainStore) FindByID(ctx context.Context, domainID id.DomainID) (*models.Domain, error) {
	row := st.s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+domainColumns+` FROM domains WHERE id = $1`, uuid.UUID(domainID))
	d, err := scanDomain(row)
	if err != nil {
		return nil, fmt.Errorf("find domain %s: %w", domainID, mapError(err))
	}
	return d, nil
}

func (st *DomainStore) FindByIDForUpdate(ctx context.Context, domainID id.DomainID) (*models.Domain, error) {
	row := st.s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+domainColumns+` FROM domains WHERE id = $1 FOR UPDATE`, uuid.UUID(domainID))
	d, err := scanDomain(row)
	if err != nil {
		return nil, fmt.Errorf("lock domain %s: %w", domainID, mapError(err))
	}
	return d, nil
}

func (st *DomainStore) Create(ctx context.Context, d *models.Domain) error {
	_, err := st.s.execer(ctx).ExecContext(ctx,
		`INSERT INTO domains (`+domainColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		domainArgs(d)...)
	if err != nil {
		return fmt.Errorf("create domain %s: %w", d.ID, mapError(err))
	}
	return nil
}

func (st *DomainStore) Update(ctx context.Context, d *models.Domain) error {
	res, err := st.s.execer(ctx).ExecContext(ctx, `
		UPDATE domains SET
			name = $2, status = $3, current_highest_bid = $4, current_owner = $5,
			registration_date = $6, renewal_price = $7, expiry_date = $8, updated_at = $9
		WHERE id = $1`,
		domainArgs(d)...)
	if err != nil {
		return fmt.Errorf("update domain %s: %w", d.ID, mapError(err))
	}
	if err := expectOne(res, sentinel.ErrNotFound); err != nil {
		return fmt.Errorf("update domain %s: %w", d.ID, err)
	}
	return nil
}

func domainArgs(d *models.Domain) []any {
	return []any{
		uuid.UUID(d.ID),
		d.Name,
		string(d.Status),
		nullDecimal(d.CurrentHighestBid),
		nullableUser(d.CurrentOwner),
		d.RegistrationDate,
		nullDecimal(d.RenewalPrice),
		d.ExpiryDate,
		d.UpdatedAt,
	}
}

func scanDomain(row scanner) (*models.Domain, error) {
	var (
		d                    models.Domain
		domainID             uuid.UUID
		status               string
		highest, renewal     decimal.NullDecimal
		owner                uuid.NullUUID
		registered, expiring sql.NullTime
	)
	err := row.Scan(&domainID, &d.Name, &status, &highest, &owner, &registered, &renewal, &expiring, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.ID = id.DomainID(domainID)
	d.Status = models.DomainStatus(status)
	if highest.Valid {
		d.CurrentHighestBid = &highest.Decimal
	}
	if owner.Valid {
		o := id.UserID(owner.UUID)
		d.CurrentOwner = &o
	}
	if registered.Valid {
		d.RegistrationDate = &registered.Time
	}
	if renewal.Valid {
		d.RenewalPrice = &renewal.Decimal
	}
	if expiring.Valid {
		d.ExpiryDate = &expiring.Time
	}
	return &d, nil
}

func nullDecimal(v *decimal.Decimal) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *v, Valid: true}
}
