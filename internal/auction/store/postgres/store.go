// Package postgres persists auctions, bids, payments, domains, offers, the
// outbox and settings in PostgreSQL.
//
// Stores join an ambient transaction when one is present in the context (see
// pkg/platform/tx) and otherwise run against the pool. FindByIDForUpdate takes
// a row lock and only makes sense inside a transaction.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"auctioneer/internal/auction/ports"
	"auctioneer/pkg/platform/sentinel"
	txcontext "auctioneer/pkg/platform/tx"
)

//go:embed schema.sql
var schema string

// Postgres error codes the stores translate.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeAdminShutdown        = "57P01"
	codeCannotConnectNow     = "57P03"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *sql.DB { return s.db }

// Migrate applies the schema. Statements are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply auction schema: %w", err)
	}
	return nil
}

// Stores returns the store set. The same values serve transactional and
// non-transactional callers.
func (s *Store) Stores() ports.Stores {
	return ports.Stores{
		Auctions: &AuctionStore{s: s},
		Bids:     &BidStore{s: s},
		Payments: &PaymentStore{s: s},
		Domains:  &DomainStore{s: s},
		Offers:   &OfferStore{s: s},
		Outbox:   &OutboxStore{s: s},
	}
}

func (s *Store) Settings() *SettingStore { return &SettingStore{s: s} }

func (s *Store) Directory() *Directory { return &Directory{s: s} }

func (s *Store) execer(ctx context.Context) txcontext.DBTX {
	return txcontext.Executor(ctx, s.db)
}

type scanner interface {
	Scan(dest ...any) error
}

// mapError turns driver errors into sentinels so services never see pgconn.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %w", sentinel.ErrNotFound, err)
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation, codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return fmt.Errorf("%w: %w", sentinel.ErrConflict, err)
		case codeAdminShutdown, codeCannotConnectNow:
			return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
		}
	}
	return err
}

// IsRetryable reports whether a commit failure is a lost race that can be
// retried from scratch.
func IsRetryable(err error) bool {
	return errors.Is(mapError(err), sentinel.ErrConflict)
}

func expectOne(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
