package postgres

import (
	"context"
	"fmt"
	"time"

	"auctioneer/internal/auction/ports"
	id "auctioneer/pkg/domain"
	dErrors "auctioneer/pkg/domain-errors"
	txcontext "auctioneer/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

// RunInTx runs fn in a database transaction. Serialization on the auction
// comes from FindByIDForUpdate, which callers issue first; the auction ID
// only labels errors here.
func (s *Store) RunInTx(ctx context.Context, auctionID id.AuctionID, fn func(ctx context.Context, stores ports.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTxTimeout)
		defer cancel()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction for auction %s: %w", auctionID, mapError(err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx), s.Stores()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction for auction %s: %w", auctionID, mapError(err))
	}
	return nil
}
