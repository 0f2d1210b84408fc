package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"auctioneer/internal/auction/ports"
	"auctioneer/internal/auction/store/memory"
	pgstore "auctioneer/internal/auction/store/postgres"
	"auctioneer/internal/platform/config"
	"auctioneer/internal/platform/postgres"
	"auctioneer/internal/settings"
	id "auctioneer/pkg/domain"
)

// directory is the contact book: read by the email notifier, written by the
// contact endpoint.
type directory interface {
	ports.Directory
	Register(ctx context.Context, userID id.UserID, email string) error
}

// backend is the storage the process runs on.
type backend struct {
	name      string
	stores    ports.Stores
	tx        ports.Tx
	settings  settings.Store
	directory directory
	db        *sql.DB
}

func (b *backend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Health reports whether the backing database is reachable.
func (b *backend) Health(ctx context.Context) error {
	if b.db == nil {
		return nil
	}
	return postgres.Health(ctx, b.db)
}

// newBackend picks Postgres when DATABASE_URL is set and the in-memory store
// otherwise.
func newBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	if !cfg.UsesPostgres() {
		st := memory.New()
		logger.WarnContext(ctx, "DATABASE_URL not set, using in-memory store; state is lost on restart")
		return &backend{
			name:      "memory",
			stores:    st.Stores(),
			tx:        st,
			settings:  st.Settings(),
			directory: st.Directory(),
		}, nil
	}

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	st := pgstore.New(db)
	if cfg.Database.Migrate {
		if err := st.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate schema: %w", err)
		}
		logger.InfoContext(ctx, "database schema up to date")
	}
	return &backend{
		name:      "postgres",
		stores:    st.Stores(),
		tx:        st,
		settings:  st.Settings(),
		directory: st.Directory(),
		db:        db,
	}, nil
}
