package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type postgresBackend struct {
	db *sqlx.DB
}

// NewPostgresBackend keeps the whole collection in a single JSONB row.
func NewPostgresBackend(db *sqlx.DB) RegistrationBackend {
	return &postgresBackend{db: db}
}

// EnsureSchema creates the registrations table if it does not exist.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS alert_registrations (
			id         SMALLINT PRIMARY KEY CHECK (id = 1),
			document   JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create alert_registrations: %w", err)
	}
	return nil
}

func (b *postgresBackend) Read(ctx context.Context) ([]byte, error) {
	query := `SELECT document FROM alert_registrations WHERE id = 1`

	var document []byte
	err := b.db.GetContext(ctx, &document, query)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select registrations: %w", err)
	}
	return document, nil
}

func (b *postgresBackend) Write(ctx context.Context, data []byte) error {
	query := `
		INSERT INTO alert_registrations (id, document, updated_at)
		VALUES (1, $1::jsonb, NOW())
		ON CONFLICT (id) DO UPDATE SET
			document = EXCLUDED.document,
			updated_at = NOW()
	`
	if _, err := b.db.ExecContext(ctx, query, string(data)); err != nil {
		return fmt.Errorf("upsert registrations: %w", err)
	}
	return nil
}
