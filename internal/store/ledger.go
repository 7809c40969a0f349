package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"trivia-backend/internal/domain"
)

// LedgerSchema creates the asset ledger table. It is safe to run repeatedly.
const LedgerSchema = `
CREATE TABLE IF NOT EXISTS asset_ledger (
	id          uuid PRIMARY KEY,
	object_key  text NOT NULL UNIQUE,
	public_url  text NOT NULL,
	status      text NOT NULL DEFAULT 'pending',
	created_at  timestamptz NOT NULL DEFAULT now(),
	updated_at  timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS asset_ledger_status_idx ON asset_ledger (status, created_at);
CREATE INDEX IF NOT EXISTS asset_ledger_url_idx ON asset_ledger (public_url);
`

// PostgresLedger implements Ledger on top of the asset_ledger table.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

// NewPostgresLedger wraps an existing pool.
func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

// Migrate ensures the ledger table exists.
func (l *PostgresLedger) Migrate(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, LedgerSchema)
	return err
}

// Reserve records objectKey as pending. An existing entry for the key is
// left untouched and reported as ErrKeyTaken.
func (l *PostgresLedger) Reserve(ctx context.Context, objectKey, publicURL string) (uuid.UUID, error) {
	id := uuid.New()
	var stored uuid.UUID
	err := l.pool.QueryRow(ctx, `
		INSERT INTO asset_ledger (id, object_key, public_url, status, created_at, updated_at)
		VALUES ($1, $2, $3, 'pending', now(), now())
		ON CONFLICT (object_key) DO NOTHING
		RETURNING id
	`, id, objectKey, publicURL).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrKeyTaken
	}
	return stored, err
}

func (l *PostgresLedger) MarkLinked(ctx context.Context, objectKeys []string) error {
	if len(objectKeys) == 0 {
		return nil
	}
	_, err := l.pool.Exec(ctx, `
		UPDATE asset_ledger SET status = 'linked', updated_at = now()
		WHERE object_key = ANY($1) AND status <> 'deleted'
	`, objectKeys)
	return err
}

func (l *PostgresLedger) MarkOrphaned(ctx context.Context, publicURLs []string) error {
	if len(publicURLs) == 0 {
		return nil
	}
	_, err := l.pool.Exec(ctx, `
		UPDATE asset_ledger SET status = 'orphaned', updated_at = now()
		WHERE public_url = ANY($1) AND status IN ('pending', 'linked')
	`, publicURLs)
	return err
}

func (l *PostgresLedger) Reclaimable(ctx context.Context, pendingBefore time.Time, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.pool.Query(ctx, `
		SELECT id, object_key, public_url, status, created_at, updated_at
		FROM asset_ledger
		WHERE status = 'orphaned' OR (status = 'pending' AND created_at < $1)
		ORDER BY created_at ASC
		LIMIT $2
	`, pendingBefore, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.LedgerEntry, error) {
		var e domain.LedgerEntry
		var status string
		err := row.Scan(&e.ID, &e.ObjectKey, &e.PublicURL, &status, &e.CreatedAt, &e.UpdatedAt)
		e.Status = domain.LedgerStatus(status)
		return e, err
	})
}

func (l *PostgresLedger) MarkDeleted(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}
	_, err := l.pool.Exec(ctx, `
		UPDATE asset_ledger SET status = 'deleted', updated_at = now()
		WHERE id = ANY($1::uuid[])
	`, raw)
	return err
}
