package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"trivia-backend/internal/domain"
)

// Filter selects rows by column equality. Conditions are ANDed.
type Filter map[string]any

// Order sorts rows returned by Read.
type Order struct {
	Column string
	Desc   bool
}

// Gateway defines the generic relational operations the content service needs.
// Table and column names must come from the internal catalog, never from
// request input; values are always bound as positional parameters.
type Gateway interface {
	Read(ctx context.Context, table string, filter Filter, order ...Order) ([]domain.Row, error)
	Write(ctx context.Context, table string, columns []string, values []any) (domain.Row, error)
	Update(ctx context.Context, table string, assignments map[string]any, filter Filter) ([]domain.Row, error)
	Delete(ctx context.Context, table string, filter Filter) ([]domain.Row, error)
	Exists(ctx context.Context, table, column string, value any) (bool, error)
	// WithinTx runs fn against a gateway bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(Gateway) error) error
}

// Ledger tracks every object key written to the object store so objects that
// never became (or stopped being) referenced can be reclaimed.
type Ledger interface {
	Reserve(ctx context.Context, objectKey, publicURL string) (uuid.UUID, error)
	MarkLinked(ctx context.Context, objectKeys []string) error
	MarkOrphaned(ctx context.Context, publicURLs []string) error
	Reclaimable(ctx context.Context, pendingBefore time.Time, limit int) ([]domain.LedgerEntry, error)
	MarkDeleted(ctx context.Context, ids []uuid.UUID) error
}
