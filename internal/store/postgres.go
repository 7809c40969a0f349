package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"trivia-backend/internal/domain"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresGateway implements Gateway using a PostgreSQL database.
type PostgresGateway struct {
	pool *pgxpool.Pool
	db   dbtx
}

// NewPostgresGateway connects to the database using the provided connection string.
func NewPostgresGateway(ctx context.Context, conn string, maxConns int32) (*PostgresGateway, error) {
	cfg, err := pgxpool.ParseConfig(conn)
	if err != nil {
		return nil, err
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &PostgresGateway{pool: pool, db: pool}, nil
}

// Close releases the underlying pool resources.
func (g *PostgresGateway) Close() {
	if g.pool != nil {
		g.pool.Close()
	}
}

// Ping verifies the database is reachable.
func (g *PostgresGateway) Ping(ctx context.Context) error {
	if g.pool == nil {
		return errors.New("postgres pool not initialised")
	}
	return g.pool.Ping(ctx)
}

// Pool exposes the connection pool so sibling stores can share it.
func (g *PostgresGateway) Pool() *pgxpool.Pool {
	return g.pool
}

func (g *PostgresGateway) Read(ctx context.Context, table string, filter Filter, order ...Order) ([]domain.Row, error) {
	query, args, err := buildSelect(table, filter, order)
	if err != nil {
		return nil, err
	}
	return g.collect(ctx, query, args...)
}

func (g *PostgresGateway) Write(ctx context.Context, table string, columns []string, values []any) (domain.Row, error) {
	query, err := buildInsert(table, columns, values)
	if err != nil {
		return nil, err
	}
	rows, err := g.collect(ctx, query, values...)
	if err != nil {
		return nil, err
	}
	if len(rows) != 1 {
		return nil, fmt.Errorf("insert into %s returned %d rows", table, len(rows))
	}
	return rows[0], nil
}

func (g *PostgresGateway) Update(ctx context.Context, table string, assignments map[string]any, filter Filter) ([]domain.Row, error) {
	query, args, err := buildUpdate(table, assignments, filter)
	if err != nil {
		return nil, err
	}
	return g.collect(ctx, query, args...)
}

func (g *PostgresGateway) Delete(ctx context.Context, table string, filter Filter) ([]domain.Row, error) {
	query, args, err := buildDelete(table, filter)
	if err != nil {
		return nil, err
	}
	return g.collect(ctx, query, args...)
}

func (g *PostgresGateway) Exists(ctx context.Context, table, column string, value any) (bool, error) {
	query, err := buildExists(table, column)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := g.db.QueryRow(ctx, query, value).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// WithinTx runs fn inside a transaction. Nested calls open a savepoint.
func (g *PostgresGateway) WithinTx(ctx context.Context, fn func(Gateway) error) error {
	return pgx.BeginFunc(ctx, g.db, func(tx pgx.Tx) error {
		return fn(&PostgresGateway{pool: g.pool, db: tx})
	})
}

func (g *PostgresGateway) collect(ctx context.Context, query string, args ...any) ([]domain.Row, error) {
	rows, err := g.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Row, len(maps))
	for i, m := range maps {
		row := make(domain.Row, len(m))
		for k, v := range m {
			row[k] = normalizeValue(v)
		}
		out[i] = row
	}
	return out, nil
}

// normalizeValue converts pgtype values without a useful JSON form into the
// representation clients expect.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case pgtype.Time:
		if !t.Valid {
			return nil
		}
		return formatClock(t.Microseconds)
	case pgtype.Interval:
		if !t.Valid {
			return nil
		}
		return formatClock(t.Microseconds + int64(t.Days)*usPerDay + int64(t.Months)*30*usPerDay)
	case [16]byte:
		return uuid.UUID(t).String()
	default:
		return v
	}
}

const (
	usPerSecond = int64(1_000_000)
	usPerDay    = 86400 * usPerSecond
)

func formatClock(us int64) string {
	sign := ""
	if us < 0 {
		sign = "-"
		us = -us
	}
	secs := us / usPerSecond
	return fmt.Sprintf("%s%02d:%02d:%02d", sign, secs/3600, (secs/60)%60, secs%60)
}
