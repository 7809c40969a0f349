package testsupport

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"trivia-backend/internal/catalog"
	"trivia-backend/internal/domain"
	"trivia-backend/internal/store"
)

// ErrInjected is returned by GatewayStub when a failure was scheduled.
var ErrInjected = errors.New("injected gateway failure")

// GatewayStub is an in-memory store.Gateway intended for tests. Tables and
// their key columns come from a catalog; keys auto-increment per table and
// WithinTx rolls every table back when fn fails.
type GatewayStub struct {
	mu        sync.Mutex
	keys      map[string]string
	tables    map[string][]domain.Row
	seq       map[string]int64
	writes    map[string]int
	failWrite map[string]int
	failRead  map[string]bool
	txCount   int
}

// NewGatewayStub constructs an empty gateway knowing every table in cat,
// including follower tables of batch resources.
func NewGatewayStub(cat *catalog.Catalog) *GatewayStub {
	g := &GatewayStub{
		keys:      make(map[string]string),
		tables:    make(map[string][]domain.Row),
		seq:       make(map[string]int64),
		writes:    make(map[string]int),
		failWrite: make(map[string]int),
		failRead:  make(map[string]bool),
	}
	for _, r := range cat.Resources() {
		g.keys[r.Table] = r.Key
	}
	return g
}

// FailWriteOn makes the nth write (1-based) to table fail.
func (g *GatewayStub) FailWriteOn(table string, nth int) {
	g.mu.Lock()
	g.failWrite[table] = g.writes[table] + nth
	g.mu.Unlock()
}

// FailReads makes every read of table fail.
func (g *GatewayStub) FailReads(table string) {
	g.mu.Lock()
	g.failRead[table] = true
	g.mu.Unlock()
}

// Seed inserts row into table, assigning a key when absent.
func (g *GatewayStub) Seed(table string, row domain.Row) domain.Row {
	g.mu.Lock()
	defer g.mu.Unlock()
	stored, err := g.insertLocked(table, row)
	if err != nil {
		panic(err)
	}
	return copyRow(stored)
}

// Rows returns a copy of every row stored in table.
func (g *GatewayStub) Rows(table string) []domain.Row {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]domain.Row, 0, len(g.tables[table]))
	for _, r := range g.tables[table] {
		out = append(out, copyRow(r))
	}
	return out
}

// TxCount reports how many transactions were opened.
func (g *GatewayStub) TxCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.txCount
}

func (g *GatewayStub) Read(_ context.Context, table string, filter store.Filter, order ...store.Order) ([]domain.Row, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkTable(table); err != nil {
		return nil, err
	}
	if g.failRead[table] {
		return nil, fmt.Errorf("read %s: %w", table, ErrInjected)
	}
	var out []domain.Row
	for _, r := range g.tables[table] {
		if matches(r, filter) {
			out = append(out, copyRow(r))
		}
	}
	for i := len(order) - 1; i >= 0; i-- {
		o := order[i]
		sort.SliceStable(out, func(a, b int) bool {
			less := lessValue(out[a][o.Column], out[b][o.Column])
			if o.Desc {
				return lessValue(out[b][o.Column], out[a][o.Column])
			}
			return less
		})
	}
	return out, nil
}

func (g *GatewayStub) Write(_ context.Context, table string, columns []string, values []any) (domain.Row, error) {
	if len(columns) == 0 {
		return nil, store.ErrEmptyWrite
	}
	if len(columns) != len(values) {
		return nil, fmt.Errorf("insert into %s: %d columns but %d values", table, len(columns), len(values))
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkTable(table); err != nil {
		return nil, err
	}
	g.writes[table]++
	if n, ok := g.failWrite[table]; ok && g.writes[table] == n {
		return nil, fmt.Errorf("insert into %s: %w", table, ErrInjected)
	}
	row := make(domain.Row, len(columns))
	for i, c := range columns {
		row[c] = normalize(values[i])
	}
	stored, err := g.insertLocked(table, row)
	if err != nil {
		return nil, err
	}
	return copyRow(stored), nil
}

func (g *GatewayStub) Update(_ context.Context, table string, assignments map[string]any, filter store.Filter) ([]domain.Row, error) {
	if len(assignments) == 0 {
		return nil, store.ErrEmptyWrite
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkTable(table); err != nil {
		return nil, err
	}
	var out []domain.Row
	for _, r := range g.tables[table] {
		if !matches(r, filter) {
			continue
		}
		for c, v := range assignments {
			r[c] = normalize(v)
		}
		out = append(out, copyRow(r))
	}
	return out, nil
}

func (g *GatewayStub) Delete(_ context.Context, table string, filter store.Filter) ([]domain.Row, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkTable(table); err != nil {
		return nil, err
	}
	var kept, removed []domain.Row
	for _, r := range g.tables[table] {
		if matches(r, filter) {
			removed = append(removed, r)
			continue
		}
		kept = append(kept, r)
	}
	g.tables[table] = kept
	return removed, nil
}

func (g *GatewayStub) Exists(_ context.Context, table, column string, value any) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkTable(table); err != nil {
		return false, err
	}
	for _, r := range g.tables[table] {
		if equalValue(r[column], value) {
			return true, nil
		}
	}
	return false, nil
}

// WithinTx snapshots every table, runs fn and restores the snapshot when fn
// fails.
func (g *GatewayStub) WithinTx(_ context.Context, fn func(store.Gateway) error) error {
	g.mu.Lock()
	g.txCount++
	tables := make(map[string][]domain.Row, len(g.tables))
	for t, rows := range g.tables {
		cp := make([]domain.Row, len(rows))
		for i, r := range rows {
			cp[i] = copyRow(r)
		}
		tables[t] = cp
	}
	seq := make(map[string]int64, len(g.seq))
	for t, n := range g.seq {
		seq[t] = n
	}
	g.mu.Unlock()

	if err := fn(g); err != nil {
		g.mu.Lock()
		g.tables = tables
		g.seq = seq
		g.mu.Unlock()
		return err
	}
	return nil
}

func (g *GatewayStub) checkTable(table string) error {
	if _, ok := g.keys[table]; !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	return nil
}

func (g *GatewayStub) insertLocked(table string, row domain.Row) (domain.Row, error) {
	if err := g.checkTable(table); err != nil {
		return nil, err
	}
	stored := copyRow(row)
	key := g.keys[table]
	if v, ok := stored[key]; ok && v != nil {
		n, ok := v.(int64)
		if !ok {
			return nil, fmt.Errorf("%s.%s must be an integer", table, key)
		}
		if n > g.seq[table] {
			g.seq[table] = n
		}
	} else {
		g.seq[table]++
		stored[key] = g.seq[table]
	}
	g.tables[table] = append(g.tables[table], stored)
	return stored, nil
}

func copyRow(r domain.Row) domain.Row {
	out := make(domain.Row, len(r))
	for k, v := range r {
		out[k] = normalize(v)
	}
	return out
}

// normalize widens integers so filters match regardless of the int type used.
func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int16:
		return int64(n)
	default:
		return v
	}
}

func matches(r domain.Row, filter store.Filter) bool {
	for c, v := range filter {
		if !equalValue(r[c], v) {
			return false
		}
	}
	return true
}

func equalValue(a, b any) bool {
	return normalize(a) == normalize(b)
}

func lessValue(a, b any) bool {
	switch x := normalize(a).(type) {
	case int64:
		y, ok := normalize(b).(int64)
		return ok && x < y
	case string:
		y, ok := b.(string)
		return ok && x < y
	default:
		return false
	}
}
