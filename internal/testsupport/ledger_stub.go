package testsupport

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"trivia-backend/internal/domain"
	"trivia-backend/internal/store"
)

// LedgerStub is an in-memory store.Ledger intended for tests.
type LedgerStub struct {
	mu      sync.Mutex
	entries map[string]*domain.LedgerEntry
	now     func() time.Time
}

// NewLedgerStub constructs an empty ledger using the wall clock.
func NewLedgerStub() *LedgerStub {
	return &LedgerStub{entries: make(map[string]*domain.LedgerEntry), now: time.Now}
}

// SetClock overrides the time stamped on new and changed entries.
func (l *LedgerStub) SetClock(now func() time.Time) {
	l.mu.Lock()
	l.now = now
	l.mu.Unlock()
}

func (l *LedgerStub) Reserve(_ context.Context, objectKey, publicURL string) (uuid.UUID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if _, ok := l.entries[objectKey]; ok {
		return uuid.Nil, store.ErrKeyTaken
	}
	e := &domain.LedgerEntry{
		ID:        uuid.New(),
		ObjectKey: objectKey,
		PublicURL: publicURL,
		Status:    domain.LedgerPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	l.entries[objectKey] = e
	return e.ID, nil
}

func (l *LedgerStub) MarkLinked(_ context.Context, objectKeys []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, k := range objectKeys {
		if e, ok := l.entries[k]; ok && e.Status != domain.LedgerDeleted {
			e.Status = domain.LedgerLinked
			e.UpdatedAt = l.now()
		}
	}
	return nil
}

func (l *LedgerStub) MarkOrphaned(_ context.Context, publicURLs []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	set := make(map[string]struct{}, len(publicURLs))
	for _, u := range publicURLs {
		set[u] = struct{}{}
	}
	for _, e := range l.entries {
		if _, ok := set[e.PublicURL]; !ok {
			continue
		}
		if e.Status == domain.LedgerPending || e.Status == domain.LedgerLinked {
			e.Status = domain.LedgerOrphaned
			e.UpdatedAt = l.now()
		}
	}
	return nil
}

func (l *LedgerStub) Reclaimable(_ context.Context, pendingBefore time.Time, limit int) ([]domain.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.LedgerEntry
	for _, e := range l.entries {
		if e.Status == domain.LedgerOrphaned || (e.Status == domain.LedgerPending && e.CreatedAt.Before(pendingBefore)) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ObjectKey < out[j].ObjectKey
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *LedgerStub) MarkDeleted(_ context.Context, ids []uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	for _, e := range l.entries {
		if _, ok := set[e.ID]; ok {
			e.Status = domain.LedgerDeleted
			e.UpdatedAt = l.now()
		}
	}
	return nil
}

// Status returns the status recorded for objectKey.
func (l *LedgerStub) Status(objectKey string) (domain.LedgerStatus, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[objectKey]
	if !ok {
		return "", false
	}
	return e.Status, true
}

// Entries returns a copy of every entry sorted by object key.
func (l *LedgerStub) Entries() []domain.LedgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.LedgerEntry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ObjectKey < out[j].ObjectKey })
	return out
}
