package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"trivia-backend/internal/catalog"
	"trivia-backend/internal/config"
	"trivia-backend/internal/metrics"
	"trivia-backend/internal/store"
)

const defaultBatchLimit = 100

// ObjectDeleter removes stored objects by key.
type ObjectDeleter interface {
	Delete(ctx context.Context, key string) error
}

// Sweeper deletes objects the ledger reports as orphaned, or as pending for
// longer than the grace period. Before deleting, every catalog asset column
// is checked for the object's URL; a referenced object is relinked instead.
type Sweeper struct {
	ledger  store.Ledger
	gateway store.Gateway
	objects ObjectDeleter
	refs    []catalog.Ref
	grace   time.Duration
	limit   int
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewSweeper constructs a Sweeper over every asset column known to cat.
func NewSweeper(cfg *config.Config, ledger store.Ledger, gw store.Gateway, objects ObjectDeleter, cat *catalog.Catalog, m *metrics.Metrics, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	grace := time.Hour
	if cfg != nil && cfg.ReconcileGrace > 0 {
		grace = cfg.ReconcileGrace
	}
	return &Sweeper{
		ledger:  ledger,
		gateway: gw,
		objects: objects,
		refs:    assetRefs(cat),
		grace:   grace,
		limit:   defaultBatchLimit,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Sweep runs one reconciliation pass and returns how many objects were
// deleted. A failed reference check aborts the pass; a failed object delete
// only skips that entry.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	entries, err := s.ledger.Reclaimable(ctx, s.now().Add(-s.grace), s.limit)
	if err != nil {
		s.metrics.IncSweepFailure()
		return 0, fmt.Errorf("list reclaimable objects: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	var deleted []uuid.UUID
	var relinked []string
	for _, e := range entries {
		referenced, err := s.referenced(ctx, e.PublicURL)
		if err != nil {
			s.metrics.IncSweepFailure()
			s.finish(ctx, deleted, relinked)
			return len(deleted), fmt.Errorf("check references of %s: %w", e.ObjectKey, err)
		}
		if referenced {
			relinked = append(relinked, e.ObjectKey)
			continue
		}
		if err := s.objects.Delete(ctx, e.ObjectKey); err != nil {
			s.metrics.IncSweepFailure()
			s.logger.Warn("object delete failed", "key", e.ObjectKey, "error", err)
			continue
		}
		deleted = append(deleted, e.ID)
	}

	if err := s.finish(ctx, deleted, relinked); err != nil {
		return len(deleted), err
	}
	s.logger.Info("reconcile pass finished", "examined", len(entries), "deleted", len(deleted), "relinked", len(relinked))
	return len(deleted), nil
}

func (s *Sweeper) finish(ctx context.Context, deleted []uuid.UUID, relinked []string) error {
	if len(relinked) > 0 {
		if err := s.ledger.MarkLinked(ctx, relinked); err != nil {
			s.logger.Warn("ledger relink failed", "keys", relinked, "error", err)
		}
	}
	if len(deleted) == 0 {
		return nil
	}
	s.metrics.AddReclaimed(len(deleted))
	if err := s.ledger.MarkDeleted(ctx, deleted); err != nil {
		s.metrics.IncSweepFailure()
		return fmt.Errorf("mark deleted: %w", err)
	}
	return nil
}

func (s *Sweeper) referenced(ctx context.Context, url string) (bool, error) {
	for _, ref := range s.refs {
		ok, err := s.gateway.Exists(ctx, ref.Table, ref.Column, url)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// assetRefs lists every table column that may hold an object URL.
func assetRefs(cat *catalog.Catalog) []catalog.Ref {
	seen := make(map[catalog.Ref]struct{})
	add := func(r catalog.Ref) {
		seen[r] = struct{}{}
	}
	for _, res := range cat.Resources() {
		for _, a := range res.Assets {
			add(catalog.Ref{Table: res.Table, Column: a.Column})
		}
		if res.Batch != nil {
			for _, role := range res.Batch.Roles() {
				add(catalog.Ref{Table: role.Table, Column: role.Column})
			}
		}
	}
	refs := make([]catalog.Ref, 0, len(seen))
	for r := range seen {
		refs = append(refs, r)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Table == refs[j].Table {
			return refs[i].Column < refs[j].Column
		}
		return refs[i].Table < refs[j].Table
	})
	return refs
}
