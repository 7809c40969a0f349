package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"trivia-backend/internal/config"
	"trivia-backend/internal/domain"
	"trivia-backend/internal/metrics"
	"trivia-backend/internal/objectstore"
	"trivia-backend/internal/store"
)

// ObjectStore is the object storage capability the service drives.
type ObjectStore interface {
	Prepare(name string) objectstore.Object
	Upload(ctx context.Context, obj objectstore.Object, contentType string, data []byte) error
}

// Request is one decoded client request: scalar fields plus uploaded files
// keyed by multipart field name.
type Request struct {
	Fields map[string]string
	Files  map[string][]*domain.Asset
}

// File returns the first file sent under field.
func (r Request) File(field string) *domain.Asset {
	if files := r.Files[field]; len(files) > 0 {
		return files[0]
	}
	return nil
}

// Service coordinates object uploads with relational writes.
type Service struct {
	cfg     *config.Config
	gateway store.Gateway
	ledger  store.Ledger
	objects ObjectStore
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewService constructs a Service instance. A nil ledger disables object
// tracking; nil metrics record nothing.
func NewService(cfg *config.Config, gw store.Gateway, ledger store.Ledger, objects ObjectStore, m *metrics.Metrics, logger *slog.Logger) *Service {
	if ledger == nil {
		ledger = noopLedger{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:     cfg,
		gateway: gw,
		ledger:  ledger,
		objects: objects,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *Service) maxTuples() int {
	if s.cfg == nil || s.cfg.BatchMaxTuples <= 0 {
		return 200
	}
	return s.cfg.BatchMaxTuples
}

func (s *Service) concurrency() int {
	if s.cfg == nil || s.cfg.BatchUploadConcurrency <= 0 {
		return 1
	}
	return s.cfg.BatchUploadConcurrency
}

// reserveAttempts bounds how many fresh keys putAsset tries when the ledger
// already holds the prepared one, e.g. a key issued by another instance.
const reserveAttempts = 5

// putAsset reserves a ledger entry for the object, then uploads it.
func (s *Service) putAsset(ctx context.Context, resource string, asset *domain.Asset, name string) (objectstore.Object, error) {
	obj, err := s.reserve(ctx, name)
	if err != nil {
		return objectstore.Object{}, err
	}

	start := s.now()
	if err := s.objects.Upload(ctx, obj, asset.ContentType, asset.Data); err != nil {
		mapped := objectError(err, name)
		s.metrics.ObserveUpload(resource, string(KindOf(mapped)), len(asset.Data), s.now().Sub(start))
		s.logger.Error("object upload failed", "resource", resource, "key", obj.Key, "error", err)
		return objectstore.Object{}, mapped
	}
	s.metrics.ObserveUpload(resource, "ok", len(asset.Data), s.now().Sub(start))
	s.logger.Debug("object uploaded", "resource", resource, "key", obj.Key, "bytes", len(asset.Data))
	return obj, nil
}

// reserve prepares a key for name and records it in the ledger, asking for
// a new key while the ledger reports the prepared one as taken.
func (s *Service) reserve(ctx context.Context, name string) (objectstore.Object, error) {
	var err error
	for attempt := 0; attempt < reserveAttempts; attempt++ {
		obj := s.objects.Prepare(name)
		if _, err = s.ledger.Reserve(ctx, obj.Key, obj.URL); err == nil {
			return obj, nil
		}
		if !errors.Is(err, store.ErrKeyTaken) {
			break
		}
		s.logger.Warn("object key collision", "key", obj.Key, "attempt", attempt+1)
	}
	return objectstore.Object{}, newError(KindPersistenceFailed, err, "could not reserve %s", name)
}

// link marks committed objects as referenced. A failure leaves the entries
// pending; the reconcile sweep re-checks references before deleting.
func (s *Service) link(ctx context.Context, objs []objectstore.Object) {
	if len(objs) == 0 {
		return
	}
	keys := make([]string, len(objs))
	for i, o := range objs {
		keys[i] = o.Key
	}
	if err := s.ledger.MarkLinked(ctx, keys); err != nil {
		s.logger.Warn("ledger link failed", "keys", keys, "error", err)
	}
}

// orphan marks URLs no longer referenced by any row.
func (s *Service) orphan(ctx context.Context, urls []string) {
	if len(urls) == 0 {
		return
	}
	if err := s.ledger.MarkOrphaned(ctx, urls); err != nil {
		s.logger.Warn("ledger orphan failed", "urls", urls, "error", err)
	}
}

type noopLedger struct{}

func (noopLedger) Reserve(context.Context, string, string) (uuid.UUID, error) {
	return uuid.New(), nil
}
func (noopLedger) MarkLinked(context.Context, []string) error   { return nil }
func (noopLedger) MarkOrphaned(context.Context, []string) error { return nil }
func (noopLedger) Reclaimable(context.Context, time.Time, int) ([]domain.LedgerEntry, error) {
	return nil, nil
}
func (noopLedger) MarkDeleted(context.Context, []uuid.UUID) error { return nil }

// toInt64 converts a generated key as returned by the gateway.
func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case json.Number:
		return n.Int64()
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected key type %T", v)
	}
}
