package reconcile

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trivia-backend/internal/catalog"
	"trivia-backend/internal/config"
	"trivia-backend/internal/domain"
	"trivia-backend/internal/logging"
	"trivia-backend/internal/metrics"
	"trivia-backend/internal/testsupport"
)

type sweepFixture struct {
	sweeper *Sweeper
	ledger  *testsupport.LedgerStub
	gw      *testsupport.GatewayStub
	backend *testsupport.BackendStub
	reg     *prometheus.Registry
	now     time.Time
}

func newSweepFixture(t *testing.T) *sweepFixture {
	t.Helper()
	cat := catalog.Default()
	f := &sweepFixture{
		ledger:  testsupport.NewLedgerStub(),
		gw:      testsupport.NewGatewayStub(cat),
		backend: testsupport.NewBackendStub("trivia-test"),
		reg:     prometheus.NewRegistry(),
		now:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	cfg := &config.Config{ReconcileGrace: time.Hour}
	f.sweeper = NewSweeper(cfg, f.ledger, f.gw, f.backend, cat, metrics.New(f.reg), logging.Discard())
	f.sweeper.now = func() time.Time { return f.now }
	return f
}

// stage uploads key to the backend and reserves it in the ledger at the given
// age.
func (f *sweepFixture) stage(t *testing.T, key string, age time.Duration) string {
	t.Helper()
	f.ledger.SetClock(func() time.Time { return f.now.Add(-age) })
	url := f.backend.PublicURL(key)
	require.NoError(t, f.backend.Put(context.Background(), key, "image/png", []byte("x")))
	_, err := f.ledger.Reserve(context.Background(), key, url)
	require.NoError(t, err)
	return url
}

func TestSweepDeletesOrphanedAndStalePending(t *testing.T) {
	f := newSweepFixture(t)
	ctx := context.Background()

	orphanURL := f.stage(t, "uploads/1_old.png", time.Minute)
	require.NoError(t, f.ledger.MarkOrphaned(ctx, []string{orphanURL}))
	f.stage(t, "uploads/2_stale.png", 2*time.Hour)
	f.stage(t, "uploads/3_fresh.png", 10*time.Minute)
	f.stage(t, "uploads/4_linked.png", 3*time.Hour)
	require.NoError(t, f.ledger.MarkLinked(ctx, []string{"uploads/4_linked.png"}))

	n, err := f.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.False(t, f.backend.Has("uploads/1_old.png"))
	assert.False(t, f.backend.Has("uploads/2_stale.png"))
	assert.True(t, f.backend.Has("uploads/3_fresh.png"))
	assert.True(t, f.backend.Has("uploads/4_linked.png"))

	status, _ := f.ledger.Status("uploads/1_old.png")
	assert.Equal(t, domain.LedgerDeleted, status)
	status, _ = f.ledger.Status("uploads/3_fresh.png")
	assert.Equal(t, domain.LedgerPending, status)

	expected := `
# HELP trivia_reconcile_objects_reclaimed_total Unreferenced objects deleted by the reconcile sweep.
# TYPE trivia_reconcile_objects_reclaimed_total counter
trivia_reconcile_objects_reclaimed_total 2
`
	require.NoError(t, testutil.GatherAndCompare(f.reg, strings.NewReader(expected), "trivia_reconcile_objects_reclaimed_total"))
}

func TestSweepRelinksReferencedObjects(t *testing.T) {
	f := newSweepFixture(t)
	url := f.stage(t, "uploads/5_kept.png", 2*time.Hour)
	f.gw.Seed("respuestas_area", domain.Row{"id_pregunta": int64(1), "url_img_respuesta": url})

	n, err := f.sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, f.backend.Has("uploads/5_kept.png"))
	assert.Empty(t, f.backend.Deletes())

	status, _ := f.ledger.Status("uploads/5_kept.png")
	assert.Equal(t, domain.LedgerLinked, status)
}

func TestSweepAbortsWhenReferenceCheckFails(t *testing.T) {
	f := newSweepFixture(t)
	f.stage(t, "uploads/6_unknown.png", 2*time.Hour)
	f.sweeper.refs = append([]catalog.Ref{{Table: "no_such_table", Column: "url"}}, f.sweeper.refs...)

	_, err := f.sweeper.Sweep(context.Background())
	require.Error(t, err)
	assert.True(t, f.backend.Has("uploads/6_unknown.png"))
}

func TestSweepNothingToDo(t *testing.T) {
	f := newSweepFixture(t)
	n, err := f.sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAssetRefsCoverBatchFollowers(t *testing.T) {
	refs := assetRefs(catalog.Default())
	assert.Contains(t, refs, catalog.Ref{Table: "areas", Column: "img_area"})
	assert.Contains(t, refs, catalog.Ref{Table: "preguntas_area", Column: "url_img_pregunta"})
	assert.Contains(t, refs, catalog.Ref{Table: "explicaciones_area", Column: "url_img_explicacion"})
	assert.Contains(t, refs, catalog.Ref{Table: "preguntas_desafio", Column: "respuesta_correcta_url"})

	seen := make(map[catalog.Ref]bool)
	for _, r := range refs {
		assert.Falsef(t, seen[r], "duplicate ref %v", r)
		seen[r] = true
	}
}

func TestScheduleRejectsInvalidSpec(t *testing.T) {
	f := newSweepFixture(t)
	_, err := Schedule("every now and then", f.sweeper, time.Second, logging.Discard())
	require.Error(t, err)

	c, err := Schedule("@every 1h", f.sweeper, time.Second, logging.Discard())
	require.NoError(t, err)
	<-c.Stop().Done()
}
