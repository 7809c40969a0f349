package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trivia-backend/internal/domain"
)

const integrationSchema = `
DROP TABLE IF EXISTS it_respuestas;
DROP TABLE IF EXISTS it_preguntas;
CREATE TABLE it_preguntas (
	id_pregunta      serial PRIMARY KEY,
	id_area          integer NOT NULL,
	url_img_pregunta text,
	tiempo           time,
	duracion         interval
);
CREATE TABLE it_respuestas (
	id_respuesta      serial PRIMARY KEY,
	id_pregunta       integer NOT NULL REFERENCES it_preguntas (id_pregunta),
	url_img_respuesta text
);
`

func integrationGateway(t *testing.T) *PostgresGateway {
	t.Helper()
	dsn := os.Getenv("TRIVIA_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TRIVIA_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	gw, err := NewPostgresGateway(ctx, dsn, 4)
	require.NoError(t, err)
	t.Cleanup(gw.Close)
	_, err = gw.Pool().Exec(ctx, integrationSchema)
	require.NoError(t, err)
	return gw
}

func TestPostgresGatewayCRUD(t *testing.T) {
	gw := integrationGateway(t)
	ctx := context.Background()

	row, err := gw.Write(ctx, "it_preguntas",
		[]string{"duracion", "id_area", "tiempo", "url_img_pregunta"},
		[]any{"90 seconds", int64(1), "13:05:09", "https://example.test/q.png"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), row["id_pregunta"])
	assert.Equal(t, "13:05:09", row["tiempo"])
	assert.Equal(t, "00:01:30", row["duracion"])

	exists, err := gw.Exists(ctx, "it_preguntas", "url_img_pregunta", "https://example.test/q.png")
	require.NoError(t, err)
	assert.True(t, exists)

	updated, err := gw.Update(ctx, "it_preguntas", map[string]any{"url_img_pregunta": "https://example.test/q2.png"}, Filter{"id_pregunta": 1})
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, "https://example.test/q2.png", updated[0]["url_img_pregunta"])

	rows, err := gw.Read(ctx, "it_preguntas", Filter{"id_area": 1}, Order{Column: "id_pregunta", Desc: true})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	deleted, err := gw.Delete(ctx, "it_preguntas", Filter{"id_pregunta": 1})
	require.NoError(t, err)
	assert.Len(t, deleted, 1)

	_, err = gw.Read(ctx, "it_preguntas; DROP TABLE x", nil)
	require.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestPostgresGatewayWithinTxRollsBack(t *testing.T) {
	gw := integrationGateway(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := gw.WithinTx(ctx, func(tx Gateway) error {
		q, err := tx.Write(ctx, "it_preguntas", []string{"id_area"}, []any{int64(1)})
		if err != nil {
			return err
		}
		if _, err := tx.Write(ctx, "it_respuestas", []string{"id_pregunta"}, []any{q["id_pregunta"]}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	rows, err := gw.Read(ctx, "it_preguntas", nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
	rows, err = gw.Read(ctx, "it_respuestas", nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestPostgresLedgerLifecycle(t *testing.T) {
	gw := integrationGateway(t)
	ctx := context.Background()
	ledger := NewPostgresLedger(gw.Pool())
	require.NoError(t, ledger.Migrate(ctx))

	key := "it/" + uuid.NewString() + ".png"
	url := "https://example.test/" + key
	id, err := ledger.Reserve(ctx, key, url)
	require.NoError(t, err)

	_, err = ledger.Reserve(ctx, key, url)
	require.ErrorIs(t, err, ErrKeyTaken)

	require.NoError(t, ledger.MarkLinked(ctx, []string{key}))
	entries, err := ledger.Reclaimable(ctx, time.Now().Add(time.Hour), 1000)
	require.NoError(t, err)
	assert.NotContains(t, keys(entries), key)

	require.NoError(t, ledger.MarkOrphaned(ctx, []string{url}))
	entries, err = ledger.Reclaimable(ctx, time.Now().Add(-time.Hour), 1000)
	require.NoError(t, err)
	assert.Contains(t, keys(entries), key)

	require.NoError(t, ledger.MarkDeleted(ctx, []uuid.UUID{id}))
	entries, err = ledger.Reclaimable(ctx, time.Now().Add(time.Hour), 1000)
	require.NoError(t, err)
	assert.NotContains(t, keys(entries), key)
}

func keys(entries []domain.LedgerEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ObjectKey
	}
	return out
}
