package store

import (
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSelectOrdersFilterColumns(t *testing.T) {
	query, args, err := buildSelect("respuestas_area", Filter{"id_pregunta": 7, "estado": "A"}, []Order{{Column: "id_respuesta"}})
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "respuestas_area" WHERE "estado" = $1 AND "id_pregunta" = $2 ORDER BY "id_respuesta"`, query)
	assert.Equal(t, []any{"A", 7}, args)
}

func TestBuildSelectDescending(t *testing.T) {
	query, args, err := buildSelect("reloj", nil, []Order{{Column: "id_reloj", Desc: true}})
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "reloj" ORDER BY "id_reloj" DESC`, query)
	assert.Empty(t, args)
}

func TestBuildInsert(t *testing.T) {
	query, err := buildInsert("areas", []string{"nombre_area", "img_area"}, []any{"Historia", "https://x/y.png"})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "areas" ("nombre_area", "img_area") VALUES ($1, $2) RETURNING *`, query)
}

func TestBuildInsertRejectsMismatch(t *testing.T) {
	_, err := buildInsert("areas", []string{"nombre_area"}, nil)
	require.Error(t, err)

	_, err = buildInsert("areas", nil, nil)
	require.ErrorIs(t, err, ErrEmptyWrite)
}

func TestBuildUpdateNumbersAssignmentsBeforeFilter(t *testing.T) {
	query, args, err := buildUpdate("areas", map[string]any{"nombre_area": "Arte", "img_area": "u"}, Filter{"id_area": 3})
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "areas" SET "img_area" = $1, "nombre_area" = $2 WHERE "id_area" = $3 RETURNING *`, query)
	assert.Equal(t, []any{"u", "Arte", 3}, args)
}

func TestBuildDeleteAndExists(t *testing.T) {
	query, args, err := buildDelete("trivia", Filter{"id_modulo": 2})
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "trivia" WHERE "id_modulo" = $1 RETURNING *`, query)
	assert.Equal(t, []any{2}, args)

	query, err = buildExists("areas", "id_area")
	require.NoError(t, err)
	assert.Equal(t, `SELECT EXISTS (SELECT 1 FROM "areas" WHERE "id_area" = $1)`, query)
}

func TestIdentifiersAreValidated(t *testing.T) {
	_, _, err := buildSelect("areas; DROP TABLE areas", nil, nil)
	require.ErrorIs(t, err, ErrInvalidIdentifier)

	_, _, err = buildSelect("areas", Filter{`id" OR 1=1`: 1}, nil)
	require.ErrorIs(t, err, ErrInvalidIdentifier)

	_, err = buildExists("areas", "Id_Area")
	require.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestNormalizeValue(t *testing.T) {
	assert.Equal(t, "00:01:30", normalizeValue(pgtype.Interval{Microseconds: 90 * usPerSecond, Valid: true}))
	assert.Equal(t, "25:00:00", normalizeValue(pgtype.Interval{Days: 1, Microseconds: 3600 * usPerSecond, Valid: true}))
	assert.Equal(t, "13:05:09", normalizeValue(pgtype.Time{Microseconds: (13*3600 + 5*60 + 9) * usPerSecond, Valid: true}))
	assert.Nil(t, normalizeValue(pgtype.Time{}))
	assert.Equal(t, int32(4), normalizeValue(int32(4)))
}
