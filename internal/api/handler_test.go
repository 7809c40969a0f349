package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trivia-backend/internal/catalog"
	"trivia-backend/internal/config"
	"trivia-backend/internal/domain"
	"trivia-backend/internal/logging"
	"trivia-backend/internal/metrics"
	"trivia-backend/internal/objectstore"
	"trivia-backend/internal/testsupport"
	"trivia-backend/internal/upload"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type testServer struct {
	router  http.Handler
	gw      *testsupport.GatewayStub
	backend *testsupport.BackendStub
}

func newTestServer(t *testing.T, opts ...Option) *testServer {
	t.Helper()
	return newTestServerWith(t, &config.Config{BatchMaxTuples: 200, BatchUploadConcurrency: 2}, opts...)
}

func newTestServerWith(t *testing.T, cfg *config.Config, opts ...Option) *testServer {
	t.Helper()
	cat := catalog.Default()
	gw := testsupport.NewGatewayStub(cat)
	backend := testsupport.NewBackendStub("trivia-test")
	objects := objectstore.New(backend, "uploads", objectstore.WithClock(func() time.Time {
		return time.UnixMilli(1700000000000)
	}))
	reg := prometheus.NewRegistry()
	svc := upload.NewService(cfg, gw, testsupport.NewLedgerStub(), objects, metrics.New(reg), logging.Discard())
	opts = append([]Option{WithMetrics(reg)}, opts...)
	h := NewHandler(cfg, cat, svc, logging.Discard(), opts...)
	return &testServer{router: h.Router(), gw: gw, backend: backend}
}

func (s *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

type filePart struct {
	field, filename string
	data            []byte
}

func multipartRequest(t *testing.T, method, target string, fields map[string]string, files ...filePart) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.filename)
		require.NoError(t, err)
		_, err = fw.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func png(size int) []byte {
	data := make([]byte, size)
	copy(data, pngHeader)
	return data
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestAddAreaThenGetReturnsSameURL(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, multipartRequest(t, http.MethodPost, "/api/areas/add",
		map[string]string{"nombre_area": "Historia"},
		filePart{field: "imagen", filename: "Historia.png", data: png(2 << 20)}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "Historia", created["nombre_area"])
	imgURL, _ := created["img_area"].(string)
	assert.Regexp(t, regexp.MustCompile(`^https://storage\.googleapis\.com/trivia-test/uploads/\d+_Historia\.png$`), imgURL)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/areas/get/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	fetched := decodeBody[map[string]any](t, rec)
	assert.Equal(t, imgURL, fetched["img_area"])
}

func TestAddRejectsOversizedFile(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, multipartRequest(t, http.MethodPost, "/api/areas/add",
		map[string]string{"nombre_area": "Historia"},
		filePart{field: "imagen", filename: "big.png", data: png(6 << 20)}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[map[string]string](t, rec)["error"], "exceeds")
	assert.Zero(t, s.backend.PutCount())
	assert.Empty(t, s.gw.Rows("areas"))
}

func TestAddMissingFieldAndFile(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, multipartRequest(t, http.MethodPost, "/api/areas/add",
		map[string]string{"nombre_area": "Historia"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, jsonRequest(http.MethodPost, "/api/modulo/add", `{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing required field nombre_modulo", decodeBody[map[string]string](t, rec)["error"])
}

func TestJSONCreateAndLookupByBody(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, jsonRequest(http.MethodPost, "/api/ruletas/add", `{"id_configuracion": 1, "tipo_ruleta": "areas", "tiempo": 90}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "parent configuration does not exist yet")

	s.gw.Seed("configuracion_trivia", domain.Row{"id_trivia": int64(1), "nombre_configuracion": "base"})
	rec = s.do(t, jsonRequest(http.MethodPost, "/api/ruletas/add", `{"id_configuracion": 1, "tipo_ruleta": "areas", "tiempo": 90}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "00:01:30", decodeBody[map[string]any](t, rec)["tiempo"])

	rec = s.do(t, jsonRequest(http.MethodPost, "/api/ruletas/getById", `{"id_ruletas": 1}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "areas", decodeBody[map[string]any](t, rec)["tipo_ruleta"])

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/ruletas/getById?id=1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/ruletas/get/2", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateKeepsURLWithoutNewFile(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, multipartRequest(t, http.MethodPost, "/api/areas/add",
		map[string]string{"nombre_area": "Ciencias"},
		filePart{field: "imagen", filename: "img1.png", data: png(64)}))
	require.Equal(t, http.StatusCreated, rec.Code)
	original := decodeBody[map[string]any](t, rec)["img_area"]

	rec = s.do(t, multipartRequest(t, http.MethodPut, "/api/areas/update",
		map[string]string{"id_area": "1", "nombre_area": "Ciencias2"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "Ciencias2", updated["nombre_area"])
	assert.Equal(t, original, updated["img_area"])
}

func TestFilterAndDeleteRoutes(t *testing.T) {
	s := newTestServer(t)
	for _, modulo := range []string{"1", "1", "2"} {
		rec := s.do(t, jsonRequest(http.MethodPost, "/api/trivia/add", `{"id_modulo": `+modulo+`}`))
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/trivia/getByModulo/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]map[string]any](t, rec), 2)

	rec = s.do(t, jsonRequest(http.MethodPost, "/api/trivia/getByModulo", `{"id_modulo": 9}`))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, httptest.NewRequest(http.MethodDelete, "/api/trivia/delete/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	result := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "trivia deleted", result["message"])
	assert.Len(t, result["deleted"], 2)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/trivia/get", nil))
	assert.Len(t, decodeBody[[]map[string]any](t, rec), 1)
}

func TestAddBatchAndQuestionTree(t *testing.T) {
	s := newTestServer(t)
	s.gw.Seed("areas", domain.Row{"nombre_area": "Historia", "img_area": "https://example.test/a.png"})

	files := []filePart{
		{field: "preguntas", filename: "q1.png", data: png(32)},
		{field: "preguntas", filename: "q2.jpg", data: png(32)},
		{field: "respuestas", filename: "r1.png", data: png(32)},
		{field: "respuestas", filename: "r2.jpg", data: png(32)},
		{field: "explicaciones", filename: "e1.png", data: png(32)},
		{field: "explicaciones", filename: "e2.jpg", data: png(32)},
	}
	rec := s.do(t, multipartRequest(t, http.MethodPost, "/api/preguntas_area/add-batch",
		map[string]string{"id_area": "1"}, files...))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	result := decodeBody[domain.BatchResult](t, rec)
	assert.Equal(t, []int64{1, 2}, result.QuestionIDs)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/preguntas_area/get/2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeBody[map[string]any](t, rec)
	assert.True(t, strings.HasSuffix(view["respuesta"].(string), "_respuesta_002.jpg"))

	rec = s.do(t, httptest.NewRequest(http.MethodDelete, "/api/preguntas_area/delete-all/2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, s.gw.Rows("respuestas_area"), 1)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/preguntas_area/get", nil))
	assert.Len(t, decodeBody[[]map[string]any](t, rec), 1)
}

func TestBatchBodyIsCappedByRequestCeiling(t *testing.T) {
	s := newTestServerWith(t, &config.Config{BatchMaxTuples: 200, BatchUploadConcurrency: 2, MaxRequestBytes: 2 << 20})
	s.gw.Seed("areas", domain.Row{"nombre_area": "Historia"})

	rec := s.do(t, multipartRequest(t, http.MethodPost, "/api/preguntas_area/add-batch",
		map[string]string{"id_area": "1"},
		filePart{field: "preguntas", filename: "q1.png", data: png(1 << 20)},
		filePart{field: "respuestas", filename: "r1.png", data: png(1 << 20)},
		filePart{field: "explicaciones", filename: "e1.png", data: png(1 << 20)},
	))
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Zero(t, s.backend.PutCount())
	assert.Empty(t, s.gw.Rows("preguntas_area"))
}

func TestBodyLimit(t *testing.T) {
	cat := catalog.Default()
	batch, _ := cat.Lookup("preguntas_area")
	areas, _ := cat.Lookup("areas")

	h := &Handler{cfg: &config.Config{BatchMaxTuples: 200}}
	assert.Equal(t, int64(256<<20), h.bodyLimit(batch))
	assert.Equal(t, int64(formOverhead+5<<20), h.bodyLimit(areas))

	h = &Handler{cfg: &config.Config{BatchMaxTuples: 2, MaxRequestBytes: 1 << 30}}
	assert.Equal(t, int64(formOverhead+2*3*5<<20), h.bodyLimit(batch))
}

func TestQuestionsWithAnswers(t *testing.T) {
	s := newTestServer(t)
	s.gw.Seed("preguntas_publico", domain.Row{"id_configuracion": int64(1), "url_img_pregunta_publico": "https://example.test/q1.png"})
	s.gw.Seed("preguntas_publico", domain.Row{"id_configuracion": int64(1), "url_img_pregunta_publico": "https://example.test/q2.png"})
	s.gw.Seed("respuestas_publico", domain.Row{"id_configuracion": int64(1), "id_pregunta_publico": int64(1), "url_img_respuesta_publico": "https://example.test/r1.png"})
	s.gw.Seed("respuestas_publico", domain.Row{"id_configuracion": int64(1), "id_pregunta_publico": int64(1), "url_img_respuesta_publico": "https://example.test/r2.png"})

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/preguntas_publico/getWithAnswers", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rows := decodeBody[[]map[string]any](t, rec)
	require.Len(t, rows, 3)
	assert.Equal(t, map[string]any{
		"id_pregunta_publico": 1.0, "url_img_pregunta_publico": "https://example.test/q1.png",
		"id_respuesta_publico": 1.0, "url_img_respuesta_publico": "https://example.test/r1.png",
	}, rows[0])
	assert.Equal(t, "https://example.test/r2.png", rows[1]["url_img_respuesta_publico"])
	assert.Equal(t, map[string]any{
		"id_pregunta_publico": 2.0, "url_img_pregunta_publico": "https://example.test/q2.png",
		"id_respuesta_publico": nil, "url_img_respuesta_publico": nil,
	}, rows[2])
}

func TestAddBatchArityMismatch(t *testing.T) {
	s := newTestServer(t)
	s.gw.Seed("areas", domain.Row{"nombre_area": "Historia"})

	rec := s.do(t, multipartRequest(t, http.MethodPost, "/api/preguntas_area/add-batch",
		map[string]string{"id_area": "1"},
		filePart{field: "preguntas", filename: "q1.png", data: png(32)},
		filePart{field: "preguntas", filename: "q2.png", data: png(32)},
		filePart{field: "respuestas", filename: "r1.png", data: png(32)},
		filePart{field: "explicaciones", filename: "e1.png", data: png(32)},
	))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, s.backend.PutCount())
	assert.Empty(t, s.gw.Rows("preguntas_area"))
}

func TestUploadFailureReturns500(t *testing.T) {
	s := newTestServer(t)
	s.backend.FailPutOn(1)

	rec := s.do(t, multipartRequest(t, http.MethodPost, "/api/areas/add",
		map[string]string{"nombre_area": "Historia"},
		filePart{field: "imagen", filename: "a.png", data: png(64)}))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "could not upload a.png", decodeBody[map[string]string](t, rec)["error"])
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, WithHealthCheck(func(context.Context) error { return errors.New("db down") }))

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadFileSniffsContentType(t *testing.T) {
	req := multipartRequest(t, http.MethodPost, "/", nil,
		filePart{field: "imagen", filename: "noext", data: png(64)})
	require.NoError(t, req.ParseMultipartForm(multipartMemory))

	asset, err := readFile("imagen", req.MultipartForm.File["imagen"][0], 1<<20)
	require.NoError(t, err)
	assert.Equal(t, "image/png", asset.ContentType)
	assert.Len(t, asset.Data, 64)

	_, err = readFile("imagen", req.MultipartForm.File["imagen"][0], 10)
	require.ErrorIs(t, err, upload.ErrAssetTooLarge)
}

func TestStatusMapping(t *testing.T) {
	cases := map[upload.Kind]int{
		upload.KindMissingField:           http.StatusBadRequest,
		upload.KindAssetTooLarge:          http.StatusBadRequest,
		upload.KindReferenceNotFound:      http.StatusBadRequest,
		upload.KindBatchArityMismatch:     http.StatusBadRequest,
		upload.KindNotFound:               http.StatusNotFound,
		upload.KindUploadFailed:           http.StatusInternalServerError,
		upload.KindVisibilityChangeFailed: http.StatusInternalServerError,
		upload.KindPersistenceFailed:      http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equalf(t, want, statusFor(&upload.Error{Kind: kind}), "kind %s", kind)
	}
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
	assert.Equal(t, "internal server error", messageFor(errors.New("boom")))
}
