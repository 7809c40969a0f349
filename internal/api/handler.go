package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trivia-backend/internal/catalog"
	"trivia-backend/internal/config"
	"trivia-backend/internal/logging"
	"trivia-backend/internal/upload"
)

// Handler wires HTTP routes to the upload service.
type Handler struct {
	cfg      *config.Config
	cat      *catalog.Catalog
	svc      *upload.Service
	logger   *slog.Logger
	gatherer prometheus.Gatherer
	ping     func(context.Context) error
	files    http.Handler
}

// Option customises a Handler.
type Option func(*Handler)

// WithMetrics exposes g on GET /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(h *Handler) { h.gatherer = g }
}

// WithHealthCheck makes /healthz report 503 when ping fails.
func WithHealthCheck(ping func(context.Context) error) Option {
	return func(h *Handler) { h.ping = ping }
}

// WithFiles serves the directory at root under /files/.
func WithFiles(root string) Option {
	return func(h *Handler) { h.files = http.FileServer(http.Dir(root)) }
}

// NewHandler creates a Handler instance.
func NewHandler(cfg *config.Config, cat *catalog.Catalog, svc *upload.Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{cfg: cfg, cat: cat, svc: svc, logger: logging.WithComponent(logger, "api")}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router returns a configured chi router.
func (h *Handler) Router() http.Handler {
	origins := []string{"*"}
	if h.cfg != nil && len(h.cfg.AllowedOrigins) > 0 {
		origins = h.cfg.AllowedOrigins
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.handleHealth)
	if h.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
	if h.files != nil {
		r.Handle("/files/*", http.StripPrefix("/files/", h.files))
	}

	r.Route("/api", func(r chi.Router) {
		for _, res := range h.cat.Resources() {
			r.Route("/"+res.Route, func(r chi.Router) {
				h.mount(r, res)
			})
		}
	})
	return r
}

// mount registers the endpoints a resource supports.
func (h *Handler) mount(r chi.Router, res *catalog.Resource) {
	if res.Tree {
		r.Get("/get", h.handleListTrees(res))
		r.Get("/get/{id}", h.handleGetTree(res))
		for _, p := range []string{"/update", "/update/{id}"} {
			r.Put(p, h.handleUpdateTree(res))
			r.Patch(p, h.handleUpdateTree(res))
		}
		r.Delete("/delete-all", h.handleDeleteTree(res))
		r.Delete("/delete-all/{id}", h.handleDeleteTree(res))
	}
	if res.Batch != nil {
		r.Post("/add-batch", h.handleAddBatch(res))
	}
	if res.Ops.Has(catalog.OpAdd) {
		r.Post("/add", h.handleCreate(res))
	}
	if res.Ops.Has(catalog.OpList) {
		r.Get("/get", h.handleList(res))
	}
	if res.Ops.Has(catalog.OpGet) {
		r.Get("/get/{id}", h.handleGet(res))
		for _, p := range []string{"/getById", "/getById/{id}"} {
			r.Get(p, h.handleGet(res))
			r.Post(p, h.handleGet(res))
		}
	}
	for _, view := range res.Joins {
		r.Get("/"+view.Route, h.handleListJoined(res, view))
	}
	for name, column := range res.Filters {
		handler := h.handleListBy(res, column)
		r.Get("/"+name, handler)
		r.Post("/"+name, handler)
		r.Get("/"+name+"/{id}", handler)
	}
	if res.Ops.Has(catalog.OpUpdate) {
		for _, p := range []string{"/update", "/update/{id}"} {
			r.Put(p, h.handleUpdate(res))
			r.Patch(p, h.handleUpdate(res))
		}
	}
	if res.Ops.Has(catalog.OpDelete) {
		r.Delete("/delete", h.handleDelete(res))
		r.Delete("/delete/{id}", h.handleDelete(res))
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		if err := h.ping(r.Context()); err != nil {
			h.log(r).Error("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleCreate(res *catalog.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := h.decode(w, r, res)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		row, created, err := h.svc.Create(r.Context(), res, req)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		writeJSON(w, status, row)
	}
}

func (h *Handler) handleList(res *catalog.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := h.svc.List(r.Context(), res)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

func (h *Handler) handleGet(res *catalog.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := h.decode(w, r, res)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		row, err := h.svc.Get(r.Context(), res, identifier(r, req, res.Key))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, row)
	}
}

func (h *Handler) handleListBy(res *catalog.Resource, column string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := h.decode(w, r, res)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		rows, err := h.svc.ListBy(r.Context(), res, column, identifier(r, req, column))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

func (h *Handler) handleUpdate(res *catalog.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := h.decode(w, r, res)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		row, err := h.svc.Update(r.Context(), res, identifier(r, req, res.Key), req)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, row)
	}
}

func (h *Handler) handleDelete(res *catalog.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := h.decode(w, r, res)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		result, err := h.svc.Delete(r.Context(), res, identifier(r, req, res.DeleteColumn(), res.Key))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func (h *Handler) handleAddBatch(res *catalog.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := h.decode(w, r, res)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		result, err := h.svc.LinkBatch(r.Context(), res, req)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, result)
	}
}

func (h *Handler) handleListTrees(res *catalog.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views, err := h.svc.ListQuestionTrees(r.Context(), res)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, views)
	}
}

func (h *Handler) handleListJoined(res *catalog.Resource, view catalog.JoinView) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := h.svc.ListJoined(r.Context(), res, view)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

func (h *Handler) handleGetTree(res *catalog.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := h.svc.QuestionTree(r.Context(), res, chi.URLParam(r, "id"))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func (h *Handler) handleUpdateTree(res *catalog.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := h.decode(w, r, res)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		view, err := h.svc.UpdateQuestionTree(r.Context(), res, identifier(r, req, res.Key), req)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func (h *Handler) handleDeleteTree(res *catalog.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := h.decode(w, r, res)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		result, err := h.svc.DeleteQuestionTree(r.Context(), res, identifier(r, req, res.Key))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func (h *Handler) log(r *http.Request) *slog.Logger {
	return logging.FromContext(r.Context(), h.logger)
}
