package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"

	"trivia-backend/internal/catalog"
	"trivia-backend/internal/domain"
	"trivia-backend/internal/upload"
)

const (
	multipartMemory        = 32 << 20
	formOverhead           = 1 << 20
	defaultMaxRequestBytes = 256 << 20
)

// decode collects scalar fields from the multipart form, urlencoded form or
// JSON body, then from the query string, and reads every file sent under a
// field the resource knows. A file above its field ceiling is rejected here,
// before it is read into memory.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, res *catalog.Resource) (upload.Request, error) {
	req := upload.Request{
		Fields: make(map[string]string),
		Files:  make(map[string][]*domain.Asset),
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.bodyLimit(res))

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return req, bodyError(err)
		}
		defer r.MultipartForm.RemoveAll()
		for k, vs := range r.MultipartForm.Value {
			if len(vs) > 0 {
				req.Fields[k] = vs[0]
			}
		}
		for field, headers := range r.MultipartForm.File {
			ceiling, ok := fieldCeiling(res, field)
			if !ok {
				continue
			}
			for _, fh := range headers {
				asset, err := readFile(field, fh, ceiling)
				if err != nil {
					return req, err
				}
				req.Files[field] = append(req.Files[field], asset)
			}
		}
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return req, bodyError(err)
		}
		for k, vs := range r.PostForm {
			if len(vs) > 0 {
				req.Fields[k] = vs[0]
			}
		}
	case "application/json":
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		var body map[string]any
		if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			return req, bodyError(err)
		}
		for k, v := range body {
			if s, ok := scalar(v); ok {
				req.Fields[k] = s
			}
		}
	}

	for k, vs := range r.URL.Query() {
		if _, ok := req.Fields[k]; !ok && len(vs) > 0 {
			req.Fields[k] = vs[0]
		}
	}
	return req, nil
}

// bodyLimit bounds the whole request body by the files the resource can
// legitimately receive, capped by the configured request ceiling.
func (h *Handler) bodyLimit(res *catalog.Resource) int64 {
	limit := int64(formOverhead)
	for _, a := range res.Assets {
		limit += a.MaxBytes
	}
	if res.Batch != nil {
		limit += int64(h.maxTuples()) * int64(len(res.Batch.Roles())) * res.Batch.MaxBytes
	}
	return min(limit, h.maxRequestBytes())
}

func (h *Handler) maxRequestBytes() int64 {
	if h.cfg == nil || h.cfg.MaxRequestBytes <= 0 {
		return defaultMaxRequestBytes
	}
	return h.cfg.MaxRequestBytes
}

func (h *Handler) maxTuples() int {
	if h.cfg == nil || h.cfg.BatchMaxTuples <= 0 {
		return 200
	}
	return h.cfg.BatchMaxTuples
}

// fieldCeiling returns the size limit of a multipart file field, or false when
// the resource does not accept files under that name.
func fieldCeiling(res *catalog.Resource, field string) (int64, bool) {
	if a, ok := res.Asset(field); ok {
		return a.MaxBytes, true
	}
	if res.Batch != nil {
		for _, role := range res.Batch.Roles() {
			if role.FormField == field || role.UpdateField == field {
				return res.Batch.MaxBytes, true
			}
		}
	}
	return 0, false
}

func readFile(field string, fh *multipart.FileHeader, ceiling int64) (*domain.Asset, error) {
	if ceiling > 0 && fh.Size > ceiling {
		return nil, &upload.Error{
			Kind:    upload.KindAssetTooLarge,
			Message: fmt.Sprintf("file %s exceeds %d bytes", field, ceiling),
		}
	}
	f, err := fh.Open()
	if err != nil {
		return nil, &upload.Error{Kind: upload.KindInvalidField, Message: "unreadable file " + field, Err: err}
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, &upload.Error{Kind: upload.KindInvalidField, Message: "unreadable file " + field, Err: err}
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mimetype.Detect(data).String()
	}
	return &domain.Asset{Filename: fh.Filename, ContentType: contentType, Data: data}, nil
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &upload.Error{
			Kind:    upload.KindAssetTooLarge,
			Message: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			Err:     err,
		}
	}
	return &upload.Error{Kind: upload.KindInvalidField, Message: "malformed request body", Err: err}
}

func scalar(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// identifier resolves a record id from the {id} path segment, then from the
// named fields, then from a generic "id" field.
func identifier(r *http.Request, req upload.Request, columns ...string) string {
	if id := chi.URLParam(r, "id"); id != "" {
		return id
	}
	for _, c := range columns {
		if v := req.Fields[c]; v != "" {
			return v
		}
	}
	return req.Fields["id"]
}
