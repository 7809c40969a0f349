package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"trivia-backend/internal/upload"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// statusFor maps an upload taxonomy kind to an HTTP status.
func statusFor(err error) int {
	switch upload.KindOf(err) {
	case upload.KindMissingField, upload.KindMissingAsset, upload.KindInvalidField,
		upload.KindAssetTooLarge, upload.KindReferenceNotFound, upload.KindBatchArityMismatch:
		return http.StatusBadRequest
	case upload.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// messageFor returns the client-facing message of err. Unclassified errors
// never leak their text.
func messageFor(err error) string {
	var e *upload.Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "internal server error"
}

// fail writes err and logs server-side failures.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log(r).Error("request failed", "error", err)
	}
	writeError(w, status, messageFor(err))
}
