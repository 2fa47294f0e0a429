package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/fileshare/internal/common"
)

// ErrorResponse is the JSON body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps service errors to HTTP status codes. Integrity failures are
// reported as 500 without detail.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, common.ErrorInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrorFileNotFound), errors.Is(err, common.ErrorNoVersions):
		return http.StatusNotFound
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, common.ErrorFileDeleted):
		return http.StatusGone
	case errors.Is(err, common.ErrTokenExpired), errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (h *FileHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)

	msg := err.Error()
	switch {
	case code == http.StatusRequestEntityTooLarge:
		msg = "upload too large"
	case code >= http.StatusInternalServerError:
		h.logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "internal error"
	}

	writeJSONStatus(w, code, ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
