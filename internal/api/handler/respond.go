package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	mw "github.com/iconidentify/xreply/internal/api/middleware"
	"github.com/iconidentify/xreply/internal/domain"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	// Invalid lists every offending value of a validation failure.
	Invalid []string `json:"invalid,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// statusFor maps a service error to its HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrMissingCredential):
		return http.StatusPreconditionFailed, "missing_credential"
	case errors.Is(err, domain.ErrEmptyInput):
		return http.StatusBadRequest, "empty_input"
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, domain.ErrBusy):
		return http.StatusConflict, "busy"
	case errors.Is(err, domain.ErrSuperseded):
		return http.StatusConflict, "superseded"
	case errors.Is(err, domain.ErrDuplicatePrompt):
		return http.StatusConflict, "duplicate_prompt"
	case errors.Is(err, domain.ErrIndexOutOfRange):
		return http.StatusNotFound, "index_out_of_range"
	case errors.Is(err, domain.ErrPromptNotFound):
		return http.StatusNotFound, "prompt_not_found"
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, domain.ErrNetwork):
		return http.StatusBadGateway, "network"
	case errors.Is(err, domain.ErrUpstream):
		return http.StatusBadGateway, "upstream"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "cancelled"
	}
	return http.StatusInternalServerError, "internal"
}

// writeServiceError renders err with the status its kind maps to. Unknown
// errors are logged and hidden from the client.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
		writeJSON(w, status, ErrorResponse{Error: "internal server error", Code: code})
		return
	}

	resp := ErrorResponse{Error: err.Error(), Code: code}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		resp.Invalid = verr.Invalid
	}
	writeJSON(w, status, resp)
}

func userID(r *http.Request) string {
	return mw.UserIDFromContext(r.Context())
}

func indexParam(r *http.Request) (int, bool) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	return i, err == nil
}

// decodeOptional decodes a JSON body into v. An empty body leaves v as is.
func decodeOptional(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
