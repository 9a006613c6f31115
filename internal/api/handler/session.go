package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/iconidentify/xreply/internal/domain"
	"github.com/iconidentify/xreply/internal/service"
)

// maxImportSize bounds an uploaded session file.
const maxImportSize = 10 << 20

// passphraseHeader carries the export/import passphrase so it stays out
// of access logs.
const passphraseHeader = "X-Passphrase"

// SessionHandler serves the per-user extraction and generation session.
type SessionHandler struct {
	sessions *service.SessionManager
	logger   *slog.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(sessions *service.SessionManager, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// ExtractResponse is returned by a synchronous extraction.
type ExtractResponse struct {
	Tweets  []domain.Tweet         `json:"tweets"`
	Session domain.SessionSnapshot `json:"session"`
}

// GenerateResponse is returned by a synchronous generation.
type GenerateResponse struct {
	Comments []domain.GeneratedComment `json:"comments"`
	Session  domain.SessionSnapshot    `json:"session"`
}

// ReplyIntentResponse carries the reply composer URL.
type ReplyIntentResponse struct {
	URL string `json:"url"`
}

// ImportResponse reports what an import restored.
type ImportResponse struct {
	ExportDate string                 `json:"exportDate"`
	Session    domain.SessionSnapshot `json:"session"`
}

// Get handles GET /api/v1/session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Get(r.Context(), userID(r))
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// UpdateSettings handles PUT /api/v1/session/settings
func (h *SessionHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Get(r.Context(), userID(r))

	settings := s.Settings()
	if err := decodeOptional(r, &settings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.UpdateSettings(r.Context(), settings); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// Extract handles POST /api/v1/session/extract
// The run continues in the background and the response is 202 unless
// ?wait=true is given.
func (h *SessionHandler) Extract(w http.ResponseWriter, r *http.Request) {
	var req service.ExtractRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s := h.sessions.Get(r.Context(), userID(r))

	if r.URL.Query().Get("wait") == "true" {
		tweets, err := s.Extract(r.Context(), req)
		if err != nil {
			writeServiceError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, ExtractResponse{Tweets: tweets, Session: s.Snapshot()})
		return
	}

	if err := s.StartExtract(r.Context(), req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.Snapshot())
}

// Generate handles POST /api/v1/session/generate
func (h *SessionHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req service.GenerateRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s := h.sessions.Get(r.Context(), userID(r))

	if r.URL.Query().Get("wait") == "true" {
		comments, err := s.Generate(r.Context(), req)
		if err != nil {
			writeServiceError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, GenerateResponse{Comments: comments, Session: s.Snapshot()})
		return
	}

	if err := s.StartGenerate(r.Context(), req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.Snapshot())
}

// Reset handles POST /api/v1/session/reset
func (h *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Get(r.Context(), userID(r))
	s.Reset()
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// ToggleComment handles POST /api/v1/session/comments/{index}/toggle
func (h *SessionHandler) ToggleComment(w http.ResponseWriter, r *http.Request) {
	i, ok := indexParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "index must be an integer")
		return
	}

	c, err := h.sessions.Get(r.Context(), userID(r)).ToggleExpanded(i)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ReplyIntent handles GET /api/v1/session/comments/{index}/reply-intent
// With ?redirect=true the client is sent straight to the composer.
func (h *SessionHandler) ReplyIntent(w http.ResponseWriter, r *http.Request) {
	i, ok := indexParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "index must be an integer")
		return
	}

	url, err := h.sessions.Get(r.Context(), userID(r)).ReplyIntent(i)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if r.URL.Query().Get("redirect") == "true" {
		http.Redirect(w, r, url, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, ReplyIntentResponse{URL: url})
}

// Export handles GET /api/v1/session/export
// A passphrase in the X-Passphrase header encrypts the file.
func (h *SessionHandler) Export(w http.ResponseWriter, r *http.Request) {
	passphrase := r.Header.Get(passphraseHeader)
	data, filename, err := h.sessions.Get(r.Context(), userID(r)).Export(passphrase)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	contentType := "application/json"
	if passphrase != "" {
		contentType = "application/octet-stream"
		filename += ".enc"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Import handles POST /api/v1/session/import
// The body is the exported file, plain or encrypted.
func (h *SessionHandler) Import(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "request body is empty")
		return
	}

	s := h.sessions.Get(r.Context(), userID(r))
	artifact, err := s.Import(r.Context(), data, r.Header.Get(passphraseHeader))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ImportResponse{ExportDate: artifact.ExportDate, Session: s.Snapshot()})
}
