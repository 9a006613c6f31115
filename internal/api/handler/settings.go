package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iconidentify/xreply/internal/domain"
	"github.com/iconidentify/xreply/internal/service"
)

// SettingsHandler serves API keys and prompts.
type SettingsHandler struct {
	settings *service.SettingsService
	logger   *slog.Logger
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(settings *service.SettingsService, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{
		settings: settings,
		logger:   logger,
	}
}

// KeysResponse shows which keys are set without revealing them.
type KeysResponse struct {
	Apify     string `json:"apify"`
	OpenAI    string `json:"openai"`
	ApifySet  bool   `json:"apify_set"`
	OpenAISet bool   `json:"openai_set"`
}

func keysResponse(k domain.APIKeys) KeysResponse {
	masked := k.Masked()
	return KeysResponse{
		Apify:     masked.Apify,
		OpenAI:    masked.OpenAI,
		ApifySet:  k.Apify != "",
		OpenAISet: k.OpenAI != "",
	}
}

// PromptRequest is the body for creating or editing a prompt.
type PromptRequest struct {
	Name     string `json:"name"`
	Text     string `json:"text"`
	IsActive *bool  `json:"is_active,omitempty"`
}

// SavePromptResponse reports whether a new prompt was stored.
type SavePromptResponse struct {
	Prompt  domain.SavedPrompt `json:"prompt"`
	Created bool               `json:"created"`
	Message string             `json:"message,omitempty"`
}

// GetKeys handles GET /api/v1/settings/keys
func (h *SettingsHandler) GetKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.settings.APIKeys(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, keysResponse(keys))
}

// PutKeys handles PUT /api/v1/settings/keys
func (h *SettingsHandler) PutKeys(w http.ResponseWriter, r *http.Request) {
	var keys domain.APIKeys
	if err := json.NewDecoder(r.Body).Decode(&keys); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	uid := userID(r)
	if err := h.settings.SaveAPIKeys(r.Context(), uid, keys); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	saved, err := h.settings.APIKeys(r.Context(), uid)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, keysResponse(saved))
}

// ListPrompts handles GET /api/v1/settings/prompts
func (h *SettingsHandler) ListPrompts(w http.ResponseWriter, r *http.Request) {
	prompts, err := h.settings.ListPrompts(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if prompts == nil {
		prompts = []domain.SavedPrompt{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"prompts": prompts,
		"default": domain.DefaultPrompt,
	})
}

// SavePrompt handles POST /api/v1/settings/prompts
// Saving text that is already stored returns the existing prompt with 200.
func (h *SettingsHandler) SavePrompt(w http.ResponseWriter, r *http.Request) {
	var req PromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	prompt, created, err := h.settings.SavePrompt(r.Context(), userID(r), req.Name, req.Text)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if !created {
		writeJSON(w, http.StatusOK, SavePromptResponse{
			Prompt:  prompt,
			Message: "This prompt is already saved as " + prompt.Name,
		})
		return
	}
	writeJSON(w, http.StatusCreated, SavePromptResponse{Prompt: prompt, Created: true})
}

// DeletePrompt handles DELETE /api/v1/settings/prompts/{id}
func (h *SettingsHandler) DeletePrompt(w http.ResponseWriter, r *http.Request) {
	if err := h.settings.DeletePrompt(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListPublicPrompts handles GET /api/v1/prompts/public
func (h *SettingsHandler) ListPublicPrompts(w http.ResponseWriter, r *http.Request) {
	prompts, err := h.settings.ListPublicPrompts(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if prompts == nil {
		prompts = []domain.PublicPrompt{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"prompts": prompts})
}

// GetPublicPrompt handles GET /api/v1/prompts/public/{id}
func (h *SettingsHandler) GetPublicPrompt(w http.ResponseWriter, r *http.Request) {
	prompt, err := h.settings.GetPublicPrompt(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, prompt)
}

// CreatePublicPrompt handles POST /api/v1/prompts/public
func (h *SettingsHandler) CreatePublicPrompt(w http.ResponseWriter, r *http.Request) {
	var req PromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	prompt, err := h.settings.CreatePublicPrompt(r.Context(), userID(r), req.Name, req.Text)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, prompt)
}

// UpdatePublicPrompt handles PUT /api/v1/prompts/public/{id}
// Omitted fields keep their current value.
func (h *SettingsHandler) UpdatePublicPrompt(w http.ResponseWriter, r *http.Request) {
	var req PromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	prompt, err := h.settings.GetPublicPrompt(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if req.Name != "" {
		prompt.Name = req.Name
	}
	if req.Text != "" {
		prompt.Text = req.Text
	}
	if req.IsActive != nil {
		prompt.IsActive = *req.IsActive
	}

	if err := h.settings.UpdatePublicPrompt(r.Context(), prompt); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, prompt)
}

// DeletePublicPrompt handles DELETE /api/v1/prompts/public/{id}
func (h *SettingsHandler) DeletePublicPrompt(w http.ResponseWriter, r *http.Request) {
	if err := h.settings.DeletePublicPrompt(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
