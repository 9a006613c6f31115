package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/iconidentify/xreply/internal/domain"
	"github.com/iconidentify/xreply/internal/service"
)

// EventHandler serves the caller's activity log.
type EventHandler struct {
	eventSvc *service.EventService
	logger   *slog.Logger
}

// NewEventHandler creates a new event handler.
func NewEventHandler(eventSvc *service.EventService, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		eventSvc: eventSvc,
		logger:   logger,
	}
}

// EventResponse represents an event in API responses.
type EventResponse struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Type      string          `json:"type"`
	Category  string          `json:"category"`
	Message   string          `json:"message"`
	Source    string          `json:"source,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
}

func toEventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:        string(e.ID),
		Timestamp: e.Timestamp,
		Type:      string(e.Severity),
		Category:  string(e.Category),
		Message:   e.Message,
		Source:    e.Source,
		Details:   e.Metadata,
	}
}

// EventListResponse contains paginated event list.
type EventListResponse struct {
	Events  []EventResponse `json:"events"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
	HasMore bool            `json:"has_more"`
}

// List handles GET /api/v1/logs
// Query parameters:
//   - type: filter by severity (info, success, warning, error)
//   - category: filter by category (extraction, generation, session, settings, export, system)
//   - source: filter by source component
//   - start_time, end_time: RFC3339 bounds
//   - search: search in message text
//   - limit: max events to return (default 50, max 200)
//   - offset: pagination offset
//   - historical: if "true", query SQLite instead of the ring buffer
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := domain.EventQuery{
		Limit:  50,
		Filter: domain.EventFilter{UserID: userID(r)},
	}

	if l := q.Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			query.Limit = min(parsed, 200)
		}
	}
	if o := q.Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			query.Offset = parsed
		}
	}

	if sev := q.Get("type"); sev != "" {
		severity := domain.EventSeverity(sev)
		query.Filter.Severity = &severity
	}
	if cat := q.Get("category"); cat != "" {
		category := domain.EventCategory(cat)
		query.Filter.Category = &category
	}
	query.Filter.Source = q.Get("source")
	query.Filter.SearchText = q.Get("search")
	if startTime := q.Get("start_time"); startTime != "" {
		if t, err := time.Parse(time.RFC3339, startTime); err == nil {
			query.Filter.StartTime = &t
		}
	}
	if endTime := q.Get("end_time"); endTime != "" {
		if t, err := time.Parse(time.RFC3339, endTime); err == nil {
			query.Filter.EndTime = &t
		}
	}

	var result *domain.EventQueryResult
	var err error
	if q.Get("historical") == "true" {
		result, err = h.eventSvc.QueryHistorical(r.Context(), query)
	} else {
		result, err = h.eventSvc.Query(r.Context(), query)
	}
	if err != nil {
		h.logger.Error("failed to query events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to query events")
		return
	}

	response := EventListResponse{
		Events:  make([]EventResponse, 0, len(result.Events)),
		Total:   result.Total,
		Limit:   query.Limit,
		Offset:  query.Offset,
		HasMore: result.HasMore,
	}
	for _, e := range result.Events {
		response.Events = append(response.Events, toEventResponse(e))
	}

	writeJSON(w, http.StatusOK, response)
}

// Clear handles DELETE /api/v1/logs
func (h *EventHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.eventSvc.Clear(r.Context(), userID(r)); err != nil {
		h.logger.Error("failed to clear events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to clear logs")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Export handles GET /api/v1/logs/export
func (h *EventHandler) Export(w http.ResponseWriter, r *http.Request) {
	data, err := h.eventSvc.ExportLogs(userID(r))
	if err != nil {
		h.logger.Error("failed to export events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to export logs")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+domain.LogExportFilename(time.Now())+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Stats handles GET /api/v1/logs/stats
func (h *EventHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats := h.eventSvc.Stats()

	bySeverity := map[string]int{
		string(domain.EventSeverityInfo):    0,
		string(domain.EventSeveritySuccess): 0,
		string(domain.EventSeverityWarning): 0,
		string(domain.EventSeverityError):   0,
	}
	events := h.eventSvc.GetRecent(userID(r), stats.BufferSize)
	for _, e := range events {
		bySeverity[string(e.Severity)]++
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":       len(events),
		"by_type":     bySeverity,
		"buffer_size": stats.BufferSize,
		"subscribers": stats.Subscribers,
		"sqlite":      stats.SQLiteEnabled,
	})
}

// Categories handles GET /api/v1/logs/categories
func (h *EventHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories := []string{
		string(domain.EventCategoryExtraction),
		string(domain.EventCategoryGeneration),
		string(domain.EventCategorySession),
		string(domain.EventCategorySettings),
		string(domain.EventCategoryExport),
		string(domain.EventCategorySystem),
	}
	writeJSON(w, http.StatusOK, map[string][]string{"categories": categories})
}
