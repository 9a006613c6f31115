package domain

import (
	"encoding/json"
	"time"
)

// EventID is a unique identifier for an event.
type EventID string

// String returns the string representation of the EventID.
func (id EventID) String() string {
	return string(id)
}

// EventSeverity represents the severity level of an event.
type EventSeverity string

const (
	EventSeverityInfo    EventSeverity = "info"
	EventSeveritySuccess EventSeverity = "success"
	EventSeverityWarning EventSeverity = "warning"
	EventSeverityError   EventSeverity = "error"
)

// EventCategory represents the category of an event for filtering.
type EventCategory string

const (
	EventCategoryExtraction EventCategory = "extraction"
	EventCategoryGeneration EventCategory = "generation"
	EventCategorySession    EventCategory = "session"
	EventCategorySettings   EventCategory = "settings"
	EventCategoryExport     EventCategory = "export"
	EventCategorySystem     EventCategory = "system"
)

// Event is one entry of the activity log.
type Event struct {
	ID        EventID         `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Severity  EventSeverity   `json:"type"`
	Category  EventCategory   `json:"category"`
	Message   string          `json:"message"`
	Source    string          `json:"source,omitempty"`
	UserID    string          `json:"user_id,omitempty"`
	Metadata  json.RawMessage `json:"details,omitempty"`
}

// EventMetadata is a helper type for building event details.
type EventMetadata map[string]interface{}

// ToJSON converts metadata to JSON for storage.
func (m EventMetadata) ToJSON() json.RawMessage {
	if m == nil {
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return data
}

// EventFilter specifies criteria for querying events.
type EventFilter struct {
	Severity   *EventSeverity `json:"severity,omitempty"`
	Category   *EventCategory `json:"category,omitempty"`
	Source     string         `json:"source,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
	StartTime  *time.Time     `json:"start_time,omitempty"`
	EndTime    *time.Time     `json:"end_time,omitempty"`
	SearchText string         `json:"search_text,omitempty"`
}

// EventEmitter is the narrow append contract of the log sink.
type EventEmitter interface {
	// Emit records an event to the event log.
	Emit(event Event)
}

// EventQuery represents a query for events with pagination.
type EventQuery struct {
	Filter EventFilter `json:"filter"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// EventQueryResult contains the result of an event query.
type EventQueryResult struct {
	Events  []Event `json:"events"`
	Total   int     `json:"total"`
	HasMore bool    `json:"has_more"`
}

// LogExportEntry is one element of the exported log file.
type LogExportEntry struct {
	Timestamp string          `json:"timestamp"`
	Type      EventSeverity   `json:"type"`
	Message   string          `json:"message"`
	Details   json.RawMessage `json:"details"`
}

// ToLogExportEntry converts an event to its export form.
func (e Event) ToLogExportEntry() LogExportEntry {
	details := e.Metadata
	if len(details) == 0 {
		details = json.RawMessage("null")
	}
	return LogExportEntry{
		Timestamp: e.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Type:      e.Severity,
		Message:   e.Message,
		Details:   details,
	}
}
