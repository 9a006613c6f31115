package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// SessionStatus is the orchestrator state.
type SessionStatus string

const (
	SessionStatusIdle       SessionStatus = "idle"
	SessionStatusExtracting SessionStatus = "extracting"
	SessionStatusExtracted  SessionStatus = "extracted"
	SessionStatusGenerating SessionStatus = "generating"
	SessionStatusGenerated  SessionStatus = "generated"
)

// SessionSnapshot is a read-only copy of a session's working set.
type SessionSnapshot struct {
	Status            SessionStatus      `json:"status"`
	IsExtracting      bool               `json:"isExtracting"`
	IsGenerating      bool               `json:"isGenerating"`
	ExtractedTweets   []Tweet            `json:"extractedTweets"`
	GeneratedComments []GeneratedComment `json:"generatedComments"`
	Settings          ExtractionSettings `json:"extractionSettings"`
	AutoGenerate      bool               `json:"autoGenerate"`
}

// NotificationLevel mirrors the toast variants of the client.
type NotificationLevel string

const (
	NotificationDefault     NotificationLevel = "default"
	NotificationDestructive NotificationLevel = "destructive"
)

// Notification is a transient, user-facing message.
type Notification struct {
	Level   NotificationLevel `json:"level"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
	At      time.Time         `json:"at"`
}

// Notifier delivers transient notifications to a user.
type Notifier interface {
	Notify(userID string, n Notification)
}

// ExportArtifact is the downloadable session file. Field names are part of
// the file format and must not change.
type ExportArtifact struct {
	ExtractedTweets    []Tweet            `json:"extractedTweets"`
	GeneratedComments  []GeneratedComment `json:"generatedComments"`
	ExtractionSettings ExtractionSettings `json:"extractionSettings"`
	ExportDate         string             `json:"exportDate"`
}

// NewExportArtifact stamps an artifact with at.
func NewExportArtifact(tweets []Tweet, comments []GeneratedComment, settings ExtractionSettings, at time.Time) ExportArtifact {
	if tweets == nil {
		tweets = []Tweet{}
	}
	if comments == nil {
		comments = []GeneratedComment{}
	}
	return ExportArtifact{
		ExtractedTweets:    tweets,
		GeneratedComments:  comments,
		ExtractionSettings: settings,
		ExportDate:         at.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

// Marshal renders the artifact the way the download is written.
func (a ExportArtifact) Marshal() ([]byte, error) {
	return MarshalDocument(a)
}

// MarshalDocument indents v for a downloadable file. Tweet text and URLs keep
// their literal &, < and > characters.
func MarshalDocument(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// ParseExportArtifact reads a previously exported file.
func ParseExportArtifact(data []byte) (*ExportArtifact, error) {
	var a ExportArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse export artifact: %w", err)
	}
	return &a, nil
}

// ExportFilename returns tweet_data_YYYY-MM-DD.json for at.
func ExportFilename(at time.Time) string {
	return "tweet_data_" + at.UTC().Format("2006-01-02") + ".json"
}

// LogExportFilename returns app_logs_YYYY-MM-DD.json for at.
func LogExportFilename(at time.Time) string {
	return "app_logs_" + at.UTC().Format("2006-01-02") + ".json"
}
