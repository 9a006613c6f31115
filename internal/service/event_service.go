package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/iconidentify/xreply/internal/config"
	"github.com/iconidentify/xreply/internal/domain"
)

// EventServiceConfig configures the event service.
type EventServiceConfig struct {
	// RingBufferSize is the number of events kept in memory per user.
	// Default: 1000
	RingBufferSize int

	// SQLitePath enables persistence of the activity log when set.
	SQLitePath string

	// RetentionDays is how long to keep persisted events (0 = forever).
	RetentionDays int
}

// EventServiceConfigFrom maps the application config.
func EventServiceConfigFrom(cfg config.EventsConfig) EventServiceConfig {
	return EventServiceConfig{
		RingBufferSize: cfg.BufferSize,
		SQLitePath:     cfg.DBPath,
		RetentionDays:  cfg.RetentionDays,
	}
}

// eventRing keeps the newest size events, evicting the oldest.
type eventRing struct {
	events []domain.Event
	head   int // Next write position
	count  int
}

func newEventRing(size int) *eventRing {
	return &eventRing{events: make([]domain.Event, size)}
}

func (r *eventRing) push(event domain.Event) {
	r.events[r.head] = event
	r.head = (r.head + 1) % len(r.events)
	if r.count < len(r.events) {
		r.count++
	}
}

// newestFirst returns the buffered events in reverse chronological order.
func (r *eventRing) newestFirst() []domain.Event {
	out := make([]domain.Event, 0, r.count)
	for i := 0; i < r.count; i++ {
		idx := (r.head - 1 - i + len(r.events)) % len(r.events)
		out = append(out, r.events[idx])
	}
	return out
}

type eventSubscriber struct {
	userID string
	ch     chan domain.Event
}

// EventService is the activity log: a ring buffer per user, optional SQLite
// persistence and live subscribers.
type EventService struct {
	cfg    EventServiceConfig
	logger *slog.Logger

	mu       sync.RWMutex
	rings    map[string]*eventRing
	eventSeq uint64 // Monotonic sequence for event IDs

	db        *sql.DB
	persistWG sync.WaitGroup

	subMu       sync.RWMutex
	subscribers map[uint64]eventSubscriber
	subSeq      uint64
}

// NewEventService creates a new event service.
func NewEventService(cfg EventServiceConfig, logger *slog.Logger) (*EventService, error) {
	if cfg.RingBufferSize <= 0 {
		cfg.RingBufferSize = 1000
	}

	svc := &EventService{
		cfg:         cfg,
		logger:      logger,
		rings:       make(map[string]*eventRing),
		subscribers: make(map[uint64]eventSubscriber),
	}

	if cfg.SQLitePath != "" {
		if err := svc.initSQLite(); err != nil {
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
		logger.Info("event persistence enabled", "path", cfg.SQLitePath)
	}

	return svc, nil
}

func (s *EventService) initSQLite() error {
	if err := os.MkdirAll(filepath.Dir(s.cfg.SQLitePath), 0700); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	db, err := sql.Open("sqlite", s.cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			timestamp DATETIME NOT NULL,
			severity TEXT NOT NULL,
			category TEXT NOT NULL,
			message TEXT NOT NULL,
			source TEXT,
			user_id TEXT NOT NULL DEFAULT '',
			metadata TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
		CREATE INDEX IF NOT EXISTS idx_events_user ON events(user_id, timestamp);
		CREATE INDEX IF NOT EXISTS idx_events_severity ON events(severity);
	`)
	if err != nil {
		db.Close()
		return fmt.Errorf("create table: %w", err)
	}

	s.db = db
	return nil
}

// Flush waits for pending writes to the database.
func (s *EventService) Flush() {
	s.persistWG.Wait()
}

// Close flushes pending writes and closes the database.
func (s *EventService) Close() error {
	s.Flush()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Emit records an event to the event log.
func (s *EventService) Emit(event domain.Event) {
	if event.ID == "" {
		seq := atomic.AddUint64(&s.eventSeq, 1)
		event.ID = domain.EventID(fmt.Sprintf("evt_%d_%d", time.Now().UnixNano(), seq))
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	s.mu.Lock()
	ring, ok := s.rings[event.UserID]
	if !ok {
		ring = newEventRing(s.cfg.RingBufferSize)
		s.rings[event.UserID] = ring
	}
	ring.push(event)
	s.mu.Unlock()

	if s.db != nil {
		s.persistWG.Add(1)
		go s.persistEvent(event)
	}

	s.notifySubscribers(event)

	logLevel := slog.LevelInfo
	switch event.Severity {
	case domain.EventSeverityWarning:
		logLevel = slog.LevelWarn
	case domain.EventSeverityError:
		logLevel = slog.LevelError
	}
	s.logger.Log(context.Background(), logLevel, event.Message,
		"event_id", event.ID,
		"category", event.Category,
		"severity", event.Severity,
		"source", event.Source,
		"user_id", event.UserID,
	)
}

func (s *EventService) emit(severity domain.EventSeverity, userID string, category domain.EventCategory, source, message string, metadata domain.EventMetadata) {
	emitEvent(s, severity, userID, category, source, message, metadata)
}

// emitEvent records an event on any sink. A nil sink drops it.
func emitEvent(em domain.EventEmitter, severity domain.EventSeverity, userID string, category domain.EventCategory, source, message string, metadata domain.EventMetadata) {
	if em == nil {
		return
	}
	em.Emit(domain.Event{
		Severity: severity,
		Category: category,
		Source:   source,
		UserID:   userID,
		Message:  message,
		Metadata: metadata.ToJSON(),
	})
}

// EmitInfo records an info-level event.
func (s *EventService) EmitInfo(userID string, category domain.EventCategory, source, message string, metadata domain.EventMetadata) {
	s.emit(domain.EventSeverityInfo, userID, category, source, message, metadata)
}

// EmitSuccess records a success-level event.
func (s *EventService) EmitSuccess(userID string, category domain.EventCategory, source, message string, metadata domain.EventMetadata) {
	s.emit(domain.EventSeveritySuccess, userID, category, source, message, metadata)
}

// EmitWarning records a warning-level event.
func (s *EventService) EmitWarning(userID string, category domain.EventCategory, source, message string, metadata domain.EventMetadata) {
	s.emit(domain.EventSeverityWarning, userID, category, source, message, metadata)
}

// EmitError records an error-level event.
func (s *EventService) EmitError(userID string, category domain.EventCategory, source, message string, metadata domain.EventMetadata) {
	s.emit(domain.EventSeverityError, userID, category, source, message, metadata)
}

func (s *EventService) persistEvent(event domain.Event) {
	defer s.persistWG.Done()

	metadataStr := ""
	if event.Metadata != nil {
		metadataStr = string(event.Metadata)
	}

	_, err := s.db.Exec(`
		INSERT INTO events (id, timestamp, severity, category, message, source, user_id, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, event.ID, event.Timestamp.UTC(), event.Severity, event.Category, event.Message, event.Source, event.UserID, metadataStr)
	if err != nil {
		s.logger.Warn("failed to persist event", "event_id", event.ID, "error", err)
	}
}

// Query returns buffered events matching the filter, newest first. An empty
// Filter.UserID searches every user's buffer.
func (s *EventService) Query(ctx context.Context, query domain.EventQuery) (*domain.EventQueryResult, error) {
	if query.Limit <= 0 {
		query.Limit = 50
	}
	if query.Limit > s.cfg.RingBufferSize {
		query.Limit = s.cfg.RingBufferSize
	}

	s.mu.RLock()
	var candidates []domain.Event
	if query.Filter.UserID != "" {
		if ring, ok := s.rings[query.Filter.UserID]; ok {
			candidates = ring.newestFirst()
		}
	} else {
		for _, ring := range s.rings {
			candidates = append(candidates, ring.newestFirst()...)
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Timestamp.After(candidates[j].Timestamp)
		})
	}
	s.mu.RUnlock()

	matched := make([]domain.Event, 0, len(candidates))
	for _, event := range candidates {
		if matchesFilter(event, query.Filter) {
			matched = append(matched, event)
		}
	}

	total := len(matched)
	start := query.Offset
	if start >= total {
		return &domain.EventQueryResult{Events: []domain.Event{}, Total: total}, nil
	}
	end := start + query.Limit
	if end > total {
		end = total
	}

	return &domain.EventQueryResult{
		Events:  matched[start:end],
		Total:   total,
		HasMore: end < total,
	}, nil
}

// QueryHistorical queries persisted events.
func (s *EventService) QueryHistorical(ctx context.Context, query domain.EventQuery) (*domain.EventQueryResult, error) {
	if s.db == nil {
		return &domain.EventQueryResult{Events: []domain.Event{}}, nil
	}

	if query.Limit <= 0 {
		query.Limit = 50
	}
	if query.Limit > 200 {
		query.Limit = 200
	}

	var conditions []string
	var args []interface{}

	if query.Filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, query.Filter.UserID)
	}
	if query.Filter.Severity != nil {
		conditions = append(conditions, "severity = ?")
		args = append(args, *query.Filter.Severity)
	}
	if query.Filter.Category != nil {
		conditions = append(conditions, "category = ?")
		args = append(args, *query.Filter.Category)
	}
	if query.Filter.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, query.Filter.Source)
	}
	if query.Filter.StartTime != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, query.Filter.StartTime.UTC())
	}
	if query.Filter.EndTime != nil {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, query.Filter.EndTime.UTC())
	}
	if query.Filter.SearchText != "" {
		conditions = append(conditions, "message LIKE ?")
		args = append(args, "%"+query.Filter.SearchText+"%")
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM events %s", whereClause)
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT id, timestamp, severity, category, message, source, user_id, metadata
		FROM events %s
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?
	`, whereClause)
	args = append(args, query.Limit, query.Offset)

	rows, err := s.db.QueryContext(ctx, selectQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.Event, 0, query.Limit)
	for rows.Next() {
		var event domain.Event
		var source, metadataStr sql.NullString
		if err := rows.Scan(&event.ID, &event.Timestamp, &event.Severity, &event.Category, &event.Message, &source, &event.UserID, &metadataStr); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		event.Source = source.String
		if metadataStr.Valid && metadataStr.String != "" {
			event.Metadata = json.RawMessage(metadataStr.String)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return &domain.EventQueryResult{
		Events:  events,
		Total:   total,
		HasMore: query.Offset+len(events) < total,
	}, nil
}

// GetRecent returns the user's most recent n events, newest first.
func (s *EventService) GetRecent(userID string, n int) []domain.Event {
	if n <= 0 {
		n = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ring, ok := s.rings[userID]
	if !ok {
		return []domain.Event{}
	}
	events := ring.newestFirst()
	if len(events) > n {
		events = events[:n]
	}
	return events
}

// Clear drops the user's buffered and persisted events.
func (s *EventService) Clear(ctx context.Context, userID string) error {
	s.mu.Lock()
	delete(s.rings, userID)
	s.mu.Unlock()

	if s.db != nil {
		s.Flush()
		if _, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE user_id = ?", userID); err != nil {
			return fmt.Errorf("delete events: %w", err)
		}
	}

	s.logger.Info("activity log cleared", "user_id", userID)
	return nil
}

// ExportLogs renders the user's buffered events, newest first, as the
// downloadable log file.
func (s *EventService) ExportLogs(userID string) ([]byte, error) {
	events := s.GetRecent(userID, s.cfg.RingBufferSize)

	entries := make([]domain.LogExportEntry, 0, len(events))
	for _, e := range events {
		entries = append(entries, e.ToLogExportEntry())
	}

	data, err := domain.MarshalDocument(entries)
	if err != nil {
		return nil, fmt.Errorf("marshal logs: %w", err)
	}
	return data, nil
}

func matchesFilter(event domain.Event, filter domain.EventFilter) bool {
	if filter.UserID != "" && event.UserID != filter.UserID {
		return false
	}
	if filter.Severity != nil && event.Severity != *filter.Severity {
		return false
	}
	if filter.Category != nil && event.Category != *filter.Category {
		return false
	}
	if filter.Source != "" && event.Source != filter.Source {
		return false
	}
	if filter.StartTime != nil && event.Timestamp.Before(*filter.StartTime) {
		return false
	}
	if filter.EndTime != nil && event.Timestamp.After(*filter.EndTime) {
		return false
	}
	if filter.SearchText != "" && !strings.Contains(strings.ToLower(event.Message), strings.ToLower(filter.SearchText)) {
		return false
	}
	return true
}

// Subscribe registers a live listener. A non-empty userID limits delivery
// to that user's events. The caller must call Unsubscribe when done.
func (s *EventService) Subscribe(userID string) (uint64, <-chan domain.Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.subSeq++
	id := s.subSeq
	ch := make(chan domain.Event, 100)
	s.subscribers[id] = eventSubscriber{userID: userID, ch: ch}

	s.logger.Debug("event subscriber added", "subscriber_id", id, "user_id", userID, "total_subscribers", len(s.subscribers))
	return id, ch
}

// Unsubscribe removes a listener and closes its channel.
func (s *EventService) Unsubscribe(id uint64) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if sub, ok := s.subscribers[id]; ok {
		close(sub.ch)
		delete(s.subscribers, id)
		s.logger.Debug("event subscriber removed", "subscriber_id", id, "total_subscribers", len(s.subscribers))
	}
}

func (s *EventService) notifySubscribers(event domain.Event) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for id, sub := range s.subscribers {
		if sub.userID != "" && sub.userID != event.UserID {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			s.logger.Warn("event subscriber buffer full, dropping event", "subscriber_id", id, "event_id", event.ID)
		}
	}
}

// SubscriberCount returns the number of live subscribers.
func (s *EventService) SubscriberCount() int {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	return len(s.subscribers)
}

// EventStats describes the event service.
type EventStats struct {
	BufferSize    int  `json:"buffer_size"`
	BufferUsed    int  `json:"buffer_used"`
	Users         int  `json:"users"`
	Subscribers   int  `json:"subscribers"`
	SQLiteEnabled bool `json:"sqlite_enabled"`
}

// Stats returns statistics about the event service.
func (s *EventService) Stats() EventStats {
	s.mu.RLock()
	used := 0
	for _, ring := range s.rings {
		used += ring.count
	}
	users := len(s.rings)
	s.mu.RUnlock()

	return EventStats{
		BufferSize:    s.cfg.RingBufferSize,
		BufferUsed:    used,
		Users:         users,
		Subscribers:   s.SubscriberCount(),
		SQLiteEnabled: s.db != nil,
	}
}

// CleanupOldEvents removes persisted events older than the retention period.
func (s *EventService) CleanupOldEvents(ctx context.Context) error {
	if s.db == nil || s.cfg.RetentionDays <= 0 {
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -s.cfg.RetentionDays).UTC()
	result, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE timestamp < ?", cutoff)
	if err != nil {
		return fmt.Errorf("delete old events: %w", err)
	}

	deleted, _ := result.RowsAffected()
	if deleted > 0 {
		s.logger.Info("cleaned up old events", "deleted", deleted, "cutoff", cutoff)
	}
	return nil
}
