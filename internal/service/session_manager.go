package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/iconidentify/xreply/internal/config"
	"github.com/iconidentify/xreply/internal/domain"
	"github.com/iconidentify/xreply/internal/repository"
)

// SessionConfig configures sessions.
type SessionConfig struct {
	// WatchdogTimeout abandons an operation that runs longer (0 disables).
	WatchdogTimeout time.Duration
	// AutoGenerate chains a generation after every non-empty extraction.
	AutoGenerate bool
}

// SessionConfigFrom maps the application config.
func SessionConfigFrom(cfg config.SessionConfig) SessionConfig {
	return SessionConfig{
		WatchdogTimeout: cfg.WatchdogTimeout,
		AutoGenerate:    cfg.AutoGenerate,
	}
}

// SessionDeps are the collaborators shared by every session. Drafts,
// Events, Notifier and Publisher are optional.
type SessionDeps struct {
	Extractor   Extractor
	Generator   Generator
	Credentials CredentialProvider
	Drafts      repository.DraftRepository
	Events      domain.EventEmitter
	Notifier    domain.Notifier
	Publisher   ResultPublisher
}

type sessionDeps struct {
	extractor Extractor
	generator Generator
	creds     CredentialProvider
	drafts    repository.DraftRepository
	events    domain.EventEmitter
	notifier  domain.Notifier
	publisher ResultPublisher
	cfg       SessionConfig
	logger    *slog.Logger
	now       func() time.Time
}

// SessionManager hands out one Session per user, created on first use.
type SessionManager struct {
	deps *sessionDeps

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionManager creates a new session manager.
func NewSessionManager(cfg SessionConfig, deps SessionDeps, logger *slog.Logger) *SessionManager {
	return &SessionManager{
		deps: &sessionDeps{
			extractor: deps.Extractor,
			generator: deps.Generator,
			creds:     deps.Credentials,
			drafts:    deps.Drafts,
			events:    deps.Events,
			notifier:  deps.Notifier,
			publisher: deps.Publisher,
			cfg:       cfg,
			logger:    logger,
			now:       time.Now,
		},
		sessions: make(map[string]*Session),
	}
}

// Get returns the user's session, restoring the saved draft on creation.
// Restored counters are clamped into range.
func (m *SessionManager) Get(ctx context.Context, userID string) *Session {
	m.mu.Lock()
	if s, ok := m.sessions[userID]; ok {
		m.mu.Unlock()
		return s
	}
	m.mu.Unlock()

	settings := m.loadDraft(ctx, userID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok {
		return s
	}
	s := newSession(userID, settings, m.deps)
	m.sessions[userID] = s
	m.deps.logger.Info("session created", "user_id", userID)
	return s
}

func (m *SessionManager) loadDraft(ctx context.Context, userID string) domain.ExtractionSettings {
	if m.deps.drafts == nil {
		return domain.DefaultExtractionSettings()
	}

	draft, err := m.deps.drafts.LoadDraft(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrSettingsNotFound) {
			m.deps.logger.Warn("failed to load draft, using defaults", "user_id", userID, "error", err)
		}
		return domain.DefaultExtractionSettings()
	}
	return draft.Clamped()
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *SessionManager) all() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Shutdown cancels in-flight runs and waits for them until ctx is done.
func (m *SessionManager) Shutdown(ctx context.Context) error {
	sessions := m.all()
	for _, s := range sessions {
		s.cancelRuns()
	}

	done := make(chan struct{})
	go func() {
		for _, s := range sessions {
			s.Wait()
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
