package repository

import (
	"context"

	"github.com/iconidentify/xreply/internal/domain"
)

// SettingsRepository persists the per-user settings row.
type SettingsRepository interface {
	// GetSettings returns the user's settings or domain.ErrSettingsNotFound.
	GetSettings(ctx context.Context, userID string) (*domain.UserSettings, error)

	// UpsertSettings inserts or replaces the row keyed by UserID.
	UpsertSettings(ctx context.Context, settings *domain.UserSettings) error
}

// PublicPromptRepository manages prompts shared with every user.
type PublicPromptRepository interface {
	// ListActivePrompts returns active prompts, oldest first.
	ListActivePrompts(ctx context.Context) ([]domain.PublicPrompt, error)

	// GetPrompt retrieves a prompt by ID, active or not.
	GetPrompt(ctx context.Context, id string) (*domain.PublicPrompt, error)

	// CreatePrompt stores a new prompt.
	CreatePrompt(ctx context.Context, prompt *domain.PublicPrompt) error

	// UpdatePrompt replaces name, text and is_active of an existing prompt.
	UpdatePrompt(ctx context.Context, prompt *domain.PublicPrompt) error

	// DeletePrompt removes a prompt.
	DeletePrompt(ctx context.Context, id string) error
}

// DraftRepository persists the extraction form between sessions.
type DraftRepository interface {
	// LoadDraft returns the saved draft or domain.ErrSettingsNotFound.
	LoadDraft(ctx context.Context, userID string) (*domain.ExtractionSettings, error)

	// SaveDraft replaces the user's draft.
	SaveDraft(ctx context.Context, userID string, draft domain.ExtractionSettings) error
}

// Store bundles every repository of one backend.
type Store interface {
	SettingsRepository
	PublicPromptRepository
	DraftRepository

	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend.
	Close() error
}
