package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/iconidentify/xreply/internal/domain"
)

// InMemoryStore implements Store using in-memory maps.
type InMemoryStore struct {
	mu       sync.RWMutex
	settings map[string]*domain.UserSettings
	prompts  map[string]*domain.PublicPrompt
	drafts   map[string]domain.ExtractionSettings
}

// NewInMemoryStore creates a new in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		settings: make(map[string]*domain.UserSettings),
		prompts:  make(map[string]*domain.PublicPrompt),
		drafts:   make(map[string]domain.ExtractionSettings),
	}
}

// GetSettings returns a copy of the user's settings.
func (r *InMemoryStore) GetSettings(ctx context.Context, userID string) (*domain.UserSettings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.settings[userID]
	if !ok {
		return nil, domain.ErrSettingsNotFound
	}
	return s.Clone(), nil
}

// UpsertSettings stores a copy of settings.
func (r *InMemoryStore) UpsertSettings(ctx context.Context, settings *domain.UserSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.settings[settings.UserID] = settings.Clone()
	return nil
}

// ListActivePrompts returns active public prompts, oldest first.
func (r *InMemoryStore) ListActivePrompts(ctx context.Context) ([]domain.PublicPrompt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.PublicPrompt, 0, len(r.prompts))
	for _, p := range r.prompts {
		if p.IsActive {
			result = append(result, *p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// GetPrompt retrieves a public prompt by ID.
func (r *InMemoryStore) GetPrompt(ctx context.Context, id string) (*domain.PublicPrompt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.prompts[id]
	if !ok {
		return nil, domain.ErrPromptNotFound
	}
	cp := *p
	return &cp, nil
}

// CreatePrompt adds a public prompt.
func (r *InMemoryStore) CreatePrompt(ctx context.Context, prompt *domain.PublicPrompt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *prompt
	r.prompts[prompt.ID] = &cp
	return nil
}

// UpdatePrompt replaces an existing public prompt.
func (r *InMemoryStore) UpdatePrompt(ctx context.Context, prompt *domain.PublicPrompt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.prompts[prompt.ID]
	if !ok {
		return domain.ErrPromptNotFound
	}
	existing.Name = prompt.Name
	existing.Text = prompt.Text
	existing.IsActive = prompt.IsActive
	return nil
}

// DeletePrompt removes a public prompt.
func (r *InMemoryStore) DeletePrompt(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.prompts[id]; !ok {
		return domain.ErrPromptNotFound
	}
	delete(r.prompts, id)
	return nil
}

// LoadDraft returns the saved draft.
func (r *InMemoryStore) LoadDraft(ctx context.Context, userID string) (*domain.ExtractionSettings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.drafts[userID]
	if !ok {
		return nil, domain.ErrSettingsNotFound
	}
	return &d, nil
}

// SaveDraft replaces the user's draft.
func (r *InMemoryStore) SaveDraft(ctx context.Context, userID string, draft domain.ExtractionSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.drafts[userID] = draft
	return nil
}

// Ping always succeeds.
func (r *InMemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (r *InMemoryStore) Close() error {
	return nil
}
