package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/iconidentify/xreply/internal/config"
	"github.com/iconidentify/xreply/internal/domain"
	"github.com/iconidentify/xreply/internal/repository"
	"github.com/iconidentify/xreply/pkg/crypto"
)

const (
	settingsSource        = "settings"
	publicPromptsCacheKey = "public_prompts"
)

// SettingsService owns API keys and prompts. Reads are served from an
// in-process cache that every write invalidates. Writes for one user are
// serialized so concurrent edits do not overwrite each other.
type SettingsService struct {
	store  repository.Store
	sealer *crypto.Sealer
	cache  *cache.Cache
	events domain.EventEmitter
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSettingsService creates a new settings service. A nil sealer stores
// API keys as given.
func NewSettingsService(store repository.Store, sealer *crypto.Sealer, cfg config.CacheConfig, events domain.EventEmitter, logger *slog.Logger) *SettingsService {
	return &SettingsService{
		store:  store,
		sealer: sealer,
		cache:  cache.New(cfg.SettingsTTL, cfg.CleanupInterval),
		events: events,
		logger: logger,
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
}

// lockUser holds the user's write lock until the returned func is called.
func (s *SettingsService) lockUser(userID string) func() {
	s.mu.Lock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func settingsCacheKey(userID string) string {
	return "settings:" + userID
}

// Load returns the user's settings with API keys in the clear. A user
// without a stored row gets the defaults.
func (s *SettingsService) Load(ctx context.Context, userID string) (*domain.UserSettings, error) {
	if cached, ok := s.cache.Get(settingsCacheKey(userID)); ok {
		return cached.(*domain.UserSettings).Clone(), nil
	}

	settings, err := s.loadStored(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(settingsCacheKey(userID), settings.Clone())
	return settings, nil
}

// loadStored reads the row without the cache. Writers use it under the user
// lock so a reader refilling the cache with an older row cannot feed them.
func (s *SettingsService) loadStored(ctx context.Context, userID string) (*domain.UserSettings, error) {
	settings, err := s.store.GetSettings(ctx, userID)
	if errors.Is(err, domain.ErrSettingsNotFound) {
		settings = domain.DefaultUserSettings(userID)
	} else if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	keys, err := s.openKeys(settings.APIKeys)
	if err != nil {
		return nil, err
	}
	settings.APIKeys = keys
	return settings, nil
}

// APIKeys returns the user's keys in the clear.
func (s *SettingsService) APIKeys(ctx context.Context, userID string) (domain.APIKeys, error) {
	settings, err := s.Load(ctx, userID)
	if err != nil {
		return domain.APIKeys{}, err
	}
	return settings.APIKeys, nil
}

// SaveAPIKeys replaces both keys. Empty values clear a key; non-empty values
// must carry the service prefix.
func (s *SettingsService) SaveAPIKeys(ctx context.Context, userID string, keys domain.APIKeys) error {
	keys.Apify = strings.TrimSpace(keys.Apify)
	keys.OpenAI = strings.TrimSpace(keys.OpenAI)
	if err := keys.Validate(); err != nil {
		return err
	}

	unlock := s.lockUser(userID)
	defer unlock()

	settings, err := s.loadStored(ctx, userID)
	if err != nil {
		return err
	}
	settings.APIKeys = keys

	if err := s.save(ctx, settings); err != nil {
		return err
	}

	emitEvent(s.events, domain.EventSeveritySuccess, userID, domain.EventCategorySettings, settingsSource,
		"API keys saved", domain.EventMetadata{
			"apifySet":  keys.Apify != "",
			"openaiSet": keys.OpenAI != "",
		})
	s.logger.Info("api keys saved", "user_id", userID, "keys", keys.Masked())
	return nil
}

// ListPrompts returns the user's saved prompts in creation order.
func (s *SettingsService) ListPrompts(ctx context.Context, userID string) ([]domain.SavedPrompt, error) {
	settings, err := s.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return settings.SavedPrompts, nil
}

// SavePrompt stores a named prompt. When a prompt with the same text exists
// it is returned with created=false and nothing is written.
func (s *SettingsService) SavePrompt(ctx context.Context, userID, name, text string) (prompt domain.SavedPrompt, created bool, err error) {
	name = strings.TrimSpace(name)
	text = strings.TrimSpace(text)
	if name == "" {
		return domain.SavedPrompt{}, false, domain.NewValidationError("name", "prompt name is required")
	}
	if text == "" {
		return domain.SavedPrompt{}, false, domain.NewValidationError("text", "prompt text is required")
	}

	unlock := s.lockUser(userID)
	defer unlock()

	settings, err := s.loadStored(ctx, userID)
	if err != nil {
		return domain.SavedPrompt{}, false, err
	}
	if _, ok := settings.FindPromptByName(name); ok {
		return domain.SavedPrompt{}, false, domain.ErrDuplicatePrompt
	}
	if existing, ok := settings.FindPromptByText(text); ok {
		return existing, false, nil
	}

	prompt = domain.SavedPrompt{
		ID:        uuid.NewString(),
		Name:      name,
		Text:      text,
		CreatedAt: s.now().UTC(),
	}
	settings.SavedPrompts = append(settings.SavedPrompts, prompt)
	if err := s.save(ctx, settings); err != nil {
		return domain.SavedPrompt{}, false, err
	}

	emitEvent(s.events, domain.EventSeverityInfo, userID, domain.EventCategorySettings, settingsSource,
		fmt.Sprintf("Prompt %q saved", name), domain.EventMetadata{"promptId": prompt.ID})
	return prompt, true, nil
}

// DeletePrompt removes one of the user's saved prompts.
func (s *SettingsService) DeletePrompt(ctx context.Context, userID, id string) error {
	unlock := s.lockUser(userID)
	defer unlock()

	settings, err := s.loadStored(ctx, userID)
	if err != nil {
		return err
	}

	kept := settings.SavedPrompts[:0]
	found := false
	for _, p := range settings.SavedPrompts {
		if p.ID == id {
			found = true
			continue
		}
		kept = append(kept, p)
	}
	if !found {
		return domain.ErrPromptNotFound
	}
	settings.SavedPrompts = kept

	if err := s.save(ctx, settings); err != nil {
		return err
	}

	emitEvent(s.events, domain.EventSeverityInfo, userID, domain.EventCategorySettings, settingsSource,
		"Prompt deleted", domain.EventMetadata{"promptId": id})
	return nil
}

// ListPublicPrompts returns the active shared prompts.
func (s *SettingsService) ListPublicPrompts(ctx context.Context) ([]domain.PublicPrompt, error) {
	if cached, ok := s.cache.Get(publicPromptsCacheKey); ok {
		prompts := cached.([]domain.PublicPrompt)
		return append([]domain.PublicPrompt(nil), prompts...), nil
	}

	prompts, err := s.store.ListActivePrompts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list public prompts: %w", err)
	}
	s.cache.SetDefault(publicPromptsCacheKey, append([]domain.PublicPrompt(nil), prompts...))
	return prompts, nil
}

// GetPublicPrompt returns a shared prompt, active or not.
func (s *SettingsService) GetPublicPrompt(ctx context.Context, id string) (*domain.PublicPrompt, error) {
	return s.store.GetPrompt(ctx, id)
}

// CreatePublicPrompt adds an active shared prompt.
func (s *SettingsService) CreatePublicPrompt(ctx context.Context, createdBy, name, text string) (*domain.PublicPrompt, error) {
	name = strings.TrimSpace(name)
	text = strings.TrimSpace(text)
	if name == "" || text == "" {
		return nil, domain.NewValidationError("prompt", "name and text are required")
	}

	prompt := &domain.PublicPrompt{
		ID:        uuid.NewString(),
		Name:      name,
		Text:      text,
		CreatedAt: s.now().UTC(),
		CreatedBy: createdBy,
		IsActive:  true,
	}
	if err := s.store.CreatePrompt(ctx, prompt); err != nil {
		return nil, fmt.Errorf("create public prompt: %w", err)
	}
	s.cache.Delete(publicPromptsCacheKey)

	s.logger.Info("public prompt created", "prompt_id", prompt.ID, "created_by", createdBy)
	return prompt, nil
}

// UpdatePublicPrompt edits a shared prompt.
func (s *SettingsService) UpdatePublicPrompt(ctx context.Context, prompt *domain.PublicPrompt) error {
	prompt.Name = strings.TrimSpace(prompt.Name)
	prompt.Text = strings.TrimSpace(prompt.Text)
	if prompt.Name == "" || prompt.Text == "" {
		return domain.NewValidationError("prompt", "name and text are required")
	}
	if err := s.store.UpdatePrompt(ctx, prompt); err != nil {
		return err
	}
	s.cache.Delete(publicPromptsCacheKey)
	return nil
}

// DeletePublicPrompt removes a shared prompt.
func (s *SettingsService) DeletePublicPrompt(ctx context.Context, id string) error {
	if err := s.store.DeletePrompt(ctx, id); err != nil {
		return err
	}
	s.cache.Delete(publicPromptsCacheKey)
	return nil
}

func (s *SettingsService) save(ctx context.Context, settings *domain.UserSettings) error {
	settings.UpdatedAt = s.now().UTC()

	stored := settings.Clone()
	keys, err := s.sealKeys(settings.APIKeys)
	if err != nil {
		return err
	}
	stored.APIKeys = keys

	if err := s.store.UpsertSettings(ctx, stored); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	s.cache.Delete(settingsCacheKey(settings.UserID))
	return nil
}

func (s *SettingsService) sealKeys(keys domain.APIKeys) (domain.APIKeys, error) {
	if s.sealer == nil {
		return keys, nil
	}
	apifyKey, err := s.sealer.Seal(keys.Apify)
	if err != nil {
		return domain.APIKeys{}, fmt.Errorf("seal apify key: %w", err)
	}
	openaiKey, err := s.sealer.Seal(keys.OpenAI)
	if err != nil {
		return domain.APIKeys{}, fmt.Errorf("seal openai key: %w", err)
	}
	return domain.APIKeys{Apify: apifyKey, OpenAI: openaiKey}, nil
}

// openKeys accepts plaintext values so rows written before a key was
// configured stay readable.
func (s *SettingsService) openKeys(keys domain.APIKeys) (domain.APIKeys, error) {
	open := func(v string) (string, error) {
		if !crypto.IsSealed(v) {
			return v, nil
		}
		if s.sealer == nil {
			return "", errors.New("stored API key is sealed but no encryption key is configured")
		}
		return s.sealer.Open(v)
	}

	apifyKey, err := open(keys.Apify)
	if err != nil {
		return domain.APIKeys{}, fmt.Errorf("open apify key: %w", err)
	}
	openaiKey, err := open(keys.OpenAI)
	if err != nil {
		return domain.APIKeys{}, fmt.Errorf("open openai key: %w", err)
	}
	return domain.APIKeys{Apify: apifyKey, OpenAI: openaiKey}, nil
}
