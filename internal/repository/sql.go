package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iconidentify/xreply/internal/domain"
)

// SQLStore implements Store over any sqlx-supported database. Queries are
// written with '?' placeholders and rebound per driver.
type SQLStore struct {
	db     *sqlx.DB
	schema string
}

type settingsRow struct {
	UserID       string    `db:"user_id"`
	ApifyAPIKey  string    `db:"apify_api_key"`
	OpenAIAPIKey string    `db:"openai_api_key"`
	SavedPrompts string    `db:"saved_prompts"`
	UpdatedAt    time.Time `db:"updated_at"`
}

type promptRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Text      string    `db:"text"`
	CreatedAt time.Time `db:"created_at"`
	CreatedBy string    `db:"created_by"`
	IsActive  bool      `db:"is_active"`
}

func (r promptRow) toDomain() domain.PublicPrompt {
	return domain.PublicPrompt{
		ID:        r.ID,
		Name:      r.Name,
		Text:      r.Text,
		CreatedAt: r.CreatedAt,
		CreatedBy: r.CreatedBy,
		IsActive:  r.IsActive,
	}
}

// EnsureSchema creates missing tables.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// DB exposes the underlying handle.
func (s *SQLStore) DB() *sqlx.DB {
	return s.db
}

// GetSettings returns the user's settings row.
func (s *SQLStore) GetSettings(ctx context.Context, userID string) (*domain.UserSettings, error) {
	var row settingsRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT user_id, apify_api_key, openai_api_key, saved_prompts, updated_at
		FROM user_settings WHERE user_id = ?`), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSettingsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}

	settings := &domain.UserSettings{
		UserID:       row.UserID,
		APIKeys:      domain.APIKeys{Apify: row.ApifyAPIKey, OpenAI: row.OpenAIAPIKey},
		SavedPrompts: []domain.SavedPrompt{},
		UpdatedAt:    row.UpdatedAt,
	}
	if row.SavedPrompts != "" {
		if err := json.Unmarshal([]byte(row.SavedPrompts), &settings.SavedPrompts); err != nil {
			return nil, fmt.Errorf("decode saved prompts: %w", err)
		}
	}
	return settings, nil
}

// UpsertSettings writes the row, replacing any existing one for the user.
func (s *SQLStore) UpsertSettings(ctx context.Context, settings *domain.UserSettings) error {
	prompts := settings.SavedPrompts
	if prompts == nil {
		prompts = []domain.SavedPrompt{}
	}
	data, err := json.Marshal(prompts)
	if err != nil {
		return fmt.Errorf("encode saved prompts: %w", err)
	}

	updatedAt := settings.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO user_settings (user_id, apify_api_key, openai_api_key, saved_prompts, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			apify_api_key = EXCLUDED.apify_api_key,
			openai_api_key = EXCLUDED.openai_api_key,
			saved_prompts = EXCLUDED.saved_prompts,
			updated_at = EXCLUDED.updated_at`),
		settings.UserID,
		settings.APIKeys.Apify,
		settings.APIKeys.OpenAI,
		string(data),
		updatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	return nil
}

// ListActivePrompts returns active public prompts, oldest first.
func (s *SQLStore) ListActivePrompts(ctx context.Context) ([]domain.PublicPrompt, error) {
	var rows []promptRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT id, name, text, created_at, created_by, is_active
		FROM public_prompts WHERE is_active = ? ORDER BY created_at, id`), true)
	if err != nil {
		return nil, fmt.Errorf("list public prompts: %w", err)
	}

	result := make([]domain.PublicPrompt, 0, len(rows))
	for _, r := range rows {
		result = append(result, r.toDomain())
	}
	return result, nil
}

// GetPrompt retrieves a public prompt by ID.
func (s *SQLStore) GetPrompt(ctx context.Context, id string) (*domain.PublicPrompt, error) {
	var row promptRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT id, name, text, created_at, created_by, is_active
		FROM public_prompts WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPromptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get public prompt: %w", err)
	}
	p := row.toDomain()
	return &p, nil
}

// CreatePrompt inserts a public prompt.
func (s *SQLStore) CreatePrompt(ctx context.Context, prompt *domain.PublicPrompt) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO public_prompts (id, name, text, created_at, created_by, is_active)
		VALUES (?, ?, ?, ?, ?, ?)`),
		prompt.ID, prompt.Name, prompt.Text, prompt.CreatedAt.UTC(), prompt.CreatedBy, prompt.IsActive,
	)
	if err != nil {
		return fmt.Errorf("create public prompt: %w", err)
	}
	return nil
}

// UpdatePrompt replaces name, text and is_active.
func (s *SQLStore) UpdatePrompt(ctx context.Context, prompt *domain.PublicPrompt) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE public_prompts SET name = ?, text = ?, is_active = ? WHERE id = ?`),
		prompt.Name, prompt.Text, prompt.IsActive, prompt.ID,
	)
	if err != nil {
		return fmt.Errorf("update public prompt: %w", err)
	}
	return requireAffected(res)
}

// DeletePrompt removes a public prompt.
func (s *SQLStore) DeletePrompt(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM public_prompts WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete public prompt: %w", err)
	}
	return requireAffected(res)
}

// LoadDraft returns the user's saved extraction draft.
func (s *SQLStore) LoadDraft(ctx context.Context, userID string) (*domain.ExtractionSettings, error) {
	var data string
	err := s.db.GetContext(ctx, &data, s.db.Rebind(`SELECT settings FROM extraction_drafts WHERE user_id = ?`), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSettingsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}

	var draft domain.ExtractionSettings
	if err := json.Unmarshal([]byte(data), &draft); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	return &draft, nil
}

// SaveDraft replaces the user's extraction draft.
func (s *SQLStore) SaveDraft(ctx context.Context, userID string, draft domain.ExtractionSettings) error {
	data, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}

	_, err = s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO extraction_drafts (user_id, settings, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			settings = EXCLUDED.settings,
			updated_at = EXCLUDED.updated_at`),
		userID, string(data), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrPromptNotFound
	}
	return nil
}
