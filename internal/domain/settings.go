package domain

import (
	"strings"
	"time"
)

// Required key prefixes, checked when keys are saved.
const (
	ApifyKeyPrefix  = "apify_api_"
	OpenAIKeyPrefix = "sk-"
)

// APIKeys holds the per-user credentials. Empty means unset.
type APIKeys struct {
	Apify  string `json:"apify"`
	OpenAI string `json:"openai"`
}

// Validate checks key prefixes. Empty values pass.
func (k APIKeys) Validate() error {
	var bad []string
	if k.Apify != "" && !strings.HasPrefix(k.Apify, ApifyKeyPrefix) {
		bad = append(bad, "apify key must start with "+ApifyKeyPrefix)
	}
	if k.OpenAI != "" && !strings.HasPrefix(k.OpenAI, OpenAIKeyPrefix) {
		bad = append(bad, "openai key must start with "+OpenAIKeyPrefix)
	}
	if len(bad) > 0 {
		return &ValidationError{Field: "apiKeys", Reason: ErrInvalidAPIKeyFormat.Error(), Invalid: bad}
	}
	return nil
}

// Masked returns a copy safe to show or log.
func (k APIKeys) Masked() APIKeys {
	return APIKeys{Apify: maskKey(k.Apify), OpenAI: maskKey(k.OpenAI)}
}

func maskKey(s string) string {
	if len(s) <= 8 {
		if s == "" {
			return ""
		}
		return "****"
	}
	return s[:4] + strings.Repeat("*", 4) + s[len(s)-4:]
}

// SavedPrompt is a personal, named instruction template.
type SavedPrompt struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// PublicPrompt is a prompt shared with every user.
type PublicPrompt struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by,omitempty"`
	IsActive  bool      `json:"is_active"`
}

// UserSettings is the durable per-user row.
type UserSettings struct {
	UserID       string        `json:"user_id"`
	APIKeys      APIKeys       `json:"api_keys"`
	SavedPrompts []SavedPrompt `json:"saved_prompts"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// DefaultUserSettings returns the settings of a user without a stored row.
func DefaultUserSettings(userID string) *UserSettings {
	return &UserSettings{
		UserID:       userID,
		SavedPrompts: []SavedPrompt{},
	}
}

// Clone returns a deep copy.
func (s *UserSettings) Clone() *UserSettings {
	cp := *s
	cp.SavedPrompts = append([]SavedPrompt(nil), s.SavedPrompts...)
	if cp.SavedPrompts == nil {
		cp.SavedPrompts = []SavedPrompt{}
	}
	return &cp
}

// FindPromptByName returns the prompt with the given name.
func (s *UserSettings) FindPromptByName(name string) (SavedPrompt, bool) {
	for _, p := range s.SavedPrompts {
		if p.Name == name {
			return p, true
		}
	}
	return SavedPrompt{}, false
}

// FindPromptByText returns the prompt with the given text.
func (s *UserSettings) FindPromptByText(text string) (SavedPrompt, bool) {
	for _, p := range s.SavedPrompts {
		if p.Text == text {
			return p, true
		}
	}
	return SavedPrompt{}, false
}
