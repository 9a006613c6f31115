package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iconidentify/xreply/internal/config"
	"github.com/iconidentify/xreply/internal/domain"
)

// runStoreContract exercises behaviour every backend must share.
func runStoreContract(t *testing.T, store Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	t.Run("settings not found", func(t *testing.T) {
		_, err := store.GetSettings(ctx, "nobody")
		assert.ErrorIs(t, err, domain.ErrSettingsNotFound)
	})

	t.Run("settings upsert replaces row", func(t *testing.T) {
		first := &domain.UserSettings{
			UserID:  "alice",
			APIKeys: domain.APIKeys{Apify: "apify_api_1"},
			SavedPrompts: []domain.SavedPrompt{
				{ID: "p1", Name: "Witty", Text: "Be witty.", CreatedAt: now},
			},
			UpdatedAt: now,
		}
		require.NoError(t, store.UpsertSettings(ctx, first))

		second := first.Clone()
		second.APIKeys.OpenAI = "sk-2"
		second.SavedPrompts = append(second.SavedPrompts, domain.SavedPrompt{ID: "p2", Name: "Calm", Text: "Be calm.", CreatedAt: now})
		require.NoError(t, store.UpsertSettings(ctx, second))

		got, err := store.GetSettings(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "apify_api_1", got.APIKeys.Apify)
		assert.Equal(t, "sk-2", got.APIKeys.OpenAI)
		require.Len(t, got.SavedPrompts, 2)
		assert.Equal(t, "Witty", got.SavedPrompts[0].Name)
		assert.Equal(t, "Calm", got.SavedPrompts[1].Name)
		assert.True(t, got.SavedPrompts[0].CreatedAt.Equal(now))
	})

	t.Run("settings are isolated per user", func(t *testing.T) {
		require.NoError(t, store.UpsertSettings(ctx, &domain.UserSettings{UserID: "bob", UpdatedAt: now}))

		got, err := store.GetSettings(ctx, "bob")
		require.NoError(t, err)
		assert.Empty(t, got.APIKeys.Apify)
		assert.NotNil(t, got.SavedPrompts)
		assert.Empty(t, got.SavedPrompts)
	})

	t.Run("public prompt lifecycle", func(t *testing.T) {
		older := &domain.PublicPrompt{ID: "pub-1", Name: "Friendly", Text: "Be friendly.", CreatedAt: now.Add(-time.Hour), CreatedBy: "admin", IsActive: true}
		newer := &domain.PublicPrompt{ID: "pub-2", Name: "Formal", Text: "Be formal.", CreatedAt: now, IsActive: true}
		hidden := &domain.PublicPrompt{ID: "pub-3", Name: "Draft", Text: "WIP", CreatedAt: now, IsActive: false}
		require.NoError(t, store.CreatePrompt(ctx, newer))
		require.NoError(t, store.CreatePrompt(ctx, older))
		require.NoError(t, store.CreatePrompt(ctx, hidden))

		active, err := store.ListActivePrompts(ctx)
		require.NoError(t, err)
		require.Len(t, active, 2)
		assert.Equal(t, "pub-1", active[0].ID)
		assert.Equal(t, "pub-2", active[1].ID)
		assert.Equal(t, "admin", active[0].CreatedBy)

		got, err := store.GetPrompt(ctx, "pub-3")
		require.NoError(t, err)
		assert.False(t, got.IsActive)

		got.IsActive = true
		got.Text = "Ready."
		require.NoError(t, store.UpdatePrompt(ctx, got))
		active, err = store.ListActivePrompts(ctx)
		require.NoError(t, err)
		assert.Len(t, active, 3)

		require.NoError(t, store.DeletePrompt(ctx, "pub-3"))
		_, err = store.GetPrompt(ctx, "pub-3")
		assert.ErrorIs(t, err, domain.ErrPromptNotFound)
		assert.ErrorIs(t, store.DeletePrompt(ctx, "pub-3"), domain.ErrPromptNotFound)
		assert.ErrorIs(t, store.UpdatePrompt(ctx, &domain.PublicPrompt{ID: "missing"}), domain.ErrPromptNotFound)
	})

	t.Run("draft round trip", func(t *testing.T) {
		_, err := store.LoadDraft(ctx, "carol")
		assert.ErrorIs(t, err, domain.ErrSettingsNotFound)

		draft := domain.ExtractionSettings{
			ExtractionType:   domain.ExtractionModeAccounts,
			URLs:             "https://x.com/acme\nhttps://x.com/nasa",
			TweetsPerAccount: 7,
			Prompt:           "Be brief.",
			CommentsPerTweet: 2,
		}
		require.NoError(t, store.SaveDraft(ctx, "carol", draft))
		draft.TweetsPerAccount = 9
		require.NoError(t, store.SaveDraft(ctx, "carol", draft))

		got, err := store.LoadDraft(ctx, "carol")
		require.NoError(t, err)
		assert.Equal(t, draft, *got)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, store.Ping(ctx))
	})
}

func TestInMemoryStore(t *testing.T) {
	runStoreContract(t, NewInMemoryStore())
}

func TestInMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.UpsertSettings(ctx, &domain.UserSettings{
		UserID:       "alice",
		SavedPrompts: []domain.SavedPrompt{{ID: "p1", Name: "A", Text: "a"}},
	}))

	got, err := store.GetSettings(ctx, "alice")
	require.NoError(t, err)
	got.SavedPrompts[0].Name = "mutated"

	again, err := store.GetSettings(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "A", again.SavedPrompts[0].Name)
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "nested", "xreply.db"))
	require.NoError(t, err)
	defer store.Close()

	runStoreContract(t, store)
}

func TestSQLiteStore_SchemaIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xreply.db")

	first, err := NewSQLiteStore(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, first.UpsertSettings(context.Background(), &domain.UserSettings{UserID: "alice", APIKeys: domain.APIKeys{OpenAI: "sk-x"}}))
	require.NoError(t, first.Close())

	second, err := NewSQLiteStore(context.Background(), path)
	require.NoError(t, err)
	defer second.Close()

	got, err := second.GetSettings(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "sk-x", got.APIKeys.OpenAI)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, config.StorageConfig{Driver: config.DriverMemory})
	require.NoError(t, err)
	assert.IsType(t, &InMemoryStore{}, store)

	store, err = Open(ctx, config.StorageConfig{Driver: config.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLStore{}, store)
	store.Close()

	_, err = Open(ctx, config.StorageConfig{Driver: "mongo"})
	assert.Error(t, err)
}
