package service

import (
	"context"
	"log/slog"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iconidentify/xreply/internal/config"
	"github.com/iconidentify/xreply/internal/domain"
	"github.com/iconidentify/xreply/internal/repository"
	"github.com/iconidentify/xreply/pkg/crypto"
)

func newTestSettingsService(t *testing.T, store repository.Store, sealer *crypto.Sealer) *SettingsService {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewSettingsService(store, sealer, config.CacheConfig{
		SettingsTTL:     time.Minute,
		CleanupInterval: time.Minute,
	}, nil, logger)
}

func TestSettingsService_Defaults(t *testing.T) {
	svc := newTestSettingsService(t, repository.NewInMemoryStore(), nil)

	settings, err := svc.Load(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", settings.UserID)
	assert.Empty(t, settings.APIKeys.Apify)
	assert.Empty(t, settings.APIKeys.OpenAI)
	assert.Empty(t, settings.SavedPrompts)
}

func TestSettingsService_SaveAPIKeys(t *testing.T) {
	ctx := context.Background()
	svc := newTestSettingsService(t, repository.NewInMemoryStore(), nil)

	err := svc.SaveAPIKeys(ctx, "alice", domain.APIKeys{Apify: "  apify_api_abc  ", OpenAI: "sk-xyz"})
	require.NoError(t, err)

	keys, err := svc.APIKeys(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.APIKeys{Apify: "apify_api_abc", OpenAI: "sk-xyz"}, keys)

	// other users are unaffected
	other, err := svc.APIKeys(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.APIKeys{}, other)
}

func TestSettingsService_SaveAPIKeys_RejectsBadPrefix(t *testing.T) {
	ctx := context.Background()
	svc := newTestSettingsService(t, repository.NewInMemoryStore(), nil)

	err := svc.SaveAPIKeys(ctx, "alice", domain.APIKeys{Apify: "wrong", OpenAI: "also-wrong"})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), domain.ApifyKeyPrefix)
	assert.Contains(t, err.Error(), domain.OpenAIKeyPrefix)

	keys, err := svc.APIKeys(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.APIKeys{}, keys, "nothing was written")
}

func TestSettingsService_KeysSealedAtRest(t *testing.T) {
	ctx := context.Background()
	store := repository.NewInMemoryStore()
	sealer, err := crypto.NewSealer("server secret")
	require.NoError(t, err)
	svc := newTestSettingsService(t, store, sealer)

	require.NoError(t, svc.SaveAPIKeys(ctx, "alice", domain.APIKeys{Apify: "apify_api_abc", OpenAI: "sk-xyz"}))

	row, err := store.GetSettings(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, crypto.IsSealed(row.APIKeys.Apify))
	assert.True(t, crypto.IsSealed(row.APIKeys.OpenAI))
	assert.NotContains(t, row.APIKeys.Apify, "abc")

	keys, err := svc.APIKeys(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "apify_api_abc", keys.Apify)
	assert.Equal(t, "sk-xyz", keys.OpenAI)

	// a fresh service without a cache reads the sealed row back
	fresh := newTestSettingsService(t, store, sealer)
	keys, err = fresh.APIKeys(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "sk-xyz", keys.OpenAI)

	// without the sealer the row is unreadable
	unkeyed := newTestSettingsService(t, store, nil)
	_, err = unkeyed.APIKeys(ctx, "alice")
	assert.Error(t, err)
}

func TestSettingsService_PlaintextRowsReadableWithSealer(t *testing.T) {
	ctx := context.Background()
	store := repository.NewInMemoryStore()
	require.NoError(t, store.UpsertSettings(ctx, &domain.UserSettings{
		UserID:  "alice",
		APIKeys: domain.APIKeys{OpenAI: "sk-legacy"},
	}))

	sealer, err := crypto.NewSealer("server secret")
	require.NoError(t, err)
	svc := newTestSettingsService(t, store, sealer)

	keys, err := svc.APIKeys(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "sk-legacy", keys.OpenAI)
}

func TestSettingsService_CacheInvalidatedOnWrite(t *testing.T) {
	ctx := context.Background()
	store := repository.NewInMemoryStore()
	svc := newTestSettingsService(t, store, nil)

	_, err := svc.Load(ctx, "alice")
	require.NoError(t, err)

	require.NoError(t, svc.SaveAPIKeys(ctx, "alice", domain.APIKeys{OpenAI: "sk-1"}))
	keys, err := svc.APIKeys(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "sk-1", keys.OpenAI)

	// Load hands out copies
	settings, err := svc.Load(ctx, "alice")
	require.NoError(t, err)
	settings.APIKeys.OpenAI = "sk-mutated"
	keys, err = svc.APIKeys(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "sk-1", keys.OpenAI)
}

func TestSettingsService_SavePrompt(t *testing.T) {
	ctx := context.Background()
	svc := newTestSettingsService(t, repository.NewInMemoryStore(), nil)

	first, created, err := svc.SavePrompt(ctx, "alice", " Witty ", " Be witty. ")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "Witty", first.Name)
	assert.Equal(t, "Be witty.", first.Text)

	t.Run("duplicate name", func(t *testing.T) {
		_, _, err := svc.SavePrompt(ctx, "alice", "Witty", "Something else")
		assert.ErrorIs(t, err, domain.ErrDuplicatePrompt)
	})

	t.Run("duplicate text returns existing", func(t *testing.T) {
		existing, created, err := svc.SavePrompt(ctx, "alice", "Another name", "Be witty.")
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, existing.ID)
	})

	t.Run("blank fields", func(t *testing.T) {
		_, _, err := svc.SavePrompt(ctx, "alice", "", "text")
		assert.ErrorIs(t, err, domain.ErrValidation)
		_, _, err = svc.SavePrompt(ctx, "alice", "name", "   ")
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	second, created, err := svc.SavePrompt(ctx, "alice", "Formal", "Be formal.")
	require.NoError(t, err)
	assert.True(t, created)

	prompts, err := svc.ListPrompts(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, prompts, 2)
	assert.Equal(t, first.ID, prompts[0].ID)
	assert.Equal(t, second.ID, prompts[1].ID)
}

func TestSettingsService_ConcurrentWritesAllSurvive(t *testing.T) {
	ctx := context.Background()
	svc := newTestSettingsService(t, repository.NewInMemoryStore(), nil)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, created, err := svc.SavePrompt(ctx, "alice", fmt.Sprintf("Prompt %d", i), fmt.Sprintf("Text %d", i))
			assert.NoError(t, err)
			assert.True(t, created)
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, svc.SaveAPIKeys(ctx, "alice", domain.APIKeys{OpenAI: "sk-concurrent"}))
	}()
	wg.Wait()

	settings, err := svc.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, settings.SavedPrompts, n)
	assert.Equal(t, "sk-concurrent", settings.APIKeys.OpenAI)
}

func TestSettingsService_DeletePrompt(t *testing.T) {
	ctx := context.Background()
	svc := newTestSettingsService(t, repository.NewInMemoryStore(), nil)

	p, _, err := svc.SavePrompt(ctx, "alice", "Witty", "Be witty.")
	require.NoError(t, err)

	require.NoError(t, svc.DeletePrompt(ctx, "alice", p.ID))
	prompts, err := svc.ListPrompts(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, prompts)

	assert.ErrorIs(t, svc.DeletePrompt(ctx, "alice", p.ID), domain.ErrPromptNotFound)
}

func TestSettingsService_PublicPrompts(t *testing.T) {
	ctx := context.Background()
	svc := newTestSettingsService(t, repository.NewInMemoryStore(), nil)

	prompts, err := svc.ListPublicPrompts(ctx)
	require.NoError(t, err)
	assert.Empty(t, prompts)

	created, err := svc.CreatePublicPrompt(ctx, "admin", "Friendly", "Be friendly.")
	require.NoError(t, err)
	assert.True(t, created.IsActive)
	assert.Equal(t, "admin", created.CreatedBy)

	// the cached empty list was invalidated
	prompts, err = svc.ListPublicPrompts(ctx)
	require.NoError(t, err)
	require.Len(t, prompts, 1)
	assert.Equal(t, "Friendly", prompts[0].Name)

	created.IsActive = false
	require.NoError(t, svc.UpdatePublicPrompt(ctx, created))
	prompts, err = svc.ListPublicPrompts(ctx)
	require.NoError(t, err)
	assert.Empty(t, prompts, "inactive prompts are hidden")

	got, err := svc.GetPublicPrompt(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	require.NoError(t, svc.DeletePublicPrompt(ctx, created.ID))
	_, err = svc.GetPublicPrompt(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrPromptNotFound)

	_, err = svc.CreatePublicPrompt(ctx, "admin", " ", "text")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
