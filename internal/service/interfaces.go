package service

import (
	"context"

	"github.com/iconidentify/xreply/internal/domain"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks
//go:generate mockgen -destination=mocks/apify.go -package=mocks -mock_names=Client=MockApifyClient github.com/iconidentify/xreply/pkg/apify Client
//go:generate mockgen -destination=mocks/openai.go -package=mocks -mock_names=Client=MockOpenAIClient github.com/iconidentify/xreply/pkg/openai Client

// Extractor turns a URL list into normalized tweets.
type Extractor interface {
	Extract(ctx context.Context, userID string, in domain.ExtractionInput) ([]domain.Tweet, error)
}

// Generator writes reply comments for a batch of tweets.
type Generator interface {
	Generate(ctx context.Context, userID string, in domain.GenerationInput) ([]domain.GeneratedComment, error)
}

// CredentialProvider resolves a user's API keys.
type CredentialProvider interface {
	APIKeys(ctx context.Context, userID string) (domain.APIKeys, error)
}

// ResultPublisher forwards completed batches to downstream consumers.
type ResultPublisher interface {
	Publish(ctx context.Context, msg domain.ResultMessage) error
}
