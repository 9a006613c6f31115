package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/iconidentify/xreply/internal/domain"
	"github.com/iconidentify/xreply/internal/worker"
	"github.com/iconidentify/xreply/pkg/openai"
)

const generationSource = "generation"

// GenerationService writes CommentsPerTweet replies for every tweet.
type GenerationService struct {
	client openai.Client
	pool   *worker.Pool
	events domain.EventEmitter
	logger *slog.Logger
}

// NewGenerationService creates a new generation service. With a nil pool
// calls run one at a time.
func NewGenerationService(client openai.Client, pool *worker.Pool, events domain.EventEmitter, logger *slog.Logger) *GenerationService {
	return &GenerationService{
		client: client,
		pool:   pool,
		events: events,
		logger: logger,
	}
}

// Generate returns the comments grouped by tweet in input order with the
// repetitions of one tweet consecutive. The first failed call aborts the
// batch and no comments are returned.
func (s *GenerationService) Generate(ctx context.Context, userID string, in domain.GenerationInput) ([]domain.GeneratedComment, error) {
	if in.APIKey == "" {
		return nil, domain.NewCredentialError(domain.ServiceOpenAI)
	}
	if len(in.Tweets) == 0 {
		return nil, fmt.Errorf("no tweets to comment on: %w", domain.ErrEmptyInput)
	}
	if strings.TrimSpace(in.Prompt) == "" {
		return nil, fmt.Errorf("prompt is empty: %w", domain.ErrEmptyInput)
	}
	if err := domain.ValidateCommentsPerTweet(in.CommentsPerTweet); err != nil {
		return nil, err
	}

	total := len(in.Tweets) * in.CommentsPerTweet
	logger := s.logger.With("user_id", userID, "tweets", len(in.Tweets), "comments_per_tweet", in.CommentsPerTweet)
	started := time.Now()

	emitEvent(s.events, domain.EventSeverityInfo, userID, domain.EventCategoryGeneration, generationSource,
		fmt.Sprintf("Generating %d comments for %d tweets", total, len(in.Tweets)),
		domain.EventMetadata{
			"tweets":           len(in.Tweets),
			"commentsPerTweet": in.CommentsPerTweet,
			"total":            total,
		})
	logger.Info("starting generation", "total", total)

	comments := make([]domain.GeneratedComment, total)
	task := func(ctx context.Context, slot int) error {
		idx := slot / in.CommentsPerTweet
		tweet := in.Tweets[idx]
		text, err := s.client.GenerateComment(ctx, in.APIKey, openai.CommentRequest{
			Prompt:    in.Prompt,
			TweetText: tweet.Text,
		})
		if err != nil {
			return domain.AttachTweet(err, tweet.ID, idx)
		}
		comments[slot] = domain.NewGeneratedComment(tweet, text)
		return nil
	}

	var err error
	if s.pool != nil && s.pool.Workers() > 1 {
		err = s.pool.Run(ctx, total, task)
	} else {
		for slot := 0; slot < total; slot++ {
			if err = ctx.Err(); err != nil {
				break
			}
			if err = task(ctx, slot); err != nil {
				break
			}
		}
	}

	if errors.Is(err, context.Canceled) {
		logger.Info("generation cancelled", "duration", time.Since(started))
		return nil, err
	}
	if err != nil {
		s.reportFailure(userID, in.Tweets, err)
		logger.Error("generation failed", "error", err)
		return nil, err
	}

	elapsed := time.Since(started)
	emitEvent(s.events, domain.EventSeveritySuccess, userID, domain.EventCategoryGeneration, generationSource,
		fmt.Sprintf("Generated %d comments", len(comments)),
		domain.EventMetadata{
			"count":      len(comments),
			"durationMs": elapsed.Milliseconds(),
		})
	logger.Info("generation completed", "count", len(comments), "duration", elapsed)

	return comments, nil
}

func (s *GenerationService) reportFailure(userID string, tweets []domain.Tweet, err error) {
	meta := domain.EventMetadata{"error": err.Error()}

	var upstream *domain.UpstreamError
	var network *domain.NetworkError
	switch {
	case errors.As(err, &upstream):
		meta["tweetId"] = upstream.TweetID
		meta["tweetIndex"] = upstream.TweetIndex
		meta["status"] = upstream.StatusCode
		meta["responseBody"] = upstream.Body
	case errors.As(err, &network):
		meta["tweetId"] = network.TweetID
		meta["tweetIndex"] = indexOfTweet(tweets, network.TweetID)
		meta["errorType"] = "network"
	}

	emitEvent(s.events, domain.EventSeverityError, userID, domain.EventCategoryGeneration, generationSource,
		"Comment generation failed: "+err.Error(), meta)
}

func indexOfTweet(tweets []domain.Tweet, id string) int {
	for i, t := range tweets {
		if t.ID == id {
			return i
		}
	}
	return -1
}
