package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iconidentify/xreply/internal/domain"
	"github.com/iconidentify/xreply/pkg/apify"
)

const extractionSource = "extraction"

// ExtractionService runs the scraping actor and normalizes its items.
type ExtractionService struct {
	client  apify.Client
	actorID string
	events  domain.EventEmitter
	logger  *slog.Logger
	now     func() time.Time
}

// NewExtractionService creates a new extraction service.
func NewExtractionService(client apify.Client, actorID string, events domain.EventEmitter, logger *slog.Logger) *ExtractionService {
	return &ExtractionService{
		client:  client,
		actorID: actorID,
		events:  events,
		logger:  logger,
		now:     time.Now,
	}
}

// Extract validates the input, issues exactly one actor call and returns
// the normalized tweets. An empty dataset is not an error.
func (s *ExtractionService) Extract(ctx context.Context, userID string, in domain.ExtractionInput) ([]domain.Tweet, error) {
	if in.APIKey == "" {
		return nil, domain.NewCredentialError(domain.ServiceApify)
	}

	req, err := apify.Build(s.actorID, in.Mode, in.URLs, in.TweetsPerAccount)
	if err != nil {
		return nil, err
	}

	started := s.now()
	requestID := fmt.Sprintf("extract_%d", started.UnixMilli())
	logger := s.logger.With("request_id", requestID, "user_id", userID, "actor_id", req.ActorID)

	emitEvent(s.events, domain.EventSeverityInfo, userID, domain.EventCategoryExtraction, extractionSource,
		fmt.Sprintf("Starting %s extraction for %d target(s)", req.Mode, len(req.Targets)),
		domain.EventMetadata{
			"requestId":     requestID,
			"actorId":       req.ActorID,
			"mode":          req.Mode,
			"targets":       req.Targets,
			"expectedItems": req.ExpectedItems(),
			"endpoint":      s.client.Endpoint(req),
			"requestBody":   req.Payload,
		})
	logger.Info("starting extraction", "mode", req.Mode, "targets", len(req.Targets))

	result, err := s.client.RunSync(ctx, in.APIKey, req)
	if errors.Is(err, context.Canceled) {
		// the session already reported the timeout or reset
		logger.Info("extraction cancelled", "duration", s.now().Sub(started))
		return nil, err
	}
	if err != nil {
		s.reportFailure(userID, requestID, req, err, s.now().Sub(started))
		logger.Error("extraction failed", "error", err)
		return nil, err
	}

	elapsed := s.now().Sub(started)
	if len(result.Items) == 0 {
		emitEvent(s.events, domain.EventSeverityWarning, userID, domain.EventCategoryExtraction, extractionSource,
			"No tweets were extracted",
			domain.EventMetadata{
				"requestId":  requestID,
				"actorId":    req.ActorID,
				"statusCode": result.StatusCode,
				"durationMs": elapsed.Milliseconds(),
				"possibleReasons": []string{
					"The accounts are private or suspended",
					"The tweets were deleted",
					"The URLs are wrong",
					"The scraper was rate limited or blocked",
				},
				"suggestions": []string{
					"Open the URLs in a browser to confirm they are public",
					"Try again in a few minutes",
					"Check the actor run in the Apify console",
				},
			})
		logger.Warn("extraction returned no items", "duration", elapsed)
		return []domain.Tweet{}, nil
	}

	tweets := apify.NormalizeItems(result.Items, s.now())

	emitEvent(s.events, domain.EventSeveritySuccess, userID, domain.EventCategoryExtraction, extractionSource,
		fmt.Sprintf("Extracted %d tweets", len(tweets)),
		domain.EventMetadata{
			"requestId":  requestID,
			"actorId":    req.ActorID,
			"statusCode": result.StatusCode,
			"count":      len(tweets),
			"durationMs": elapsed.Milliseconds(),
		})
	logger.Info("extraction completed", "count", len(tweets), "duration", elapsed)

	return tweets, nil
}

func (s *ExtractionService) reportFailure(userID, requestID string, req *apify.Request, err error, elapsed time.Duration) {
	meta := domain.EventMetadata{
		"requestId":   requestID,
		"actorId":     req.ActorID,
		"endpoint":    s.client.Endpoint(req),
		"requestBody": req.Payload,
		"durationMs":  elapsed.Milliseconds(),
		"error":       err.Error(),
	}

	var respErr *apify.ResponseError
	var netErr *domain.NetworkError
	switch {
	case errors.As(err, &respErr):
		meta["status"] = respErr.Upstream.StatusCode
		meta["statusText"] = respErr.StatusText
		meta["headers"] = respErr.Header
		meta["responseBody"] = respErr.Upstream.Body
		if respErr.ParsedError != nil {
			meta["parsedError"] = respErr.ParsedError
		}
		if respErr.ErrorType != "" {
			meta["errorType"] = respErr.ErrorType
		}
		if respErr.ReadError != "" {
			meta["readError"] = respErr.ReadError
		}
	case errors.As(err, &netErr):
		meta["errorType"] = "network"
	}

	emitEvent(s.events, domain.EventSeverityError, userID, domain.EventCategoryExtraction, extractionSource,
		"Extraction failed: "+err.Error(), meta)
}
