// Package openai generates reply comments with the OpenAI chat completions API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/iconidentify/xreply/internal/config"
	"github.com/iconidentify/xreply/internal/domain"
)

// Client writes one comment per call.
type Client interface {
	// GenerateComment asks the model for a reply to tweetText following prompt.
	GenerateComment(ctx context.Context, apiKey string, req CommentRequest) (string, error)
}

// CommentRequest is the input of one completion.
type CommentRequest struct {
	Prompt    string
	TweetText string
}

// HTTPClient implements Client using HTTP requests to the OpenAI API.
type HTTPClient struct {
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

// NewClient creates a new OpenAI API client.
func NewClient(cfg config.OpenAIConfig) *HTTPClient {
	return &HTTPClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// chatRequest is the request body for the chat completions API.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the response from the chat completions API.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// BuildUserMessage joins the instruction and the quoted tweet text.
func BuildUserMessage(prompt, tweetText string) string {
	return fmt.Sprintf("%s\n\nTweet: \"%s\"", prompt, tweetText)
}

// GenerateComment sends a single-turn chat completion. A success response
// without content yields domain.CommentUnavailable rather than an error.
func (c *HTTPClient) GenerateComment(ctx context.Context, apiKey string, req CommentRequest) (string, error) {
	chatReq := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: BuildUserMessage(req.Prompt, req.TweetText)},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	body, err := json.Marshal(chatReq)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &domain.NetworkError{Service: domain.ServiceOpenAI, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &domain.NetworkError{Service: domain.ServiceOpenAI, Err: fmt.Errorf("read response: %w", err)}
	}

	var chatResp chatResponse
	decodeErr := json.Unmarshal(respBody, &chatResp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		upstream := &domain.UpstreamError{
			Service:    domain.ServiceOpenAI,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
		switch {
		case decodeErr == nil && chatResp.Error != nil && chatResp.Error.Message != "":
			upstream.Message = chatResp.Error.Message
		case strings.TrimSpace(string(respBody)) != "":
			upstream.Message = strings.TrimSpace(string(respBody))
		default:
			upstream.Message = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		}
		return "", upstream
	}

	if decodeErr != nil {
		return "", &domain.UpstreamError{
			Service:    domain.ServiceOpenAI,
			StatusCode: resp.StatusCode,
			Message:    "unmarshal response: " + decodeErr.Error(),
			Body:       string(respBody),
		}
	}

	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message.Content == nil || *chatResp.Choices[0].Message.Content == "" {
		return domain.CommentUnavailable, nil
	}

	return *chatResp.Choices[0].Message.Content, nil
}
