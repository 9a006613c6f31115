package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iconidentify/xreply/internal/config"
	"github.com/iconidentify/xreply/internal/domain"
)

// Client runs an actor synchronously and returns its dataset items.
type Client interface {
	RunSync(ctx context.Context, token string, req *Request) (*RunResult, error)
	// Endpoint returns the call URL with the token redacted, for logging.
	Endpoint(req *Request) string
}

// RunResult is a successful actor response.
type RunResult struct {
	StatusCode int
	Status     string
	Header     http.Header
	Items      []json.RawMessage
}

// ResponseError carries the diagnostics of a rejected actor call.
type ResponseError struct {
	Upstream    *domain.UpstreamError
	StatusText  string
	Header      http.Header
	ErrorType   string
	ParsedError map[string]interface{}
	ReadError   string
}

func (e *ResponseError) Error() string {
	return e.Upstream.Error()
}

// Unwrap exposes the UpstreamError.
func (e *ResponseError) Unwrap() error {
	return e.Upstream
}

// HTTPClient implements Client over the Apify REST API.
type HTTPClient struct {
	baseURL    string
	runTimeout time.Duration
	httpClient *http.Client
}

// NewClient creates a new Apify client. The HTTP timeout should exceed the
// actor run timeout because the call blocks until the run finishes.
func NewClient(cfg config.ApifyConfig) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		runTimeout: cfg.RunTimeout,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// errorResponse is the error envelope returned by the Apify API.
type errorResponse struct {
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// endpoint expects tokenParam already query-escaped.
func (c *HTTPClient) endpoint(actorID, tokenParam string) string {
	return fmt.Sprintf("%s/acts/%s/run-sync-get-dataset-items?token=%s&timeout=%d",
		c.baseURL, url.PathEscape(actorID), tokenParam, int(c.runTimeout.Seconds()))
}

// Endpoint returns the call URL with the token redacted.
func (c *HTTPClient) Endpoint(req *Request) string {
	return c.endpoint(req.ActorID, "***")
}

// RunSync issues exactly one POST and waits for the run to finish.
func (c *HTTPClient) RunSync(ctx context.Context, token string, req *Request) (*RunResult, error) {
	body, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(req.ActorID, url.QueryEscape(token)), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &domain.NetworkError{Service: domain.ServiceApify, Err: redactToken(err, token)}
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newResponseError(resp, respBody, readErr)
	}
	if readErr != nil {
		return nil, &domain.NetworkError{Service: domain.ServiceApify, Err: fmt.Errorf("read response: %w", readErr)}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(respBody, &items); err != nil {
		return nil, &domain.UpstreamError{
			Service:    domain.ServiceApify,
			StatusCode: resp.StatusCode,
			Message:    "unexpected response shape: expected a JSON array of dataset items",
			Body:       truncate(string(respBody), 2000),
		}
	}

	return &RunResult{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Items:      items,
	}, nil
}

// newResponseError resolves the user-facing message: the API's error
// message, else the raw body, else the status line.
func newResponseError(resp *http.Response, body []byte, readErr error) *ResponseError {
	statusText := http.StatusText(resp.StatusCode)
	re := &ResponseError{
		StatusText: statusText,
		Header:     resp.Header,
		Upstream: &domain.UpstreamError{
			Service:    domain.ServiceApify,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		},
	}
	if readErr != nil {
		re.ReadError = readErr.Error()
	}

	var envelope errorResponse
	if err := json.Unmarshal(body, &envelope); err == nil {
		var parsed map[string]interface{}
		if json.Unmarshal(body, &parsed) == nil {
			re.ParsedError = parsed
		}
		if envelope.Error != nil {
			re.ErrorType = envelope.Error.Type
			re.Upstream.Message = envelope.Error.Message
		}
	}

	if re.Upstream.Message == "" {
		if raw := strings.TrimSpace(string(body)); raw != "" {
			re.Upstream.Message = raw
		}
	}
	if re.Upstream.Message == "" {
		re.Upstream.Message = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, statusText)
	}
	return re
}

// redactToken keeps the token out of *url.Error messages.
func redactToken(err error, token string) error {
	if token == "" || !strings.Contains(err.Error(), url.QueryEscape(token)) {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), url.QueryEscape(token), "***"))
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
