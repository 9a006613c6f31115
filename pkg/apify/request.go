// Package apify talks to Apify scraping actors.
package apify

import (
	"fmt"

	"github.com/iconidentify/xreply/internal/domain"
	"github.com/iconidentify/xreply/pkg/twitter"
)

// DefaultActorID is the Twitter scraper actor used when none is configured.
const DefaultActorID = "web.harvester~twitter-scraper"

// ProxyConfig routes the actor through Apify's residential proxy pool.
type ProxyConfig struct {
	UseApifyProxy    bool     `json:"useApifyProxy"`
	ApifyProxyGroups []string `json:"apifyProxyGroups"`
}

// StartURL is one single-tweet target.
type StartURL struct {
	URL string `json:"url"`
}

// Payload is the actor input. Exactly one of Handles or StartURLs is set.
type Payload struct {
	Handles             []string    `json:"handles,omitempty"`
	StartURLs           []StartURL  `json:"startUrls,omitempty"`
	TweetsDesired       int         `json:"tweetsDesired"`
	WithReplies         bool        `json:"withReplies"`
	IncludeUserInfo     bool        `json:"includeUserInfo"`
	AddUserInfo         bool        `json:"addUserInfo"`
	IncludeConversation bool        `json:"includeConversation"`
	ProxyConfig         ProxyConfig `json:"proxyConfig"`
}

// Request is a fully built actor invocation.
type Request struct {
	ActorID string
	Mode    domain.ExtractionMode
	Payload Payload
	// Targets lists the handles (accounts mode) or canonical URLs (tweets mode).
	Targets []string
}

// ExpectedItems is the upper bound of items the run can return.
func (r *Request) ExpectedItems() int {
	return len(r.Targets) * r.Payload.TweetsDesired
}

func basePayload(tweetsDesired int) Payload {
	return Payload{
		TweetsDesired:       tweetsDesired,
		WithReplies:         false,
		IncludeUserInfo:     true,
		AddUserInfo:         true,
		IncludeConversation: false,
		ProxyConfig: ProxyConfig{
			UseApifyProxy:    true,
			ApifyProxyGroups: []string{"RESIDENTIAL"},
		},
	}
}

// Build constructs the actor request for mode. Every URL must already pass
// twitter.IsSupportedURL; the check is repeated here and all offending
// entries are reported together. In tweets mode tweetsPerAccount is ignored
// and each target yields exactly one tweet.
func Build(actorID string, mode domain.ExtractionMode, urls []string, tweetsPerAccount int) (*Request, error) {
	if actorID == "" {
		actorID = DefaultActorID
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("build actor request: %w", domain.ErrEmptyInput)
	}

	var invalid []string
	for _, u := range urls {
		if !twitter.IsSupportedURL(u) {
			invalid = append(invalid, u)
		}
	}
	if len(invalid) > 0 {
		return nil, domain.NewValidationError("urls", "unsupported URL (only twitter.com and x.com are accepted)", invalid...)
	}

	switch mode {
	case domain.ExtractionModeAccounts:
		return buildAccounts(actorID, urls, tweetsPerAccount)
	case domain.ExtractionModeTweets:
		return buildTweets(actorID, urls), nil
	default:
		return nil, domain.NewValidationError("extractionType", "unknown extraction type", string(mode))
	}
}

func buildAccounts(actorID string, urls []string, tweetsPerAccount int) (*Request, error) {
	if err := domain.ValidateTweetsPerAccount(tweetsPerAccount); err != nil {
		return nil, err
	}

	handles := make([]string, 0, len(urls))
	var missing []string
	for _, u := range urls {
		handle := twitter.ExtractHandle(twitter.CanonicalizeHost(u))
		if handle == "" {
			missing = append(missing, u)
			continue
		}
		handles = append(handles, handle)
	}
	if len(missing) > 0 {
		return nil, domain.NewValidationError("urls", "profile URL has no account handle", missing...)
	}

	payload := basePayload(tweetsPerAccount)
	payload.Handles = handles

	return &Request{
		ActorID: actorID,
		Mode:    domain.ExtractionModeAccounts,
		Payload: payload,
		Targets: handles,
	}, nil
}

func buildTweets(actorID string, urls []string) *Request {
	startURLs := make([]StartURL, 0, len(urls))
	targets := make([]string, 0, len(urls))
	for _, u := range urls {
		canonical := twitter.CanonicalizeHost(u)
		startURLs = append(startURLs, StartURL{URL: canonical})
		targets = append(targets, canonical)
	}

	payload := basePayload(1)
	payload.StartURLs = startURLs

	return &Request{
		ActorID: actorID,
		Mode:    domain.ExtractionModeTweets,
		Payload: payload,
		Targets: targets,
	}
}
