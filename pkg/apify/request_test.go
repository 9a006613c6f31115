package apify

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/iconidentify/xreply/internal/domain"
)

func TestBuild_TweetsMode(t *testing.T) {
	urls := []string{
		"https://twitter.com/acme/status/1",
		"https://x.com/other/status/2?s=20",
	}

	// tweetsPerAccount is ignored in tweets mode, even when out of range.
	req, err := Build("", domain.ExtractionModeTweets, urls, 0)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if req.ActorID != DefaultActorID {
		t.Errorf("ActorID = %q, want %q", req.ActorID, DefaultActorID)
	}
	if req.Payload.TweetsDesired != 1 {
		t.Errorf("TweetsDesired = %d, want 1", req.Payload.TweetsDesired)
	}
	want := []StartURL{
		{URL: "https://x.com/acme/status/1"},
		{URL: "https://x.com/other/status/2?s=20"},
	}
	if !reflect.DeepEqual(req.Payload.StartURLs, want) {
		t.Errorf("StartURLs = %+v, want %+v", req.Payload.StartURLs, want)
	}
	if req.Payload.Handles != nil {
		t.Errorf("Handles should be unset in tweets mode, got %v", req.Payload.Handles)
	}
	if req.ExpectedItems() != 2 {
		t.Errorf("ExpectedItems() = %d, want 2", req.ExpectedItems())
	}
}

func TestBuild_AccountsMode(t *testing.T) {
	urls := []string{"https://twitter.com/acme", "https://x.com/nasa/"}

	req, err := Build("custom~actor", domain.ExtractionModeAccounts, urls, 5)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if req.ActorID != "custom~actor" {
		t.Errorf("ActorID = %q", req.ActorID)
	}
	if !reflect.DeepEqual(req.Payload.Handles, []string{"acme", "nasa"}) {
		t.Errorf("Handles = %v", req.Payload.Handles)
	}
	if req.Payload.TweetsDesired != 5 {
		t.Errorf("TweetsDesired = %d, want 5", req.Payload.TweetsDesired)
	}
	if req.ExpectedItems() != 10 {
		t.Errorf("ExpectedItems() = %d, want 10", req.ExpectedItems())
	}
}

func TestBuild_PayloadShape(t *testing.T) {
	req, err := Build("", domain.ExtractionModeAccounts, []string{"https://x.com/acme"}, 3)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	data, err := json.Marshal(req.Payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}

	checks := map[string]interface{}{
		"tweetsDesired":       float64(3),
		"withReplies":         false,
		"includeUserInfo":     true,
		"addUserInfo":         true,
		"includeConversation": false,
	}
	for key, want := range checks {
		if m[key] != want {
			t.Errorf("payload[%q] = %v, want %v", key, m[key], want)
		}
	}
	if _, ok := m["startUrls"]; ok {
		t.Error("accounts payload must not carry startUrls")
	}
	proxy, ok := m["proxyConfig"].(map[string]interface{})
	if !ok {
		t.Fatalf("proxyConfig missing: %v", m)
	}
	if proxy["useApifyProxy"] != true {
		t.Errorf("useApifyProxy = %v", proxy["useApifyProxy"])
	}
	groups, _ := proxy["apifyProxyGroups"].([]interface{})
	if len(groups) != 1 || groups[0] != "RESIDENTIAL" {
		t.Errorf("apifyProxyGroups = %v", proxy["apifyProxyGroups"])
	}
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name        string
		mode        domain.ExtractionMode
		urls        []string
		perAccount  int
		wantIs      error
		wantInvalid []string
	}{
		{
			name:   "empty list",
			mode:   domain.ExtractionModeTweets,
			urls:   nil,
			wantIs: domain.ErrEmptyInput,
		},
		{
			name:        "every unsupported URL is reported",
			mode:        domain.ExtractionModeTweets,
			urls:        []string{"https://x.com/ok/status/1", "https://example.com/a", "nope"},
			wantIs:      domain.ErrValidation,
			wantInvalid: []string{"https://example.com/a", "nope"},
		},
		{
			name:       "accounts count out of range",
			mode:       domain.ExtractionModeAccounts,
			urls:       []string{"https://x.com/acme"},
			perAccount: 101,
			wantIs:     domain.ErrValidation,
		},
		{
			name:        "profile without handle",
			mode:        domain.ExtractionModeAccounts,
			urls:        []string{"https://x.com/"},
			perAccount:  5,
			wantIs:      domain.ErrValidation,
			wantInvalid: []string{"https://x.com/"},
		},
		{
			name:   "unknown mode",
			mode:   "threads",
			urls:   []string{"https://x.com/acme"},
			wantIs: domain.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build("", tt.mode, tt.urls, tt.perAccount)
			if !errors.Is(err, tt.wantIs) {
				t.Fatalf("Build() error = %v, want %v", err, tt.wantIs)
			}
			if tt.wantInvalid == nil {
				return
			}
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *domain.ValidationError, got %T", err)
			}
			if !reflect.DeepEqual(ve.Invalid, tt.wantInvalid) {
				t.Errorf("Invalid = %v, want %v", ve.Invalid, tt.wantInvalid)
			}
		})
	}
}
