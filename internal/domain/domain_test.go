package domain

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestSplitURLList(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", []string{}},
		{"blank lines", "\n  \n\t\n", []string{}},
		{"single", "https://x.com/a", []string{"https://x.com/a"}},
		{"trims and drops blanks", "  https://x.com/a \n\nhttps://twitter.com/b\r\n", []string{"https://x.com/a", "https://twitter.com/b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitURLList(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitURLList(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestClampCounters(t *testing.T) {
	tests := []struct {
		in           int
		wantTweets   int
		wantComments int
	}{
		{-5, 1, 1},
		{0, 1, 1},
		{1, 1, 1},
		{20, 20, 20},
		{21, 21, 20},
		{100, 100, 20},
		{101, 100, 20},
	}

	for _, tt := range tests {
		if got := ClampTweetsPerAccount(tt.in); got != tt.wantTweets {
			t.Errorf("ClampTweetsPerAccount(%d) = %d, want %d", tt.in, got, tt.wantTweets)
		}
		if got := ClampCommentsPerTweet(tt.in); got != tt.wantComments {
			t.Errorf("ClampCommentsPerTweet(%d) = %d, want %d", tt.in, got, tt.wantComments)
		}
	}
}

func TestValidateCounters(t *testing.T) {
	for _, n := range []int{-1, 0, 101} {
		if err := ValidateTweetsPerAccount(n); !errors.Is(err, ErrValidation) {
			t.Errorf("ValidateTweetsPerAccount(%d) = %v, want validation error", n, err)
		}
	}
	for _, n := range []int{-1, 0, 21} {
		if err := ValidateCommentsPerTweet(n); !errors.Is(err, ErrValidation) {
			t.Errorf("ValidateCommentsPerTweet(%d) = %v, want validation error", n, err)
		}
	}
	if err := ValidateTweetsPerAccount(100); err != nil {
		t.Errorf("ValidateTweetsPerAccount(100) = %v", err)
	}
	if err := ValidateCommentsPerTweet(1); err != nil {
		t.Errorf("ValidateCommentsPerTweet(1) = %v", err)
	}
}

func TestExtractionSettings_Clamped(t *testing.T) {
	s := ExtractionSettings{
		ExtractionType:   "bogus",
		TweetsPerAccount: 500,
		CommentsPerTweet: -3,
	}.Clamped()

	if s.ExtractionType != ExtractionModeTweets {
		t.Errorf("ExtractionType = %q, want tweets", s.ExtractionType)
	}
	if s.TweetsPerAccount != MaxTweetsPerAccount {
		t.Errorf("TweetsPerAccount = %d, want %d", s.TweetsPerAccount, MaxTweetsPerAccount)
	}
	if s.CommentsPerTweet != MinCommentsPerTweet {
		t.Errorf("CommentsPerTweet = %d, want %d", s.CommentsPerTweet, MinCommentsPerTweet)
	}

	unset := ExtractionSettings{ExtractionType: ExtractionModeAccounts}.Clamped()
	if unset.TweetsPerAccount != DefaultTweetsPerAccount || unset.CommentsPerTweet != DefaultCommentsPerTweet {
		t.Errorf("zero counters should restore defaults, got %+v", unset)
	}
}

func TestExtractionSettings_ValidateByRun(t *testing.T) {
	tests := []struct {
		name           string
		settings       ExtractionSettings
		wantExtraction bool
		wantGeneration bool
		wantSettings   bool
	}{
		{
			name:     "tweets mode ignores tweetsPerAccount",
			settings: ExtractionSettings{ExtractionType: ExtractionModeTweets, TweetsPerAccount: 0, CommentsPerTweet: 3},
		},
		{
			name:           "accounts mode checks tweetsPerAccount",
			settings:       ExtractionSettings{ExtractionType: ExtractionModeAccounts, TweetsPerAccount: 0, CommentsPerTweet: 3},
			wantExtraction: true,
			wantSettings:   true,
		},
		{
			name:           "commentsPerTweet only blocks generation",
			settings:       ExtractionSettings{ExtractionType: ExtractionModeTweets, TweetsPerAccount: 10, CommentsPerTweet: 0},
			wantGeneration: true,
			wantSettings:   true,
		},
		{
			name:           "unknown mode blocks both",
			settings:       ExtractionSettings{ExtractionType: "lists", TweetsPerAccount: 10, CommentsPerTweet: 3},
			wantExtraction: true,
			wantGeneration: true,
			wantSettings:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.settings.ValidateExtraction(); (err != nil) != tt.wantExtraction {
				t.Errorf("ValidateExtraction() = %v, wantErr %v", err, tt.wantExtraction)
			}
			if err := tt.settings.ValidateGeneration(); (err != nil) != tt.wantGeneration {
				t.Errorf("ValidateGeneration() = %v, wantErr %v", err, tt.wantGeneration)
			}
			if err := tt.settings.Validate(); (err != nil) != tt.wantSettings {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantSettings)
			}
		})
	}
}

func TestSynthesizeTweetID(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	if got := SynthesizeTweetID(at, 4); got != "tweet-1700000000123-4" {
		t.Errorf("SynthesizeTweetID = %q", got)
	}
}

func TestAPIKeys_Validate(t *testing.T) {
	tests := []struct {
		name    string
		keys    APIKeys
		wantErr bool
	}{
		{"both empty", APIKeys{}, false},
		{"valid", APIKeys{Apify: "apify_api_abc", OpenAI: "sk-abc"}, false},
		{"bad apify", APIKeys{Apify: "abc"}, true},
		{"bad openai", APIKeys{OpenAI: "pk-abc"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.keys.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("error should match ErrValidation: %v", err)
			}
		})
	}
}

func TestAPIKeys_Masked(t *testing.T) {
	m := APIKeys{Apify: "apify_api_1234567890", OpenAI: "sk-1"}.Masked()
	if strings.Contains(m.Apify, "567") {
		t.Errorf("apify key not masked: %q", m.Apify)
	}
	if m.OpenAI != "****" {
		t.Errorf("short key = %q, want ****", m.OpenAI)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	cred := NewCredentialError(ServiceApify)
	if !errors.Is(cred, ErrMissingCredential) {
		t.Error("CredentialError should match ErrMissingCredential")
	}
	if !strings.Contains(cred.Error(), "Apify") {
		t.Errorf("message should name Apify: %q", cred.Error())
	}

	val := NewValidationError("urls", "unsupported URL", "https://example.com/x", "nope")
	if !errors.Is(val, ErrValidation) {
		t.Error("ValidationError should match ErrValidation")
	}
	if !strings.Contains(val.Error(), "https://example.com/x, nope") {
		t.Errorf("message should list every invalid entry: %q", val.Error())
	}

	net := &NetworkError{Service: ServiceApify, Err: errors.New("dial tcp: refused")}
	if !errors.Is(net, ErrNetwork) || errors.Is(net, ErrUpstream) {
		t.Error("NetworkError should match ErrNetwork only")
	}

	up := &UpstreamError{Service: ServiceOpenAI, StatusCode: 429, Message: "rate limited"}
	if !errors.Is(up, ErrUpstream) || errors.Is(up, ErrNetwork) {
		t.Error("UpstreamError should match ErrUpstream only")
	}
}

func TestAttachTweet(t *testing.T) {
	up := &UpstreamError{Service: ServiceOpenAI, StatusCode: 429, Message: "slow down"}
	err := AttachTweet(up, "42", 2)

	var got *UpstreamError
	if !errors.As(err, &got) {
		t.Fatalf("expected UpstreamError, got %T", err)
	}
	if got.TweetID != "42" || got.TweetIndex != 2 {
		t.Errorf("tweet = %q/%d, want 42/2", got.TweetID, got.TweetIndex)
	}
	if up.TweetID != "" {
		t.Error("original error must not be mutated")
	}

	plain := errors.New("boom")
	if AttachTweet(plain, "1", 0) != plain {
		t.Error("unrelated errors should pass through")
	}
}

func TestExportArtifact_RoundTrip(t *testing.T) {
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	tweets := []Tweet{{ID: "1", Text: "hello", URL: "https://x.com/a/status/1", Author: "a", CreatedAt: "2024-05-01T00:00:00Z"}}
	comments := []GeneratedComment{NewGeneratedComment(tweets[0], "nice")}
	settings := DefaultExtractionSettings()

	data, err := NewExportArtifact(tweets, comments, settings, at).Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	for _, key := range []string{`"extractedTweets"`, `"generatedComments"`, `"extractionSettings"`, `"exportDate": "2024-05-06T07:08:09.000Z"`, `"tweetId"`, `"createdAt"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("artifact missing %s:\n%s", key, data)
		}
	}

	parsed, err := ParseExportArtifact(data)
	if err != nil {
		t.Fatalf("ParseExportArtifact() error = %v", err)
	}
	if !reflect.DeepEqual(parsed.ExtractedTweets, tweets) {
		t.Errorf("tweets = %+v, want %+v", parsed.ExtractedTweets, tweets)
	}
	if !reflect.DeepEqual(parsed.GeneratedComments, comments) {
		t.Errorf("comments = %+v, want %+v", parsed.GeneratedComments, comments)
	}
	if parsed.ExtractionSettings != settings {
		t.Errorf("settings = %+v, want %+v", parsed.ExtractionSettings, settings)
	}
}

func TestExportArtifact_MarshalKeepsMarkup(t *testing.T) {
	tweet := Tweet{ID: "7", Text: "Q&A <today>", URL: "https://x.com/a/status/7?s=20&t=abc", Author: "a"}
	artifact := NewExportArtifact([]Tweet{tweet}, nil, DefaultExtractionSettings(), time.Unix(0, 0))

	data, err := artifact.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	got := string(data)
	for _, want := range []string{`"text": "Q&A <today>"`, `"url": "https://x.com/a/status/7?s=20&t=abc"`} {
		if !strings.Contains(got, want) {
			t.Errorf("artifact missing %s:\n%s", want, got)
		}
	}
	if strings.Contains(got, `\u0026`) || strings.Contains(got, `\u003c`) {
		t.Errorf("artifact escapes markup:\n%s", got)
	}
	if strings.HasSuffix(got, "\n") {
		t.Error("artifact should not end with a newline")
	}
}

func TestExportFilenames(t *testing.T) {
	at := time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC)
	if got := ExportFilename(at); got != "tweet_data_2024-12-31.json" {
		t.Errorf("ExportFilename = %q", got)
	}
	if got := LogExportFilename(at); got != "app_logs_2024-12-31.json" {
		t.Errorf("LogExportFilename = %q", got)
	}
}

func TestEvent_ToLogExportEntry(t *testing.T) {
	e := Event{
		Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 600_000_000, time.UTC),
		Severity:  EventSeverityWarning,
		Message:   "nothing found",
	}
	entry := e.ToLogExportEntry()
	if entry.Timestamp != "2024-01-02T03:04:05.600Z" {
		t.Errorf("Timestamp = %q", entry.Timestamp)
	}
	if string(entry.Details) != "null" {
		t.Errorf("Details = %s, want null", entry.Details)
	}
	if entry.Type != EventSeverityWarning {
		t.Errorf("Type = %q", entry.Type)
	}
}
