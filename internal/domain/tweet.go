package domain

import (
	"fmt"
	"strings"
	"time"
)

// ExtractionMode selects how the scraping actor is addressed.
type ExtractionMode string

const (
	// ExtractionModeTweets extracts individual tweets by their status URLs.
	ExtractionModeTweets ExtractionMode = "tweets"
	// ExtractionModeAccounts extracts the latest tweets of each account.
	ExtractionModeAccounts ExtractionMode = "accounts"
)

// Valid reports whether m is a known extraction mode.
func (m ExtractionMode) Valid() bool {
	return m == ExtractionModeTweets || m == ExtractionModeAccounts
}

// Bounds for per-run counters.
const (
	MinTweetsPerAccount = 1
	MaxTweetsPerAccount = 100
	MinCommentsPerTweet = 1
	MaxCommentsPerTweet = 20

	DefaultTweetsPerAccount = 5
	DefaultCommentsPerTweet = 3
)

// Placeholders used when the upstream payload lacks a field.
const (
	TextUnavailable    = "Text unavailable"
	UnknownAuthor      = "Unknown author"
	CommentUnavailable = "Could not generate a comment"
)

// Tweet is a normalized scrape result. It is immutable once built and is
// replaced wholesale by the next extraction run.
type Tweet struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	URL       string `json:"url"`
	Author    string `json:"author"`
	CreatedAt string `json:"createdAt"`
}

// SynthesizeTweetID builds an id for a scrape item that carried none.
// Unique within one batch because index is.
func SynthesizeTweetID(at time.Time, index int) string {
	return fmt.Sprintf("tweet-%d-%d", at.UnixMilli(), index)
}

// GeneratedComment is one AI-written reply for a tweet. Tweet text and URL
// are snapshots taken at generation time.
type GeneratedComment struct {
	TweetID   string `json:"tweetId"`
	TweetText string `json:"tweetText"`
	TweetURL  string `json:"tweetUrl"`
	Comment   string `json:"comment"`
	Expanded  bool   `json:"expanded"`
}

// NewGeneratedComment ties a comment back to its source tweet.
func NewGeneratedComment(t Tweet, comment string) GeneratedComment {
	return GeneratedComment{
		TweetID:   t.ID,
		TweetText: t.Text,
		TweetURL:  t.URL,
		Comment:   comment,
	}
}

// ExtractionSettings is the session-scoped form state.
type ExtractionSettings struct {
	ExtractionType   ExtractionMode `json:"extractionType"`
	URLs             string         `json:"urls"`
	TweetsPerAccount int            `json:"tweetsPerAccount"`
	Prompt           string         `json:"prompt"`
	CommentsPerTweet int            `json:"commentsPerTweet"`
}

// DefaultPrompt is the instruction used until the user picks another one.
const DefaultPrompt = "Write a smart and engaging reply to this tweet. Use a conversational tone. The reply must be in English and no longer than 280 characters."

// DefaultExtractionSettings returns the settings of a fresh session.
func DefaultExtractionSettings() ExtractionSettings {
	return ExtractionSettings{
		ExtractionType:   ExtractionModeTweets,
		TweetsPerAccount: DefaultTweetsPerAccount,
		Prompt:           DefaultPrompt,
		CommentsPerTweet: DefaultCommentsPerTweet,
	}
}

// URLList splits the raw newline-delimited input into trimmed, non-blank entries.
func (s ExtractionSettings) URLList() []string {
	return SplitURLList(s.URLs)
}

// Clamped returns a copy with counters forced into range and an unknown
// mode reset to tweets. Used when restoring persisted drafts.
func (s ExtractionSettings) Clamped() ExtractionSettings {
	if !s.ExtractionType.Valid() {
		s.ExtractionType = ExtractionModeTweets
	}
	if s.TweetsPerAccount == 0 {
		s.TweetsPerAccount = DefaultTweetsPerAccount
	}
	if s.CommentsPerTweet == 0 {
		s.CommentsPerTweet = DefaultCommentsPerTweet
	}
	s.TweetsPerAccount = ClampTweetsPerAccount(s.TweetsPerAccount)
	s.CommentsPerTweet = ClampCommentsPerTweet(s.CommentsPerTweet)
	return s
}

// Validate rejects unknown modes and the counters either run would refuse.
// tweetsPerAccount only matters in accounts mode.
func (s ExtractionSettings) Validate() error {
	if err := s.ValidateExtraction(); err != nil {
		return err
	}
	return ValidateCommentsPerTweet(s.CommentsPerTweet)
}

// ValidateExtraction checks only what an extraction run reads.
func (s ExtractionSettings) ValidateExtraction() error {
	if !s.ExtractionType.Valid() {
		return NewValidationError("extractionType", "unknown extraction type", string(s.ExtractionType))
	}
	if s.ExtractionType == ExtractionModeAccounts {
		return ValidateTweetsPerAccount(s.TweetsPerAccount)
	}
	return nil
}

// ValidateGeneration checks only what a generation run reads.
func (s ExtractionSettings) ValidateGeneration() error {
	if !s.ExtractionType.Valid() {
		return NewValidationError("extractionType", "unknown extraction type", string(s.ExtractionType))
	}
	return ValidateCommentsPerTweet(s.CommentsPerTweet)
}

// SplitURLList splits newline-delimited input, dropping blank lines.
func SplitURLList(raw string) []string {
	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// ClampTweetsPerAccount forces n into [MinTweetsPerAccount, MaxTweetsPerAccount].
func ClampTweetsPerAccount(n int) int {
	return clamp(n, MinTweetsPerAccount, MaxTweetsPerAccount)
}

// ClampCommentsPerTweet forces n into [MinCommentsPerTweet, MaxCommentsPerTweet].
func ClampCommentsPerTweet(n int) int {
	return clamp(n, MinCommentsPerTweet, MaxCommentsPerTweet)
}

// ValidateTweetsPerAccount rejects values outside [1,100].
func ValidateTweetsPerAccount(n int) error {
	if n < MinTweetsPerAccount || n > MaxTweetsPerAccount {
		return NewValidationError("tweetsPerAccount",
			fmt.Sprintf("must be between %d and %d", MinTweetsPerAccount, MaxTweetsPerAccount),
			fmt.Sprint(n))
	}
	return nil
}

// ValidateCommentsPerTweet rejects values outside [1,20].
func ValidateCommentsPerTweet(n int) error {
	if n < MinCommentsPerTweet || n > MaxCommentsPerTweet {
		return NewValidationError("commentsPerTweet",
			fmt.Sprintf("must be between %d and %d", MinCommentsPerTweet, MaxCommentsPerTweet),
			fmt.Sprint(n))
	}
	return nil
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
