package apify

import (
	"encoding/json"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/iconidentify/xreply/internal/domain"
)

// FieldPath addresses a possibly nested key in a dataset item.
type FieldPath []interface{}

// Fallback orders, first match wins. Scraper actors disagree on field names.
var (
	IDFields        = []FieldPath{{"id"}, {"tweetId"}, {"tweet_id"}}
	TextFields      = []FieldPath{{"text"}, {"full_text"}, {"tweet_text"}, {"content"}}
	URLFields       = []FieldPath{{"url"}, {"tweetUrl"}, {"tweet_url"}}
	AuthorFields    = []FieldPath{{"author", "username"}, {"user", "screen_name"}, {"username"}, {"handle"}}
	CreatedAtFields = []FieldPath{{"created_at"}, {"createdAt"}, {"timestamp"}}
)

// FirstString returns the first path that resolves to a non-empty string or
// a number. Numbers are returned in their literal JSON form so large ids
// keep every digit.
func FirstString(item []byte, paths ...FieldPath) (string, bool) {
	for _, path := range paths {
		v := jsoniter.Get(item, path...)
		switch v.ValueType() {
		case jsoniter.StringValue:
			if s := v.ToString(); s != "" {
				return s, true
			}
		case jsoniter.NumberValue:
			if s := v.ToString(); s != "" && s != "0" {
				return s, true
			}
		}
	}
	return "", false
}

// NormalizeItem maps one raw dataset item to a Tweet. It never fails:
// missing fields get a placeholder or a synthesized value.
func NormalizeItem(item []byte, index int, now time.Time) domain.Tweet {
	id, ok := FirstString(item, IDFields...)
	if !ok {
		id = domain.SynthesizeTweetID(now, index)
	}

	text, ok := FirstString(item, TextFields...)
	if !ok {
		text = domain.TextUnavailable
	}

	tweetURL, ok := FirstString(item, URLFields...)
	if !ok {
		tweetURL = "https://x.com/user/status/" + id
	}

	author, ok := FirstString(item, AuthorFields...)
	if !ok {
		author = domain.UnknownAuthor
	}

	createdAt, ok := FirstString(item, CreatedAtFields...)
	if !ok {
		createdAt = now.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	}

	return domain.Tweet{
		ID:        id,
		Text:      text,
		URL:       tweetURL,
		Author:    author,
		CreatedAt: createdAt,
	}
}

// NormalizeItems maps every item, preserving order. The same now is used
// for the whole batch so synthesized ids stay unique by index.
func NormalizeItems(items []json.RawMessage, now time.Time) []domain.Tweet {
	tweets := make([]domain.Tweet, 0, len(items))
	for i, item := range items {
		tweets = append(tweets, NormalizeItem(item, i, now))
	}
	return tweets
}
