// Package twitter normalizes X/Twitter URLs and builds reply-composer links.
package twitter

import (
	"errors"
	"net/url"
	"strings"
)

// Accepted hosts. PreferredHost is the platform's current domain.
const (
	LegacyHost    = "twitter.com"
	PreferredHost = "x.com"

	intentBaseURL = "https://twitter.com/intent/tweet"
)

// ErrNoTweetID is returned when a URL has no trailing id segment.
var ErrNoTweetID = errors.New("could not extract tweet id from URL")

// IsSupportedURL reports whether raw parses as a URL whose host is exactly
// twitter.com or x.com, ignoring case. It never panics on malformed input.
func IsSupportedURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == LegacyHost || host == PreferredHost
}

// CanonicalizeHost rewrites a twitter.com host to x.com, leaving path and
// query untouched. Unparsable input is returned trimmed and unchanged.
func CanonicalizeHost(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	if !strings.EqualFold(u.Hostname(), LegacyHost) {
		return raw
	}
	if port := u.Port(); port != "" {
		u.Host = PreferredHost + ":" + port
	} else {
		u.Host = PreferredHost
	}
	return u.String()
}

// ExtractHandle returns the first non-empty path segment of a profile URL,
// or "" when there is none or raw does not parse.
func ExtractHandle(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	for _, part := range strings.Split(u.Path, "/") {
		if part != "" {
			return part
		}
	}
	return ""
}

// TweetIDFromURL returns the final path segment of a status URL, ignoring
// any query string.
func TweetIDFromURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	idx := strings.LastIndex(raw, "/")
	id := raw[idx+1:]
	if id == "" || idx < 0 {
		return "", ErrNoTweetID
	}
	return id, nil
}

// ReplyIntentURL builds the composer link that opens a reply to tweetURL
// pre-filled with comment.
func ReplyIntentURL(tweetURL, comment string) (string, error) {
	id, err := TweetIDFromURL(tweetURL)
	if err != nil {
		return "", err
	}
	return intentBaseURL + "?in_reply_to=" + encodeURIComponent(id) + "&text=" + encodeURIComponent(comment), nil
}

// uriUnreserved restores the marks encodeURIComponent leaves alone and
// QueryEscape does not.
var uriUnreserved = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// encodeURIComponent escapes s so spaces become %20 rather than '+' and
// !'()* stay literal.
func encodeURIComponent(s string) string {
	return uriUnreserved.Replace(url.QueryEscape(s))
}
