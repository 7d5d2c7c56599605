// Package resolve maps YouTube channel handles to the video id of the
// channel's currently running live stream. Clients may subscribe either with
// an 11 character video id directly or with a handle such as "@somechannel";
// handles are resolved by fetching the channel's /live page and extracting
// the video id from the returned HTML.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/farhanreizha/yt-live-chat-scraper/internal/metrics"
	"github.com/farhanreizha/yt-live-chat-scraper/internal/platform/retry"
)

const (
	defaultBaseURL = "https://www.youtube.com"
	requestTimeout = 10 * time.Second
	maxBodyBytes   = 4 << 20
)

// ErrNotLive is returned when the channel page loads but no live video id
// can be found in it, meaning the channel is not currently streaming.
var ErrNotLive = errors.New("channel has no active live stream")

// ErrChannelNotFound is returned for handles YouTube does not know.
var ErrChannelNotFound = errors.New("channel not found")

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// Live page markup shifts between experiments, so several extraction
// patterns are tried in order. All capture the same 11 character id.
var liveIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`"videoId":"([a-zA-Z0-9_-]{11})"`),
	regexp.MustCompile(`watch\?v=([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`embed/([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtu\.be/([a-zA-Z0-9_-]{11})`),
}

// IsVideoID reports whether s already looks like a YouTube video id, in
// which case no resolution is needed.
func IsVideoID(s string) bool {
	return videoIDPattern.MatchString(s)
}

// Resolver turns channel handles into live video ids.
type Resolver struct {
	httpClient *http.Client
	baseURL    string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithBaseURL overrides the YouTube origin, used by tests.
func WithBaseURL(url string) Option {
	return func(r *Resolver) { r.baseURL = strings.TrimSuffix(url, "/") }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) { r.httpClient = c }
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    defaultBaseURL,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LiveVideoID resolves the handle's current live stream to a video id.
// The leading "@" is optional. Transient HTTP failures are retried with
// backoff; a missing channel or an offline channel is permanent.
func (r *Resolver) LiveVideoID(ctx context.Context, handle string) (string, error) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if handle == "" {
		metrics.ResolveLookupsTotal.WithLabelValues("invalid").Inc()
		return "", fmt.Errorf("empty channel handle")
	}

	policy := retry.Policy{
		MaxAttempts:      3,
		InitialBackoff:   500 * time.Millisecond,
		RateLimitBackoff: 5 * time.Second,
	}

	id, err := retry.Do(ctx, policy, classifyResolveError, func() (string, error) {
		return r.fetchLiveVideoID(ctx, handle)
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrNotLive):
			metrics.ResolveLookupsTotal.WithLabelValues("not_live").Inc()
		case errors.Is(err, ErrChannelNotFound):
			metrics.ResolveLookupsTotal.WithLabelValues("not_found").Inc()
		default:
			metrics.ResolveLookupsTotal.WithLabelValues("error").Inc()
		}
		return "", err
	}

	metrics.ResolveLookupsTotal.WithLabelValues("ok").Inc()
	return id, nil
}

func (r *Resolver) fetchLiveVideoID(ctx context.Context, handle string) (string, error) {
	url := fmt.Sprintf("%s/@%s/live", r.baseURL, handle)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build live page request: %w", err)
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch live page for @%s: %w", handle, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("channel @%s: %w", handle, ErrChannelNotFound)
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("rate limited fetching live page for @%s: %w", handle, errRateLimited)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("unexpected status %d fetching live page for @%s", resp.StatusCode, handle)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read live page for @%s: %w", handle, err)
	}

	id, ok := extractVideoID(string(body))
	if !ok {
		return "", fmt.Errorf("channel @%s: %w", handle, ErrNotLive)
	}
	return id, nil
}

var errRateLimited = errors.New("rate limited")

func classifyResolveError(err error) retry.Action {
	switch {
	case errors.Is(err, ErrNotLive), errors.Is(err, ErrChannelNotFound):
		return retry.Stop
	case errors.Is(err, errRateLimited):
		return retry.After
	default:
		return retry.Retry
	}
}

func extractVideoID(html string) (string, bool) {
	for _, pattern := range liveIDPatterns {
		if m := pattern.FindStringSubmatch(html); m != nil {
			return m[1], true
		}
	}
	return "", false
}
