// Package reddit implements a rate-limited client for the Reddit data API
// using application-only OAuth2.
package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL  = "https://oauth.reddit.com"
	defaultTokenURL = "https://www.reddit.com/api/v1/access_token"

	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3

	// Free-tier allowance: Reddit permits 100 requests per minute per
	// client id; one per second with a small burst stays well inside it.
	defaultRateLimit = 1.0
	defaultRateBurst = 5
)

// APIError is a non-2xx response from the Reddit API.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("reddit API %s %s returned %d: %s",
		e.Method, e.Path, e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError

	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsForbidden reports whether err is an APIError with status 403. Private
// and banned subreddits answer 403.
func IsForbidden(err error) bool {
	var apiErr *APIError

	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusForbidden
}

// IsRateLimited reports whether err is an APIError with status 429, i.e.
// the retry budget was exhausted while Reddit kept throttling.
func IsRateLimited(err error) bool {
	var apiErr *APIError

	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

// ClientOptions configures a Reddit client.
type ClientOptions struct {
	Logger *slog.Logger

	// RequestsPerSecond overrides the default client-side throttle.
	RequestsPerSecond float64

	// MaxRetries bounds retry attempts on 429 and 5xx responses.
	MaxRetries int

	// BaseURL and TokenURL override the API endpoints (for tests).
	BaseURL  string
	TokenURL string

	// Transport allows injecting a custom HTTP transport (for tests).
	Transport http.RoundTripper
}

// Client is a rate-limited Reddit API client.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	logger     *slog.Logger

	mu         sync.Mutex
	pauseUntil time.Time
}

// userAgentTransport stamps the configured User-Agent on every request,
// token requests included. Reddit rejects clients using a default agent.
type userAgentTransport struct {
	agent string
	base  http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.agent)

	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	return base.RoundTrip(req)
}

// NewClient creates a Reddit client using the application-only OAuth2 flow.
func NewClient(creds Credentials, opts ClientOptions) (*Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	tokenURL := opts.TokenURL
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}

	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRateLimit
	}

	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	conf := &clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	// The oauth2 transport picks up the underlying client from context so
	// the User-Agent transport covers token exchange as well.
	base := &http.Client{
		Timeout: defaultTimeout,
		Transport: &userAgentTransport{
			agent: creds.UserAgent,
			base:  opts.Transport,
		},
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	httpClient := conf.Client(ctx)
	httpClient.Timeout = defaultTimeout

	return &Client{
		baseURL:    baseURL,
		userAgent:  creds.UserAgent,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(rps), defaultRateBurst),
		maxRetries: maxRetries,
		logger:     logger,
	}, nil
}

// HotPostsOptions configures HotPosts.
type HotPostsOptions struct {
	Limit int    // page size, max 100
	After string // fullname of the last item of the previous page
}

// HotPostsResult contains one page of the hot listing.
type HotPostsResult struct {
	Posts []Link
	After string
}

// HotPosts fetches one page of a subreddit's hot listing.
func (c *Client) HotPosts(ctx context.Context, subreddit string, opts HotPostsOptions) (*HotPostsResult, error) {
	params := url.Values{}
	params.Set("raw_json", "1")

	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	} else {
		params.Set("limit", "100")
	}

	if opts.After != "" {
		params.Set("after", opts.After)
	}

	var t thing
	if err := c.get(ctx, fmt.Sprintf("/r/%s/hot", subreddit), params, &t); err != nil {
		return nil, err
	}

	l, err := decodeListing(t)
	if err != nil {
		return nil, err
	}

	posts, err := decodeLinks(l)
	if err != nil {
		return nil, err
	}

	return &HotPostsResult{
		Posts: posts,
		After: l.After,
	}, nil
}

// CommentsOptions configures Comments.
type CommentsOptions struct {
	Limit int    // number of comment threads requested
	Sort  string // confidence, top, new, controversial, old, qa
}

// CommentsResult contains a post together with its comment forest.
type CommentsResult struct {
	Post     Link
	Comments []Comment
}

// Comments fetches a post and its comment tree. The response is a two
// element array: a listing holding the post and a listing holding the
// top-level comments.
func (c *Client) Comments(ctx context.Context, subreddit, postID string, opts CommentsOptions) (*CommentsResult, error) {
	params := url.Values{}
	params.Set("raw_json", "1")

	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	if opts.Sort != "" {
		params.Set("sort", opts.Sort)
	}

	var pair []thing
	if err := c.get(ctx, fmt.Sprintf("/r/%s/comments/%s", subreddit, postID), params, &pair); err != nil {
		return nil, err
	}

	if len(pair) != 2 {
		return nil, fmt.Errorf("expected 2 listings for post %s, got %d", postID, len(pair))
	}

	postListing, err := decodeListing(pair[0])
	if err != nil {
		return nil, err
	}

	posts, err := decodeLinks(postListing)
	if err != nil {
		return nil, err
	}

	if len(posts) != 1 {
		return nil, fmt.Errorf("expected 1 post in comments response for %s, got %d", postID, len(posts))
	}

	commentListing, err := decodeListing(pair[1])
	if err != nil {
		return nil, err
	}

	comments, err := decodeComments(commentListing)
	if err != nil {
		return nil, err
	}

	return &CommentsResult{
		Post:     posts[0],
		Comments: comments,
	}, nil
}

// AboutSubreddit fetches a subreddit's about payload. Doubles as the
// credential check: it fails fast on bad tokens, private and banned subs.
func (c *Client) AboutSubreddit(ctx context.Context, subreddit string) (*SubredditInfo, error) {
	params := url.Values{}
	params.Set("raw_json", "1")

	var t thing
	if err := c.get(ctx, fmt.Sprintf("/r/%s/about", subreddit), params, &t); err != nil {
		return nil, err
	}

	var info SubredditInfo
	if err := json.Unmarshal(t.Data, &info); err != nil {
		return nil, fmt.Errorf("failed to decode subreddit info: %w", err)
	}

	return &info, nil
}

// get performs a throttled GET with retries, decoding the JSON response
// into result.
func (c *Client) get(ctx context.Context, path string, params url.Values, result any) error {
	u := c.baseURL + path

	if params != nil {
		u = u + "?" + params.Encode()
	}

	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.waitForWindow(ctx); err != nil {
			return err
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		if attempt > 0 {
			c.logger.Debug("retrying request", "path", path, "attempt", attempt)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("User-Agent", c.userAgent)

		c.logger.Debug("reddit API request", "path", path, "params", params.Encode())

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)

			continue
		}

		retryable, err := c.handleResponse(resp, path, result)
		if err == nil {
			return nil
		}

		if !retryable {
			return err
		}

		lastErr = err
	}

	return fmt.Errorf("giving up after %d attempts: %w", c.maxRetries+1, lastErr)
}

// handleResponse consumes the body and reports whether a failure is worth
// retrying.
func (c *Client) handleResponse(resp *http.Response, path string, result any) (bool, error) {
	defer func() { _ = resp.Body.Close() }()

	c.observeRateHeaders(resp)

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return false, fmt.Errorf("failed to decode response: %w", err)
		}

		return false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

		return true, &APIError{
			StatusCode: resp.StatusCode,
			Method:     http.MethodGet,
			Path:       path,
			Message:    string(body),
		}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

		return false, &APIError{
			StatusCode: resp.StatusCode,
			Method:     http.MethodGet,
			Path:       path,
			Message:    string(body),
		}
	}
}

// observeRateHeaders pauses the client until the server-side window resets
// when the allowance is nearly spent. X-Ratelimit-Remaining counts requests
// left in the window, X-Ratelimit-Reset counts seconds until it refills.
func (c *Client) observeRateHeaders(resp *http.Response) {
	remaining := resp.Header.Get("X-Ratelimit-Remaining")
	if remaining == "" {
		return
	}

	rem, err := strconv.ParseFloat(remaining, 64)
	if err != nil || rem > 1 {
		return
	}

	reset, err := strconv.Atoi(resp.Header.Get("X-Ratelimit-Reset"))
	if err != nil || reset <= 0 {
		return
	}

	c.logger.Warn("rate limit nearly exhausted, pausing",
		"remaining", rem, "reset_seconds", reset)

	c.mu.Lock()
	c.pauseUntil = time.Now().Add(time.Duration(reset) * time.Second)
	c.mu.Unlock()
}

// waitForWindow blocks while a server-imposed pause is in effect.
func (c *Client) waitForWindow(ctx context.Context) error {
	c.mu.Lock()
	until := c.pauseUntil
	c.mu.Unlock()

	wait := time.Until(until)
	if wait <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

func backoff(attempt int) time.Duration {
	d := time.Duration(1<<uint(attempt-1)) * time.Second
	if d > 30*time.Second {
		d = 30 * time.Second
	}

	return d
}
