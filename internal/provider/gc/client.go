// Package gc talks to the provider's REST API. Team and schedule endpoints
// are public; box scores need a short-lived gc-token that is captured from a
// browser session and cached until shortly before it expires.
package gc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

const (
	headerAppName   = "gc-app-name"
	headerToken     = "gc-token"
	boxScoreAccept  = "application/vnd.gc.com.event_box_score+json; version=0.0.0"
	defaultTimeout  = 30 * time.Second
	defaultInterval = time.Second
)

var (
	ErrUnauthorized = errors.New("provider rejected token")
	errUnauthorized = errors.New("401 unauthorized")
)

// StatusError is a non-retryable HTTP failure.
type StatusError struct {
	Path string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GC %s returned %d: %s", e.Path, e.Code, e.Body)
}

// Options configures a Client.
type Options struct {
	BaseURL       string
	RequestDelay  time.Duration
	RetryMax      int
	RetryInterval time.Duration
	HTTPClient    *http.Client
	Logger        *slog.Logger
}

// Client is the rate-limited provider API client.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	tokens        *TokenCache
	limiter       *rate.Limiter
	retryMax      int
	retryInterval time.Duration
	logger        *slog.Logger
}

// NewClient creates a client. tokens may be nil when only public endpoints
// are used.
func NewClient(opts Options, tokens *TokenCache) *Client {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = defaultInterval
	}
	if opts.RetryMax < 0 {
		opts.RetryMax = 0
	}
	limit := rate.Inf
	if opts.RequestDelay > 0 {
		limit = rate.Every(opts.RequestDelay)
	}
	return &Client{
		httpClient:    opts.HTTPClient,
		baseURL:       strings.TrimSuffix(opts.BaseURL, "/"),
		tokens:        tokens,
		limiter:       rate.NewLimiter(limit, 1),
		retryMax:      opts.RetryMax,
		retryInterval: opts.RetryInterval,
		logger:        opts.Logger,
	}
}

// TeamInfo fetches GET /public/teams/{id}.
func (c *Client) TeamInfo(ctx context.Context, teamID string) (*TeamInfo, error) {
	var info TeamInfo
	if err := c.get(ctx, "/public/teams/"+teamID, false, &info); err != nil {
		return nil, err
	}
	if info.ID == "" {
		info.ID = teamID
	}
	return &info, nil
}

// TeamGames fetches GET /public/teams/{id}/games.
func (c *Client) TeamGames(ctx context.Context, teamID string) ([]Game, error) {
	var games []Game
	if err := c.get(ctx, "/public/teams/"+teamID+"/games", false, &games); err != nil {
		return nil, err
	}
	return games, nil
}

// GameDetails fetches the public game summary with line scores.
func (c *Client) GameDetails(ctx context.Context, gameID string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "/public/game-stream-processing/"+gameID+"/details?include=line_scores", false, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// BoxScore fetches the authenticated box score for a game, keyed by
// provider team id.
func (c *Client) BoxScore(ctx context.Context, gameID string) (RawBoxScore, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "/game-stream-processing/"+gameID+"/boxscore", true, &raw); err != nil {
		return nil, err
	}
	return DecodeBoxScore(raw)
}

// get runs a request with retries. An authenticated request that gets a
// 401 refreshes the token once and tries again.
func (c *Client) get(ctx context.Context, path string, auth bool, out any) error {
	err := c.getWithRetry(ctx, path, auth, out)
	if !auth || !errors.Is(err, errUnauthorized) {
		return err
	}

	c.logger.Warn("Token rejected, refreshing", "path", path)
	c.tokens.Invalidate()
	err = c.getWithRetry(ctx, path, auth, out)
	if errors.Is(err, errUnauthorized) {
		return fmt.Errorf("GC %s: %w", path, ErrUnauthorized)
	}
	return err
}

func (c *Client) getWithRetry(ctx context.Context, path string, auth bool, out any) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.retryMax)), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := c.do(ctx, path, auth, out)
		var perm *backoff.PermanentError
		if err != nil && !errors.As(err, &perm) {
			c.logger.Warn("GC request failed", "path", path, "attempt", attempt, "error", err)
		}
		return err
	}, policy)
}

// do performs one request. Errors wrapped in backoff.Permanent are not
// retried.
func (c *Client) do(ctx context.Context, path string, auth bool, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return backoff.Permanent(fmt.Errorf("rate limit wait: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set(headerAppName, "web")
	if auth {
		if c.tokens == nil {
			return backoff.Permanent(fmt.Errorf("GC %s: no token source", path))
		}
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("get token: %w", err))
		}
		req.Header.Set(headerToken, token)
		req.Header.Set("Accept", boxScoreAccept)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized && auth:
		return backoff.Permanent(errUnauthorized)
	case resp.StatusCode >= 500:
		return &StatusError{Path: path, Code: resp.StatusCode, Body: truncate(body, 200)}
	case resp.StatusCode != http.StatusOK:
		return backoff.Permanent(&StatusError{Path: path, Code: resp.StatusCode, Body: truncate(body, 200)})
	}

	if err := json.Unmarshal(body, out); err != nil {
		return backoff.Permanent(fmt.Errorf("decode %s: %w", path, err))
	}
	return nil
}

// truncate returns a truncated string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
