package gc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/albapepper/eventcentral/internal/browser"
	"github.com/albapepper/eventcentral/internal/scrape"
)

var ErrNoToken = errors.New("no token available")

// TokenSource obtains a fresh gc-token.
type TokenSource interface {
	FetchToken(ctx context.Context) (string, error)
}

// TokenCache holds one token and refetches it when it is within margin of
// expiring or after Invalidate.
type TokenCache struct {
	mu     sync.Mutex
	src    TokenSource
	margin time.Duration
	token  string
	expiry time.Time
	now    func() time.Time
	logger *slog.Logger
}

func NewTokenCache(src TokenSource, margin time.Duration, logger *slog.Logger) *TokenCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenCache{src: src, margin: margin, now: time.Now, logger: logger}
}

// Token returns the cached token or fetches a new one.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expiry.Add(-c.margin)) {
		return c.token, nil
	}

	token, err := c.src.FetchToken(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch token: %w", err)
	}
	if token == "" {
		return "", ErrNoToken
	}
	exp, err := TokenExpiry(token)
	if err != nil {
		return "", err
	}
	c.token, c.expiry = token, exp
	c.logger.Info("GC token obtained", "expires_in", exp.Sub(c.now()).Round(time.Minute).String())
	return token, nil
}

// Invalidate drops the cached token.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expiry = time.Time{}
	c.mu.Unlock()
}

// Expiry reports when the cached token expires. Zero when nothing is cached.
func (c *TokenCache) Expiry() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expiry
}

// TokenExpiry reads the exp claim without verifying the signature; the
// provider's key is not ours to check against.
func TokenExpiry(token string) (time.Time, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, fmt.Errorf("parse token: %w", err)
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("token exp: %w", err)
	}
	if exp == nil {
		return time.Time{}, fmt.Errorf("token has no exp claim")
	}
	return exp.Time, nil
}

// BrowserTokenSource captures the gc-token header that the web app sends
// when it loads a box score.
type BrowserTokenSource struct {
	Driver  browser.Driver
	Scraper *scrape.Scraper
	// TeamURL is any tracked team whose schedule lists at least one game.
	TeamURL string
}

func (s *BrowserTokenSource) FetchToken(ctx context.Context) (string, error) {
	sess, err := s.Driver.NewSession(ctx)
	if err != nil {
		return "", err
	}
	defer sess.Close()

	links, err := s.Scraper.DiscoverGames(ctx, sess, s.TeamURL)
	if err != nil {
		return "", err
	}
	if len(links) == 0 {
		return "", fmt.Errorf("no games on %s to capture a token from", s.TeamURL)
	}
	return sess.CaptureHeader(ctx, links[0].URL, headerToken)
}
