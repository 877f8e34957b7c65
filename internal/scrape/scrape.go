// Package scrape reads schedules and box scores from the provider web app
// through a browser session and parses the rendered HTML with goquery.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/albapepper/eventcentral/internal/browser"
)

var (
	ErrSessionExpired = errors.New("provider session expired")
	ErrMissingTables  = errors.New("box score tables not rendered")
	ErrNoTeams        = errors.New("box score page has no team names")
)

// Scraper runs page flows against one browser session at a time.
type Scraper struct {
	webURL string
	logger *slog.Logger
}

func New(webURL string, logger *slog.Logger) *Scraper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{webURL: strings.TrimSuffix(webURL, "/"), logger: logger}
}

// CheckLogin opens the provider home page and fails with ErrSessionExpired
// when the sign-in button is visible.
func (s *Scraper) CheckLogin(ctx context.Context, sess browser.Session) error {
	if err := sess.Navigate(ctx, s.webURL); err != nil {
		return err
	}
	expr := fmt.Sprintf(`(() => { const b = document.querySelector(%s); return !b || b.offsetParent === null; })()`,
		strconv.Quote(selSignIn))
	var loggedIn bool
	if err := sess.Evaluate(ctx, expr, &loggedIn); err != nil {
		return fmt.Errorf("login check: %w", err)
	}
	if !loggedIn {
		return ErrSessionExpired
	}
	return nil
}

// DiscoverGames opens a team page, switches to its schedule and returns the
// games listed there in page order.
func (s *Scraper) DiscoverGames(ctx context.Context, sess browser.Session, teamURL string) ([]GameLink, error) {
	if err := sess.Navigate(ctx, teamURL); err != nil {
		return nil, err
	}
	if _, err := sess.Click(ctx, selScheduleTab); err != nil {
		return nil, err
	}
	// The list lazy-loads; two scrolls pick up a full tournament.
	for i := 0; i < 2; i++ {
		if err := sess.ScrollToBottom(ctx); err != nil {
			return nil, err
		}
	}

	raw, err := sess.HTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := docFromHTML(raw)
	if err != nil {
		return nil, err
	}
	links := ParseSchedule(doc, s.webURL)
	s.logger.Debug("Schedule discovered", "team_url", teamURL, "games", len(links))
	return links, nil
}

// ScrapeGame opens a box-score page and parses it. ErrMissingTables means
// the game has not produced stats yet.
func (s *Scraper) ScrapeGame(ctx context.Context, sess browser.Session, gameURL string) (*Page, error) {
	if err := sess.Navigate(ctx, gameURL); err != nil {
		return nil, err
	}
	raw, err := sess.HTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := docFromHTML(raw)
	if err != nil {
		return nil, err
	}

	p := ParseBoxScore(doc)
	p.URL = gameURL
	p.ExternalID = ExternalGameID(gameURL)
	if p.AwayName == "" && p.HomeName == "" {
		return nil, fmt.Errorf("%s: %w", gameURL, ErrNoTeams)
	}
	if len(p.Tables) < 4 {
		return p, fmt.Errorf("%s has %d tables: %w", gameURL, len(p.Tables), ErrMissingTables)
	}
	return p, nil
}
