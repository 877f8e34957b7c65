package session

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/albapepper/eventcentral/internal/boxscore"
	"github.com/albapepper/eventcentral/internal/browser"
	"github.com/albapepper/eventcentral/internal/config"
	"github.com/albapepper/eventcentral/internal/provider/gc"
	"github.com/albapepper/eventcentral/internal/reconcile"
	"github.com/albapepper/eventcentral/internal/scrape"
	"github.com/albapepper/eventcentral/internal/store"
	"github.com/albapepper/eventcentral/internal/tracked"
)

// transport finds and reads the games of one tracked team.
type transport interface {
	prepare(ctx context.Context, c *cycle) error
	pollTeam(ctx context.Context, c *cycle, team tracked.Team) error
}

// cycle is the state of one pass over an event's teams.
type cycle struct {
	m    *Manager
	s    *Session
	sess browser.Session
	ev   tracked.Event
	res  *CycleResult
	now  time.Time

	eventTeamIDs map[string]bool
	infos        map[string]gc.TeamInfo
	names        []string
}

func (m *Manager) transport() transport {
	if m.opts.Transport == config.TransportAPI {
		return apiTransport{}
	}
	return domTransport{}
}

// cycle walks every team of the session's event once. The teams file is
// re-read each time so edits apply on the next cycle. Only errors that end
// the session are returned; everything else lands in the result.
func (m *Manager) cycle(ctx context.Context, s *Session, sess browser.Session) (res *CycleResult, err error) {
	res = &CycleResult{}
	defer func() {
		if r := recover(); r != nil {
			res.AddErrorf("panic: %v", r)
			s.logger.Error("Cycle panicked", "panic", r, "stack", string(debug.Stack()))
			err = nil
		}
	}()

	f, err := tracked.Load(m.opts.TeamsFile)
	if err != nil {
		res.AddErrorf("teams file: %v", err)
		s.logger.Error("Failed to read teams file", "error", err)
		return res, nil
	}
	ev, ok := f.Event(s.EventID)
	if !ok {
		res.AddErrorf("event %s is no longer in the teams file", s.EventID)
		s.logger.Warn("Event missing from teams file")
		return res, nil
	}

	c := &cycle{m: m, s: s, sess: sess, ev: ev, res: res, now: m.now()}
	c.eventTeamIDs = make(map[string]bool, len(ev.Teams))
	for _, t := range ev.Teams {
		c.eventTeamIDs[t.TeamID] = true
	}

	tr := m.transport()
	if err := tr.prepare(ctx, c); err != nil {
		if fatal(err) {
			return res, err
		}
		res.AddErrorf("prepare: %v", err)
	}

	for i, team := range ev.Teams {
		if i > 0 {
			if err := sleep(ctx, m.opts.TeamDelay); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}
		res.Teams++
		if err := tr.pollTeam(ctx, c, team); err != nil {
			if ctx.Err() != nil {
				break
			}
			if fatal(err) {
				return res, err
			}
			res.AddErrorf("team %s: %v", team.TeamID, err)
			s.logger.Warn("Team skipped this cycle", "team", team.TeamID, "error", err)
		}
	}

	s.logger.Info("Cycle complete", "summary", res.Summary())
	return res, nil
}

// fatal errors end the session rather than the current team.
func fatal(err error) bool {
	return errors.Is(err, scrape.ErrSessionExpired) || errors.Is(err, gc.ErrUnauthorized)
}

func permanent(err error) bool {
	return fatal(err) ||
		errors.Is(err, scrape.ErrMissingTables) ||
		errors.Is(err, scrape.ErrNoTeams) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// retry runs op with exponential backoff, up to RetryMax extra attempts.
func (m *Manager) retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.opts.RetryInterval
	retries := m.opts.RetryMax
	if retries < 0 {
		retries = 0
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
	return backoff.Retry(func() error {
		err := op()
		if err != nil && permanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *cycle) alreadyFinal(ctx context.Context, externalID string) bool {
	if externalID == "" {
		return false
	}
	g, err := c.m.deps.Store.GameByExternalID(ctx, externalID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.s.logger.Warn("Final-game lookup failed", "external_id", externalID, "error", err)
		}
		return false
	}
	return g.Status == store.StatusFinal
}

// gameFailed records a per-game error. A game that could not be read
// counts as open so the session does not auto-stop on missing data.
func (c *cycle) gameFailed(gameID string, err error) error {
	if fatal(err) {
		return err
	}
	c.res.LiveOrUpcoming++
	c.res.AddErrorf("game %s: %v", gameID, err)
	c.s.logger.Warn("Game skipped", "game", gameID, "error", err)
	return nil
}

// scrapeGame reads one box-score page and saves it when it is in range.
func (c *cycle) scrapeGame(ctx context.Context, team tracked.Team, gameURL string) error {
	var page *scrape.Page
	err := c.m.retry(ctx, func() error {
		p, err := c.m.deps.Scraper.ScrapeGame(ctx, c.sess, gameURL)
		page = p
		return err
	})

	var gameDate *time.Time
	if page != nil {
		if d, ok := tracked.ParseGameDate(page.GameTime, team.Start, c.now); ok {
			if !team.InRange(d) {
				c.res.OutOfRange++
				return nil
			}
			gameDate = &d
		}
	}

	c.res.GamesFound++
	switch {
	case errors.Is(err, scrape.ErrMissingTables):
		c.res.Pending++
		c.res.LiveOrUpcoming++
		c.s.logger.Debug("No box score yet", "url", gameURL)
		return nil
	case err != nil:
		return c.gameFailed(scrape.ExternalGameID(gameURL), err)
	}

	r := boxscore.ResolveScore(&page.Header, page.Box, c.m.opts.FinalInnings)
	obs := reconcile.Observation{
		ExternalID: page.ExternalID,
		AwayName:   page.AwayName,
		HomeName:   page.HomeName,
		GameDate:   gameDate,
		GameTime:   page.GameTime,
		AwayScore:  r.AwayScore,
		HomeScore:  r.HomeScore,
		Status:     r.Status,
		Box:        page.Box,
	}
	if err := c.save(ctx, team, obs); err != nil {
		c.saveFailed(page.ExternalID, err)
	}
	return nil
}

func (c *cycle) saveFailed(gameID string, err error) {
	c.res.LiveOrUpcoming++
	c.res.AddErrorf("game %s: %v", gameID, err)
	c.s.logger.Warn("Game not saved", "game", gameID, "error", err)
}

// save stamps the event's labels on obs and reconciles it.
func (c *cycle) save(ctx context.Context, team tracked.Team, obs reconcile.Observation) error {
	if obs.AgeGroup == "" || team.AgeGroup != tracked.DefaultAgeGroup {
		obs.AgeGroup = team.AgeGroup
	}
	obs.EventName = c.ev.Name
	if obs.ViewerID == "" {
		obs.ViewerID = team.TeamID
	}

	out, err := c.m.deps.Reconciler.Reconcile(ctx, obs)
	if err != nil {
		return err
	}
	c.res.Saved++
	if c.m.deps.OnSaved != nil {
		c.m.deps.OnSaved(out.GameID)
	}
	if out.Created {
		c.res.Created++
	}
	if obs.Status == boxscore.StatusFinal {
		c.res.Final++
	} else {
		c.res.LiveOrUpcoming++
	}

	attrs := []any{
		"game_id", out.GameID,
		"external_id", obs.ExternalID,
		"away", obs.AwayName,
		"home", obs.HomeName,
		"status", obs.Status,
		"matched_by", out.MatchedBy,
		"stats", out.StatsWritten,
	}
	if obs.AwayScore != nil && obs.HomeScore != nil {
		attrs = append(attrs, "score", fmt.Sprintf("%d-%d", *obs.AwayScore, *obs.HomeScore))
	}
	c.s.logger.Info("Game saved", attrs...)
	return nil
}

// --------------------------------------------------------------------------
// DOM transport
// --------------------------------------------------------------------------

type domTransport struct{}

func (domTransport) prepare(ctx context.Context, c *cycle) error { return nil }

func (domTransport) pollTeam(ctx context.Context, c *cycle, team tracked.Team) error {
	var links []scrape.GameLink
	err := c.m.retry(ctx, func() error {
		l, err := c.m.deps.Scraper.DiscoverGames(ctx, c.sess, team.URL)
		links = l
		return err
	})
	if err != nil {
		return fmt.Errorf("discover games: %w", err)
	}

	for _, l := range links {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.alreadyFinal(ctx, l.ExternalID) {
			c.res.GamesFound++
			c.res.SkippedFinal++
			c.res.Final++
			continue
		}
		if err := c.scrapeGame(ctx, team, l.URL); err != nil {
			return err
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// API transport
// --------------------------------------------------------------------------

type apiTransport struct{}

// prepare looks up every team of the event so opponents can be matched by
// name as well as by id.
func (apiTransport) prepare(ctx context.Context, c *cycle) error {
	api := c.m.deps.API
	if api == nil {
		return fmt.Errorf("api transport has no client")
	}
	c.infos = make(map[string]gc.TeamInfo, len(c.ev.Teams))
	for _, t := range c.ev.Teams {
		info, err := api.TeamInfo(ctx, t.TeamID)
		if err != nil {
			if fatal(err) || ctx.Err() != nil {
				return err
			}
			c.res.AddErrorf("team info %s: %v", t.TeamID, err)
			continue
		}
		c.infos[t.TeamID] = *info
		if info.Name != "" {
			c.names = append(c.names, info.Name)
		}
	}
	return nil
}

func (apiTransport) pollTeam(ctx context.Context, c *cycle, team tracked.Team) error {
	api := c.m.deps.API
	if api == nil {
		return fmt.Errorf("api transport has no client")
	}
	info, ok := c.infos[team.TeamID]
	if !ok {
		info = gc.TeamInfo{ID: team.TeamID}
	}

	games, err := api.TeamGames(ctx, team.TeamID)
	if err != nil {
		return fmt.Errorf("list games: %w", err)
	}

	for _, g := range games {
		if err := ctx.Err(); err != nil {
			return err
		}
		if d, ok := g.StartDate(); ok && !team.InRange(d) {
			c.res.OutOfRange++
			continue
		}
		if !gc.OpponentInEvent(g, c.eventTeamIDs, c.names) {
			c.res.NonEvent++
			continue
		}

		status := g.Status()
		if status == boxscore.StatusUpcoming {
			c.res.GamesFound++
			c.res.LiveOrUpcoming++
			continue
		}
		if status == boxscore.StatusFinal && c.alreadyFinal(ctx, g.ID) {
			c.res.GamesFound++
			c.res.SkippedFinal++
			c.res.Final++
			continue
		}

		var obs reconcile.Observation
		box, err := api.BoxScore(ctx, g.ID)
		if err == nil {
			obs, err = gc.BuildObservation(info, g, box)
		}
		if errors.Is(err, gc.ErrUnrecognizedShape) {
			c.s.logger.Warn("Box score shape not recognized, reading the page instead", "game", g.ID)
			if err := c.scrapeGame(ctx, team, gameURL(team, g.ID)); err != nil {
				return err
			}
			continue
		}

		c.res.GamesFound++
		if err != nil {
			if err := c.gameFailed(g.ID, err); err != nil {
				return err
			}
			continue
		}
		if err := c.save(ctx, team, obs); err != nil {
			c.saveFailed(g.ID, err)
		}
	}
	return nil
}

func gameURL(team tracked.Team, gameID string) string {
	return strings.TrimSuffix(team.URL, "/") + "/schedule/" + gameID + "/box-score"
}
