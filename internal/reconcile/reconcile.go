// Package reconcile merges scraped games into the store. The same physical
// game is usually observed twice, once from each team's schedule, often with
// home and away swapped; the reconciler maps both observations onto one game
// row and replaces its stat lines with the latest observation.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/albapepper/eventcentral/internal/boxscore"
	"github.com/albapepper/eventcentral/internal/potg"
	"github.com/albapepper/eventcentral/internal/registry"
	"github.com/albapepper/eventcentral/internal/store"
)

// MatchKind records how an observation was tied to a stored game.
type MatchKind string

const (
	MatchExternalID MatchKind = "external_id"
	MatchTeamPair   MatchKind = "team_pair"
	MatchCreated    MatchKind = "created"
)

// Observation is one scrape of one game from one team's point of view.
// ExternalID is the game id on that team's schedule and ViewerID is the
// team's provider id.
type Observation struct {
	ExternalID     string
	ViewerID       string
	AwayName       string
	HomeName       string
	AwayExternalID string
	HomeExternalID string
	AgeGroup       string
	EventName      string
	GameDate       *time.Time
	GameTime       string
	AwayScore      *int
	HomeScore      *int
	Status         boxscore.Status
	Box            boxscore.Box
}

// Outcome describes what Reconcile did.
type Outcome struct {
	GameID       int64
	Created      bool
	Flipped      bool
	MatchedBy    MatchKind
	StatsWritten int
	Award        *store.PlayerOfGame
}

// Reconciler matches observations to games and rewrites their stats.
type Reconciler struct {
	store    store.Store
	registry *registry.Registry
	locks    *KeyedMutex
	logger   *slog.Logger
}

// New creates a Reconciler. Share one Reconciler across sessions so writes
// for the same team pair are serialized.
func New(s store.Store, reg *registry.Registry, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: s, registry: reg, locks: NewKeyedMutex(), logger: logger}
}

// PairKey is the orientation-independent key for a team pair.
func PairKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// Reconcile upserts the game for obs, replaces its stat rows and recomputes
// the Player of the Game.
func (r *Reconciler) Reconcile(ctx context.Context, obs Observation) (*Outcome, error) {
	away, err := r.registry.ResolveTeam(ctx, obs.AwayName, registry.TeamAttrs{ExternalID: obs.AwayExternalID, AgeGroup: obs.AgeGroup})
	if err != nil {
		return nil, fmt.Errorf("away team: %w", err)
	}
	home, err := r.registry.ResolveTeam(ctx, obs.HomeName, registry.TeamAttrs{ExternalID: obs.HomeExternalID, AgeGroup: obs.AgeGroup})
	if err != nil {
		return nil, fmt.Errorf("home team: %w", err)
	}
	if away.ID == home.ID {
		return nil, fmt.Errorf("game %s (%s vs %s): %w", obs.ExternalID, obs.AwayName, obs.HomeName, store.ErrSameTeams)
	}

	unlock := r.locks.Lock(PairKey(away.ID, home.ID))
	defer unlock()

	out := &Outcome{}
	game, flipped, kind, err := r.match(ctx, obs, away.ID, home.ID)
	if err != nil {
		return nil, err
	}
	out.Flipped = flipped
	out.MatchedBy = kind

	if game == nil {
		game = &store.Game{
			ExternalID: obs.ExternalID,
			AwayTeamID: away.ID,
			HomeTeamID: home.ID,
			AwayScore:  obs.AwayScore,
			HomeScore:  obs.HomeScore,
			Status:     string(statusOrDefault(obs.Status)),
			GameDate:   obs.GameDate,
			GameTime:   obs.GameTime,
			AgeGroup:   obs.AgeGroup,
			EventName:  obs.EventName,
		}
		if err := r.store.CreateGame(ctx, game); err != nil {
			return nil, fmt.Errorf("create game %s vs %s: %w", away.Name, home.Name, err)
		}
		out.Created = true
		r.logger.Info("Game created",
			"game_id", game.ID, "external_id", obs.ExternalID,
			"away", away.Name, "home", home.Name)
	} else {
		merge(game, obs, flipped)
		if err := r.store.UpdateGame(ctx, game); err != nil {
			return nil, fmt.Errorf("update game %d: %w", game.ID, err)
		}
	}
	out.GameID = game.ID

	if err := r.store.AddGameRef(ctx, store.GameRef{GameID: game.ID, ExternalID: obs.ExternalID, ViewerID: obs.ViewerID}); err != nil {
		return nil, err
	}

	if obs.Box.Empty() {
		// Nothing rendered yet; keep whatever an earlier scrape stored.
		return out, nil
	}

	box := obs.Box
	if flipped {
		box = box.Swap()
	}
	stats, err := r.buildStats(ctx, game, box)
	if err != nil {
		return nil, err
	}
	if err := r.store.ReplaceGameStats(ctx, game.ID, stats); err != nil {
		return nil, fmt.Errorf("replace stats for game %d: %w", game.ID, err)
	}
	out.StatsWritten = len(stats)

	award, err := potg.Recompute(ctx, r.store, game.ID)
	if err != nil {
		return nil, fmt.Errorf("potg for game %d: %w", game.ID, err)
	}
	out.Award = award
	return out, nil
}

// match finds the stored game for obs. An external id already on record
// wins. Otherwise the same-day games between the pair are candidates, minus
// any this viewer already listed under a different id. A lone candidate is
// the opposite team's view of the same game and matches whatever its score.
// Several candidates, or an observation with no id to tell games apart, fall
// back to matching on scores.
func (r *Reconciler) match(ctx context.Context, obs Observation, awayID, homeID int64) (*store.Game, bool, MatchKind, error) {
	if obs.ExternalID != "" {
		g, err := r.store.GameByExternalID(ctx, obs.ExternalID)
		switch {
		case err == nil:
			return g, g.AwayTeamID == homeID, MatchExternalID, nil
		case !errors.Is(err, store.ErrNotFound):
			return nil, false, "", fmt.Errorf("lookup external id %s: %w", obs.ExternalID, err)
		}
	}

	games, err := r.store.GamesBetween(ctx, awayID, homeID)
	if err != nil {
		return nil, false, "", err
	}
	var candidates []*store.Game
	for i := range games {
		g := &games[i]
		if !sameDay(g.GameDate, obs.GameDate) {
			continue
		}
		claimed, err := r.claimedByViewer(ctx, g, obs.ViewerID)
		if err != nil {
			return nil, false, "", err
		}
		if !claimed {
			candidates = append(candidates, g)
		}
	}

	if len(candidates) == 1 && obs.ExternalID != "" {
		g := candidates[0]
		return g, g.AwayTeamID == homeID, MatchTeamPair, nil
	}
	for _, g := range candidates {
		if g.AwayTeamID == awayID && scoreMatches(g.AwayScore, obs.AwayScore) && scoreMatches(g.HomeScore, obs.HomeScore) {
			return g, false, MatchTeamPair, nil
		}
		if g.AwayTeamID == homeID && scoreMatches(g.AwayScore, obs.HomeScore) && scoreMatches(g.HomeScore, obs.AwayScore) {
			return g, true, MatchTeamPair, nil
		}
	}
	return nil, false, MatchCreated, nil
}

// claimedByViewer reports whether viewer already listed g under another
// external id, which makes g a different game from the viewer's point of
// view.
func (r *Reconciler) claimedByViewer(ctx context.Context, g *store.Game, viewer string) (bool, error) {
	if viewer == "" {
		return false, nil
	}
	refs, err := r.store.GameRefs(ctx, g.ID)
	if err != nil {
		return false, fmt.Errorf("refs for game %d: %w", g.ID, err)
	}
	for _, ref := range refs {
		if ref.ViewerID == viewer {
			return true, nil
		}
	}
	return false, nil
}

// merge applies an observation to a stored game. A final game is never
// moved back to live or upcoming, and known values are not blanked.
func merge(g *store.Game, obs Observation, flipped bool) {
	awayScore, homeScore := obs.AwayScore, obs.HomeScore
	if flipped {
		awayScore, homeScore = homeScore, awayScore
	}
	if awayScore != nil {
		g.AwayScore = awayScore
	}
	if homeScore != nil {
		g.HomeScore = homeScore
	}

	status := statusOrDefault(obs.Status)
	if g.Status != store.StatusFinal || status == boxscore.StatusFinal {
		g.Status = string(status)
	}

	if g.ExternalID == "" {
		g.ExternalID = obs.ExternalID
	}
	if g.GameDate == nil {
		g.GameDate = obs.GameDate
	}
	if g.GameTime == "" {
		g.GameTime = obs.GameTime
	}
	if g.AgeGroup == "" {
		g.AgeGroup = obs.AgeGroup
	}
	if g.EventName == "" {
		g.EventName = obs.EventName
	}
}

func (r *Reconciler) buildStats(ctx context.Context, g *store.Game, box boxscore.Box) ([]store.GameStat, error) {
	var stats []store.GameStat
	seen := make(map[string]bool)

	add := func(st store.GameStat, name string) {
		key := fmt.Sprintf("%d:%s", st.PlayerID, st.StatType)
		if seen[key] {
			r.logger.Warn("Duplicate stat row skipped", "game_id", g.ID, "player", name, "type", st.StatType)
			return
		}
		seen[key] = true
		stats = append(stats, st)
	}

	sides := []struct {
		teamID   int64
		batting  []boxscore.BattingLine
		pitching []boxscore.PitchingLine
	}{
		{g.AwayTeamID, box.AwayBatting, box.AwayPitching},
		{g.HomeTeamID, box.HomeBatting, box.HomePitching},
	}

	for _, side := range sides {
		for _, l := range side.batting {
			p, err := r.registry.ResolvePlayer(ctx, l.Name, l.Jersey, side.teamID)
			if err != nil {
				return nil, err
			}
			add(store.GameStat{
				GameID: g.ID, PlayerID: p.ID, TeamID: side.teamID, StatType: store.StatBatting,
				AB: l.AB, R: l.R, H: l.H, RBI: l.RBI, BB: l.BB, SO: l.SO,
				Doubles: l.Doubles, Triples: l.Triples, HR: l.HR, Position: l.Positions,
			}, l.Name)
		}
		for _, l := range side.pitching {
			p, err := r.registry.ResolvePlayer(ctx, l.Name, l.Jersey, side.teamID)
			if err != nil {
				return nil, err
			}
			add(store.GameStat{
				GameID: g.ID, PlayerID: p.ID, TeamID: side.teamID, StatType: store.StatPitching,
				IP: l.IP.Float(), H: l.H, R: l.R, ER: l.ER, BB: l.BB, SO: l.SO,
			}, l.Name)
		}
	}
	return stats, nil
}

func scoreMatches(stored, observed *int) bool {
	return stored == nil || observed == nil || *stored == *observed
}

func sameDay(a, b *time.Time) bool {
	if a == nil || b == nil {
		return true
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func statusOrDefault(s boxscore.Status) boxscore.Status {
	switch s {
	case boxscore.StatusFinal, boxscore.StatusLive, boxscore.StatusUpcoming:
		return s
	}
	return boxscore.StatusUpcoming
}
