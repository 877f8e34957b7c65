package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/albapepper/eventcentral/internal/store"
)

// TeamAttrs are optional attributes recorded when a team is first seen, or
// backfilled later when the stored row lacks them.
type TeamAttrs struct {
	ExternalID string
	AgeGroup   string
}

// Registry creates teams and players lazily on first sighting.
type Registry struct {
	store  store.Store
	norm   *Normalizer
	logger *slog.Logger
}

// New creates a Registry with the given alias table.
func New(s store.Store, aliases map[string]string, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	norm, err := NewNormalizer(aliases)
	if err != nil {
		return nil, err
	}
	return &Registry{store: s, norm: norm, logger: logger}, nil
}

// Normalize exposes the registry's team-name normalization.
func (r *Registry) Normalize(raw string) string {
	return r.norm.Normalize(raw)
}

// ResolveTeam returns the team for a raw name, creating it if needed.
// Repeated calls with equivalent names return the same row and do not write.
func (r *Registry) ResolveTeam(ctx context.Context, raw string, attrs TeamAttrs) (*store.Team, error) {
	name := r.norm.Normalize(raw)
	if name == "" {
		return nil, fmt.Errorf("resolve team: empty name")
	}
	if attrs.AgeGroup == "" {
		attrs.AgeGroup = InferAgeGroup(name)
	}

	team, err := r.store.FindTeamByName(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		team = &store.Team{Name: name, ExternalID: attrs.ExternalID, AgeGroup: attrs.AgeGroup}
		err = r.store.CreateTeam(ctx, team)
		if errors.Is(err, store.ErrConflict) {
			// Another session created it between our read and write.
			team, err = r.store.FindTeamByName(ctx, name)
		} else if err == nil {
			r.logger.Info("Team created", "team", name, "id", team.ID, "raw", raw)
			return team, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("resolve team %q: %w", name, err)
	}

	changed := false
	if team.ExternalID == "" && attrs.ExternalID != "" {
		team.ExternalID = attrs.ExternalID
		changed = true
	}
	if team.AgeGroup == "" && attrs.AgeGroup != "" {
		team.AgeGroup = attrs.AgeGroup
		changed = true
	}
	if changed {
		if err := r.store.UpdateTeam(ctx, team); err != nil {
			return nil, fmt.Errorf("backfill team %q: %w", name, err)
		}
	}
	return team, nil
}

// ResolvePlayer returns the player with this name on teamID, creating it if
// needed. A jersey number fills in a missing one but never overwrites.
func (r *Registry) ResolvePlayer(ctx context.Context, raw, jersey string, teamID int64) (*store.Player, error) {
	name := collapseSpace(raw)
	if name == "" {
		return nil, fmt.Errorf("resolve player: empty name")
	}

	p, err := r.store.FindPlayer(ctx, name, teamID)
	if errors.Is(err, store.ErrNotFound) {
		p = &store.Player{Name: name, Jersey: jersey, TeamID: teamID}
		err = r.store.CreatePlayer(ctx, p)
		if errors.Is(err, store.ErrConflict) {
			p, err = r.store.FindPlayer(ctx, name, teamID)
		} else if err == nil {
			return p, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("resolve player %q: %w", name, err)
	}

	if p.Jersey == "" && jersey != "" {
		p.Jersey = jersey
		if err := r.store.UpdatePlayer(ctx, p); err != nil {
			return nil, fmt.Errorf("backfill player %q: %w", name, err)
		}
	}
	return p, nil
}
