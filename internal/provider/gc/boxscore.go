package gc

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/albapepper/eventcentral/internal/boxscore"
	"github.com/albapepper/eventcentral/internal/provider"
)

var ErrUnrecognizedShape = errors.New("unrecognized box score shape")

var playerTextRe = regexp.MustCompile(`\(([^)]+)\)`)

// RawBoxScore is the authenticated box score, keyed by provider team id.
type RawBoxScore map[string]TeamBox

// TeamBox is one team's half of a box score.
type TeamBox struct {
	TeamName string      `json:"team_name"`
	Players  []BoxPlayer `json:"players"`
	Groups   []BoxGroup  `json:"groups"`
}

type BoxPlayer struct {
	ID        string      `json:"id"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Number    interface{} `json:"number"`
}

// Name is "first last", trimmed.
func (p BoxPlayer) Name() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Jersey is the player's number as text.
func (p BoxPlayer) Jersey() string {
	switch v := p.Number.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return fmt.Sprintf("%d", int(v))
	}
	return ""
}

type BoxGroup struct {
	Category string         `json:"category"`
	Stats    []BoxStatEntry `json:"stats"`
}

type BoxStatEntry struct {
	PlayerID   string                 `json:"player_id"`
	PlayerText string                 `json:"player_text"`
	Stats      map[string]interface{} `json:"stats"`
}

// DecodeBoxScore parses a box-score body. Anything that is not an object of
// team objects is ErrUnrecognizedShape.
func DecodeBoxScore(raw []byte) (RawBoxScore, error) {
	var out RawBoxScore
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedShape, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no teams", ErrUnrecognizedShape)
	}
	return out, nil
}

// MapTeam converts one team's groups into batting and pitching lines in
// the order the provider lists them. A team with neither a lineup nor a
// pitching group is ErrUnrecognizedShape.
func MapTeam(tb TeamBox) ([]boxscore.BattingLine, []boxscore.PitchingLine, error) {
	players := make(map[string]BoxPlayer, len(tb.Players))
	for _, p := range tb.Players {
		players[p.ID] = p
	}

	var batting []boxscore.BattingLine
	var pitching []boxscore.PitchingLine
	known := false

	for _, g := range tb.Groups {
		switch g.Category {
		case "lineup":
			known = true
			for _, e := range g.Stats {
				if e.PlayerID == "" || e.Stats == nil {
					continue
				}
				p := players[e.PlayerID]
				batting = append(batting, boxscore.BattingLine{
					Name:      nameOr(p),
					Jersey:    p.Jersey(),
					Positions: positions(e.PlayerText),
					AB:        provider.FirstCount(e.Stats, "AB"),
					R:         provider.FirstCount(e.Stats, "R"),
					H:         provider.FirstCount(e.Stats, "H"),
					RBI:       provider.FirstCount(e.Stats, "RBI"),
					BB:        provider.FirstCount(e.Stats, "BB"),
					SO:        provider.FirstCount(e.Stats, "SO", "K"),
					Doubles:   provider.FirstCount(e.Stats, "2B"),
					Triples:   provider.FirstCount(e.Stats, "3B"),
					HR:        provider.FirstCount(e.Stats, "HR"),
				})
			}
		case "pitching":
			known = true
			for _, e := range g.Stats {
				if e.PlayerID == "" || e.Stats == nil {
					continue
				}
				p := players[e.PlayerID]
				ip, _ := provider.ExtractValue(e.Stats["IP"])
				pitching = append(pitching, boxscore.PitchingLine{
					Name:   nameOr(p),
					Jersey: p.Jersey(),
					IP:     boxscore.InningsFromDecimal(ip),
					H:      provider.FirstCount(e.Stats, "H"),
					R:      provider.FirstCount(e.Stats, "R"),
					ER:     provider.FirstCount(e.Stats, "ER"),
					BB:     provider.FirstCount(e.Stats, "BB"),
					SO:     provider.FirstCount(e.Stats, "SO", "K"),
				})
			}
		}
	}
	if !known {
		return nil, nil, fmt.Errorf("%w: team %q has no lineup or pitching group", ErrUnrecognizedShape, tb.TeamName)
	}
	return batting, pitching, nil
}

func nameOr(p BoxPlayer) string {
	if n := p.Name(); n != "" {
		return n
	}
	return "Unknown"
}

func positions(text string) string {
	if m := playerTextRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}
