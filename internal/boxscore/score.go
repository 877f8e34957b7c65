package boxscore

// Status is a game's lifecycle state as shown by the provider.
type Status string

const (
	StatusUpcoming Status = "upcoming"
	StatusLive     Status = "live"
	StatusFinal    Status = "final"
)

// DefaultFinalInnings is the innings each side must have pitched before a
// game without a header status is treated as final.
const DefaultFinalInnings = 3.0

// Box holds the four stat tables of one game, in away/home order.
type Box struct {
	AwayBatting  []BattingLine  `json:"away_batting"`
	AwayPitching []PitchingLine `json:"away_pitching"`
	HomeBatting  []BattingLine  `json:"home_batting"`
	HomePitching []PitchingLine `json:"home_pitching"`
}

// Empty reports whether no table produced a single row.
func (b Box) Empty() bool {
	return len(b.AwayBatting) == 0 && len(b.AwayPitching) == 0 &&
		len(b.HomeBatting) == 0 && len(b.HomePitching) == 0
}

// Swap returns the box with the away and home sides exchanged.
func (b Box) Swap() Box {
	return Box{
		AwayBatting:  b.HomeBatting,
		AwayPitching: b.HomePitching,
		HomeBatting:  b.AwayBatting,
		HomePitching: b.AwayPitching,
	}
}

// HeaderSignal is the score and status read from the page header. A nil
// score means the header did not show one; zero is a real score.
type HeaderSignal struct {
	AwayScore *int
	HomeScore *int
	Status    Status
}

// Resolution is the authoritative score and status for a scraped game.
type Resolution struct {
	AwayScore        *int
	HomeScore        *int
	Status           Status
	ScoreFromHeader  bool
	StatusFromHeader bool
}

// ResolveScore merges the header signal with totals derived from the stat
// tables. Header values win when present. Without a header status the game
// is final once both sides have pitched at least finalInnings innings.
func ResolveScore(h *HeaderSignal, box Box, finalInnings float64) Resolution {
	if finalInnings <= 0 {
		finalInnings = DefaultFinalInnings
	}

	var res Resolution
	res.AwayScore = derivedRuns(box.AwayBatting)
	res.HomeScore = derivedRuns(box.HomeBatting)

	if h != nil {
		if h.AwayScore != nil && h.HomeScore != nil {
			res.AwayScore = intPtr(*h.AwayScore)
			res.HomeScore = intPtr(*h.HomeScore)
			res.ScoreFromHeader = true
		}
		switch h.Status {
		case StatusFinal, StatusLive, StatusUpcoming:
			res.Status = h.Status
			res.StatusFromHeader = true
		}
	}

	if !res.StatusFromHeader {
		away := SumInnings(box.AwayPitching).Thirds()
		home := SumInnings(box.HomePitching).Thirds()
		if away >= finalInnings && home >= finalInnings {
			res.Status = StatusFinal
		} else {
			res.Status = StatusLive
		}
	}

	if res.Status == StatusFinal {
		if res.AwayScore == nil {
			res.AwayScore = intPtr(SumRuns(box.AwayBatting))
		}
		if res.HomeScore == nil {
			res.HomeScore = intPtr(SumRuns(box.HomeBatting))
		}
	}
	return res
}

// SumRuns totals the R column of a batting table.
func SumRuns(lines []BattingLine) int {
	total := 0
	for _, l := range lines {
		total += l.R
	}
	return total
}

// SumInnings totals the innings pitched by a staff.
func SumInnings(lines []PitchingLine) Innings {
	var total Innings
	for _, l := range lines {
		total = total.Add(l.IP)
	}
	return total
}

func derivedRuns(lines []BattingLine) *int {
	if len(lines) == 0 {
		return nil
	}
	return intPtr(SumRuns(lines))
}

func intPtr(n int) *int { return &n }
