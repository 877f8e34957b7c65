package boxscore

import (
	"strconv"
)

// statsPerRecord is the number of numeric columns in both table layouts.
const statsPerRecord = 6

// BattingLine is one player's row in a batting table.
type BattingLine struct {
	Name      string `json:"name"`
	Jersey    string `json:"jersey,omitempty"`
	Positions string `json:"positions,omitempty"`
	AB        int    `json:"ab"`
	R         int    `json:"r"`
	H         int    `json:"h"`
	RBI       int    `json:"rbi"`
	BB        int    `json:"bb"`
	SO        int    `json:"so"`

	// Extra-base hits are not rendered in the table; they stay zero unless a
	// richer source fills them in.
	Doubles int `json:"doubles,omitempty"`
	Triples int `json:"triples,omitempty"`
	HR      int `json:"hr,omitempty"`
}

// PitchingLine is one player's row in a pitching table.
type PitchingLine struct {
	Name   string  `json:"name"`
	Jersey string  `json:"jersey,omitempty"`
	IP     Innings `json:"ip"`
	H      int     `json:"h"`
	R      int     `json:"r"`
	ER     int     `json:"er"`
	BB     int     `json:"bb"`
	SO     int     `json:"so"`
}

// record is a player block recognised by the state machine before its
// numeric columns are typed.
type record struct {
	name      string
	jersey    string
	positions string
	nums      [statsPerRecord]string
}

// ParseBatting parses the lines of one batting table. Malformed player
// blocks are dropped; the result is empty, never nil-with-error.
func ParseBatting(lines []string) []BattingLine {
	recs := scan(Lex(lines, Batting))
	out := make([]BattingLine, 0, len(recs))
	for _, r := range recs {
		var v [statsPerRecord]int
		ok := true
		for i, s := range r.nums {
			n, err := parseCount(s)
			if err != nil {
				ok = false
				break
			}
			v[i] = n
		}
		if !ok {
			continue
		}
		out = append(out, BattingLine{
			Name:      r.name,
			Jersey:    r.jersey,
			Positions: r.positions,
			AB:        v[0],
			R:         v[1],
			H:         v[2],
			RBI:       v[3],
			BB:        v[4],
			SO:        v[5],
		})
	}
	return out
}

// ParsePitching parses the lines of one pitching table. Rows whose innings
// value is not valid baseball notation are dropped.
func ParsePitching(lines []string) []PitchingLine {
	recs := scan(Lex(lines, Pitching))
	out := make([]PitchingLine, 0, len(recs))
	for _, r := range recs {
		ip, err := ParseInnings(r.nums[0])
		if err != nil {
			continue
		}
		var v [statsPerRecord - 1]int
		ok := true
		for i, s := range r.nums[1:] {
			n, err := parseCount(s)
			if err != nil {
				ok = false
				break
			}
			v[i] = n
		}
		if !ok {
			continue
		}
		out = append(out, PitchingLine{
			Name:   r.name,
			Jersey: r.jersey,
			IP:     ip,
			H:      v[0],
			R:      v[1],
			ER:     v[2],
			BB:     v[3],
			SO:     v[4],
		})
	}
	return out
}

// scan runs the record state machine over a token stream.
//
// States: expect-name, after-name, (after-jersey), reading-stats.
// Any token that cannot continue the current record abandons it, and
// scanning resumes at that token so a following valid block is not lost.
// A TEAM sentinel ends the current record; its totals are skipped as
// ownerless numbers and scanning carries on into the next table.
func scan(tokens []Token) []record {
	var out []record
	n := len(tokens)
	i := 0
	for i < n {
		t := tokens[i]
		if t.Kind != TokName {
			// Sentinel, stray header, number or jersey with no owner.
			i++
			continue
		}

		rec := record{name: t.Text}
		j := i + 1

		// Optional identity line(s).
		if j < n && tokens[j].Kind == TokJersey {
			rec.jersey = tokens[j].Jersey
			rec.positions = tokens[j].Positions
			j++
			if rec.positions == "" && j < n && tokens[j].Kind == TokPosition {
				rec.positions = tokens[j].Positions
				j++
			}
		} else if j < n && tokens[j].Kind == TokPosition {
			rec.positions = tokens[j].Positions
			j++
		}

		k := j
		for k < n && k-j < statsPerRecord && tokens[k].Kind == TokNumber {
			rec.nums[k-j] = tokens[k].Text
			k++
		}
		if k-j == statsPerRecord {
			out = append(out, rec)
		}
		i = k
	}
	return out
}

func parseCount(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}
