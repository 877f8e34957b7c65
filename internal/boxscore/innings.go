package boxscore

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Innings is an innings-pitched value stored as a count of outs. Its
// notation form writes the outs of a partial inning after the point, so
// 4.2 is four innings and two outs.
type Innings struct {
	outs int
}

// InningsFromOuts builds an Innings value from a count of outs.
func InningsFromOuts(outs int) Innings {
	if outs < 0 {
		outs = 0
	}
	return Innings{outs: outs}
}

// ParseInnings reads notation such as "5", "4.1" or "0.2". A digit after the
// point greater than 2 is rejected.
func ParseInnings(s string) (Innings, error) {
	s = strings.TrimSpace(s)
	whole, frac, hasFrac := strings.Cut(s, ".")
	w, err := strconv.Atoi(whole)
	if err != nil || w < 0 {
		return Innings{}, fmt.Errorf("invalid innings %q", s)
	}
	outs := 0
	if hasFrac {
		if len(frac) != 1 || frac[0] < '0' || frac[0] > '2' {
			return Innings{}, fmt.Errorf("invalid innings fraction %q", s)
		}
		outs = int(frac[0] - '0')
	}
	return Innings{outs: w*3 + outs}, nil
}

// InningsFromNotation converts a stored notation float (4.2) back to outs.
func InningsFromNotation(f float64) Innings {
	if f <= 0 {
		return Innings{}
	}
	whole := math.Floor(f)
	digit := int(math.Round((f - whole) * 10))
	if digit > 2 {
		digit = 2
	}
	return Innings{outs: int(whole)*3 + digit}
}

// InningsFromDecimal converts a decimal-thirds value (1.6667) to the nearest
// whole out, so 1.6667 becomes 1.2 rather than 1.7.
func InningsFromDecimal(f float64) Innings {
	if f <= 0 {
		return Innings{}
	}
	whole := math.Floor(f)
	outs := int(math.Round((f - whole) * 3))
	return Innings{outs: int(whole)*3 + outs}
}

// Outs returns the total number of outs recorded.
func (i Innings) Outs() int { return i.outs }

// Float returns the notation value, e.g. 1.2 for one inning and two outs.
func (i Innings) Float() float64 {
	return float64(i.outs/3) + float64(i.outs%3)/10
}

// Thirds returns the true number of innings (1.2 notation is 1.667), for use
// in rate statistics such as ERA and WHIP.
func (i Innings) Thirds() float64 {
	return float64(i.outs) / 3
}

// Add sums two innings values.
func (i Innings) Add(o Innings) Innings {
	return Innings{outs: i.outs + o.outs}
}

func (i Innings) String() string {
	return fmt.Sprintf("%d.%d", i.outs/3, i.outs%3)
}

func (i Innings) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.Float())
}

func (i *Innings) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*i = InningsFromNotation(f)
	return nil
}
