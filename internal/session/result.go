package session

import "fmt"

// CycleResult tracks counts and errors from one polling cycle.
type CycleResult struct {
	Teams          int      `json:"teams"`
	GamesFound     int      `json:"games_found"`
	SkippedFinal   int      `json:"skipped_final"`
	OutOfRange     int      `json:"out_of_range"`
	NonEvent       int      `json:"non_event"`
	Pending        int      `json:"pending"`
	Saved          int      `json:"saved"`
	Created        int      `json:"created"`
	Final          int      `json:"final"`
	LiveOrUpcoming int      `json:"live_or_upcoming"`
	Errors         []string `json:"errors,omitempty"`
}

// AddErrorf records a formatted error message.
func (r *CycleResult) AddErrorf(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// AllFinal reports whether the cycle saw games and every one is final.
func (r *CycleResult) AllFinal() bool {
	return r.GamesFound > 0 && r.LiveOrUpcoming == 0
}

// Summary returns a human-readable summary of the cycle.
func (r *CycleResult) Summary() string {
	return fmt.Sprintf(
		"teams=%d games=%d saved=%d created=%d skipped_final=%d live_or_upcoming=%d errors=%d",
		r.Teams, r.GamesFound, r.Saved, r.Created,
		r.SkippedFinal, r.LiveOrUpcoming, len(r.Errors),
	)
}
