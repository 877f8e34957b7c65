// Package tracked reads the tracked-team file: one provider team per line,
// tagged with an age group, an event name and an optional date window.
//
//	https://web.gc.com/teams/fXEnuJhCgzAL | 8U | Space Coast Presidents Day | 2026-02-14 | 2026-02-16
package tracked

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"
)

const (
	DefaultAgeGroup  = "Unknown"
	DefaultEventName = "Unknown Event"

	dateLayout = "2006-01-02"
	teamMarker = "gc.com/teams/"
)

var (
	ErrNotTeamURL = errors.New("not a provider team url")

	teamIDRe = regexp.MustCompile(`teams/([A-Za-z0-9]+)`)
	slugRe   = regexp.MustCompile(`[^a-z0-9]+`)
)

// Team is one tracked team line.
type Team struct {
	Line      int        `json:"line"`
	URL       string     `json:"url"`
	TeamID    string     `json:"team_id"`
	AgeGroup  string     `json:"age_group"`
	EventName string     `json:"event_name"`
	EventID   string     `json:"event_id"`
	Start     *time.Time `json:"start,omitempty"`
	End       *time.Time `json:"end,omitempty"`
}

// InRange reports whether d falls inside the team's event window. Missing
// bounds are open. The end date is inclusive.
func (t Team) InRange(d time.Time) bool {
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	if t.Start != nil && day.Before(*t.Start) {
		return false
	}
	if t.End != nil && day.After(*t.End) {
		return false
	}
	return true
}

// Event groups the teams tracked for one event name.
type Event struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
	Teams []Team     `json:"teams"`
}

// LineError is a rejected line.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e LineError) Unwrap() error { return e.Err }

// File is a parsed tracked-team file.
type File struct {
	Teams  []Team
	Errors []LineError
}

// Load reads and parses the file at path.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open teams file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads tracked teams from r. Bad lines are collected in File.Errors
// and never stop the parse; only read errors are returned.
func Parse(r io.Reader) (*File, error) {
	out := &File{}
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		team, err := parseLine(text)
		if err != nil {
			out.Errors = append(out.Errors, LineError{Line: n, Text: text, Err: err})
			continue
		}
		team.Line = n
		out.Teams = append(out.Teams, team)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read teams file: %w", err)
	}
	return out, nil
}

func parseLine(text string) (Team, error) {
	parts := strings.Split(text, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	field := func(i int) string {
		if i < len(parts) {
			return parts[i]
		}
		return ""
	}

	url := field(0)
	if !strings.Contains(url, teamMarker) {
		return Team{}, fmt.Errorf("%w: %q", ErrNotTeamURL, url)
	}
	m := teamIDRe.FindStringSubmatch(url)
	if m == nil {
		return Team{}, fmt.Errorf("%w: no team id in %q", ErrNotTeamURL, url)
	}

	t := Team{
		URL:       url,
		TeamID:    m[1],
		AgeGroup:  field(1),
		EventName: field(2),
	}
	if t.AgeGroup == "" {
		t.AgeGroup = DefaultAgeGroup
	}
	if t.EventName == "" {
		t.EventName = DefaultEventName
	}
	t.EventID = Slug(t.EventName)

	var err error
	if t.Start, err = parseDate(field(3)); err != nil {
		return Team{}, fmt.Errorf("start date: %w", err)
	}
	if t.End, err = parseDate(field(4)); err != nil {
		return Team{}, fmt.Errorf("end date: %w", err)
	}
	if t.Start != nil && t.End != nil && t.End.Before(*t.Start) {
		return Team{}, fmt.Errorf("end date %s before start %s", field(4), field(3))
	}
	return t, nil
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Slug turns an event name into a stable id.
func Slug(name string) string {
	return strings.Trim(slugRe.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

// Events groups teams by event id, in order of first appearance. An event's
// window spans the earliest start and latest end of its teams.
func (f *File) Events() []Event {
	var events []Event
	idx := make(map[string]int)
	for _, t := range f.Teams {
		i, ok := idx[t.EventID]
		if !ok {
			i = len(events)
			idx[t.EventID] = i
			events = append(events, Event{ID: t.EventID, Name: t.EventName})
		}
		e := &events[i]
		e.Teams = append(e.Teams, t)
		if t.Start != nil && (e.Start == nil || t.Start.Before(*e.Start)) {
			e.Start = t.Start
		}
		if t.End != nil && (e.End == nil || t.End.After(*e.End)) {
			e.End = t.End
		}
	}
	return events
}

// Event returns the event with the given id.
func (f *File) Event(id string) (Event, bool) {
	for _, e := range f.Events() {
		if e.ID == id {
			return e, true
		}
	}
	return Event{}, false
}

// TeamIDs returns the provider ids of every tracked team.
func (f *File) TeamIDs() map[string]bool {
	ids := make(map[string]bool, len(f.Teams))
	for _, t := range f.Teams {
		ids[t.TeamID] = true
	}
	return ids
}
