// Package registry resolves the team and player names typed into the
// provider by volunteer scorekeepers to stable store identities.
package registry

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ageTokenRe = regexp.MustCompile(`(?i)^\d+U$`)
	ageGroupRe = regexp.MustCompile(`(?i)\b(\d{1,2})U\b`)
)

// ErrAliasCycle rejects an alias table in which a name leads back to itself.
var ErrAliasCycle = errors.New("team alias cycle")

// Normalizer canonicalizes team names with an alias table and by collapsing
// a repeated age-group token ("TC ELITE 11U 11U" → "TC ELITE 11U").
type Normalizer struct {
	exact  map[string]string
	folded map[string]string
}

// NewNormalizer builds a Normalizer from raw → canonical aliases. Chains
// (A → B → C) of any length are followed; a table where some name never
// settles is rejected with ErrAliasCycle.
func NewNormalizer(aliases map[string]string) (*Normalizer, error) {
	n := &Normalizer{
		exact:  make(map[string]string, len(aliases)),
		folded: make(map[string]string, len(aliases)),
	}
	for from, to := range aliases {
		from, to = collapseSpace(from), collapseSpace(to)
		n.exact[from] = to
		n.folded[strings.ToLower(from)] = to
	}
	for from := range n.exact {
		if _, ok := n.settle(from); !ok {
			return nil, fmt.Errorf("%q: %w", from, ErrAliasCycle)
		}
	}
	return n, nil
}

// Normalize returns the canonical form of a team name. It is idempotent:
// Normalize(Normalize(x)) == Normalize(x).
func (n *Normalizer) Normalize(raw string) string {
	name, _ := n.settle(collapseSpace(raw))
	return name
}

// settle applies steps until the name stops changing. ok is false when a
// name repeats first.
func (n *Normalizer) settle(name string) (string, bool) {
	seen := make(map[string]bool)
	for {
		next := n.step(name)
		if next == name {
			return name, true
		}
		if seen[next] {
			return name, false
		}
		seen[name] = true
		name = next
	}
}

func (n *Normalizer) step(name string) string {
	if to, ok := n.exact[name]; ok {
		return to
	}
	if to, ok := n.folded[strings.ToLower(name)]; ok {
		return to
	}
	return collapseRepeatedAge(name)
}

// collapseRepeatedAge drops an age token that immediately repeats the one
// before it, ignoring case.
func collapseRepeatedAge(name string) string {
	words := strings.Fields(name)
	out := make([]string, 0, len(words))
	for _, w := range words {
		if len(out) > 0 && ageTokenRe.MatchString(w) && strings.EqualFold(out[len(out)-1], w) {
			continue
		}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}

// InferAgeGroup extracts an age group such as "11U" from a team name.
func InferAgeGroup(name string) string {
	m := ageGroupRe.FindStringSubmatch(name)
	if m == nil {
		return ""
	}
	return m[1] + "U"
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
