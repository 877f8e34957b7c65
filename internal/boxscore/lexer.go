// Package boxscore turns the rendered text of provider stat tables into typed
// batting and pitching lines, and resolves a game's score and status from the
// header signal or, when that is missing, from the tables themselves.
//
// Tables arrive as trimmed, non-empty lines. Each line is classified by a
// small lexer and the token stream is consumed by a finite-state machine that
// reads one player record at a time:
//
//	NAME [JERSEY [POSITION] | POSITION] NUMBER×6
//
// until a TEAM sentinel or the end of input.
package boxscore

import (
	"regexp"
	"strings"
)

// TableKind identifies which column layout a stat table uses.
type TableKind int

const (
	Batting TableKind = iota
	Pitching
)

func (k TableKind) String() string {
	if k == Pitching {
		return "pitching"
	}
	return "batting"
}

// TokenKind classifies a single table line.
type TokenKind int

const (
	TokName TokenKind = iota
	TokJersey
	TokPosition
	TokNumber
	TokSentinel
	TokHeader
)

func (k TokenKind) String() string {
	switch k {
	case TokJersey:
		return "JERSEY"
	case TokPosition:
		return "POSITION"
	case TokNumber:
		return "NUMBER"
	case TokSentinel:
		return "SENTINEL"
	case TokHeader:
		return "HEADER"
	default:
		return "NAME"
	}
}

// Token is one classified line. Jersey and Positions are only set for
// JERSEY and POSITION tokens.
type Token struct {
	Kind      TokenKind
	Text      string
	Jersey    string
	Positions string
}

const sentinel = "TEAM"

var (
	numberRe   = regexp.MustCompile(`^\d+(\.\d)?$`)
	jerseyRe   = regexp.MustCompile(`^#(\d+)\s*(?:\(([^)]+)\))?$`)
	positionRe = regexp.MustCompile(`^\(([^)]+)\)$`)

	battingHeaders = map[string]bool{
		"LINEUP": true, "AB": true, "R": true, "H": true, "RBI": true, "BB": true, "SO": true,
	}
	pitchingHeaders = map[string]bool{
		"PITCHING": true, "IP": true, "H": true, "R": true, "ER": true, "BB": true, "SO": true,
	}
)

// IsNumeric reports whether a line holds an integer or a one-decimal value.
func IsNumeric(line string) bool {
	return numberRe.MatchString(line)
}

// Lex classifies lines for the given table kind. Only the leading run of
// header tokens is reported as HEADER; a header word later in the table is an
// ordinary NAME.
func Lex(lines []string, kind TableKind) []Token {
	headers := battingHeaders
	if kind == Pitching {
		headers = pitchingHeaders
	}

	tokens := make([]Token, 0, len(lines))
	leading := true
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if leading && headers[strings.ToUpper(line)] {
			tokens = append(tokens, Token{Kind: TokHeader, Text: line})
			continue
		}
		tok := classify(line)
		// A sentinel closes one table; the next may open with its own header.
		leading = tok.Kind == TokSentinel
		tokens = append(tokens, tok)
	}
	return tokens
}

func classify(line string) Token {
	switch {
	case line == sentinel:
		return Token{Kind: TokSentinel, Text: line}
	case numberRe.MatchString(line):
		return Token{Kind: TokNumber, Text: line}
	}
	if m := jerseyRe.FindStringSubmatch(line); m != nil {
		return Token{Kind: TokJersey, Text: line, Jersey: m[1], Positions: strings.TrimSpace(m[2])}
	}
	if m := positionRe.FindStringSubmatch(line); m != nil {
		return Token{Kind: TokPosition, Text: line, Positions: strings.TrimSpace(m[1])}
	}
	return Token{Kind: TokName, Text: line}
}

// SplitLines breaks rendered table text into trimmed, non-empty lines.
func SplitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if t := strings.TrimSpace(l); t != "" {
			lines = append(lines, t)
		}
	}
	return lines
}
