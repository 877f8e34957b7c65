package scrape

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/albapepper/eventcentral/internal/boxscore"
)

// Page selectors of the provider web app.
const (
	selAwayName    = `[data-testid="away-team-name"]`
	selHomeName    = `[data-testid="home-team-name"]`
	selDataTable   = `[data-testid="data-table"]`
	selAwayScore   = `[data-testid="EventHeaderOngoing-awayScore"]`
	selHomeScore   = `[data-testid="EventHeaderOngoing-homeScore"]`
	selFinalHeader = `[data-testid="Event-Header-LineScoreFinal"]`
	selLiveHeader  = `[data-testid="Event-Header-LineScoreLive"]`
	selEventTime   = `[data-testid="event-time"]`
	selSignIn      = `[data-testid="desktop-sign-in-button"]`
	selScheduleTab = `a[href*="/schedule"]`
	selScheduleRow = `a[class*="ScheduleListByMonth__event"]`
	selScheduleAny = `a[href*="/schedule/"]`

	boxScoreSuffix = "/box-score"
)

var (
	gameLinkRe   = regexp.MustCompile(`/schedule/[a-f0-9-]{20,}`)
	externalIDRe = regexp.MustCompile(`schedule/([a-f0-9-]+)`)
)

// GameLink is a game found on a team schedule.
type GameLink struct {
	URL        string `json:"url"`
	ExternalID string `json:"external_id"`
	Text       string `json:"text"`
}

// Page is what a box-score page shows.
type Page struct {
	URL        string
	ExternalID string
	AwayName   string
	HomeName   string
	GameTime   string
	Header     boxscore.HeaderSignal
	Tables     [][]string
	Box        boxscore.Box
}

// ParseBoxScore reads a rendered box-score page. Tables are taken in page
// order: away batting, away pitching, home batting, home pitching.
func ParseBoxScore(doc *goquery.Document) *Page {
	p := &Page{
		AwayName: cleanText(doc.Find(selAwayName).First().Text()),
		HomeName: cleanText(doc.Find(selHomeName).First().Text()),
		GameTime: cleanText(doc.Find(selEventTime).First().Text()),
	}

	p.Header.AwayScore = parseScore(doc.Find(selAwayScore).First())
	p.Header.HomeScore = parseScore(doc.Find(selHomeScore).First())
	if strings.Contains(strings.ToUpper(doc.Find(selFinalHeader).First().Text()), "FINAL") {
		p.Header.Status = boxscore.StatusFinal
	} else if doc.Find(selLiveHeader).Length() > 0 {
		p.Header.Status = boxscore.StatusLive
	}

	doc.Find(selDataTable).Each(func(_ int, t *goquery.Selection) {
		p.Tables = append(p.Tables, TableLines(t))
	})
	if len(p.Tables) >= 4 {
		p.Box = boxscore.Box{
			AwayBatting:  boxscore.ParseBatting(p.Tables[0]),
			AwayPitching: boxscore.ParsePitching(p.Tables[1]),
			HomeBatting:  boxscore.ParseBatting(p.Tables[2]),
			HomePitching: boxscore.ParsePitching(p.Tables[3]),
		}
	}
	return p
}

// ParseSchedule collects game links from a schedule page, made absolute
// against base, pointed at the box score and deduplicated.
func ParseSchedule(doc *goquery.Document, base string) []GameLink {
	var links []GameLink
	seen := make(map[string]bool)

	add := func(s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		abs := absolute(base, href)
		key := strings.TrimSuffix(strings.SplitN(abs, boxScoreSuffix, 2)[0], "/")
		if seen[key] {
			return
		}
		seen[key] = true
		text := strings.Join(TableLines(s), " | ")
		if len(text) > 150 {
			text = text[:150]
		}
		links = append(links, GameLink{
			URL:        key + boxScoreSuffix,
			ExternalID: ExternalGameID(key + "/"),
			Text:       text,
		})
	}

	doc.Find(selScheduleRow).Each(func(_ int, s *goquery.Selection) { add(s) })
	if len(links) == 0 {
		doc.Find(selScheduleAny).Each(func(_ int, s *goquery.Selection) {
			href, _ := s.Attr("href")
			if gameLinkRe.MatchString(href) {
				add(s)
			}
		})
	}
	return links
}

// ExternalGameID pulls the provider game id out of a schedule URL.
func ExternalGameID(u string) string {
	if m := externalIDRe.FindStringSubmatch(u); m != nil {
		return m[1]
	}
	return ""
}

// TableLines renders a selection the way a browser's innerText would for
// table cells: one line per text run, trimmed, blanks dropped.
func TableLines(s *goquery.Selection) []string {
	var lines []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			lines = append(lines, boxscore.SplitLines(n.Data)...)
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return lines
}

func parseScore(s *goquery.Selection) *int {
	if s.Length() == 0 {
		return nil
	}
	n, err := strconv.Atoi(cleanText(s.Text()))
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func absolute(base, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if ref.IsAbs() {
		return ref.String()
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

func docFromHTML(raw string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}
