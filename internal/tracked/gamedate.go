package tracked

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// "Sun Feb 15, 12:00 PM - 1:00 PM ET"
var gameDateRe = regexp.MustCompile(`\b([A-Za-z]{3,9})\s+(\d{1,2})\b`)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// ParseGameDate reads the month and day from a provider event-time string.
// The year comes from yearHint when set, otherwise from now.
func ParseGameDate(text string, yearHint *time.Time, now time.Time) (time.Time, bool) {
	year := now.Year()
	if yearHint != nil {
		year = yearHint.Year()
	}
	for _, m := range gameDateRe.FindAllStringSubmatch(text, -1) {
		word := strings.ToLower(m[1])
		if len(word) < 3 {
			continue
		}
		month, ok := months[word[:3]]
		if !ok {
			continue
		}
		day, err := strconv.Atoi(m[2])
		if err != nil || day < 1 || day > 31 {
			continue
		}
		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}
