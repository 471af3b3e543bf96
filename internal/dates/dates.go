// Package dates parses the loosely formatted date values found in CRM
// payloads: ISO dates, slash-separated dates, datetime prefixes, and dates
// embedded in free-text notes (including CJK calendar forms).
package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/maqua/member-lookup/internal/record"
)

var (
	standardRe = regexp.MustCompile(`(20\d{2})[./-](\d{1,2})[./-](\d{1,2})`)
	cjkRe      = regexp.MustCompile(`(20\d{2})年\s*(\d{1,2})月\s*(\d{1,2})[日號]?`)
)

// Parse extracts a calendar date from a CRM field value. It accepts
// YYYY-MM-DD, YYYY/MM/DD, and datetime strings whose date part leads
// ("2024-03-05T10:00:00", "2024-03-05 10:00:00"). Unparseable input returns
// ok=false; it never errors to callers.
func Parse(v any) (time.Time, bool) {
	switch val := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if val.IsZero() {
			return time.Time{}, false
		}
		return Truncate(val), true
	}

	text := record.CleanText(v)
	if text == "" {
		return time.Time{}, false
	}
	base := text
	if i := strings.IndexAny(base, "T "); i >= 0 {
		base = base[:i]
	}
	base = strings.TrimSpace(strings.ReplaceAll(base, "/", "-"))

	parsed, err := time.Parse("2006-01-02", base)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

// Format normalizes a value to its ISO date string, or "" when unparseable.
func Format(v any) string {
	parsed, ok := Parse(v)
	if !ok {
		return ""
	}
	return ISO(parsed)
}

// ISO renders a date as YYYY-MM-DD.
func ISO(d time.Time) string {
	return d.Format("2006-01-02")
}

// Truncate drops the time-of-day and location from a timestamp.
func Truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ExtractAll scans free text for every date written either numerically
// (2024.3.5, 2024-03-05, 2024/3/5) or in CJK calendar form (2024年3月5日).
// Matches that are not valid calendar dates are skipped.
func ExtractAll(texts ...string) []time.Time {
	var found []time.Time
	for _, text := range texts {
		if text == "" {
			continue
		}
		for _, re := range []*regexp.Regexp{standardRe, cjkRe} {
			for _, m := range re.FindAllStringSubmatch(text, -1) {
				if d, ok := makeDate(m[1], m[2], m[3]); ok {
					found = append(found, d)
				}
			}
		}
	}
	return found
}

// ContainsDate reports whether text carries any recognizable date. The
// profile builder uses it to reject schedule notes masquerading as plan
// descriptions.
func ContainsDate(text string) bool {
	return standardRe.MatchString(text) || cjkRe.MatchString(text)
}

func makeDate(year, month, day string) (time.Time, bool) {
	y, _ := strconv.Atoi(year)
	m, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	if m < 1 || m > 12 || d < 1 {
		return time.Time{}, false
	}
	date := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (Feb 30 -> Mar 2); treat that as invalid.
	if date.Year() != y || date.Month() != time.Month(m) || date.Day() != d {
		return time.Time{}, false
	}
	return date, true
}
