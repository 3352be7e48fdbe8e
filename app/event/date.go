package event

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var (
	isoDatePattern = regexp.MustCompile(`(?:^|\D)(\d{4})-(\d{2})-(\d{2})(?:\D|$)`)

	dayMonthYearPattern = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+([a-z]{3,9})\.?,?\s+(\d{4})\b`)
	monthDayYearPattern = regexp.MustCompile(`(?i)\b([a-z]{3,9})\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:\s*[-–]\s*\d{1,2})?,?\s+(\d{4})\b`)
	numericDatePattern  = regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})[/-](\d{4})\b`)
)

// isoDateTimeLayouts are tried in order; RFC3339 accepts a trailing Z.
var isoDateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

var months = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

// NormalizeDate reduces a free-form date string to YYYY-MM-DD. It returns ""
// when nothing recognizable is found.
func NormalizeDate(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}

	for _, m := range isoDatePattern.FindAllStringSubmatch(value, -1) {
		if d, ok := buildDate(m[1], m[2], m[3]); ok {
			return d
		}
	}

	for _, layout := range isoDateTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format(dateLayout)
		}
	}

	for _, m := range dayMonthYearPattern.FindAllStringSubmatch(value, -1) {
		if month, ok := lookupMonth(m[2]); ok {
			if d, ok := buildDate(m[3], strconv.Itoa(int(month)), m[1]); ok {
				return d
			}
		}
	}

	for _, m := range monthDayYearPattern.FindAllStringSubmatch(value, -1) {
		if month, ok := lookupMonth(m[1]); ok {
			if d, ok := buildDate(m[3], strconv.Itoa(int(month)), m[2]); ok {
				return d
			}
		}
	}

	for _, m := range numericDatePattern.FindAllStringSubmatch(value, -1) {
		if d, ok := buildDate(m[3], m[2], m[1]); ok {
			return d
		}
	}

	return ""
}

// ParseDate parses a stored event date. Formats are tried in a fixed order.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	if t, err := time.Parse(dateLayout, value); err == nil {
		return t, true
	}
	for _, layout := range isoDateTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func lookupMonth(name string) (time.Month, bool) {
	month, ok := months[strings.ToLower(name)]
	return month, ok
}

func buildDate(year, month, day string) (string, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return "", false
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return "", false
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 {
		return "", false
	}

	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d || int(t.Month()) != m {
		return "", false
	}
	return t.Format(dateLayout), true
}
