package parser

import (
	"regexp"
	"strings"
	"time"
)

var dateFormats = []string{
	"2/1/2006 15:04",
	"2/1/2006",
	"2-1-2006 15:04",
	"2-1-2006",
	"Jan 2, 2006, 15:04",
	"Jan 2, 2006 15:04",
	"Jan 2, 2006",
}

var (
	numericDatePattern = regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{4}(?:,?\s+\d{1,2}:\d{2})?`)
	namedDatePattern   = regexp.MustCompile(`(?i)\b\p{L}{3,4}\.?\s+\d{1,2},\s*\d{4}(?:,?\s+\d{1,2}:\d{2})?`)
	spanishMonths      = regexp.MustCompile(`(?i)\b(ene|abr|ago|sept|set|dic)\b`)
)

var spanishToEnglish = map[string]string{
	"ene":  "Jan",
	"abr":  "Apr",
	"ago":  "Aug",
	"sept": "Sep",
	"set":  "Sep",
	"dic":  "Dec",
}

// parseDate reads value in one of the alert date formats, interpreting it in loc.
func parseDate(value string, loc *time.Location) (time.Time, bool) {
	cleaned := strings.Join(strings.Fields(value), " ")
	cleaned = strings.ReplaceAll(cleaned, ".", "")
	cleaned = spanishMonths.ReplaceAllStringFunc(cleaned, func(m string) string {
		return spanishToEnglish[strings.ToLower(m)]
	})

	for _, layout := range dateFormats {
		if t, err := time.ParseInLocation(layout, cleaned, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// findDate returns the first parseable date in text.
func findDate(text string, loc *time.Location) (time.Time, bool) {
	for _, pattern := range []*regexp.Regexp{numericDatePattern, namedDatePattern} {
		for _, m := range pattern.FindAllString(text, -1) {
			if t, ok := parseDate(m, loc); ok {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
