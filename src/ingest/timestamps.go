package ingest

import (
	"regexp"
	"strings"
	"time"
)

// timestampFormat pairs a prefix pattern with the layouts tried on its match.
type timestampFormat struct {
	prefix  *regexp.Regexp
	layouts []string
}

// timestampFormats are tried in order; the first successful parse wins.
var timestampFormats = []timestampFormat{
	{
		prefix: regexp.MustCompile(`^\s*\[?(\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:[.,]\d{1,9})?(?:Z|[+-]\d{2}:?\d{2})?)\]?`),
		layouts: []string{
			time.RFC3339Nano,
			"2006-01-02T15:04:05Z0700",
			"2006-01-02 15:04:05Z07:00",
			"2006-01-02 15:04:05Z0700",
			"2006-01-02T15:04:05",
			"2006-01-02 15:04:05",
		},
	},
	{
		prefix: regexp.MustCompile(`^\s*\[?(\d{1,2}/\d{1,2}/\d{4}\s+\d{1,2}:\d{2}:\d{2}(?:[.,]\d{1,9})?(?:\s?[AaPp][Mm])?)\]?`),
		layouts: []string{
			"1/2/2006 3:04:05 PM",
			"1/2/2006 3:04:05PM",
			"1/2/2006 15:04:05",
		},
	},
	{
		prefix:  regexp.MustCompile(`^\s*\[?(\d{2}\.\d{2}\.\d{4}\s+\d{2}:\d{2}:\d{2}(?:[.,]\d{1,9})?)\]?`),
		layouts: []string{"02.01.2006 15:04:05"},
	},
	{
		prefix:  regexp.MustCompile(`^\s*([A-Z][a-z]{2}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2})`),
		layouts: []string{time.Stamp, "Jan 2 15:04:05"},
	},
	{
		prefix:  regexp.MustCompile(`^\s*\[?(\d{2}:\d{2}:\d{2}(?:[.,]\d{1,9})?)\]?`),
		layouts: []string{"15:04:05"},
	},
}

// ParseTimestamp reads a timestamp at the start of s. Zone-less values are
// taken as UTC. It returns nil when no format parses, leaving the record
// without a timestamp.
func ParseTimestamp(s string) *time.Time {
	for _, f := range timestampFormats {
		m := f.prefix.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		value := normalizeTimestamp(m[1])
		for _, layout := range f.layouts {
			if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
				return &t
			}
		}
	}
	return nil
}

func normalizeTimestamp(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.Replace(s, ",", ".", 1)
	if n := len(s); n >= 2 {
		suffix := strings.ToUpper(s[n-2:])
		if suffix == "AM" || suffix == "PM" {
			s = s[:n-2] + suffix
		}
	}
	return s
}
