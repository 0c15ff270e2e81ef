package models

import (
	"fmt"
	"strings"
)

// Granularity is the zoom level of a chart. It selects both the window of
// history that is queried and the bucket width of each metric.
type Granularity int

const (
	GranularityHour Granularity = iota
	GranularityDay
	GranularityWeek
	GranularityMonth
)

// DefaultGranularity is the "daily bars over a week" view every screen starts on.
const DefaultGranularity = GranularityDay

// Granularities lists every supported value in picker order.
var Granularities = []Granularity{GranularityHour, GranularityDay, GranularityWeek, GranularityMonth}

func (g Granularity) String() string {
	switch g {
	case GranularityHour:
		return "hour"
	case GranularityDay:
		return "day"
	case GranularityWeek:
		return "week"
	case GranularityMonth:
		return "month"
	default:
		return fmt.Sprintf("granularity(%d)", int(g))
	}
}

// IsValid checks if the granularity is one of the supported values.
func (g Granularity) IsValid() bool {
	switch g {
	case GranularityHour, GranularityDay, GranularityWeek, GranularityMonth:
		return true
	default:
		return false
	}
}

// Label is the picker caption: the length of the window a granularity shows.
func (g Granularity) Label() string {
	switch g {
	case GranularityHour:
		return "Day"
	case GranularityDay:
		return "Week"
	case GranularityWeek:
		return "Month"
	case GranularityMonth:
		return "Year"
	default:
		return g.String()
	}
}

// ParseGranularity parses the String form, ignoring case and surrounding space.
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hour":
		return GranularityHour, nil
	case "day":
		return GranularityDay, nil
	case "week":
		return GranularityWeek, nil
	case "month":
		return GranularityMonth, nil
	default:
		return 0, fmt.Errorf("unknown granularity %q", s)
	}
}
