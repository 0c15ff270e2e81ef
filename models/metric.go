package models

import (
	"fmt"
	"strings"
)

// Metric is a kind of health sample the dashboard charts.
type Metric int

const (
	MetricSteps Metric = iota
	MetricHeartRate
)

// Metrics lists the metrics refreshed together by the view-model.
var Metrics = []Metric{MetricSteps, MetricHeartRate}

// Aggregation is the operator that folds the samples of one bucket.
type Aggregation int

const (
	// AggregationSum is a cumulative sum per bucket.
	AggregationSum Aggregation = iota
	// AggregationAverage is the arithmetic mean of the discrete samples in a bucket.
	AggregationAverage
)

func (a Aggregation) String() string {
	switch a {
	case AggregationSum:
		return "sum"
	case AggregationAverage:
		return "average"
	default:
		return fmt.Sprintf("aggregation(%d)", int(a))
	}
}

func (m Metric) String() string {
	switch m {
	case MetricSteps:
		return "steps"
	case MetricHeartRate:
		return "heart_rate"
	default:
		return fmt.Sprintf("metric(%d)", int(m))
	}
}

// IsValid checks if the metric is one of the supported values.
func (m Metric) IsValid() bool {
	return m == MetricSteps || m == MetricHeartRate
}

// Title is the human readable, lower case name of the metric.
func (m Metric) Title() string {
	switch m {
	case MetricSteps:
		return "steps"
	case MetricHeartRate:
		return "heart rate"
	default:
		return m.String()
	}
}

// Unit is the display unit of the metric's values.
func (m Metric) Unit() string {
	switch m {
	case MetricSteps:
		return "steps"
	case MetricHeartRate:
		return "bpm"
	default:
		return ""
	}
}

// Aggregation returns how samples of the metric are folded into a bucket.
func (m Metric) Aggregation() Aggregation {
	if m == MetricHeartRate {
		return AggregationAverage
	}
	return AggregationSum
}

// BucketWidth maps a granularity to the metric's bucket width. Steps and
// heart rate differ because their native sample resolutions differ.
func (m Metric) BucketWidth(g Granularity) BucketWidth {
	switch m {
	case MetricHeartRate:
		switch g {
		case GranularityHour:
			return Minutes(10)
		case GranularityDay:
			return Hours(1)
		case GranularityWeek:
			return Days(1)
		default:
			return Days(7)
		}
	default:
		switch g {
		case GranularityHour:
			return Hours(1)
		case GranularityDay:
			return Days(1)
		case GranularityWeek:
			return Weeks(1)
		default:
			return Months(1)
		}
	}
}

// ParseMetric parses the String form of a metric.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "steps":
		return MetricSteps, nil
	case "heart_rate", "heartrate", "heart":
		return MetricHeartRate, nil
	default:
		return 0, fmt.Errorf("unknown metric %q", s)
	}
}
