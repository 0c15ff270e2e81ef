package models

import (
	"fmt"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ChartData is a series laid out for a category-axis chart.
type ChartData struct {
	Type     string
	Title    string
	Subtitle string
	Unit     string
	XAxis    []string
	Series   map[string][]float64
	BarWidth string
}

// AxisLayout is the time layout of x-axis labels for a granularity.
func AxisLayout(g Granularity) string {
	switch g {
	case GranularityHour:
		return "15:04"
	case GranularityDay:
		return "Mon 02"
	case GranularityWeek:
		return "Jan 02"
	default:
		return "Jan"
	}
}

// BarWidth is the bar width used for a granularity; hourly bars are thinner
// because a day holds many more of them.
func BarWidth(g Granularity) string {
	if g == GranularityHour {
		return "8px"
	}
	return "20px"
}

// WindowCaption describes a window for a chart subtitle.
func WindowCaption(g Granularity, w Window) string {
	last := w.End.Add(-time.Nanosecond)
	switch g {
	case GranularityHour:
		return w.Start.Format("Mon, Jan 2 2006")
	case GranularityMonth:
		return w.Start.Format("2006")
	case GranularityWeek:
		return w.Start.Format("January 2006")
	default:
		return fmt.Sprintf("%s - %s", w.Start.Format("Jan 2"), last.Format("Jan 2 2006"))
	}
}

// BuildChartData converts a metric's series into chart input, labelling every
// present bucket in ascending order.
func BuildChartData(m Metric, g Granularity, w Window, s Series, tag language.Tag) ChartData {
	loc := w.Start.Location()
	title := cases.Title(tag).String(m.Title())
	points := s.Points(loc)

	chart := ChartData{
		Type:     m.String(),
		Title:    fmt.Sprintf("%s Over Time", title),
		Subtitle: WindowCaption(g, w),
		Unit:     m.Unit(),
		XAxis:    make([]string, len(points)),
		Series:   map[string][]float64{title: make([]float64, len(points))},
		BarWidth: BarWidth(g),
	}

	layout := AxisLayout(g)
	for i, p := range points {
		chart.XAxis[i] = p.Start.Format(layout)
		chart.Series[title][i] = p.Value
	}
	return chart
}
