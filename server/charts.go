package server

import (
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/render"
	"github.com/gohealthy/models"
)

const (
	chartTheme  = "macarons"
	chartWidth  = "100%"
	chartHeight = "360px"

	stepsColor = "#5b8ff9"
	heartColor = "#e8684a"
)

// chartSnippets renders the two charts of a detail screen: a smoothed area
// line and, below it, bars for steps or dots for heart rate.
func chartSnippets(data models.ChartData, m models.Metric) []render.ChartSnippet {
	color := stepsColor
	if m == models.MetricHeartRate {
		color = heartColor
	}

	line := generateLineChart(data, m.String()+"-line", color)
	if m == models.MetricHeartRate {
		scatter := generateScatterChart(data, m.String()+"-scatter", color)
		return []render.ChartSnippet{line.RenderSnippet(), scatter.RenderSnippet()}
	}
	bar := generateBarChart(data, m.String()+"-bar", color)
	return []render.ChartSnippet{line.RenderSnippet(), bar.RenderSnippet()}
}

func globalOptions(data models.ChartData, chartID string) []charts.GlobalOpts {
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{
			Theme:   chartTheme,
			ChartID: chartID,
			Width:   chartWidth,
			Height:  chartHeight,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    data.Title,
			Subtitle: data.Subtitle,
		}),
		charts.WithXAxisOpts(opts.XAxis{
			AxisLabel: &opts.AxisLabel{
				Rotate: 45,
			},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name:  data.Unit,
			Scale: opts.Bool(data.Type == models.MetricHeartRate.String()),
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:            opts.Bool(true),
			Trigger:         "axis",
			BackgroundColor: "#f5f5f5",
			BorderColor:     "#ccc",
			AxisPointer: &opts.AxisPointer{
				Type: "cross",
			}}),
	}
}

func generateLineChart(data models.ChartData, chartID, color string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(globalOptions(data, chartID)...)
	line.SetXAxis(data.XAxis)

	for name, values := range data.Series {
		line.AddSeries(name, generateLineItems(values))
	}

	line.SetSeriesOptions(
		charts.WithLineChartOpts(opts.LineChart{
			Smooth:     opts.Bool(true),
			ShowSymbol: opts.Bool(true),
		}),
		charts.WithAreaStyleOpts(opts.AreaStyle{
			Color:   color,
			Opacity: opts.Float(0.25),
		}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: color}),
	)
	return line
}

func generateBarChart(data models.ChartData, chartID, color string) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(globalOptions(data, chartID)...)
	bar.SetXAxis(data.XAxis)

	for name, values := range data.Series {
		items := make([]opts.BarData, 0, len(values))
		for _, v := range values {
			items = append(items, opts.BarData{Value: v})
		}
		bar.AddSeries(name, items)
	}

	bar.SetSeriesOptions(
		charts.WithBarChartOpts(opts.BarChart{BarWidth: data.BarWidth}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: color}),
	)
	return bar
}

func generateScatterChart(data models.ChartData, chartID, color string) *charts.Scatter {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(globalOptions(data, chartID)...)
	scatter.SetXAxis(data.XAxis)

	for name, values := range data.Series {
		items := make([]opts.ScatterData, 0, len(values))
		for _, v := range values {
			items = append(items, opts.ScatterData{Value: v, SymbolSize: 8})
		}
		scatter.AddSeries(name, items)
	}

	scatter.SetSeriesOptions(charts.WithItemStyleOpts(opts.ItemStyle{Color: color}))
	return scatter
}

// generateLineItems converts a value slice to LineData
func generateLineItems(data []float64) []opts.LineData {
	items := make([]opts.LineData, 0, len(data))
	for _, v := range data {
		items = append(items, opts.LineData{Value: v})
	}
	return items
}
