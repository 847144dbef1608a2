package report

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/ordmap/internal/workload"
)

const (
	chartWidth    = "100%"
	chartHeight   = "500px"
	lineWidth     = 2
	lineWidthThin = 1

	colorHeight = "#5470c6"
	colorBound  = "#ee6666"
	colorSize   = "#91cc75"
)

// HeightChart plots sampled tree height against the red-black bound.
func HeightChart(title string, samples []workload.Sample) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: "height vs 2·log2(n+1)"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Operations"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Levels"}),
	)

	labels := make([]string, len(samples))
	heights := make([]opts.LineData, len(samples))
	bounds := make([]opts.LineData, len(samples))

	for idx, sample := range samples {
		labels[idx] = strconv.Itoa(sample.Seq)
		heights[idx] = opts.LineData{Value: sample.Height}
		bounds[idx] = opts.LineData{Value: math.Round(sample.Bound*100) / 100}
	}

	line.SetXAxis(labels)
	line.AddSeries("Height", heights,
		charts.WithLineChartOpts(opts.LineChart{Step: "end"}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: colorHeight}),
		charts.WithLineStyleOpts(opts.LineStyle{Width: lineWidth}),
	)
	line.AddSeries("Bound", bounds,
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: colorBound}),
		charts.WithLineStyleOpts(opts.LineStyle{Width: lineWidthThin, Type: "dashed"}),
	)

	return line
}

// SizeChart plots the number of keys over the run.
func SizeChart(title string, samples []workload.Sample) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Operations"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Keys"}),
	)

	labels := make([]string, len(samples))
	sizes := make([]opts.LineData, len(samples))

	for idx, sample := range samples {
		labels[idx] = strconv.Itoa(sample.Seq)
		sizes[idx] = opts.LineData{Value: sample.Size}
	}

	line.SetXAxis(labels)
	line.AddSeries("Size", sizes,
		charts.WithItemStyleOpts(opts.ItemStyle{Color: colorSize}),
		charts.WithLineStyleOpts(opts.LineStyle{Width: lineWidth}),
		charts.WithAreaStyleOpts(opts.AreaStyle{Opacity: opts.Float(0.2)}),
	)

	return line
}

// WriteCharts renders the height and size charts of a run as one HTML page.
func WriteCharts(w io.Writer, title string, result *workload.Result) error {
	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(
		HeightChart("Tree height", result.Samples),
		SizeChart("Tree size", result.Samples),
	)

	err := page.Render(w)
	if err != nil {
		return fmt.Errorf("render charts: %w", err)
	}

	return nil
}
