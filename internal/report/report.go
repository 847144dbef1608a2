// Package report renders workout and replay results as terminal tables,
// YAML documents and HTML charts.
package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/ordmap/internal/workload"
)

// Document is the YAML form of a run.
type Document struct {
	Title     string           `yaml:"title"`
	Generated time.Time        `yaml:"generated"`
	Result    *workload.Result `yaml:"result"`
}

// WriteTable renders the summary of result as a table.
func WriteTable(w io.Writer, title string, result *workload.Result) error {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.SetTitle(title)
	tw.Style().Title.Align = text.AlignCenter
	tw.AppendHeader(table.Row{"Metric", "Value"})
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})

	tw.AppendRows([]table.Row{
		{"Operations", count(result.Ops)},
		{"Inserts", count(result.Inserts)},
		{"Overwrites", count(result.Overwrites)},
		{"Deletes", count(result.Deletes)},
		{"Delete misses", count(result.DeleteMisses)},
		{"Finds", count(result.Finds)},
		{"Find misses", count(result.FindMisses)},
		{"Allocation failures", count(result.AllocFailures)},
		{"Verifications", count(result.Verifications)},
	})
	tw.AppendSeparator()
	tw.AppendRows([]table.Row{
		{"Final size", count(result.FinalSize)},
		{"Final height", fmt.Sprintf("%d (bound %.1f)", result.FinalHeight, workload.HeightBound(result.FinalSize))},
		{"Black height", strconv.Itoa(result.BlackHeight)},
		{"Arena slots", count(result.ArenaSlots)},
		{"Arena memory", humanize.IBytes(result.ArenaBytes)},
	})
	tw.AppendSeparator()
	tw.AppendRow(table.Row{"Rotations", humanize.Comma(int64(result.Stats.Rotations))}) //nolint:gosec // counters stay far below MaxInt64

	for idx, hits := range result.Stats.InsertCases {
		tw.AppendRow(table.Row{fmt.Sprintf("Insert fixup case %d", idx+1), humanize.Comma(int64(hits))}) //nolint:gosec // see above
	}

	for idx, hits := range result.Stats.DeleteCases {
		tw.AppendRow(table.Row{fmt.Sprintf("Delete fixup case %d", idx+1), humanize.Comma(int64(hits))}) //nolint:gosec // see above
	}

	tw.AppendSeparator()
	tw.AppendRow(table.Row{"Elapsed", result.Elapsed.Round(time.Microsecond).String()})
	tw.AppendRow(table.Row{"Throughput", throughput(result) + " ops/s"})

	_, err := fmt.Fprintln(w, tw.Render())
	if err != nil {
		return fmt.Errorf("write table: %w", err)
	}

	return nil
}

// WriteYAML writes result as a YAML Document.
func WriteYAML(w io.Writer, title string, result *workload.Result, generated time.Time) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	err := enc.Encode(Document{Title: title, Generated: generated.UTC(), Result: result})
	if err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}

	return enc.Close()
}

func count(n int) string {
	return humanize.Comma(int64(n))
}

func throughput(result *workload.Result) string {
	if result.Elapsed <= 0 {
		return "n/a"
	}

	return humanize.CommafWithDigits(float64(result.Ops)/result.Elapsed.Seconds(), 0)
}
