package output

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// TableFormat selects how tabular data is written.
type TableFormat string

// Table formats accepted by --format.
const (
	TableText     TableFormat = "table"
	TableMarkdown TableFormat = "md"
	TableCSV      TableFormat = "csv"
	TableJSON     TableFormat = "json"
)

// ParseTableFormat resolves a --format value.
func ParseTableFormat(s string) (TableFormat, error) {
	switch s {
	case "table", "text":
		return TableText, nil
	case "md", "markdown":
		return TableMarkdown, nil
	case "csv":
		return TableCSV, nil
	case "json":
		return TableJSON, nil
	}
	return "", fmt.Errorf("invalid format %q (want table, md, csv or json)", s)
}

// TableFormatFor maps an output mode onto its default table format.
func TableFormatFor(mode Mode) TableFormat {
	switch mode {
	case ModeJSON:
		return TableJSON
	case ModeMarkdown:
		return TableMarkdown
	default:
		return TableText
	}
}

// WriteTable renders rows under header. JSON is not handled here; callers
// encode their own documents.
func WriteTable(w io.Writer, format TableFormat, header []string, rows [][]any) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	head := make(table.Row, len(header))
	for i, h := range header {
		head[i] = h
	}
	t.AppendHeader(head)
	for _, row := range rows {
		out := make(table.Row, len(row))
		for i, v := range row {
			out[i] = FormatValue(v)
		}
		t.AppendRow(out)
	}

	switch format {
	case TableCSV:
		t.RenderCSV()
	case TableMarkdown:
		t.RenderMarkdown()
	default:
		t.Render()
	}
}

// FormatValue renders a cell. NULL stands in for nil.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(time.DateOnly)
		}
		return x.Format(time.RFC3339)
	case float64:
		return fmt.Sprintf("%g", x)
	case []byte:
		return string(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
