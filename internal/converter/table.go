package converter

import (
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
)

// RenderTable lays records out as a text table. Columns are the union of
// keys in first-seen order.
func RenderTable(records []json.RawMessage) (string, error) {
	var columns []string
	seen := map[string]bool{}
	decoded := make([]orderedRecord, 0, len(records))

	for i, raw := range records {
		rec, err := decodeOrdered(raw)
		if err != nil {
			return "", fmt.Errorf("record %d: %w", i, err)
		}
		for _, k := range rec.keys {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
		decoded = append(decoded, rec)
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)

	header := make(table.Row, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	tw.AppendHeader(header)

	for _, rec := range decoded {
		row := make(table.Row, len(columns))
		for i, c := range columns {
			row[i] = cellText(rec.values[c])
		}
		tw.AppendRow(row)
	}

	return tw.Render(), nil
}

func cellText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}
