package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
)

// TableFormatter formats data as an aligned text table.
type TableFormatter struct {
	NoHeaders bool
}

// Format formats data as a table.
// Supports *Table, []string, []any, map[string]any and scalars.
func (f *TableFormatter) Format(w io.Writer, data any) error {
	switch v := data.(type) {
	case nil:
		_, err := fmt.Fprintln(w, "(nil)")
		return err
	case *Table:
		return v.RenderWithOptions(w, f.NoHeaders)
	case []string:
		t := &Table{Headers: []string{"VALUE"}}
		for _, s := range v {
			t.AddRow(s)
		}
		return t.RenderWithOptions(w, f.NoHeaders)
	case map[string]any:
		return mapToTable(v).RenderWithOptions(w, f.NoHeaders)
	case []any:
		return listToTable(v).RenderWithOptions(w, f.NoHeaders)
	default:
		_, err := fmt.Fprintln(w, FormatValue(v))
		return err
	}
}

// mapToTable converts a map to a key-value table with sorted keys.
func mapToTable(m map[string]any) *Table {
	t := &Table{Headers: []string{"KEY", "VALUE"}}
	for _, k := range sortedKeys(m) {
		t.AddRow(k, FormatValue(m[k]))
	}
	return t
}

// listToTable renders a list of objects with one column per key, any other
// list as a single column.
func listToTable(list []any) *Table {
	var columns []string
	seen := make(map[string]bool)
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			columns = nil
			break
		}
		for k := range m {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}

	if len(columns) == 0 {
		t := &Table{Headers: []string{"VALUE"}}
		for _, item := range list {
			t.AddRow(FormatValue(item))
		}
		return t
	}

	sort.Strings(columns)
	t := &Table{}
	for _, c := range columns {
		t.Headers = append(t.Headers, strings.ToUpper(c))
	}
	for _, item := range list {
		m := item.(map[string]any)
		row := make([]string, len(columns))
		for i, c := range columns {
			row[i] = FormatValue(m[c])
		}
		t.AddRow(row...)
	}
	return t
}

// FormatValue formats one decoded value for a table cell.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case string:
		if x == "" {
			return `""`
		}
		return x
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case []string:
		return strings.Join(x, ", ")
	case []any, map[string]any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprintf("%v", x)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", x)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Table represents tabular data.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Render renders the table to the writer.
func (t *Table) Render(w io.Writer) error {
	return t.RenderWithOptions(w, false)
}

// RenderWithOptions renders the table with options.
func (t *Table) RenderWithOptions(w io.Writer, noHeaders bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if !noHeaders && len(t.Headers) > 0 {
		if _, err := fmt.Fprintln(tw, strings.Join(t.Headers, "\t")); err != nil {
			return err
		}
	}
	for _, row := range t.Rows {
		if _, err := fmt.Fprintln(tw, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// Records returns the rows as objects keyed by lower-case header.
func (t *Table) Records() []map[string]string {
	records := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]string, len(t.Headers))
		for i, h := range t.Headers {
			if i < len(row) {
				rec[strings.ToLower(h)] = row[i]
			}
		}
		records = append(records, rec)
	}
	return records
}
