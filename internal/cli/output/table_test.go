package output

import (
	"bytes"
	"strings"
	"testing"
)

func render(t *testing.T, data any) string {
	t.Helper()
	var buf bytes.Buffer
	if err := (&TableFormatter{}).Format(&buf, data); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	return buf.String()
}

func lines(s string) []string {
	var out []string
	for _, l := range strings.Split(strings.TrimRight(s, "\n"), "\n") {
		out = append(out, strings.TrimRight(l, " "))
	}
	return out
}

func TestTableFormatter_Scalars(t *testing.T) {
	tests := []struct {
		data any
		want string
	}{
		{nil, "(nil)\n"},
		{"hello", "hello\n"},
		{int64(3), "3\n"},
		{2.5, "2.5\n"},
		{true, "true\n"},
	}

	for _, tt := range tests {
		if got := render(t, tt.data); got != tt.want {
			t.Errorf("Format(%#v) = %q, want %q", tt.data, got, tt.want)
		}
	}
}

func TestTableFormatter_Strings(t *testing.T) {
	got := lines(render(t, []string{"core", "greeter"}))
	want := []string{"VALUE", "core", "greeter"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestTableFormatter_Map(t *testing.T) {
	got := lines(render(t, map[string]any{
		"name":  "counter",
		"count": int64(2),
		"tags":  []any{"a", "b"},
		"none":  nil,
	}))
	want := []string{
		"KEY    VALUE",
		"count  2",
		"name   counter",
		"none   -",
		`tags   ["a","b"]`,
	}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestTableFormatter_ListOfObjects(t *testing.T) {
	got := lines(render(t, []any{
		map[string]any{"name": "a", "n": int64(1)},
		map[string]any{"name": "b"},
	}))
	want := []string{
		"N  NAME",
		"1  a",
		"-  b",
	}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestTableFormatter_MixedList(t *testing.T) {
	got := lines(render(t, []any{"x", map[string]any{"k": "v"}, nil}))
	want := []string{"VALUE", "x", `{"k":"v"}`, "-"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestTable_RenderNoHeaders(t *testing.T) {
	table := &Table{Headers: []string{"NAME", "DOC"}}
	table.AddRow("hi", "Say hi.")

	var buf bytes.Buffer
	if err := table.RenderWithOptions(&buf, true); err != nil {
		t.Fatal(err)
	}
	if got := lines(buf.String()); len(got) != 1 || got[0] != "hi  Say hi." {
		t.Errorf("got %q", got)
	}
}

func TestTable_Records(t *testing.T) {
	table := &Table{Headers: []string{"NAME", "DOC"}}
	table.AddRow("hi", "Say hi.")
	table.AddRow("short")

	recs := table.Records()
	if len(recs) != 2 || recs[0]["name"] != "hi" || recs[0]["doc"] != "Say hi." {
		t.Errorf("Records() = %v", recs)
	}
	if _, ok := recs[1]["doc"]; ok {
		t.Errorf("short row should not have a doc field: %v", recs[1])
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "-"},
		{"", `""`},
		{"x", "x"},
		{int64(-4), "-4"},
		{7, "7"},
		{0.1, "0.1"},
		{false, "false"},
		{[]string{"a", "b"}, "a, b"},
		{map[string]any{"a": int64(1)}, `{"a":1}`},
	}

	for _, tt := range tests {
		if got := FormatValue(tt.in); got != tt.want {
			t.Errorf("FormatValue(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
