package output

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"", FormatTable, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestNewFormatter(t *testing.T) {
	if _, ok := NewFormatter(FormatTable).(*TableFormatter); !ok {
		t.Error("expected TableFormatter")
	}
	if _, ok := NewFormatter("unknown").(*TableFormatter); !ok {
		t.Error("expected TableFormatter by default")
	}
	if _, ok := NewFormatter(FormatJSON).(FormatterFunc); !ok {
		t.Error("expected a JSON FormatterFunc")
	}
}

func TestFormat_JSON(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(FormatJSON)

	if err := f.Format(&buf, map[string]any{"name": "greeter", "calls": int64(3)}); err != nil {
		t.Fatal(err)
	}
	want := "{\n  \"calls\": 3,\n  \"name\": \"greeter\"\n}\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}

	buf.Reset()
	table := &Table{Headers: []string{"NAME", "ARGS"}}
	table.AddRow("add2", "a, b")
	if err := f.Format(&buf, table); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"args": "a, b"`) {
		t.Errorf("table as JSON = %s", buf.String())
	}
}

func TestFormat_YAML(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(FormatYAML)

	data := map[string]any{
		"name":  "greeter",
		"items": []any{"a", int64(1)},
	}
	if err := f.Format(&buf, data); err != nil {
		t.Fatal(err)
	}
	want := "items:\n  - a\n  - 1\nname: greeter\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}

	buf.Reset()
	table := &Table{Headers: []string{"NAME", "PATH"}}
	table.AddRow("greeter", "/srv/actors/greeter.lua")
	if err := f.Format(&buf, table); err != nil {
		t.Fatal(err)
	}
	if want := "- name: greeter\n  path: /srv/actors/greeter.lua\n"; buf.String() != want {
		t.Errorf("table as YAML = %q, want %q", buf.String(), want)
	}
}
