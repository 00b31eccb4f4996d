package engine

import (
	"testing"

	"reader-backend/internal/config"
	"reader-backend/internal/metadata"
)

func TestFormatter(t *testing.T) {
	f := NewFormatter(config.FormatsConfig{}, nil)
	gender := &metadata.Field{Name: "gender", Format: "options", Options: map[string]string{"m": "Male", "f": "Female"}}

	tests := []struct {
		name  string
		field *metadata.Field
		value any
		want  any
	}{
		{"unix date", &metadata.Field{Format: "date"}, int64(1520004293), "02.03.2018"},
		{"float date", &metadata.Field{Format: "date"}, float64(1520004293), "02.03.2018"},
		{"string date", &metadata.Field{Format: "date"}, "1520004293", "02.03.2018"},
		{"iso date", &metadata.Field{Type: "date"}, "2018-03-02", "02.03.2018"},
		{"zero date", &metadata.Field{Format: "date"}, int64(0), ""},
		{"datetime", &metadata.Field{Format: "datetime"}, int64(1520004293), "02.03.2018 15:24"},
		{"time", &metadata.Field{Format: "time"}, int64(1520004293), "15:24"},
		{"boolean true", &metadata.Field{Type: "boolean"}, true, "yes"},
		{"boolean int", &metadata.Field{Type: "boolean"}, int64(0), "no"},
		{"boolean nil", &metadata.Field{Type: "boolean"}, nil, ""},
		{"option label", gender, "f", "Female"},
		{"unknown option", gender, "<x>", "&lt;x&gt;"},
		{"html", &metadata.Field{Format: "html"}, "<b>bold</b>", "<b>bold</b>"},
		{"json", &metadata.Field{Type: "json"}, map[string]any{"a": "b&c"}, `{&#34;a&#34;:&#34;b\u0026c&#34;}`},
		{"escaped", &metadata.Field{Type: "string"}, `<a href="x">`, "&lt;a href=&#34;x&#34;&gt;"},
		{"number", &metadata.Field{Type: "int"}, int64(42), "42"},
		{"undescribed", nil, "a&b", "a&amp;b"},
		{"callbacks", &metadata.Field{LoadCallbacks: []string{"trim", "upper"}}, "  doe ", "DOE"},
		{"strip tags", &metadata.Field{LoadCallbacks: []string{"strip_tags"}, Format: "html"}, "<p>hi</p>", "hi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Format(tt.field, tt.value); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFormatterLabels(t *testing.T) {
	f := NewFormatter(config.FormatsConfig{Yes: "ja", No: "nein", Date: "2006-01-02"}, nil)
	if got := f.Format(&metadata.Field{Type: "boolean"}, "1"); got != "ja" {
		t.Fatalf("expected ja, got %v", got)
	}
	if got := f.Format(&metadata.Field{Format: "date"}, int64(1520004293)); got != "2018-03-02" {
		t.Fatalf("expected configured layout, got %v", got)
	}
}

func TestAssemblerKeys(t *testing.T) {
	a := NewAssembler(NewFormatter(config.FormatsConfig{}, nil))
	e := membersEntity()
	item := a.Build(map[string]any{"id": 1, "firstname": "<J>", "extra": "x"}, e)

	if len(item.Raw) != len(item.Formatted) {
		t.Fatalf("raw and formatted differ: %v / %v", item.Raw, item.Formatted)
	}
	for k := range item.Raw {
		if _, ok := item.Formatted[k]; !ok {
			t.Fatalf("formatted is missing %s", k)
		}
	}
	if item.Formatted["firstname"] != "&lt;J&gt;" || item.Raw["firstname"] != "<J>" {
		t.Fatalf("unexpected values %v / %v", item.Raw["firstname"], item.Formatted["firstname"])
	}

	item.MergeFormatted("images", "a", 1)
	item.MergeFormatted("images", "b", 2)
	if g := item.Formatted["images"].(map[string]any); len(g) != 2 {
		t.Fatalf("merge must keep earlier entries, got %v", g)
	}
	item.MergeFormatted("firstname", "x", 1)
	if item.Formatted["firstname"] != "&lt;J&gt;" {
		t.Fatal("merge must not replace a plain value")
	}
}
