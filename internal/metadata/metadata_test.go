package metadata

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestConditionClauseBracketForms(t *testing.T) {
	raw := `[
		{"bracket_left": 2, "field": "a", "operator": "equal", "value": "1"},
		{"connective": "or", "bracket_left": true, "field": "b", "operator": "isnull", "bracket_right": "))"},
		{"connective": "and", "bracket_left": "", "field": "c", "operator": "in", "value": ["x", "y"], "bracket_right": "1"}
	]`
	var clauses []ConditionClause
	if err := json.Unmarshal([]byte(raw), &clauses); err != nil {
		t.Fatalf("parse clauses: %v", err)
	}
	if len(clauses) != 3 {
		t.Fatalf("expected 3 clauses, got %d", len(clauses))
	}
	if clauses[0].BracketLeft != 2 {
		t.Fatalf("expected bracket_left=2, got %d", clauses[0].BracketLeft)
	}
	if clauses[1].BracketLeft != 1 || clauses[1].BracketRight != 2 {
		t.Fatalf("expected 1/2 brackets, got %d/%d", clauses[1].BracketLeft, clauses[1].BracketRight)
	}
	if clauses[2].BracketLeft != 0 || clauses[2].BracketRight != 1 {
		t.Fatalf("expected 0/1 brackets, got %d/%d", clauses[2].BracketLeft, clauses[2].BracketRight)
	}
	if vals, ok := clauses[2].Value.([]any); !ok || len(vals) != 2 {
		t.Fatalf("expected array value, got %#v", clauses[2].Value)
	}
}

func TestConditionClauseRejectsBadBrackets(t *testing.T) {
	var c ConditionClause
	if err := json.Unmarshal([]byte(`{"bracket_left": "(x"}`), &c); err == nil {
		t.Fatal("expected error for invalid bracket marker")
	}
	if err := json.Unmarshal([]byte(`{"bracket_right": -1}`), &c); err == nil {
		t.Fatal("expected error for negative bracket count")
	}
	for _, raw := range []string{`1e9`, `1.5`, `"99"`, `"` + strings.Repeat("(", MaxBrackets+1) + `"`} {
		if err := json.Unmarshal([]byte(`{"bracket_left": `+raw+`}`), &c); err == nil {
			t.Fatalf("expected error for bracket count %s", raw)
		}
	}
}

func TestTranslatedFor(t *testing.T) {
	e := &Entity{
		Table:       "tableA",
		Translation: &Translation{Table: "tableA_translation", ParentField: "pid", LanguageField: "lang", FallbackLanguage: "en"},
	}
	cases := []struct {
		scope string
		lang  string
		want  bool
	}{
		{"*", "pl", true},
		{"*", "en", false},
		{"pl", "pl", true},
		{"pl", "de", false},
		{"de, pl", "pl", true},
		{"", "pl", false},
		{"*", "", false},
	}
	for _, tc := range cases {
		got := e.IsTranslated(Field{Name: "f", TranslatableFor: tc.scope}, tc.lang)
		if got != tc.want {
			t.Errorf("scope=%q lang=%q: expected %v, got %v", tc.scope, tc.lang, tc.want, got)
		}
	}

	e.Translation = nil
	if e.IsTranslated(Field{Name: "f", TranslatableFor: "*"}, "pl") {
		t.Fatal("container without translation table must not translate")
	}
}

func TestReaderConfigDefaults(t *testing.T) {
	rc := &ReaderConfig{}
	if rc.AutoItemParamName() != "auto_item" {
		t.Fatalf("expected auto_item, got %s", rc.AutoItemParamName())
	}
	if rc.PublishedFieldName() != "published" {
		t.Fatalf("expected published, got %s", rc.PublishedFieldName())
	}
	if rc.RedirectEnabled() {
		t.Fatal("redirect must be off without a redirect config")
	}

	rc.Redirect = &RedirectConfig{Enabled: true, JumpTo: 4}
	if rc.RedirectEnabled() {
		t.Fatal("redirect without conditions must be off")
	}
	rc.Redirect.Conditions = []ConditionClause{{Field: "a", Operator: "isnotempty"}}
	if !rc.RedirectEnabled() {
		t.Fatal("expected redirect to be enabled")
	}
}

func TestSortElementsStable(t *testing.T) {
	rc := &ReaderConfig{Elements: []ConfigElement{
		{ID: 1, Position: 20},
		{ID: 2, Position: 10},
		{ID: 3, Position: 20},
	}}
	rc.SortElements()
	got := []int64{rc.Elements[0].ID, rc.Elements[1].ID, rc.Elements[2].ID}
	if got[0] != 2 || got[1] != 1 || got[2] != 3 {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestRegistrySnapshotSwap(t *testing.T) {
	reg := NewRegistry()
	before := reg.Snapshot()
	if before.Entity("members") != nil {
		t.Fatal("empty registry must not know members")
	}

	reg.Load(NewSnapshot(
		[]*Entity{{Name: "members", Table: "tl_member"}},
		[]*ReaderConfig{{ID: 1, Container: "members"}},
		[]*Module{{ID: 5, Type: ModuleTypeReader, ReaderConfig: 1}},
		[]*Filter{{ID: 2, Elements: []FilterElement{{Name: "city", Field: "city"}}}},
		[]*Page{{ID: 9, Alias: "contact"}},
	))

	after := reg.Snapshot()
	if after.Entity("members") == nil || after.ReaderConfig(1) == nil || after.Module(5) == nil {
		t.Fatal("expected definitions in new snapshot")
	}
	if after.Filter(2).GetElement("city") == nil {
		t.Fatal("expected filter element city")
	}
	if after.Page(9).Alias != "contact" {
		t.Fatalf("unexpected page %+v", after.Page(9))
	}
	if before.Entity("members") != nil {
		t.Fatal("old snapshot must stay unchanged")
	}
}

func TestUserContextCanManage(t *testing.T) {
	var nobody *UserContext
	if nobody.CanManage() {
		t.Fatal("missing user must not manage")
	}
	if (&UserContext{ID: "u1", Roles: []string{"editor"}}).CanManage() {
		t.Fatal("editor must not manage")
	}
	if !(&UserContext{ID: "u2", Roles: []string{"editor", RoleAdmin}}).CanManage() {
		t.Fatal("admin must manage")
	}
}
