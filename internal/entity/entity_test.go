package entity

import (
	"strings"
	"testing"
	"time"
)

func TestExcerpt(t *testing.T) {
	tests := []struct {
		name  string
		input string
		limit int
		want  string
	}{
		{"short string untouched", "hello", 10, "hello"},
		{"exact length untouched", "hello", 5, "hello"},
		{"long string truncated", "hello world", 5, "hello…"},
		{"empty string", "", 5, ""},
		{"multibyte runes", "héllo wörld", 5, "héllo…"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Excerpt(tt.input, tt.limit); got != tt.want {
				t.Errorf("Excerpt(%q, %d) = %q, want %q", tt.input, tt.limit, got, tt.want)
			}
		})
	}
}

func TestEntity_Export(t *testing.T) {
	e := &Entity{
		GUID:        "e-1",
		Type:        "user",
		Subtype:     "merchant",
		Name:        "Acme",
		Description: strings.Repeat("a", 2000),
		TimeCreated: time.Unix(1234, 0),
	}
	e.SetMeta("tier", "gold")
	e.SetMeta("name", "shadowed") // must not clobber the entity field

	export := e.Export()

	if export[ExportIDKey] != "e-1" {
		t.Errorf("export %s = %v", ExportIDKey, export[ExportIDKey])
	}
	if export["name"] != "Acme" {
		t.Errorf("metadata shadowed a reserved export field: %v", export["name"])
	}
	if export["tier"] != "gold" {
		t.Errorf("export tier = %v", export["tier"])
	}
	desc, _ := export["description"].(string)
	if len([]rune(desc)) > 1001 {
		t.Errorf("description not excerpted: %d runes", len([]rune(desc)))
	}
	if export["time_created"] != int64(1234) {
		t.Errorf("export time_created = %v", export["time_created"])
	}
}

func TestEntity_Meta(t *testing.T) {
	var e Entity
	if got := e.Meta("missing"); got != "" {
		t.Errorf("Meta on empty bag = %q", got)
	}
	e.SetMeta("k", "v")
	if got := e.Meta("k"); got != "v" {
		t.Errorf("Meta(k) = %q", got)
	}
}
