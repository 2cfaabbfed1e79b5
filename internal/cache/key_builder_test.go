package cache

import (
	"strings"
	"testing"
)

func TestBuildKey(t *testing.T) {
	round := 5
	var noRound *int

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"plain", BuildKey("jolpica", "race_results", 2024, "Monaco"), "jolpica:race_results:2024:monaco"},
		{"normalized", BuildKey(" Jolpica ", "race_results", 2024, "  MONACO "), "jolpica:race_results:2024:monaco"},
		{"round pointer", BuildKey("jolpica", "driver_standings", 2023, &round), "jolpica:driver_standings:2023:5"},
		{"nil round", BuildKey("jolpica", "driver_standings", 2023, noRound), "jolpica:driver_standings:2023:final"},
		{"untyped nil", BuildKey("jolpica", "driver_standings", 2023, nil), "jolpica:driver_standings:2023:final"},
		{"no params", BuildKey("jolpica", "seasons"), "jolpica:seasons"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Fatalf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestFileName(t *testing.T) {
	a := fileName("jolpica:race_results:2024:emilia/romagna")
	if a != fileName("jolpica:race_results:2024:emilia/romagna") {
		t.Fatalf("file name must be deterministic")
	}
	if strings.ContainsAny(a, `/\:`) {
		t.Fatalf("file name is not filesystem safe: %q", a)
	}
	if !strings.HasSuffix(a, entryExt) {
		t.Fatalf("missing extension: %q", a)
	}

	// Both sanitize to the same stem; the hash keeps them apart.
	if fileName("a/b") == fileName("a:b") {
		t.Fatalf("distinct keys must map to distinct files")
	}

	if long := fileName(strings.Repeat("k", 1000)); len(long) > 255 {
		t.Fatalf("file name too long: %d", len(long))
	}
	if strings.HasPrefix(fileName("..hidden"), ".") {
		t.Fatalf("file names must not be hidden or relative")
	}
}
