package repair

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/JonMunkholm/repairdesk/internal/dataset"
)

func cityRows(values ...dataset.Value) []dataset.Row {
	rows := make([]dataset.Row, len(values))
	for i, v := range values {
		rows[i] = dataset.Row{"id": dataset.Num(float64(i)), "city": v}
	}
	return rows
}

func TestFilterRows(t *testing.T) {
	rows := cityRows(
		dataset.Str("Boston"),
		dataset.Str("boston"),
		dataset.Null(),
		dataset.Str("NULL"),
		dataset.Str("Bostonia"),
		dataset.Num(42),
	)

	tests := []struct {
		name    string
		pattern string
		want    []int
	}{
		{"empty pattern selects nothing", "", []int{}},
		{"star selects everything", "*", []int{0, 1, 2, 3, 4, 5}},
		{"unanchored match", "Bost", []int{0, 4}},
		{"anchored match", "^Boston$", []int{0}},
		{"case-insensitive flag", "(?i)^boston$", []int{0, 1}},
		{"null preset", nullPattern, []int{2, 3}},
		{"numbers match their text", "^42$", []int{5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FilterRows(rows, "city", tt.pattern)
			if err != nil {
				t.Fatalf("FilterRows(%q) error: %v", tt.pattern, err)
			}
			if diff := cmp.Diff(tt.want, got.Sorted()); diff != "" {
				t.Errorf("FilterRows(%q) mismatch (-want +got):\n%s", tt.pattern, diff)
			}
		})
	}
}

func TestFilterRows_InvalidPattern(t *testing.T) {
	_, err := FilterRows(cityRows(dataset.Str("a")), "city", "(")

	var fe *FilterError
	if !errors.As(err, &fe) {
		t.Fatalf("FilterRows error = %v, want *FilterError", err)
	}
	if fe.Pattern != "(" {
		t.Errorf("FilterError.Pattern = %q, want %q", fe.Pattern, "(")
	}
}

func TestFilterPreset_Pattern(t *testing.T) {
	tests := []struct {
		preset FilterPreset
		want   string
		ok     bool
	}{
		{PresetAny, "*", true},
		{PresetNull, nullPattern, true},
		{PresetCustom, "", true},
		{FilterPreset("bogus"), "", false},
	}
	for _, tt := range tests {
		got, ok := tt.preset.Pattern()
		if got != tt.want || ok != tt.ok {
			t.Errorf("%q.Pattern() = (%q, %v), want (%q, %v)", tt.preset, got, ok, tt.want, tt.ok)
		}
	}
}
