package repair

import (
	"regexp"

	"github.com/JonMunkholm/repairdesk/internal/dataset"
)

// MatchAll is the pattern that selects every row.
const MatchAll = "*"

// FilterPreset is a named starting point for the filter pattern.
type FilterPreset string

const (
	PresetAny    FilterPreset = "any"
	PresetNull   FilterPreset = "null"
	PresetCustom FilterPreset = "custom"
)

// nullPattern matches empty cells and literal null markers.
const nullPattern = `^(?i:null)?$`

// Pattern returns the preset's pattern. Custom starts empty, which selects
// nothing until the operator types a pattern.
func (p FilterPreset) Pattern() (string, bool) {
	switch p {
	case PresetAny:
		return MatchAll, true
	case PresetNull:
		return nullPattern, true
	case PresetCustom:
		return "", true
	}
	return "", false
}

// rowMatcher tests a stringified cell.
type rowMatcher func(string) bool

// compilePattern applies the filter policy: "" matches nothing, "*" matches
// everything, anything else is an unanchored regular expression.
func compilePattern(pattern string) (rowMatcher, error) {
	switch pattern {
	case "":
		return func(string) bool { return false }, nil
	case MatchAll:
		return func(string) bool { return true }, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, &FilterError{Pattern: pattern, Err: err}
	}
	return re.MatchString, nil
}

// ValidatePattern reports whether pattern compiles under the filter policy.
func ValidatePattern(pattern string) error {
	_, err := compilePattern(pattern)
	return err
}

// FilterRows returns the indices of rows whose column value matches pattern.
func FilterRows(rows []dataset.Row, column, pattern string) (IndexSet, error) {
	match, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}

	active := make(IndexSet)
	for i, row := range rows {
		if match(row[column].String()) {
			active[i] = struct{}{}
		}
	}
	return active, nil
}
