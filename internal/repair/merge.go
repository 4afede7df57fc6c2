package repair

import "github.com/JonMunkholm/repairdesk/internal/dataset"

// MergeOutcome is the product of aligning results onto the dataset.
type MergeOutcome struct {
	// Rows is a fresh copy of the dataset rows with the scratch column set on
	// every row.
	Rows []dataset.Row

	// PerRow holds the result attached to each row, nil for rows that were
	// not active or that ran past the end of the results.
	PerRow []*Result

	// Proposed counts rows whose scratch value is non-null.
	Proposed int

	// Warning is set when the result count differs from the active row count.
	Warning *AlignmentWarning
}

// MergeResults aligns results, which are dense over the active rows, back
// onto every row of the dataset.
//
// It is a two-pointer walk: i visits every row in order, a walks the sorted
// active indices, and cursor walks results. The cursor only advances on
// active rows, so a short result slice leaves the remaining active rows with
// a null proposal and a long one has its tail ignored.
func MergeResults(rows []dataset.Row, active IndexSet, results []Result, scratch string) MergeOutcome {
	order := active.Sorted()
	out := MergeOutcome{
		Rows:   make([]dataset.Row, len(rows)),
		PerRow: make([]*Result, len(rows)),
	}

	a, cursor := 0, 0
	for i, src := range rows {
		row := src.Clone()

		for a < len(order) && order[a] < i {
			a++
		}
		if a < len(order) && order[a] == i {
			a++
			if cursor < len(results) {
				res := results[cursor]
				row[scratch] = res.Value
				out.PerRow[i] = &res
				if !res.Value.IsNull() {
					out.Proposed++
				}
			} else {
				row[scratch] = dataset.Null()
			}
			cursor++
		} else {
			row[scratch] = dataset.Null()
		}

		out.Rows[i] = row
	}

	// Active indices past the end of the dataset never reach the walk above.
	expected := 0
	for _, idx := range order {
		if idx >= 0 && idx < len(rows) {
			expected++
		}
	}
	if len(results) != expected {
		out.Warning = &AlignmentWarning{Expected: expected, Received: len(results)}
	}
	return out
}
