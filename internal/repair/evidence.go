package repair

// EvidenceAt looks up the evidence for row i in a per-row result slice.
// It reports false for rows without a result.
func EvidenceAt(perRow []*Result, i int) (Evidence, bool) {
	if i < 0 || i >= len(perRow) || perRow[i] == nil {
		return Evidence{}, false
	}
	r := perRow[i]
	return Evidence{
		Row:             i,
		Citation:        r.Citation,
		ConflictSummary: r.ConflictSummary,
		SourceTable:     r.TableName,
		SourceRowNumber: r.RowNumber,
	}, true
}
