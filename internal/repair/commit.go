package repair

import (
	"time"

	"github.com/JonMunkholm/repairdesk/internal/dataset"
)

// CommitRepairs writes the scratch value of every marked row into the target
// column, drops the scratch key from those rows, and returns one audit record
// per change in ascending row order. The input rows are not modified.
//
// An empty marked set returns the rows unchanged and no records.
func CommitRepairs(rows []dataset.Row, marked IndexSet, target, scratch, table string, now func() time.Time) ([]dataset.Row, []AuditRecord) {
	if marked.Len() == 0 {
		return rows, nil
	}
	if now == nil {
		now = time.Now
	}

	out := make([]dataset.Row, len(rows))
	copy(out, rows)

	records := make([]AuditRecord, 0, marked.Len())
	for _, i := range marked.Sorted() {
		if i < 0 || i >= len(out) {
			continue
		}
		row := out[i].Clone()
		dirty := row[target]
		clean := row[scratch]

		row[target] = clean
		delete(row, scratch)
		out[i] = row

		records = append(records, AuditRecord{
			Table:      table,
			Column:     target,
			DirtyValue: dirty,
			CleanValue: clean,
			Timestamp:  now().UTC().Truncate(time.Millisecond),
		})
	}
	return out, records
}

// StripColumn returns rows without column. Rows that lack it are shared, not
// copied.
func StripColumn(rows []dataset.Row, column string) []dataset.Row {
	out := make([]dataset.Row, len(rows))
	for i, row := range rows {
		if _, ok := row[column]; !ok {
			out[i] = row
			continue
		}
		cp := row.Clone()
		delete(cp, column)
		out[i] = cp
	}
	return out
}
