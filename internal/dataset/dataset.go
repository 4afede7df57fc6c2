// Package dataset holds the in-memory tabular representation of an uploaded
// file and the parsers that produce it.
//
// A Dataset is an ordered slice of rows. Row order is the only alignment key
// between the dataset and anything computed from it (filters, repair results,
// marks), so nothing in this package reorders rows.
package dataset

import (
	"path/filepath"
	"strings"
)

// LogNamePrefix prefixes the audit log identifier derived from a file name.
const LogNamePrefix = "history_log_"

// dirtySuffix is stripped from the base file name when deriving a dataset name.
const dirtySuffix = "_dirty"

// Row maps column names to cell values.
type Row map[string]Value

// Clone returns a shallow copy of the row. Values are immutable, so a shallow
// copy is a full copy.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Dataset is a parsed upload.
type Dataset struct {
	FileName string
	Columns  []string
	Rows     []Row
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// HasColumn reports whether name is one of the dataset's columns.
func (d *Dataset) HasColumn(name string) bool {
	if d == nil {
		return false
	}
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// CloneRows copies a row slice including every row map.
func CloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

// Name derives the bare dataset name from an upload's file name: the
// directory and extension are removed, then a trailing "_dirty" marker.
//
//	Name("orders_dirty.csv") == "orders"
//	Name("orders.jsonl")     == "orders"
func Name(fileName string) string {
	base := filepath.Base(fileName)
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return strings.TrimSuffix(base, dirtySuffix)
}

// LogName returns the audit log identifier for a file name.
func LogName(fileName string) string {
	return LogNamePrefix + Name(fileName)
}
