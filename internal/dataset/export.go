package dataset

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
)

// WriteCSV writes rows as CSV with a header of columns. Null cells are
// written as empty fields.
func WriteCSV(w io.Writer, columns []string, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	rec := make([]string, len(columns))
	for i, row := range rows {
		for j, col := range columns {
			rec[j] = row[col].String()
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSONL writes one JSON object per row with keys in columns order.
func WriteJSONL(w io.Writer, columns []string, rows []Row) error {
	keys := make([][]byte, len(columns))
	for j, col := range columns {
		k, err := json.Marshal(col)
		if err != nil {
			return fmt.Errorf("encode column %q: %w", col, err)
		}
		keys[j] = k
	}

	var buf bytes.Buffer
	for i, row := range rows {
		buf.Reset()
		buf.WriteByte('{')
		for j, col := range columns {
			if j > 0 {
				buf.WriteByte(',')
			}
			buf.Write(keys[j])
			buf.WriteByte(':')
			v, err := row[col].MarshalJSON()
			if err != nil {
				return fmt.Errorf("write row %d: %w", i, err)
			}
			buf.Write(v)
		}
		buf.WriteString("}\n")
		if _, err := w.Write(buf.Bytes()); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	return nil
}
