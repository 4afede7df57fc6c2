package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// MaxFileSize is the largest upload Ingest accepts (100MB).
var MaxFileSize int64 = 100 * 1024 * 1024

// Format is an upload encoding.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSONL Format = "jsonl"
	FormatXLSX  Format = "xlsx"
)

// DetectFormat maps a file name's extension to a Format.
func DetectFormat(fileName string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return FormatCSV, true
	case ".jsonl", ".ndjson":
		return FormatJSONL, true
	case ".xlsx":
		return FormatXLSX, true
	default:
		return "", false
	}
}

// Ingest reads an upload and parses it according to its extension.
// Every returned row has a value for every column.
func Ingest(fileName string, r io.Reader) (*Dataset, error) {
	format, ok := DetectFormat(fileName)
	if !ok {
		return nil, parseErr(fileName, 0, fmt.Sprintf("extension %q", filepath.Ext(fileName)), ErrUnsupportedFormat)
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return nil, parseErr(fileName, 0, "read upload", err)
	}
	if int64(len(data)) > MaxFileSize {
		return nil, parseErr(fileName, 0, fmt.Sprintf("exceeds %dMB limit", MaxFileSize/(1024*1024)), ErrFileTooLarge)
	}

	var ds *Dataset
	switch format {
	case FormatCSV:
		ds, err = ParseCSV(fileName, data)
	case FormatJSONL:
		ds, err = ParseJSONL(fileName, data)
	case FormatXLSX:
		ds, err = ParseXLSX(fileName, data)
	}
	if err != nil {
		return nil, err
	}
	return ds, nil
}

// ParseCSV parses comma-separated data. The first non-blank record is the
// header; every following record must have exactly as many fields.
func ParseCSV(fileName string, data []byte) (*Dataset, error) {
	data = sanitizeUTF8(stripBOM(data))

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var header []string
	var rows []Row
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, parseErr(fileName, pe.Line, "invalid csv", pe.Err)
			}
			return nil, parseErr(fileName, 0, "invalid csv", err)
		}
		if isEmptyRecord(rec) {
			continue
		}
		line, _ := r.FieldPos(0)

		if header == nil {
			header, err = normalizeHeader(rec)
			if err != nil {
				return nil, parseErr(fileName, line, err.Error(), nil)
			}
			continue
		}

		if len(rec) != len(header) {
			return nil, parseErr(fileName, line,
				fmt.Sprintf("invalid csv: expected %d fields, got %d", len(header), len(rec)), nil)
		}
		row := make(Row, len(header))
		for i, col := range header {
			row[col] = Str(rec[i])
		}
		rows = append(rows, row)
	}

	return finish(fileName, header, rows)
}

// ParseJSONL parses newline-delimited JSON objects. Columns are the union of
// keys in first-seen order; rows missing a key get null for it.
func ParseJSONL(fileName string, data []byte) (*Dataset, error) {
	data = sanitizeUTF8(stripBOM(data))

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), len(data)+1)

	var columns []string
	seen := make(map[string]bool)
	var rows []Row

	line := 0
	for sc.Scan() {
		line++
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}

		keys, row, err := decodeObject(text)
		if err != nil {
			return nil, parseErr(fileName, line, "inconsistent record", err)
		}
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, parseErr(fileName, line, "read jsonl", err)
	}

	return finish(fileName, columns, rows)
}

// ParseXLSX parses the first worksheet of an Excel workbook. Cells are read
// as their formatted text.
func ParseXLSX(fileName string, data []byte) (*Dataset, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, parseErr(fileName, 0, "open workbook", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, parseErr(fileName, 0, "workbook has no sheets", ErrEmptyFile)
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, parseErr(fileName, 0, fmt.Sprintf("read sheet %q", sheets[0]), err)
	}

	var header []string
	var rows []Row
	for i, rec := range records {
		line := i + 1
		if isEmptyRecord(rec) {
			continue
		}
		if header == nil {
			header, err = normalizeHeader(rec)
			if err != nil {
				return nil, parseErr(fileName, line, err.Error(), nil)
			}
			continue
		}
		// Excel drops trailing empty cells, so short rows are padded.
		if len(rec) > len(header) {
			return nil, parseErr(fileName, line,
				fmt.Sprintf("expected at most %d cells, got %d", len(header), len(rec)), nil)
		}
		row := make(Row, len(header))
		for j, col := range header {
			cell := ""
			if j < len(rec) {
				cell = rec[j]
			}
			row[col] = Str(cell)
		}
		rows = append(rows, row)
	}

	return finish(fileName, header, rows)
}

// finish validates the parse result and fills missing cells with null.
func finish(fileName string, columns []string, rows []Row) (*Dataset, error) {
	if len(columns) == 0 {
		return nil, parseErr(fileName, 0, "no header", ErrEmptyFile)
	}
	if len(rows) == 0 {
		return nil, parseErr(fileName, 0, "no data rows", ErrEmptyFile)
	}
	for _, row := range rows {
		for _, col := range columns {
			if _, ok := row[col]; !ok {
				row[col] = Null()
			}
		}
	}
	return &Dataset{FileName: fileName, Columns: columns, Rows: rows}, nil
}

// decodeObject decodes one JSON object, returning its keys in document order.
func decodeObject(text []byte) ([]string, Row, error) {
	dec := json.NewDecoder(bytes.NewReader(text))

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("expected object, got %v", tok)
	}

	var keys []string
	row := make(Row)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("expected key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, err
		}
		var v Value
		if err := v.UnmarshalJSON(raw); err != nil {
			return nil, nil, fmt.Errorf("key %q: %w", key, err)
		}
		if _, dup := row[key]; !dup {
			keys = append(keys, key)
		}
		row[key] = v
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, nil, errors.New("trailing data after object")
	}
	return keys, row, nil
}

func normalizeHeader(rec []string) ([]string, error) {
	header := make([]string, len(rec))
	seen := make(map[string]bool, len(rec))
	for i, h := range rec {
		h = strings.TrimSpace(h)
		if h == "" {
			return nil, fmt.Errorf("empty column name at position %d", i+1)
		}
		if seen[h] {
			return nil, fmt.Errorf("duplicate column %q", h)
		}
		seen[h] = true
		header[i] = h
	}
	return header, nil
}

func isEmptyRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
}

// sanitizeUTF8 replaces invalid UTF-8 bytes with U+FFFD.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('\uFFFD')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}
