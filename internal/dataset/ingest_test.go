package dataset

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"
)

func TestIngest_CSV(t *testing.T) {
	input := "\xEF\xBB\xBFid, city ,zip\n1,Boston,02110\n\n2,,NULL\n"

	ds, err := Ingest("orders_dirty.csv", strings.NewReader(input))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	want := &Dataset{
		FileName: "orders_dirty.csv",
		Columns:  []string{"id", "city", "zip"},
		Rows: []Row{
			{"id": Str("1"), "city": Str("Boston"), "zip": Str("02110")},
			{"id": Str("2"), "city": Str(""), "zip": Str("NULL")},
		},
	}
	if diff := cmp.Diff(want, ds); diff != "" {
		t.Errorf("Ingest() mismatch (-want +got):\n%s", diff)
	}
}

func TestIngest_CSVQuotedFields(t *testing.T) {
	input := "name,notes\n\"Smith, J\",\"said \"\"hi\"\"\"\n"

	ds, err := Ingest("people.csv", strings.NewReader(input))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if got := ds.Rows[0]["name"].String(); got != "Smith, J" {
		t.Errorf("name = %q, want %q", got, "Smith, J")
	}
	if got := ds.Rows[0]["notes"].String(); got != `said "hi"` {
		t.Errorf("notes = %q, want %q", got, `said "hi"`)
	}
}

func TestIngest_CSVErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantLine int
		wantErr  error
	}{
		{name: "ragged row", input: "a,b\n1,2\n3\n", wantLine: 3},
		{name: "extra field", input: "a,b\n1,2,3\n", wantLine: 2},
		{name: "duplicate header", input: "a,a\n1,2\n", wantLine: 1},
		{name: "empty header cell", input: "a,\n1,2\n", wantLine: 1},
		{name: "header only", input: "a,b\n", wantErr: ErrEmptyFile},
		{name: "empty input", input: "", wantErr: ErrEmptyFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Ingest("x.csv", strings.NewReader(tt.input))
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("error = %v, want *ParseError", err)
			}
			if tt.wantLine != 0 && pe.Line != tt.wantLine {
				t.Errorf("Line = %d, want %d (%v)", pe.Line, tt.wantLine, err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want errors.Is %v", err, tt.wantErr)
			}
		})
	}
}

func TestIngest_JSONL(t *testing.T) {
	input := `{"id": 1, "city": "Boston"}

{"city": null, "id": 2, "zip": "02110", "active": true}
`
	ds, err := Ingest("orders.jsonl", strings.NewReader(input))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	want := &Dataset{
		FileName: "orders.jsonl",
		Columns:  []string{"id", "city", "zip", "active"},
		Rows: []Row{
			{"id": Num(1), "city": Str("Boston"), "zip": Null(), "active": Null()},
			{"id": Num(2), "city": Null(), "zip": Str("02110"), "active": Str("true")},
		},
	}
	if diff := cmp.Diff(want, ds); diff != "" {
		t.Errorf("Ingest() mismatch (-want +got):\n%s", diff)
	}
}

func TestIngest_JSONLErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantLine int
	}{
		{"not an object", "{\"a\":1}\n[1,2]\n", 2},
		{"nested value", "{\"a\":{\"b\":1}}\n", 1},
		{"truncated", "{\"a\":1\n", 1},
		{"trailing data", "{\"a\":1} {\"a\":2}\n", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Ingest("x.jsonl", strings.NewReader(tt.input))
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("error = %v, want *ParseError", err)
			}
			if pe.Line != tt.wantLine {
				t.Errorf("Line = %d, want %d", pe.Line, tt.wantLine)
			}
		})
	}
}

func TestIngest_XLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	cells := map[string]string{
		"A1": "id", "B1": "city", "C1": "zip",
		"A2": "1", "B2": "Boston", "C2": "02110",
		"A3": "2", "B3": "Cambridge",
	}
	for cell, v := range cells {
		if err := f.SetCellValue("Sheet1", cell, v); err != nil {
			t.Fatalf("SetCellValue(%s) error = %v", cell, err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer() error = %v", err)
	}

	ds, err := Ingest("places_dirty.xlsx", bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	want := []Row{
		{"id": Str("1"), "city": Str("Boston"), "zip": Str("02110")},
		{"id": Str("2"), "city": Str("Cambridge"), "zip": Str("")},
	}
	if diff := cmp.Diff([]string{"id", "city", "zip"}, ds.Columns); diff != "" {
		t.Errorf("Columns mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, ds.Rows); diff != "" {
		t.Errorf("Rows mismatch (-want +got):\n%s", diff)
	}
}

func TestIngest_UnsupportedExtension(t *testing.T) {
	_, err := Ingest("notes.txt", strings.NewReader("a\n1\n"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestIngest_FileTooLarge(t *testing.T) {
	old := MaxFileSize
	MaxFileSize = 8
	defer func() { MaxFileSize = old }()

	_, err := Ingest("big.csv", strings.NewReader("a,b\n1,2\n3,4\n"))
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("error = %v, want ErrFileTooLarge", err)
	}
}

func TestIngest_InvalidUTF8Replaced(t *testing.T) {
	ds, err := Ingest("x.csv", strings.NewReader("name\nab\xffc\n"))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if got := ds.Rows[0]["name"].String(); got != "ab\uFFFDc" {
		t.Errorf("name = %q, want %q", got, "ab\uFFFDc")
	}
}

func TestExport_RoundTrip(t *testing.T) {
	columns := []string{"id", "city"}
	rows := []Row{
		{"id": Str("1"), "city": Str("Boston, MA")},
		{"id": Str("2"), "city": Null()},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, columns, rows); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	want := "id,city\n1,\"Boston, MA\"\n2,\n"
	if buf.String() != want {
		t.Errorf("WriteCSV() = %q, want %q", buf.String(), want)
	}

	buf.Reset()
	if err := WriteJSONL(&buf, columns, rows); err != nil {
		t.Fatalf("WriteJSONL() error = %v", err)
	}
	wantJSONL := "{\"id\":\"1\",\"city\":\"Boston, MA\"}\n{\"id\":\"2\",\"city\":null}\n"
	if buf.String() != wantJSONL {
		t.Errorf("WriteJSONL() = %q, want %q", buf.String(), wantJSONL)
	}
}

func TestWriteJSONL_KeepsColumnOrder(t *testing.T) {
	input := "{\"zip\":\"02101\",\"city\":\"Bostn\",\"id\":9007199254740993}\n"
	ds, err := ParseJSONL("orders.jsonl", []byte(input))
	if err != nil {
		t.Fatalf("ParseJSONL() error = %v", err)
	}

	var buf bytes.Buffer
	if err := WriteJSONL(&buf, ds.Columns, ds.Rows); err != nil {
		t.Fatalf("WriteJSONL() error = %v", err)
	}
	want := "{\"zip\":\"02101\",\"city\":\"Bostn\",\"id\":9007199254740993}\n"
	if buf.String() != want {
		t.Errorf("WriteJSONL() = %q, want %q", buf.String(), want)
	}
}
