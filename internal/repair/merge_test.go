package repair

import (
	"testing"

	"github.com/JonMunkholm/repairdesk/internal/dataset"
)

const scratch = "repaired_value"

func results(values ...string) []Result {
	out := make([]Result, len(values))
	for i, v := range values {
		out[i] = Result{Value: dataset.Str(v), TableName: "cities", RowNumber: i + 10}
	}
	return out
}

// fiveRows extends the orders fixture with a row after the last active index.
func fiveRows() []dataset.Row {
	rows := ordersDataset().Rows
	return append(rows, dataset.Row{"id": dataset.Str("5"), "city": dataset.Str("Denver"), "zip": dataset.Str("80202")})
}

func TestMergeResults_SparseActiveSet(t *testing.T) {
	rows := fiveRows()
	out := MergeResults(rows, NewIndexSet(1, 3), results("X", "Y"), scratch)

	if len(out.Rows) != 5 {
		t.Fatalf("len(Rows) = %d, want 5", len(out.Rows))
	}
	want := []dataset.Value{dataset.Null(), dataset.Str("X"), dataset.Null(), dataset.Str("Y"), dataset.Null()}
	for i, w := range want {
		if got := out.Rows[i][scratch]; !got.Equal(w) {
			t.Errorf("row %d scratch = %v, want %v", i, got, w)
		}
	}
	if out.Proposed != 2 {
		t.Errorf("Proposed = %d, want 2", out.Proposed)
	}
	if out.Warning != nil {
		t.Errorf("Warning = %+v, want nil", out.Warning)
	}
	if out.PerRow[0] != nil || out.PerRow[2] != nil || out.PerRow[4] != nil {
		t.Error("inactive rows should have no result")
	}
	if _, ok := out.Rows[4][scratch]; !ok {
		t.Error("row 4 should carry the scratch column")
	}
	if out.PerRow[3] == nil || out.PerRow[3].RowNumber != 11 {
		t.Errorf("PerRow[3] = %+v, want second result", out.PerRow[3])
	}
}

func TestMergeResults_ShortResults(t *testing.T) {
	rows := ordersDataset().Rows
	out := MergeResults(rows, NewIndexSet(1, 2, 3), results("X"), scratch)

	if got := out.Rows[1][scratch]; !got.Equal(dataset.Str("X")) {
		t.Errorf("row 1 scratch = %v, want X", got)
	}
	for _, i := range []int{2, 3} {
		if got := out.Rows[i][scratch]; !got.IsNull() {
			t.Errorf("row %d scratch = %v, want null", i, got)
		}
		if out.PerRow[i] != nil {
			t.Errorf("row %d should have no result", i)
		}
	}
	if out.Warning == nil || out.Warning.Expected != 3 || out.Warning.Received != 1 {
		t.Errorf("Warning = %+v, want {3 1}", out.Warning)
	}
}

func TestMergeResults_ExtraResultsIgnored(t *testing.T) {
	rows := ordersDataset().Rows
	out := MergeResults(rows, NewIndexSet(0), results("A", "B", "C"), scratch)

	if got := out.Rows[0][scratch]; !got.Equal(dataset.Str("A")) {
		t.Errorf("row 0 scratch = %v, want A", got)
	}
	if out.Proposed != 1 {
		t.Errorf("Proposed = %d, want 1", out.Proposed)
	}
	if out.Warning == nil || out.Warning.Received != 3 {
		t.Errorf("Warning = %+v, want Received 3", out.Warning)
	}
}

func TestMergeResults_DoesNotMutateInput(t *testing.T) {
	rows := ordersDataset().Rows
	_ = MergeResults(rows, AllRows(len(rows)), results("a", "b", "c", "d"), scratch)

	for i, row := range rows {
		if _, ok := row[scratch]; ok {
			t.Errorf("input row %d gained the scratch column", i)
		}
	}
}

func TestEvidenceAt(t *testing.T) {
	out := MergeResults(ordersDataset().Rows, NewIndexSet(2), results("Boston"), scratch)

	if _, ok := EvidenceAt(out.PerRow, 0); ok {
		t.Error("EvidenceAt(0) on inactive row should report false")
	}
	if _, ok := EvidenceAt(out.PerRow, 99); ok {
		t.Error("EvidenceAt(99) out of range should report false")
	}
	ev, ok := EvidenceAt(out.PerRow, 2)
	if !ok {
		t.Fatal("EvidenceAt(2) should find the result")
	}
	if ev.SourceTable != "cities" || ev.SourceRowNumber != 10 || ev.Row != 2 {
		t.Errorf("EvidenceAt(2) = %+v", ev)
	}
}
