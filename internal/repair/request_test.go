package repair

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/JonMunkholm/repairdesk/internal/dataset"
)

func ordersDataset() *dataset.Dataset {
	return &dataset.Dataset{
		FileName: "orders_dirty.csv",
		Columns:  []string{"id", "city", "zip"},
		Rows: []dataset.Row{
			{"id": dataset.Str("1"), "city": dataset.Str("Bostn"), "zip": dataset.Str("02101")},
			{"id": dataset.Str("2"), "city": dataset.Str("Chicago"), "zip": dataset.Str("60601")},
			{"id": dataset.Str("3"), "city": dataset.Null(), "zip": dataset.Str("10001")},
			{"id": dataset.Str("4"), "city": dataset.Str("Seatle"), "zip": dataset.Str("98101")},
		},
	}
}

func validConfig() Configuration {
	return Configuration{
		TargetColumn:   "city",
		FilterPattern:  MatchAll,
		PivotColumns:   []string{"zip"},
		ReasonerID:     "gpt-4o",
		SearchIndexIDs: []string{"cities"},
		Retrieval:      DefaultRetrieval(),
	}
}

func TestBuildRequest(t *testing.T) {
	cfg := validConfig()
	cfg.Rerank = RerankColBERT
	cfg.Guidance = "US city names"

	req, err := BuildRequest(ordersDataset(), NewIndexSet(3, 0), cfg)
	if err != nil {
		t.Fatalf("BuildRequest error: %v", err)
	}

	if req.TargetName != "city" {
		t.Errorf("TargetName = %q, want city", req.TargetName)
	}
	wantTarget := []dataset.Value{dataset.Str("Bostn"), dataset.Str("Seatle")}
	if diff := cmp.Diff(wantTarget, req.TargetData, cmp.AllowUnexported(dataset.Value{})); diff != "" {
		t.Errorf("TargetData mismatch (-want +got):\n%s", diff)
	}
	wantPivot := [][]dataset.Value{{dataset.Str("02101")}, {dataset.Str("98101")}}
	if diff := cmp.Diff(wantPivot, req.PivotData, cmp.AllowUnexported(dataset.Value{})); diff != "" {
		t.Errorf("PivotData mismatch (-want +got):\n%s", diff)
	}
	if req.IndexType == nil || *req.IndexType != "semantic" {
		t.Errorf("IndexType = %v, want semantic", req.IndexType)
	}
	if req.RerankerType == nil || *req.RerankerType != "ColBERT" {
		t.Errorf("RerankerType = %v, want ColBERT", req.RerankerType)
	}
	if req.EntityDescription == nil || *req.EntityDescription != "US city names" {
		t.Errorf("EntityDescription = %v, want guidance text", req.EntityDescription)
	}
}

func TestBuildRequest_BlankGuidanceIsNull(t *testing.T) {
	cfg := validConfig()
	cfg.Guidance = "   "
	req, err := BuildRequest(ordersDataset(), NewIndexSet(0), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if req.EntityDescription != nil {
		t.Errorf("EntityDescription = %q, want nil", *req.EntityDescription)
	}
	if req.RerankerType != nil {
		t.Errorf("RerankerType = %q, want nil", *req.RerankerType)
	}
}

func TestBuildRequest_Preconditions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Configuration)
		active IndexSet
		field  string
	}{
		{"no search index", func(c *Configuration) { c.SearchIndexIDs = nil }, NewIndexSet(0), "searchIndexIds"},
		{"no target", func(c *Configuration) { c.TargetColumn = "" }, NewIndexSet(0), "targetColumn"},
		{"no reasoner", func(c *Configuration) { c.ReasonerID = "" }, NewIndexSet(0), "reasonerId"},
		{"unknown target", func(c *Configuration) { c.TargetColumn = "state" }, NewIndexSet(0), "targetColumn"},
		{"unknown pivot", func(c *Configuration) { c.PivotColumns = []string{"state"} }, NewIndexSet(0), "pivotColumns"},
		{"empty active set", func(c *Configuration) {}, NewIndexSet(), "activeRows"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			_, err := BuildRequest(ordersDataset(), tt.active, cfg)
			var ire *InvalidRequestError
			if !errors.As(err, &ire) {
				t.Fatalf("error = %v, want *InvalidRequestError", err)
			}
			if ire.Field != tt.field {
				t.Errorf("Field = %q, want %q", ire.Field, tt.field)
			}
		})
	}
}

func TestBuildRequest_NoIndexFailsEvenWhenOtherwiseValid(t *testing.T) {
	cfg := validConfig()
	cfg.SearchIndexIDs = []string{}
	if _, err := BuildRequest(ordersDataset(), AllRows(4), cfg); err == nil {
		t.Fatal("BuildRequest without search indexes should fail")
	}
}
