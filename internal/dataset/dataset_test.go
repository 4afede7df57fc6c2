package dataset

import "testing"

func TestName(t *testing.T) {
	tests := []struct {
		fileName string
		want     string
	}{
		{"orders_dirty.csv", "orders"},
		{"orders.jsonl", "orders"},
		{"orders.csv", "orders"},
		{"audible_dirty.xlsx", "audible"},
		{"orders_dirty_dirty.csv", "orders_dirty"},
		{"dirty.csv", "dirty"},
		{"my.orders_dirty.csv", "my.orders"},
		{"uploads/orders_dirty.csv", "orders"},
		{"orders", "orders"},
		{"orders_dirty", "orders"},
	}

	for _, tt := range tests {
		t.Run(tt.fileName, func(t *testing.T) {
			if got := Name(tt.fileName); got != tt.want {
				t.Errorf("Name(%q) = %q, want %q", tt.fileName, got, tt.want)
			}
		})
	}
}

func TestLogName(t *testing.T) {
	if got := LogName("orders_dirty.csv"); got != "history_log_orders" {
		t.Errorf("LogName(orders_dirty.csv) = %q, want %q", got, "history_log_orders")
	}
	if got := LogName("orders.jsonl"); got != "history_log_orders" {
		t.Errorf("LogName(orders.jsonl) = %q, want %q", got, "history_log_orders")
	}
}

func TestCloneRows_Independent(t *testing.T) {
	rows := []Row{{"a": Str("x")}}
	cp := CloneRows(rows)
	cp[0]["a"] = Str("y")

	if got, _ := rows[0]["a"].Text(); got != "x" {
		t.Errorf("original row changed to %q", got)
	}
}

func TestHasColumn(t *testing.T) {
	ds := &Dataset{Columns: []string{"id", "city"}}
	if !ds.HasColumn("city") {
		t.Error("HasColumn(city) = false, want true")
	}
	if ds.HasColumn("zip") {
		t.Error("HasColumn(zip) = true, want false")
	}
	var nilDS *Dataset
	if nilDS.HasColumn("city") || nilDS.Len() != 0 {
		t.Error("nil dataset should have no columns and no rows")
	}
}
