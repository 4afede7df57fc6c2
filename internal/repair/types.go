package repair

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/repairdesk/internal/dataset"
)

// IndexSet is a set of row indices.
type IndexSet map[int]struct{}

// NewIndexSet builds a set from indices.
func NewIndexSet(indices ...int) IndexSet {
	s := make(IndexSet, len(indices))
	for _, i := range indices {
		s[i] = struct{}{}
	}
	return s
}

// AllRows returns the set {0, ..., n-1}.
func AllRows(n int) IndexSet {
	s := make(IndexSet, n)
	for i := 0; i < n; i++ {
		s[i] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s IndexSet) Has(i int) bool {
	_, ok := s[i]
	return ok
}

// Len returns the number of members.
func (s IndexSet) Len() int { return len(s) }

// Toggle flips membership of i and reports whether i is now a member.
func (s IndexSet) Toggle(i int) bool {
	if s.Has(i) {
		delete(s, i)
		return false
	}
	s[i] = struct{}{}
	return true
}

// Clear removes every member.
func (s IndexSet) Clear() {
	for i := range s {
		delete(s, i)
	}
}

// Sorted returns the members in ascending order.
func (s IndexSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for i := range s {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Clone copies the set.
func (s IndexSet) Clone() IndexSet {
	out := make(IndexSet, len(s))
	for i := range s {
		out[i] = struct{}{}
	}
	return out
}

// MarshalJSON encodes the set as an ascending array.
func (s IndexSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// RetrievalKind names one of the two retrieval toggles.
type RetrievalKind string

const (
	RetrievalSemantic  RetrievalKind = "semantic"
	RetrievalSyntactic RetrievalKind = "syntactic"
)

// RetrievalMode is the resolved retrieval strategy sent to the repair service.
type RetrievalMode string

const (
	ModeSemantic  RetrievalMode = "semantic"
	ModeSyntactic RetrievalMode = "syntactic"
	ModeBoth      RetrievalMode = "both"
	ModeNone      RetrievalMode = "none"
)

// RetrievalToggles are the two independent retrieval switches. At least one
// stays on: Toggle restores the invariant after every flip.
type RetrievalToggles struct {
	Semantic  bool `json:"semantic"`
	Syntactic bool `json:"syntactic"`
}

// DefaultRetrieval enables semantic retrieval only.
func DefaultRetrieval() RetrievalToggles {
	return RetrievalToggles{Semantic: true}
}

// Toggle flips kind and then normalizes the pair.
func (t RetrievalToggles) Toggle(kind RetrievalKind) (RetrievalToggles, error) {
	switch kind {
	case RetrievalSemantic:
		t.Semantic = !t.Semantic
	case RetrievalSyntactic:
		t.Syntactic = !t.Syntactic
	default:
		return t, &InvalidRequestError{Field: "retrieval", Reason: fmt.Sprintf("unknown retrieval kind %q", kind)}
	}
	return t.normalize(kind), nil
}

// normalize turns kind back on when both toggles are off.
func (t RetrievalToggles) normalize(kind RetrievalKind) RetrievalToggles {
	if t.Semantic || t.Syntactic {
		return t
	}
	if kind == RetrievalSyntactic {
		t.Syntactic = true
	} else {
		t.Semantic = true
	}
	return t
}

// Mode resolves the toggles to a retrieval mode.
func (t RetrievalToggles) Mode() RetrievalMode {
	switch {
	case t.Semantic && t.Syntactic:
		return ModeBoth
	case t.Semantic:
		return ModeSemantic
	case t.Syntactic:
		return ModeSyntactic
	default:
		return ModeNone
	}
}

// RerankMode selects an optional reranker. The zero value means none.
type RerankMode string

const (
	RerankNone         RerankMode = ""
	RerankColBERT      RerankMode = "ColBERT"
	RerankCrossEncoder RerankMode = "Cross Encoder"
)

// ParseRerankMode accepts the wire names plus a few URL-friendly aliases.
func ParseRerankMode(s string) (RerankMode, error) {
	switch s {
	case "", "none":
		return RerankNone, nil
	case string(RerankColBERT), "colbert":
		return RerankColBERT, nil
	case string(RerankCrossEncoder), "cross-encoder", "cross_encoder":
		return RerankCrossEncoder, nil
	}
	return RerankNone, &InvalidRequestError{Field: "rerank", Reason: fmt.Sprintf("unknown rerank mode %q", s)}
}

// Toggle switches to m, or back to none when m is already selected.
// The rerankers are mutually exclusive.
func (r RerankMode) Toggle(m RerankMode) RerankMode {
	if r == m {
		return RerankNone
	}
	return m
}

// Configuration is the operator's current repair setup.
type Configuration struct {
	TargetColumn   string           `json:"targetColumn"`
	FilterPattern  string           `json:"filterPattern"`
	PivotColumns   []string         `json:"pivotColumns"`
	ReasonerID     string           `json:"reasonerId"`
	SearchIndexIDs []string         `json:"searchIndexIds"`
	Retrieval      RetrievalToggles `json:"retrieval"`
	Rerank         RerankMode       `json:"rerank"`
	Guidance       string           `json:"guidance"`
}

// Request is the payload sent to the repair service.
type Request struct {
	EntityDescription *string           `json:"entity_description"`
	TargetName        string            `json:"target_name"`
	TargetData        []dataset.Value   `json:"target_data"`
	PivotNames        []string          `json:"pivot_names"`
	PivotData         [][]dataset.Value `json:"pivot_data"`
	ReasonerName      string            `json:"reasoner_name"`
	IndexNames        []string          `json:"index_name"`
	IndexType         *string           `json:"index_type"`
	RerankerType      *string           `json:"reranker_type"`
}

// Result is one proposed repair, aligned with one active row.
type Result struct {
	Value           dataset.Value   `json:"value"`
	Citation        json.RawMessage `json:"citation,omitempty"`
	ConflictSummary string          `json:"conflict_summary"`
	TableName       string          `json:"table_name"`
	RowNumber       int             `json:"row_number"`
}

// Evidence is the supporting payload shown for one repaired row.
type Evidence struct {
	Row             int             `json:"row"`
	Citation        json.RawMessage `json:"citation,omitempty"`
	ConflictSummary string          `json:"conflictSummary"`
	SourceTable     string          `json:"sourceTable"`
	SourceRowNumber int             `json:"sourceRowNumber"`
}

// AuditRecord is one committed value change.
type AuditRecord struct {
	Table      string        `json:"table"`
	Column     string        `json:"column"`
	DirtyValue dataset.Value `json:"dirty_value"`
	CleanValue dataset.Value `json:"clean_value"`
	Timestamp  time.Time     `json:"timestamp"`
}

// AuditBatch is the set of records from one or more applies that is
// delivered to the audit sinks as a unit. Records are only ever appended
// while the batch is pending, so a sink that already stored a prefix can be
// sent the rest.
type AuditBatch struct {
	ID      uuid.UUID
	LogName string
	Records []AuditRecord
}
