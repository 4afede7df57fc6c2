package repair

import (
	"encoding/json"
	"testing"
)

func TestRetrievalToggles_Toggle(t *testing.T) {
	tests := []struct {
		name  string
		start RetrievalToggles
		kind  RetrievalKind
		want  RetrievalToggles
		mode  RetrievalMode
	}{
		{
			name:  "enable syntactic",
			start: RetrievalToggles{Semantic: true},
			kind:  RetrievalSyntactic,
			want:  RetrievalToggles{Semantic: true, Syntactic: true},
			mode:  ModeBoth,
		},
		{
			name:  "disable semantic of both",
			start: RetrievalToggles{Semantic: true, Syntactic: true},
			kind:  RetrievalSemantic,
			want:  RetrievalToggles{Syntactic: true},
			mode:  ModeSyntactic,
		},
		{
			name:  "last semantic stays on",
			start: RetrievalToggles{Semantic: true},
			kind:  RetrievalSemantic,
			want:  RetrievalToggles{Semantic: true},
			mode:  ModeSemantic,
		},
		{
			name:  "last syntactic stays on",
			start: RetrievalToggles{Syntactic: true},
			kind:  RetrievalSyntactic,
			want:  RetrievalToggles{Syntactic: true},
			mode:  ModeSyntactic,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.start.Toggle(tt.kind)
			if err != nil {
				t.Fatalf("Toggle error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Toggle(%s) = %+v, want %+v", tt.kind, got, tt.want)
			}
			if got.Mode() != tt.mode {
				t.Errorf("Mode() = %s, want %s", got.Mode(), tt.mode)
			}
		})
	}
}

func TestRetrievalToggles_UnknownKind(t *testing.T) {
	start := DefaultRetrieval()
	got, err := start.Toggle("fuzzy")
	if err == nil {
		t.Fatal("Toggle(fuzzy) should fail")
	}
	if got != start {
		t.Errorf("Toggle(fuzzy) changed toggles to %+v", got)
	}
}

func TestRetrievalToggles_NeverBothOff(t *testing.T) {
	kinds := []RetrievalKind{RetrievalSemantic, RetrievalSyntactic}
	tg := DefaultRetrieval()
	for i := 0; i < 64; i++ {
		var err error
		tg, err = tg.Toggle(kinds[(i*7/3)%2])
		if err != nil {
			t.Fatal(err)
		}
		if tg.Mode() == ModeNone {
			t.Fatalf("step %d: both toggles off", i)
		}
	}
}

func TestRerankMode_Toggle(t *testing.T) {
	var r RerankMode
	r = r.Toggle(RerankColBERT)
	if r != RerankColBERT {
		t.Fatalf("Toggle(ColBERT) = %q", r)
	}
	r = r.Toggle(RerankCrossEncoder)
	if r != RerankCrossEncoder {
		t.Fatalf("Toggle(Cross Encoder) = %q, rerankers must be exclusive", r)
	}
	r = r.Toggle(RerankCrossEncoder)
	if r != RerankNone {
		t.Fatalf("second Toggle(Cross Encoder) = %q, want none", r)
	}
}

func TestParseRerankMode(t *testing.T) {
	tests := map[string]RerankMode{
		"":              RerankNone,
		"none":          RerankNone,
		"colbert":       RerankColBERT,
		"ColBERT":       RerankColBERT,
		"cross-encoder": RerankCrossEncoder,
		"Cross Encoder": RerankCrossEncoder,
	}
	for in, want := range tests {
		got, err := ParseRerankMode(in)
		if err != nil || got != want {
			t.Errorf("ParseRerankMode(%q) = (%q, %v), want %q", in, got, err, want)
		}
	}
	if _, err := ParseRerankMode("bm25"); err == nil {
		t.Error("ParseRerankMode(bm25) should fail")
	}
}

func TestIndexSet(t *testing.T) {
	s := NewIndexSet(3, 1)
	if !s.Toggle(2) {
		t.Error("Toggle(2) on absent index should report true")
	}
	if s.Toggle(3) {
		t.Error("Toggle(3) on present index should report false")
	}

	b, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "[1,2]" {
		t.Errorf("Marshal = %s, want [1,2]", b)
	}

	c := s.Clone()
	c.Clear()
	if s.Len() != 2 {
		t.Errorf("Clear on clone changed original: Len = %d", s.Len())
	}
}
