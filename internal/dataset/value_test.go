package dataset

import (
	"encoding/json"
	"testing"
)

func TestValue_String(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"null", Null(), ""},
		{"string", Str("Boston"), "Boston"},
		{"integer number", Num(42), "42"},
		{"fractional number", Num(3.25), "3.25"},
		{"negative number", Num(-0.5), "-0.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValue_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in      string
		want    Value
		wantErr bool
	}{
		{`null`, Null(), false},
		{`"abc"`, Str("abc"), false},
		{`12.5`, Num(12.5), false},
		{`true`, Str("true"), false},
		{`false`, Str("false"), false},
		{`{"a":1}`, Value{}, true},
		{`[1,2]`, Value{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var got Value
			err := json.Unmarshal([]byte(tt.in), &got)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal(%s) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("Unmarshal(%s) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestValue_MarshalJSON(t *testing.T) {
	row := map[string]Value{"n": Num(7), "s": Str("x"), "z": Null()}
	got, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}
	want := `{"n":7,"s":"x","z":null}`
	if string(got) != want {
		t.Errorf("Marshal = %s, want %s", got, want)
	}
}

func TestValue_Equal(t *testing.T) {
	if Str("1").Equal(Num(1)) {
		t.Error("string and number with same text should differ")
	}
	if !Null().Equal(Value{}) {
		t.Error("zero Value should equal Null()")
	}
}

func TestValue_LargeIntegerKeepsLiteral(t *testing.T) {
	tests := []string{"9007199254740993", "-9223372036854775807", "12345678901234567890", "1e3", "0.10"}

	for _, lit := range tests {
		t.Run(lit, func(t *testing.T) {
			var v Value
			if err := json.Unmarshal([]byte(lit), &v); err != nil {
				t.Fatalf("Unmarshal error = %v", err)
			}
			if v.Kind() != KindNumber {
				t.Fatalf("Kind = %v, want number", v.Kind())
			}
			if got := v.String(); got != lit {
				t.Errorf("String() = %q, want %q", got, lit)
			}
			out, err := json.Marshal(v)
			if err != nil {
				t.Fatalf("Marshal error = %v", err)
			}
			if string(out) != lit {
				t.Errorf("Marshal = %s, want %s", out, lit)
			}
		})
	}
}

func TestValue_EqualLiterals(t *testing.T) {
	a, _ := NumLiteral("9007199254740993")
	b, _ := NumLiteral("9007199254740992")
	if a.Equal(b) {
		t.Error("distinct integers above 2^53 should not be equal")
	}
	c, _ := NumLiteral("12.5")
	if !c.Equal(Num(12.5)) {
		t.Error("literal and float with the same value should be equal")
	}
	if _, err := NumLiteral("12abc"); err == nil {
		t.Error("NumLiteral should reject invalid text")
	}
}

func TestParseJSONL_LargeInteger(t *testing.T) {
	ds, err := ParseJSONL("ids.jsonl", []byte(`{"id": 9007199254740993}`+"\n"))
	if err != nil {
		t.Fatalf("ParseJSONL error = %v", err)
	}
	if got := ds.Rows[0]["id"].String(); got != "9007199254740993" {
		t.Errorf("id = %s, want 9007199254740993", got)
	}
}
