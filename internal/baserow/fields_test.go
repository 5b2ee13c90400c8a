package baserow_test

import (
	"encoding/json"
	"testing"

	"aircheck/internal/baserow"
)

func TestDurationUnmarshalVariants(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
	}{
		{"number", `179.5`, 179.5},
		{"integer", `3600`, 3600},
		{"clock", `"0:02:59"`, 179},
		{"minutes", `"2:59"`, 179},
		{"null", `null`, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var d baserow.Duration
			if err := json.Unmarshal([]byte(tc.input), &d); err != nil {
				t.Fatalf("unmarshal %q: %v", tc.input, err)
			}
			if d.Seconds() != tc.want {
				t.Fatalf("got %v, want %v", d.Seconds(), tc.want)
			}
		})
	}

	var d baserow.Duration
	if err := json.Unmarshal([]byte(`"1:2:3:4"`), &d); err == nil {
		t.Fatal("expected error for malformed clock value")
	}
}

func TestDurationClock(t *testing.T) {
	if got := baserow.Duration(179).Clock(); got != "0:02:59" {
		t.Fatalf("unexpected clock rendering %q", got)
	}
	if got := baserow.Duration(3661).Clock(); got != "1:01:01" {
		t.Fatalf("unexpected clock rendering %q", got)
	}
}

func TestLinkFieldEncode(t *testing.T) {
	field := baserow.LinkTo(3, 9)
	ids := field.Encode()
	if len(ids) != 2 || ids[0] != 3 || ids[1] != 9 {
		t.Fatalf("unexpected encode %v", ids)
	}
	if field.String() != "3,9" {
		t.Fatalf("unexpected string %q", field.String())
	}
}

func TestFileFieldEncodeAndFirst(t *testing.T) {
	field := baserow.FileField{{URL: "https://x/y.mp3", Name: "internal.mp3", Size: 2}}
	first, ok := field.First()
	if !ok || first.Name != "internal.mp3" {
		t.Fatalf("unexpected first %+v ok=%v", first, ok)
	}
	encoded := field.Encode()
	if len(encoded) != 1 || encoded[0]["name"] != "internal.mp3" {
		t.Fatalf("unexpected encode %v", encoded)
	}
	if _, ok := baserow.FileField(nil).First(); ok {
		t.Fatal("empty field reported attachment")
	}
}
