package parcel

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"github.com/matzehuels/parcelgrid/pkg/errors"
)

const sampleDoc = `[
  {
    "id": "17",
    "name": "Участок 17",
    "status": "Свободен",
    "area": "12 соток",
    "areaValue": 1200,
    "price": "1 200 000 ₽",
    "cadastralNumber": "15:09:0000000:17",
    "purpose": "ИЖС",
    "coords": [
      [44.9901, 43.1742],
      [44.9901, 43.1738],
      [44.9905, 43.1738],
      [44.9905, 43.1742],
      [44.9901, 43.1742]
    ]
  },
  {
    "id": 18,
    "name": "Парк <Центральный>",
    "areaValue": null,
    "coords": []
  }
]`

func TestDecode(t *testing.T) {
	doc, err := Decode([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if len(doc) != 2 {
		t.Fatalf("len(doc) = %d, want 2", len(doc))
	}

	p := doc[0]
	if p.Key() != "17" {
		t.Errorf("Key() = %q, want %q", p.Key(), "17")
	}
	if p.Name != "Участок 17" || p.Purpose != "ИЖС" || p.Status != "Свободен" {
		t.Errorf("text fields not decoded: %+v", p)
	}
	if p.AreaValue == nil || *p.AreaValue != 1200 {
		t.Errorf("AreaValue = %v, want 1200", p.AreaValue)
	}
	if len(p.Coords) != 5 || p.Coords[0] != (orb.Point{44.9901, 43.1742}) {
		t.Errorf("Coords = %v", p.Coords)
	}
	if raw, ok := p.Extra("price"); !ok || string(raw) != `"1 200 000 ₽"` {
		t.Errorf("Extra(price) = %s, %v", raw, ok)
	}

	q := doc[1]
	if q.Key() != "18" {
		t.Errorf("numeric Key() = %q, want %q", q.Key(), "18")
	}
	if q.AreaValue != nil {
		t.Errorf("null AreaValue = %v, want nil", *q.AreaValue)
	}
	if q.Purpose != "" {
		t.Errorf("missing purpose = %q, want empty", q.Purpose)
	}
}

func TestDecodeAreaValueString(t *testing.T) {
	tests := []struct {
		input string
		want  *float64
	}{
		{`"1200"`, ptr(1200)},
		{`"12,5"`, ptr(12.5)},
		{`"двенадцать"`, nil},
		{`950`, ptr(950)},
	}

	for _, tt := range tests {
		doc, err := Decode([]byte(`[{"id": "1", "areaValue": ` + tt.input + `}]`))
		if err != nil {
			t.Fatalf("Decode(%s) error: %v", tt.input, err)
		}
		got := doc[0].AreaValue
		switch {
		case tt.want == nil && got != nil:
			t.Errorf("areaValue %s = %v, want absent", tt.input, *got)
		case tt.want != nil && (got == nil || *got != *tt.want):
			t.Errorf("areaValue %s = %v, want %v", tt.input, got, *tt.want)
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not json", `{{`},
		{"object root", `{"id": "1"}`},
		{"array of numbers", `[1, 2, 3]`},
		{"null element", `[null]`},
		{"coords not pairs", `[{"id": "1", "coords": [[1, 2, 3]]}]`},
		{"coords not numbers", `[{"id": "1", "coords": [["a", "b"]]}]`},
		{"name not text", `[{"id": "1", "name": 5}]`},
		{"areaValue object", `[{"id": "1", "areaValue": {}}]`},
		{"duplicate id", `[{"id": "1"}, {"id": "1"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.input))
			if err == nil {
				t.Fatal("Decode() error = nil, want error")
			}
			if !errors.Is(err, errors.ErrCodeMalformedDocument) {
				t.Errorf("Decode() error code = %v, want %v", errors.GetCode(err), errors.ErrCodeMalformedDocument)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"sample", sampleDoc, false},
		{"numeric id", `[{"id": 12345678901234567890}]`, false},
		{"exponent coords", `[{"id": "1", "coords": [[4.49901e1, 4.31742e1], [44.99, 43.17]]}]`, false},
		{"string area value", `[{"id": "1", "areaValue": "1200"}]`, false},
		{"trailing whitespace", "[]\n\t ", false},
		{"trailing data", `[] []`, true},
		{"truncated", `[{"id": "1"`, true},
		{"id bool", `[{"id": true}]`, true},
		{"coords pair of strings", `[{"coords": [["1", "2"]]}]`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrCodeMalformedDocument) {
				t.Errorf("Validate() error code = %v, want %v", errors.GetCode(err), errors.ErrCodeMalformedDocument)
			}
		})
	}
}

func TestDecodeEmptyArray(t *testing.T) {
	doc, err := Decode([]byte(`[]`))
	if err != nil {
		t.Fatalf("Decode([]) error: %v", err)
	}
	if len(doc) != 0 {
		t.Errorf("len(doc) = %d, want 0", len(doc))
	}
}

func TestRoundTripPreservesRecords(t *testing.T) {
	doc, err := Decode([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	out, err := Encode(doc)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	// Same JSON value as the input.
	var want, got any
	if err := json.Unmarshal([]byte(sampleDoc), &want); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatal(err)
	}
	wantJSON, _ := json.Marshal(want)
	gotJSON, _ := json.Marshal(got)
	if !bytes.Equal(wantJSON, gotJSON) {
		t.Errorf("round trip changed the document:\nwant %s\ngot  %s", wantJSON, gotJSON)
	}

	// Key order and unescaped text are kept.
	s := string(out)
	if !(strings.Index(s, `"price"`) < strings.Index(s, `"cadastralNumber"`) &&
		strings.Index(s, `"cadastralNumber"`) < strings.Index(s, `"purpose"`)) {
		t.Errorf("key order not preserved:\n%s", s)
	}
	if !strings.Contains(s, "Парк <Центральный>") {
		t.Errorf("text was escaped:\n%s", s)
	}
	if !strings.HasSuffix(s, "]\n") {
		t.Error("output should end with a newline")
	}
}

func TestSetGeometry(t *testing.T) {
	doc, err := Decode([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	ring := orb.Ring{{1, 2}, {1, 1}, {2, 1}, {2, 2}, {1, 2}}
	doc[0].SetGeometry(ring, 1200, "12 соток")
	// Record without area keys gets them appended.
	doc[1].SetGeometry(ring, 1200, "12 соток")

	out, err := Encode(doc)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	back, err := Decode(out)
	if err != nil {
		t.Fatalf("Decode(Encode()) error: %v", err)
	}
	for i, p := range back {
		if len(p.Coords) != 5 || p.Coords[2] != (orb.Point{2, 1}) {
			t.Errorf("record %d coords = %v", i, p.Coords)
		}
		if p.Area != "12 соток" || p.AreaValue == nil || *p.AreaValue != 1200 {
			t.Errorf("record %d area = %q / %v", i, p.Area, p.AreaValue)
		}
	}
	if raw, ok := back[0].Extra("price"); !ok || string(raw) != `"1 200 000 ₽"` {
		t.Errorf("unknown field lost after SetGeometry: %s", raw)
	}
}

func TestCloneIsDeep(t *testing.T) {
	doc, err := Decode([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	c := doc.Clone()
	c[0].Coords[0] = orb.Point{0, 0}
	*c[0].AreaValue = 1
	c[0].SetGeometry(nil, 5, "x")

	if doc[0].Coords[0] != (orb.Point{44.9901, 43.1742}) {
		t.Error("Clone shares coords with the original")
	}
	if *doc[0].AreaValue != 1200 {
		t.Error("Clone shares areaValue with the original")
	}
	if doc[0].Area != "12 соток" {
		t.Error("Clone shares area label with the original")
	}
}

func TestMarshalConstructedParcel(t *testing.T) {
	p := &Parcel{
		ID:     json.RawMessage(`"a1"`),
		Name:   "Участок",
		Coords: orb.Ring{{0, 1}, {0, 0}, {1, 0}, {1, 1}, {0, 1}},
	}
	out, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	var back Parcel
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if back.Key() != "a1" || back.Name != "Участок" || len(back.Coords) != 5 {
		t.Errorf("constructed parcel did not round trip: %s", out)
	}
}

func TestByKey(t *testing.T) {
	doc, err := Decode([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	m := doc.ByKey()
	if m["17"] != doc[0] || m["18"] != doc[1] {
		t.Errorf("ByKey() = %v", m)
	}
}

func ptr(f float64) *float64 { return &f }
