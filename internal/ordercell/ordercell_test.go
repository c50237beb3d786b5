package ordercell

import (
	"errors"
	"testing"

	pkgerrors "github.com/angelmondragon/dailyledger/pkg/errors"
)

func TestEncode(t *testing.T) {
	cases := []struct {
		name string
		line Line
		want string
	}{
		{name: "unit equals measure is omitted", line: Line{Quantity: 250, Unit: "kg", Price: 100, PriceMeasure: "kg"}, want: "250@100/kg"},
		{name: "empty unit means measure", line: Line{Quantity: 250, Price: 100, PriceMeasure: "kg"}, want: "250@100/kg"},
		{name: "grams against kilo price", line: Line{Quantity: 250, Unit: "gm", Price: 100, PriceMeasure: "kg"}, want: "250gm@100/kg"},
		{name: "pieces", line: Line{Quantity: 10, Unit: "pcs", Price: 5, PriceMeasure: "dozen"}, want: "10pcs@5/dozen"},
		{name: "measure with digits", line: Line{Quantity: 500, Unit: "gm", Price: 40, PriceMeasure: "1kg"}, want: "500gm@40/1kg"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Encode(tc.line)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestEncodeRejectsAmbiguousLines(t *testing.T) {
	bad := []Line{
		{Quantity: -1, Price: 1, PriceMeasure: "kg"},
		{Quantity: 1, Price: 1},
		{Quantity: 1, Unit: "10g", Price: 1, PriceMeasure: "kg"},
		{Quantity: 1, Price: 1, PriceMeasure: "k@g"},
	}
	for _, l := range bad {
		if _, err := Encode(l); !errors.Is(err, ErrMalformedCell) {
			t.Fatalf("expected malformed error for %+v, got %v", l, err)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	lines := []Line{
		{Quantity: 250, Unit: "gm", Price: 100, PriceMeasure: "kg"},
		{Quantity: 2, Unit: "kg", Price: 100, PriceMeasure: "kg"},
		{Quantity: 0, Unit: "gm", Price: 0, PriceMeasure: "kg"},
		{Quantity: 12, Unit: "pcs", Price: 30, PriceMeasure: "dozen"},
		{Quantity: 500, Unit: "gm", Price: 40, PriceMeasure: "1kg"},
		{Quantity: 3, Unit: "bunch", Price: 10, PriceMeasure: "bunch"},
	}
	for _, want := range lines {
		cell, err := Encode(want)
		if err != nil {
			t.Fatalf("encode %+v: %v", want, err)
		}
		got, err := Decode(cell)
		if err != nil {
			t.Fatalf("decode %q: %v", cell, err)
		}
		if got != want {
			t.Fatalf("round trip mismatch: %+v -> %q -> %+v", want, cell, got)
		}
	}
}

func TestDecodeOmittedUnitRecoversMeasure(t *testing.T) {
	got, err := Decode("250@100/kg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Unit != "kg" || got.Quantity != 250 || got.Price != 100 {
		t.Fatalf("unexpected line %+v", got)
	}
}

func TestDecodeToleratesSpacing(t *testing.T) {
	got, err := Decode(" 250 gm@100 / kg ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Line{Quantity: 250, Unit: "gm", Price: 100, PriceMeasure: "kg"}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestDecodeMalformed(t *testing.T) {
	for _, cell := range []string{
		"",
		"250gm",
		"gm@100/kg",
		"250gm@100",
		"250gm@/kg",
		"250gm@100/",
		"250gm@100/kg@x",
		"2.5kg@100/kg",
		"250gm5@100/kg",
	} {
		_, err := Decode(cell)
		if !errors.Is(err, ErrMalformedCell) {
			t.Fatalf("expected malformed error for %q, got %v", cell, err)
		}
		if !pkgerrors.Is(err, pkgerrors.CodeEncoding) {
			t.Fatalf("expected encoding code for %q", cell)
		}
	}
}
