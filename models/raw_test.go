package models

import (
	"reflect"
	"strings"
	"testing"
)

func TestExtractNumber(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"123 456 km", 123456},
		{"123.456", 123456},
		{"123,456", 123456},
		{"15 500 EUR", 15500},
		{"2019", 2019},
		{"", 0},
		{"N/A", 0},
		{"brak danych", 0},
		{"0 km", 0},
	}

	for _, tt := range tests {
		got := ExtractNumber(tt.input)
		if got != tt.expected {
			t.Errorf("ExtractNumber(%q) = %d, expected %d", tt.input, got, tt.expected)
		}
	}
}

func TestExtractNumberLongDigitRuns(t *testing.T) {
	// Concatenated VIN/phone digit runs must saturate, never wrap negative.
	tests := []string{
		strings.Repeat("9", 40),
		"tel 0722 123 456 0733 987 654 0744 555 111",
		"18446744073709551616",
	}
	for _, input := range tests {
		got := ExtractNumber(input)
		if got <= 0 {
			t.Errorf("ExtractNumber(%q) = %d, expected a positive saturated value", input, got)
		}
	}

	// The cap stops accumulation one digit past it, deterministically.
	if got := ExtractNumber(strings.Repeat("9", 40)); got != 999999999 {
		t.Errorf("saturated value = %d, expected 999999999", got)
	}
}

func TestRawListingString(t *testing.T) {
	raw := RawListing{
		"rok-produkcji": "2019",
		"fuel_type":     "",
		"paliwo":        "diesel",
		"year_num":      2019,
	}

	if v, ok := raw.String("year", "rok-produkcji"); !ok || v != "2019" {
		t.Errorf("alias fallthrough: got %q, %v", v, ok)
	}
	// Empty strings do not satisfy a key; resolution moves on.
	if v, ok := raw.String("fuel_type", "paliwo"); !ok || v != "diesel" {
		t.Errorf("empty-string skip: got %q, %v", v, ok)
	}
	// Non-string values never match String.
	if _, ok := raw.String("year_num"); ok {
		t.Error("String matched a non-string value")
	}
	if _, ok := raw.String("missing"); ok {
		t.Error("String matched a missing key")
	}
}

func TestRawListingInt(t *testing.T) {
	raw := RawListing{
		"mileage":  float64(98000), // JSON decoding shape
		"przebieg": "45 000 km",
		"year":     2021,
		"bogus":    "n/a",
	}

	if v, ok := raw.Int("mileage"); !ok || v != 98000 {
		t.Errorf("float64 value: got %d, %v", v, ok)
	}
	if v, ok := raw.Int("km", "przebieg"); !ok || v != 45000 {
		t.Errorf("numeric string: got %d, %v", v, ok)
	}
	if v, ok := raw.Int("year"); !ok || v != 2021 {
		t.Errorf("native int: got %d, %v", v, ok)
	}
	if _, ok := raw.Int("bogus"); ok {
		t.Error("Int matched a digit-free string")
	}
}

func TestRawListingStrings(t *testing.T) {
	raw := RawListing{
		"images":  []any{"a.jpg", 7, "b.jpg"},
		"gallery": []string{"c.jpg"},
		"empty":   []any{},
	}

	got, ok := raw.Strings("images")
	if !ok || !reflect.DeepEqual(got, []string{"a.jpg", "b.jpg"}) {
		t.Errorf("[]any coercion: got %v, %v", got, ok)
	}
	if got, ok := raw.Strings("photos", "gallery"); !ok || len(got) != 1 {
		t.Errorf("alias fallthrough: got %v, %v", got, ok)
	}
	if _, ok := raw.Strings("empty"); ok {
		t.Error("Strings matched an empty list")
	}
}
