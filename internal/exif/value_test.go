package exif

import (
	"encoding/json"
	"math"
	"testing"
)

func TestFormat(t *testing.T) {
	cases := []struct {
		name  string
		value Value
		want  string
	}{
		{"uint", Uint(6), "6"},
		{"int", Int(-3), "-3"},
		{"string", String("Canon"), "Canon"},
		{"rational", newRational(1, 100), "0.01 [1/100]"},
		{"float", Float(-0.5), "-0.5"},
		{"sequence", Uints{1, 2, 3}, "[3 values]"},
		{"bytes", Bytes{0, 1}, "[2 values]"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Format(tc.value); got != tc.want {
				t.Fatalf("Format(%#v) = %q, want %q", tc.value, got, tc.want)
			}
		})
	}
}

func TestDirectoryJSON(t *testing.T) {
	dir := Directory{
		"Orientation":     Uint(6),
		"ExifVersion":     String("0230"),
		"BitsPerSample":   Uints{8, 8, 8},
		"MakerNote":       Bytes{1, 2},
		"BrightnessValue": Float(math.NaN()),
		"Shifts":          Floats{0.5, math.Inf(-1)},
	}

	got, err := json.Marshal(dir)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	want := `{"BitsPerSample":[8,8,8],"BrightnessValue":null,"ExifVersion":"0230","MakerNote":[1,2],"Orientation":6,"Shifts":[0.5,null]}`
	if string(got) != want {
		t.Fatalf("json = %s\nwant %s", got, want)
	}
}
