package sheet

import (
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{name: "plain digits", input: "1234", want: 1234},
		{name: "yen sign", input: "¥1234", want: 1234},
		{name: "fullwidth yen sign", input: "￥1234", want: 1234},
		{name: "thousands separator", input: "1,234", want: 1234},
		{name: "yen sign and separator", input: "¥1,234", want: 1234},
		{name: "fullwidth separator", input: "1，234", want: 1234},
		{name: "trailing en", input: "1500円", want: 1500},
		{name: "surrounding space", input: " ¥300 ", want: 300},
		{name: "zero", input: "0", want: 0},
		{name: "negative", input: "-500", want: -500},
		{name: "large", input: "¥1,234,567", want: 1234567},
		{name: "empty", input: "", wantErr: true},
		{name: "only symbol", input: "¥", wantErr: true},
		{name: "words", input: "千円", wantErr: true},
		{name: "decimal", input: "12.34", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAmount) {
					t.Fatalf("ParseAmount(%q) = (%d, %v), want ErrInvalidAmount", tt.input, got, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseAmount(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseAmountEquivalence(t *testing.T) {
	// The decorated and bare forms must agree.
	pairs := [][2]string{
		{"¥1,234", "1234"},
		{"￥98,700", "98700"},
		{"¥500", "500"},
	}
	for _, p := range pairs {
		a, err := ParseAmount(p[0])
		if err != nil {
			t.Fatalf("ParseAmount(%q): %v", p[0], err)
		}
		b, err := ParseAmount(p[1])
		if err != nil {
			t.Fatalf("ParseAmount(%q): %v", p[1], err)
		}
		if a != b {
			t.Errorf("ParseAmount(%q) = %d != ParseAmount(%q) = %d", p[0], a, p[1], b)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "¥0"},
		{5, "¥5"},
		{1234, "¥1,234"},
		{1234567, "¥1,234,567"},
		{-500, "-¥500"},
		{100000, "¥100,000"},
	}
	for _, tt := range tests {
		if got := FormatAmount(tt.in); got != tt.want {
			t.Errorf("FormatAmount(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
