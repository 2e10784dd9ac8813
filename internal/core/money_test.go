package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"plain", "42.50", "42.5", false},
		{"negative becomes positive", "-42.50", "42.5", false},
		{"decimal comma", "12,34", "12.34", false},
		{"rounding", "10.999", "11", false},
		{"integer", "100", "100", false},
		{"whitespace", "  5.00 ", "5", false},
		{"zero rejected", "0", "", true},
		{"empty rejected", "", "", true},
		{"garbage rejected", "abc", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseAmount(%q): expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q): unexpected error: %v", tt.input, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeAmount(t *testing.T) {
	d := decimal.RequireFromString("-42.505")
	if got := NormalizeAmount(d).String(); got != "42.51" {
		t.Errorf("NormalizeAmount(-42.505) = %s, want 42.51", got)
	}
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		name  string
		part  string
		total string
		want  int
	}{
		{"half", "50", "100", 50},
		{"rounds up", "1", "3", 33},
		{"rounds half away", "1", "8", 13},
		{"full", "100", "100", 100},
		{"zero total", "10", "0", 0},
		{"negative total", "10", "-5", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			part := decimal.RequireFromString(tt.part)
			total := decimal.RequireFromString(tt.total)
			if got := Percentage(part, total); got != tt.want {
				t.Errorf("Percentage(%s, %s) = %d, want %d", tt.part, tt.total, got, tt.want)
			}
		})
	}
}
