package expression

import (
	"testing"
)

func TestAddPrefixes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		prefix   string
		expected string
		wantErr  error
	}{
		{"Empty input", "", "DDL", "", nil},
		{"Single number", "7", "DDL", "DDL_7", nil},
		{"Simple sum", "1+2-3", "DDL", "DDL_1 + DDL_2 - DDL_3", nil},
		{"Spaces normalised", "  1 +2   -  3 ", "DDL", "DDL_1 + DDL_2 - DDL_3", nil},
		{"Prefix trimmed", "1+2", "  ABC ", "ABC_1 + ABC_2", nil},
		{"Blank prefix", "1+2", "   ", "1 + 2", nil},
		{"Leading operator", "-5+6", "DDL", "- DDL_5 + DDL_6", nil},
		{"Trailing operator", "5+", "DDL", "DDL_5 +", nil},
		{"Doubled operator", "1++2", "DDL", "DDL_1 +  + DDL_2", nil},
		{"Spaced digits kept", "1 2+3", "DDL", "1 2 + DDL_3", nil},
		{"Only operators", "+-", "DDL", "+  -", nil},
		{"Multi-digit", "100-2000", "X", "X_100 - X_2000", nil},
		{"Letters rejected", "1+a", "DDL", "", ErrInvalidCharacters},
		{"Multiplication rejected", "2*3", "DDL", "", ErrInvalidCharacters},
		{"Whitespace only", "   ", "DDL", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AddPrefixes(tt.input, tt.prefix)
			if err != tt.wantErr {
				t.Fatalf("AddPrefixes(%q, %q) error = %v; want %v", tt.input, tt.prefix, err, tt.wantErr)
			}
			if got != tt.expected {
				t.Errorf("AddPrefixes(%q, %q) = %q; want %q", tt.input, tt.prefix, got, tt.expected)
			}
		})
	}
}
