package errors

import (
	"math"
	"testing"
)

func TestValidateLayerName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "head", false},
		{"with spaces", "knight helmet", false},
		{"unicode", "épée", false},

		{"empty", "", true},
		{"blank", "   ", true},
		{"too long", string(make([]byte, 300)), true},
		{"control char", "foo\x01bar", true},
		{"newline", "foo\nbar", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLayerName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateLayerName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateFinite(t *testing.T) {
	if err := ValidateFinite("x", 1.5); err != nil {
		t.Errorf("finite value rejected: %v", err)
	}
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		err := ValidateFinite("x", v)
		if !Is(err, ErrCodeInvalidTransform) {
			t.Errorf("ValidateFinite(%v) = %v, want INVALID_TRANSFORM", v, err)
		}
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple file", "head.png", false},
		{"nested", "parts/bodies/knight.png", false},
		{"dots in name", "v1..2.png", false},

		{"empty", "", true},
		{"absolute", "/etc/passwd", true},
		{"traversal", "../secret.png", true},
		{"nested traversal", "parts/../../x.png", true},
		{"backslash", "parts\\x.png", true},
		{"null byte", "x\x00.png", true},
		{"too long", string(make([]byte, 600)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"head", "head"},
		{"knight helmet", "knight_helmet"},
		{"../../evil", "_.._evil"},
		{"a/b", "a_b"},
		{"", "layer"},
		{"...", "layer"},
		{"épée", "_p_e"},
	}

	for _, tt := range tests {
		if got := SanitizeFilename(tt.input); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
