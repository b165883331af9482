package errors

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxNameLength bounds layer names, which end up in archive entry names.
const maxNameLength = 128

// ValidateLayerName validates a display name for a layer.
// Names are free-form labels, but they must be printable and bounded.
func ValidateLayerName(name string) error {
	if strings.TrimSpace(name) == "" {
		return New(ErrCodeInvalidLayer, "layer name cannot be empty")
	}
	if len(name) > maxNameLength {
		return New(ErrCodeInvalidLayer, "layer name too long (max %d characters)", maxNameLength)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidLayer, "layer name contains invalid control characters")
		}
	}
	return nil
}

// FitLayerName turns an arbitrary label, such as a file name, into a name
// that passes ValidateLayerName when it is not blank: control characters
// become '_' and the result is cut to the length limit on a rune boundary.
func FitLayerName(name string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return '_'
		}
		return r
	}, name)
	for len(name) > maxNameLength {
		_, size := utf8.DecodeLastRuneInString(name)
		name = name[:len(name)-size]
	}
	return name
}

// ValidateFinite rejects NaN and infinite values.
// field names the offending value in the returned message.
func ValidateFinite(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return New(ErrCodeInvalidTransform, "%s must be finite, got %v", field, v)
	}
	return nil
}

// ValidatePath validates a layer source path stored in a project file.
// It prevents path traversal out of the project directory.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative to the project file)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /)")
	}

	for _, part := range strings.Split(path, "/") {
		if part == ".." {
			return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
		}
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}

// SanitizeFilename turns a layer name into a safe archive entry component.
// Anything outside [A-Za-z0-9._-] becomes an underscore; empty results become "layer".
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "layer"
	}
	if len(out) > maxNameLength {
		out = out[:maxNameLength]
	}
	return out
}
