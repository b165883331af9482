package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// ExportKeyOpts are the export settings that change artifact bytes.
type ExportKeyOpts struct {
	Scale  float64 `json:"scale"`
	Format string  `json:"format"` // "zip" or "dir"
}

// PreviewKeyOpts are the view settings that change a rendered preview.
type PreviewKeyOpts struct {
	Zoom   float64 `json:"zoom"`
	PanX   float64 `json:"pan_x"`
	PanY   float64 `json:"pan_y"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
}

// Keyer builds cache keys. contentHash identifies the layer snapshot and
// canvas the output was produced from.
type Keyer interface {
	ExportKey(contentHash string, opts ExportKeyOpts) string
	PreviewKey(contentHash string, opts PreviewKeyOpts) string
}

// DefaultKeyer produces "export:<hash>" and "preview:<hash>" keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// ExportKey returns the key of an export artifact set.
func (DefaultKeyer) ExportKey(contentHash string, opts ExportKeyOpts) string {
	return hashKey("export", contentHash, opts)
}

// PreviewKey returns the key of a rendered preview image.
func (DefaultKeyer) PreviewKey(contentHash string, opts PreviewKeyOpts) string {
	return hashKey("preview", contentHash, opts)
}

// ScopedKeyer prefixes every key, separating projects that share a backend.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// ExportKey generates a prefixed export key.
func (k *ScopedKeyer) ExportKey(contentHash string, opts ExportKeyOpts) string {
	return k.prefix + k.inner.ExportKey(contentHash, opts)
}

// PreviewKey generates a prefixed preview key.
func (k *ScopedKeyer) PreviewKey(contentHash string, opts PreviewKeyOpts) string {
	return k.prefix + k.inner.PreviewKey(contentHash, opts)
}

// Hash returns the hex SHA-256 of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// hashKey builds "<kind>:<sha256 of the JSON-encoded parts>".
func hashKey(kind string, parts ...any) string {
	data, _ := json.Marshal(parts)
	return kind + ":" + Hash(data)
}
