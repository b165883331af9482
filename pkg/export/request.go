package export

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"image"
	"math"

	"github.com/matzehuels/kitbash/pkg/errors"
	"github.com/matzehuels/kitbash/pkg/layer"
	"github.com/matzehuels/kitbash/pkg/transform"
)

// DefaultMaxArtifactSide bounds the edge length of export bitmaps.
const DefaultMaxArtifactSide = 5000

// DefaultMaxTotalPixels bounds the pixels rasterized by one export, summed
// over all visible layers.
const DefaultMaxTotalPixels = 1 << 30

// Limits bounds the memory an export may allocate.
type Limits struct {
	// MaxArtifactSide is the largest allowed width or height, in pixels, of
	// an export bitmap. Zero means DefaultMaxArtifactSide.
	MaxArtifactSide int
	// MaxTotalPixels caps visible layers × bitmap area. Zero means
	// DefaultMaxTotalPixels.
	MaxTotalPixels int64
}

// DefaultLimits returns the standard limits.
func DefaultLimits() Limits {
	return Limits{MaxArtifactSide: DefaultMaxArtifactSide, MaxTotalPixels: DefaultMaxTotalPixels}
}

func (l Limits) maxSide() int {
	if l.MaxArtifactSide <= 0 {
		return DefaultMaxArtifactSide
	}
	return l.MaxArtifactSide
}

func (l Limits) maxTotal() int64 {
	if l.MaxTotalPixels <= 0 {
		return DefaultMaxTotalPixels
	}
	return l.MaxTotalPixels
}

// checkAllocation reports EXPORT_ALLOCATION when a size.X×size.Y bitmap or
// the whole set of visible bitmaps is over limits.
func (l Limits) checkAllocation(size image.Point, visible int) error {
	if max(size.X, size.Y) > l.maxSide() {
		return errors.New(errors.ErrCodeExportAllocation,
			"export bitmap %dx%d exceeds the %d pixel limit", size.X, size.Y, l.maxSide())
	}
	if total := int64(size.X) * int64(size.Y) * int64(visible); total > l.maxTotal() {
		return errors.New(errors.ErrCodeExportAllocation,
			"%d layers at %dx%d exceed the %d pixel export budget", visible, size.X, size.Y, l.maxTotal())
	}
	return nil
}

// Request is an immutable export job: the scale, the canvas size and a
// snapshot of every layer in z-order. Visible layers carry private copies of
// their pixels, so edits made after NewRequest returns are never observed.
type Request struct {
	Scale  float64
	Canvas image.Point
	Layers []layer.View
}

// NewRequest validates an export and snapshots the layers.
//
// A bitmap, or a set of visible bitmaps, that would exceed limits fails with
// EXPORT_ALLOCATION before any range check, so an absurd scale is reported as the allocation problem it
// is. Otherwise the scale must lie in [transform.MinExportScale,
// transform.MaxExportScale] (INVALID_EXPORT_SCALE) and the canvas must be
// non-empty (INVALID_CANVAS). Nothing is allocated on failure.
func NewRequest(scale float64, canvas image.Point, snapshot []layer.View, limits Limits) (*Request, error) {
	if canvas.X < 1 || canvas.Y < 1 {
		return nil, errors.New(errors.ErrCodeInvalidCanvas, "canvas %dx%d is empty", canvas.X, canvas.Y)
	}
	if !math.IsNaN(scale) && !math.IsInf(scale, 0) && scale > 0 {
		visible := 0
		for _, v := range snapshot {
			if v.Visible {
				visible++
			}
		}
		size := transform.ExportSize(canvas.X, canvas.Y, scale)
		if err := limits.checkAllocation(size, visible); err != nil {
			return nil, err
		}
	}
	if err := transform.ValidateExportScale(scale); err != nil {
		return nil, err
	}

	layers := make([]layer.View, len(snapshot))
	for i, v := range snapshot {
		if v.Visible {
			v.Pixels = layer.ClonePixels(v.Pixels)
		} else {
			v.Pixels = nil
		}
		layers[i] = v
	}
	return &Request{Scale: scale, Canvas: canvas, Layers: layers}, nil
}

// Size returns the size of every export bitmap.
func (r *Request) Size() image.Point {
	return transform.ExportSize(r.Canvas.X, r.Canvas.Y, r.Scale)
}

// VisibleCount returns how many layers produce a bitmap.
func (r *Request) VisibleCount() int {
	n := 0
	for _, v := range r.Layers {
		if v.Visible {
			n++
		}
	}
	return n
}

// ContentHash identifies everything that determines the artifact bytes:
// canvas, scale, every layer's state and the pixels of visible layers.
func (r *Request) ContentHash() string {
	h := sha256.New()
	var buf [8]byte
	putInt := func(v int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(v)))
		h.Write(buf[:])
	}
	putFloat := func(f float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
		h.Write(buf[:])
	}
	putString := func(s string) {
		putInt(len(s))
		h.Write([]byte(s))
	}

	putInt(r.Canvas.X)
	putInt(r.Canvas.Y)
	putFloat(r.Scale)
	putInt(len(r.Layers))
	for _, v := range r.Layers {
		putString(v.ID)
		putString(v.Name)
		putInt(v.Position.X)
		putInt(v.Position.Y)
		putFloat(v.Scale)
		putInt(v.Z)
		if v.Visible && v.Pixels != nil {
			putInt(1)
			size := v.Size()
			putInt(size.X)
			putInt(size.Y)
			h.Write(v.Pixels.Pix[:size.Y*v.Pixels.Stride])
		} else {
			putInt(0)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
