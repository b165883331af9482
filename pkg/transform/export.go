package transform

import (
	"image"
	"math"

	"github.com/matzehuels/kitbash/pkg/errors"
)

// Export scale limits.
const (
	MinExportScale     = 1.0
	MaxExportScale     = 10.0
	DefaultExportScale = 1.0
)

// ValidateExportScale rejects export scales that are not finite or fall
// outside [MinExportScale, MaxExportScale].
func ValidateExportScale(s float64) error {
	if !isFinite(s) {
		return errors.New(errors.ErrCodeInvalidExportScale, "export scale must be finite, got %v", s)
	}
	if s < MinExportScale || s > MaxExportScale {
		return errors.New(errors.ErrCodeInvalidExportScale,
			"export scale %v out of range [%v, %v]", s, MinExportScale, MaxExportScale)
	}
	return nil
}

// ClampExportScale limits s to [MinExportScale, MaxExportScale].
// NaN maps to DefaultExportScale.
func ClampExportScale(s float64) float64 {
	switch {
	case math.IsNaN(s):
		return DefaultExportScale
	case s < MinExportScale:
		return MinExportScale
	case s > MaxExportScale:
		return MaxExportScale
	}
	return s
}

// ToExport maps a canvas-space coordinate into export space, snapped to the
// export pixel grid.
func ToExport(px int, exportScale float64) int {
	return roundDim(float64(px) * exportScale)
}

// ExportSize returns the export bitmap size of a canvas, rounded.
func ExportSize(w, h int, exportScale float64) image.Point {
	return image.Pt(roundDim(float64(w)*exportScale), roundDim(float64(h)*exportScale))
}

// ScaledSize returns the pixel size of a w×h buffer drawn at scale.
// Each dimension is rounded and saturates at a large bound instead of
// overflowing; a result of zero means the layer is too small to cover a pixel.
func ScaledSize(w, h int, scale float64) image.Point {
	return image.Pt(roundDim(float64(w)*scale), roundDim(float64(h)*scale))
}

// LayerRect returns the destination rectangle of a layer, in canvas space
// when exportScale is 1 and in export space otherwise. The anchor is scaled
// and snapped; the size uses the effective scale layerScale*exportScale.
func LayerRect(pos, native image.Point, layerScale, exportScale float64) image.Rectangle {
	origin := image.Pt(ToExport(pos.X, exportScale), ToExport(pos.Y, exportScale))
	size := ScaledSize(native.X, native.Y, layerScale*exportScale)
	return image.Rectangle{Min: origin, Max: origin.Add(size)}
}

func roundDim(v float64) int {
	switch {
	case math.IsNaN(v):
		return 0
	case v > maxCoord:
		return maxCoord
	case v < -maxCoord:
		return -maxCoord
	}
	return int(math.Round(v))
}
