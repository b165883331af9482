package transform

import (
	"image"
	"math"

	"github.com/matzehuels/kitbash/pkg/errors"
)

// Vec is a point or delta in a continuous coordinate space.
type Vec struct {
	X, Y float64
}

// Add returns v + o.
func (v Vec) Add(o Vec) Vec { return Vec{v.X + o.X, v.Y + o.Y} }

// Sub returns v - o.
func (v Vec) Sub(o Vec) Vec { return Vec{v.X - o.X, v.Y - o.Y} }

// Mul returns v scaled by f.
func (v Vec) Mul(f float64) Vec { return Vec{v.X * f, v.Y * f} }

// Finite reports whether both components are finite.
func (v Vec) Finite() bool {
	return isFinite(v.X) && isFinite(v.Y)
}

// FromPoint converts an integer point to a Vec.
func FromPoint(p image.Point) Vec {
	return Vec{X: float64(p.X), Y: float64(p.Y)}
}

// Snap rounds v to the nearest integer, halves away from zero.
func Snap(v float64) float64 {
	return math.Round(v)
}

// SnapPoint snaps both components of v onto the canvas grid.
// Non-finite input is rejected with INVALID_TRANSFORM, as are values that do
// not fit in an int.
func SnapPoint(v Vec) (image.Point, error) {
	if err := errors.ValidateFinite("x", v.X); err != nil {
		return image.Point{}, err
	}
	if err := errors.ValidateFinite("y", v.Y); err != nil {
		return image.Point{}, err
	}
	x, y := Snap(v.X), Snap(v.Y)
	if math.Abs(x) > maxCoord || math.Abs(y) > maxCoord {
		return image.Point{}, errors.New(errors.ErrCodeInvalidTransform, "position (%v, %v) out of range", v.X, v.Y)
	}
	return image.Pt(int(x), int(y)), nil
}

// ValidatePosition checks an already integer position, such as one read
// from a saved file, against the range SnapPoint accepts.
func ValidatePosition(p image.Point) error {
	if p.X > maxCoord || p.X < -maxCoord || p.Y > maxCoord || p.Y < -maxCoord {
		return errors.New(errors.ErrCodeInvalidTransform, "position (%d, %d) out of range", p.X, p.Y)
	}
	return nil
}

// maxCoord keeps snapped coordinates far away from int overflow once they are
// multiplied by an export scale.
const maxCoord = 1 << 30

// ValidateScale checks a per-layer scale factor: finite and strictly positive.
func ValidateScale(s float64) error {
	if err := errors.ValidateFinite("scale", s); err != nil {
		return err
	}
	if s <= 0 {
		return errors.New(errors.ErrCodeInvalidTransform, "scale must be positive, got %v", s)
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
