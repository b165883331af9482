// Package layer owns the ordered collection of image layers placed on a canvas.
//
// A [Store] keeps every layer's pixels, integer anchor, scale, z-index and
// visibility. It performs no rendering and no I/O; the compositor and the
// export pipeline read it through [Store.Snapshot].
//
// # Ordering
//
// Z-indices form a dense total order 0..n-1 with lower values drawn first.
// Adding a layer puts it on top, removing one closes the gap, and
// [Store.Reorder] moves a layer while keeping everyone else's relative order.
// When foreign data carries duplicate z-indices ([Store.Restore]), ties are
// broken by insertion order.
//
// # Ownership
//
// Each layer exclusively owns its pixel buffer: [Store.Add] copies the
// caller's image and no operation mutates pixels afterwards, so a [View] can
// hand the buffer to readers without copying it.
//
// A Store is not safe for concurrent mutation. An editor session owns it and
// takes snapshots for background work.
package layer

import (
	"image"
)

// DefaultScale is the scale given to newly added layers.
const DefaultScale = 1.0

// Layer is one imported image placed on the canvas.
type Layer struct {
	ID       string
	Name     string
	Pixels   *image.NRGBA
	Position image.Point // canvas-space top-left anchor
	Scale    float64
	Z        int
	Visible  bool

	seq uint64 // insertion order, used to break z ties
}

// View is a read-only copy of a layer's state. Pixels must not be modified.
type View struct {
	ID       string
	Name     string
	Pixels   *image.NRGBA
	Position image.Point
	Scale    float64
	Z        int
	Visible  bool
}

// Size returns the native pixel dimensions of the layer's buffer.
func (v View) Size() image.Point {
	if v.Pixels == nil {
		return image.Point{}
	}
	return v.Pixels.Bounds().Size()
}

// State returns the editable transform state of the layer, without pixels.
func (v View) State() State {
	return State{
		ID:       v.ID,
		Name:     v.Name,
		Position: v.Position,
		Scale:    v.Scale,
		Z:        v.Z,
		Visible:  v.Visible,
	}
}

// State is the serialisable, pixel-free part of a layer. It is what exported
// metadata records and what [Store.Restore] applies.
type State struct {
	ID       string
	Name     string
	Position image.Point
	Scale    float64
	Z        int
	Visible  bool
}

func (l *Layer) view() View {
	return View{
		ID:       l.ID,
		Name:     l.Name,
		Pixels:   l.Pixels,
		Position: l.Position,
		Scale:    l.Scale,
		Z:        l.Z,
		Visible:  l.Visible,
	}
}

// clonePixels copies img into a fresh NRGBA buffer anchored at (0, 0).
func clonePixels(img *image.NRGBA) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):][:b.Dx()*4]
		copy(out.Pix[y*out.Stride:], src)
	}
	return out
}

// ClonePixels returns a deep copy of img anchored at (0, 0).
func ClonePixels(img *image.NRGBA) *image.NRGBA {
	if img == nil {
		return nil
	}
	return clonePixels(img)
}
