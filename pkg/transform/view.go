package transform

// Zoom limits. Values outside the range are clamped rather than rejected.
const (
	MinZoom     = 0.1
	MaxZoom     = 32.0
	DefaultZoom = 4.0
)

// View is the presentation-only pan/zoom state of an editor.
// It never affects exported pixels.
type View struct {
	Pan  Vec     // canvas-space point shown at the screen origin
	Zoom float64 // screen pixels per canvas pixel
}

// NewView returns a view at the origin with the given zoom, clamped.
func NewView(zoom float64) View {
	return View{Zoom: ClampZoom(zoom)}
}

// ClampZoom limits z to [MinZoom, MaxZoom]. Non-finite values fall back to
// DefaultZoom.
func ClampZoom(z float64) float64 {
	switch {
	case !isFinite(z):
		return DefaultZoom
	case z < MinZoom:
		return MinZoom
	case z > MaxZoom:
		return MaxZoom
	}
	return z
}

func (v View) zoom() float64 {
	return ClampZoom(v.Zoom)
}

// CanvasToScreen maps a canvas-space point to screen space.
func (v View) CanvasToScreen(c Vec) Vec {
	return c.Sub(v.Pan).Mul(v.zoom())
}

// ScreenToCanvas maps a screen-space point back to canvas space.
func (v View) ScreenToCanvas(s Vec) Vec {
	return s.Mul(1 / v.zoom()).Add(v.Pan)
}

// ScreenDelta converts a pointer movement in screen pixels into a canvas delta.
func (v View) ScreenDelta(d Vec) Vec {
	return d.Mul(1 / v.zoom())
}

// PanBy moves the view by a screen-space delta, as a middle-button drag does:
// the content follows the pointer.
func (v View) PanBy(screenDelta Vec) View {
	if !screenDelta.Finite() {
		return v
	}
	v.Pan = v.Pan.Sub(v.ScreenDelta(screenDelta))
	return v
}

// ZoomAt multiplies the zoom by factor while keeping the canvas point under
// the screen-space anchor fixed.
func (v View) ZoomAt(anchor Vec, factor float64) View {
	if !isFinite(factor) || factor <= 0 || !anchor.Finite() {
		return v
	}
	fixed := v.ScreenToCanvas(anchor)
	v.Zoom = ClampZoom(v.zoom() * factor)
	v.Pan = fixed.Sub(anchor.Mul(1 / v.Zoom))
	return v
}

// CenterOn returns a view whose zoom is unchanged and whose pan centres a
// canvas of the given size inside a viewport.
func (v View) CenterOn(canvasW, canvasH, viewportW, viewportH int) View {
	z := v.zoom()
	v.Zoom = z
	v.Pan = Vec{
		X: float64(canvasW)/2 - float64(viewportW)/(2*z),
		Y: float64(canvasH)/2 - float64(viewportH)/(2*z),
	}
	return v
}
