package composite

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"github.com/matzehuels/kitbash/pkg/transform"
)

// CheckerSize is the edge length, in canvas pixels, of the transparency
// checkerboard cells.
const CheckerSize = 8

// ViewOptions controls the decoration RenderView draws around the composite.
type ViewOptions struct {
	Surround     color.Color // outside the canvas
	CheckerDark  color.Color // shows through transparent canvas pixels
	CheckerLight color.Color
	Border       color.Color // 1px canvas outline; nil disables it

	// Highlight is a canvas-space rectangle outlined with HighlightColor, used
	// for the selected layer. An empty rectangle draws nothing.
	Highlight      image.Rectangle
	HighlightColor color.Color
}

// DefaultViewOptions returns the editor's standard decoration.
func DefaultViewOptions() ViewOptions {
	return ViewOptions{
		Surround:       color.NRGBA{R: 27, G: 27, B: 27, A: 255},
		CheckerDark:    color.Gray{Y: 50},
		CheckerLight:   color.Gray{Y: 100},
		Border:         color.White,
		HighlightColor: color.NRGBA{R: 255, G: 255, A: 255},
	}
}

// RenderView samples a canvas composite into a viewport of the given size as
// seen through view. Every screen pixel takes the canvas pixel under its
// centre, so pixels stay crisp at any zoom. Transparent canvas areas reveal
// a checkerboard.
func RenderView(canvas *image.RGBA, view transform.View, viewport image.Point, opts ViewOptions) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, max(viewport.X, 0), max(viewport.Y, 0)))
	if out.Bounds().Empty() {
		return out
	}
	surround := rgbaOf(opts.Surround)
	dark, light := rgbaOf(opts.CheckerDark), rgbaOf(opts.CheckerLight)
	cb := canvas.Bounds()

	// Canvas coordinate under the centre of each screen column and row.
	cols := make([]int, viewport.X)
	for x := range cols {
		cols[x] = int(math.Floor(view.ScreenToCanvas(transform.Vec{X: float64(x) + 0.5}).X))
	}
	rows := make([]int, viewport.Y)
	for y := range rows {
		rows[y] = int(math.Floor(view.ScreenToCanvas(transform.Vec{Y: float64(y) + 0.5}).Y))
	}

	for y, cy := range rows {
		line := out.Pix[y*out.Stride : y*out.Stride+viewport.X*4]
		inRow := cy >= cb.Min.Y && cy < cb.Max.Y
		for x, cx := range cols {
			px := line[x*4 : x*4+4]
			if !inRow || cx < cb.Min.X || cx >= cb.Max.X {
				copy(px, surround[:])
				continue
			}
			under := light
			if ((cx-cb.Min.X)/CheckerSize+(cy-cb.Min.Y)/CheckerSize)%2 != 0 {
				under = dark
			}
			off := canvas.PixOffset(cx, cy)
			over(px, canvas.Pix[off:off+4], under)
		}
	}

	if opts.Border != nil {
		outline(out, screenRect(view, cb), 1, opts.Border)
	}
	if !opts.Highlight.Empty() && opts.HighlightColor != nil {
		outline(out, screenRect(view, opts.Highlight), 2, opts.HighlightColor)
	}
	return out
}

// over writes the premultiplied src pixel composited over an opaque backdrop.
func over(dst, src []uint8, under [4]uint8) {
	inv := 255 - uint32(src[3])
	for i := 0; i < 3; i++ {
		dst[i] = uint8(uint32(src[i]) + (uint32(under[i])*inv+127)/255)
	}
	dst[3] = 255
}

func rgbaOf(c color.Color) [4]uint8 {
	if c == nil {
		return [4]uint8{}
	}
	m := color.RGBAModel.Convert(c).(color.RGBA)
	return [4]uint8{m.R, m.G, m.B, m.A}
}

// screenRect maps a canvas-space rectangle to the screen pixels it covers.
func screenRect(view transform.View, r image.Rectangle) image.Rectangle {
	lo := view.CanvasToScreen(transform.FromPoint(r.Min))
	hi := view.CanvasToScreen(transform.FromPoint(r.Max))
	return image.Rect(
		int(math.Round(lo.X)), int(math.Round(lo.Y)),
		int(math.Round(hi.X)), int(math.Round(hi.Y)),
	)
}

// outline strokes the inside edge of r with the given thickness.
func outline(dst *image.RGBA, r image.Rectangle, thickness int, c color.Color) {
	if r.Empty() {
		return
	}
	src := image.NewUniform(c)
	t := min(thickness, r.Dx(), r.Dy())
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t),
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y+t, r.Min.X+t, r.Max.Y-t),
		image.Rect(r.Max.X-t, r.Min.Y+t, r.Max.X, r.Max.Y-t),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(dst.Bounds()), src, image.Point{}, draw.Over)
	}
}
