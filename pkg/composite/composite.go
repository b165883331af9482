// Package composite flattens a layer snapshot into a single bitmap for
// on-screen preview.
//
// [Render] produces the canvas-space composite: the background fill followed
// by every visible layer, in ascending z-order, sampled with nearest
// neighbour and blended source-over. [RenderView] then maps that composite
// onto a screen viewport through a [transform.View].
//
// The composite is a preview surface only. Export artifacts are rasterized
// per layer by the export package and never derived from it.
package composite

import (
	"cmp"
	"context"
	"image"
	"image/color"
	"slices"

	"golang.org/x/image/draw"

	"github.com/matzehuels/kitbash/pkg/layer"
	"github.com/matzehuels/kitbash/pkg/transform"
)

// Render composites views onto a size.X×size.Y canvas filled with bg.
// Invisible layers are skipped. A non-positive size yields an empty image.
func Render(size image.Point, bg color.Color, views []layer.View) *image.RGBA {
	img, _ := RenderContext(context.Background(), size, bg, views)
	return img
}

// RenderContext is Render with cancellation. On cancellation the partial
// image is discarded and ctx's error returned.
func RenderContext(ctx context.Context, size image.Point, bg color.Color, views []layer.View) (*image.RGBA, error) {
	bounds := image.Rect(0, 0, max(size.X, 0), max(size.Y, 0))
	dst := image.NewRGBA(bounds)
	if bg == nil {
		bg = color.Transparent
	}
	draw.Draw(dst, bounds, image.NewUniform(bg), image.Point{}, draw.Src)

	for _, v := range ordered(views) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stamp(ctx, dst, v); err != nil {
			return nil, err
		}
	}
	return dst, nil
}

// stamp samples one layer into a scratch buffer covering only its visible
// part of the canvas, then blends it over dst.
func stamp(ctx context.Context, dst *image.RGBA, v layer.View) error {
	if !v.Visible || v.Pixels == nil {
		return nil
	}
	rect := transform.LayerRect(v.Position, v.Size(), v.Scale, 1)
	clip := rect.Intersect(dst.Bounds())
	if clip.Empty() {
		return nil
	}
	scratch := image.NewNRGBA(clip)
	if _, err := transform.ScaleInto(ctx, scratch, rect, v.Pixels); err != nil {
		return err
	}
	draw.Draw(dst, clip, scratch, clip.Min, draw.Over)
	return nil
}

// ordered returns the visible views sorted by ascending z. Snapshots from a
// store are already sorted; the copy keeps foreign slices untouched.
func ordered(views []layer.View) []layer.View {
	out := make([]layer.View, 0, len(views))
	for _, v := range views {
		if v.Visible {
			out = append(out, v)
		}
	}
	slices.SortStableFunc(out, func(a, b layer.View) int { return cmp.Compare(a.Z, b.Z) })
	return out
}

// HitTest returns the ID of the topmost visible layer whose destination
// rectangle contains the canvas point p.
func HitTest(views []layer.View, p image.Point) (string, bool) {
	vs := ordered(views)
	for i := len(vs) - 1; i >= 0; i-- {
		v := vs[i]
		if p.In(transform.LayerRect(v.Position, v.Size(), v.Scale, 1)) {
			return v.ID, true
		}
	}
	return "", false
}
