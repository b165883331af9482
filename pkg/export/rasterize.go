package export

import (
	"context"
	"image"
	"time"

	"github.com/matzehuels/kitbash/pkg/errors"
	"github.com/matzehuels/kitbash/pkg/layer"
	"github.com/matzehuels/kitbash/pkg/observability"
	"github.com/matzehuels/kitbash/pkg/transform"
)

// Bitmap is one rasterized layer: a full-canvas transparent bitmap at export
// resolution holding only that layer's pixels.
type Bitmap struct {
	Layer  layer.View
	Name   string // archive entry name
	Pixels *image.NRGBA
}

// Rasterize renders every visible layer of req into its own bitmap, in
// z-order. Each layer is resampled from its original pixels with effective
// scale layer.Scale*req.Scale and anchored at round(position*req.Scale).
// A layer whose scaled size rounds to zero yields a fully transparent bitmap.
//
// All bitmaps are held at once; Package streams them instead.
// On cancellation nothing is returned and the error has code CANCELED.
func Rasterize(ctx context.Context, req *Request) ([]Bitmap, error) {
	out := make([]Bitmap, 0, req.VisibleCount())
	err := eachBitmap(ctx, req, func(b Bitmap) error {
		b.Pixels = layer.ClonePixels(b.Pixels)
		out = append(out, b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// eachBitmap rasterizes the visible layers of req one at a time into a
// single reused bitmap and calls fn with each. fn must not keep b.Pixels.
func eachBitmap(ctx context.Context, req *Request, fn func(b Bitmap) error) error {
	size := req.Size()
	var dst *image.NRGBA
	for _, v := range req.Layers {
		if !v.Visible {
			continue
		}
		if err := ctx.Err(); err != nil {
			return canceled(err)
		}
		if dst == nil {
			dst = image.NewNRGBA(image.Rect(0, 0, size.X, size.Y))
		} else {
			clear(dst.Pix)
		}
		start := time.Now()
		if err := stamp(ctx, dst, v, req.Scale); err != nil {
			return err
		}
		observability.Export().OnLayerRasterized(ctx, v.ID, size.X, size.Y, time.Since(start))
		if err := fn(Bitmap{Layer: v, Name: ArtifactName(v.Z, v.Name), Pixels: dst}); err != nil {
			return err
		}
	}
	return nil
}

// RasterizeLayer stamps a single layer into a transparent size.X×size.Y
// bitmap at the given export scale.
func RasterizeLayer(ctx context.Context, v layer.View, size image.Point, exportScale float64) (*image.NRGBA, error) {
	dst := image.NewNRGBA(image.Rect(0, 0, size.X, size.Y))
	if err := stamp(ctx, dst, v, exportScale); err != nil {
		return nil, err
	}
	return dst, nil
}

// stamp writes v into the transparent bitmap dst.
func stamp(ctx context.Context, dst *image.NRGBA, v layer.View, exportScale float64) error {
	if v.Pixels == nil {
		return nil
	}
	rect := transform.LayerRect(v.Position, v.Size(), v.Scale, exportScale)
	if rect.Empty() {
		return nil
	}
	if _, err := transform.ScaleInto(ctx, dst, rect, v.Pixels); err != nil {
		return canceled(err)
	}
	return nil
}

func canceled(err error) error {
	return errors.Wrap(errors.ErrCodeCanceled, err, "export canceled")
}
