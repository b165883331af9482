package transform

import (
	"context"
	"image"
)

// cancelCheckRows is how many destination rows ScaleInto writes between
// context checks.
const cancelCheckRows = 64

// SourceIndex returns the source index sampled by destination index d when a
// span of s source pixels is stretched over t destination pixels:
// floor(d*s/t) clamped to [0, s-1]. It returns 0 for empty spans.
func SourceIndex(d, s, t int) int {
	if s <= 0 || t <= 0 || d <= 0 {
		return 0
	}
	i := int(int64(d) * int64(s) / int64(t))
	if i >= s {
		return s - 1
	}
	return i
}

// ScaleNearest returns src resampled to tw×th with nearest-neighbour
// sampling. The result has its origin at (0, 0).
func ScaleNearest(src *image.NRGBA, tw, th int) *image.NRGBA {
	if tw < 0 {
		tw = 0
	}
	if th < 0 {
		th = 0
	}
	dst := image.NewNRGBA(image.Rect(0, 0, tw, th))
	_, _ = ScaleInto(context.Background(), dst, dst.Bounds(), src)
	return dst
}

// ScaleInto stamps src, resampled to fill rect, into dst. Only the part of
// rect that intersects dst's bounds is written, and it is written verbatim
// (no blending), so a transparent destination ends up holding exactly the
// layer's pixels. Sampling is relative to the unclipped rect, so a partially
// visible layer shows the same pixels it would if the destination were
// larger. It returns the rectangle actually written.
//
// ctx is checked every few rows; on cancellation the partially written dst
// must be discarded by the caller.
func ScaleInto(ctx context.Context, dst *image.NRGBA, rect image.Rectangle, src *image.NRGBA) (image.Rectangle, error) {
	clip := rect.Intersect(dst.Bounds())
	sb := src.Bounds()
	if clip.Empty() || sb.Empty() {
		return image.Rectangle{}, nil
	}
	sw, sh := sb.Dx(), sb.Dy()
	tw, th := rect.Dx(), rect.Dy()

	// Byte offset of each destination column's source pixel within a source row.
	cols := make([]int, clip.Dx())
	for i := range cols {
		cols[i] = SourceIndex(clip.Min.X+i-rect.Min.X, sw, tw) * 4
	}

	prevSY := -1
	var prevRow []uint8
	for y := clip.Min.Y; y < clip.Max.Y; y++ {
		if (y-clip.Min.Y)%cancelCheckRows == 0 {
			if err := ctx.Err(); err != nil {
				return image.Rectangle{}, err
			}
		}
		start := dst.PixOffset(clip.Min.X, y)
		row := dst.Pix[start : start+clip.Dx()*4]

		sy := SourceIndex(y-rect.Min.Y, sh, th)
		if sy == prevSY {
			copy(row, prevRow)
			continue
		}
		srcStart := src.PixOffset(sb.Min.X, sb.Min.Y+sy)
		srcRow := src.Pix[srcStart : srcStart+sw*4]
		for i, off := range cols {
			copy(row[i*4:i*4+4], srcRow[off:off+4])
		}
		prevSY, prevRow = sy, row
	}
	return clip, nil
}
