// Package transform implements the coordinate and scaling rules shared by the
// compositor and the export pipeline.
//
// Three coordinate spaces are involved:
//
//   - Canvas space: the logical pixel grid of the output, origin top-left,
//     integer addressable. Layer anchors always live on this grid.
//   - Screen space: canvas space seen through a [View]:
//     screen = (canvas - pan) * zoom, canvas = screen / zoom + pan.
//   - Export space: canvas space multiplied by an export scale in [1, 10].
//
// # Integer snapping
//
// [Snap] rounds half away from zero. It is idempotent, so snapping a value
// that is already on the grid is a no-op:
//
//	Snap(Snap(x)) == Snap(x)
//
// # Nearest-neighbour sampling
//
// For a source of width sw scaled to tw, destination column dx reads source
// column floor(dx*sw/tw), clamped to [0, sw-1] (rows likewise). The index is
// computed in integer arithmetic so the mapping is exact for every size, and
// no output pixel is ever a blend of input pixels. The same [Sampler] is used
// for the preview and for export; only the target size differs.
package transform
