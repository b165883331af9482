// Package export turns a layer snapshot into engine-ready artifacts.
//
// An export produces one full-canvas bitmap per visible layer at the
// requested export scale, each holding only that layer's pixels on a
// transparent background, plus a metadata document (data.json) describing
// every layer's canvas-space transform. The set is handed to the archive
// package as ZIP entries or loose files.
//
// # Flow
//
//	req, err := export.NewRequest(scale, canvas, store.Snapshot(), export.DefaultLimits())
//	res, err := runner.Run(ctx, req, export.Options{})
//	err = res.WriteZip("kitbash_layers.zip")
//
// [NewRequest] copies the pixels of visible layers, so the editor may keep
// mutating its store while [Runner.Start] rasterizes in the background.
// Exports are all-or-nothing: any failure, cancellation included, yields no
// artifacts at all.
//
// # Coordinates
//
// Bitmaps are round(W·s)×round(H·s). A layer at canvas position p with scale
// k lands at round(p·s) with size round(native·k·s), sampled by nearest
// neighbour from its original pixels. Metadata always records p and k,
// never the export-space values, so re-importing it restores the session.
package export
