// Package pkg provides the core libraries of kitbash, a layer compositing
// and export engine for sprite fragments.
//
// # Overview
//
// kitbash assembles a sprite from image fragments. Each fragment becomes a
// layer on a fixed-size canvas with an integer position, a uniform scale, a
// z-index and a visibility flag. The composite can be previewed at any zoom
// and every visible layer exported as its own full-canvas PNG, scaled by an
// integer-friendly export factor, together with a data.json describing the
// arrangement.
//
// The typical data flow:
//
//	PNG/JPEG/GIF/BMP/TIFF/WebP bytes
//	         ↓
//	    [imageio] (decode to NRGBA)
//	         ↓
//	    [layer] store (transforms, z-order, visibility)
//	         ↓
//	    [session] (canvas, view, selection)
//	      ↙        ↘
//	[composite]    [export] (rasterize per layer)
//	 preview          ↓
//	             [archive] ZIP or directory, cached via [cache]
//
// # Quick Start
//
//	s := session.New(session.WithCanvas(session.Canvas{Width: 64, Height: 64}))
//	id, _ := s.ImportFile("head.png")
//	pos := transform.Vec{X: 10, Y: 4}
//	_ = s.Store.SetTransform(id, &pos, nil)
//
//	req, _ := s.ExportRequest(4, export.DefaultLimits())
//	res, _ := export.NewRunner(nil, nil, nil).Run(ctx, req, export.Options{})
//	_ = res.WriteZip("kitbash_layers.zip")
//
// # Main Packages
//
// ## Domain
//
// [transform] - Pixel snapping, scale validation, export-scale arithmetic,
// nearest-neighbour scaling and the zoom/pan view transform.
//
// [layer] - The layer store: insertion, removal, dense z-ordering, transform
// edits and atomic restore from saved states.
//
// [composite] - Z-ordered source-over compositing onto the canvas and the
// editor view (checkerboard, zoom, canvas border, selection outline).
//
// [export] - Export requests, per-layer rasterization, artifact naming,
// data.json metadata and the cached export runner.
//
// [session] - Canvas, layer store, view and selection bundled into one
// editing session.
//
// [project] - kitbash.toml project files: canvas settings, layer sources and
// transforms.
//
// ## Infrastructure
//
// [imageio] - Image decoding and PNG encoding.
//
// [archive] - Deterministic ZIP writing and atomic directory output.
//
// [cache] - Content-addressed artifact caching with file, Redis and null
// backends.
//
// [server] - HTTP preview and export service over a project.
//
// [config] - User configuration from TOML and KITBASH_* environment
// variables.
//
// [observability] - Export, cache and HTTP event hooks.
//
// [errors] - Coded errors and input validation.
//
// [buildinfo] - Version information injected at build time.
package pkg
