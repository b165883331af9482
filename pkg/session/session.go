// Package session ties a layer store to a canvas and a view: one editor.
//
// A Session is what the CLI and the HTTP service operate on. It owns its
// [layer.Store] (the single mutator), tracks the selected layer, translates
// pointer gestures from screen space into store edits, and hands the
// compositor and the export pipeline what they need.
//
// A Session is not safe for concurrent use. Background exports work on an
// [export.Request] snapshot taken by [Session.ExportRequest].
package session

import (
	"image"
	"image/color"
	"io"
	"math"

	"github.com/google/uuid"

	"github.com/matzehuels/kitbash/pkg/composite"
	"github.com/matzehuels/kitbash/pkg/errors"
	"github.com/matzehuels/kitbash/pkg/export"
	"github.com/matzehuels/kitbash/pkg/imageio"
	"github.com/matzehuels/kitbash/pkg/layer"
	"github.com/matzehuels/kitbash/pkg/transform"
)

// Canvas side limits and the default size of a new canvas.
const (
	MinCanvasSide     = 16
	MaxCanvasSide     = 1024
	DefaultCanvasSide = 64
)

// Canvas is the fixed-size target area layers are placed on. Background only
// affects previews; export bitmaps are always transparent.
type Canvas struct {
	Width      int
	Height     int
	Background color.NRGBA
}

// Size returns the canvas dimensions.
func (c Canvas) Size() image.Point {
	return image.Pt(c.Width, c.Height)
}

// ValidateCanvasSize checks both sides against [MinCanvasSide, MaxCanvasSide].
func ValidateCanvasSize(w, h int) error {
	if w < MinCanvasSide || w > MaxCanvasSide || h < MinCanvasSide || h > MaxCanvasSide {
		return errors.New(errors.ErrCodeInvalidCanvas,
			"canvas %dx%d outside %d..%d", w, h, MinCanvasSide, MaxCanvasSide)
	}
	return nil
}

// Session is one editing session.
type Session struct {
	ID          string
	Canvas      Canvas
	Store       *layer.Store
	View        transform.View
	ExportScale float64

	selected string
}

// Option configures a Session.
type Option func(*Session)

// WithCanvas sets the initial canvas. The size is not range checked, so
// tests may use tiny canvases.
func WithCanvas(c Canvas) Option {
	return func(s *Session) { s.Canvas = c }
}

// WithStore replaces the empty default store.
func WithStore(st *layer.Store) Option {
	return func(s *Session) {
		if st != nil {
			s.Store = st
		}
	}
}

// WithZoom sets the initial preview zoom, clamped.
func WithZoom(z float64) Option {
	return func(s *Session) { s.View.Zoom = transform.ClampZoom(z) }
}

// New returns an empty session with a 64×64 transparent canvas, zoom 4 and
// export scale 1.
func New(opts ...Option) *Session {
	s := &Session{
		ID:          uuid.NewString(),
		Canvas:      Canvas{Width: DefaultCanvasSide, Height: DefaultCanvasSide},
		Store:       layer.NewStore(),
		View:        transform.NewView(transform.DefaultZoom),
		ExportScale: transform.DefaultExportScale,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Import decodes an image and adds it as the new top layer, which becomes
// the selection.
func (s *Session) Import(r io.Reader, filename string) (string, error) {
	dec, err := imageio.Decode(r, filename)
	if err != nil {
		return "", err
	}
	return s.add(dec)
}

// ImportFile is Import for a file on disk.
func (s *Session) ImportFile(path string) (string, error) {
	dec, err := imageio.DecodeFile(path)
	if err != nil {
		return "", err
	}
	return s.add(dec)
}

func (s *Session) add(dec *imageio.Decoded) (string, error) {
	id, err := s.Store.Add(dec.Pixels, dec.Name)
	if err != nil {
		return "", err
	}
	s.selected = id
	return id, nil
}

// Remove deletes a layer, clearing the selection if it pointed there.
func (s *Session) Remove(id string) error {
	if err := s.Store.Remove(id); err != nil {
		return err
	}
	if s.selected == id {
		s.selected = ""
	}
	return nil
}

// Selected returns the selected layer ID, if any.
func (s *Session) Selected() (string, bool) {
	if s.selected == "" {
		return "", false
	}
	if _, ok := s.Store.Get(s.selected); !ok {
		s.selected = ""
		return "", false
	}
	return s.selected, true
}

// Select makes id the selected layer.
func (s *Session) Select(id string) error {
	if _, ok := s.Store.Get(id); !ok {
		return errors.New(errors.ErrCodeLayerNotFound, "layer %q not found", id)
	}
	s.selected = id
	return nil
}

// ClearSelection deselects.
func (s *Session) ClearSelection() {
	s.selected = ""
}

// SelectAt selects the topmost visible layer under a screen point, as a
// click does. Clicking empty canvas clears the selection.
func (s *Session) SelectAt(screen transform.Vec) (string, bool) {
	c := s.View.ScreenToCanvas(screen)
	p := image.Pt(int(math.Floor(c.X)), int(math.Floor(c.Y)))
	id, ok := composite.HitTest(s.Store.Snapshot(), p)
	s.selected = id
	return id, ok
}

// Drag moves a layer by a pointer delta in screen pixels. The delta is
// converted to canvas units through the current zoom and the result snapped.
func (s *Session) Drag(id string, screenDelta transform.Vec) error {
	return s.Store.Translate(id, s.View.ScreenDelta(screenDelta))
}

// Pan moves the view by a screen-space delta.
func (s *Session) Pan(screenDelta transform.Vec) {
	s.View = s.View.PanBy(screenDelta)
}

// ZoomAt zooms by factor around a screen-space anchor.
func (s *Session) ZoomAt(anchor transform.Vec, factor float64) {
	s.View = s.View.ZoomAt(anchor, factor)
}

// SetZoom sets the zoom, clamped, keeping the pan.
func (s *Session) SetZoom(z float64) {
	s.View.Zoom = transform.ClampZoom(z)
}

// CenterView zooms and pans so the canvas sits in the middle of a viewport.
func (s *Session) CenterView(viewport image.Point) {
	s.View = s.View.CenterOn(s.Canvas.Width, s.Canvas.Height, viewport.X, viewport.Y)
}

// Resize changes the canvas size. Layers keep their positions; anything now
// outside the canvas is simply clipped when drawn.
func (s *Session) Resize(w, h int) error {
	if err := ValidateCanvasSize(w, h); err != nil {
		return err
	}
	s.Canvas.Width, s.Canvas.Height = w, h
	return nil
}

// SetBackground sets the preview background colour.
func (s *Session) SetBackground(c color.NRGBA) {
	s.Canvas.Background = c
}

// SetExportScale sets the default export scale, rejecting values outside
// the export range.
func (s *Session) SetExportScale(scale float64) error {
	if err := transform.ValidateExportScale(scale); err != nil {
		return err
	}
	s.ExportScale = scale
	return nil
}

// Composite renders the canvas with every visible layer.
func (s *Session) Composite() *image.RGBA {
	return composite.Render(s.Canvas.Size(), s.Canvas.Background, s.Store.Snapshot())
}

// Redraw renders what the editor shows in a viewport: the composite seen
// through the view, with the selected layer outlined.
func (s *Session) Redraw(viewport image.Point) *image.RGBA {
	opts := composite.DefaultViewOptions()
	if id, ok := s.Selected(); ok {
		v, _ := s.Store.Get(id)
		opts.Highlight = transform.LayerRect(v.Position, v.Size(), v.Scale, 1)
	}
	return composite.RenderView(s.Composite(), s.View, viewport, opts)
}

// ExportRequest snapshots the session for export at scale. A scale of zero
// uses the session's export scale.
func (s *Session) ExportRequest(scale float64, limits export.Limits) (*export.Request, error) {
	if scale == 0 {
		scale = s.ExportScale
	}
	return export.NewRequest(scale, s.Canvas.Size(), s.Store.Snapshot(), limits)
}

// ApplyMetadata restores layer transforms from an exported metadata
// document. Records are matched to layers by ID, then by name. It returns
// how many layers were updated and the records that matched nothing.
func (s *Session) ApplyMetadata(recs export.Records) (int, export.Records, error) {
	if err := recs.Validate(); err != nil {
		return 0, nil, err
	}
	matched, unmatched := recs.Match(s.Store.Snapshot())
	if err := s.Store.Restore(matched); err != nil {
		return 0, nil, err
	}
	return len(matched), unmatched, nil
}
