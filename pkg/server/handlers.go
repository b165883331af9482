package server

import (
	"encoding/json"
	"image"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/kitbash/pkg/archive"
	"github.com/matzehuels/kitbash/pkg/buildinfo"
	"github.com/matzehuels/kitbash/pkg/cache"
	"github.com/matzehuels/kitbash/pkg/errors"
	"github.com/matzehuels/kitbash/pkg/export"
	"github.com/matzehuels/kitbash/pkg/imageio"
	"github.com/matzehuels/kitbash/pkg/layer"
	"github.com/matzehuels/kitbash/pkg/observability"
	"github.com/matzehuels/kitbash/pkg/project"
	"github.com/matzehuels/kitbash/pkg/transform"
)

type layerJSON struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	X       int     `json:"x"`
	Y       int     `json:"y"`
	Scale   float64 `json:"scale"`
	Z       int     `json:"z"`
	Visible bool    `json:"visible"`
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	Source  string  `json:"source,omitempty"`
}

func toLayerJSON(p *project.Project, v layer.View) layerJSON {
	size := v.Size()
	src, _ := p.Source(v.ID)
	return layerJSON{
		ID:      v.ID,
		Name:    v.Name,
		X:       v.Position.X,
		Y:       v.Position.Y,
		Scale:   v.Scale,
		Z:       v.Z,
		Visible: v.Visible,
		Width:   size.X,
		Height:  size.Y,
		Source:  src,
	}
}

// layerPatch is a partial layer update. Positions may be fractional and are
// snapped.
type layerPatch struct {
	X       *float64 `json:"x"`
	Y       *float64 `json:"y"`
	Scale   *float64 `json:"scale"`
	Visible *bool    `json:"visible"`
	Name    *string  `json:"name"`
	Z       *int     `json:"z"`
}

type canvasJSON struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Background  string  `json:"background"`
	ExportScale float64 `json:"export_scale"`
	Layers      int     `json:"layers"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"build":  buildinfo.Get(),
	})
}

func (s *Server) handleCanvas(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	sess := s.project.Session
	out := canvasJSON{
		Width:       sess.Canvas.Width,
		Height:      sess.Canvas.Height,
		Background:  project.FormatColor(sess.Canvas.Background),
		ExportScale: sess.ExportScale,
		Layers:      sess.Store.Len(),
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListLayers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	views := s.project.Session.Store.Snapshot()
	out := make([]layerJSON, 0, len(views))
	for _, v := range views {
		out = append(out, toLayerJSON(s.project, v))
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "multipart field \"file\" is required"))
		return
	}
	defer file.Close()

	var out layerJSON
	err = s.edit(func(p *project.Project) error {
		id, err := p.Import(file, hdr.Filename)
		if err != nil {
			return err
		}
		v, _ := p.Session.Store.Get(id)
		out = toLayerJSON(p, v)
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("layer uploaded", "id", out.ID, "name", out.Name)
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handlePatchLayer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var patch layerPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid layer patch"))
		return
	}

	var out layerJSON
	err := s.edit(func(p *project.Project) error {
		st := p.Session.Store
		before := st.States()
		if err := applyPatch(st, id, patch); err != nil {
			_ = st.Restore(before)
			return err
		}
		v, _ := st.Get(id)
		out = toLayerJSON(p, v)
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func applyPatch(st *layer.Store, id string, patch layerPatch) error {
	v, ok := st.Get(id)
	if !ok {
		return errors.New(errors.ErrCodeLayerNotFound, "layer %q not found", id)
	}
	if patch.Name != nil {
		if err := st.Rename(id, *patch.Name); err != nil {
			return err
		}
	}
	if patch.X != nil || patch.Y != nil || patch.Scale != nil {
		var pos *transform.Vec
		if patch.X != nil || patch.Y != nil {
			p := transform.FromPoint(v.Position)
			if patch.X != nil {
				p.X = *patch.X
			}
			if patch.Y != nil {
				p.Y = *patch.Y
			}
			pos = &p
		}
		if err := st.SetTransform(id, pos, patch.Scale); err != nil {
			return err
		}
	}
	if patch.Visible != nil {
		if err := st.SetVisibility(id, *patch.Visible); err != nil {
			return err
		}
	}
	if patch.Z != nil {
		if err := st.Reorder(id, *patch.Z); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) handleDeleteLayer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.edit(func(p *project.Project) error { return p.Remove(id) }); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	s.mu.Lock()
	sess := s.project.Session
	view := sess.View
	var err error
	if view.Zoom, err = floatParam(q.Get("zoom"), view.Zoom); err == nil {
		view.Zoom = transform.ClampZoom(view.Zoom)
		if view.Pan.X, err = floatParam(q.Get("pan_x"), view.Pan.X); err == nil {
			view.Pan.Y, err = floatParam(q.Get("pan_y"), view.Pan.Y)
		}
	}
	if err != nil {
		s.mu.Unlock()
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid view parameters"))
		return
	}
	defW := int(math.Ceil(float64(sess.Canvas.Width) * view.Zoom))
	defH := int(math.Ceil(float64(sess.Canvas.Height) * view.Zoom))
	width, errW := intParam(q.Get("width"), defW)
	height, errH := intParam(q.Get("height"), defH)
	if errW != nil || errH != nil || width < 1 || height < 1 ||
		max(width, height) > s.limits.MaxArtifactSide {
		s.mu.Unlock()
		s.writeError(w, errors.New(errors.ErrCodeInvalidInput,
			"viewport must be between 1 and %d pixels per side", s.limits.MaxArtifactSide))
		return
	}
	sess.View = view
	key := s.previewKey(view, image.Pt(width, height))
	if data, ok := s.cachedPreview(r, key); ok {
		s.mu.Unlock()
		writePNG(w, data, true)
		return
	}
	img := sess.Redraw(image.Pt(width, height))
	s.mu.Unlock()

	data, err := imageio.PNGBytes(img)
	if err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInternal, err, "encode preview"))
		return
	}
	if err := s.runner.Cache.Set(r.Context(), key, data, s.runner.TTL); err != nil {
		s.logger.Warn("preview cache write failed", "err", err)
	} else {
		observability.Cache().OnCacheSet(r.Context(), "preview", len(data))
	}
	writePNG(w, data, false)
}

// previewKey identifies a rendered preview: everything drawn (layers,
// canvas, background, selection) plus the view. Callers hold s.mu.
func (s *Server) previewKey(view transform.View, viewport image.Point) string {
	sess := s.project.Session
	snap := &export.Request{Scale: 1, Canvas: sess.Canvas.Size(), Layers: sess.Store.Snapshot()}
	selected, _ := sess.Selected()
	content := cache.Hash([]byte(snap.ContentHash() + "|" + project.FormatColor(sess.Canvas.Background) + "|" + selected))
	return s.runner.Keyer.PreviewKey(content, cache.PreviewKeyOpts{
		Zoom:   view.Zoom,
		PanX:   view.Pan.X,
		PanY:   view.Pan.Y,
		Width:  viewport.X,
		Height: viewport.Y,
	})
}

func (s *Server) cachedPreview(r *http.Request, key string) ([]byte, bool) {
	data, ok, err := s.runner.Cache.Get(r.Context(), key)
	if err != nil {
		s.logger.Warn("preview cache read failed", "err", err)
		return nil, false
	}
	if ok {
		observability.Cache().OnCacheHit(r.Context(), "preview")
	} else {
		observability.Cache().OnCacheMiss(r.Context(), "preview")
	}
	return data, ok
}

func writePNG(w http.ResponseWriter, data []byte, cached bool) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Kitbash-Cache", cacheState(cached))
	_, _ = w.Write(data)
}

func cacheState(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	scale, err := floatParam(q.Get("scale"), 0)
	if err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidExportScale, err, "invalid scale %q", q.Get("scale")))
		return
	}
	refresh, _ := strconv.ParseBool(q.Get("refresh"))

	s.mu.Lock()
	req, err := s.project.Session.ExportRequest(scale, s.limits)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, err)
		return
	}

	res, err := s.runner.Run(r.Context(), req, export.Options{Refresh: refresh})
	if err != nil {
		s.writeError(w, err)
		return
	}
	data, err := res.ZIP()
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+archive.DefaultZipName+`"`)
	w.Header().Set("X-Kitbash-Cache", cacheState(res.CacheHit))
	w.Header().Set("X-Kitbash-Hash", res.Hash)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func floatParam(raw string, def float64) (float64, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.ParseFloat(raw, 64)
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
