package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/kitbash/pkg/archive"
	"github.com/matzehuels/kitbash/pkg/cache"
	"github.com/matzehuels/kitbash/pkg/errors"
	"github.com/matzehuels/kitbash/pkg/export"
	"github.com/matzehuels/kitbash/pkg/imageio"
	"github.com/matzehuels/kitbash/pkg/project"
)

func pngOf(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	data, err := imageio.PNGBytes(img)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func newTestServer(t *testing.T, opts Options) (*Server, *project.Project) {
	t.Helper()
	p, err := project.Init(filepath.Join(t.TempDir(), project.FileName), 16, 16)
	if err != nil {
		t.Fatal(err)
	}
	return New(p, opts), p
}

func addLayer(t *testing.T, p *project.Project, name string, w, h int) string {
	t.Helper()
	id, err := p.Import(bytes.NewReader(pngOf(t, w, h, color.NRGBA{R: 255, A: 255})), name)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func do(t *testing.T, s *Server, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorJSON {
	t.Helper()
	var e errorJSON
	if err := json.NewDecoder(rec.Body).Decode(&e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return e
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	rec := do(t, s, http.MethodGet, "/healthz", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestListLayers(t *testing.T) {
	s, p := newTestServer(t, Options{})
	a := addLayer(t, p, "head.png", 2, 3)
	b := addLayer(t, p, "body.png", 4, 4)

	rec := do(t, s, http.MethodGet, "/api/v1/layers", nil, "")
	var got []layerJSON
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != a || got[1].ID != b {
		t.Fatalf("layers = %+v", got)
	}
	if got[0].Width != 2 || got[0].Height != 3 || got[0].Source != "layers/head.png" {
		t.Errorf("head = %+v", got[0])
	}
}

func TestCanvas(t *testing.T) {
	s, p := newTestServer(t, Options{})
	addLayer(t, p, "a.png", 1, 1)
	rec := do(t, s, http.MethodGet, "/api/v1/canvas", nil, "")
	var got canvasJSON
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Width != 16 || got.Height != 16 || got.Layers != 1 || got.ExportScale != 1 {
		t.Errorf("canvas = %+v", got)
	}
}

func TestUpload(t *testing.T) {
	s, p := newTestServer(t, Options{Autosave: true})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("file", "sword.png")
	_, _ = fw.Write(pngOf(t, 5, 2, color.NRGBA{G: 255, A: 255}))
	_ = mw.Close()

	rec := do(t, s, http.MethodPost, "/api/v1/layers", &body, mw.FormDataContentType())
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var got layerJSON
	_ = json.NewDecoder(rec.Body).Decode(&got)
	if got.Name != "sword" || got.Width != 5 {
		t.Errorf("layer = %+v", got)
	}

	reopened, err := project.Open(p.Path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.Session.Store.Len() != 1 {
		t.Error("upload was not autosaved")
	}
}

func TestUploadErrors(t *testing.T) {
	s, _ := newTestServer(t, Options{MaxUploadBytes: 1 << 20})

	rec := do(t, s, http.MethodPost, "/api/v1/layers", strings.NewReader("x"), "text/plain")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing file status = %d", rec.Code)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("file", "junk.png")
	_, _ = fw.Write([]byte("not an image"))
	_ = mw.Close()
	rec = do(t, s, http.MethodPost, "/api/v1/layers", &body, mw.FormDataContentType())
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("junk status = %d", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != errors.ErrCodeImportDecode {
		t.Errorf("code = %s", e.Code)
	}
}

func TestPatchLayer(t *testing.T) {
	s, p := newTestServer(t, Options{})
	a := addLayer(t, p, "a.png", 2, 2)
	addLayer(t, p, "b.png", 2, 2)

	rec := do(t, s, http.MethodPatch, "/api/v1/layers/"+a,
		strings.NewReader(`{"x": 3.6, "y": -2, "scale": 2, "visible": false, "name": "hat", "z": 1}`), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	v, _ := p.Session.Store.Get(a)
	if v.Position != image.Pt(4, -2) || v.Scale != 2 || v.Visible || v.Name != "hat" || v.Z != 1 {
		t.Errorf("layer = %+v", v)
	}
}

func TestPatchLayerIsAtomic(t *testing.T) {
	s, p := newTestServer(t, Options{})
	a := addLayer(t, p, "a.png", 2, 2)

	rec := do(t, s, http.MethodPatch, "/api/v1/layers/"+a,
		strings.NewReader(`{"name": "renamed", "x": 5, "scale": -1}`), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != errors.ErrCodeInvalidTransform {
		t.Errorf("code = %s", e.Code)
	}
	v, _ := p.Session.Store.Get(a)
	if v.Name != "a" || v.Position != (image.Point{}) {
		t.Errorf("failed patch left changes: %+v", v)
	}
}

func TestPatchErrors(t *testing.T) {
	s, p := newTestServer(t, Options{})
	a := addLayer(t, p, "a.png", 2, 2)

	tests := []struct {
		name   string
		target string
		body   string
		status int
	}{
		{"unknown layer", "/api/v1/layers/nope", `{"x": 1}`, http.StatusNotFound},
		{"bad json", "/api/v1/layers/" + a, `{"x":`, http.StatusBadRequest},
		{"empty name", "/api/v1/layers/" + a, `{"name": ""}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPatch, tt.target, strings.NewReader(tt.body), "application/json")
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestDeleteLayer(t *testing.T) {
	s, p := newTestServer(t, Options{})
	a := addLayer(t, p, "a.png", 2, 2)

	if rec := do(t, s, http.MethodDelete, "/api/v1/layers/"+a, nil, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if p.Session.Store.Len() != 0 {
		t.Error("layer not removed")
	}
	if rec := do(t, s, http.MethodDelete, "/api/v1/layers/"+a, nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d", rec.Code)
	}
}

func TestPreview(t *testing.T) {
	s, p := newTestServer(t, Options{})
	addLayer(t, p, "a.png", 4, 4)

	rec := do(t, s, http.MethodGet, "/api/v1/preview.png?zoom=2", nil, "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("status = %d, type = %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	dec, err := imageio.DecodeBytes(rec.Body.Bytes(), "preview.png")
	if err != nil {
		t.Fatal(err)
	}
	if dec.Pixels.Bounds().Size() != image.Pt(32, 32) {
		t.Errorf("preview size = %v, want 32x32", dec.Pixels.Bounds().Size())
	}
	if p.Session.View.Zoom != 2 {
		t.Errorf("view zoom = %v, want 2", p.Session.View.Zoom)
	}

	for _, q := range []string{"zoom=abc", "width=0", "height=999999", "pan_x=x"} {
		if rec := do(t, s, http.MethodGet, "/api/v1/preview.png?"+q, nil, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", q, rec.Code)
		}
	}
}

func TestExport(t *testing.T) {
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s, p := newTestServer(t, Options{Runner: export.NewRunner(fc, nil, nil)})
	addLayer(t, p, "a.png", 2, 2)
	addLayer(t, p, "b.png", 3, 3)

	rec := do(t, s, http.MethodPost, "/api/v1/export?scale=2", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if rec.Header().Get("X-Kitbash-Cache") != "miss" {
		t.Errorf("first export cache = %q", rec.Header().Get("X-Kitbash-Cache"))
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), archive.DefaultZipName) {
		t.Errorf("disposition = %q", rec.Header().Get("Content-Disposition"))
	}
	entries, err := archive.ReadZip(rec.Body.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 || entries[0].Name != "000_a.png" || entries[2].Name != export.MetadataName {
		t.Errorf("entries = %v", entryNames(entries))
	}
	dec, _ := imageio.DecodeBytes(entries[0].Data, entries[0].Name)
	if dec.Pixels.Bounds().Size() != image.Pt(32, 32) {
		t.Errorf("artifact size = %v", dec.Pixels.Bounds().Size())
	}

	rec = do(t, s, http.MethodPost, "/api/v1/export?scale=2", nil, "")
	if rec.Header().Get("X-Kitbash-Cache") != "hit" {
		t.Errorf("second export cache = %q", rec.Header().Get("X-Kitbash-Cache"))
	}
}

func TestExportErrors(t *testing.T) {
	s, p := newTestServer(t, Options{})
	addLayer(t, p, "a.png", 2, 2)

	tests := []struct {
		query  string
		status int
		code   errors.Code
	}{
		{"scale=0.5", http.StatusBadRequest, errors.ErrCodeInvalidExportScale},
		{"scale=11", http.StatusBadRequest, errors.ErrCodeInvalidExportScale},
		{"scale=abc", http.StatusBadRequest, errors.ErrCodeInvalidExportScale},
		{"scale=1000", http.StatusUnprocessableEntity, errors.ErrCodeExportAllocation},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/api/v1/export?"+tt.query, nil, "")
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if e := decodeError(t, rec); e.Code != tt.code {
				t.Errorf("code = %s, want %s", e.Code, tt.code)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := map[errors.Code]int{
		errors.ErrCodeInvalidCanvas:    http.StatusBadRequest,
		errors.ErrCodeLayerNotFound:    http.StatusNotFound,
		errors.ErrCodeExportAllocation: http.StatusUnprocessableEntity,
		errors.ErrCodeArchiveWrite:     http.StatusInternalServerError,
		errors.ErrCodeCanceled:         http.StatusServiceUnavailable,
	}
	for code, want := range tests {
		if got := statusFor(code); got != want {
			t.Errorf("statusFor(%s) = %d, want %d", code, got, want)
		}
	}
}

func entryNames(entries []archive.Entry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

func TestPreviewCache(t *testing.T) {
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s, p := newTestServer(t, Options{Runner: export.NewRunner(fc, nil, nil)})
	a := addLayer(t, p, "a.png", 4, 4)

	states := []string{}
	for _, target := range []string{
		"/api/v1/preview.png?zoom=2",
		"/api/v1/preview.png?zoom=2",
		"/api/v1/preview.png?zoom=3",
	} {
		states = append(states, do(t, s, http.MethodGet, target, nil, "").Header().Get("X-Kitbash-Cache"))
	}
	if want := []string{"miss", "hit", "miss"}; strings.Join(states, ",") != strings.Join(want, ",") {
		t.Errorf("cache states = %v, want %v", states, want)
	}

	do(t, s, http.MethodPatch, "/api/v1/layers/"+a, strings.NewReader(`{"x": 1}`), "application/json")
	if got := do(t, s, http.MethodGet, "/api/v1/preview.png?zoom=2", nil, "").Header().Get("X-Kitbash-Cache"); got != "miss" {
		t.Errorf("preview after edit = %q, want miss", got)
	}
}
