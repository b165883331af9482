package export

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/matzehuels/kitbash/pkg/archive"
	"github.com/matzehuels/kitbash/pkg/cache"
	"github.com/matzehuels/kitbash/pkg/errors"
	"github.com/matzehuels/kitbash/pkg/imageio"
	"github.com/matzehuels/kitbash/pkg/layer"
	"github.com/matzehuels/kitbash/pkg/transform"
)

var opaque = color.NRGBA{R: 200, G: 10, B: 30, A: 255}

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func nan() float64 { return math.NaN() }

func newStore() *layer.Store {
	n := 0
	return layer.NewStore(layer.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("layer-%d", n)
	}))
}

func mustAdd(t *testing.T, s *layer.Store, px *image.NRGBA, name string) string {
	t.Helper()
	id, err := s.Add(px, name)
	if err != nil {
		t.Fatalf("Add(%s): %v", name, err)
	}
	return id
}

func setPos(t *testing.T, s *layer.Store, id string, x, y float64) {
	t.Helper()
	if err := s.SetTransform(id, &transform.Vec{X: x, Y: y}, nil); err != nil {
		t.Fatalf("SetTransform: %v", err)
	}
}

func TestExportScenario64(t *testing.T) {
	s := newStore()
	id := mustAdd(t, s, solid(32, 32, opaque), "body")
	setPos(t, s, id, 16, 16)

	req, err := NewRequest(2, image.Pt(64, 64), s.Snapshot(), DefaultLimits())
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	bitmaps, err := Rasterize(context.Background(), req)
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	if len(bitmaps) != 1 {
		t.Fatalf("got %d bitmaps", len(bitmaps))
	}
	px := bitmaps[0].Pixels
	if px.Bounds() != image.Rect(0, 0, 128, 128) {
		t.Fatalf("bounds = %v", px.Bounds())
	}
	inside := image.Rect(32, 32, 96, 96)
	for y := 0; y < 128; y++ {
		for x := 0; x < 128; x++ {
			got := px.NRGBAAt(x, y)
			if image.Pt(x, y).In(inside) {
				if got != opaque {
					t.Fatalf("(%d,%d) = %v, want layer colour", x, y, got)
				}
			} else if got.A != 0 {
				t.Fatalf("(%d,%d) = %v, want transparent", x, y, got)
			}
		}
	}

	recs := NewRecords(req.Layers)
	want := Records{{ID: id, Name: "body", X: 16, Y: 16, Scale: 1, ZIndex: 0, Visible: true}}
	if !reflect.DeepEqual(recs, want) {
		t.Errorf("records = %+v, want %+v", recs, want)
	}
}

func TestExportAllocationBound(t *testing.T) {
	s := newStore()
	mustAdd(t, s, solid(4, 4, opaque), "a")
	before := s.States()

	req, err := NewRequest(10, image.Pt(10, 10), s.Snapshot(), DefaultLimits())
	if err != nil {
		t.Fatalf("scale 10: %v", err)
	}
	if req.Size() != image.Pt(100, 100) {
		t.Errorf("size = %v", req.Size())
	}

	_, err = NewRequest(600, image.Pt(10, 10), s.Snapshot(), DefaultLimits())
	if !errors.Is(err, errors.ErrCodeExportAllocation) {
		t.Fatalf("scale 600: err = %v, want EXPORT_ALLOCATION", err)
	}
	if !reflect.DeepEqual(s.States(), before) {
		t.Error("store changed after failed export")
	}
}

func TestNewRequestValidation(t *testing.T) {
	tests := []struct {
		name   string
		scale  float64
		canvas image.Point
		limits Limits
		code   errors.Code
	}{
		{"below range", 0.5, image.Pt(10, 10), DefaultLimits(), errors.ErrCodeInvalidExportScale},
		{"above range", 11, image.Pt(10, 10), DefaultLimits(), errors.ErrCodeInvalidExportScale},
		{"nan", nan(), image.Pt(10, 10), DefaultLimits(), errors.ErrCodeInvalidExportScale},
		{"empty canvas", 1, image.Pt(0, 10), DefaultLimits(), errors.ErrCodeInvalidCanvas},
		{"custom limit", 2, image.Pt(100, 10), Limits{MaxArtifactSide: 150}, errors.ErrCodeExportAllocation},
		{"zero limit means default", 10, image.Pt(400, 10), Limits{}, ""},
		{"fractional", 1.5, image.Pt(3, 3), DefaultLimits(), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRequest(tt.scale, tt.canvas, nil, tt.limits)
			if tt.code == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.code) {
				t.Errorf("err = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestExportVisibility(t *testing.T) {
	s := newStore()
	mustAdd(t, s, solid(2, 2, opaque), "shown")
	hidden := mustAdd(t, s, solid(2, 2, opaque), "hidden")
	mustAdd(t, s, solid(2, 2, opaque), "top")
	if err := s.SetVisibility(hidden, false); err != nil {
		t.Fatal(err)
	}

	req, _ := NewRequest(1, image.Pt(4, 4), s.Snapshot(), DefaultLimits())
	entries, stats, err := Package(context.Background(), req)
	if err != nil {
		t.Fatalf("Package: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	want := []string{"000_shown.png", "002_top.png", "data.json"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("entries = %v, want %v", names, want)
	}
	if stats.Bitmaps != 2 || stats.Layers != 3 {
		t.Errorf("stats = %+v", stats)
	}

	meta, _ := archive.Find(entries, MetadataName)
	recs, err := ReadMetadata(bytes.NewReader(meta.Data))
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if len(recs) != 3 || recs[1].Visible || recs[1].ID != hidden {
		t.Errorf("records = %+v", recs)
	}
}

func TestExportArtifactsDecode(t *testing.T) {
	s := newStore()
	mustAdd(t, s, solid(1, 1, opaque), "dot")
	req, _ := NewRequest(3, image.Pt(2, 2), s.Snapshot(), DefaultLimits())
	entries, _, err := Package(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	dec, err := imageio.DecodeBytes(entries[0].Data, entries[0].Name)
	if err != nil {
		t.Fatalf("decode artifact: %v", err)
	}
	if dec.Pixels.Bounds() != image.Rect(0, 0, 6, 6) {
		t.Errorf("bounds = %v", dec.Pixels.Bounds())
	}
	if got := dec.Pixels.NRGBAAt(2, 2); got != opaque {
		t.Errorf("(2,2) = %v", got)
	}
	if got := dec.Pixels.NRGBAAt(3, 3); got.A != 0 {
		t.Errorf("(3,3) = %v, want transparent", got)
	}
}

func TestExportTinyLayerIsTransparent(t *testing.T) {
	s := newStore()
	id := mustAdd(t, s, solid(1, 1, opaque), "speck")
	scale := 0.1
	if err := s.SetTransform(id, nil, &scale); err != nil {
		t.Fatal(err)
	}
	req, _ := NewRequest(1, image.Pt(4, 4), s.Snapshot(), DefaultLimits())
	bitmaps, err := Rasterize(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	for i := 3; i < len(bitmaps[0].Pixels.Pix); i += 4 {
		if bitmaps[0].Pixels.Pix[i] != 0 {
			t.Fatal("zero-size layer left pixels behind")
		}
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	s := newStore()
	a := mustAdd(t, s, solid(3, 3, opaque), "head")
	b := mustAdd(t, s, solid(3, 3, opaque), "body")
	setPos(t, s, a, -4, 7)
	scale := 2.5
	if err := s.SetTransform(b, &transform.Vec{X: 12, Y: 1}, &scale); err != nil {
		t.Fatal(err)
	}
	if err := s.Reorder(b, 0); err != nil {
		t.Fatal(err)
	}
	if err := s.SetVisibility(a, false); err != nil {
		t.Fatal(err)
	}
	want := s.States()

	req, _ := NewRequest(4, image.Pt(16, 16), s.Snapshot(), DefaultLimits())
	entries, _, err := Package(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	zipData, err := archive.ZipBytes(entries)
	if err != nil {
		t.Fatal(err)
	}
	recs, err := ReadArchiveMetadata(zipData)
	if err != nil {
		t.Fatalf("ReadArchiveMetadata: %v", err)
	}

	// Disturb every transform, then restore from metadata.
	_ = s.ResetTransform(a)
	_ = s.ResetTransform(b)
	_ = s.SetVisibility(a, true)
	_ = s.Reorder(a, 0)
	if err := s.Restore(recs.States()); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got := s.States(); !reflect.DeepEqual(got, want) {
		t.Errorf("round trip:\n got %+v\nwant %+v", got, want)
	}
}

func TestRecordsMatchFallsBackToName(t *testing.T) {
	views := []layer.View{
		{ID: "new-1", Name: "head"},
		{ID: "new-2", Name: "body"},
		{ID: "keep", Name: "sword"},
	}
	recs := Records{
		{ID: "old-1", Name: "body", X: 5, Scale: 1},
		{ID: "keep", Name: "sword", Scale: 2},
		{ID: "old-9", Name: "cape", Scale: 1},
	}
	matched, unmatched := recs.Match(views)
	if len(matched) != 2 {
		t.Fatalf("matched = %+v", matched)
	}
	if matched[0].ID != "keep" || matched[1].ID != "new-2" || matched[1].Position.X != 5 {
		t.Errorf("matched = %+v", matched)
	}
	if len(unmatched) != 1 || unmatched[0].Name != "cape" {
		t.Errorf("unmatched = %+v", unmatched)
	}
}

func TestReadMetadataRejectsBadRecords(t *testing.T) {
	tests := map[string]string{
		"not json":   `{`,
		"zero scale": `[{"id":"a","name":"a","x":0,"y":0,"scale":0,"z_index":0,"visible":true}]`,
		"no id":      `[{"name":"a","scale":1}]`,
		"blank name": `[{"id":"a","name":" ","scale":1}]`,
	}
	for name, doc := range tests {
		if _, err := ReadMetadata(bytes.NewReader([]byte(doc))); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestSnapshotIsolation(t *testing.T) {
	s := newStore()
	id := mustAdd(t, s, solid(2, 2, opaque), "a")
	req, _ := NewRequest(1, image.Pt(4, 4), s.Snapshot(), DefaultLimits())

	setPos(t, s, id, 2, 2)
	if err := s.Remove(id); err != nil {
		t.Fatal(err)
	}

	bitmaps, err := Rasterize(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(bitmaps) != 1 {
		t.Fatalf("got %d bitmaps, want the layer as of the request", len(bitmaps))
	}
	if got := bitmaps[0].Pixels.NRGBAAt(0, 0); got != opaque {
		t.Errorf("(0,0) = %v, export saw a later edit", got)
	}
}

func TestRequestClonesPixels(t *testing.T) {
	px := solid(1, 1, opaque)
	views := []layer.View{{ID: "a", Name: "a", Pixels: px, Scale: 1, Visible: true}}
	req, _ := NewRequest(1, image.Pt(1, 1), views, DefaultLimits())
	px.Pix[0] = 0
	if req.Layers[0].Pixels.Pix[0] != opaque.R {
		t.Error("request aliases the caller's pixels")
	}
}

func TestRasterizeCanceled(t *testing.T) {
	s := newStore()
	mustAdd(t, s, solid(2, 2, opaque), "a")
	req, _ := NewRequest(1, image.Pt(4, 4), s.Snapshot(), DefaultLimits())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bitmaps, err := Rasterize(ctx, req)
	if !errors.Is(err, errors.ErrCodeCanceled) || bitmaps != nil {
		t.Errorf("Rasterize = %v, %v; want CANCELED and nothing", bitmaps, err)
	}
}

func TestArtifactName(t *testing.T) {
	tests := []struct {
		z    int
		name string
		want string
	}{
		{0, "body", "000_body.png"},
		{12, "Body Armor", "012_Body_Armor.png"},
		{3, "../../etc", "003__.._etc.png"},
		{1000, "x", "1000_x.png"},
	}
	for _, tt := range tests {
		if got := ArtifactName(tt.z, tt.name); got != tt.want {
			t.Errorf("ArtifactName(%d, %q) = %q, want %q", tt.z, tt.name, got, tt.want)
		}
	}
}

func TestContentHash(t *testing.T) {
	s := newStore()
	id := mustAdd(t, s, solid(2, 2, opaque), "a")
	r1, _ := NewRequest(2, image.Pt(4, 4), s.Snapshot(), DefaultLimits())
	r2, _ := NewRequest(2, image.Pt(4, 4), s.Snapshot(), DefaultLimits())
	if r1.ContentHash() != r2.ContentHash() {
		t.Error("identical requests hash differently")
	}
	setPos(t, s, id, 1, 0)
	r3, _ := NewRequest(2, image.Pt(4, 4), s.Snapshot(), DefaultLimits())
	if r1.ContentHash() == r3.ContentHash() {
		t.Error("moved layer did not change the hash")
	}
}

func TestRunnerCaches(t *testing.T) {
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	runner := NewRunner(c, nil, nil)
	s := newStore()
	mustAdd(t, s, solid(2, 2, opaque), "a")
	req, _ := NewRequest(2, image.Pt(4, 4), s.Snapshot(), DefaultLimits())
	ctx := context.Background()

	first, err := runner.Run(ctx, req, Options{})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.CacheHit {
		t.Error("first run should miss")
	}
	second, err := runner.Run(ctx, req, Options{})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !second.CacheHit {
		t.Error("second run should hit")
	}
	if !reflect.DeepEqual(first.Entries, second.Entries) {
		t.Error("cached entries differ from fresh ones")
	}
	if second.Stats.Layers != 1 || second.Stats.Bitmaps != 1 {
		t.Errorf("cached stats = %+v", second.Stats)
	}

	third, _ := runner.Run(ctx, req, Options{Refresh: true})
	if third.CacheHit {
		t.Error("refresh should bypass the cache")
	}
}

func TestJobWaitAndWrite(t *testing.T) {
	s := newStore()
	mustAdd(t, s, solid(2, 2, opaque), "a")
	req, _ := NewRequest(1, image.Pt(2, 2), s.Snapshot(), DefaultLimits())

	job := NewRunner(nil, nil, nil).Start(context.Background(), req, Options{})
	<-job.Done()
	res, err := job.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	path := filepath.Join(t.TempDir(), archive.DefaultZipName)
	if err := res.WriteZip(path); err != nil {
		t.Fatalf("WriteZip: %v", err)
	}
	dir := filepath.Join(t.TempDir(), "out")
	if err := res.WriteDir(dir); err != nil {
		t.Fatalf("WriteDir: %v", err)
	}
}

func TestJobCancel(t *testing.T) {
	s := newStore()
	mustAdd(t, s, solid(64, 64, opaque), "a")
	req, _ := NewRequest(10, image.Pt(400, 400), s.Snapshot(), DefaultLimits())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	job := NewRunner(nil, nil, nil).Start(ctx, req, Options{})
	job.Cancel()
	res, err := job.Wait()
	if res != nil || !errors.Is(err, errors.ErrCodeCanceled) {
		t.Errorf("Wait = %v, %v; want no result and CANCELED", res, err)
	}
}

func TestNewRequestTotalPixelBudget(t *testing.T) {
	s := newStore()
	a := mustAdd(t, s, solid(2, 2, opaque), "a")
	mustAdd(t, s, solid(2, 2, opaque), "b")
	limits := Limits{MaxTotalPixels: 150} // one 10×10 bitmap fits, two do not

	req, err := NewRequest(1, image.Pt(10, 10), s.Snapshot(), limits)
	if req != nil || !errors.Is(err, errors.ErrCodeExportAllocation) {
		t.Fatalf("two visible layers: req = %v, err = %v; want EXPORT_ALLOCATION", req, err)
	}

	// Hidden layers produce no bitmap and do not count.
	if err := s.SetVisibility(a, false); err != nil {
		t.Fatal(err)
	}
	if _, err := NewRequest(1, image.Pt(10, 10), s.Snapshot(), limits); err != nil {
		t.Errorf("one visible layer: %v", err)
	}
}

func TestPackageReusesOneBitmap(t *testing.T) {
	s := newStore()
	for i, name := range []string{"a", "b", "c"} {
		id := mustAdd(t, s, solid(1, 1, opaque), name)
		setPos(t, s, id, float64(i), 0)
	}
	req, _ := NewRequest(1, image.Pt(3, 1), s.Snapshot(), DefaultLimits())

	var buf *uint8
	n := 0
	err := eachBitmap(context.Background(), req, func(b Bitmap) error {
		if buf == nil {
			buf = &b.Pixels.Pix[0]
		} else if &b.Pixels.Pix[0] != buf {
			t.Errorf("%s: new bitmap allocated", b.Name)
		}
		// Only this layer's pixel may be set; the previous layer is cleared.
		for x := 0; x < 3; x++ {
			want := uint8(0)
			if x == n {
				want = 255
			}
			if got := b.Pixels.NRGBAAt(x, 0).A; got != want {
				t.Errorf("%s: alpha at x=%d = %d, want %d", b.Name, x, got, want)
			}
		}
		n++
		return nil
	})
	if err != nil || n != 3 {
		t.Fatalf("eachBitmap = %v after %d bitmaps", err, n)
	}

	// Rasterize hands out independent copies.
	bitmaps, err := Rasterize(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if &bitmaps[0].Pixels.Pix[0] == &bitmaps[1].Pixels.Pix[0] {
		t.Error("Rasterize bitmaps share a buffer")
	}
	if bitmaps[0].Pixels.NRGBAAt(0, 0).A != 255 || bitmaps[0].Pixels.NRGBAAt(1, 0).A != 0 {
		t.Error("first bitmap overwritten by a later layer")
	}
}

func TestRunnerCanceledCacheHit(t *testing.T) {
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	runner := NewRunner(c, nil, nil)
	s := newStore()
	mustAdd(t, s, solid(2, 2, opaque), "a")
	req, _ := NewRequest(1, image.Pt(4, 4), s.Snapshot(), DefaultLimits())
	if _, err := runner.Run(context.Background(), req, Options{}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := runner.Run(ctx, req, Options{})
	if res != nil || !errors.Is(err, errors.ErrCodeCanceled) {
		t.Errorf("Run = %v, %v; want no result and CANCELED", res, err)
	}
}
