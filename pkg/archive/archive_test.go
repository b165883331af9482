package archive

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/kitbash/pkg/errors"
)

func sampleEntries() []Entry {
	return []Entry{
		{Name: "000_body.png", Data: []byte("body")},
		{Name: "001_head.png", Data: []byte("head")},
		{Name: "data.json", Data: []byte(`[]`)},
	}
}

func TestZipRoundTrip(t *testing.T) {
	data, err := ZipBytes(sampleEntries())
	if err != nil {
		t.Fatalf("ZipBytes: %v", err)
	}
	got, err := ReadZip(data)
	if err != nil {
		t.Fatalf("ReadZip: %v", err)
	}
	want := sampleEntries()
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Name != want[i].Name || !bytes.Equal(got[i].Data, want[i].Data) {
			t.Errorf("entry %d = %s %q", i, got[i].Name, got[i].Data)
		}
	}
	if e, ok := Find(got, "data.json"); !ok || string(e.Data) != "[]" {
		t.Error("Find(data.json) failed")
	}
}

func TestZipDeterministic(t *testing.T) {
	a, _ := ZipBytes(sampleEntries())
	b, _ := ZipBytes(sampleEntries())
	if !bytes.Equal(a, b) {
		t.Error("identical entries produced different archives")
	}
}

func TestInvalidNames(t *testing.T) {
	cases := [][]Entry{
		{{Name: ""}},
		{{Name: "../escape.png"}},
		{{Name: "dir/file.png"}},
		{{Name: "a.png"}, {Name: "a.png"}},
	}
	for _, entries := range cases {
		if _, err := ZipBytes(entries); !errors.Is(err, errors.ErrCodeArchiveWrite) {
			t.Errorf("ZipBytes(%v) err = %v", entries, err)
		}
	}
}

func TestWriteZipFile(t *testing.T) {
	dst := filepath.Join(t.TempDir(), DefaultZipName)
	if err := WriteZipFile(dst, sampleEntries()); err != nil {
		t.Fatalf("WriteZipFile: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if entries, err := ReadZip(data); err != nil || len(entries) != 3 {
		t.Errorf("ReadZip: %d entries, %v", len(entries), err)
	}

	leftovers, _ := filepath.Glob(filepath.Join(filepath.Dir(dst), ".kitbash-*"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestWriteZipFileFailureLeavesNothing(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "out.zip")
	err := WriteZipFile(dst, []Entry{{Name: "a"}, {Name: "a"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Errorf("partial archive exists: %v", err)
	}
}

func TestWriteDirReplaces(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "layers")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "stale.png"), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := WriteDir(dir, sampleEntries()); err != nil {
		t.Fatalf("WriteDir: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "stale.png")); !os.IsNotExist(err) {
		t.Error("stale file survived")
	}
	data, err := os.ReadFile(filepath.Join(dir, "001_head.png"))
	if err != nil || string(data) != "head" {
		t.Errorf("001_head.png = %q, %v", data, err)
	}
}
