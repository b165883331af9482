// Package archive packages export artifacts.
//
// Entries are written either into a ZIP container or as loose files in a
// directory. Both sinks are all-or-nothing: a failure leaves no partial
// archive behind at the destination path. Errors are reported as
// ARCHIVE_WRITE.
package archive

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/matzehuels/kitbash/pkg/errors"
)

// DefaultZipName is the file name used when no output path is given.
const DefaultZipName = "kitbash_layers.zip"

// Entry is one named file of an artifact set.
type Entry struct {
	Name string
	Data []byte
}

// modTime is stamped on every ZIP entry so archives of identical inputs are
// byte-identical.
var modTime = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// WriteZip writes entries, in order, as a Deflate-compressed ZIP to w.
func WriteZip(w io.Writer, entries []Entry) error {
	if err := validateNames(entries); err != nil {
		return err
	}
	zw := zip.NewWriter(w)
	for _, e := range entries {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.Name,
			Method:   zip.Deflate,
			Modified: modTime,
		})
		if err != nil {
			return errors.Wrap(errors.ErrCodeArchiveWrite, err, "create entry %s", e.Name)
		}
		if _, err := fw.Write(e.Data); err != nil {
			return errors.Wrap(errors.ErrCodeArchiveWrite, err, "write entry %s", e.Name)
		}
	}
	if err := zw.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeArchiveWrite, err, "finish zip")
	}
	return nil
}

// ZipBytes builds a ZIP archive in memory.
func ZipBytes(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteZip(&buf, entries); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteZipFile writes a ZIP archive to dst through a temporary file in the
// same directory, renamed into place only once complete.
func WriteZipFile(dst string, entries []Entry) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".kitbash-*.zip.tmp")
	if err != nil {
		return errors.Wrap(errors.ErrCodeArchiveWrite, err, "create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := WriteZip(tmp, entries); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeArchiveWrite, err, "close %s", tmpName)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return errors.Wrap(errors.ErrCodeArchiveWrite, err, "rename to %s", dst)
	}
	return nil
}

// WriteDir writes entries as individual files into dir. The files are first
// written to a sibling temporary directory which then replaces dir.
func WriteDir(dir string, entries []Entry) error {
	if err := validateNames(entries); err != nil {
		return err
	}
	dir = filepath.Clean(dir)
	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeArchiveWrite, err, "create %s", parent)
	}
	tmp, err := os.MkdirTemp(parent, ".kitbash-*.tmp")
	if err != nil {
		return errors.Wrap(errors.ErrCodeArchiveWrite, err, "create temp dir")
	}
	defer os.RemoveAll(tmp)

	for _, e := range entries {
		if err := os.WriteFile(filepath.Join(tmp, e.Name), e.Data, 0o644); err != nil {
			return errors.Wrap(errors.ErrCodeArchiveWrite, err, "write %s", e.Name)
		}
	}

	var backup string
	if _, err := os.Stat(dir); err == nil {
		backup = tmp + ".old"
		if err := os.Rename(dir, backup); err != nil {
			return errors.Wrap(errors.ErrCodeArchiveWrite, err, "move aside %s", dir)
		}
	}
	if err := os.Rename(tmp, dir); err != nil {
		if backup != "" {
			_ = os.Rename(backup, dir)
		}
		return errors.Wrap(errors.ErrCodeArchiveWrite, err, "rename to %s", dir)
	}
	if backup != "" {
		_ = os.RemoveAll(backup)
	}
	return nil
}

// ReadZip returns the entries of a ZIP archive held in memory.
func ReadZip(data []byte) ([]Entry, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	entries := make([]Entry, 0, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		entries = append(entries, Entry{Name: f.Name, Data: b})
	}
	return entries, nil
}

// Find returns the entry with the given name.
func Find(entries []Entry, name string) (Entry, bool) {
	for _, e := range entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// validateNames requires flat, unique entry names.
func validateNames(entries []Entry) error {
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Name == "" || e.Name != path.Base(e.Name) || e.Name == "." || e.Name == ".." {
			return errors.New(errors.ErrCodeArchiveWrite, "invalid entry name %q", e.Name)
		}
		if seen[e.Name] {
			return errors.New(errors.ErrCodeArchiveWrite, "duplicate entry name %q", e.Name)
		}
		seen[e.Name] = true
	}
	return nil
}
