// Package project persists editing sessions as kitbash.toml files.
//
// A project file records the canvas, the default export scale and, bottom
// to top, every layer's source image and transform. Sources are stored
// relative to the project file and must live inside its directory, so a
// project folder can be moved or committed as a unit.
//
// [Open] decodes every source into a fresh [session.Session]; [Project.Save]
// writes the session state back.
package project

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/matzehuels/kitbash/pkg/errors"
	"github.com/matzehuels/kitbash/pkg/imageio"
	"github.com/matzehuels/kitbash/pkg/layer"
	"github.com/matzehuels/kitbash/pkg/session"
)

// ImportDir is where uploaded images are stored, relative to the project
// directory.
const ImportDir = "layers"

var transparent = color.NRGBA{}

// Project is an open project: its file location, the live session and the
// source path of every layer.
type Project struct {
	Path    string
	Session *session.Session

	sources map[string]string // layer ID -> source relative to Dir()
}

// Init creates a new, empty project file at path. It fails if the file
// already exists.
func Init(path string, width, height int) (*Project, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, errors.New(errors.ErrCodeInvalidProject, "%s already exists", path)
	}
	f := NewFile(width, height)
	if err := f.Validate(); err != nil {
		return nil, err
	}
	p, err := fromFile(path, f)
	if err != nil {
		return nil, err
	}
	if err := p.Save(); err != nil {
		return nil, err
	}
	return p, nil
}

// Open reads a project file and decodes every layer source.
func Open(path string) (*Project, error) {
	f, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return fromFile(path, f)
}

func fromFile(path string, f *File) (*Project, error) {
	bg, _ := ParseColor(f.Canvas.Background)
	s := session.New(session.WithCanvas(session.Canvas{
		Width:      f.Canvas.Width,
		Height:     f.Canvas.Height,
		Background: bg,
	}))
	s.ExportScale = f.Canvas.ExportScale

	p := &Project{Path: path, Session: s, sources: make(map[string]string, len(f.Layers))}
	for _, l := range f.Layers {
		dec, err := imageio.DecodeFile(p.abs(l.Source))
		if err != nil {
			return nil, err
		}
		id, err := s.Store.Insert(dec.Pixels, layer.State{
			ID:       l.ID,
			Name:     l.Name,
			Position: image.Pt(l.X, l.Y),
			Scale:    l.Scale,
			Visible:  l.Visible,
		})
		if err != nil {
			return nil, err
		}
		p.sources[id] = l.Source
	}
	s.ClearSelection()
	return p, nil
}

// Dir returns the directory sources are resolved against.
func (p *Project) Dir() string {
	return filepath.Dir(p.Path)
}

// Source returns the project-relative source path of a layer.
func (p *Project) Source(id string) (string, bool) {
	src, ok := p.sources[id]
	return src, ok
}

// Add imports an image file as a new top layer. path is resolved against
// the working directory and must lie inside the project directory.
func (p *Project) Add(path string) (string, error) {
	rel, err := p.rel(path)
	if err != nil {
		return "", err
	}
	id, err := p.Session.ImportFile(p.abs(rel))
	if err != nil {
		return "", err
	}
	p.sources[id] = rel
	return id, nil
}

// Import stores an uploaded image under ImportDir and adds it as a new top
// layer. Undecodable data fails with IMPORT_DECODE before anything is
// written.
func (p *Project) Import(r io.Reader, filename string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeImportDecode, err, "read %s", filename)
	}
	if _, err := imageio.DecodeBytes(data, filename); err != nil {
		return "", err
	}
	rel, err := p.freeName(filename)
	if err != nil {
		return "", err
	}
	dst := p.abs(rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidPath, err, "create %s", filepath.Dir(dst))
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", dst)
	}
	id, err := p.Session.Import(bytes.NewReader(data), filename)
	if err != nil {
		_ = os.Remove(dst)
		return "", err
	}
	p.sources[id] = rel
	return id, nil
}

// freeName picks an unused ImportDir path for filename, adding a numeric
// suffix on collision.
func (p *Project) freeName(filename string) (string, error) {
	base := errors.SanitizeFilename(filepath.Base(filename))
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for i := 0; i < 1000; i++ {
		name := base
		if i > 0 {
			name = fmt.Sprintf("%s-%d%s", stem, i, ext)
		}
		rel := path.Join(ImportDir, name)
		if _, err := os.Stat(p.abs(rel)); os.IsNotExist(err) {
			return rel, nil
		}
	}
	return "", errors.New(errors.ErrCodeInvalidPath, "no free name for %s in %s", base, ImportDir)
}

// Remove deletes a layer.
func (p *Project) Remove(id string) error {
	if err := p.Session.Remove(id); err != nil {
		return err
	}
	delete(p.sources, id)
	return nil
}

// File builds the document describing the current session.
func (p *Project) File() *File {
	s := p.Session
	f := NewFile(s.Canvas.Width, s.Canvas.Height)
	f.Canvas.Background = FormatColor(s.Canvas.Background)
	f.Canvas.ExportScale = s.ExportScale
	for _, st := range s.Store.States() {
		f.Layers = append(f.Layers, LayerEntry{
			ID:      st.ID,
			Name:    st.Name,
			Source:  p.sources[st.ID],
			X:       st.Position.X,
			Y:       st.Position.Y,
			Scale:   st.Scale,
			Visible: st.Visible,
		})
	}
	return f
}

// Save writes the session back to the project file.
func (p *Project) Save() error {
	f := p.File()
	if err := f.Validate(); err != nil {
		return err
	}
	return f.WriteFile(p.Path)
}

func (p *Project) abs(rel string) string {
	return filepath.Join(p.Dir(), filepath.FromSlash(rel))
}

// rel converts a user-supplied path into a slash-separated path relative to
// the project directory.
func (p *Project) rel(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidPath, err, "resolve %s", path)
	}
	dir, err := filepath.Abs(p.Dir())
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidPath, err, "resolve %s", p.Dir())
	}
	rel, err := filepath.Rel(dir, absPath)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidPath, err, "%s is not inside %s", path, dir)
	}
	rel = filepath.ToSlash(rel)
	if err := errors.ValidatePath(rel); err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidPath, err, "%s must be inside the project directory", path)
	}
	return rel, nil
}
