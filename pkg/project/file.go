package project

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/kitbash/pkg/errors"
	"github.com/matzehuels/kitbash/pkg/session"
	"github.com/matzehuels/kitbash/pkg/transform"
)

// FileName is the conventional project file name.
const FileName = "kitbash.toml"

// FormatVersion is written to every project file.
const FormatVersion = 1

// File is the on-disk project document. Layers are listed bottom to top.
type File struct {
	Version int          `toml:"version"`
	Canvas  CanvasConfig `toml:"canvas"`
	Layers  []LayerEntry `toml:"layers"`
}

// CanvasConfig is the [canvas] table.
type CanvasConfig struct {
	Width       int     `toml:"width"`
	Height      int     `toml:"height"`
	Background  string  `toml:"background"`
	ExportScale float64 `toml:"export_scale"`
}

// LayerEntry is one [[layers]] table. Source is relative to the project
// file's directory.
type LayerEntry struct {
	ID      string  `toml:"id"`
	Name    string  `toml:"name"`
	Source  string  `toml:"source"`
	X       int     `toml:"x"`
	Y       int     `toml:"y"`
	Scale   float64 `toml:"scale"`
	Visible bool    `toml:"visible"`
}

// NewFile returns an empty project with the given canvas size.
func NewFile(width, height int) *File {
	return &File{
		Version: FormatVersion,
		Canvas: CanvasConfig{
			Width:       width,
			Height:      height,
			Background:  FormatColor(transparent),
			ExportScale: transform.DefaultExportScale,
		},
	}
}

// ReadFile parses and validates a project file. Unknown keys are rejected so
// typos do not silently drop settings.
func ReadFile(path string) (*File, error) {
	var f File
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeNotFound, err, "no project at %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidProject, err, "parse %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.New(errors.ErrCodeInvalidProject, "unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks the document without touching any layer source.
func (f *File) Validate() error {
	if f.Version != FormatVersion {
		return errors.New(errors.ErrCodeInvalidProject, "unsupported project version %d", f.Version)
	}
	if err := session.ValidateCanvasSize(f.Canvas.Width, f.Canvas.Height); err != nil {
		return err
	}
	if _, err := ParseColor(f.Canvas.Background); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidProject, err, "canvas background")
	}
	if err := transform.ValidateExportScale(f.Canvas.ExportScale); err != nil {
		return err
	}
	seen := make(map[string]bool, len(f.Layers))
	for i, l := range f.Layers {
		if l.ID == "" {
			return errors.New(errors.ErrCodeInvalidProject, "layer %d has no id", i)
		}
		if seen[l.ID] {
			return errors.New(errors.ErrCodeInvalidProject, "duplicate layer id %q", l.ID)
		}
		seen[l.ID] = true
		if err := errors.ValidateLayerName(l.Name); err != nil {
			return err
		}
		if err := errors.ValidatePath(l.Source); err != nil {
			return err
		}
		if err := transform.ValidateScale(l.Scale); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile encodes f as TOML and replaces path atomically.
func (f *File) WriteFile(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(f); err != nil {
		return fmt.Errorf("encode project: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".kitbash-*.toml.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write project: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close project: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename project: %w", err)
	}
	return nil
}
