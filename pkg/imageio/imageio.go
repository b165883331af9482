// Package imageio is the boundary to image codecs.
//
// Layers only ever see decoded *image.NRGBA buffers; this package turns PNG,
// JPEG, GIF, WEBP, BMP and TIFF byte streams into such buffers (honouring
// EXIF orientation) and encodes export bitmaps as PNG.
package imageio

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WEBP decoder

	"github.com/matzehuels/kitbash/pkg/errors"
)

// SupportedExtensions lists the file extensions accepted by DecodeFile.
var SupportedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// pngCompression is used for every encoded bitmap. Export bitmaps are large
// and mostly transparent.
const pngCompression = png.BestSpeed

// Decoded is a decoded layer source.
type Decoded struct {
	Name   string       // display name derived from the filename
	Pixels *image.NRGBA // straight-alpha RGBA8, origin (0, 0)
}

// Decode reads an image from r. filename is only used to derive the layer
// name and in error messages. Failures are reported as IMPORT_DECODE.
func Decode(r io.Reader, filename string) (*Decoded, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeImportDecode, err, "decode %s", filename)
	}
	px := imaging.Clone(img)
	if px.Bounds().Empty() {
		return nil, errors.New(errors.ErrCodeInvalidLayer, "%s has no pixels", filename)
	}
	return &Decoded{Name: NameFromFilename(filename), Pixels: px}, nil
}

// DecodeBytes is Decode over an in-memory buffer.
func DecodeBytes(data []byte, filename string) (*Decoded, error) {
	return Decode(bytes.NewReader(data), filename)
}

// DecodeFile opens and decodes an image file.
func DecodeFile(path string) (*Decoded, error) {
	if !SupportedExtensions[strings.ToLower(filepath.Ext(path))] {
		return nil, errors.New(errors.ErrCodeImportDecode, "unsupported image type: %s", filepath.Base(path))
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeNotFound, err, "open %s", path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f, filepath.Base(path))
}

// NameFromFilename derives a layer name from a file name: the base name
// without its extension, fitted to the layer name limits.
func NameFromFilename(filename string) string {
	base := filepath.Base(filename)
	if base == "." || base == string(filepath.Separator) {
		return "layer"
	}
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if strings.TrimSpace(name) == "" {
		name = base
	}
	return errors.FitLayerName(name)
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	return imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(pngCompression))
}

// PNGBytes encodes img as PNG into memory.
func PNGBytes(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodePNG(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
