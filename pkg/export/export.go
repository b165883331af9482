package export

import (
	"context"
	"time"

	"github.com/matzehuels/kitbash/pkg/archive"
	"github.com/matzehuels/kitbash/pkg/errors"
	"github.com/matzehuels/kitbash/pkg/imageio"
)

// Stats records what an export did and how long each stage took.
type Stats struct {
	Layers     int // records in the metadata
	Bitmaps    int // visible layers rasterized
	RasterTime time.Duration
	EncodeTime time.Duration
	Bytes      int // total encoded size of all entries
}

// Package rasterizes req and encodes the artifact set: one PNG per visible
// layer in z-order followed by the metadata document. Each layer is encoded
// before the next is rasterized, so at most one full-size bitmap is live.
func Package(ctx context.Context, req *Request) ([]archive.Entry, Stats, error) {
	var stats Stats
	stats.Layers = len(req.Layers)

	entries := make([]archive.Entry, 0, req.VisibleCount()+1)
	mark := time.Now()
	err := eachBitmap(ctx, req, func(b Bitmap) error {
		stats.RasterTime += time.Since(mark)
		mark = time.Now()
		data, err := imageio.PNGBytes(b.Pixels)
		if err != nil {
			return errors.Wrap(errors.ErrCodeArchiveWrite, err, "encode %s", b.Name)
		}
		entries = append(entries, archive.Entry{Name: b.Name, Data: data})
		stats.Bitmaps++
		stats.Bytes += len(data)
		stats.EncodeTime += time.Since(mark)
		mark = time.Now()
		return nil
	})
	if err != nil {
		return nil, stats, err
	}

	start := time.Now()
	meta, err := NewRecords(req.Layers).Marshal()
	if err != nil {
		return nil, stats, errors.Wrap(errors.ErrCodeInternal, err, "metadata")
	}
	entries = append(entries, archive.Entry{Name: MetadataName, Data: meta})
	stats.Bytes += len(meta)
	stats.EncodeTime += time.Since(start)
	return entries, stats, nil
}
