package export

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/kitbash/pkg/archive"
	"github.com/matzehuels/kitbash/pkg/cache"
	"github.com/matzehuels/kitbash/pkg/observability"
)

// cacheKeyType labels export entries in cache hooks.
const cacheKeyType = "export"

// Runner executes exports with caching.
//
// The Runner is stateless except for the cache and logger. Multiple
// goroutines can safely use the same Runner with different requests.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
	TTL    time.Duration
}

// NewRunner creates a runner. A nil cache disables caching, a nil keyer
// uses cache.DefaultKeyer and a nil logger discards output.
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Runner{Cache: c, Keyer: keyer, Logger: logger, TTL: cache.DefaultTTL}
}

// Options tunes a single run.
type Options struct {
	// Refresh skips the cache lookup; the result is still stored.
	Refresh bool
}

// Result is a finished export.
type Result struct {
	Entries  []archive.Entry
	Hash     string // content hash of the request
	CacheHit bool
	Stats    Stats
	Duration time.Duration
}

// WriteZip writes the artifacts as a ZIP archive at path.
func (r *Result) WriteZip(path string) error {
	return archive.WriteZipFile(path, r.Entries)
}

// WriteDir writes the artifacts as loose files into dir.
func (r *Result) WriteDir(dir string) error {
	return archive.WriteDir(dir, r.Entries)
}

// ZIP returns the artifacts as an in-memory ZIP archive.
func (r *Result) ZIP() ([]byte, error) {
	return archive.ZipBytes(r.Entries)
}

// Run exports req. A cached archive for identical content is reused unless
// opts.Refresh is set. Cache failures are logged and otherwise ignored.
// A canceled ctx yields CANCELED and no result, even on a cache hit.
func (r *Runner) Run(ctx context.Context, req *Request, opts Options) (*Result, error) {
	start := time.Now()
	hooks := observability.Export()
	hooks.OnExportStart(ctx, len(req.Layers), req.Scale)

	res, err := r.run(ctx, req, opts)
	if err == nil && ctx.Err() != nil {
		// Canceled after the work was done, e.g. while reading the cache.
		res, err = nil, canceled(ctx.Err())
	}
	elapsed := time.Since(start)
	if err != nil {
		hooks.OnExportComplete(ctx, len(req.Layers), 0, elapsed, err)
		return nil, err
	}
	res.Duration = elapsed
	hooks.OnExportComplete(ctx, len(req.Layers), res.Stats.Bytes, elapsed, nil)
	return res, nil
}

func (r *Runner) run(ctx context.Context, req *Request, opts Options) (*Result, error) {
	hash := req.ContentHash()
	key := r.Keyer.ExportKey(hash, cache.ExportKeyOpts{Scale: req.Scale, Format: "zip"})
	size := req.Size()

	if !opts.Refresh {
		if res, ok := r.lookup(ctx, key, hash); ok {
			r.Logger.Info("export cache hit",
				"layers", res.Stats.Layers,
				"size", size)
			return res, nil
		}
	}

	entries, stats, err := Package(ctx, req)
	if err != nil {
		return nil, err
	}
	r.Logger.Info("rasterized layers",
		"bitmaps", stats.Bitmaps,
		"size", size,
		"scale", req.Scale,
		"duration", stats.RasterTime)
	r.Logger.Debug("encoded artifacts",
		"bytes", stats.Bytes,
		"duration", stats.EncodeTime)

	r.store(ctx, key, entries)
	return &Result{Entries: entries, Hash: hash, Stats: stats}, nil
}

func (r *Runner) lookup(ctx context.Context, key, hash string) (*Result, bool) {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		r.Logger.Warn("cache read failed", "err", err)
		return nil, false
	}
	if !hit {
		observability.Cache().OnCacheMiss(ctx, cacheKeyType)
		return nil, false
	}
	entries, err := archive.ReadZip(data)
	if err != nil {
		r.Logger.Warn("discarding corrupt cache entry", "err", err)
		_ = r.Cache.Delete(ctx, key)
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, cacheKeyType)

	stats := Stats{Bitmaps: len(entries) - 1}
	for _, e := range entries {
		stats.Bytes += len(e.Data)
	}
	if meta, ok := archive.Find(entries, MetadataName); ok {
		if rs, err := ReadMetadata(bytes.NewReader(meta.Data)); err == nil {
			stats.Layers = len(rs)
		}
	}
	return &Result{Entries: entries, Hash: hash, CacheHit: true, Stats: stats}, true
}

func (r *Runner) store(ctx context.Context, key string, entries []archive.Entry) {
	data, err := archive.ZipBytes(entries)
	if err != nil {
		r.Logger.Warn("cache encode failed", "err", err)
		return
	}
	if err := r.Cache.Set(ctx, key, data, r.TTL); err != nil {
		r.Logger.Warn("cache write failed", "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, cacheKeyType, len(data))
}
