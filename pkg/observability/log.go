package observability

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// LogExportHooks writes export events to a logger at debug level.
type LogExportHooks struct {
	Logger *log.Logger
}

func (h LogExportHooks) OnExportStart(_ context.Context, layers int, scale float64) {
	h.Logger.Debug("export started", "layers", layers, "scale", scale)
}

func (h LogExportHooks) OnLayerRasterized(_ context.Context, id string, w, hgt int, d time.Duration) {
	h.Logger.Debug("layer rasterized", "id", id, "width", w, "height", hgt, "duration", d)
}

func (h LogExportHooks) OnExportComplete(_ context.Context, layers, bytes int, d time.Duration, err error) {
	if err != nil {
		h.Logger.Debug("export failed", "layers", layers, "duration", d, "err", err)
		return
	}
	h.Logger.Debug("export finished", "layers", layers, "bytes", bytes, "duration", d)
}

// LogCacheHooks writes cache events to a logger at debug level.
type LogCacheHooks struct {
	Logger *log.Logger
}

func (h LogCacheHooks) OnCacheHit(_ context.Context, keyType string) {
	h.Logger.Debug("cache hit", "type", keyType)
}

func (h LogCacheHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.Logger.Debug("cache miss", "type", keyType)
}

func (h LogCacheHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.Logger.Debug("cache set", "type", keyType, "bytes", size)
}

// LogHTTPHooks writes request events to a logger.
type LogHTTPHooks struct {
	Logger *log.Logger
}

func (h LogHTTPHooks) OnRequest(_ context.Context, method, route string) {
	h.Logger.Debug("request", "method", method, "route", route)
}

func (h LogHTTPHooks) OnResponse(_ context.Context, method, route string, status int, d time.Duration) {
	h.Logger.Info("response", "method", method, "route", route, "status", status, "duration", d)
}

var (
	_ ExportHooks = LogExportHooks{}
	_ CacheHooks  = LogCacheHooks{}
	_ HTTPHooks   = LogHTTPHooks{}
)
