package observability

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	e := NoopExportHooks{}
	e.OnExportStart(ctx, 3, 2)
	e.OnLayerRasterized(ctx, "id", 128, 128, time.Millisecond)
	e.OnExportComplete(ctx, 3, 1024, time.Second, nil)

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "export")
	c.OnCacheMiss(ctx, "preview")
	c.OnCacheSet(ctx, "export", 1024)

	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "GET", "/healthz")
	h.OnResponse(ctx, "GET", "/healthz", 200, time.Millisecond)
}

type countingExportHooks struct {
	NoopExportHooks
	started int
}

func (h *countingExportHooks) OnExportStart(context.Context, int, float64) { h.started++ }

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()
	defer Reset()

	if _, ok := Export().(NoopExportHooks); !ok {
		t.Error("Export() should return NoopExportHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() should return NoopHTTPHooks by default")
	}

	custom := &countingExportHooks{}
	SetExportHooks(custom)
	Export().OnExportStart(context.Background(), 1, 1)
	if custom.started != 1 {
		t.Errorf("custom hook called %d times", custom.started)
	}

	SetExportHooks(nil)
	if Export() != ExportHooks(custom) {
		t.Error("SetExportHooks(nil) should keep the current hooks")
	}

	Reset()
	if _, ok := Export().(NoopExportHooks); !ok {
		t.Error("Reset should restore NoopExportHooks")
	}
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel})
	ctx := context.Background()

	LogExportHooks{Logger: logger}.OnExportComplete(ctx, 2, 0, time.Second, errors.New("boom"))
	LogCacheHooks{Logger: logger}.OnCacheHit(ctx, "export")
	LogHTTPHooks{Logger: logger}.OnResponse(ctx, "POST", "/api/v1/export", 200, time.Millisecond)

	out := buf.String()
	for _, want := range []string{"export failed", "boom", "cache hit", "/api/v1/export"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}
