package handler_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/viewtrace/internal/config"
	"github.com/jonesrussell/viewtrace/internal/engine"
	"github.com/jonesrussell/viewtrace/internal/handler"
	"github.com/jonesrussell/viewtrace/internal/logger"
	"github.com/jonesrussell/viewtrace/internal/storage"
)

// newTestEngine builds an engine with deterministic conditioning and no
// persistence.
func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()

	cfg := config.Default()
	cfg.Conditioner.SampleRate = 1.0
	cfg.Conditioner.SampleFloor = 1.0
	cfg.Conditioner.MaxEventsPerSecond = 1_000_000

	store := storage.NewManager(nil, logger.NewNop(), storage.ManagerOptions{})
	return engine.New(cfg, logger.NewNop(), store)
}

func newEventRouter(t *testing.T) (*gin.Engine, *engine.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	eng := newTestEngine(t)
	h := handler.NewEventHandler(eng, logger.NewNop())

	r := gin.New()
	r.POST("/events", h.HandleEvents)
	r.POST("/viewport", h.HandleViewport)
	r.POST("/tracking", h.HandleTracking)
	return r, eng
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestHandleEvents_AcceptsBatch(t *testing.T) {
	r, eng := newEventRouter(t)

	w := postJSON(r, "/events", `{"events":[
		{"type":"click","timestamp_ms":100,"details":{"screen_x":10,"screen_y":10}},
		{"type":"navigate","timestamp_ms":200,"page_number":2},
		{"type":"snip","timestamp_ms":300,"details":{"x":1,"y":2,"width":50,"height":40}}
	]}`)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"accepted":3`) {
		t.Fatalf("expected 3 accepted, got %s", w.Body.String())
	}

	rec := eng.Snapshot()
	if len(rec.Interactions) != 3 {
		t.Fatalf("expected 3 interactions in engine, got %d", len(rec.Interactions))
	}
	if rec.TotalPages != 2 {
		t.Fatalf("expected navigation applied, got %d pages", rec.TotalPages)
	}
}

func TestHandleEvents_CountsRejectedKinds(t *testing.T) {
	r, _ := newEventRouter(t)

	w := postJSON(r, "/events", `{"events":[
		{"type":"click","timestamp_ms":100},
		{"type":"teleport","timestamp_ms":200}
	]}`)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"accepted":1`) || !strings.Contains(body, `"rejected":1`) {
		t.Fatalf("expected 1 accepted / 1 rejected, got %s", body)
	}
}

func TestHandleEvents_RejectsMalformedAndEmpty(t *testing.T) {
	r, _ := newEventRouter(t)

	if w := postJSON(r, "/events", `{not json`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", w.Code)
	}
	if w := postJSON(r, "/events", `{"events":[]}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty batch, got %d", w.Code)
	}
}

func TestHandleViewport_InstallsGeometry(t *testing.T) {
	r, eng := newEventRouter(t)

	w := postJSON(r, "/viewport", `{
		"left": 100, "top": 50, "width": 800, "height": 600,
		"surface_width": 1600, "surface_height": 1200, "zoom": 2
	}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := eng.Viewport(); got.Width != 800 || got.Zoom != 2 {
		t.Fatalf("viewport not installed: %+v", got)
	}
}

func TestHandleViewport_RejectsInvalidGeometry(t *testing.T) {
	r, _ := newEventRouter(t)

	w := postJSON(r, "/viewport", `{"width": -10, "height": 0, "zoom": 1}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid geometry, got %d", w.Code)
	}
}

func TestHandleTracking_TogglesEngine(t *testing.T) {
	r, eng := newEventRouter(t)

	if w := postJSON(r, "/tracking", `{"enabled": false}`); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if eng.Enabled() {
		t.Fatal("expected tracking disabled")
	}

	if w := postJSON(r, "/tracking", `{"enabled": true}`); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !eng.Enabled() {
		t.Fatal("expected tracking enabled")
	}

	if w := postJSON(r, "/tracking", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing flag, got %d", w.Code)
	}
}
