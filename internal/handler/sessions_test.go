package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/viewtrace/internal/config"
	"github.com/jonesrussell/viewtrace/internal/domain"
	"github.com/jonesrussell/viewtrace/internal/engine"
	"github.com/jonesrussell/viewtrace/internal/handler"
	"github.com/jonesrussell/viewtrace/internal/logger"
	"github.com/jonesrussell/viewtrace/internal/storage"
)

func newSessionRouter(t *testing.T) (*gin.Engine, *engine.Engine, *storage.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend, err := storage.NewFileBackend(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	store := storage.NewManager(backend, logger.NewNop(), storage.ManagerOptions{
		WriteDebounce: 10 * time.Millisecond,
		BatchSize:     25,
		BatchTimeout:  time.Second,
		FlushTimeout:  2 * time.Second,
		MaxDataAge:    time.Hour,
		MaxSessions:   10,
	})
	store.Start()
	t.Cleanup(store.Stop)

	cfg := config.Default()
	cfg.Conditioner.SampleRate = 1.0
	cfg.Conditioner.SampleFloor = 1.0
	eng := engine.New(cfg, logger.NewNop(), store)

	h := handler.NewSessionHandler(eng, store, logger.NewNop())
	r := gin.New()
	r.GET("/sessions", h.List)
	r.GET("/sessions/:id", h.Get)
	r.GET("/sessions/:id/export", h.Export)
	r.DELETE("/sessions/:id", h.Delete)
	r.POST("/session/close", h.Close)
	return r, eng, store
}

func doRequest(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, http.NoBody)
	r.ServeHTTP(w, req)
	return w
}

func TestSessions_GetLiveSession(t *testing.T) {
	r, eng, _ := newSessionRouter(t)

	eng.Snip(1, 2, 50, 40, 100)

	w := doRequest(r, http.MethodGet, "/sessions/"+eng.SessionID())
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var rec domain.SessionRecord
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("malformed response: %v", err)
	}
	if rec.SessionID != eng.SessionID() || len(rec.Interactions) != 1 {
		t.Fatalf("unexpected live record: %+v", rec)
	}
}

func TestSessions_GetUnknownIs404(t *testing.T) {
	r, _, _ := newSessionRouter(t)

	if w := doRequest(r, http.MethodGet, "/sessions/nope"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestSessions_CloseRotatesAndPersists(t *testing.T) {
	r, eng, store := newSessionRouter(t)

	firstID := eng.SessionID()
	eng.Snip(1, 2, 50, 40, 100)

	w := doRequest(r, http.MethodPost, "/session/close")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), firstID) {
		t.Fatalf("expected closed id in response, got %s", w.Body.String())
	}
	if eng.SessionID() == firstID {
		t.Fatal("expected a fresh live session after close")
	}

	if _, err := store.LoadSession(firstID); err != nil {
		t.Fatalf("closed session not persisted: %v", err)
	}

	// The stored session now shows up in the listing.
	w = doRequest(r, http.MethodGet, "/sessions")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), firstID) {
		t.Fatalf("expected stored session in listing, got %s", w.Body.String())
	}
}

func TestSessions_ExportFormats(t *testing.T) {
	r, eng, _ := newSessionRouter(t)

	eng.Snip(1, 2, 50, 40, 100)
	doRequest(r, http.MethodPost, "/session/close")

	metasResp := doRequest(r, http.MethodGet, "/sessions")
	var listing struct {
		Sessions []domain.SessionMetadata `json:"sessions"`
	}
	if err := json.Unmarshal(metasResp.Body.Bytes(), &listing); err != nil || len(listing.Sessions) == 0 {
		t.Fatalf("no stored sessions to export: %v", err)
	}
	id := listing.Sessions[0].SessionID

	w := doRequest(r, http.MethodGet, "/sessions/"+id+"/export?format=json")
	if w.Code != http.StatusOK {
		t.Fatalf("json export: expected 200, got %d", w.Code)
	}
	var rec domain.SessionRecord
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("json export not parseable: %v", err)
	}

	w = doRequest(r, http.MethodGet, "/sessions/"+id+"/export?format=report")
	if w.Code != http.StatusOK {
		t.Fatalf("report export: expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), id) {
		t.Fatal("report export missing session id")
	}

	if w := doRequest(r, http.MethodGet, "/sessions/"+id+"/export?format=xml"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown format, got %d", w.Code)
	}
}

func TestSessions_DeleteStoredAndProtectLive(t *testing.T) {
	r, eng, store := newSessionRouter(t)

	firstID := eng.SessionID()
	doRequest(r, http.MethodPost, "/session/close")

	if w := doRequest(r, http.MethodDelete, "/sessions/"+eng.SessionID()); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 deleting live session, got %d", w.Code)
	}

	if w := doRequest(r, http.MethodDelete, "/sessions/"+firstID); w.Code != http.StatusOK {
		t.Fatalf("expected 200 deleting stored session, got %d", w.Code)
	}
	if _, err := store.LoadSession(firstID); err == nil {
		t.Fatal("expected session removed from storage")
	}

	if w := doRequest(r, http.MethodDelete, "/sessions/"+firstID); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for repeated delete, got %d", w.Code)
	}
}
