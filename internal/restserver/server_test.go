package restserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/device-model/server/internal/authz"
	"github.com/device-model/server/internal/device"
	"github.com/device-model/server/internal/handlers"
	"github.com/device-model/server/internal/model"
	"github.com/device-model/server/internal/wire"
)

func newTestServer() *Server {
	registry := device.NewRegistry()
	d := device.New(device.Config{Slot: 1, DetailLevel: wire.DetailFull, MultiSetEnabled: true})
	pd := &model.ParamDescriptor{Oid: "/count", Type: wire.TypeInt32, Scope: authz.ScopeOperate}
	d.AddParam("count", model.NewParam("count", pd, wire.Int32Value(0)))
	registry.Put(d)

	return New(handlers.New(registry), Config{Port: 0, AuthRequired: false})
}

func do(s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/value/", s.requireAuth(s.handleValue))
	mux.HandleFunc("/v1/multiset", s.requireAuth(s.handleMultiSet))
	mux.HandleFunc("/v1/slots", s.requireAuth(s.handleSlots))
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandleValueGetSet(t *testing.T) {
	s := newTestServer()

	rec := do(s, http.MethodPut, "/v1/value/1/count", wire.Int32Value(42))
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT /v1/value: got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(s, http.MethodGet, "/v1/value/1/count", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /v1/value: got %d: %s", rec.Code, rec.Body.String())
	}
	var v wire.Value
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if v.Int32 != 42 {
		t.Fatalf("expected 42, got %d", v.Int32)
	}
}

func TestHandleValueUnknownSlot(t *testing.T) {
	s := newTestServer()
	rec := do(s, http.MethodGet, "/v1/value/9/count", nil)
	if rec.Code != http.StatusInternalServerError && rec.Code != 410 {
		t.Fatalf("expected a not-found-mapped status, got %d", rec.Code)
	}
}

func TestHandleSlots(t *testing.T) {
	s := newTestServer()
	rec := do(s, http.MethodGet, "/v1/slots", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /v1/slots: got %d", rec.Code)
	}
	var slots []uint32
	if err := json.Unmarshal(rec.Body.Bytes(), &slots); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(slots) != 1 || slots[0] != 1 {
		t.Fatalf("expected [1], got %v", slots)
	}
}

// TestCORSHeaders exercises spec §6's always-present CORS contract: the
// request's own Origin reflected back, the full allowed-headers list, and
// credentials enabled.
func TestCORSHeaders(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/v1/slots", nil)
	req.Header.Set("Origin", "https://example.test")
	rec := httptest.NewRecorder()
	s.corsMiddleware(s.requireAuth(s.handleSlots)).ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://example.test" {
		t.Fatalf("expected Origin to be reflected, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("expected credentials true, got %q", got)
	}
	wantHeaders := []string{"Content-Type", "Authorization", "accept", "Origin", "X-Requested-With", "Language", "Detail-Level"}
	got := rec.Header().Get("Access-Control-Allow-Headers")
	for _, h := range wantHeaders {
		if !strings.Contains(got, h) {
			t.Fatalf("expected allowed headers to include %q, got %q", h, got)
		}
	}
}

// TestCORSHeadersNoOrigin exercises the "* when Origin absent" fallback.
func TestCORSHeadersNoOrigin(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/v1/slots", nil)
	rec := httptest.NewRecorder()
	s.corsMiddleware(s.requireAuth(s.handleSlots)).ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected \"*\" when no Origin header is sent, got %q", got)
	}
}
