package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestTimingMiddleware_CapturesStatusCode verifies the status code is passed through.
func TestTimingMiddleware_CapturesStatusCode(t *testing.T) {
	handler := Timing(time.Second, []string{"/missing"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest("GET", "/missing", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

// TestTimingMiddleware_SkipsStatic verifies static assets bypass the wrapper.
func TestTimingMiddleware_SkipsStatic(t *testing.T) {
	var wrapped bool
	handler := Timing(0, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, wrapped = w.(*statusWriter)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/static/style.css", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if wrapped {
		t.Error("static request should not be wrapped")
	}
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}

// TestTimingMiddleware_SlowRequest verifies slow handlers still complete normally.
func TestTimingMiddleware_SlowRequest(t *testing.T) {
	handler := Timing(time.Nanosecond, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Millisecond)
		w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest("GET", "/account/deletion", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Errorf("got %d %q, want 200 ok", rr.Code, rr.Body.String())
	}
}

// TestStatusWriter_HijackUnsupported verifies a clear error when the writer cannot hijack.
func TestStatusWriter_HijackUnsupported(t *testing.T) {
	sw := &statusWriter{ResponseWriter: httptest.NewRecorder()}
	if _, _, err := sw.Hijack(); err == nil {
		t.Error("expected error from recorder without Hijacker")
	}
}
