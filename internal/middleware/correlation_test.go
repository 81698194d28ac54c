package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCorrelationID(t *testing.T) {
	handler := CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := r.Context().Value(CorrelationKey).(string)
		if !ok || id == "" {
			t.Error("correlation id missing from context")
		}
	}))

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Header().Get("X-Correlation-ID") == "" {
		t.Error("header missing")
	}
}

func TestCorrelationID_PropagatesHeader(t *testing.T) {
	handler := CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetCorrelationID(r.Context()) != "caller-supplied" {
			t.Error("caller-supplied id not propagated")
		}
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Correlation-ID", "caller-supplied")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Header().Get("X-Correlation-ID") != "caller-supplied" {
		t.Errorf("expected echoed header, got %q", w.Header().Get("X-Correlation-ID"))
	}
}

func TestGetCorrelationID_Unset(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if got := GetCorrelationID(req.Context()); got != "unknown" {
		t.Errorf("expected unknown, got %q", got)
	}
}
