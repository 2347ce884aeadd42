package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerAggregatesHealthyChecks(t *testing.T) {
	handler := NewHandler("v1.2.3")
	handler.RegisterChecker("storage", NewSimpleChecker("storage", func() error { return nil }))
	handler.RegisterChecker("kafka", NewSimpleChecker("kafka", func() error { return nil }))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var response Response
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.Status != StatusHealthy {
		t.Fatalf("status = %s, want healthy", response.Status)
	}
	if response.Version != "v1.2.3" {
		t.Fatalf("version = %s", response.Version)
	}
	if len(response.Checks) != 2 {
		t.Fatalf("checks = %d, want 2", len(response.Checks))
	}
}

func TestHandlerReportsBuildInfo(t *testing.T) {
	handler := NewHandler("v1.2.3")
	handler.SetBuildInfo("abc1234", "2026-03-11T12:00:00Z")

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var response Response
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.Commit != "abc1234" {
		t.Fatalf("commit = %q", response.Commit)
	}
	if response.BuildDate != "2026-03-11T12:00:00Z" {
		t.Fatalf("build date = %q", response.BuildDate)
	}

	// Без build info поля опускаются из JSON.
	bare := NewHandler("v1.2.3")
	w = httptest.NewRecorder()
	bare.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	body := w.Body.String()
	if strings.Contains(body, "commit") || strings.Contains(body, "build_date") {
		t.Fatalf("empty build info leaked into response: %s", body)
	}
}

func TestHandlerReportsUnhealthy(t *testing.T) {
	handler := NewHandler("v1.2.3")
	handler.RegisterChecker("storage", NewSimpleChecker("storage", func() error {
		return errors.New("connection refused")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}

	var response Response
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.Status != StatusUnhealthy {
		t.Fatalf("status = %s, want unhealthy", response.Status)
	}
}

func TestLivenessHandlerAlwaysOK(t *testing.T) {
	w := httptest.NewRecorder()
	LivenessHandler(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.String() != "ok" {
		t.Fatalf("body = %q, want ok", w.Body.String())
	}
}

func TestReadinessHandler(t *testing.T) {
	handler := NewHandler("v1.2.3")
	handler.RegisterChecker("storage", NewSimpleChecker("storage", func() error { return nil }))

	w := httptest.NewRecorder()
	handler.ReadinessHandler(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if w.Code != http.StatusOK || w.Body.String() != "ready" {
		t.Fatalf("response = %d %q, want 200 ready", w.Code, w.Body.String())
	}

	handler.RegisterChecker("kafka", NewSimpleChecker("kafka", func() error {
		return errors.New("broker down")
	}))

	w = httptest.NewRecorder()
	handler.ReadinessHandler(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if w.Code != http.StatusServiceUnavailable || w.Body.String() != "not ready" {
		t.Fatalf("response = %d %q, want 503 not ready", w.Code, w.Body.String())
	}
}

func TestSimpleCheckerMeasuresDuration(t *testing.T) {
	checker := NewSimpleChecker("probe", func() error { return nil })

	check := checker.Check()
	if check.Status != StatusHealthy {
		t.Fatalf("status = %s, want healthy", check.Status)
	}
	if check.Name != "probe" {
		t.Fatalf("name = %s", check.Name)
	}
	if check.DurationMs < 0 {
		t.Fatalf("duration = %d", check.DurationMs)
	}

	failing := NewSimpleChecker("probe", func() error { return errors.New("boom") })
	check = failing.Check()
	if check.Status != StatusUnhealthy || check.Message != "boom" {
		t.Fatalf("check = %+v", check)
	}
}
