package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestReadiness_AllHealthy(t *testing.T) {
	e := echo.New()
	h := NewHealthDependenciesHandler(
		Pinger{Name: "a", Ping: func(context.Context) error { return nil }},
		Pinger{Name: "b", Ping: func(context.Context) error { return nil }},
	)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health/ready", nil), rec)
	if err := h.Readiness(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestReadiness_OneDown(t *testing.T) {
	e := echo.New()
	h := NewHealthDependenciesHandler(
		Pinger{Name: "mongodb", Ping: func(context.Context) error { return nil }},
		Pinger{Name: "redis", Ping: func(context.Context) error { return errors.New("connection refused") }},
	)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health/ready", nil), rec)
	_ = h.Readiness(c)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var resp readinessResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Status != "degraded" || resp.Dependencies["redis"].Status != "unhealthy" || resp.Dependencies["mongodb"].Status != "ok" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestReadiness_NoDependencies(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health/ready", nil), rec)
	_ = NewHealthDependenciesHandler().Readiness(c)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
