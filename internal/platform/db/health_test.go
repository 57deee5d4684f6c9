package db

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func runHealth(t *testing.T, check Check) (*httptest.ResponseRecorder, HealthReport) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)
	if err := HealthHandler("sqlite", check, nil)(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	var report HealthReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return rec, report
}

func TestHealthHandler_Healthy(t *testing.T) {
	rec, report := runHealth(t, func(context.Context) error { return nil })
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if report.Status != "healthy" || report.Store != "sqlite" {
		t.Errorf("unexpected report %+v", report)
	}
	if report.Pool != nil {
		t.Error("expected no pool section without a pool")
	}
}

func TestHealthHandler_Unhealthy(t *testing.T) {
	rec, report := runHealth(t, func(context.Context) error { return errors.New("disk gone") })
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if report.Status != "unhealthy" || report.Error != "disk gone" {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestHealthHandler_CheckHasDeadline(t *testing.T) {
	runHealth(t, func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("expected the check context to carry a deadline")
		}
		return nil
	})
}
