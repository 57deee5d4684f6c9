package db

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestExtractTenantID_FromHeader(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Tenant-ID", "practice_abc")
	c := e.NewContext(req, httptest.NewRecorder())

	if tid := extractTenantID(c, "default"); tid != "practice_abc" {
		t.Errorf("expected practice_abc, got %s", tid)
	}
}

func TestExtractTenantID_FromQuery(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?tenant_id=clinic_xyz", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	if tid := extractTenantID(c, "default"); tid != "clinic_xyz" {
		t.Errorf("expected clinic_xyz, got %s", tid)
	}
}

func TestExtractTenantID_JWTWins(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Tenant-ID", "from_header")
	c := e.NewContext(req, httptest.NewRecorder())
	c.Set("jwt_tenant_id", "jwt_tenant")

	if tid := extractTenantID(c, "default"); tid != "jwt_tenant" {
		t.Errorf("expected jwt_tenant, got %s", tid)
	}
}

func TestExtractTenantID_Default(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	if tid := extractTenantID(c, "default"); tid != "default" {
		t.Errorf("expected default, got %s", tid)
	}
}

func TestSchemaFor(t *testing.T) {
	tests := []struct {
		tenant  string
		want    string
		wantErr bool
	}{
		{"default", "tenant_default", false},
		{"clinic_01", "tenant_clinic_01", false},
		{"bad-name", "", true},
		{"x; DROP SCHEMA public", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := SchemaFor(tt.tenant)
		if (err != nil) != tt.wantErr {
			t.Errorf("SchemaFor(%q) err = %v, wantErr %v", tt.tenant, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("SchemaFor(%q) = %q, want %q", tt.tenant, got, tt.want)
		}
	}
}

func TestContextHelpers_Empty(t *testing.T) {
	ctx := context.Background()
	if ConnFromContext(ctx) != nil {
		t.Error("expected nil connection on empty context")
	}
	if TenantFromContext(ctx) != "" {
		t.Error("expected empty tenant on empty context")
	}
}
