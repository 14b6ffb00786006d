package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/raharper/subiquity/internal/config"
	"github.com/raharper/subiquity/internal/model"
)

const gib = int64(1) << 30

func newTestRouter(t *testing.T) (http.Handler, *model.Model) {
	t.Helper()
	m := model.New(model.BootloaderBios)
	m.AddDisk("sda", 100*gib)
	m.AddDisk("sdb", 100*gib)
	m.AddDisk("sdc", 100*gib)
	cfg := config.Config{LogLevel: zerolog.Disabled}
	return NewRouter(cfg, m), m
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := doJSON(t, h, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		OK bool `json:"ok"`
	}
	decode(t, rec, &body)
	if !body.OK {
		t.Error("expected ok=true")
	}
}

func TestMetricsExposed(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := doJSON(t, h, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("expected prometheus output")
	}
}

func TestOverview(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := doJSON(t, h, http.MethodGet, "/api/v1/storage/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Bootloader string `json:"bootloader"`
		Devices    int    `json:"devices"`
	}
	decode(t, rec, &body)
	if body.Bootloader != "bios" || body.Devices != 3 {
		t.Errorf("overview = %+v", body)
	}
}

func TestListDevices(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := doJSON(t, h, http.MethodGet, "/api/v1/storage/devices", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Devices []deviceView `json:"devices"`
	}
	decode(t, rec, &body)
	if len(body.Devices) != 3 {
		t.Fatalf("got %d devices", len(body.Devices))
	}
	d := body.Devices[0]
	if d.Type != "disk" || d.Label != "sda" || d.SizeHuman != "100.000G" {
		t.Errorf("device = %+v", d)
	}
	if len(d.Actions) == 0 {
		t.Error("expected actions in device view")
	}
}

func TestGetDeviceByLabel(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := doJSON(t, h, http.MethodGet, "/api/v1/storage/devices/sda", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var d deviceView
	decode(t, rec, &d)
	if d.Label != "sda" {
		t.Errorf("label = %q", d.Label)
	}
}

func TestUnknownDevice(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := doJSON(t, h, http.MethodGet, "/api/v1/storage/devices/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
