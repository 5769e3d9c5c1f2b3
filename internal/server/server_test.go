package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	dataDir := t.TempDir()
	csv := "x,y,val\n0.1,0.1,1\n0.5,0.5,2\n0.9,0.9,3\n"
	if err := os.WriteFile(filepath.Join(dataDir, "points.csv"), []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.DataDir = dataDir
	cfg.Cache.Backend = "none"
	cfg.Presets = map[string]Preset{
		"small": {XCol: "x", YCol: "y", Width: 16, Height: 16},
	}

	s, err := New(context.Background(), cfg, log.New(io.Discard))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRenderReturnsPNG(t *testing.T) {
	h := testServer(t).Handler()
	rec := get(t, h, "/render?source=points&x=x&y=y&width=32&height=32")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	im, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if im.Bounds().Dx() != 32 || im.Bounds().Dy() != 32 {
		t.Errorf("size = %v, want 32x32", im.Bounds())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestRenderWithPreset(t *testing.T) {
	h := testServer(t).Handler()
	rec := get(t, h, "/render?source=points&preset=small")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	im, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if im.Bounds().Dx() != 16 {
		t.Errorf("width = %d, want preset width 16", im.Bounds().Dx())
	}

	// Explicit parameters beat the preset.
	rec = get(t, h, "/render?source=points&preset=small&width=8&height=8")
	im, err = png.Decode(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if im.Bounds().Dx() != 8 {
		t.Errorf("width = %d, want override 8", im.Bounds().Dx())
	}
}

func TestRenderErrors(t *testing.T) {
	h := testServer(t).Handler()
	cases := []struct {
		name   string
		target string
		status int
	}{
		{"missing source", "/render?x=x&y=y", http.StatusBadRequest},
		{"unknown feed", "/render?source=nope&x=x&y=y", http.StatusNotFound},
		{"path traversal", "/render?source=..%2Fetc%2Fpasswd&x=x&y=y", http.StatusNotFound},
		{"malformed width", "/render?source=points&x=x&y=y&width=wide", http.StatusBadRequest},
		{"unknown preset", "/render?source=points&preset=huge", http.StatusBadRequest},
		{"unknown colormap", "/render?source=points&x=x&y=y&colormap=jet", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := get(t, h, tc.target)
			if rec.Code != tc.status {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tc.status, rec.Body.String())
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("error body is not JSON: %v", err)
			}
			if body["code"] == "" {
				t.Error("error body missing code")
			}
		})
	}
}

func TestColormapsEndpoint(t *testing.T) {
	h := testServer(t).Handler()
	rec := get(t, h, "/colormaps")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Colormaps []string `json:"colormaps"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, name := range body.Colormaps {
		if name == "viridis" {
			found = true
		}
	}
	if !found {
		t.Errorf("colormaps = %v, want viridis included", body.Colormaps)
	}
}

func TestLegendEndpoint(t *testing.T) {
	h := testServer(t).Handler()
	rec := get(t, h, "/legend?source=points&cats=a,b,c")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Legend map[string]string `json:"legend"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Legend) != 3 {
		t.Fatalf("legend has %d entries, want 3", len(body.Legend))
	}
	for name, hex := range body.Legend {
		if len(hex) != 7 || hex[0] != '#' {
			t.Errorf("legend[%s] = %q, want #rrggbb", name, hex)
		}
	}

	rec = get(t, h, "/legend?source=points")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("legend without cats: status = %d, want 400", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	h := testServer(t).Handler()
	rec := get(t, h, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
listen = ":9090"
data_dir = "/srv/feeds"

[cache]
backend = "none"

[presets.taxi]
x = "pickup_x"
y = "pickup_y"
width = 900
height = 600
reduction = "count"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Listen != ":9090" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.Cache.Backend != "none" {
		t.Errorf("Cache.Backend = %q", cfg.Cache.Backend)
	}
	preset, ok := cfg.Presets["taxi"]
	if !ok {
		t.Fatal("taxi preset missing")
	}
	if preset.XCol != "pickup_x" || preset.Width != 900 {
		t.Errorf("preset = %+v", preset)
	}
}

func TestLoadConfigRejectsBadBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[cache]\nbackend = \"memcached\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for unknown backend")
	}
}
