package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/whisperserver/component"
	apperrors "github.com/kbukum/whisperserver/errors"
	"github.com/kbukum/whisperserver/job"
	"github.com/kbukum/whisperserver/logger"
	"github.com/kbukum/whisperserver/pipeline"
	"github.com/kbukum/whisperserver/server/middleware"
)

// bodyReceiver drains the request body the way the upload receiver does
// and maps a capped body to TooLarge.
type bodyReceiver struct{}

func (bodyReceiver) Receive(r *http.Request) (*job.Job, error) {
	if _, err := io.ReadAll(r.Body); err != nil {
		var maxErr *http.MaxBytesError
		if stderrors.As(err, &maxErr) {
			return nil, apperrors.TooLarge("1KB")
		}
		return nil, apperrors.InvalidInput("upload interrupted")
	}
	return job.New("job-1", "clip.wav"), nil
}

type completeRunner struct{}

func (completeRunner) Run(_ context.Context, _ *job.Job, em pipeline.Emitter) error {
	defer em.Close()
	if err := em.Processing("Starting transcription..."); err != nil {
		return err
	}
	return em.Complete("hello")
}

func newTestServer(t *testing.T, mutate func(*Config)) *Server {
	t.Helper()
	cfg := Config{Host: "127.0.0.1"}
	cfg.ApplyDefaults()
	cfg.Port = 0
	if mutate != nil {
		mutate(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("invalid config: %v", err)
	}
	s := New(cfg, logger.Nop())
	s.RegisterRoutes(Routes{
		Receiver:    bodyReceiver{},
		Runner:      completeRunner{},
		UploadLimit: 1024,
		Health: func(context.Context) []component.Health {
			return []component.Health{{Name: "storage", Status: component.StatusHealthy}}
		},
	})
	s.ApplyMiddleware()
	return s
}

func do(s *Server, method, path string, body io.Reader) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(method, path, body))
	return w
}

func TestRoutes_HealthAndVersion(t *testing.T) {
	s := newTestServer(t, nil)
	for _, path := range []string{"/health", "/api/health"} {
		w := do(s, http.MethodGet, path, nil)
		if w.Code != http.StatusOK {
			t.Errorf("%s: status = %d", path, w.Code)
		}
		if got := strings.TrimSpace(w.Body.String()); got != `{"status":"ok"}` {
			t.Errorf("%s: body = %s", path, got)
		}
		if w.Header().Get(middleware.RequestIDHeader) == "" {
			t.Errorf("%s: missing request id header", path)
		}
	}
	for _, path := range []string{"/version", "/api/version", "/ready", "/api/ready"} {
		if w := do(s, http.MethodGet, path, nil); w.Code != http.StatusOK {
			t.Errorf("%s: status = %d", path, w.Code)
		}
	}
}

func TestRoutes_TranscribeStreams(t *testing.T) {
	s := newTestServer(t, nil)
	w := do(s, http.MethodPost, "/api/transcribe", strings.NewReader("audio"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), `"status":"complete"`) {
		t.Errorf("missing complete event: %s", w.Body.String())
	}
}

func TestRoutes_TranscribeBodyCap(t *testing.T) {
	s := newTestServer(t, nil)
	w := do(s, http.MethodPost, "/transcribe", strings.NewReader(strings.Repeat("x", 4096)))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !strings.HasPrefix(body["error"], "File too large") {
		t.Errorf("error = %q", body["error"])
	}
}

func TestRoutes_TranscribeRateLimited(t *testing.T) {
	s := newTestServer(t, func(c *Config) {
		c.RateLimit.Enabled = true
		c.RateLimit.RequestsPerMinute = 1
		c.RateLimit.Burst = 1
	})
	if w := do(s, http.MethodPost, "/transcribe", strings.NewReader("a")); w.Code != http.StatusOK {
		t.Fatalf("first request: status = %d", w.Code)
	}
	// the limiter is shared between /transcribe and /api/transcribe
	if w := do(s, http.MethodPost, "/api/transcribe", strings.NewReader("a")); w.Code != http.StatusTooManyRequests {
		t.Errorf("second request: status = %d, want 429", w.Code)
	}
	if w := do(s, http.MethodGet, "/health", nil); w.Code != http.StatusOK {
		t.Errorf("health must not be rate limited: status = %d", w.Code)
	}
}

func TestRoutes_Static(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>whisper</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := newTestServer(t, func(c *Config) { c.StaticDir = dir })

	w := do(s, http.MethodGet, "/", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "<h1>whisper</h1>") {
		t.Errorf("GET /: %d %s", w.Code, w.Body.String())
	}
	if w := do(s, http.MethodPost, "/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("POST /nope: status = %d", w.Code)
	}
}

func TestRoutes_NoStaticDir(t *testing.T) {
	s := newTestServer(t, nil)
	if w := do(s, http.MethodGet, "/index.html", nil); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestServer_StartStop(t *testing.T) {
	s := newTestServer(t, nil)
	sc := NewComponent(s)
	ctx := context.Background()

	if h := sc.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Errorf("before start: %v", h.Status)
	}
	if err := sc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = sc.Stop(ctx) })

	if h := sc.Health(ctx); h.Status != component.StatusHealthy {
		t.Errorf("after start: %v", h.Status)
	}
	if d := sc.Describe(); d.Details != s.Addr() || strings.HasSuffix(d.Details, ":0") {
		t.Errorf("Describe().Details = %q, want bound address", d.Details)
	}

	resp, err := http.Get("http://" + s.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	if err := sc.Stop(ctx); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func TestServer_StartBindError(t *testing.T) {
	first := newTestServer(t, nil)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = first.Stop(context.Background()) })

	_, portStr, err := net.SplitHostPort(first.Addr())
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatal(err)
	}
	second := newTestServer(t, func(c *Config) { c.Port = port })
	if err := second.Start(context.Background()); err == nil {
		_ = second.Stop(context.Background())
		t.Fatal("expected bind error on a port in use")
	}
}

func TestComponentRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	routes := NewComponent(s).Routes()
	if len(routes) != 8 {
		t.Fatalf("expected 8 routes, got %d: %v", len(routes), routes)
	}
	if routes[0].Path != "/api/transcribe" || routes[0].Method != http.MethodPost {
		t.Errorf("API routes should come first, got %+v", routes[0])
	}
	for _, r := range routes[:2] {
		if r.Handler != "transcribe" {
			t.Errorf("handler = %q, want transcribe", r.Handler)
		}
	}
	if last := routes[len(routes)-1]; !systemPaths[last.Path] {
		t.Errorf("system routes should come last, got %+v", last)
	}
}

func TestFormatHandlerName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"github.com/kbukum/whisperserver/server/endpoint.Transcribe.func1", "transcribe"},
		{"github.com/kbukum/whisperserver/server/endpoint.Health.func1", "health"},
		{"github.com/x/y/port.(*UserPort).List-fm", "UserPort.List"},
		{"main.handler", "handler"},
	}
	for _, tt := range tests {
		if got := formatHandlerName(tt.in); got != tt.want {
			t.Errorf("formatHandlerName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConfig(t *testing.T) {
	var c Config
	c.ApplyDefaults()
	if c.Port != 8000 || c.ReadHeaderTimeout != 10 || c.WriteTimeout != 0 {
		t.Errorf("unexpected defaults: %+v", c)
	}
	if c.Address() != ":8000" {
		t.Errorf("Address() = %q", c.Address())
	}
	c.Port = 70000
	if err := c.Validate(); err == nil {
		t.Error("expected error for out-of-range port")
	}
}

func init() {
	gin.SetMode(gin.TestMode)
}
