package app

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/kbukum/whisperserver/bootstrap"
	"github.com/kbukum/whisperserver/component"
	"github.com/kbukum/whisperserver/errors"
	"github.com/kbukum/whisperserver/logger"
	"github.com/kbukum/whisperserver/normalize"
	"github.com/kbukum/whisperserver/notifier"
	"github.com/kbukum/whisperserver/sse"
	"github.com/kbukum/whisperserver/transcription"
)

type fakeEngine struct{ text string }

func (f *fakeEngine) Name() string                  { return "fake" }
func (f *fakeEngine) Check(_ context.Context) error { return nil }
func (f *fakeEngine) Transcribe(_ context.Context, req transcription.Request) (*transcription.Result, error) {
	if err := transcription.WriteOutput(req, f.text); err != nil {
		return nil, err
	}
	return &transcription.Result{Text: f.text, OutputPath: req.OutputPath()}, nil
}

type recordingSink struct {
	mu   sync.Mutex
	sent []notifier.Notification
}

func (s *recordingSink) Name() string { return "recording" }
func (s *recordingSink) Notify(_ context.Context, n notifier.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return nil
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := &Config{}
	cfg.Storage.Dir = t.TempDir()
	cfg.Engine.WhisperCPP.Model = filepath.Join(t.TempDir(), "ggml-base.en.bin")
	cfg.Server.Host = "127.0.0.1"
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return cfg
}

func copyConverter() normalize.Converter {
	return normalize.ConverterFunc(func(_ context.Context, in, out string) error {
		data, err := os.ReadFile(in)
		if err != nil {
			return err
		}
		return os.WriteFile(out, data, 0o600)
	})
}

func uploadRequest(t *testing.T, filename, contentType, username string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if username != "" {
		_ = mw.WriteField("username", username)
	}
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="audio"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	w, err := mw.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = w.Write([]byte("RIFF....WAVEfmt "))
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/transcribe", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestConfigDefaults(t *testing.T) {
	cfg := testConfig(t)
	if cfg.Name != "whisper-server" {
		t.Errorf("Name = %q", cfg.Name)
	}
	if cfg.Engine.Type != "whispercpp" || cfg.Engine.WhisperCPP.Binary != "whisper-cli" {
		t.Errorf("engine defaults: %+v", cfg.Engine)
	}
	if cfg.Upload.MaxSize != "1GB" || cfg.Server.Port != 8000 {
		t.Errorf("upload/server defaults: %s %d", cfg.Upload.MaxSize, cfg.Server.Port)
	}
	if cfg.Pool.Size != 1 || cfg.Pool.MaxWait.Minutes() != 10 {
		t.Errorf("pool defaults: %+v", cfg.Pool)
	}
	if cfg.Observability.Environment != cfg.Environment {
		t.Errorf("observability environment = %q", cfg.Observability.Environment)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown engine", func(c *Config) { c.Engine.Type = "vosk" }},
		{"whispercpp without model", func(c *Config) { c.Engine.WhisperCPP.Model = "" }},
		{"bad upload size", func(c *Config) { c.Upload.MaxSize = "lots" }},
		{"negative pool wait", func(c *Config) { c.Pool.MaxWait = -1 }},
		{"bad webhook url", func(c *Config) {
			c.Notifier.Enabled = true
			c.Notifier.Webhook.Enabled = true
			c.Notifier.Webhook.URL = "not a url"
		}},
		{"webhook auth without token", func(c *Config) {
			c.Notifier.Enabled = true
			c.Notifier.Webhook.Enabled = true
			c.Notifier.Webhook.Auth.Scheme = "bearer"
		}},
		{"kafka half keypair", func(c *Config) {
			c.Notifier.Enabled = true
			c.Notifier.Kafka.Enabled = true
			c.Notifier.Kafka.TLS.CertFile = "client.pem"
		}},
		{"bad sample rate", func(c *Config) { c.Observability.SampleRate = 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestConfigValidate_OpenAIIgnoresWhisperModel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.Type = "openai"
	cfg.Engine.WhisperCPP.Model = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoad_FileAndLegacyEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yml")
	yml := "upload:\n  max_size: 20MB\nstorage:\n  dir: " + filepath.Join(dir, "uploads") + "\n"
	if err := os.WriteFile(file, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "9001")
	t.Setenv("WHISPER_CPP_PATH", "/opt/whisper.cpp")
	t.Setenv("MODEL_PATH", "/models/ggml-base.en.bin")

	cfg, err := Load(LoadOptions{ConfigFile: file})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9001 {
		t.Errorf("port = %d, want 9001", cfg.Server.Port)
	}
	if cfg.Engine.WhisperCPP.Binary != "/opt/whisper.cpp/build/bin/whisper-cli" {
		t.Errorf("binary = %q", cfg.Engine.WhisperCPP.Binary)
	}
	if cfg.Engine.WhisperCPP.Model != "/models/ggml-base.en.bin" {
		t.Errorf("model = %q", cfg.Engine.WhisperCPP.Model)
	}
	if cfg.Upload.MaxSize != "20MB" {
		t.Errorf("max_size = %q", cfg.Upload.MaxSize)
	}
	if !cfg.Notifier.Enabled || !cfg.Notifier.Webhook.Enabled {
		t.Error("webhook notifier should be enabled by default")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(LoadOptions{ConfigFile: filepath.Join(t.TempDir(), "nope.yml")}); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestEngineNames(t *testing.T) {
	if got := strings.Join(EngineNames(), ","); got != "openai,whispercpp" {
		t.Errorf("EngineNames() = %s", got)
	}
}

func TestService_TranscribeEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	sink := &recordingSink{}
	svc, err := New(cfg, logger.Nop(),
		WithEngine(&fakeEngine{text: "hello from whisper"}),
		WithConverter(copyConverter()),
		WithSinks(sink),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	w := httptest.NewRecorder()
	svc.Server.Handler().ServeHTTP(w, uploadRequest(t, "meeting.webm", "audio/webm", "alice"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}

	final, err := sse.ReadJob(sse.NewReader(io.NopCloser(w.Body)), nil)
	if err != nil {
		t.Fatalf("ReadJob: %v", err)
	}
	if final.Status != sse.StatusComplete || final.Text() != "hello from whisper" {
		t.Errorf("final = %+v", final)
	}

	svc.Dispatcher.Wait()
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.sent) != 1 || sink.sent[0].Username != "alice" || sink.sent[0].Transcript != "hello from whisper" {
		t.Errorf("notifications = %+v", sink.sent)
	}

	entries, err := os.ReadDir(cfg.Storage.Dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty upload dir, found %d entries", len(entries))
	}
}

func TestService_RejectsBadType(t *testing.T) {
	svc, err := New(testConfig(t), logger.Nop(), WithEngine(&fakeEngine{}), WithSinks())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w := httptest.NewRecorder()
	svc.Server.Handler().ServeHTTP(w, uploadRequest(t, "notes.txt", "text/plain", ""))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Invalid file type. Only audio files are allowed.") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestService_Health(t *testing.T) {
	svc, err := New(testConfig(t), logger.Nop(), WithEngine(&fakeEngine{}), WithSinks())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w := httptest.NewRecorder()
	svc.Server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != `{"status":"ok"}` {
		t.Errorf("health: %d %s", w.Code, w.Body.String())
	}
}

type failingSink struct{}

func (failingSink) Name() string { return "webhook" }
func (failingSink) Notify(context.Context, notifier.Notification) error {
	return stderrors.New("downstream 500")
}

func TestService_HealthIgnoresFailedDelivery(t *testing.T) {
	svc, err := New(testConfig(t), logger.Nop(), WithEngine(&fakeEngine{}), WithSinks(failingSink{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	svc.Dispatcher.Dispatch(notifier.Notification{JobID: "j", Transcript: "hello"})
	svc.Dispatcher.Wait()
	if svc.Dispatcher.Failed() != 1 {
		t.Fatalf("failed = %d, want 1", svc.Dispatcher.Failed())
	}

	w := httptest.NewRecorder()
	svc.Server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != `{"status":"ok"}` {
		t.Errorf("health after failed delivery: %d %s", w.Code, w.Body.String())
	}
}

func TestService_Components(t *testing.T) {
	cfg := testConfig(t)
	cfg.Notifier.Enabled = true
	cfg.Notifier.Kafka.Enabled = true
	svc, err := New(cfg, logger.Nop(), WithEngine(&fakeEngine{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var names []string
	for _, c := range svc.Components() {
		names = append(names, c.Name())
	}
	if got := strings.Join(names, ","); got != "observability,storage,kafka,notifier,http-server" {
		t.Errorf("components = %s", got)
	}
	if got := strings.Join(svc.Dispatcher.Sinks(), ","); got != "kafka" {
		t.Errorf("sinks = %s", got)
	}
}

func TestService_CheckFailsWithoutBinary(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.WhisperCPP.Binary = filepath.Join(t.TempDir(), "whisper-cli")
	svc, err := New(cfg, logger.Nop(), WithSinks())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if kind := errors.KindOfError(svc.Check(context.Background())); kind != errors.KindStartup {
		t.Errorf("kind = %q, want startup", kind)
	}
}

type checkedConverter struct {
	normalize.Converter
	err error
}

func (c checkedConverter) Check(context.Context) error { return c.err }

func TestService_CheckUsesConverterInUse(t *testing.T) {
	cfg := testConfig(t)
	cfg.Converter.FFmpeg.Binary = filepath.Join(t.TempDir(), "ffmpeg")

	svc, err := New(cfg, logger.Nop(), WithEngine(&fakeEngine{}), WithConverter(copyConverter()), WithSinks())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := svc.Check(context.Background()); err != nil {
		t.Errorf("Check with a replaced converter: %v", err)
	}

	want := stderrors.New("converter unavailable")
	svc, err = New(cfg, logger.Nop(), WithEngine(&fakeEngine{}),
		WithConverter(checkedConverter{Converter: copyConverter(), err: want}), WithSinks())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := svc.Check(context.Background()); !stderrors.Is(err, want) {
		t.Errorf("Check = %v, want the converter's own check", err)
	}
}

func TestService_PreflightBlocksStartup(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.WhisperCPP.Binary = filepath.Join(t.TempDir(), "whisper-cli")
	svc, err := New(cfg, logger.Nop(), WithSinks())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a, err := bootstrap.NewApp(cfg, bootstrap.WithLogger(logger.Nop()), bootstrap.WithSummaryOutput(io.Discard))
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	if err := svc.Register(a); err != nil {
		t.Fatalf("Register: %v", err)
	}

	err = a.RunTask(context.Background(), func(context.Context) error {
		t.Error("task must not run")
		return nil
	})
	if errors.KindOfError(err) != errors.KindStartup {
		t.Errorf("err = %v, want startup error", err)
	}
	if svc.Server.Listening() {
		t.Error("server must not bind after a failed check")
	}
	for _, h := range a.Components.HealthAll(context.Background()) {
		if h.Name == "http-server" && h.Status != component.StatusUnhealthy {
			t.Errorf("http-server health = %s", h.Status)
		}
	}
}
