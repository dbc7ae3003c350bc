package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

type testServer struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	MaxBodySize  string        `mapstructure:"max_body_size"`
	AllowOrigins []string      `mapstructure:"allow_origins"`
}

type testEngine struct {
	Binary string `mapstructure:"binary"`
	Model  string `mapstructure:"model"`
}

type testConfig struct {
	ServiceConfig `mapstructure:",squash"`
	Server        testServer `mapstructure:"server"`
	Engine        testEngine `mapstructure:"engine"`
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestServiceConfigApplyDefaults(t *testing.T) {
	t.Run("empty environment defaults to development", func(t *testing.T) {
		cfg := ServiceConfig{Name: "svc"}
		cfg.ApplyDefaults()
		if cfg.Environment != "development" || !cfg.Debug {
			t.Errorf("unexpected defaults: %+v", cfg)
		}
		if cfg.Logging.Level != "debug" {
			t.Errorf("expected debug logging in development, got %q", cfg.Logging.Level)
		}
	})

	t.Run("production keeps debug false", func(t *testing.T) {
		cfg := ServiceConfig{Name: "svc", Environment: "production"}
		cfg.ApplyDefaults()
		if cfg.Debug {
			t.Error("expected debug=false for production")
		}
		if cfg.Logging.Level != "info" {
			t.Errorf("expected info logging, got %q", cfg.Logging.Level)
		}
	})
}

func TestServiceConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ServiceConfig
		wantErr string
	}{
		{"valid", ServiceConfig{Name: "svc", Environment: "production"}, ""},
		{"missing name", ServiceConfig{Environment: "production"}, "config.name is required"},
		{"invalid environment", ServiceConfig{Name: "svc", Environment: "qa"}, "config.environment must be one of"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.cfg.Logging.ApplyDefaults()
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestLoadWithYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yml", `
name: whisper-server
environment: staging
server:
  port: 9000
  read_timeout: 15s
  max_body_size: 1GB
  allow_origins: ["http://localhost:3000"]
engine:
  binary: /opt/whisper/whisper-cli
`)

	var cfg testConfig
	if err := Load("whisper-server", &cfg, WithConfigFile(path), WithFileSystem(&onlyFS{path})); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Name != "whisper-server" || cfg.Environment != "staging" {
		t.Errorf("unexpected service config: %+v", cfg.ServiceConfig)
	}
	if cfg.Server.Port != 9000 || cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if !slices.Equal(cfg.Server.AllowOrigins, []string{"http://localhost:3000"}) {
		t.Errorf("unexpected origins: %v", cfg.Server.AllowOrigins)
	}
	if cfg.Engine.Binary != "/opt/whisper/whisper-cli" {
		t.Errorf("unexpected engine binary %q", cfg.Engine.Binary)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	var cfg testConfig
	if err := Load("svc", &cfg, WithConfigFile("/nonexistent/path.yml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yml", "server:\n  port: 9000\n")
	t.Setenv("SERVER_PORT", "9100")

	var cfg testConfig
	if err := Load("svc", &cfg, WithConfigFile(path), WithFileSystem(&onlyFS{path})); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("expected env override 9100, got %d", cfg.Server.Port)
	}
}

func TestLoadEnvAliasAndPrecedence(t *testing.T) {
	t.Setenv("LEGACY_LISTEN_PORT", "8000")
	t.Setenv("LEGACY_MODEL_FILE", "/models/ggml-base.en.bin")

	var cfg testConfig
	err := Load("svc", &cfg,
		WithFileSystem(&onlyFS{}),
		WithEnvAlias("LEGACY_LISTEN_PORT", "server.port"),
		WithEnvAlias("LEGACY_MODEL_FILE", "engine.model"),
	)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("expected alias port 8000, got %d", cfg.Server.Port)
	}
	if cfg.Engine.Model != "/models/ggml-base.en.bin" {
		t.Errorf("expected alias model, got %q", cfg.Engine.Model)
	}

	t.Setenv("SERVER_PORT", "8100")
	cfg = testConfig{}
	if err := Load("svc", &cfg, WithFileSystem(&onlyFS{}), WithEnvAlias("LEGACY_LISTEN_PORT", "server.port")); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8100 {
		t.Errorf("expected canonical env to win over alias, got %d", cfg.Server.Port)
	}
}

func TestLoadDefaults(t *testing.T) {
	var cfg testConfig
	if err := Load("svc", &cfg, WithFileSystem(&onlyFS{}), WithDefault("server.max_body_size", "1GB")); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.MaxBodySize != "1GB" {
		t.Errorf("expected default max body size, got %q", cfg.Server.MaxBodySize)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := writeFile(t, dir, ".env", "ENGINE_BINARY=/usr/local/bin/whisper-cli\n")
	os.Unsetenv("ENGINE_BINARY")
	t.Cleanup(func() { os.Unsetenv("ENGINE_BINARY") })

	var cfg testConfig
	if err := Load("svc", &cfg, WithEnvFile(envPath)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Engine.Binary != "/usr/local/bin/whisper-cli" {
		t.Errorf("expected binary from .env, got %q", cfg.Engine.Binary)
	}
}

func TestEnvVarDoesNotShadowScalar(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yml", "engine:\n  model: /models/a.bin\n")
	t.Setenv("ENGINE_MODEL_PATH", "/elsewhere")

	var cfg testConfig
	if err := Load("svc", &cfg, WithConfigFile(path), WithFileSystem(&onlyFS{path})); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Engine.Model != "/models/a.bin" {
		t.Errorf("expected model to stay a scalar, got %q", cfg.Engine.Model)
	}
}

func TestResolverWithMockFS(t *testing.T) {
	fs := &mockFS{files: map[string]bool{
		"./cmd/my-svc/config.yml": true,
		"./.env":                  true,
	}}
	resolver := &Resolver{FileSystem: fs}
	files := resolver.ResolveFiles("my-svc", LoaderConfig{})
	if files.ConfigFile != "./cmd/my-svc/config.yml" {
		t.Errorf("expected ./cmd/my-svc/config.yml, got %q", files.ConfigFile)
	}
	if files.EnvFile != "./.env" {
		t.Errorf("expected ./.env, got %q", files.EnvFile)
	}

	explicit := resolver.ResolveFiles("my-svc", LoaderConfig{ConfigFile: "/etc/svc.yml"})
	if explicit.ConfigFile != "/etc/svc.yml" {
		t.Errorf("expected explicit path to win, got %q", explicit.ConfigFile)
	}
}

func TestEnvKeyVariants(t *testing.T) {
	got := envKeyVariants("ENGINE_MODEL_PATH")
	want := []string{"engine_model_path", "engine.model_path", "engine.model.path"}
	if !slices.Equal(got, want) {
		t.Errorf("envKeyVariants = %v, want %v", got, want)
	}
	if got := envKeyVariants("PORT"); !slices.Equal(got, []string{"port"}) {
		t.Errorf("single segment variants = %v", got)
	}
}

type mockFS struct {
	files map[string]bool
}

func (m *mockFS) Exists(path string) bool  { return m.files[path] }
func (m *mockFS) LoadEnv(path string) error { return nil }

// onlyFS reports only the listed paths as existing so the search never
// picks up files from the package directory.
type onlyFS []string

func (o *onlyFS) Exists(path string) bool  { return slices.Contains(*o, path) }
func (o *onlyFS) LoadEnv(path string) error { return nil }
