package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type testConfig struct {
	Database struct {
		DSN      string `yaml:"dsn" json:"dsn"`
		MaxConns int    `yaml:"max_conns" json:"max_conns"`
	} `yaml:"database" json:"database"`
	Server struct {
		Port    int           `yaml:"port" json:"port"`
		Host    string        `yaml:"host" json:"host"`
		Timeout time.Duration `yaml:"timeout" json:"timeout"`
		Debug   bool          `yaml:"debug" json:"debug"`
		Tags    []string      `yaml:"tags" json:"tags"`
	} `yaml:"server" json:"server"`
}

func createTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := createTempFile(t, "test.yaml", `
database:
  dsn: "memory://test"
  max_conns: 25
server:
  port: 8080
  host: "localhost"
  timeout: 1500ms
`)

	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.DSN != "memory://test" {
		t.Errorf("Database.DSN = %v, want memory://test", cfg.Database.DSN)
	}
	if cfg.Database.MaxConns != 25 {
		t.Errorf("Database.MaxConns = %v, want 25", cfg.Database.MaxConns)
	}
	if cfg.Server.Timeout != 1500*time.Millisecond {
		t.Errorf("Server.Timeout = %v, want 1.5s", cfg.Server.Timeout)
	}
}

func TestLoad_JSON(t *testing.T) {
	path := createTempFile(t, "test.json", `{"server": {"port": 9090, "host": "example"}}`)

	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9090 || cfg.Server.Host != "example" {
		t.Errorf("Server = %+v", cfg.Server)
	}
}

func TestLoad_Errors(t *testing.T) {
	var cfg testConfig
	if err := Load(filepath.Join(t.TempDir(), "missing.yaml"), &cfg); err == nil {
		t.Error("expected error for missing file")
	}

	path := createTempFile(t, "bad.json", `{"server":`)
	if err := Load(path, &cfg); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("TEST_DATABASE_DSN", "env://dsn")
	t.Setenv("TEST_SERVER_PORT", "7070")
	t.Setenv("TEST_SERVER_TIMEOUT", "3s")
	t.Setenv("TEST_SERVER_DEBUG", "true")
	t.Setenv("TEST_SERVER_TAGS", "a, b")

	var cfg testConfig
	if err := ApplyEnvOverrides("TEST", &cfg); err != nil {
		t.Fatalf("ApplyEnvOverrides failed: %v", err)
	}

	if cfg.Database.DSN != "env://dsn" {
		t.Errorf("Database.DSN = %v", cfg.Database.DSN)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %v", cfg.Server.Port)
	}
	if cfg.Server.Timeout != 3*time.Second {
		t.Errorf("Server.Timeout = %v", cfg.Server.Timeout)
	}
	if !cfg.Server.Debug {
		t.Error("Server.Debug not set")
	}
	if len(cfg.Server.Tags) != 2 || cfg.Server.Tags[1] != "b" {
		t.Errorf("Server.Tags = %v", cfg.Server.Tags)
	}
}

func TestApplyEnvOverrides_Invalid(t *testing.T) {
	t.Setenv("TEST_SERVER_PORT", "not-a-number")

	var cfg testConfig
	err := ApplyEnvOverrides("TEST", &cfg)
	if err == nil || !strings.Contains(err.Error(), "TEST_SERVER_PORT") {
		t.Fatalf("expected error naming the variable, got %v", err)
	}

	if err := ApplyEnvOverrides("TEST", cfg); err == nil {
		t.Error("expected error for non-pointer target")
	}
}

func TestValidators(t *testing.T) {
	var cfg testConfig
	cfg.Server.Port = 80

	tests := []struct {
		name      string
		validator Validator
		wantErr   bool
	}{
		{"required present", RequiredFields("Server.Port"), false},
		{"required missing", RequiredFields("Server.Host", "Database.DSN"), true},
		{"required unknown", RequiredFields("Server.Nope"), true},
		{"range ok", RangeValidator("Server.Port", 1, 65535), false},
		{"range low", RangeValidator("Server.Port", 1024, 65535), true},
		{"range non numeric", RangeValidator("Server.Host", 0, 1), true},
		{"one of miss", OneOfValidator("Server.Host", "a", "b"), true},
		{"one of non string", OneOfValidator("Server.Port", "80"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&cfg, tt.validator)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
