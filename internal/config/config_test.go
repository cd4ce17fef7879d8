package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func defaultConfig() *Config {
	return &Config{
		Log:    LogConfig{Level: "info", Format: "console"},
		Topics: TopicsConfig{Namespace: "/WS1"},
		Export: ExportConfig{Dir: ".", Compression: "none"},
		Print:  PrintConfig{Style: "yaml"},
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(defaultConfig(), cfg); diff != "" {
		t.Fatal(diff)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, filepath.Join(dir, "configs", "rosa.yaml"), `
log:
  level: debug
topics:
  namespace: /WS2
export:
  compression: zstd
`)

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	expected := defaultConfig()
	expected.Log.Level = "debug"
	expected.Topics.Namespace = "/WS2"
	expected.Export.Compression = "zstd"
	if diff := cmp.Diff(expected, cfg); diff != "" {
		t.Fatal(diff)
	}
}

func TestLoadExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	writeFile(t, path, "print:\n  style: pp\n  color: true\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	expected := defaultConfig()
	expected.Print = PrintConfig{Style: "pp", Color: true}
	if diff := cmp.Diff(expected, cfg); diff != "" {
		t.Fatal(diff)
	}
}

func TestLoadMissingExplicitPath(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected to fail")
	}
}

func TestLoadEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ROSA_EXPORT_DIR", "/tmp/out")
	t.Setenv("ROSA_LOG_FORMAT", "json")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	expected := defaultConfig()
	expected.Export.Dir = "/tmp/out"
	expected.Log.Format = "json"
	if diff := cmp.Diff(expected, cfg); diff != "" {
		t.Fatal(diff)
	}
}
