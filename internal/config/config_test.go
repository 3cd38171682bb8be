package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.HTTPPort == "" || cfg.StorageType != "local" || cfg.BackgroundGridCount != 4 {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestParseConfigEnvFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.env")
	content := "BACKGROUND_GRID_COUNT=6\nGENERATOR_DRIVER=openai\nSTORAGE_MINIO_USE_SSL=true\n"
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"BACKGROUND_GRID_COUNT", "GENERATOR_DRIVER", "STORAGE_MINIO_USE_SSL"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := ParseConfig(file)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.BackgroundGridCount != 6 || cfg.GeneratorDriver != "openai" || !cfg.StorageMinIOUseSSL {
		t.Errorf("config = %+v", cfg)
	}
}

func TestParseConfigEnvWins(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.env")
	if err := os.WriteFile(file, []byte("HTTP_PORT=9000\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HTTP_PORT", "7000")

	cfg, err := ParseConfig(file)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.HTTPPort != "7000" {
		t.Errorf("HTTPPort = %q, want 7000", cfg.HTTPPort)
	}
}
