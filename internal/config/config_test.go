package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_trainingDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "localhost"
  port: 8080
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Training.MaxEpochs != 100 {
		t.Errorf("max_epochs default = %d, want 100", cfg.Training.MaxEpochs)
	}
	if cfg.Training.BatchSize != 32 {
		t.Errorf("batch_size default = %d, want 32", cfg.Training.BatchSize)
	}
	if cfg.Training.LearningRate != 0.001 {
		t.Errorf("learning_rate default = %v, want 0.001", cfg.Training.LearningRate)
	}
	if cfg.Training.MaxPatience != 5 {
		t.Errorf("max_patience default = %d, want 5", cfg.Training.MaxPatience)
	}
	if cfg.Training.ValidationSplit != 0.2 {
		t.Errorf("validation_split default = %v, want 0.2", cfg.Training.ValidationSplit)
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  database_path: "./data/db/examples.db"
  bundle_path: "./data/model"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "db", "examples.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path = %q, want %q", cfg.Storage.DatabasePath, wantDB)
	}
	wantBundle := filepath.Join(dir, "data", "model")
	if cfg.Storage.BundlePath != wantBundle {
		t.Errorf("bundle_path = %q, want %q", cfg.Storage.BundlePath, wantBundle)
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
