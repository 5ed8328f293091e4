// file: internal/config/persistence_test.go
// version: 2.0.0
// guid: 5e6f7a8b-9c0d-1e2f-3a4b-5c6d7e8f9a0b

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func resetConfigTestState() {
	viper.Reset()
	AppConfig = Config{}
}

func TestConfigFilePath(t *testing.T) {
	resetConfigTestState()
	t.Cleanup(resetConfigTestState)

	if path := ConfigFilePath(); path != "" {
		t.Errorf("expected empty path without a database path, got %q", path)
	}

	AppConfig.DatabasePath = "/data/bookstrack/db"
	if path := ConfigFilePath(); path != "/data/bookstrack/config.yaml" {
		t.Errorf("expected config.yaml next to the database, got %q", path)
	}
}

func TestSaveAndLoadConfigFile(t *testing.T) {
	resetConfigTestState()
	t.Cleanup(resetConfigTestState)

	dir := t.TempDir()
	AppConfig.DatabasePath = filepath.Join(dir, "db")
	AppConfig.ServerPort = 8080
	AppConfig.APIKeys.GoogleBooks = "gb-key"
	AppConfig.APIKeys.OpenAI = "sk-test"

	if err := SaveConfigToFile(); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("expected 0600 permissions on secret-bearing file, got %o", perm)
	}

	// Wipe the keys and reload; file values fill the gaps.
	AppConfig.APIKeys.GoogleBooks = ""
	AppConfig.APIKeys.OpenAI = ""

	if err := LoadConfigFromFile(); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if AppConfig.APIKeys.GoogleBooks != "gb-key" {
		t.Errorf("expected Google Books key restored, got %q", AppConfig.APIKeys.GoogleBooks)
	}
	if AppConfig.APIKeys.OpenAI != "sk-test" {
		t.Errorf("expected OpenAI key restored, got %q", AppConfig.APIKeys.OpenAI)
	}
}

func TestLoadConfigFromFileDoesNotOverride(t *testing.T) {
	resetConfigTestState()
	t.Cleanup(resetConfigTestState)

	dir := t.TempDir()
	AppConfig.DatabasePath = filepath.Join(dir, "db")
	AppConfig.APIKeys.OpenAI = "file-key"

	if err := SaveConfigToFile(); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	// A populated key survives the file fallback.
	AppConfig.APIKeys.OpenAI = "env-key"
	if err := LoadConfigFromFile(); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if AppConfig.APIKeys.OpenAI != "env-key" {
		t.Errorf("expected env value to win over file, got %q", AppConfig.APIKeys.OpenAI)
	}
}

func TestLoadConfigFromFileMissingIsNotAnError(t *testing.T) {
	resetConfigTestState()
	t.Cleanup(resetConfigTestState)

	AppConfig.DatabasePath = filepath.Join(t.TempDir(), "db")
	if err := LoadConfigFromFile(); err != nil {
		t.Fatalf("missing file should be silent, got %v", err)
	}
}

func TestLoadConfigFromFileTolerateGarbage(t *testing.T) {
	resetConfigTestState()
	t.Cleanup(resetConfigTestState)

	dir := t.TempDir()
	AppConfig.DatabasePath = filepath.Join(dir, "db")
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("{not yaml"), 0o600); err != nil {
		t.Fatal(err)
	}

	// Parse failures log and continue; config stays usable.
	if err := LoadConfigFromFile(); err != nil {
		t.Fatalf("unparseable file should be tolerated, got %v", err)
	}
}
