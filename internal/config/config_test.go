package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Server.Port != 8000 || cfg.Server.Host != "0.0.0.0" {
		t.Errorf("server defaults = %+v", cfg.Server)
	}
	if cfg.Hub.HeartbeatWindow != 30*time.Second {
		t.Errorf("HeartbeatWindow = %v, want 30s", cfg.Hub.HeartbeatWindow)
	}
	if cfg.Hub.CallbackTimeout != 10*time.Second {
		t.Errorf("CallbackTimeout = %v, want 10s", cfg.Hub.CallbackTimeout)
	}
	if cfg.Artifacts.Extension != ".mid" || cfg.Artifacts.Dir != "generated_files" {
		t.Errorf("artifact defaults = %+v", cfg.Artifacts)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9100
  auth_token: sekret
hub:
  heartbeat_window: 45s
artifacts:
  dir: /tmp/band
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9100 || cfg.Server.AuthToken != "sekret" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Hub.HeartbeatWindow != 45*time.Second {
		t.Errorf("HeartbeatWindow = %v", cfg.Hub.HeartbeatWindow)
	}
	if cfg.Artifacts.Dir != "/tmp/band" {
		t.Errorf("Dir = %s", cfg.Artifacts.Dir)
	}

	// Untouched fields keep their defaults.
	if cfg.Server.Host != "0.0.0.0" || cfg.Hub.CallbackTimeout != 10*time.Second {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); !os.IsNotExist(err) {
		t.Errorf("Load(missing) = %v, want IsNotExist", err)
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a map")
	if _, err := Load(path); err == nil {
		t.Error("Load accepted malformed YAML")
	}
}
