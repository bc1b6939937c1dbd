package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Hub       HubConfig       `yaml:"hub"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
}

type ServerConfig struct {
	Port      int    `yaml:"port"`
	Host      string `yaml:"host"`
	AuthToken string `yaml:"auth_token"`
}

type HubConfig struct {
	// HeartbeatWindow is how long a session stays active after its last
	// heartbeat.
	HeartbeatWindow time.Duration `yaml:"heartbeat_window"`
	// CallbackTimeout bounds a single HTTP callback delivery attempt.
	CallbackTimeout time.Duration `yaml:"callback_timeout"`
}

type ArtifactsConfig struct {
	// Dir is the folder generated files land in. It is both the file-watch
	// root and the destination for file-drop notification markers.
	Dir             string        `yaml:"dir"`
	Extension       string        `yaml:"extension"`
	CleanupMaxAge   time.Duration `yaml:"cleanup_max_age"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the built-in configuration, used as the base a config file
// overlays.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8000,
			Host: "0.0.0.0",
		},
		Hub: HubConfig{
			HeartbeatWindow: 30 * time.Second,
			CallbackTimeout: 10 * time.Second,
		},
		Artifacts: ArtifactsConfig{
			Dir:             "generated_files",
			Extension:       ".mid",
			CleanupMaxAge:   24 * time.Hour,
			CleanupInterval: time.Hour,
		},
	}
}
