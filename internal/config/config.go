// Package config loads the server-wide YAML configuration and the
// per-device overlay fetched from the external device-config service. It
// mirrors the source system's selected_module / per-module config block
// layout so an operator migrating a deployment can reuse their existing
// config file close to verbatim.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the whole server configuration, as loaded from a single YAML
// document.
type Config struct {
	Server struct {
		ListenAddr string `yaml:"listen_addr"`
		MetricsAddr string `yaml:"metrics_addr"`
	} `yaml:"server"`

	// SelectedModule names, per concern, which of the Modules blocks below
	// is active for a connection that does not override it via private
	// config.
	SelectedModule struct {
		VAD    string `yaml:"VAD"`
		ASR    string `yaml:"ASR"`
		LLM    string `yaml:"LLM"`
		TTS    string `yaml:"TTS"`
		Intent string `yaml:"Intent"`
		Memory string `yaml:"Memory"`
	} `yaml:"selected_module"`

	Modules map[string]ModuleConfig `yaml:"modules"`

	// Xiaozhi is the welcome-object template injected verbatim (besides
	// session_id) into the first outbound frame of every connection. It
	// must be cloned before each use — see WelcomeObject.
	Xiaozhi map[string]interface{} `yaml:"xiaozhi"`

	CloseConnectionNoVoiceTime time.Duration `yaml:"close_connection_no_voice_time"`
	ExitCommands               []string      `yaml:"exit_commands"`

	DeviceConfigURL string `yaml:"device_config_url"`
	AuthSecret      string `yaml:"auth_secret"`

	maxCmdLength int
}

// ModuleConfig is one named module's settings, deliberately untyped beyond
// its "type" discriminator: each plugin constructor reads the keys it
// cares about out of Options.
type ModuleConfig struct {
	Type    string                 `yaml:"type"`
	Options map[string]interface{} `yaml:",inline"`
}

// Load reads and parses a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if cfg.CloseConnectionNoVoiceTime <= 0 {
		cfg.CloseConnectionNoVoiceTime = 120 * time.Second
	}

	// max_cmd_length mirrors the source system's field: computed once,
	// carried on the config, never consulted by any core operation.
	maxLen := 0
	for _, cmd := range cfg.ExitCommands {
		if len(cmd) > maxLen {
			maxLen = len(cmd)
		}
	}
	cfg.maxCmdLength = maxLen

	return &cfg, nil
}

// MaxCmdLength is the longest configured exit command, computed at load
// time. No core operation currently reads it.
func (c *Config) MaxCmdLength() int { return c.maxCmdLength }

// WelcomeObject returns a copy of the configured xiaozhi welcome object's
// top-level map with session_id set; nested maps and slices are shared
// with the template, not copied. Callers must never hand out the shared
// Config.Xiaozhi map directly: two concurrent connections writing
// session_id into the same map in place is exactly the leakage bug this
// copy avoids.
func (c *Config) WelcomeObject(sessionID string) map[string]interface{} {
	clone := make(map[string]interface{}, len(c.Xiaozhi)+1)
	for k, v := range c.Xiaozhi {
		clone[k] = v
	}
	clone["session_id"] = sessionID
	return clone
}
