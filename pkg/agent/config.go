/*
 * Copyright 2025 The OpenClaw Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
	"gopkg.in/yaml.v3"

	"github.com/openclaw/openclaw-node/pkg/auth"
	"github.com/openclaw/openclaw-node/pkg/logger"
	"github.com/openclaw/openclaw-node/pkg/models"
	"github.com/openclaw/openclaw-node/pkg/plugins"
)

// Config is the agent's YAML configuration.
type Config struct {
	NodeID            string          `yaml:"node_id" json:"node_id"`
	ServerURL         string          `yaml:"server_url" json:"server_url"`
	AuthToken         string          `yaml:"auth_token" json:"auth_token"`
	Platform          string          `yaml:"platform" json:"platform"`
	Plugins           []string        `yaml:"plugins" json:"plugins"`
	HeartbeatInterval models.Duration `yaml:"heartbeat_interval" json:"heartbeat_interval"`
	Logging           *logger.Config  `yaml:"logging,omitempty" json:"logging,omitempty"`
}

// LoadConfig reads and validates an agent config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config '%s': %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config '%s': %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Platform == "" {
		cfg.Platform = DetectPlatform()
	}

	return &cfg, nil
}

// Validate checks the required fields with hints toward the fix.
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return fmt.Errorf("config error in 'node_id': required (hint: use the workstation hostname)")
	}

	if c.ServerURL == "" {
		return fmt.Errorf("config error in 'server_url': required (hint: ws://your-server:8765/ws)")
	}

	if c.AuthToken == "" {
		return fmt.Errorf("config error in 'auth_token': required (hint: run with -generate-config to mint one)")
	}

	return nil
}

// DetectPlatform returns the node's platform tag: windows, darwin, or
// linux.
func DetectPlatform() string {
	info, err := host.Info()
	if err != nil || info.OS == "" {
		return runtime.GOOS
	}

	return info.OS
}

// DefaultNodeID derives a node id from the hostname.
func DefaultNodeID() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return "openclaw-node"
	}

	id := strings.ToLower(hostname)
	id = strings.ReplaceAll(id, " ", "-")
	id = strings.ReplaceAll(id, ".", "-")

	return id
}

// defaultPlugins returns the default capability list: everything the
// binary bundles that runs on the platform.
func defaultPlugins(platform string) []string {
	var out []string

	for _, name := range plugins.Available() {
		p, err := plugins.New(name)
		if err != nil {
			continue
		}

		for _, supported := range p.Platforms() {
			if supported == platform {
				out = append(out, name)
				break
			}
		}
	}

	return out
}

// GenerateDefaultConfig builds a first-run config with a hostname node
// id, a freshly minted token, and platform defaults.
func GenerateDefaultConfig() (*Config, error) {
	token, err := auth.GenerateToken(auth.DefaultTokenPrefix)
	if err != nil {
		return nil, err
	}

	platform := DetectPlatform()

	return &Config{
		NodeID:            DefaultNodeID(),
		ServerURL:         "wss://your-server.com:8765/ws",
		AuthToken:         token,
		Platform:          platform,
		Plugins:           defaultPlugins(platform),
		HeartbeatInterval: models.Duration(defaultHeartbeatInterval),
	}, nil
}

// DefaultConfigPath returns the platform config file location.
func DefaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve config dir: %w", err)
	}

	return filepath.Join(dir, "openclaw", "node_config.yaml"), nil
}

// WriteConfig writes the config as YAML, creating parent directories.
func WriteConfig(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# OpenClaw Node configuration\n# auth_token must also be registered on the server\n")

	if err := os.WriteFile(path, append(header, data...), 0o600); err != nil {
		return fmt.Errorf("failed to write config '%s': %w", path, err)
	}

	return nil
}
