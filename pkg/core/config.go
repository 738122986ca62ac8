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

package core

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/openclaw/openclaw-node/pkg/logger"
	"github.com/openclaw/openclaw-node/pkg/models"
)

const defaultListenAddr = ":8765"

// ServerConfig is the node server's JSON configuration.
type ServerConfig struct {
	ListenAddr     string          `json:"listen_addr"`
	TokensFile     string          `json:"tokens_file"`
	APIKey         string          `json:"api_key"`
	DefaultTimeout models.Duration `json:"default_timeout"`
	Logging        *logger.Config  `json:"logging"`
}

// LoadServerConfig reads a JSON config file. An empty path returns the
// defaults.
func LoadServerConfig(path string) (*ServerConfig, error) {
	cfg := &ServerConfig{
		ListenAddr:     defaultListenAddr,
		DefaultTimeout: models.Duration(DefaultCommandTimeout),
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config '%s': %w", path, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config '%s': %w", path, err)
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}

	return cfg, nil
}
