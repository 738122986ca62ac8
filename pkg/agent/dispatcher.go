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
	"context"
	"fmt"
	"sort"

	"github.com/openclaw/openclaw-node/pkg/logger"
	"github.com/openclaw/openclaw-node/pkg/plugins"
)

// Dispatcher looks up "plugin.action" targets among the loaded
// capabilities and validates both before invoking the executor.
type Dispatcher struct {
	platform string
	plugins  map[string]plugins.Plugin
	logger   logger.Logger
}

// NewDispatcher creates a dispatcher for the given platform tag.
func NewDispatcher(platform string, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		platform: platform,
		plugins:  make(map[string]plugins.Plugin),
		logger:   log,
	}
}

// Register adds a capability. Plugins that do not support the
// dispatcher's platform are rejected with ErrPlatformUnsupported.
func (d *Dispatcher) Register(p plugins.Plugin) error {
	if !supportsPlatform(p, d.platform) {
		return fmt.Errorf("%w: %s on %s", ErrPlatformUnsupported, p.Name(), d.platform)
	}

	d.plugins[p.Name()] = p

	return nil
}

// Load instantiates the enabled plugins from the build-time registry,
// skipping unknown names and platform mismatches with a log line rather
// than failing the agent.
func (d *Dispatcher) Load(enabled []string) {
	for _, name := range enabled {
		p, err := plugins.New(name)
		if err != nil {
			d.logger.Error().Err(err).Str("plugin", name).Msg("Failed to load plugin")
			continue
		}

		if err := d.Register(p); err != nil {
			d.logger.Warn().Str("plugin", name).Str("platform", d.platform).Msg("Plugin does not support platform, skipping")
			continue
		}

		d.logger.Info().
			Str("plugin", name).
			Strs("actions", p.Actions()).
			Msg("Loaded plugin")
	}
}

// Plugins returns the loaded capability names, sorted. This is the list
// sent in the registration message.
func (d *Dispatcher) Plugins() []string {
	names := make([]string, 0, len(d.plugins))
	for name := range d.plugins {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Has reports whether the named capability is loaded.
func (d *Dispatcher) Has(name string) bool {
	_, ok := d.plugins[name]
	return ok
}

// Dispatch validates the capability and action, then invokes the
// executor. Execution failures propagate as errors for the agent to
// convert into an error response.
func (d *Dispatcher) Dispatch(ctx context.Context, plugin, action string, params map[string]interface{}) (map[string]interface{}, error) {
	p, ok := d.plugins[plugin]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPluginUnavailable, plugin)
	}

	if !declaresAction(p, action) {
		return nil, fmt.Errorf("%w: %s. Available: %v", ErrActionUnavailable, action, p.Actions())
	}

	return p.Execute(ctx, action, params)
}

func supportsPlatform(p plugins.Plugin, platform string) bool {
	for _, supported := range p.Platforms() {
		if supported == platform {
			return true
		}
	}

	return false
}

func declaresAction(p plugins.Plugin, action string) bool {
	for _, declared := range p.Actions() {
		if declared == action {
			return true
		}
	}

	return false
}
