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

// Package plugins defines the capability interface node executors
// implement, and a build-time registry of the bundled capabilities.
package plugins

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Plugin is a named group of operations a node can execute. Operations
// are addressed as "name.action" in command routing.
type Plugin interface {
	// Name identifies the plugin ("explorer").
	Name() string

	// Description is a human-readable summary for UI and docs.
	Description() string

	// Actions lists the operation names the plugin accepts. Only listed
	// actions can be executed.
	Actions() []string

	// Platforms lists the platform tags the plugin works on: "windows",
	// "darwin", "linux".
	Platforms() []string

	// Execute runs an action. Errors are caught by the agent and turned
	// into error responses, never a crash.
	Execute(ctx context.Context, action string, params map[string]interface{}) (map[string]interface{}, error)
}

// Factory constructs a plugin instance.
type Factory func() Plugin

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a plugin factory to the build-time registry. Called from
// plugin init functions.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	registry[name] = factory
}

// New instantiates a registered plugin by name.
func New(name string) (Plugin, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown plugin: %s", name)
	}

	return factory(), nil
}

// Available lists the registered plugin names, sorted.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
