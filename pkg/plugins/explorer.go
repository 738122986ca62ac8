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

package plugins

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

func init() {
	Register("explorer", func() Plugin { return NewExplorer() })
}

// Explorer opens folders and reveals files in the platform file manager.
type Explorer struct {
	platform string
}

// NewExplorer creates the explorer plugin for the current platform.
func NewExplorer() *Explorer {
	return &Explorer{platform: runtime.GOOS}
}

func (*Explorer) Name() string { return "explorer" }

func (*Explorer) Description() string {
	return "File system navigation - open folders and reveal files"
}

func (*Explorer) Actions() []string {
	return []string{"open_folder", "reveal_file", "ping"}
}

func (*Explorer) Platforms() []string {
	return []string{"windows", "darwin", "linux"}
}

// Execute implements Plugin.
func (e *Explorer) Execute(_ context.Context, action string, params map[string]interface{}) (map[string]interface{}, error) {
	switch action {
	case "open_folder":
		return e.openFolder(params)
	case "reveal_file":
		return e.revealFile(params)
	case "ping":
		return map[string]interface{}{"available": true, "platform": e.platform}, nil
	default:
		return nil, fmt.Errorf("unknown action: %s", action)
	}
}

func (e *Explorer) openFolder(params map[string]interface{}) (map[string]interface{}, error) {
	path, err := pathParam(params)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", path)
	}

	var cmd *exec.Cmd

	switch e.platform {
	case "windows":
		cmd = exec.Command("explorer", path)
	case "darwin":
		cmd = exec.Command("open", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to open folder: %w", err)
	}

	return map[string]interface{}{"opened": path}, nil
}

func (e *Explorer) revealFile(params map[string]interface{}) (map[string]interface{}, error) {
	path, err := pathParam(params)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("file not found: %s", path)
	}

	var cmd *exec.Cmd

	switch e.platform {
	case "windows":
		cmd = exec.Command("explorer", "/select,", path)
	case "darwin":
		cmd = exec.Command("open", "-R", path)
	default:
		// No portable select-in-file-manager on Linux; open the parent.
		cmd = exec.Command("xdg-open", filepath.Dir(path))
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to reveal file: %w", err)
	}

	return map[string]interface{}{"revealed": path}, nil
}

func pathParam(params map[string]interface{}) (string, error) {
	path, _ := params["path"].(string)
	if path == "" {
		return "", fmt.Errorf("path is required")
	}

	return path, nil
}
