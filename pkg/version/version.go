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

// Package version provides build version information for the OpenClaw
// node binaries.
package version

// Set via ldflags during release builds:
//
//	-ldflags "-X github.com/openclaw/openclaw-node/pkg/version.version=v1.2.3"
//
//nolint:gochecknoglobals // injected at link time
var (
	version = "dev"
	buildID = "dev"
)

// Version returns the release version.
func Version() string {
	return version
}

// BuildID returns the build identifier.
func BuildID() string {
	return buildID
}

// Full returns the version with its build identifier.
func Full() string {
	return version + " (build: " + buildID + ")"
}
