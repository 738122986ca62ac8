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

import "errors"

var (
	// ErrUnauthorized indicates the server rejected the agent's
	// credential. Retrying without a new token will not help.
	ErrUnauthorized = errors.New("authentication rejected by server")

	// ErrPluginUnavailable indicates the capability is not loaded or not
	// supported on this platform.
	ErrPluginUnavailable = errors.New("plugin unavailable")

	// ErrActionUnavailable indicates the capability does not declare the
	// requested operation.
	ErrActionUnavailable = errors.New("action unavailable")

	// ErrPlatformUnsupported indicates a plugin does not run on the
	// agent's platform.
	ErrPlatformUnsupported = errors.New("plugin does not support this platform")
)
