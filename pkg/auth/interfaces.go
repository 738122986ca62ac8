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

// Package auth validates the credentials nodes present when connecting.
package auth

import "context"

// Provider validates node credentials. Implementations are pluggable;
// the pre-shared token provider is the default.
type Provider interface {
	// Name identifies the provider ("token", "claims").
	Name() string

	// Validate reports whether the credential is currently valid. Failed
	// validation has no side effects.
	Validate(ctx context.Context, credential string) bool

	// NodeID extracts a node identifier from the credential when the
	// scheme encodes one. Returns "" when not applicable.
	NodeID(ctx context.Context, credential string) string

	// Revoke invalidates a credential. Returns false when the credential
	// was unknown or the provider is stateless.
	Revoke(ctx context.Context, credential string) bool
}
