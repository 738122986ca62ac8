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

package auth

import "context"

// ClaimsProvider is a placeholder for claims-based (JWT) node
// authentication. Validation always fails until signature verification,
// expiry, and issuer checks are implemented.
type ClaimsProvider struct {
	IssuerURL string
	Audience  string
}

// Name implements Provider.
func (*ClaimsProvider) Name() string { return "claims" }

// Validate implements Provider.
// TODO: verify signature against the issuer JWKS and check exp/aud claims.
func (*ClaimsProvider) Validate(_ context.Context, _ string) bool { return false }

// NodeID implements Provider.
// TODO: extract the node id claim once token parsing lands.
func (*ClaimsProvider) NodeID(_ context.Context, _ string) string { return "" }

// Revoke implements Provider. Revocation belongs to the issuer.
func (*ClaimsProvider) Revoke(_ context.Context, _ string) bool { return false }
