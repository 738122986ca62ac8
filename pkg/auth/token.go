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

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/openclaw/openclaw-node/pkg/logger"
)

const (
	// EnvTokens holds a comma-separated list of valid node tokens.
	EnvTokens = "OPENCLAW_TOKENS"
	// EnvNodeToken holds a single valid node token.
	EnvNodeToken = "OPENCLAW_NODE_TOKEN"

	// DefaultTokenPrefix marks generated tokens for operator recognition.
	DefaultTokenPrefix = "ocn"

	generatedTokenBytes = 32
)

// tokensFile is the YAML shape of a tokens file: a list of plain strings
// or {token: "..."} entries.
type tokensFile struct {
	Tokens []yaml.Node `json:"tokens" yaml:"tokens"`
}

// TokenProvider authenticates nodes against a set of pre-shared tokens
// loaded from the environment and/or a YAML file.
type TokenProvider struct {
	mu     sync.RWMutex
	tokens map[string]struct{}
	logger logger.Logger
}

// NewTokenProvider loads tokens from the environment and, when tokensPath
// is non-empty, from a YAML file. A missing file is not an error.
func NewTokenProvider(tokensPath string, log logger.Logger) (*TokenProvider, error) {
	p := &TokenProvider{
		tokens: make(map[string]struct{}),
		logger: log,
	}

	p.loadEnvTokens()

	if tokensPath != "" {
		if err := p.loadTokensFile(tokensPath); err != nil {
			return nil, err
		}
	}

	return p, nil
}

func (p *TokenProvider) loadEnvTokens() {
	for _, token := range strings.Split(os.Getenv(EnvTokens), ",") {
		token = strings.TrimSpace(token)
		if token != "" {
			p.tokens[token] = struct{}{}
		}
	}

	if single := os.Getenv(EnvNodeToken); single != "" {
		p.tokens[single] = struct{}{}
	}
}

func (p *TokenProvider) loadTokensFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			p.logger.Warn().Str("path", path).Msg("Tokens file does not exist, skipping")
			return nil
		}

		return fmt.Errorf("failed to read tokens file '%s': %w", path, err)
	}

	var file tokensFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse tokens file '%s': %w", path, err)
	}

	for i := range file.Tokens {
		entry := &file.Tokens[i]

		var token string
		if err := entry.Decode(&token); err == nil {
			p.tokens[token] = struct{}{}
			continue
		}

		var mapping struct {
			Token string `yaml:"token"`
		}
		if err := entry.Decode(&mapping); err == nil && mapping.Token != "" {
			p.tokens[mapping.Token] = struct{}{}
		}
	}

	return nil
}

// Name implements Provider.
func (*TokenProvider) Name() string { return "token" }

// Validate implements Provider.
func (p *TokenProvider) Validate(_ context.Context, credential string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	_, ok := p.tokens[credential]

	return ok
}

// NodeID implements Provider. Pre-shared tokens do not encode a node id.
func (*TokenProvider) NodeID(_ context.Context, _ string) string { return "" }

// Revoke implements Provider.
func (p *TokenProvider) Revoke(_ context.Context, credential string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.tokens[credential]; !ok {
		return false
	}

	delete(p.tokens, credential)

	return true
}

// Add registers an existing token as valid.
func (p *TokenProvider) Add(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tokens[token] = struct{}{}
}

// Generate mints a new token with the given prefix and registers it.
// An empty prefix falls back to DefaultTokenPrefix.
func (p *TokenProvider) Generate(prefix string) (string, error) {
	token, err := GenerateToken(prefix)
	if err != nil {
		return "", err
	}

	p.Add(token)

	return token, nil
}

// GenerateToken mints a url-safe random token with a recognizable prefix
// without registering it anywhere.
func GenerateToken(prefix string) (string, error) {
	if prefix == "" {
		prefix = DefaultTokenPrefix
	}

	buf := make([]byte, generatedTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return fmt.Sprintf("%s_%s", prefix, base64.RawURLEncoding.EncodeToString(buf)), nil
}

// TokenCount returns the number of currently valid tokens.
func (p *TokenProvider) TokenCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.tokens)
}
