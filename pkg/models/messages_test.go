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

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelopeRegister(t *testing.T) {
	raw := `{"type":"register","node_id":"ws-1","plugins":["explorer"],"platform":"linux"}`

	msg, err := DecodeEnvelope([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, MessageTypeRegister, msg.Type)
	assert.Equal(t, "ws-1", msg.NodeID)
	assert.Equal(t, []string{"explorer"}, msg.Plugins)
	assert.Equal(t, "linux", msg.Platform)
	assert.Empty(t, msg.ID)
}

func TestDecodeEnvelopeResponse(t *testing.T) {
	raw := `{"id":"cmd-1","status":"error","error":"no such path"}`

	msg, err := DecodeEnvelope([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, "cmd-1", msg.ID)
	assert.Equal(t, StatusError, msg.Status)
	assert.Equal(t, "no such path", msg.Error)
	assert.Empty(t, msg.Type)
}

func TestDecodeEnvelopeInvalid(t *testing.T) {
	_, err := DecodeEnvelope([]byte("not json"))
	require.Error(t, err)
}

func TestNodeInfoHasPlugin(t *testing.T) {
	info := &NodeInfo{Plugins: []string{"explorer", "rv"}}

	assert.True(t, info.HasPlugin("explorer"))
	assert.False(t, info.HasPlugin("resolve"))

	empty := &NodeInfo{}
	assert.False(t, empty.HasPlugin("explorer"))
}
