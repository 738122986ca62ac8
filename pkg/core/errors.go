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
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNodeNotConnected indicates no transport is bound for the target node.
	ErrNodeNotConnected = errors.New("node not connected")
	// ErrInvalidActionFormat indicates an action string without a
	// "capability.operation" separator.
	ErrInvalidActionFormat = errors.New("invalid action format")
)

// CommandTimeoutError is returned when a node does not answer a command
// within the dispatch timeout. The pending entry is removed before this
// is returned.
type CommandTimeoutError struct {
	CommandID string
	Action    string
	Timeout   time.Duration
}

func (e *CommandTimeoutError) Error() string {
	return fmt.Sprintf("command %s (id=%s) timed out after %s", e.Action, e.CommandID, e.Timeout)
}

// RemoteExecutionError is returned when a node explicitly reports a
// command failure.
type RemoteExecutionError struct {
	CommandID string
	Action    string
	Message   string
}

func (e *RemoteExecutionError) Error() string {
	return fmt.Sprintf("command %s failed: %s", e.Action, e.Message)
}

// ConnectionLostError resolves every outstanding command for a node when
// its connection drops.
type ConnectionLostError struct {
	NodeID string
}

func (e *ConnectionLostError) Error() string {
	return fmt.Sprintf("node %s disconnected", e.NodeID)
}
