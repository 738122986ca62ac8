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
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/openclaw-node/pkg/logger"
	"github.com/openclaw/openclaw-node/pkg/models"
)

// DefaultCommandTimeout bounds a dispatch when the caller does not
// provide a timeout.
const DefaultCommandTimeout = 30 * time.Second

// Sender pushes a message to a node. Implemented by ConnTable.
type Sender interface {
	Send(nodeID string, message interface{}) error
	IsBound(nodeID string) bool
}

// resolution is the single outcome of a pending command: either a node
// response or a terminal error (connection lost).
type resolution struct {
	msg *models.Envelope
	err error
}

// pendingCommand tracks one in-flight command. The entry's presence in
// the router map is the resolution arbiter: whichever path removes the
// entry owns delivery on ch, so a command resolves exactly once.
type pendingCommand struct {
	id        string
	action    string
	nodeID    string
	createdAt time.Time
	ch        chan resolution
}

// PendingInfo is a read-only view of an in-flight command.
type PendingInfo struct {
	CommandID string    `json:"command_id"`
	Action    string    `json:"action"`
	NodeID    string    `json:"node_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Router correlates dispatched commands with node responses by command
// id, enforcing timeouts and cancelling waiters on disconnect.
type Router struct {
	pending        *pendingTable
	sender         Sender
	defaultTimeout time.Duration
	logger         logger.Logger
}

// NewRouter creates a command router sending through the given Sender.
// A zero defaultTimeout falls back to DefaultCommandTimeout.
func NewRouter(sender Sender, defaultTimeout time.Duration, log logger.Logger) *Router {
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultCommandTimeout
	}

	return &Router{
		pending:        newPendingTable(),
		sender:         sender,
		defaultTimeout: defaultTimeout,
		logger:         log,
	}
}

// Dispatch sends a command to a node and awaits the correlated response.
// A zero timeout uses the router default. When the node is not connected
// it fails immediately with ErrNodeNotConnected and no waiter is left
// behind. Every exit path removes the pending entry.
func (r *Router) Dispatch(
	ctx context.Context,
	nodeID, action string,
	params map[string]interface{},
	timeout time.Duration,
) (*models.Envelope, error) {
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}

	if !r.sender.IsBound(nodeID) {
		return nil, ErrNodeNotConnected
	}

	pending := &pendingCommand{
		id:        uuid.NewString(),
		action:    action,
		nodeID:    nodeID,
		createdAt: time.Now().UTC(),
		ch:        make(chan resolution, 1),
	}

	// The waiter must exist before the command is on the wire: the
	// response can arrive before Send returns.
	r.pending.put(pending)

	cmd := models.CommandMessage{
		ID:     pending.id,
		Action: action,
		Params: params,
	}

	if err := r.sender.Send(nodeID, cmd); err != nil {
		r.pending.take(pending.id)
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-pending.ch:
		return r.finish(pending, res)

	case <-timer.C:
		if _, owned := r.pending.take(pending.id); owned {
			return nil, &CommandTimeoutError{
				CommandID: pending.id,
				Action:    action,
				Timeout:   timeout,
			}
		}

		// A resolver won the race; its outcome is already in flight.
		return r.finish(pending, <-pending.ch)

	case <-ctx.Done():
		if _, owned := r.pending.take(pending.id); owned {
			return nil, ctx.Err()
		}

		return r.finish(pending, <-pending.ch)
	}
}

// finish maps a resolution to the caller-facing result.
func (r *Router) finish(pending *pendingCommand, res resolution) (*models.Envelope, error) {
	if res.err != nil {
		return nil, res.err
	}

	if res.msg.Status == models.StatusError {
		errText := res.msg.Error
		if errText == "" {
			errText = "unknown error"
		}

		return nil, &RemoteExecutionError{
			CommandID: pending.id,
			Action:    pending.action,
			Message:   errText,
		}
	}

	return res.msg, nil
}

// HandleResponse resolves the pending command matching the message id.
// Returns false for unknown, stale, or already-resolved ids; a late or
// unexpected response is dropped, never an error.
func (r *Router) HandleResponse(msg *models.Envelope) bool {
	if msg.ID == "" {
		r.logger.Warn().Msg("Received response without command ID")
		return false
	}

	pending, owned := r.pending.take(msg.ID)
	if !owned {
		r.logger.Warn().Str("command_id", msg.ID).Msg("Received response for unknown command")
		return false
	}

	pending.ch <- resolution{msg: msg}

	return true
}

// CancelPending resolves every outstanding command for a node with a
// connection-lost failure and removes it. Returns how many were
// cancelled. Called on disconnect so no caller blocks on a dead node.
func (r *Router) CancelPending(nodeID string) int {
	cancelled := r.pending.takeForNode(nodeID)

	for _, pending := range cancelled {
		pending.ch <- resolution{err: &ConnectionLostError{NodeID: nodeID}}
	}

	return len(cancelled)
}

// PendingCount returns the number of commands awaiting a response.
func (r *Router) PendingCount() int {
	return r.pending.count()
}

// PendingForNode returns in-flight commands targeting the given node.
func (r *Router) PendingForNode(nodeID string) []PendingInfo {
	return r.pending.infoForNode(nodeID)
}
