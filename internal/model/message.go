// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
// Values other than user and assistant are kept verbatim.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case "":
		return "Unknown"
	default:
		return string(r)
	}
}

// IsUser reports whether the message was written by the local user.
func (r Role) IsUser() bool {
	return r == RoleUser
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a chat.
//
// The text of an assistant message changes while its reply is streaming and
// is frozen once the stream finishes. Callers outside the conversation
// reducer should treat messages as values.
type Message struct {
	ID        string         `json:"message_id"`
	Text      string         `json:"text"`
	Role      Role           `json:"role"`
	CreatedAt Timestamp      `json:"created_at"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// NewMessage creates a message with a fresh id stamped with the current time.
func NewMessage(role Role, text string) Message {
	return Message{
		ID:        NewMessageID(),
		Text:      text,
		Role:      role,
		CreatedAt: Timestamp{Time: time.Now()},
	}
}

// NewMessageID returns a unique id for a locally created message.
func NewMessageID() string {
	return "local-" + uuid.NewString()
}

// Clone returns a copy of the message that shares no mutable state.
func (m Message) Clone() Message {
	m.Meta = maps.Clone(m.Meta)
	return m
}

// IsEmpty reports whether the message has no visible text yet.
func (m Message) IsEmpty() bool {
	return m.Text == ""
}

// CloneMessages copies a message slice with Clone applied to every element.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}
