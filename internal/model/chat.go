// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "strings"

// =============================================================================
// CHAT TYPES
// =============================================================================

// ChatSummary is one entry of a user's chat list.
type ChatSummary struct {
	ChatID    string    `json:"chat_id"`
	CreatedAt Timestamp `json:"created_at"`
	Title     string    `json:"title"`
}

// DisplayTitle returns the title, or a placeholder for untitled chats.
func (c ChatSummary) DisplayTitle() string {
	if t := strings.TrimSpace(c.Title); t != "" {
		return t
	}
	return "Untitled chat"
}

// ChatHistory is a chat together with its stored messages.
// Messages is empty (never nil after Normalize) when the service has none.
type ChatHistory struct {
	ChatID    string    `json:"chat_id"`
	CreatedAt Timestamp `json:"created_at"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
}

// Summary returns the list entry describing this chat.
func (h *ChatHistory) Summary() ChatSummary {
	return ChatSummary{ChatID: h.ChatID, CreatedAt: h.CreatedAt, Title: h.Title}
}

// Normalize replaces a null message array with an empty one.
func (h *ChatHistory) Normalize() {
	if h.Messages == nil {
		h.Messages = []Message{}
	}
}
