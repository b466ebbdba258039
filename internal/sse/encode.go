// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"encoding/json"
	"fmt"
	"io"
)

// Encode writes ev to w as a single "data:" record followed by a blank line.
func Encode(w io.Writer, ev Event) error {
	data := ev.Data
	if data == nil {
		data = map[string]any{}
	}
	payload, err := json.Marshal(struct {
		Type Kind           `json:"type"`
		Data map[string]any `json:"data"`
	}{ev.Kind, data})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Kind, err)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}

// EncodeComment writes a comment record, used as a heartbeat.
func EncodeComment(w io.Writer, text string) error {
	_, err := fmt.Fprintf(w, ": %s\n\n", text)
	return err
}

// Token builds a token event.
func Token(content string) Event {
	return Event{Kind: KindToken, Data: map[string]any{"content": content}}
}

// Done builds a done event.
func Done() Event {
	return Event{Kind: KindDone, Data: map[string]any{}}
}

// Error builds an error event carrying message.
func Error(message string) Event {
	return Event{Kind: KindError, Data: map[string]any{"message": message}}
}

// ChatData builds a chat_data event announcing chatID.
func ChatData(chatID string) Event {
	return Event{Kind: KindChatData, Data: map[string]any{"chat_id": chatID}}
}
