// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// EVENT KINDS
// =============================================================================

// Kind identifies the type of a stream event.
type Kind string

const (
	KindToken     Kind = "token"
	KindToolStart Kind = "tool_start"
	KindToolEnd   Kind = "tool_end"
	KindProduct   Kind = "product"
	KindArticle   Kind = "article"
	KindDone      Kind = "done"
	KindError     Kind = "error"
	KindChatData  Kind = "chat_data"
)

// Valid reports whether k is one of the known event kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindToken, KindToolStart, KindToolEnd, KindProduct, KindArticle,
		KindDone, KindError, KindChatData:
		return true
	}
	return false
}

// Terminal reports whether k ends a stream.
func (k Kind) Terminal() bool {
	return k == KindDone || k == KindError
}

// Passthrough reports whether k carries data for the rendering layer only.
func (k Kind) Passthrough() bool {
	switch k {
	case KindToolStart, KindToolEnd, KindProduct, KindArticle:
		return true
	}
	return false
}

// =============================================================================
// EVENT
// =============================================================================

// Event is one decoded stream event. Data is never nil.
type Event struct {
	Kind Kind           `json:"type"`
	Data map[string]any `json:"data"`
}

// Content returns the text fragment carried by a token event.
func (e Event) Content() string {
	return e.str("content")
}

// ErrorMessage returns the message carried by an error event.
func (e Event) ErrorMessage() string {
	return e.str("message")
}

// ChatID returns the conversation id carried by a chat_data event.
func (e Event) ChatID() string {
	return e.str("chat_id")
}

func (e Event) str(key string) string {
	if s, ok := e.Data[key].(string); ok {
		return s
	}
	return ""
}

// String returns a short description for logs.
func (e Event) String() string {
	return fmt.Sprintf("%s(%d fields)", e.Kind, len(e.Data))
}

// =============================================================================
// RECORD PARSING
// =============================================================================

const dataPrefix = "data:"

// ErrUnknownKind is wrapped by MalformedRecordError for unrecognized types.
var ErrUnknownKind = errors.New("unknown event type")

// MalformedRecordError describes a significant record whose payload could
// not be turned into an event. It is reported, never returned by the Decoder.
type MalformedRecordError struct {
	Record string
	Err    error
}

// Error implements the error interface.
func (e *MalformedRecordError) Error() string {
	rec := e.Record
	if len(rec) > 80 {
		rec = rec[:80] + "..."
	}
	return fmt.Sprintf("malformed record %q: %v", rec, e.Err)
}

// Unwrap returns the underlying parse error.
func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}

// wireEvent is the JSON shape of a payload.
type wireEvent struct {
	Type Kind            `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Parse decodes a single record (without its trailing separator).
//
// ok is false when the record is noise: not prefixed with "data:" or with an
// empty payload. A non-nil error is always a *MalformedRecordError.
func Parse(record string) (ev Event, ok bool, err error) {
	trimmed := strings.TrimSpace(record)
	if !strings.HasPrefix(trimmed, dataPrefix) {
		return Event{}, false, nil
	}
	payload := strings.TrimSpace(trimmed[len(dataPrefix):])
	if payload == "" {
		return Event{}, false, nil
	}

	var wire wireEvent
	if err := json.Unmarshal([]byte(payload), &wire); err != nil {
		return Event{}, false, &MalformedRecordError{Record: payload, Err: err}
	}
	if !wire.Type.Valid() {
		return Event{}, false, &MalformedRecordError{
			Record: payload,
			Err:    fmt.Errorf("%w %q", ErrUnknownKind, string(wire.Type)),
		}
	}

	data := make(map[string]any)
	if len(wire.Data) > 0 && string(wire.Data) != "null" {
		if err := json.Unmarshal(wire.Data, &data); err != nil {
			return Event{}, false, &MalformedRecordError{Record: payload, Err: fmt.Errorf("data: %w", err)}
		}
	}
	return Event{Kind: wire.Type, Data: data}, true, nil
}

// =============================================================================
// STORED EVENTS
// =============================================================================

// MetaKey is the message metadata key holding the passthrough events that
// arrived with an assistant reply.
const MetaKey = "stream_events"

// FromMeta returns the passthrough events stored in a message's metadata.
// It accepts the []Event kept by a live reply as well as the []any produced
// by decoding a stored message from JSON. Entries of unknown shape are
// skipped.
func FromMeta(meta map[string]any) []Event {
	switch v := meta[MetaKey].(type) {
	case []Event:
		return v
	case []any:
		out := make([]Event, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			kind, _ := m["type"].(string)
			if !Kind(kind).Valid() {
				continue
			}
			data, _ := m["data"].(map[string]any)
			if data == nil {
				data = map[string]any{}
			}
			out = append(out, Event{Kind: Kind(kind), Data: data})
		}
		return out
	}
	return nil
}
