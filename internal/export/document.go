// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"time"

	"github.com/dadagust/geltek-chat-frontend-testing/internal/model"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/sse"
)

// =============================================================================
// DOCUMENT
// =============================================================================

// Generator names the program in exported files.
const Generator = "geltek"

// Document is the exported form of a chat.
type Document struct {
	ChatID     string            `json:"chat_id" yaml:"chat_id"`
	Title      string            `json:"title" yaml:"title"`
	CreatedAt  *time.Time        `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	ExportedAt time.Time         `json:"exported_at" yaml:"exported_at"`
	Generator  string            `json:"generator" yaml:"generator"`
	Messages   []DocumentMessage `json:"messages" yaml:"messages"`
}

// DocumentMessage is one exported message.
type DocumentMessage struct {
	ID        string          `json:"message_id,omitempty" yaml:"message_id,omitempty"`
	Role      string          `json:"role" yaml:"role"`
	Text      string          `json:"text" yaml:"text"`
	CreatedAt *time.Time      `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	Events    []DocumentEvent `json:"events,omitempty" yaml:"events,omitempty"`
}

// DocumentEvent is a passthrough event that arrived with a reply.
type DocumentEvent struct {
	Type string         `json:"type" yaml:"type"`
	Data map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
}

// NewDocument converts hist to a Document according to opts.
func NewDocument(hist *model.ChatHistory, opts *Options) Document {
	if opts == nil {
		opts = DefaultOptions()
	}
	doc := Document{
		ChatID:     hist.ChatID,
		Title:      hist.Summary().DisplayTitle(),
		CreatedAt:  timePtr(hist.CreatedAt),
		ExportedAt: opts.now().UTC(),
		Generator:  Generator,
		Messages:   make([]DocumentMessage, 0, len(hist.Messages)),
	}

	for _, msg := range hist.Messages {
		dm := DocumentMessage{
			ID:   msg.ID,
			Role: string(msg.Role),
			Text: msg.Text,
		}
		if opts.IncludeTimestamps {
			dm.CreatedAt = timePtr(msg.CreatedAt)
		}
		if opts.IncludeEvents {
			for _, ev := range sse.FromMeta(msg.Meta) {
				dm.Events = append(dm.Events, DocumentEvent{Type: string(ev.Kind), Data: ev.Data})
			}
		}
		doc.Messages = append(doc.Messages, dm)
	}
	return doc
}

func timePtr(ts model.Timestamp) *time.Time {
	if ts.IsZero() {
		return nil
	}
	t := ts.Time.UTC()
	return &t
}
