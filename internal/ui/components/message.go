// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dadagust/geltek-chat-frontend-testing/internal/model"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/sse"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/ui/styles"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/util"
)

// =============================================================================
// MESSAGE RENDERER
// =============================================================================

// MessageRenderer draws chat messages as bubbles. User messages sit on the
// right; assistant and other roles on the left.
type MessageRenderer struct {
	theme          *styles.Theme
	markdown       *Markdown
	ShowTimestamps bool
	ShowEvents     bool

	// LiveLast marks the last message as still streaming. Its text is
	// wrapped as plain text until the reply is complete.
	LiveLast bool
}

// NewMessageRenderer creates a renderer. md may be nil for plain text.
func NewMessageRenderer(theme *styles.Theme, md *Markdown) *MessageRenderer {
	return &MessageRenderer{
		theme:          theme,
		markdown:       md,
		ShowTimestamps: true,
		ShowEvents:     true,
	}
}

// Render draws msg in a column width wide. When the message has no text,
// placeholder (typically the typing indicator) is drawn in its place; with
// no placeholder either, the bubble is skipped and only the label remains.
func (r *MessageRenderer) Render(msg model.Message, width int, placeholder string) string {
	return r.render(msg, width, placeholder, false)
}

func (r *MessageRenderer) render(msg model.Message, width int, placeholder string, plain bool) string {
	if width < 20 {
		width = 20
	}
	// Bubbles take at most four fifths of the column.
	maxBubble := width * 4 / 5
	bubbleStyle := r.bubbleStyle(msg.Role)
	textWidth := maxBubble - bubbleStyle.GetHorizontalFrameSize()

	var body string
	switch {
	case msg.Text != "":
		body = r.body(msg, textWidth, plain)
	case placeholder != "":
		body = placeholder
	}

	parts := []string{r.label(msg)}
	if body != "" {
		parts = append(parts, bubbleStyle.Render(body))
	}
	if r.ShowEvents {
		if badges := r.badges(msg, maxBubble); badges != "" {
			parts = append(parts, badges)
		}
	}
	block := lipgloss.JoinVertical(alignFor(msg.Role), parts...)

	if msg.Role.IsUser() {
		return lipgloss.PlaceHorizontal(width, lipgloss.Right, block)
	}
	return block
}

// RenderAll draws msgs separated by blank lines. placeholder and LiveLast
// apply to the last message only.
func (r *MessageRenderer) RenderAll(msgs []model.Message, width int, placeholder string) string {
	if len(msgs) == 0 {
		return ""
	}
	out := make([]string, len(msgs))
	last := len(msgs) - 1
	for i, msg := range msgs {
		if i == last {
			out[i] = r.render(msg, width, placeholder, r.LiveLast)
			continue
		}
		out[i] = r.render(msg, width, "", false)
	}
	return strings.Join(out, "\n\n")
}

func (r *MessageRenderer) body(msg model.Message, width int, plain bool) string {
	if msg.Role == model.RoleAssistant && r.markdown != nil && !plain {
		return r.markdown.Render(msg.Text, width)
	}
	if util.StringWidth(msg.Text) <= width && !strings.Contains(msg.Text, "\n") {
		return msg.Text
	}
	return Wrap(msg.Text, width)
}

func (r *MessageRenderer) label(msg model.Message) string {
	label := r.theme.RoleLabel.Render(msg.Role.DisplayName())
	if r.ShowTimestamps && !msg.CreatedAt.IsZero() {
		label += " " + r.theme.Timestamp.Render(msg.CreatedAt.Local().Format("15:04"))
	}
	return label
}

func (r *MessageRenderer) bubbleStyle(role model.Role) lipgloss.Style {
	switch role {
	case model.RoleUser:
		return r.theme.UserBubble
	case model.RoleAssistant:
		return r.theme.AssistantBubble
	default:
		return r.theme.OtherBubble
	}
}

// badges lists the tool, product and article events stored with a reply.
func (r *MessageRenderer) badges(msg model.Message, width int) string {
	events := sse.FromMeta(msg.Meta)
	if len(events) == 0 {
		return ""
	}
	lines := make([]string, 0, len(events))
	for _, ev := range events {
		lines = append(lines, r.theme.EventBadge.Render(util.TruncateWidth(EventBadge(ev), width)))
	}
	return strings.Join(lines, "\n")
}

// EventBadge returns the one-line description of a passthrough event, such
// as "[product] Sample product".
func EventBadge(ev sse.Event) string {
	for _, key := range []string{"name", "title", "sku", "url"} {
		if v, ok := ev.Data[key]; ok {
			if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
				return "[" + string(ev.Kind) + "] " + util.FirstLine(s)
			}
		}
	}
	return "[" + string(ev.Kind) + "]"
}

func alignFor(role model.Role) lipgloss.Position {
	if role.IsUser() {
		return lipgloss.Right
	}
	return lipgloss.Left
}
