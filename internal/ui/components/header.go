// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/dadagust/geltek-chat-frontend-testing/internal/ui/styles"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/util"
)

// DefaultChatTitle is shown for a conversation the service has not named.
const DefaultChatTitle = "Новый чат"

// =============================================================================
// HEADER
// =============================================================================

// Header is the one-line title bar: brand and chat title on the left, the
// conversation phase on the right.
type Header struct {
	Title     string
	ChatTitle string
	Phase     string
	Width     int
}

// NewHeader creates a header for a new conversation.
func NewHeader() *Header {
	return &Header{Title: "geltek", ChatTitle: DefaultChatTitle, Width: 80}
}

// SetWidth updates the header width.
func (h *Header) SetWidth(width int) {
	h.Width = width
}

// View renders the header.
func (h *Header) View(theme *styles.Theme) string {
	width := h.Width
	if width < 20 {
		width = 20
	}
	inner := width - theme.Header.GetHorizontalFrameSize()

	right := ""
	if h.Phase != "" && h.Phase != "idle" {
		right = theme.HeaderMeta.Render(h.Phase)
	}
	brand := theme.HeaderTitle.Render(h.Title)

	title := h.ChatTitle
	if title == "" {
		title = DefaultChatTitle
	}
	room := inner - lipgloss.Width(brand) - lipgloss.Width(right) - 3
	left := brand + " " + theme.HeaderMeta.Render(util.TruncateWidth(title, room))

	gap := inner - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return theme.Header.Width(width).Render(left + spaces(gap) + right)
}

func spaces(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}
