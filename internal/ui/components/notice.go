// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/dadagust/geltek-chat-frontend-testing/internal/ui/styles"
)

// =============================================================================
// NOTICE KINDS
// =============================================================================

// NoticeKind is the severity of a notice.
type NoticeKind int

const (
	// NoticeNone means the slot is empty.
	NoticeNone NoticeKind = iota
	// NoticeInfo is a transient informational message.
	NoticeInfo
	// NoticeError reports a failed operation.
	NoticeError
)

// InfoNoticeDuration is how long an info notice stays visible.
const InfoNoticeDuration = 4 * time.Second

// =============================================================================
// NOTICE
// =============================================================================

// Notice is the single status slot under the input. Errors stay until they
// are replaced or cleared; info notices expire after InfoNoticeDuration.
type Notice struct {
	Text      string
	Kind      NoticeKind
	CreatedAt time.Time

	now func() time.Time
}

// NewNotice returns an empty notice slot.
func NewNotice() Notice {
	return Notice{now: time.Now}
}

func (n *Notice) clock() time.Time {
	if n.now == nil {
		return time.Now()
	}
	return n.now()
}

// SetError shows text as an error. Blank text clears the slot.
func (n *Notice) SetError(text string) {
	n.set(text, NoticeError)
}

// SetInfo shows text as an info notice. Blank text clears the slot.
func (n *Notice) SetInfo(text string) {
	n.set(text, NoticeInfo)
}

func (n *Notice) set(text string, kind NoticeKind) {
	text = strings.TrimSpace(text)
	if text == "" {
		n.Clear()
		return
	}
	n.Text = text
	n.Kind = kind
	n.CreatedAt = n.clock()
}

// Clear empties the slot.
func (n *Notice) Clear() {
	n.Text = ""
	n.Kind = NoticeNone
	n.CreatedAt = time.Time{}
}

// IsExpired reports whether an info notice has outlived its duration.
// Errors never expire.
func (n *Notice) IsExpired() bool {
	if n.Kind != NoticeInfo {
		return false
	}
	return n.clock().Sub(n.CreatedAt) >= InfoNoticeDuration
}

// Visible reports whether the slot has something to show.
func (n *Notice) Visible() bool {
	return n.Kind != NoticeNone && !n.IsExpired()
}

// View renders the notice within width columns, or "" when nothing is shown.
func (n *Notice) View(theme *styles.Theme, width int) string {
	if !n.Visible() {
		return ""
	}

	style := theme.NoticeInfo
	icon := styles.StatusIndicators.Info
	if n.Kind == NoticeError {
		style = theme.NoticeError
		icon = styles.StatusIndicators.Error
	}
	if width > 0 {
		style = style.Width(width)
	}
	return style.Render(lipgloss.JoinHorizontal(lipgloss.Top, icon, " ", n.Text))
}
