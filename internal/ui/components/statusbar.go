// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dadagust/geltek-chat-frontend-testing/internal/ui/styles"
)

// =============================================================================
// STATUS BAR
// =============================================================================

// Shortcut is one key hint.
type Shortcut struct {
	Key  string
	Desc string
}

// StatusBar shows key hints on the left and the user id on the right.
type StatusBar struct {
	Shortcuts []Shortcut
	Right     string
	Width     int
}

// NewStatusBar creates a status bar with the given hints.
func NewStatusBar(shortcuts ...Shortcut) *StatusBar {
	return &StatusBar{Shortcuts: shortcuts, Width: 80}
}

// SetWidth updates the bar width.
func (s *StatusBar) SetWidth(width int) {
	s.Width = width
}

// View renders the bar. Hints that do not fit are dropped from the end.
func (s *StatusBar) View(theme *styles.Theme) string {
	inner := s.Width - theme.StatusBar.GetHorizontalFrameSize()
	right := theme.ShortcutDesc.Render(s.Right)
	room := inner - lipgloss.Width(right) - 1

	var hints []string
	used := 0
	for _, sc := range s.Shortcuts {
		hint := theme.ShortcutKey.Render(sc.Key) + " " + theme.ShortcutDesc.Render(sc.Desc)
		w := lipgloss.Width(hint)
		if len(hints) > 0 {
			w += 2
		}
		if used+w > room {
			break
		}
		hints = append(hints, hint)
		used += w
	}
	left := strings.Join(hints, "  ")

	gap := inner - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return theme.StatusBar.Width(max(s.Width, 0)).Render(left + spaces(gap) + right)
}
