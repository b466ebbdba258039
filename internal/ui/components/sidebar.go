// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dadagust/geltek-chat-frontend-testing/internal/model"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/ui/styles"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/util"
)

// DefaultSidebarLimit is how many chats the sidebar lists.
const DefaultSidebarLimit = 7

const (
	sidebarBrand      = "GELTEK"
	sidebarNewChat    = "+ Новый чат"
	sidebarChatsTitle = "Ваши чаты"
	sidebarCursor     = "> "
)

// =============================================================================
// SIDEBAR
// =============================================================================

// Sidebar lists the first Limit chats of the user. Position 0 is the "New
// chat" action; positions 1..n are chats.
type Sidebar struct {
	chats    []model.ChatSummary
	activeID string
	limit    int
	cursor   int
	focused  bool
}

// NewSidebar creates a sidebar showing at most limit chats
// (DefaultSidebarLimit when limit <= 0).
func NewSidebar(limit int) Sidebar {
	s := Sidebar{}
	s.SetLimit(limit)
	return s
}

// SetLimit changes how many chats are listed.
func (s *Sidebar) SetLimit(limit int) {
	if limit <= 0 {
		limit = DefaultSidebarLimit
	}
	s.limit = limit
	s.clampCursor()
}

// SetChats replaces the chat list.
func (s *Sidebar) SetChats(chats []model.ChatSummary) {
	s.chats = chats
	s.clampCursor()
}

// Chats returns the chats currently listed.
func (s Sidebar) Chats() []model.ChatSummary {
	if len(s.chats) > s.limit {
		return s.chats[:s.limit]
	}
	return s.chats
}

// SetActive marks id as the open chat ("" for a new conversation) and moves
// the cursor onto it.
func (s *Sidebar) SetActive(id string) {
	s.activeID = id
	s.cursor = 0
	for i, c := range s.Chats() {
		if c.ChatID == id {
			s.cursor = i + 1
			break
		}
	}
}

// ActiveID returns the open chat id.
func (s Sidebar) ActiveID() string {
	return s.activeID
}

// Upsert puts chat at the top of the list unless it is already present.
// It is used when the service assigns an id to a new conversation.
func (s *Sidebar) Upsert(chat model.ChatSummary) {
	for _, c := range s.chats {
		if c.ChatID == chat.ChatID {
			return
		}
	}
	s.chats = append([]model.ChatSummary{chat}, s.chats...)
	s.clampCursor()
}

// SetFocused toggles keyboard focus, which shows the cursor.
func (s *Sidebar) SetFocused(focused bool) {
	s.focused = focused
}

// Focused reports whether the sidebar has keyboard focus.
func (s Sidebar) Focused() bool {
	return s.focused
}

// MoveUp moves the cursor one entry up.
func (s *Sidebar) MoveUp() {
	if s.cursor > 0 {
		s.cursor--
	}
}

// MoveDown moves the cursor one entry down.
func (s *Sidebar) MoveDown() {
	if s.cursor < len(s.Chats()) {
		s.cursor++
	}
}

// Selection returns the chat under the cursor. ok is false when the cursor
// is on the "New chat" action.
func (s Sidebar) Selection() (chat model.ChatSummary, ok bool) {
	if s.cursor == 0 {
		return model.ChatSummary{}, false
	}
	return s.Chats()[s.cursor-1], true
}

func (s *Sidebar) clampCursor() {
	if n := len(s.Chats()); s.cursor > n {
		s.cursor = n
	}
}

// View renders the sidebar into a column width wide and height tall.
func (s Sidebar) View(theme *styles.Theme, width, height int) string {
	inner := width - theme.Sidebar.GetHorizontalFrameSize()
	if inner < 8 {
		inner = 8
	}

	var b strings.Builder
	b.WriteString(theme.HeaderTitle.Render(sidebarBrand))
	b.WriteString("\n\n")
	b.WriteString(s.line(theme, theme.SidebarAction, sidebarNewChat, 0, inner))
	b.WriteString("\n\n")
	b.WriteString(theme.SidebarTitle.Render(sidebarChatsTitle))
	b.WriteString("\n")

	chats := s.Chats()
	if len(chats) == 0 {
		b.WriteString(theme.Empty.Render(util.TruncateWidth("Нет чатов", inner)))
	}
	for i, c := range chats {
		style := theme.SidebarItem
		if c.ChatID == s.activeID {
			style = theme.SidebarItemActive
		}
		b.WriteString(s.line(theme, style, c.DisplayTitle(), i+1, inner))
		if i < len(chats)-1 {
			b.WriteString("\n")
		}
	}

	col := theme.Sidebar.Width(width - theme.Sidebar.GetHorizontalBorderSize())
	if height > 0 {
		col = col.Height(height)
	}
	return col.Render(b.String())
}

func (s Sidebar) line(theme *styles.Theme, style lipgloss.Style, text string, pos, width int) string {
	prefix := "  "
	if s.focused && s.cursor == pos {
		prefix = sidebarCursor
	}
	text = util.TruncateWidth(text, width-util.StringWidth(prefix))
	return theme.ShortcutKey.Render(prefix) + style.Render(text)
}
