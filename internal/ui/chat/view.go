// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/dadagust/geltek-chat-frontend-testing/internal/ui/styles"
)

const (
	heroTitle    = "Привет 👋 я знаю всё об уходовой косметике"
	heroSubtitle = "Помогу тебе выбрать средство под твои задачи\nи ответить на любые вопросы по уходу"
)

// =============================================================================
// LAYOUT
// =============================================================================

// mainWidth is the width of the message column.
func (m *Model) mainWidth() int {
	w := m.width
	if m.theme.ShowSidebar() {
		w -= styles.SidebarWidth
	}
	return max(w, 20)
}

func (m *Model) layout() {
	m.theme.SetSize(m.width, m.height)
	m.header.SetWidth(m.width)
	m.statusBar.SetWidth(m.width)

	mw := m.mainWidth()
	m.input.SetWidth(mw - m.theme.InputContainer.GetHorizontalFrameSize())

	// header + notice row + input box + status bar
	chrome := 1 + 1 + inputHeight + m.theme.InputContainer.GetVerticalFrameSize() + 1
	m.viewport.Width = mw
	m.viewport.Height = max(m.height-chrome, 3)
}

// syncState redraws the message list from the reducer's state.
func (m *Model) syncState() {
	st := m.reducer.Snapshot()

	if st.LastError != "" && m.notice.Text != st.LastError {
		m.notice.SetError(st.LastError)
	}
	if !st.IsStreaming {
		m.typing.Stop()
	}
	m.header.Phase = st.Phase.String()

	placeholder := ""
	if st.AwaitingFirstToken() {
		placeholder = m.typing.View(m.theme)
	}
	m.renderer.LiveLast = st.IsStreaming

	atBottom := m.viewport.AtBottom()
	content := m.renderer.RenderAll(st.Messages, m.viewport.Width, placeholder)
	if content == "" {
		content = m.heroView(m.viewport.Width, m.viewport.Height)
	}
	m.viewport.SetContent(content)
	if atBottom || st.IsStreaming {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the chat screen.
func (m Model) View() string {
	if !m.ready {
		return "Загрузка..."
	}

	mw := m.mainWidth()
	main := lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		m.notice.View(m.theme, mw),
		m.theme.InputContainer.Render(m.input.View()),
	)

	body := main
	switch {
	case m.theme.ShowSidebar():
		side := m.sidebar.View(m.theme, styles.SidebarWidth, lipgloss.Height(main))
		body = lipgloss.JoinHorizontal(lipgloss.Top, side, main)
	case m.focus == focusSidebar:
		// Too narrow for both columns: the list takes the screen.
		body = m.sidebar.View(m.theme, m.width, lipgloss.Height(main))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.header.View(m.theme),
		body,
		m.statusBar.View(m.theme),
	)
}

func (m *Model) heroView(width, height int) string {
	hero := lipgloss.JoinVertical(lipgloss.Center,
		m.theme.HeaderTitle.Render(heroTitle),
		"",
		m.theme.Empty.Render(heroSubtitle),
	)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, hero)
}
