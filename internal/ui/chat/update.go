// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/dadagust/geltek-chat-frontend-testing/internal/config"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/model"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/session"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/sse"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/util"
)

// noticeHistoryLoading is shown when a send is attempted during a history load.
const noticeHistoryLoading = "История чата ещё загружается"

// maxTitleWidth bounds the sidebar title derived from a first message.
const maxTitleWidth = 40

// =============================================================================
// UPDATE
// =============================================================================

// Update handles Bubble Tea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.layout()
		m.syncState()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case chatsLoadedMsg:
		return m.handleChatsLoaded(msg)

	case historyLoadedMsg:
		return m.handleHistoryLoaded(msg)

	case streamOpenedMsg:
		return m.handleStreamOpened(msg)

	case streamEventMsg:
		return m.handleStreamEvent(msg)

	case streamEndMsg:
		return m.handleStreamEnd(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.typing, cmd = m.typing.Update(msg)
		if cmd != nil {
			m.syncState()
		}
		return m, cmd

	case ConfigReloadedMsg:
		m.applyUI(msg.UI)
		m.syncState()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.NewChat):
		m.newConversation()
		return m, m.setFocus(focusInput)

	case key.Matches(msg, m.keys.ToggleFocus):
		if m.focus == focusInput {
			return m, m.setFocus(focusSidebar)
		}
		return m, m.setFocus(focusInput)

	case key.Matches(msg, m.keys.Dismiss):
		m.notice.Clear()
		m.reducer.ClearError()
		return m, m.setFocus(focusInput)

	case key.Matches(msg, m.keys.PageUp, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if m.focus == focusSidebar {
		return m.handleSidebarKey(msg)
	}

	if key.Matches(msg, m.keys.Send) {
		return m.send()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleSidebarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.sidebar.MoveUp()
	case key.Matches(msg, m.keys.Down):
		m.sidebar.MoveDown()
	case key.Matches(msg, m.keys.Select):
		focusCmd := m.setFocus(focusInput)
		chat, ok := m.sidebar.Selection()
		if !ok {
			m.newConversation()
			return m, focusCmd
		}
		if chat.ChatID == m.reducer.ConversationID() {
			return m, focusCmd
		}
		return m, tea.Batch(focusCmd, m.switchTo(chat.ChatID))
	}
	return m, nil
}

func (m *Model) setFocus(f focus) tea.Cmd {
	m.focus = f
	m.sidebar.SetFocused(f == focusSidebar)
	m.statusBar.Shortcuts = m.keys.Shortcuts(f == focusSidebar)
	if f == focusSidebar {
		m.sidebar.SetActive(m.sidebar.ActiveID())
		m.input.Blur()
		return nil
	}
	return m.input.Focus()
}

// =============================================================================
// SENDING
// =============================================================================

func (m Model) send() (tea.Model, tea.Cmd) {
	req, err := m.reducer.BeginSend(m.input.Value())
	switch {
	case errors.Is(err, session.ErrHistoryLoading):
		m.notice.SetInfo(noticeHistoryLoading)
		return m, nil
	case err != nil:
		// Empty input or a reply still streaming: nothing happens.
		return m, nil
	}

	m.input.Reset()
	m.notice.Clear()
	if req.ConversationID == "" {
		m.pendingTitle = req.Text
	}
	m.logger.Debug("send started",
		zap.Uint64("generation", req.Handle.Generation()),
		zap.String("chat_id", req.ConversationID))

	tick := m.typing.Start()
	m.syncState()
	return m, tea.Batch(openStreamCmd(m.ctx, m.open, req), tick)
}

func (m Model) handleStreamOpened(msg streamOpenedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if m.reducer.Fail(msg.handle, msg.err) {
			m.logger.Warn("stream open failed", zap.Error(msg.err))
		}
		m.syncState()
		return m, nil
	}
	if !m.reducer.StreamOpened(msg.handle) {
		session.Drain(msg.src)
		return m, nil
	}
	m.syncState()
	return m, nextEventCmd(msg.handle, msg.src)
}

func (m Model) handleStreamEvent(msg streamEventMsg) (tea.Model, tea.Cmd) {
	if !m.reducer.Apply(msg.handle, msg.ev) {
		// Superseded: let the request finish without touching the view.
		session.Drain(msg.src)
		return m, nil
	}

	if msg.ev.Kind == sse.KindChatData {
		m.adoptConversation()
	}
	m.syncState()

	if msg.ev.Kind.Terminal() {
		msg.src.Close()
		return m, nil
	}
	return m, nextEventCmd(msg.handle, msg.src)
}

func (m Model) handleStreamEnd(msg streamEndMsg) (tea.Model, tea.Cmd) {
	defer msg.src.Close()

	var applied bool
	if msg.err == nil {
		applied = m.reducer.End(msg.handle)
	} else {
		applied = m.reducer.Fail(msg.handle, msg.err)
	}
	if applied {
		m.logger.Warn("stream ended without completion",
			zap.Uint64("generation", msg.handle.Generation()),
			zap.Error(msg.err))
	}
	m.syncState()
	return m, nil
}

// adoptConversation lists a conversation the service just created.
func (m *Model) adoptConversation() {
	id := m.reducer.ConversationID()
	if id == "" || id == m.sidebar.ActiveID() {
		return
	}
	title := util.TruncateWidth(util.FirstLine(m.pendingTitle), maxTitleWidth)
	m.pendingTitle = ""
	m.sidebar.Upsert(model.ChatSummary{
		ChatID:    id,
		CreatedAt: model.Timestamp{Time: time.Now()},
		Title:     title,
	})
	m.sidebar.SetActive(id)
	m.header.ChatTitle = title
}

// =============================================================================
// NAVIGATION
// =============================================================================

func (m Model) handleChatsLoaded(msg chatsLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.logger.Warn("chat list failed", zap.Error(msg.err))
		m.notice.SetError(session.TransportMessage(msg.err))
		return m, nil
	}
	m.sidebar.SetChats(msg.chats)

	// The user got ahead of the list: keep what they are doing.
	st := m.reducer.Snapshot()
	if st.ConversationID != "" || len(st.Messages) > 0 || st.Phase != session.PhaseIdle {
		m.sidebar.SetActive(st.ConversationID)
		return m, nil
	}

	id := initialChat(msg.chats)
	if id == "" {
		return m, nil
	}
	return m, m.switchTo(id)
}

// initialChat picks the chat opened on startup: the second one when there
// are several, else the first.
func initialChat(chats []model.ChatSummary) string {
	switch {
	case len(chats) > 1:
		return chats[1].ChatID
	case len(chats) == 1:
		return chats[0].ChatID
	default:
		return ""
	}
}

// switchTo opens chat id and returns the command loading its history.
func (m *Model) switchTo(id string) tea.Cmd {
	h := m.reducer.SwitchConversation(id)
	m.typing.Stop()
	m.notice.Clear()
	m.pendingTitle = ""
	m.sidebar.SetActive(id)
	m.header.ChatTitle = m.titleOf(id)
	m.syncState()
	if h.IsZero() {
		return nil
	}
	return loadHistoryCmd(m.ctx, m.svc, h, id)
}

func (m *Model) newConversation() {
	m.reducer.NewConversation()
	m.typing.Stop()
	m.notice.Clear()
	m.pendingTitle = ""
	m.sidebar.SetActive("")
	m.header.ChatTitle = ""
	m.syncState()
}

func (m Model) handleHistoryLoaded(msg historyLoadedMsg) (tea.Model, tea.Cmd) {
	if !m.reducer.ApplyHistory(msg.handle, msg.hist, msg.err) {
		return m, nil
	}
	if msg.err != nil {
		m.logger.Warn("history load failed", zap.Error(msg.err))
	}
	if msg.hist != nil && msg.hist.Title != "" {
		m.header.ChatTitle = msg.hist.Title
	}
	m.syncState()
	m.viewport.GotoBottom()
	return m, nil
}

func (m *Model) titleOf(id string) string {
	for _, c := range m.sidebar.Chats() {
		if c.ChatID == id {
			return c.DisplayTitle()
		}
	}
	return ""
}

// =============================================================================
// SETTINGS
// =============================================================================

func (m *Model) applyUI(ui config.UIConfig) {
	m.ui = ui
	m.sidebar.SetLimit(ui.SidebarLimit)
	m.markdown.SetEnabled(ui.RenderMarkdown)
	m.renderer.ShowTimestamps = ui.ShowTimestamps
	m.logger.Info("ui settings reloaded",
		zap.Int("sidebar_limit", ui.SidebarLimit),
		zap.Bool("render_markdown", ui.RenderMarkdown))
}
