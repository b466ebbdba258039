// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dadagust/geltek-chat-frontend-testing/internal/config"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/model"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/session"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/sse"
)

// =============================================================================
// MESSAGES
// =============================================================================

// Every message that carries a result of a request also carries the Handle
// it was started under; the reducer decides whether it still counts.

type chatsLoadedMsg struct {
	chats []model.ChatSummary
	err   error
}

type historyLoadedMsg struct {
	handle session.Handle
	hist   *model.ChatHistory
	err    error
}

type streamOpenedMsg struct {
	handle session.Handle
	src    session.EventSource
	err    error
}

type streamEventMsg struct {
	handle session.Handle
	src    session.EventSource
	ev     sse.Event
}

// streamEndMsg reports the end of a stream; err is nil at end of data.
type streamEndMsg struct {
	handle session.Handle
	src    session.EventSource
	err    error
}

// ConfigReloadedMsg delivers new UI settings after the config file changed.
type ConfigReloadedMsg struct {
	UI config.UIConfig
}

// =============================================================================
// COMMANDS
// =============================================================================

func loadChatsCmd(ctx context.Context, svc Service, userID string) tea.Cmd {
	return func() tea.Msg {
		chats, err := svc.ListChats(ctx, userID)
		return chatsLoadedMsg{chats: chats, err: err}
	}
}

func loadHistoryCmd(ctx context.Context, svc Service, h session.Handle, chatID string) tea.Cmd {
	return func() tea.Msg {
		hist, err := svc.ChatHistory(ctx, chatID)
		return historyLoadedMsg{handle: h, hist: hist, err: err}
	}
}

func openStreamCmd(ctx context.Context, open session.Opener, req session.SendRequest) tea.Cmd {
	return func() tea.Msg {
		src, err := open(ctx, req)
		return streamOpenedMsg{handle: req.Handle, src: src, err: err}
	}
}

// nextEventCmd reads one event. The next read is only scheduled once this
// event has been folded, which keeps events in arrival order.
func nextEventCmd(h session.Handle, src session.EventSource) tea.Cmd {
	return func() tea.Msg {
		ev, err := src.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = nil
			}
			return streamEndMsg{handle: h, src: src, err: err}
		}
		return streamEventMsg{handle: h, src: src, ev: ev}
	}
}
