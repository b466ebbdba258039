// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the Bubble Tea chat screen of geltek.

The screen is a thin shell around session.Reducer. Key presses become
reducer calls (BeginSend, SwitchConversation, NewConversation) and every
network result comes back as a message tagged with the Handle it was
started under, so results of superseded requests fall through the
reducer's generation check without touching the view.

# Key Types

  - Model - the tea.Model. Create it with New and run it with
    tea.NewProgram.
  - Options - service, stream opener, user id and UI settings.
  - Service - chat list and history lookups; *api.Client satisfies it.
  - KeyMap - key bindings (enter sends, ctrl+n starts a new chat, tab
    moves focus to the chat list).
  - ConfigReloadedMsg - send it to the program to apply new UI settings.

# Streaming

A reply stream is read one event per command: nextEventCmd blocks on
EventSource.Next, the event is folded, and only then is the next read
scheduled. When a stream is superseded by a newer send, a chat switch or a
new chat, its next event is refused by the reducer and the stream is handed
to session.Drain, which reads it to the end in the background.

# Usage

	m := chat.New(chat.Options{
		Service: client,
		Open:    session.ClientOpener(client),
		UserID:  cfg.Service.UserID,
		UI:      cfg.UI,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
*/
package chat
