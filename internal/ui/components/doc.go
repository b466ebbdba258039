// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components provides the visual pieces of the geltek chat screen.

Components are plain values that render to strings with a *styles.Theme.
Only the typing indicator owns an animation and speaks Bubble Tea messages;
everything else is redrawn from state on every frame.

# Key Types

  - Header (header.go) - title bar with the active chat title and phase.
  - Sidebar (sidebar.go) - the first N chats of the user, the active one
    highlighted, plus the "New chat" action.
  - MessageRenderer (message.go) - message bubbles with role label,
    timestamp and the tool, product and article events of a reply.
  - Markdown (markdown.go) - glamour renderer cached per wrap width with a
    plain-text fallback.
  - Notice (notice.go) - the single status slot for errors and info.
  - Typing (typing.go) - spinner shown while the reply is still empty.
  - StatusBar (statusbar.go) - key hints along the bottom edge.

# Usage

	theme := styles.NewTheme()
	md := components.NewMarkdown("", true)
	r := components.NewMessageRenderer(theme, md)
	for _, msg := range state.Messages {
		b.WriteString(r.Render(msg, width, ""))
	}
*/
package components
