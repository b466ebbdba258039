// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the colors and lipgloss styles of the chat screen.

All colors are lipgloss.AdaptiveColor values so the screen reads on light and
dark terminals alike. Colored states carry a text marker as well (see
StatusIndicators).

# Key Types

  - Theme: every style the screen uses, plus the terminal size
  - LayoutMode: narrow, medium or wide, derived from the width

# Usage

	theme := styles.NewTheme()
	theme.SetSize(msg.Width, msg.Height)
	if theme.ShowSidebar() {
		// render the chat list
	}
*/
package styles
