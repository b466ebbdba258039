// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/dadagust/geltek-chat-frontend-testing/internal/ui/styles"
)

// init applies the color decision of ColorsEnabled to all lipgloss output.
func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// SHARED STYLES FOR ALL CLI COMMANDS
// =============================================================================

var (
	// TitleStyle is used for command titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.Cyan)

	// DimStyle is used for ids, timestamps and hints.
	DimStyle = lipgloss.NewStyle().
			Foreground(styles.TextMuted)

	// UserStyle labels the user's lines in transcripts.
	UserStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.UserBubbleBorder)

	// AssistantStyle labels the assistant's lines in transcripts.
	AssistantStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.AssistantBubbleBorder)

	// EventStyle is used for tool, product and article events.
	EventStyle = lipgloss.NewStyle().
			Foreground(styles.Emerald)

	// ErrorStyle is used for error messages.
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.Rose)

	// SuccessStyle is used for confirmations.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(styles.Emerald)
)
