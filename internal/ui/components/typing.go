// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dadagust/geltek-chat-frontend-testing/internal/ui/styles"
)

// =============================================================================
// TYPING INDICATOR
// =============================================================================

// DefaultTypingLabel is shown next to the spinner.
const DefaultTypingLabel = "Ожидание ответа"

// Typing is the indicator shown in place of an assistant reply that has no
// text yet.
type Typing struct {
	spinner spinner.Model
	label   string
	active  bool
}

// NewTyping creates an inactive typing indicator with ASCII frames.
func NewTyping() Typing {
	s := spinner.New()
	s.Spinner = spinner.Spinner{
		Frames: []string{".  ", ".. ", "...", " ..", "  .", "   "},
		FPS:    time.Second / 6,
	}
	return Typing{spinner: s, label: DefaultTypingLabel}
}

// SetLabel replaces the text next to the spinner.
func (t *Typing) SetLabel(label string) {
	t.label = label
}

// Start activates the indicator and returns the command driving it.
// Starting an active indicator returns nil so ticks are not doubled.
func (t *Typing) Start() tea.Cmd {
	if t.active {
		return nil
	}
	t.active = true
	return t.spinner.Tick
}

// Stop deactivates the indicator. Pending ticks are ignored.
func (t *Typing) Stop() {
	t.active = false
}

// Active reports whether the indicator is animating.
func (t Typing) Active() bool {
	return t.active
}

// Update advances the animation for its own tick messages.
func (t Typing) Update(msg tea.Msg) (Typing, tea.Cmd) {
	if !t.active {
		return t, nil
	}
	if _, ok := msg.(spinner.TickMsg); !ok {
		return t, nil
	}
	var cmd tea.Cmd
	t.spinner, cmd = t.spinner.Update(msg)
	return t, cmd
}

// View renders the label and the current frame.
func (t Typing) View(theme *styles.Theme) string {
	return theme.Typing.Render(t.label + " " + t.spinner.View())
}
