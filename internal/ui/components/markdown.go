// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// MARKDOWN RENDERER
// =============================================================================

// Markdown renders assistant replies with glamour. Renderers are built lazily
// and cached per wrap width. When rendering is disabled or glamour fails the
// text is word-wrapped as is.
type Markdown struct {
	style   string
	enabled bool

	mu        sync.Mutex
	renderers map[int]*glamour.TermRenderer
}

// NewMarkdown creates a renderer. An empty style picks the dark or light
// theme from the terminal background; any glamour style name or path is
// accepted otherwise ("notty" renders without colors).
func NewMarkdown(style string, enabled bool) *Markdown {
	return &Markdown{
		style:     style,
		enabled:   enabled,
		renderers: make(map[int]*glamour.TermRenderer),
	}
}

// Enabled reports whether markdown rendering is on.
func (m *Markdown) Enabled() bool {
	return m != nil && m.enabled
}

// SetEnabled switches markdown rendering on or off.
func (m *Markdown) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = enabled
}

// Render formats text for width columns.
func (m *Markdown) Render(text string, width int) string {
	if width < 10 {
		width = 10
	}
	if !m.Enabled() {
		return Wrap(text, width)
	}

	r := m.renderer(width)
	if r == nil {
		return Wrap(text, width)
	}
	out, err := r.Render(text)
	if err != nil {
		return Wrap(text, width)
	}
	return strings.Trim(out, "\n")
}

func (m *Markdown) renderer(width int) *glamour.TermRenderer {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.renderers[width]; ok {
		return r
	}

	styleOpt := glamour.WithAutoStyle()
	if m.style != "" {
		styleOpt = glamour.WithStylePath(m.style)
	}
	r, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width))
	if err != nil {
		r = nil
	}
	// A failed build is cached as nil so it is not retried every frame.
	m.renderers[width] = r
	return r
}

// Wrap word-wraps plain text to width columns.
func Wrap(text string, width int) string {
	if width <= 0 {
		return text
	}
	return lipgloss.NewStyle().Width(width).Render(text)
}
