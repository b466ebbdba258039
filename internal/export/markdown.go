// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dadagust/geltek-chat-frontend-testing/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports chats to Markdown format.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// frontmatter is the YAML header of a Markdown export.
type frontmatter struct {
	Title     string `yaml:"title"`
	ChatID    string `yaml:"chat_id,omitempty"`
	Date      string `yaml:"date,omitempty"`
	Messages  int    `yaml:"messages"`
	Exported  string `yaml:"exported"`
	Generator string `yaml:"generator"`
}

// Export converts a chat to Markdown format.
func (e *MarkdownExporter) Export(hist *model.ChatHistory) ([]byte, error) {
	if hist == nil {
		return nil, ErrNilChat
	}
	doc := NewDocument(hist, e.options)

	var sb strings.Builder

	if e.options.IncludeMetadata {
		fm := frontmatter{
			Title:     doc.Title,
			ChatID:    doc.ChatID,
			Messages:  len(doc.Messages),
			Exported:  doc.ExportedAt.Format(time.RFC3339),
			Generator: Generator,
		}
		if doc.CreatedAt != nil {
			fm.Date = doc.CreatedAt.Format(time.RFC3339)
		}
		header, err := yaml.Marshal(fm)
		if err != nil {
			return nil, fmt.Errorf("encode frontmatter: %w", err)
		}
		sb.WriteString("---\n")
		sb.Write(header)
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(doc.Title))

	if e.options.IncludeMetadata {
		sb.WriteString("## Chat Information\n\n")
		if doc.ChatID != "" {
			fmt.Fprintf(&sb, "- **Chat**: `%s`\n", doc.ChatID)
		}
		if doc.CreatedAt != nil {
			fmt.Fprintf(&sb, "- **Created**: %s\n", formatTimestamp(*doc.CreatedAt))
		}
		fmt.Fprintf(&sb, "- **Messages**: %d\n", len(doc.Messages))
		sb.WriteString("\n---\n\n")
	}

	sb.WriteString("## Conversation\n\n")
	if len(doc.Messages) == 0 {
		sb.WriteString("_No messages._\n\n")
	}

	for i, msg := range doc.Messages {
		label := model.Role(msg.Role).DisplayName()
		if msg.CreatedAt != nil {
			fmt.Fprintf(&sb, "### %s <sub>%s</sub>\n\n", label, formatTimestamp(*msg.CreatedAt))
		} else {
			fmt.Fprintf(&sb, "### %s\n\n", label)
		}

		if text := strings.TrimSpace(msg.Text); text != "" {
			sb.WriteString(text)
		} else {
			sb.WriteString("*(no text)*")
		}
		sb.WriteString("\n\n")

		if len(msg.Events) > 0 {
			sb.WriteString(formatEvents(msg.Events))
			sb.WriteString("\n")
		}

		if i < len(doc.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	sb.WriteString("\n---\n\n")
	fmt.Fprintf(&sb, "*Exported from %s on %s*\n", Generator, doc.ExportedAt.Format("January 2, 2006 at 3:04 PM"))

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

// formatEvents renders passthrough events as a bullet list, one line each,
// with the payload fields in key order.
func formatEvents(events []DocumentEvent) string {
	var sb strings.Builder
	for _, ev := range events {
		fmt.Fprintf(&sb, "- **%s**", ev.Type)
		if len(ev.Data) > 0 {
			fields := make([]string, 0, len(ev.Data))
			for _, k := range slices.Sorted(maps.Keys(ev.Data)) {
				fields = append(fields, fmt.Sprintf("%s=%v", k, ev.Data[k]))
			}
			fmt.Fprintf(&sb, " `%s`", strings.ReplaceAll(strings.Join(fields, ", "), "`", "'"))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// escapeMarkdown escapes characters that would break a heading.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	return s
}
