// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/dadagust/geltek-chat-frontend-testing/internal/model"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/session"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/sse"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/ui/components"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/util"
)

// =============================================================================
// STREAMING OUTPUT
// =============================================================================

// replyPrinter writes the growth of the streaming reply to w as it arrives.
// Pass its update method to session.Run as onChange.
type replyPrinter struct {
	w       io.Writer
	printed int
	events  int
}

func newReplyPrinter(w io.Writer) *replyPrinter {
	return &replyPrinter{w: w}
}

func (p *replyPrinter) update(st session.State) {
	msg, ok := st.LastMessage()
	if !ok || msg.Role != model.RoleAssistant {
		return
	}
	if len(msg.Text) > p.printed {
		fmt.Fprint(p.w, msg.Text[p.printed:])
		p.printed = len(msg.Text)
	}
	events := sse.FromMeta(msg.Meta)
	for _, ev := range events[min(p.events, len(events)):] {
		if p.printed > 0 && !strings.HasSuffix(msg.Text, "\n") {
			fmt.Fprintln(p.w)
		}
		fmt.Fprintln(p.w, EventStyle.Render(components.EventBadge(ev)))
	}
	p.events = len(events)
}

// finish ends the reply line.
func (p *replyPrinter) finish() {
	if p.printed > 0 {
		fmt.Fprintln(p.w)
	}
}

// reply returns the last assistant message of st.
func reply(st session.State) (model.Message, bool) {
	msg, ok := st.LastMessage()
	if !ok || msg.Role != model.RoleAssistant {
		return model.Message{}, false
	}
	return msg, true
}

// =============================================================================
// TRANSCRIPTS
// =============================================================================

// printTranscript writes a chat history as labelled plain text.
func printTranscript(w io.Writer, hist *model.ChatHistory) {
	sum := hist.Summary()
	fmt.Fprintf(w, "%s %s\n", TitleStyle.Render(sum.DisplayTitle()), DimStyle.Render(sum.ChatID))
	if len(hist.Messages) == 0 {
		fmt.Fprintln(w, DimStyle.Render("  (no messages)"))
		return
	}
	for _, msg := range hist.Messages {
		printMessage(w, msg)
	}
}

func printMessage(w io.Writer, msg model.Message) {
	label := msg.Role.DisplayName()
	style := AssistantStyle
	if msg.Role.IsUser() {
		style = UserStyle
	}
	stamp := ""
	if !msg.CreatedAt.IsZero() {
		stamp = " " + DimStyle.Render(msg.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(w, "\n%s%s\n", style.Render(label+":"), stamp)
	fmt.Fprintln(w, msg.Text)
	for _, ev := range sse.FromMeta(msg.Meta) {
		fmt.Fprintln(w, EventStyle.Render(components.EventBadge(ev)))
	}
}

// printChatList writes one aligned row per chat.
func printChatList(w io.Writer, chats []model.ChatSummary) {
	if len(chats) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No chats yet."))
		return
	}
	idWidth := 0
	for _, c := range chats {
		idWidth = max(idWidth, util.StringWidth(c.ChatID))
	}
	for _, c := range chats {
		created := ""
		if !c.CreatedAt.IsZero() {
			created = c.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s  %s  %s\n",
			DimStyle.Render(util.PadWidth(c.ChatID, idWidth)),
			DimStyle.Render(util.PadWidth(created, 16)),
			util.TruncateWidth(c.DisplayTitle(), 60),
		)
	}
}
