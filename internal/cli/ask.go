// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot question: send a message and print the reply.
package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dadagust/geltek-chat-frontend-testing/internal/api"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/session"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/sse"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/ui/components"
)

type askOptions struct {
	chatID string
	plain  bool
}

func newAskCommand(global *globalOptions) *cobra.Command {
	opts := &askOptions{}
	cmd := &cobra.Command{
		Use:   "ask [flags] MESSAGE...",
		Short: "Send one message and print the reply",
		Long: `Send one message and print the assistant's reply.

Without --chat the message starts a new chat and the id the service assigns
is printed at the end. Use "-" as the message to read it from stdin.

On a terminal the finished reply is rendered as markdown; otherwise it is
streamed as plain text while it arrives.`,
		Example: `  geltek ask "Что нанести после кислотного пилинга?"
  geltek ask --chat 3f0c... "А утром?"
  echo "Как подобрать SPF?" | geltek ask -`,
		Args: cobra.MinimumNArgs(1),
		RunE: withApp(global, func(cmd *cobra.Command, args []string, app *App) error {
			return runAsk(cmd, args, app, opts, global.json)
		}),
	}
	cmd.Flags().StringVar(&opts.chatID, "chat", "", "continue the chat with this id")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "stream plain text even on a terminal")
	return cmd
}

func runAsk(cmd *cobra.Command, args []string, app *App, opts *askOptions, jsonMode bool) error {
	text, err := messageFromArgs(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	client, err := app.Client()
	if err != nil {
		return err
	}

	reducer := session.New(app.Config.Service.UserID,
		session.WithLogger(app.Logger),
		session.WithConversation(opts.chatID, nil))
	out := cmd.OutOrStdout()

	render := !jsonMode && !opts.plain && app.Config.UI.RenderMarkdown && IsStdoutTTY()
	var onChange func(session.State)
	var printer *replyPrinter
	if !jsonMode && !render {
		printer = newReplyPrinter(out)
		onChange = printer.update
	}
	if render {
		fmt.Fprint(cmd.ErrOrStderr(), DimStyle.Render(components.DefaultTypingLabel+"..."))
	}

	runErr := session.Run(cmd.Context(), reducer, session.ClientOpener(client), text, onChange)

	if render {
		fmt.Fprint(cmd.ErrOrStderr(), "\r\033[K")
	}
	if printer != nil {
		printer.finish()
	}
	if errors.Is(runErr, session.ErrEmptyMessage) {
		return &ValidationError{Field: "message", Value: text, Reason: "must not be empty", Example: `geltek ask "Привет"`}
	}

	st := reducer.Snapshot()
	msg, _ := reply(st)

	if jsonMode {
		if runErr != nil {
			return runErr
		}
		return NewJSONResponse("ask", AskData{
			ChatID:   st.ConversationID,
			Reply:    msg.Text,
			Events:   sse.FromMeta(msg.Meta),
			Messages: len(st.Messages),
		}).Print(out)
	}

	if render && msg.Text != "" {
		md := components.NewMarkdown("", true)
		fmt.Fprintln(out, md.Render(msg.Text, min(GetTerminalWidth(), app.Config.UI.WordWrap)))
		for _, ev := range sse.FromMeta(msg.Meta) {
			fmt.Fprintln(out, EventStyle.Render(components.EventBadge(ev)))
		}
	}
	if runErr != nil {
		var service *api.ServiceReportedError
		if errors.As(runErr, &service) {
			return NewCommandError("ask", "the service reported an error", runErr)
		}
		return runErr
	}
	if opts.chatID == "" && st.ConversationID != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), DimStyle.Render("chat: "+st.ConversationID))
	}
	return nil
}

// messageFromArgs joins args into the message, reading stdin for "-".
func messageFromArgs(stdin io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read message from stdin: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return strings.Join(args, " "), nil
}
