// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// replay.go - Feed a captured reply stream through the reducer offline.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dadagust/geltek-chat-frontend-testing/internal/api"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/session"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/sse"
)

// echoSource prints every event it passes on.
type echoSource struct {
	session.EventSource
	w     io.Writer
	count int
}

func (e *echoSource) Next() (sse.Event, error) {
	ev, err := e.EventSource.Next()
	if err == nil {
		e.count++
		fmt.Fprintf(e.w, "%s %s\n", DimStyle.Render(fmt.Sprintf("#%d", e.count)), EventStyle.Render(string(ev.Kind)))
	}
	return ev, err
}

type replayOptions struct {
	message string
	events  bool
}

func newReplayCommand(global *globalOptions) *cobra.Command {
	opts := &replayOptions{}
	cmd := &cobra.Command{
		Use:   "replay FILE",
		Short: "Decode a captured reply stream",
		Long: `Decode a reply stream saved to FILE ("-" for stdin), for example with
curl -N, and print the reply the chat would show. Malformed records are
skipped and counted. No request is made.`,
		Example: `  curl -sN -d '{"user_id":"...","chat_id":null,"message":"hi"}' \
      $GELTEK_BASE_URL/chat/stream > reply.txt
  geltek replay reply.txt --events`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(global, func(cmd *cobra.Command, args []string, app *App) error {
			return runReplay(cmd, args[0], app, opts, global.json)
		}),
	}
	cmd.Flags().StringVarP(&opts.message, "message", "m", "(replay)", "user message to pair the reply with")
	cmd.Flags().BoolVar(&opts.events, "events", false, "print each event kind as it is decoded")
	return cmd
}

func runReplay(cmd *cobra.Command, path string, app *App, opts *replayOptions, jsonMode bool) error {
	var in io.ReadCloser
	if path == "-" {
		in = io.NopCloser(cmd.InOrStdin())
	} else {
		f, err := os.Open(path)
		if err != nil {
			return NewCommandError("replay", "open stream file", err)
		}
		in = f
	}

	out := cmd.OutOrStdout()
	stream := api.NewStreamFromReader(in, app.Logger)
	echo := &echoSource{EventSource: stream, w: io.Discard}
	if opts.events && !jsonMode {
		echo.w = cmd.ErrOrStderr()
	}
	open := func(context.Context, session.SendRequest) (session.EventSource, error) {
		return echo, nil
	}

	reducer := session.New(app.Config.Service.UserID, session.WithLogger(app.Logger))
	var onChange func(session.State)
	var printer *replyPrinter
	if !jsonMode {
		printer = newReplyPrinter(out)
		onChange = printer.update
	}

	runErr := session.Run(cmd.Context(), reducer, open, opts.message, onChange)
	if printer != nil {
		printer.finish()
	}

	st := reducer.Snapshot()
	msg, _ := reply(st)
	if jsonMode {
		return NewJSONResponse("replay", ReplayData{
			ChatID:  st.ConversationID,
			Reply:   msg.Text,
			Events:  echo.count,
			Dropped: stream.Dropped(),
			Error:   st.LastError,
		}).Print(out)
	}

	fmt.Fprintln(cmd.ErrOrStderr(), DimStyle.Render(fmt.Sprintf("%d events, %d malformed records skipped", echo.count, stream.Dropped())))
	return runErr
}
