// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-based interactive chat for terminals without the full
// screen UI.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/dadagust/geltek-chat-frontend-testing/internal/api"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/config"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/session"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/ui/styles"
)

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan).
			Bold(true)

	commandStyle = lipgloss.NewStyle().
			Foreground(styles.Emerald)
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides line editing and persistent input history.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI and loads the saved input history.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	c := &ChatCLI{line: line, historyFile: filepath.Join(dir, "chat_history")}
	c.LoadHistory()
	return c
}

// LoadHistory loads input history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f) //nolint:errcheck
		f.Close()
	}
}

// ReadInput reads a line with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory writes input history owner-readable only.
func (c *ChatCLI) SaveHistory() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f) //nolint:errcheck
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// SESSION
// =============================================================================

// replSession is one interactive chat: a reducer plus the service it talks
// to. Lines are either slash commands or messages.
type replSession struct {
	client  *api.Client
	open    session.Opener
	reducer *session.Reducer
	userID  string
	out     io.Writer
}

func newREPLSession(app *App, client *api.Client, out io.Writer) *replSession {
	return &replSession{
		client:  client,
		open:    session.ClientOpener(client),
		reducer: session.New(app.Config.Service.UserID, session.WithLogger(app.Logger)),
		userID:  app.Config.Service.UserID,
		out:     out,
	}
}

// handleLine processes one input line. It returns true when the user asked
// to quit.
func (s *replSession) handleLine(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if strings.HasPrefix(line, "/") {
		return s.handleCommand(ctx, line)
	}
	return false, s.send(ctx, line)
}

func (s *replSession) send(ctx context.Context, text string) error {
	printer := newReplyPrinter(s.out)
	fmt.Fprint(s.out, AssistantStyle.Render("Assistant: "))
	err := session.Run(ctx, s.reducer, s.open, text, printer.update)
	printer.finish()
	if printer.printed == 0 {
		fmt.Fprintln(s.out)
	}
	if err != nil {
		if st := s.reducer.Snapshot(); st.LastError != "" {
			fmt.Fprintln(s.out, ErrorStyle.Render("[ERROR] "+st.LastError))
			return nil
		}
		return err
	}
	return nil
}

func (s *replSession) handleCommand(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit", "/q":
		return true, nil

	case "/help", "/?":
		printREPLHelp(s.out)

	case "/new":
		s.reducer.NewConversation()
		fmt.Fprintln(s.out, SuccessStyle.Render("Started a new chat."))

	case "/chats":
		chats, err := s.client.ListChats(ctx, s.userID)
		if err != nil {
			fmt.Fprintln(s.out, ErrorStyle.Render("[ERROR] "+session.TransportMessage(err)))
			return false, nil
		}
		printChatList(s.out, chats)

	case "/switch":
		if len(fields) < 2 {
			fmt.Fprintln(s.out, "Usage: /switch CHAT_ID")
			return false, nil
		}
		h := s.reducer.SwitchConversation(fields[1])
		hist, err := s.client.ChatHistory(ctx, fields[1])
		s.reducer.ApplyHistory(h, hist, err)
		if err != nil {
			fmt.Fprintln(s.out, ErrorStyle.Render("[ERROR] "+session.TransportMessage(err)))
			return false, nil
		}
		n := len(s.reducer.Snapshot().Messages)
		fmt.Fprintf(s.out, "%s %s\n", SuccessStyle.Render("Switched to"), fields[1])
		fmt.Fprintln(s.out, DimStyle.Render(fmt.Sprintf("%d messages", n)))

	case "/history":
		st := s.reducer.Snapshot()
		if len(st.Messages) == 0 {
			fmt.Fprintln(s.out, DimStyle.Render("(no messages)"))
			return false, nil
		}
		for _, msg := range st.Messages {
			printMessage(s.out, msg)
		}

	case "/id":
		id := s.reducer.ConversationID()
		if id == "" {
			id = "(new chat)"
		}
		fmt.Fprintln(s.out, id)

	default:
		fmt.Fprintf(s.out, "Unknown command %s. Type /help for commands.\n", fields[0])
	}
	return false, nil
}

func printREPLHelp(w io.Writer) {
	cmds := []struct{ name, desc string }{
		{"/new", "start a new chat"},
		{"/chats", "list your chats"},
		{"/switch ID", "continue the chat with this id"},
		{"/history", "show the current chat"},
		{"/id", "print the current chat id"},
		{"/quit", "leave"},
	}
	for _, c := range cmds {
		fmt.Fprintf(w, "  %-12s %s\n", commandStyle.Render(c.name), DimStyle.Render(c.desc))
	}
}

// =============================================================================
// COMMAND
// =============================================================================

func newChatCommand(global *globalOptions) *cobra.Command {
	var chatID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat line by line without the full-screen UI",
		Long: `Start a line-based chat. Replies stream in as plain text.
Type /help for the slash commands; ctrl+d leaves.`,
		Args: cobra.NoArgs,
		RunE: withApp(global, func(cmd *cobra.Command, _ []string, app *App) error {
			if err := RequiresTTY("chat"); err != nil {
				return err
			}
			client, err := app.Client()
			if err != nil {
				return err
			}
			return runChat(cmd.Context(), app, client, chatID, cmd.OutOrStdout())
		}),
	}
	cmd.Flags().StringVar(&chatID, "chat", "", "continue the chat with this id")
	return cmd
}

func runChat(ctx context.Context, app *App, client *api.Client, chatID string, out io.Writer) error {
	s := newREPLSession(app, client, out)
	if chatID != "" {
		if _, err := s.handleCommand(ctx, "/switch "+chatID); err != nil {
			return err
		}
	}

	cli := NewChatCLI()
	defer cli.Close()

	fmt.Fprintln(out, TitleStyle.Render("geltek")+" "+DimStyle.Render(client.BaseURL()))
	fmt.Fprintln(out, DimStyle.Render("Type /help for commands, ctrl+d to leave."))

	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := cli.ReadInput(promptStyle.Render("> "))
		switch {
		case errors.Is(err, liner.ErrPromptAborted):
			continue
		case errors.Is(err, io.EOF):
			fmt.Fprintln(out)
			return nil
		case err != nil:
			return fmt.Errorf("read input: %w", err)
		}

		quit, err := s.handleLine(ctx, line)
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
}
