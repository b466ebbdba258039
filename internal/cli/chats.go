// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chats.go - Chat list, history and export commands.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dadagust/geltek-chat-frontend-testing/internal/api"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/export"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/model"
)

// maxHistoryFetches bounds concurrent history requests.
const maxHistoryFetches = 4

// =============================================================================
// CHATS
// =============================================================================

func newChatsCommand(global *globalOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "chats",
		Short: "List your chats, newest first",
		Args:  cobra.NoArgs,
		RunE: withApp(global, func(cmd *cobra.Command, _ []string, app *App) error {
			client, err := app.Client()
			if err != nil {
				return err
			}
			chats, err := client.ListChats(cmd.Context(), app.Config.Service.UserID)
			if err != nil {
				return err
			}
			if limit > 0 && len(chats) > limit {
				chats = chats[:limit]
			}
			if global.json {
				if chats == nil {
					chats = []model.ChatSummary{}
				}
				return NewJSONResponse("chats", chats).Print(cmd.OutOrStdout())
			}
			printChatList(cmd.OutOrStdout(), chats)
			return nil
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most this many chats (0 shows all)")
	return cmd
}

// =============================================================================
// HISTORY
// =============================================================================

func newHistoryCommand(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history CHAT_ID...",
		Short: "Print the messages of one or more chats",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(global, func(cmd *cobra.Command, args []string, app *App) error {
			client, err := app.Client()
			if err != nil {
				return err
			}
			hists, err := fetchHistories(cmd.Context(), client, args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if global.json {
				return NewJSONResponse("history", hists).Print(out)
			}
			for i, h := range hists {
				if i > 0 {
					fmt.Fprintln(out)
				}
				printTranscript(out, h)
			}
			return nil
		}),
	}
}

// fetchHistories loads the chats concurrently and returns them in the
// order of ids. A chat the service does not know is a NotFoundError.
func fetchHistories(ctx context.Context, client *api.Client, ids []string) ([]*model.ChatHistory, error) {
	hists := make([]*model.ChatHistory, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxHistoryFetches)
	for i, id := range ids {
		g.Go(func() error {
			h, err := client.ChatHistory(gctx, id)
			if err != nil {
				return err
			}
			if h == nil {
				return &NotFoundError{Resource: "chat", ID: id}
			}
			hists[i] = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return hists, nil
}

// =============================================================================
// EXPORT
// =============================================================================

type exportOptions struct {
	format     string
	outputDir  string
	stdout     bool
	noEvents   bool
	noMetadata bool
}

func newExportCommand(global *globalOptions) *cobra.Command {
	opts := &exportOptions{}
	cmd := &cobra.Command{
		Use:   "export CHAT_ID",
		Short: "Save a chat as markdown, JSON or YAML",
		Example: `  geltek export 3f0c... --format md
  geltek export 3f0c... --format json --stdout | jq .messages`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(global, func(cmd *cobra.Command, args []string, app *App) error {
			return runExport(cmd, args[0], app, opts, global.json)
		}),
	}
	f := cmd.Flags()
	f.StringVarP(&opts.format, "format", "f", "markdown", "output format (markdown, json, yaml)")
	f.StringVarP(&opts.outputDir, "output", "o", ".", "directory to write the file to")
	f.BoolVar(&opts.stdout, "stdout", false, "write to standard output instead of a file")
	f.BoolVar(&opts.noEvents, "no-events", false, "leave out tool, product and article events")
	f.BoolVar(&opts.noMetadata, "no-metadata", false, "leave out the markdown frontmatter")
	return cmd
}

func runExport(cmd *cobra.Command, chatID string, app *App, opts *exportOptions, jsonMode bool) error {
	expOpts := export.DefaultOptions()
	expOpts.OutputDir = opts.outputDir
	expOpts.IncludeEvents = !opts.noEvents
	expOpts.IncludeMetadata = !opts.noMetadata

	exporter, err := export.ForFormat(opts.format, expOpts)
	if err != nil {
		return ErrUnsupportedFormat(opts.format, export.Formats)
	}
	client, err := app.Client()
	if err != nil {
		return err
	}
	hists, err := fetchHistories(cmd.Context(), client, []string{chatID})
	if err != nil {
		return err
	}

	if opts.stdout {
		return export.Write(cmd.OutOrStdout(), hists[0], exporter)
	}
	if err := os.MkdirAll(opts.outputDir, 0755); err != nil {
		return NewCommandError("export", "create output directory", err)
	}
	path, err := export.ToFile(hists[0], exporter, expOpts)
	if err != nil {
		return NewCommandError("export", "write file", err)
	}
	if jsonMode {
		return NewJSONResponse("export", map[string]string{"path": path, "mime_type": exporter.MimeType()}).Print(cmd.OutOrStdout())
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", SuccessStyle.Render("Exported to"), path)
	return nil
}
