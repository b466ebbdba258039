// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Root command, global flags and the chat screen launcher.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dadagust/geltek-chat-frontend-testing/internal/api"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/config"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/logging"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/session"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/ui/chat"
)

// =============================================================================
// GLOBAL OPTIONS
// =============================================================================

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configFile string
	baseURL    string
	userID     string
	verbose    bool
	json       bool
	logStderr  bool
}

// App is the loaded configuration and logger a command runs with.
type App struct {
	Config     *config.Config
	ConfigFile string
	Logger     *zap.Logger
}

// load assembles the App: config file, environment, then flags.
func (o *globalOptions) load() (*App, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, err
	}
	if o.baseURL != "" {
		cfg.Service.BaseURL = o.baseURL
	}
	if o.userID != "" {
		cfg.Service.UserID = o.userID
	}
	config.SetGlobal(cfg)

	logOpts := logging.FromConfig(cfg.Logging, o.verbose)
	logOpts.Stderr = o.logStderr
	logger, err := logging.New(logOpts)
	if err != nil {
		return nil, err
	}

	path := o.configFile
	if path == "" {
		if path, err = config.ConfigPath(); err != nil {
			return nil, err
		}
	}
	return &App{Config: cfg, ConfigFile: path, Logger: logger}, nil
}

// Client validates the configuration and builds the service client. No
// request is made with an invalid configuration.
func (a *App) Client() (*api.Client, error) {
	if err := a.Config.Validate(); err != nil {
		return nil, err
	}
	return api.FromConfig(a.Config, a.Logger)
}

// Close flushes the logger.
func (a *App) Close() {
	_ = a.Logger.Sync()
}

// withApp adapts a command body that needs the loaded App.
func withApp(opts *globalOptions, fn func(cmd *cobra.Command, args []string, app *App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := opts.load()
		if err != nil {
			return err
		}
		defer app.Close()
		return fn(cmd, args, app)
	}
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

// NewRootCommand builds the full geltek command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "geltek",
		Short: "Chat with the geltek skincare assistant",
		Long: `geltek is a terminal client for the geltek skincare assistant.

Run without a command to open the chat screen. The sidebar lists your recent
chats; enter sends a message, ctrl+n starts a new chat and tab moves focus
to the chat list.

The service URL comes from base_url in ~/.geltek/config.toml, the
GELTEK_BASE_URL environment variable or the --base-url flag.`,
		Example: `  geltek --base-url http://localhost:8080
  geltek ask "Какой крем подойдёт для сухой кожи?"
  geltek chats --json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          withApp(opts, runTUI),
	}

	f := root.PersistentFlags()
	f.StringVarP(&opts.configFile, "config", "c", "", "config file (default ~/.geltek/config.toml)")
	f.StringVar(&opts.baseURL, "base-url", "", "chat service URL")
	f.StringVarP(&opts.userID, "user", "u", "", "user id to act as")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")
	f.BoolVar(&opts.json, "json", false, "print machine-readable JSON")
	f.BoolVar(&opts.logStderr, "log-stderr", false, "log to stderr instead of the log file (headless commands)")

	root.AddCommand(
		newAskCommand(opts),
		newChatCommand(opts),
		newChatsCommand(opts),
		newHistoryCommand(opts),
		newExportCommand(opts),
		newReplayCommand(opts),
		newConfigCommand(opts),
		newVersionCommand(opts),
	)
	return root
}

// runTUI opens the chat screen.
func runTUI(cmd *cobra.Command, _ []string, app *App) error {
	if err := RequiresTTY("open the chat screen"); err != nil {
		return err
	}
	client, err := app.Client()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cfg := app.Config
	m := chat.New(chat.Options{
		Service: client,
		Open:    session.ClientOpener(client),
		UserID:  cfg.Service.UserID,
		UI:      cfg.UI,
		Logger:  app.Logger,
		Context: ctx,
	})
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	watcher, err := config.NewWatcher(app.ConfigFile, app.Logger, func(next *config.Config) {
		if err := next.Validate(); err != nil {
			app.Logger.Warn("ignoring invalid config reload", zap.Error(err))
			return
		}
		config.UpdateGlobalUI(next.UI)
		p.Send(chat.ConfigReloadedMsg{UI: next.UI})
	})
	if err != nil {
		// The chat works without live reload, e.g. before config init.
		app.Logger.Debug("config watcher disabled", zap.Error(err))
	} else {
		go watcher.Run(ctx)
	}

	app.Logger.Info("chat screen started",
		zap.String("base_url", client.BaseURL()),
		zap.String("user_id", cfg.Service.UserID))

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("chat screen: %w", err)
	}
	return nil
}

// =============================================================================
// ENTRY POINT
// =============================================================================

// Execute runs the command line and exits with the mapped exit code.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root := NewRootCommand()
	err := root.ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}

	jsonMode, _ := root.PersistentFlags().GetBool("json")
	if jsonMode {
		DisplayError(os.Stdout, err, true)
	} else {
		DisplayError(os.Stderr, err, false)
	}
	os.Exit(GetExitCode(err))
}
