// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/dadagust/geltek-chat-frontend-testing/internal/config"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/model"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/session"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/ui/components"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/ui/styles"
)

// InputPlaceholder is shown in the empty input.
const InputPlaceholder = "Спроси меня что угодно"

// inputHeight is the number of text rows of the input.
const inputHeight = 3

// Service is the request/response part of the remote chat service.
// *api.Client satisfies it.
type Service interface {
	ListChats(ctx context.Context, userID string) ([]model.ChatSummary, error)
	ChatHistory(ctx context.Context, chatID string) (*model.ChatHistory, error)
}

// Options configures a Model.
type Options struct {
	// Service lists chats and loads history.
	Service Service
	// Open issues a send and returns the reply stream.
	Open session.Opener
	// UserID is the user the client acts as.
	UserID string
	// UI holds the display settings.
	UI config.UIConfig
	// MarkdownStyle is a glamour style name; empty follows the terminal.
	MarkdownStyle string
	// Logger receives diagnostics; nil discards them.
	Logger *zap.Logger
	// Context bounds every request the model starts.
	Context context.Context
}

// =============================================================================
// CHAT MODEL
// =============================================================================

type focus int

const (
	focusInput focus = iota
	focusSidebar
)

// Model is the Bubble Tea model of the chat screen. All conversation state
// lives in the reducer; the model only renders snapshots of it and turns
// replies from the network into reducer calls.
type Model struct {
	ctx    context.Context
	svc    Service
	open   session.Opener
	userID string
	logger *zap.Logger

	reducer *session.Reducer

	theme    *styles.Theme
	keys     KeyMap
	ui       config.UIConfig
	markdown *components.Markdown
	renderer *components.MessageRenderer

	header    *components.Header
	statusBar *components.StatusBar
	sidebar   components.Sidebar
	notice    components.Notice
	typing    components.Typing
	viewport  viewport.Model
	input     textarea.Model

	focus  focus
	width  int
	height int
	ready  bool

	// pendingTitle remembers the first line of a send until the service names the
	// new conversation, so the sidebar can list it right away.
	pendingTitle string
}

// New creates the chat screen.
func New(opts Options) Model {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.UserID == "" {
		opts.UserID = config.DefaultUserID
	}

	theme := styles.NewTheme()
	md := components.NewMarkdown(opts.MarkdownStyle, opts.UI.RenderMarkdown)
	renderer := components.NewMessageRenderer(theme, md)
	renderer.ShowTimestamps = opts.UI.ShowTimestamps

	ta := textarea.New()
	ta.Placeholder = InputPlaceholder
	ta.ShowLineNumbers = false
	ta.Prompt = "> "
	ta.CharLimit = 4000
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline.SetKeys("alt+enter", "ctrl+j")
	ta.Focus()

	keys := DefaultKeyMap()
	statusBar := components.NewStatusBar(keys.Shortcuts(false)...)
	statusBar.Right = opts.UserID

	m := Model{
		ctx:       opts.Context,
		svc:       opts.Service,
		open:      opts.Open,
		userID:    opts.UserID,
		logger:    opts.Logger,
		reducer:   session.New(opts.UserID, session.WithLogger(opts.Logger)),
		theme:     theme,
		keys:      keys,
		ui:        opts.UI,
		markdown:  md,
		renderer:  renderer,
		header:    components.NewHeader(),
		statusBar: statusBar,
		sidebar:   components.NewSidebar(opts.UI.SidebarLimit),
		notice:    components.NewNotice(),
		typing:    components.NewTyping(),
		viewport:  viewport.New(80, 20),
		input:     ta,
	}
	m.syncState()
	return m
}

// Init loads the chat list.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, loadChatsCmd(m.ctx, m.svc, m.userID))
}

// State returns a snapshot of the conversation.
func (m Model) State() session.State {
	return m.reducer.Snapshot()
}
