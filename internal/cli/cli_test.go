// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dadagust/geltek-chat-frontend-testing/internal/api"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/config"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/mockserver"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/model"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/session"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/sse"
)

const fixedReply = "Используйте крем с SPF утром"

// =============================================================================
// HELPERS
// =============================================================================

// isolate points the config directory at a temp dir and clears the
// environment variables that would leak a real service URL into tests.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("GELTEK_HOME", home)
	t.Setenv("GELTEK_BASE_URL", "")
	t.Setenv("NEXT_PUBLIC_API_BASE_URL", "")
	t.Setenv("GELTEK_USER_ID", "")
	t.Setenv("GELTEK_LOG_LEVEL", "")
	t.Setenv("GELTEK_IDLE_TIMEOUT", "")
	t.Setenv("GELTEK_LOG_FILE", "")
	t.Cleanup(config.ResetGlobalForTesting)
	return home
}

// startMock serves a mock service with a fixed reply and three seeded chats.
func startMock(t *testing.T) (*mockserver.Server, string) {
	t.Helper()
	srv := mockserver.New(
		mockserver.WithLogger(zaptest.NewLogger(t)),
		mockserver.WithTokenDelay(0),
		mockserver.WithReplyFunc(func(string) string { return fixedReply }),
		mockserver.WithSeedChats(3),
	)
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)
	return srv, hs.URL
}

// runCLI executes the command tree with args and captures its output.
func runCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// decodeResponse parses a --json envelope, decoding Data into data.
func decodeResponse(t *testing.T, out string, data any) JSONResponse {
	t.Helper()
	var raw struct {
		JSONResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), out)
	if data != nil {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return raw.JSONResponse
}

// =============================================================================
// CHATS, HISTORY, EXPORT
// =============================================================================

func TestChats_ListsSeededChats(t *testing.T) {
	isolate(t)
	srv, url := startMock(t)

	out, _, err := runCLI(t, "", "chats", "--base-url", url)
	require.NoError(t, err)

	chats := srv.Store().List(config.DefaultUserID)
	require.Len(t, chats, 3)
	for _, c := range chats {
		assert.Contains(t, out, c.ChatID)
	}
}

func TestChats_JSONWithLimit(t *testing.T) {
	isolate(t)
	_, url := startMock(t)

	out, _, err := runCLI(t, "", "chats", "--base-url", url, "--json", "-n", "2")
	require.NoError(t, err)

	var chats []model.ChatSummary
	resp := decodeResponse(t, out, &chats)
	assert.True(t, resp.Success)
	assert.Equal(t, "chats", resp.Command)
	assert.Len(t, chats, 2)
}

func TestChats_UnknownUserIsEmpty(t *testing.T) {
	isolate(t)
	_, url := startMock(t)

	out, _, err := runCLI(t, "", "chats", "--base-url", url, "--user", "11111111-2222-3333-4444-555555555555")
	require.NoError(t, err)
	assert.Contains(t, out, "No chats yet.")
}

func TestHistory_PrintsTranscripts(t *testing.T) {
	isolate(t)
	srv, url := startMock(t)
	chats := srv.Store().List(config.DefaultUserID)

	out, _, err := runCLI(t, "", "history", "--base-url", url, chats[0].ChatID, chats[1].ChatID)
	require.NoError(t, err)

	assert.Contains(t, out, chats[0].ChatID)
	assert.Contains(t, out, chats[1].ChatID)
	assert.Contains(t, out, "You:")
	assert.Contains(t, out, "Assistant:")
	assert.Contains(t, out, fixedReply)
	assert.Less(t, strings.Index(out, chats[0].ChatID), strings.Index(out, chats[1].ChatID))
}

func TestHistory_UnknownChatIsNotFound(t *testing.T) {
	isolate(t)
	_, url := startMock(t)

	_, _, err := runCLI(t, "", "history", "--base-url", url, "chat_missing")
	require.Error(t, err)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "chat_missing", nf.ID)
	assert.Equal(t, ExitNotFoundError, GetExitCode(err))
}

func TestExport_Stdout(t *testing.T) {
	isolate(t)
	srv, url := startMock(t)
	chat := srv.Store().List(config.DefaultUserID)[0]

	out, _, err := runCLI(t, "", "export", chat.ChatID, "--base-url", url, "--format", "json", "--stdout")
	require.NoError(t, err)

	var doc struct {
		ChatID   string `json:"chat_id"`
		Messages []struct {
			Role string `json:"role"`
			Text string `json:"text"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc), out)
	assert.Equal(t, chat.ChatID, doc.ChatID)
	require.Len(t, doc.Messages, 2)
	assert.Equal(t, fixedReply, doc.Messages[1].Text)
}

func TestExport_File(t *testing.T) {
	isolate(t)
	srv, url := startMock(t)
	chat := srv.Store().List(config.DefaultUserID)[0]
	dir := filepath.Join(t.TempDir(), "exports")

	out, _, err := runCLI(t, "", "export", chat.ChatID, "--base-url", url, "-f", "md", "-o", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported to")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".md", filepath.Ext(entries[0].Name()))

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), fixedReply)
}

func TestExport_UnsupportedFormat(t *testing.T) {
	isolate(t)
	_, url := startMock(t)

	_, _, err := runCLI(t, "", "export", "chat_x", "--base-url", url, "--format", "pdf")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

// =============================================================================
// ASK
// =============================================================================

func TestAsk_StreamsReplyIntoNewChat(t *testing.T) {
	isolate(t)
	srv, url := startMock(t)

	out, errOut, err := runCLI(t, "", "ask", "--base-url", url, "Какой", "крем?")
	require.NoError(t, err)

	assert.Equal(t, fixedReply+"\n", out)
	assert.Contains(t, errOut, "chat: chat_")
	assert.Len(t, srv.Store().List(config.DefaultUserID), 4)
}

func TestAsk_JSON(t *testing.T) {
	isolate(t)
	srv, url := startMock(t)

	out, _, err := runCLI(t, "", "ask", "--base-url", url, "--json", "/tools")
	require.NoError(t, err)

	var data AskData
	resp := decodeResponse(t, out, &data)
	assert.True(t, resp.Success)
	assert.Equal(t, fixedReply, data.Reply)
	assert.Equal(t, 2, data.Messages)
	require.NotEmpty(t, data.ChatID)
	assert.True(t, srv.Store().Has(data.ChatID))

	kinds := make([]sse.Kind, len(data.Events))
	for i, ev := range data.Events {
		kinds[i] = ev.Kind
	}
	assert.Equal(t, []sse.Kind{sse.KindToolStart, sse.KindProduct, sse.KindArticle, sse.KindToolEnd}, kinds)
}

func TestAsk_ContinuesChat(t *testing.T) {
	isolate(t)
	srv, url := startMock(t)
	chat := srv.Store().List(config.DefaultUserID)[0]

	_, errOut, err := runCLI(t, "", "ask", "--base-url", url, "--chat", chat.ChatID, "ещё вопрос")
	require.NoError(t, err)
	assert.NotContains(t, errOut, "chat:")

	hist, ok := srv.Store().History(chat.ChatID)
	require.True(t, ok)
	assert.Len(t, hist.Messages, 4)
}

func TestAsk_ReadsStdin(t *testing.T) {
	isolate(t)
	srv, url := startMock(t)

	_, _, err := runCLI(t, "  вопрос из stdin \n", "ask", "--base-url", url, "-")
	require.NoError(t, err)

	var found bool
	for _, c := range srv.Store().List(config.DefaultUserID) {
		hist, _ := srv.Store().History(c.ChatID)
		if len(hist.Messages) > 0 && hist.Messages[0].Text == "вопрос из stdin" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestAsk_ServiceError(t *testing.T) {
	isolate(t)
	_, url := startMock(t)

	out, _, err := runCLI(t, "", "ask", "--base-url", url, mockserver.TriggerError)
	require.Error(t, err)

	var service *api.ServiceReportedError
	require.ErrorAs(t, err, &service)
	assert.Equal(t, "mock failure requested", service.Message)
	assert.Contains(t, out, "Checking")
	assert.Equal(t, ExitGeneralError, GetExitCode(err))
}

func TestAsk_EmptyMessage(t *testing.T) {
	isolate(t)
	_, url := startMock(t)

	_, _, err := runCLI(t, "   ", "ask", "--base-url", url, "-")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestAsk_MissingBaseURLIsConfigurationError(t *testing.T) {
	isolate(t)

	_, _, err := runCLI(t, "", "ask", "hello")
	require.Error(t, err)

	var cfgErrs config.ConfigurationErrors
	require.ErrorAs(t, err, &cfgErrs)
	assert.Equal(t, "service.base_url", cfgErrs[0].Field)
	assert.Equal(t, ExitConfigError, GetExitCode(err))
}

func TestAsk_UnreachableServiceIsTransportError(t *testing.T) {
	isolate(t)
	hs := httptest.NewServer(nil)
	url := hs.URL
	hs.Close()

	_, _, err := runCLI(t, "", "ask", "--base-url", url, "hello")
	require.Error(t, err)
	assert.True(t, api.IsTransport(err))
	assert.Equal(t, ExitNetworkError, GetExitCode(err))
}

// =============================================================================
// REPLAY
// =============================================================================

const capturedStream = `data: {"type":"chat_data","data":{"chat_id":"chat_replayed"}}

data: {"type":"token","data":{"content":"Привет"}}

: ping

data: {"type":"token","data":{"content":", мир"}}

data: {not json}

data: {"type":"done","data":{}}

`

func TestReplay_File(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "reply.txt")
	require.NoError(t, os.WriteFile(path, []byte(capturedStream), 0o600))

	out, errOut, err := runCLI(t, "", "replay", path, "--events")
	require.NoError(t, err)

	assert.Equal(t, "Привет, мир\n", out)
	assert.Contains(t, errOut, "#1 chat_data")
	assert.Contains(t, errOut, "4 events, 1 malformed records skipped")
}

func TestReplay_StdinJSON(t *testing.T) {
	isolate(t)

	out, _, err := runCLI(t, capturedStream, "replay", "-", "--json")
	require.NoError(t, err)

	var data ReplayData
	decodeResponse(t, out, &data)
	assert.Equal(t, ReplayData{ChatID: "chat_replayed", Reply: "Привет, мир", Events: 4, Dropped: 1}, data)
}

func TestReplay_TruncatedStream(t *testing.T) {
	isolate(t)
	truncated := "data: {\"type\":\"token\",\"data\":{\"content\":\"обрыв\"}}\n\n"

	out, _, err := runCLI(t, truncated, "replay", "-")
	require.ErrorIs(t, err, session.ErrStreamTruncated)
	assert.Equal(t, "обрыв\n", out)
	assert.Equal(t, ExitNetworkError, GetExitCode(err))
}

// =============================================================================
// CONFIG AND VERSION
// =============================================================================

func TestConfigInit_WritesTemplateOnce(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "config.toml")

	out, _, err := runCLI(t, "", "config", "init", "--base-url", "http://localhost:8080")
	require.NoError(t, err)
	assert.Contains(t, out, path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.Service.BaseURL)

	_, _, err = runCLI(t, "", "config", "init")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	_, _, err = runCLI(t, "", "config", "init", "--force")
	require.NoError(t, err)
}

func TestConfigInit_RejectsBadURL(t *testing.T) {
	isolate(t)

	_, _, err := runCLI(t, "", "config", "init", "--base-url", "ftp://example.com")
	assert.Equal(t, ExitConfigError, GetExitCode(err))
}

func TestConfigPath_JSON(t *testing.T) {
	isolate(t)
	custom := filepath.Join(t.TempDir(), "custom.toml")

	out, _, err := runCLI(t, "", "config", "path", "--config", custom, "--json")
	require.NoError(t, err)

	var data ConfigPathData
	decodeResponse(t, out, &data)
	assert.Equal(t, ConfigPathData{Path: custom, Exists: false}, data)
}

func TestConfigShow_FlagsOverrideFile(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[service]\nbase_url = \"http://from-file:1\"\n"), 0o600))

	out, _, err := runCLI(t, "", "config", "show", "--base-url", "http://from-flag:2")
	require.NoError(t, err)
	assert.Contains(t, out, "http://from-flag:2")
	assert.NotContains(t, out, "from-file")
}

func TestVersion_JSON(t *testing.T) {
	isolate(t)

	out, _, err := runCLI(t, "", "version", "--json")
	require.NoError(t, err)

	var data VersionData
	resp := decodeResponse(t, out, &data)
	assert.True(t, resp.Success)
	assert.Equal(t, Version, data.Version)
	assert.NotEmpty(t, data.GoVersion)
}

func TestRoot_RejectsArguments(t *testing.T) {
	isolate(t)

	_, _, err := runCLI(t, "", "nonsense")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

// =============================================================================
// CHAT REPL
// =============================================================================

func newTestREPL(t *testing.T, url string) (*replSession, *bytes.Buffer) {
	t.Helper()
	cfg := config.Default()
	cfg.Service.BaseURL = url
	app := &App{Config: cfg, Logger: zaptest.NewLogger(t)}
	client, err := app.Client()
	require.NoError(t, err)
	var out bytes.Buffer
	return newREPLSession(app, client, &out), &out
}

func TestREPL_SendThenNewChat(t *testing.T) {
	_, url := startMock(t)
	s, out := newTestREPL(t, url)
	ctx := context.Background()

	quit, err := s.handleLine(ctx, "Привет")
	require.NoError(t, err)
	assert.False(t, quit)
	assert.Contains(t, out.String(), fixedReply)

	first := s.reducer.ConversationID()
	require.NotEmpty(t, first)

	_, err = s.handleLine(ctx, "/new")
	require.NoError(t, err)
	assert.Empty(t, s.reducer.ConversationID())
	assert.Empty(t, s.reducer.Snapshot().Messages)

	_, err = s.handleLine(ctx, "Второй")
	require.NoError(t, err)
	assert.NotEqual(t, first, s.reducer.ConversationID())
}

func TestREPL_SwitchLoadsHistory(t *testing.T) {
	srv, url := startMock(t)
	s, out := newTestREPL(t, url)
	chat := srv.Store().List(config.DefaultUserID)[2]

	_, err := s.handleLine(context.Background(), "/switch "+chat.ChatID)
	require.NoError(t, err)
	assert.Equal(t, chat.ChatID, s.reducer.ConversationID())
	assert.Len(t, s.reducer.Snapshot().Messages, 2)
	assert.Contains(t, out.String(), "2 messages")

	out.Reset()
	_, err = s.handleLine(context.Background(), "/history")
	require.NoError(t, err)
	assert.Contains(t, out.String(), fixedReply)
}

func TestREPL_ServiceErrorIsPrinted(t *testing.T) {
	_, url := startMock(t)
	s, out := newTestREPL(t, url)

	_, err := s.handleLine(context.Background(), mockserver.TriggerError)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "[ERROR] mock failure requested")
	assert.Equal(t, session.PhaseIdle, s.reducer.Phase())
}

func TestREPL_Commands(t *testing.T) {
	srv, url := startMock(t)
	s, out := newTestREPL(t, url)
	ctx := context.Background()

	_, err := s.handleLine(ctx, "/chats")
	require.NoError(t, err)
	for _, c := range srv.Store().List(config.DefaultUserID) {
		assert.Contains(t, out.String(), c.ChatID)
	}

	out.Reset()
	_, err = s.handleLine(ctx, "/bogus")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Unknown command /bogus")

	out.Reset()
	_, err = s.handleLine(ctx, "/id")
	require.NoError(t, err)
	assert.Equal(t, "(new chat)\n", out.String())

	quit, err := s.handleLine(ctx, "/quit")
	require.NoError(t, err)
	assert.True(t, quit)
}

// =============================================================================
// EXIT CODES
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"config", config.ConfigurationErrors{{Field: "service.base_url", Message: "missing"}}, ExitConfigError},
		{"transport", &api.TransportError{Op: "list chats", Status: 502}, ExitNetworkError},
		{"wrapped transport", fmt.Errorf("history: %w", &api.TransportError{Op: "history"}), ExitNetworkError},
		{"not found", &NotFoundError{Resource: "chat", ID: "x"}, ExitNotFoundError},
		{"validation", &ValidationError{Field: "format"}, ExitUsageError},
		{"tty", &TTYRequiredError{Operation: "chat"}, ExitUsageError},
		{"cobra usage", errors.New(`unknown command "x" for "geltek"`), ExitUsageError},
		{"service", &api.ServiceReportedError{Message: "boom"}, ExitGeneralError},
		{"other", errors.New("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestDisplayErrorJSON(t *testing.T) {
	var buf bytes.Buffer
	DisplayError(&buf, &api.TransportError{Op: "list chats", Status: 503}, true)

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, false, got["success"])
	assert.Equal(t, "transport_error", got["error_type"])
	assert.Equal(t, "list chats", got["operation"])
	assert.Equal(t, float64(503), got["status"])
}
