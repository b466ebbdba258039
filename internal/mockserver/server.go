// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package mockserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	loremgen "github.com/bozaro/golorem"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dadagust/geltek-chat-frontend-testing/internal/config"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/model"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/sse"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is where the mock service listens by default.
	DefaultAddr = "127.0.0.1:8787"

	// DefaultTokenDelay is the pause between streamed words.
	DefaultTokenDelay = 40 * time.Millisecond

	// DefaultHeartbeatEvery sends a comment record after this many tokens.
	DefaultHeartbeatEvery = 8

	// MaxRequestBodySize bounds a stream request body.
	MaxRequestBodySize = 1 << 20

	// shutdownTimeout bounds graceful shutdown.
	shutdownTimeout = 5 * time.Second
)

// Trigger messages.
const (
	TriggerError = "/error"
	TriggerHang  = "/hang"
	TriggerTools = "/tools"
)

// ============================================================================
// SERVER
// ============================================================================

// Server is the mock chat service.
type Server struct {
	store  *Store
	logger *zap.Logger

	tokenDelay     time.Duration
	heartbeatEvery int
	limiter        *IPRateLimiter
	reply          func(prompt string) string
	prefix         string
	seed           int

	loremMu sync.Mutex
	lorem   *loremgen.Lorem

	quit     chan struct{}
	quitOnce sync.Once
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTokenDelay sets the pause between streamed words. Zero streams as
// fast as the connection allows.
func WithTokenDelay(d time.Duration) Option {
	return func(s *Server) {
		s.tokenDelay = max(d, 0)
	}
}

// WithHeartbeatEvery sets how many tokens go between heartbeat comments.
// Zero disables heartbeats.
func WithHeartbeatEvery(n int) Option {
	return func(s *Server) {
		s.heartbeatEvery = max(n, 0)
	}
}

// WithRateLimit limits each client to rps requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		s.limiter = NewIPRateLimiter(rps, burst)
	}
}

// WithReplyFunc replaces the lorem ipsum reply generator.
func WithReplyFunc(fn func(prompt string) string) Option {
	return func(s *Server) {
		s.reply = fn
	}
}

// WithPrefix mounts the routes under a path prefix such as "/api/v1".
func WithPrefix(prefix string) Option {
	return func(s *Server) {
		s.prefix = strings.TrimRight(prefix, "/")
	}
}

// WithStore serves an existing store.
func WithStore(store *Store) Option {
	return func(s *Server) {
		s.store = store
	}
}

// WithSeedChats creates n chats with one exchange each for the default user.
func WithSeedChats(n int) Option {
	return func(s *Server) {
		s.seed = max(n, 0)
	}
}

// New creates a mock service.
func New(opts ...Option) *Server {
	s := &Server{
		store:          NewStore(),
		logger:         zap.NewNop(),
		tokenDelay:     DefaultTokenDelay,
		heartbeatEvery: DefaultHeartbeatEvery,
		limiter:        NewIPRateLimiter(0, 1),
		lorem:          loremgen.New(),
		quit:           make(chan struct{}),
	}
	s.reply = s.loremReply
	for _, opt := range opts {
		opt(s)
	}
	for range s.seed {
		s.seedChat(config.DefaultUserID)
	}
	return s
}

// Store returns the backing store.
func (s *Server) Store() *Store {
	return s.store
}

func (s *Server) loremReply(string) string {
	s.loremMu.Lock()
	defer s.loremMu.Unlock()

	var sb strings.Builder
	for i := range 3 {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(s.lorem.Sentence(5, 15))
	}
	return sb.String()
}

func (s *Server) seedChat(userID string) {
	s.loremMu.Lock()
	question := s.lorem.Sentence(3, 8)
	s.loremMu.Unlock()

	summary := s.store.Create(userID, TitleFrom(question))
	s.store.Append(summary.ChatID, model.RoleUser, question, nil)
	s.store.Append(summary.ChatID, model.RoleAssistant, s.reply(question), nil)
}

// ============================================================================
// ROUTES
// ============================================================================

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /chats/{id}", s.handleChats)
	mux.HandleFunc("POST /chat/stream", s.handleStream)
	mux.HandleFunc("GET /health", s.handleHealth)

	var h http.Handler = mux
	if s.prefix != "" {
		root := http.NewServeMux()
		root.Handle(s.prefix+"/", http.StripPrefix(s.prefix, mux))
		h = root
	}

	return Chain(
		RecoveryMiddleware(s.logger),
		LoggingMiddleware(s.logger),
		RateLimitMiddleware(s.limiter, s.logger),
	)(h)
}

// handleChats serves both the chat list and chat history routes.
func (s *Server) handleChats(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if hist, ok := s.store.History(id); ok {
		writeJSON(w, http.StatusOK, hist)
		return
	}
	if _, err := uuid.Parse(id); err == nil {
		writeJSON(w, http.StatusOK, s.store.List(id))
		return
	}
	writeDetail(w, http.StatusNotFound, ErrChatNotFound.Error())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"chats":  s.store.Len(),
	})
}

// ============================================================================
// STREAMING
// ============================================================================

// streamRequest is the body of POST /chat/stream.
type streamRequest struct {
	UserID  string  `json:"user_id"`
	ChatID  *string `json:"chat_id"`
	Message string  `json:"message"`
}

// handleStream replies to a message with a stream of events.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req streamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDetail(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "user_id is required")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "message is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeDetail(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	chatID, created := "", false
	if req.ChatID != nil && *req.ChatID != "" {
		chatID = *req.ChatID
		if !s.store.Has(chatID) {
			writeDetail(w, http.StatusNotFound, ErrChatNotFound.Error())
			return
		}
	} else {
		chatID = s.store.Create(req.UserID, TitleFrom(req.Message)).ChatID
		created = true
	}
	s.store.Append(chatID, model.RoleUser, req.Message, nil)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	st := &replyStream{w: w, flusher: flusher, ctx: r.Context(), quit: s.quit}
	err := s.streamReply(st, chatID, created, strings.TrimSpace(req.Message))

	var meta map[string]any
	if len(st.passthrough) > 0 {
		meta = map[string]any{sse.MetaKey: st.passthrough}
	}
	if st.text.Len() > 0 || meta != nil {
		s.store.Append(chatID, model.RoleAssistant, st.text.String(), meta)
	}

	if err != nil {
		s.logger.Debug("reply stream ended early", zap.String("chat_id", chatID), zap.Error(err))
		return
	}
	s.logger.Info("reply streamed",
		zap.String("chat_id", chatID),
		zap.Bool("new_chat", created),
		zap.Int("tokens", st.tokens))
}

// replyStream writes one reply and remembers what it sent.
type replyStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	ctx     context.Context
	quit    <-chan struct{}

	text        strings.Builder
	passthrough []sse.Event
	tokens      int
}

func (st *replyStream) send(ev sse.Event) error {
	if err := sse.Encode(st.w, ev); err != nil {
		return err
	}
	st.flusher.Flush()

	switch {
	case ev.Kind == sse.KindToken:
		st.text.WriteString(ev.Content())
		st.tokens++
	case ev.Kind.Passthrough():
		st.passthrough = append(st.passthrough, ev)
	}
	return nil
}

func (st *replyStream) heartbeat() error {
	if err := sse.EncodeComment(st.w, "ping"); err != nil {
		return err
	}
	st.flusher.Flush()
	return nil
}

// pause waits d, returning early with an error when the client leaves or
// the server shuts down.
func (st *replyStream) pause(d time.Duration) error {
	if d <= 0 {
		return st.ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-st.ctx.Done():
		return st.ctx.Err()
	case <-st.quit:
		return http.ErrServerClosed
	case <-t.C:
		return nil
	}
}

func (s *Server) streamReply(st *replyStream, chatID string, created bool, message string) error {
	if created {
		if err := st.send(sse.ChatData(chatID)); err != nil {
			return err
		}
	}

	switch message {
	case TriggerError:
		if err := st.send(sse.Token("Checking")); err != nil {
			return err
		}
		return st.send(sse.Error("mock failure requested"))

	case TriggerHang:
		if err := st.send(sse.Token("Thinking")); err != nil {
			return err
		}
		select {
		case <-st.ctx.Done():
			return st.ctx.Err()
		case <-st.quit:
			return http.ErrServerClosed
		}

	case TriggerTools:
		for _, ev := range toolEvents(message) {
			if err := st.send(ev); err != nil {
				return err
			}
		}
	}

	for i, word := range strings.Fields(s.reply(message)) {
		if err := st.pause(s.tokenDelay); err != nil {
			return err
		}
		if s.heartbeatEvery > 0 && i > 0 && i%s.heartbeatEvery == 0 {
			if err := st.heartbeat(); err != nil {
				return err
			}
		}
		if i > 0 {
			word = " " + word
		}
		if err := st.send(sse.Token(word)); err != nil {
			return err
		}
	}
	return st.send(sse.Done())
}

// toolEvents returns one event of each passthrough kind.
func toolEvents(query string) []sse.Event {
	return []sse.Event{
		{Kind: sse.KindToolStart, Data: map[string]any{"name": "catalog_search", "input": map[string]any{"query": query}}},
		{Kind: sse.KindProduct, Data: map[string]any{"sku": "GT-1001", "title": "Sample product", "price": 1990.0}},
		{Kind: sse.KindArticle, Data: map[string]any{"title": "Sample article", "url": "https://example.com/articles/1"}},
		{Kind: sse.KindToolEnd, Data: map[string]any{"name": "catalog_search"}},
	}
}

// ============================================================================
// LIFECYCLE
// ============================================================================

// Run listens on addr and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
// Replies still streaming are cut short.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hs := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("mock service listening", zap.String("addr", ln.Addr().String()), zap.String("prefix", s.prefix))
		if err := hs.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.quitOnce.Do(func() { close(s.quit) })

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("mock service shutting down")
		return hs.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// ============================================================================
// HELPERS
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeDetail writes an error body in the service's {"detail": ...} shape.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
