// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/dadagust/geltek-chat-frontend-testing/internal/api"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/model"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/sse"
)

// =============================================================================
// ERRORS AND DEFAULT TEXTS
// =============================================================================

var (
	// ErrEmptyMessage rejects a send whose text is empty or whitespace.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrSendInFlight rejects a send while a reply is still streaming.
	ErrSendInFlight = errors.New("a reply is still streaming")

	// ErrHistoryLoading rejects a send while the chat history is loading.
	ErrHistoryLoading = errors.New("chat history is still loading")

	// ErrStreamTruncated reports a stream that ended without done or error.
	ErrStreamTruncated = errors.New("stream closed before completion")
)

const (
	// DefaultTransportMessage is shown when a transport failure has no text.
	DefaultTransportMessage = "Ошибка соединения"

	// DefaultServiceMessage is shown for an error event without a message.
	DefaultServiceMessage = "Сервис вернул ошибку"

	// MetaStreamEvents is the Meta key under which an assistant message
	// collects the tool, product and article events of its reply.
	MetaStreamEvents = sse.MetaKey
)

// =============================================================================
// PHASE
// =============================================================================

// Phase is the state of the conversation view.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseSending
	PhaseStreaming
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseSending:
		return "sending"
	case PhaseStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// =============================================================================
// HANDLE
// =============================================================================

type handleKind uint8

const (
	kindNone handleKind = iota
	kindSend
	kindHistory
)

// Handle identifies one request started by the Reducer. The zero Handle is
// never current.
type Handle struct {
	gen  uint64
	kind handleKind
}

// Generation returns the handle's generation number.
func (h Handle) Generation() uint64 {
	return h.gen
}

// IsZero reports whether h identifies no request.
func (h Handle) IsZero() bool {
	return h.kind == kindNone
}

// SendRequest describes the request to issue for a send.
type SendRequest struct {
	Handle         Handle
	UserID         string
	ConversationID string
	Text           string
}

// StreamRequest converts r to the transport request.
func (r SendRequest) StreamRequest() api.StreamRequest {
	return api.StreamRequest{UserID: r.UserID, ChatID: r.ConversationID, Message: r.Text}
}

// =============================================================================
// STATE
// =============================================================================

// State is a snapshot of a conversation view. ConversationID is empty until
// the service assigns one.
type State struct {
	ConversationID string
	Messages       []model.Message
	IsStreaming    bool
	LastError      string
	Phase          Phase
}

// LastMessage returns the last message, if any.
func (s State) LastMessage() (model.Message, bool) {
	if len(s.Messages) == 0 {
		return model.Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// AwaitingFirstToken reports whether the reply placeholder is still empty.
func (s State) AwaitingFirstToken() bool {
	last, ok := s.LastMessage()
	return s.IsStreaming && ok && last.Role == model.RoleAssistant && last.IsEmpty()
}

// =============================================================================
// REDUCER
// =============================================================================

// Reducer is the single writer of a conversation view's state.
type Reducer struct {
	userID string
	logger *zap.Logger

	conversationID string
	messages       []model.Message
	phase          Phase
	lastError      string

	gen  uint64
	live handleKind

	// reply is the index of the streaming placeholder, or -1.
	reply int
	buf   strings.Builder
}

// Option configures a Reducer.
type Option func(*Reducer)

// WithLogger sets the logger used for dropped events.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Reducer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithConversation starts the reducer on an existing conversation.
func WithConversation(id string, messages []model.Message) Option {
	return func(r *Reducer) {
		r.conversationID = id
		if messages != nil {
			r.messages = model.CloneMessages(messages)
		}
	}
}

// New creates an idle reducer acting for userID.
func New(userID string, opts ...Option) *Reducer {
	r := &Reducer{
		userID:   userID,
		logger:   zap.NewNop(),
		messages: []model.Message{},
		reply:    -1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Snapshot returns a copy of the current state.
func (r *Reducer) Snapshot() State {
	return State{
		ConversationID: r.conversationID,
		Messages:       model.CloneMessages(r.messages),
		IsStreaming:    r.streaming(),
		LastError:      r.lastError,
		Phase:          r.phase,
	}
}

// Phase returns the current phase.
func (r *Reducer) Phase() Phase {
	return r.phase
}

// ConversationID returns the active conversation id ("" for none yet).
func (r *Reducer) ConversationID() string {
	return r.conversationID
}

// Current reports whether h is the live request.
func (r *Reducer) Current(h Handle) bool {
	return h.kind != kindNone && h.gen == r.gen && h.kind == r.live
}

// ClearError dismisses the last error.
func (r *Reducer) ClearError() {
	r.lastError = ""
}

func (r *Reducer) streaming() bool {
	return r.phase == PhaseSending || r.phase == PhaseStreaming
}

// advance starts a new generation, superseding whatever was live.
func (r *Reducer) advance(kind handleKind) Handle {
	r.supersede()
	r.gen++
	r.live = kind
	return Handle{gen: r.gen, kind: kind}
}

// supersede freezes an in-flight reply and retires the live handle.
func (r *Reducer) supersede() {
	if r.live != kindNone {
		r.logger.Debug("request superseded",
			zap.Uint64("generation", r.gen),
			zap.Stringer("phase", r.phase))
	}
	r.retire()
}

func (r *Reducer) retire() {
	r.live = kindNone
	r.reply = -1
	r.buf.Reset()
	r.phase = PhaseIdle
}

// =============================================================================
// SENDING
// =============================================================================

// BeginSend starts sending text. It appends the user's message and an empty
// assistant placeholder and returns the request to issue.
//
// Empty or whitespace-only text, a reply still streaming, or a history load
// in progress reject the send without changing state.
func (r *Reducer) BeginSend(text string) (SendRequest, error) {
	if strings.TrimSpace(text) == "" {
		return SendRequest{}, ErrEmptyMessage
	}
	switch r.phase {
	case PhaseSending, PhaseStreaming:
		return SendRequest{}, ErrSendInFlight
	case PhaseLoading:
		return SendRequest{}, ErrHistoryLoading
	}

	h := r.advance(kindSend)
	r.lastError = ""
	r.messages = append(r.messages,
		model.NewMessage(model.RoleUser, text),
		model.NewMessage(model.RoleAssistant, ""),
	)
	r.reply = len(r.messages) - 1
	r.phase = PhaseSending

	return SendRequest{
		Handle:         h,
		UserID:         r.userID,
		ConversationID: r.conversationID,
		Text:           text,
	}, nil
}

// StreamOpened records that the reply stream for h is open.
func (r *Reducer) StreamOpened(h Handle) bool {
	if !r.current(h, kindSend) {
		return false
	}
	r.phase = PhaseStreaming
	return true
}

// Apply folds one stream event into the state. It returns false, changing
// nothing, when h is stale or already finished.
func (r *Reducer) Apply(h Handle, ev sse.Event) bool {
	if !r.current(h, kindSend) {
		r.logger.Debug("stale stream event dropped",
			zap.Uint64("generation", h.gen),
			zap.Uint64("current", r.gen),
			zap.String("kind", string(ev.Kind)))
		return false
	}
	r.phase = PhaseStreaming

	switch ev.Kind {
	case sse.KindChatData:
		if id := ev.ChatID(); id != "" {
			r.conversationID = id
		}
	case sse.KindToken:
		r.buf.WriteString(ev.Content())
		r.messages[r.reply].Text = r.buf.String()
	case sse.KindToolStart, sse.KindToolEnd, sse.KindProduct, sse.KindArticle:
		r.recordPassthrough(ev)
	case sse.KindDone:
		r.retire()
	case sse.KindError:
		msg := ev.ErrorMessage()
		if msg == "" {
			msg = DefaultServiceMessage
		}
		r.lastError = msg
		r.retire()
	}
	return true
}

// recordPassthrough keeps an event the text does not depend on with the
// reply, for the rendering layer.
func (r *Reducer) recordPassthrough(ev sse.Event) {
	msg := &r.messages[r.reply]
	if msg.Meta == nil {
		msg.Meta = map[string]any{}
	}
	events, _ := msg.Meta[MetaStreamEvents].([]sse.Event)
	msg.Meta[MetaStreamEvents] = append(events, ev)
}

// Fail ends the send for h after a transport failure. The partial reply is
// kept. It returns false when h is stale.
func (r *Reducer) Fail(h Handle, err error) bool {
	if !r.current(h, kindSend) {
		return false
	}
	r.lastError = TransportMessage(err)
	r.retire()
	return true
}

// End handles the stream for h ending without a terminal event, which is a
// transport failure. It returns false when h is stale or already finished.
func (r *Reducer) End(h Handle) bool {
	return r.Fail(h, &api.TransportError{Op: "stream", Err: ErrStreamTruncated})
}

// TransportMessage returns the notice text for a transport failure.
func TransportMessage(err error) string {
	if err == nil {
		return DefaultTransportMessage
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return DefaultTransportMessage
}

// =============================================================================
// NAVIGATION
// =============================================================================

// SwitchConversation makes id the active conversation and returns the handle
// for loading its history. Any request in flight is superseded; its reply
// keeps whatever text it had. An empty id behaves like NewConversation and
// returns the zero Handle: there is nothing to load.
func (r *Reducer) SwitchConversation(id string) Handle {
	if id == "" {
		r.NewConversation()
		return Handle{}
	}
	h := r.advance(kindHistory)
	r.conversationID = id
	r.lastError = ""
	r.phase = PhaseLoading
	return h
}

// ApplyHistory replaces the message list with the history loaded for h.
// A nil history (the service has none) empties the list; so does an error,
// which is also reported as the last error. It returns false when h is stale.
func (r *Reducer) ApplyHistory(h Handle, hist *model.ChatHistory, err error) bool {
	if !r.current(h, kindHistory) {
		r.logger.Debug("stale history dropped", zap.Uint64("generation", h.gen), zap.Uint64("current", r.gen))
		return false
	}
	switch {
	case err != nil:
		r.messages = []model.Message{}
		r.lastError = TransportMessage(err)
	case hist == nil:
		r.messages = []model.Message{}
	default:
		r.messages = model.CloneMessages(hist.Messages)
		if r.messages == nil {
			r.messages = []model.Message{}
		}
	}
	r.retire()
	return true
}

// NewConversation supersedes any request and starts an empty conversation
// whose id the service assigns on the first reply.
func (r *Reducer) NewConversation() {
	r.supersede()
	r.gen++
	r.conversationID = ""
	r.messages = []model.Message{}
	r.lastError = ""
}

func (r *Reducer) current(h Handle, kind handleKind) bool {
	return h.kind == kind && r.Current(h)
}
