// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dadagust/geltek-chat-frontend-testing/internal/api"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/model"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/sse"
)

const testUser = "00000000-0000-0000-0000-000000000001"

var ignoreVolatile = cmpopts.IgnoreFields(model.Message{}, "ID", "CreatedAt")

func newReducer(t *testing.T, opts ...Option) *Reducer {
	t.Helper()
	return New(testUser, append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)...)
}

// assertStreamingInvariant checks that IsStreaming implies the last message
// is the assistant reply.
func assertStreamingInvariant(t *testing.T, s State) {
	t.Helper()
	if !s.IsStreaming {
		return
	}
	last, ok := s.LastMessage()
	require.True(t, ok, "streaming with no messages")
	require.Equal(t, model.RoleAssistant, last.Role, "streaming but last message is %q", last.Role)
}

func apply(t *testing.T, r *Reducer, h Handle, events ...sse.Event) {
	t.Helper()
	for _, ev := range events {
		require.True(t, r.Apply(h, ev), "event %s rejected", ev.Kind)
		assertStreamingInvariant(t, r.Snapshot())
	}
}

func TestSend_NewConversationHello(t *testing.T) {
	r := newReducer(t)

	req, err := r.BeginSend("Hi")
	require.NoError(t, err)
	assert.Equal(t, testUser, req.UserID)
	assert.Empty(t, req.ConversationID, "new conversation sends a null chat id")
	assert.Equal(t, "Hi", req.Text)

	s := r.Snapshot()
	assert.True(t, s.IsStreaming)
	assert.Equal(t, PhaseSending, s.Phase)
	assert.True(t, s.AwaitingFirstToken())
	assertStreamingInvariant(t, s)

	require.True(t, r.StreamOpened(req.Handle))
	apply(t, r, req.Handle,
		sse.ChatData("c1"),
		sse.Token("He"),
		sse.Token("llo"),
		sse.Done(),
	)

	s = r.Snapshot()
	want := State{
		ConversationID: "c1",
		Messages: []model.Message{
			{Role: model.RoleUser, Text: "Hi"},
			{Role: model.RoleAssistant, Text: "Hello"},
		},
		Phase: PhaseIdle,
	}
	if diff := cmp.Diff(want, s, ignoreVolatile); diff != "" {
		t.Errorf("state mismatch (-want +got):\n%s", diff)
	}
}

func TestSend_RejectsEmptyInput(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t "} {
		r := newReducer(t)
		before := r.Snapshot()
		_, err := r.BeginSend(text)
		assert.ErrorIs(t, err, ErrEmptyMessage)
		assert.Equal(t, before, r.Snapshot(), "state changed for %q", text)
	}
}

func TestSend_WhileStreamingIsNoop(t *testing.T) {
	r := newReducer(t)
	req, err := r.BeginSend("first")
	require.NoError(t, err)
	apply(t, r, req.Handle, sse.Token("par"))

	before := r.Snapshot()
	_, err = r.BeginSend("second")
	assert.ErrorIs(t, err, ErrSendInFlight)
	assert.Len(t, r.Snapshot().Messages, len(before.Messages))
	assert.True(t, r.Current(req.Handle), "rejected send must not supersede the live stream")

	apply(t, r, req.Handle, sse.Token("tial"))
	last, _ := r.Snapshot().LastMessage()
	assert.Equal(t, "partial", last.Text)
}

func TestSend_ErrorEventKeepsPartialText(t *testing.T) {
	r := newReducer(t)
	req, err := r.BeginSend("q")
	require.NoError(t, err)
	apply(t, r, req.Handle, sse.Token("half an ans"), sse.Error("boom"))

	s := r.Snapshot()
	assert.Equal(t, "boom", s.LastError)
	assert.False(t, s.IsStreaming)
	require.Len(t, s.Messages, 2)
	assert.Equal(t, "half an ans", s.Messages[1].Text)

	assert.False(t, r.Apply(req.Handle, sse.Token("late")), "no events after a terminal event")
	assert.Equal(t, "half an ans", r.Snapshot().Messages[1].Text)
}

func TestSend_ErrorEventWithoutMessage(t *testing.T) {
	r := newReducer(t)
	req, _ := r.BeginSend("q")
	apply(t, r, req.Handle, sse.Event{Kind: sse.KindError, Data: map[string]any{}})
	assert.Equal(t, DefaultServiceMessage, r.Snapshot().LastError)
}

func TestSend_AtMostOneTerminalEvent(t *testing.T) {
	r := newReducer(t)
	req, _ := r.BeginSend("q")
	apply(t, r, req.Handle, sse.Done())
	assert.False(t, r.Apply(req.Handle, sse.Error("late error")))
	assert.Empty(t, r.Snapshot().LastError)
	assert.False(t, r.Fail(req.Handle, errors.New("late failure")))
	assert.False(t, r.End(req.Handle))
}

func TestSend_TransportFailure(t *testing.T) {
	r := newReducer(t)
	req, _ := r.BeginSend("q")
	apply(t, r, req.Handle, sse.Token("so far"))

	err := &api.TransportError{Op: "stream", Status: 502, Detail: "bad gateway"}
	require.True(t, r.Fail(req.Handle, err))

	s := r.Snapshot()
	assert.Equal(t, "stream: status 502: bad gateway", s.LastError)
	assert.False(t, s.IsStreaming)
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.Equal(t, "so far", s.Messages[1].Text)
}

func TestSend_EndWithoutTerminalEvent(t *testing.T) {
	r := newReducer(t)
	req, _ := r.BeginSend("q")
	apply(t, r, req.Handle, sse.Token("cut"))
	require.True(t, r.End(req.Handle))

	s := r.Snapshot()
	assert.Contains(t, s.LastError, ErrStreamTruncated.Error())
	assert.False(t, s.IsStreaming)
}

func TestSend_ClearsPreviousError(t *testing.T) {
	r := newReducer(t)
	req, _ := r.BeginSend("q")
	apply(t, r, req.Handle, sse.Error("boom"))
	require.Equal(t, "boom", r.Snapshot().LastError)

	_, err := r.BeginSend("again")
	require.NoError(t, err)
	assert.Empty(t, r.Snapshot().LastError)
}

func TestSend_PassthroughEventsDoNotTouchText(t *testing.T) {
	r := newReducer(t)
	req, _ := r.BeginSend("q")
	product := sse.Event{Kind: sse.KindProduct, Data: map[string]any{"sku": "A-1"}}
	apply(t, r, req.Handle,
		sse.Token("see "),
		sse.Event{Kind: sse.KindToolStart, Data: map[string]any{"name": "search"}},
		sse.Event{Kind: sse.KindToolEnd, Data: map[string]any{"name": "search"}},
		product,
		sse.Token("this"),
	)

	reply := r.Snapshot().Messages[1]
	assert.Equal(t, "see this", reply.Text)
	events, ok := reply.Meta[MetaStreamEvents].([]sse.Event)
	require.True(t, ok)
	require.Len(t, events, 3)
	assert.Equal(t, product, events[2])
}

func TestSend_ExistingConversationKeepsID(t *testing.T) {
	r := newReducer(t, WithConversation("c7", []model.Message{{ID: "m1", Role: model.RoleUser, Text: "old"}}))
	req, err := r.BeginSend("new")
	require.NoError(t, err)
	assert.Equal(t, "c7", req.ConversationID)
	assert.Equal(t, "c7", req.StreamRequest().ChatID)
	assert.Len(t, r.Snapshot().Messages, 3)
}

func TestSwitch_SupersedesStream(t *testing.T) {
	r := newReducer(t, WithConversation("a", nil))
	req, _ := r.BeginSend("question for a")
	apply(t, r, req.Handle, sse.Token("partial"))

	h := r.SwitchConversation("b")
	s := r.Snapshot()
	assert.False(t, s.IsStreaming)
	assert.Equal(t, PhaseLoading, s.Phase)
	assert.Equal(t, "b", s.ConversationID)
	assertStreamingInvariant(t, s)

	// Old generation: no mutation at all.
	before := r.Snapshot()
	assert.False(t, r.Apply(req.Handle, sse.Token(" more")))
	assert.False(t, r.Apply(req.Handle, sse.ChatData("a-renamed")))
	assert.False(t, r.Apply(req.Handle, sse.Done()))
	assert.False(t, r.Fail(req.Handle, errors.New("late")))
	if diff := cmp.Diff(before, r.Snapshot()); diff != "" {
		t.Fatalf("stale events mutated state (-before +after):\n%s", diff)
	}

	hist := &model.ChatHistory{ChatID: "b", Messages: []model.Message{
		{ID: "b1", Role: model.RoleUser, Text: "hello b"},
		{ID: "b2", Role: model.RoleAssistant, Text: "hi from b"},
	}}
	require.True(t, r.ApplyHistory(h, hist, nil))

	s = r.Snapshot()
	assert.Equal(t, PhaseIdle, s.Phase)
	if diff := cmp.Diff(hist.Messages, s.Messages); diff != "" {
		t.Errorf("history did not replace messages (-want +got):\n%s", diff)
	}
}

func TestSwitch_StaleHistoryDropped(t *testing.T) {
	r := newReducer(t)
	first := r.SwitchConversation("a")
	second := r.SwitchConversation("b")

	assert.False(t, r.ApplyHistory(first, &model.ChatHistory{Messages: []model.Message{{Text: "from a"}}}, nil))
	require.True(t, r.ApplyHistory(second, &model.ChatHistory{Messages: []model.Message{{Text: "from b"}}}, nil))

	s := r.Snapshot()
	require.Len(t, s.Messages, 1)
	assert.Equal(t, "from b", s.Messages[0].Text)
	assert.Equal(t, "b", s.ConversationID)
}

func TestSwitch_HistoryNotFoundAndFailure(t *testing.T) {
	r := newReducer(t, WithConversation("a", []model.Message{{Text: "old"}}))

	h := r.SwitchConversation("gone")
	require.True(t, r.ApplyHistory(h, nil, nil))
	s := r.Snapshot()
	assert.NotNil(t, s.Messages)
	assert.Empty(t, s.Messages)
	assert.Empty(t, s.LastError, "missing history is not an error")

	h = r.SwitchConversation("broken")
	require.True(t, r.ApplyHistory(h, nil, &api.TransportError{Op: "fetch chat", Status: 500}))
	s = r.Snapshot()
	assert.Empty(t, s.Messages)
	assert.Equal(t, "fetch chat: status 500", s.LastError)
}

func TestSwitch_SendRejectedWhileLoading(t *testing.T) {
	r := newReducer(t)
	h := r.SwitchConversation("a")
	_, err := r.BeginSend("too early")
	assert.ErrorIs(t, err, ErrHistoryLoading)
	assert.Empty(t, r.Snapshot().Messages)

	r.ApplyHistory(h, nil, nil)
	_, err = r.BeginSend("now")
	assert.NoError(t, err)
}

func TestSwitch_EmptyIDStartsNewConversation(t *testing.T) {
	r := newReducer(t, WithConversation("a", []model.Message{{Text: "old"}}))
	req, _ := r.BeginSend("q")

	h := r.SwitchConversation("")
	assert.True(t, h.IsZero())
	assert.False(t, r.Current(h))
	assert.False(t, r.Apply(req.Handle, sse.Token("x")))

	s := r.Snapshot()
	assert.Empty(t, s.ConversationID)
	assert.Empty(t, s.Messages)
	assert.Equal(t, PhaseIdle, s.Phase)
}

func TestHandle_Generations(t *testing.T) {
	r := newReducer(t)
	a, _ := r.BeginSend("a")
	apply(t, r, a.Handle, sse.Done())
	b, _ := r.BeginSend("b")

	assert.Greater(t, b.Handle.Generation(), a.Handle.Generation())
	assert.False(t, r.Current(a.Handle))
	assert.True(t, r.Current(b.Handle))
	assert.False(t, r.Current(Handle{}))

	// A send handle never applies history and vice versa.
	assert.False(t, r.ApplyHistory(b.Handle, nil, nil))
}

func TestSnapshotIsDetached(t *testing.T) {
	r := newReducer(t)
	req, _ := r.BeginSend("q")
	apply(t, r, req.Handle, sse.Token("a"))

	s := r.Snapshot()
	s.Messages[1].Text = "mutated"
	apply(t, r, req.Handle, sse.Token("b"))
	assert.Equal(t, "ab", r.Snapshot().Messages[1].Text)
}

func TestTransportMessage(t *testing.T) {
	assert.Equal(t, DefaultTransportMessage, TransportMessage(nil))
	assert.Equal(t, DefaultTransportMessage, TransportMessage(errors.New("  ")))
	assert.Equal(t, "dial tcp: refused", TransportMessage(errors.New("dial tcp: refused")))
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "streaming", PhaseStreaming.String())
	assert.Equal(t, "unknown", Phase(42).String())
}
