// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session folds user intents and reply stream events into the state
// of one conversation view.
//
// A Reducer owns the message list, the active conversation id, the streaming
// flag and the last error. Every request it starts (a send or a history load)
// gets a Handle stamped with a generation number. Starting a newer request
// supersedes the older one: results that arrive later for a stale Handle are
// dropped without touching state.
//
// # State machine
//
//	Idle ──BeginSend──▶ Sending ──first event──▶ Streaming ──done/error/EOF──▶ Idle
//	Idle ──SwitchConversation──▶ Loading ──ApplyHistory──▶ Idle
//
// Any state returns to Loading on SwitchConversation and to Idle on
// NewConversation; the request in flight is superseded, not cancelled.
//
// # Key Types
//
//   - Reducer: The single writer of conversation state
//   - State: Value snapshot used for rendering
//   - Handle: Identifies one request and its generation
//   - SendRequest: What to send for a Handle returned by BeginSend
//   - EventSource: A reply stream (satisfied by *api.Stream)
//
// # Concurrency
//
// A Reducer is not safe for concurrent use. It belongs to one loop, such as a
// bubbletea Update function or the Run driver; stream reads happen elsewhere
// and hand their results back to that loop together with their Handle.
//
// # Usage
//
//	r := session.New(cfg.Service.UserID)
//	err := session.Run(ctx, r, session.ClientOpener(client), "Привет", func(s session.State) {
//	    render(s)
//	})
package session
