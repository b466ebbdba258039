// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package mockserver implements an in-memory stand-in for the chat service.
//
// It serves the same three endpoints the client consumes, so the TUI and the
// CLI can be exercised without the real backend:
//
//   - GET  /chats/{userId}  - chat list of a user
//   - GET  /chats/{chatId}  - one chat with its messages (404 if unknown)
//   - POST /chat/stream     - streamed reply as "data:" records
//   - GET  /health          - liveness probe
//
// Both GET routes share one path shape. An id naming a stored chat returns
// that chat; an id that parses as a UUID is taken as a user id; anything
// else is 404.
//
// Replies are lorem ipsum sentences streamed one word per token event, with
// heartbeat comments in between. Two trigger messages help test failure
// paths: "/error" ends the reply with an error event, and "/hang" stops
// sending after the first token until the client gives up. "/tools" emits
// one of each passthrough event kind before the text.
//
// # Key Types
//
//   - Server: routes, middleware and lifecycle
//   - Store: chats and messages kept in memory
//
// # Usage
//
//	srv := mockserver.New(mockserver.WithLogger(logger), mockserver.WithSeedChats(5))
//	if err := srv.Run(ctx, "127.0.0.1:8787"); err != nil {
//		logger.Fatal("mock service failed", zap.Error(err))
//	}
package mockserver
