// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the HTTP client for the remote chat service.
//
// The service exposes three operations:
//
//	GET  {base}/chats/{userId}   list of chat summaries
//	GET  {base}/chats/{chatId}   one chat with its messages (404 = no history)
//	POST {base}/chat/stream      reply stream for a new user message
//
// # Key Types
//
//   - Client: Rate-limited client for the three operations
//   - Stream: An open reply stream yielding sse.Event values
//   - TransportError: Network failure, bad status, or stream read failure
//   - ServiceReportedError: An error event sent by the service
//
// # Usage
//
//	client, err := api.New(cfg.Service.BaseURL, api.WithLogger(logger))
//	if err != nil {
//	    return err // config.ConfigurationError when the URL is missing
//	}
//	stream, err := client.OpenStream(ctx, api.StreamRequest{UserID: uid, Message: "Привет"})
//	if err != nil {
//	    return err // *api.TransportError, before any event
//	}
//	defer stream.Close()
//	for {
//	    ev, err := stream.Next()
//	    if errors.Is(err, io.EOF) {
//	        break
//	    }
//	    ...
//	}
//
// Reply streams have no overall timeout. Instead a stream that delivers no
// bytes for the configured idle timeout fails with ErrIdleTimeout.
package api
