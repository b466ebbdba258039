// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sse decodes the chat service's server-sent-event style stream.
//
// The wire format is a sequence of records separated by a blank line. A
// record is significant only when it starts with "data:"; its payload is a
// JSON object {"type": ..., "data": {...}}. Everything else (comments,
// heartbeats, empty payloads) is protocol noise and yields nothing.
//
// # Key Types
//
//   - Decoder: Incremental decoder over an io.Reader
//   - Event: One typed event with its payload map
//   - Kind: Event type (token, tool_start, tool_end, product, article, done, error, chat_data)
//   - MalformedRecordError: A significant record whose payload could not be parsed
//
// # Usage
//
//	dec := sse.NewDecoder(resp.Body, sse.WithMalformedHandler(func(err *sse.MalformedRecordError) {
//	    logger.Debug("dropped record", zap.Error(err))
//	}))
//	for ev, err := range dec.Events() {
//	    if err != nil {
//	        return err
//	    }
//	    if ev.Kind == sse.KindToken {
//	        fmt.Print(ev.Content())
//	    }
//	}
//
// Chunk boundaries never matter: records and multi-byte characters split
// across reads are reassembled before parsing. Malformed records are
// reported to the handler and skipped; they never end the stream.
package sse
