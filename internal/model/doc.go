// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chats and messages.
//
// These types mirror the remote chat service's JSON shapes at the wire
// boundary and are shared by the transport, the conversation reducer and
// the UI.
//
// # Key Types
//
//   - Message: Single message with id, text, role, creation time and meta
//   - ChatSummary: One entry of a user's chat list
//   - ChatHistory: A chat with its stored messages
//   - Role: Message role (user, assistant, or any other value the service sends)
//   - Timestamp: Lenient JSON time accepting the layouts the service emits
//
// # Usage
//
// Create an optimistic user message:
//
//	msg := model.NewMessage(model.RoleUser, "Привет!")
//	fmt.Println(msg.ID, msg.Role.DisplayName())
package model
