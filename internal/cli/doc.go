// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the geltek command line.
//
// Without a command geltek opens the full-screen chat. The other commands
// are headless and suited to scripts; all of them accept --json.
//
// # Key Types
//
//   - App: the loaded configuration and logger a command runs with
//   - JSONResponse: the envelope printed in --json mode
//   - CommandError, ValidationError, NotFoundError: errors mapped to exit codes
//   - ChatCLI: line editing and input history for the chat command
//
// # Usage
//
//	func main() {
//	    cli.Execute()
//	}
//
// # Commands Overview
//
//   - ask: send one message and print the reply
//   - chat: line-based chat with slash commands
//   - chats: list chats
//   - history: print one or more chats
//   - export: save a chat as markdown, JSON or YAML
//   - replay: decode a captured reply stream offline
//   - config show|path|init: configuration file
//   - version: build information
//
// Exit codes: 1 general, 2 usage, 3 configuration, 5 service unreachable or
// failed, 7 chat not found.
package cli
