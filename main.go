// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// geltek is a terminal client for the geltek skincare assistant.
package main

import "github.com/dadagust/geltek-chat-frontend-testing/internal/cli"

func main() {
	cli.Execute()
}
