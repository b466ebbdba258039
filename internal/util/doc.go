// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the geltek packages.
//
// # Key Functions
//
//   - AtomicWriteFile: Crash-safe file writing with fsync and rename
//   - TruncateWidth: Display-width aware truncation for terminal layout
//   - FirstLine: First non-empty line of a text, for titles and previews
//
// # Usage
//
//	title := util.TruncateWidth(chat.Title, 24)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
