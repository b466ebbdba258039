// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes a chat and its messages to a file.
//
// # Key Types
//
//   - Exporter: converts a chat history to bytes in one format
//   - Document: the format-neutral view every exporter renders
//   - Options: output directory and what to include
//
// # Supported Formats
//
//   - Markdown: readable transcript with YAML frontmatter
//   - JSON: the Document, indented
//   - YAML: the Document
//
// # Usage
//
//	exporter, err := export.ForFormat("md", nil)
//	if err != nil {
//		return err
//	}
//	path, err := export.ToFile(history, exporter, nil)
package export
