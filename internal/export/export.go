// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/dadagust/geltek-chat-frontend-testing/internal/model"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/util"
)

// ErrNilChat is returned when there is nothing to export.
var ErrNilChat = errors.New("chat is nil")

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter converts a chat to one output format.
type Exporter interface {
	// Export renders the chat and returns the file content.
	Export(hist *model.ChatHistory) ([]byte, error)

	// FileExtension returns the extension including the dot, e.g. ".md".
	FileExtension() string

	// MimeType returns the MIME type of the output.
	MimeType() string
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// OutputDir is where ToFile writes. Default: current directory.
	OutputDir string

	// IncludeMetadata adds the frontmatter and summary block (Markdown).
	IncludeMetadata bool

	// IncludeTimestamps adds per-message times.
	IncludeTimestamps bool

	// IncludeEvents lists tool, product and article events under replies.
	IncludeEvents bool

	// Now stamps the export. Default: time.Now.
	Now func() time.Time
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:         ".",
		IncludeMetadata:   true,
		IncludeTimestamps: true,
		IncludeEvents:     true,
		Now:               time.Now,
	}
}

func (o *Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// Formats lists the names ForFormat accepts.
var Formats = []string{"markdown", "json", "yaml"}

// ForFormat returns the exporter for a format name. Common aliases such as
// "md" and "yml" are accepted.
func ForFormat(format string, opts *Options) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "markdown", "md":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(opts), nil
	case "yaml", "yml":
		return NewYAMLExporter(opts), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q (want one of %s)", format, strings.Join(Formats, ", "))
	}
}

// ToFile exports hist into opts.OutputDir and returns the written path.
// The file name is built from the chat title and the export time.
func ToFile(hist *model.ChatHistory, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if hist == nil {
		return "", ErrNilChat
	}

	content, err := exporter.Export(hist)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}
	filename := fmt.Sprintf("chat_%s_%s%s",
		sanitizeFilename(hist.Summary().DisplayTitle()),
		opts.now().Format("20060102_150405"),
		exporter.FileExtension(),
	)
	path := filepath.Join(dir, filename)

	if err := util.AtomicWriteFileWithDir(path, content, 0644, 0755); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

// Write exports hist to w, typically standard output.
func Write(w io.Writer, hist *model.ChatHistory, exporter Exporter) error {
	if hist == nil {
		return ErrNilChat
	}
	content, err := exporter.Export(hist)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	_, err = w.Write(content)
	return err
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// filenameReplacer maps characters that are unsafe in file names.
var filenameReplacer = strings.NewReplacer(
	"/", "-", "\\", "-", ":", "-", "*", "-", "?", "-",
	"\"", "-", "<", "-", ">", "-", "|", "-",
	" ", "_", "\t", "_", "\n", "_", "\r", "_",
)

// sanitizeFilename makes s safe to use as part of a file name on Windows and
// Unix.
func sanitizeFilename(s string) string {
	const maxLen = 50
	if runes := []rune(s); len(runes) > maxLen {
		s = string(runes[:maxLen])
	}
	s = filenameReplacer.Replace(s)
	s = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return '-'
		}
		return r
	}, s)
	if s == "" {
		return "chat"
	}
	return s
}
