// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the zap logger used across geltek.
//
// The terminal UI owns stdout and stderr while it runs, so log output goes to
// a file. Headless commands may ask for stderr instead.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dadagust/geltek-chat-frontend-testing/internal/config"
)

// Options selects where and how much to log.
type Options struct {
	// Level is one of debug, info, warn, error.
	Level string
	// File is the log path. Empty means config.DefaultLogPath.
	File string
	// Stderr logs to standard error instead of a file.
	Stderr bool
	// Verbose forces the debug level.
	Verbose bool
}

// FromConfig derives Options from the logging section.
func FromConfig(cfg config.LoggingConfig, verbose bool) Options {
	return Options{Level: cfg.Level, File: cfg.File, Verbose: verbose}
}

// New builds a production-configured JSON logger.
func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}
	if opts.Verbose {
		level = zapcore.DebugLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Sampling = nil

	if opts.Stderr {
		cfg.OutputPaths = []string{"stderr"}
		cfg.ErrorOutputPaths = []string{"stderr"}
	} else {
		path := opts.File
		if path == "" {
			p, err := config.DefaultLogPath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		cfg.OutputPaths = []string{path}
		cfg.ErrorOutputPaths = []string{path}
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
