// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for geltek.
//
// # Key Types
//
//   - Config: Main configuration structure
//   - ServiceConfig: Remote chat service location, user id, timeouts and rate limit
//   - UIConfig: Terminal UI settings (sidebar size, markdown rendering)
//   - LoggingConfig: Log level and file
//   - ConfigurationError: A single invalid or missing setting
//
// # Configuration Precedence
//
// Configuration is assembled from (later wins):
//   - Built-in defaults
//   - ~/.geltek/config.toml (or the path given with --config)
//   - A .env file in the working directory (never overrides the real environment)
//   - Environment variables (GELTEK_*, plus NEXT_PUBLIC_API_BASE_URL)
//   - Command line flags
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err // a missing base URL is reported here, before any request
//	}
package config
