// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"text/template"

	"github.com/BurntSushi/toml"

	"github.com/dadagust/geltek-chat-frontend-testing/internal/util"
)

// ErrConfigExists is returned by WriteTemplate when the file already exists.
var ErrConfigExists = errors.New("config file already exists")

var fileTemplate = template.Must(template.New("config").Parse(`# geltek configuration file
# Values shown are the defaults. Durations use Go syntax ("30s", "2m").

[service]
# Root URL of the chat service. Required.
base_url = "{{.Service.BaseURL}}"
user_id = "{{.Service.UserID}}"
request_timeout = "{{.Service.RequestTimeout}}"
# A reply stream that sends nothing for this long is abandoned. "0s" disables.
idle_timeout = "{{.Service.IdleTimeout}}"
requests_per_second = {{printf "%.1f" .Service.RequestsPerSecond}}
burst = {{.Service.Burst}}

[ui]
# Changes in this section apply to a running TUI without restart.
sidebar_limit = {{.UI.SidebarLimit}}
render_markdown = {{.UI.RenderMarkdown}}
word_wrap = {{.UI.WordWrap}}
show_timestamps = {{.UI.ShowTimestamps}}

[logging]
level = "{{.Logging.Level}}"
# Empty means ~/.geltek/geltek.log
file = "{{.Logging.File}}"
`))

// RenderTemplate renders cfg as a commented TOML document.
func RenderTemplate(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	if err := fileTemplate.Execute(&buf, cfg); err != nil {
		return nil, fmt.Errorf("render config: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteTemplate writes cfg to path as a commented config file with 0600
// permissions. An existing file is only replaced when force is set.
func WriteTemplate(cfg *Config, path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		}
	}
	data, err := RenderTemplate(cfg)
	if err != nil {
		return err
	}
	return util.AtomicWriteFileWithDir(path, data, 0600, 0700)
}

// Encode writes cfg as plain TOML, used by `config show`.
func Encode(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}
