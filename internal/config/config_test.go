// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// isolateEnv points the config directory at a temp dir and clears the
// variables Load reads.
func isolateEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("GELTEK_HOME", dir)
	for _, k := range []string{
		"GELTEK_BASE_URL", "NEXT_PUBLIC_API_BASE_URL", "GELTEK_USER_ID",
		"GELTEK_IDLE_TIMEOUT", "GELTEK_LOG_LEVEL", "GELTEK_LOG_FILE",
	} {
		t.Setenv(k, "")
	}
	t.Chdir(dir)
	return dir
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	isolateEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultUserID, cfg.Service.UserID)
	assert.Equal(t, 60*time.Second, cfg.Service.IdleTimeout.Std())
	assert.Equal(t, 7, cfg.UI.SidebarLimit)
	assert.True(t, cfg.UI.RenderMarkdown)
	assert.Empty(t, cfg.Service.BaseURL)
}

func TestLoad_TOMLFile(t *testing.T) {
	dir := isolateEnv(t)
	path := filepath.Join(dir, "custom.toml")
	content := `
[service]
base_url = "https://chat.example.com/api/v1/"
user_id = "u-42"
idle_timeout = "5s"
request_timeout = "10"

[ui]
render_markdown = false
sidebar_limit = 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://chat.example.com/api/v1", cfg.Service.BaseURL, "trailing slash trimmed")
	assert.Equal(t, "u-42", cfg.Service.UserID)
	assert.Equal(t, 5*time.Second, cfg.Service.IdleTimeout.Std())
	assert.Equal(t, 10*time.Second, cfg.Service.RequestTimeout.Std())
	assert.False(t, cfg.UI.RenderMarkdown)
	assert.Equal(t, 3, cfg.UI.SidebarLimit)
	assert.Equal(t, 80, cfg.UI.WordWrap, "unset keys keep defaults")
	require.NoError(t, cfg.Validate())
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	dir := isolateEnv(t)
	path := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[service]\nbase_uri = \"http://x\"\n"), 0600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service.base_uri")
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolateEnv(t)
	t.Setenv("NEXT_PUBLIC_API_BASE_URL", "http://legacy:8000")
	t.Setenv("GELTEK_USER_ID", "env-user")
	t.Setenv("GELTEK_IDLE_TIMEOUT", "2m")
	t.Setenv("GELTEK_LOG_LEVEL", "DEBUG")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://legacy:8000", cfg.Service.BaseURL)
	assert.Equal(t, "env-user", cfg.Service.UserID)
	assert.Equal(t, 2*time.Minute, cfg.Service.IdleTimeout.Std())
	assert.Equal(t, "debug", cfg.Logging.Level)

	t.Setenv("GELTEK_BASE_URL", "http://preferred:9000")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://preferred:9000", cfg.Service.BaseURL, "GELTEK_BASE_URL wins over the legacy name")
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolateEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GELTEK_USER_ID=dotenv-user\n"), 0600))
	os.Unsetenv("GELTEK_USER_ID")
	t.Cleanup(func() { os.Unsetenv("GELTEK_USER_ID") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "dotenv-user", cfg.Service.UserID)
}

func TestValidate_MissingBaseURL(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	require.Error(t, err)

	var cfgErr ConfigurationError
	require.True(t, errors.As(err, &cfgErr), "errors.As should find a ConfigurationError in %v", err)
	assert.Equal(t, "service.base_url", cfgErr.Field)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		field   string
		wantErr bool
	}{
		{"valid", func(c *Config) {}, "", false},
		{"bad scheme", func(c *Config) { c.Service.BaseURL = "ftp://host" }, "service.base_url", true},
		{"no host", func(c *Config) { c.Service.BaseURL = "http://" }, "service.base_url", true},
		{"negative idle", func(c *Config) { c.Service.IdleTimeout = -1 }, "service.idle_timeout", true},
		{"zero idle disables", func(c *Config) { c.Service.IdleTimeout = 0 }, "", false},
		{"sidebar", func(c *Config) { c.UI.SidebarLimit = 0 }, "ui.sidebar_limit", true},
		{"level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Service.BaseURL = "http://localhost:8000"
			tt.mutate(cfg)
			err := cfg.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var errs ConfigurationErrors
			require.True(t, errors.As(err, &errs))
			require.Len(t, errs, 1)
			assert.Equal(t, tt.field, errs[0].Field)
		})
	}
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Std())
	require.NoError(t, d.UnmarshalText([]byte("15")))
	assert.Equal(t, 15*time.Second, d.Std())
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}

func TestWriteTemplate_RoundTrip(t *testing.T) {
	dir := isolateEnv(t)
	path := filepath.Join(dir, "nested", "config.toml")

	cfg := Default()
	cfg.Service.BaseURL = "http://localhost:8000"
	require.NoError(t, WriteTemplate(cfg, path, false))

	err := WriteTemplate(cfg, path, false)
	assert.ErrorIs(t, err, ErrConfigExists)
	require.NoError(t, WriteTemplate(cfg, path, true))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Service, loaded.Service)
	assert.Equal(t, cfg.UI, loaded.UI)
	assert.Equal(t, cfg.Logging, loaded.Logging)
}

func TestEncode(t *testing.T) {
	cfg := Default()
	cfg.Service.BaseURL = "http://localhost:8000"
	data, err := Encode(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(data), `idle_timeout = "1m0s"`)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := isolateEnv(t)
	path := filepath.Join(dir, "config.toml")
	cfg := Default()
	cfg.Service.BaseURL = "http://localhost:8000"
	require.NoError(t, WriteTemplate(cfg, path, false))

	changes := make(chan *Config, 4)
	w, err := NewWatcher(path, zaptest.NewLogger(t), func(c *Config) { changes <- c })
	require.NoError(t, err)
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	cfg.UI.SidebarLimit = 4
	require.NoError(t, WriteTemplate(cfg, path, true))

	select {
	case got := <-changes:
		assert.Equal(t, 4, got.UI.SidebarLimit)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}
}

func TestGlobal_ConcurrentAccess(t *testing.T) {
	isolateEnv(t)
	ResetGlobalForTesting()
	t.Cleanup(ResetGlobalForTesting)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			SetGlobal(Default())
		}()
		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
		go func() {
			defer wg.Done()
			UpdateGlobalUI(UIConfig{SidebarLimit: 2, WordWrap: 40})
		}()
	}
	wg.Wait()
}
