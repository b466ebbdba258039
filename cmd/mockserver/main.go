// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Command mockserver runs an in-memory chat service for local development.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dadagust/geltek-chat-frontend-testing/internal/logging"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/mockserver"
)

var (
	addr      string
	prefix    string
	seed      int
	delay     time.Duration
	heartbeat int
	rps       float64
	burst     int
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "mockserver",
	Short: "Serve a fake chat service that streams lorem ipsum replies",
	Long: `mockserver answers the chat list, chat history and stream endpoints
from memory. Send "/error" to get an error event, "/hang" to get a stream that
stalls after one token, or "/tools" to get tool, product and article events.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&addr, "addr", mockserver.DefaultAddr, "listen address")
	f.StringVar(&prefix, "prefix", "", `path prefix for all routes, e.g. "/api/v1"`)
	f.IntVar(&seed, "seed", 5, "number of demo chats for the default user")
	f.DurationVar(&delay, "delay", mockserver.DefaultTokenDelay, "pause between streamed words")
	f.IntVar(&heartbeat, "heartbeat", mockserver.DefaultHeartbeatEvery, "tokens between heartbeat comments (0 disables)")
	f.Float64Var(&rps, "rps", 0, "requests per second per client (0 disables limiting)")
	f.IntVar(&burst, "burst", 10, "rate limit burst")
	f.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

func run(cmd *cobra.Command, args []string) error {
	logger, err := logging.New(logging.Options{Level: logLevel, Stderr: true})
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	srv := mockserver.New(
		mockserver.WithLogger(logger),
		mockserver.WithPrefix(prefix),
		mockserver.WithSeedChats(seed),
		mockserver.WithTokenDelay(delay),
		mockserver.WithHeartbeatEvery(heartbeat),
		mockserver.WithRateLimit(rps, burst),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx, addr); err != nil {
		logger.Error("mock service failed", zap.Error(err))
		return err
	}
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
