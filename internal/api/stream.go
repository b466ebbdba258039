// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dadagust/geltek-chat-frontend-testing/internal/sse"
)

// =============================================================================
// IDLE WATCHDOG
// =============================================================================

// idleWatch cancels a request when a single wait for bytes exceeds timeout.
// It is armed only while a read is blocked, so a slow consumer never trips it.
type idleWatch struct {
	timeout time.Duration
	timer   *time.Timer
	tripped atomic.Bool
}

func newIdleWatch(timeout time.Duration, cancel context.CancelFunc) *idleWatch {
	w := &idleWatch{timeout: timeout}
	if timeout > 0 {
		w.timer = time.AfterFunc(timeout, func() {
			w.tripped.Store(true)
			cancel()
		})
		w.timer.Stop()
	}
	return w
}

func (w *idleWatch) arm() {
	if w.timer != nil {
		w.timer.Reset(w.timeout)
	}
}

func (w *idleWatch) disarm() {
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *idleWatch) fired() bool {
	return w.tripped.Load()
}

// watchedReader arms the watchdog around every Read.
type watchedReader struct {
	r     io.Reader
	watch *idleWatch
}

func (wr *watchedReader) Read(p []byte) (int, error) {
	wr.watch.arm()
	n, err := wr.r.Read(p)
	wr.watch.disarm()
	return n, err
}

// =============================================================================
// STREAM
// =============================================================================

// Stream is an open reply stream. Next must be called from one goroutine;
// Close may be called from any goroutine, any number of times.
type Stream struct {
	body    io.ReadCloser
	dec     *sse.Decoder
	watch   *idleWatch
	cancel  context.CancelFunc
	logger  *zap.Logger
	started time.Time

	events    int
	dropped   atomic.Int64
	closeOnce sync.Once
}

func newStream(body io.ReadCloser, watch *idleWatch, cancel context.CancelFunc, logger *zap.Logger) *Stream {
	s := &Stream{
		body:    body,
		watch:   watch,
		cancel:  cancel,
		logger:  logger,
		started: time.Now(),
	}
	s.dec = sse.NewDecoder(&watchedReader{r: body, watch: watch},
		sse.WithMalformedHandler(func(err *sse.MalformedRecordError) {
			s.dropped.Add(1)
			logger.Debug("malformed stream record dropped", zap.Error(err))
		}))
	return s
}

// NewStreamFromReader wraps an arbitrary reader as a Stream without a
// network request behind it. Used for replaying captured streams.
func NewStreamFromReader(r io.ReadCloser, logger *zap.Logger) *Stream {
	if logger == nil {
		logger = zap.NewNop()
	}
	cancel := func() {}
	return newStream(r, newIdleWatch(0, cancel), cancel, logger)
}

// Next returns the next event, io.EOF when the service closes the stream,
// or a *TransportError when reading fails. A stream that idled out fails
// with a TransportError wrapping ErrIdleTimeout.
func (s *Stream) Next() (sse.Event, error) {
	ev, err := s.dec.Next()
	if err == nil {
		s.events++
		return ev, nil
	}
	if errors.Is(err, io.EOF) {
		s.logger.Info("stream closed by service",
			zap.Int("events", s.events),
			zap.Int64("dropped", s.dropped.Load()),
			zap.Duration("duration", time.Since(s.started)))
		return sse.Event{}, io.EOF
	}
	if s.watch.fired() {
		s.logger.Warn("stream idle timeout", zap.Duration("timeout", s.watch.timeout), zap.Int("events", s.events))
		err = ErrIdleTimeout
	}
	return sse.Event{}, &TransportError{Op: "stream", Err: err}
}

// Dropped returns how many malformed records were skipped so far.
func (s *Stream) Dropped() int64 {
	return s.dropped.Load()
}

// Close aborts the request and releases the connection.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.watch.disarm()
		s.cancel()
		err = s.body.Close()
	})
	return err
}
