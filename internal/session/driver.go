// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/dadagust/geltek-chat-frontend-testing/internal/api"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/sse"
)

// =============================================================================
// STREAM SOURCES
// =============================================================================

// EventSource is an open reply stream. *api.Stream satisfies it. Close must
// be safe to call while Next is blocked and must make it return.
type EventSource interface {
	Next() (sse.Event, error)
	Close() error
}

// Opener issues the request for a send and returns its reply stream.
type Opener func(ctx context.Context, req SendRequest) (EventSource, error)

// ClientOpener opens reply streams with client.
func ClientOpener(client *api.Client) Opener {
	return func(ctx context.Context, req SendRequest) (EventSource, error) {
		stream, err := client.OpenStream(ctx, req.StreamRequest())
		if err != nil {
			return nil, err
		}
		return stream, nil
	}
}

// MaxDrainTime bounds how long a superseded stream is read before Drain
// closes it. It also covers streams without an idle timeout that hang.
const MaxDrainTime = 2 * time.Minute

// Drain reads a superseded stream to its end in the background and closes
// it. The request is left to finish on its own, for at most MaxDrainTime;
// nothing it yields reaches any state. The returned channel closes when
// draining is done.
func Drain(src EventSource) <-chan struct{} {
	return drainWithin(src, MaxDrainTime)
}

func drainWithin(src EventSource, limit time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer src.Close()
		stop := time.AfterFunc(limit, func() { src.Close() }) //nolint:errcheck
		defer stop.Stop()
		for {
			if _, err := src.Next(); err != nil {
				return
			}
		}
	}()
	return done
}

// =============================================================================
// SYNCHRONOUS DRIVER
// =============================================================================

// Run performs one complete send on r: it begins the send, opens the stream
// and folds every event until the reply finishes. onChange, if set, receives
// a snapshot after each state change.
//
// The returned error is the rejection from BeginSend, a *api.TransportError,
// or a *api.ServiceReportedError for an error event. In every failure case
// after BeginSend the state already records the error.
func Run(ctx context.Context, r *Reducer, open Opener, text string, onChange func(State)) error {
	notify := func() {
		if onChange != nil {
			onChange(r.Snapshot())
		}
	}

	req, err := r.BeginSend(text)
	if err != nil {
		return err
	}
	notify()

	src, err := open(ctx, req)
	if err != nil {
		r.Fail(req.Handle, err)
		notify()
		return err
	}
	defer src.Close()

	r.StreamOpened(req.Handle)
	notify()

	for {
		ev, err := src.Next()
		if errors.Is(err, io.EOF) {
			if r.End(req.Handle) {
				notify()
				return &api.TransportError{Op: "stream", Err: ErrStreamTruncated}
			}
			return nil
		}
		if err != nil {
			r.Fail(req.Handle, err)
			notify()
			return err
		}
		if !r.Apply(req.Handle, ev) {
			return nil
		}
		notify()

		switch ev.Kind {
		case sse.KindDone:
			return nil
		case sse.KindError:
			return &api.ServiceReportedError{Message: r.lastError}
		}
	}
}
