// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrIdleTimeout indicates the stream delivered no bytes within the idle timeout.
	ErrIdleTimeout = errors.New("stream idle timeout")

	// ErrNoBody indicates a successful status with no response body.
	ErrNoBody = errors.New("response has no body")
)

// TransportError is a failure to talk to the service: a network error, a
// non-success status, or a broken reply stream. It is recoverable; the user
// may simply retry.
type TransportError struct {
	// Op names the operation, e.g. "fetch chats" or "stream".
	Op string
	// Status is the HTTP status, or 0 when no response was received.
	Status int
	// Detail is the service's error text from the response body, if any.
	Detail string
	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Op)
	if e.Status != 0 {
		fmt.Fprintf(&sb, ": status %d", e.Status)
	}
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is or wraps a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// ServiceReportedError is an error event sent by the service inside a
// reply stream. Message is meant to be shown to the user verbatim.
type ServiceReportedError struct {
	Message string
}

// Error implements the error interface.
func (e *ServiceReportedError) Error() string {
	return e.Message
}

// errorBody covers the error shapes the service and common proxies return.
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

// parseErrorDetail extracts a short human readable message from body.
func parseErrorDetail(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		if len(eb.Detail) > 0 {
			var s string
			if json.Unmarshal(eb.Detail, &s) == nil {
				return s
			}
			return string(eb.Detail)
		}
		if eb.Message != "" {
			return eb.Message
		}
		if eb.Error != "" {
			return eb.Error
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	return text
}
