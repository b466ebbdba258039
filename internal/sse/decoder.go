// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// =============================================================================
// DECODER CONSTANTS
// =============================================================================

const (
	// DefaultMaxRecordSize bounds a single record still waiting for its separator.
	DefaultMaxRecordSize = 1 << 20

	// DefaultChunkSize is the read size used against the source.
	DefaultChunkSize = 4 * 1024
)

// separator ends a record.
var separator = []byte("\n\n")

// ErrRecordTooLarge is the cause reported for a record that grew past the
// configured limit without a separator. The record is skipped up to the next
// separator and decoding continues.
var ErrRecordTooLarge = errors.New("sse: record exceeds maximum size")

// oversizedSample bounds how much of a skipped record is kept for reporting.
const oversizedSample = 256

// =============================================================================
// OPTIONS
// =============================================================================

// Option configures a Decoder.
type Option func(*Decoder)

// WithMalformedHandler registers fn to observe records that were dropped
// because their payload could not be parsed or they exceeded the maximum
// record size.
func WithMalformedHandler(fn func(*MalformedRecordError)) Option {
	return func(d *Decoder) {
		d.onMalformed = fn
	}
}

// WithMaxRecordSize overrides DefaultMaxRecordSize. Values <= 0 are ignored.
func WithMaxRecordSize(n int) Option {
	return func(d *Decoder) {
		if n > 0 {
			d.maxRecord = n
		}
	}
}

// WithChunkSize overrides DefaultChunkSize. Values <= 0 are ignored.
func WithChunkSize(n int) Option {
	return func(d *Decoder) {
		if n > 0 {
			d.chunk = make([]byte, n)
		}
	}
}

// =============================================================================
// DECODER
// =============================================================================

// Decoder turns a byte stream into events, in arrival order.
//
// A Decoder is not safe for concurrent use and cannot be restarted: once
// Next returns an error (io.EOF included) every later call returns it too.
type Decoder struct {
	src         io.Reader
	buf         []byte
	scanFrom    int
	chunk       []byte
	pending     []Event
	skipping    bool
	err         error
	maxRecord   int
	onMalformed func(*MalformedRecordError)
}

// NewDecoder returns a decoder reading from r.
//
// r is wrapped in a streaming UTF-8 decoder, so a multi-byte character split
// across two reads is reassembled. A leading byte order mark is dropped,
// invalid sequences become U+FFFD and CRLF line endings become LF.
func NewDecoder(r io.Reader, opts ...Option) *Decoder {
	d := &Decoder{
		src:       transform.NewReader(r, transform.Chain(unicode.UTF8BOM.NewDecoder(), crlfNormalizer{})),
		maxRecord: DefaultMaxRecordSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.chunk == nil {
		d.chunk = make([]byte, DefaultChunkSize)
	}
	return d
}

// Next returns the next event. It returns io.EOF when the source ends; bytes
// after the last separator are discarded at that point. Any other error is
// the source's read error.
func (d *Decoder) Next() (Event, error) {
	for {
		if len(d.pending) > 0 {
			ev := d.pending[0]
			d.pending[0] = Event{}
			d.pending = d.pending[1:]
			return ev, nil
		}
		if d.err != nil {
			return Event{}, d.err
		}
		d.fill()
	}
}

// Events returns a single-use sequence over Next. The sequence stops after
// the first error; io.EOF ends it without being yielded.
func (d *Decoder) Events() iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		for {
			ev, err := d.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(Event{}, err)
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}

// Buffered returns the number of bytes held for an incomplete record.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// fill performs one read and queues every record it completes.
func (d *Decoder) fill() {
	n, err := d.src.Read(d.chunk)
	if n > 0 {
		d.buf = append(d.buf, d.chunk[:n]...)
		d.split()
	}
	if err != nil {
		d.buf = nil
		d.err = err
		return
	}
	if !d.skipping && len(d.buf) > d.maxRecord {
		d.dropOversized()
	}
}

// dropOversized reports the buffered fragment as malformed and skips input
// until the next separator.
func (d *Decoder) dropOversized() {
	if d.onMalformed != nil {
		d.onMalformed(&MalformedRecordError{
			Record: string(d.buf[:min(len(d.buf), oversizedSample)]),
			Err:    fmt.Errorf("%w: %d bytes without separator", ErrRecordTooLarge, len(d.buf)),
		})
	}
	d.skipping = true
	d.discardSkipped()
}

// discardSkipped drops skipped bytes, keeping only what could begin a
// separator completed by the next read.
func (d *Decoder) discardSkipped() {
	keep := min(len(d.buf), len(separator)-1)
	d.buf = append(d.buf[:0], d.buf[len(d.buf)-keep:]...)
	d.scanFrom = 0
}

// split cuts complete records off the front of the buffer and keeps the
// trailing fragment.
func (d *Decoder) split() {
	for {
		i := bytes.Index(d.buf[d.scanFrom:], separator)
		if i < 0 {
			if d.skipping {
				d.discardSkipped()
				return
			}
			// A separator may straddle this read and the next one.
			d.scanFrom = max(len(d.buf)-len(separator)+1, 0)
			return
		}
		end := d.scanFrom + i
		record := string(d.buf[:end])
		d.buf = d.buf[end+len(separator):]
		d.scanFrom = 0
		if d.skipping {
			d.skipping = false
			continue
		}
		d.handle(record)
	}
}

func (d *Decoder) handle(record string) {
	ev, ok, err := Parse(record)
	if err != nil {
		var malformed *MalformedRecordError
		if errors.As(err, &malformed) && d.onMalformed != nil {
			d.onMalformed(malformed)
		}
		return
	}
	if ok {
		d.pending = append(d.pending, ev)
	}
}

// =============================================================================
// LINE ENDINGS
// =============================================================================

// crlfNormalizer rewrites CRLF as LF so proxies that reframe the stream with
// "\r\n\r\n" still produce records. A lone CR is kept.
type crlfNormalizer struct{ transform.NopResetter }

func (crlfNormalizer) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		c := src[nSrc]
		if c == '\r' {
			if nSrc+1 == len(src) && !atEOF {
				return nDst, nSrc, transform.ErrShortSrc
			}
			if nSrc+1 < len(src) && src[nSrc+1] == '\n' {
				nSrc++
				continue
			}
		}
		if nDst == len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		dst[nDst] = c
		nDst++
		nSrc++
	}
	return nDst, nSrc, nil
}
