// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/text/transform"
)

// sampleStream mixes noise, a malformed record, multi-byte text and a
// trailing unterminated record.
const sampleStream = ": ping\n\n" +
	"data: {\"type\":\"chat_data\",\"data\":{\"chat_id\":\"c1\"}}\n\n" +
	"event: keepalive\n\n" +
	"data: {\"type\":\"token\",\"data\":{\"content\":\"Привет, \"}}\n\n" +
	"data: {not json}\n\n" +
	"data:\n\n" +
	"  data: {\"type\":\"token\",\"data\":{\"content\":\"мир 🌍\"}}  \n\n" +
	"data: {\"type\":\"product\",\"data\":{\"sku\":\"A-1\",\"price\":12.5}}\n\n" +
	"data: {\"type\":\"done\",\"data\":{}}\n\n" +
	"data: {\"type\":\"token\",\"data\":{\"content\":\"trunc"

func expectedSample() []Event {
	return []Event{
		ChatData("c1"),
		Token("Привет, "),
		Token("мир 🌍"),
		{Kind: KindProduct, Data: map[string]any{"sku": "A-1", "price": 12.5}},
		Done(),
	}
}

func collect(t *testing.T, d *Decoder) []Event {
	t.Helper()
	var got []Event
	for {
		ev, err := d.Next()
		if errors.Is(err, io.EOF) {
			return got
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		got = append(got, ev)
	}
}

// splitReader yields the input in two reads split at a fixed byte offset.
type splitReader struct {
	parts [][]byte
}

func (r *splitReader) Read(p []byte) (int, error) {
	for len(r.parts) > 0 && len(r.parts[0]) == 0 {
		r.parts = r.parts[1:]
	}
	if len(r.parts) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.parts[0])
	r.parts[0] = r.parts[0][n:]
	return n, nil
}

func TestDecoderSample(t *testing.T) {
	got := collect(t, NewDecoder(strings.NewReader(sampleStream)))
	if diff := cmp.Diff(expectedSample(), got); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestDecoderChunkingInvariance(t *testing.T) {
	raw := []byte(sampleStream)
	want := expectedSample()

	// Every single split point, including inside multi-byte characters.
	for i := 0; i <= len(raw); i++ {
		r := &splitReader{parts: [][]byte{append([]byte(nil), raw[:i]...), append([]byte(nil), raw[i:]...)}}
		got := collect(t, NewDecoder(r))
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("split at %d: events mismatch (-want +got):\n%s", i, diff)
		}
	}

	t.Run("one byte at a time", func(t *testing.T) {
		got := collect(t, NewDecoder(iotest.OneByteReader(strings.NewReader(sampleStream))))
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("events mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("small chunk size", func(t *testing.T) {
		got := collect(t, NewDecoder(strings.NewReader(sampleStream), WithChunkSize(3)))
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("events mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestDecoderIgnoresNonDataRecords(t *testing.T) {
	stream := ": heartbeat\n\n" +
		"event: token\n\n" +
		"id: 7\n\n" +
		"{\"type\":\"token\",\"data\":{\"content\":\"x\"}}\n\n" +
		"retry: 1000\n\n"
	got := collect(t, NewDecoder(strings.NewReader(stream)))
	if len(got) != 0 {
		t.Errorf("expected no events, got %v", got)
	}
}

func TestDecoderSkipsMalformedAndContinues(t *testing.T) {
	stream := "data: {\"type\":\"token\",\"data\":{\"content\":\"a\"}}\n\n" +
		"data: {broken\n\n" +
		"data: {\"type\":\"mystery\",\"data\":{}}\n\n" +
		"data: {\"type\":\"token\",\"data\":\"not an object\"}\n\n" +
		"data: {\"type\":\"token\",\"data\":{\"content\":\"b\"}}\n\n"

	var dropped []*MalformedRecordError
	d := NewDecoder(strings.NewReader(stream), WithMalformedHandler(func(err *MalformedRecordError) {
		dropped = append(dropped, err)
	}))
	got := collect(t, d)

	want := []Event{Token("a"), Token("b")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if len(dropped) != 3 {
		t.Fatalf("dropped %d records, want 3", len(dropped))
	}
	if !errors.Is(dropped[1], ErrUnknownKind) {
		t.Errorf("second drop should wrap ErrUnknownKind, got %v", dropped[1])
	}
}

func TestDecoderDiscardsUnterminatedTail(t *testing.T) {
	d := NewDecoder(strings.NewReader("data: {\"type\":\"done\",\"data\":{}}"))
	if _, err := d.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("Next() error = %v, want io.EOF", err)
	}
	if d.Buffered() != 0 {
		t.Errorf("Buffered() = %d after EOF", d.Buffered())
	}
}

func TestDecoderMissingDataField(t *testing.T) {
	got := collect(t, NewDecoder(strings.NewReader("data: {\"type\":\"done\"}\n\n")))
	if len(got) != 1 || got[0].Kind != KindDone || got[0].Data == nil {
		t.Fatalf("got %#v, want one done event with empty data", got)
	}
}

func TestDecoderSourceError(t *testing.T) {
	boom := errors.New("connection reset")
	r := io.MultiReader(
		strings.NewReader("data: {\"type\":\"token\",\"data\":{\"content\":\"a\"}}\n\ndata: {\"ty"),
		iotest.ErrReader(boom),
	)
	d := NewDecoder(r)

	ev, err := d.Next()
	if err != nil || ev.Content() != "a" {
		t.Fatalf("first Next() = %v, %v", ev, err)
	}
	if _, err := d.Next(); !errors.Is(err, boom) {
		t.Fatalf("second Next() error = %v, want %v", err, boom)
	}
	if _, err := d.Next(); !errors.Is(err, boom) {
		t.Errorf("decoder should stay failed, got %v", err)
	}
}

func TestDecoderSkipsOversizedRecord(t *testing.T) {
	stream := "data: {\"type\":\"token\",\"data\":{\"content\":\"" + strings.Repeat("x", 64) + "\"}}\n\n" +
		"data: {\"type\":\"token\",\"data\":{\"content\":\"after\"}}\n\n"

	for chunk := 1; chunk <= 16; chunk++ {
		var dropped []*MalformedRecordError
		d := NewDecoder(strings.NewReader(stream),
			WithMaxRecordSize(64),
			WithChunkSize(chunk),
			WithMalformedHandler(func(err *MalformedRecordError) { dropped = append(dropped, err) }))

		got := collect(t, d)
		if diff := cmp.Diff([]Event{Token("after")}, got); diff != "" {
			t.Fatalf("chunk %d: events mismatch (-want +got):\n%s", chunk, diff)
		}
		if len(dropped) != 1 || !errors.Is(dropped[0], ErrRecordTooLarge) {
			t.Fatalf("chunk %d: dropped = %v, want one ErrRecordTooLarge", chunk, dropped)
		}
		if d.Buffered() != 0 {
			t.Errorf("chunk %d: Buffered() = %d after EOF", chunk, d.Buffered())
		}
	}
}

func TestDecoderNormalizesCRLF(t *testing.T) {
	raw := []byte(strings.ReplaceAll(sampleStream, "\n", "\r\n"))
	want := expectedSample()
	for i := 0; i <= len(raw); i++ {
		r := &splitReader{parts: [][]byte{append([]byte(nil), raw[:i]...), append([]byte(nil), raw[i:]...)}}
		got := collect(t, NewDecoder(r))
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("split at %d: events mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestCRLFNormalizerKeepsLoneCR(t *testing.T) {
	got, _, err := transform.String(crlfNormalizer{}, "a\rb\r\nc\r")
	if err != nil {
		t.Fatalf("transform.String() error = %v", err)
	}
	if got != "a\rb\nc\r" {
		t.Errorf("got %q, want %q", got, "a\rb\nc\r")
	}
}

func TestDecoderStripsBOMAndRepairsInvalidUTF8(t *testing.T) {
	stream := "\xef\xbb\xbfdata: {\"type\":\"token\",\"data\":{\"content\":\"a\xffb\"}}\n\n"
	got := collect(t, NewDecoder(strings.NewReader(stream)))
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	if c := got[0].Content(); c != "a�b" {
		t.Errorf("Content() = %q, want replacement character", c)
	}
}

func TestDecoderEventsIterator(t *testing.T) {
	var kinds []Kind
	for ev, err := range NewDecoder(strings.NewReader(sampleStream)).Events() {
		if err != nil {
			t.Fatalf("iterator error = %v", err)
		}
		kinds = append(kinds, ev.Kind)
		if ev.Kind == KindToken {
			break
		}
	}
	want := []Kind{KindChatData, KindToken}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("kinds mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	var sb strings.Builder
	for _, ev := range expectedSample() {
		if err := Encode(&sb, ev); err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		if err := EncodeComment(&sb, "ping"); err != nil {
			t.Fatalf("EncodeComment() error = %v", err)
		}
	}
	got := collect(t, NewDecoder(strings.NewReader(sb.String())))
	if diff := cmp.Diff(expectedSample(), got); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestEventAccessors(t *testing.T) {
	ev := Event{Kind: KindError, Data: map[string]any{"message": "boom", "content": 42}}
	if ev.ErrorMessage() != "boom" {
		t.Errorf("ErrorMessage() = %q", ev.ErrorMessage())
	}
	if ev.Content() != "" {
		t.Errorf("non-string content should read as empty, got %q", ev.Content())
	}
	if !KindDone.Terminal() || !KindError.Terminal() || KindToken.Terminal() {
		t.Error("Terminal() classification wrong")
	}
	if !KindArticle.Passthrough() || KindChatData.Passthrough() {
		t.Error("Passthrough() classification wrong")
	}
}

func TestFromMeta(t *testing.T) {
	live := []Event{{Kind: KindProduct, Data: map[string]any{"sku": "A-1"}}}
	if diff := cmp.Diff(live, FromMeta(map[string]any{MetaKey: live})); diff != "" {
		t.Errorf("live events mismatch (-want +got):\n%s", diff)
	}

	decoded := map[string]any{MetaKey: []any{
		map[string]any{"type": "tool_start", "data": map[string]any{"name": "search"}},
		map[string]any{"type": "bogus", "data": map[string]any{}},
		"not an object",
		map[string]any{"type": "article"},
	}}
	want := []Event{
		{Kind: KindToolStart, Data: map[string]any{"name": "search"}},
		{Kind: KindArticle, Data: map[string]any{}},
	}
	if diff := cmp.Diff(want, FromMeta(decoded)); diff != "" {
		t.Errorf("decoded events mismatch (-want +got):\n%s", diff)
	}

	if got := FromMeta(nil); got != nil {
		t.Errorf("FromMeta(nil) = %v, want nil", got)
	}
}
