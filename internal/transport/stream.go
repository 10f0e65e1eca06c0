// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jeranaias/codelink-tui/internal/protocol"
)

// =============================================================================
// SSE READER
// =============================================================================

// MaxEventSize is the maximum allowed size for a single SSE event (256KB).
// Tool outputs can be large; anything past this is a protocol violation.
const MaxEventSize = 256 * 1024

// ErrMalformedEvent marks a single event whose payload failed to decode.
// The stream itself is still healthy; callers should log and read on.
var ErrMalformedEvent = errors.New("malformed event")

// SSEReader parses server-sent events from a byte stream.
type SSEReader struct {
	reader *bufio.Reader
}

// NewSSEReader creates an SSE reader over r.
func NewSSEReader(r io.Reader) *SSEReader {
	return &SSEReader{reader: bufio.NewReader(r)}
}

// ReadEvent reads the next SSE event and returns its data payload.
// Returns io.EOF when the stream ends.
func (s *SSEReader) ReadEvent() ([]byte, error) {
	var dataLines [][]byte
	size := 0

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF && len(dataLines) > 0 {
				return bytes.Join(dataLines, []byte("\n")), nil
			}
			return nil, err
		}

		line = bytes.TrimRight(line, "\r\n")

		// Blank line terminates the event.
		if len(line) == 0 {
			if len(dataLines) > 0 {
				return bytes.Join(dataLines, []byte("\n")), nil
			}
			continue
		}

		if bytes.HasPrefix(line, []byte("data:")) {
			data := bytes.TrimSpace(line[5:])
			size += len(data)
			if size > MaxEventSize {
				return nil, fmt.Errorf("event too large: %d bytes", size)
			}
			dataLines = append(dataLines, data)
		}
		// event:, id:, retry:, and comment lines are not used by this
		// protocol and are skipped.
	}
}

// =============================================================================
// EVENT STREAM
// =============================================================================

// EventStream is one live connection to the server's event feed. It is a
// lazy, non-restartable sequence: once Next returns a non-nil error other
// than ErrMalformedEvent, the stream is dead and a new one must be opened.
type EventStream struct {
	body   io.ReadCloser
	reader *SSEReader
	cancel context.CancelFunc
}

// OpenEventStream opens the server's event feed. The stream stays open
// until the context is cancelled, Close is called, or the connection
// drops.
func (c *Client) OpenEventStream(ctx context.Context) (*EventStream, error) {
	endpoint, err := c.endpoint("/event")
	if err != nil {
		return nil, err
	}

	// Child context so Close can tear down the response body read.
	streamCtx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("User-Agent", userAgent)

	resp, err := sharedStreamingClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open event stream: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		cancel()
		return nil, decodeError(resp.StatusCode, body)
	}

	return &EventStream{
		body:   resp.Body,
		reader: NewSSEReader(resp.Body),
		cancel: cancel,
	}, nil
}

// Next blocks until the next event arrives. A decode failure on a single
// event returns ErrMalformedEvent; the stream remains readable. Any other
// error terminates the stream.
func (s *EventStream) Next() (*protocol.Event, error) {
	data, err := s.reader.ReadEvent()
	if err != nil {
		return nil, err
	}

	var ev protocol.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("%w: missing type tag", ErrMalformedEvent)
	}
	return &ev, nil
}

// Close tears the stream down. Safe to call more than once.
func (s *EventStream) Close() error {
	s.cancel()
	return s.body.Close()
}
