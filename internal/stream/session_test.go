// Copyright (c) 2025 Studychat Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveSegments returns a test server that writes the given byte segments
// in order, flushing between each, to simulate arbitrary network delivery
// boundaries.
func serveSegments(t *testing.T, segments ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		require.True(t, ok, "test server must support flushing")

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		for _, seg := range segments {
			fmt.Fprint(w, seg)
			flusher.Flush()
		}
	}))
}

// collect drains a session's events until the channel closes.
func collect(t *testing.T, s *Session) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("timed out waiting for stream events")
		}
	}
}

func openSession(t *testing.T, serverURL string) *Session {
	t.Helper()
	client := NewClient(serverURL)
	s, err := client.Open(context.Background(), &ChatRequest{Message: "hi"})
	require.NoError(t, err)
	return s
}

// =============================================================================
// HAPPY PATH
// =============================================================================

func TestStreamCompletes(t *testing.T) {
	server := serveSegments(t,
		"data: {\"content\":\"Hello\",\"is_final\":false}\n",
		"data: {\"content\":\" there\",\"is_final\":false}\n",
		"data: [DONE]\n",
	)
	defer server.Close()

	events := collect(t, openSession(t, server.URL))

	require.Len(t, events, 3)
	assert.Equal(t, "Hello", events[0].Chunk.Content)
	assert.Equal(t, " there", events[1].Chunk.Content)
	assert.True(t, events[2].Done)
}

func TestChunkOrderPreserved(t *testing.T) {
	var segments []string
	for i := 0; i < 50; i++ {
		segments = append(segments, fmt.Sprintf("data: {\"content\":\"%02d\",\"is_final\":false}\n", i))
	}
	segments = append(segments, "data: [DONE]\n")

	server := serveSegments(t, segments...)
	defer server.Close()

	events := collect(t, openSession(t, server.URL))
	require.Len(t, events, 51)
	for i := 0; i < 50; i++ {
		assert.Equal(t, fmt.Sprintf("%02d", i), events[i].Chunk.Content)
	}
	assert.True(t, events[50].Done)
}

func TestChunkCarriesIdentity(t *testing.T) {
	server := serveSegments(t,
		"data: {\"content\":\"x\",\"is_final\":false,\"conversation_id\":\"c1\",\"message_id\":\"m1\"}\n",
		"data: [DONE]\n",
	)
	defer server.Close()

	events := collect(t, openSession(t, server.URL))
	require.Len(t, events, 2)
	assert.Equal(t, "c1", events[0].Chunk.ConversationID)
	assert.Equal(t, "m1", events[0].Chunk.MessageID)
}

// =============================================================================
// LINE REASSEMBLY
// =============================================================================

// TestSplitInvariance verifies that the decoded chunk sequence is identical
// no matter how the byte stream is cut into network deliveries.
func TestSplitInvariance(t *testing.T) {
	wire := "data: {\"content\":\"alpha\",\"is_final\":false}\n" +
		"data: {\"content\":\"beta\",\"is_final\":false}\n" +
		"data: {\"content\":\"gamma\",\"is_final\":false}\n" +
		"data: [DONE]\n"

	decode := func(segSize int) []string {
		var segments []string
		for i := 0; i < len(wire); i += segSize {
			end := i + segSize
			if end > len(wire) {
				end = len(wire)
			}
			segments = append(segments, wire[i:end])
		}

		server := serveSegments(t, segments...)
		defer server.Close()

		var contents []string
		for _, ev := range collect(t, openSession(t, server.URL)) {
			if ev.Chunk != nil {
				contents = append(contents, ev.Chunk.Content)
			}
		}
		return contents
	}

	want := []string{"alpha", "beta", "gamma"}
	for _, segSize := range []int{1, 2, 3, 7, 16, len(wire)} {
		t.Run(fmt.Sprintf("segment_size_%d", segSize), func(t *testing.T) {
			assert.Equal(t, want, decode(segSize))
		})
	}
}

// TestLineSplitInsideJSONString reproduces a delivery boundary landing in
// the middle of a JSON string value.
func TestLineSplitInsideJSONString(t *testing.T) {
	server := serveSegments(t,
		"data: {\"content\":\"Hel",
		"lo world\",\"is_final\":false}\n",
		"data: [DONE]\n",
	)
	defer server.Close()

	events := collect(t, openSession(t, server.URL))
	require.Len(t, events, 2)
	assert.Equal(t, "Hello world", events[0].Chunk.Content)
	assert.True(t, events[1].Done)
}

func TestManyLinesInOneDelivery(t *testing.T) {
	server := serveSegments(t,
		"data: {\"content\":\"a\",\"is_final\":false}\ndata: {\"content\":\"b\",\"is_final\":false}\ndata: [DONE]\n",
	)
	defer server.Close()

	events := collect(t, openSession(t, server.URL))
	require.Len(t, events, 3)
	assert.Equal(t, "a", events[0].Chunk.Content)
	assert.Equal(t, "b", events[1].Chunk.Content)
	assert.True(t, events[2].Done)
}

// =============================================================================
// TERMINATION
// =============================================================================

// TestFinalChunkEndsStream verifies a chunk with is_final=true terminates
// the stream on its own; the trailing [DONE] line is never decoded.
func TestFinalChunkEndsStream(t *testing.T) {
	server := serveSegments(t,
		"data: {\"content\":\"Hi\",\"is_final\":true}\ndata: [DONE]\n",
	)
	defer server.Close()

	events := collect(t, openSession(t, server.URL))
	require.Len(t, events, 2)
	assert.Equal(t, "Hi", events[0].Chunk.Content)
	assert.True(t, events[0].Chunk.IsFinal)
	assert.True(t, events[1].Done)
}

// TestBodyCloseEndsStream verifies EOF without a sentinel still terminates
// cleanly, since the protocol allows the stream to end on body close.
func TestBodyCloseEndsStream(t *testing.T) {
	server := serveSegments(t, "data: {\"content\":\"partial\",\"is_final\":false}\n")
	defer server.Close()

	events := collect(t, openSession(t, server.URL))
	require.Len(t, events, 2)
	assert.Equal(t, "partial", events[0].Chunk.Content)
	assert.True(t, events[1].Done)
}

func TestExactlyOneTerminalEvent(t *testing.T) {
	server := serveSegments(t,
		"data: {\"content\":\"x\",\"is_final\":true}\ndata: [DONE]\ndata: [DONE]\n",
	)
	defer server.Close()

	terminal := 0
	for _, ev := range collect(t, openSession(t, server.URL)) {
		if ev.IsTerminal() {
			terminal++
		}
	}
	assert.Equal(t, 1, terminal)
}

// =============================================================================
// PROTOCOL TOLERANCE
// =============================================================================

func TestMalformedLinesSkipped(t *testing.T) {
	server := serveSegments(t,
		"data: {not json at all\n",
		": comment line\n",
		"event: noise\n",
		"data: {\"content\":\"ok\",\"is_final\":false}\n",
		"\n",
		"data: [DONE]\n",
	)
	defer server.Close()

	events := collect(t, openSession(t, server.URL))
	require.Len(t, events, 2)
	assert.Equal(t, "ok", events[0].Chunk.Content)
	assert.True(t, events[1].Done)
}

func TestOversizedLineSkippedStreamContinues(t *testing.T) {
	huge := "data: {\"content\":\"" + strings.Repeat("x", 2*MaxLineSize) + "\",\"is_final\":false}\n"
	server := serveSegments(t,
		huge,
		"data: {\"content\":\"after\",\"is_final\":false}\n",
		"data: [DONE]\n",
	)
	defer server.Close()

	events := collect(t, openSession(t, server.URL))
	require.Len(t, events, 2)
	assert.Equal(t, "after", events[0].Chunk.Content)
	assert.True(t, events[1].Done)
}

func TestOversizedLineAtEOFEndsStream(t *testing.T) {
	server := serveSegments(t, "data: "+strings.Repeat("y", 2*MaxLineSize))
	defer server.Close()

	events := collect(t, openSession(t, server.URL))
	require.Len(t, events, 1)
	assert.True(t, events[0].Done)
}

// =============================================================================
// ERRORS
// =============================================================================

func TestHTTPErrorSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"AI Service Error","message":"upstream unavailable","type":"service_error"}`))
	}))
	defer server.Close()

	events := collect(t, openSession(t, server.URL))
	require.Len(t, events, 1)
	require.Error(t, events[0].Err)

	var tErr *TransportError
	require.True(t, errors.As(events[0].Err, &tErr))
	assert.Equal(t, KindHTTP, tErr.Kind)
	assert.Equal(t, http.StatusBadGateway, tErr.Status)
	assert.Equal(t, "upstream unavailable", tErr.Message)
}

func TestConnectionRefusedSurfacedAsNetwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	events := collect(t, openSession(t, server.URL))
	require.Len(t, events, 1)

	var tErr *TransportError
	require.True(t, errors.As(events[0].Err, &tErr))
	assert.Equal(t, KindNetwork, tErr.Kind)
}

// =============================================================================
// CANCELLATION
// =============================================================================

// TestCloseStopsSilently verifies that cancelling mid-stream produces no
// error event and no further chunks: the channel just closes.
func TestCloseStopsSilently(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "data: {\"content\":\"first\",\"is_final\":false}\n")
		flusher.Flush()
		close(started)
		<-release // hold the stream open
	}))
	defer server.Close()
	defer close(release)

	s := openSession(t, server.URL)

	// Wait for the first chunk, then abort.
	select {
	case ev := <-s.Events():
		require.NotNil(t, ev.Chunk)
		assert.Equal(t, "first", ev.Chunk.Content)
	case <-time.After(5 * time.Second):
		t.Fatal("no first chunk")
	}
	<-started
	s.Close()

	// Remaining events must not include an error or another chunk.
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				return
			}
			assert.NoError(t, ev.Err, "abort must not surface as an error")
			assert.Nil(t, ev.Chunk, "no chunks after close")
		case <-timeout:
			t.Fatal("channel did not close after Close()")
		}
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	server := serveSegments(t, "data: [DONE]\n")
	defer server.Close()

	s := openSession(t, server.URL)
	collect(t, s)
	s.Close()
	s.Close()
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestChatRequestValidate(t *testing.T) {
	long := make([]byte, MaxMessageLen+1)
	for i := range long {
		long[i] = 'a'
	}

	tests := []struct {
		name    string
		req     ChatRequest
		wantErr error
	}{
		{"valid", ChatRequest{Message: "hi"}, nil},
		{"valid with params", ChatRequest{Message: "hi", Temperature: 0.7, MaxTokens: 4096}, nil},
		{"empty message", ChatRequest{Message: ""}, ErrEmptyMessage},
		{"whitespace message", ChatRequest{Message: "   "}, ErrEmptyMessage},
		{"too long", ChatRequest{Message: string(long)}, ErrMessageTooLong},
		{"temperature too high", ChatRequest{Message: "hi", Temperature: 2.5}, ErrBadTemperature},
		{"negative temperature", ChatRequest{Message: "hi", Temperature: -0.1}, ErrBadTemperature},
		{"max tokens too high", ChatRequest{Message: "hi", MaxTokens: MaxTokensLimit + 1}, ErrBadMaxTokens},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}

func TestOpenRejectsInvalidRequest(t *testing.T) {
	client := NewClient("http://localhost:0")
	s, err := client.Open(context.Background(), &ChatRequest{Message: ""})
	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

// =============================================================================
// ERROR CLASSIFICATION
// =============================================================================

type fakeTimeoutErr struct{}

func (fakeTimeoutErr) Error() string   { return "i/o timeout" }
func (fakeTimeoutErr) Timeout() bool   { return true }
func (fakeTimeoutErr) Temporary() bool { return true }

func TestClassifyErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind ErrorKind
	}{
		{"deadline exceeded", context.DeadlineExceeded, KindTimeout},
		{"net timeout", fakeTimeoutErr{}, KindTimeout},
		{"url error", &url.Error{Op: "Post", URL: "http://x", Err: errors.New("connection refused")}, KindNetwork},
		{"op error", &net.OpError{Op: "read", Err: errors.New("reset")}, KindNetwork},
		{"anything else", errors.New("boom"), KindUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyErr(tc.err)
			assert.Equal(t, tc.kind, got.Kind)
		})
	}
}

func TestExtractAPIError(t *testing.T) {
	e := extractAPIError(400, []byte(`{"error":"Validation Error","message":"Message cannot be empty","type":"validation_error"}`))
	assert.Equal(t, KindHTTP, e.Kind)
	assert.Equal(t, 400, e.Status)
	assert.Equal(t, "Message cannot be empty", e.Message)

	e = extractAPIError(500, []byte(`{"error":"Internal Error"}`))
	assert.Equal(t, "Internal Error", e.Message)

	e = extractAPIError(503, []byte("plain text failure"))
	assert.Equal(t, "plain text failure", e.Message)

	e = extractAPIError(502, nil)
	assert.Equal(t, "request failed", e.Message)
}

func TestErrorKindString(t *testing.T) {
	assert.Equal(t, "http", KindHTTP.String())
	assert.Equal(t, "network", KindNetwork.String())
	assert.Equal(t, "timeout", KindTimeout.String())
	assert.Equal(t, "unknown", KindUnknown.String())
}
