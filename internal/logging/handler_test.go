// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/agora-forum/agora/pkg/errutil"
)

func newTestLogger(t *testing.T, opts Options) (*slog.Logger, *bytes.Buffer) {
	t.Helper()
	buf := new(bytes.Buffer)
	opts.Writer = buf
	if opts.Service == "" {
		opts.Service = "agora"
	}
	logger, err := New(opts)
	require.NoError(t, err)
	return logger, buf
}

// lastEntry decodes and consumes the buffered JSON record.
func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "Failed to parse JSON: %s", buf.String())
	buf.Reset()
	return entry
}

func TestNew_JSONFormat(t *testing.T) {
	logger, buf := newTestLogger(t, Options{Version: "1.0.0"})

	logger.InfoContext(context.Background(), "test message")

	entry := lastEntry(t, buf)
	assert.Equal(t, "test message", entry["msg"])
	assert.Equal(t, "agora", entry["service"])
	assert.Equal(t, "1.0.0", entry["version"])
	assert.Contains(t, entry, "time", "time field missing")
	assert.Contains(t, entry, "level", "level field missing")
}

func TestNew_TextFormat(t *testing.T) {
	logger, buf := newTestLogger(t, Options{Service: "agora-api", Version: "1.0.0", Format: "text"})

	logger.InfoContext(context.Background(), "test message")

	output := buf.String()
	assert.Contains(t, output, "test message")
	assert.Contains(t, output, "service=agora-api")
}

func TestNew_InvalidOptions(t *testing.T) {
	_, err := New(Options{Format: "xml"})
	errutil.AssertErrorCode(t, err, "LOG_FORMAT_INVALID")

	_, err = New(Options{Level: "loud"})
	errutil.AssertErrorCode(t, err, "LOG_LEVEL_INVALID")
}

func TestNew_Level(t *testing.T) {
	logger, buf := newTestLogger(t, Options{})
	logger.DebugContext(context.Background(), "hidden")
	assert.Empty(t, buf.String(), "info is the default level")

	logger, buf = newTestLogger(t, Options{Level: "debug"})
	logger.DebugContext(context.Background(), "shown")
	require.NotEmpty(t, buf.String())
	assert.Equal(t, "shown", lastEntry(t, buf)["msg"])
}

func TestHandler_TraceContext(t *testing.T) {
	logger, buf := newTestLogger(t, Options{})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)

	logger.InfoContext(ctx, "traced message")
	entry := lastEntry(t, buf)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])

	logger.InfoContext(context.Background(), "untraced")
	entry = lastEntry(t, buf)
	assert.NotContains(t, entry, "trace_id")
	assert.NotContains(t, entry, "span_id")
}

func TestHandler_RequestID(t *testing.T) {
	logger, buf := newTestLogger(t, Options{})

	ctx := WithRequestID(context.Background(), "01J0000000000000000000000")
	logger.InfoContext(ctx, "request message")
	assert.Equal(t, "01J0000000000000000000000", lastEntry(t, buf)["request_id"])

	logger.InfoContext(context.Background(), "no request")
	assert.NotContains(t, lastEntry(t, buf), "request_id")
}

func TestRedaction(t *testing.T) {
	logger, buf := newTestLogger(t, Options{})

	logger.InfoContext(context.Background(), "login",
		"username", "alice",
		"password", "hunter2",
		"Token", "d4f1",
	)

	entry := lastEntry(t, buf)
	assert.Equal(t, "alice", entry["username"])
	assert.Equal(t, Redacted, entry["password"])
	assert.Equal(t, Redacted, entry["Token"])
}

func TestRequestIDFromContext(t *testing.T) {
	_, ok := RequestIDFromContext(context.Background())
	assert.False(t, ok)

	_, ok = RequestIDFromContext(WithRequestID(context.Background(), ""))
	assert.False(t, ok)

	id, ok := RequestIDFromContext(WithRequestID(context.Background(), "abc"))
	assert.True(t, ok)
	assert.Equal(t, "abc", id)
}
