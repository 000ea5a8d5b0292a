// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Agora Contributors

// Package logging builds the server's slog logger: JSON or text output,
// service and version on every record, OpenTelemetry and request ids from
// the context, and secrets redacted.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/samber/oops"
)

// Redacted replaces the value of sensitive attributes.
const Redacted = "[REDACTED]"

// sensitiveKeys are attribute keys whose values never reach the output.
var sensitiveKeys = map[string]bool{
	"password":      true,
	"new_password":  true,
	"password_hash": true,
	"token":         true,
	"token_hash":    true,
	"cookie":        true,
}

// Options configures New.
type Options struct {
	Service string
	Version string

	// Format is "json" (default) or "text".
	Format string

	// Level is a slog level name such as "debug" or "warn". Defaults to info.
	Level string

	// Writer defaults to os.Stderr.
	Writer io.Writer
}

// New creates a logger from opts.
func New(opts Options) (*slog.Logger, error) {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	var level slog.Level
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, oops.Code("LOG_LEVEL_INVALID").With("level", opts.Level).Wrap(err)
		}
	}

	handlerOpts := &slog.HandlerOptions{Level: level, ReplaceAttr: redact}

	var base slog.Handler
	switch opts.Format {
	case "", "json":
		base = slog.NewJSONHandler(w, handlerOpts)
	case "text":
		base = slog.NewTextHandler(w, handlerOpts)
	default:
		return nil, oops.Code("LOG_FORMAT_INVALID").Errorf("log format must be 'json' or 'text', got %q", opts.Format)
	}

	base = base.WithAttrs([]slog.Attr{
		slog.String("service", opts.Service),
		slog.String("version", opts.Version),
	})
	return slog.New(contextHandler{next: base}), nil
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if sensitiveKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, Redacted)
	}
	return a
}
