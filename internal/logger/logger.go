// Package logger builds the zerolog root logger and carries request,
// session and resolver-stream fields through context.
package logger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level   string
	Console bool
	// SampleN keeps one in N debug and info events; warnings and errors are
	// never sampled.
	SampleN   int
	Service   string
	Component string
}

type field string

const (
	RequestID field = "request_id"
	SessionID field = "session_id"
	Component field = "component"
	Stream    field = "stream"
)

// fields are written in this order by FromContext.
var fields = []field{RequestID, SessionID, Component, Stream}

func with(ctx context.Context, f field, v string) context.Context {
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, f, v)
}

// WithRequestID stores reqID, generating one when empty.
func WithRequestID(ctx context.Context, reqID string) context.Context {
	if reqID == "" {
		reqID = NewID()
	}
	return with(ctx, RequestID, reqID)
}

func WithSessionID(ctx context.Context, id string) context.Context { return with(ctx, SessionID, id) }
func WithComponent(ctx context.Context, c string) context.Context  { return with(ctx, Component, c) }
func WithStream(ctx context.Context, s string) context.Context     { return with(ctx, Stream, s) }

// Value returns the context field f, or "".
func Value(ctx context.Context, f field) string {
	s, _ := ctx.Value(f).(string)
	return s
}

func NewID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// Build sets the global level and field names and returns the root logger.
// Unknown or empty levels mean info.
func Build(cfg Config, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFieldName = "timestamp"
	zerolog.LevelFieldName = "level"
	zerolog.MessageFieldName = "msg"

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if cfg.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	zl := zerolog.New(out)
	if cfg.SampleN > 1 {
		s := &zerolog.BasicSampler{N: uint32(min(cfg.SampleN, math.MaxInt32))}
		zl = zl.Sample(zerolog.LevelSampler{DebugSampler: s, InfoSampler: s})
	}

	c := zl.With().Timestamp()
	if cfg.Service != "" {
		c = c.Str("service", cfg.Service)
	}
	if cfg.Component != "" {
		c = c.Str(string(Component), cfg.Component)
	}
	return c.Logger()
}

// FromContext returns a child of parent carrying the context fields.
func FromContext(ctx context.Context, parent *zerolog.Logger) *zerolog.Logger {
	base := zerolog.Nop()
	if parent != nil {
		base = *parent
	}
	c := base.With()
	for _, f := range fields {
		if v := Value(ctx, f); v != "" {
			c = c.Str(string(f), v)
		}
	}
	l := c.Logger()
	return &l
}
