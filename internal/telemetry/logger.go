// Package telemetry provides the ambient logging and metrics stack: a
// zerolog logger enriched with OTel trace context, and an OTel-backed
// metrics interface with an in-memory test double.
package telemetry

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// Init configures the global zerolog logger. If logPath is empty, logs go
// to stdout. Mirrors the teacher's InitLogger.
func Init(logPath string, level string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	var w io.Writer = os.Stdout
	if logPath != "" {
		if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			w = f
		}
	}
	log.Logger = log.Output(w).With().Timestamp().Logger()
	level = strings.ToLower(strings.TrimSpace(level))
	lvl := zerolog.InfoLevel
	if level != "" {
		if l, err := zerolog.ParseLevel(level); err == nil {
			lvl = l
		}
	}
	zerolog.SetGlobalLevel(lvl)
}

// LoggerWithTrace returns a zerolog.Logger enriched with trace_id/span_id
// from ctx, if present. Every store/retrieve path logs through this so
// request-scoped logs carry their trace context.
func LoggerWithTrace(ctx context.Context) *zerolog.Logger {
	l := log.Logger
	if ctx == nil {
		return &l
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		l = l.With().Str("trace_id", sc.TraceID().String()).Logger()
		if sc.HasSpanID() {
			l = l.With().Str("span_id", sc.SpanID().String()).Logger()
		}
	}
	return &l
}
