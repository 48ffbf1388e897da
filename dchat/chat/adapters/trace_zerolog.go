package adapters

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	ports "github.com/ZanzyTHEbar/docuchat/dchat/chat/ports"
)

// ZerologTracer implements the Tracer port on a zerolog logger. Spans are
// child loggers carried through the context so events inside a turn share
// its fields.
type ZerologTracer struct {
	logger zerolog.Logger
}

// NewZerologTracer creates a tracer writing to the given logger.
func NewZerologTracer(logger zerolog.Logger) *ZerologTracer {
	return &ZerologTracer{logger: logger}
}

type spanLoggerKey struct{}

// StartSpan opens a span and returns the enriched context plus its finish
// function. Finish logs at debug on success and error on failure.
func (t *ZerologTracer) StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, func(err error)) {
	builder := t.logger.With().Str("span", name)
	for k, v := range attrs {
		builder = builder.Interface(k, v)
	}
	spanLogger := builder.Logger()
	ctx = context.WithValue(ctx, spanLoggerKey{}, spanLogger)

	start := time.Now()
	spanLogger.Debug().Msg("span start")

	finish := func(err error) {
		ev := spanLogger.Debug()
		if err != nil {
			ev = spanLogger.Error().Err(err)
		}
		ev.Dur("duration", time.Since(start)).Msg("span end")
	}
	return ctx, finish
}

// Event logs a point event against the span in ctx, falling back to the
// tracer's own logger outside any span.
func (t *ZerologTracer) Event(ctx context.Context, name string, attrs map[string]any) {
	logger := t.logger
	if spanLogger, ok := ctx.Value(spanLoggerKey{}).(zerolog.Logger); ok {
		logger = spanLogger
	}
	ev := logger.Debug().Str("event", name)
	for k, v := range attrs {
		ev = ev.Interface(k, v)
	}
	ev.Msg("trace event")
}

// Ensure ZerologTracer implements the Tracer interface.
var _ ports.Tracer = (*ZerologTracer)(nil)
