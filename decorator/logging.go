// Package decorator provides ready-made generic decorators for quiver
// handlers. Each type carries a marker directive so generated wiring can
// attach it to request types.
package decorator

import (
	"context"
	"log/slog"
	"time"

	"github.com/quiverdev/quiver"
)

// Logging wraps a handler with slog start/finish records.
//
//quiver:decorator Logged level="info"
type Logging[Req, Res any] struct {
	next   quiver.Handler[Req, Res]
	logger *slog.Logger
	level  slog.Level
}

// NewLogging builds the logging decorator around next. level is the
// string form slog understands, e.g. "info" or "debug"; unknown values
// fall back to info.
func NewLogging[Req, Res any](next quiver.Handler[Req, Res], logger *slog.Logger, level string) *Logging[Req, Res] {
	if logger == nil {
		logger = slog.Default()
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return &Logging[Req, Res]{next: next, logger: logger, level: lvl}
}

func (l *Logging[Req, Res]) Handle(ctx context.Context, req Req) (Res, error) {
	name := requestName(req)
	start := time.Now()

	l.logger.Log(ctx, l.level, "request started",
		slog.String("request", name),
	)

	res, err := l.next.Handle(ctx, req)
	duration := time.Since(start)

	if err != nil {
		l.logger.ErrorContext(ctx, "request failed",
			slog.String("request", name),
			slog.Duration("duration", duration),
			slog.Any("error", err),
		)
	} else {
		l.logger.Log(ctx, l.level, "request completed",
			slog.String("request", name),
			slog.Duration("duration", duration),
		)
	}

	return res, err
}

func requestName(req any) string {
	if s, ok := req.(interface{ String() string }); ok {
		return s.String()
	}
	return typeName(req)
}
