package publisher

import (
	"context"
	"log/slog"

	"reader_sync/internal/domain"
)

// Log writes signals to a structured logger.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger.With("component", "signals")}
}

func (l *Log) Notify(ctx context.Context, signal domain.Signal) error {
	attrs := []any{"kind", signal.Kind}
	switch signal.Kind {
	case domain.SignalNavigate:
		attrs = append(attrs, "route", signal.Route)
	case domain.SignalLoading:
		attrs = append(attrs, "flag", signal.Flag, "active", signal.Active)
	case domain.SignalError:
		attrs = append(attrs, "message", signal.Message)
	}

	l.logger.DebugContext(ctx, "signal", attrs...)
	return nil
}
