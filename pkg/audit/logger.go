package audit

import (
	"context"
	"log/slog"
)

// Appender persists sealed invocations. *Store satisfies it.
type Appender interface {
	Append(ctx context.Context, inv *Invocation) error
}

// Logger wraps an Appender and emits structured logs alongside writes.
type Logger struct {
	store Appender
	log   *slog.Logger
}

// NewLogger creates an audit logger backed by the given store.
func NewLogger(store Appender, log *slog.Logger) *Logger {
	if log == nil {
		log = slog.Default()
	}
	return &Logger{store: store, log: log}
}

// Record persists and logs the invocation.
func (l *Logger) Record(ctx context.Context, inv *Invocation) error {
	if err := l.store.Append(ctx, inv); err != nil {
		l.log.ErrorContext(ctx, "audit record failed",
			"invocation_id", inv.InvocationID,
			"client_id", inv.ClientID,
			"error", err,
		)
		return err
	}

	l.log.InfoContext(ctx, "invocation recorded",
		"invocation_id", inv.InvocationID,
		"client_id", inv.ClientID,
		"resource", inv.Resource,
		"operation", inv.Operation,
		"status", inv.Status,
		"items", inv.ItemCount,
		"hash", inv.Hash,
	)
	return nil
}
