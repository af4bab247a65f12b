package common

import (
	"context"
	"log/slog"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRunID      contextKey = "run_id"
	ContextKeySourceFile contextKey = "source_file"
)

// WithRunID adds the batch run ID to the context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, ContextKeyRunID, runID)
}

// RunIDFromContext extracts the batch run ID from context
func RunIDFromContext(ctx context.Context) string {
	if runID, ok := ctx.Value(ContextKeyRunID).(string); ok {
		return runID
	}
	return ""
}

// WithSourceFile tags the context with the document being processed
func WithSourceFile(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ContextKeySourceFile, name)
}

// SourceFileFromContext extracts the document name from context
func SourceFileFromContext(ctx context.Context) string {
	if name, ok := ctx.Value(ContextKeySourceFile).(string); ok {
		return name
	}
	return ""
}

// LoggerWith returns logger enriched with the run and document carried by ctx.
func LoggerWith(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if runID := RunIDFromContext(ctx); runID != "" {
		logger = logger.With("run_id", runID)
	}
	if name := SourceFileFromContext(ctx); name != "" {
		logger = logger.With("source_file", name)
	}
	return logger
}
