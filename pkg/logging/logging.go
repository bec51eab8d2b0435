// Package logging carries request-scoped slog attributes through
// context.Context so handlers can log with property and message ids without
// threading a logger parameter.
package logging

import (
	"context"
	"log/slog"
	"os"
)

type ctxLoggerKey struct{}
type ctxAttrsKey struct{}

// Init builds the process logger (JSON, for CloudWatch) and installs it as
// the slog default. Call once from main before handling work.
func Init(service string) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).
		With(slog.String("service", service))
	slog.SetDefault(logger)
	return logger
}

func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if logger == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxLoggerKey{}, logger)
}

func WithAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	if len(attrs) == 0 {
		return ctx
	}
	return context.WithValue(ctx, ctxAttrsKey{}, mergeAttrs(ctxAttrs(ctx), attrs))
}

func Logger(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(ctxLoggerKey{}).(*slog.Logger); ok && logger != nil {
			return logger
		}
	}
	return slog.Default()
}

func Info(ctx context.Context, msg string, attrs ...slog.Attr) {
	logAttrs(ctx, slog.LevelInfo, msg, attrs)
}

func Warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	logAttrs(ctx, slog.LevelWarn, msg, attrs)
}

func Error(ctx context.Context, msg string, attrs ...slog.Attr) {
	logAttrs(ctx, slog.LevelError, msg, attrs)
}

// Err is shorthand for the conventional error attribute.
func Err(err error) slog.Attr {
	return slog.String("error", err.Error())
}

func logAttrs(ctx context.Context, level slog.Level, msg string, attrs []slog.Attr) {
	Logger(ctx).LogAttrs(ctx, level, msg, mergeAttrs(ctxAttrs(ctx), attrs)...)
}

func ctxAttrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	attrs, _ := ctx.Value(ctxAttrsKey{}).([]slog.Attr)
	return attrs
}

// mergeAttrs appends extra onto a copy of base, replacing attrs whose key is
// already present so per-call values win over context values.
func mergeAttrs(base, extra []slog.Attr) []slog.Attr {
	merged := make([]slog.Attr, 0, len(base)+len(extra))
	merged = append(merged, base...)
	for _, attr := range extra {
		replaced := false
		for i := range merged {
			if merged[i].Key == attr.Key {
				merged[i] = attr
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, attr)
		}
	}
	return merged
}
