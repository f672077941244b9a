package core

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	ctxKeyClientIP  contextKey = "client_ip"
	ctxKeyUserAgent contextKey = "user_agent"
)

// WithClient records who asked for a run. Load and Save add it to the
// records they mirror to slog.
func WithClient(ctx context.Context, ip, userAgent string) context.Context {
	if ip != "" {
		ctx = context.WithValue(ctx, ctxKeyClientIP, ip)
	}
	if userAgent != "" {
		ctx = context.WithValue(ctx, ctxKeyUserAgent, userAgent)
	}
	return ctx
}

// ClientIP returns the address stored by WithClient.
func ClientIP(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyClientIP).(string)
	return v
}

// ClientUserAgent returns the user agent stored by WithClient.
func ClientUserAgent(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyUserAgent).(string)
	return v
}

// runLogger is the service logger tagged with the operation, the file and,
// when present, the client from ctx.
func (s *Service) runLogger(ctx context.Context, op, path string) *slog.Logger {
	attrs := []any{"op", op, "file", path}
	if ip := ClientIP(ctx); ip != "" {
		attrs = append(attrs, "client_ip", ip)
	}
	if ua := ClientUserAgent(ctx); ua != "" {
		attrs = append(attrs, "user_agent", ua)
	}
	return s.logger.With(attrs...)
}
