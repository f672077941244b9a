package core

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestWithClient(t *testing.T) {
	ctx := WithClient(context.Background(), "203.0.113.9", "curl/8.0")
	if got := ClientIP(ctx); got != "203.0.113.9" {
		t.Errorf("ClientIP() = %q, want 203.0.113.9", got)
	}
	if got := ClientUserAgent(ctx); got != "curl/8.0" {
		t.Errorf("ClientUserAgent() = %q, want curl/8.0", got)
	}

	empty := WithClient(context.Background(), "", "")
	if ClientIP(empty) != "" || ClientUserAgent(empty) != "" {
		t.Error("empty values should not be stored")
	}
}

func TestRunLogger_TagsClient(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	svc := NewService(&fakeFiles{}, logger)

	ctx := WithClient(context.Background(), "203.0.113.9", "")
	svc.runLogger(ctx, "load", "in.txt").Info("hello")

	out := buf.String()
	for _, want := range []string{"op=load", "file=in.txt", "client_ip=203.0.113.9"} {
		if !strings.Contains(out, want) {
			t.Errorf("log %q missing %q", out, want)
		}
	}
	if strings.Contains(out, "user_agent") {
		t.Errorf("log %q should not carry an empty user agent", out)
	}
}
