package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/broady/bifrost"
)

func newJSONLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func TestLoggingInterceptor_Success(t *testing.T) {
	var buf bytes.Buffer
	interceptor := LoggingInterceptor(newJSONLogger(&buf))

	ctx := bifrost.NewContext(context.Background(), bifrost.Path{"accounts", "get"})
	next := func(ctx context.Context, arg any) (any, error) {
		return "response", nil
	}

	result, err := interceptor(ctx, "argument", next)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if result != "response" {
		t.Errorf("expected response, got %v", result)
	}

	out := buf.String()
	for _, want := range []string{"call started", "call completed", "accounts/get", "duration"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in log output:\n%s", want, out)
		}
	}
}

func TestLoggingInterceptor_Error(t *testing.T) {
	var buf bytes.Buffer
	interceptor := LoggingInterceptor(newJSONLogger(&buf))

	ctx := bifrost.NewContext(context.Background(), bifrost.Path{"posts", "list"})
	customErr := bifrost.NewError(bifrost.CodeNotFound, "resource not found")
	next := func(ctx context.Context, arg any) (any, error) {
		return nil, customErr
	}

	result, err := interceptor(ctx, nil, next)
	if !errors.Is(err, customErr) {
		t.Errorf("expected custom error, got %v", err)
	}
	if result != nil {
		t.Errorf("expected nil result, got %v", result)
	}

	out := buf.String()
	if !strings.Contains(out, "call failed") {
		t.Error("expected 'call failed' in log output")
	}
	if !strings.Contains(out, "not_found") || !strings.Contains(out, "resource not found") {
		t.Error("expected error details in log output")
	}
}

func TestLoggingInterceptor_NilLogger(t *testing.T) {
	interceptor := LoggingInterceptor(nil)
	ctx := bifrost.NewContext(context.Background(), bifrost.Path{"x"})
	result, err := interceptor(ctx, nil, func(ctx context.Context, arg any) (any, error) {
		return "response", nil
	})
	if err != nil || result != "response" {
		t.Errorf("got (%v, %v), want (response, nil)", result, err)
	}
}

func TestLoggingInterceptor_PropagatesContextAndArgument(t *testing.T) {
	var buf bytes.Buffer
	interceptor := LoggingInterceptor(newJSONLogger(&buf))

	type ctxKey string
	key := ctxKey("test-key")
	base := context.WithValue(context.Background(), key, "test-value")
	ctx := bifrost.NewContext(base, bifrost.Path{"accounts", "get"})

	type testArg struct{ Key string }
	want := testArg{Key: "value"}
	_, err := interceptor(ctx, want, func(ctx context.Context, arg any) (any, error) {
		if ctx.Value(key) != "test-value" {
			t.Error("expected context value to be propagated")
		}
		if arg != want {
			t.Error("expected argument to be passed through")
		}
		return nil, nil
	})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoggingInterceptor_RequestID(t *testing.T) {
	var buf bytes.Buffer
	interceptor := LoggingInterceptor(newJSONLogger(&buf))

	base := WithRequestID(context.Background(), "01HZXREQUESTID")
	ctx := bifrost.NewContext(base, bifrost.Path{"accounts", "get"})

	if _, err := interceptor(ctx, nil, func(ctx context.Context, arg any) (any, error) {
		return nil, nil
	}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"request_id":"01HZXREQUESTID"`) {
		t.Errorf("expected request id in log output:\n%s", buf.String())
	}
}
