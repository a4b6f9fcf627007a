package logging

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewOperationErrorNilPassthrough(t *testing.T) {
	if err := NewOperationError("storage.relocate", "req-1", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestOperationErrorUnwrapsAndFormats(t *testing.T) {
	base := errors.New("bucket unreachable")
	err := NewOperationError("storage.relocate", "req-1", base)

	if !errors.Is(err, base) {
		t.Fatal("expected errors.Is to match wrapped error")
	}
	want := "storage.relocate [request req-1]: bucket unreachable"
	if err.Error() != want {
		t.Fatalf("unexpected message: %q", err.Error())
	}

	noReq := NewOperationError("history.create", "", base)
	if noReq.Error() != "history.create: bucket unreachable" {
		t.Fatalf("unexpected message: %q", noReq.Error())
	}
}

func TestFailedOperationFindsWrappedContext(t *testing.T) {
	err := fmt.Errorf("detect: %w", NewOperationError("usecase.inference", "req-3", errors.New("timeout")))

	op, ok := FailedOperation(err)
	if !ok || op != "usecase.inference" {
		t.Fatalf("expected usecase.inference, got %q (%v)", op, ok)
	}
	if _, ok := FailedOperation(errors.New("plain")); ok {
		t.Fatal("plain errors carry no operation")
	}
}

func TestErrorFieldEncodesOperationContext(t *testing.T) {
	enc := zapcore.NewMapObjectEncoder()
	ErrorField(NewOperationError("storage.relocate", "req-1", errors.New("denied"))).AddTo(enc)

	fields, ok := enc.Fields["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected object field, got %#v", enc.Fields["error"])
	}
	if fields["operation"] != "storage.relocate" || fields["request_id"] != "req-1" || fields["cause"] != "denied" {
		t.Fatalf("unexpected fields %v", fields)
	}

	plain := zapcore.NewMapObjectEncoder()
	ErrorField(errors.New("boom")).AddTo(plain)
	if plain.Fields["error"] != "boom" {
		t.Fatalf("unexpected plain field %#v", plain.Fields["error"])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"":        zapcore.InfoLevel,
		"DEBUG":   zapcore.DebugLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil {
			t.Fatalf("ParseLevel(%q) returned error: %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestRequestIDContextRoundTrip(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-9")
	if got := RequestIDFromContext(ctx); got != "req-9" {
		t.Fatalf("expected req-9, got %q", got)
	}
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty id, got %q", got)
	}
}
