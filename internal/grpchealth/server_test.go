package grpchealth

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func startServer(t *testing.T, checks map[string]Check) (*Server, func(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := NewServer(checks, zap.NewNop())
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	dialer := grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})
	check := func(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
		t.Helper()
		status, err := Remote(ctx, "passthrough:///bufnet", ServiceName, zap.NewNop(), dialer)
		if err != nil {
			t.Fatalf("remote check: %v", err)
		}
		return status
	}
	return srv, check
}

func TestHealthStartsNotServing(t *testing.T) {
	_, check := startServer(t, nil)

	if status := check(context.Background()); status != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING before first probe, got %v", status)
	}
}

func TestProbeReflectsDependencies(t *testing.T) {
	var dbErr error
	srv, check := startServer(t, map[string]Check{
		"database": func(ctx context.Context) error { return dbErr },
		"cache":    func(ctx context.Context) error { return nil },
	})
	ctx := context.Background()

	if !srv.Probe(ctx) {
		t.Fatal("expected ready")
	}
	if status := check(ctx); status != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v", status)
	}

	dbErr = errors.New("connection refused")
	if srv.Probe(ctx) {
		t.Fatal("expected not ready")
	}
	if status := check(ctx); status != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING, got %v", status)
	}
}

func TestWatchProbesUntilCancelled(t *testing.T) {
	srv, check := startServer(t, map[string]Check{
		"database": func(ctx context.Context) error { return nil },
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.Watch(ctx, 20*time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for check(context.Background()) != healthpb.HealthCheckResponse_SERVING {
		if time.Now().After(deadline) {
			t.Fatal("watch never published SERVING")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}
