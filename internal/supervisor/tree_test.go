// Framesight - Real-Time Camera Frame Analysis Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/framesight

package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTreeRunsAndStopsServices(t *testing.T) {
	tree := NewTree(testLogger(), DefaultTreeConfig())

	var started, stopped atomic.Bool
	tree.AddAnalysisService(ServeFunc{
		Name: "probe",
		Run: func(ctx context.Context) error {
			started.Store(true)
			<-ctx.Done()
			stopped.Store(true)
			return ctx.Err()
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for !started.Load() {
		if time.Now().After(deadline) {
			t.Fatal("service never started")
		}
		time.Sleep(2 * time.Millisecond)
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not stop")
	}
	if !stopped.Load() {
		t.Fatal("service did not observe cancellation")
	}
}

func TestTreeRestartsCrashedService(t *testing.T) {
	tree := NewTree(testLogger(), TreeConfig{
		FailureThreshold: 100,
		FailureDecay:     30,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})

	var runs atomic.Int64
	tree.AddTransportService(ServeFunc{
		Name: "flaky",
		Run: func(ctx context.Context) error {
			if runs.Add(1) == 1 {
				return errors.New("crash")
			}
			<-ctx.Done()
			return ctx.Err()
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("service restarted %d times, want >= 2", runs.Load())
		}
		time.Sleep(2 * time.Millisecond)
	}

	cancel()
	<-errCh
}

type fakeServer struct {
	listening chan struct{}
	release   chan struct{}
	shutdown  atomic.Bool
}

func (s *fakeServer) ListenAndServe() error {
	close(s.listening)
	<-s.release
	return http.ErrServerClosed
}

func (s *fakeServer) Shutdown(context.Context) error {
	s.shutdown.Store(true)
	close(s.release)
	return nil
}

func TestHTTPServerServiceGracefulShutdown(t *testing.T) {
	srv := &fakeServer{
		listening: make(chan struct{}),
		release:   make(chan struct{}),
	}
	svc := NewHTTPServerService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	<-srv.listening
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
	if !srv.shutdown.Load() {
		t.Fatal("Shutdown was not called")
	}
}

func TestHTTPServerServiceSurfacesStartupError(t *testing.T) {
	svc := NewHTTPServerService(failingServer{}, time.Second)
	if err := svc.Serve(context.Background()); err == nil {
		t.Fatal("expected startup error")
	}
}

type failingServer struct{}

func (failingServer) ListenAndServe() error          { return errors.New("bind: address in use") }
func (failingServer) Shutdown(context.Context) error { return nil }
