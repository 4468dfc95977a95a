// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/sandpool-project/sandpool/lib/codec"
	"github.com/sandpool-project/sandpool/lib/testutil"
)

// startServer serves s in the background and waits for the socket to
// appear. The server is shut down when the test finishes.
func startServer(t *testing.T, server *SocketServer, socketPath string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		testutil.RequireReceive(t, done, 5*time.Second, "server did not shut down")
	})

	client := NewClient(socketPath)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if err := client.Call(context.Background(), "ping", nil, nil); err == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("server did not come up")
}

func newTestServer(t *testing.T) (*SocketServer, *Client) {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "leased.sock")
	server := NewSocketServer(socketPath, slog.New(slog.DiscardHandler))
	server.Handle("ping", func(ctx context.Context, raw []byte) (any, error) {
		return nil, nil
	})
	return server, NewClient(socketPath)
}

func TestCallRoundTrip(t *testing.T) {
	server, client := newTestServer(t)
	server.Handle("echo", func(ctx context.Context, raw []byte) (any, error) {
		var request struct {
			Message string `cbor:"message"`
		}
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, err
		}
		return map[string]string{"message": request.Message}, nil
	})
	startServer(t, server, client.socketPath)

	var result struct {
		Message string `cbor:"message"`
	}
	err := client.Call(context.Background(), "echo",
		map[string]any{"message": "hello"}, &result)
	if err != nil {
		t.Fatal(err)
	}
	if result.Message != "hello" {
		t.Fatalf("echoed %q, want %q", result.Message, "hello")
	}
}

func TestHandlerErrorBecomesCallError(t *testing.T) {
	server, client := newTestServer(t)
	server.Handle("fail", func(ctx context.Context, raw []byte) (any, error) {
		return nil, fmt.Errorf("no such lease")
	})
	startServer(t, server, client.socketPath)

	err := client.Call(context.Background(), "fail", nil, nil)
	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("expected *CallError, got %v", err)
	}
	if callErr.Action != "fail" || callErr.Message != "no such lease" {
		t.Fatalf("callErr = %+v", callErr)
	}
}

func TestUnknownAction(t *testing.T) {
	server, client := newTestServer(t)
	startServer(t, server, client.socketPath)

	err := client.Call(context.Background(), "nope", nil, nil)
	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("expected *CallError, got %v", err)
	}
}

func TestDuplicateHandlerPanics(t *testing.T) {
	server := NewSocketServer("unused.sock", slog.New(slog.DiscardHandler))
	server.Handle("x", func(ctx context.Context, raw []byte) (any, error) { return nil, nil })
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate handler registration")
		}
	}()
	server.Handle("x", func(ctx context.Context, raw []byte) (any, error) { return nil, nil })
}
