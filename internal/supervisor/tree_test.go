// Encore - Setlist Voting Trending & Recommendation Engine
// Copyright 2026 Encore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/encorehq/encore

package supervisor

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

// stubService runs until its context is canceled and counts starts.
type stubService struct {
	name   string
	starts atomic.Int64
}

func (s *stubService) Serve(ctx context.Context) error {
	s.starts.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func (s *stubService) String() string { return s.name }

func discardSlog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStubServiceImplementsSutureService(t *testing.T) {
	var _ suture.Service = (*stubService)(nil)
}

func TestTreeDefaults(t *testing.T) {
	tree := NewTree(discardSlog(), TreeConfig{})
	if tree.config.FailureThreshold != 5.0 {
		t.Errorf("FailureThreshold = %v, want 5.0", tree.config.FailureThreshold)
	}
	if tree.config.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 10s", tree.config.ShutdownTimeout)
	}
}

func TestTreeRunsServicesInAllLayers(t *testing.T) {
	tree := NewTree(discardSlog(), DefaultTreeConfig())

	consumer := &stubService{name: "consumer"}
	janitor := &stubService{name: "janitor"}
	server := &stubService{name: "server"}

	tree.AddEventService(consumer)
	tree.AddMaintenanceService(janitor)
	tree.AddAPIService(server)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if consumer.starts.Load() > 0 && janitor.starts.Load() > 0 && server.starts.Load() > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if consumer.starts.Load() == 0 || janitor.starts.Load() == 0 || server.starts.Load() == 0 {
		t.Fatalf("services not started: consumer=%d janitor=%d server=%d",
			consumer.starts.Load(), janitor.starts.Load(), server.starts.Load())
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatal("tree did not stop after cancel")
	}
}

func TestTreeRemoveService(t *testing.T) {
	tree := NewTree(discardSlog(), DefaultTreeConfig())
	svc := &stubService{name: "removable"}
	token := tree.AddEventService(svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tree.ServeBackground(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for svc.starts.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if svc.starts.Load() == 0 {
		t.Fatal("service never started")
	}

	if err := tree.RemoveEventService(token); err != nil {
		t.Errorf("RemoveEventService() error: %v", err)
	}
}
