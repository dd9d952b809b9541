package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestAddJobInvalidCron(t *testing.T) {
	s := New()
	err := s.AddJob("bad", "not a cron expr", func(ctx context.Context) error { return nil })
	if err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestAddJobReplacesExisting(t *testing.T) {
	s := New()
	fn := func(ctx context.Context) error { return nil }
	if err := s.AddJob("job", "0 3 * * *", fn); err != nil {
		t.Fatalf("first AddJob: %v", err)
	}
	if err := s.AddJob("job", "0 4 * * *", fn); err != nil {
		t.Fatalf("second AddJob: %v", err)
	}
	statuses := s.Status()
	if len(statuses) != 1 {
		t.Fatalf("len(statuses) = %d, want 1", len(statuses))
	}
	if statuses[0].Schedule != "0 4 * * *" {
		t.Errorf("schedule = %q, want the replacement", statuses[0].Schedule)
	}
}

func TestTriggerJob(t *testing.T) {
	var calls atomic.Int64
	done := make(chan struct{})

	s := New()
	err := s.AddJob("job", "0 3 * * *", func(ctx context.Context) error {
		calls.Add(1)
		close(done)
		return nil
	})
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	if err := s.TriggerJob("job"); err != nil {
		t.Fatalf("TriggerJob: %v", err)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run")
	}
	<-s.Stop().Done()

	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestTriggerJobUnknown(t *testing.T) {
	s := New()
	if err := s.TriggerJob("nope"); err == nil {
		t.Fatal("expected error for unknown job")
	}
}

func TestTriggerJobSkipsOverlap(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{})

	s := New()
	err := s.AddJob("job", "0 3 * * *", func(ctx context.Context) error {
		close(started)
		<-block
		return nil
	})
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	if err := s.TriggerJob("job"); err != nil {
		t.Fatalf("first trigger: %v", err)
	}
	<-started

	if err := s.TriggerJob("job"); err == nil {
		t.Error("second trigger while running should error")
	}

	close(block)
	<-s.Stop().Done()
}

func TestStopRejectsFurtherTriggers(t *testing.T) {
	s := New()
	err := s.AddJob("job", "0 3 * * *", func(ctx context.Context) error { return nil })
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	<-s.Stop().Done()

	if err := s.TriggerJob("job"); err == nil {
		t.Error("trigger after stop should error")
	}
}

func TestStopCancelsRunningJob(t *testing.T) {
	gotCancel := make(chan struct{})
	started := make(chan struct{})

	s := New()
	err := s.AddJob("job", "0 3 * * *", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		close(gotCancel)
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	if err := s.TriggerJob("job"); err != nil {
		t.Fatalf("TriggerJob: %v", err)
	}
	<-started

	stopCtx := s.Stop()
	select {
	case <-gotCancel:
	case <-time.After(5 * time.Second):
		t.Fatal("running job was not cancelled")
	}
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("Stop context never completed")
	}

	// The failed run is recorded.
	statuses := s.Status()
	if len(statuses) != 1 {
		t.Fatalf("unexpected statuses: %+v", statuses)
	}
	if statuses[0].LastError == "" {
		t.Error("LastError should record the cancellation")
	}
}

func TestValidateCronExpr(t *testing.T) {
	if err := ValidateCronExpr("0 3 * * *"); err != nil {
		t.Errorf("valid expression rejected: %v", err)
	}
	if err := ValidateCronExpr("banana"); err == nil {
		t.Error("invalid expression accepted")
	}
}
