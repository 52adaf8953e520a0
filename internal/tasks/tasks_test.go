package tasks

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestStartAndWait(t *testing.T) {
	tracker := NewTracker()
	done := make(chan struct{})

	err := tracker.Start(context.Background(), "t1", func(ctx context.Context) error {
		close(done)
		return nil
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-done

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := tracker.Wait(ctx, "t1"); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestWaitReturnsTaskError(t *testing.T) {
	tracker := NewTracker()
	boom := errors.New("boom")
	_ = tracker.Start(context.Background(), "t1", func(ctx context.Context) error {
		return boom
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := tracker.Wait(ctx, "t1"); !errors.Is(err, boom) {
		t.Fatalf("Wait = %v, want %v", err, boom)
	}
}

func TestCancelStopsTask(t *testing.T) {
	tracker := NewTracker()
	started := make(chan struct{})
	_ = tracker.Start(context.Background(), "t1", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started

	if !tracker.Running("t1") {
		t.Fatal("task should be running")
	}
	if err := tracker.Cancel("t1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	ctx, cancelWait := context.WithTimeout(context.Background(), time.Second)
	defer cancelWait()
	if err := tracker.Wait(ctx, "t1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait = %v, want context.Canceled", err)
	}
	if tracker.Running("t1") {
		t.Fatal("task should have stopped")
	}
}

func TestCancelUnknownTask(t *testing.T) {
	tracker := NewTracker()
	if err := tracker.Cancel("ghost"); !errors.Is(err, ErrUnknownTask) {
		t.Fatalf("Cancel = %v, want ErrUnknownTask", err)
	}
}

func TestDuplicateStartRejected(t *testing.T) {
	tracker := NewTracker()
	started := make(chan struct{})
	release := make(chan struct{})
	_ = tracker.Start(context.Background(), "t1", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	if err := tracker.Start(context.Background(), "t1", func(ctx context.Context) error { return nil }); err == nil {
		t.Fatal("starting a duplicate in-flight task should fail")
	}
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := tracker.Wait(ctx, "t1"); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	// Finished ids can be reused.
	if err := tracker.Start(context.Background(), "t1", func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("restart after completion: %v", err)
	}
}

func TestForgetDropsFinishedTask(t *testing.T) {
	tracker := NewTracker()
	_ = tracker.Start(context.Background(), "t1", func(ctx context.Context) error { return nil })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = tracker.Wait(ctx, "t1")

	tracker.Forget("t1")
	if err := tracker.Cancel("t1"); !errors.Is(err, ErrUnknownTask) {
		t.Fatal("forgotten task should be unknown")
	}
}
