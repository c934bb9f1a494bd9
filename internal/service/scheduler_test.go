package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeBatchRunner struct {
	runFn func(ctx context.Context) (*BatchResult, error)
}

func (f *fakeBatchRunner) RunBatch(ctx context.Context) (*BatchResult, error) {
	return f.runFn(ctx)
}

func TestNewSchedulerValidation(t *testing.T) {
	t.Parallel()

	runner := &fakeBatchRunner{}
	if _, err := NewScheduler(nil, "0 9 * * *", 0, nil, nil); err == nil {
		t.Fatal("NewScheduler(nil runner) should fail")
	}
	if _, err := NewScheduler(runner, "every morning", 0, nil, nil); err == nil {
		t.Fatal("NewScheduler(invalid cron) should fail")
	}

	s, err := NewScheduler(runner, " 0 9 * * 1-5 ", 0, nil, nil)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	if s.timeout != defaultBatchRunTimeout || s.schedule != "0 9 * * 1-5" {
		t.Fatalf("scheduler = timeout %v schedule %q", s.timeout, s.schedule)
	}
}

func TestSchedulerRunOnceLogsResult(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	var deadlineSet bool
	runner := &fakeBatchRunner{
		runFn: func(ctx context.Context) (*BatchResult, error) {
			_, deadlineSet = ctx.Deadline()
			return &BatchResult{Sent: 1, Omitted: 2, Total: 3}, nil
		},
	}

	s, err := NewScheduler(runner, "@daily", time.Minute, time.UTC, zap.New(core))
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	s.runOnce(context.Background())

	if !deadlineSet {
		t.Fatal("batch context should carry the run timeout")
	}
	entries := logs.FilterMessage("scheduled notification batch finished").All()
	if len(entries) != 1 {
		t.Fatalf("finished log entries = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["sent"] != int64(1) || fields["omitted"] != int64(2) || fields["total"] != int64(3) {
		t.Fatalf("log fields = %v", fields)
	}
}

func TestSchedulerRunOnceLogsFailure(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	runner := &fakeBatchRunner{
		runFn: func(ctx context.Context) (*BatchResult, error) {
			return nil, errors.New("database unavailable")
		},
	}

	s, err := NewScheduler(runner, "@hourly", 0, nil, zap.New(core))
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	s.runOnce(context.Background())

	if logs.FilterMessage("scheduled notification batch failed").Len() != 1 {
		t.Fatal("expected failure log entry")
	}
}

func TestSchedulerStartStopsOnCancel(t *testing.T) {
	t.Parallel()

	runner := &fakeBatchRunner{
		runFn: func(ctx context.Context) (*BatchResult, error) { return &BatchResult{}, nil },
	}
	s, err := NewScheduler(runner, "@daily", 0, nil, nil)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after cancel")
	}
}
