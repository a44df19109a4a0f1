package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type stubArchiver struct {
	predictionRuns atomic.Int64
	transferRuns   atomic.Int64
	cutoff         atomic.Value
	fail           bool
}

func (s *stubArchiver) ArchiveSettledPredictions(ctx context.Context, before time.Time) (int64, error) {
	if s.fail {
		return 0, errors.New("upload failed")
	}
	s.predictionRuns.Add(1)
	s.cutoff.Store(before)
	return 3, nil
}

func (s *stubArchiver) ArchiveTransfers(ctx context.Context, before time.Time) (int64, error) {
	s.transferRuns.Add(1)
	return 7, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
}

func TestRunArchivesBothKinds(t *testing.T) {
	stub := &stubArchiver{}
	a := NewArchiver(stub, 30, testLogger())

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stub.predictionRuns.Load() != 1 || stub.transferRuns.Load() != 1 {
		t.Fatalf("runs = %d/%d, want 1/1", stub.predictionRuns.Load(), stub.transferRuns.Load())
	}

	cutoff := stub.cutoff.Load().(time.Time)
	want := time.Now().UTC().Add(-30 * 24 * time.Hour)
	if diff := cutoff.Sub(want); diff < -time.Minute || diff > time.Minute {
		t.Fatalf("cutoff %v not near %v", cutoff, want)
	}
}

func TestRunStopsOnFirstError(t *testing.T) {
	stub := &stubArchiver{fail: true}
	a := NewArchiver(stub, 30, testLogger())

	if err := a.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if stub.transferRuns.Load() != 0 {
		t.Fatal("transfer archive ran after prediction archive failed")
	}
}

func TestRunEveryHonoursContext(t *testing.T) {
	stub := &stubArchiver{}
	a := NewArchiver(stub, 1, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.RunEvery(ctx, 10*time.Millisecond) }()

	time.Sleep(35 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("RunEvery returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("RunEvery did not stop on cancel")
	}

	if stub.predictionRuns.Load() == 0 {
		t.Fatal("no archive runs happened")
	}
}
