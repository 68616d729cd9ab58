package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestCheck_allProbesPassing(t *testing.T) {
	c := New(time.Second, zap.NewNop())
	c.Add("postgres", func(context.Context) error { return nil })
	c.Add("redis", func(context.Context) error { return nil })

	report := c.Check(context.Background())
	if !report.Ready {
		t.Fatalf("expected ready, got %+v", report)
	}
	if report.Checks["postgres"] != "ok" || report.Checks["redis"] != "ok" {
		t.Fatalf("unexpected checks: %+v", report.Checks)
	}
}

func TestCheck_oneFailureMarksNotReady(t *testing.T) {
	c := New(time.Second, zap.NewNop())
	c.Add("postgres", func(context.Context) error { return nil })
	c.Add("redis", func(context.Context) error { return errors.New("connection refused") })

	report := c.Check(context.Background())
	if report.Ready {
		t.Fatal("expected not ready with a failing probe")
	}
	if report.Checks["postgres"] != "ok" {
		t.Fatalf("healthy probe misreported: %+v", report.Checks)
	}
	if report.Checks["redis"] == "ok" {
		t.Fatalf("failing probe misreported: %+v", report.Checks)
	}
}

func TestCheck_slowProbeTimesOut(t *testing.T) {
	c := New(20*time.Millisecond, zap.NewNop())
	c.Add("slow", func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	start := time.Now()
	report := c.Check(context.Background())
	if report.Ready {
		t.Fatal("expected not ready when a probe times out")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("probe timeout not enforced, took %v", elapsed)
	}
}

func TestDir_missingPath(t *testing.T) {
	probe := Dir(t.TempDir() + "/does-not-exist")
	if err := probe(context.Background()); err == nil {
		t.Fatal("expected an error for a missing directory")
	}
}

func TestDir_writablePath(t *testing.T) {
	probe := Dir(t.TempDir())
	if err := probe(context.Background()); err != nil {
		t.Fatalf("expected writable dir to pass: %v", err)
	}
}
