package memory

import (
	"context"
	"errors"
	"runtime/debug"
	"testing"
	"time"
)

func testMonitor(limit int64, alloc *uint64) *Monitor {
	config := DefaultConfig()
	config.LimitBytes = limit
	m := NewMonitor(config)
	m.alloc = func() uint64 { return *alloc }
	return m
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	if config.HighWaterMark >= config.CriticalWaterMark {
		t.Errorf("HighWaterMark %v should be below CriticalWaterMark %v", config.HighWaterMark, config.CriticalWaterMark)
	}
	if config.CheckInterval <= 0 {
		t.Error("CheckInterval should be positive")
	}
}

func TestCheckMemoryPausesAndResumes(t *testing.T) {
	alloc := uint64(100)
	m := testMonitor(1000, &alloc)

	m.checkMemory()
	if m.Paused() {
		t.Fatal("should not pause at 10%")
	}

	alloc = 900
	m.checkMemory()
	if !m.Paused() {
		t.Fatal("should pause at 90%")
	}

	// Between the marks the pause holds.
	alloc = 800
	m.checkMemory()
	if !m.Paused() {
		t.Fatal("should stay paused at 80%")
	}

	alloc = 500
	m.checkMemory()
	if m.Paused() {
		t.Fatal("should resume at 50%")
	}

	current, limit, usage := m.Stats()
	if current != 500 || limit != 1000 || usage != 0.5 {
		t.Errorf("Stats() = %d, %d, %v; want 500, 1000, 0.5", current, limit, usage)
	}
}

func TestWaitReturnsImmediatelyWhenNotPaused(t *testing.T) {
	alloc := uint64(0)
	m := testMonitor(1000, &alloc)
	if err := m.Wait(context.Background()); err != nil {
		t.Errorf("Wait() = %v, want nil", err)
	}
}

func TestWaitReleasedOnRecovery(t *testing.T) {
	alloc := uint64(950)
	m := testMonitor(1000, &alloc)
	m.checkMemory()

	done := make(chan error, 1)
	go func() { done <- m.Wait(context.Background()) }()

	select {
	case err := <-done:
		t.Fatalf("Wait returned early: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	alloc = 100
	m.checkMemory()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Wait() = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait was not released")
	}
}

func TestWaitHonoursContextAndStop(t *testing.T) {
	alloc := uint64(950)
	m := testMonitor(1000, &alloc)
	m.checkMemory()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait(cancelled) = %v, want context.Canceled", err)
	}

	m.Stop()
	m.Stop()
	if err := m.Wait(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Wait() after Stop = %v, want ErrStopped", err)
	}
}

func TestStartWithoutLimit(t *testing.T) {
	t.Setenv("GOMEMLIMIT", "")
	alloc := uint64(1 << 40)
	m := testMonitor(0, &alloc)
	m.limit = 0
	m.Start()
	defer m.Stop()

	m.checkMemory()
	if m.Paused() {
		t.Error("a monitor without a limit never pauses")
	}
}

func TestConfigureLimit(t *testing.T) {
	t.Setenv("GOMEMLIMIT", "")
	previous := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(previous) })

	tests := []struct {
		name       string
		limit      int64
		ratio      float64
		wantSource string
		wantLimit  int64
		wantRatio  float64
	}{
		{"no container limit", 0, 0.85, "none", 0, 0},
		{"container limit", 1 << 30, 0.5, "container", 1 << 29, 0.5},
		{"ratio out of range", 1 << 20, 1.5, "container", 891289, DefaultMemoryRatio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConfigureLimit(tt.limit, tt.ratio)
			if result.Source != tt.wantSource {
				t.Errorf("Source = %q, want %q", result.Source, tt.wantSource)
			}
			if result.GoMemLimit != tt.wantLimit {
				t.Errorf("GoMemLimit = %d, want %d", result.GoMemLimit, tt.wantLimit)
			}
			if result.Ratio != tt.wantRatio {
				t.Errorf("Ratio = %v, want %v", result.Ratio, tt.wantRatio)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		name     string
		bytes    int64
		expected string
	}{
		{name: "Zero bytes", bytes: 0, expected: "0 B"},
		{name: "Less than 1KB", bytes: 512, expected: "512 B"},
		{name: "Exactly 1KB", bytes: 1024, expected: "1.0 KiB"},
		{name: "Fractional KB", bytes: 1536, expected: "1.5 KiB"},
		{name: "Exactly 1MB", bytes: 1048576, expected: "1.0 MiB"},
		{name: "Sticker limit", bytes: 2 * 1024 * 1024, expected: "2.0 MiB"},
		{name: "File limit", bytes: 1500 * 1024 * 1024, expected: "1.5 GiB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatBytes(tt.bytes); got != tt.expected {
				t.Errorf("FormatBytes(%d) = %q, want %q", tt.bytes, got, tt.expected)
			}
		})
	}
}

func BenchmarkFormatBytes(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = FormatBytes(1500 * 1024 * 1024)
	}
}
