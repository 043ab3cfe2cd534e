package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type mockStatsProvider struct {
	stats Stats
}

func (m *mockStatsProvider) GetStats() Stats {
	return m.stats
}

func TestCollectUpdatesOutboxGauges(t *testing.T) {
	c := NewCollector(&mockStatsProvider{stats: Stats{Prepared: 7, Failed: 2, Albums: 1}}, time.Hour)
	c.collect()

	tests := []struct {
		kind string
		want float64
	}{
		{"prepared", 7},
		{"failed", 2},
		{"albums", 1},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(OutboxEntries.WithLabelValues(tt.kind)); got != tt.want {
			t.Errorf("OutboxEntries{%s} = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestCollectWithNilProvider(t *testing.T) {
	c := NewCollector(nil, time.Hour)
	c.collect()

	if testutil.ToFloat64(GoGoroutines) <= 0 {
		t.Error("goroutine gauge should be set even without a stats provider")
	}
}

func TestCollectDBSize(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "outbox.db")
	if err := os.WriteFile(dbPath, make([]byte, 1234), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dbPath+"-wal", make([]byte, 10), 0o644); err != nil {
		t.Fatal(err)
	}

	c := NewCollector(nil, time.Hour)
	c.SetDatabasePath(dbPath)
	c.collect()

	if got := testutil.ToFloat64(DBSizeBytes.WithLabelValues("main")); got != 1234 {
		t.Errorf("main size = %v, want 1234", got)
	}
	if got := testutil.ToFloat64(DBSizeBytes.WithLabelValues("wal")); got != 10 {
		t.Errorf("wal size = %v, want 10", got)
	}
	if got := testutil.ToFloat64(DBSizeBytes.WithLabelValues("shm")); got != 0 {
		t.Errorf("missing shm size = %v, want 0", got)
	}
}

func TestCollectorStartStop(_ *testing.T) {
	c := NewCollector(&mockStatsProvider{}, 10*time.Millisecond)
	c.Start()
	time.Sleep(30 * time.Millisecond)
	c.Stop()
	c.Stop()
}
