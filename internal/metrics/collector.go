package metrics

import (
	"os"
	"runtime"
	"sync"
	"time"

	"media-prep/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current outbox statistics
type Stats struct {
	Prepared int
	Failed   int
	Albums   int
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once

	mu     sync.Mutex
	dbPath string
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// SetDatabasePath enables size reporting for the SQLite file at path and
// its WAL and SHM companions.
func (c *Collector) SetDatabasePath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dbPath = path
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection. It is safe to call more than once.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	c.collectMemoryMetrics()
	c.collectDBSize()

	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	OutboxEntries.WithLabelValues("prepared").Set(float64(stats.Prepared))
	OutboxEntries.WithLabelValues("failed").Set(float64(stats.Failed))
	OutboxEntries.WithLabelValues("albums").Set(float64(stats.Albums))

	logging.Debug("Metrics collected: prepared=%d, failed=%d, albums=%d",
		stats.Prepared, stats.Failed, stats.Albums)
}

func (c *Collector) collectMemoryMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	GoMemAllocBytes.Set(float64(m.Alloc))
	GoGoroutines.Set(float64(runtime.NumGoroutine()))
}

func (c *Collector) collectDBSize() {
	c.mu.Lock()
	path := c.dbPath
	c.mu.Unlock()

	if path == "" {
		return
	}

	files := map[string]string{
		"main": path,
		"wal":  path + "-wal",
		"shm":  path + "-shm",
	}
	for label, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			DBSizeBytes.WithLabelValues(label).Set(0)
			continue
		}
		DBSizeBytes.WithLabelValues(label).Set(float64(info.Size()))
	}
}
