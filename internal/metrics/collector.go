package metrics

import (
	"context"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// Sample is one snapshot of the emulator process
type Sample struct {
	TS              time.Time `json:"ts"`
	LiveConnections int       `json:"liveConnections"`
	Goroutines      int       `json:"goroutines"`
	CPUPercent      float64   `json:"cpuPercent"`
	RSSBytes        uint64    `json:"rssBytes"`
	HostUptimeSec   uint64    `json:"hostUptimeSec"`
}

// Collector periodically samples process statistics for diagnostics
type Collector struct {
	logger   *zap.SugaredLogger
	interval time.Duration
	live     func() int

	proc   *process.Process
	latest atomic.Pointer[Sample]
}

// NewCollector creates a collector; live reports the current connection count
func NewCollector(logger *zap.SugaredLogger, interval time.Duration, live func() int) *Collector {
	c := &Collector{
		logger:   logger,
		interval: interval,
		live:     live,
	}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		c.proc = p
	} else {
		logger.Warnw("Process stats unavailable", "error", err)
	}
	return c
}

// Start samples until ctx is cancelled
func (c *Collector) Start(ctx context.Context) {
	c.logger.Infow("📊 Stats collector started", "interval", c.interval)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Collect()

	for {
		select {
		case <-ticker.C:
			s := c.Collect()
			c.logger.Infow("📈 Emulator stats",
				"liveConnections", s.LiveConnections,
				"goroutines", s.Goroutines,
				"cpu", s.CPUPercent,
				"rss", s.RSSBytes,
			)
		case <-ctx.Done():
			c.logger.Infow("📊 Stats collector stopped")
			return
		}
	}
}

// Latest returns the most recent sample, or nil before the first one
func (c *Collector) Latest() *Sample {
	return c.latest.Load()
}

// Collect takes a sample and stores it as the latest
func (c *Collector) Collect() *Sample {
	s := &Sample{
		TS:         time.Now(),
		Goroutines: runtime.NumGoroutine(),
	}
	if c.live != nil {
		s.LiveConnections = c.live()
	}

	if c.proc != nil {
		if pct, err := c.proc.CPUPercent(); err == nil {
			s.CPUPercent = pct
		}
		if mem, err := c.proc.MemoryInfo(); err == nil {
			s.RSSBytes = mem.RSS
		}
	}

	if uptime, err := host.Uptime(); err == nil {
		s.HostUptimeSec = uptime
	}

	c.latest.Store(s)
	return s
}
