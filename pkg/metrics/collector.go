package metrics

import (
	"time"

	"github.com/localcore/client/pkg/log"
)

// Sweep is a periodic maintenance function run by a Collector, such as
// an engine's expired-entry cleanup or op-log purge.
type Sweep struct {
	Name string
	Run  func() error
}

// Collector runs a set of engine maintenance sweeps on a fixed
// interval, following the same ticker-driven background-loop shape
// this codebase already uses for its cluster metrics collector.
type Collector struct {
	interval time.Duration
	sweeps   []Sweep
	stopCh   chan struct{}
}

// NewCollector creates a collector that runs every sweep in order once
// per interval.
func NewCollector(interval time.Duration, sweeps ...Sweep) *Collector {
	return &Collector{
		interval: interval,
		sweeps:   sweeps,
		stopCh:   make(chan struct{}),
	}
}

// Start begins running sweeps in a background goroutine, once
// immediately and then on every tick until Stop is called.
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		c.runAll()
		for {
			select {
			case <-ticker.C:
				c.runAll()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts the collector's background goroutine.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) runAll() {
	for _, s := range c.sweeps {
		if err := s.Run(); err != nil {
			log.WithComponent("metrics").Warn().Err(err).Str("sweep", s.Name).Msg("sweep failed")
		}
	}
}
