// Package hlc implements a hybrid logical clock: a (physical, counter,
// node) triple giving every sync operation a strictly monotonic, total
// ordering across nodes even when wall clocks disagree or go backward.
package hlc

import (
	"fmt"
	"sync"
	"time"
)

// Timestamp is a single HLC reading. Comparison is lexicographic over
// (Physical, Counter, NodeID).
type Timestamp struct {
	Physical int64  // milliseconds since Unix epoch
	Counter  uint32
	NodeID   string
}

// Compare returns -1, 0 or 1 as a is less than, equal to, or greater
// than b.
func Compare(a, b Timestamp) int {
	switch {
	case a.Physical < b.Physical:
		return -1
	case a.Physical > b.Physical:
		return 1
	}
	switch {
	case a.Counter < b.Counter:
		return -1
	case a.Counter > b.Counter:
		return 1
	}
	switch {
	case a.NodeID < b.NodeID:
		return -1
	case a.NodeID > b.NodeID:
		return 1
	}
	return 0
}

// String renders the timestamp as physical.counter@node, useful for
// logging and as a deterministic map key in tests.
func (t Timestamp) String() string {
	return fmt.Sprintf("%d.%d@%s", t.Physical, t.Counter, t.NodeID)
}

// Clock generates Timestamps for a single node. It is safe for
// concurrent use; every exported method takes the clock's own mutex.
type Clock struct {
	mu     sync.Mutex
	nodeID string
	last   Timestamp
	nowFn  func() int64
}

// New creates a clock for nodeID, seeded at physical time zero so the
// first Next() call picks up the real wall clock.
func New(nodeID string) *Clock {
	return &Clock{
		nodeID: nodeID,
		last:   Timestamp{NodeID: nodeID},
		nowFn:  nowMillis,
	}
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// Next advances the clock and returns the new timestamp. It is
// strictly greater than every timestamp previously returned by this
// clock: if the wall clock has advanced past the last physical time,
// the counter resets to zero; otherwise the counter increments.
func (c *Clock) Next() Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowFn()
	if now > c.last.Physical {
		c.last = Timestamp{Physical: now, Counter: 0, NodeID: c.nodeID}
	} else {
		c.last = Timestamp{Physical: c.last.Physical, Counter: c.last.Counter + 1, NodeID: c.nodeID}
	}
	return c.last
}

// Observe folds a timestamp received from a remote node into the
// clock's local state via Merge, and returns the resulting value. Use
// this when receiving a remote timestamp that must be accounted for in
// all future Next() calls from this clock.
func (c *Clock) Observe(remote Timestamp) Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowFn()
	merged := mergeAt(now, c.last, remote, c.nodeID)
	c.last = merged
	return merged
}

// Merge combines two independently generated timestamps (e.g. while
// reconciling two documents) into a value strictly greater than both,
// using the wall clock to advance physical time when possible.
func Merge(a, b Timestamp) Timestamp {
	nodeID := a.NodeID
	return mergeAt(nowMillis(), a, b, nodeID)
}

func mergeAt(now int64, self, remote Timestamp, nodeID string) Timestamp {
	physical := self.Physical
	if remote.Physical > physical {
		physical = remote.Physical
	}
	if now > physical {
		physical = now
	}

	var counter uint32
	if physical > self.Physical && physical > remote.Physical {
		counter = 0
	} else {
		counter = self.Counter
		if remote.Physical == physical && remote.Counter > counter {
			counter = remote.Counter
		}
		counter++
	}

	return Timestamp{Physical: physical, Counter: counter, NodeID: nodeID}
}
