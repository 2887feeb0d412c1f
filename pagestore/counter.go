package pagestore

import "sync/atomic"

// Counter is a process-local monotonic counter. Writers call Add concurrently;
// observers sample with Get. Reads and writes of a single counter are
// linearizable, but no ordering is promised across different counters: a
// snapshot of a counter group may see skew between members.
//
// Counters are never reset. Wrap-around follows two's-complement addition, so
// interval arithmetic over snapshots stays meaningful across wraps.
type Counter struct {
	v atomic.Uint64
}

// Add increments the counter by delta.
func (c *Counter) Add(delta uint64) {
	c.v.Add(delta)
}

// Inc increments the counter by one.
func (c *Counter) Inc() {
	c.v.Add(1)
}

// Get returns the current value.
func (c *Counter) Get() uint64 {
	return c.v.Load()
}
