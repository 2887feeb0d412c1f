package simulator

// SimConfig holds the page store aging parameters. Each epoch the simulator
// redirects a batch of pages (leaving garbage behind in their old segments),
// flushes the new versions into a fresh page file, and periodically runs a
// reclaim round over the accumulated segments.
type SimConfig struct {
	// Write Path
	PagesPerFile    int `json:"pagesPerFile"`    // pages flushed into each new page file
	PageSizeBytes   int `json:"pageSizeBytes"`   // uniform page size in bytes
	UpdatesPerEpoch int `json:"updatesPerEpoch"` // page redirects per epoch

	// Segment Organization
	MapFileGroup int `json:"mapFileGroup"` // seal N standalone page files into one map file (0 or 1 = never)

	// Reclamation
	ReclaimEvery int `json:"reclaimEvery"` // run a reclaim round every N epochs

	// Read Path
	ReadsPerEpoch   int     `json:"readsPerEpoch"`   // simulated point reads per epoch
	WritebufHitRate float64 `json:"writebufHitRate"` // fraction of reads served from the write buffer
	CacheHitRate    float64 `json:"cacheHitRate"`    // fraction of file-backed reads served from cache

	// Simulation Control
	Seed int64 `json:"seed"` // rng seed; equal seeds give identical runs
}

// DefaultConfig returns a workload with enough churn to keep the reclaimer
// busy: every epoch invalidates half a segment's worth of pages.
func DefaultConfig() SimConfig {
	return SimConfig{
		PagesPerFile:    64,
		PageSizeBytes:   4096,
		UpdatesPerEpoch: 32,
		MapFileGroup:    4,
		ReclaimEvery:    2,
		ReadsPerEpoch:   256,
		WritebufHitRate: 0.35,
		CacheHitRate:    0.80,
		Seed:            1,
	}
}

// Validate checks if configuration values are reasonable
func (c *SimConfig) Validate() error {
	if c.PagesPerFile <= 0 {
		return ErrInvalidConfig("pagesPerFile must be > 0")
	}
	if c.PageSizeBytes <= 0 {
		return ErrInvalidConfig("pageSizeBytes must be > 0")
	}
	if c.UpdatesPerEpoch < 0 {
		return ErrInvalidConfig("updatesPerEpoch must be >= 0")
	}
	if c.MapFileGroup < 0 {
		return ErrInvalidConfig("mapFileGroup must be >= 0")
	}
	if c.ReclaimEvery <= 0 {
		return ErrInvalidConfig("reclaimEvery must be > 0")
	}
	if c.ReadsPerEpoch < 0 {
		return ErrInvalidConfig("readsPerEpoch must be >= 0")
	}
	if c.WritebufHitRate < 0 || c.WritebufHitRate > 1 {
		return ErrInvalidConfig("writebufHitRate must be between 0 and 1")
	}
	if c.CacheHitRate < 0 || c.CacheHitRate > 1 {
		return ErrInvalidConfig("cacheHitRate must be between 0 and 1")
	}
	return nil
}
