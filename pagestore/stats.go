package pagestore

import (
	"fmt"
	"strings"
)

// StoreStats is a point-in-time copy of the page store's counters.
//
// Snapshots are plain value types; the live counters are in AtomicStoreStats.
// Interval reporting subtracts two snapshots with Sub, which wraps modulo
// 2^64 so intervals stay correct across counter wrap-around.
type StoreStats struct {
	// Statistics of the page cache.
	PageCache CacheStats `json:"pageCache"`
	// Statistics of the file reader cache.
	FileReaderCache CacheStats `json:"fileReaderCache"`
	// Statistics of the write buffer.
	Writebuf WritebufStats `json:"writebuf"`
	// Statistics of background jobs.
	Jobs JobStats `json:"jobs"`
}

// Sub returns the pointwise difference of two snapshots.
func (s StoreStats) Sub(o StoreStats) StoreStats {
	return StoreStats{
		PageCache:       s.PageCache.Sub(o.PageCache),
		FileReaderCache: s.FileReaderCache.Sub(o.FileReaderCache),
		Writebuf:        s.Writebuf.Sub(o.Writebuf),
		Jobs:            s.Jobs.Sub(o.Jobs),
	}
}

// WriteAmp returns (rewrite + compact bytes) / flush bytes, or 0.0 before
// the first flush.
func (s StoreStats) WriteAmp() float64 {
	if s.Jobs.FlushWriteBytes == 0 {
		return 0.0
	}
	writeBytes := s.Jobs.RewriteBytes + s.Jobs.CompactWriteBytes
	return float64(writeBytes) / float64(s.Jobs.FlushWriteBytes)
}

// String renders the operator-visible form. Hit rates divide by the sample
// count, so before any samples they print as NaN; that is the "no samples
// yet" marker, not an error.
func (s StoreStats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b,
		"WritebufStats: read_in_buf: %d, read_in_files: %d, read_hit_rate: %v%%\n",
		s.Writebuf.ReadInBuf,
		s.Writebuf.ReadInFile,
		float64(s.Writebuf.ReadInBuf)*100.0/float64(s.Writebuf.ReadInBuf+s.Writebuf.ReadInFile),
	)
	fmt.Fprintf(&b,
		"FileReaderCacheStats: lookup_hit: %d, lookup_miss: %d, hit_rate: %v%%, insert: %d, active_evict: %d, passive_evict: %d\n",
		s.FileReaderCache.LookupHit,
		s.FileReaderCache.LookupMiss,
		float64(s.FileReaderCache.LookupHit)*100.0/float64(s.FileReaderCache.LookupHit+s.FileReaderCache.LookupMiss),
		s.FileReaderCache.Insert,
		s.FileReaderCache.ActiveEvict,
		s.FileReaderCache.PassiveEvict,
	)
	fmt.Fprintf(&b,
		"PageCacheStats: lookup_hit: %d, lookup_miss: %d, hit_rate: %v%%, insert: %d, active_evict: %d, passive_evict: %d\n",
		s.PageCache.LookupHit,
		s.PageCache.LookupMiss,
		float64(s.PageCache.LookupHit)*100.0/float64(s.PageCache.LookupHit+s.PageCache.LookupMiss),
		s.PageCache.Insert,
		s.PageCache.ActiveEvict,
		s.PageCache.PassiveEvict,
	)
	fmt.Fprintf(&b,
		"JobStats: flush_write_bytes: %d, rewrite_bytes: %d, compact_write_bytes: %d, write_amp: %.2f\n",
		s.Jobs.FlushWriteBytes,
		s.Jobs.RewriteBytes,
		s.Jobs.CompactWriteBytes,
		s.WriteAmp(),
	)
	return b.String()
}

// CacheStats is a snapshot of one cache's counters.
type CacheStats struct {
	LookupHit    uint64 `json:"lookupHit"`
	LookupMiss   uint64 `json:"lookupMiss"`
	Insert       uint64 `json:"insert"`
	ActiveEvict  uint64 `json:"activeEvict"`
	PassiveEvict uint64 `json:"passiveEvict"`
}

// Sub returns the pointwise wrapping difference.
func (s CacheStats) Sub(o CacheStats) CacheStats {
	return CacheStats{
		LookupHit:    s.LookupHit - o.LookupHit,
		LookupMiss:   s.LookupMiss - o.LookupMiss,
		Insert:       s.Insert - o.Insert,
		ActiveEvict:  s.ActiveEvict - o.ActiveEvict,
		PassiveEvict: s.PassiveEvict - o.PassiveEvict,
	}
}

// Add returns the pointwise wrapping sum.
func (s CacheStats) Add(o CacheStats) CacheStats {
	return CacheStats{
		LookupHit:    s.LookupHit + o.LookupHit,
		LookupMiss:   s.LookupMiss + o.LookupMiss,
		Insert:       s.Insert + o.Insert,
		ActiveEvict:  s.ActiveEvict + o.ActiveEvict,
		PassiveEvict: s.PassiveEvict + o.PassiveEvict,
	}
}

// WritebufStats is a snapshot of the write buffer's read counters.
type WritebufStats struct {
	ReadInBuf  uint64 `json:"readInBuf"`
	ReadInFile uint64 `json:"readInFile"`
}

// Sub returns the pointwise wrapping difference.
func (s WritebufStats) Sub(o WritebufStats) WritebufStats {
	return WritebufStats{
		ReadInBuf:  s.ReadInBuf - o.ReadInBuf,
		ReadInFile: s.ReadInFile - o.ReadInFile,
	}
}

// JobStats is a snapshot of the background job byte counters.
type JobStats struct {
	// Total bytes written during flush.
	FlushWriteBytes uint64 `json:"flushWriteBytes"`
	// Total bytes rewritten by reclamation.
	RewriteBytes uint64 `json:"rewriteBytes"`
	// Total bytes written during map-file compaction.
	CompactWriteBytes uint64 `json:"compactWriteBytes"`
}

// Sub returns the pointwise wrapping difference.
func (s JobStats) Sub(o JobStats) JobStats {
	return JobStats{
		FlushWriteBytes:   s.FlushWriteBytes - o.FlushWriteBytes,
		RewriteBytes:      s.RewriteBytes - o.RewriteBytes,
		CompactWriteBytes: s.CompactWriteBytes - o.CompactWriteBytes,
	}
}

// AtomicCacheStats holds the live counters behind a CacheStats snapshot.
type AtomicCacheStats struct {
	LookupHit    Counter
	LookupMiss   Counter
	Insert       Counter
	ActiveEvict  Counter
	PassiveEvict Counter
}

// Snapshot reads each counter once, in no particular order.
func (s *AtomicCacheStats) Snapshot() CacheStats {
	return CacheStats{
		LookupHit:    s.LookupHit.Get(),
		LookupMiss:   s.LookupMiss.Get(),
		Insert:       s.Insert.Get(),
		ActiveEvict:  s.ActiveEvict.Get(),
		PassiveEvict: s.PassiveEvict.Get(),
	}
}

// AtomicWritebufStats holds the live write buffer counters.
type AtomicWritebufStats struct {
	ReadInBuf  Counter
	ReadInFile Counter
}

// Snapshot reads each counter once, in no particular order.
func (s *AtomicWritebufStats) Snapshot() WritebufStats {
	return WritebufStats{
		ReadInBuf:  s.ReadInBuf.Get(),
		ReadInFile: s.ReadInFile.Get(),
	}
}

// AtomicJobStats holds the live background job counters.
type AtomicJobStats struct {
	FlushWriteBytes   Counter
	RewriteBytes      Counter
	CompactWriteBytes Counter
}

// Snapshot reads each counter once, in no particular order.
func (s *AtomicJobStats) Snapshot() JobStats {
	return JobStats{
		FlushWriteBytes:   s.FlushWriteBytes.Get(),
		RewriteBytes:      s.RewriteBytes.Get(),
		CompactWriteBytes: s.CompactWriteBytes.Get(),
	}
}

// AtomicStoreStats aggregates the live counter groups of one page store.
type AtomicStoreStats struct {
	PageCache       AtomicCacheStats
	FileReaderCache AtomicCacheStats
	Writebuf        AtomicWritebufStats
	Jobs            AtomicJobStats
}

// Snapshot copies every group. Counters are read independently, so the
// result may see small skew between counters under concurrent writers.
func (s *AtomicStoreStats) Snapshot() StoreStats {
	return StoreStats{
		PageCache:       s.PageCache.Snapshot(),
		FileReaderCache: s.FileReaderCache.Snapshot(),
		Writebuf:        s.Writebuf.Snapshot(),
		Jobs:            s.Jobs.Snapshot(),
	}
}
