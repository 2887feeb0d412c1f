package simulator

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/KernelFreeze/photondb/pagestore"
)

// Cache capacities used by the read-path model. Small on purpose: the point
// is exercising hit/miss/evict accounting, not modeling a real cache.
const (
	pageCacheCap   = 2048
	readerCacheCap = 32
)

// Simulator ages a page store one epoch at a time: updates redirect live
// pages (leaving garbage behind), new versions flush into fresh segments,
// standalone segments get sealed into map files, and a reclaim round runs on
// a fixed cadence using the min-decline-rate strategy. The store counters
// are bumped along the way so the stats surface behaves like a live store's.
//
// A Simulator is driven by one goroutine at a time; callers that share one
// across goroutines wrap it in their own lock.
type Simulator struct {
	config SimConfig
	rng    *rand.Rand
	epoch  uint32
	nextID uint32

	pageFiles map[uint32]*PageFile // every live page file, map members included
	mapFiles  map[uint32]*MapFile
	sealQueue []uint32 // standalone files in flush order, awaiting sealing

	stats        *pagestore.AtomicStoreStats
	lastSnapshot pagestore.StoreStats

	builder pagestore.StrategyBuilder

	cachedPages    int
	cachedReaders  int
	reclaimedFiles int
	reclaimedBytes int

	// LogEvent, when set, receives one line per notable simulator event.
	LogEvent func(string)
}

// NewSimulator creates a simulator for the given configuration.
func NewSimulator(config SimConfig) (*Simulator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	s := &Simulator{
		config:  config,
		builder: pagestore.MinDeclineRateStrategyBuilder{},
	}
	s.Reset()
	return s, nil
}

// Reset returns the simulator to its initial empty state. Runs with equal
// seeds replay identically after a Reset.
func (s *Simulator) Reset() {
	s.rng = rand.New(rand.NewSource(s.config.Seed))
	s.epoch = 0
	s.nextID = 1
	s.pageFiles = make(map[uint32]*PageFile)
	s.mapFiles = make(map[uint32]*MapFile)
	s.sealQueue = nil
	s.stats = &pagestore.AtomicStoreStats{}
	s.lastSnapshot = pagestore.StoreStats{}
	s.cachedPages = 0
	s.cachedReaders = 0
	s.reclaimedFiles = 0
	s.reclaimedBytes = 0
}

// Epoch returns the current epoch.
func (s *Simulator) Epoch() uint32 {
	return s.epoch
}

// Config returns the simulator's configuration.
func (s *Simulator) Config() SimConfig {
	return s.config
}

// Step advances the simulation by one epoch.
func (s *Simulator) Step() {
	s.epoch++
	now := s.epoch
	c := s.config

	// Redirect pages. Each update supersedes one live page somewhere; the
	// new version lands in this epoch's flush below.
	if c.UpdatesPerEpoch > 0 {
		candidates := s.liveFileIDs()
		for i := 0; i < c.UpdatesPerEpoch && len(candidates) > 0; i++ {
			j := s.rng.Intn(len(candidates))
			f := s.pageFiles[candidates[j]]
			f.Deactivate(1, now)
			if f.IsEmpty() {
				candidates = append(candidates[:j], candidates[j+1:]...)
			}
		}
	}

	// Flush the epoch's new page versions as a fresh segment.
	nf := NewPageFile(s.nextID, c.PagesPerFile, c.PageSizeBytes, now)
	s.nextID++
	s.pageFiles[nf.id] = nf
	s.sealQueue = append(s.sealQueue, nf.id)
	s.stats.Jobs.FlushWriteBytes.Add(uint64(nf.fileSize))

	// Seal the oldest standalone files into a map file, keeping the fresh
	// flush out of the group.
	if c.MapFileGroup > 1 && len(s.sealQueue) > c.MapFileGroup {
		members := make([]*PageFile, 0, c.MapFileGroup)
		for _, id := range s.sealQueue[:c.MapFileGroup] {
			members = append(members, s.pageFiles[id])
		}
		mf := NewMapFile(s.nextID, members, now)
		s.nextID++
		s.mapFiles[mf.id] = mf
		s.sealQueue = append(s.sealQueue[:0:0], s.sealQueue[c.MapFileGroup:]...)
		s.stats.Jobs.CompactWriteBytes.Add(uint64(mf.fileSize))
		s.logf("sealed %d page files into map file %d", len(members), mf.id)
	}

	s.simulateReads()

	if now%uint32(c.ReclaimEvery) == 0 {
		s.runReclaim(now)
	}
}

// liveFileIDs returns the ids of files that still hold active pages, in id
// order so runs replay deterministically.
func (s *Simulator) liveFileIDs() []uint32 {
	ids := make([]uint32, 0, len(s.pageFiles))
	for id, f := range s.pageFiles {
		if !f.IsEmpty() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *Simulator) simulateReads() {
	c := s.config
	for i := 0; i < c.ReadsPerEpoch; i++ {
		if s.rng.Float64() < c.WritebufHitRate {
			s.stats.Writebuf.ReadInBuf.Inc()
			continue
		}
		s.stats.Writebuf.ReadInFile.Inc()

		if s.rng.Float64() < c.CacheHitRate {
			s.stats.PageCache.LookupHit.Inc()
			continue
		}
		s.stats.PageCache.LookupMiss.Inc()

		// A page cache miss opens the segment through the reader cache.
		if s.rng.Float64() < c.CacheHitRate {
			s.stats.FileReaderCache.LookupHit.Inc()
		} else {
			s.stats.FileReaderCache.LookupMiss.Inc()
			s.stats.FileReaderCache.Insert.Inc()
			if s.cachedReaders < readerCacheCap {
				s.cachedReaders++
			} else {
				s.stats.FileReaderCache.PassiveEvict.Inc()
			}
		}

		// The fetched page lands in the page cache.
		s.stats.PageCache.Insert.Inc()
		if s.cachedPages < pageCacheCap {
			s.cachedPages++
		} else {
			s.stats.PageCache.PassiveEvict.Inc()
		}
	}
}

// runReclaim runs one reclamation round: a fresh strategy instance collects
// every eligible segment, the victim's live bytes are rewritten into a new
// segment, and the victim is retired.
func (s *Simulator) runReclaim(now uint32) {
	strategy := s.builder.Build(now)

	collected := 0
	for _, id := range s.sortedPageFileIDs() {
		f := s.pageFiles[id]
		if f.owner != nil {
			continue
		}
		strategy.CollectPageFile(f)
		collected++
	}

	mapIDs := s.sortedMapFileIDs()
	if len(mapIDs) > 0 {
		infos := make(map[uint32]pagestore.FileInfo, len(s.pageFiles))
		for id, f := range s.pageFiles {
			infos[id] = f
		}
		for _, id := range mapIDs {
			strategy.CollectMapFile(infos, s.mapFiles[id])
			collected++
		}
	}

	victim, activeSize, ok := strategy.Apply()
	if !ok {
		s.logf("reclaim deferred: %d candidates", collected)
		return
	}

	var survivors int
	switch victim.Kind {
	case pagestore.PickedPageFile:
		survivors = s.pageFiles[victim.ID].activePages
		s.dropPageFile(victim.ID)
	case pagestore.PickedMapFile:
		mf := s.mapFiles[victim.ID]
		for _, id := range mf.members {
			survivors += s.pageFiles[id].activePages
			delete(s.pageFiles, id)
		}
		delete(s.mapFiles, victim.ID)
	}

	s.stats.Jobs.RewriteBytes.Add(uint64(activeSize))
	if s.cachedReaders > 0 {
		s.cachedReaders--
		s.stats.FileReaderCache.ActiveEvict.Inc()
	}

	if survivors > 0 {
		nf := NewPageFile(s.nextID, survivors, s.config.PageSizeBytes, now)
		s.nextID++
		s.pageFiles[nf.id] = nf
		s.sealQueue = append(s.sealQueue, nf.id)
	}

	s.reclaimedFiles++
	s.reclaimedBytes += activeSize
	s.logf("reclaimed %s: rewrote %d live bytes", victim, activeSize)
}

func (s *Simulator) dropPageFile(id uint32) {
	delete(s.pageFiles, id)
	for i, qid := range s.sealQueue {
		if qid == id {
			s.sealQueue = append(s.sealQueue[:i], s.sealQueue[i+1:]...)
			return
		}
	}
}

func (s *Simulator) sortedPageFileIDs() []uint32 {
	ids := make([]uint32, 0, len(s.pageFiles))
	for id := range s.pageFiles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *Simulator) sortedMapFileIDs() []uint32 {
	ids := make([]uint32, 0, len(s.mapFiles))
	for id := range s.mapFiles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Stats returns a snapshot of the store counters.
func (s *Simulator) Stats() pagestore.StoreStats {
	return s.stats.Snapshot()
}

// IntervalStats returns the counter movement since the previous call and
// advances the baseline.
func (s *Simulator) IntervalStats() pagestore.StoreStats {
	snap := s.stats.Snapshot()
	diff := snap.Sub(s.lastSnapshot)
	s.lastSnapshot = snap
	return diff
}

// State summarizes the segment population for display.
func (s *Simulator) State() map[string]interface{} {
	var liveBytes, physicalBytes int
	standalone := 0
	for _, f := range s.pageFiles {
		liveBytes += f.EffectiveSize()
		if f.owner == nil {
			physicalBytes += f.fileSize
			standalone++
		}
	}
	for _, mf := range s.mapFiles {
		physicalBytes += mf.fileSize
	}

	garbageRatio := 0.0
	if physicalBytes > 0 {
		garbageRatio = 1.0 - float64(liveBytes)/float64(physicalBytes)
	}

	return map[string]interface{}{
		"epoch":          s.epoch,
		"pageFiles":      standalone,
		"mapFiles":       len(s.mapFiles),
		"liveBytes":      liveBytes,
		"physicalBytes":  physicalBytes,
		"garbageRatio":   garbageRatio,
		"reclaimedFiles": s.reclaimedFiles,
		"reclaimedBytes": s.reclaimedBytes,
		"writeAmp":       s.stats.Snapshot().WriteAmp(),
	}
}

func (s *Simulator) logf(format string, args ...interface{}) {
	if s.LogEvent != nil {
		s.LogEvent(fmt.Sprintf(format, args...))
	}
}
