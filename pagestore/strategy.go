package pagestore

import (
	"fmt"
	"math"
	"sort"
)

// StrategyBuilder produces a freshly-seeded strategy instance for one
// reclamation round. Builders and the instances they produce may be handed
// to a dedicated reclaim goroutine; an instance itself is used by one
// goroutine at a time.
type StrategyBuilder interface {
	Build(now uint32) ReclaimPickStrategy
}

// ReclaimPickStrategy decides which segment to reclaim next. The protocol is
// one CollectPageFile call per eligible page file, one CollectMapFile call
// per eligible map file, then a single Apply.
type ReclaimPickStrategy interface {
	// CollectPageFile ingests one page file and computes its reclamation score.
	CollectPageFile(info FileInfo)

	// CollectMapFile ingests one map file, looking up each component in
	// virtualInfos. Every component listed by the map file's meta must be
	// present; a missing component is a caller bug and panics.
	CollectMapFile(virtualInfos map[uint32]FileInfo, info MapFileInfo)

	// Apply returns the most suitable segment for reclaiming together with
	// its active size, the bytes the caller must rewrite. With fewer than
	// two collected segments there is no comparative advantage to reclaiming
	// and Apply reports ok=false.
	Apply() (victim PickedFile, activeSize int, ok bool)
}

// PickedFileKind discriminates the two segment flavors a strategy can pick.
type PickedFileKind uint8

const (
	// PickedPageFile identifies a plain page file.
	PickedPageFile PickedFileKind = iota
	// PickedMapFile identifies a map file.
	PickedMapFile
)

// PickedFile identifies the segment picked by a reclaiming strategy.
type PickedFile struct {
	Kind PickedFileKind
	ID   uint32
}

// PickPageFile returns the PickedFile for page file id.
func PickPageFile(id uint32) PickedFile {
	return PickedFile{Kind: PickedPageFile, ID: id}
}

// PickMapFile returns the PickedFile for map file id.
func PickMapFile(id uint32) PickedFile {
	return PickedFile{Kind: PickedMapFile, ID: id}
}

// Compare defines a total order: page files before map files, then by id.
// It is the final tie-breaker of the score order, so equal-scored candidates
// resolve the same way regardless of collection order.
func (f PickedFile) Compare(o PickedFile) int {
	if f.Kind != o.Kind {
		if f.Kind < o.Kind {
			return -1
		}
		return 1
	}
	if f.ID != o.ID {
		if f.ID < o.ID {
			return -1
		}
		return 1
	}
	return 0
}

func (f PickedFile) String() string {
	if f.Kind == PickedMapFile {
		return fmt.Sprintf("map-file-%d", f.ID)
	}
	return fmt.Sprintf("page-file-%d", f.ID)
}

// fileScore is the strategy's working record for one candidate segment.
type fileScore struct {
	score         float64
	effectiveRate float64
	writeAmplify  float64
	activeSize    int
	fileID        PickedFile
}

// less orders candidates lexicographically on (score, effectiveRate,
// writeAmplify, activeSize, fileID). The collect-time validation forbids a
// NaN score or effective rate, so those comparisons are total; writeAmplify
// is not validated.
func (a fileScore) less(b fileScore) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	if a.effectiveRate != b.effectiveRate {
		return a.effectiveRate < b.effectiveRate
	}
	if a.writeAmplify != b.writeAmplify {
		return a.writeAmplify < b.writeAmplify
	}
	if a.activeSize != b.activeSize {
		return a.activeSize < b.activeSize
	}
	return a.fileID.Compare(b.fileID) < 0
}

// MinDeclineRateStrategy picks the segment whose reclamation yields the
// steepest drop in live-byte occupancy per unit of rewrite work. See
// "Efficiently Reclaiming Space in a Log Structured Store" section 5.1.3.
type MinDeclineRateStrategy struct {
	now  uint32
	used int

	sorted bool
	scores []fileScore
}

// NewMinDeclineRateStrategy returns a strategy instance for the round at
// epoch now.
func NewMinDeclineRateStrategy(now uint32) *MinDeclineRateStrategy {
	return &MinDeclineRateStrategy{now: now}
}

func (s *MinDeclineRateStrategy) collect(fileID PickedFile, summary fileSummary) {
	score := declineRate(summary, s.now)
	effectiveRate := summary.effectiveRate
	writeAmplify := WriteAmplification(summary.emptyPagesRate)
	if math.IsNaN(score) {
		panic(fmt.Sprintf("pagestore: NaN score for %s", fileID))
	}
	if math.IsNaN(effectiveRate) || math.IsInf(effectiveRate, 0) {
		panic(fmt.Sprintf("pagestore: invalid effective rate %v for %s", effectiveRate, fileID))
	}
	s.used += summary.fileSize
	s.scores = append(s.scores, fileScore{
		score:         score,
		effectiveRate: effectiveRate,
		writeAmplify:  writeAmplify,
		activeSize:    summary.effectiveSize,
		fileID:        fileID,
	})
}

// CollectPageFile ingests one page file.
func (s *MinDeclineRateStrategy) CollectPageFile(info FileInfo) {
	s.collect(PickPageFile(info.FileID()), summarizePageFile(info))
}

// CollectMapFile ingests one map file, aggregating over its components.
func (s *MinDeclineRateStrategy) CollectMapFile(virtualInfos map[uint32]FileInfo, info MapFileInfo) {
	s.collect(PickMapFile(info.FileID()), summarizeMapFile(virtualInfos, info))
}

// Apply returns the candidate with the maximum score under the tie-break
// order and removes it, so a subsequent Apply yields the runner-up while at
// least two candidates remain.
func (s *MinDeclineRateStrategy) Apply() (PickedFile, int, bool) {
	if !s.sorted {
		s.sorted = true
		sort.Slice(s.scores, func(i, j int) bool {
			return s.scores[i].less(s.scores[j])
		})
	}

	if len(s.scores) < 2 {
		return PickedFile{}, 0, false
	}

	top := s.scores[len(s.scores)-1]
	s.scores = s.scores[:len(s.scores)-1]
	return top.fileID, top.activeSize, true
}

// Used returns the total physical bytes of all collected segments. Exposed
// for diagnostics.
func (s *MinDeclineRateStrategy) Used() int {
	return s.used
}

// MinDeclineRateStrategyBuilder builds MinDeclineRateStrategy instances.
type MinDeclineRateStrategyBuilder struct{}

// Build returns a fresh strategy for the round at epoch now.
func (MinDeclineRateStrategyBuilder) Build(now uint32) ReclaimPickStrategy {
	return NewMinDeclineRateStrategy(now)
}

// declineRate scores one segment at epoch now. Larger (less negative) is a
// better reclaim candidate: a fully-empty segment scores 0.0, the maximum;
// a saturated segment (no free space to recover) or one updated this epoch
// drops to the floor.
func declineRate(summary fileSummary, now uint32) float64 {
	numActivePages := summary.numActivePages
	if numActivePages == 0 {
		return 0.0
	}

	freeSize := summary.fileSize - summary.effectiveSize
	if freeSize == 0 || summary.up2 == now {
		return -math.MaxFloat64
	}

	effectiveSize := float64(summary.effectiveSize)
	free := float64(freeSize)
	active := float64(numActivePages)
	age := float64(now) - float64(summary.up2)

	// See "Efficiently Reclaiming Space in a Log Structured Store" section
	// 5.1.3 "Transformed Declining Cost Equation" for details.
	ratio := effectiveSize / free
	return -(ratio * ratio) / (active * age)
}

// WriteAmplification models the rewrite cost of cleaning a segment with the
// given empty-pages rate. See "Efficiently Reclaiming Space in a Log
// Structured Store" section 2.1 "The Cost of Cleaning" for details.
func WriteAmplification(emptyRate float64) float64 {
	return (1.0 / emptyRate) * (1.0 - emptyRate)
}

// TotalWriteAmplification models the rewrite cost over a set of files,
// ignoring the ones that are already empty.
func TotalWriteAmplification(fileInfos map[uint32]FileInfo) float64 {
	var emptyRate float64
	for _, info := range fileInfos {
		if info.IsEmpty() {
			continue
		}
		emptyRate += info.EmptyPagesRate()
	}
	return WriteAmplification(emptyRate)
}
