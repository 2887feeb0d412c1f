package pagestore

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubFileInfo is a fixed-metric FileInfo for driving the strategy directly.
type stubFileInfo struct {
	id            uint32
	fileSize      int
	activePages   int
	totalPages    int
	effectiveSize int
	up2           uint32
}

func (f stubFileInfo) FileID() uint32      { return f.id }
func (f stubFileInfo) FileSize() int       { return f.fileSize }
func (f stubFileInfo) EffectiveSize() int  { return f.effectiveSize }
func (f stubFileInfo) NumActivePages() int { return f.activePages }
func (f stubFileInfo) TotalPages() int     { return f.totalPages }
func (f stubFileInfo) Up2() uint32         { return f.up2 }
func (f stubFileInfo) IsEmpty() bool       { return f.activePages == 0 }

func (f stubFileInfo) EffectiveRate() float64 {
	return float64(f.effectiveSize) / (float64(f.fileSize) + 0.1)
}

func (f stubFileInfo) EmptyPagesRate() float64 {
	return 1.0 - float64(f.activePages)/(float64(f.totalPages)+0.1)
}

// badRateInfo reports a broken effective rate to trip the validator.
type badRateInfo struct {
	stubFileInfo
	rate float64
}

func (f badRateInfo) EffectiveRate() float64 { return f.rate }

type stubMapFileMeta struct {
	fileSize  int
	pageFiles []uint32
}

func (m stubMapFileMeta) FileSize() int       { return m.fileSize }
func (m stubMapFileMeta) PageFiles() []uint32 { return m.pageFiles }

type stubMapFileInfo struct {
	id   uint32
	up2  uint32
	meta stubMapFileMeta
}

func (f stubMapFileInfo) FileID() uint32    { return f.id }
func (f stubMapFileInfo) Up2() uint32       { return f.up2 }
func (f stubMapFileInfo) Meta() MapFileMeta { return f.meta }

func TestDeclineRateDegeneracy(t *testing.T) {
	t.Run("empty file scores zero", func(t *testing.T) {
		s := fileSummary{fileSize: 4096, numActivePages: 0, effectiveSize: 0, up2: 5}
		assert.Equal(t, 0.0, declineRate(s, 10))
	})

	t.Run("updated this epoch drops to the floor", func(t *testing.T) {
		s := fileSummary{fileSize: 1000, numActivePages: 1, effectiveSize: 500, up2: 10}
		assert.Equal(t, -math.MaxFloat64, declineRate(s, 10))
	})

	t.Run("saturated file drops to the floor", func(t *testing.T) {
		s := fileSummary{fileSize: 100, numActivePages: 10, effectiveSize: 100, up2: 1}
		assert.Equal(t, -math.MaxFloat64, declineRate(s, 5))
	})
}

// Holding everything else fixed, filling a file (effective size approaching
// file size) must make it a strictly worse candidate.
func TestDeclineRateMonotonicInFreeSpace(t *testing.T) {
	prev := declineRate(fileSummary{fileSize: 1000, numActivePages: 10, effectiveSize: 100, up2: 2}, 10)
	for e := 200; e < 1000; e += 100 {
		s := fileSummary{fileSize: 1000, numActivePages: 10, effectiveSize: e, up2: 2}
		score := declineRate(s, 10)
		if score >= prev {
			t.Fatalf("score not strictly decreasing in effective size: e=%d score=%v prev=%v", e, score, prev)
		}
		prev = score
	}
}

// Holding everything else fixed, an older file (larger now-up2) must be a
// strictly better candidate.
func TestDeclineRateMonotonicInAge(t *testing.T) {
	now := uint32(100)
	prev := declineRate(fileSummary{fileSize: 1000, numActivePages: 10, effectiveSize: 500, up2: 99}, now)
	for up2 := uint32(98); up2 > 90; up2-- {
		s := fileSummary{fileSize: 1000, numActivePages: 10, effectiveSize: 500, up2: up2}
		score := declineRate(s, now)
		if score <= prev {
			t.Fatalf("score not strictly increasing in age: up2=%d score=%v prev=%v", up2, score, prev)
		}
		prev = score
	}
}

func TestApplyEmptyFileBeatsAll(t *testing.T) {
	s := NewMinDeclineRateStrategy(10)
	s.CollectPageFile(stubFileInfo{id: 1, fileSize: 4096, activePages: 0, totalPages: 16, effectiveSize: 0, up2: 5})
	s.CollectPageFile(stubFileInfo{id: 2, fileSize: 4096, activePages: 100, totalPages: 128, effectiveSize: 3000, up2: 5})

	victim, activeSize, ok := s.Apply()
	require.True(t, ok)
	assert.Equal(t, PickPageFile(1), victim)
	assert.Equal(t, 0, activeSize)
}

func TestApplyRecencyFloors(t *testing.T) {
	s := NewMinDeclineRateStrategy(10)
	s.CollectPageFile(stubFileInfo{id: 1, fileSize: 1000, activePages: 1, totalPages: 4, effectiveSize: 500, up2: 10})
	s.CollectPageFile(stubFileInfo{id: 2, fileSize: 1000, activePages: 1, totalPages: 4, effectiveSize: 500, up2: 5})

	victim, activeSize, ok := s.Apply()
	require.True(t, ok)
	assert.Equal(t, PickPageFile(2), victim)
	assert.Equal(t, 500, activeSize)
}

func TestApplySaturationFloors(t *testing.T) {
	s := NewMinDeclineRateStrategy(5)
	s.CollectPageFile(stubFileInfo{id: 1, fileSize: 100, activePages: 10, totalPages: 16, effectiveSize: 100, up2: 1})
	s.CollectPageFile(stubFileInfo{id: 2, fileSize: 100, activePages: 10, totalPages: 16, effectiveSize: 50, up2: 1})

	victim, _, ok := s.Apply()
	require.True(t, ok)
	assert.Equal(t, PickPageFile(2), victim)
}

func TestApplySingleCandidate(t *testing.T) {
	s := NewMinDeclineRateStrategy(10)
	s.CollectPageFile(stubFileInfo{id: 1, fileSize: 4096, activePages: 10, totalPages: 16, effectiveSize: 1000, up2: 5})

	_, _, ok := s.Apply()
	assert.False(t, ok)
}

func TestApplyNoCandidates(t *testing.T) {
	s := NewMinDeclineRateStrategy(10)
	_, _, ok := s.Apply()
	assert.False(t, ok)
}

// The victim's score must dominate every other collected score.
func TestApplyPicksMaximum(t *testing.T) {
	infos := []stubFileInfo{
		{id: 1, fileSize: 4096, activePages: 40, totalPages: 64, effectiveSize: 3500, up2: 2},
		{id: 2, fileSize: 4096, activePages: 10, totalPages: 64, effectiveSize: 800, up2: 3},
		{id: 3, fileSize: 4096, activePages: 25, totalPages: 64, effectiveSize: 2000, up2: 7},
		{id: 4, fileSize: 4096, activePages: 60, totalPages: 64, effectiveSize: 3900, up2: 1},
	}
	now := uint32(10)

	s := NewMinDeclineRateStrategy(now)
	for _, info := range infos {
		s.CollectPageFile(info)
	}

	victim, _, ok := s.Apply()
	require.True(t, ok)

	victimScore := math.Inf(-1)
	for _, info := range infos {
		score := declineRate(summarizePageFile(info), now)
		if PickPageFile(info.id) == victim {
			victimScore = score
		}
	}
	for _, info := range infos {
		score := declineRate(summarizePageFile(info), now)
		assert.LessOrEqual(t, score, victimScore, "victim must dominate file %d", info.id)
	}
}

// Candidates with identical metrics must resolve to the same victim no
// matter which order they were collected in.
func TestApplyTieBreakDeterminism(t *testing.T) {
	infos := []stubFileInfo{
		{id: 1, fileSize: 1000, activePages: 5, totalPages: 16, effectiveSize: 400, up2: 3},
		{id: 2, fileSize: 1000, activePages: 5, totalPages: 16, effectiveSize: 400, up2: 3},
		{id: 3, fileSize: 1000, activePages: 5, totalPages: 16, effectiveSize: 400, up2: 3},
	}
	now := uint32(9)

	forward := NewMinDeclineRateStrategy(now)
	for i := 0; i < len(infos); i++ {
		forward.CollectPageFile(infos[i])
	}
	backward := NewMinDeclineRateStrategy(now)
	for i := len(infos) - 1; i >= 0; i-- {
		backward.CollectPageFile(infos[i])
	}

	v1, _, ok1 := forward.Apply()
	v2, _, ok2 := backward.Apply()
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, v1, v2)
}

func TestApplyRemovesVictim(t *testing.T) {
	s := NewMinDeclineRateStrategy(10)
	s.CollectPageFile(stubFileInfo{id: 1, fileSize: 4096, activePages: 0, totalPages: 16, effectiveSize: 0, up2: 5})
	s.CollectPageFile(stubFileInfo{id: 2, fileSize: 4096, activePages: 10, totalPages: 16, effectiveSize: 800, up2: 5})
	s.CollectPageFile(stubFileInfo{id: 3, fileSize: 4096, activePages: 50, totalPages: 64, effectiveSize: 3900, up2: 5})

	first, _, ok := s.Apply()
	require.True(t, ok)
	assert.Equal(t, PickPageFile(1), first)

	second, _, ok := s.Apply()
	require.True(t, ok)
	assert.Equal(t, PickPageFile(2), second)
}

func TestCollectMapFileAggregation(t *testing.T) {
	virtualInfos := map[uint32]FileInfo{
		10: stubFileInfo{id: 10, fileSize: 2048, activePages: 4, totalPages: 8, effectiveSize: 1024, up2: 2},
		11: stubFileInfo{id: 11, fileSize: 2048, activePages: 2, totalPages: 8, effectiveSize: 512, up2: 3},
	}
	mapInfo := stubMapFileInfo{
		id:   7,
		up2:  3,
		meta: stubMapFileMeta{fileSize: 4096, pageFiles: []uint32{10, 11}},
	}

	summary := summarizeMapFile(virtualInfos, mapInfo)
	assert.Equal(t, 4096, summary.fileSize)
	assert.Equal(t, 6, summary.numActivePages)
	assert.Equal(t, 1536, summary.effectiveSize)
	assert.Equal(t, uint32(3), summary.up2)
	assert.InDelta(t, 1536.0/4096.1, summary.effectiveRate, 1e-9)
	assert.InDelta(t, 1.0-6.0/16.1, summary.emptyPagesRate, 1e-9)

	// A map file competes against page files under the same order.
	s := NewMinDeclineRateStrategy(10)
	s.CollectMapFile(virtualInfos, mapInfo)
	s.CollectPageFile(stubFileInfo{id: 1, fileSize: 4096, activePages: 60, totalPages: 64, effectiveSize: 4000, up2: 9})

	victim, activeSize, ok := s.Apply()
	require.True(t, ok)
	assert.Equal(t, PickMapFile(7), victim)
	assert.Equal(t, 1536, activeSize)
}

func TestCollectMapFileMissingComponentPanics(t *testing.T) {
	virtualInfos := map[uint32]FileInfo{
		10: stubFileInfo{id: 10, fileSize: 2048, activePages: 4, totalPages: 8, effectiveSize: 1024, up2: 2},
	}
	mapInfo := stubMapFileInfo{
		id:   7,
		up2:  3,
		meta: stubMapFileMeta{fileSize: 4096, pageFiles: []uint32{10, 11}},
	}

	s := NewMinDeclineRateStrategy(10)
	assert.Panics(t, func() {
		s.CollectMapFile(virtualInfos, mapInfo)
	})
}

func TestCollectValidatesEffectiveRate(t *testing.T) {
	for _, rate := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		s := NewMinDeclineRateStrategy(10)
		info := badRateInfo{
			stubFileInfo: stubFileInfo{id: 1, fileSize: 1000, activePages: 2, totalPages: 4, effectiveSize: 100, up2: 2},
			rate:         rate,
		}
		assert.Panics(t, func() {
			s.CollectPageFile(info)
		}, "rate %v must be rejected", rate)
	}
}

func TestUsedAccounting(t *testing.T) {
	s := NewMinDeclineRateStrategy(10)
	s.CollectPageFile(stubFileInfo{id: 1, fileSize: 4096, activePages: 1, totalPages: 4, effectiveSize: 100, up2: 2})
	s.CollectPageFile(stubFileInfo{id: 2, fileSize: 8192, activePages: 1, totalPages: 4, effectiveSize: 100, up2: 2})
	assert.Equal(t, 12288, s.Used())
}

func TestPickedFileOrder(t *testing.T) {
	assert.Negative(t, PickPageFile(3).Compare(PickPageFile(4)))
	assert.Positive(t, PickPageFile(4).Compare(PickPageFile(3)))
	assert.Zero(t, PickPageFile(3).Compare(PickPageFile(3)))
	// Page files order before map files of equal id.
	assert.Negative(t, PickPageFile(3).Compare(PickMapFile(3)))
	assert.Negative(t, PickPageFile(9).Compare(PickMapFile(3)))
}

func TestWriteAmplification(t *testing.T) {
	// Half-empty segments: one byte reclaimed costs one byte rewritten.
	assert.InDelta(t, 1.0, WriteAmplification(0.5), 1e-9)
	// Mostly-empty segments are cheap to clean.
	assert.InDelta(t, 0.25, WriteAmplification(0.8), 1e-9)
}

func TestTotalWriteAmplification(t *testing.T) {
	fileInfos := map[uint32]FileInfo{
		1: stubFileInfo{id: 1, fileSize: 1000, activePages: 5, totalPages: 10, effectiveSize: 400, up2: 1},
		2: stubFileInfo{id: 2, fileSize: 1000, activePages: 0, totalPages: 10, effectiveSize: 0, up2: 1},
		3: stubFileInfo{id: 3, fileSize: 1000, activePages: 8, totalPages: 10, effectiveSize: 800, up2: 1},
	}

	var emptyRate float64
	for _, info := range fileInfos {
		if info.IsEmpty() {
			continue
		}
		emptyRate += info.EmptyPagesRate()
	}

	assert.InDelta(t, WriteAmplification(emptyRate), TotalWriteAmplification(fileInfos), 1e-9)
}
