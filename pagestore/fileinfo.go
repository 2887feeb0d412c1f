package pagestore

import "fmt"

// FileInfo describes one page file to the reclaim strategy. The page store's
// file-info bookkeeping lives outside this package; the strategy only reads
// the derived metrics.
type FileInfo interface {
	// FileID returns the page file's id.
	FileID() uint32
	// FileSize returns the physical bytes occupied by the file.
	FileSize() int
	// EffectiveSize returns the sum of active-page sizes.
	EffectiveSize() int
	// NumActivePages returns the count of pages not yet superseded or deleted.
	NumActivePages() int
	// TotalPages returns the count of all pages ever written to the file.
	TotalPages() int
	// EffectiveRate returns effectiveSize / (fileSize + 0.1).
	EffectiveRate() float64
	// EmptyPagesRate returns 1 - numActivePages / (totalPages + 0.1).
	EmptyPagesRate() float64
	// Up2 returns the epoch of the file's most recent update.
	Up2() uint32
	// IsEmpty reports whether the file has no active pages left.
	IsEmpty() bool
}

// MapFileInfo describes one map file, a segment that logically contains
// several virtual page files as components.
type MapFileInfo interface {
	// FileID returns the map file's id.
	FileID() uint32
	// Up2 returns the epoch of the map file's most recent update.
	Up2() uint32
	// Meta returns the map file's layout metadata.
	Meta() MapFileMeta
}

// MapFileMeta is the layout metadata of a map file.
type MapFileMeta interface {
	// FileSize returns the physical bytes occupied by the map file.
	FileSize() int
	// PageFiles returns the ids of the component page files.
	PageFiles() []uint32
}

// fileSummary is the per-segment metric record the strategy scores. It lives
// inside a single reclamation round.
type fileSummary struct {
	fileSize       int
	numActivePages int
	effectiveSize  int
	effectiveRate  float64
	emptyPagesRate float64
	up2            uint32
}

func summarizePageFile(info FileInfo) fileSummary {
	return fileSummary{
		fileSize:       info.FileSize(),
		numActivePages: info.NumActivePages(),
		effectiveSize:  info.EffectiveSize(),
		effectiveRate:  info.EffectiveRate(),
		emptyPagesRate: info.EmptyPagesRate(),
		up2:            info.Up2(),
	}
}

// summarizeMapFile aggregates a map file's summary over its components.
// File size and up2 come from the map file itself; page counts and effective
// size are summed over the component infos. Every component listed by the
// meta must be present in virtualInfos.
func summarizeMapFile(virtualInfos map[uint32]FileInfo, info MapFileInfo) fileSummary {
	meta := info.Meta()
	fileSize := meta.FileSize()
	var numActivePages, effectiveSize, totalPages int
	for _, pageFile := range meta.PageFiles() {
		partial, ok := virtualInfos[pageFile]
		if !ok {
			panic(fmt.Sprintf("pagestore: virtual page file %d must exist", pageFile))
		}
		numActivePages += partial.NumActivePages()
		effectiveSize += partial.EffectiveSize()
		totalPages += partial.TotalPages()
	}
	// The +0.1 smoothing keeps both rates finite even for empty metas.
	effectiveRate := float64(effectiveSize) / (float64(fileSize) + 0.1)
	emptyPagesRate := 1.0 - float64(numActivePages)/(float64(totalPages)+0.1)
	return fileSummary{
		fileSize:       fileSize,
		numActivePages: numActivePages,
		effectiveSize:  effectiveSize,
		effectiveRate:  effectiveRate,
		emptyPagesRate: emptyPagesRate,
		up2:            info.Up2(),
	}
}
