package simulator

import "github.com/KernelFreeze/photondb/pagestore"

// segmentFooterBytes models the per-segment meta block, so a freshly
// flushed file is never exactly saturated by its pages alone.
const segmentFooterBytes = 128

// PageFile is the reclaim-relevant bookkeeping of one simulated segment.
// It implements pagestore.FileInfo.
type PageFile struct {
	id          uint32
	fileSize    int
	pageSize    int
	totalPages  int
	activePages int
	up2         uint32
	owner       *MapFile // set once the file is sealed into a map file
}

// NewPageFile returns a freshly flushed page file with all pages active.
func NewPageFile(id uint32, pages, pageSize int, now uint32) *PageFile {
	return &PageFile{
		id:          id,
		fileSize:    pages*pageSize + segmentFooterBytes,
		pageSize:    pageSize,
		totalPages:  pages,
		activePages: pages,
		up2:         now,
	}
}

// Deactivate supersedes n of the file's pages at epoch now. Updating a page
// touches the segment, so up2 advances; a sealed file also touches its
// owning map file.
func (f *PageFile) Deactivate(n int, now uint32) {
	if n > f.activePages {
		n = f.activePages
	}
	f.activePages -= n
	f.up2 = now
	if f.owner != nil {
		f.owner.up2 = now
	}
}

// FileID returns the page file's id.
func (f *PageFile) FileID() uint32 { return f.id }

// FileSize returns the physical bytes occupied by the file.
func (f *PageFile) FileSize() int { return f.fileSize }

// EffectiveSize returns the bytes of pages still active.
func (f *PageFile) EffectiveSize() int { return f.activePages * f.pageSize }

// NumActivePages returns the count of pages not yet superseded.
func (f *PageFile) NumActivePages() int { return f.activePages }

// TotalPages returns the count of all pages in the file.
func (f *PageFile) TotalPages() int { return f.totalPages }

// EffectiveRate returns the smoothed live-data density.
func (f *PageFile) EffectiveRate() float64 {
	return float64(f.EffectiveSize()) / (float64(f.fileSize) + 0.1)
}

// EmptyPagesRate returns the smoothed garbage fraction.
func (f *PageFile) EmptyPagesRate() float64 {
	return 1.0 - float64(f.activePages)/(float64(f.totalPages)+0.1)
}

// Up2 returns the epoch of the file's most recent update.
func (f *PageFile) Up2() uint32 { return f.up2 }

// IsEmpty reports whether no active pages remain.
func (f *PageFile) IsEmpty() bool { return f.activePages == 0 }

// MapFile is a sealed group of page files. It implements
// pagestore.MapFileInfo; per-page bookkeeping stays with the members.
type MapFile struct {
	id       uint32
	fileSize int
	members  []uint32
	up2      uint32
}

// NewMapFile seals members into one map file at epoch now.
func NewMapFile(id uint32, members []*PageFile, now uint32) *MapFile {
	mf := &MapFile{id: id, fileSize: segmentFooterBytes, up2: now}
	for _, m := range members {
		mf.fileSize += m.fileSize
		mf.members = append(mf.members, m.id)
		m.owner = mf
	}
	return mf
}

// FileID returns the map file's id.
func (f *MapFile) FileID() uint32 { return f.id }

// Up2 returns the epoch of the map file's most recent update.
func (f *MapFile) Up2() uint32 { return f.up2 }

// Meta returns the map file's layout metadata.
func (f *MapFile) Meta() pagestore.MapFileMeta { return mapFileMeta{f} }

type mapFileMeta struct {
	f *MapFile
}

func (m mapFileMeta) FileSize() int       { return m.f.fileSize }
func (m mapFileMeta) PageFiles() []uint32 { return m.f.members }
