// Package page implements the immutable on-page binary layout the Bw-tree
// uses to navigate from a key to a leaf: the sorted page framing, the index
// page view over it, and the iterator adapters for traversal and splits.
package page

import "encoding/binary"

// PageKind discriminates page layouts.
type PageKind uint8

const (
	// KindData marks leaf data pages. Their entry encoding is owned by the
	// data-page module; this package only frames them.
	KindData PageKind = iota
	// KindIndex marks internal index pages routing key ranges to children.
	KindIndex
)

func (k PageKind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindIndex:
		return "index"
	default:
		return "unknown"
	}
}

// Layout of the fixed page header. All multi-byte integers on a page are
// little-endian so the format is stable across processes.
const (
	pageKindOffset  = 0
	pageFlagsOffset = 1
	pageCountOffset = 2
	pageHeaderSize  = 6

	flagIsData = 1 << 0
)

// PageRef is a read-only view over an allocated page region. The bytes never
// change while the page is live, so any number of readers may hold and
// traverse a PageRef without synchronization. Slices handed out by the
// typed views below alias these bytes; the page allocator's pinning protocol
// keeps them valid for the duration of a read.
type PageRef struct {
	data []byte
}

// NewPageRef wraps an allocated page region.
func NewPageRef(data []byte) PageRef {
	if len(data) < pageHeaderSize {
		panic("page: buffer smaller than the page header")
	}
	return PageRef{data: data}
}

// Kind returns the page's kind discriminator.
func (p PageRef) Kind() PageKind {
	return PageKind(p.data[pageKindOffset])
}

// IsData reports whether the page carries leaf data entries.
func (p PageRef) IsData() bool {
	return p.data[pageFlagsOffset]&flagIsData != 0
}

// Size returns the page's size in bytes.
func (p PageRef) Size() int {
	return len(p.data)
}

func (p PageRef) entryCount() int {
	return int(binary.LittleEndian.Uint32(p.data[pageCountOffset:]))
}

func writePageHeader(data []byte, kind PageKind, isData bool, count int) {
	data[pageKindOffset] = byte(kind)
	var flags byte
	if isData {
		flags |= flagIsData
	}
	data[pageFlagsOffset] = flags
	binary.LittleEndian.PutUint32(data[pageCountOffset:], uint32(count))
}

// PageAlloc hands out page buffers. The page store's allocator implements
// this; HeapAlloc serves tests and tools.
type PageAlloc interface {
	AllocPage(size int) ([]byte, error)
}

// HeapAlloc allocates pages on the Go heap.
type HeapAlloc struct{}

// AllocPage returns a zeroed buffer of the given size.
func (HeapAlloc) AllocPage(size int) ([]byte, error) {
	return make([]byte, size), nil
}
