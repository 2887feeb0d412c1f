package page

import (
	"bytes"
	"encoding/binary"
)

// Sorted page layout, after the fixed header:
//
//	offsets  count x uint32, each the byte offset of one entry from the
//	         page start, in ascending key order
//	payload  entries packed front to back: keyLen uvarint | key | value
//
// The value width is fixed per page kind, so positional access decodes one
// varint and slices. Pages are built once and never mutate.

// SortedPageRef is a typed view over a sorted page. All accessors are
// zero-copy: returned slices alias the page bytes.
type SortedPageRef struct {
	page      PageRef
	valueSize int
}

func newSortedPageRef(base PageRef, valueSize int) SortedPageRef {
	return SortedPageRef{page: base, valueSize: valueSize}
}

// Len returns the number of entries on the page.
func (r SortedPageRef) Len() int {
	return r.page.entryCount()
}

// Get returns the i-th entry in O(1); ok is false when i is out of range.
func (r SortedPageRef) Get(i int) (key, value []byte, ok bool) {
	if i < 0 || i >= r.Len() {
		return nil, nil, false
	}
	off := int(binary.LittleEndian.Uint32(r.page.data[pageHeaderSize+4*i:]))
	keyLen, n := binary.Uvarint(r.page.data[off:])
	keyStart := off + n
	keyEnd := keyStart + int(keyLen)
	return r.page.data[keyStart:keyEnd], r.page.data[keyEnd : keyEnd+r.valueSize], true
}

// Search does binary search by key. On an exact hit it returns the entry's
// index with found=true; otherwise it returns the insertion index, the count
// of entries with keys strictly less than target.
func (r SortedPageRef) Search(target []byte) (i int, found bool) {
	lo, hi := 0, r.Len()
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		key, _, _ := r.Get(mid)
		switch c := bytes.Compare(key, target); {
		case c == 0:
			return mid, true
		case c < 0:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return lo, false
}

// SeekBack returns the greatest entry with key <= target; ok is false when
// every key on the page exceeds target.
func (r SortedPageRef) SeekBack(target []byte) (key, value []byte, ok bool) {
	i, found := r.Search(target)
	if found {
		return r.Get(i)
	}
	if i == 0 {
		return nil, nil, false
	}
	return r.Get(i - 1)
}

// sortedPageIter walks a sorted page front to back.
type sortedPageIter struct {
	page SortedPageRef
	next int
	last int
}

func newSortedPageIter(page SortedPageRef) sortedPageIter {
	return sortedPageIter{page: page, last: -1}
}

func (it *sortedPageIter) Next() (key, value []byte, ok bool) {
	if it.next >= it.page.Len() {
		it.last = -1
		return nil, nil, false
	}
	it.last = it.next
	it.next++
	return it.page.Get(it.last)
}

func (it *sortedPageIter) Last() (key, value []byte, ok bool) {
	if it.last < 0 {
		return nil, nil, false
	}
	return it.page.Get(it.last)
}

func (it *sortedPageIter) Skip(n int) {
	it.next += n
	if it.next > it.page.Len() {
		it.next = it.page.Len()
	}
}

func (it *sortedPageIter) SkipAll() {
	it.next = it.page.Len()
}

func (it *sortedPageIter) Seek(target []byte) {
	it.next, _ = it.page.Search(target)
	it.last = -1
}

func (it *sortedPageIter) Rewind() {
	it.next = 0
	it.last = -1
}

func uvarintLen(x uint64) int {
	n := 1
	for x >= 0x80 {
		x >>= 7
		n++
	}
	return n
}
