package page

import (
	"bytes"
	"sort"
)

// ForwardIter yields index entries in ascending key order. Returned key
// slices are borrowed from the underlying page or slice and must not be
// held past the source's lifetime.
type ForwardIter interface {
	// Next advances the iterator and returns the current entry; ok is false
	// once the iterator is exhausted.
	Next() (key []byte, index Index, ok bool)
	// Last returns the entry most recently yielded by Next without
	// advancing; ok is false before the first Next and after exhaustion.
	Last() (key []byte, index Index, ok bool)
	// Skip advances by n entries without yielding them.
	Skip(n int)
	// SkipAll exhausts the iterator.
	SkipAll()
}

// SeekableIter positions by key.
type SeekableIter interface {
	ForwardIter
	// Seek positions the iterator so that the next Next yields the first
	// entry with key >= target.
	Seek(target []byte)
}

// RewindableIter restarts from the beginning, so consumers can scan twice
// (page builders measure on the first pass and emit on the second).
type RewindableIter interface {
	ForwardIter
	// Rewind resets the iterator to the beginning.
	Rewind()
}

// SliceIter iterates a sorted slice of index entries. It feeds page builders
// from in-memory entry sets.
type SliceIter struct {
	entries []IndexEntry
	next    int
	last    int
}

// NewSliceIter returns an iterator over entries, which must already be
// sorted ascending by key.
func NewSliceIter(entries []IndexEntry) *SliceIter {
	return &SliceIter{entries: entries, last: -1}
}

// Next advances and returns the current entry.
func (it *SliceIter) Next() ([]byte, Index, bool) {
	if it.next >= len(it.entries) {
		it.last = -1
		return nil, Index{}, false
	}
	it.last = it.next
	it.next++
	e := it.entries[it.last]
	return e.Key, e.Index, true
}

// Last returns the most recently yielded entry.
func (it *SliceIter) Last() ([]byte, Index, bool) {
	if it.last < 0 {
		return nil, Index{}, false
	}
	e := it.entries[it.last]
	return e.Key, e.Index, true
}

// Skip advances by n entries without yielding them.
func (it *SliceIter) Skip(n int) {
	it.next += n
	if it.next > len(it.entries) {
		it.next = len(it.entries)
	}
}

// SkipAll exhausts the iterator.
func (it *SliceIter) SkipAll() {
	it.next = len(it.entries)
}

// Seek positions at the first entry with key >= target.
func (it *SliceIter) Seek(target []byte) {
	it.next = sort.Search(len(it.entries), func(i int) bool {
		return bytes.Compare(it.entries[i].Key, target) >= 0
	})
	it.last = -1
}

// Rewind resets to the beginning.
func (it *SliceIter) Rewind() {
	it.next = 0
	it.last = -1
}
