package page

import "encoding/binary"

// Index is the fixed-size descriptor of a child subtree: the child's page id
// and the epoch it was installed at.
type Index struct {
	ID    uint64 `json:"id"`
	Epoch uint64 `json:"epoch"`
}

const indexSize = 16

func (x Index) encode(dst []byte) {
	binary.LittleEndian.PutUint64(dst[0:8], x.ID)
	binary.LittleEndian.PutUint64(dst[8:16], x.Epoch)
}

func decodeIndex(src []byte) Index {
	return Index{
		ID:    binary.LittleEndian.Uint64(src[0:8]),
		Epoch: binary.LittleEndian.Uint64(src[8:16]),
	}
}

// IndexEntry pairs a separator key with the child it routes to.
type IndexEntry struct {
	Key   []byte
	Index Index
}

// IndexPageBuilder builds index pages.
type IndexPageBuilder struct{}

// BuildFromIter builds an index page holding the entries yielded by iter,
// which must produce keys in strictly ascending order. The iterator is
// consumed twice: a first pass sizes the page, then the builder rewinds and
// emits.
func (IndexPageBuilder) BuildFromIter(alloc PageAlloc, iter RewindableIter) (PageRef, error) {
	var count, payload int
	for {
		key, _, ok := iter.Next()
		if !ok {
			break
		}
		count++
		payload += uvarintLen(uint64(len(key))) + len(key) + indexSize
	}

	data, err := alloc.AllocPage(pageHeaderSize + 4*count + payload)
	if err != nil {
		return PageRef{}, err
	}
	writePageHeader(data, KindIndex, false, count)

	iter.Rewind()
	slot := pageHeaderSize
	off := pageHeaderSize + 4*count
	for {
		key, index, ok := iter.Next()
		if !ok {
			break
		}
		binary.LittleEndian.PutUint32(data[slot:], uint32(off))
		slot += 4
		off += binary.PutUvarint(data[off:], uint64(len(key)))
		off += copy(data[off:], key)
		index.encode(data[off:])
		off += indexSize
	}
	return NewPageRef(data), nil
}

// IndexPageRef is an immutable reference to an index page.
type IndexPageRef struct {
	base SortedPageRef
}

// NewIndexPageRef wraps base, which must be an index page; anything else is
// a caller bug and panics.
func NewIndexPageRef(base PageRef) IndexPageRef {
	if base.Kind() != KindIndex {
		panic("page: not an index page")
	}
	if base.IsData() {
		panic("page: index pages do not carry data entries")
	}
	return IndexPageRef{base: newSortedPageRef(base, indexSize)}
}

// Len returns the number of entries on the page.
func (r IndexPageRef) Len() int {
	return r.base.Len()
}

// Get returns the i-th entry.
func (r IndexPageRef) Get(i int) ([]byte, Index, bool) {
	key, value, ok := r.base.Get(i)
	if !ok {
		return nil, Index{}, false
	}
	return key, decodeIndex(value), true
}

// Search does binary search by key with insertion-index semantics.
func (r IndexPageRef) Search(target []byte) (int, bool) {
	return r.base.Search(target)
}

// Find returns the entry that contains target, the greatest key <= target;
// ok is false when every key on the page exceeds target. This is the child
// pointer to descend into.
func (r IndexPageRef) Find(target []byte) ([]byte, Index, bool) {
	key, value, ok := r.base.SeekBack(target)
	if !ok {
		return nil, Index{}, false
	}
	return key, decodeIndex(value), true
}

// FindRange returns the entry covering target and the next entry, the one
// whose key bounds the covered child's range from above. Either side may be
// nil at the page's extremes.
func (r IndexPageRef) FindRange(target []byte) (left, right *IndexEntry) {
	i, found := r.base.Search(target)
	if found {
		return r.entryAt(i), r.entryAt(i + 1)
	}
	if i > 0 {
		left = r.entryAt(i - 1)
	}
	return left, r.entryAt(i)
}

func (r IndexPageRef) entryAt(i int) *IndexEntry {
	key, index, ok := r.Get(i)
	if !ok {
		return nil
	}
	return &IndexEntry{Key: key, Index: index}
}

// Iter returns a forward iterator over all entries.
func (r IndexPageRef) Iter() *IndexPageIter {
	return &IndexPageIter{base: newSortedPageIter(r.base)}
}

// Split chooses the middle entry as the separator and returns an iterator
// over the right half. ok is false when the page cannot be split with both
// halves non-empty.
func (r IndexPageRef) Split() (sep []byte, iter *IndexPageSplitIter, ok bool) {
	n := r.base.Len()
	sep, _, ok = r.base.Get(n / 2)
	if !ok {
		return nil, nil, false
	}
	rank, _ := r.base.Search(sep)
	if rank == 0 || rank >= n {
		return nil, nil, false
	}
	return sep, newIndexPageSplitIter(r.Iter(), rank), true
}

// IndexPageIter iterates the entries of an index page.
type IndexPageIter struct {
	base sortedPageIter
}

// Next advances and returns the current entry.
func (it *IndexPageIter) Next() ([]byte, Index, bool) {
	key, value, ok := it.base.Next()
	if !ok {
		return nil, Index{}, false
	}
	return key, decodeIndex(value), true
}

// Last returns the most recently yielded entry.
func (it *IndexPageIter) Last() ([]byte, Index, bool) {
	key, value, ok := it.base.Last()
	if !ok {
		return nil, Index{}, false
	}
	return key, decodeIndex(value), true
}

// Skip advances by n entries without yielding them.
func (it *IndexPageIter) Skip(n int) {
	it.base.Skip(n)
}

// SkipAll exhausts the iterator.
func (it *IndexPageIter) SkipAll() {
	it.base.SkipAll()
}

// Seek positions at the first entry with key >= target.
func (it *IndexPageIter) Seek(target []byte) {
	it.base.Seek(target)
}

// Rewind resets to the beginning.
func (it *IndexPageIter) Rewind() {
	it.base.Rewind()
}

// IndexPageSplitIter yields the right half of a split page. Rewind re-skips
// the left half, so builders that scan twice see the same sequence both
// times.
type IndexPageSplitIter struct {
	base *IndexPageIter
	skip int
}

func newIndexPageSplitIter(base *IndexPageIter, skip int) *IndexPageSplitIter {
	base.Skip(skip)
	return &IndexPageSplitIter{base: base, skip: skip}
}

// Next advances and returns the current entry.
func (it *IndexPageSplitIter) Next() ([]byte, Index, bool) {
	return it.base.Next()
}

// Last returns the most recently yielded entry.
func (it *IndexPageSplitIter) Last() ([]byte, Index, bool) {
	return it.base.Last()
}

// Skip advances by n entries without yielding them.
func (it *IndexPageSplitIter) Skip(n int) {
	it.base.Skip(n)
}

// SkipAll exhausts the iterator.
func (it *IndexPageSplitIter) SkipAll() {
	it.base.SkipAll()
}

// Rewind resets to the first entry of the right half.
func (it *IndexPageSplitIter) Rewind() {
	it.base.Rewind()
	it.base.Skip(it.skip)
}
