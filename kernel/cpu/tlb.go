package cpu

import (
	"nova/kernel/sync"
	"sync/atomic"
)

const (
	// tlbEntries is the number of entries in the direct-mapped translation
	// cache. It must be a power of 2.
	tlbEntries = 64

	pageShift = 12
)

// Tag identifies the translation root that produced a cached entry. Tags are
// 64 bits wide so a tag is never handed out twice.
type Tag uint64

type tlbEntry struct {
	valid bool
	tag   Tag
	page  uintptr
	value uint64
}

// TLB is a direct-mapped translation cache owned by a single CPU. Entries are
// tagged with the id of the translation root that produced them so roots can
// be invalidated independently. Cached values are encoded leaf descriptors.
//
// All methods are safe to call on a nil TLB; they behave as if every lookup
// misses.
type TLB struct {
	lock    sync.Spinlock
	entries [tlbEntries]tlbEntry

	invalidations uint64
	flushes       uint64
}

func slotFor(v uintptr) (uintptr, int) {
	page := v >> pageShift
	return page, int(page & (tlbEntries - 1))
}

// Lookup returns the cached descriptor for virtual address v in the root
// identified by tag.
func (t *TLB) Lookup(tag Tag, v uintptr) (uint64, bool) {
	if t == nil {
		return 0, false
	}

	page, index := slotFor(v)
	t.lock.Acquire()
	e := t.entries[index]
	t.lock.Release()

	if !e.valid || e.tag != tag || e.page != page {
		return 0, false
	}
	return e.value, true
}

// Fill caches descriptor value for the page containing v, evicting whatever
// entry previously occupied the slot.
func (t *TLB) Fill(tag Tag, v uintptr, value uint64) {
	if t == nil {
		return
	}

	page, index := slotFor(v)
	t.lock.Acquire()
	t.entries[index] = tlbEntry{valid: true, tag: tag, page: page, value: value}
	t.lock.Release()
}

// InvalidatePage drops the cached translation for the page containing v.
func (t *TLB) InvalidatePage(tag Tag, v uintptr) {
	if t == nil {
		return
	}

	page, index := slotFor(v)
	t.lock.Acquire()
	if e := &t.entries[index]; e.valid && e.tag == tag && e.page == page {
		e.valid = false
	}
	t.lock.Release()
	atomic.AddUint64(&t.invalidations, 1)
}

// FlushTag drops every cached translation produced by the root identified
// by tag.
func (t *TLB) FlushTag(tag Tag) {
	if t == nil {
		return
	}

	t.lock.Acquire()
	for i := range t.entries {
		if t.entries[i].tag == tag {
			t.entries[i].valid = false
		}
	}
	t.lock.Release()
	atomic.AddUint64(&t.flushes, 1)
}

// FlushAll drops every cached translation.
func (t *TLB) FlushAll() {
	if t == nil {
		return
	}

	t.lock.Acquire()
	for i := range t.entries {
		t.entries[i].valid = false
	}
	t.lock.Release()
	atomic.AddUint64(&t.flushes, 1)
}

// Invalidations returns the number of single-page invalidations issued.
func (t *TLB) Invalidations() uint64 {
	if t == nil {
		return 0
	}
	return atomic.LoadUint64(&t.invalidations)
}

// Flushes returns the number of tag or full flushes issued.
func (t *TLB) Flushes() uint64 {
	if t == nil {
		return 0
	}
	return atomic.LoadUint64(&t.flushes)
}
