// Package memstore implements the nosql.Provider contract entirely in
// memory: one sorted entry slice per declared index (plus one for the
// primary key), guarded by a single engine-wide mutex.
package memstore

import "sort"

// entry is one (serialized index key, serialized primary key) pair. A plain
// index holds one entry per item; a multiEntry or full-text index holds one
// entry per array element or token, all referencing the same pk.
type entry struct {
	key string
	pk  string
}

// entryIndex is a slice of entry kept sorted by (key, pk) so range and
// prefix queries can binary-search their bounds instead of scanning.
type entryIndex struct {
	entries []entry
}

func less(a, b entry) bool {
	if a.key != b.key {
		return a.key < b.key
	}
	return a.pk < b.pk
}

func (idx *entryIndex) insert(key, pk string) {
	e := entry{key: key, pk: pk}
	i := sort.Search(len(idx.entries), func(i int) bool { return !less(idx.entries[i], e) })
	idx.entries = append(idx.entries, entry{})
	copy(idx.entries[i+1:], idx.entries[i:])
	idx.entries[i] = e
}

// removeAllForPK drops every entry referencing pk, regardless of key. Used
// when an item is removed or re-put (clear-then-reinsert).
func (idx *entryIndex) removeAllForPK(pk string) {
	out := idx.entries[:0]
	for _, e := range idx.entries {
		if e.pk != pk {
			out = append(out, e)
		}
	}
	idx.entries = out
}

func (idx *entryIndex) clear() {
	idx.entries = nil
}

// lowerBound returns the index of the first entry whose key is >= target
// (or > target when excl).
func (idx *entryIndex) lowerBound(target string, excl bool) int {
	return sort.Search(len(idx.entries), func(i int) bool {
		if excl {
			return idx.entries[i].key > target
		}
		return idx.entries[i].key >= target
	})
}

// upperBound returns the index one past the last entry whose key is <=
// target (or < target when excl).
func (idx *entryIndex) upperBound(target string, excl bool) int {
	return sort.Search(len(idx.entries), func(i int) bool {
		if excl {
			return idx.entries[i].key >= target
		}
		return idx.entries[i].key > target
	})
}

// slice returns the entries within [lo, hi], honoring nil bounds (no limit
// on that side) and exclusivity flags.
func (idx *entryIndex) slice(lo, hi *string, loExcl, hiExcl bool) []entry {
	start := 0
	if lo != nil {
		start = idx.lowerBound(*lo, loExcl)
	}
	end := len(idx.entries)
	if hi != nil {
		end = idx.upperBound(*hi, hiExcl)
	}
	if start >= end {
		return nil
	}
	return idx.entries[start:end]
}

func (idx *entryIndex) only(key string) []entry {
	return idx.slice(&key, &key, false, false)
}

// page applies reverse/limit/offset to a slice of entries already in
// ascending key order, returning one pk per entry to materialize (an item
// with several entries in range appears once per entry).
func page(entries []entry, reverse bool, limit, offset uint32) []string {
	pks := make([]string, len(entries))
	for i, e := range entries {
		pks[i] = e.pk
	}
	if reverse {
		for i, j := 0, len(pks)-1; i < j; i, j = i+1, j-1 {
			pks[i], pks[j] = pks[j], pks[i]
		}
	}
	off := int(offset)
	if off > len(pks) {
		return nil
	}
	pks = pks[off:]
	if uint64(limit) < uint64(len(pks)) {
		pks = pks[:limit]
	}
	return pks
}
