package nosql

import "math"

// MaxLimit is the cap imposed on any limit argument, per the edge-case
// policy that limit is capped at 2^32 to prevent pathological SQL.
const MaxLimit = math.MaxUint32

// KeyRange describes a bound range query over a serialized index key.
// A zero-value KeyRange with neither bound set matches every key.
type KeyRange struct {
	Lower      string
	Upper      string
	LowerOpen  bool
	UpperOpen  bool
	HasLower   bool
	HasUpper   bool
}

// Only returns a KeyRange matching exactly one serialized key.
func Only(key string) KeyRange {
	return KeyRange{Lower: key, Upper: key, HasLower: true, HasUpper: true}
}

// Bound returns a KeyRange between lo and hi with the given exclusivity.
func Bound(lo, hi string, loExcl, hiExcl bool) KeyRange {
	return KeyRange{
		Lower: lo, Upper: hi,
		LowerOpen: loExcl, UpperOpen: hiExcl,
		HasLower: true, HasUpper: true,
	}
}

// Prefix returns the half-open range [term, term+) used by range-scan FTS
// fallbacks and prefix queries: term+ increments the final code point of
// term by one, so the range captures every key with term as a prefix.
func Prefix(term string) KeyRange {
	return KeyRange{Lower: term, Upper: incrementLastRune(term), HasLower: true, HasUpper: true, UpperOpen: true}
}

func incrementLastRune(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[len(runes)-1]++
	return string(runes)
}

// ClampLimit caps limit at MaxLimit and treats 0 as "unlimited" (callers
// that truly want zero rows should not call Get*).
func ClampLimit(limit uint32) uint32 {
	if limit == 0 {
		return MaxLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
