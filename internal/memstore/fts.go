package memstore

import (
	"context"
	"fmt"

	"github.com/nosqlprovider-go/cupboard/internal/fts"
	"github.com/nosqlprovider-go/cupboard/internal/keypathcodec"
	"github.com/nosqlprovider-go/cupboard/pkg/nosql"
	"github.com/nosqlprovider-go/cupboard/pkg/schema"
)

// memIndexView is the Index runtime over one entryIndex (the primary key's
// or a declared index's), shared by every index kind: a plain index, a
// multiEntry index, and a full-text index all read the same entry slice,
// differing only in how entries were populated at put time.
type memIndexView struct {
	engine *Engine
	data   *storeData
	idx    schema.IndexSchema
	source *entryIndex
}

func (v *memIndexView) items(pks []string) []any {
	out := make([]any, 0, len(pks))
	for _, pk := range pks {
		if item, ok := v.data.items[pk]; ok {
			out = append(out, item)
		}
	}
	return out
}

func (v *memIndexView) GetAll(ctx context.Context, reverse bool, limit, offset uint32) ([]any, error) {
	v.engine.mu.RLock()
	defer v.engine.mu.RUnlock()
	pks := page(v.source.entries, reverse, nosql.ClampLimit(limit), offset)
	return v.items(pks), nil
}

func (v *memIndexView) GetOnly(ctx context.Context, key any, reverse bool, limit, offset uint32) ([]any, error) {
	serialized, err := keypathcodec.Serialize(key, v.idx.KeyPath)
	if err != nil {
		return nil, err
	}
	v.engine.mu.RLock()
	defer v.engine.mu.RUnlock()
	pks := page(v.source.only(serialized), reverse, nosql.ClampLimit(limit), offset)
	return v.items(pks), nil
}

func (v *memIndexView) GetRange(ctx context.Context, lo, hi any, loExcl, hiExcl bool, reverse bool, limit, offset uint32) ([]any, error) {
	loS, hiS, err := serializeBounds(lo, hi, v.idx.KeyPath)
	if err != nil {
		return nil, err
	}
	v.engine.mu.RLock()
	defer v.engine.mu.RUnlock()
	pks := page(v.source.slice(loS, hiS, loExcl, hiExcl), reverse, nosql.ClampLimit(limit), offset)
	return v.items(pks), nil
}

func (v *memIndexView) CountAll(ctx context.Context) (uint64, error) {
	v.engine.mu.RLock()
	defer v.engine.mu.RUnlock()
	return uint64(len(v.source.entries)), nil
}

func (v *memIndexView) CountOnly(ctx context.Context, key any) (uint64, error) {
	serialized, err := keypathcodec.Serialize(key, v.idx.KeyPath)
	if err != nil {
		return 0, err
	}
	v.engine.mu.RLock()
	defer v.engine.mu.RUnlock()
	return uint64(len(v.source.only(serialized))), nil
}

func (v *memIndexView) CountRange(ctx context.Context, lo, hi any, loExcl, hiExcl bool) (uint64, error) {
	loS, hiS, err := serializeBounds(lo, hi, v.idx.KeyPath)
	if err != nil {
		return 0, err
	}
	v.engine.mu.RLock()
	defer v.engine.mu.RUnlock()
	return uint64(len(v.source.slice(loS, hiS, loExcl, hiExcl))), nil
}

func serializeBounds(lo, hi any, keyPath schema.KeyPath) (*string, *string, error) {
	var loS, hiS *string
	if lo != nil {
		s, err := keypathcodec.Serialize(lo, keyPath)
		if err != nil {
			return nil, nil, err
		}
		loS = &s
	}
	if hi != nil {
		s, err := keypathcodec.Serialize(hi, keyPath)
		if err != nil {
			return nil, nil, err
		}
		hiS = &s
	}
	return loS, hiS, nil
}

// FullTextSearch tokenizes phrase and, per term, range-scans the token
// entries for a [term, term+) prefix match, merging per-term pk sets by
// resolution: intersection for And, union for Or.
func (v *memIndexView) FullTextSearch(ctx context.Context, phrase string, resolution nosql.Resolution, limit uint32) ([]any, error) {
	if !v.idx.FullText {
		return nil, fmt.Errorf("%w: index %q is not full-text", schema.ErrInvalidArgument, v.idx.Name)
	}
	terms := fts.Tokenize(phrase)
	if len(terms) == 0 {
		return nil, fmt.Errorf("%w: phrase yields no search terms", schema.ErrInvalidArgument)
	}

	v.engine.mu.RLock()
	defer v.engine.mu.RUnlock()

	var order []string
	var merged map[string]int
	for i, term := range terms {
		r := nosql.Prefix(term)
		matches := v.source.slice(&r.Lower, &r.Upper, false, r.UpperOpen)
		seen := make(map[string]bool, len(matches))
		for _, e := range matches {
			if seen[e.pk] {
				continue
			}
			seen[e.pk] = true
			if i == 0 {
				order = append(order, e.pk)
			}
		}
		if i == 0 {
			merged = make(map[string]int, len(seen))
			for pk := range seen {
				merged[pk] = 1
			}
			continue
		}
		if resolution == nosql.ResolutionOr {
			for pk := range seen {
				if merged[pk] == 0 {
					order = append(order, pk)
				}
				merged[pk]++
			}
		} else {
			for pk := range seen {
				merged[pk]++
			}
		}
	}

	threshold := 1
	if resolution == nosql.ResolutionAnd {
		threshold = len(terms)
	}

	limit = nosql.ClampLimit(limit)
	var pks []string
	for _, pk := range order {
		if merged[pk] >= threshold {
			pks = append(pks, pk)
			if uint64(len(pks)) >= uint64(limit) {
				break
			}
		}
	}
	return v.items(pks), nil
}
