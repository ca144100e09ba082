package memstore

import (
	"context"
	"fmt"
	"reflect"

	"github.com/nosqlprovider-go/cupboard/internal/fts"
	"github.com/nosqlprovider-go/cupboard/internal/keypathcodec"
	"github.com/nosqlprovider-go/cupboard/pkg/nosql"
	"github.com/nosqlprovider-go/cupboard/pkg/schema"
)

// storeData holds one declared store's items and every index's entry slice,
// all mutated under the owning Engine's single mutex.
type storeData struct {
	schema  schema.StoreSchema
	items   map[string]any
	pkIndex entryIndex
	indexes map[string]*entryIndex
}

func newStoreData(s schema.StoreSchema) *storeData {
	sd := &storeData{schema: s, items: make(map[string]any), indexes: make(map[string]*entryIndex)}
	for _, idx := range s.Indexes {
		sd.indexes[idx.Name] = &entryIndex{}
	}
	return sd
}

func (sd *storeData) put(item any) error {
	pkVal, ok := keypathcodec.Extract(item, sd.schema.PrimaryKeyPath)
	if !ok {
		return fmt.Errorf("%w: item has no value at primary key path", schema.ErrInvalidKey)
	}
	pk, err := keypathcodec.Serialize(pkVal, sd.schema.PrimaryKeyPath)
	if err != nil {
		return err
	}

	for _, idx := range sd.schema.Indexes {
		if !idx.Unique {
			continue
		}
		val, ok := keypathcodec.Extract(item, idx.KeyPath)
		if !ok {
			continue
		}
		s, err := keypathcodec.Serialize(val, idx.KeyPath)
		if err != nil {
			continue
		}
		for _, e := range sd.indexes[idx.Name].only(s) {
			if e.pk != pk {
				return fmt.Errorf("%w: unique index %q already has an entry for this value", schema.ErrInvalidKey, idx.Name)
			}
		}
	}

	sd.items[pk] = item
	sd.pkIndex.removeAllForPK(pk)
	sd.pkIndex.insert(pk, pk)

	for _, idx := range sd.schema.Indexes {
		ix := sd.indexes[idx.Name]
		ix.removeAllForPK(pk)

		val, ok := keypathcodec.Extract(item, idx.KeyPath)
		if !ok {
			continue
		}

		switch {
		case idx.FullText:
			s, ok := val.(string)
			if !ok {
				continue
			}
			for _, tok := range fts.Tokenize(s) {
				ix.insert(tok, pk)
			}
		case idx.MultiEntry:
			for _, el := range multiEntryValues(val) {
				s, err := keypathcodec.Serialize(el, idx.KeyPath)
				if err != nil {
					continue
				}
				ix.insert(s, pk)
			}
		default:
			s, err := keypathcodec.Serialize(val, idx.KeyPath)
			if err != nil {
				continue
			}
			ix.insert(s, pk)
		}
	}
	return nil
}

func (sd *storeData) remove(pk string) {
	delete(sd.items, pk)
	sd.pkIndex.removeAllForPK(pk)
	for _, ix := range sd.indexes {
		ix.removeAllForPK(pk)
	}
}

func (sd *storeData) clearAll() {
	sd.items = make(map[string]any)
	sd.pkIndex.clear()
	for _, ix := range sd.indexes {
		ix.clear()
	}
}

func multiEntryValues(val any) []any {
	rv := reflect.ValueOf(val)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{val}
	}
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

// memStore is the nosql.Store implementation backed by a storeData, guarded
// by its owning Engine's mutex.
type memStore struct {
	engine *Engine
	data   *storeData
}

func (s *memStore) Get(ctx context.Context, key any) (any, bool, error) {
	pk, err := keypathcodec.Serialize(key, s.data.schema.PrimaryKeyPath)
	if err != nil {
		return nil, false, err
	}
	s.engine.mu.RLock()
	defer s.engine.mu.RUnlock()
	item, ok := s.data.items[pk]
	return item, ok, nil
}

func (s *memStore) GetMultiple(ctx context.Context, keys []any) ([]any, error) {
	if len(keys) == 0 {
		return []any{}, nil
	}
	s.engine.mu.RLock()
	defer s.engine.mu.RUnlock()

	out := make([]any, 0, len(keys))
	for _, k := range keys {
		pk, err := keypathcodec.Serialize(k, s.data.schema.PrimaryKeyPath)
		if err != nil {
			return nil, err
		}
		if item, ok := s.data.items[pk]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *memStore) Put(ctx context.Context, items ...any) error {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()
	for _, item := range items {
		if err := s.data.put(item); err != nil {
			return err
		}
	}
	return nil
}

func (s *memStore) Remove(ctx context.Context, keys ...any) error {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()
	for _, k := range keys {
		pk, err := keypathcodec.Serialize(k, s.data.schema.PrimaryKeyPath)
		if err != nil {
			return err
		}
		s.data.remove(pk)
	}
	return nil
}

func (s *memStore) ClearAllData(ctx context.Context) error {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()
	s.data.clearAll()
	return nil
}

func (s *memStore) OpenPrimaryKey() (nosql.Index, error) {
	return &memIndexView{
		engine: s.engine, data: s.data,
		idx:    schema.IndexSchema{Name: "(primary)", KeyPath: s.data.schema.PrimaryKeyPath, Unique: true},
		source: &s.data.pkIndex,
	}, nil
}

func (s *memStore) OpenIndex(name string) (nosql.Index, error) {
	idx, ok := s.data.schema.Index(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", schema.ErrIndexNotFound, name)
	}
	return &memIndexView{engine: s.engine, data: s.data, idx: idx, source: s.data.indexes[name]}, nil
}
