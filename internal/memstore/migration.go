package memstore

import (
	"reflect"

	"github.com/nosqlprovider-go/cupboard/internal/logging"
	"github.com/nosqlprovider-go/cupboard/pkg/schema"
)

// reconcile brings an already-open Engine in line with a newly declared
// schema: drop stores no longer declared, create newly declared ones, and
// for existing stores, drop obsolete indexes and rebuild changed ones by
// rescanning the store's current items. version is tracked on the Engine
// itself since in-memory state never survives a process restart to be
// compared against — this mirrors re-opening an existing file-backed
// database with a new declared schema within the same process, the one case
// where reconciliation is actually observable.
func reconcile(e *Engine, declared schema.Schema, wipeIfExists bool, log logging.Logger) error {
	wipe := wipeIfExists
	if e.version > declared.Version {
		if !wipeIfExists {
			return schema.ErrVersionTooNew
		}
		wipe = true
	}
	if declared.LastUsableVersion != 0 && e.version < declared.LastUsableVersion {
		wipe = true
	}

	if wipe {
		log.Debug("wiping in-memory database", "storedVersion", e.version, "declaredVersion", declared.Version)
		e.stores = make(map[string]*storeData)
		for _, st := range declared.Stores {
			e.stores[st.Name] = newStoreData(st)
		}
		e.version = declared.Version
		return nil
	}

	declaredNames := make(map[string]bool, len(declared.Stores))
	for _, st := range declared.Stores {
		declaredNames[st.Name] = true
	}
	for name := range e.stores {
		if !declaredNames[name] {
			log.Debug("dropping obsolete store", "store", name)
			delete(e.stores, name)
		}
	}

	for _, st := range declared.Stores {
		existing, ok := e.stores[st.Name]
		if !ok {
			log.Debug("creating store", "store", st.Name)
			e.stores[st.Name] = newStoreData(st)
			continue
		}
		rebuilt, err := reconcileStore(existing, st, log)
		if err != nil {
			return err
		}
		e.stores[st.Name] = rebuilt
	}

	e.version = declared.Version
	return nil
}

// reconcileStore drops indexes no longer declared, rebuilds any whose
// definition changed, and adds newly declared ones — all by rescanning
// existing's current items, never the old index entries.
func reconcileStore(existing *storeData, declared schema.StoreSchema, log logging.Logger) (*storeData, error) {
	if !reflect.DeepEqual(existing.schema.PrimaryKeyPath, declared.PrimaryKeyPath) {
		log.Debug("primary key path changed, rebuilding store", "store", declared.Name)
		return rebuildStoreData(existing, declared)
	}

	oldIndexes := make(map[string]schema.IndexSchema, len(existing.schema.Indexes))
	for _, idx := range existing.schema.Indexes {
		oldIndexes[idx.Name] = idx
	}

	nd := &storeData{schema: declared, items: existing.items, pkIndex: existing.pkIndex, indexes: make(map[string]*entryIndex, len(declared.Indexes))}

	for _, idx := range declared.Indexes {
		old, ok := oldIndexes[idx.Name]
		if ok && reflect.DeepEqual(old, idx) {
			nd.indexes[idx.Name] = existing.indexes[idx.Name]
			continue
		}
		log.Debug("rebuilding index", "store", declared.Name, "index", idx.Name)
		nd.indexes[idx.Name] = &entryIndex{}
	}

	needsRebuild := false
	for _, idx := range declared.Indexes {
		old, ok := oldIndexes[idx.Name]
		if !ok || !reflect.DeepEqual(old, idx) {
			needsRebuild = true
			break
		}
	}
	if needsRebuild {
		// put() recomputes every index's entries for the item, including
		// ones left untouched above; redundant for unchanged indexes but
		// simplest correct way to repopulate the ones that were reset.
		for _, item := range nd.items {
			if err := nd.put(item); err != nil {
				return nil, err
			}
		}
	}
	return nd, nil
}

func rebuildStoreData(old *storeData, declared schema.StoreSchema) (*storeData, error) {
	nd := newStoreData(declared)
	for _, item := range old.items {
		if err := nd.put(item); err != nil {
			return nil, err
		}
	}
	return nd, nil
}
