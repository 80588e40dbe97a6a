// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package catalog

import (
	"context"
	"sync"

	"basedb/internal/baseerr"
)

// MemoryStore is an in-memory Store implementation used by tests that do
// not need durability, grounded on the shape of the teacher's in-memory
// store counterpart to its disk-backed one: same interface, same
// semantics, a map instead of an embedded database.
type MemoryStore struct {
	mu sync.Mutex

	nextID   uint64
	entities map[uint64]*Entity
	byName   map[uint64]map[string]uint64 // parentID -> name -> id
	children map[uint64]map[uint64]bool   // parentID -> set of child ids
	partIdx  map[uint64]map[int64]*PartIndexEntry
}

// NewMemoryStore returns an empty MemoryStore with the system-reserved
// databases already created.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		entities: map[uint64]*Entity{},
		byName:   map[uint64]map[string]uint64{},
		children: map[uint64]map[uint64]bool{},
		partIdx:  map[uint64]map[int64]*PartIndexEntry{},
	}
	ctx := context.Background()
	for _, name := range []string{SystemDatabaseName, DefaultDatabaseName} {
		if _, err := s.CreateEntity(ctx, RootID, KindDatabase, name, nil, true); err != nil {
			panic(err) // cannot happen against a fresh store
		}
	}
	return s
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) CreateEntity(_ context.Context, parentID uint64, kind EntityKind, name string, attrs map[string]string, ifNotExists bool) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.byName[parentID]; ok {
		if id, ok := m[name]; ok {
			if ifNotExists {
				return id, nil
			}
			return 0, baseerr.New(baseerr.EntityExisted, "catalog: %s %q already exists", kind, name)
		}
	}

	s.nextID++
	id := s.nextID
	e := &Entity{ID: id, ParentID: parentID, Kind: kind, Name: name, Attrs: attrs}
	s.entities[id] = e
	if s.byName[parentID] == nil {
		s.byName[parentID] = map[string]uint64{}
	}
	s.byName[parentID][name] = id
	if s.children[parentID] == nil {
		s.children[parentID] = map[uint64]bool{}
	}
	s.children[parentID][id] = true
	return id, nil
}

func (s *MemoryStore) GetEntity(_ context.Context, id uint64) (*Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return nil, baseerr.New(baseerr.TableNotExist, "catalog: no entity with id %d", id)
	}
	return e, nil
}

func (s *MemoryStore) GetEntityByName(_ context.Context, parentID uint64, name string, expectKind EntityKind) (*Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byName[parentID][name]
	if !ok {
		return nil, baseerr.New(notExistCode(expectKind), "catalog: %s %q not found", expectKind, name)
	}
	return s.entities[id], nil
}

func (s *MemoryStore) ListChildren(_ context.Context, parentID uint64) ([]*Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Entity
	for id := range s.children[parentID] {
		out = append(out, s.entities[id])
	}
	return out, nil
}

func (s *MemoryStore) DeleteEntity(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return baseerr.New(baseerr.TableNotExist, "catalog: no entity with id %d", id)
	}
	if isSystemReserved(e) {
		return baseerr.New(baseerr.SystemEntityImmutable, "catalog: %q is a system-reserved database", e.Name)
	}
	if len(s.children[id]) > 0 {
		return baseerr.New(baseerr.TableExists, "catalog: %s %q still has children", e.Kind, e.Name)
	}
	delete(s.entities, id)
	delete(s.byName[e.ParentID], e.Name)
	delete(s.children[e.ParentID], id)
	return nil
}

func (s *MemoryStore) UpdatePartIndex(_ context.Context, tableID uint64, partitionKey int64, columnSizes map[uint64]uint64, rowCount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.partIdx[tableID] == nil {
		s.partIdx[tableID] = map[int64]*PartIndexEntry{}
	}
	sizesCopy := make(map[uint64]uint64, len(columnSizes))
	for k, v := range columnSizes {
		sizesCopy[k] = v
	}
	s.partIdx[tableID][partitionKey] = &PartIndexEntry{
		TableID: tableID, PartitionKey: partitionKey, ColumnSizes: sizesCopy, RowCount: rowCount,
	}
	return nil
}

func (s *MemoryStore) ReadPartIndex(_ context.Context, tableID uint64, lowKey, highKey int64) ([]PartIndexEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []PartIndexEntry
	for k, e := range s.partIdx[tableID] {
		if k >= lowKey && k <= highKey {
			out = append(out, *e)
		}
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
var _ Store = (*BadgerStore)(nil)
