// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package catalog

import (
	"bytes"
	"context"
	"encoding/binary"

	badger "github.com/dgraph-io/badger/v4"

	"basedb/internal/baseerr"
)

// BadgerStore is the production Store implementation (spec §4.4, §6.2):
// an embedded, durable, ordered key-value store holding every catalog
// entity and part-index entry under one directory.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (creating if absent) a BadgerStore rooted at dir,
// and ensures the two system-reserved databases exist.
func OpenBadgerStore(ctx context.Context, dir string) (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, baseerr.Wrap(baseerr.MmapFailed, err, "catalog: opening badger store at %q", dir)
	}
	s := &BadgerStore{db: db}
	if err := s.ensureSystemDatabases(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *BadgerStore) ensureSystemDatabases(ctx context.Context) error {
	for _, name := range []string{SystemDatabaseName, DefaultDatabaseName} {
		if _, err := s.CreateEntity(ctx, RootID, KindDatabase, name, nil, true); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying badger database.
func (s *BadgerStore) Close() error {
	if err := s.db.Close(); err != nil {
		return baseerr.Wrap(baseerr.Generic, err, "catalog: closing badger store")
	}
	return nil
}

func (s *BadgerStore) nextID(txn *badger.Txn) (uint64, error) {
	var next uint64 = 1
	item, err := txn.Get([]byte(keyNextID))
	if err == nil {
		if err := item.Value(func(v []byte) error {
			next = binary.BigEndian.Uint64(v) + 1
			return nil
		}); err != nil {
			return 0, baseerr.Wrap(baseerr.Generic, err, "catalog: reading id sequence")
		}
	} else if err != badger.ErrKeyNotFound {
		return 0, baseerr.Wrap(baseerr.Generic, err, "catalog: reading id sequence")
	}
	if err := txn.Set([]byte(keyNextID), beU64(next)); err != nil {
		return 0, baseerr.Wrap(baseerr.Generic, err, "catalog: advancing id sequence")
	}
	return next, nil
}

// CreateEntity implements Store.
func (s *BadgerStore) CreateEntity(ctx context.Context, parentID uint64, kind EntityKind, name string, attrs map[string]string, ifNotExists bool) (uint64, error) {
	var id uint64
	err := s.db.Update(func(txn *badger.Txn) error {
		nk := nameKey(parentID, name)
		if item, err := txn.Get(nk); err == nil {
			if !ifNotExists {
				return baseerr.New(baseerr.EntityExisted, "catalog: %s %q already exists", kind, name)
			}
			return item.Value(func(v []byte) error {
				id = binary.BigEndian.Uint64(v)
				return nil
			})
		} else if err != badger.ErrKeyNotFound {
			return baseerr.Wrap(baseerr.Generic, err, "catalog: looking up %q", name)
		}

		newID, err := s.nextID(txn)
		if err != nil {
			return err
		}
		id = newID

		e := &Entity{ID: id, ParentID: parentID, Kind: kind, Name: name, Attrs: attrs}
		bs, err := encodeEntity(e)
		if err != nil {
			return err
		}
		if err := txn.Set(entityKey(id), bs); err != nil {
			return baseerr.Wrap(baseerr.Generic, err, "catalog: writing entity")
		}
		if err := txn.Set(nameKey(parentID, name), beU64(id)); err != nil {
			return baseerr.Wrap(baseerr.Generic, err, "catalog: writing name index")
		}
		if err := txn.Set(childKey(parentID, id), nil); err != nil {
			return baseerr.Wrap(baseerr.Generic, err, "catalog: writing child index")
		}
		return nil
	})
	return id, err
}

// GetEntity implements Store.
func (s *BadgerStore) GetEntity(ctx context.Context, id uint64) (*Entity, error) {
	var e *Entity
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entityKey(id))
		if err == badger.ErrKeyNotFound {
			return baseerr.New(baseerr.TableNotExist, "catalog: no entity with id %d", id)
		} else if err != nil {
			return baseerr.Wrap(baseerr.Generic, err, "catalog: reading entity %d", id)
		}
		return item.Value(func(v []byte) error {
			decoded, err := decodeEntity(v)
			if err != nil {
				return err
			}
			e = decoded
			return nil
		})
	})
	return e, err
}

// GetEntityByName implements Store.
func (s *BadgerStore) GetEntityByName(ctx context.Context, parentID uint64, name string, expectKind EntityKind) (*Entity, error) {
	var e *Entity
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(nameKey(parentID, name))
		if err == badger.ErrKeyNotFound {
			return baseerr.New(notExistCode(expectKind), "catalog: %s %q not found", expectKind, name)
		} else if err != nil {
			return baseerr.Wrap(baseerr.Generic, err, "catalog: looking up %q", name)
		}
		var id uint64
		if err := item.Value(func(v []byte) error {
			id = binary.BigEndian.Uint64(v)
			return nil
		}); err != nil {
			return baseerr.Wrap(baseerr.Generic, err, "catalog: reading name index value")
		}
		eitem, err := txn.Get(entityKey(id))
		if err != nil {
			return baseerr.Wrap(baseerr.Generic, err, "catalog: reading entity %d", id)
		}
		return eitem.Value(func(v []byte) error {
			decoded, err := decodeEntity(v)
			if err != nil {
				return err
			}
			e = decoded
			return nil
		})
	})
	return e, err
}

// ListChildren implements Store.
func (s *BadgerStore) ListChildren(ctx context.Context, parentID uint64) ([]*Entity, error) {
	var out []*Entity
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := childScanPrefix(parentID)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			id := binary.BigEndian.Uint64(key[len(key)-8:])
			eitem, err := txn.Get(entityKey(id))
			if err != nil {
				return baseerr.Wrap(baseerr.Generic, err, "catalog: reading child entity %d", id)
			}
			if err := eitem.Value(func(v []byte) error {
				decoded, err := decodeEntity(v)
				if err != nil {
					return err
				}
				out = append(out, decoded)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

// DeleteEntity implements Store.
func (s *BadgerStore) DeleteEntity(ctx context.Context, id uint64) error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(entityKey(id))
		if err == badger.ErrKeyNotFound {
			return baseerr.New(baseerr.TableNotExist, "catalog: no entity with id %d", id)
		} else if err != nil {
			return baseerr.Wrap(baseerr.Generic, err, "catalog: reading entity %d", id)
		}
		var e *Entity
		if err := item.Value(func(v []byte) error {
			decoded, derr := decodeEntity(v)
			if derr != nil {
				return derr
			}
			e = decoded
			return nil
		}); err != nil {
			return err
		}
		if isSystemReserved(e) {
			return baseerr.New(baseerr.SystemEntityImmutable, "catalog: %q is a system-reserved database", e.Name)
		}

		childPrefix := childScanPrefix(id)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		hasChildren := false
		it.Seek(childPrefix)
		hasChildren = it.ValidForPrefix(childPrefix)
		it.Close()
		if hasChildren {
			return baseerr.New(baseerr.TableExists, "catalog: %s %q still has children", e.Kind, e.Name)
		}

		if err := txn.Delete(entityKey(id)); err != nil {
			return baseerr.Wrap(baseerr.Generic, err, "catalog: deleting entity")
		}
		if err := txn.Delete(nameKey(e.ParentID, e.Name)); err != nil {
			return baseerr.Wrap(baseerr.Generic, err, "catalog: deleting name index")
		}
		if err := txn.Delete(childKey(e.ParentID, id)); err != nil {
			return baseerr.Wrap(baseerr.Generic, err, "catalog: deleting child index")
		}
		return nil
	})
}

// UpdatePartIndex implements Store.
func (s *BadgerStore) UpdatePartIndex(ctx context.Context, tableID uint64, partitionKey int64, columnSizes map[uint64]uint64, rowCount uint64) error {
	return s.db.Update(func(txn *badger.Txn) error {
		e := &PartIndexEntry{TableID: tableID, PartitionKey: partitionKey, ColumnSizes: columnSizes, RowCount: rowCount}
		bs, err := encodePartIndexEntry(e)
		if err != nil {
			return err
		}
		if err := txn.Set(partIndexKey(tableID, partitionKey), bs); err != nil {
			return baseerr.Wrap(baseerr.PartIndexUpdateFailed, err, "catalog: updating part index")
		}
		return nil
	})
}

// ReadPartIndex implements Store.
func (s *BadgerStore) ReadPartIndex(ctx context.Context, tableID uint64, lowKey, highKey int64) ([]PartIndexEntry, error) {
	var out []PartIndexEntry
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := partIndexScanPrefix(tableID)
		lo := partIndexKey(tableID, lowKey)
		hi := partIndexKey(tableID, highKey)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(lo); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			if bytes.Compare(key, hi) > 0 {
				break
			}
			if err := it.Item().Value(func(v []byte) error {
				e, err := decodePartIndexEntry(v)
				if err != nil {
					return err
				}
				out = append(out, *e)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}
