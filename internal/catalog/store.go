// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package catalog

import (
	"context"
	"encoding/json"

	"basedb/internal/baseerr"
)

// Store is the durable ordered key-value contract spec §4.4 requires:
// transactional entity creation/lookup/deletion plus atomic part-index
// maintenance. Implementations: BadgerStore (production, §4.4/§6.2's
// on-disk metadata directory) and MemoryStore (tests).
type Store interface {
	// CreateEntity allocates a new monotonic id for an entity under
	// parentID, failing with baseerr.EntityExisted if a sibling by the
	// same name already exists, unless ifNotExists is set (in which case
	// the existing id is returned instead).
	CreateEntity(ctx context.Context, parentID uint64, kind EntityKind, name string, attrs map[string]string, ifNotExists bool) (uint64, error)

	GetEntity(ctx context.Context, id uint64) (*Entity, error)

	// GetEntityByName looks up a child of parentID by name, failing with
	// baseerr.TableNotExist/DatabaseNotExist/ColumnNotExist depending on
	// expectKind if absent.
	GetEntityByName(ctx context.Context, parentID uint64, name string, expectKind EntityKind) (*Entity, error)

	ListChildren(ctx context.Context, parentID uint64) ([]*Entity, error)

	// DeleteEntity removes id, failing if it is a system-reserved
	// database or if it still has children.
	DeleteEntity(ctx context.Context, id uint64) error

	// UpdatePartIndex atomically replaces the part-index entry for
	// (tableID, partitionKey) with the given column sizes and row count.
	UpdatePartIndex(ctx context.Context, tableID uint64, partitionKey int64, columnSizes map[uint64]uint64, rowCount uint64) error

	// ReadPartIndex returns every part-index entry for tableID whose
	// partition key falls in [lowKey, highKey].
	ReadPartIndex(ctx context.Context, tableID uint64, lowKey, highKey int64) ([]PartIndexEntry, error)

	Close() error
}

func encodeEntity(e *Entity) ([]byte, error) {
	bs, err := json.Marshal(e)
	if err != nil {
		return nil, baseerr.Wrap(baseerr.Generic, err, "catalog: encoding entity")
	}
	return bs, nil
}

func decodeEntity(bs []byte) (*Entity, error) {
	var e Entity
	if err := json.Unmarshal(bs, &e); err != nil {
		return nil, baseerr.Wrap(baseerr.Generic, err, "catalog: decoding entity")
	}
	return &e, nil
}

func encodePartIndexEntry(e *PartIndexEntry) ([]byte, error) {
	bs, err := json.Marshal(e)
	if err != nil {
		return nil, baseerr.Wrap(baseerr.Generic, err, "catalog: encoding part index entry")
	}
	return bs, nil
}

func decodePartIndexEntry(bs []byte) (*PartIndexEntry, error) {
	var e PartIndexEntry
	if err := json.Unmarshal(bs, &e); err != nil {
		return nil, baseerr.Wrap(baseerr.Generic, err, "catalog: decoding part index entry")
	}
	return &e, nil
}

func notExistCode(kind EntityKind) baseerr.Code {
	switch kind {
	case KindDatabase:
		return baseerr.DatabaseNotExist
	case KindTable:
		return baseerr.TableNotExist
	default:
		return baseerr.ColumnNotExist
	}
}

// isSystemReserved reports whether entity e is one of the two databases
// spec §4.4 forbids deleting.
func isSystemReserved(e *Entity) bool {
	return e.Kind == KindDatabase && (e.Name == SystemDatabaseName || e.Name == DefaultDatabaseName)
}
