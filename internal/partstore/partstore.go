// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package partstore

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/edsrzf/mmap-go"

	"basedb/internal/baseerr"
)

// mapGrowth is the minimum amount, in bytes, a remap grows a column
// file's mapped capacity by, to avoid remapping on every single append.
const mapGrowth = 1 << 20 // 1 MiB

// CoPaInfo is the compact (address, size, row_count) triple the executor
// reads a column's partition data through (spec §4.5/GLOSSARY).
type CoPaInfo struct {
	Addr        []byte
	LogicalSize int64
	RowCount    uint64
}

// PartitionSizes describes, for one partition, the already-committed
// per-column file size and row count the catalog's part index recorded —
// the information FillCoPaInfos needs to know how much of each mapped
// region is "logical" data versus unused mapped-but-unwritten capacity.
type PartitionSizes struct {
	PartitionKey int64
	RowCount     uint64
	ColumnSizes  map[uint64]uint64
}

type cacheKey struct {
	tableID      uint64
	partitionKey int64
	columnID     uint64
}

type columnMapping struct {
	file     *os.File
	mm       mmap.MMap
	capacity int64
}

// Store is the process-wide part store: an fd→mmap cache plus the
// per-partition write locks that serialize appenders to the same
// (table, partition) (spec §5).
type Store struct {
	dataDirs []string

	cacheMu sync.RWMutex
	cache   map[cacheKey]*columnMapping

	locksMu sync.Mutex
	locks   map[[2]uint64]*sync.Mutex // (tableID, encoded partitionKey) -> lock
}

// New returns a part store rooted at dataDirs (spec §6.2's data
// directory list).
func New(dataDirs []string) *Store {
	return &Store{
		dataDirs: dataDirs,
		cache:    map[cacheKey]*columnMapping{},
		locks:    map[[2]uint64]*sync.Mutex{},
	}
}

func (s *Store) partitionLock(tableID uint64, partitionKey int64) *sync.Mutex {
	key := [2]uint64{tableID, uint64(partitionKey)}
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// Append acquires the per-partition write lock and writes data at offset
// (the column's pre-append logical size, as last committed to the part
// index through catalog.Store) into the column file for (tableID,
// partitionKey, columnID), returning the new logical size. The file's
// actual length on disk may already exceed offset+len(data) because
// FillCoPaInfos grows a column file's mapped capacity ahead of its
// logical size; offset therefore always comes from the catalog's part
// index, never from stat-ing the file. Append does not fsync the file,
// and neither does any caller, including the ingest commit after its
// part index update.
func (s *Store) Append(tableID uint64, partitionKey int64, columnID uint64, offset int64, data []byte) (newSize int64, err error) {
	lock := s.partitionLock(tableID, partitionKey)
	lock.Lock()
	defer lock.Unlock()

	path := ColumnFilePath(s.dataDirs, tableID, partitionKey, columnID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, baseerr.Wrap(baseerr.FileAppendFailed, err, "partstore: creating partition directory")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return 0, baseerr.Wrap(baseerr.FileAppendFailed, err, "partstore: opening column file %q", path)
	}
	defer f.Close()

	if _, err := f.WriteAt(data, offset); err != nil {
		return offset, baseerr.Wrap(baseerr.FileAppendFailed, err, "partstore: appending to column file %q", path)
	}

	newSize = offset + int64(len(data))
	s.invalidateIfExceeded(tableID, partitionKey, columnID, newSize)
	return newSize, nil
}

// TruncateTo truncates the column file for (tableID, partitionKey,
// columnID) back to size, used to roll back a partial append whose
// part-index commit failed (spec §4.5/§4.9 step 5).
func (s *Store) TruncateTo(tableID uint64, partitionKey int64, columnID uint64, size int64) error {
	lock := s.partitionLock(tableID, partitionKey)
	lock.Lock()
	defer lock.Unlock()

	path := ColumnFilePath(s.dataDirs, tableID, partitionKey, columnID)
	if err := os.Truncate(path, size); err != nil {
		return baseerr.Wrap(baseerr.FileAppendFailed, err, "partstore: truncating column file %q to %d", path, size)
	}
	s.invalidate(tableID, partitionKey, columnID)
	return nil
}

func (s *Store) invalidate(tableID uint64, partitionKey int64, columnID uint64) {
	key := cacheKey{tableID, partitionKey, columnID}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if m, ok := s.cache[key]; ok {
		_ = m.mm.Unmap()
		_ = m.file.Close()
		delete(s.cache, key)
	}
}

// invalidateIfExceeded only unmaps and evicts the cached mapping for
// (tableID, partitionKey, columnID) when newSize has grown past the
// mapping's already-mapped capacity. A concurrent reader holding a
// CoPaInfo.Addr slice into that mapping (FillCoPaInfos/mappedRegion)
// keeps reading valid bytes through an append that stays within
// capacity, since the file was already truncated out to capacity when
// the mapping was created and WriteAt and the mmap share the same
// underlying pages (spec §5/§4.5: appends within capacity never
// require a reader to re-map).
func (s *Store) invalidateIfExceeded(tableID uint64, partitionKey int64, columnID uint64, newSize int64) {
	key := cacheKey{tableID, partitionKey, columnID}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	m, ok := s.cache[key]
	if !ok || m.capacity >= newSize {
		return
	}
	_ = m.mm.Unmap()
	_ = m.file.Close()
	delete(s.cache, key)
}

// FillCoPaInfos memory-maps (on demand, reusing cached mappings) each
// requested column's file for each requested partition and returns the
// per-column CoPaInfo, outer slice indexed by partition, inner by column
// (matching the order of columnIDs), per spec §4.5.
func (s *Store) FillCoPaInfos(tableID uint64, columnIDs []uint64, partitions []PartitionSizes) ([][]CoPaInfo, error) {
	out := make([][]CoPaInfo, len(partitions))
	for pi, part := range partitions {
		row := make([]CoPaInfo, len(columnIDs))
		for ci, colID := range columnIDs {
			logicalSize := int64(part.ColumnSizes[colID])
			addr, err := s.mappedRegion(tableID, part.PartitionKey, colID, logicalSize)
			if err != nil {
				return nil, err
			}
			row[ci] = CoPaInfo{Addr: addr, LogicalSize: logicalSize, RowCount: part.RowCount}
		}
		out[pi] = row
	}
	return out, nil
}

// mappedRegion returns a byte slice over the first logicalSize bytes of
// the mapped column file, growing (remapping) the cached mapping if its
// current capacity is smaller than logicalSize requires.
func (s *Store) mappedRegion(tableID uint64, partitionKey int64, columnID uint64, logicalSize int64) ([]byte, error) {
	key := cacheKey{tableID, partitionKey, columnID}

	s.cacheMu.RLock()
	m, ok := s.cache[key]
	if ok && m.capacity >= logicalSize {
		addr := m.mm[:logicalSize]
		s.cacheMu.RUnlock()
		return addr, nil
	}
	s.cacheMu.RUnlock()

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	// Re-check: another goroutine may have grown it while we waited for
	// the write lock.
	if m, ok := s.cache[key]; ok && m.capacity >= logicalSize {
		return m.mm[:logicalSize], nil
	}

	if m, ok := s.cache[key]; ok {
		_ = m.mm.Unmap()
		_ = m.file.Close()
		delete(s.cache, key)
	}

	path := ColumnFilePath(s.dataDirs, tableID, partitionKey, columnID)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, baseerr.Wrap(baseerr.MmapFailed, err, "partstore: opening column file %q", path)
	}

	capacity := logicalSize + mapGrowth
	if err := f.Truncate(capacity); err != nil {
		f.Close()
		return nil, baseerr.Wrap(baseerr.MmapFailed, err, "partstore: extending column file %q to %d", path, capacity)
	}
	region, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, baseerr.Wrap(baseerr.MmapFailed, err, "partstore: mapping column file %q", path)
	}

	s.cache[key] = &columnMapping{file: f, mm: region, capacity: capacity}
	return region[:logicalSize], nil
}

// Close unmaps and closes every cached mapping.
func (s *Store) Close() error {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	var firstErr error
	for key, m := range s.cache {
		if err := m.mm.Unmap(); err != nil && firstErr == nil {
			firstErr = baseerr.Wrap(baseerr.MmapFailed, err, "partstore: unmapping column file")
		}
		_ = m.file.Close()
		delete(s.cache, key)
	}
	return firstErr
}
