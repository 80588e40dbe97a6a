// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package catalog

import "encoding/binary"

// Key prefixes, mirroring the <schema_version>/<type> prefix scheme the
// teacher's disk-backed store uses to keep unrelated key families from
// colliding inside one flat key-value namespace.
const (
	prefixEntity   = "e/" // e/<id>                       -> encoded Entity
	prefixChild    = "c/" // c/<parentID>/<id>             -> empty; ListChildren scan
	prefixName     = "n/" // n/<parentID>/<name>           -> id; uniqueness + lookup by name
	prefixPartIdx  = "p/" // p/<tableID>/<partitionKeyEnc> -> encoded PartIndexEntry
	keyNextID      = "seq/next_id"
	keySchemaCheck = "seq/schema_version"
)

func beU64(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

func entityKey(id uint64) []byte {
	return append([]byte(prefixEntity), beU64(id)...)
}

func childKey(parentID, id uint64) []byte {
	k := append([]byte(prefixChild), beU64(parentID)...)
	return append(k, beU64(id)...)
}

func childScanPrefix(parentID uint64) []byte {
	return append([]byte(prefixChild), beU64(parentID)...)
}

func nameKey(parentID uint64, name string) []byte {
	k := append([]byte(prefixName), beU64(parentID)...)
	return append(k, []byte(name)...)
}

// partKeyEncode maps a signed partition key onto an unsigned 64-bit space
// that preserves numeric ordering under plain byte comparison (flip the
// sign bit), the same trick the teacher's path mapper uses to keep
// lexicographic badger iteration order consistent with logical order.
func partKeyEncode(k int64) uint64 {
	return uint64(k) ^ (1 << 63)
}

func partKeyDecode(u uint64) int64 {
	return int64(u ^ (1 << 63))
}

func partIndexKey(tableID uint64, partitionKey int64) []byte {
	k := append([]byte(prefixPartIdx), beU64(tableID)...)
	return append(k, beU64(partKeyEncode(partitionKey))...)
}

func partIndexScanPrefix(tableID uint64) []byte {
	return append([]byte(prefixPartIdx), beU64(tableID)...)
}
