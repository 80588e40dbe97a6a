// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package partstore implements the part store (spec §4.5): memory-mapped
// column files addressed by (table, partition, column), an fd-keyed
// mapping cache, and the per-partition append path.
package partstore

import (
	"fmt"
	"path/filepath"
)

// ColumnFilePath returns the on-disk path for one column's file within one
// partition of one table, per spec §6.2: <data_dir>/<table_id>/
// <partition_key>/<column_id>. When more than one data directory is
// configured, tableID selects among them by simple modulus — the
// specification leaves multi-directory placement open, and this engine's
// choice is a deterministic, load-spreading one rather than "always the
// first directory".
func ColumnFilePath(dataDirs []string, tableID uint64, partitionKey int64, columnID uint64) string {
	dir := dataDirs[tableID%uint64(len(dataDirs))]
	return filepath.Join(dir, fmt.Sprintf("%d", tableID), fmt.Sprintf("%d", partitionKey), fmt.Sprintf("%d", columnID))
}
