// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package exec implements spec §4.8 steps 2-7: given a planner.Plan, pull
// each required column's partition views from storage, run the
// scan→filter→project/aggregate pipeline, and reduce the result into one
// output Block.
package exec

import (
	"context"
	"encoding/binary"
	"math"
	goruntime "runtime"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"basedb/internal/baseerr"
	"basedb/internal/block"
	"basedb/internal/catalog"
	"basedb/internal/colfile"
	"basedb/internal/column"
	"basedb/internal/engine"
	"basedb/internal/partstore"
	"basedb/internal/planner"
)

// colPlan names one required column's position(s) within the CoPaInfo
// slice FillCoPaInfos returns: dataPos always, offsPos additionally for
// String columns (spec §4.5/internal/colfile's sidecar offsets file).
type colPlan struct {
	meta    engine.ColumnMeta
	dataPos int
	offsPos int // -1 unless meta.Type.Kind == column.KindString
}

func buildColumnPlans(table *engine.TableMeta, names []string) ([]colPlan, []uint64) {
	var ids []uint64
	var plans []colPlan
	for _, name := range names {
		cm := table.ColumnByName(name)
		cp := colPlan{meta: *cm, dataPos: len(ids), offsPos: -1}
		ids = append(ids, cm.ID)
		if cm.Type.Kind == column.KindString {
			cp.offsPos = len(ids)
			ids = append(ids, colfile.OffsetsColumnID(cm.ID))
		}
		plans = append(plans, cp)
	}
	return plans, ids
}

func materializeChunks(plans []colPlan, infos []partstore.CoPaInfo) (map[string]*column.Chunk, error) {
	chunks := make(map[string]*column.Chunk, len(plans))
	for _, cp := range plans {
		var offsPtr *partstore.CoPaInfo
		if cp.offsPos >= 0 {
			o := infos[cp.offsPos]
			offsPtr = &o
		}
		chunk, err := colfile.ReadChunk(cp.meta.Type, infos[cp.dataPos], offsPtr)
		if err != nil {
			return nil, err
		}
		chunks[cp.meta.Name] = chunk
	}
	return chunks, nil
}

// groupBucket is one GROUP BY bucket's running state: the group key
// columns' values (needed to re-emit them in the result) plus one
// accumulator per aggregate projection (nil entries for non-aggregate
// projections, which just echo a keyVals entry).
type groupBucket struct {
	keyVals map[string]value
	accums  []*aggAccum
}

func newGroupBucket(plan *planner.Plan, keyVals map[string]value) *groupBucket {
	accums := make([]*aggAccum, len(plan.Projections))
	for i, item := range plan.Projections {
		if !item.IsAgg {
			continue
		}
		var colType column.Type
		if item.Agg.Func != planner.AggCountStar {
			colType = plan.Table.ColumnByName(item.Agg.Column).Type
		}
		accums[i] = newAggAccum(item.Agg, colType)
	}
	return &groupBucket{keyVals: keyVals, accums: accums}
}

func groupKeyFor(plan *planner.Plan, c *rowCursor) (string, map[string]value, error) {
	vals := make(map[string]value, len(plan.GroupBy))
	var sb strings.Builder
	for _, col := range plan.GroupBy {
		v, err := c.columnValue(col)
		if err != nil {
			return "", nil, err
		}
		vals[col] = v
		sb.WriteString(groupKeyPart(v))
		sb.WriteByte(0)
	}
	return sb.String(), vals, nil
}

func groupKeyPart(v value) string {
	switch v.kind {
	case valInt:
		return "i" + strconv.FormatInt(v.i, 10)
	case valUint:
		return "u" + strconv.FormatUint(v.u, 10)
	case valFloat:
		return "f" + strconv.FormatFloat(v.f, 'g', -1, 64)
	case valString:
		return "s" + string(v.s)
	default:
		return "n"
	}
}

// outputType derives a projection's result type without needing a live
// accumulator: the non-aggregate case is just its column's type, the
// aggregate case reuses aggAccum.Result()'s type-selection logic on a
// throwaway zero-valued accumulator.
func outputType(item planner.ProjItem, table *engine.TableMeta) column.Type {
	if !item.IsAgg {
		return table.ColumnByName(item.Column).Type
	}
	var colType column.Type
	if item.Agg.Func != planner.AggCountStar {
		colType = table.ColumnByName(item.Agg.Column).Type
	}
	_, typ := newAggAccum(item.Agg, colType).Result()
	return typ
}

func extractRow(plan *planner.Plan, c *rowCursor) ([]value, error) {
	row := make([]value, len(plan.Projections))
	for i, item := range plan.Projections {
		v, err := c.columnValue(item.Column)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

// partitionResult is one partition's contribution to the overall scan:
// plain rows for a non-aggregating plan, or a local set of GROUP BY
// buckets (keyed the same way groupKeyFor keys the merged set) for an
// aggregating one.
type partitionResult struct {
	rows    [][]value
	buckets map[string]*groupBucket
	order   []string
}

// scanPartitions runs the scan/filter/aggregate pipeline over every
// partition concurrently, bounded to GOMAXPROCS workers (spec §5's
// partition fan-out), and returns one partitionResult per entry in the
// same order as entries. Each partition only ever touches its own
// result slot, so no further synchronization is needed between workers;
// merging happens afterward in mergeGroupResults or by the caller.
func scanPartitions(ctx context.Context, plan *planner.Plan, colPlans []colPlan, entries []catalog.PartIndexEntry, copaInfos [][]partstore.CoPaInfo, isAggregating bool) ([]partitionResult, error) {
	results := make([]partitionResult, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(goruntime.GOMAXPROCS(0))

	for pi := range entries {
		pi := pi
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			res, err := scanOnePartition(plan, colPlans, entries[pi], copaInfos[pi], isAggregating)
			if err != nil {
				return err
			}
			results[pi] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func scanOnePartition(plan *planner.Plan, colPlans []colPlan, entry catalog.PartIndexEntry, info []partstore.CoPaInfo, isAggregating bool) (partitionResult, error) {
	chunks, err := materializeChunks(colPlans, info)
	if err != nil {
		return partitionResult{}, err
	}

	var res partitionResult
	if isAggregating {
		res.buckets = map[string]*groupBucket{}
	}

	rowCount := int(entry.RowCount)
	for row := 0; row < rowCount; row++ {
		cursor := &rowCursor{table: plan.Table, chunks: chunks, row: row}
		if plan.Where != nil {
			ok, err := evalBool(*plan.Where, cursor)
			if err != nil {
				return partitionResult{}, err
			}
			if !ok {
				continue
			}
		}
		if isAggregating {
			key, keyVals, err := groupKeyFor(plan, cursor)
			if err != nil {
				return partitionResult{}, err
			}
			bucket, ok := res.buckets[key]
			if !ok {
				bucket = newGroupBucket(plan, keyVals)
				res.buckets[key] = bucket
				res.order = append(res.order, key)
			}
			for i, item := range plan.Projections {
				if !item.IsAgg {
					continue
				}
				var v value
				if item.Agg.Func != planner.AggCountStar {
					v, err = cursor.columnValue(item.Agg.Column)
					if err != nil {
						return partitionResult{}, err
					}
				}
				if err := bucket.accums[i].Observe(v); err != nil {
					return partitionResult{}, err
				}
			}
			continue
		}
		rowVals, err := extractRow(plan, cursor)
		if err != nil {
			return partitionResult{}, err
		}
		res.rows = append(res.rows, rowVals)
	}
	return res, nil
}

// mergeGroupResults folds every partition's local GROUP BY buckets into
// one merged set, preserving each key's first-seen order across
// partitions, then emits one output row per merged bucket.
func mergeGroupResults(plan *planner.Plan, partResults []partitionResult) [][]value {
	merged := map[string]*groupBucket{}
	var order []string

	for _, res := range partResults {
		for _, key := range res.order {
			b := res.buckets[key]
			existing, ok := merged[key]
			if !ok {
				merged[key] = b
				order = append(order, key)
				continue
			}
			for i, acc := range b.accums {
				if acc == nil {
					continue
				}
				existing.accums[i].Merge(acc)
			}
		}
	}

	rows := make([][]value, 0, len(order))
	for _, key := range order {
		b := merged[key]
		row := make([]value, len(plan.Projections))
		for i, item := range plan.Projections {
			if item.IsAgg {
				v, _ := b.accums[i].Result()
				row[i] = v
			} else {
				row[i] = b.keyVals[item.Column]
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// Execute runs plan to completion and returns its single result Block
// (spec §4.8 steps 2-7; the protocol layer is responsible for splitting a
// large result into multiple Data packets if it chooses to).
func Execute(ctx context.Context, e *engine.Engine, plan *planner.Plan, tzOffsetSeconds int32) (*block.Block, error) {
	outTypes := make([]column.Type, len(plan.Projections))
	for i, item := range plan.Projections {
		outTypes[i] = outputType(item, plan.Table)
	}

	isAggregating := plan.HasAggregates() || len(plan.GroupBy) > 0

	colPlans, ids := buildColumnPlans(plan.Table, plan.RequiredColumns)

	entries, err := e.Catalog.ReadPartIndex(ctx, plan.Table.ID, math.MinInt64, math.MaxInt64)
	if err != nil {
		return nil, err
	}

	var copaInfos [][]partstore.CoPaInfo
	if len(ids) > 0 {
		sizes := make([]partstore.PartitionSizes, len(entries))
		for i, en := range entries {
			sizes[i] = partstore.PartitionSizes{PartitionKey: en.PartitionKey, RowCount: en.RowCount, ColumnSizes: en.ColumnSizes}
		}
		copaInfos, err = e.Parts.FillCoPaInfos(plan.Table.ID, ids, sizes)
		if err != nil {
			return nil, err
		}
	} else {
		copaInfos = make([][]partstore.CoPaInfo, len(entries))
	}

	partResults, err := scanPartitions(ctx, plan, colPlans, entries, copaInfos, isAggregating)
	if err != nil {
		return nil, err
	}

	var finalRows [][]value
	if isAggregating {
		finalRows = mergeGroupResults(plan, partResults)
	} else {
		for _, res := range partResults {
			finalRows = append(finalRows, res.rows...)
		}
	}

	if len(plan.OrderBy) > 0 {
		if err := sortRows(plan, finalRows); err != nil {
			return nil, err
		}
	}

	finalRows = applyLimitOffset(plan, finalRows)

	return buildResultBlock(plan, outTypes, finalRows)
}

func sortRows(plan *planner.Plan, rows [][]value) error {
	byName := map[string]int{}
	for i, item := range plan.Projections {
		byName[item.OutputName()] = i
		if !item.IsAgg {
			byName[item.Column] = i
		}
	}
	idxs := make([]int, len(plan.OrderBy))
	for i, ob := range plan.OrderBy {
		idx, ok := byName[ob.Column]
		if !ok {
			return baseerr.New(baseerr.ColumnNotExist, "exec: ORDER BY column %q is not in the result set", ob.Column)
		}
		idxs[i] = idx
	}
	var sortErr error
	sort.SliceStable(rows, func(i, j int) bool {
		for k, idx := range idxs {
			cmp, err := compareValues(rows[i][idx], rows[j][idx])
			if err != nil {
				sortErr = err
				return false
			}
			if cmp != 0 {
				if plan.OrderBy[k].Descending {
					return cmp > 0
				}
				return cmp < 0
			}
		}
		return false
	})
	return sortErr
}

func applyLimitOffset(plan *planner.Plan, rows [][]value) [][]value {
	if !plan.HasLimit && plan.Offset == 0 {
		return rows
	}
	lo := int(plan.Offset)
	if lo > len(rows) {
		lo = len(rows)
	}
	hi := len(rows)
	if plan.HasLimit {
		hi = lo + int(plan.Limit)
		if hi > len(rows) {
			hi = len(rows)
		}
	}
	return rows[lo:hi]
}

func buildResultBlock(plan *planner.Plan, outTypes []column.Type, rows [][]value) (*block.Block, error) {
	blk := block.New()
	for i, item := range plan.Projections {
		chunk := column.New(outTypes[i])
		for _, row := range rows {
			if err := pushValue(chunk, outTypes[i], row[i]); err != nil {
				return nil, err
			}
		}
		if err := blk.AddColumn(item.OutputName(), chunk); err != nil {
			return nil, err
		}
	}
	return blk, nil
}

func pushValue(chunk *column.Chunk, typ column.Type, v value) error {
	if typ.Kind == column.KindString || typ.Kind == column.KindFixedString {
		return chunk.PushStrings([][]byte{v.s})
	}
	buf := make([]byte, typ.ElementSize())
	switch typ.Kind {
	case column.KindFloat32:
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(v.asFloat())))
	case column.KindFloat64:
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v.asFloat()))
	default:
		var u uint64
		if v.kind == valInt {
			u = uint64(v.i)
		} else {
			u = v.u
		}
		switch len(buf) {
		case 1:
			buf[0] = byte(u)
		case 2:
			binary.LittleEndian.PutUint16(buf, uint16(u))
		case 4:
			binary.LittleEndian.PutUint32(buf, uint32(u))
		case 8:
			binary.LittleEndian.PutUint64(buf, u)
		}
	}
	return chunk.PushValues(buf)
}
