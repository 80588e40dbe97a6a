// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package exec

import (
	"basedb/internal/column"
	"basedb/internal/planner"
)

// aggAccum accumulates one aggregate projection's running state across
// every matching row of one GROUP BY bucket (spec §4.8 step 5). sum
// widening follows spec §4.8's tie-break rule: unsigned sums widen to
// uint64, signed sums widen to int64, and further overflow silently wraps
// (the native behavior of Go's fixed-width integer arithmetic).
type aggAccum struct {
	spec    planner.AggSpec
	colType column.Type

	count  int64
	sumF   float64
	sumI   int64
	sumU   uint64
	hasExt bool
	minVal value
	maxVal value
}

func newAggAccum(spec planner.AggSpec, colType column.Type) *aggAccum {
	return &aggAccum{spec: spec, colType: colType}
}

// Observe folds one matching row's value into the accumulator. v is the
// zero value for AggCountStar, which ignores it.
func (a *aggAccum) Observe(v value) error {
	switch a.spec.Func {
	case planner.AggCountStar, planner.AggCount:
		a.count++
	case planner.AggSum, planner.AggAvg:
		a.count++
		a.sumF += v.asFloat()
		switch v.kind {
		case valInt:
			a.sumI += v.i
		case valUint:
			a.sumU += v.u
		}
	case planner.AggMin:
		if !a.hasExt {
			a.minVal, a.hasExt = v, true
			return nil
		}
		cmp, err := compareValues(v, a.minVal)
		if err != nil {
			return err
		}
		if cmp < 0 {
			a.minVal = v
		}
	case planner.AggMax:
		if !a.hasExt {
			a.maxVal, a.hasExt = v, true
			return nil
		}
		cmp, err := compareValues(v, a.maxVal)
		if err != nil {
			return err
		}
		if cmp > 0 {
			a.maxVal = v
		}
	}
	return nil
}

// Merge folds another accumulator's state for the same bucket and
// aggregate spec into a, combining partial results computed by
// independent partition scans (see exec.go's parallel fan-out).
func (a *aggAccum) Merge(other *aggAccum) {
	switch a.spec.Func {
	case planner.AggCountStar, planner.AggCount:
		a.count += other.count
	case planner.AggSum, planner.AggAvg:
		a.count += other.count
		a.sumF += other.sumF
		a.sumI += other.sumI
		a.sumU += other.sumU
	case planner.AggMin:
		if !other.hasExt {
			return
		}
		if !a.hasExt {
			a.minVal, a.hasExt = other.minVal, true
			return
		}
		if cmp, err := compareValues(other.minVal, a.minVal); err == nil && cmp < 0 {
			a.minVal = other.minVal
		}
	case planner.AggMax:
		if !other.hasExt {
			return
		}
		if !a.hasExt {
			a.maxVal, a.hasExt = other.maxVal, true
			return
		}
		if cmp, err := compareValues(other.maxVal, a.maxVal); err == nil && cmp > 0 {
			a.maxVal = other.maxVal
		}
	}
}

// Result returns the accumulator's final value and the logical Type the
// output column carries, per spec §4.8's per-function result type.
func (a *aggAccum) Result() (value, column.Type) {
	switch a.spec.Func {
	case planner.AggCountStar, planner.AggCount:
		return value{kind: valUint, u: uint64(a.count)}, column.Type{Kind: column.KindUInt64}
	case planner.AggSum:
		if a.colType.Kind == column.KindFloat32 || a.colType.Kind == column.KindFloat64 {
			return value{kind: valFloat, f: a.sumF}, column.Type{Kind: column.KindFloat64}
		}
		if a.colType.IsSigned() {
			return value{kind: valInt, i: a.sumI}, column.Type{Kind: column.KindInt64}
		}
		return value{kind: valUint, u: a.sumU}, column.Type{Kind: column.KindUInt64}
	case planner.AggAvg:
		avg := 0.0
		if a.count > 0 {
			avg = a.sumF / float64(a.count)
		}
		return value{kind: valFloat, f: avg}, column.Type{Kind: column.KindFloat64}
	case planner.AggMin:
		return a.minVal, a.colType
	case planner.AggMax:
		return a.maxVal, a.colType
	default:
		return value{}, column.Type{}
	}
}
