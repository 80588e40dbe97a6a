// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package planner implements step 1 of spec §4.8: resolving a parsed
// SELECT statement's identifiers against the catalog (via internal/engine)
// and producing a logical Plan the executor runs. It never touches storage
// or evaluates a single row; that is internal/exec's job.
package planner

import (
	"context"

	"basedb/internal/baseerr"
	"basedb/internal/engine"
	"basedb/internal/parsedtree"
)

// AggFunc enumerates the aggregate functions spec §4.8 step 5 requires at
// minimum.
type AggFunc int

const (
	AggCount AggFunc = iota
	AggCountStar
	AggSum
	AggMin
	AggMax
	AggAvg
)

// AggSpec is one aggregate projection: a function applied to a column
// (Column is ignored for AggCountStar).
type AggSpec struct {
	Func   AggFunc
	Column string
}

// ProjItem is one resolved SELECT-list entry: either a bare column
// reference or an aggregate call, never both.
type ProjItem struct {
	Alias  string
	IsAgg  bool
	Agg    AggSpec
	Column string // set when !IsAgg
}

// OutputName is the column name this projection surfaces in the result
// block: the explicit alias if given, else the bare column name, else a
// synthesized name for an unaliased aggregate (e.g. "sum(a)").
func (p ProjItem) OutputName() string {
	if p.Alias != "" {
		return p.Alias
	}
	if !p.IsAgg {
		return p.Column
	}
	return aggDisplayName(p.Agg)
}

func aggDisplayName(a AggSpec) string {
	switch a.Func {
	case AggCount:
		return "count(" + a.Column + ")"
	case AggCountStar:
		return "count()"
	case AggSum:
		return "sum(" + a.Column + ")"
	case AggMin:
		return "min(" + a.Column + ")"
	case AggMax:
		return "max(" + a.Column + ")"
	case AggAvg:
		return "avg(" + a.Column + ")"
	default:
		return "?"
	}
}

// OrderKey is one ORDER BY clause, resolved to the output column it sorts.
type OrderKey struct {
	Column     string
	Descending bool
}

// Plan is the resolved logical plan the executor runs (spec §4.8 steps
// 1-2's output): a table, a projection list, an optional WHERE predicate
// tree (still column-reference based; the executor evaluates it per row),
// GROUP BY keys, ORDER BY, and LIMIT/OFFSET.
type Plan struct {
	Table       *engine.TableMeta
	Projections []ProjItem
	Where       *parsedtree.Expr
	GroupBy     []string
	OrderBy     []OrderKey
	HasLimit    bool
	Limit       int64
	Offset      int64

	// RequiredColumns is the union of every column name the executor must
	// read off disk to evaluate projections, WHERE, GROUP BY and ORDER BY
	// (spec §4.8 step 2).
	RequiredColumns []string
}

// HasAggregates reports whether plan has at least one aggregate
// projection.
func (p *Plan) HasAggregates() bool {
	for _, item := range p.Projections {
		if item.IsAgg {
			return true
		}
	}
	return false
}

// Build resolves stmt against e's catalog into a Plan (spec §4.8 step 1).
func Build(ctx context.Context, e *engine.Engine, stmt *parsedtree.SelectStmt, currentDB string) (*Plan, error) {
	if len(stmt.Tables) != 1 {
		return nil, baseerr.New(baseerr.UnsupportedFunctionality, "planner: SELECT requires exactly one table in FROM")
	}
	ref := stmt.Tables[0]
	table, err := e.ResolveTable(ctx, ref.Database, ref.Table, currentDB)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Table: table}
	required := map[string]bool{}

	if len(stmt.Projections) == 1 && stmt.Projections[0].Expr.Kind == parsedtree.ExprStar {
		for _, col := range table.Columns {
			plan.Projections = append(plan.Projections, ProjItem{Column: col.Name})
			required[col.Name] = true
		}
	} else {
		for _, p := range stmt.Projections {
			item, err := resolveProjection(table, p)
			if err != nil {
				return nil, err
			}
			plan.Projections = append(plan.Projections, item)
			addRequired(required, item)
		}
	}

	for _, g := range stmt.GroupBy {
		if g.Kind != parsedtree.ExprColumn {
			return nil, baseerr.New(baseerr.UnsupportedFunctionality, "planner: GROUP BY supports only column references")
		}
		if table.ColumnByName(g.Column) == nil {
			return nil, baseerr.New(baseerr.ColumnNotExist, "planner: unknown group-by column %q", g.Column)
		}
		plan.GroupBy = append(plan.GroupBy, g.Column)
		required[g.Column] = true
	}

	if plan.HasAggregates() || len(plan.GroupBy) > 0 {
		groupSet := map[string]bool{}
		for _, g := range plan.GroupBy {
			groupSet[g] = true
		}
		for _, item := range plan.Projections {
			if !item.IsAgg && !groupSet[item.Column] {
				return nil, baseerr.New(baseerr.GroupKeyNotInProjection, "planner: column %q must appear in GROUP BY or be aggregated", item.Column)
			}
		}
	}

	if stmt.Where != nil {
		if err := requireColumnsInExpr(table, *stmt.Where, required); err != nil {
			return nil, err
		}
		plan.Where = stmt.Where
	}

	for _, ob := range stmt.OrderBy {
		if ob.Expr.Kind != parsedtree.ExprColumn {
			return nil, baseerr.New(baseerr.UnsupportedFunctionality, "planner: ORDER BY supports only column references")
		}
		plan.OrderBy = append(plan.OrderBy, OrderKey{Column: ob.Expr.Column, Descending: ob.Descending})
		required[ob.Expr.Column] = true
	}

	plan.HasLimit = stmt.HasLimit
	plan.Limit = stmt.Limit
	plan.Offset = stmt.Offset

	for name := range required {
		plan.RequiredColumns = append(plan.RequiredColumns, name)
	}
	return plan, nil
}

func addRequired(required map[string]bool, item ProjItem) {
	if item.IsAgg {
		if item.Agg.Func != AggCountStar {
			required[item.Agg.Column] = true
		}
		return
	}
	required[item.Column] = true
}

func resolveProjection(table *engine.TableMeta, p parsedtree.Projection) (ProjItem, error) {
	e := p.Expr
	if e.Kind == parsedtree.ExprColumn {
		if table.ColumnByName(e.Column) == nil {
			return ProjItem{}, baseerr.New(baseerr.ColumnNotExist, "planner: unknown column %q", e.Column)
		}
		return ProjItem{Column: e.Column, Alias: p.Alias}, nil
	}
	if e.Kind == parsedtree.ExprFuncCall {
		agg, err := resolveAgg(table, e)
		if err != nil {
			return ProjItem{}, err
		}
		return ProjItem{IsAgg: true, Agg: agg, Alias: p.Alias}, nil
	}
	return ProjItem{}, baseerr.New(baseerr.UnsupportedFunctionality, "planner: unsupported projection expression")
}

func resolveAgg(table *engine.TableMeta, e parsedtree.Expr) (AggSpec, error) {
	switch e.FuncName {
	case "count":
		if len(e.Args) == 0 || e.Args[0].Kind == parsedtree.ExprStar {
			return AggSpec{Func: AggCountStar}, nil
		}
		col, err := requireSingleColumnArg(table, e)
		if err != nil {
			return AggSpec{}, err
		}
		return AggSpec{Func: AggCount, Column: col}, nil
	case "sum", "min", "max", "avg":
		col, err := requireSingleColumnArg(table, e)
		if err != nil {
			return AggSpec{}, err
		}
		cm := table.ColumnByName(col)
		if !cm.Type.IsNumeric() {
			return AggSpec{}, baseerr.New(baseerr.AggregationOnNonNumeric, "planner: %s() requires a numeric column, got %q", e.FuncName, cm.Type.Name())
		}
		var f AggFunc
		switch e.FuncName {
		case "sum":
			f = AggSum
		case "min":
			f = AggMin
		case "max":
			f = AggMax
		case "avg":
			f = AggAvg
		}
		return AggSpec{Func: f, Column: col}, nil
	default:
		return AggSpec{}, baseerr.New(baseerr.UnsupportedFunctionality, "planner: unsupported aggregate function %q", e.FuncName)
	}
}

func requireSingleColumnArg(table *engine.TableMeta, e parsedtree.Expr) (string, error) {
	if len(e.Args) != 1 || e.Args[0].Kind != parsedtree.ExprColumn {
		return "", baseerr.New(baseerr.UnsupportedFunctionality, "planner: %s() requires a single column argument", e.FuncName)
	}
	col := e.Args[0].Column
	if table.ColumnByName(col) == nil {
		return "", baseerr.New(baseerr.ColumnNotExist, "planner: unknown column %q", col)
	}
	return col, nil
}

// requireColumnsInExpr walks e, checking every column reference exists on
// table and recording it in required.
func requireColumnsInExpr(table *engine.TableMeta, e parsedtree.Expr, required map[string]bool) error {
	switch e.Kind {
	case parsedtree.ExprColumn:
		if table.ColumnByName(e.Column) == nil {
			return baseerr.New(baseerr.ColumnNotExist, "planner: unknown column %q", e.Column)
		}
		required[e.Column] = true
	case parsedtree.ExprBinaryOp:
		if err := requireColumnsInExpr(table, *e.Left, required); err != nil {
			return err
		}
		if e.Right != nil {
			return requireColumnsInExpr(table, *e.Right, required)
		}
	case parsedtree.ExprUnaryOp:
		return requireColumnsInExpr(table, *e.Left, required)
	case parsedtree.ExprFuncCall:
		for _, a := range e.Args {
			if err := requireColumnsInExpr(table, a, required); err != nil {
				return err
			}
		}
	case parsedtree.ExprLiteral, parsedtree.ExprStar:
		// nothing to resolve
	}
	return nil
}
