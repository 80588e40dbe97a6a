// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package engine is the root handle spec §9's redesign note asks for in
// place of OPA's process-wide singletons: one struct threading the
// catalog and part store through every public API, so tests can
// instantiate their own Engine per case instead of sharing global mutable
// state.
package engine

import (
	"context"
	"sort"

	"basedb/internal/baseerr"
	"basedb/internal/catalog"
	"basedb/internal/column"
	"basedb/internal/partexpr"
	"basedb/internal/partstore"
)

// ColumnMeta is a resolved column: its catalog identity plus decoded
// logical Type, in declared (ordinal) order.
type ColumnMeta struct {
	ID       uint64
	Name     string
	Type     column.Type
	Ordinal  int
}

// TableMeta is a resolved table: its catalog identity, declared columns in
// order, and compiled partition-key expression.
type TableMeta struct {
	ID            uint64
	DatabaseID    uint64
	Name          string
	Engine        string
	Columns       []ColumnMeta
	PartitionExpr *partexpr.Expr
}

// ColumnByName returns the column named name, or nil if t has none.
func (t *TableMeta) ColumnByName(name string) *ColumnMeta {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// Engine is the root handle for one running database: the catalog (C4)
// and part store (C5) a connection's protocol/planner/executor/ingest
// layers all operate through.
type Engine struct {
	Catalog catalog.Store
	Parts   *partstore.Store

	// Engine keeps no session default database: callers that address an
	// unqualified table name pass their current database in explicitly
	// (the currentDB parameter), since one Engine is shared by every
	// connection (spec §5: "a root Engine handle threaded through public
	// APIs").
}

// New wires a catalog store and a part store into one Engine.
func New(cat catalog.Store, parts *partstore.Store) *Engine {
	return &Engine{Catalog: cat, Parts: parts}
}

// Close releases the part store's mmap'd regions and the catalog's
// underlying handle.
func (e *Engine) Close() error {
	perr := e.Parts.Close()
	cerr := e.Catalog.Close()
	if perr != nil {
		return perr
	}
	return cerr
}

// ResolveDatabase looks up a database by name.
func (e *Engine) ResolveDatabase(ctx context.Context, name string) (*catalog.Entity, error) {
	return e.Catalog.GetEntityByName(ctx, catalog.RootID, name, catalog.KindDatabase)
}

// ResolveTable resolves dbName.tableName (dbName empty means currentDB)
// into a fully-typed TableMeta, failing DatabaseNotExist/TableNotExist
// early per spec §4.8 step 1.
func (e *Engine) ResolveTable(ctx context.Context, dbName, tableName, currentDB string) (*TableMeta, error) {
	if dbName == "" {
		dbName = currentDB
	}
	if dbName == "" {
		return nil, baseerr.New(baseerr.DatabaseNotExist, "engine: no database selected")
	}
	db, err := e.ResolveDatabase(ctx, dbName)
	if err != nil {
		return nil, err
	}
	table, err := e.Catalog.GetEntityByName(ctx, db.ID, tableName, catalog.KindTable)
	if err != nil {
		return nil, err
	}
	return e.tableMeta(ctx, db.ID, table)
}

func (e *Engine) tableMeta(ctx context.Context, dbID uint64, table *catalog.Entity) (*TableMeta, error) {
	children, err := e.Catalog.ListChildren(ctx, table.ID)
	if err != nil {
		return nil, err
	}
	sort.Slice(children, func(i, j int) bool { return children[i].ID < children[j].ID })

	tm := &TableMeta{ID: table.ID, DatabaseID: dbID, Name: table.Name, Engine: table.Attrs["engine"]}
	for i, c := range children {
		typ, err := column.ParseType(c.Attrs["type"])
		if err != nil {
			return nil, baseerr.Wrap(baseerr.IntegrityMismatch, err, "engine: decoding stored type for column %q", c.Name)
		}
		tm.Columns = append(tm.Columns, ColumnMeta{ID: c.ID, Name: c.Name, Type: typ, Ordinal: i})
	}
	if _, ok := table.Attrs[partexpr.AttrColumn]; ok {
		expr, err := partexpr.FromAttrs(table.Attrs)
		if err != nil {
			return nil, err
		}
		tm.PartitionExpr = expr
	}
	return tm, nil
}

// CreateDatabase creates a database, or returns its existing id if
// ifNotExists and it already exists.
func (e *Engine) CreateDatabase(ctx context.Context, name string, ifNotExists bool) (uint64, error) {
	return e.Catalog.CreateEntity(ctx, catalog.RootID, catalog.KindDatabase, name, nil, ifNotExists)
}

// DropDatabase removes a database, failing TableExists if it still has
// tables (spec §3's lifecycle rule "fatal if referenced").
func (e *Engine) DropDatabase(ctx context.Context, name string, ifExists bool) error {
	db, err := e.ResolveDatabase(ctx, name)
	if err != nil {
		if ifExists && baseerr.CodeOf(err) == baseerr.DatabaseNotExist {
			return nil
		}
		return err
	}
	return e.Catalog.DeleteEntity(ctx, db.ID)
}

// CreateTableSpec names everything CreateTable needs to materialize a
// table's schema: it is the engine-layer analogue of
// parsedtree.CreateTableStmt, after its column type strings and partition
// expression have been parsed/compiled.
type CreateTableSpec struct {
	Database      string
	Table         string
	IfNotExists   bool
	Columns       []ColumnSpec
	Engine        string
	PartitionExpr *partexpr.Expr
}

// ColumnSpec is one column of a CreateTableSpec.
type ColumnSpec struct {
	Name string
	Type column.Type
}

// NativeEngineName is the only storage engine this specification treats
// as native (spec §3); CREATE TABLE with any other engine tag is rejected
// per spec §9's resolved Open Question (reject, rather than silently
// accept a schema-only stub that could later lose data on write).
const NativeEngineName = "BaseStorage"

// CreateTable creates a table and its columns under the named database.
func (e *Engine) CreateTable(ctx context.Context, spec CreateTableSpec, currentDB string) (uint64, error) {
	dbName := spec.Database
	if dbName == "" {
		dbName = currentDB
	}
	db, err := e.ResolveDatabase(ctx, dbName)
	if err != nil {
		return 0, err
	}
	if spec.Engine != "" && spec.Engine != NativeEngineName {
		return 0, baseerr.New(baseerr.UnsupportedFunctionality, "engine: engine %q is not supported; only %s is native", spec.Engine, NativeEngineName)
	}

	attrs := map[string]string{"engine": NativeEngineName}
	if spec.PartitionExpr != nil {
		for k, v := range spec.PartitionExpr.ToAttrs() {
			attrs[k] = v
		}
	}

	tableID, err := e.Catalog.CreateEntity(ctx, db.ID, catalog.KindTable, spec.Table, attrs, spec.IfNotExists)
	if err != nil {
		return 0, err
	}
	// If_not_exists returned an existing table: don't redeclare columns.
	existing, err := e.Catalog.ListChildren(ctx, tableID)
	if err == nil && len(existing) > 0 {
		return tableID, nil
	}
	for _, col := range spec.Columns {
		colAttrs := map[string]string{"type": col.Type.Name()}
		if _, err := e.Catalog.CreateEntity(ctx, tableID, catalog.KindColumn, col.Name, colAttrs, false); err != nil {
			return 0, err
		}
	}
	return tableID, nil
}

// DropTable removes a table and its column entities.
func (e *Engine) DropTable(ctx context.Context, dbName, tableName string, ifExists bool, currentDB string) error {
	table, err := e.ResolveTable(ctx, dbName, tableName, currentDB)
	if err != nil {
		if ifExists && baseerr.CodeOf(err) == baseerr.TableNotExist {
			return nil
		}
		return err
	}
	for _, c := range table.Columns {
		if err := e.Catalog.DeleteEntity(ctx, c.ID); err != nil {
			return err
		}
	}
	return e.Catalog.DeleteEntity(ctx, table.ID)
}

// ListTables lists every table in the named database, sorted by id
// (creation order), for SHOW TABLES.
func (e *Engine) ListTables(ctx context.Context, dbName, currentDB string) ([]*catalog.Entity, error) {
	if dbName == "" {
		dbName = currentDB
	}
	db, err := e.ResolveDatabase(ctx, dbName)
	if err != nil {
		return nil, err
	}
	children, err := e.Catalog.ListChildren(ctx, db.ID)
	if err != nil {
		return nil, err
	}
	sort.Slice(children, func(i, j int) bool { return children[i].ID < children[j].ID })
	return children, nil
}

// ListDatabases lists every database, sorted by id, for SHOW DATABASES.
func (e *Engine) ListDatabases(ctx context.Context) ([]*catalog.Entity, error) {
	children, err := e.Catalog.ListChildren(ctx, catalog.RootID)
	if err != nil {
		return nil, err
	}
	sort.Slice(children, func(i, j int) bool { return children[i].ID < children[j].ID })
	return children, nil
}
