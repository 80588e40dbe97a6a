// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package parsedtree defines the parsed-tree contract the planner
// consumes (spec §6.4): pure node/expression types with no parsing or
// resolution logic of their own. internal/sqlmini is one producer of
// these trees; the planner, internal/partexpr and the protocol layer's
// statement dispatch consume them.
package parsedtree

// NodeKind identifies the statement a Statement carries.
type NodeKind int

const (
	KindSelect NodeKind = iota
	KindCreateDatabase
	KindCreateTable
	KindDropDatabase
	KindDropTable
	KindInsert
	KindUse
	KindShow
	KindOptimize
)

func (k NodeKind) String() string {
	switch k {
	case KindSelect:
		return "Select"
	case KindCreateDatabase:
		return "CreateDatabase"
	case KindCreateTable:
		return "CreateTable"
	case KindDropDatabase:
		return "DropDatabase"
	case KindDropTable:
		return "DropTable"
	case KindInsert:
		return "Insert"
	case KindUse:
		return "Use"
	case KindShow:
		return "Show"
	case KindOptimize:
		return "Optimize"
	default:
		return "Unknown"
	}
}

// Statement is one parsed top-level SQL statement. Exactly one of the
// Kind-matching fields below is populated.
type Statement struct {
	Kind NodeKind

	Select         *SelectStmt
	CreateDatabase *CreateDatabaseStmt
	CreateTable    *CreateTableStmt
	DropDatabase   *DropDatabaseStmt
	DropTable      *DropTableStmt
	Insert         *InsertStmt
	Use            *UseStmt
	Show           *ShowStmt
	Optimize       *OptimizeStmt
}

// TableRef names a table, optionally qualified by database.
type TableRef struct {
	Database string // empty means "current database"
	Table    string
}

// Projection is one SELECT-list entry: either a bare column reference
// (Expr.Kind == ExprColumn) or any scalar expression, with an optional
// output alias.
type Projection struct {
	Expr  Expr
	Alias string // empty if unaliased
}

// OrderByItem is one ORDER BY key.
type OrderByItem struct {
	Expr       Expr
	Descending bool
}

// SelectStmt is a (possibly aggregating) SELECT query.
type SelectStmt struct {
	Projections []Projection
	Tables      []TableRef
	Where       *Expr // nil if absent
	GroupBy     []Expr
	OrderBy     []OrderByItem
	HasLimit    bool
	Limit       int64
	Offset      int64
}

// ColumnDef is one column in a CREATE TABLE statement.
type ColumnDef struct {
	Name string
	Type string // unparsed type string, e.g. "UInt32", "Nullable(String)"
}

// CreateDatabaseStmt is CREATE DATABASE [IF NOT EXISTS] name.
type CreateDatabaseStmt struct {
	Name        string
	IfNotExists bool
}

// CreateTableStmt is CREATE TABLE [IF NOT EXISTS] db.table (cols...)
// ENGINE=... PARTITION BY expr.
type CreateTableStmt struct {
	Table         TableRef
	IfNotExists   bool
	Columns       []ColumnDef
	Engine        string
	PartitionExpr *Expr // nil if absent
}

// DropDatabaseStmt is DROP DATABASE [IF EXISTS] name.
type DropDatabaseStmt struct {
	Name     string
	IfExists bool
}

// DropTableStmt is DROP TABLE [IF EXISTS] db.table.
type DropTableStmt struct {
	Table    TableRef
	IfExists bool
}

// InsertStmt is INSERT INTO table (cols...) VALUES (...), ... or INSERT
// INTO table (cols...) with rows streamed as subsequent Data packets
// (HasInlineValues is false in that case).
type InsertStmt struct {
	Table           TableRef
	Columns         []string
	HasInlineValues bool
	Values          [][]Expr // one row per outer slice, only set when HasInlineValues
}

// UseStmt is USE database.
type UseStmt struct {
	Database string
}

// ShowKind distinguishes SHOW statement variants.
type ShowKind int

const (
	ShowTables ShowKind = iota
	ShowDatabases
)

// ShowStmt is SHOW TABLES [FROM db] or SHOW DATABASES.
type ShowStmt struct {
	Kind     ShowKind
	Database string // for ShowTables; empty means current database
}

// OptimizeStmt is OPTIMIZE TABLE db.table.
type OptimizeStmt struct {
	Table TableRef
}
