// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package protocol

import (
	"context"
	"math"

	"basedb/internal/baseerr"
	"basedb/internal/block"
	"basedb/internal/column"
	"basedb/internal/engine"
	"basedb/internal/exec"
	"basedb/internal/ingest"
	"basedb/internal/netframe"
	"basedb/internal/parsedtree"
	"basedb/internal/partexpr"
	"basedb/internal/planner"
	"basedb/internal/sqlmini"
)

// clientInfo is the subset of a Query packet's client-info block this
// server reads (spec §4.7 step "Query"); every field is consumed so later
// reads stay in sync, even though handleQuery uses none of them.
type clientInfo struct {
	kind           byte
	initialUser    string
	initialQueryID string
	address        string
	iface          byte
	osUser         string
	hostname       string
	clientName     string
}

// handleQuery reads one full Query message (client-info, settings, the
// query string, and its streamed INSERT data blocks, if any), executes
// it, and writes the response message (spec §4.7's "Data*, Progress,
// ProfileInfo, optional Totals/Extremes, EndOfStream", or "Exception,
// EndOfStream" on failure).
func (s *Session) handleQuery(ctx context.Context) error {
	if _, err := s.conn.ReadString(); err != nil { // query id
		return err
	}
	if _, err := s.readClientInfo(); err != nil {
		return err
	}
	if err := s.readSettings(); err != nil {
		return err
	}
	if _, err := s.conn.ReadByteField(); err != nil { // stage, always Complete (2)
		return err
	}
	compressionByte, err := s.conn.ReadByteField()
	if err != nil {
		return err
	}
	s.conn.CompressionEnabled = compressionByte != 0
	query, err := s.conn.ReadString()
	if err != nil {
		return err
	}

	insertBlocks, err := s.readInsertBlockStream()
	if err != nil {
		return err
	}

	stmt, err := sqlmini.Parse(query)
	if err != nil {
		return s.failQuery(err)
	}

	if err := s.dispatch(ctx, stmt, insertBlocks); err != nil {
		return s.failQuery(err)
	}
	return nil
}

// readInsertBlockStream drains the Data packets the client always sends
// after the query string (spec §4.7: "a stream of Data packets terminated
// by an empty block"), whether or not the statement turns out to need
// them.
func (s *Session) readInsertBlockStream() ([]*block.Block, error) {
	var blocks []*block.Block
	for {
		code, err := s.conn.ReadPacketCode()
		if err != nil {
			return nil, err
		}
		if code != netframe.ClientData {
			return nil, baseerr.New(baseerr.UnexpectedMessage, "protocol: expected Data packet, got code %d", code)
		}
		blk, err := s.conn.ReadBlock()
		if err != nil {
			return nil, err
		}
		if blk.Empty() {
			return blocks, nil
		}
		blocks = append(blocks, blk)
	}
}

func (s *Session) readClientInfo() (*clientInfo, error) {
	ci := &clientInfo{}
	var err error
	if ci.kind, err = s.conn.ReadByteField(); err != nil {
		return nil, err
	}
	if ci.initialUser, err = s.conn.ReadString(); err != nil {
		return nil, err
	}
	if ci.initialQueryID, err = s.conn.ReadString(); err != nil {
		return nil, err
	}
	if ci.address, err = s.conn.ReadString(); err != nil {
		return nil, err
	}
	if ci.iface, err = s.conn.ReadByteField(); err != nil {
		return nil, err
	}
	if ci.osUser, err = s.conn.ReadString(); err != nil {
		return nil, err
	}
	if ci.hostname, err = s.conn.ReadString(); err != nil {
		return nil, err
	}
	if ci.clientName, err = s.conn.ReadString(); err != nil {
		return nil, err
	}
	for i := 0; i < 3; i++ { // version major, minor, revision
		if _, err := s.conn.ReadUvarint(); err != nil {
			return nil, err
		}
	}
	if s.revision >= netframe.RevisionWithVersionPatch {
		if _, err := s.conn.ReadUvarint(); err != nil {
			return nil, err
		}
	}
	if s.revision >= netframe.RevisionWithQuotaKey {
		if _, err := s.conn.ReadString(); err != nil {
			return nil, err
		}
	}
	return ci, nil
}

func (s *Session) readSettings() error {
	for {
		name, err := s.conn.ReadString()
		if err != nil {
			return err
		}
		if name == "" {
			return nil
		}
		if _, err := s.conn.ReadString(); err != nil { // value
			return err
		}
	}
}

// failQuery writes the Exception + EndOfStream response spec §4.7
// requires on failure and returns nil so Serve keeps the connection open
// (the Exception state is absorbing, not fatal).
func (s *Session) failQuery(cause error) error {
	s.log.WithError(cause).Warn("query failed")
	if err := s.conn.WriteException(netframe.ExceptionFromError(cause)); err != nil {
		return err
	}
	if err := s.writeEndOfStream(); err != nil {
		return err
	}
	return s.conn.Flush()
}

func (s *Session) writeProgress(rows, bytes uint64) error {
	if err := s.conn.WritePacketCode(netframe.ServerProgress); err != nil {
		return err
	}
	if err := s.conn.WriteUvarint(rows); err != nil {
		return err
	}
	return s.conn.WriteUvarint(bytes)
}

func (s *Session) writeProfileInfo(rows uint64) error {
	if err := s.conn.WritePacketCode(netframe.ServerProfileInfo); err != nil {
		return err
	}
	return s.conn.WriteUvarint(rows)
}

func (s *Session) writeEndOfStream() error {
	return s.conn.WritePacketCode(netframe.ServerEndOfStream)
}

// dispatch executes stmt and writes its success response. insertBlocks is
// the already-drained stream of Data packets following the query string,
// used only when stmt is an INSERT with no inline VALUES.
func (s *Session) dispatch(ctx context.Context, stmt *parsedtree.Statement, insertBlocks []*block.Block) error {
	switch stmt.Kind {
	case parsedtree.KindSelect:
		return s.execSelect(ctx, stmt.Select)
	case parsedtree.KindInsert:
		return s.execInsert(ctx, stmt.Insert, insertBlocks)
	case parsedtree.KindCreateDatabase:
		if _, err := s.engine.CreateDatabase(ctx, stmt.CreateDatabase.Name, stmt.CreateDatabase.IfNotExists); err != nil {
			return err
		}
		return s.endNoResult()
	case parsedtree.KindCreateTable:
		return s.execCreateTable(ctx, stmt.CreateTable)
	case parsedtree.KindDropDatabase:
		if err := s.engine.DropDatabase(ctx, stmt.DropDatabase.Name, stmt.DropDatabase.IfExists); err != nil {
			return err
		}
		return s.endNoResult()
	case parsedtree.KindDropTable:
		if err := s.engine.DropTable(ctx, stmt.DropTable.Table.Database, stmt.DropTable.Table.Table, stmt.DropTable.IfExists, s.database); err != nil {
			return err
		}
		return s.endNoResult()
	case parsedtree.KindUse:
		s.database = stmt.Use.Database
		return s.endNoResult()
	case parsedtree.KindShow:
		return s.execShow(ctx, stmt.Show)
	case parsedtree.KindOptimize:
		// OPTIMIZE is a best-effort no-op (spec §9's resolved Open
		// Question): validate the table exists, then succeed.
		if _, err := s.engine.ResolveTable(ctx, stmt.Optimize.Table.Database, stmt.Optimize.Table.Table, s.database); err != nil {
			return err
		}
		return s.endNoResult()
	default:
		return baseerr.New(baseerr.UnsupportedFunctionality, "protocol: unsupported statement kind %s", stmt.Kind)
	}
}

func (s *Session) endNoResult() error {
	if err := s.writeProgress(0, 0); err != nil {
		return err
	}
	if err := s.writeEndOfStream(); err != nil {
		return err
	}
	return s.conn.Flush()
}

func (s *Session) execSelect(ctx context.Context, sel *parsedtree.SelectStmt) error {
	plan, err := planner.Build(ctx, s.engine, sel, s.database)
	if err != nil {
		return err
	}
	result, err := exec.Execute(ctx, s.engine, plan, tzOffsetSeconds())
	if err != nil {
		return err
	}
	if err := s.conn.WritePacketCode(netframe.ServerData); err != nil {
		return err
	}
	if err := s.conn.WriteBlock(result); err != nil {
		return err
	}
	if err := s.writeProgress(uint64(result.NumRows()), 0); err != nil {
		return err
	}
	if err := s.writeProfileInfo(uint64(result.NumRows())); err != nil {
		return err
	}
	if err := s.writeEndOfStream(); err != nil {
		return err
	}
	return s.conn.Flush()
}

func (s *Session) execInsert(ctx context.Context, ins *parsedtree.InsertStmt, streamed []*block.Block) error {
	table, err := s.engine.ResolveTable(ctx, ins.Table.Database, ins.Table.Table, s.database)
	if err != nil {
		return err
	}

	ing := ingest.New(s.engine)

	if ins.HasInlineValues {
		blk, err := buildLiteralBlock(table, ins.Columns, ins.Values)
		if err != nil {
			return err
		}
		if err := ing.Insert(ctx, table, blk, tzOffsetSeconds()); err != nil {
			return err
		}
		return s.endNoResult()
	}
	for _, blk := range streamed {
		if err := ing.Insert(ctx, table, blk, tzOffsetSeconds()); err != nil {
			return err
		}
	}
	return s.endNoResult()
}

func (s *Session) execCreateTable(ctx context.Context, ct *parsedtree.CreateTableStmt) error {
	spec := engine.CreateTableSpec{
		Database:    ct.Table.Database,
		Table:       ct.Table.Table,
		IfNotExists: ct.IfNotExists,
		Engine:      ct.Engine,
	}
	for _, col := range ct.Columns {
		typ, err := column.ParseType(col.Type)
		if err != nil {
			return err
		}
		spec.Columns = append(spec.Columns, engine.ColumnSpec{Name: col.Name, Type: typ})
	}
	if ct.PartitionExpr != nil {
		pe, err := partexpr.Compile(*ct.PartitionExpr)
		if err != nil {
			return err
		}
		spec.PartitionExpr = pe
	}
	if _, err := s.engine.CreateTable(ctx, spec, s.database); err != nil {
		return err
	}
	return s.endNoResult()
}

func (s *Session) execShow(ctx context.Context, show *parsedtree.ShowStmt) error {
	var names []string
	switch show.Kind {
	case parsedtree.ShowTables:
		entities, err := s.engine.ListTables(ctx, show.Database, s.database)
		if err != nil {
			return err
		}
		for _, e := range entities {
			names = append(names, e.Name)
		}
	case parsedtree.ShowDatabases:
		entities, err := s.engine.ListDatabases(ctx)
		if err != nil {
			return err
		}
		for _, e := range entities {
			names = append(names, e.Name)
		}
	default:
		return baseerr.New(baseerr.UnsupportedFunctionality, "protocol: unsupported SHOW variant")
	}

	chunk := column.New(column.Type{Kind: column.KindString})
	var rows [][]byte
	for _, n := range names {
		rows = append(rows, []byte(n))
	}
	if err := chunk.PushStrings(rows); err != nil {
		return err
	}
	blk := block.New()
	if err := blk.AddColumn("name", chunk); err != nil {
		return err
	}

	if err := s.conn.WritePacketCode(netframe.ServerData); err != nil {
		return err
	}
	if err := s.conn.WriteBlock(blk); err != nil {
		return err
	}
	if err := s.writeProgress(uint64(len(names)), 0); err != nil {
		return err
	}
	if err := s.writeEndOfStream(); err != nil {
		return err
	}
	return s.conn.Flush()
}

// tzOffsetSeconds is the server timezone offset partition-key evaluation
// uses (spec §3's toYYYYMM needs a calendar, not just a Unix timestamp).
// This server always runs as ServerTimezone ("UTC"), so the offset is
// always zero; a future per-session SET timezone would thread a non-zero
// value through here instead.
func tzOffsetSeconds() int32 { return 0 }

// buildLiteralBlock constructs the single-batch insert Block for an
// INSERT ... VALUES statement: cols names the statement's explicit column
// list (table order when omitted), and rows is one expression slice per
// row; pushLiteral rejects any expression other than a literal or a
// negated numeric literal.
func buildLiteralBlock(table *engine.TableMeta, cols []string, rows [][]parsedtree.Expr) (*block.Block, error) {
	if len(cols) == 0 {
		for _, c := range table.Columns {
			cols = append(cols, c.Name)
		}
	}
	types := make([]column.Type, len(cols))
	for i, name := range cols {
		cm := table.ColumnByName(name)
		if cm == nil {
			return nil, baseerr.New(baseerr.ColumnNotExist, "protocol: unknown column %q in INSERT column list", name)
		}
		types[i] = cm.Type
	}

	chunks := make([]*column.Chunk, len(cols))
	for i, t := range types {
		chunks[i] = column.New(t)
	}
	for _, row := range rows {
		if len(row) != len(cols) {
			return nil, baseerr.New(baseerr.SchemaMismatch, "protocol: INSERT row has %d values, expected %d", len(row), len(cols))
		}
		for i, e := range row {
			if err := pushLiteral(chunks[i], types[i], e); err != nil {
				return nil, err
			}
		}
	}

	blk := block.New()
	for i, name := range cols {
		if err := blk.AddColumn(name, chunks[i]); err != nil {
			return nil, err
		}
	}
	return blk, nil
}

// resolveLiteral folds a leading unary minus into its operand's numeric
// value, since the parser represents "-5" as ExprUnaryOp{"-", 5} rather
// than a signed literal of its own.
func resolveLiteral(e parsedtree.Expr) (parsedtree.Expr, error) {
	if e.Kind == parsedtree.ExprUnaryOp && e.Op == "-" {
		inner, err := resolveLiteral(*e.Left)
		if err != nil {
			return parsedtree.Expr{}, err
		}
		switch inner.LitKind {
		case parsedtree.LiteralInt:
			inner.IntVal = -inner.IntVal
		case parsedtree.LiteralFloat:
			inner.FltVal = -inner.FltVal
		default:
			return parsedtree.Expr{}, baseerr.New(baseerr.TypeMismatch, "protocol: unary minus requires a numeric literal")
		}
		return inner, nil
	}
	if e.Kind != parsedtree.ExprLiteral {
		return parsedtree.Expr{}, baseerr.New(baseerr.UnsupportedFunctionality, "protocol: INSERT VALUES supports only literal expressions")
	}
	return e, nil
}

func pushLiteral(chunk *column.Chunk, typ column.Type, raw parsedtree.Expr) error {
	e, err := resolveLiteral(raw)
	if err != nil {
		return err
	}
	if typ.Kind == column.KindString || typ.Kind == column.KindFixedString {
		if e.LitKind != parsedtree.LiteralString {
			return baseerr.New(baseerr.TypeMismatch, "protocol: expected a string literal for column of type %s", typ.Name())
		}
		return chunk.PushStrings([][]byte{[]byte(e.StrVal)})
	}
	var u uint64
	switch e.LitKind {
	case parsedtree.LiteralInt:
		u = uint64(e.IntVal)
	case parsedtree.LiteralFloat:
		switch typ.Kind {
		case column.KindFloat32, column.KindFloat64:
			return pushFloatLiteral(chunk, typ, e.FltVal)
		default:
			return baseerr.New(baseerr.TypeMismatch, "protocol: float literal not valid for column of type %s", typ.Name())
		}
	default:
		return baseerr.New(baseerr.TypeMismatch, "protocol: unsupported literal for column of type %s", typ.Name())
	}
	if typ.Kind == column.KindFloat32 || typ.Kind == column.KindFloat64 {
		return pushFloatLiteral(chunk, typ, float64(int64(u)))
	}
	buf := make([]byte, typ.ElementSize())
	switch len(buf) {
	case 1:
		buf[0] = byte(u)
	case 2:
		buf[0], buf[1] = byte(u), byte(u>>8)
	case 4:
		buf[0], buf[1], buf[2], buf[3] = byte(u), byte(u>>8), byte(u>>16), byte(u>>24)
	case 8:
		for i := 0; i < 8; i++ {
			buf[i] = byte(u >> (8 * i))
		}
	default:
		return baseerr.New(baseerr.UnsupportedFunctionality, "protocol: column type %s is not supported in literal INSERT values", typ.Name())
	}
	return chunk.PushValues(buf)
}

func pushFloatLiteral(chunk *column.Chunk, typ column.Type, f float64) error {
	buf := make([]byte, typ.ElementSize())
	switch typ.Kind {
	case column.KindFloat32:
		bits := math.Float32bits(float32(f))
		buf[0], buf[1], buf[2], buf[3] = byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24)
	case column.KindFloat64:
		bits := math.Float64bits(f)
		for i := 0; i < 8; i++ {
			buf[i] = byte(bits >> (8 * i))
		}
	}
	return chunk.PushValues(buf)
}
