// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package sqlmini

import (
	"strconv"
	"strings"

	"basedb/internal/baseerr"
	"basedb/internal/parsedtree"
)

// Parser turns a token stream into a single parsedtree.Statement. It
// implements exactly the grammar spec §1 names: SELECT ... FROM t
// [WHERE ...] [GROUP BY ...] [ORDER BY ...] [LIMIT ...], INSERT INTO t
// ..., CREATE/DROP DATABASE/TABLE, USE, SHOW, OPTIMIZE. Anything else
// fails with baseerr.UnsupportedFunctionality rather than guessing.
type Parser struct {
	toks []Token
	pos  int
}

// Parse tokenizes and parses src, returning the single parsedtree
// statement it names.
func Parse(src string) (*parsedtree.Statement, error) {
	toks, err := Tokenize(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(src), ";")))
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks}
	return p.parseStatement()
}

func (p *Parser) cur() Token { return p.toks[p.pos] }

func (p *Parser) advance() Token {
	t := p.toks[p.pos]
	if t.Kind != TokEOF {
		p.pos++
	}
	return t
}

func (p *Parser) kw(s string) bool {
	t := p.cur()
	return t.Kind == TokIdent && strings.EqualFold(t.Text, s)
}

func (p *Parser) expectKw(s string) error {
	if !p.kw(s) {
		return baseerr.New(baseerr.UnsupportedFunctionality, "sqlmini: expected %q, got %q", s, p.cur().Text)
	}
	p.advance()
	return nil
}

func (p *Parser) expectPunct(s string) error {
	t := p.cur()
	if t.Kind != TokPunct || t.Text != s {
		return baseerr.New(baseerr.UnsupportedFunctionality, "sqlmini: expected %q, got %q", s, t.Text)
	}
	p.advance()
	return nil
}

func (p *Parser) expectIdent() (string, error) {
	t := p.cur()
	if t.Kind != TokIdent {
		return "", baseerr.New(baseerr.UnsupportedFunctionality, "sqlmini: expected identifier, got %q", t.Text)
	}
	p.advance()
	return t.Text, nil
}

func (p *Parser) parseStatement() (*parsedtree.Statement, error) {
	switch {
	case p.kw("SELECT"):
		return p.parseSelect()
	case p.kw("INSERT"):
		return p.parseInsert()
	case p.kw("CREATE"):
		return p.parseCreate()
	case p.kw("DROP"):
		return p.parseDrop()
	case p.kw("USE"):
		p.advance()
		db, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return &parsedtree.Statement{Kind: parsedtree.KindUse, Use: &parsedtree.UseStmt{Database: db}}, nil
	case p.kw("SHOW"):
		return p.parseShow()
	case p.kw("OPTIMIZE"):
		p.advance()
		if err := p.expectKw("TABLE"); err != nil {
			return nil, err
		}
		ref, err := p.parseTableRef()
		if err != nil {
			return nil, err
		}
		return &parsedtree.Statement{Kind: parsedtree.KindOptimize, Optimize: &parsedtree.OptimizeStmt{Table: ref}}, nil
	default:
		return nil, baseerr.New(baseerr.UnsupportedFunctionality, "sqlmini: unrecognized statement starting at %q", p.cur().Text)
	}
}

// parseTableRef parses [db.]table.
func (p *Parser) parseTableRef() (parsedtree.TableRef, error) {
	first, err := p.expectIdent()
	if err != nil {
		return parsedtree.TableRef{}, err
	}
	if p.cur().Kind == TokPunct && p.cur().Text == "." {
		p.advance()
		second, err := p.expectIdent()
		if err != nil {
			return parsedtree.TableRef{}, err
		}
		return parsedtree.TableRef{Database: first, Table: second}, nil
	}
	return parsedtree.TableRef{Table: first}, nil
}

func (p *Parser) parseShow() (*parsedtree.Statement, error) {
	p.advance() // SHOW
	switch {
	case p.kw("TABLES"):
		p.advance()
		show := &parsedtree.ShowStmt{Kind: parsedtree.ShowTables}
		if p.kw("FROM") {
			p.advance()
			db, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			show.Database = db
		}
		return &parsedtree.Statement{Kind: parsedtree.KindShow, Show: show}, nil
	case p.kw("DATABASES"):
		p.advance()
		return &parsedtree.Statement{Kind: parsedtree.KindShow, Show: &parsedtree.ShowStmt{Kind: parsedtree.ShowDatabases}}, nil
	default:
		return nil, baseerr.New(baseerr.UnsupportedFunctionality, "sqlmini: SHOW %q not supported", p.cur().Text)
	}
}

func (p *Parser) parseCreate() (*parsedtree.Statement, error) {
	p.advance() // CREATE
	switch {
	case p.kw("DATABASE"):
		p.advance()
		ifNotExists := p.consumeIfNotExists()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return &parsedtree.Statement{Kind: parsedtree.KindCreateDatabase, CreateDatabase: &parsedtree.CreateDatabaseStmt{Name: name, IfNotExists: ifNotExists}}, nil
	case p.kw("TABLE"):
		return p.parseCreateTable()
	default:
		return nil, baseerr.New(baseerr.UnsupportedFunctionality, "sqlmini: CREATE %q not supported", p.cur().Text)
	}
}

func (p *Parser) consumeIfNotExists() bool {
	if p.kw("IF") {
		p.advance()
		_ = p.expectKw("NOT")
		_ = p.expectKw("EXISTS")
		return true
	}
	return false
}

func (p *Parser) consumeIfExists() bool {
	if p.kw("IF") {
		p.advance()
		_ = p.expectKw("EXISTS")
		return true
	}
	return false
}

func (p *Parser) parseCreateTable() (*parsedtree.Statement, error) {
	p.advance() // TABLE
	ifNotExists := p.consumeIfNotExists()
	ref, err := p.parseTableRef()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var cols []parsedtree.ColumnDef
	for {
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		typ, err := p.parseTypeString()
		if err != nil {
			return nil, err
		}
		cols = append(cols, parsedtree.ColumnDef{Name: name, Type: typ})
		if p.cur().Kind == TokPunct && p.cur().Text == "," {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}

	stmt := &parsedtree.CreateTableStmt{Table: ref, IfNotExists: ifNotExists, Columns: cols}

	if p.kw("ENGINE") {
		p.advance()
		if err := p.expectPunct("="); err != nil {
			return nil, err
		}
		engine, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		stmt.Engine = engine
	}
	if p.kw("PARTITION") {
		p.advance()
		if err := p.expectKw("BY"); err != nil {
			return nil, err
		}
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.PartitionExpr = &expr
	}
	return &parsedtree.Statement{Kind: parsedtree.KindCreateTable, CreateTable: stmt}, nil
}

// parseTypeString consumes a column type, re-rendering it as the same
// string form column.ParseType accepts (e.g. "UInt32", "FixedString(16)",
// "Nullable(String)"), since the catalog stores types as unparsed strings
// until a schema lookup resolves them.
func (p *Parser) parseTypeString() (string, error) {
	name, err := p.expectIdent()
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString(name)
	if p.cur().Kind == TokPunct && p.cur().Text == "(" {
		p.advance()
		sb.WriteString("(")
		first := true
		for !(p.cur().Kind == TokPunct && p.cur().Text == ")") {
			if !first {
				sb.WriteString(",")
			}
			first = false
			t := p.advance()
			if t.Kind == TokString {
				sb.WriteString(strconv.Quote(t.Text))
			} else {
				sb.WriteString(t.Text)
			}
		}
		if err := p.expectPunct(")"); err != nil {
			return "", err
		}
		sb.WriteString(")")
	}
	return sb.String(), nil
}

func (p *Parser) parseDrop() (*parsedtree.Statement, error) {
	p.advance() // DROP
	switch {
	case p.kw("DATABASE"):
		p.advance()
		ifExists := p.consumeIfExists()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return &parsedtree.Statement{Kind: parsedtree.KindDropDatabase, DropDatabase: &parsedtree.DropDatabaseStmt{Name: name, IfExists: ifExists}}, nil
	case p.kw("TABLE"):
		p.advance()
		ifExists := p.consumeIfExists()
		ref, err := p.parseTableRef()
		if err != nil {
			return nil, err
		}
		return &parsedtree.Statement{Kind: parsedtree.KindDropTable, DropTable: &parsedtree.DropTableStmt{Table: ref, IfExists: ifExists}}, nil
	default:
		return nil, baseerr.New(baseerr.UnsupportedFunctionality, "sqlmini: DROP %q not supported", p.cur().Text)
	}
}

func (p *Parser) parseInsert() (*parsedtree.Statement, error) {
	p.advance() // INSERT
	if err := p.expectKw("INTO"); err != nil {
		return nil, err
	}
	ref, err := p.parseTableRef()
	if err != nil {
		return nil, err
	}
	stmt := &parsedtree.InsertStmt{Table: ref}
	if p.cur().Kind == TokPunct && p.cur().Text == "(" {
		p.advance()
		for {
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			stmt.Columns = append(stmt.Columns, name)
			if p.cur().Kind == TokPunct && p.cur().Text == "," {
				p.advance()
				continue
			}
			break
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
	}
	if p.kw("VALUES") {
		p.advance()
		stmt.HasInlineValues = true
		for {
			if err := p.expectPunct("("); err != nil {
				return nil, err
			}
			var row []parsedtree.Expr
			for {
				e, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				row = append(row, e)
				if p.cur().Kind == TokPunct && p.cur().Text == "," {
					p.advance()
					continue
				}
				break
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			stmt.Values = append(stmt.Values, row)
			if p.cur().Kind == TokPunct && p.cur().Text == "," {
				p.advance()
				continue
			}
			break
		}
	}
	// Otherwise rows stream as subsequent Data packets (HasInlineValues false).
	return &parsedtree.Statement{Kind: parsedtree.KindInsert, Insert: stmt}, nil
}

func (p *Parser) parseSelect() (*parsedtree.Statement, error) {
	p.advance() // SELECT
	stmt := &parsedtree.SelectStmt{}

	for {
		proj, err := p.parseProjection()
		if err != nil {
			return nil, err
		}
		stmt.Projections = append(stmt.Projections, proj)
		if p.cur().Kind == TokPunct && p.cur().Text == "," {
			p.advance()
			continue
		}
		break
	}

	if err := p.expectKw("FROM"); err != nil {
		return nil, err
	}
	ref, err := p.parseTableRef()
	if err != nil {
		return nil, err
	}
	stmt.Tables = []parsedtree.TableRef{ref}

	if p.kw("WHERE") {
		p.advance()
		w, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Where = &w
	}
	if p.kw("GROUP") {
		p.advance()
		if err := p.expectKw("BY"); err != nil {
			return nil, err
		}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			stmt.GroupBy = append(stmt.GroupBy, e)
			if p.cur().Kind == TokPunct && p.cur().Text == "," {
				p.advance()
				continue
			}
			break
		}
	}
	if p.kw("ORDER") {
		p.advance()
		if err := p.expectKw("BY"); err != nil {
			return nil, err
		}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			item := parsedtree.OrderByItem{Expr: e}
			if p.kw("DESC") {
				p.advance()
				item.Descending = true
			} else if p.kw("ASC") {
				p.advance()
			}
			stmt.OrderBy = append(stmt.OrderBy, item)
			if p.cur().Kind == TokPunct && p.cur().Text == "," {
				p.advance()
				continue
			}
			break
		}
	}
	if p.kw("LIMIT") {
		p.advance()
		n, err := p.expectNumber()
		if err != nil {
			return nil, err
		}
		stmt.HasLimit = true
		stmt.Limit = n
		if p.cur().Kind == TokPunct && p.cur().Text == "," {
			p.advance()
			off, err := p.expectNumber()
			if err != nil {
				return nil, err
			}
			stmt.Offset = stmt.Limit
			stmt.Limit = off
		}
	}
	return &parsedtree.Statement{Kind: parsedtree.KindSelect, Select: stmt}, nil
}

func (p *Parser) expectNumber() (int64, error) {
	t := p.cur()
	if t.Kind != TokNumber {
		return 0, baseerr.New(baseerr.UnsupportedFunctionality, "sqlmini: expected number, got %q", t.Text)
	}
	p.advance()
	n, err := strconv.ParseInt(t.Text, 10, 64)
	if err != nil {
		return 0, baseerr.New(baseerr.UnsupportedFunctionality, "sqlmini: bad integer literal %q", t.Text)
	}
	return n, nil
}

func (p *Parser) parseProjection() (parsedtree.Projection, error) {
	if p.cur().Kind == TokPunct && p.cur().Text == "*" {
		p.advance()
		return parsedtree.Projection{Expr: parsedtree.Expr{Kind: parsedtree.ExprStar}}, nil
	}
	e, err := p.parseExpr()
	if err != nil {
		return parsedtree.Projection{}, err
	}
	proj := parsedtree.Projection{Expr: e}
	if p.kw("AS") {
		p.advance()
		alias, err := p.expectIdent()
		if err != nil {
			return parsedtree.Projection{}, err
		}
		proj.Alias = alias
	}
	return proj, nil
}

// Expression grammar, lowest to highest precedence:
//
//	orExpr   := andExpr   (OR andExpr)*
//	andExpr  := cmpExpr   (AND cmpExpr)*
//	cmpExpr  := addExpr   ((= | != | <> | < | <= | > | >=) addExpr)?
//	addExpr  := mulExpr   ((+ | -) mulExpr)*
//	mulExpr  := unary     ((* | / | %) unary)*
//	unary    := (-)? primary
//	primary  := ident | ident '(' args ')' | ident '.' ident | number | string | '(' orExpr ')'
func (p *Parser) parseExpr() (parsedtree.Expr, error) { return p.parseOr() }

func (p *Parser) parseOr() (parsedtree.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return parsedtree.Expr{}, err
	}
	for p.kw("OR") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return parsedtree.Expr{}, err
		}
		left = parsedtree.Expr{Kind: parsedtree.ExprBinaryOp, Op: "OR", Left: &left, Right: &right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (parsedtree.Expr, error) {
	left, err := p.parseCmp()
	if err != nil {
		return parsedtree.Expr{}, err
	}
	for p.kw("AND") {
		p.advance()
		right, err := p.parseCmp()
		if err != nil {
			return parsedtree.Expr{}, err
		}
		left = parsedtree.Expr{Kind: parsedtree.ExprBinaryOp, Op: "AND", Left: &left, Right: &right}
	}
	return left, nil
}

var cmpOps = map[string]bool{"=": true, "!=": true, "<>": true, "<": true, "<=": true, ">": true, ">=": true}

func (p *Parser) parseCmp() (parsedtree.Expr, error) {
	left, err := p.parseAdd()
	if err != nil {
		return parsedtree.Expr{}, err
	}
	if p.cur().Kind == TokPunct && cmpOps[p.cur().Text] {
		op := p.advance().Text
		right, err := p.parseAdd()
		if err != nil {
			return parsedtree.Expr{}, err
		}
		return parsedtree.Expr{Kind: parsedtree.ExprBinaryOp, Op: op, Left: &left, Right: &right}, nil
	}
	return left, nil
}

func (p *Parser) parseAdd() (parsedtree.Expr, error) {
	left, err := p.parseMul()
	if err != nil {
		return parsedtree.Expr{}, err
	}
	for p.cur().Kind == TokPunct && (p.cur().Text == "+" || p.cur().Text == "-") {
		op := p.advance().Text
		right, err := p.parseMul()
		if err != nil {
			return parsedtree.Expr{}, err
		}
		left = parsedtree.Expr{Kind: parsedtree.ExprBinaryOp, Op: op, Left: &left, Right: &right}
	}
	return left, nil
}

func (p *Parser) parseMul() (parsedtree.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return parsedtree.Expr{}, err
	}
	for p.cur().Kind == TokPunct && (p.cur().Text == "*" || p.cur().Text == "/" || p.cur().Text == "%") {
		op := p.advance().Text
		right, err := p.parseUnary()
		if err != nil {
			return parsedtree.Expr{}, err
		}
		left = parsedtree.Expr{Kind: parsedtree.ExprBinaryOp, Op: op, Left: &left, Right: &right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (parsedtree.Expr, error) {
	if p.cur().Kind == TokPunct && p.cur().Text == "-" {
		p.advance()
		inner, err := p.parseUnary()
		if err != nil {
			return parsedtree.Expr{}, err
		}
		return parsedtree.Expr{Kind: parsedtree.ExprUnaryOp, Op: "-", Left: &inner}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (parsedtree.Expr, error) {
	t := p.cur()
	switch {
	case t.Kind == TokPunct && t.Text == "*":
		p.advance()
		return parsedtree.Expr{Kind: parsedtree.ExprStar}, nil
	case t.Kind == TokPunct && t.Text == "(":
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return parsedtree.Expr{}, err
		}
		if err := p.expectPunct(")"); err != nil {
			return parsedtree.Expr{}, err
		}
		return e, nil
	case t.Kind == TokNumber:
		p.advance()
		if strings.Contains(t.Text, ".") {
			f, err := strconv.ParseFloat(t.Text, 64)
			if err != nil {
				return parsedtree.Expr{}, baseerr.New(baseerr.UnsupportedFunctionality, "sqlmini: bad float literal %q", t.Text)
			}
			return parsedtree.Expr{Kind: parsedtree.ExprLiteral, LitKind: parsedtree.LiteralFloat, FltVal: f}, nil
		}
		n, err := strconv.ParseInt(t.Text, 10, 64)
		if err != nil {
			return parsedtree.Expr{}, baseerr.New(baseerr.UnsupportedFunctionality, "sqlmini: bad integer literal %q", t.Text)
		}
		return parsedtree.Expr{Kind: parsedtree.ExprLiteral, LitKind: parsedtree.LiteralInt, IntVal: n}, nil
	case t.Kind == TokString:
		p.advance()
		return parsedtree.Expr{Kind: parsedtree.ExprLiteral, LitKind: parsedtree.LiteralString, StrVal: t.Text}, nil
	case t.Kind == TokIdent && strings.EqualFold(t.Text, "NULL"):
		p.advance()
		return parsedtree.Expr{Kind: parsedtree.ExprLiteral, LitKind: parsedtree.LiteralNull}, nil
	case t.Kind == TokIdent:
		p.advance()
		name := t.Text
		if p.cur().Kind == TokPunct && p.cur().Text == "(" {
			p.advance()
			var args []parsedtree.Expr
			for !(p.cur().Kind == TokPunct && p.cur().Text == ")") {
				if p.cur().Kind == TokPunct && p.cur().Text == "*" {
					p.advance()
					args = append(args, parsedtree.Expr{Kind: parsedtree.ExprStar})
				} else {
					a, err := p.parseExpr()
					if err != nil {
						return parsedtree.Expr{}, err
					}
					args = append(args, a)
				}
				if p.cur().Kind == TokPunct && p.cur().Text == "," {
					p.advance()
					continue
				}
				break
			}
			if err := p.expectPunct(")"); err != nil {
				return parsedtree.Expr{}, err
			}
			return parsedtree.Expr{Kind: parsedtree.ExprFuncCall, FuncName: name, Args: args}, nil
		}
		if p.cur().Kind == TokPunct && p.cur().Text == "." {
			p.advance()
			col, err := p.expectIdent()
			if err != nil {
				return parsedtree.Expr{}, err
			}
			return parsedtree.Expr{Kind: parsedtree.ExprColumn, Column: name + "." + col}, nil
		}
		return parsedtree.Expr{Kind: parsedtree.ExprColumn, Column: name}, nil
	default:
		return parsedtree.Expr{}, baseerr.New(baseerr.UnsupportedFunctionality, "sqlmini: unexpected token %q", t.Text)
	}
}
