// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package sqlmini is one producer of the parsedtree contract (spec §6.4):
// a minimal, hand-rolled lexer/parser covering exactly the grammar subset
// spec §1's scope line names (SELECT/INSERT/CREATE/DROP/USE/SHOW/OPTIMIZE).
// Full SQL grammar is explicitly out of scope (spec §1); this package
// exists only so the end-to-end scenarios in spec §8 have something to
// drive the planner with, the way a real deployment would plug in a
// separate, much larger parser behind the same parsedtree.Statement
// contract.
package sqlmini

import (
	"strings"

	"basedb/internal/baseerr"
)

// TokenKind tags one lexical token.
type TokenKind int

const (
	TokIdent TokenKind = iota
	TokNumber
	TokString
	TokPunct
	TokEOF
)

// Token is one lexical token plus its literal text.
type Token struct {
	Kind TokenKind
	Text string
}

// Lexer splits a SQL statement into tokens: identifiers/keywords, integer
// and float literals, single-quoted string literals, and punctuation
// (parens, comma, dot, and the comparison/arithmetic operator characters).
type Lexer struct {
	src []rune
	pos int
}

// NewLexer returns a lexer over src.
func NewLexer(src string) *Lexer {
	return &Lexer{src: []rune(src)}
}

func (l *Lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekAt(off int) rune {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentCont(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func (l *Lexer) skipSpace() {
	for l.pos < len(l.src) {
		r := l.src[l.pos]
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			l.pos++
			continue
		}
		if r == '-' && l.peekAt(1) == '-' {
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
			continue
		}
		break
	}
}

// Next returns the next token, or a TokEOF token at end of input.
func (l *Lexer) Next() (Token, error) {
	l.skipSpace()
	if l.pos >= len(l.src) {
		return Token{Kind: TokEOF}, nil
	}
	r := l.peek()

	switch {
	case isIdentStart(r):
		start := l.pos
		for l.pos < len(l.src) && isIdentCont(l.src[l.pos]) {
			l.pos++
		}
		return Token{Kind: TokIdent, Text: string(l.src[start:l.pos])}, nil

	case isDigit(r) || (r == '-' && isDigit(l.peekAt(1))):
		start := l.pos
		if r == '-' {
			l.pos++
		}
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
		if l.peek() == '.' && isDigit(l.peekAt(1)) {
			l.pos++
			for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
				l.pos++
			}
		}
		return Token{Kind: TokNumber, Text: string(l.src[start:l.pos])}, nil

	case r == '\'':
		l.pos++
		var sb strings.Builder
		for {
			if l.pos >= len(l.src) {
				return Token{}, baseerr.New(baseerr.UnsupportedFunctionality, "sqlmini: unterminated string literal")
			}
			c := l.src[l.pos]
			if c == '\'' {
				if l.peekAt(1) == '\'' {
					sb.WriteRune('\'')
					l.pos += 2
					continue
				}
				l.pos++
				break
			}
			sb.WriteRune(c)
			l.pos++
		}
		return Token{Kind: TokString, Text: sb.String()}, nil

	case r == '<' || r == '>' || r == '!':
		start := l.pos
		l.pos++
		if l.peek() == '=' {
			l.pos++
		}
		return Token{Kind: TokPunct, Text: string(l.src[start:l.pos])}, nil

	default:
		l.pos++
		return Token{Kind: TokPunct, Text: string(r)}, nil
	}
}

// Tokenize returns every token of src up to and including the final EOF
// token.
func Tokenize(src string) ([]Token, error) {
	lx := NewLexer(src)
	var out []Token
	for {
		tok, err := lx.Next()
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
		if tok.Kind == TokEOF {
			return out, nil
		}
	}
}
