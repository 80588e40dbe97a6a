// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package protocol implements spec §4.7's connection state machine: one
// Session per net.Conn, driven cooperatively by ordinary blocking Go I/O
// under its own goroutine (the idiomatic substitute for an explicit
// reactor the "one goroutine per connection, no shared mutable session
// state" redesign note calls for). States Awaiting-Hello, Default,
// InQuery, ReceivingInsertBlocks and SendingResultBlocks are folded into
// Serve's straight-line control flow rather than named as an explicit
// type, since a goroutine's program counter already is the state.
package protocol

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/sirupsen/logrus"

	"basedb/internal/baseerr"
	"basedb/internal/engine"
	"basedb/internal/netframe"
)

// ServerName, ServerMajor/Minor/Patch and ServerTimezone are the values
// this engine's Hello reply advertises (spec §4.7 step 2).
const (
	ServerName     = "BaseDB"
	ServerMajor    = 1
	ServerMinor    = 0
	ServerPatch    = 0
	ServerTimezone = "UTC"
)

// Session is one accepted connection's state: the framing layer, the
// engine handle every query dispatches against, the negotiated client
// revision, and the session's current default database (spec §4.4: USE
// switches it, an unqualified table name resolves against it).
type Session struct {
	conn     *netframe.Conn
	engine   *engine.Engine
	log      *logrus.Entry
	revision uint64
	database string
}

// NewSession wraps raw for one connection against e. log, when non-nil,
// receives one structured warning per failed query; a nil log is replaced
// with a discarding logger so callers needn't special-case it.
func NewSession(raw net.Conn, e *engine.Engine, log *logrus.Entry) *Session {
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = logrus.NewEntry(discard)
	}
	return &Session{conn: netframe.NewConn(raw), engine: e, log: log}
}

// Serve drives the session to completion: the Hello handshake once, then
// one Query/Ping/Cancel per iteration until the peer disconnects or ctx is
// canceled. A query that fails sends an Exception and returns the
// connection to Default rather than closing it (spec §4.7's absorbing
// Exception transient); only a framing-level or I/O error ends Serve.
func (s *Session) Serve(ctx context.Context) error {
	defer s.conn.Close()

	if err := s.handshake(); err != nil {
		return err
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		code, err := s.conn.ReadPacketCode()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		switch code {
		case netframe.ClientPing:
			if err := s.handlePing(); err != nil {
				return err
			}
		case netframe.ClientQuery:
			if err := s.handleQuery(ctx); err != nil {
				return err
			}
		case netframe.ClientCancel:
			// No query is ever in flight between reads of this loop (spec
			// §4.7: "only one query is in flight"), so a Cancel arriving
			// here has nothing to cancel; ignore it and stay in Default.
			continue
		default:
			exc := netframe.ExceptionFromError(baseerr.New(baseerr.UnexpectedMessage, "protocol: unexpected client packet code %d in Default state", code))
			if err := s.conn.WriteException(exc); err != nil {
				return err
			}
			if err := s.writeEndOfStream(); err != nil {
				return err
			}
			if err := s.conn.Flush(); err != nil {
				return err
			}
		}
	}
}

func (s *Session) handshake() error {
	code, err := s.conn.ReadPacketCode()
	if err != nil {
		return err
	}
	if code != netframe.ClientHello {
		return baseerr.New(baseerr.UnexpectedMessage, "protocol: expected Hello packet, got code %d", code)
	}
	if _, err := s.conn.ReadString(); err != nil { // client name
		return err
	}
	if _, err := s.conn.ReadUvarint(); err != nil { // client major
		return err
	}
	if _, err := s.conn.ReadUvarint(); err != nil { // client minor
		return err
	}
	revision, err := s.conn.ReadUvarint()
	if err != nil {
		return err
	}
	database, err := s.conn.ReadString()
	if err != nil {
		return err
	}
	if _, err := s.conn.ReadString(); err != nil { // user
		return err
	}
	if _, err := s.conn.ReadString(); err != nil { // password
		return err
	}
	if database == "" {
		database = "default"
	}
	s.revision = revision
	s.database = database

	if err := s.conn.WritePacketCode(netframe.ServerHello); err != nil {
		return err
	}
	if err := s.conn.WriteString(ServerName); err != nil {
		return err
	}
	if err := s.conn.WriteUvarint(ServerMajor); err != nil {
		return err
	}
	if err := s.conn.WriteUvarint(ServerMinor); err != nil {
		return err
	}
	if err := s.conn.WriteUvarint(netframe.ClientRevision); err != nil {
		return err
	}
	if revision >= netframe.RevisionWithTimezone {
		if err := s.conn.WriteString(ServerTimezone); err != nil {
			return err
		}
	}
	if revision >= netframe.RevisionWithDisplayName {
		if err := s.conn.WriteString(ServerName); err != nil {
			return err
		}
	}
	if revision >= netframe.RevisionWithVersionPatch {
		if err := s.conn.WriteUvarint(ServerPatch); err != nil {
			return err
		}
	}
	return s.conn.Flush()
}

func (s *Session) handlePing() error {
	if err := s.conn.WritePacketCode(netframe.ServerPong); err != nil {
		return err
	}
	return s.conn.Flush()
}
