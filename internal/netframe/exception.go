// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package netframe

import "basedb/internal/baseerr"

// Exception is the ServerException packet body (spec §6.1): a numeric
// code, name, message, synthetic stack text, and an optional nested
// cause repeating the same structure. The nested chain mirrors
// baseerr.Error's Cause chain.
type Exception struct {
	Code    uint32
	Name    string
	Message string
	Stack   string
	Nested  *Exception
}

// ExceptionFromError converts err into the Exception chain the protocol
// layer writes onto the wire, unwrapping baseerr.Error causes into
// nested exceptions the way the reference protocol nests server-side
// causes.
func ExceptionFromError(err error) *Exception {
	if err == nil {
		return nil
	}
	be, ok := err.(*baseerr.Error)
	if !ok {
		return &Exception{Code: uint32(baseerr.Generic), Name: "Error", Message: err.Error()}
	}
	exc := &Exception{Code: uint32(be.Code), Name: "Error", Message: be.Message}
	if be.Cause != nil {
		exc.Nested = ExceptionFromError(be.Cause)
	}
	return exc
}

// WriteException writes a ServerException packet: the varint code
// followed by the Exception body, nested exceptions inline.
func (c *Conn) WriteException(exc *Exception) error {
	if err := c.WritePacketCode(ServerException); err != nil {
		return err
	}
	return c.writeExceptionBody(exc)
}

func (c *Conn) writeExceptionBody(exc *Exception) error {
	if err := c.WriteUint32(exc.Code); err != nil {
		return err
	}
	if err := c.WriteString(exc.Name); err != nil {
		return err
	}
	if err := c.WriteString(exc.Message); err != nil {
		return err
	}
	if err := c.WriteString(exc.Stack); err != nil {
		return err
	}
	if exc.Nested != nil {
		if err := c.WriteByteField(1); err != nil {
			return err
		}
		return c.writeExceptionBody(exc.Nested)
	}
	return c.WriteByteField(0)
}

// ReadException reads an Exception packet body (the packet code itself
// is assumed already consumed by the caller's dispatch loop).
func (c *Conn) ReadException() (*Exception, error) {
	code, err := c.ReadUint32()
	if err != nil {
		return nil, err
	}
	name, err := c.ReadString()
	if err != nil {
		return nil, err
	}
	message, err := c.ReadString()
	if err != nil {
		return nil, err
	}
	stack, err := c.ReadString()
	if err != nil {
		return nil, err
	}
	hasNested, err := c.ReadByteField()
	if err != nil {
		return nil, err
	}
	exc := &Exception{Code: code, Name: name, Message: message, Stack: stack}
	if hasNested != 0 {
		nested, err := c.ReadException()
		if err != nil {
			return nil, err
		}
		exc.Nested = nested
	}
	return exc, nil
}
