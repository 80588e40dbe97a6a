// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package netframe implements the per-connection wire framing layer
// (spec §4.6/§6.1): packet code constants, compressed-block handling for
// Data packets, and the 100 MiB maximum in-flight message size.
package netframe

// Client packet codes (spec §6.1).
const (
	ClientHello  = 0
	ClientQuery  = 1
	ClientData   = 2
	ClientCancel = 3
	ClientPing   = 4
)

// Server packet codes (spec §6.1).
const (
	ServerHello       = 0
	ServerData        = 1
	ServerException   = 2
	ServerProgress    = 3
	ServerPong        = 4
	ServerEndOfStream = 5
	ServerProfileInfo = 6
	ServerTotals      = 7
	ServerExtremes    = 8
)

// MaxMessageSize is the maximum in-flight buffered packet size (spec
// §4.6); exceeding it is fatal for the connection.
const MaxMessageSize = 100 << 20

// Revision gates (spec §4.7's handshake feature negotiation).
const (
	RevisionWithTimezone     = 54058
	RevisionWithQuotaKey     = 54060
	RevisionWithDisplayName  = 54372
	RevisionWithVersionPatch = 54401
)

// ClientRevision is the protocol revision this server advertises.
const ClientRevision = 54405
