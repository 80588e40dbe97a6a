// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"

	"github.com/pierrec/lz4/v4"

	"basedb/internal/baseerr"
)

// AlgoLZ4 is the single supported compressed-frame algorithm byte. Any other
// value encountered while decoding is rejected.
const AlgoLZ4 = 0x82

// frameHeaderLen is the length, in bytes, of everything in a compressed
// frame after the 16-byte hash: the algo byte plus the two uint32 sizes.
const frameHeaderLen = 1 + 4 + 4

// CompressFrame wraps payload (an encoded Block, per spec) as:
//
//	[16-byte CityHash128 of everything after it]
//	[1-byte algo = AlgoLZ4]
//	[4-byte compressed size LE, including the algo byte and the two size fields]
//	[4-byte uncompressed size LE]
//	[LZ4 block payload]
func CompressFrame(payload []byte) ([]byte, error) {
	maxLZ4 := lz4.CompressBlockBound(len(payload))
	body := make([]byte, frameHeaderLen+maxLZ4)
	body[0] = AlgoLZ4

	var ht [1 << 16]int
	n, err := lz4.CompressBlock(payload, body[frameHeaderLen:], ht[:])
	if err != nil {
		return nil, baseerr.Wrap(baseerr.Generic, err, "lz4 compress")
	}
	if n == 0 && len(payload) > 0 {
		// dst was sized via CompressBlockBound, which always has room for
		// the worst-case (fully incompressible) encoding, so a zero result
		// here means pierrec/lz4 judged the destination too small for some
		// other reason; treat it as an internal error rather than silently
		// mis-framing the block.
		return nil, baseerr.New(baseerr.Generic, "lz4 compress: unexpected empty output for non-empty input")
	}
	body = body[:frameHeaderLen+n]

	binary.LittleEndian.PutUint32(body[1:5], uint32(frameHeaderLen+n))
	binary.LittleEndian.PutUint32(body[5:9], uint32(len(payload)))

	hash := CityHash128Bytes(body)
	out := make([]byte, 16+len(body))
	copy(out, hash[:])
	copy(out[16:], body)
	return out, nil
}

// DecompressFrame reverses CompressFrame, verifying the embedded hash before
// decompressing and rejecting any algo byte other than AlgoLZ4.
func DecompressFrame(frame []byte) ([]byte, error) {
	if len(frame) < 16+frameHeaderLen {
		return nil, baseerr.New(baseerr.IncompleteWireFormat, "compressed frame shorter than header")
	}
	var wantHash [16]byte
	copy(wantHash[:], frame[:16])
	body := frame[16:]

	gotHash := CityHash128Bytes(body)
	if gotHash != wantHash {
		return nil, baseerr.New(baseerr.BadCompressedHash, "compressed frame hash mismatch")
	}

	algo := body[0]
	if algo != AlgoLZ4 {
		return nil, baseerr.New(baseerr.UnsupportedBlockCompression, "unsupported frame algo byte 0x%02x", algo)
	}
	compressedSize := binary.LittleEndian.Uint32(body[1:5])
	uncompressedSize := binary.LittleEndian.Uint32(body[5:9])
	if int(compressedSize) > len(body) {
		return nil, baseerr.New(baseerr.IncompleteWireFormat, "compressed frame truncated")
	}

	lz4Payload := body[frameHeaderLen:compressedSize]
	dst := make([]byte, uncompressedSize)
	n, err := lz4.UncompressBlock(lz4Payload, dst)
	if err != nil {
		return nil, baseerr.Wrap(baseerr.Generic, err, "lz4 decompress")
	}
	return dst[:n], nil
}
