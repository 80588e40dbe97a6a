// Copyright 2024 The BaseDB Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package wire

import "encoding/binary"

// CityHash128 computes the 128-bit CityHash of data, returned as (low, high)
// 64-bit halves in the same order the reference algorithm emits them. This
// is a direct, from-scratch port of the public-domain CityHash v1.0.3
// 128-bit variant (Pike & Alakuijala) — see DESIGN.md for why this is the
// one piece of this repository built on a hand-rolled algorithm instead of
// an imported library: nothing in the retrieved corpus ships a CityHash128
// implementation, and the compressed-frame format requires the exact hash,
// not merely a checksum with similar properties.
func CityHash128(data []byte) (lo, hi uint64) {
	if len(data) >= 16 {
		return cityHash128WithSeed(data[16:], binary.LittleEndian.Uint64(data[:8])+k0, binary.LittleEndian.Uint64(data[8:16]))
	}
	return cityHash128WithSeed(data, k0, k1)
}

// CityHash128Bytes returns the 16-byte little-endian encoding of
// CityHash128(data), the form the compressed-frame header embeds.
func CityHash128Bytes(data []byte) [16]byte {
	lo, hi := CityHash128(data)
	var out [16]byte
	binary.LittleEndian.PutUint64(out[0:8], lo)
	binary.LittleEndian.PutUint64(out[8:16], hi)
	return out
}

const (
	k0 = 0xc3a5c85c97cb3127
	k1 = 0xb492b66fbe98f273
	k2 = 0x9ae16a3b2f90404f
	k3 = 0xc949d7c7509e6557
)

func rotate64(v uint64, shift uint) uint64 {
	if shift == 0 {
		return v
	}
	return (v >> shift) | (v << (64 - shift))
}

func shiftMix(v uint64) uint64 {
	return v ^ (v >> 47)
}

func fetch64(p []byte) uint64 { return binary.LittleEndian.Uint64(p) }
func fetch32(p []byte) uint32 { return binary.LittleEndian.Uint32(p) }

func hash128to64(lo, hi uint64) uint64 {
	const mul = 0x9ddfea08eb382d69
	a := (lo ^ hi) * mul
	a ^= a >> 47
	b := (hi ^ a) * mul
	b ^= b >> 47
	b *= mul
	return b
}

func hashLen16(u, v uint64) uint64 {
	return hash128to64(u, v)
}

func hashLen0to16(s []byte) uint64 {
	n := uint64(len(s))
	if n >= 8 {
		mul := k2 + n*2
		a := fetch64(s) + k2
		b := fetch64(s[len(s)-8:])
		c := rotate64(b, 37)*mul + a
		d := (rotate64(a, 25) + b) * mul
		return hashLen16(c, d) * mul
	}
	if n >= 4 {
		mul := k2 + n*2
		a := uint64(fetch32(s))
		return hashLen16(n+(a<<3), uint64(fetch32(s[len(s)-4:]))) * mul
	}
	if n > 0 {
		a := s[0]
		b := s[n>>1]
		c := s[n-1]
		y := uint32(a) + (uint32(b) << 8)
		z := uint32(n) + (uint32(c) << 2)
		return shiftMix(uint64(y)*k2^uint64(z)*k3) * k2
	}
	return k2
}

func weakHashLen32WithSeeds(w, x, y, z, a, b uint64) (uint64, uint64) {
	a += w
	b = rotate64(b+a+z, 21)
	c := a
	a += x
	a += y
	b += rotate64(a, 44)
	return a + z, b + c
}

func weakHashLen32WithSeedsBytes(s []byte, a, b uint64) (uint64, uint64) {
	return weakHashLen32WithSeeds(fetch64(s), fetch64(s[8:]), fetch64(s[16:]), fetch64(s[24:]), a, b)
}

// cityHash128WithSeed implements CityHash128WithSeed from the reference
// algorithm.
func cityHash128WithSeed(s []byte, seed0, seed1 uint64) (lo, hi uint64) {
	if len(s) < 128 {
		return cityMurmur(s, seed0, seed1)
	}

	v0, v1 := uint64(0), uint64(0)
	w0, w1 := uint64(0), uint64(0)
	x := seed0
	y := seed1
	z := uint64(len(s)) * k1

	v0 = rotate64(y^k1, 49)*k1 + fetch64(s)
	v1 = rotate64(v0, 42)*k1 + fetch64(s[8:])
	w0 = rotate64(y+z, 35)*k1 + x
	w1 = rotate64(x+fetch64(s[88:]), 53) * k1

	tail := s
	for len(tail) >= 128 {
		x = rotate64(x+y+v0+fetch64(tail[16:]), 37) * k1
		y = rotate64(y+v1+fetch64(tail[48:]), 42) * k1
		x ^= w1
		y += v0 + fetch64(tail[40:])
		z = rotate64(z+w0, 33) * k1
		v0, v1 = weakHashLen32WithSeedsBytes(tail, v1*k1, x+w0)
		w0, w1 = weakHashLen32WithSeedsBytes(tail[32:], z+w1, y+fetch64(tail[16:]))
		z, x = x, z

		x = rotate64(x+y+v0+fetch64(tail[16+64:]), 37) * k1
		y = rotate64(y+v1+fetch64(tail[48+64:]), 42) * k1
		x ^= w1
		y += v0 + fetch64(tail[40+64:])
		z = rotate64(z+w0, 33) * k1
		v0, v1 = weakHashLen32WithSeedsBytes(tail[64:], v1*k1, x+w0)
		w0, w1 = weakHashLen32WithSeedsBytes(tail[96:], z+w1, y+fetch64(tail[16+64:]))
		z, x = x, z

		tail = tail[128:]
	}

	x += rotate64(v0+z, 49) * k0
	y = y*k0 + rotate64(w1, 37)
	z = z*k0 + rotate64(w0, 27)
	w0 *= 9
	v0 *= k0

	remaining := len(s) % 128
	tail = s[len(s)-remaining:]
	for i := 0; i+32 <= len(tail); i += 32 {
		y = rotate64(x+y, 42)*k0 + v1
		w0 += fetch64(tail[i+16:])
		x = x*k0 + w0
		z += w1 + fetch64(tail[i:])
		w1 += v0
		v0, v1 = weakHashLen32WithSeedsBytes(tail[i:], v0+z, v1)
	}

	x = hashLen16(x, v0)
	y = hashLen16(y, w0)
	return hashLen16(x+v1, w1) + y, hashLen16(x+w1, y+v1)
}

func cityMurmur(s []byte, seed0, seed1 uint64) (lo, hi uint64) {
	a := seed0
	b := seed1
	c := uint64(0)
	d := uint64(0)
	l := len(s)
	if l <= 16 {
		a = shiftMix(a*k1) * k1
		c = b*k1 + hashLen0to16(s)
		if l >= 8 {
			d = shiftMix(a + fetch64(s))
		} else {
			d = shiftMix(a + c)
		}
	} else {
		c = hashLen16(fetch64(s[l-8:])+k1, a)
		d = hashLen16(b+uint64(l), c+fetch64(s[l-16:]))
		a += d
		rest := s[:l-16]
		for len(rest) >= 16 {
			a ^= shiftMix(fetch64(rest)*k1) * k1
			a *= k1
			b ^= a
			c ^= shiftMix(fetch64(rest[8:])*k1) * k1
			c *= k1
			d ^= c
			rest = rest[16:]
		}
	}
	a = hashLen16(a, c)
	b = hashLen16(d, b)
	return a ^ b, hashLen16(b, a)
}
