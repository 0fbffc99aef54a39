// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

import (
	"encoding/binary"
	"fmt"
	"hash"
	"hash/fnv"
)

// Hash is a 128-bit resource content hash. The zero value is invalid.
type Hash struct {
	Low  uint64
	High uint64
}

// InvalidHash is the zero hash.
var InvalidHash = Hash{}

// IsValid reports whether h is not the zero hash.
func (h Hash) IsValid() bool {
	return h != InvalidHash
}

// Less orders hashes by High then Low.
func (h Hash) Less(other Hash) bool {
	if h.High != other.High {
		return h.High < other.High
	}
	return h.Low < other.Low
}

// String formats the hash as 32 hex digits, high half first.
func (h Hash) String() string {
	return fmt.Sprintf("%016x%016x", h.High, h.Low)
}

// hashBuilder accumulates resource content into an FNV-128a digest.
type hashBuilder struct {
	buf [8]byte
	sum hash.Hash
}

func newHashBuilder() *hashBuilder {
	return &hashBuilder{sum: fnv.New128a()}
}

func (b *hashBuilder) u32(v uint32) {
	binary.LittleEndian.PutUint32(b.buf[:4], v)
	_, _ = b.sum.Write(b.buf[:4])
}

func (b *hashBuilder) bytes(p []byte) {
	b.u32(uint32(len(p)))
	_, _ = b.sum.Write(p)
}

func (b *hashBuilder) hash() Hash {
	s := b.sum.Sum(nil)
	h := Hash{
		High: binary.BigEndian.Uint64(s[:8]),
		Low:  binary.BigEndian.Uint64(s[8:16]),
	}
	// A digest of all zeros would collide with InvalidHash.
	if !h.IsValid() {
		h.Low = 1
	}
	return h
}
