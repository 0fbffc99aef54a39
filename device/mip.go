// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import "math/bits"

// MipSize returns the size of a dimension at the given mip level.
func MipSize(level, base uint32) uint32 {
	s := base >> level
	if s == 0 {
		return 1
	}
	return s
}

// MipLevelCount returns the length of the full mip chain for the given
// dimensions.
func MipLevelCount(width, height, depth uint32) uint32 {
	m := max(width, height, depth, 1)
	return uint32(bits.Len32(m))
}

// MipChainSize returns the bytes used by levels mip levels of an
// uncompressed texture.
func MipChainSize(texelSize, width, height, depth, levels uint32) uint32 {
	var total uint32
	for l := uint32(0); l < levels; l++ {
		total += texelSize * MipSize(l, width) * MipSize(l, height) * MipSize(l, depth)
	}
	return total
}
