// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package cache provides the renderer's caches.
//
// [ShardedCache] is a generic LRU cache split into independently locked
// shards. [ShaderCache] builds on it to keep precompiled effect binaries
// across runs; it implements upload.BinaryShaderCache and persists with
// WriteTo and ReadFrom.
//
// Example:
//
//	c, err := cache.LoadShaderCache("shaders.bin", 0)
//	if err != nil {
//		return err
//	}
//	up := upload.NewUploader(true, c)
//	...
//	if c.Dirty() {
//		err = c.Save("shaders.bin")
//	}
package cache
