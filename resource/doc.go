// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package resource implements the content-addressed resource store.
//
// A [Resource] is an immutable blob (vertex array, index array, texture or
// effect) identified by its 128-bit content [Hash]. The [Store] keeps one
// copy per hash and hands out reference-counted [Managed] handles. Resources
// can also be paged in lazily from resource files: [WriteFile] produces a
// file with a table of contents and one lz4-compressed entry per resource,
// and [OpenFile] maps such a file for random access.
//
// Identical hashes are assumed to mean identical bytes. The store never
// re-validates content.
package resource
