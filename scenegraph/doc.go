// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package scenegraph holds the renderer-side scene representation.
//
// Entities live in arenas ([Pool]) and refer to each other by small
// integer handles, never by pointer. Releasing a handle frees its slot
// without compacting, so handles held elsewhere stay comparable but must
// be checked with the matching Is*Allocated method before use.
//
// Clients change a scene by sending a [SceneUpdate]: an ordered list of
// [Action] values replayed through [ApplyActions], plus the resources and
// [FlushInfo] metadata that travel with them.
package scenegraph
