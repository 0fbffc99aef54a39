// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package cachedscene tracks which device bindings of a scene are stale.
//
// A [Scene] wraps a scenegraph.Scene and keeps dirty flags per
// renderable, data instance and texture sampler, plus aggregate flags for
// render targets and blit passes. Mutations set flags; once per frame the
// renderer calls [Scene.UpdateRenderableResources], which resolves dirty
// renderables through a [ResourceAccessor] and caches the device handles
// the draw pass uses.
//
// A renderable whose effect, textures or geometry are not available yet
// stays dirty and is skipped when drawing. This is the normal state while
// resources stream in and is never reported as an error.
//
// Dirtiness moves from samplers to data instances to renderables in a
// separate pass, [Scene.UpdateRenderablesResourcesDirtiness], that runs
// lazily before resolution and can be called on its own.
package cachedscene
