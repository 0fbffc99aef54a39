// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package display runs the render loop of one display.
//
// A [Bundle] owns the scenes shown on a display, the device objects they
// use and the queues connecting it to the dispatcher. Each call to
// [Bundle.DoOneLoop] executes the queued commands, moves scenes toward
// their requested state, uploads resources, resolves device handles,
// polls the window and, when rendering, draws and presents a frame.
// Events produced by the loop are collected with
// [Bundle.TakeRendererEvents] and [Bundle.TakeSceneControlEvents].
//
// A scene goes through these states on a display:
//
//	Published -> SubscriptionRequested -> Subscribed -> MappingRequested
//	          -> Mapped -> RenderRequested -> Rendered
//
// Clients see them as Available, Ready and Rendered. Lowering the
// requested state walks the chain back down, unmapping and unsubscribing
// as needed.
//
// A [Thread] runs a bundle on its own goroutine. Bundles can also be
// looped in lockstep by the caller.
package display
