// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package command

import (
	"slices"
	"sync"

	"github.com/gogpu/scenery/scenegraph"
)

// Route says how a command finds its display.
type Route uint8

const (
	// RouteScene commands go to the display that owns their scene.
	RouteScene Route = iota
	// RouteDisplay commands name their display.
	RouteDisplay
	// RouteBroadcast commands go to every display.
	RouteBroadcast
)

// RouteOf returns the route of c with the scene or display it is
// addressed to. SetSceneMapping is routed by display and also reports its
// scene.
func RouteOf(c Command) (r Route, scene scenegraph.SceneID, display DisplayID) {
	switch c := c.(type) {
	case ReceiveScene:
		return RouteScene, c.Scene, InvalidDisplay
	case UpdateScene:
		return RouteScene, c.Scene, InvalidDisplay
	case SetSceneState:
		return RouteScene, c.Scene, InvalidDisplay
	case SetSceneDisplayBufferAssignment:
		return RouteScene, c.Scene, InvalidDisplay
	case LinkData:
		return RouteScene, c.ConsumerScene, InvalidDisplay
	case UnlinkData:
		return RouteScene, c.ConsumerScene, InvalidDisplay
	case SetSceneMapping:
		return RouteDisplay, c.Scene, c.Display
	case CreateDisplay:
		return RouteDisplay, 0, c.Display
	case DestroyDisplay:
		return RouteDisplay, 0, c.Display
	case CreateOffscreenBuffer:
		return RouteDisplay, 0, c.Display
	case DestroyOffscreenBuffer:
		return RouteDisplay, 0, c.Display
	case CreateStreamBuffer:
		return RouteDisplay, 0, c.Display
	case DestroyStreamBuffer:
		return RouteDisplay, 0, c.Display
	case CreateExternalBuffer:
		return RouteDisplay, 0, c.Display
	case DestroyExternalBuffer:
		return RouteDisplay, 0, c.Display
	case SetClearColor:
		return RouteDisplay, 0, c.Display
	case ReadPixels:
		return RouteDisplay, 0, c.Display
	case PublishScene, UnpublishScene, SetLimits, SystemCompositorControl, LogInfo, SetFrameTimingReportPeriod:
		return RouteBroadcast, 0, InvalidDisplay
	}
	panic("command: unknown command " + String(c))
}

// EarlyBindable reports whether c may wait for its display to be
// created instead of failing.
func EarlyBindable(c Command) bool {
	switch c.(type) {
	case SetSceneMapping, SetSceneState:
		return true
	}
	return false
}

// Buffer is a command queue shared between producers and one consumer.
// The lock is held for enqueue and swap only.
type Buffer struct {
	mu   sync.Mutex
	cmds []Command
}

// Enqueue appends commands in order.
func (b *Buffer) Enqueue(cmds ...Command) {
	b.mu.Lock()
	b.cmds = append(b.cmds, cmds...)
	b.mu.Unlock()
}

// Swap returns the queued commands and keeps buf, emptied, as the new
// queue storage.
func (b *Buffer) Swap(buf []Command) []Command {
	b.mu.Lock()
	out := b.cmds
	b.cmds = buf[:0]
	b.mu.Unlock()
	return out
}

// Len returns the number of queued commands.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.cmds)
}

// Stash keeps broadcast commands for displays created later. Only the
// latest command of a kind survives, so a new display replays the
// current state rather than the history.
type Stash struct {
	cmds []Command
}

type stashKey struct {
	kind uint8
	id   uint64
}

const (
	keyNone uint8 = iota
	keyPublication
	keyLimits
	keyCompositor
	keyTiming
)

func keyOf(c Command) stashKey {
	switch c := c.(type) {
	case PublishScene:
		return stashKey{keyPublication, uint64(c.Scene)}
	case UnpublishScene:
		return stashKey{keyPublication, uint64(c.Scene)}
	case SetLimits:
		return stashKey{kind: keyLimits}
	case SystemCompositorControl:
		return stashKey{keyCompositor, uint64(c.Surface)}
	case SetFrameTimingReportPeriod:
		return stashKey{kind: keyTiming}
	}
	return stashKey{}
}

// Add stashes c, replacing the previous command of the same kind. An
// UnpublishScene cancels the stashed PublishScene of its scene and is not
// kept. Commands that describe no lasting state, such as LogInfo, are
// not stashed.
func (s *Stash) Add(c Command) {
	key := keyOf(c)
	if key.kind == keyNone {
		return
	}
	s.cmds = slices.DeleteFunc(s.cmds, func(old Command) bool { return keyOf(old) == key })
	if _, unpublish := c.(UnpublishScene); unpublish {
		return
	}
	s.cmds = append(s.cmds, c)
}

// Commands returns a copy of the stash in the order commands were added.
func (s *Stash) Commands() []Command {
	return slices.Clone(s.cmds)
}

// Len returns the number of stashed commands.
func (s *Stash) Len() int { return len(s.cmds) }
