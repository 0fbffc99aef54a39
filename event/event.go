// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package event defines the events the renderer reports to its client.
//
// [Event] is a closed sum type like command.Command. Events come in two
// streams: renderer events about displays, windows and buffers, and
// scene control events about scene states, links and references. A
// [Collector] gathers both on a display goroutine.
package event

import (
	"fmt"
	"time"

	"github.com/gogpu/scenery/command"
	"github.com/gogpu/scenery/scenegraph"
)

// Event is a renderer event.
type Event interface {
	isEvent()
}

// Scene control events.

// SceneStateChanged reports a new client-visible scene state.
type SceneStateChanged struct {
	Scene scenegraph.SceneID
	State scenegraph.SceneState
}

// SceneFlushed reports that a flush was applied.
type SceneFlushed struct {
	Scene   scenegraph.SceneID
	Version uint64
}

// SceneExpired reports that a rendered scene shows content past its
// expiration time.
type SceneExpired struct {
	Scene scenegraph.SceneID
}

// SceneRecoveredFromExpiration reports that an expired scene is current
// again or stopped being rendered.
type SceneRecoveredFromExpiration struct {
	Scene scenegraph.SceneID
}

// DataLinked reports the outcome of a LinkData command.
type DataLinked struct {
	ProviderScene scenegraph.SceneID
	Provider      scenegraph.DataSlotID
	ConsumerScene scenegraph.SceneID
	Consumer      scenegraph.DataSlotID
	Failed        bool
}

// DataUnlinked reports the outcome of an UnlinkData command.
type DataUnlinked struct {
	ConsumerScene scenegraph.SceneID
	Consumer      scenegraph.DataSlotID
	Failed        bool
}

// SceneReferenceStateChanged reports the state of a scene referenced by a
// master scene. It is sent to the master's client.
type SceneReferenceStateChanged struct {
	Master     scenegraph.SceneID
	Referenced scenegraph.SceneID
	State      scenegraph.SceneState
}

// SceneReferenceFlushed reports that a referenced scene applied a flush.
type SceneReferenceFlushed struct {
	Master     scenegraph.SceneID
	Referenced scenegraph.SceneID
	Version    uint64
}

// Renderer events.

// DisplayCreated reports the outcome of CreateDisplay.
type DisplayCreated struct {
	Display command.DisplayID
	Failed  bool
}

// DisplayDestroyed reports the outcome of DestroyDisplay.
type DisplayDestroyed struct {
	Display command.DisplayID
	Failed  bool
}

type OffscreenBufferCreated struct {
	Display command.DisplayID
	Buffer  scenegraph.OffscreenBufferHandle
	Failed  bool
}

type OffscreenBufferDestroyed struct {
	Display command.DisplayID
	Buffer  scenegraph.OffscreenBufferHandle
	Failed  bool
}

type StreamBufferCreated struct {
	Display command.DisplayID
	Buffer  scenegraph.StreamBufferHandle
	Failed  bool
}

type StreamBufferDestroyed struct {
	Display command.DisplayID
	Buffer  scenegraph.StreamBufferHandle
	Failed  bool
}

type ExternalBufferCreated struct {
	Display command.DisplayID
	Buffer  scenegraph.ExternalBufferHandle
	Failed  bool
}

type ExternalBufferDestroyed struct {
	Display command.DisplayID
	Buffer  scenegraph.ExternalBufferHandle
	Failed  bool
}

// ReadPixels carries a screenshot. Pixels are RGBA, bottom row first.
type ReadPixels struct {
	Display       command.DisplayID
	Buffer        scenegraph.OffscreenBufferHandle
	Width, Height uint32
	Pixels        []byte
	Failed        bool
}

// KeyEventType is the kind of a key event.
type KeyEventType uint8

const (
	KeyPressed KeyEventType = iota
	KeyReleased
)

// KeyModifier is a bit set of held modifier keys.
type KeyModifier uint8

const (
	ModifierShift KeyModifier = 1 << iota
	ModifierCtrl
	ModifierAlt
	ModifierSuper
)

type Key struct {
	Display   command.DisplayID
	Type      KeyEventType
	Modifiers KeyModifier
	Code      uint32
}

// MouseEventType is the kind of a mouse event.
type MouseEventType uint8

const (
	MouseMove MouseEventType = iota
	MouseLeftDown
	MouseLeftUp
	MouseRightDown
	MouseRightUp
	MouseWheelUp
	MouseWheelDown
	MouseEnter
	MouseLeave
)

type Mouse struct {
	Display command.DisplayID
	Type    MouseEventType
	X, Y    int32
}

type WindowClosed struct {
	Display command.DisplayID
}

type WindowResized struct {
	Display       command.DisplayID
	Width, Height uint32
}

type WindowMoved struct {
	Display command.DisplayID
	X, Y    int32
}

// FrameTimingReport summarizes the loop times of a display over one
// reporting period.
type FrameTimingReport struct {
	Display      command.DisplayID
	FirstDisplay bool
	MaxLoop      time.Duration
	AverageLoop  time.Duration
}

// StreamAvailabilityChanged reports that an embedded compositing source
// appeared or went away.
type StreamAvailabilityChanged struct {
	Source    uint32
	Available bool
}

// CommandFailed reports a command that could not be executed and has no
// specific failure event.
type CommandFailed struct {
	Display command.DisplayID
	Command string
}

func (SceneStateChanged) isEvent()            {}
func (SceneFlushed) isEvent()                 {}
func (SceneExpired) isEvent()                 {}
func (SceneRecoveredFromExpiration) isEvent() {}
func (DataLinked) isEvent()                   {}
func (DataUnlinked) isEvent()                 {}
func (SceneReferenceStateChanged) isEvent()   {}
func (SceneReferenceFlushed) isEvent()        {}
func (DisplayCreated) isEvent()               {}
func (DisplayDestroyed) isEvent()             {}
func (OffscreenBufferCreated) isEvent()       {}
func (OffscreenBufferDestroyed) isEvent()     {}
func (StreamBufferCreated) isEvent()          {}
func (StreamBufferDestroyed) isEvent()        {}
func (ExternalBufferCreated) isEvent()        {}
func (ExternalBufferDestroyed) isEvent()      {}
func (ReadPixels) isEvent()                   {}
func (Key) isEvent()                          {}
func (Mouse) isEvent()                        {}
func (WindowClosed) isEvent()                 {}
func (WindowResized) isEvent()                {}
func (WindowMoved) isEvent()                  {}
func (FrameTimingReport) isEvent()            {}
func (StreamAvailabilityChanged) isEvent()    {}
func (CommandFailed) isEvent()                {}

// IsSceneControl reports whether e belongs to the scene control stream.
func IsSceneControl(e Event) bool {
	switch e.(type) {
	case SceneStateChanged, SceneFlushed, SceneExpired, SceneRecoveredFromExpiration,
		DataLinked, DataUnlinked, SceneReferenceStateChanged, SceneReferenceFlushed:
		return true
	}
	return false
}

// FailureFor returns the event reporting that c could not be routed to
// display d. ok is false for commands whose failure is only logged.
func FailureFor(c command.Command, d command.DisplayID) (e Event, ok bool) {
	switch c := c.(type) {
	case command.ReceiveScene, command.UpdateScene:
		return nil, false
	case command.DestroyDisplay:
		return DisplayDestroyed{Display: c.Display, Failed: true}, true
	case command.CreateOffscreenBuffer:
		return OffscreenBufferCreated{Display: c.Display, Buffer: c.Buffer, Failed: true}, true
	case command.DestroyOffscreenBuffer:
		return OffscreenBufferDestroyed{Display: c.Display, Buffer: c.Buffer, Failed: true}, true
	case command.CreateStreamBuffer:
		return StreamBufferCreated{Display: c.Display, Buffer: c.Buffer, Failed: true}, true
	case command.DestroyStreamBuffer:
		return StreamBufferDestroyed{Display: c.Display, Buffer: c.Buffer, Failed: true}, true
	case command.CreateExternalBuffer:
		return ExternalBufferCreated{Display: c.Display, Buffer: c.Buffer, Failed: true}, true
	case command.DestroyExternalBuffer:
		return ExternalBufferDestroyed{Display: c.Display, Buffer: c.Buffer, Failed: true}, true
	case command.ReadPixels:
		return ReadPixels{Display: c.Display, Buffer: c.Buffer, Failed: true}, true
	case command.LinkData:
		return DataLinked{ProviderScene: c.ProviderScene, Provider: c.Provider,
			ConsumerScene: c.ConsumerScene, Consumer: c.Consumer, Failed: true}, true
	case command.UnlinkData:
		return DataUnlinked{ConsumerScene: c.ConsumerScene, Consumer: c.Consumer, Failed: true}, true
	}
	return CommandFailed{Display: d, Command: command.String(c)}, true
}

// String formats an event for logs.
func String(e Event) string {
	switch e := e.(type) {
	case SceneStateChanged:
		return fmt.Sprintf("SceneStateChanged(scene=%d, state=%s)", e.Scene, e.State)
	case SceneFlushed:
		return fmt.Sprintf("SceneFlushed(scene=%d, version=%d)", e.Scene, e.Version)
	case ReadPixels:
		return fmt.Sprintf("ReadPixels(display=%d, %dx%d, failed=%t)", e.Display, e.Width, e.Height, e.Failed)
	case CommandFailed:
		return fmt.Sprintf("CommandFailed(display=%d, %s)", e.Display, e.Command)
	}
	return fmt.Sprintf("%T%+v", e, e)
}
