// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package command

import (
	"fmt"
	"time"

	"github.com/gogpu/scenery/device"
	"github.com/gogpu/scenery/scenegraph"
)

// DisplayID identifies a display. The zero value is never assigned.
type DisplayID uint32

// InvalidDisplay is the zero DisplayID.
const InvalidDisplay DisplayID = 0

// IsValid reports whether d is not InvalidDisplay.
func (d DisplayID) IsValid() bool { return d != InvalidDisplay }

func (d DisplayID) String() string { return fmt.Sprintf("display#%d", uint32(d)) }

// Command is a renderer command. The set of commands is closed: every
// implementation lives in this package and is handled by a type switch.
type Command interface {
	isCommand()
}

// DisplayConfig configures a display when it is created.
type DisplayConfig struct {
	Width, Height uint32
	X, Y          int32
	Title         string
	ClearColor    [4]float32

	// AsyncEffectCompile defers effect compilation to a worker pool.
	AsyncEffectCompile bool
	// AsyncEffectWorkers is the worker count of that pool, 0 for
	// GOMAXPROCS.
	AsyncEffectWorkers int
	// SystemCompositorController enables polling of the system
	// compositor controller of the platform.
	SystemCompositorController bool
}

// DefaultDisplayConfig returns a 1280x480 display cleared to black.
func DefaultDisplayConfig() DisplayConfig {
	return DisplayConfig{
		Width:      1280,
		Height:     480,
		Title:      "scenery",
		ClearColor: [4]float32{0, 0, 0, 1},
	}
}

// Scene commands. These are routed to the display that owns the scene.

// PublishScene announces that a client offers a scene. It is broadcast.
type PublishScene struct {
	Scene scenegraph.SceneID
}

// UnpublishScene withdraws a published scene. It is broadcast.
type UnpublishScene struct {
	Scene scenegraph.SceneID
}

// ReceiveScene delivers the initial content of a subscribed scene.
type ReceiveScene struct {
	Scene scenegraph.SceneID
}

// UpdateScene delivers a flush.
type UpdateScene struct {
	Scene  scenegraph.SceneID
	Update scenegraph.SceneUpdate
}

// SetSceneMapping assigns a scene to a display.
type SetSceneMapping struct {
	Scene   scenegraph.SceneID
	Display DisplayID
}

// SetSceneState requests a target state for a scene.
type SetSceneState struct {
	Scene scenegraph.SceneID
	State scenegraph.SceneState
}

// SetSceneDisplayBufferAssignment renders a scene into an offscreen
// buffer instead of the framebuffer. An invalid buffer selects the
// framebuffer.
type SetSceneDisplayBufferAssignment struct {
	Scene       scenegraph.SceneID
	Buffer      scenegraph.OffscreenBufferHandle
	RenderOrder int32
}

// LinkData links a data provider of one scene to a consumer of another.
// It is routed by the consumer scene.
type LinkData struct {
	ProviderScene scenegraph.SceneID
	Provider      scenegraph.DataSlotID
	ConsumerScene scenegraph.SceneID
	Consumer      scenegraph.DataSlotID
}

// UnlinkData removes the link of a consumer.
type UnlinkData struct {
	ConsumerScene scenegraph.SceneID
	Consumer      scenegraph.DataSlotID
}

// Display commands. These name their display.

// CreateDisplay creates a display with its own pipeline.
type CreateDisplay struct {
	Display DisplayID
	Config  DisplayConfig
}

// DestroyDisplay destroys a display. Scenes on it must be unmapped first.
type DestroyDisplay struct {
	Display DisplayID
}

// CreateOffscreenBuffer creates a color and depth buffer pair scenes can
// render into and other scenes can sample.
type CreateOffscreenBuffer struct {
	Display       DisplayID
	Buffer        scenegraph.OffscreenBufferHandle
	Width, Height uint32
	SampleCount   uint32
}

type DestroyOffscreenBuffer struct {
	Display DisplayID
	Buffer  scenegraph.OffscreenBufferHandle
}

// CreateStreamBuffer binds an embedded compositing source to a buffer.
type CreateStreamBuffer struct {
	Display DisplayID
	Buffer  scenegraph.StreamBufferHandle
	Source  uint32
}

type DestroyStreamBuffer struct {
	Display DisplayID
	Buffer  scenegraph.StreamBufferHandle
}

// CreateExternalBuffer creates a texture filled by the application
// outside of the renderer.
type CreateExternalBuffer struct {
	Display DisplayID
	Buffer  scenegraph.ExternalBufferHandle
}

type DestroyExternalBuffer struct {
	Display DisplayID
	Buffer  scenegraph.ExternalBufferHandle
}

// SetClearColor sets the clear color of the framebuffer, or of an
// offscreen buffer when Buffer is valid.
type SetClearColor struct {
	Display DisplayID
	Buffer  scenegraph.OffscreenBufferHandle
	Color   [4]float32
}

// ReadPixels takes a screenshot after the next rendered frame. With a
// non-empty Filename the pixels are saved as PNG and no event carries
// them unless SendEvent is set.
type ReadPixels struct {
	Display    DisplayID
	Buffer     scenegraph.OffscreenBufferHandle
	Rect       device.Rect
	FullScreen bool
	Filename   string
	SendEvent  bool
}

// Broadcast commands. Every display receives a copy and displays created
// later receive the latest one.

// SetLimits bounds the work a display does per loop.
type SetLimits struct {
	// FlushesPerFrame is the number of pending flushes applied per scene
	// per loop. 0 applies all.
	FlushesPerFrame int
	// ForceApplyAfter applies every pending flush of a scene once it has
	// waited this many loops. 0 disables forcing.
	ForceApplyAfter int
}

// SystemCompositorControl changes a surface of the system compositor.
type SystemCompositorControl struct {
	Surface uint32
	Visible bool
	Opacity float32
}

// LogInfo makes every display log its state.
type LogInfo struct {
	Topic   string
	Verbose bool
}

// SetFrameTimingReportPeriod changes how often displays report loop
// timing. 0 disables reporting.
type SetFrameTimingReportPeriod struct {
	Period time.Duration
}

func (PublishScene) isCommand()                    {}
func (UnpublishScene) isCommand()                  {}
func (ReceiveScene) isCommand()                    {}
func (UpdateScene) isCommand()                     {}
func (SetSceneMapping) isCommand()                 {}
func (SetSceneState) isCommand()                   {}
func (SetSceneDisplayBufferAssignment) isCommand() {}
func (LinkData) isCommand()                        {}
func (UnlinkData) isCommand()                      {}
func (CreateDisplay) isCommand()                   {}
func (DestroyDisplay) isCommand()                  {}
func (CreateOffscreenBuffer) isCommand()           {}
func (DestroyOffscreenBuffer) isCommand()          {}
func (CreateStreamBuffer) isCommand()              {}
func (DestroyStreamBuffer) isCommand()             {}
func (CreateExternalBuffer) isCommand()            {}
func (DestroyExternalBuffer) isCommand()           {}
func (SetClearColor) isCommand()                   {}
func (ReadPixels) isCommand()                      {}
func (SetLimits) isCommand()                       {}
func (SystemCompositorControl) isCommand()         {}
func (LogInfo) isCommand()                         {}
func (SetFrameTimingReportPeriod) isCommand()      {}

// String formats a command for logs. Flush contents are summarized.
func String(c Command) string {
	switch c := c.(type) {
	case PublishScene:
		return fmt.Sprintf("PublishScene(scene=%d)", c.Scene)
	case UnpublishScene:
		return fmt.Sprintf("UnpublishScene(scene=%d)", c.Scene)
	case ReceiveScene:
		return fmt.Sprintf("ReceiveScene(scene=%d)", c.Scene)
	case UpdateScene:
		return fmt.Sprintf("UpdateScene(scene=%d, version=%d, actions=%d, resources=%d)",
			c.Scene, c.Update.Flush.Version, len(c.Update.Actions), len(c.Update.Resources))
	case SetSceneMapping:
		return fmt.Sprintf("SetSceneMapping(scene=%d, display=%d)", c.Scene, c.Display)
	case SetSceneState:
		return fmt.Sprintf("SetSceneState(scene=%d, state=%s)", c.Scene, c.State)
	case SetSceneDisplayBufferAssignment:
		return fmt.Sprintf("SetSceneDisplayBufferAssignment(scene=%d, buffer=%d, order=%d)", c.Scene, c.Buffer, c.RenderOrder)
	case LinkData:
		return fmt.Sprintf("LinkData(provider=%d:%d, consumer=%d:%d)", c.ProviderScene, c.Provider, c.ConsumerScene, c.Consumer)
	case UnlinkData:
		return fmt.Sprintf("UnlinkData(consumer=%d:%d)", c.ConsumerScene, c.Consumer)
	case CreateDisplay:
		return fmt.Sprintf("CreateDisplay(display=%d, %dx%d)", c.Display, c.Config.Width, c.Config.Height)
	case DestroyDisplay:
		return fmt.Sprintf("DestroyDisplay(display=%d)", c.Display)
	case CreateOffscreenBuffer:
		return fmt.Sprintf("CreateOffscreenBuffer(display=%d, buffer=%d, %dx%d)", c.Display, c.Buffer, c.Width, c.Height)
	case DestroyOffscreenBuffer:
		return fmt.Sprintf("DestroyOffscreenBuffer(display=%d, buffer=%d)", c.Display, c.Buffer)
	case CreateStreamBuffer:
		return fmt.Sprintf("CreateStreamBuffer(display=%d, buffer=%d, source=%d)", c.Display, c.Buffer, c.Source)
	case DestroyStreamBuffer:
		return fmt.Sprintf("DestroyStreamBuffer(display=%d, buffer=%d)", c.Display, c.Buffer)
	case CreateExternalBuffer:
		return fmt.Sprintf("CreateExternalBuffer(display=%d, buffer=%d)", c.Display, c.Buffer)
	case DestroyExternalBuffer:
		return fmt.Sprintf("DestroyExternalBuffer(display=%d, buffer=%d)", c.Display, c.Buffer)
	case SetClearColor:
		return fmt.Sprintf("SetClearColor(display=%d, buffer=%d, color=%v)", c.Display, c.Buffer, c.Color)
	case ReadPixels:
		return fmt.Sprintf("ReadPixels(display=%d, buffer=%d, file=%q)", c.Display, c.Buffer, c.Filename)
	case SetLimits:
		return fmt.Sprintf("SetLimits(flushesPerFrame=%d, forceApplyAfter=%d)", c.FlushesPerFrame, c.ForceApplyAfter)
	case SystemCompositorControl:
		return fmt.Sprintf("SystemCompositorControl(surface=%d, visible=%t, opacity=%g)", c.Surface, c.Visible, c.Opacity)
	case LogInfo:
		return fmt.Sprintf("LogInfo(topic=%q)", c.Topic)
	case SetFrameTimingReportPeriod:
		return fmt.Sprintf("SetFrameTimingReportPeriod(%s)", c.Period)
	}
	return fmt.Sprintf("%T", c)
}
