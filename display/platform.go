// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package display

import (
	"sync"

	"github.com/gogpu/scenery/cachedscene"
	"github.com/gogpu/scenery/command"
	"github.com/gogpu/scenery/device"
	"github.com/gogpu/scenery/event"
	"github.com/gogpu/scenery/internal/logging"
	"github.com/gogpu/scenery/scenegraph"
)

// Platform is the window system side of a display: its device, window
// events and compositors.
type Platform interface {
	Device() device.Device
	// PollEvents delivers pending window events to h.
	PollEvents(h WindowEventHandler)
	// Present shows the frame drawn since the last call.
	Present() error
	// EmbeddedCompositing returns the compositor of embedded clients.
	EmbeddedCompositing() cachedscene.EmbeddedCompositingManager
	// SystemCompositor returns the system compositor controller, or nil
	// when the platform has none.
	SystemCompositor() SystemCompositorController
	Close() error
}

// PlatformFactory creates the platform of a new display.
type PlatformFactory func(id command.DisplayID, cfg Config) (Platform, error)

// WindowEventHandler receives window events.
type WindowEventHandler interface {
	OnKey(t event.KeyEventType, modifiers event.KeyModifier, code uint32)
	OnMouse(t event.MouseEventType, x, y int32)
	OnClose()
	OnResize(width, height uint32)
	OnMove(x, y int32)
}

// SystemCompositorController controls surfaces of a system compositor.
type SystemCompositorController interface {
	// Update processes pending compositor messages.
	Update()
	SetSurfaceVisibility(surface uint32, visible bool) error
	SetSurfaceOpacity(surface uint32, opacity float32) error
}

// SceneEventSender forwards requests of a display to scene providers.
type SceneEventSender interface {
	SubscribeScene(display command.DisplayID, scene scenegraph.SceneID)
	UnsubscribeScene(display command.DisplayID, scene scenegraph.SceneID)
}

// LoggingSender is a SceneEventSender for renderers whose scenes are
// delivered without subscription. It only logs.
type LoggingSender struct{}

func (LoggingSender) SubscribeScene(d command.DisplayID, s scenegraph.SceneID) {
	logging.Logger().Info("display: scene subscription requested", "display", d, "scene", s)
}

func (LoggingSender) UnsubscribeScene(d command.DisplayID, s scenegraph.SceneID) {
	logging.Logger().Info("display: scene unsubscription requested", "display", d, "scene", s)
}

// windowEvents turns window callbacks into renderer events.
type windowEvents struct {
	display command.DisplayID
	events  *event.Collector
}

func (w windowEvents) OnKey(t event.KeyEventType, modifiers event.KeyModifier, code uint32) {
	logging.Logger().Debug("display: key event", "display", w.display, "type", t, "modifiers", modifiers, "key", code)
	w.events.Add(event.Key{Display: w.display, Type: t, Modifiers: modifiers, Code: code})
}

func (w windowEvents) OnMouse(t event.MouseEventType, x, y int32) {
	logging.Logger().Debug("display: mouse event", "display", w.display, "type", t, "x", x, "y", y)
	w.events.Add(event.Mouse{Display: w.display, Type: t, X: x, Y: y})
}

func (w windowEvents) OnClose() {
	logging.Logger().Debug("display: window closed", "display", w.display)
	w.events.Add(event.WindowClosed{Display: w.display})
}

func (w windowEvents) OnResize(width, height uint32) {
	w.events.Add(event.WindowResized{Display: w.display, Width: width, Height: height})
}

func (w windowEvents) OnMove(x, y int32) {
	w.events.Add(event.WindowMoved{Display: w.display, X: x, Y: y})
}

// Headless is a Platform without a window. Window events are queued with
// Inject and delivered on the next poll. Stream sources are set with
// SetStreamSource.
type Headless struct {
	dev device.Device
	sc  SystemCompositorController

	mu       sync.Mutex
	pending  []func(WindowEventHandler)
	sources  map[uint32]device.Handle
	presents int
	closed   bool
}

// NewHeadless creates a headless platform drawing with dev. sc may be
// nil.
func NewHeadless(dev device.Device, sc SystemCompositorController) *Headless {
	return &Headless{dev: dev, sc: sc, sources: make(map[uint32]device.Handle)}
}

// HeadlessFactory returns a PlatformFactory creating a headless platform
// per display with a device from newDevice.
func HeadlessFactory(newDevice func() device.Device) PlatformFactory {
	return func(command.DisplayID, Config) (Platform, error) {
		return NewHeadless(newDevice(), nil), nil
	}
}

func (p *Headless) Device() device.Device { return p.dev }

// Inject queues a window event.
func (p *Headless) Inject(fn func(WindowEventHandler)) {
	p.mu.Lock()
	p.pending = append(p.pending, fn)
	p.mu.Unlock()
}

func (p *Headless) PollEvents(h WindowEventHandler) {
	p.mu.Lock()
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()
	for _, fn := range pending {
		fn(h)
	}
}

func (p *Headless) Present() error {
	p.mu.Lock()
	p.presents++
	p.mu.Unlock()
	return nil
}

// Presents returns the number of presented frames.
func (p *Headless) Presents() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.presents
}

// SetStreamSource makes source composite into texture h. An invalid h
// removes the source.
func (p *Headless) SetStreamSource(source uint32, h device.Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !h.IsValid() {
		delete(p.sources, source)
		return
	}
	p.sources[source] = h
}

func (p *Headless) CompositedTextureDeviceHandle(source uint32) device.Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sources[source]
}

func (p *Headless) EmbeddedCompositing() cachedscene.EmbeddedCompositingManager { return p }

func (p *Headless) SystemCompositor() SystemCompositorController { return p.sc }

func (p *Headless) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (p *Headless) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
