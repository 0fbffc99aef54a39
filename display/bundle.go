// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package display

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/scenery/command"
	"github.com/gogpu/scenery/device"
	"github.com/gogpu/scenery/event"
	"github.com/gogpu/scenery/internal/logging"
	"github.com/gogpu/scenery/scenegraph"
	"github.com/gogpu/scenery/upload"
)

// Bundle is everything one display needs to run its loop: its scenes,
// its device objects and its queues.
//
// PushCommands, the Take methods and MasterSceneOf may be called from any
// goroutine. DoOneLoop and Close must be called from one goroutine at a
// time, normally the display's Thread.
type Bundle struct {
	id   command.DisplayID
	opts Options

	commands command.Buffer
	spare    []command.Command
	events   event.Collector

	outMu       sync.Mutex
	rendererOut []event.Event
	sceneOut    []event.Event

	refs *referenceLogic

	// Owned by the loop goroutine.
	cfg         Config
	platform    Platform
	dev         device.Device
	compiler    *upload.AsyncEffectCompiler
	rm          *resourceManager
	clearColor  [4]float32
	scenes      map[scenegraph.SceneID]*sceneEntry
	links       map[dataSlot]dataSlot
	limits      limits
	screenshots []command.ReadPixels
	streams     map[uint32]bool
	timing      frameTiming
	kpi         *kpiMonitor
}

// NewBundle creates the bundle of display id. The display itself is
// created by the CreateDisplay command.
func NewBundle(id command.DisplayID, opts Options) *Bundle {
	opts.setDefaults()
	return &Bundle{
		id:      id,
		opts:    opts,
		refs:    newReferenceLogic(),
		scenes:  make(map[scenegraph.SceneID]*sceneEntry),
		links:   make(map[dataSlot]dataSlot),
		limits:  defaultLimits,
		streams: make(map[uint32]bool),
		timing:  frameTiming{period: opts.FrameTimingReportPeriod},
	}
}

// ID returns the display ID.
func (b *Bundle) ID() command.DisplayID { return b.id }

// PushCommands queues commands for the next loop.
func (b *Bundle) PushCommands(cmds ...command.Command) {
	b.commands.Enqueue(cmds...)
}

// TakeRendererEvents returns the renderer events produced since the last
// call.
func (b *Bundle) TakeRendererEvents() []event.Event {
	b.outMu.Lock()
	defer b.outMu.Unlock()
	out := b.rendererOut
	b.rendererOut = nil
	return out
}

// TakeSceneControlEvents returns the scene control events produced since
// the last call.
func (b *Bundle) TakeSceneControlEvents() []event.Event {
	b.outMu.Lock()
	defer b.outMu.Unlock()
	out := b.sceneOut
	b.sceneOut = nil
	return out
}

// DoOneLoop runs one iteration of the display loop. sleep is the time the
// caller slept since the previous loop; it is only used for statistics.
func (b *Bundle) DoOneLoop(mode LoopMode, sleep time.Duration) {
	start := b.opts.Now()

	b.executeCommands()
	if b.platform != nil {
		b.updateSceneControl()
		b.updateScenes()
		b.pollPlatform()
		b.checkExpiration(b.opts.Now())
		if mode == UpdateAndRender {
			b.render()
			b.processScreenshots()
		}
	}
	b.publishEvents()
	b.updateStatistics(start, sleep)
}

func (b *Bundle) executeCommands() {
	cmds := b.commands.Swap(b.spare)
	for _, c := range cmds {
		b.execute(c)
	}
	clear(cmds)
	b.spare = cmds[:0]
}

func (b *Bundle) publishEvents() {
	renderer, scene := b.events.Take()
	scene = b.referenceEvents(scene)
	if len(renderer) == 0 && len(scene) == 0 {
		return
	}
	b.outMu.Lock()
	b.rendererOut = append(b.rendererOut, renderer...)
	b.sceneOut = append(b.sceneOut, scene...)
	b.outMu.Unlock()
}

// pollPlatform delivers window events, updates the system compositor and
// reports stream sources that appeared or went away.
func (b *Bundle) pollPlatform() {
	b.platform.PollEvents(windowEvents{display: b.id, events: &b.events})
	if sc := b.platform.SystemCompositor(); sc != nil {
		sc.Update()
	}

	ec := b.platform.EmbeddedCompositing()
	for source := range b.streamSources() {
		available := ec.CompositedTextureDeviceHandle(source).IsValid()
		if b.streams[source] == available {
			continue
		}
		b.streams[source] = available
		logging.Logger().Info("display: stream availability changed",
			"display", b.id, "source", source, "available", available)
		b.events.Add(event.StreamAvailabilityChanged{Source: source, Available: available})
		for _, e := range b.scenes {
			if e.state >= stateMappingRequested {
				e.scene.StreamSourceChanged(source)
			}
		}
	}
}

// streamSources returns the sources shown by stream textures of mapped
// scenes and by stream buffers.
func (b *Bundle) streamSources() map[uint32]struct{} {
	out := make(map[uint32]struct{})
	for _, e := range b.scenes {
		if e.state < stateMappingRequested {
			continue
		}
		e.scene.EachStreamTexture(func(_ scenegraph.StreamTextureHandle, st *scenegraph.StreamTexture) {
			out[st.Source] = struct{}{}
		})
	}
	for _, source := range b.rm.streams {
		out[source] = struct{}{}
	}
	for source := range b.streams {
		out[source] = struct{}{}
	}
	return out
}

// Close unmaps every scene and destroys the display, if created.
func (b *Bundle) Close() {
	for _, e := range b.sortedEntries() {
		if e.state != stateUnknown {
			b.lowerTo(e, statePublished, true)
		}
	}
	if b.platform != nil {
		b.teardown()
	}
}

func (b *Bundle) createDisplay(cfg Config) {
	log := logging.Logger()
	if b.platform != nil {
		log.Error("display: create display", "display", b.id, "err", ErrDisplayExists)
		b.events.Add(event.DisplayCreated{Display: b.id, Failed: true})
		return
	}
	if b.opts.Platform == nil {
		log.Error("display: create display", "display", b.id, "err", ErrNoPlatform)
		b.events.Add(event.DisplayCreated{Display: b.id, Failed: true})
		return
	}
	p, err := b.opts.Platform(b.id, cfg)
	if err != nil {
		log.Error("display: create display", "display", b.id, "err", err)
		b.events.Add(event.DisplayCreated{Display: b.id, Failed: true})
		return
	}

	b.cfg = cfg
	b.platform = p
	b.dev = p.Device()
	b.clearColor = cfg.ClearColor
	uploader := upload.NewUploader(cfg.AsyncEffectCompile, b.opts.ShaderCache)
	if cfg.AsyncEffectCompile {
		b.compiler = upload.NewAsyncEffectCompiler(b.dev, cfg.AsyncEffectWorkers)
	}
	b.rm = newResourceManager(b.dev, b.opts.Store, uploader, b.compiler, p.EmbeddedCompositing())

	if b.opts.FirstDisplay && b.opts.KPIFile != "" {
		if b.kpi, err = newKPIMonitor(b.opts.KPIFile, b.opts.KPIInterval, b.opts.Now()); err != nil {
			log.Error("display: KPI monitor disabled", "display", b.id, "err", err)
		}
	}
	log.Info("display: created", "display", b.id, "width", cfg.Width, "height", cfg.Height,
		"asyncEffects", cfg.AsyncEffectCompile)
	b.events.Add(event.DisplayCreated{Display: b.id})
}

func (b *Bundle) destroyDisplay() {
	log := logging.Logger()
	if b.platform == nil {
		log.Error("display: destroy display that does not exist", "display", b.id)
		b.events.Add(event.DisplayDestroyed{Display: b.id, Failed: true})
		return
	}
	for _, e := range b.sortedEntries() {
		if e.state >= stateMappingRequested {
			log.Error("display: cannot destroy display with mapped scene", "display", b.id, "scene", e.id, "state", e.state)
			b.events.Add(event.DisplayDestroyed{Display: b.id, Failed: true})
			return
		}
	}
	b.teardown()
	log.Info("display: destroyed", "display", b.id)
	b.events.Add(event.DisplayDestroyed{Display: b.id})
}

func (b *Bundle) teardown() {
	b.rm.close()
	if b.compiler != nil {
		b.compiler.Close()
		b.compiler = nil
	}
	if err := b.platform.Close(); err != nil {
		logging.Logger().Error("display: closing platform", "display", b.id, "err", err)
	}
	if b.kpi != nil {
		if err := b.kpi.close(); err != nil {
			logging.Logger().Error("display: closing KPI file", "display", b.id, "err", err)
		}
		b.kpi = nil
	}
	b.platform, b.dev, b.rm = nil, nil, nil
	b.screenshots = nil
	clear(b.streams)
}

// commandFailed logs a command that could not be executed and reports it.
func (b *Bundle) commandFailed(c command.Command, reason string) {
	logging.Logger().Error("display: command failed", "display", b.id, "command", command.String(c), "reason", reason)
	if e, ok := event.FailureFor(c, b.id); ok {
		b.events.Add(e)
	}
}

func (b *Bundle) execute(c command.Command) {
	logging.Logger().Debug("display: executing command", "display", b.id, "command", command.String(c))

	if _, ok := c.(command.CreateDisplay); !ok && b.platform == nil && needsDisplay(c) {
		b.commandFailed(c, "display not created")
		return
	}

	switch c := c.(type) {
	case command.PublishScene:
		b.publishScene(c.Scene)
	case command.UnpublishScene:
		b.unpublishScene(c.Scene)
	case command.ReceiveScene:
		b.receiveScene(c.Scene)
	case command.UpdateScene:
		b.queueFlush(c.Scene, c.Update)
	case command.SetSceneMapping:
		b.setSceneMapping(c.Scene)
	case command.SetSceneState:
		b.setSceneState(c.Scene, c.State)
	case command.SetSceneDisplayBufferAssignment:
		if !b.assignDisplayBuffer(c.Scene, c.Buffer, c.RenderOrder) {
			b.commandFailed(c, "unknown offscreen buffer")
		}
	case command.LinkData:
		b.linkData(c.ProviderScene, c.Provider, c.ConsumerScene, c.Consumer)
	case command.UnlinkData:
		b.unlinkData(c.ConsumerScene, c.Consumer)

	case command.CreateDisplay:
		b.createDisplay(c.Config)
	case command.DestroyDisplay:
		b.destroyDisplay()
	case command.CreateOffscreenBuffer:
		ok := b.rm.createOffscreenBuffer(c.Buffer, c.Width, c.Height, c.SampleCount, b.cfg.ClearColor)
		b.events.Add(event.OffscreenBufferCreated{Display: b.id, Buffer: c.Buffer, Failed: !ok})
	case command.DestroyOffscreenBuffer:
		ok := !b.bufferInUse(c.Buffer) && b.rm.destroyOffscreenBuffer(c.Buffer)
		if !ok {
			logging.Logger().Error("display: cannot destroy offscreen buffer", "display", b.id, "buffer", c.Buffer)
		}
		b.events.Add(event.OffscreenBufferDestroyed{Display: b.id, Buffer: c.Buffer, Failed: !ok})
	case command.CreateStreamBuffer:
		ok := b.rm.createStreamBuffer(c.Buffer, c.Source)
		b.events.Add(event.StreamBufferCreated{Display: b.id, Buffer: c.Buffer, Failed: !ok})
	case command.DestroyStreamBuffer:
		ok := b.rm.destroyStreamBuffer(c.Buffer)
		b.events.Add(event.StreamBufferDestroyed{Display: b.id, Buffer: c.Buffer, Failed: !ok})
	case command.CreateExternalBuffer:
		ok := b.rm.createExternalBuffer(c.Buffer)
		b.events.Add(event.ExternalBufferCreated{Display: b.id, Buffer: c.Buffer, Failed: !ok})
	case command.DestroyExternalBuffer:
		ok := b.rm.destroyExternalBuffer(c.Buffer)
		b.events.Add(event.ExternalBufferDestroyed{Display: b.id, Buffer: c.Buffer, Failed: !ok})
	case command.SetClearColor:
		b.setClearColor(c)
	case command.ReadPixels:
		b.screenshots = append(b.screenshots, c)

	case command.SetLimits:
		b.limits = limits{flushesPerFrame: max(c.FlushesPerFrame, 0), forceApplyAfter: max(c.ForceApplyAfter, 0)}
	case command.SystemCompositorControl:
		b.controlSystemCompositor(c)
	case command.LogInfo:
		b.logInfo(c.Topic, c.Verbose)
	case command.SetFrameTimingReportPeriod:
		b.timing.setPeriod(c.Period)

	default:
		panic(fmt.Sprintf("display: unhandled command %T", c))
	}
}

// needsDisplay reports whether c touches device objects.
func needsDisplay(c command.Command) bool {
	switch c.(type) {
	case command.DestroyDisplay, command.CreateOffscreenBuffer, command.DestroyOffscreenBuffer,
		command.CreateStreamBuffer, command.DestroyStreamBuffer, command.CreateExternalBuffer,
		command.DestroyExternalBuffer, command.SetClearColor, command.ReadPixels,
		command.SetSceneDisplayBufferAssignment:
		return true
	}
	return false
}

func (b *Bundle) bufferInUse(buf scenegraph.OffscreenBufferHandle) bool {
	for _, e := range b.scenes {
		if e.buffer == buf {
			return true
		}
	}
	return false
}

func (b *Bundle) setClearColor(c command.SetClearColor) {
	if !c.Buffer.IsValid() {
		b.clearColor = c.Color
		return
	}
	ob, ok := b.rm.offscreen[c.Buffer]
	if !ok {
		b.commandFailed(c, "unknown offscreen buffer")
		return
	}
	ob.clearColor = c.Color
}

func (b *Bundle) controlSystemCompositor(c command.SystemCompositorControl) {
	if b.platform == nil {
		return
	}
	sc := b.platform.SystemCompositor()
	if sc == nil {
		logging.Logger().Warn("display: no system compositor controller", "display", b.id, "surface", c.Surface)
		return
	}
	if err := sc.SetSurfaceVisibility(c.Surface, c.Visible); err != nil {
		logging.Logger().Error("display: set surface visibility", "display", b.id, "surface", c.Surface, "err", err)
	}
	if err := sc.SetSurfaceOpacity(c.Surface, c.Opacity); err != nil {
		logging.Logger().Error("display: set surface opacity", "display", b.id, "surface", c.Surface, "err", err)
	}
}

// logInfo logs the state of the display. An empty topic logs everything.
func (b *Bundle) logInfo(topic string, verbose bool) {
	log := logging.Logger()
	if topic == "" || topic == "scenes" {
		for _, e := range b.sortedEntries() {
			attrs := []any{"display", b.id, "scene", e.id, "state", e.state, "target", e.target,
				"mapped", e.mapped, "version", e.version, "pending", len(e.pending)}
			if verbose {
				attrs = append(attrs, "resources", len(e.hashes), "buffer", e.buffer, "order", e.order)
				if e.scene != nil {
					attrs = append(attrs, "renderables", e.scene.RenderableCount())
				}
			}
			log.Info("display: scene", attrs...)
		}
	}
	if b.rm == nil {
		return
	}
	if topic == "" || topic == "resources" {
		var uploaded, broken int
		for _, r := range b.rm.resources {
			switch {
			case r.handle.IsValid():
				uploaded++
			case r.broken:
				broken++
			}
		}
		log.Info("display: resources", "display", b.id, "referenced", len(b.rm.resources),
			"uploaded", uploaded, "broken", broken, "gpuMemory", b.dev.GPUMemoryUsage())
	}
	if topic == "" || topic == "buffers" {
		for h, ob := range b.rm.offscreen {
			log.Info("display: offscreen buffer", "display", b.id, "buffer", h,
				"width", ob.width, "height", ob.height, "inUse", b.bufferInUse(h))
		}
		log.Info("display: display buffers", "display", b.id, "offscreen", len(b.rm.offscreen),
			"stream", len(b.rm.streams), "external", len(b.rm.externals))
	}
}
