// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package dispatch

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/scenery/command"
	"github.com/gogpu/scenery/display"
	"github.com/gogpu/scenery/event"
	"github.com/gogpu/scenery/internal/logging"
	"github.com/gogpu/scenery/resource"
	"github.com/gogpu/scenery/scenegraph"
)

// maxLoopsWithoutEvents is the number of DispatchCommands calls without
// a renderer event dispatch after which a warning is logged.
const maxLoopsWithoutEvents = 300

type displayEntry struct {
	bundle  *display.Bundle
	thread  *display.Thread
	stop    context.CancelFunc
	pending []command.Command

	lastFrames uint64
}

// Dispatcher routes commands to the bundles of the live displays and
// merges their events.
//
// All methods are safe for concurrent use. A single lock guards the
// display set; bundles are only reached through their queues.
type Dispatcher struct {
	opts display.Options

	mu          sync.Mutex
	displays    map[command.DisplayID]*displayEntry
	cmdOwners   ownership
	eventOwners ownership
	broadcast   command.Stash
	stashed     map[command.DisplayID][]command.Command
	spare       []command.Command

	threaded        bool
	updating        bool
	loopMode        display.LoopMode
	minFrame        time.Duration
	displayMinFrame map[command.DisplayID]time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	loopsWithoutEvents int
	loopsSinceCheck    int

	injectedMu       sync.Mutex
	injectedRenderer []event.Event
	injectedScene    []event.Event
}

// New creates a dispatcher without displays. Bundles are created with
// opts; a shared resource store is created when opts.Store is nil.
// Displays start in lockstep mode and are looped by DoOneLoop until
// StartDisplayThreads is called.
func New(opts display.Options) *Dispatcher {
	if opts.Store == nil {
		opts.Store = resource.NewStore()
	}
	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)
	return &Dispatcher{
		opts:            opts,
		displays:        make(map[command.DisplayID]*displayEntry),
		cmdOwners:       make(ownership),
		eventOwners:     make(ownership),
		stashed:         make(map[command.DisplayID][]command.Command),
		loopMode:        display.UpdateAndRender,
		minFrame:        display.DefaultMinFrameDuration,
		displayMinFrame: make(map[command.DisplayID]time.Duration),
		ctx:             ctx,
		cancel:          cancel,
		group:           group,
	}
}

// Store returns the resource store shared by all displays.
func (d *Dispatcher) Store() *resource.Store { return d.opts.Store }

// Displays returns the IDs of the live displays in ascending order.
func (d *Dispatcher) Displays() []command.DisplayID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sortedIDs()
}

func (d *Dispatcher) sortedIDs() []command.DisplayID {
	return slices.Sorted(maps.Keys(d.displays))
}

// DispatchCommands takes every command queued in buf and routes it.
func (d *Dispatcher) DispatchCommands(buf *command.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cmds := buf.Swap(d.spare)
	logCommands(cmds)
	for _, c := range cmds {
		d.preprocess(c)
		d.dispatch(c)
	}
	clear(cmds)
	d.spare = cmds[:0]

	for _, e := range d.displays {
		if len(e.pending) > 0 {
			e.bundle.PushCommands(e.pending...)
			clear(e.pending)
			e.pending = e.pending[:0]
		}
	}

	d.loopsWithoutEvents++
	if d.loopsWithoutEvents > maxLoopsWithoutEvents {
		logging.Logger().Warn("dispatch: renderer events were not dispatched for a long time, dispatch them regularly",
			"loops", d.loopsWithoutEvents)
		d.loopsWithoutEvents = 0
	}
	if d.threaded && d.updating {
		d.checkStuckDisplays()
	}
}

// logCommands logs a batch unless it only carries scene updates and log
// requests, which arrive every frame.
func logCommands(cmds []command.Command) {
	log := logging.Logger()
	if !log.Enabled(context.Background(), slog.LevelInfo) {
		return
	}
	routine := true
	for _, c := range cmds {
		switch c.(type) {
		case command.UpdateScene, command.LogInfo:
		default:
			routine = false
		}
	}
	if routine {
		return
	}
	names := make([]string, len(cmds))
	for i, c := range cmds {
		names[i] = command.String(c)
	}
	log.Info("dispatch: commands", "count", len(cmds), "commands", names)
}

func (d *Dispatcher) preprocess(c command.Command) {
	switch c := c.(type) {
	case command.CreateDisplay:
		d.createBundle(c.Display)
	case command.SetSceneMapping:
		d.cmdOwners.set(c.Scene, c.Display)
	case command.ReceiveScene:
		if !d.cmdOwners.owner(c.Scene).IsValid() {
			d.adoptMasterOwner(c.Scene)
		}
	}
}

// createBundle creates the bundle of a new display and replays the
// stashed broadcast commands, then the commands stashed for it.
func (d *Dispatcher) createBundle(id command.DisplayID) {
	if _, ok := d.displays[id]; ok {
		// The bundle reports the duplicate creation.
		return
	}
	opts := d.opts
	opts.FirstDisplay = len(d.displays) == 0
	if !opts.FirstDisplay {
		opts.KPIFile = ""
	}
	e := &displayEntry{bundle: display.NewBundle(id, opts)}
	d.displays[id] = e
	logging.Logger().Info("dispatch: display bundle created", "display", id,
		"first", opts.FirstDisplay, "threaded", d.threaded)
	if d.threaded {
		d.startThread(id, e)
	}

	e.bundle.PushCommands(d.broadcast.Commands()...)
	if cmds := d.stashed[id]; len(cmds) > 0 {
		logging.Logger().Info("dispatch: delivering stashed commands", "display", id, "count", len(cmds))
		e.bundle.PushCommands(cmds...)
		delete(d.stashed, id)
	}
}

func (d *Dispatcher) startThread(id command.DisplayID, e *displayEntry) {
	th := display.NewThread(e.bundle, d.opts.Watchdog)
	th.SetLoopMode(d.loopMode)
	minFrame := d.minFrame
	if m, ok := d.displayMinFrame[id]; ok {
		minFrame = m
		delete(d.displayMinFrame, id)
	}
	th.SetMinFrameDuration(minFrame)

	ctx, stop := context.WithCancel(d.ctx)
	e.thread, e.stop = th, stop
	b := e.bundle
	d.group.Go(func() error {
		err := th.Run(ctx)
		b.Close()
		return err
	})
	if d.updating {
		th.StartUpdating()
	}
}

// adoptMasterOwner routes a referenced scene to the display of the
// master scene referencing it.
func (d *Dispatcher) adoptMasterOwner(ref scenegraph.SceneID) {
	log := logging.Logger()
	log.Info("dispatch: received scene has no owner, looking for its master", "scene", ref)
	for _, id := range d.sortedIDs() {
		master, ok := d.displays[id].bundle.MasterSceneOf(ref)
		if !ok {
			continue
		}
		owner := d.cmdOwners.owner(master)
		if !owner.IsValid() {
			continue
		}
		log.Info("dispatch: referenced scene routed to the display of its master",
			"scene", ref, "master", master, "display", owner)
		d.cmdOwners.set(ref, owner)
		return
	}
	log.Error("dispatch: received scene has no owner and no known master, command dropped", "scene", ref)
}

func (d *Dispatcher) dispatch(c command.Command) {
	route, scene, id := command.RouteOf(c)
	switch route {
	case command.RouteBroadcast:
		for _, e := range d.displays {
			e.pending = append(e.pending, c)
		}
		d.broadcast.Add(c)
		return
	case command.RouteScene:
		id = d.cmdOwners.owner(scene)
	}

	if e, ok := d.displays[id]; ok {
		e.pending = append(e.pending, c)
		return
	}
	log := logging.Logger()
	if id.IsValid() && command.EarlyBindable(c) {
		log.Info("dispatch: display not created yet, command stashed", "display", id, "command", command.String(c))
		d.stashed[id] = append(d.stashed[id], c)
		return
	}
	log.Error("dispatch: no display for command", "display", id, "scene", scene, "command", command.String(c))
	if e, ok := event.FailureFor(c, id); ok {
		if event.IsSceneControl(e) {
			d.InjectSceneControlEvent(e)
		} else {
			d.InjectRendererEvent(e)
		}
	}
}

func (d *Dispatcher) checkStuckDisplays() {
	minFrame := d.minFrame
	if minFrame <= 0 {
		minFrame = display.DefaultMinFrameDuration
	}
	d.loopsSinceCheck++
	if d.loopsSinceCheck < int(time.Second/minFrame)/2 {
		return
	}
	d.loopsSinceCheck = 0
	for _, id := range d.sortedIDs() {
		e := d.displays[id]
		if e.thread == nil {
			continue
		}
		frames := e.thread.FrameCounter()
		if frames == e.lastFrames {
			logging.Logger().Warn("dispatch: display potentially stuck", "display", id, "frames", frames)
		}
		e.lastFrames = frames
	}
}

// DispatchRendererEvents returns the renderer events of all displays
// followed by the injected ones. A destroyed display is removed.
func (d *Dispatcher) DispatchRendererEvents() []event.Event {
	var out []event.Event
	d.mu.Lock()
	for _, id := range d.sortedIDs() {
		for _, e := range d.displays[id].bundle.TakeRendererEvents() {
			if dd, ok := e.(event.DisplayDestroyed); ok && !dd.Failed {
				d.removeDisplay(id)
			}
			out = append(out, e)
		}
	}
	d.loopsWithoutEvents = 0
	d.mu.Unlock()

	d.injectedMu.Lock()
	out = append(out, d.injectedRenderer...)
	d.injectedRenderer = nil
	d.injectedMu.Unlock()
	return out
}

func (d *Dispatcher) removeDisplay(id command.DisplayID) {
	e, ok := d.displays[id]
	if !ok {
		return
	}
	d.cmdOwners.unregisterDisplay(id)
	d.eventOwners.unregisterDisplay(id)
	delete(d.displays, id)
	if e.stop != nil {
		e.stop()
	} else {
		e.bundle.Close()
	}
	logging.Logger().Info("dispatch: display removed", "display", id)
}

// DispatchSceneControlEvents returns the scene control events of all
// displays followed by the injected ones. A scene is owned by the last
// display that reported it Ready; its state changes are only passed on
// from that display, or from the first display while it has no owner.
func (d *Dispatcher) DispatchSceneControlEvents() []event.Event {
	var out []event.Event
	d.mu.Lock()
	ids := d.sortedIDs()
	for _, id := range ids {
		for _, e := range d.displays[id].bundle.TakeSceneControlEvents() {
			if sc, ok := e.(event.SceneStateChanged); ok {
				if sc.State == scenegraph.SceneReady {
					d.eventOwners.set(sc.Scene, id)
				}
				if !d.emittedByOwner(sc.Scene, id, ids[0]) {
					logging.Logger().Info("dispatch: filtering scene state change from non-owner display",
						"display", id, "scene", sc.Scene, "state", sc.State)
					continue
				}
			}
			out = append(out, e)
		}
	}
	d.mu.Unlock()

	d.injectedMu.Lock()
	out = append(out, d.injectedScene...)
	d.injectedScene = nil
	d.injectedMu.Unlock()
	return out
}

func (d *Dispatcher) emittedByOwner(s scenegraph.SceneID, id, first command.DisplayID) bool {
	if owner := d.eventOwners.owner(s); owner.IsValid() {
		return owner == id
	}
	return id == first
}

// InjectRendererEvent queues e for the next DispatchRendererEvents.
func (d *Dispatcher) InjectRendererEvent(e event.Event) {
	d.injectedMu.Lock()
	d.injectedRenderer = append(d.injectedRenderer, e)
	d.injectedMu.Unlock()
}

// InjectSceneControlEvent queues e for the next
// DispatchSceneControlEvents.
func (d *Dispatcher) InjectSceneControlEvent(e event.Event) {
	d.injectedMu.Lock()
	d.injectedScene = append(d.injectedScene, e)
	d.injectedMu.Unlock()
}

// DoOneLoop runs one loop of every display. It panics when displays run
// on their own goroutines.
func (d *Dispatcher) DoOneLoop(sleep time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.threaded {
		panic("dispatch: DoOneLoop called with threaded displays")
	}
	for _, id := range d.sortedIDs() {
		d.displays[id].bundle.DoOneLoop(d.loopMode, sleep)
	}
}

// StartDisplayThreads moves every display, present and future, to its
// own goroutine and makes them loop.
func (d *Dispatcher) StartDisplayThreads() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.threaded, d.updating = true, true
	for _, id := range d.sortedIDs() {
		e := d.displays[id]
		if e.thread == nil {
			d.startThread(id, e)
		} else {
			e.thread.StartUpdating()
		}
	}
	logging.Logger().Info("dispatch: display threads updating", "displays", len(d.displays))
}

// StopDisplayThreads makes the display goroutines idle. They keep
// running until Close.
func (d *Dispatcher) StopDisplayThreads() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.updating = false
	for _, e := range d.displays {
		if e.thread != nil {
			e.thread.StopUpdating()
		}
	}
	logging.Logger().Info("dispatch: display threads stopped updating", "displays", len(d.displays))
}

// SetLoopMode sets the loop mode of all displays.
func (d *Dispatcher) SetLoopMode(m display.LoopMode) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loopMode = m
	for _, e := range d.displays {
		if e.thread != nil {
			e.thread.SetLoopMode(m)
		}
	}
}

// SetMinFrameDuration sets the minimum frame duration of the displays
// that have no override of their own.
func (d *Dispatcher) SetMinFrameDuration(dur time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.minFrame = dur
	for _, e := range d.displays {
		if e.thread != nil {
			e.thread.SetMinFrameDuration(dur)
		}
	}
}

// SetDisplayMinFrameDuration sets the minimum frame duration of display
// id. The value is kept for the display's thread if it does not run yet.
func (d *Dispatcher) SetDisplayMinFrameDuration(id command.DisplayID, dur time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.displays[id]; ok && e.thread != nil {
		e.thread.SetMinFrameDuration(dur)
		return
	}
	d.displayMinFrame[id] = dur
}

// FrameCounter returns the number of loops run by the thread of display
// id, or 0 when the display does not run on its own goroutine.
func (d *Dispatcher) FrameCounter(id command.DisplayID) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.displays[id]; ok && e.thread != nil {
		return e.thread.FrameCounter()
	}
	return 0
}

// Close stops every display goroutine, waits for them and closes all
// bundles. The dispatcher must not be used afterwards.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancel()
	err := d.group.Wait()
	for _, id := range d.sortedIDs() {
		if e := d.displays[id]; e.thread == nil {
			e.bundle.Close()
		}
	}
	clear(d.displays)
	clear(d.cmdOwners)
	clear(d.eventOwners)
	logging.Logger().Info("dispatch: closed")
	return err
}
