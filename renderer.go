// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package scenery

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/gogpu/scenery/cache"
	"github.com/gogpu/scenery/command"
	"github.com/gogpu/scenery/dispatch"
	"github.com/gogpu/scenery/display"
	"github.com/gogpu/scenery/event"
	"github.com/gogpu/scenery/resource"
)

// ErrClosed is returned by methods of a closed Renderer.
var ErrClosed = errors.New("scenery: renderer closed")

// Renderer owns the resource store, the command queue and the displays.
//
// Submit may be called from any goroutine. Flush, DispatchEvents and
// DoOneLoop are normally called from one goroutine, once per frame.
type Renderer struct {
	opts        options
	store       *resource.Store
	commands    command.Buffer
	dispatcher  *dispatch.Dispatcher
	shaderCache *cache.ShaderCache

	mu       sync.Mutex
	closed   bool
	lastLoop time.Time
}

// New creates a renderer without displays. Displays are created by
// submitting CreateDisplay commands.
func New(opts ...Option) (*Renderer, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	r := &Renderer{opts: o, store: resource.NewStore()}
	dopts := display.Options{
		Store:                   r.store,
		Platform:                o.platform,
		Sender:                  o.sender,
		Watchdog:                o.watchdog,
		FrameTimingReportPeriod: o.timingPeriod,
		KPIFile:                 o.kpiFile,
		KPIInterval:             o.kpiInterval,
	}
	if o.shaderCachePath != "" {
		c, err := cache.LoadShaderCache(o.shaderCachePath, o.shaderCacheCapacity)
		if err != nil {
			return nil, fmt.Errorf("scenery: load shader cache: %w", err)
		}
		r.shaderCache = c
		dopts.ShaderCache = c
	}

	r.dispatcher = dispatch.New(dopts)
	r.dispatcher.SetLoopMode(o.loopMode)
	r.dispatcher.SetMinFrameDuration(o.minFrame)
	if o.threaded {
		r.dispatcher.StartDisplayThreads()
	}
	Logger().Info("scenery: renderer created", "threaded", o.threaded, "loopMode", o.loopMode,
		"shaderCache", o.shaderCachePath != "")
	return r, nil
}

// Store returns the resource store shared by all displays.
func (r *Renderer) Store() *resource.Store { return r.store }

// Submit queues commands for the next Flush.
func (r *Renderer) Submit(cmds ...command.Command) {
	if r.opts.asyncEffects {
		cmds = slices.Clone(cmds)
		for i, c := range cmds {
			if cd, ok := c.(command.CreateDisplay); ok && !cd.Config.AsyncEffectCompile {
				cd.Config.AsyncEffectCompile = true
				cd.Config.AsyncEffectWorkers = r.opts.effectWorkers
				cmds[i] = cd
			}
		}
	}
	r.commands.Enqueue(cmds...)
}

// Flush routes the submitted commands to the displays.
func (r *Renderer) Flush() error {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return ErrClosed
	}
	r.dispatcher.DispatchCommands(&r.commands)
	return nil
}

// DispatchEvents returns the events of all displays since the last call.
// Renderer events concern displays and their buffers; scene control
// events concern scenes and belong to the scene provider.
func (r *Renderer) DispatchEvents() (renderer, sceneControl []event.Event) {
	return r.dispatcher.DispatchRendererEvents(), r.dispatcher.DispatchSceneControlEvents()
}

// DoOneLoop runs one loop of every display. It panics when displays run
// on their own goroutines.
func (r *Renderer) DoOneLoop() {
	r.mu.Lock()
	now := time.Now()
	var sleep time.Duration
	if !r.lastLoop.IsZero() {
		sleep = now.Sub(r.lastLoop)
	}
	r.lastLoop = now
	r.mu.Unlock()
	r.dispatcher.DoOneLoop(sleep)
}

// StartThreads moves every display to its own goroutine and makes it
// loop.
func (r *Renderer) StartThreads() { r.dispatcher.StartDisplayThreads() }

// StopThreads makes the display goroutines idle.
func (r *Renderer) StopThreads() { r.dispatcher.StopDisplayThreads() }

// SetDisplayMinFrameDuration overrides the minimum frame duration of one
// display.
func (r *Renderer) SetDisplayMinFrameDuration(id command.DisplayID, d time.Duration) {
	r.dispatcher.SetDisplayMinFrameDuration(id, d)
}

// Close stops all displays and writes the shader cache when it changed.
func (r *Renderer) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	err := r.dispatcher.Close()
	if r.shaderCache != nil && r.shaderCache.Dirty() {
		if serr := r.shaderCache.Save(r.opts.shaderCachePath); serr != nil {
			err = errors.Join(err, fmt.Errorf("scenery: save shader cache: %w", serr))
		} else {
			Logger().Info("scenery: shader cache saved", "file", r.opts.shaderCachePath,
				"shaders", r.shaderCache.Len())
		}
	}
	return err
}
