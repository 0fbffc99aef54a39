// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package scenery

import (
	"time"

	"github.com/gogpu/scenery/display"
)

// Option configures a Renderer during creation.
//
// Example:
//
//	// Lockstep displays looped by the caller
//	r, err := scenery.New(scenery.WithPlatform(factory))
//
//	// One goroutine per display, capped at 30 frames per second
//	r, err := scenery.New(
//	    scenery.WithPlatform(factory),
//	    scenery.WithThreadedDisplays(true),
//	    scenery.WithMinFrameDuration(time.Second/30),
//	)
type Option func(*options)

// options holds optional configuration for Renderer creation.
type options struct {
	threaded      bool
	loopMode      display.LoopMode
	minFrame      time.Duration
	asyncEffects  bool
	effectWorkers int

	shaderCachePath     string
	shaderCacheCapacity int

	timingPeriod time.Duration
	kpiFile      string
	kpiInterval  time.Duration

	watchdog display.Watchdog
	platform display.PlatformFactory
	sender   display.SceneEventSender
}

// defaultOptions returns the default renderer options.
func defaultOptions() options {
	return options{
		loopMode:    display.UpdateAndRender,
		minFrame:    display.DefaultMinFrameDuration,
		kpiInterval: time.Second,
	}
}

// WithThreadedDisplays runs every display on its own goroutine. Without
// it the caller loops the displays with Renderer.DoOneLoop.
func WithThreadedDisplays(threaded bool) Option {
	return func(o *options) {
		o.threaded = threaded
	}
}

// WithLoopMode sets whether displays render or only update scenes.
func WithLoopMode(m display.LoopMode) Option {
	return func(o *options) {
		o.loopMode = m
	}
}

// WithMinFrameDuration sets the shortest frame of threaded displays.
func WithMinFrameDuration(d time.Duration) Option {
	return func(o *options) {
		o.minFrame = d
	}
}

// WithAsyncEffectCompile compiles effects on a pool of workers per
// display instead of on the render goroutine. workers 0 uses GOMAXPROCS.
// It applies to every CreateDisplay submitted to the Renderer.
func WithAsyncEffectCompile(workers int) Option {
	return func(o *options) {
		o.asyncEffects = true
		o.effectWorkers = workers
	}
}

// WithBinaryShaderCache keeps compiled shaders in a cache file at path.
// The file is read by New and written by Close when new shaders were
// compiled. capacity bounds the entries per cache shard.
func WithBinaryShaderCache(path string, capacity int) Option {
	return func(o *options) {
		o.shaderCachePath = path
		o.shaderCacheCapacity = capacity
	}
}

// WithFrameTimingReportPeriod makes displays emit FrameTimingReport
// events every period.
func WithFrameTimingReportPeriod(period time.Duration) Option {
	return func(o *options) {
		o.timingPeriod = period
	}
}

// WithKPIFile makes the first display append a CSV line of frame
// statistics to path every interval.
func WithKPIFile(path string, interval time.Duration) Option {
	return func(o *options) {
		o.kpiFile = path
		if interval > 0 {
			o.kpiInterval = interval
		}
	}
}

// WithWatchdog sets the watchdog notified once per loop by every display
// goroutine.
func WithWatchdog(w display.Watchdog) Option {
	return func(o *options) {
		o.watchdog = w
	}
}

// WithPlatform sets the factory creating the window and device of each
// display. Without it CreateDisplay fails.
func WithPlatform(f display.PlatformFactory) Option {
	return func(o *options) {
		o.platform = f
	}
}

// WithSceneEventSender sets the receiver of scene subscription requests.
// By default requests are only logged.
func WithSceneEventSender(s display.SceneEventSender) Option {
	return func(o *options) {
		o.sender = s
	}
}
