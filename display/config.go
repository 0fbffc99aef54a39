// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package display

import (
	"errors"
	"time"

	"github.com/gogpu/scenery/command"
	"github.com/gogpu/scenery/resource"
	"github.com/gogpu/scenery/upload"
)

// Errors returned by display setup.
var (
	// ErrDisplayExists is returned when a display ID is already in use.
	ErrDisplayExists = errors.New("display: display already exists")

	// ErrNoPlatform is returned when a display is created without a
	// platform factory.
	ErrNoPlatform = errors.New("display: no platform")
)

// Config is the per-display configuration carried by CreateDisplay.
type Config = command.DisplayConfig

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config { return command.DefaultDisplayConfig() }

// LoopMode selects what one loop iteration does.
type LoopMode uint8

const (
	// UpdateOnly executes commands and updates scenes without drawing.
	UpdateOnly LoopMode = iota
	// UpdateAndRender also draws and presents a frame.
	UpdateAndRender
)

func (m LoopMode) String() string {
	if m == UpdateOnly {
		return "UpdateOnly"
	}
	return "UpdateAndRender"
}

// Options are the renderer wide settings a Bundle is built with.
type Options struct {
	// Store holds client resources. It is shared between displays.
	Store *resource.Store
	// ShaderCache, when set, stores compiled shaders across runs.
	ShaderCache upload.BinaryShaderCache
	// Platform creates the window and device of the display.
	Platform PlatformFactory
	// Sender forwards subscription requests to scene providers.
	Sender SceneEventSender
	// Watchdog is notified once per loop by display threads.
	Watchdog Watchdog

	// FrameTimingReportPeriod is how often FrameTimingReport events are
	// emitted. 0 disables them.
	FrameTimingReportPeriod time.Duration
	// FirstDisplay marks the display whose timing and KPIs are reported.
	FirstDisplay bool
	// KPIFile, when set on the first display, receives a CSV line of
	// frame statistics every KPIInterval.
	KPIFile     string
	KPIInterval time.Duration

	// Now returns the current time. It defaults to time.Now.
	Now func() time.Time
}

func (o *Options) setDefaults() {
	if o.Store == nil {
		o.Store = resource.NewStore()
	}
	if o.Sender == nil {
		o.Sender = LoggingSender{}
	}
	if o.Watchdog == nil {
		o.Watchdog = NopWatchdog{}
	}
	if o.KPIInterval == 0 {
		o.KPIInterval = time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}
