// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package display

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/scenery/command"
	"github.com/gogpu/scenery/internal/logging"
)

// Watchdog is notified by display threads once per loop so an external
// monitor can detect a stalled display.
type Watchdog interface {
	Notify(display command.DisplayID)
}

// NopWatchdog ignores notifications.
type NopWatchdog struct{}

func (NopWatchdog) Notify(command.DisplayID) {}

// DefaultMinFrameDuration caps displays at 60 frames per second.
const DefaultMinFrameDuration = time.Second / 60

// idlePoll is how long a thread that is not updating waits before it
// checks for a state change again.
const idlePoll = 10 * time.Millisecond

// Thread runs the loop of one bundle on its own goroutine. It starts
// idle; StartUpdating makes it loop.
type Thread struct {
	bundle   *Bundle
	watchdog Watchdog

	mu       sync.Mutex
	updating bool
	mode     LoopMode
	minFrame time.Duration
	wake     chan struct{}

	frames atomic.Uint64
}

// NewThread creates a thread for b. Run must be called to start it.
func NewThread(b *Bundle, w Watchdog) *Thread {
	if w == nil {
		w = NopWatchdog{}
	}
	return &Thread{
		bundle:   b,
		watchdog: w,
		mode:     UpdateAndRender,
		minFrame: DefaultMinFrameDuration,
		wake:     make(chan struct{}, 1),
	}
}

func (t *Thread) signal() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// StartUpdating makes the thread run loops.
func (t *Thread) StartUpdating() {
	t.mu.Lock()
	t.updating = true
	t.mu.Unlock()
	t.signal()
}

// StopUpdating makes the thread idle after the current loop.
func (t *Thread) StopUpdating() {
	t.mu.Lock()
	t.updating = false
	t.mu.Unlock()
}

func (t *Thread) SetLoopMode(m LoopMode) {
	t.mu.Lock()
	t.mode = m
	t.mu.Unlock()
}

// SetMinFrameDuration sets the shortest time one loop takes. Loops that
// finish early sleep for the rest.
func (t *Thread) SetMinFrameDuration(d time.Duration) {
	t.mu.Lock()
	t.minFrame = d
	t.mu.Unlock()
	t.signal()
}

// FrameCounter returns the number of loops run so far.
func (t *Thread) FrameCounter() uint64 { return t.frames.Load() }

func (t *Thread) state() (updating bool, mode LoopMode, minFrame time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.updating, t.mode, t.minFrame
}

// Run loops until ctx is done. It returns nil on cancellation.
func (t *Thread) Run(ctx context.Context) error {
	id := t.bundle.ID()
	logging.Logger().Info("display: thread started", "display", id)
	defer logging.Logger().Info("display: thread stopped", "display", id)

	var sleep time.Duration
	for {
		updating, mode, minFrame := t.state()
		if !updating {
			select {
			case <-ctx.Done():
				return nil
			case <-t.wake:
			case <-time.After(idlePoll):
			}
			continue
		}

		start := time.Now()
		t.bundle.DoOneLoop(mode, sleep)
		t.watchdog.Notify(id)
		t.frames.Add(1)

		sleep = max(minFrame-time.Since(start), 0)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(sleep):
		}
	}
}
