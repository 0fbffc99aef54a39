// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package event

import "sync"

// Collector gathers events into the renderer and scene control streams.
// It is safe for concurrent use.
type Collector struct {
	mu       sync.Mutex
	renderer []Event
	scene    []Event
}

// Add appends e to the stream it belongs to.
func (c *Collector) Add(e Event) {
	c.mu.Lock()
	if IsSceneControl(e) {
		c.scene = append(c.scene, e)
	} else {
		c.renderer = append(c.renderer, e)
	}
	c.mu.Unlock()
}

// Len returns the number of collected events in both streams.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.renderer) + len(c.scene)
}

// Take returns and clears both streams.
func (c *Collector) Take() (renderer, sceneControl []Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	renderer, sceneControl = c.renderer, c.scene
	c.renderer, c.scene = nil, nil
	return renderer, sceneControl
}
