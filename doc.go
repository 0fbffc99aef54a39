// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package scenery is the per-frame core of a scene renderer.
//
// # Overview
//
// Clients publish scenes and send them as a stream of flushes: batches
// of scene graph actions plus the resources they use. scenery routes
// those flushes to one or more displays, keeps every display's GPU state
// consistent with the applied flushes and draws the scenes each frame.
// A display never waits for a slow upload; a flush whose resources are
// not on the GPU yet is held back until they are.
//
// # Quick Start
//
//	r, err := scenery.New(scenery.WithPlatform(factory))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	r.Submit(
//	    command.CreateDisplay{Display: 1, Config: display.DefaultConfig()},
//	    command.PublishScene{Scene: 7},
//	    command.SetSceneMapping{Scene: 7, Display: 1},
//	    command.SetSceneState{Scene: 7, State: scenegraph.SceneRendered},
//	)
//	for {
//	    r.Flush()
//	    r.DoOneLoop()
//	    renderer, sceneControl := r.DispatchEvents()
//	    // ...
//	}
//
// # Packages
//
//   - resource: content-addressed resource store and resource files
//   - scenegraph: scene arenas and the actions applied by flushes
//   - cachedscene: scenes with per-object dirty tracking of GPU bindings
//   - upload: turns resources into device objects
//   - display: the loop of one display
//   - dispatch: command routing across displays and event merging
//   - device: the GPU device interface, a wgpu HAL implementation and a
//     recording fake for tests
//
// # Threading
//
// By default displays are looped by the caller with [Renderer.DoOneLoop].
// With [WithThreadedDisplays] every display runs on its own goroutine and
// the caller only calls Flush and DispatchEvents.
//
// # Logging
//
// scenery is silent by default. See [SetLogger].
package scenery
