// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package command defines the commands a client sends to the renderer.
//
// [Command] is a closed sum type: every command is a struct in this
// package and consumers handle them with a type switch. [RouteOf] tells
// the dispatcher whether a command is addressed to a scene, a display or
// every display.
//
// Producers enqueue into a [Buffer]; the dispatcher swaps its contents
// out once per loop:
//
//	var buf command.Buffer
//	buf.Enqueue(command.CreateDisplay{Display: 1, Config: command.DefaultDisplayConfig()})
//	pending := buf.Swap(nil)
package command
