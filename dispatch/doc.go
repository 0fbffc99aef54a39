// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package dispatch routes renderer commands to display bundles.
//
// A [Dispatcher] owns the live displays. Commands naming a display go to
// its bundle; commands naming a scene go to the display the scene was
// mapped to; broadcast commands go to every display and are remembered
// for displays created later. Mapping and state requests for a display
// that does not exist yet wait until it is created. Any other command
// that cannot be routed is answered with a failure event. This includes
// a state request for a scene that is not mapped to any display: it
// fails with a CommandFailed event instead of waiting for a mapping.
//
// Events of all displays are merged. A scene published on several
// displays reports its state only from the display that owns it.
package dispatch
