// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package dispatch

import (
	"github.com/gogpu/scenery/command"
	"github.com/gogpu/scenery/scenegraph"
)

// ownership maps scenes to the display that owns them.
type ownership map[scenegraph.SceneID]command.DisplayID

func (o ownership) set(s scenegraph.SceneID, d command.DisplayID) {
	o[s] = d
}

// owner returns the owning display of s, or InvalidDisplay.
func (o ownership) owner(s scenegraph.SceneID) command.DisplayID {
	if d, ok := o[s]; ok {
		return d
	}
	return command.InvalidDisplay
}

// unregisterDisplay drops every scene owned by d.
func (o ownership) unregisterDisplay(d command.DisplayID) {
	for s, owner := range o {
		if owner == d {
			delete(o, s)
		}
	}
}
