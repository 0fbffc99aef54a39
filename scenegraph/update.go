// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package scenegraph

import (
	"time"

	"github.com/gogpu/scenery/resource"
)

// SceneState is the client-visible state of a scene on a renderer.
type SceneState uint8

const (
	SceneUnavailable SceneState = iota
	SceneAvailable
	SceneReady
	SceneRendered
)

func (s SceneState) String() string {
	switch s {
	case SceneUnavailable:
		return "Unavailable"
	case SceneAvailable:
		return "Available"
	case SceneReady:
		return "Ready"
	case SceneRendered:
		return "Rendered"
	}
	return "Unknown"
}

// ResourceChanges lists the client resources a flush starts or stops
// using.
type ResourceChanges struct {
	Added   []resource.Hash
	Removed []resource.Hash
}

// ReferenceActionType is the kind of a scene reference action.
type ReferenceActionType uint8

const (
	ReferenceAdd ReferenceActionType = iota
	ReferenceRemove
	ReferenceRequestState
	ReferenceLinkData
	ReferenceUnlinkData
)

// DataSlotID identifies a data provider or consumer within a scene.
type DataSlotID uint32

// ReferenceAction is an operation a master scene performs on a scene it
// references.
type ReferenceAction struct {
	Type       ReferenceActionType
	Referenced SceneID
	// State is the target state for ReferenceRequestState.
	State SceneState

	// Data link endpoints for ReferenceLinkData and ReferenceUnlinkData.
	ProviderScene SceneID
	Provider      DataSlotID
	ConsumerScene SceneID
	Consumer      DataSlotID
}

// FlushInfo is the metadata carried by a flush next to its actions.
type FlushInfo struct {
	Version uint64
	// Size, when non-zero, lets the receiver preallocate arenas.
	Size SizeInfo
	// Expiration is the latest time the content may be shown. The zero
	// value disables expiration monitoring for the scene.
	Expiration time.Time
	Resources  ResourceChanges
	References []ReferenceAction
}

// SceneUpdate is one flush: actions to apply in order, the resources the
// client supplies with it and its metadata.
type SceneUpdate struct {
	Actions   []Action
	Resources []*resource.Resource
	Flush     FlushInfo
}
