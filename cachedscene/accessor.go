// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package cachedscene

import (
	"github.com/gogpu/scenery/device"
	"github.com/gogpu/scenery/resource"
	"github.com/gogpu/scenery/scenegraph"
)

// ResourceAccessor maps the things a scene refers to onto device handles.
// Every method returns device.Invalid when the backing object is not
// uploaded yet; that is not an error.
type ResourceAccessor interface {
	// ResourceDeviceHandle returns the handle of a client resource.
	ResourceDeviceHandle(h resource.Hash) device.Handle

	DataBufferDeviceHandle(b scenegraph.DataBufferHandle, scene scenegraph.SceneID) device.Handle
	TextureBufferDeviceHandle(b scenegraph.TextureBufferHandle, scene scenegraph.SceneID) device.Handle
	RenderTargetBufferDeviceHandle(b scenegraph.RenderBufferHandle, scene scenegraph.SceneID) device.Handle
	RenderTargetDeviceHandle(rt scenegraph.RenderTargetHandle, scene scenegraph.SceneID) device.Handle
	BlitPassRenderTargets(bp scenegraph.BlitPassHandle, scene scenegraph.SceneID) (src, dst device.Handle)
	VertexArrayDeviceHandle(r scenegraph.RenderableHandle, scene scenegraph.SceneID) device.Handle

	// Display level buffers.
	OffscreenBufferColorBuffer(h scenegraph.OffscreenBufferHandle) device.Handle
	StreamBufferDeviceHandle(h scenegraph.StreamBufferHandle) device.Handle
	ExternalBufferDeviceHandle(h scenegraph.ExternalBufferHandle) device.Handle
	// EmptyExternalBufferDeviceHandle is sampled by external texture
	// samplers with no buffer bound.
	EmptyExternalBufferDeviceHandle() device.Handle
}

// EmbeddedCompositingManager provides the textures composited from
// embedded clients.
type EmbeddedCompositingManager interface {
	// CompositedTextureDeviceHandle returns the texture currently
	// composited for source, or device.Invalid when the source has no
	// content.
	CompositedTextureDeviceHandle(source uint32) device.Handle
}

// NoEmbeddedCompositing is an EmbeddedCompositingManager with no sources.
type NoEmbeddedCompositing struct{}

func (NoEmbeddedCompositing) CompositedTextureDeviceHandle(uint32) device.Handle {
	return device.Invalid
}
