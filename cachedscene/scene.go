// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package cachedscene

import (
	"github.com/gogpu/scenery/device"
	"github.com/gogpu/scenery/internal/logging"
	"github.com/gogpu/scenery/resource"
	"github.com/gogpu/scenery/scenegraph"
)

// VertexArrayEntry is the cached vertex array of a renderable.
type VertexArrayEntry struct {
	Handle         device.Handle
	UsesIndexArray bool
}

// Scene is a scenegraph.Scene that tracks which device bindings are
// stale. It shadows every mutator that can invalidate a binding; the
// remaining methods are promoted from the embedded scene.
//
// Per-entity dirty flags and cached handles live in slices indexed by
// handle and only ever grow.
type Scene struct {
	*scenegraph.Scene

	renderableResourcesDirty   []bool
	renderableVertexArrayDirty []bool
	dataInstancesDirty         []bool
	textureSamplersDirty       []bool

	effectCache       []device.Handle
	vertexArrayCache  []VertexArrayEntry
	textureCache      []device.Handle
	renderTargetCache []device.Handle
	// Two entries per blit pass: source at 2i, destination at 2i+1.
	blitPassCache []device.Handle

	dirtinessNeedsUpdate bool
	vertexArraysDirty    bool
	renderTargetsDirty   bool
	blitPassesDirty      bool
}

var _ scenegraph.Mutator = (*Scene)(nil)

// New creates an empty resource-cached scene.
func New(id scenegraph.SceneID) *Scene {
	return &Scene{Scene: scenegraph.NewScene(id)}
}

func growTo[T any](s []T, n uint32, fill T) []T {
	for uint32(len(s)) < n {
		s = append(s, fill)
	}
	return s
}

// grow sizes the caches to the current arena sizes.
func (s *Scene) grow() {
	size := s.Scene.SizeInfo()
	s.renderableResourcesDirty = growTo(s.renderableResourcesDirty, size.Renderables, false)
	s.renderableVertexArrayDirty = growTo(s.renderableVertexArrayDirty, size.Renderables, false)
	s.effectCache = growTo(s.effectCache, size.Renderables, device.Invalid)
	s.vertexArrayCache = growTo(s.vertexArrayCache, size.Renderables, VertexArrayEntry{})
	s.dataInstancesDirty = growTo(s.dataInstancesDirty, size.DataInstances, false)
	s.textureSamplersDirty = growTo(s.textureSamplersDirty, size.TextureSamplers, false)
	s.textureCache = growTo(s.textureCache, size.TextureSamplers, device.Invalid)
	s.renderTargetCache = growTo(s.renderTargetCache, size.RenderTargets, device.Invalid)
	s.blitPassCache = growTo(s.blitPassCache, 2*size.BlitPasses, device.Invalid)
}

func (s *Scene) Preallocate(size scenegraph.SizeInfo) {
	s.Scene.Preallocate(size)
	s.grow()
}

func (s *Scene) AllocateRenderable(h scenegraph.RenderableHandle) scenegraph.RenderableHandle {
	h = s.Scene.AllocateRenderable(h)
	s.grow()
	s.effectCache[h] = device.Invalid
	s.setRenderableResourcesDirty(h, true)
	s.setRenderableVertexArrayDirty(h, true)
	return h
}

func (s *Scene) ReleaseRenderable(h scenegraph.RenderableHandle) {
	s.Scene.ReleaseRenderable(h)
	s.setRenderableResourcesDirty(h, false)
	// Keeps the vertex array listed so its device object gets deleted.
	s.setRenderableVertexArrayDirty(h, true)
}

func (s *Scene) SetRenderableVisibility(h scenegraph.RenderableHandle, v scenegraph.Visibility) {
	if s.Renderable(h).Visibility == scenegraph.VisibilityOff && v != scenegraph.VisibilityOff {
		s.setRenderableResourcesDirty(h, true)
		s.setRenderableVertexArrayDirty(h, true)
	}
	s.Scene.SetRenderableVisibility(h, v)
}

func (s *Scene) SetRenderableIndexRange(h scenegraph.RenderableHandle, startIndex, indexCount, startVertex uint32) {
	changed := s.Renderable(h).StartVertex != startVertex
	s.Scene.SetRenderableIndexRange(h, startIndex, indexCount, startVertex)
	if changed {
		s.setRenderableVertexArrayDirty(h, true)
	}
}

func (s *Scene) SetRenderableDataInstance(h scenegraph.RenderableHandle, slot scenegraph.DataSlot, di scenegraph.DataInstanceHandle) {
	s.Scene.SetRenderableDataInstance(h, slot, di)
	s.effectCache[h] = device.Invalid
	s.setRenderableResourcesDirty(h, true)
	s.setRenderableVertexArrayDirty(h, true)
}

func (s *Scene) AllocateDataInstance(layout scenegraph.DataLayoutHandle, h scenegraph.DataInstanceHandle) scenegraph.DataInstanceHandle {
	h = s.Scene.AllocateDataInstance(layout, h)
	s.grow()
	s.setDataInstanceDirty(h, true)
	return h
}

func (s *Scene) ReleaseDataInstance(h scenegraph.DataInstanceHandle) {
	s.Scene.ReleaseDataInstance(h)
	s.setDataInstanceDirty(h, true)
}

func (s *Scene) SetDataResource(h scenegraph.DataInstanceHandle, field uint32, v scenegraph.ResourceField) {
	s.Scene.SetDataResource(h, field, v)
	s.setDataInstanceDirty(h, true)
}

func (s *Scene) SetDataTextureSampler(h scenegraph.DataInstanceHandle, field uint32, ts scenegraph.TextureSamplerHandle) {
	s.Scene.SetDataTextureSampler(h, field, ts)
	s.setDataInstanceDirty(h, true)
}

func (s *Scene) AllocateTextureSampler(ts scenegraph.TextureSampler, h scenegraph.TextureSamplerHandle) scenegraph.TextureSamplerHandle {
	h = s.Scene.AllocateTextureSampler(ts, h)
	s.grow()
	s.textureCache[h] = device.Invalid
	s.setTextureSamplerDirty(h, true)
	return h
}

func (s *Scene) ReleaseTextureSampler(h scenegraph.TextureSamplerHandle) {
	s.setTextureSamplerDirty(h, true)
	s.Scene.ReleaseTextureSampler(h)
}

func (s *Scene) SetForceFallbackImage(h scenegraph.StreamTextureHandle, force bool) {
	logging.Logger().Debug("cachedscene: force fallback changed",
		"scene", s.ID(), "streamTexture", h, "source", s.StreamTexture(h).Source, "force", force)
	s.Scene.SetForceFallbackImage(h, force)
	s.dirtySamplersOfStreamTexture(h)
}

func (s *Scene) ReleaseStreamTexture(h scenegraph.StreamTextureHandle) {
	s.dirtySamplersOfStreamTexture(h)
	s.Scene.ReleaseStreamTexture(h)
}

func (s *Scene) AllocateRenderTarget(buffers []scenegraph.RenderBufferHandle, h scenegraph.RenderTargetHandle) scenegraph.RenderTargetHandle {
	h = s.Scene.AllocateRenderTarget(buffers, h)
	s.grow()
	s.renderTargetCache[h] = device.Invalid
	s.renderTargetsDirty = true
	return h
}

func (s *Scene) ReleaseRenderTarget(h scenegraph.RenderTargetHandle) {
	s.Scene.ReleaseRenderTarget(h)
	s.renderTargetCache[h] = device.Invalid
}

func (s *Scene) AllocateBlitPass(p scenegraph.BlitPass, h scenegraph.BlitPassHandle) scenegraph.BlitPassHandle {
	h = s.Scene.AllocateBlitPass(p, h)
	s.grow()
	s.blitPassCache[2*h] = device.Invalid
	s.blitPassCache[2*h+1] = device.Invalid
	s.blitPassesDirty = true
	return h
}

func (s *Scene) ReleaseBlitPass(h scenegraph.BlitPassHandle) {
	s.Scene.ReleaseBlitPass(h)
	s.blitPassCache[2*h] = device.Invalid
	s.blitPassCache[2*h+1] = device.Invalid
}

// The remaining allocators only need the caches grown.

func (s *Scene) AllocateDataLayout(fields []scenegraph.DataField, effect resource.Hash, h scenegraph.DataLayoutHandle) scenegraph.DataLayoutHandle {
	h = s.Scene.AllocateDataLayout(fields, effect, h)
	s.grow()
	return h
}

func (s *Scene) AllocateRenderBuffer(rb scenegraph.RenderBuffer, h scenegraph.RenderBufferHandle) scenegraph.RenderBufferHandle {
	h = s.Scene.AllocateRenderBuffer(rb, h)
	s.grow()
	return h
}

// Dirty flags

func (s *Scene) setRenderableResourcesDirty(h scenegraph.RenderableHandle, dirty bool) {
	s.renderableResourcesDirty[h] = dirty
}

func (s *Scene) setRenderableVertexArrayDirty(h scenegraph.RenderableHandle, dirty bool) {
	s.renderableVertexArrayDirty[h] = dirty
	s.vertexArraysDirty = s.vertexArraysDirty || dirty
}

func (s *Scene) setDataInstanceDirty(h scenegraph.DataInstanceHandle, dirty bool) {
	s.dataInstancesDirty[h] = dirty
	s.dirtinessNeedsUpdate = s.dirtinessNeedsUpdate || dirty
}

func (s *Scene) setTextureSamplerDirty(h scenegraph.TextureSamplerHandle, dirty bool) {
	s.textureSamplersDirty[h] = dirty
	s.dirtinessNeedsUpdate = s.dirtinessNeedsUpdate || dirty
}

func (s *Scene) dirtySamplersOfStreamTexture(st scenegraph.StreamTextureHandle) {
	s.EachTextureSampler(func(h scenegraph.TextureSamplerHandle, ts *scenegraph.TextureSampler) {
		if ts.ContentType == scenegraph.ContentStreamTexture && ts.ContentHandle == uint32(st) {
			s.setTextureSamplerDirty(h, true)
			s.textureCache[h] = device.Invalid
		}
	})
}

// DataBufferChanged marks every data instance using b dirty. Call it when
// the device handle of b changes.
func (s *Scene) DataBufferChanged(b scenegraph.DataBufferHandle) {
	s.EachDataInstance(func(h scenegraph.DataInstanceHandle, di *scenegraph.DataInstance) {
		for i, f := range s.DataLayout(di.Layout).Fields {
			if f.Type.IsBuffer() && s.DataResource(h, uint32(i)).DataBuffer == b {
				s.setDataInstanceDirty(h, true)
				return
			}
		}
	})
}

// TextureBufferChanged marks the samplers reading b dirty. Call it when
// the device handle of b changes.
func (s *Scene) TextureBufferChanged(b scenegraph.TextureBufferHandle) {
	s.EachTextureSampler(func(h scenegraph.TextureSamplerHandle, ts *scenegraph.TextureSampler) {
		if ts.ContentType == scenegraph.ContentTextureBuffer && ts.ContentHandle == uint32(b) {
			s.setTextureSamplerDirty(h, true)
			s.textureCache[h] = device.Invalid
		}
	})
}

// StreamSourceChanged marks the samplers of stream textures showing
// source dirty, so they switch between composited and fallback content.
func (s *Scene) StreamSourceChanged(source uint32) {
	s.EachStreamTexture(func(h scenegraph.StreamTextureHandle, st *scenegraph.StreamTexture) {
		if st.Source == source {
			s.dirtySamplersOfStreamTexture(h)
		}
	})
}

// ResourceChanged marks everything resolved from the client resource h
// dirty: data instances using it as effect or buffer, and samplers
// reading it directly or as stream texture fallback. Call it when the
// device handle of h changes or goes away.
func (s *Scene) ResourceChanged(h resource.Hash) {
	s.EachDataInstance(func(d scenegraph.DataInstanceHandle, di *scenegraph.DataInstance) {
		layout := s.DataLayout(di.Layout)
		if layout.Effect == h {
			s.setDataInstanceDirty(d, true)
			return
		}
		for i, f := range layout.Fields {
			if f.Type.IsBuffer() && s.DataResource(d, uint32(i)).Hash == h {
				s.setDataInstanceDirty(d, true)
				return
			}
		}
	})
	s.EachTextureSampler(func(t scenegraph.TextureSamplerHandle, ts *scenegraph.TextureSampler) {
		if ts.ContentType == scenegraph.ContentClientTexture && ts.Texture == h {
			s.setTextureSamplerDirty(t, true)
			s.textureCache[t] = device.Invalid
		}
	})
	s.EachStreamTexture(func(st scenegraph.StreamTextureHandle, t *scenegraph.StreamTexture) {
		if t.Fallback == h {
			s.dirtySamplersOfStreamTexture(st)
		}
	})
}

// RenderableResourcesDirty reports whether h still needs resolving.
func (s *Scene) RenderableResourcesDirty(h scenegraph.RenderableHandle) bool {
	return s.renderableResourcesDirty[h]
}

// AnyRenderableResourcesDirty reports whether any of hs needs resolving.
func (s *Scene) AnyRenderableResourcesDirty(hs []scenegraph.RenderableHandle) bool {
	for _, h := range hs {
		if s.renderableResourcesDirty[h] {
			return true
		}
	}
	return false
}

func (s *Scene) DataInstanceDirty(h scenegraph.DataInstanceHandle) bool {
	return s.dataInstancesDirty[h]
}

func (s *Scene) TextureSamplerDirty(h scenegraph.TextureSamplerHandle) bool {
	return s.textureSamplersDirty[h]
}

// DirtinessNeedsUpdate reports whether a propagation pass is pending.
func (s *Scene) DirtinessNeedsUpdate() bool { return s.dirtinessNeedsUpdate }

func (s *Scene) RenderTargetsDirty() bool { return s.renderTargetsDirty }
func (s *Scene) BlitPassesDirty() bool    { return s.blitPassesDirty }

// Cached handles

func (s *Scene) RenderableEffectDeviceHandle(h scenegraph.RenderableHandle) device.Handle {
	return s.effectCache[h]
}

func (s *Scene) TextureSamplerDeviceHandle(h scenegraph.TextureSamplerHandle) device.Handle {
	return s.textureCache[h]
}

func (s *Scene) VertexArray(h scenegraph.RenderableHandle) VertexArrayEntry {
	return s.vertexArrayCache[h]
}

func (s *Scene) RenderTargetDeviceHandle(h scenegraph.RenderTargetHandle) device.Handle {
	return s.renderTargetCache[h]
}

func (s *Scene) BlitPassDeviceHandles(h scenegraph.BlitPassHandle) (src, dst device.Handle) {
	return s.blitPassCache[2*h], s.blitPassCache[2*h+1]
}
