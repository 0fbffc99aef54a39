// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package cachedscene

import (
	"cmp"
	"slices"

	"github.com/gogpu/scenery/device"
	"github.com/gogpu/scenery/internal/logging"
	"github.com/gogpu/scenery/resource"
	"github.com/gogpu/scenery/scenegraph"
)

// UpdateRenderableResources resolves the device handles of every visible
// renderable whose resources are dirty, then the render target and blit
// pass handles. A renderable whose resources are not all available stays
// dirty and is retried on the next call.
func (s *Scene) UpdateRenderableResources(acc ResourceAccessor, ec EmbeddedCompositingManager) {
	s.UpdateRenderablesResourcesDirtiness()

	s.EachRenderable(func(h scenegraph.RenderableHandle, r *scenegraph.Renderable) {
		if !s.renderableResourcesDirty[h] || r.Visibility == scenegraph.VisibilityOff {
			return
		}
		if s.updateEffect(acc, h) && s.updateTextures(acc, ec, h) && s.geometryAvailable(acc, h) {
			s.setRenderableResourcesDirty(h, false)
		}
	})

	s.updateRenderTargets(acc)
	s.updateBlitPasses(acc)
}

// UpdateRenderablesResourcesDirtiness propagates sampler and data
// instance dirtiness to renderables, then clears the sampler and data
// instance flags. It does nothing unless a flag was set since the last
// pass.
//
// Propagation happens in full before anything is cleared, so a chain
// sampler -> data instance -> renderable settles in a single pass.
func (s *Scene) UpdateRenderablesResourcesDirtiness() {
	if !s.dirtinessNeedsUpdate {
		return
	}

	for i := range s.dataInstancesDirty {
		d := scenegraph.DataInstanceHandle(i)
		if !s.dataInstancesDirty[d] && s.refersToDirtySampler(d) {
			s.setDataInstanceDirty(d, true)
		}
	}

	s.EachRenderable(func(h scenegraph.RenderableHandle, r *scenegraph.Renderable) {
		if s.instanceDirty(r.DataInstances[scenegraph.SlotUniforms]) {
			s.setRenderableResourcesDirty(h, true)
		}
		if s.instanceDirty(r.DataInstances[scenegraph.SlotGeometry]) {
			s.setRenderableResourcesDirty(h, true)
			s.setRenderableVertexArrayDirty(h, true)
		}
	})

	clear(s.dataInstancesDirty)
	clear(s.textureSamplersDirty)
	s.dirtinessNeedsUpdate = false
}

func (s *Scene) instanceDirty(d scenegraph.DataInstanceHandle) bool {
	return d.IsValid() && int(d) < len(s.dataInstancesDirty) && s.dataInstancesDirty[d]
}

func (s *Scene) refersToDirtySampler(d scenegraph.DataInstanceHandle) bool {
	if !s.IsDataInstanceAllocated(d) {
		return false
	}
	layout := s.DataLayout(s.DataInstance(d).Layout)
	for i, f := range layout.Fields {
		if !f.Type.IsTextureSampler() {
			continue
		}
		ts := s.DataTextureSampler(d, uint32(i))
		if ts.IsValid() && int(ts) < len(s.textureSamplersDirty) && s.textureSamplersDirty[ts] {
			return true
		}
	}
	return false
}

// lookup returns the handle of a client resource, or device.Invalid for
// an unset hash.
func lookup(acc ResourceAccessor, h resource.Hash) device.Handle {
	if !h.IsValid() {
		return device.Invalid
	}
	return acc.ResourceDeviceHandle(h)
}

func (s *Scene) updateEffect(acc ResourceAccessor, h scenegraph.RenderableHandle) bool {
	effect := resource.InvalidHash
	if di := s.Renderable(h).DataInstances[scenegraph.SlotGeometry]; di.IsValid() {
		effect = s.DataLayout(s.DataInstance(di).Layout).Effect
	}
	s.effectCache[h] = lookup(acc, effect)
	return s.effectCache[h].IsValid()
}

func (s *Scene) updateTextures(acc ResourceAccessor, ec EmbeddedCompositingManager, h scenegraph.RenderableHandle) bool {
	di := s.Renderable(h).DataInstances[scenegraph.SlotUniforms]
	if !di.IsValid() {
		return false
	}
	layout := s.DataLayout(s.DataInstance(di).Layout)
	for i, f := range layout.Fields {
		if !f.Type.IsTextureSampler() {
			continue
		}
		ts := s.DataTextureSampler(di, uint32(i))
		if !ts.IsValid() || !s.IsTextureSamplerAllocated(ts) || !s.updateTextureSampler(acc, ec, ts) {
			return false
		}
	}
	return true
}

// updateTextureSampler resolves the texture a sampler reads from. This is
// where stream texture availability and fallback are decided.
func (s *Scene) updateTextureSampler(acc ResourceAccessor, ec EmbeddedCompositingManager, h scenegraph.TextureSamplerHandle) bool {
	ts := s.TextureSampler(h)
	id := s.ID()
	cached := &s.textureCache[h]

	switch ts.ContentType {
	case scenegraph.ContentClientTexture:
		*cached = lookup(acc, ts.Texture)
		return cached.IsValid()
	case scenegraph.ContentTextureBuffer:
		*cached = acc.TextureBufferDeviceHandle(scenegraph.TextureBufferHandle(ts.ContentHandle), id)
		return cached.IsValid()
	case scenegraph.ContentRenderBuffer, scenegraph.ContentRenderBufferMS:
		*cached = acc.RenderTargetBufferDeviceHandle(scenegraph.RenderBufferHandle(ts.ContentHandle), id)
		return cached.IsValid()
	case scenegraph.ContentStreamTexture:
		return s.updateStreamTexture(acc, ec, scenegraph.StreamTextureHandle(ts.ContentHandle), cached)
	case scenegraph.ContentOffscreenBuffer:
		*cached = acc.OffscreenBufferColorBuffer(scenegraph.OffscreenBufferHandle(ts.ContentHandle))
		return true
	case scenegraph.ContentStreamBuffer:
		*cached = acc.StreamBufferDeviceHandle(scenegraph.StreamBufferHandle(ts.ContentHandle))
		return true
	case scenegraph.ContentExternalTexture:
		if ts.ContentHandle == scenegraph.InvalidHandle {
			*cached = acc.EmptyExternalBufferDeviceHandle()
		} else {
			*cached = acc.ExternalBufferDeviceHandle(scenegraph.ExternalBufferHandle(ts.ContentHandle))
		}
		return true
	}
	panic("cachedscene: texture sampler without content")
}

func (s *Scene) updateStreamTexture(acc ResourceAccessor, ec EmbeddedCompositingManager, h scenegraph.StreamTextureHandle, cached *device.Handle) bool {
	st := s.StreamTexture(h)
	composited := ec.CompositedTextureDeviceHandle(st.Source)
	log := logging.Logger()
	switch {
	case st.ForceFallback:
		log.Info("cachedscene: using fallback texture, fallback forced",
			"scene", s.ID(), "streamTexture", h, "source", st.Source)
	case !composited.IsValid():
		log.Info("cachedscene: using fallback texture, stream source not available",
			"scene", s.ID(), "streamTexture", h, "source", st.Source)
	default:
		log.Info("cachedscene: using composited texture",
			"scene", s.ID(), "streamTexture", h, "source", st.Source)
		*cached = composited
		return true
	}
	*cached = lookup(acc, st.Fallback)
	return cached.IsValid()
}

// geometryAvailable checks that every geometry field has a device buffer.
// Field 0 always holds indices and is skipped when indices are unused.
func (s *Scene) geometryAvailable(acc ResourceAccessor, h scenegraph.RenderableHandle) bool {
	di := s.Renderable(h).DataInstances[scenegraph.SlotGeometry]
	if !di.IsValid() {
		return false
	}
	layout := s.DataLayout(s.DataInstance(di).Layout)
	for i := range layout.Fields {
		f := s.DataResource(di, uint32(i))
		if i == 0 && !f.IsSet() {
			continue
		}
		var dh device.Handle
		switch {
		case f.Hash.IsValid():
			dh = acc.ResourceDeviceHandle(f.Hash)
		case f.DataBuffer.IsValid():
			dh = acc.DataBufferDeviceHandle(f.DataBuffer, s.ID())
		}
		if !dh.IsValid() {
			return false
		}
	}
	return true
}

func (s *Scene) updateRenderTargets(acc ResourceAccessor) {
	if !s.renderTargetsDirty {
		return
	}
	resolved := true
	s.EachRenderTarget(func(h scenegraph.RenderTargetHandle, _ *scenegraph.RenderTarget) {
		if s.renderTargetCache[h].IsValid() {
			return
		}
		s.renderTargetCache[h] = acc.RenderTargetDeviceHandle(h, s.ID())
		if !s.renderTargetCache[h].IsValid() {
			logging.Logger().Debug("cachedscene: render target not uploaded", "scene", s.ID(), "renderTarget", h)
			resolved = false
		}
	})
	s.renderTargetsDirty = !resolved
}

func (s *Scene) updateBlitPasses(acc ResourceAccessor) {
	if !s.blitPassesDirty {
		return
	}
	resolved := true
	s.EachBlitPass(func(h scenegraph.BlitPassHandle, _ *scenegraph.BlitPass) {
		src, dst := &s.blitPassCache[2*h], &s.blitPassCache[2*h+1]
		if src.IsValid() && dst.IsValid() {
			return
		}
		*src, *dst = acc.BlitPassRenderTargets(h, s.ID())
		if !src.IsValid() || !dst.IsValid() {
			logging.Logger().Debug("cachedscene: blit pass targets not uploaded", "scene", s.ID(), "blitPass", h)
			resolved = false
		}
	})
	s.blitPassesDirty = !resolved
}

// HasDirtyVertexArrays reports whether any vertex array was invalidated
// since MarkVertexArraysClean.
func (s *Scene) HasDirtyVertexArrays() bool { return s.vertexArraysDirty }

// RenderableVertexArrayDirty reports whether h needs its vertex array
// rebuilt or deleted.
func (s *Scene) RenderableVertexArrayDirty(h scenegraph.RenderableHandle) bool {
	return s.renderableVertexArrayDirty[h]
}

// DirtyVertexArrays lists the renderables whose vertex array is dirty.
func (s *Scene) DirtyVertexArrays() []scenegraph.RenderableHandle {
	var out []scenegraph.RenderableHandle
	for i, dirty := range s.renderableVertexArrayDirty {
		if dirty {
			out = append(out, scenegraph.RenderableHandle(i))
		}
	}
	return out
}

// UpdateRenderableVertexArrays refreshes the cached vertex arrays of hs,
// which must all be dirty. Released renderables are cleaned. Renderables
// whose resources are still dirty keep their dirty flag and get no vertex
// array until they resolve.
func (s *Scene) UpdateRenderableVertexArrays(acc ResourceAccessor, hs []scenegraph.RenderableHandle) {
	for _, h := range hs {
		if !s.renderableVertexArrayDirty[h] {
			panic("cachedscene: vertex array update for a clean renderable")
		}
		s.vertexArrayCache[h] = VertexArrayEntry{}
		switch {
		case !s.IsRenderableAllocated(h):
			s.setRenderableVertexArrayDirty(h, false)
		case !s.renderableResourcesDirty[h]:
			geometry := s.Renderable(h).DataInstances[scenegraph.SlotGeometry]
			s.vertexArrayCache[h] = VertexArrayEntry{
				Handle:         acc.VertexArrayDeviceHandle(h, s.ID()),
				UsesIndexArray: s.DataResource(geometry, 0).IsSet(),
			}
			s.setRenderableVertexArrayDirty(h, false)
		}
	}
}

// MarkVertexArraysClean resets the aggregate flag reported by
// HasDirtyVertexArrays. Per-renderable flags are kept.
func (s *Scene) MarkVertexArraysClean() { s.vertexArraysDirty = false }

// VertexArrayInfo describes the vertex array of a resolved renderable:
// its effect, its index buffer and one binding per vertex field. ok is
// false when the renderable is not resolved.
func (s *Scene) VertexArrayInfo(acc ResourceAccessor, h scenegraph.RenderableHandle) (info device.VertexArrayInfo, ok bool) {
	if !s.IsRenderableAllocated(h) || s.renderableResourcesDirty[h] {
		return info, false
	}
	r := s.Renderable(h)
	di := r.DataInstances[scenegraph.SlotGeometry]
	layout := s.DataLayout(s.DataInstance(di).Layout)
	info.Shader = s.effectCache[h]

	handleOf := func(f scenegraph.ResourceField) device.Handle {
		if f.Hash.IsValid() {
			return acc.ResourceDeviceHandle(f.Hash)
		}
		return acc.DataBufferDeviceHandle(f.DataBuffer, s.ID())
	}
	for i, field := range layout.Fields {
		f := s.DataResource(di, uint32(i))
		if i == 0 {
			if f.IsSet() {
				info.IndexBuffer = handleOf(f)
			}
			continue
		}
		info.Buffers = append(info.Buffers, device.VertexBufferBinding{
			Buffer:            handleOf(f),
			Location:          uint32(i - 1),
			Element:           field.Type.ElementType(),
			InstancingDivisor: f.InstancingDivisor,
			Offset:            f.Offset,
			Stride:            f.Stride,
			StartVertex:       r.StartVertex,
		})
	}
	return info, true
}

// ResetResourceCache drops every cached handle and marks every renderable
// dirty, as needed after the device lost its resources.
func (s *Scene) ResetResourceCache() {
	s.EachRenderable(func(h scenegraph.RenderableHandle, _ *scenegraph.Renderable) {
		s.renderableResourcesDirty[h] = true
		s.setRenderableVertexArrayDirty(h, true)
	})
	fill(s.effectCache, device.Invalid)
	fill(s.vertexArrayCache, VertexArrayEntry{})
	fill(s.textureCache, device.Invalid)
	fill(s.renderTargetCache, device.Invalid)
	fill(s.blitPassCache, device.Invalid)
	s.renderTargetsDirty = len(s.renderTargetCache) > 0
	s.blitPassesDirty = len(s.blitPassCache) > 0
}

func fill[T any](s []T, v T) {
	for i := range s {
		s[i] = v
	}
}

// SortedRenderPasses returns the enabled render passes by ascending order.
func (s *Scene) SortedRenderPasses() []scenegraph.RenderPassHandle {
	var out []scenegraph.RenderPassHandle
	s.EachRenderPass(func(h scenegraph.RenderPassHandle, p *scenegraph.RenderPass) {
		if p.Enabled {
			out = append(out, h)
		}
	})
	slices.SortStableFunc(out, func(a, b scenegraph.RenderPassHandle) int {
		return cmp.Compare(s.RenderPass(a).Order, s.RenderPass(b).Order)
	})
	return out
}
