// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package scenegraph

import (
	"fmt"

	"github.com/gogpu/scenery/resource"
)

// Scene is a graph of entities stored in handle-indexed arenas.
//
// Every accessor panics when given a released or never allocated handle;
// callers check with the matching Is*Allocated method first when the
// handle may be stale.
//
// Scene is not safe for concurrent use. A scene is only ever touched by
// the goroutine of the display it is mapped to.
type Scene struct {
	id SceneID

	renderables    Pool[RenderableHandle, Renderable]
	layouts        Pool[DataLayoutHandle, DataLayout]
	instances      Pool[DataInstanceHandle, DataInstance]
	samplers       Pool[TextureSamplerHandle, TextureSampler]
	renderBuffers  Pool[RenderBufferHandle, RenderBuffer]
	renderTargets  Pool[RenderTargetHandle, RenderTarget]
	renderPasses   Pool[RenderPassHandle, RenderPass]
	blitPasses     Pool[BlitPassHandle, BlitPass]
	dataBuffers    Pool[DataBufferHandle, DataBuffer]
	textureBuffers Pool[TextureBufferHandle, TextureBuffer]
	streamTextures Pool[StreamTextureHandle, StreamTexture]

	// version numbers data and texture buffer contents across the scene.
	version uint64
}

// NewScene returns an empty scene.
func NewScene(id SceneID) *Scene {
	return &Scene{id: id}
}

// ID returns the scene identifier.
func (s *Scene) ID() SceneID { return s.id }

// SizeInfo returns the slot count of every arena.
func (s *Scene) SizeInfo() SizeInfo {
	return SizeInfo{
		Renderables:     s.renderables.Len(),
		DataLayouts:     s.layouts.Len(),
		DataInstances:   s.instances.Len(),
		TextureSamplers: s.samplers.Len(),
		RenderBuffers:   s.renderBuffers.Len(),
		RenderTargets:   s.renderTargets.Len(),
		RenderPasses:    s.renderPasses.Len(),
		BlitPasses:      s.blitPasses.Len(),
		DataBuffers:     s.dataBuffers.Len(),
		TextureBuffers:  s.textureBuffers.Len(),
		StreamTextures:  s.streamTextures.Len(),
	}
}

// Preallocate grows every arena to at least the given size.
func (s *Scene) Preallocate(size SizeInfo) {
	s.renderables.Reserve(size.Renderables)
	s.layouts.Reserve(size.DataLayouts)
	s.instances.Reserve(size.DataInstances)
	s.samplers.Reserve(size.TextureSamplers)
	s.renderBuffers.Reserve(size.RenderBuffers)
	s.renderTargets.Reserve(size.RenderTargets)
	s.renderPasses.Reserve(size.RenderPasses)
	s.blitPasses.Reserve(size.BlitPasses)
	s.dataBuffers.Reserve(size.DataBuffers)
	s.textureBuffers.Reserve(size.TextureBuffers)
	s.streamTextures.Reserve(size.StreamTextures)
}

// Renderables

func (s *Scene) AllocateRenderable(h RenderableHandle) RenderableHandle {
	return s.renderables.Allocate(h, Renderable{
		DataInstances: [slotCount]DataInstanceHandle{InvalidDataInstance, InvalidDataInstance},
		Visibility:    VisibilityVisible,
		InstanceCount: 1,
	})
}

func (s *Scene) ReleaseRenderable(h RenderableHandle) {
	s.renderables.Release(h)
	s.renderPasses.Each(func(_ RenderPassHandle, p *RenderPass) {
		p.Renderables = removeHandle(p.Renderables, h)
	})
}

func (s *Scene) IsRenderableAllocated(h RenderableHandle) bool { return s.renderables.IsAllocated(h) }
func (s *Scene) Renderable(h RenderableHandle) *Renderable     { return s.renderables.Get(h) }
func (s *Scene) RenderableCount() uint32                       { return s.renderables.Len() }

// EachRenderable calls fn for every allocated renderable.
func (s *Scene) EachRenderable(fn func(RenderableHandle, *Renderable)) { s.renderables.Each(fn) }

func (s *Scene) SetRenderableDataInstance(h RenderableHandle, slot DataSlot, di DataInstanceHandle) {
	if slot >= slotCount {
		panic(fmt.Sprintf("scenegraph: invalid data slot %d", slot))
	}
	s.renderables.Get(h).DataInstances[slot] = di
}

func (s *Scene) SetRenderableVisibility(h RenderableHandle, v Visibility) {
	s.renderables.Get(h).Visibility = v
}

func (s *Scene) SetRenderableIndexRange(h RenderableHandle, startIndex, indexCount, startVertex uint32) {
	r := s.renderables.Get(h)
	r.StartIndex = startIndex
	r.IndexCount = indexCount
	r.StartVertex = startVertex
}

func (s *Scene) SetRenderableInstanceCount(h RenderableHandle, n uint32) {
	s.renderables.Get(h).InstanceCount = n
}

// Data layouts and instances

func (s *Scene) AllocateDataLayout(fields []DataField, effect resource.Hash, h DataLayoutHandle) DataLayoutHandle {
	return s.layouts.Allocate(h, DataLayout{Fields: fields, Effect: effect})
}

func (s *Scene) ReleaseDataLayout(h DataLayoutHandle)          { s.layouts.Release(h) }
func (s *Scene) IsDataLayoutAllocated(h DataLayoutHandle) bool { return s.layouts.IsAllocated(h) }
func (s *Scene) DataLayout(h DataLayoutHandle) *DataLayout     { return s.layouts.Get(h) }

func (s *Scene) AllocateDataInstance(layout DataLayoutHandle, h DataInstanceHandle) DataInstanceHandle {
	l := s.layouts.Get(layout)
	fields := make([]fieldValue, len(l.Fields))
	for i := range fields {
		fields[i].resource.DataBuffer = InvalidDataBuffer
		fields[i].sampler = InvalidTextureSampler
	}
	return s.instances.Allocate(h, DataInstance{Layout: layout, fields: fields})
}

func (s *Scene) ReleaseDataInstance(h DataInstanceHandle)          { s.instances.Release(h) }
func (s *Scene) IsDataInstanceAllocated(h DataInstanceHandle) bool { return s.instances.IsAllocated(h) }
func (s *Scene) DataInstance(h DataInstanceHandle) *DataInstance   { return s.instances.Get(h) }
func (s *Scene) DataInstanceCount() uint32                         { return s.instances.Len() }

// EachDataInstance calls fn for every allocated data instance.
func (s *Scene) EachDataInstance(fn func(DataInstanceHandle, *DataInstance)) { s.instances.Each(fn) }

// field returns the layout field and value slot of a data instance,
// panicking when the field does not match want.
func (s *Scene) field(h DataInstanceHandle, field uint32, want func(DataType) bool) *fieldValue {
	di := s.instances.Get(h)
	l := s.layouts.Get(di.Layout)
	if int(field) >= len(l.Fields) {
		panic(fmt.Sprintf("scenegraph: data instance %d has no field %d", h, field))
	}
	if want != nil && !want(l.Fields[field].Type) {
		panic(fmt.Sprintf("scenegraph: field %d of data instance %d has type %d", field, h, l.Fields[field].Type))
	}
	return &di.fields[field]
}

func (s *Scene) SetDataResource(h DataInstanceHandle, field uint32, v ResourceField) {
	if !v.DataBuffer.IsValid() {
		v.DataBuffer = InvalidDataBuffer
	}
	s.field(h, field, DataType.IsBuffer).resource = v
}

func (s *Scene) DataResource(h DataInstanceHandle, field uint32) ResourceField {
	return s.field(h, field, DataType.IsBuffer).resource
}

func (s *Scene) SetDataTextureSampler(h DataInstanceHandle, field uint32, ts TextureSamplerHandle) {
	s.field(h, field, DataType.IsTextureSampler).sampler = ts
}

func (s *Scene) DataTextureSampler(h DataInstanceHandle, field uint32) TextureSamplerHandle {
	return s.field(h, field, DataType.IsTextureSampler).sampler
}

func isValue(t DataType) bool { return !t.IsBuffer() && !t.IsTextureSampler() }

func (s *Scene) SetDataValue(h DataInstanceHandle, field uint32, value []byte) {
	s.field(h, field, isValue).value = value
}

func (s *Scene) DataValue(h DataInstanceHandle, field uint32) []byte {
	return s.field(h, field, isValue).value
}

// Texture samplers

func (s *Scene) AllocateTextureSampler(ts TextureSampler, h TextureSamplerHandle) TextureSamplerHandle {
	return s.samplers.Allocate(h, ts)
}

func (s *Scene) ReleaseTextureSampler(h TextureSamplerHandle) { s.samplers.Release(h) }
func (s *Scene) IsTextureSamplerAllocated(h TextureSamplerHandle) bool {
	return s.samplers.IsAllocated(h)
}
func (s *Scene) TextureSampler(h TextureSamplerHandle) *TextureSampler { return s.samplers.Get(h) }
func (s *Scene) TextureSamplerCount() uint32                           { return s.samplers.Len() }

// EachTextureSampler calls fn for every allocated sampler.
func (s *Scene) EachTextureSampler(fn func(TextureSamplerHandle, *TextureSampler)) {
	s.samplers.Each(fn)
}

// Render buffers and targets

func (s *Scene) AllocateRenderBuffer(rb RenderBuffer, h RenderBufferHandle) RenderBufferHandle {
	if rb.SampleCount == 0 {
		rb.SampleCount = 1
	}
	return s.renderBuffers.Allocate(h, rb)
}

func (s *Scene) ReleaseRenderBuffer(h RenderBufferHandle) { s.renderBuffers.Release(h) }
func (s *Scene) IsRenderBufferAllocated(h RenderBufferHandle) bool {
	return s.renderBuffers.IsAllocated(h)
}
func (s *Scene) RenderBuffer(h RenderBufferHandle) *RenderBuffer { return s.renderBuffers.Get(h) }

// EachRenderBuffer calls fn for every allocated render buffer.
func (s *Scene) EachRenderBuffer(fn func(RenderBufferHandle, *RenderBuffer)) {
	s.renderBuffers.Each(fn)
}

func (s *Scene) AllocateRenderTarget(buffers []RenderBufferHandle, h RenderTargetHandle) RenderTargetHandle {
	for _, b := range buffers {
		s.renderBuffers.Get(b)
	}
	return s.renderTargets.Allocate(h, RenderTarget{Buffers: buffers})
}

func (s *Scene) ReleaseRenderTarget(h RenderTargetHandle) { s.renderTargets.Release(h) }
func (s *Scene) IsRenderTargetAllocated(h RenderTargetHandle) bool {
	return s.renderTargets.IsAllocated(h)
}
func (s *Scene) RenderTarget(h RenderTargetHandle) *RenderTarget { return s.renderTargets.Get(h) }
func (s *Scene) RenderTargetCount() uint32                       { return s.renderTargets.Len() }

// EachRenderTarget calls fn for every allocated render target.
func (s *Scene) EachRenderTarget(fn func(RenderTargetHandle, *RenderTarget)) {
	s.renderTargets.Each(fn)
}

// Passes

func (s *Scene) AllocateRenderPass(p RenderPass, h RenderPassHandle) RenderPassHandle {
	return s.renderPasses.Allocate(h, p)
}

func (s *Scene) ReleaseRenderPass(h RenderPassHandle)          { s.renderPasses.Release(h) }
func (s *Scene) IsRenderPassAllocated(h RenderPassHandle) bool { return s.renderPasses.IsAllocated(h) }
func (s *Scene) RenderPass(h RenderPassHandle) *RenderPass     { return s.renderPasses.Get(h) }

// EachRenderPass calls fn for every allocated render pass.
func (s *Scene) EachRenderPass(fn func(RenderPassHandle, *RenderPass)) { s.renderPasses.Each(fn) }

func (s *Scene) AddRenderableToRenderPass(p RenderPassHandle, r RenderableHandle) {
	s.renderables.Get(r)
	pass := s.renderPasses.Get(p)
	pass.Renderables = append(removeHandle(pass.Renderables, r), r)
}

func (s *Scene) RemoveRenderableFromRenderPass(p RenderPassHandle, r RenderableHandle) {
	pass := s.renderPasses.Get(p)
	pass.Renderables = removeHandle(pass.Renderables, r)
}

func (s *Scene) SetRenderPassEnabled(p RenderPassHandle, enabled bool) {
	s.renderPasses.Get(p).Enabled = enabled
}

func (s *Scene) AllocateBlitPass(p BlitPass, h BlitPassHandle) BlitPassHandle {
	s.renderBuffers.Get(p.Source)
	s.renderBuffers.Get(p.Destination)
	return s.blitPasses.Allocate(h, p)
}

func (s *Scene) ReleaseBlitPass(h BlitPassHandle)          { s.blitPasses.Release(h) }
func (s *Scene) IsBlitPassAllocated(h BlitPassHandle) bool { return s.blitPasses.IsAllocated(h) }
func (s *Scene) BlitPass(h BlitPassHandle) *BlitPass       { return s.blitPasses.Get(h) }
func (s *Scene) BlitPassCount() uint32                     { return s.blitPasses.Len() }

// EachBlitPass calls fn for every allocated blit pass.
func (s *Scene) EachBlitPass(fn func(BlitPassHandle, *BlitPass)) { s.blitPasses.Each(fn) }

// Data buffers

func (s *Scene) nextVersion() uint64 {
	s.version++
	return s.version
}

func (s *Scene) AllocateDataBuffer(b DataBuffer, h DataBufferHandle) DataBufferHandle {
	b.Version = s.nextVersion()
	return s.dataBuffers.Allocate(h, b)
}

// UpdateDataBuffer overwrites part of a data buffer, growing it as needed.
func (s *Scene) UpdateDataBuffer(h DataBufferHandle, offset uint32, data []byte) {
	b := s.dataBuffers.Get(h)
	end := int(offset) + len(data)
	if end > len(b.Data) {
		b.Data = append(b.Data, make([]byte, end-len(b.Data))...)
	}
	copy(b.Data[offset:], data)
	b.Version = s.nextVersion()
}

func (s *Scene) ReleaseDataBuffer(h DataBufferHandle)          { s.dataBuffers.Release(h) }
func (s *Scene) IsDataBufferAllocated(h DataBufferHandle) bool { return s.dataBuffers.IsAllocated(h) }
func (s *Scene) DataBuffer(h DataBufferHandle) *DataBuffer     { return s.dataBuffers.Get(h) }

// EachDataBuffer calls fn for every allocated data buffer.
func (s *Scene) EachDataBuffer(fn func(DataBufferHandle, *DataBuffer)) { s.dataBuffers.Each(fn) }

// Texture buffers

func (s *Scene) AllocateTextureBuffer(b TextureBuffer, h TextureBufferHandle) TextureBufferHandle {
	if len(b.Mips) == 0 {
		b.Mips = [][]byte{make([]byte, b.Width*b.Height*b.Format.TexelSize())}
	}
	b.Version = s.nextVersion()
	return s.textureBuffers.Allocate(h, b)
}

// UpdateTextureBuffer replaces the pixels of one mip level.
func (s *Scene) UpdateTextureBuffer(h TextureBufferHandle, mip uint32, data []byte) {
	b := s.textureBuffers.Get(h)
	if int(mip) >= len(b.Mips) {
		panic(fmt.Sprintf("scenegraph: texture buffer %d has no mip %d", h, mip))
	}
	b.Mips[mip] = data
	b.Version = s.nextVersion()
}

func (s *Scene) ReleaseTextureBuffer(h TextureBufferHandle) { s.textureBuffers.Release(h) }
func (s *Scene) IsTextureBufferAllocated(h TextureBufferHandle) bool {
	return s.textureBuffers.IsAllocated(h)
}
func (s *Scene) TextureBuffer(h TextureBufferHandle) *TextureBuffer { return s.textureBuffers.Get(h) }

// EachTextureBuffer calls fn for every allocated texture buffer.
func (s *Scene) EachTextureBuffer(fn func(TextureBufferHandle, *TextureBuffer)) {
	s.textureBuffers.Each(fn)
}

// Stream textures

func (s *Scene) AllocateStreamTexture(st StreamTexture, h StreamTextureHandle) StreamTextureHandle {
	return s.streamTextures.Allocate(h, st)
}

func (s *Scene) SetForceFallbackImage(h StreamTextureHandle, force bool) {
	s.streamTextures.Get(h).ForceFallback = force
}

func (s *Scene) ReleaseStreamTexture(h StreamTextureHandle) { s.streamTextures.Release(h) }
func (s *Scene) IsStreamTextureAllocated(h StreamTextureHandle) bool {
	return s.streamTextures.IsAllocated(h)
}
func (s *Scene) StreamTexture(h StreamTextureHandle) *StreamTexture { return s.streamTextures.Get(h) }

// EachStreamTexture calls fn for every allocated stream texture.
func (s *Scene) EachStreamTexture(fn func(StreamTextureHandle, *StreamTexture)) {
	s.streamTextures.Each(fn)
}

func removeHandle[H comparable](hs []H, h H) []H {
	for i, v := range hs {
		if v == h {
			return append(hs[:i], hs[i+1:]...)
		}
	}
	return hs
}
