// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package scenegraph

import "github.com/gogpu/scenery/resource"

// Mutator is the set of scene mutations a flush can carry. Both Scene and
// wrappers that track state on top of a scene implement it.
type Mutator interface {
	Preallocate(size SizeInfo)

	AllocateRenderable(h RenderableHandle) RenderableHandle
	ReleaseRenderable(h RenderableHandle)
	SetRenderableDataInstance(h RenderableHandle, slot DataSlot, di DataInstanceHandle)
	SetRenderableVisibility(h RenderableHandle, v Visibility)
	SetRenderableIndexRange(h RenderableHandle, startIndex, indexCount, startVertex uint32)
	SetRenderableInstanceCount(h RenderableHandle, n uint32)

	AllocateDataLayout(fields []DataField, effect resource.Hash, h DataLayoutHandle) DataLayoutHandle
	ReleaseDataLayout(h DataLayoutHandle)
	AllocateDataInstance(layout DataLayoutHandle, h DataInstanceHandle) DataInstanceHandle
	ReleaseDataInstance(h DataInstanceHandle)
	SetDataResource(h DataInstanceHandle, field uint32, v ResourceField)
	SetDataTextureSampler(h DataInstanceHandle, field uint32, ts TextureSamplerHandle)
	SetDataValue(h DataInstanceHandle, field uint32, value []byte)

	AllocateTextureSampler(ts TextureSampler, h TextureSamplerHandle) TextureSamplerHandle
	ReleaseTextureSampler(h TextureSamplerHandle)

	AllocateRenderBuffer(rb RenderBuffer, h RenderBufferHandle) RenderBufferHandle
	ReleaseRenderBuffer(h RenderBufferHandle)
	AllocateRenderTarget(buffers []RenderBufferHandle, h RenderTargetHandle) RenderTargetHandle
	ReleaseRenderTarget(h RenderTargetHandle)

	AllocateRenderPass(p RenderPass, h RenderPassHandle) RenderPassHandle
	ReleaseRenderPass(h RenderPassHandle)
	AddRenderableToRenderPass(p RenderPassHandle, r RenderableHandle)
	RemoveRenderableFromRenderPass(p RenderPassHandle, r RenderableHandle)
	SetRenderPassEnabled(p RenderPassHandle, enabled bool)
	AllocateBlitPass(p BlitPass, h BlitPassHandle) BlitPassHandle
	ReleaseBlitPass(h BlitPassHandle)

	AllocateDataBuffer(b DataBuffer, h DataBufferHandle) DataBufferHandle
	UpdateDataBuffer(h DataBufferHandle, offset uint32, data []byte)
	ReleaseDataBuffer(h DataBufferHandle)
	AllocateTextureBuffer(b TextureBuffer, h TextureBufferHandle) TextureBufferHandle
	UpdateTextureBuffer(h TextureBufferHandle, mip uint32, data []byte)
	ReleaseTextureBuffer(h TextureBufferHandle)

	AllocateStreamTexture(st StreamTexture, h StreamTextureHandle) StreamTextureHandle
	SetForceFallbackImage(h StreamTextureHandle, force bool)
	ReleaseStreamTexture(h StreamTextureHandle)
}

var _ Mutator = (*Scene)(nil)

// Action is one recorded scene mutation. The set of actions is closed;
// ApplyActions replays them against a Mutator.
type Action interface {
	apply(m Mutator)
}

// ApplyActions replays actions in order.
func ApplyActions(m Mutator, actions []Action) {
	for _, a := range actions {
		a.apply(m)
	}
}

type (
	AllocateRenderable        struct{ Handle RenderableHandle }
	ReleaseRenderable         struct{ Handle RenderableHandle }
	SetRenderableDataInstance struct {
		Renderable RenderableHandle
		Slot       DataSlot
		Instance   DataInstanceHandle
	}
	SetRenderableVisibility struct {
		Renderable RenderableHandle
		Visibility Visibility
	}
	SetRenderableIndexRange struct {
		Renderable  RenderableHandle
		StartIndex  uint32
		IndexCount  uint32
		StartVertex uint32
	}
	SetRenderableInstanceCount struct {
		Renderable RenderableHandle
		Count      uint32
	}
)

func (a AllocateRenderable) apply(m Mutator) { m.AllocateRenderable(a.Handle) }
func (a ReleaseRenderable) apply(m Mutator)  { m.ReleaseRenderable(a.Handle) }
func (a SetRenderableDataInstance) apply(m Mutator) {
	m.SetRenderableDataInstance(a.Renderable, a.Slot, a.Instance)
}
func (a SetRenderableVisibility) apply(m Mutator) {
	m.SetRenderableVisibility(a.Renderable, a.Visibility)
}
func (a SetRenderableIndexRange) apply(m Mutator) {
	m.SetRenderableIndexRange(a.Renderable, a.StartIndex, a.IndexCount, a.StartVertex)
}
func (a SetRenderableInstanceCount) apply(m Mutator) {
	m.SetRenderableInstanceCount(a.Renderable, a.Count)
}

type (
	AllocateDataLayout struct {
		Handle DataLayoutHandle
		Fields []DataField
		Effect resource.Hash
	}
	ReleaseDataLayout    struct{ Handle DataLayoutHandle }
	AllocateDataInstance struct {
		Handle DataInstanceHandle
		Layout DataLayoutHandle
	}
	ReleaseDataInstance struct{ Handle DataInstanceHandle }
	SetDataResource     struct {
		Instance DataInstanceHandle
		Field    uint32
		Value    ResourceField
	}
	SetDataTextureSampler struct {
		Instance DataInstanceHandle
		Field    uint32
		Sampler  TextureSamplerHandle
	}
	SetDataValue struct {
		Instance DataInstanceHandle
		Field    uint32
		Value    []byte
	}
)

func (a AllocateDataLayout) apply(m Mutator)   { m.AllocateDataLayout(a.Fields, a.Effect, a.Handle) }
func (a ReleaseDataLayout) apply(m Mutator)    { m.ReleaseDataLayout(a.Handle) }
func (a AllocateDataInstance) apply(m Mutator) { m.AllocateDataInstance(a.Layout, a.Handle) }
func (a ReleaseDataInstance) apply(m Mutator)  { m.ReleaseDataInstance(a.Handle) }
func (a SetDataResource) apply(m Mutator)      { m.SetDataResource(a.Instance, a.Field, a.Value) }
func (a SetDataTextureSampler) apply(m Mutator) {
	m.SetDataTextureSampler(a.Instance, a.Field, a.Sampler)
}
func (a SetDataValue) apply(m Mutator) { m.SetDataValue(a.Instance, a.Field, a.Value) }

type (
	AllocateTextureSampler struct {
		Handle  TextureSamplerHandle
		Sampler TextureSampler
	}
	ReleaseTextureSampler struct{ Handle TextureSamplerHandle }
	AllocateRenderBuffer  struct {
		Handle RenderBufferHandle
		Buffer RenderBuffer
	}
	ReleaseRenderBuffer  struct{ Handle RenderBufferHandle }
	AllocateRenderTarget struct {
		Handle  RenderTargetHandle
		Buffers []RenderBufferHandle
	}
	ReleaseRenderTarget struct{ Handle RenderTargetHandle }
)

func (a AllocateTextureSampler) apply(m Mutator) { m.AllocateTextureSampler(a.Sampler, a.Handle) }
func (a ReleaseTextureSampler) apply(m Mutator)  { m.ReleaseTextureSampler(a.Handle) }
func (a AllocateRenderBuffer) apply(m Mutator)   { m.AllocateRenderBuffer(a.Buffer, a.Handle) }
func (a ReleaseRenderBuffer) apply(m Mutator)    { m.ReleaseRenderBuffer(a.Handle) }
func (a AllocateRenderTarget) apply(m Mutator)   { m.AllocateRenderTarget(a.Buffers, a.Handle) }
func (a ReleaseRenderTarget) apply(m Mutator)    { m.ReleaseRenderTarget(a.Handle) }

type (
	AllocateRenderPass struct {
		Handle RenderPassHandle
		Pass   RenderPass
	}
	ReleaseRenderPass         struct{ Handle RenderPassHandle }
	AddRenderableToRenderPass struct {
		Pass       RenderPassHandle
		Renderable RenderableHandle
	}
	RemoveRenderableFromRenderPass struct {
		Pass       RenderPassHandle
		Renderable RenderableHandle
	}
	SetRenderPassEnabled struct {
		Pass    RenderPassHandle
		Enabled bool
	}
	AllocateBlitPass struct {
		Handle BlitPassHandle
		Pass   BlitPass
	}
	ReleaseBlitPass struct{ Handle BlitPassHandle }
)

func (a AllocateRenderPass) apply(m Mutator) { m.AllocateRenderPass(a.Pass, a.Handle) }
func (a ReleaseRenderPass) apply(m Mutator)  { m.ReleaseRenderPass(a.Handle) }
func (a AddRenderableToRenderPass) apply(m Mutator) {
	m.AddRenderableToRenderPass(a.Pass, a.Renderable)
}
func (a RemoveRenderableFromRenderPass) apply(m Mutator) {
	m.RemoveRenderableFromRenderPass(a.Pass, a.Renderable)
}
func (a SetRenderPassEnabled) apply(m Mutator) { m.SetRenderPassEnabled(a.Pass, a.Enabled) }
func (a AllocateBlitPass) apply(m Mutator)     { m.AllocateBlitPass(a.Pass, a.Handle) }
func (a ReleaseBlitPass) apply(m Mutator)      { m.ReleaseBlitPass(a.Handle) }

type (
	AllocateDataBuffer struct {
		Handle DataBufferHandle
		Buffer DataBuffer
	}
	UpdateDataBuffer struct {
		Handle DataBufferHandle
		Offset uint32
		Data   []byte
	}
	ReleaseDataBuffer     struct{ Handle DataBufferHandle }
	AllocateTextureBuffer struct {
		Handle TextureBufferHandle
		Buffer TextureBuffer
	}
	UpdateTextureBuffer struct {
		Handle TextureBufferHandle
		Mip    uint32
		Data   []byte
	}
	ReleaseTextureBuffer  struct{ Handle TextureBufferHandle }
	AllocateStreamTexture struct {
		Handle  StreamTextureHandle
		Texture StreamTexture
	}
	SetForceFallbackImage struct {
		Handle StreamTextureHandle
		Force  bool
	}
	ReleaseStreamTexture struct{ Handle StreamTextureHandle }
)

func (a AllocateDataBuffer) apply(m Mutator)    { m.AllocateDataBuffer(a.Buffer, a.Handle) }
func (a UpdateDataBuffer) apply(m Mutator)      { m.UpdateDataBuffer(a.Handle, a.Offset, a.Data) }
func (a ReleaseDataBuffer) apply(m Mutator)     { m.ReleaseDataBuffer(a.Handle) }
func (a AllocateTextureBuffer) apply(m Mutator) { m.AllocateTextureBuffer(a.Buffer, a.Handle) }
func (a UpdateTextureBuffer) apply(m Mutator)   { m.UpdateTextureBuffer(a.Handle, a.Mip, a.Data) }
func (a ReleaseTextureBuffer) apply(m Mutator)  { m.ReleaseTextureBuffer(a.Handle) }
func (a AllocateStreamTexture) apply(m Mutator) { m.AllocateStreamTexture(a.Texture, a.Handle) }
func (a SetForceFallbackImage) apply(m Mutator) { m.SetForceFallbackImage(a.Handle, a.Force) }
func (a ReleaseStreamTexture) apply(m Mutator)  { m.ReleaseStreamTexture(a.Handle) }
