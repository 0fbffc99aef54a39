// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package scenegraph

import (
	"github.com/gogpu/scenery/device"
	"github.com/gogpu/scenery/resource"
)

// Visibility controls whether a renderable is drawn and resolved.
// Off renderables are neither drawn nor have their resources resolved.
type Visibility uint8

const (
	VisibilityOff Visibility = iota
	VisibilityInvisible
	VisibilityVisible
)

func (v Visibility) String() string {
	switch v {
	case VisibilityOff:
		return "Off"
	case VisibilityInvisible:
		return "Invisible"
	case VisibilityVisible:
		return "Visible"
	}
	return "Unknown"
}

// DataSlot selects one of a renderable's data instances.
type DataSlot uint8

const (
	SlotGeometry DataSlot = iota
	SlotUniforms

	slotCount
)

// Renderable is a drawable scene entity.
type Renderable struct {
	DataInstances [slotCount]DataInstanceHandle
	Visibility    Visibility
	StartIndex    uint32
	IndexCount    uint32
	StartVertex   uint32
	InstanceCount uint32
}

// DataType is the type of a data layout field.
type DataType uint8

const (
	DataTypeInvalid DataType = iota
	DataTypeFloat
	DataTypeInt32
	DataTypeVector2F
	DataTypeVector3F
	DataTypeVector4F
	DataTypeMatrix44F

	// Buffer types, bound to a resource or a data buffer.
	DataTypeIndices
	DataTypeFloatBuffer
	DataTypeVector2Buffer
	DataTypeVector3Buffer
	DataTypeVector4Buffer
	DataTypeByteBlob

	// Texture sampler types, bound to a texture sampler handle.
	DataTypeTextureSampler2D
	DataTypeTextureSampler2DMS
	DataTypeTextureSampler3D
	DataTypeTextureSamplerCube
	DataTypeTextureSamplerExternal
)

// IsBuffer reports whether fields of this type hold a ResourceField.
func (t DataType) IsBuffer() bool {
	return t >= DataTypeIndices && t <= DataTypeByteBlob
}

// IsTextureSampler reports whether fields of this type hold a texture
// sampler handle.
func (t DataType) IsTextureSampler() bool {
	return t >= DataTypeTextureSampler2D && t <= DataTypeTextureSamplerExternal
}

// ElementType returns the vertex element type of a buffer type.
func (t DataType) ElementType() resource.ElementType {
	switch t {
	case DataTypeIndices:
		return resource.ElementUint16
	case DataTypeFloatBuffer:
		return resource.ElementFloat
	case DataTypeVector2Buffer:
		return resource.ElementVector2F
	case DataTypeVector3Buffer:
		return resource.ElementVector3F
	case DataTypeVector4Buffer:
		return resource.ElementVector4F
	case DataTypeByteBlob:
		return resource.ElementByteBlob
	}
	return resource.ElementInvalid
}

// DataField describes one field of a data layout.
type DataField struct {
	Type         DataType
	ElementCount uint32
}

// DataLayout is the schema shared by data instances.
type DataLayout struct {
	Fields []DataField
	// Effect is the effect drawn with geometry of this layout.
	Effect resource.Hash
}

// IsGeometry reports whether the layout describes geometry. Geometry
// layouts always start with an indices field, used or not.
func (l *DataLayout) IsGeometry() bool {
	return len(l.Fields) > 0 && l.Fields[0].Type == DataTypeIndices
}

// ResourceField is the value of a buffer field: either a resource hash or
// a scene data buffer.
type ResourceField struct {
	Hash              resource.Hash
	DataBuffer        DataBufferHandle
	InstancingDivisor uint32
	Offset            uint16
	Stride            uint16
}

// IsSet reports whether the field refers to anything.
func (f ResourceField) IsSet() bool {
	return f.Hash.IsValid() || f.DataBuffer.IsValid()
}

type fieldValue struct {
	resource ResourceField
	sampler  TextureSamplerHandle
	value    []byte
}

// DataInstance holds values for the fields of a layout.
type DataInstance struct {
	Layout DataLayoutHandle
	fields []fieldValue
}

// ContentType is what a texture sampler samples from.
type ContentType uint8

const (
	ContentNone ContentType = iota
	ContentClientTexture
	ContentTextureBuffer
	ContentRenderBuffer
	ContentRenderBufferMS
	ContentStreamTexture
	ContentOffscreenBuffer
	ContentStreamBuffer
	ContentExternalTexture
)

func (c ContentType) String() string {
	switch c {
	case ContentClientTexture:
		return "ClientTexture"
	case ContentTextureBuffer:
		return "TextureBuffer"
	case ContentRenderBuffer:
		return "RenderBuffer"
	case ContentRenderBufferMS:
		return "RenderBufferMS"
	case ContentStreamTexture:
		return "StreamTexture"
	case ContentOffscreenBuffer:
		return "OffscreenBuffer"
	case ContentStreamBuffer:
		return "StreamBuffer"
	case ContentExternalTexture:
		return "ExternalTexture"
	}
	return "None"
}

// Filter and Wrap are sampler states.
type (
	Filter uint8
	Wrap   uint8
)

const (
	FilterNearest Filter = iota
	FilterLinear
	FilterTrilinear
)

const (
	WrapClamp Wrap = iota
	WrapRepeat
	WrapMirror
)

// SamplerStates are the filtering and addressing states of a sampler.
type SamplerStates struct {
	MinFilter Filter
	MagFilter Filter
	WrapU     Wrap
	WrapV     Wrap
	WrapR     Wrap
}

// TextureSampler binds a texture source to sampler states.
// ContentHandle is interpreted according to ContentType; for
// ContentClientTexture the source is Texture.
type TextureSampler struct {
	States        SamplerStates
	ContentType   ContentType
	Texture       resource.Hash
	ContentHandle uint32
}

// RenderBufferType is the attachment kind of a render buffer.
type RenderBufferType uint8

const (
	RenderBufferColor RenderBufferType = iota
	RenderBufferDepth
	RenderBufferDepthStencil
)

// RenderBuffer is a scene-owned attachment.
type RenderBuffer struct {
	Width       uint32
	Height      uint32
	Type        RenderBufferType
	Format      resource.TextureFormat
	SampleCount uint32
}

// RenderTarget groups render buffers.
type RenderTarget struct {
	Buffers []RenderBufferHandle
}

// RenderPass draws renderables into a render target, or into the
// display framebuffer when Target is invalid.
type RenderPass struct {
	Target      RenderTargetHandle
	Order       int32
	Enabled     bool
	ClearFlags  device.ClearFlags
	ClearColor  [4]float32
	Renderables []RenderableHandle
}

// BlitPass copies a region between render buffers.
type BlitPass struct {
	Source      RenderBufferHandle
	Destination RenderBufferHandle
	SourceRect  device.Rect
	DestRect    device.Rect
	Order       int32
	Enabled     bool
}

// DataBufferType is the usage of a data buffer.
type DataBufferType uint8

const (
	DataBufferIndex DataBufferType = iota
	DataBufferVertex
)

// DataBuffer is a scene-owned, client-updatable vertex or index buffer.
type DataBuffer struct {
	Type    DataBufferType
	Element resource.ElementType
	Data    []byte
	// Version changes on every allocation and update. Versions are unique
	// within a scene, so a buffer released and allocated again in the same
	// slot never matches its predecessor.
	Version uint64
}

// TextureBuffer is a scene-owned, client-updatable texture.
type TextureBuffer struct {
	Format  resource.TextureFormat
	Width   uint32
	Height  uint32
	Mips    [][]byte
	Version uint64
}

// StreamTexture samples an embedded compositing source, falling back to
// a client texture while the source is unavailable.
type StreamTexture struct {
	Source        uint32
	Fallback      resource.Hash
	ForceFallback bool
}

// SizeInfo is the number of slots of each scene arena.
type SizeInfo struct {
	Renderables     uint32
	DataLayouts     uint32
	DataInstances   uint32
	TextureSamplers uint32
	RenderBuffers   uint32
	RenderTargets   uint32
	RenderPasses    uint32
	BlitPasses      uint32
	DataBuffers     uint32
	TextureBuffers  uint32
	StreamTextures  uint32
}

// Max returns the per-field maximum of a and b.
func (a SizeInfo) Max(b SizeInfo) SizeInfo {
	return SizeInfo{
		Renderables:     max(a.Renderables, b.Renderables),
		DataLayouts:     max(a.DataLayouts, b.DataLayouts),
		DataInstances:   max(a.DataInstances, b.DataInstances),
		TextureSamplers: max(a.TextureSamplers, b.TextureSamplers),
		RenderBuffers:   max(a.RenderBuffers, b.RenderBuffers),
		RenderTargets:   max(a.RenderTargets, b.RenderTargets),
		RenderPasses:    max(a.RenderPasses, b.RenderPasses),
		BlitPasses:      max(a.BlitPasses, b.BlitPasses),
		DataBuffers:     max(a.DataBuffers, b.DataBuffers),
		TextureBuffers:  max(a.TextureBuffers, b.TextureBuffers),
		StreamTextures:  max(a.StreamTextures, b.StreamTextures),
	}
}
