// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package device defines the GPU device abstraction driven by the renderer.
//
// The renderer never assumes a specific GPU API. It allocates, uploads and
// deletes resources through [Device] and refers to them by opaque [Handle]
// values. Allocation returns a valid handle or an error. Deletion must be
// called exactly once per successful allocation.
//
// A wgpu HAL implementation lives in device/haldevice, and a recording fake
// for tests in device/devicetest.
package device

import (
	"errors"

	"github.com/gogpu/scenery/resource"
)

// ErrInvalidHandle is returned when an operation refers to an unknown handle.
var ErrInvalidHandle = errors.New("device: invalid handle")

// Handle is an opaque reference into a device's resource table.
type Handle uint32

// Invalid is the "not uploaded" sentinel.
const Invalid Handle = 0

// IsValid reports whether h is not Invalid.
func (h Handle) IsValid() bool { return h != Invalid }

// CubeFace selects a cube texture face. Uploads encode it as the z offset.
type CubeFace uint32

const (
	CubeFacePositiveX CubeFace = iota
	CubeFaceNegativeX
	CubeFacePositiveY
	CubeFaceNegativeY
	CubeFacePositiveZ
	CubeFaceNegativeZ
)

// BinaryShaderFormat identifies a device-specific precompiled shader format.
type BinaryShaderFormat uint32

// BinaryShader is a precompiled shader in some device format.
type BinaryShader struct {
	Format BinaryShaderFormat
	Data   []byte
}

// CompiledShader is the output of compiling an effect. It is produced by
// CompileShader, possibly off the render goroutine, and turned into a
// handle by RegisterShader.
type CompiledShader struct {
	Effect resource.Hash
	Name   string
	SPIRV  []uint32
}

// VertexBufferBinding binds one buffer to a vertex attribute location.
type VertexBufferBinding struct {
	Buffer            Handle
	Location          uint32
	Element           resource.ElementType
	InstancingDivisor uint32
	Offset            uint16
	Stride            uint16
	StartVertex       uint32
}

// VertexArrayInfo describes a vertex array object.
type VertexArrayInfo struct {
	Shader      Handle
	IndexBuffer Handle
	Buffers     []VertexBufferBinding
}

// RenderBufferDesc describes a render buffer.
type RenderBufferDesc struct {
	Width       uint32
	Height      uint32
	Format      resource.TextureFormat
	SampleCount uint32
}

// Rect is a pixel rectangle.
type Rect struct {
	X, Y          uint32
	Width, Height uint32
}

// ClearFlags selects which attachments Clear touches.
type ClearFlags uint8

const (
	ClearColor ClearFlags = 1 << iota
	ClearDepth
	ClearStencil

	ClearAll = ClearColor | ClearDepth | ClearStencil
)

// Buffers allocates and fills vertex and index buffers.
type Buffers interface {
	AllocateVertexBuffer(size uint32) (Handle, error)
	UploadVertexBufferData(h Handle, data []byte) error
	DeleteVertexBuffer(h Handle)

	AllocateIndexBuffer(element resource.ElementType, size uint32) (Handle, error)
	UploadIndexBufferData(h Handle, data []byte) error
	DeleteIndexBuffer(h Handle)
}

// Textures allocates and fills textures.
type Textures interface {
	AllocateTexture2D(width, height uint32, format resource.TextureFormat, mipLevels, vramSize uint32) (Handle, error)
	AllocateTexture3D(width, height, depth uint32, format resource.TextureFormat, mipLevels, vramSize uint32) (Handle, error)
	AllocateTextureCube(faceSize uint32, format resource.TextureFormat, mipLevels, vramSize uint32) (Handle, error)
	UploadTextureData(h Handle, mipLevel, x, y, z, width, height, depth uint32, data []byte) error
	GenerateMipmaps(h Handle)
	DeleteTexture(h Handle)
}

// Shaders compiles and registers effects.
type Shaders interface {
	// CompileShader may be called from any goroutine.
	CompileShader(effect *resource.Resource) (*CompiledShader, error)
	RegisterShader(s *CompiledShader) (Handle, error)
	UploadBinaryShader(effect *resource.Resource, bin BinaryShader) (Handle, error)
	BinaryShader(h Handle) (BinaryShader, bool)
	SupportedBinaryShaderFormats() []BinaryShaderFormat
	DeleteShader(h Handle)
}

// Targets manages vertex arrays, render buffers and render targets.
type Targets interface {
	AllocateVertexArray(info VertexArrayInfo) (Handle, error)
	DeleteVertexArray(h Handle)

	UploadRenderBuffer(desc RenderBufferDesc) (Handle, error)
	DeleteRenderBuffer(h Handle)
	UploadRenderTarget(buffers []Handle) (Handle, error)
	DeleteRenderTarget(h Handle)

	// Framebuffer returns the render target of the display itself.
	Framebuffer() Handle
	// EmptyExternalTexture returns a shared placeholder for unbound
	// external textures.
	EmptyExternalTexture() Handle
}

// Drawer issues frame commands.
type Drawer interface {
	ActivateRenderTarget(h Handle)
	Clear(flags ClearFlags, color [4]float32)
	ActivateShader(h Handle)
	ActivateTexture(h Handle, slot uint32)
	ActivateVertexArray(h Handle)
	SetUniform(location uint32, data []byte)
	DrawIndexed(startIndex, indexCount, instanceCount uint32)
	DrawArrays(startVertex, vertexCount, instanceCount uint32)
	BlitRenderTargets(src, dst Handle, srcRect, dstRect Rect)
	ReadPixels(rect Rect) ([]byte, error)
	Submit() error
}

// Stats reports device statistics.
type Stats interface {
	DrawCallsAndReset() uint32
	GPUMemoryUsage() uint64
}

// Device is the full device abstraction.
type Device interface {
	Buffers
	Textures
	Shaders
	Targets
	Drawer
	Stats
}
