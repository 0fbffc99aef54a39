// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package scenegraph

import "strconv"

// InvalidHandle is the value of every invalid scene handle.
const InvalidHandle = ^uint32(0)

// SceneID identifies a scene across clients and displays.
type SceneID uint64

func (id SceneID) String() string { return strconv.FormatUint(uint64(id), 10) }

// Handles into the scene arenas.
type (
	RenderableHandle     uint32
	DataLayoutHandle     uint32
	DataInstanceHandle   uint32
	TextureSamplerHandle uint32
	RenderBufferHandle   uint32
	RenderTargetHandle   uint32
	RenderPassHandle     uint32
	BlitPassHandle       uint32
	DataBufferHandle     uint32
	TextureBufferHandle  uint32
	StreamTextureHandle  uint32
)

// Handles of display-level buffers that scenes can sample from.
type (
	OffscreenBufferHandle uint32
	StreamBufferHandle    uint32
	ExternalBufferHandle  uint32
)

// Invalid handle values.
const (
	InvalidRenderable      = RenderableHandle(InvalidHandle)
	InvalidDataLayout      = DataLayoutHandle(InvalidHandle)
	InvalidDataInstance    = DataInstanceHandle(InvalidHandle)
	InvalidTextureSampler  = TextureSamplerHandle(InvalidHandle)
	InvalidRenderBuffer    = RenderBufferHandle(InvalidHandle)
	InvalidRenderTarget    = RenderTargetHandle(InvalidHandle)
	InvalidRenderPass      = RenderPassHandle(InvalidHandle)
	InvalidBlitPass        = BlitPassHandle(InvalidHandle)
	InvalidDataBuffer      = DataBufferHandle(InvalidHandle)
	InvalidTextureBuffer   = TextureBufferHandle(InvalidHandle)
	InvalidStreamTexture   = StreamTextureHandle(InvalidHandle)
	InvalidOffscreenBuffer = OffscreenBufferHandle(InvalidHandle)
	InvalidStreamBuffer    = StreamBufferHandle(InvalidHandle)
	InvalidExternalBuffer  = ExternalBufferHandle(InvalidHandle)
)

func (h RenderableHandle) IsValid() bool      { return uint32(h) != InvalidHandle }
func (h DataLayoutHandle) IsValid() bool      { return uint32(h) != InvalidHandle }
func (h DataInstanceHandle) IsValid() bool    { return uint32(h) != InvalidHandle }
func (h TextureSamplerHandle) IsValid() bool  { return uint32(h) != InvalidHandle }
func (h RenderBufferHandle) IsValid() bool    { return uint32(h) != InvalidHandle }
func (h RenderTargetHandle) IsValid() bool    { return uint32(h) != InvalidHandle }
func (h RenderPassHandle) IsValid() bool      { return uint32(h) != InvalidHandle }
func (h BlitPassHandle) IsValid() bool        { return uint32(h) != InvalidHandle }
func (h DataBufferHandle) IsValid() bool      { return uint32(h) != InvalidHandle }
func (h TextureBufferHandle) IsValid() bool   { return uint32(h) != InvalidHandle }
func (h StreamTextureHandle) IsValid() bool   { return uint32(h) != InvalidHandle }
func (h OffscreenBufferHandle) IsValid() bool { return uint32(h) != InvalidHandle }
func (h StreamBufferHandle) IsValid() bool    { return uint32(h) != InvalidHandle }
func (h ExternalBufferHandle) IsValid() bool  { return uint32(h) != InvalidHandle }
