// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package upload turns resources into device handles and back.
//
// An [Uploader] holds no per-resource state. Every handle returned by
// [Uploader.Upload] must be passed to [Uploader.Unload] exactly once.
package upload

import (
	"sync"

	"github.com/gogpu/scenery/device"
	"github.com/gogpu/scenery/internal/logging"
	"github.com/gogpu/scenery/resource"
	"github.com/gogpu/scenery/scenegraph"
)

// Device is the part of device.Device the uploader drives.
type Device interface {
	device.Buffers
	device.Textures
	device.Shaders
}

// BinaryShaderCache stores precompiled shaders across runs.
type BinaryShaderCache interface {
	// DeviceSupportsBinaryShaderFormats is called once, before the first
	// lookup, with the formats the device accepts.
	DeviceSupportsBinaryShaderFormats(formats []device.BinaryShaderFormat)
	// BinaryShader returns the cached binary for an effect.
	BinaryShader(effect resource.Hash) (device.BinaryShader, bool)
	// BinaryShaderUploaded reports whether uploading the cached binary
	// succeeded, so a broken entry can be dropped.
	BinaryShaderUploaded(effect resource.Hash, ok bool)
	// ShouldBeCached reports whether a freshly compiled effect used by
	// scene should be stored.
	ShouldBeCached(effect resource.Hash, scene scenegraph.SceneID) bool
	// StoreBinaryShader stores a compiled binary.
	StoreBinaryShader(effect resource.Hash, scene scenegraph.SceneID, bin device.BinaryShader)
}

// Uploader uploads resources to a device.
type Uploader struct {
	async   bool
	cache   BinaryShaderCache
	formats sync.Once
}

// NewUploader creates an uploader. With async set, effects missing from
// the binary cache are not compiled by Upload and must go through an
// AsyncEffectCompiler instead. cache may be nil.
func NewUploader(async bool, cache BinaryShaderCache) *Uploader {
	return &Uploader{async: async, cache: cache}
}

// AsyncEffects reports whether effect compilation is deferred.
func (u *Uploader) AsyncEffects() bool { return u.async }

// Upload creates the device resource for res. vramSize is the estimated
// device memory used. ok is false when no handle could be produced; for
// effects under asynchronous compilation that only means "not yet".
func (u *Uploader) Upload(dev Device, res *resource.Resource) (h device.Handle, vramSize uint32, ok bool) {
	vramSize = res.Size()
	var err error
	switch res.Type() {
	case resource.TypeVertexArray:
		h, err = dev.AllocateVertexBuffer(res.Size())
		if err == nil {
			err = dev.UploadVertexBufferData(h, res.Data())
		}
	case resource.TypeIndexArray:
		h, err = dev.AllocateIndexBuffer(res.ElementType(), res.Size())
		if err == nil {
			err = dev.UploadIndexBufferData(h, res.Data())
		}
	case resource.TypeTexture2D, resource.TypeTexture3D, resource.TypeTextureCube:
		h, vramSize, err = uploadTexture(dev, res)
	case resource.TypeEffect:
		if h = u.queryBinaryShaderCache(dev, res); h.IsValid() {
			return h, vramSize, true
		}
		if u.async {
			return device.Invalid, vramSize, false
		}
		var compiled *device.CompiledShader
		if compiled, err = dev.CompileShader(res); err == nil {
			h, err = dev.RegisterShader(compiled)
		}
	default:
		panic("upload: unexpected resource type " + res.Type().String())
	}
	if err != nil {
		logging.Logger().Error("upload: failed to upload resource",
			"hash", res.Hash(), "type", res.Type(), "name", res.Name(), "err", err)
		if h.IsValid() {
			u.Unload(dev, res.Type(), h)
		}
		return device.Invalid, vramSize, false
	}
	return h, vramSize, true
}

// Unload deletes a handle created by Upload for a resource of type typ.
func (u *Uploader) Unload(dev Device, typ resource.Type, h device.Handle) {
	switch typ {
	case resource.TypeVertexArray:
		dev.DeleteVertexBuffer(h)
	case resource.TypeIndexArray:
		dev.DeleteIndexBuffer(h)
	case resource.TypeTexture2D, resource.TypeTexture3D, resource.TypeTextureCube:
		dev.DeleteTexture(h)
	case resource.TypeEffect:
		dev.DeleteShader(h)
	default:
		panic("upload: unexpected resource type " + typ.String())
	}
}

func (u *Uploader) queryBinaryShaderCache(dev Device, effect *resource.Resource) device.Handle {
	if u.cache == nil {
		return device.Invalid
	}
	u.formats.Do(func() {
		u.cache.DeviceSupportsBinaryShaderFormats(dev.SupportedBinaryShaderFormats())
	})

	hash := effect.Hash()
	bin, ok := u.cache.BinaryShader(hash)
	if !ok {
		return device.Invalid
	}
	h, err := dev.UploadBinaryShader(effect, bin)
	u.cache.BinaryShaderUploaded(hash, err == nil && h.IsValid())
	if err != nil {
		logging.Logger().Warn("upload: cached binary shader rejected, compiling from source",
			"hash", hash, "format", bin.Format, "err", err)
		return device.Invalid
	}
	return h
}

// StoreShader offers the binary of a compiled effect to the cache.
func (u *Uploader) StoreShader(dev Device, h device.Handle, effect resource.Hash, scene scenegraph.SceneID) {
	if !h.IsValid() {
		panic("upload: StoreShader with invalid handle")
	}
	if u.cache == nil || !u.cache.ShouldBeCached(effect, scene) {
		return
	}
	bin, ok := dev.BinaryShader(h)
	if !ok || len(bin.Data) == 0 {
		logging.Logger().Warn("upload: device has no binary for shader, not caching",
			"handle", h, "hash", effect, "scene", scene)
		return
	}
	u.cache.StoreBinaryShader(effect, scene, bin)
}
