// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package upload

import (
	"fmt"

	"github.com/gogpu/scenery/device"
	"github.com/gogpu/scenery/resource"
)

// MipLevelCount returns the number of levels to allocate for a texture:
// the full chain when generation is requested, else the provided levels.
func MipLevelCount(desc resource.TextureDesc) uint32 {
	if desc.GenerateMipChain {
		return device.MipLevelCount(desc.Width, desc.Height, desc.Depth)
	}
	return uint32(len(desc.MipSizes))
}

// EstimateTextureSize estimates the device memory of a texture with
// levels mip levels. Compressed textures count their payload size.
func EstimateTextureSize(res *resource.Resource, levels uint32) uint32 {
	desc := res.Texture()
	if desc.Format.IsCompressed() {
		return res.Size()
	}
	texel := desc.Format.TexelSize()
	if res.Type() == resource.TypeTextureCube {
		return 6 * device.MipChainSize(texel, desc.Width, desc.Width, 1, levels)
	}
	return device.MipChainSize(texel, desc.Width, desc.Height, desc.Depth, levels)
}

func uploadTexture(dev Device, res *resource.Resource) (device.Handle, uint32, error) {
	desc := res.Texture()
	if desc.GenerateMipChain && len(desc.MipSizes) != 1 {
		panic("upload: mip generation requested with more than one provided level")
	}
	levels := MipLevelCount(desc)
	vram := EstimateTextureSize(res, levels)

	var (
		h   device.Handle
		err error
	)
	switch res.Type() {
	case resource.TypeTexture2D:
		h, err = dev.AllocateTexture2D(desc.Width, desc.Height, desc.Format, levels, vram)
	case resource.TypeTexture3D:
		h, err = dev.AllocateTexture3D(desc.Width, desc.Height, desc.Depth, desc.Format, levels, vram)
	case resource.TypeTextureCube:
		h, err = dev.AllocateTextureCube(desc.Width, desc.Format, levels, vram)
	}
	if err != nil {
		return device.Invalid, vram, fmt.Errorf("allocate %s: %w", res.Type(), err)
	}

	data := res.Data()
	next := func(size uint32) ([]byte, error) {
		if uint32(len(data)) < size {
			return nil, fmt.Errorf("texture data truncated: need %d bytes, have %d", size, len(data))
		}
		chunk := data[:size]
		data = data[size:]
		return chunk, nil
	}

	if res.Type() == resource.TypeTextureCube {
		// The face index is passed as z offset.
		for face := range uint32(6) {
			for mip, size := range desc.MipSizes {
				level := uint32(mip)
				chunk, err := next(size)
				if err != nil {
					return h, vram, err
				}
				s := device.MipSize(level, desc.Width)
				if err := dev.UploadTextureData(h, level, 0, 0, face, s, s, 1, chunk); err != nil {
					return h, vram, fmt.Errorf("upload face %d mip %d: %w", face, level, err)
				}
			}
		}
	} else {
		for mip, size := range desc.MipSizes {
			level := uint32(mip)
			chunk, err := next(size)
			if err != nil {
				return h, vram, err
			}
			w := device.MipSize(level, desc.Width)
			ht := device.MipSize(level, desc.Height)
			d := device.MipSize(level, desc.Depth)
			if err := dev.UploadTextureData(h, level, 0, 0, 0, w, ht, d, chunk); err != nil {
				return h, vram, fmt.Errorf("upload mip %d: %w", level, err)
			}
		}
	}

	if desc.GenerateMipChain {
		dev.GenerateMipmaps(h)
	}
	return h, vram, nil
}
