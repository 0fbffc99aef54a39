// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

// Type identifies the kind of a resource.
type Type uint8

const (
	TypeInvalid     Type = iota // Zero value
	TypeVertexArray             // Vertex attribute data
	TypeIndexArray              // Index data
	TypeTexture2D               // 2D texture with optional mip levels
	TypeTexture3D               // Volume texture
	TypeTextureCube             // Six square faces
	TypeEffect                  // Shader program source
)

var typeNames = [...]string{
	TypeInvalid:     "Invalid",
	TypeVertexArray: "VertexArray",
	TypeIndexArray:  "IndexArray",
	TypeTexture2D:   "Texture2D",
	TypeTexture3D:   "Texture3D",
	TypeTextureCube: "TextureCube",
	TypeEffect:      "Effect",
}

// String returns the name of the resource type.
func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// IsTexture reports whether t is one of the texture types.
func (t Type) IsTexture() bool {
	return t == TypeTexture2D || t == TypeTexture3D || t == TypeTextureCube
}

// ElementType is the element type of array resources.
type ElementType uint8

const (
	ElementInvalid ElementType = iota
	ElementUint16
	ElementUint32
	ElementFloat
	ElementVector2F
	ElementVector3F
	ElementVector4F
	ElementByteBlob
)

var elementSizes = [...]uint32{
	ElementInvalid:  0,
	ElementUint16:   2,
	ElementUint32:   4,
	ElementFloat:    4,
	ElementVector2F: 8,
	ElementVector3F: 12,
	ElementVector4F: 16,
	ElementByteBlob: 1,
}

// Size returns the size of one element in bytes.
func (e ElementType) Size() uint32 {
	if int(e) < len(elementSizes) {
		return elementSizes[e]
	}
	return 0
}

// TextureFormat is the texel format of a texture resource.
type TextureFormat uint8

const (
	FormatInvalid TextureFormat = iota
	FormatR8
	FormatRG8
	FormatRGB8
	FormatRGBA8
	FormatSRGB8Alpha8
	FormatBGRA8
	FormatR16F
	FormatR32F
	FormatRG32F
	FormatRGBA16F
	FormatRGBA32F
	FormatDepth24Stencil8

	// Compressed formats. Their GPU footprint equals the payload size.
	FormatETC2RGB
	FormatETC2RGBA
	FormatASTC4x4
	FormatBC1
	FormatBC3
)

type formatInfo struct {
	name       string
	texelSize  uint32
	compressed bool
}

var formatInfos = [...]formatInfo{
	FormatInvalid:         {"Invalid", 0, false},
	FormatR8:              {"R8", 1, false},
	FormatRG8:             {"RG8", 2, false},
	FormatRGB8:            {"RGB8", 3, false},
	FormatRGBA8:           {"RGBA8", 4, false},
	FormatSRGB8Alpha8:     {"SRGB8Alpha8", 4, false},
	FormatBGRA8:           {"BGRA8", 4, false},
	FormatR16F:            {"R16F", 2, false},
	FormatR32F:            {"R32F", 4, false},
	FormatRG32F:           {"RG32F", 8, false},
	FormatRGBA16F:         {"RGBA16F", 8, false},
	FormatRGBA32F:         {"RGBA32F", 16, false},
	FormatDepth24Stencil8: {"Depth24Stencil8", 4, false},
	FormatETC2RGB:         {"ETC2RGB", 0, true},
	FormatETC2RGBA:        {"ETC2RGBA", 0, true},
	FormatASTC4x4:         {"ASTC4x4", 0, true},
	FormatBC1:             {"BC1", 0, true},
	FormatBC3:             {"BC3", 0, true},
}

func (f TextureFormat) info() formatInfo {
	if int(f) < len(formatInfos) {
		return formatInfos[f]
	}
	return formatInfos[FormatInvalid]
}

// String returns the name of the format.
func (f TextureFormat) String() string { return f.info().name }

// TexelSize returns bytes per texel. Compressed formats return 0.
func (f TextureFormat) TexelSize() uint32 { return f.info().texelSize }

// IsCompressed reports whether f is a block-compressed format.
func (f TextureFormat) IsCompressed() bool { return f.info().compressed }
