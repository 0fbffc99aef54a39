// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

// TextureDesc describes the layout of a texture resource payload.
//
// Data holds the mip levels back to back, largest first. Cube textures
// repeat that sequence once per face in +X, -X, +Y, -Y, +Z, -Z order.
type TextureDesc struct {
	Width  uint32
	Height uint32
	Depth  uint32
	Format TextureFormat

	// MipSizes holds the byte size of each provided mip level of one face.
	MipSizes []uint32

	// GenerateMipChain requests the full mip chain to be generated on the
	// device. Only valid with a single provided level.
	GenerateMipChain bool
}

// EffectDesc describes an effect resource.
type EffectDesc struct {
	// Source is WGSL shader text holding both stages.
	Source        string
	VertexEntry   string
	FragmentEntry string
}

// Resource is an immutable content-addressed blob.
// Construct resources with the New* functions; they compute the hash.
type Resource struct {
	typ  Type
	name string
	hash Hash
	data []byte

	element      ElementType
	elementCount uint32

	texture TextureDesc
	effect  EffectDesc
}

// NewArray creates a vertex or index array resource.
func NewArray(typ Type, element ElementType, data []byte, name string) *Resource {
	if typ != TypeVertexArray && typ != TypeIndexArray {
		panic("resource: NewArray requires an array type, got " + typ.String())
	}
	r := &Resource{typ: typ, name: name, data: data, element: element}
	if s := element.Size(); s > 0 {
		r.elementCount = uint32(len(data)) / s
	}
	r.hash = r.computeHash()
	return r
}

// NewTexture creates a texture resource. Data must hold every provided
// mip level, and every face for cube textures, as described by desc.
func NewTexture(typ Type, desc TextureDesc, data []byte, name string) *Resource {
	if !typ.IsTexture() {
		panic("resource: NewTexture requires a texture type, got " + typ.String())
	}
	if desc.Depth == 0 {
		desc.Depth = 1
	}
	if len(desc.MipSizes) == 0 {
		desc.MipSizes = []uint32{uint32(len(data))}
		if typ == TypeTextureCube {
			desc.MipSizes[0] /= 6
		}
	}
	r := &Resource{typ: typ, name: name, data: data, texture: desc}
	r.hash = r.computeHash()
	return r
}

// NewEffect creates an effect resource from WGSL source.
func NewEffect(desc EffectDesc, name string) *Resource {
	r := &Resource{typ: TypeEffect, name: name, data: []byte(desc.Source), effect: desc}
	r.hash = r.computeHash()
	return r
}

func (r *Resource) computeHash() Hash {
	b := newHashBuilder()
	b.u32(uint32(r.typ))
	switch {
	case r.typ == TypeVertexArray || r.typ == TypeIndexArray:
		b.u32(uint32(r.element))
	case r.typ.IsTexture():
		t := r.texture
		b.u32(t.Width)
		b.u32(t.Height)
		b.u32(t.Depth)
		b.u32(uint32(t.Format))
		if t.GenerateMipChain {
			b.u32(1)
		} else {
			b.u32(0)
		}
		for _, s := range t.MipSizes {
			b.u32(s)
		}
	case r.typ == TypeEffect:
		b.bytes([]byte(r.effect.VertexEntry))
		b.bytes([]byte(r.effect.FragmentEntry))
	}
	b.bytes(r.data)
	return b.hash()
}

// Type returns the resource type.
func (r *Resource) Type() Type { return r.typ }

// Name returns the debug name given at construction.
func (r *Resource) Name() string { return r.name }

// Hash returns the content hash.
func (r *Resource) Hash() Hash { return r.hash }

// Data returns the decompressed payload. Callers must not modify it.
func (r *Resource) Data() []byte { return r.data }

// Size returns the decompressed payload size in bytes.
func (r *Resource) Size() uint32 { return uint32(len(r.data)) }

// ElementType returns the element type of array resources.
func (r *Resource) ElementType() ElementType { return r.element }

// ElementCount returns the number of elements of array resources.
func (r *Resource) ElementCount() uint32 { return r.elementCount }

// Texture returns the texture description. Zero for non-textures.
func (r *Resource) Texture() TextureDesc { return r.texture }

// Effect returns the effect description. Zero for non-effects.
func (r *Resource) Effect() EffectDesc { return r.effect }
