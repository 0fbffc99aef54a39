// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package devicetest provides a recording in-memory device for tests.
package devicetest

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gogpu/scenery/device"
	"github.com/gogpu/scenery/resource"
)

// ErrCompile is returned by CompileShader when FailCompile is set.
var ErrCompile = errors.New("devicetest: shader compile failed")

// Device is a device.Device that hands out sequential handles and records
// every call by name. It is safe for concurrent use.
type Device struct {
	mu      sync.Mutex
	next    device.Handle
	calls   []string
	live    map[device.Handle]string
	sizes   map[device.Handle]uint64
	binary  map[device.Handle]device.BinaryShader
	memory  uint64
	draws   uint32
	pixels  []byte
	fbuffer device.Handle
	empty   device.Handle

	// FailCompile makes CompileShader fail.
	FailCompile bool
	// RejectBinary makes UploadBinaryShader return an error.
	RejectBinary bool
	// BinaryFormats is reported by SupportedBinaryShaderFormats.
	BinaryFormats []device.BinaryShaderFormat
}

// New creates a recording device with a framebuffer and an empty external
// texture already allocated.
func New() *Device {
	d := &Device{
		next:   1,
		live:   make(map[device.Handle]string),
		sizes:  make(map[device.Handle]uint64),
		binary: make(map[device.Handle]device.BinaryShader),
	}
	d.fbuffer = d.alloc("framebuffer", 0)
	d.empty = d.alloc("externaltexture", 0)
	d.calls = nil
	return d
}

var _ device.Device = (*Device)(nil)

func (d *Device) alloc(kind string, size uint64) device.Handle {
	h := d.next
	d.next++
	d.live[h] = kind
	d.sizes[h] = size
	d.memory += size
	d.calls = append(d.calls, fmt.Sprintf("Allocate%s(%d)", kindName(kind), h))
	return h
}

func kindName(kind string) string {
	if kind == "" {
		return ""
	}
	return strings.ToUpper(kind[:1]) + kind[1:]
}

func (d *Device) record(format string, args ...any) {
	d.calls = append(d.calls, fmt.Sprintf(format, args...))
}

func (d *Device) free(kind string, h device.Handle) {
	got, ok := d.live[h]
	if !ok {
		panic(fmt.Sprintf("devicetest: delete of unknown %s handle %d", kind, h))
	}
	if got != kind {
		panic(fmt.Sprintf("devicetest: delete of %s handle %d as %s", got, h, kind))
	}
	delete(d.live, h)
	d.memory -= d.sizes[h]
	delete(d.sizes, h)
	d.record("Delete%s(%d)", kindName(kind), h)
}

// Calls returns a copy of the recorded call log.
func (d *Device) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// CallCount returns the number of recorded calls starting with prefix.
func (d *Device) CallCount(prefix string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// ResetCalls clears the call log.
func (d *Device) ResetCalls() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = nil
}

// Live returns the number of live allocations of kind, or of every kind
// when kind is empty. The framebuffer and empty external texture count.
func (d *Device) Live(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if kind == "" {
		return len(d.live)
	}
	n := 0
	for _, k := range d.live {
		if k == kind {
			n++
		}
	}
	return n
}

// Kind returns the kind of a live handle, or "".
func (d *Device) Kind(h device.Handle) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live[h]
}

// SetPixels sets the bytes returned by ReadPixels.
func (d *Device) SetPixels(p []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pixels = p
}

func (d *Device) AllocateVertexBuffer(size uint32) (device.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.alloc("vertexbuffer", uint64(size)), nil
}

func (d *Device) UploadVertexBufferData(h device.Handle, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("UploadVertexBufferData(%d,%d)", h, len(data))
	return nil
}

func (d *Device) DeleteVertexBuffer(h device.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.free("vertexbuffer", h)
}

func (d *Device) AllocateIndexBuffer(_ resource.ElementType, size uint32) (device.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.alloc("indexbuffer", uint64(size)), nil
}

func (d *Device) UploadIndexBufferData(h device.Handle, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("UploadIndexBufferData(%d,%d)", h, len(data))
	return nil
}

func (d *Device) DeleteIndexBuffer(h device.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.free("indexbuffer", h)
}

func (d *Device) AllocateTexture2D(_, _ uint32, _ resource.TextureFormat, mipLevels, vramSize uint32) (device.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := d.alloc("texture", uint64(vramSize))
	d.record("Texture2DMips(%d)", mipLevels)
	return h, nil
}

func (d *Device) AllocateTexture3D(_, _, _ uint32, _ resource.TextureFormat, mipLevels, vramSize uint32) (device.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := d.alloc("texture", uint64(vramSize))
	d.record("Texture3DMips(%d)", mipLevels)
	return h, nil
}

func (d *Device) AllocateTextureCube(_ uint32, _ resource.TextureFormat, mipLevels, vramSize uint32) (device.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := d.alloc("texture", uint64(vramSize))
	d.record("TextureCubeMips(%d)", mipLevels)
	return h, nil
}

func (d *Device) UploadTextureData(h device.Handle, mipLevel, x, y, z, width, height, depth uint32, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("UploadTextureData(%d,mip=%d,z=%d,%dx%dx%d,%d)", h, mipLevel, z, width, height, depth, len(data))
	return nil
}

func (d *Device) GenerateMipmaps(h device.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("GenerateMipmaps(%d)", h)
}

func (d *Device) DeleteTexture(h device.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.free("texture", h)
}

func (d *Device) CompileShader(effect *resource.Resource) (*device.CompiledShader, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("CompileShader(%s)", effect.Hash())
	if d.FailCompile {
		return nil, ErrCompile
	}
	return &device.CompiledShader{Effect: effect.Hash(), Name: effect.Name(), SPIRV: []uint32{0x07230203}}, nil
}

func (d *Device) RegisterShader(s *device.CompiledShader) (device.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := d.alloc("shader", 0)
	d.binary[h] = device.BinaryShader{Format: 1, Data: []byte(s.Effect.String())}
	return h, nil
}

func (d *Device) UploadBinaryShader(effect *resource.Resource, bin device.BinaryShader) (device.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("UploadBinaryShader(%s,%d)", effect.Hash(), bin.Format)
	if d.RejectBinary {
		return device.Invalid, fmt.Errorf("binary shader format %d: %w", bin.Format, device.ErrInvalidHandle)
	}
	h := d.alloc("shader", 0)
	d.binary[h] = bin
	return h, nil
}

func (d *Device) BinaryShader(h device.Handle) (device.BinaryShader, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.binary[h]
	return b, ok
}

func (d *Device) SupportedBinaryShaderFormats() []device.BinaryShaderFormat {
	return d.BinaryFormats
}

func (d *Device) DeleteShader(h device.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.binary, h)
	d.free("shader", h)
}

func (d *Device) AllocateVertexArray(_ device.VertexArrayInfo) (device.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.alloc("vertexarray", 0), nil
}

func (d *Device) DeleteVertexArray(h device.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.free("vertexarray", h)
}

func (d *Device) UploadRenderBuffer(desc device.RenderBufferDesc) (device.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	size := uint64(desc.Width) * uint64(desc.Height) * uint64(max(desc.Format.TexelSize(), 1)) * uint64(max(desc.SampleCount, 1))
	return d.alloc("renderbuffer", size), nil
}

func (d *Device) DeleteRenderBuffer(h device.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.free("renderbuffer", h)
}

func (d *Device) UploadRenderTarget(buffers []device.Handle) (device.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, b := range buffers {
		if _, ok := d.live[b]; !ok {
			return device.Invalid, fmt.Errorf("render target buffer %d: %w", b, device.ErrInvalidHandle)
		}
	}
	return d.alloc("rendertarget", 0), nil
}

func (d *Device) DeleteRenderTarget(h device.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.free("rendertarget", h)
}

func (d *Device) Framebuffer() device.Handle { return d.fbuffer }

func (d *Device) EmptyExternalTexture() device.Handle { return d.empty }

func (d *Device) ActivateRenderTarget(h device.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("ActivateRenderTarget(%d)", h)
}

func (d *Device) Clear(flags device.ClearFlags, _ [4]float32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("Clear(%d)", flags)
}

func (d *Device) ActivateShader(h device.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("ActivateShader(%d)", h)
}

func (d *Device) ActivateTexture(h device.Handle, slot uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("ActivateTexture(%d,%d)", h, slot)
}

func (d *Device) ActivateVertexArray(h device.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("ActivateVertexArray(%d)", h)
}

func (d *Device) SetUniform(location uint32, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("SetUniform(%d,%d)", location, len(data))
}

func (d *Device) DrawIndexed(startIndex, indexCount, instanceCount uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.draws++
	d.record("DrawIndexed(%d,%d,%d)", startIndex, indexCount, instanceCount)
}

func (d *Device) DrawArrays(startVertex, vertexCount, instanceCount uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.draws++
	d.record("DrawArrays(%d,%d,%d)", startVertex, vertexCount, instanceCount)
}

func (d *Device) BlitRenderTargets(src, dst device.Handle, _, _ device.Rect) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("BlitRenderTargets(%d,%d)", src, dst)
}

func (d *Device) ReadPixels(rect device.Rect) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("ReadPixels(%d,%d,%d,%d)", rect.X, rect.Y, rect.Width, rect.Height)
	out := make([]byte, int(rect.Width)*int(rect.Height)*4)
	copy(out, d.pixels)
	return out, nil
}

func (d *Device) Submit() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("Submit()")
	return nil
}

func (d *Device) DrawCallsAndReset() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.draws
	d.draws = 0
	return n
}

func (d *Device) GPUMemoryUsage() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.memory
}
