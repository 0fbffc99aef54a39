// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package haldevice implements device.Device on the wgpu HAL.
//
// Handles are small integers mapped to HAL objects in per-kind tables.
// Effects are compiled from WGSL to SPIR-V with naga, which also serves as
// the binary shader format.
package haldevice

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/scenery/device"
	"github.com/gogpu/scenery/internal/logging"
	"github.com/gogpu/scenery/resource"
)

// ErrNoHALProvider is returned by New when the provider does not expose
// HAL device and queue objects.
var ErrNoHALProvider = errors.New("haldevice: provider does not expose HAL types")

// ErrUnsupportedFormat is returned for texture formats with no HAL mapping.
var ErrUnsupportedFormat = errors.New("haldevice: unsupported texture format")

// FormatSPIRV is the binary shader format: little-endian SPIR-V words.
const FormatSPIRV device.BinaryShaderFormat = 1

// copyPitchAlignment is the row pitch alignment required for texture
// to buffer copies.
const copyPitchAlignment = 256

type bufferEntry struct {
	buf     hal.Buffer
	size    uint64
	element resource.ElementType
}

type textureEntry struct {
	tex    hal.Texture
	view   hal.TextureView
	width  uint32
	height uint32
	depth  uint32
	format gputypes.TextureFormat
	mips   uint32
	size   uint64
}

type shaderEntry struct {
	module hal.ShaderModule
	effect resource.Hash
	spirv  []uint32
}

// Device is a device.Device backed by a HAL device and queue.
type Device struct {
	mu sync.RWMutex

	device hal.Device
	queue  hal.Queue

	nextID atomic.Uint32

	buffers       map[device.Handle]*bufferEntry
	textures      map[device.Handle]*textureEntry
	shaders       map[device.Handle]*shaderEntry
	vertexArrays  map[device.Handle]device.VertexArrayInfo
	renderBuffers map[device.Handle]*textureEntry
	renderTargets map[device.Handle][]device.Handle

	framebuffer   device.Handle
	emptyExternal device.Handle

	// Frame state, only touched from the render goroutine.
	activeTarget device.Handle
	activeShader device.Handle
	activeVA     device.Handle
	pending      []hal.CommandBuffer

	drawCalls atomic.Uint32
	memory    atomic.Int64
}

// New creates a Device from a host application's device provider. The
// provider must expose HalDevice() and HalQueue() returning hal.Device and
// hal.Queue. The framebuffer is an offscreen target of the given size.
func New(provider gpucontext.DeviceProvider, width, height uint32) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHALProvider
	}
	dev, ok := hp.HalDevice().(hal.Device)
	if !ok || dev == nil {
		return nil, fmt.Errorf("provider HalDevice is not hal.Device: %w", ErrNoHALProvider)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("provider HalQueue is not hal.Queue: %w", ErrNoHALProvider)
	}
	return NewFromHAL(dev, queue, width, height)
}

// NewFromHAL creates a Device on an already opened HAL device and queue.
func NewFromHAL(dev hal.Device, queue hal.Queue, width, height uint32) (*Device, error) {
	d := &Device{
		device:        dev,
		queue:         queue,
		buffers:       make(map[device.Handle]*bufferEntry),
		textures:      make(map[device.Handle]*textureEntry),
		shaders:       make(map[device.Handle]*shaderEntry),
		vertexArrays:  make(map[device.Handle]device.VertexArrayInfo),
		renderBuffers: make(map[device.Handle]*textureEntry),
		renderTargets: make(map[device.Handle][]device.Handle),
	}

	color, err := d.UploadRenderBuffer(device.RenderBufferDesc{
		Width: width, Height: height, Format: resource.FormatRGBA8, SampleCount: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("create framebuffer: %w", err)
	}
	if d.framebuffer, err = d.UploadRenderTarget([]device.Handle{color}); err != nil {
		return nil, fmt.Errorf("create framebuffer: %w", err)
	}
	if d.emptyExternal, err = d.AllocateTexture2D(1, 1, resource.FormatRGBA8, 1, 4); err != nil {
		return nil, fmt.Errorf("create empty external texture: %w", err)
	}
	d.activeTarget = d.framebuffer
	return d, nil
}

func (d *Device) newHandle() device.Handle {
	return device.Handle(d.nextID.Add(1))
}

// --- Buffers ---

func (d *Device) allocateBuffer(label string, size uint32, usage gputypes.BufferUsage, element resource.ElementType) (device.Handle, error) {
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(size),
		Usage: usage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return device.Invalid, fmt.Errorf("create %s: %w", label, err)
	}
	h := d.newHandle()
	d.mu.Lock()
	d.buffers[h] = &bufferEntry{buf: buf, size: uint64(size), element: element}
	d.mu.Unlock()
	d.memory.Add(int64(size))
	return h, nil
}

// AllocateVertexBuffer creates a vertex buffer of size bytes.
func (d *Device) AllocateVertexBuffer(size uint32) (device.Handle, error) {
	return d.allocateBuffer("vertex_buffer", size, gputypes.BufferUsageVertex, resource.ElementInvalid)
}

// AllocateIndexBuffer creates an index buffer of size bytes.
func (d *Device) AllocateIndexBuffer(element resource.ElementType, size uint32) (device.Handle, error) {
	return d.allocateBuffer("index_buffer", size, gputypes.BufferUsageIndex, element)
}

func (d *Device) writeBuffer(h device.Handle, data []byte) error {
	d.mu.RLock()
	e, ok := d.buffers[h]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("buffer %d: %w", h, device.ErrInvalidHandle)
	}
	if uint64(len(data)) > e.size {
		return fmt.Errorf("buffer %d: %d bytes exceed size %d", h, len(data), e.size)
	}
	return d.queue.WriteBuffer(e.buf, 0, data)
}

// UploadVertexBufferData writes data at the start of the buffer.
func (d *Device) UploadVertexBufferData(h device.Handle, data []byte) error {
	return d.writeBuffer(h, data)
}

// UploadIndexBufferData writes data at the start of the buffer.
func (d *Device) UploadIndexBufferData(h device.Handle, data []byte) error {
	return d.writeBuffer(h, data)
}

func (d *Device) deleteBuffer(h device.Handle) {
	d.mu.Lock()
	e, ok := d.buffers[h]
	delete(d.buffers, h)
	d.mu.Unlock()
	if !ok {
		return
	}
	d.memory.Add(-int64(e.size))
	d.device.DestroyBuffer(e.buf)
}

// DeleteVertexBuffer destroys a vertex buffer.
func (d *Device) DeleteVertexBuffer(h device.Handle) { d.deleteBuffer(h) }

// DeleteIndexBuffer destroys an index buffer.
func (d *Device) DeleteIndexBuffer(h device.Handle) { d.deleteBuffer(h) }

// --- Textures ---

type textureSpec struct {
	label     string
	width     uint32
	height    uint32
	layers    uint32
	dimension gputypes.TextureDimension
	view      gputypes.TextureViewDimension
	format    resource.TextureFormat
	mips      uint32
	samples   uint32
	usage     gputypes.TextureUsage
	vramSize  uint32
}

func (d *Device) createTexture(s textureSpec) (*textureEntry, error) {
	format, ok := halFormat(s.format)
	if !ok {
		return nil, fmt.Errorf("%s: %s: %w", s.label, s.format, ErrUnsupportedFormat)
	}
	if s.samples == 0 {
		s.samples = 1
	}
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         s.label,
		Size:          hal.Extent3D{Width: s.width, Height: s.height, DepthOrArrayLayers: s.layers},
		MipLevelCount: s.mips,
		SampleCount:   s.samples,
		Dimension:     s.dimension,
		Format:        format,
		Usage:         s.usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", s.label, err)
	}
	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         s.label + "_view",
		Format:        format,
		Dimension:     s.view,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: s.mips,
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		return nil, fmt.Errorf("create %s view: %w", s.label, err)
	}
	d.memory.Add(int64(s.vramSize))
	return &textureEntry{
		tex: tex, view: view,
		width: s.width, height: s.height, depth: s.layers,
		format: format, mips: s.mips, size: uint64(s.vramSize),
	}, nil
}

func (d *Device) allocateTexture(s textureSpec) (device.Handle, error) {
	s.usage = gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst | gputypes.TextureUsageCopySrc
	e, err := d.createTexture(s)
	if err != nil {
		return device.Invalid, err
	}
	h := d.newHandle()
	d.mu.Lock()
	d.textures[h] = e
	d.mu.Unlock()
	return h, nil
}

// AllocateTexture2D creates a 2D texture with mipLevels levels.
func (d *Device) AllocateTexture2D(width, height uint32, format resource.TextureFormat, mipLevels, vramSize uint32) (device.Handle, error) {
	return d.allocateTexture(textureSpec{
		label: "texture_2d", width: width, height: height, layers: 1,
		dimension: gputypes.TextureDimension2D, view: gputypes.TextureViewDimension2D,
		format: format, mips: mipLevels, vramSize: vramSize,
	})
}

// AllocateTexture3D creates a 3D texture with mipLevels levels.
func (d *Device) AllocateTexture3D(width, height, depth uint32, format resource.TextureFormat, mipLevels, vramSize uint32) (device.Handle, error) {
	return d.allocateTexture(textureSpec{
		label: "texture_3d", width: width, height: height, layers: depth,
		dimension: gputypes.TextureDimension3D, view: gputypes.TextureViewDimension3D,
		format: format, mips: mipLevels, vramSize: vramSize,
	})
}

// AllocateTextureCube creates a cube texture as a six layer 2D array.
func (d *Device) AllocateTextureCube(faceSize uint32, format resource.TextureFormat, mipLevels, vramSize uint32) (device.Handle, error) {
	return d.allocateTexture(textureSpec{
		label: "texture_cube", width: faceSize, height: faceSize, layers: 6,
		dimension: gputypes.TextureDimension2D, view: gputypes.TextureViewDimensionCube,
		format: format, mips: mipLevels, vramSize: vramSize,
	})
}

// UploadTextureData writes one region of one mip level. For cube textures
// z selects the face.
func (d *Device) UploadTextureData(h device.Handle, mipLevel, x, y, z, width, height, depth uint32, data []byte) error {
	d.mu.RLock()
	e, ok := d.textures[h]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("texture %d: %w", h, device.ErrInvalidHandle)
	}
	if mipLevel >= e.mips {
		return fmt.Errorf("texture %d: mip level %d out of range (%d levels)", h, mipLevel, e.mips)
	}
	var bytesPerRow uint32
	if height > 0 && depth > 0 {
		bytesPerRow = uint32(len(data)) / (height * depth)
	}
	return d.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  e.tex,
			MipLevel: mipLevel,
			Origin:   hal.Origin3D{X: x, Y: y, Z: z},
			Aspect:   gputypes.TextureAspectAll,
		},
		data,
		&hal.ImageDataLayout{BytesPerRow: bytesPerRow, RowsPerImage: height},
		&hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: depth},
	)
}

// GenerateMipmaps is a no-op until a downsampling pipeline exists; levels
// beyond the uploaded ones keep their initial content.
func (d *Device) GenerateMipmaps(h device.Handle) {
	logging.Logger().Debug("haldevice: mip generation not available", "texture", h)
}

func (d *Device) destroyTexture(e *textureEntry) {
	d.memory.Add(-int64(e.size))
	d.device.DestroyTextureView(e.view)
	d.device.DestroyTexture(e.tex)
}

// DeleteTexture destroys a texture.
func (d *Device) DeleteTexture(h device.Handle) {
	d.mu.Lock()
	e, ok := d.textures[h]
	delete(d.textures, h)
	d.mu.Unlock()
	if ok {
		d.destroyTexture(e)
	}
}

// --- Shaders ---

// CompileShader compiles an effect's WGSL source to SPIR-V. It touches no
// device state and may run on any goroutine.
func (d *Device) CompileShader(effect *resource.Resource) (*device.CompiledShader, error) {
	spirv, err := compileSPIRV(effect.Effect().Source)
	if err != nil {
		return nil, fmt.Errorf("compile effect %s (%s): %w", effect.Name(), effect.Hash(), err)
	}
	return &device.CompiledShader{Effect: effect.Hash(), Name: effect.Name(), SPIRV: spirv}, nil
}

func compileSPIRV(wgsl string) ([]uint32, error) {
	b, err := naga.Compile(wgsl)
	if err != nil {
		return nil, err
	}
	return wordsFromBytes(b), nil
}

// wordsFromBytes converts little-endian bytes to SPIR-V words.
func wordsFromBytes(b []byte) []uint32 {
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = uint32(b[i*4]) |
			uint32(b[i*4+1])<<8 |
			uint32(b[i*4+2])<<16 |
			uint32(b[i*4+3])<<24
	}
	return words
}

func bytesFromWords(words []uint32) []byte {
	b := make([]byte, len(words)*4)
	for i, w := range words {
		b[i*4] = byte(w)
		b[i*4+1] = byte(w >> 8)
		b[i*4+2] = byte(w >> 16)
		b[i*4+3] = byte(w >> 24)
	}
	return b
}

// RegisterShader creates a shader module from a compiled effect.
func (d *Device) RegisterShader(s *device.CompiledShader) (device.Handle, error) {
	module, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  s.Name,
		Source: hal.ShaderSource{SPIRV: s.SPIRV},
	})
	if err != nil {
		return device.Invalid, fmt.Errorf("create shader module %s: %w", s.Name, err)
	}
	h := d.newHandle()
	d.mu.Lock()
	d.shaders[h] = &shaderEntry{module: module, effect: s.Effect, spirv: s.SPIRV}
	d.mu.Unlock()
	return h, nil
}

// UploadBinaryShader creates a shader module from cached SPIR-V.
func (d *Device) UploadBinaryShader(effect *resource.Resource, bin device.BinaryShader) (device.Handle, error) {
	if bin.Format != FormatSPIRV || len(bin.Data)%4 != 0 {
		return device.Invalid, fmt.Errorf("binary shader for %s: format %d not supported", effect.Hash(), bin.Format)
	}
	return d.RegisterShader(&device.CompiledShader{
		Effect: effect.Hash(),
		Name:   effect.Name(),
		SPIRV:  wordsFromBytes(bin.Data),
	})
}

// BinaryShader returns the SPIR-V of a registered shader.
func (d *Device) BinaryShader(h device.Handle) (device.BinaryShader, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.shaders[h]
	if !ok {
		return device.BinaryShader{}, false
	}
	return device.BinaryShader{Format: FormatSPIRV, Data: bytesFromWords(e.spirv)}, true
}

// SupportedBinaryShaderFormats reports SPIR-V as the only format.
func (d *Device) SupportedBinaryShaderFormats() []device.BinaryShaderFormat {
	return []device.BinaryShaderFormat{FormatSPIRV}
}

// DeleteShader destroys a shader module.
func (d *Device) DeleteShader(h device.Handle) {
	d.mu.Lock()
	e, ok := d.shaders[h]
	delete(d.shaders, h)
	d.mu.Unlock()
	if ok {
		d.device.DestroyShaderModule(e.module)
	}
}

// --- Targets ---

// AllocateVertexArray records the buffer bindings of a vertex array.
func (d *Device) AllocateVertexArray(info device.VertexArrayInfo) (device.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.shaders[info.Shader]; !ok {
		return device.Invalid, fmt.Errorf("vertex array shader %d: %w", info.Shader, device.ErrInvalidHandle)
	}
	for _, b := range info.Buffers {
		if _, ok := d.buffers[b.Buffer]; !ok {
			return device.Invalid, fmt.Errorf("vertex array buffer %d: %w", b.Buffer, device.ErrInvalidHandle)
		}
	}
	h := d.newHandle()
	d.vertexArrays[h] = info
	return h, nil
}

// DeleteVertexArray forgets a vertex array.
func (d *Device) DeleteVertexArray(h device.Handle) {
	d.mu.Lock()
	delete(d.vertexArrays, h)
	d.mu.Unlock()
}

// UploadRenderBuffer creates a texture usable as a render attachment.
func (d *Device) UploadRenderBuffer(desc device.RenderBufferDesc) (device.Handle, error) {
	texel := desc.Format.TexelSize()
	samples := max(desc.SampleCount, 1)
	e, err := d.createTexture(textureSpec{
		label: "render_buffer", width: desc.Width, height: desc.Height, layers: 1,
		dimension: gputypes.TextureDimension2D, view: gputypes.TextureViewDimension2D,
		format: desc.Format, mips: 1, samples: samples,
		usage: gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding |
			gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst,
		vramSize: desc.Width * desc.Height * texel * samples,
	})
	if err != nil {
		return device.Invalid, err
	}
	h := d.newHandle()
	d.mu.Lock()
	d.renderBuffers[h] = e
	d.mu.Unlock()
	return h, nil
}

// DeleteRenderBuffer destroys a render buffer.
func (d *Device) DeleteRenderBuffer(h device.Handle) {
	d.mu.Lock()
	e, ok := d.renderBuffers[h]
	delete(d.renderBuffers, h)
	d.mu.Unlock()
	if ok {
		d.destroyTexture(e)
	}
}

// UploadRenderTarget groups render buffers into a render target. The
// first buffer is the color attachment.
func (d *Device) UploadRenderTarget(buffers []device.Handle) (device.Handle, error) {
	if len(buffers) == 0 {
		return device.Invalid, errors.New("haldevice: render target without buffers")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, b := range buffers {
		if _, ok := d.renderBuffers[b]; !ok {
			return device.Invalid, fmt.Errorf("render target buffer %d: %w", b, device.ErrInvalidHandle)
		}
	}
	h := d.newHandle()
	d.renderTargets[h] = append([]device.Handle(nil), buffers...)
	return h, nil
}

// DeleteRenderTarget forgets a render target. Its buffers stay alive.
func (d *Device) DeleteRenderTarget(h device.Handle) {
	d.mu.Lock()
	delete(d.renderTargets, h)
	d.mu.Unlock()
}

// Framebuffer returns the display render target.
func (d *Device) Framebuffer() device.Handle { return d.framebuffer }

// EmptyExternalTexture returns the 1x1 placeholder texture.
func (d *Device) EmptyExternalTexture() device.Handle { return d.emptyExternal }

// --- Drawing ---

func (d *Device) colorBuffer(target device.Handle) (*textureEntry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	buffers, ok := d.renderTargets[target]
	if !ok {
		return nil, false
	}
	e, ok := d.renderBuffers[buffers[0]]
	return e, ok
}

// encode records commands with fn and queues the result for Submit.
func (d *Device) encode(label string, fn func(enc hal.CommandEncoder)) error {
	enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return fmt.Errorf("create %s encoder: %w", label, err)
	}
	if err := enc.BeginEncoding(label); err != nil {
		return fmt.Errorf("begin %s: %w", label, err)
	}
	fn(enc)
	cb, err := enc.EndEncoding()
	if err != nil {
		return fmt.Errorf("end %s: %w", label, err)
	}
	if _, err := d.queue.Submit([]hal.CommandBuffer{cb}); err != nil {
		d.device.FreeCommandBuffer(cb)
		return fmt.Errorf("submit %s: %w", label, err)
	}
	d.pending = append(d.pending, cb)
	return nil
}

// ActivateRenderTarget selects the target for Clear, draws and ReadPixels.
func (d *Device) ActivateRenderTarget(h device.Handle) { d.activeTarget = h }

// Clear clears the color attachment of the active render target.
func (d *Device) Clear(flags device.ClearFlags, color [4]float32) {
	if flags&device.ClearColor == 0 {
		return
	}
	target, ok := d.colorBuffer(d.activeTarget)
	if !ok {
		logging.Logger().Warn("haldevice: clear without a valid render target", "target", d.activeTarget)
		return
	}
	err := d.encode("clear", func(enc hal.CommandEncoder) {
		rp := enc.BeginRenderPass(&hal.RenderPassDescriptor{
			Label: "clear",
			ColorAttachments: []hal.RenderPassColorAttachment{{
				View:    target.view,
				LoadOp:  gputypes.LoadOpClear,
				StoreOp: gputypes.StoreOpStore,
				ClearValue: gputypes.Color{
					R: float64(color[0]), G: float64(color[1]),
					B: float64(color[2]), A: float64(color[3]),
				},
			}},
		})
		rp.End()
	})
	if err != nil {
		logging.Logger().Error("haldevice: clear failed", "err", err)
	}
}

// ActivateShader selects the shader for subsequent draws.
func (d *Device) ActivateShader(h device.Handle) { d.activeShader = h }

// ActivateTexture binds a texture to a sampler slot.
func (d *Device) ActivateTexture(device.Handle, uint32) {}

// ActivateVertexArray selects the vertex array for subsequent draws.
func (d *Device) ActivateVertexArray(h device.Handle) { d.activeVA = h }

// SetUniform sets a uniform value of the active shader.
func (d *Device) SetUniform(uint32, []byte) {}

// DrawIndexed counts an indexed draw of the active vertex array.
// TODO: build render pipelines from effect entry points so draws reach the
// GPU instead of only being counted.
func (d *Device) DrawIndexed(_, _, _ uint32) { d.drawCalls.Add(1) }

// DrawArrays counts a non-indexed draw of the active vertex array.
func (d *Device) DrawArrays(_, _, _ uint32) { d.drawCalls.Add(1) }

// BlitRenderTargets copies the color attachment of src into dst.
// Scaling is not supported; the copy uses the smaller of both sizes.
func (d *Device) BlitRenderTargets(src, dst device.Handle, srcRect, dstRect device.Rect) {
	s, ok1 := d.colorBuffer(src)
	t, ok2 := d.colorBuffer(dst)
	if !ok1 || !ok2 {
		logging.Logger().Warn("haldevice: blit with invalid render target", "src", src, "dst", dst)
		return
	}
	w := min(srcRect.Width, dstRect.Width)
	h := min(srcRect.Height, dstRect.Height)
	err := d.encode("blit", func(enc hal.CommandEncoder) {
		enc.CopyTextureToTexture(s.tex, t.tex, []hal.TextureCopy{{
			SrcBase: hal.ImageCopyTexture{Texture: s.tex, Origin: hal.Origin3D{X: srcRect.X, Y: srcRect.Y}, Aspect: gputypes.TextureAspectAll},
			DstBase: hal.ImageCopyTexture{Texture: t.tex, Origin: hal.Origin3D{X: dstRect.X, Y: dstRect.Y}, Aspect: gputypes.TextureAspectAll},
			Size:    hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		}})
	})
	if err != nil {
		logging.Logger().Error("haldevice: blit failed", "err", err)
	}
}

// ReadPixels reads rect of the active render target's color attachment as
// tightly packed 4-byte texels.
func (d *Device) ReadPixels(rect device.Rect) ([]byte, error) {
	target, ok := d.colorBuffer(d.activeTarget)
	if !ok {
		return nil, fmt.Errorf("read pixels from target %d: %w", d.activeTarget, device.ErrInvalidHandle)
	}
	if rect.X+rect.Width > target.width || rect.Y+rect.Height > target.height {
		return nil, fmt.Errorf("read pixels: rect %+v outside %dx%d target", rect, target.width, target.height)
	}

	bytesPerRow := rect.Width * 4
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(rect.Height)

	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "readback_staging",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create staging buffer: %w", err)
	}
	defer d.device.DestroyBuffer(staging)

	err = d.encode("readback", func(enc hal.CommandEncoder) {
		enc.TransitionTextures([]hal.TextureBarrier{{
			Texture: target.tex,
			Usage: hal.TextureUsageTransition{
				OldUsage: gputypes.TextureUsageRenderAttachment,
				NewUsage: gputypes.TextureUsageCopySrc,
			},
		}})
		enc.CopyTextureToBuffer(target.tex, staging, []hal.BufferTextureCopy{{
			BufferLayout: hal.ImageDataLayout{BytesPerRow: alignedBytesPerRow, RowsPerImage: rect.Height},
			TextureBase: hal.ImageCopyTexture{
				Texture: target.tex,
				Origin:  hal.Origin3D{X: rect.X, Y: rect.Y},
				Aspect:  gputypes.TextureAspectAll,
			},
			Size: hal.Extent3D{Width: rect.Width, Height: rect.Height, DepthOrArrayLayers: 1},
		}})
		enc.TransitionTextures([]hal.TextureBarrier{{
			Texture: target.tex,
			Usage: hal.TextureUsageTransition{
				OldUsage: gputypes.TextureUsageCopySrc,
				NewUsage: gputypes.TextureUsageRenderAttachment,
			},
		}})
	})
	if err != nil {
		return nil, err
	}
	if err := d.Submit(); err != nil {
		return nil, err
	}

	mapping, err := d.device.MapBuffer(staging, 0, stagingSize)
	if err != nil {
		return nil, fmt.Errorf("map staging buffer: %w", err)
	}
	readback := unsafe.Slice((*byte)(mapping.Ptr), stagingSize)
	out := make([]byte, uint64(bytesPerRow)*uint64(rect.Height))
	for row := uint32(0); row < rect.Height; row++ {
		src := readback[row*alignedBytesPerRow : row*alignedBytesPerRow+bytesPerRow]
		copy(out[row*bytesPerRow:], src)
	}
	if err := d.device.UnmapBuffer(staging); err != nil {
		return nil, fmt.Errorf("unmap staging buffer: %w", err)
	}
	return out, nil
}

// Submit waits for all queued work and frees its command buffers.
func (d *Device) Submit() error {
	if len(d.pending) == 0 {
		return nil
	}
	err := d.device.WaitIdle()
	for _, cb := range d.pending {
		d.device.FreeCommandBuffer(cb)
	}
	d.pending = d.pending[:0]
	if err != nil {
		return fmt.Errorf("wait for GPU: %w", err)
	}
	return nil
}

// --- Stats ---

// DrawCallsAndReset returns the draws since the last call.
func (d *Device) DrawCallsAndReset() uint32 { return d.drawCalls.Swap(0) }

// GPUMemoryUsage returns the estimated bytes of live buffers and textures.
func (d *Device) GPUMemoryUsage() uint64 {
	if m := d.memory.Load(); m > 0 {
		return uint64(m)
	}
	return 0
}

var _ device.Device = (*Device)(nil)

var formats = map[resource.TextureFormat]gputypes.TextureFormat{
	resource.FormatR8:              gputypes.TextureFormatR8Unorm,
	resource.FormatRG8:             gputypes.TextureFormatRG8Unorm,
	resource.FormatRGBA8:           gputypes.TextureFormatRGBA8Unorm,
	resource.FormatSRGB8Alpha8:     gputypes.TextureFormatRGBA8UnormSrgb,
	resource.FormatBGRA8:           gputypes.TextureFormatBGRA8Unorm,
	resource.FormatR16F:            gputypes.TextureFormatR16Float,
	resource.FormatR32F:            gputypes.TextureFormatR32Float,
	resource.FormatRG32F:           gputypes.TextureFormatRG32Float,
	resource.FormatRGBA16F:         gputypes.TextureFormatRGBA16Float,
	resource.FormatRGBA32F:         gputypes.TextureFormatRGBA32Float,
	resource.FormatDepth24Stencil8: gputypes.TextureFormatDepth24PlusStencil8,
	resource.FormatETC2RGB:         gputypes.TextureFormatETC2RGB8Unorm,
	resource.FormatETC2RGBA:        gputypes.TextureFormatETC2RGBA8Unorm,
	resource.FormatASTC4x4:         gputypes.TextureFormatASTC4x4Unorm,
	resource.FormatBC1:             gputypes.TextureFormatBC1RGBAUnorm,
	resource.FormatBC3:             gputypes.TextureFormatBC3RGBAUnorm,
}

// halFormat maps a resource format to its HAL format. RGB8 has no
// three-channel HAL equivalent.
func halFormat(f resource.TextureFormat) (gputypes.TextureFormat, bool) {
	hf, ok := formats[f]
	return hf, ok
}
