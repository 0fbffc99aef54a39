package haldevice

import (
	"errors"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/scenery/device"
	"github.com/gogpu/scenery/resource"
)

func newNoopDevice(t *testing.T) *Device {
	t.Helper()
	open, err := (&noop.Adapter{}).Open(0, gputypes.DefaultLimits())
	if err != nil {
		t.Fatalf("open noop adapter: %v", err)
	}
	d, err := NewFromHAL(open.Device, open.Queue, 64, 32)
	if err != nil {
		t.Fatalf("NewFromHAL: %v", err)
	}
	return d
}

type plainProvider struct{ gpucontext.DeviceProvider }

func TestNewRejectsNonHALProvider(t *testing.T) {
	_, err := New(plainProvider{}, 1, 1)
	if !errors.Is(err, ErrNoHALProvider) {
		t.Fatalf("expected ErrNoHALProvider, got %v", err)
	}
}

func TestFramebufferAndPlaceholder(t *testing.T) {
	d := newNoopDevice(t)
	if !d.Framebuffer().IsValid() {
		t.Fatal("expected a valid framebuffer")
	}
	if !d.EmptyExternalTexture().IsValid() {
		t.Fatal("expected a valid empty external texture")
	}
	if d.Framebuffer() == d.EmptyExternalTexture() {
		t.Fatal("framebuffer and placeholder share a handle")
	}
}

func TestBufferLifecycle(t *testing.T) {
	d := newNoopDevice(t)
	before := d.GPUMemoryUsage()

	h, err := d.AllocateVertexBuffer(16)
	if err != nil {
		t.Fatalf("AllocateVertexBuffer: %v", err)
	}
	if got := d.GPUMemoryUsage() - before; got != 16 {
		t.Errorf("expected 16 bytes accounted, got %d", got)
	}
	if err := d.UploadVertexBufferData(h, make([]byte, 16)); err != nil {
		t.Fatalf("UploadVertexBufferData: %v", err)
	}
	if err := d.UploadVertexBufferData(h, make([]byte, 17)); err == nil {
		t.Error("expected oversized upload to fail")
	}
	d.DeleteVertexBuffer(h)
	if d.GPUMemoryUsage() != before {
		t.Errorf("expected memory back to %d, got %d", before, d.GPUMemoryUsage())
	}
	if err := d.UploadVertexBufferData(h, nil); !errors.Is(err, device.ErrInvalidHandle) {
		t.Errorf("expected ErrInvalidHandle after delete, got %v", err)
	}
}

func TestTextureUploadChecksMipRange(t *testing.T) {
	d := newNoopDevice(t)
	h, err := d.AllocateTexture2D(4, 4, resource.FormatRGBA8, 3, device.MipChainSize(4, 4, 4, 1, 3))
	if err != nil {
		t.Fatalf("AllocateTexture2D: %v", err)
	}
	if err := d.UploadTextureData(h, 2, 0, 0, 0, 1, 1, 1, make([]byte, 4)); err != nil {
		t.Errorf("upload mip 2: %v", err)
	}
	if err := d.UploadTextureData(h, 3, 0, 0, 0, 1, 1, 1, make([]byte, 4)); err == nil {
		t.Error("expected mip 3 to be out of range")
	}
	d.DeleteTexture(h)
}

func TestUnsupportedFormat(t *testing.T) {
	d := newNoopDevice(t)
	if _, err := d.AllocateTexture2D(2, 2, resource.FormatRGB8, 1, 12); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestBinaryShaderRoundTrip(t *testing.T) {
	d := newNoopDevice(t)
	effect := resource.NewEffect(resource.EffectDesc{Source: "// empty"}, "fx")
	words := []uint32{0x07230203, 0x00010000, 42}

	h, err := d.RegisterShader(&device.CompiledShader{Effect: effect.Hash(), Name: "fx", SPIRV: words})
	if err != nil {
		t.Fatalf("RegisterShader: %v", err)
	}
	bin, ok := d.BinaryShader(h)
	if !ok || bin.Format != FormatSPIRV || len(bin.Data) != 12 {
		t.Fatalf("unexpected binary shader %+v ok=%v", bin, ok)
	}

	h2, err := d.UploadBinaryShader(effect, bin)
	if err != nil {
		t.Fatalf("UploadBinaryShader: %v", err)
	}
	bin2, _ := d.BinaryShader(h2)
	if string(bin2.Data) != string(bin.Data) {
		t.Error("binary shader changed across upload")
	}
	if _, err := d.UploadBinaryShader(effect, device.BinaryShader{Format: 7, Data: bin.Data}); err == nil {
		t.Error("expected unknown format to be rejected")
	}
	d.DeleteShader(h)
	d.DeleteShader(h2)
}

func TestVertexArrayValidatesHandles(t *testing.T) {
	d := newNoopDevice(t)
	if _, err := d.AllocateVertexArray(device.VertexArrayInfo{Shader: 999}); !errors.Is(err, device.ErrInvalidHandle) {
		t.Fatalf("expected ErrInvalidHandle, got %v", err)
	}
}

func TestReadPixels(t *testing.T) {
	d := newNoopDevice(t)
	d.ActivateRenderTarget(d.Framebuffer())
	d.Clear(device.ClearAll, [4]float32{1, 0, 0, 1})

	px, err := d.ReadPixels(device.Rect{X: 2, Y: 2, Width: 10, Height: 3})
	if err != nil {
		t.Fatalf("ReadPixels: %v", err)
	}
	if len(px) != 10*3*4 {
		t.Errorf("expected %d bytes, got %d", 10*3*4, len(px))
	}
	if _, err := d.ReadPixels(device.Rect{Width: 65, Height: 1}); err == nil {
		t.Error("expected out of bounds rect to fail")
	}
}

func TestDrawCallsAndReset(t *testing.T) {
	d := newNoopDevice(t)
	d.DrawIndexed(0, 3, 1)
	d.DrawArrays(0, 3, 1)
	if got := d.DrawCallsAndReset(); got != 2 {
		t.Errorf("expected 2 draw calls, got %d", got)
	}
	if got := d.DrawCallsAndReset(); got != 0 {
		t.Errorf("expected 0 after reset, got %d", got)
	}
}

func TestWordsBytesRoundTrip(t *testing.T) {
	words := []uint32{1, 0xdeadbeef, 0x00ff00ff}
	back := wordsFromBytes(bytesFromWords(words))
	for i := range words {
		if back[i] != words[i] {
			t.Fatalf("word %d: expected %#x, got %#x", i, words[i], back[i])
		}
	}
}
