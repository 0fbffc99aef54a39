package scenegraph

import (
	"bytes"
	"testing"

	"github.com/gogpu/scenery/resource"
)

var testEffect = resource.Hash{Low: 0xe1, High: 0xe2}

func newGeometryScene(t *testing.T) (*Scene, DataInstanceHandle) {
	t.Helper()
	s := NewScene(3)
	layout := s.AllocateDataLayout([]DataField{
		{Type: DataTypeIndices, ElementCount: 1},
		{Type: DataTypeVector3Buffer, ElementCount: 1},
	}, testEffect, InvalidDataLayout)
	di := s.AllocateDataInstance(layout, InvalidDataInstance)
	return s, di
}

func TestSceneRenderableDefaults(t *testing.T) {
	s := NewScene(1)
	r := s.AllocateRenderable(InvalidRenderable)
	got := s.Renderable(r)
	if got.Visibility != VisibilityVisible {
		t.Errorf("expected Visible, got %v", got.Visibility)
	}
	if got.InstanceCount != 1 {
		t.Errorf("expected instance count 1, got %d", got.InstanceCount)
	}
	for slot, di := range got.DataInstances {
		if di.IsValid() {
			t.Errorf("expected slot %d to be unbound, got %d", slot, di)
		}
	}
}

func TestSceneDataInstanceFields(t *testing.T) {
	s, di := newGeometryScene(t)
	if s.DataResource(di, 0).IsSet() {
		t.Error("expected fresh field to be unset")
	}

	v := ResourceField{Hash: resource.Hash{Low: 1}, Stride: 12}
	s.SetDataResource(di, 1, v)
	got := s.DataResource(di, 1)
	if got.Hash != v.Hash || got.Stride != 12 {
		t.Errorf("expected %+v, got %+v", v, got)
	}
	if got.DataBuffer.IsValid() {
		t.Error("expected unset data buffer to read back invalid")
	}
	if !s.DataLayout(s.DataInstance(di).Layout).IsGeometry() {
		t.Error("expected layout with leading indices to be geometry")
	}
}

func TestSceneDataFieldTypeChecked(t *testing.T) {
	s, di := newGeometryScene(t)
	expectPanic(t, "sampler on buffer field", func() { s.SetDataTextureSampler(di, 1, 0) })
	expectPanic(t, "value on buffer field", func() { s.SetDataValue(di, 0, []byte{1}) })
	expectPanic(t, "field out of range", func() { s.DataResource(di, 5) })
}

func TestSceneReleaseRenderableLeavesPasses(t *testing.T) {
	s := NewScene(1)
	r1 := s.AllocateRenderable(InvalidRenderable)
	r2 := s.AllocateRenderable(InvalidRenderable)
	p := s.AllocateRenderPass(RenderPass{Target: InvalidRenderTarget, Enabled: true}, InvalidRenderPass)
	s.AddRenderableToRenderPass(p, r1)
	s.AddRenderableToRenderPass(p, r2)
	s.AddRenderableToRenderPass(p, r1)

	pass := s.RenderPass(p)
	if len(pass.Renderables) != 2 || pass.Renderables[1] != r1 {
		t.Fatalf("expected re-adding to move r1 last, got %v", pass.Renderables)
	}

	s.ReleaseRenderable(r1)
	if len(pass.Renderables) != 1 || pass.Renderables[0] != r2 {
		t.Errorf("expected only r2 to remain, got %v", pass.Renderables)
	}
}

func TestSceneDataBufferUpdateGrows(t *testing.T) {
	s := NewScene(1)
	h := s.AllocateDataBuffer(DataBuffer{Type: DataBufferVertex, Element: resource.ElementFloat, Data: make([]byte, 4)}, InvalidDataBuffer)
	v := s.DataBuffer(h).Version

	s.UpdateDataBuffer(h, 2, []byte{1, 2, 3, 4})
	b := s.DataBuffer(h)
	if !bytes.Equal(b.Data, []byte{0, 0, 1, 2, 3, 4}) {
		t.Errorf("unexpected data %v", b.Data)
	}
	if b.Version != v+1 {
		t.Errorf("expected version %d, got %d", v+1, b.Version)
	}
}

func TestSceneTextureBufferDefaultsToOneMip(t *testing.T) {
	s := NewScene(1)
	h := s.AllocateTextureBuffer(TextureBuffer{Format: resource.FormatRGBA8, Width: 4, Height: 2}, InvalidTextureBuffer)
	b := s.TextureBuffer(h)
	if len(b.Mips) != 1 || len(b.Mips[0]) != 32 {
		t.Fatalf("expected one 32 byte mip, got %d mips", len(b.Mips))
	}
	expectPanic(t, "missing mip", func() { s.UpdateTextureBuffer(h, 1, nil) })
}

func TestSceneRenderTargetRequiresBuffers(t *testing.T) {
	s := NewScene(1)
	expectPanic(t, "unknown buffer", func() { s.AllocateRenderTarget([]RenderBufferHandle{4}, InvalidRenderTarget) })

	rb := s.AllocateRenderBuffer(RenderBuffer{Width: 8, Height: 8, Format: resource.FormatRGBA8}, InvalidRenderBuffer)
	if s.RenderBuffer(rb).SampleCount != 1 {
		t.Errorf("expected default sample count 1, got %d", s.RenderBuffer(rb).SampleCount)
	}
	rt := s.AllocateRenderTarget([]RenderBufferHandle{rb}, InvalidRenderTarget)
	if got := s.RenderTarget(rt).Buffers; len(got) != 1 || got[0] != rb {
		t.Errorf("expected [%d], got %v", rb, got)
	}
}

func TestScenePreallocateAndSizeInfo(t *testing.T) {
	s := NewScene(1)
	s.Preallocate(SizeInfo{Renderables: 4, BlitPasses: 2})
	s.AllocateRenderable(6)

	size := s.SizeInfo()
	if size.Renderables != 7 || size.BlitPasses != 2 {
		t.Errorf("unexpected size %+v", size)
	}
	m := size.Max(SizeInfo{Renderables: 2, DataLayouts: 3})
	if m.Renderables != 7 || m.DataLayouts != 3 {
		t.Errorf("unexpected max %+v", m)
	}
}

func TestApplyActions(t *testing.T) {
	s := NewScene(1)
	ApplyActions(s, []Action{
		AllocateDataLayout{Handle: 0, Fields: []DataField{{Type: DataTypeTextureSampler2D}}},
		AllocateDataInstance{Handle: 0, Layout: 0},
		AllocateTextureSampler{Handle: 2, Sampler: TextureSampler{ContentType: ContentClientTexture, Texture: resource.Hash{Low: 9}}},
		SetDataTextureSampler{Instance: 0, Field: 0, Sampler: 2},
		AllocateRenderable{Handle: 1},
		SetRenderableDataInstance{Renderable: 1, Slot: SlotUniforms, Instance: 0},
		SetRenderableVisibility{Renderable: 1, Visibility: VisibilityInvisible},
		AllocateStreamTexture{Handle: 0, Texture: StreamTexture{Source: 5}},
		SetForceFallbackImage{Handle: 0, Force: true},
	})

	if got := s.DataTextureSampler(0, 0); got != 2 {
		t.Errorf("expected sampler 2, got %d", got)
	}
	r := s.Renderable(1)
	if r.DataInstances[SlotUniforms] != 0 || r.Visibility != VisibilityInvisible {
		t.Errorf("unexpected renderable %+v", r)
	}
	if !s.StreamTexture(0).ForceFallback {
		t.Error("expected fallback to be forced")
	}
}
