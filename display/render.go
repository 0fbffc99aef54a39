// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package display

import (
	"cmp"
	"maps"
	"slices"

	"github.com/gogpu/scenery/cachedscene"
	"github.com/gogpu/scenery/device"
	"github.com/gogpu/scenery/internal/logging"
	"github.com/gogpu/scenery/scenegraph"
)

// render draws every display buffer, offscreen buffers first so the
// framebuffer can sample them, then presents the frame.
func (b *Bundle) render() {
	for _, h := range slices.Sorted(maps.Keys(b.rm.offscreen)) {
		ob := b.rm.offscreen[h]
		b.renderBuffer(h, ob.target, ob.clearColor)
	}
	b.renderBuffer(scenegraph.InvalidOffscreenBuffer, b.dev.Framebuffer(), b.clearColor)

	if err := b.dev.Submit(); err != nil {
		logging.Logger().Error("display: submit failed", "display", b.id, "err", err)
		return
	}
	if err := b.platform.Present(); err != nil {
		logging.Logger().Error("display: present failed", "display", b.id, "err", err)
	}
}

// renderBuffer clears a display buffer and draws the scenes assigned to
// it by ascending render order.
func (b *Bundle) renderBuffer(buf scenegraph.OffscreenBufferHandle, target device.Handle, color [4]float32) {
	b.dev.ActivateRenderTarget(target)
	b.dev.Clear(device.ClearAll, color)

	var shown []*sceneEntry
	for _, e := range b.scenes {
		if e.buffer == buf && e.state >= stateRenderRequested {
			shown = append(shown, e)
		}
	}
	slices.SortFunc(shown, func(x, y *sceneEntry) int {
		return cmp.Or(cmp.Compare(x.order, y.order), cmp.Compare(x.id, y.id))
	})
	for _, e := range shown {
		b.drawScene(e.scene, target)
		if e.state == stateRenderRequested {
			b.setState(e, stateRendered)
		}
	}
}

// drawScene runs the enabled render and blit passes of s by order. A
// render pass without a target draws into the display buffer.
func (b *Bundle) drawScene(s *cachedscene.Scene, buffer device.Handle) {
	passes := s.SortedRenderPasses()
	var blits []scenegraph.BlitPassHandle
	s.EachBlitPass(func(h scenegraph.BlitPassHandle, p *scenegraph.BlitPass) {
		if p.Enabled {
			blits = append(blits, h)
		}
	})
	slices.SortStableFunc(blits, func(x, y scenegraph.BlitPassHandle) int {
		return cmp.Compare(s.BlitPass(x).Order, s.BlitPass(y).Order)
	})

	for len(passes) > 0 || len(blits) > 0 {
		if len(blits) == 0 || (len(passes) > 0 && s.RenderPass(passes[0]).Order <= s.BlitPass(blits[0]).Order) {
			b.drawRenderPass(s, passes[0], buffer)
			passes = passes[1:]
			continue
		}
		bp := s.BlitPass(blits[0])
		if src, dst := s.BlitPassDeviceHandles(blits[0]); src.IsValid() && dst.IsValid() {
			b.dev.BlitRenderTargets(src, dst, bp.SourceRect, bp.DestRect)
		}
		blits = blits[1:]
	}
}

func (b *Bundle) drawRenderPass(s *cachedscene.Scene, h scenegraph.RenderPassHandle, buffer device.Handle) {
	p := s.RenderPass(h)
	if p.Target.IsValid() {
		rt := s.RenderTargetDeviceHandle(p.Target)
		if !rt.IsValid() {
			return
		}
		b.dev.ActivateRenderTarget(rt)
		if p.ClearFlags != 0 {
			b.dev.Clear(p.ClearFlags, p.ClearColor)
		}
	} else {
		b.dev.ActivateRenderTarget(buffer)
	}
	for _, r := range p.Renderables {
		b.drawRenderable(s, r)
	}
}

// drawRenderable draws one renderable. Renderables that are hidden or not
// resolved yet are skipped.
func (b *Bundle) drawRenderable(s *cachedscene.Scene, h scenegraph.RenderableHandle) {
	r := s.Renderable(h)
	if r.Visibility != scenegraph.VisibilityVisible || s.RenderableResourcesDirty(h) {
		return
	}
	va := s.VertexArray(h)
	if !va.Handle.IsValid() {
		return
	}
	b.dev.ActivateShader(s.RenderableEffectDeviceHandle(h))

	if di := r.DataInstances[scenegraph.SlotUniforms]; di.IsValid() {
		var slot uint32
		for i, f := range s.DataLayout(s.DataInstance(di).Layout).Fields {
			field := uint32(i)
			switch {
			case f.Type.IsTextureSampler():
				ts := s.DataTextureSampler(di, field)
				b.dev.ActivateTexture(s.TextureSamplerDeviceHandle(ts), slot)
				slot++
			case f.Type.IsBuffer():
			default:
				if v := s.DataValue(di, field); v != nil {
					b.dev.SetUniform(field, v)
				}
			}
		}
	}

	b.dev.ActivateVertexArray(va.Handle)
	if va.UsesIndexArray {
		b.dev.DrawIndexed(r.StartIndex, r.IndexCount, r.InstanceCount)
	} else {
		b.dev.DrawArrays(r.StartVertex, r.IndexCount, r.InstanceCount)
	}
}
