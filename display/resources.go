// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package display

import (
	"slices"

	"github.com/gogpu/scenery/cachedscene"
	"github.com/gogpu/scenery/device"
	"github.com/gogpu/scenery/internal/logging"
	"github.com/gogpu/scenery/resource"
	"github.com/gogpu/scenery/scenegraph"
	"github.com/gogpu/scenery/upload"
)

// clientResource is a client resource referenced by mapped scenes.
type clientResource struct {
	hash    resource.Hash
	usage   *resource.HashUsage
	managed *resource.Managed
	users   map[scenegraph.SceneID]struct{}

	typ    resource.Type
	handle device.Handle
	vram   uint32
	// broken resources failed to upload and are not retried.
	broken bool
}

type uploadedDataBuffer struct {
	handle  device.Handle
	typ     scenegraph.DataBufferType
	element resource.ElementType
	size    uint32
	version uint64
}

type uploadedTextureBuffer struct {
	handle  device.Handle
	format  resource.TextureFormat
	width   uint32
	height  uint32
	levels  int
	version uint64
}

type uploadedRenderBuffer struct {
	handle device.Handle
	desc   device.RenderBufferDesc
}

type uploadedRenderTarget struct {
	handle  device.Handle
	buffers []device.Handle
}

type uploadedBlitTargets struct {
	src, dst       device.Handle
	srcBuf, dstBuf device.Handle
}

// sceneObjects are the device objects owned by one mapped scene.
type sceneObjects struct {
	scene *cachedscene.Scene
	// hashes counts the references of the scene to each client resource:
	// one for an applied flush adding it, one per queued flush adding it.
	hashes         map[resource.Hash]int
	dataBuffers    map[scenegraph.DataBufferHandle]*uploadedDataBuffer
	textureBuffers map[scenegraph.TextureBufferHandle]*uploadedTextureBuffer
	renderBuffers  map[scenegraph.RenderBufferHandle]*uploadedRenderBuffer
	renderTargets  map[scenegraph.RenderTargetHandle]*uploadedRenderTarget
	blitTargets    map[scenegraph.BlitPassHandle]*uploadedBlitTargets
	vertexArrays   map[scenegraph.RenderableHandle]device.Handle
}

func newSceneObjects(s *cachedscene.Scene) *sceneObjects {
	return &sceneObjects{
		scene:          s,
		hashes:         make(map[resource.Hash]int),
		dataBuffers:    make(map[scenegraph.DataBufferHandle]*uploadedDataBuffer),
		textureBuffers: make(map[scenegraph.TextureBufferHandle]*uploadedTextureBuffer),
		renderBuffers:  make(map[scenegraph.RenderBufferHandle]*uploadedRenderBuffer),
		renderTargets:  make(map[scenegraph.RenderTargetHandle]*uploadedRenderTarget),
		blitTargets:    make(map[scenegraph.BlitPassHandle]*uploadedBlitTargets),
		vertexArrays:   make(map[scenegraph.RenderableHandle]device.Handle),
	}
}

// offscreenBuffer is a display buffer scenes can be rendered into and
// sampled from.
type offscreenBuffer struct {
	width, height uint32
	color         device.Handle
	depth         device.Handle
	target        device.Handle
	clearColor    [4]float32
}

// resourceManager owns every device object of a display. It uploads the
// client resources of mapped scenes, keeps scene-owned buffers in sync and
// answers handle lookups for resource-cached scenes.
type resourceManager struct {
	dev      device.Device
	store    *resource.Store
	uploader *upload.Uploader
	compiler *upload.AsyncEffectCompiler
	ec       cachedscene.EmbeddedCompositingManager

	resources map[resource.Hash]*clientResource
	scenes    map[scenegraph.SceneID]*sceneObjects

	offscreen map[scenegraph.OffscreenBufferHandle]*offscreenBuffer
	streams   map[scenegraph.StreamBufferHandle]uint32
	externals map[scenegraph.ExternalBufferHandle]device.Handle
}

var _ cachedscene.ResourceAccessor = (*resourceManager)(nil)

func newResourceManager(dev device.Device, store *resource.Store, up *upload.Uploader,
	compiler *upload.AsyncEffectCompiler, ec cachedscene.EmbeddedCompositingManager) *resourceManager {
	if ec == nil {
		ec = cachedscene.NoEmbeddedCompositing{}
	}
	return &resourceManager{
		dev:       dev,
		store:     store,
		uploader:  up,
		compiler:  compiler,
		ec:        ec,
		resources: make(map[resource.Hash]*clientResource),
		scenes:    make(map[scenegraph.SceneID]*sceneObjects),
		offscreen: make(map[scenegraph.OffscreenBufferHandle]*offscreenBuffer),
		streams:   make(map[scenegraph.StreamBufferHandle]uint32),
		externals: make(map[scenegraph.ExternalBufferHandle]device.Handle),
	}
}

// Client resources

// mapScene starts tracking the device objects of s and references hashes
// for upload.
func (m *resourceManager) mapScene(s *cachedscene.Scene, hashes []resource.Hash) {
	if _, ok := m.scenes[s.ID()]; ok {
		panic("display: scene mapped twice")
	}
	m.scenes[s.ID()] = newSceneObjects(s)
	m.referenceHashes(s.ID(), hashes)
}

func (m *resourceManager) isMapped(scene scenegraph.SceneID) bool {
	_, ok := m.scenes[scene]
	return ok
}

// referenceHashes adds one reference of a mapped scene to each of
// hashes.
func (m *resourceManager) referenceHashes(scene scenegraph.SceneID, hashes []resource.Hash) {
	objs := m.scenes[scene]
	for _, h := range hashes {
		objs.hashes[h]++
		if objs.hashes[h] > 1 {
			continue
		}
		r, ok := m.resources[h]
		if !ok {
			r = &clientResource{hash: h, usage: m.store.HashUsage(h), users: make(map[scenegraph.SceneID]struct{})}
			m.resources[h] = r
		}
		r.users[scene] = struct{}{}
	}
}

// unreferenceHashes drops one reference of a mapped scene to each of
// hashes.
func (m *resourceManager) unreferenceHashes(scene scenegraph.SceneID, hashes []resource.Hash) {
	objs := m.scenes[scene]
	for _, h := range hashes {
		n, ok := objs.hashes[h]
		if !ok {
			continue
		}
		if n > 1 {
			objs.hashes[h] = n - 1
			continue
		}
		m.dropHash(objs, h)
	}
}

// dropHash removes every reference of objs to h. A resource nobody uses
// anymore is deleted from the device and the renderables resolved from
// it go dirty.
func (m *resourceManager) dropHash(objs *sceneObjects, h resource.Hash) {
	delete(objs.hashes, h)
	r := m.resources[h]
	delete(r.users, objs.scene.ID())
	if len(r.users) == 0 {
		m.unloadResource(r)
		objs.scene.ResourceChanged(h)
	}
}

func (m *resourceManager) unloadResource(r *clientResource) {
	if r.handle.IsValid() {
		m.uploader.Unload(m.dev, r.typ, r.handle)
	}
	if r.managed != nil {
		r.managed.Release()
	}
	r.usage.Release()
	delete(m.resources, r.hash)
}

// uploadPending uploads every referenced resource without a device
// handle, and registers effects finished by the async compiler.
func (m *resourceManager) uploadPending() {
	m.registerCompiledEffects()

	for _, r := range m.resources {
		if r.handle.IsValid() || r.broken {
			continue
		}
		if r.managed == nil {
			if r.managed = m.store.Get(r.hash); r.managed == nil {
				if !m.store.Knows(r.hash) {
					// Not arrived yet.
					continue
				}
				if r.managed = m.store.Load(r.hash); r.managed == nil {
					r.broken = true
					continue
				}
			}
		}
		res := r.managed.Resource()
		r.typ = res.Type()
		h, vram, ok := m.uploader.Upload(m.dev, res)
		if ok {
			r.handle, r.vram = h, vram
			if r.typ == resource.TypeEffect && !m.uploader.AsyncEffects() {
				m.uploader.StoreShader(m.dev, h, r.hash, m.firstUser(r))
			}
			continue
		}
		if r.typ == resource.TypeEffect && m.compiler != nil {
			if !m.compiler.InFlight(r.hash) {
				m.compiler.Compile(r.managed, m.firstUser(r))
			}
			continue
		}
		r.broken = true
	}
}

func (m *resourceManager) registerCompiledEffects() {
	if m.compiler == nil {
		return
	}
	for _, c := range m.compiler.TakeCompiled() {
		r, ok := m.resources[c.Effect]
		if !ok || r.handle.IsValid() {
			// Unreferenced while compiling.
			continue
		}
		if c.Shader == nil {
			r.broken = true
			continue
		}
		h, err := m.dev.RegisterShader(c.Shader)
		if err != nil {
			logging.Logger().Error("display: failed to register compiled effect", "hash", c.Effect, "err", err)
			r.broken = true
			continue
		}
		r.handle = h
		m.uploader.StoreShader(m.dev, h, c.Effect, c.Scene)
	}
}

func (m *resourceManager) firstUser(r *clientResource) scenegraph.SceneID {
	var first scenegraph.SceneID
	found := false
	for s := range r.users {
		if !found || s < first {
			first, found = s, true
		}
	}
	return first
}

// resourcesUploaded reports whether every resource referenced by scene
// has a device handle.
func (m *resourceManager) resourcesUploaded(scene scenegraph.SceneID) bool {
	objs, ok := m.scenes[scene]
	if !ok {
		return false
	}
	for h := range objs.hashes {
		if !m.resources[h].handle.IsValid() {
			return false
		}
	}
	return true
}

func (m *resourceManager) uploaded(h resource.Hash) bool {
	r, ok := m.resources[h]
	return ok && r.handle.IsValid()
}

// Scene-owned objects

// syncScene brings the device copies of the data, texture and render
// buffers of s up to date and deletes the objects of released ones.
func (m *resourceManager) syncScene(s *cachedscene.Scene) {
	objs := m.scenes[s.ID()]
	m.syncDataBuffers(s, objs)
	m.syncTextureBuffers(s, objs)
	m.syncRenderBuffers(s, objs)
}

func (m *resourceManager) syncDataBuffers(s *cachedscene.Scene, objs *sceneObjects) {
	for h, u := range objs.dataBuffers {
		if !s.IsDataBufferAllocated(h) {
			m.deleteDataBuffer(u)
			delete(objs.dataBuffers, h)
			s.DataBufferChanged(h)
		}
	}
	s.EachDataBuffer(func(h scenegraph.DataBufferHandle, b *scenegraph.DataBuffer) {
		u, ok := objs.dataBuffers[h]
		if ok && u.version == b.Version {
			return
		}
		size := max(uint32(len(b.Data)), 1)
		if ok && (u.typ != b.Type || u.element != b.Element || u.size < size) {
			m.deleteDataBuffer(u)
			delete(objs.dataBuffers, h)
			ok = false
		}
		if !ok {
			handle, err := m.allocateDataBuffer(b, size)
			if err != nil {
				logging.Logger().Error("display: failed to allocate data buffer",
					"scene", s.ID(), "dataBuffer", h, "err", err)
				s.DataBufferChanged(h)
				return
			}
			u = &uploadedDataBuffer{handle: handle, typ: b.Type, element: b.Element, size: size}
			objs.dataBuffers[h] = u
			s.DataBufferChanged(h)
		}
		var err error
		if b.Type == scenegraph.DataBufferIndex {
			err = m.dev.UploadIndexBufferData(u.handle, b.Data)
		} else {
			err = m.dev.UploadVertexBufferData(u.handle, b.Data)
		}
		if err != nil {
			logging.Logger().Error("display: failed to upload data buffer",
				"scene", s.ID(), "dataBuffer", h, "err", err)
			return
		}
		u.version = b.Version
	})
}

func (m *resourceManager) allocateDataBuffer(b *scenegraph.DataBuffer, size uint32) (device.Handle, error) {
	if b.Type == scenegraph.DataBufferIndex {
		return m.dev.AllocateIndexBuffer(b.Element, size)
	}
	return m.dev.AllocateVertexBuffer(size)
}

func (m *resourceManager) deleteDataBuffer(u *uploadedDataBuffer) {
	if u.typ == scenegraph.DataBufferIndex {
		m.dev.DeleteIndexBuffer(u.handle)
	} else {
		m.dev.DeleteVertexBuffer(u.handle)
	}
}

func (m *resourceManager) syncTextureBuffers(s *cachedscene.Scene, objs *sceneObjects) {
	for h, u := range objs.textureBuffers {
		if !s.IsTextureBufferAllocated(h) {
			m.dev.DeleteTexture(u.handle)
			delete(objs.textureBuffers, h)
			s.TextureBufferChanged(h)
		}
	}
	s.EachTextureBuffer(func(h scenegraph.TextureBufferHandle, b *scenegraph.TextureBuffer) {
		u, ok := objs.textureBuffers[h]
		if ok && u.version == b.Version {
			return
		}
		if ok && (u.format != b.Format || u.width != b.Width || u.height != b.Height || u.levels != len(b.Mips)) {
			m.dev.DeleteTexture(u.handle)
			delete(objs.textureBuffers, h)
			ok = false
		}
		if !ok {
			levels := uint32(len(b.Mips))
			vram := device.MipChainSize(b.Format.TexelSize(), b.Width, b.Height, 1, levels)
			handle, err := m.dev.AllocateTexture2D(b.Width, b.Height, b.Format, levels, vram)
			if err != nil {
				logging.Logger().Error("display: failed to allocate texture buffer",
					"scene", s.ID(), "textureBuffer", h, "err", err)
				s.TextureBufferChanged(h)
				return
			}
			u = &uploadedTextureBuffer{handle: handle, format: b.Format, width: b.Width, height: b.Height, levels: len(b.Mips)}
			objs.textureBuffers[h] = u
			s.TextureBufferChanged(h)
		}
		for mip, data := range b.Mips {
			level := uint32(mip)
			w, ht := device.MipSize(level, b.Width), device.MipSize(level, b.Height)
			if err := m.dev.UploadTextureData(u.handle, level, 0, 0, 0, w, ht, 1, data); err != nil {
				logging.Logger().Error("display: failed to upload texture buffer",
					"scene", s.ID(), "textureBuffer", h, "mip", level, "err", err)
				return
			}
		}
		u.version = b.Version
	})
}

func (m *resourceManager) syncRenderBuffers(s *cachedscene.Scene, objs *sceneObjects) {
	// Targets go first, they refer to the buffers.
	for h, u := range objs.renderTargets {
		if !s.IsRenderTargetAllocated(h) {
			m.dev.DeleteRenderTarget(u.handle)
			delete(objs.renderTargets, h)
		}
	}
	for h, u := range objs.blitTargets {
		if !s.IsBlitPassAllocated(h) {
			m.deleteBlitTargets(u)
			delete(objs.blitTargets, h)
		}
	}

	replaced := false
	for h, u := range objs.renderBuffers {
		if !s.IsRenderBufferAllocated(h) || renderBufferDesc(s.RenderBuffer(h)) != u.desc {
			m.deleteTargetsUsing(objs, u.handle)
			m.dev.DeleteRenderBuffer(u.handle)
			delete(objs.renderBuffers, h)
			replaced = true
		}
	}
	s.EachRenderBuffer(func(h scenegraph.RenderBufferHandle, rb *scenegraph.RenderBuffer) {
		if _, ok := objs.renderBuffers[h]; ok {
			return
		}
		desc := renderBufferDesc(rb)
		handle, err := m.dev.UploadRenderBuffer(desc)
		if err != nil {
			logging.Logger().Error("display: failed to upload render buffer",
				"scene", s.ID(), "renderBuffer", h, "err", err)
			return
		}
		objs.renderBuffers[h] = &uploadedRenderBuffer{handle: handle, desc: desc}
	})
	if replaced {
		// Cached sampler, target and blit handles may point at deleted
		// buffers.
		s.ResetResourceCache()
	}
}

func renderBufferDesc(rb *scenegraph.RenderBuffer) device.RenderBufferDesc {
	return device.RenderBufferDesc{Width: rb.Width, Height: rb.Height, Format: rb.Format, SampleCount: rb.SampleCount}
}

func (m *resourceManager) deleteTargetsUsing(objs *sceneObjects, buffer device.Handle) {
	for h, u := range objs.renderTargets {
		if slices.Contains(u.buffers, buffer) {
			m.dev.DeleteRenderTarget(u.handle)
			delete(objs.renderTargets, h)
		}
	}
	for h, u := range objs.blitTargets {
		if u.srcBuf == buffer || u.dstBuf == buffer {
			m.deleteBlitTargets(u)
			delete(objs.blitTargets, h)
		}
	}
}

func (m *resourceManager) deleteBlitTargets(u *uploadedBlitTargets) {
	m.dev.DeleteRenderTarget(u.src)
	m.dev.DeleteRenderTarget(u.dst)
}

// updateVertexArrays rebuilds the dirty vertex arrays of s and deletes
// those of released renderables.
func (m *resourceManager) updateVertexArrays(s *cachedscene.Scene) {
	objs := m.scenes[s.ID()]
	dirty := s.DirtyVertexArrays()
	if len(dirty) == 0 {
		s.MarkVertexArraysClean()
		return
	}
	for _, h := range dirty {
		if !s.IsRenderableAllocated(h) || s.RenderableResourcesDirty(h) {
			m.deleteVertexArray(objs, h)
		}
	}
	s.UpdateRenderableVertexArrays(m, dirty)
	if !slices.ContainsFunc(dirty, s.RenderableVertexArrayDirty) {
		s.MarkVertexArraysClean()
	}
}

func (m *resourceManager) deleteVertexArray(objs *sceneObjects, h scenegraph.RenderableHandle) {
	if va, ok := objs.vertexArrays[h]; ok {
		m.dev.DeleteVertexArray(va)
		delete(objs.vertexArrays, h)
	}
}

// unmapScene deletes the device objects of scene and drops its resource
// references.
func (m *resourceManager) unmapScene(scene scenegraph.SceneID) {
	objs, ok := m.scenes[scene]
	if !ok {
		return
	}
	for h := range objs.vertexArrays {
		m.deleteVertexArray(objs, h)
	}
	for h, u := range objs.renderTargets {
		m.dev.DeleteRenderTarget(u.handle)
		delete(objs.renderTargets, h)
	}
	for h, u := range objs.blitTargets {
		m.deleteBlitTargets(u)
		delete(objs.blitTargets, h)
	}
	for _, u := range objs.renderBuffers {
		m.dev.DeleteRenderBuffer(u.handle)
	}
	for _, u := range objs.textureBuffers {
		m.dev.DeleteTexture(u.handle)
	}
	for _, u := range objs.dataBuffers {
		m.deleteDataBuffer(u)
	}
	for h := range objs.hashes {
		m.dropHash(objs, h)
	}
	delete(m.scenes, scene)
}

// Display buffers

func (m *resourceManager) createOffscreenBuffer(h scenegraph.OffscreenBufferHandle, width, height, samples uint32, clearColor [4]float32) bool {
	if _, ok := m.offscreen[h]; ok {
		logging.Logger().Error("display: offscreen buffer already exists", "buffer", h)
		return false
	}
	samples = max(samples, 1)
	color, err := m.dev.UploadRenderBuffer(device.RenderBufferDesc{Width: width, Height: height, Format: resource.FormatRGBA8, SampleCount: samples})
	if err != nil {
		logging.Logger().Error("display: failed to create offscreen color buffer", "buffer", h, "err", err)
		return false
	}
	depth, err := m.dev.UploadRenderBuffer(device.RenderBufferDesc{Width: width, Height: height, Format: resource.FormatDepth24Stencil8, SampleCount: samples})
	if err != nil {
		m.dev.DeleteRenderBuffer(color)
		logging.Logger().Error("display: failed to create offscreen depth buffer", "buffer", h, "err", err)
		return false
	}
	target, err := m.dev.UploadRenderTarget([]device.Handle{color, depth})
	if err != nil {
		m.dev.DeleteRenderBuffer(depth)
		m.dev.DeleteRenderBuffer(color)
		logging.Logger().Error("display: failed to create offscreen render target", "buffer", h, "err", err)
		return false
	}
	m.offscreen[h] = &offscreenBuffer{width: width, height: height, color: color, depth: depth, target: target, clearColor: clearColor}
	return true
}

func (m *resourceManager) destroyOffscreenBuffer(h scenegraph.OffscreenBufferHandle) bool {
	ob, ok := m.offscreen[h]
	if !ok {
		return false
	}
	m.dev.DeleteRenderTarget(ob.target)
	m.dev.DeleteRenderBuffer(ob.depth)
	m.dev.DeleteRenderBuffer(ob.color)
	delete(m.offscreen, h)
	return true
}

func (m *resourceManager) createStreamBuffer(h scenegraph.StreamBufferHandle, source uint32) bool {
	if _, ok := m.streams[h]; ok {
		return false
	}
	m.streams[h] = source
	return true
}

func (m *resourceManager) destroyStreamBuffer(h scenegraph.StreamBufferHandle) bool {
	if _, ok := m.streams[h]; !ok {
		return false
	}
	delete(m.streams, h)
	return true
}

func (m *resourceManager) createExternalBuffer(h scenegraph.ExternalBufferHandle) bool {
	if _, ok := m.externals[h]; ok {
		return false
	}
	tex, err := m.dev.AllocateTexture2D(1, 1, resource.FormatRGBA8, 1, 4)
	if err != nil {
		logging.Logger().Error("display: failed to create external buffer", "buffer", h, "err", err)
		return false
	}
	m.externals[h] = tex
	return true
}

func (m *resourceManager) destroyExternalBuffer(h scenegraph.ExternalBufferHandle) bool {
	tex, ok := m.externals[h]
	if !ok {
		return false
	}
	m.dev.DeleteTexture(tex)
	delete(m.externals, h)
	return true
}

// close deletes every device object. Scenes must be unmapped first.
func (m *resourceManager) close() {
	for id := range m.scenes {
		m.unmapScene(id)
	}
	for h := range m.offscreen {
		m.destroyOffscreenBuffer(h)
	}
	for h := range m.externals {
		m.destroyExternalBuffer(h)
	}
	clear(m.streams)
}

// ResourceAccessor

func (m *resourceManager) ResourceDeviceHandle(h resource.Hash) device.Handle {
	if r, ok := m.resources[h]; ok {
		return r.handle
	}
	return device.Invalid
}

func (m *resourceManager) DataBufferDeviceHandle(b scenegraph.DataBufferHandle, scene scenegraph.SceneID) device.Handle {
	if objs, ok := m.scenes[scene]; ok {
		if u, ok := objs.dataBuffers[b]; ok && u.version != 0 {
			return u.handle
		}
	}
	return device.Invalid
}

func (m *resourceManager) TextureBufferDeviceHandle(b scenegraph.TextureBufferHandle, scene scenegraph.SceneID) device.Handle {
	if objs, ok := m.scenes[scene]; ok {
		if u, ok := objs.textureBuffers[b]; ok && u.version != 0 {
			return u.handle
		}
	}
	return device.Invalid
}

func (m *resourceManager) RenderTargetBufferDeviceHandle(b scenegraph.RenderBufferHandle, scene scenegraph.SceneID) device.Handle {
	if objs, ok := m.scenes[scene]; ok {
		if u, ok := objs.renderBuffers[b]; ok {
			return u.handle
		}
	}
	return device.Invalid
}

func (m *resourceManager) RenderTargetDeviceHandle(rt scenegraph.RenderTargetHandle, scene scenegraph.SceneID) device.Handle {
	objs, ok := m.scenes[scene]
	if !ok {
		return device.Invalid
	}
	if u, ok := objs.renderTargets[rt]; ok {
		return u.handle
	}
	return device.Invalid
}

// ensureRenderTargets creates the device render targets of s whose
// buffers are uploaded. It runs before the scene resolves its handles.
func (m *resourceManager) ensureRenderTargets(s *cachedscene.Scene) {
	objs := m.scenes[s.ID()]
	s.EachRenderTarget(func(h scenegraph.RenderTargetHandle, rt *scenegraph.RenderTarget) {
		buffers := make([]device.Handle, 0, len(rt.Buffers))
		for _, b := range rt.Buffers {
			u, ok := objs.renderBuffers[b]
			if !ok {
				return
			}
			buffers = append(buffers, u.handle)
		}
		if u, ok := objs.renderTargets[h]; ok {
			if slices.Equal(u.buffers, buffers) {
				return
			}
			m.dev.DeleteRenderTarget(u.handle)
			delete(objs.renderTargets, h)
		}
		handle, err := m.dev.UploadRenderTarget(buffers)
		if err != nil {
			logging.Logger().Error("display: failed to upload render target",
				"scene", s.ID(), "renderTarget", h, "err", err)
			return
		}
		objs.renderTargets[h] = &uploadedRenderTarget{handle: handle, buffers: buffers}
	})
	s.EachBlitPass(func(h scenegraph.BlitPassHandle, bp *scenegraph.BlitPass) {
		src, okSrc := objs.renderBuffers[bp.Source]
		dst, okDst := objs.renderBuffers[bp.Destination]
		if !okSrc || !okDst {
			return
		}
		if u, ok := objs.blitTargets[h]; ok {
			if u.srcBuf == src.handle && u.dstBuf == dst.handle {
				return
			}
			m.deleteBlitTargets(u)
			delete(objs.blitTargets, h)
		}
		srcRT, err := m.dev.UploadRenderTarget([]device.Handle{src.handle})
		if err != nil {
			logging.Logger().Error("display: failed to upload blit source", "scene", s.ID(), "blitPass", h, "err", err)
			return
		}
		dstRT, err := m.dev.UploadRenderTarget([]device.Handle{dst.handle})
		if err != nil {
			m.dev.DeleteRenderTarget(srcRT)
			logging.Logger().Error("display: failed to upload blit destination", "scene", s.ID(), "blitPass", h, "err", err)
			return
		}
		objs.blitTargets[h] = &uploadedBlitTargets{src: srcRT, dst: dstRT, srcBuf: src.handle, dstBuf: dst.handle}
	})
}

func (m *resourceManager) BlitPassRenderTargets(bp scenegraph.BlitPassHandle, scene scenegraph.SceneID) (src, dst device.Handle) {
	if objs, ok := m.scenes[scene]; ok {
		if u, ok := objs.blitTargets[bp]; ok {
			return u.src, u.dst
		}
	}
	return device.Invalid, device.Invalid
}

// VertexArrayDeviceHandle replaces the vertex array of a resolved
// renderable.
func (m *resourceManager) VertexArrayDeviceHandle(r scenegraph.RenderableHandle, scene scenegraph.SceneID) device.Handle {
	objs, ok := m.scenes[scene]
	if !ok {
		return device.Invalid
	}
	m.deleteVertexArray(objs, r)
	info, ok := objs.scene.VertexArrayInfo(m, r)
	if !ok {
		return device.Invalid
	}
	va, err := m.dev.AllocateVertexArray(info)
	if err != nil {
		logging.Logger().Error("display: failed to allocate vertex array", "scene", scene, "renderable", r, "err", err)
		return device.Invalid
	}
	objs.vertexArrays[r] = va
	return va
}

func (m *resourceManager) OffscreenBufferColorBuffer(h scenegraph.OffscreenBufferHandle) device.Handle {
	if ob, ok := m.offscreen[h]; ok {
		return ob.color
	}
	return device.Invalid
}

func (m *resourceManager) StreamBufferDeviceHandle(h scenegraph.StreamBufferHandle) device.Handle {
	source, ok := m.streams[h]
	if !ok {
		return device.Invalid
	}
	return m.ec.CompositedTextureDeviceHandle(source)
}

func (m *resourceManager) ExternalBufferDeviceHandle(h scenegraph.ExternalBufferHandle) device.Handle {
	return m.externals[h]
}

func (m *resourceManager) EmptyExternalBufferDeviceHandle() device.Handle {
	return m.dev.EmptyExternalTexture()
}
