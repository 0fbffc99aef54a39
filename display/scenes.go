// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package display

import (
	"cmp"
	"maps"
	"slices"
	"time"

	"github.com/gogpu/scenery/cachedscene"
	"github.com/gogpu/scenery/event"
	"github.com/gogpu/scenery/internal/logging"
	"github.com/gogpu/scenery/resource"
	"github.com/gogpu/scenery/scenegraph"
)

// sceneState is the state of a scene on one display. Every state implies
// the ones before it.
type sceneState uint8

const (
	stateUnknown sceneState = iota
	statePublished
	stateSubscriptionRequested
	stateSubscribed
	stateMappingRequested
	stateMapped
	stateRenderRequested
	stateRendered
)

var sceneStateNames = [...]string{
	stateUnknown:               "Unknown",
	statePublished:             "Published",
	stateSubscriptionRequested: "SubscriptionRequested",
	stateSubscribed:            "Subscribed",
	stateMappingRequested:      "MappingRequested",
	stateMapped:                "Mapped",
	stateRenderRequested:       "RenderRequested",
	stateRendered:              "Rendered",
}

func (s sceneState) String() string { return sceneStateNames[s] }

// public returns the client-visible state.
func (s sceneState) public() scenegraph.SceneState {
	switch {
	case s == stateUnknown:
		return scenegraph.SceneUnavailable
	case s < stateMapped:
		return scenegraph.SceneAvailable
	case s < stateRendered:
		return scenegraph.SceneReady
	}
	return scenegraph.SceneRendered
}

// limits bound the work spent on flushes per loop.
type limits struct {
	// flushesPerFrame is the number of flushes applied per scene and
	// loop. 0 means no limit.
	flushesPerFrame int
	// forceApplyAfter is the number of loops a flush waits for its
	// resources before it is applied anyway. 0 means never.
	forceApplyAfter int
}

var defaultLimits = limits{forceApplyAfter: 60}

// sceneEntry is everything a display knows about one scene.
type sceneEntry struct {
	id       scenegraph.SceneID
	state    sceneState
	reported scenegraph.SceneState
	target   scenegraph.SceneState
	// mapped is set when the scene is assigned to this display, either by
	// SetSceneMapping or by its master scene.
	mapped bool

	scene   *cachedscene.Scene
	hashes  map[resource.Hash]struct{}
	held    map[resource.Hash]*resource.Managed
	pending []pendingFlush
	waited  int
	version uint64

	buffer scenegraph.OffscreenBufferHandle
	order  int32

	expiration time.Time
	expired    bool
}

func newSceneEntry(id scenegraph.SceneID) *sceneEntry {
	return &sceneEntry{
		id:     id,
		hashes: make(map[resource.Hash]struct{}),
		held:   make(map[resource.Hash]*resource.Managed),
		buffer: scenegraph.InvalidOffscreenBuffer,
	}
}

// pendingFlush is a queued flush and the store handles of the resources
// it brought. The handles keep those resources alive until the flush is
// applied, whatever earlier flushes remove.
type pendingFlush struct {
	scenegraph.SceneUpdate
	managed []*resource.Managed
}

// usedHashes returns the resources of the applied flushes and of the
// pending ones.
func (e *sceneEntry) usedHashes() []resource.Hash {
	out := slices.Collect(maps.Keys(e.hashes))
	for _, u := range e.pending {
		out = append(out, u.Flush.Resources.Added...)
	}
	return out
}

func (b *Bundle) entry(id scenegraph.SceneID) *sceneEntry {
	e, ok := b.scenes[id]
	if !ok {
		e = newSceneEntry(id)
		b.scenes[id] = e
	}
	return e
}

// sortedEntries returns the scene entries by scene ID.
func (b *Bundle) sortedEntries() []*sceneEntry {
	out := slices.Collect(maps.Values(b.scenes))
	slices.SortFunc(out, func(x, y *sceneEntry) int { return cmp.Compare(x.id, y.id) })
	return out
}

func (b *Bundle) setState(e *sceneEntry, s sceneState) {
	logging.Logger().Debug("display: scene state",
		"display", b.id, "scene", e.id, "from", e.state, "to", s)
	e.state = s
	if pub := s.public(); pub != e.reported {
		e.reported = pub
		b.events.Add(event.SceneStateChanged{Scene: e.id, State: pub})
	}
}

// Commands

func (b *Bundle) publishScene(id scenegraph.SceneID) {
	e := b.entry(id)
	if e.state != stateUnknown {
		logging.Logger().Warn("display: scene published twice", "display", b.id, "scene", id)
		return
	}
	b.setState(e, statePublished)
	if target, ok := b.refs.takeRequested(id); ok {
		e.target = target
		e.mapped = e.mapped || target >= scenegraph.SceneReady
	}
}

func (b *Bundle) unpublishScene(id scenegraph.SceneID) {
	e, ok := b.scenes[id]
	if !ok || e.state == stateUnknown {
		logging.Logger().Warn("display: unpublished scene was not published", "display", b.id, "scene", id)
		return
	}
	b.lowerTo(e, statePublished, false)
	b.setState(e, stateUnknown)
	for _, ref := range b.refs.removeScene(id) {
		if re, ok := b.scenes[ref]; ok {
			re.target = scenegraph.SceneAvailable
			re.mapped = false
		}
	}
}

func (b *Bundle) setSceneMapping(id scenegraph.SceneID) {
	e := b.entry(id)
	if e.mapped {
		logging.Logger().Warn("display: scene already mapped", "display", b.id, "scene", id)
		return
	}
	e.mapped = true
}

func (b *Bundle) setSceneState(id scenegraph.SceneID, target scenegraph.SceneState) {
	e := b.entry(id)
	if target >= scenegraph.SceneReady && !e.mapped {
		logging.Logger().Warn("display: scene requested ready without mapping",
			"display", b.id, "scene", id, "state", target)
	}
	e.target = target
}

func (b *Bundle) assignDisplayBuffer(id scenegraph.SceneID, buf scenegraph.OffscreenBufferHandle, order int32) bool {
	if buf.IsValid() && (b.rm == nil || b.rm.offscreen[buf] == nil) {
		logging.Logger().Error("display: cannot assign scene to unknown offscreen buffer",
			"display", b.id, "scene", id, "buffer", buf)
		return false
	}
	e := b.entry(id)
	e.buffer, e.order = buf, order
	return true
}

func (b *Bundle) receiveScene(id scenegraph.SceneID) {
	e, ok := b.scenes[id]
	if !ok || e.state != stateSubscriptionRequested || e.scene != nil {
		logging.Logger().Error("display: received scene that was not requested", "display", b.id, "scene", id)
		return
	}
	e.scene = cachedscene.New(id)
}

func (b *Bundle) queueFlush(id scenegraph.SceneID, u scenegraph.SceneUpdate) {
	e, ok := b.scenes[id]
	if !ok || e.scene == nil {
		logging.Logger().Warn("display: dropping flush of scene not received", "display", b.id, "scene", id,
			"version", u.Flush.Version)
		return
	}
	f := pendingFlush{managed: make([]*resource.Managed, 0, len(u.Resources))}
	for _, res := range u.Resources {
		f.managed = append(f.managed, b.opts.Store.Manage(res, true))
	}
	u.Resources = nil
	f.SceneUpdate = u
	e.pending = append(e.pending, f)
	if b.rm != nil && b.rm.isMapped(id) {
		b.rm.referenceHashes(id, u.Flush.Resources.Added)
	}
}

// State machine

// updateSceneControl moves every scene one step toward its target state.
func (b *Bundle) updateSceneControl() {
	for _, e := range b.sortedEntries() {
		b.advance(e)
	}
}

func (b *Bundle) advance(e *sceneEntry) {
	if e.state == stateUnknown {
		return
	}
	switch {
	case e.target < scenegraph.SceneReady || !e.mapped:
		b.lowerTo(e, statePublished, true)
	case e.target < scenegraph.SceneRendered:
		b.lowerTo(e, stateMapped, true)
	}

	switch e.state {
	case statePublished:
		if e.target >= scenegraph.SceneReady && e.mapped {
			b.opts.Sender.SubscribeScene(b.id, e.id)
			b.setState(e, stateSubscriptionRequested)
		}
	case stateSubscribed:
		if e.target >= scenegraph.SceneReady && e.mapped {
			b.rm.mapScene(e.scene, e.usedHashes())
			b.setState(e, stateMappingRequested)
		}
	case stateMapped:
		if e.target == scenegraph.SceneRendered {
			b.setState(e, stateRenderRequested)
		}
	}
}

// lowerTo walks e down to state s. With unsubscribe unset a dropped
// scene is not reported to its provider.
func (b *Bundle) lowerTo(e *sceneEntry, s sceneState, unsubscribe bool) {
	if e.state >= stateRenderRequested && s < stateRenderRequested {
		b.setState(e, stateMapped)
	}
	if e.state >= stateMappingRequested && s < stateMappingRequested {
		b.rm.unmapScene(e.id)
		e.scene.ResetResourceCache()
		b.setState(e, stateSubscribed)
	}
	if e.state >= stateSubscriptionRequested && s < stateSubscriptionRequested {
		if unsubscribe {
			b.opts.Sender.UnsubscribeScene(b.id, e.id)
		}
		b.dropScene(e)
		b.setState(e, statePublished)
	}
}

func (b *Bundle) dropScene(e *sceneEntry) {
	for _, m := range e.held {
		m.Release()
	}
	clear(e.held)
	clear(e.hashes)
	for _, f := range e.pending {
		f.release()
	}
	e.pending = nil
	e.scene = nil
	e.waited = 0
	e.version = 0
	e.expiration = time.Time{}
	b.dropLinksOf(e.id)
}

// Flushes

// applyPendingFlushes applies the queued flushes of every received scene
// in order. While a scene is mapped a flush waits until the resources it
// adds are uploaded, or until it has waited limits.forceApplyAfter loops.
func (b *Bundle) applyPendingFlushes() {
	for _, e := range b.sortedEntries() {
		if e.scene == nil || len(e.pending) == 0 {
			continue
		}
		mapped := e.state >= stateMappingRequested
		applied := 0
		for len(e.pending) > 0 {
			if b.limits.flushesPerFrame > 0 && applied == b.limits.flushesPerFrame {
				break
			}
			u := e.pending[0]
			if mapped && !b.flushResourcesReady(u) {
				e.waited++
				if b.limits.forceApplyAfter == 0 || e.waited < b.limits.forceApplyAfter {
					break
				}
				logging.Logger().Warn("display: applying flush with missing resources",
					"display", b.id, "scene", e.id, "version", u.Flush.Version, "waited", e.waited)
			}
			e.pending = e.pending[1:]
			e.waited = 0
			b.applyFlush(e, u)
			applied++
		}
	}
}

func (f pendingFlush) release() {
	for _, m := range f.managed {
		m.Release()
	}
}

func (b *Bundle) flushResourcesReady(u pendingFlush) bool {
	for _, h := range u.Flush.Resources.Added {
		if !b.rm.uploaded(h) {
			return false
		}
	}
	return true
}

func (b *Bundle) applyFlush(e *sceneEntry, u pendingFlush) {
	s := e.scene
	if u.Flush.Size != (scenegraph.SizeInfo{}) {
		s.Preallocate(u.Flush.Size)
	}
	scenegraph.ApplyActions(s, u.Actions)

	for _, m := range u.managed {
		if _, dup := e.held[m.Hash()]; dup {
			m.Release()
			continue
		}
		e.held[m.Hash()] = m
	}

	// The reference taken when the flush was queued becomes the one of
	// the applied flushes, unless they already hold one.
	mapped := b.rm != nil && b.rm.isMapped(e.id)
	var dropped []resource.Hash
	for _, h := range u.Flush.Resources.Added {
		if _, ok := e.hashes[h]; ok {
			dropped = append(dropped, h)
			continue
		}
		e.hashes[h] = struct{}{}
	}
	for _, h := range u.Flush.Resources.Removed {
		if _, ok := e.hashes[h]; !ok {
			continue
		}
		delete(e.hashes, h)
		dropped = append(dropped, h)
		if m, ok := e.held[h]; ok {
			m.Release()
			delete(e.held, h)
		}
	}
	if mapped && len(dropped) > 0 {
		b.rm.unreferenceHashes(e.id, dropped)
	}

	b.applyReferenceActions(e.id, u.Flush.References)

	e.version = u.Flush.Version
	e.expiration = u.Flush.Expiration
	b.events.Add(event.SceneFlushed{Scene: e.id, Version: u.Flush.Version})
	logging.Logger().Debug("display: flush applied", "display", b.id, "scene", e.id,
		"version", u.Flush.Version, "actions", len(u.Actions))

	if e.state == stateSubscriptionRequested {
		b.setState(e, stateSubscribed)
	}
}

// updateScenes uploads resources, applies flushes and resolves the device
// handles of every mapped scene.
func (b *Bundle) updateScenes() {
	b.rm.uploadPending()
	b.applyPendingFlushes()

	for _, e := range b.sortedEntries() {
		if e.state < stateMappingRequested {
			continue
		}
		s := e.scene
		b.rm.syncScene(s)
		b.rm.ensureRenderTargets(s)
		s.UpdateRenderableResources(b.rm, b.platform.EmbeddedCompositing())
		b.rm.updateVertexArrays(s)

		if e.state == stateMappingRequested && len(e.pending) == 0 && b.rm.resourcesUploaded(e.id) {
			b.setState(e, stateMapped)
		}
	}
}

// Expiration

// checkExpiration reports rendered scenes that show content past their
// expiration time, and their recovery.
func (b *Bundle) checkExpiration(now time.Time) {
	for _, e := range b.sortedEntries() {
		monitored := e.state == stateRendered && !e.expiration.IsZero()
		late := monitored && now.After(e.expiration)
		switch {
		case late && !e.expired:
			e.expired = true
			logging.Logger().Warn("display: scene expired", "display", b.id, "scene", e.id,
				"version", e.version, "expiration", e.expiration)
			b.events.Add(event.SceneExpired{Scene: e.id})
		case !late && e.expired:
			e.expired = false
			logging.Logger().Info("display: scene recovered from expiration", "display", b.id, "scene", e.id)
			b.events.Add(event.SceneRecoveredFromExpiration{Scene: e.id})
		}
	}
}
