// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package display

import (
	"sync"

	"github.com/gogpu/scenery/event"
	"github.com/gogpu/scenery/internal/logging"
	"github.com/gogpu/scenery/scenegraph"
)

// referenceLogic tracks which master scene controls each referenced
// scene. masterOf is called from the dispatcher, everything else from the
// display loop.
type referenceLogic struct {
	mu      sync.Mutex
	masters map[scenegraph.SceneID]scenegraph.SceneID

	// requested holds states requested for referenced scenes that are
	// not published on this display yet.
	requested map[scenegraph.SceneID]scenegraph.SceneState
}

func newReferenceLogic() *referenceLogic {
	return &referenceLogic{
		masters:   make(map[scenegraph.SceneID]scenegraph.SceneID),
		requested: make(map[scenegraph.SceneID]scenegraph.SceneState),
	}
}

func (r *referenceLogic) masterOf(ref scenegraph.SceneID) (scenegraph.SceneID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.masters[ref]
	return m, ok
}

func (r *referenceLogic) add(master, ref scenegraph.SceneID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.masters[ref]; taken || ref == master {
		return false
	}
	r.masters[ref] = master
	return true
}

func (r *referenceLogic) remove(master, ref scenegraph.SceneID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.masters[ref]; !ok || m != master {
		return false
	}
	delete(r.masters, ref)
	delete(r.requested, ref)
	return true
}

// removeScene forgets scene both as master and as referenced scene and
// returns the scenes it referenced.
func (r *referenceLogic) removeScene(scene scenegraph.SceneID) []scenegraph.SceneID {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.masters, scene)
	var refs []scenegraph.SceneID
	for ref, m := range r.masters {
		if m == scene {
			refs = append(refs, ref)
			delete(r.masters, ref)
			delete(r.requested, ref)
		}
	}
	return refs
}

func (r *referenceLogic) request(ref scenegraph.SceneID, s scenegraph.SceneState) {
	r.mu.Lock()
	r.requested[ref] = s
	r.mu.Unlock()
}

func (r *referenceLogic) takeRequested(ref scenegraph.SceneID) (scenegraph.SceneState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.requested[ref]
	delete(r.requested, ref)
	return s, ok
}

// MasterSceneOf returns the master scene referencing ref on this display.
// It is safe to call from any goroutine.
func (b *Bundle) MasterSceneOf(ref scenegraph.SceneID) (scenegraph.SceneID, bool) {
	return b.refs.masterOf(ref)
}

// applyReferenceActions runs the reference actions carried by a flush of
// master.
func (b *Bundle) applyReferenceActions(master scenegraph.SceneID, actions []scenegraph.ReferenceAction) {
	log := logging.Logger()
	for _, a := range actions {
		switch a.Type {
		case scenegraph.ReferenceAdd:
			if !b.refs.add(master, a.Referenced) {
				log.Error("display: cannot reference scene", "display", b.id, "master", master, "scene", a.Referenced)
				continue
			}
			log.Info("display: scene referenced", "display", b.id, "master", master, "scene", a.Referenced)
		case scenegraph.ReferenceRemove:
			if !b.refs.remove(master, a.Referenced) {
				log.Error("display: cannot remove scene reference", "display", b.id, "master", master, "scene", a.Referenced)
				continue
			}
			if e, ok := b.scenes[a.Referenced]; ok {
				e.target = scenegraph.SceneAvailable
				e.mapped = false
			}
		case scenegraph.ReferenceRequestState:
			if m, ok := b.refs.masterOf(a.Referenced); !ok || m != master {
				log.Error("display: state request for scene not referenced by master",
					"display", b.id, "master", master, "scene", a.Referenced, "state", a.State)
				continue
			}
			e, ok := b.scenes[a.Referenced]
			if !ok || e.state == stateUnknown {
				b.refs.request(a.Referenced, a.State)
				continue
			}
			e.target = a.State
			if a.State >= scenegraph.SceneReady {
				e.mapped = true
			}
		case scenegraph.ReferenceLinkData:
			b.linkData(a.ProviderScene, a.Provider, a.ConsumerScene, a.Consumer)
		case scenegraph.ReferenceUnlinkData:
			b.unlinkData(a.ConsumerScene, a.Consumer)
		}
	}
}

// referenceEvents rewrites the scene events of referenced scenes into
// events for their master.
func (b *Bundle) referenceEvents(events []event.Event) []event.Event {
	for i, ev := range events {
		switch ev := ev.(type) {
		case event.SceneStateChanged:
			if m, ok := b.refs.masterOf(ev.Scene); ok {
				events[i] = event.SceneReferenceStateChanged{Master: m, Referenced: ev.Scene, State: ev.State}
			}
		case event.SceneFlushed:
			if m, ok := b.refs.masterOf(ev.Scene); ok {
				events[i] = event.SceneReferenceFlushed{Master: m, Referenced: ev.Scene, Version: ev.Version}
			}
		}
	}
	return events
}

// Data links

type dataSlot struct {
	scene scenegraph.SceneID
	slot  scenegraph.DataSlotID
}

// linkData links a consumer slot to a provider slot. Both scenes must be
// received on this display and differ, and the consumer must be free.
func (b *Bundle) linkData(providerScene scenegraph.SceneID, provider scenegraph.DataSlotID,
	consumerScene scenegraph.SceneID, consumer scenegraph.DataSlotID) {
	p := dataSlot{providerScene, provider}
	c := dataSlot{consumerScene, consumer}
	_, linked := b.links[c]
	ok := providerScene != consumerScene && b.received(providerScene) && b.received(consumerScene) && !linked
	if ok {
		b.links[c] = p
		logging.Logger().Info("display: data linked", "display", b.id,
			"provider", providerScene, "providerSlot", provider, "consumer", consumerScene, "consumerSlot", consumer)
	} else {
		logging.Logger().Error("display: cannot link data", "display", b.id,
			"provider", providerScene, "providerSlot", provider, "consumer", consumerScene, "consumerSlot", consumer)
	}
	b.events.Add(event.DataLinked{ProviderScene: providerScene, Provider: provider,
		ConsumerScene: consumerScene, Consumer: consumer, Failed: !ok})
}

func (b *Bundle) unlinkData(consumerScene scenegraph.SceneID, consumer scenegraph.DataSlotID) {
	c := dataSlot{consumerScene, consumer}
	_, ok := b.links[c]
	if ok {
		delete(b.links, c)
	} else {
		logging.Logger().Error("display: cannot unlink data slot that is not linked",
			"display", b.id, "consumer", consumerScene, "consumerSlot", consumer)
	}
	b.events.Add(event.DataUnlinked{ConsumerScene: consumerScene, Consumer: consumer, Failed: !ok})
}

func (b *Bundle) received(id scenegraph.SceneID) bool {
	e, ok := b.scenes[id]
	return ok && e.scene != nil
}

// dropLinksOf removes the links a scene takes part in.
func (b *Bundle) dropLinksOf(id scenegraph.SceneID) {
	for c, p := range b.links {
		if c.scene == id || p.scene == id {
			delete(b.links, c)
		}
	}
}
