package display

import (
	"encoding/csv"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/scenery/command"
	"github.com/gogpu/scenery/device"
	"github.com/gogpu/scenery/device/devicetest"
	"github.com/gogpu/scenery/event"
	"github.com/gogpu/scenery/resource"
	"github.com/gogpu/scenery/scenegraph"
)

const testDisplay command.DisplayID = 1

type recordingSender struct {
	mu     sync.Mutex
	subs   []scenegraph.SceneID
	unsubs []scenegraph.SceneID
}

func (s *recordingSender) SubscribeScene(_ command.DisplayID, id scenegraph.SceneID) {
	s.mu.Lock()
	s.subs = append(s.subs, id)
	s.mu.Unlock()
}

func (s *recordingSender) UnsubscribeScene(_ command.DisplayID, id scenegraph.SceneID) {
	s.mu.Lock()
	s.unsubs = append(s.unsubs, id)
	s.mu.Unlock()
}

// harness drives one bundle on a recording device with a fake clock.
type harness struct {
	t        *testing.T
	b        *Bundle
	dev      *devicetest.Device
	platform *Headless
	sender   *recordingSender
	store    *resource.Store
	now      time.Time

	renderer []event.Event
	scene    []event.Event
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		dev:    devicetest.New(),
		sender: &recordingSender{},
		store:  resource.NewStore(),
		now:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	opts.Store = h.store
	opts.Sender = h.sender
	opts.Now = func() time.Time { return h.now }
	opts.Platform = func(command.DisplayID, Config) (Platform, error) {
		h.platform = NewHeadless(h.dev, nil)
		return h.platform, nil
	}
	h.b = NewBundle(testDisplay, opts)
	return h
}

// newDisplay returns a harness whose display is already created.
func newDisplay(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t, Options{})
	h.push(command.CreateDisplay{Display: testDisplay, Config: testConfig()})
	h.loop(1)
	if !h.saw(event.DisplayCreated{Display: testDisplay}) {
		t.Fatalf("expected display to be created, got %v", h.renderer)
	}
	h.renderer = nil
	return h
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Width, cfg.Height = 4, 2
	return cfg
}

func (h *harness) push(cmds ...command.Command) { h.b.PushCommands(cmds...) }

func (h *harness) loop(n int) {
	for range n {
		h.b.DoOneLoop(UpdateAndRender, 0)
		h.renderer = append(h.renderer, h.b.TakeRendererEvents()...)
		h.scene = append(h.scene, h.b.TakeSceneControlEvents()...)
	}
}

// loopUntil loops until want was reported, at most 10 times.
func (h *harness) loopUntil(want event.Event) {
	h.t.Helper()
	for range 10 {
		if h.saw(want) {
			return
		}
		h.loop(1)
	}
	if !h.saw(want) {
		h.t.Fatalf("expected %s, got renderer %v scene %v", event.String(want), h.renderer, h.scene)
	}
}

func (h *harness) saw(want event.Event) bool {
	match := func(e event.Event) bool { return reflect.DeepEqual(e, want) }
	return slices.ContainsFunc(h.renderer, match) || slices.ContainsFunc(h.scene, match)
}

func (h *harness) states(id scenegraph.SceneID) []scenegraph.SceneState {
	var out []scenegraph.SceneState
	for _, e := range h.scene {
		if e, ok := e.(event.SceneStateChanged); ok && e.Scene == id {
			out = append(out, e.State)
		}
	}
	return out
}

// subscribe publishes id, maps it and requests target, then delivers u
// once the subscription was requested.
func (h *harness) subscribe(id scenegraph.SceneID, target scenegraph.SceneState, u scenegraph.SceneUpdate) {
	h.t.Helper()
	h.push(
		command.PublishScene{Scene: id},
		command.SetSceneMapping{Scene: id, Display: testDisplay},
		command.SetSceneState{Scene: id, State: target},
	)
	h.loop(1)
	h.push(command.ReceiveScene{Scene: id}, command.UpdateScene{Scene: id, Update: u})
}

func (h *harness) render(id scenegraph.SceneID, u scenegraph.SceneUpdate) {
	h.t.Helper()
	h.subscribe(id, scenegraph.SceneRendered, u)
	h.loopUntil(event.SceneStateChanged{Scene: id, State: scenegraph.SceneRendered})
}

type triangle struct {
	effect, indices, vertices *resource.Resource
}

func newTriangle() triangle {
	return triangle{
		effect: resource.NewEffect(resource.EffectDesc{
			Source:        "@vertex fn vs() -> @builtin(position) vec4f { return vec4f(); }",
			VertexEntry:   "vs",
			FragmentEntry: "fs",
		}, "effect"),
		indices:  resource.NewArray(resource.TypeIndexArray, resource.ElementUint16, []byte{0, 0, 1, 0, 2, 0}, "indices"),
		vertices: resource.NewArray(resource.TypeVertexArray, resource.ElementVector3F, make([]byte, 36), "vertices"),
	}
}

func (tr triangle) hashes() []resource.Hash {
	return []resource.Hash{tr.effect.Hash(), tr.indices.Hash(), tr.vertices.Hash()}
}

// update builds one indexed renderable with a matrix uniform drawn by a
// render pass into the display buffer.
func (tr triangle) update(version uint64) scenegraph.SceneUpdate {
	return scenegraph.SceneUpdate{
		Actions: []scenegraph.Action{
			scenegraph.AllocateDataLayout{Handle: 0, Effect: tr.effect.Hash(), Fields: []scenegraph.DataField{
				{Type: scenegraph.DataTypeIndices},
				{Type: scenegraph.DataTypeVector3Buffer},
			}},
			scenegraph.AllocateDataLayout{Handle: 1, Fields: []scenegraph.DataField{
				{Type: scenegraph.DataTypeMatrix44F},
			}},
			scenegraph.AllocateDataInstance{Handle: 0, Layout: 0},
			scenegraph.AllocateDataInstance{Handle: 1, Layout: 1},
			scenegraph.SetDataResource{Instance: 0, Field: 0, Value: scenegraph.ResourceField{Hash: tr.indices.Hash()}},
			scenegraph.SetDataResource{Instance: 0, Field: 1, Value: scenegraph.ResourceField{Hash: tr.vertices.Hash()}},
			scenegraph.SetDataValue{Instance: 1, Field: 0, Value: make([]byte, 64)},
			scenegraph.AllocateRenderable{Handle: 0},
			scenegraph.SetRenderableDataInstance{Renderable: 0, Slot: scenegraph.SlotGeometry, Instance: 0},
			scenegraph.SetRenderableDataInstance{Renderable: 0, Slot: scenegraph.SlotUniforms, Instance: 1},
			scenegraph.SetRenderableIndexRange{Renderable: 0, IndexCount: 3},
			scenegraph.AllocateRenderPass{Handle: 0, Pass: scenegraph.RenderPass{Target: scenegraph.InvalidRenderTarget, Enabled: true}},
			scenegraph.AddRenderableToRenderPass{Pass: 0, Renderable: 0},
		},
		Resources: []*resource.Resource{tr.effect, tr.indices, tr.vertices},
		Flush: scenegraph.FlushInfo{
			Version:   version,
			Resources: scenegraph.ResourceChanges{Added: tr.hashes()},
		},
	}
}

func emptyUpdate(version uint64) scenegraph.SceneUpdate {
	return scenegraph.SceneUpdate{Flush: scenegraph.FlushInfo{Version: version}}
}

func TestCreateDisplay(t *testing.T) {
	h := newDisplay(t)
	if h.platform == nil || h.b.dev != device.Device(h.dev) {
		t.Fatal("expected platform and device to be set up")
	}

	h.push(command.CreateDisplay{Display: testDisplay, Config: testConfig()})
	h.loop(1)
	if !h.saw(event.DisplayCreated{Display: testDisplay, Failed: true}) {
		t.Errorf("expected second creation to fail, got %v", h.renderer)
	}
}

func TestCreateDisplayWithoutPlatform(t *testing.T) {
	b := NewBundle(testDisplay, Options{})
	b.PushCommands(command.CreateDisplay{Display: testDisplay, Config: testConfig()})
	b.DoOneLoop(UpdateAndRender, 0)

	got := b.TakeRendererEvents()
	want := []event.Event{event.DisplayCreated{Display: testDisplay, Failed: true}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestDeviceCommandsFailWithoutDisplay(t *testing.T) {
	h := newHarness(t, Options{})
	clearColor := command.SetClearColor{Display: testDisplay, Buffer: scenegraph.InvalidOffscreenBuffer, Color: [4]float32{1, 0, 0, 1}}
	h.push(
		command.CreateOffscreenBuffer{Display: testDisplay, Buffer: 3, Width: 8, Height: 8},
		command.ReadPixels{Display: testDisplay, Buffer: scenegraph.InvalidOffscreenBuffer, FullScreen: true},
		clearColor,
	)
	h.loop(1)

	want := []event.Event{
		event.OffscreenBufferCreated{Display: testDisplay, Buffer: 3, Failed: true},
		event.ReadPixels{Display: testDisplay, Buffer: scenegraph.InvalidOffscreenBuffer, Failed: true},
		event.CommandFailed{Display: testDisplay, Command: command.String(clearColor)},
	}
	if !reflect.DeepEqual(h.renderer, want) {
		t.Errorf("expected %v, got %v", want, h.renderer)
	}
}

func TestPublishReportsAvailable(t *testing.T) {
	h := newHarness(t, Options{})
	h.push(command.PublishScene{Scene: 7})
	h.loop(1)

	if got := h.states(7); !slices.Equal(got, []scenegraph.SceneState{scenegraph.SceneAvailable}) {
		t.Errorf("expected [Available], got %v", got)
	}

	h.push(command.UnpublishScene{Scene: 7})
	h.loop(1)
	if got := h.states(7); len(got) != 2 || got[1] != scenegraph.SceneUnavailable {
		t.Errorf("expected Unavailable after unpublish, got %v", got)
	}
}

func TestSceneIsSubscribedOnlyWhenMapped(t *testing.T) {
	h := newDisplay(t)
	h.push(command.PublishScene{Scene: 2}, command.SetSceneState{Scene: 2, State: scenegraph.SceneReady})
	h.loop(2)
	if len(h.sender.subs) != 0 {
		t.Fatalf("expected no subscription without mapping, got %v", h.sender.subs)
	}

	h.push(command.SetSceneMapping{Scene: 2, Display: testDisplay})
	h.loop(1)
	if !slices.Equal(h.sender.subs, []scenegraph.SceneID{2}) {
		t.Errorf("expected subscription of scene 2, got %v", h.sender.subs)
	}
}

func TestSceneReachesRendered(t *testing.T) {
	h := newDisplay(t)
	tr := newTriangle()
	h.render(1, tr.update(1))

	want := []scenegraph.SceneState{scenegraph.SceneAvailable, scenegraph.SceneReady, scenegraph.SceneRendered}
	if got := h.states(1); !slices.Equal(got, want) {
		t.Errorf("expected states %v, got %v", want, got)
	}
	if !h.saw(event.SceneFlushed{Scene: 1, Version: 1}) {
		t.Error("expected flush to be reported")
	}
	if h.dev.Live("shader") != 1 || h.dev.Live("indexbuffer") != 1 || h.dev.Live("vertexbuffer") != 1 {
		t.Errorf("expected client resources on the device, calls %v", h.dev.Calls())
	}
	if h.dev.Live("vertexarray") != 1 {
		t.Errorf("expected one vertex array, got %d", h.dev.Live("vertexarray"))
	}
	if h.dev.CallCount("DrawIndexed(0,3,1)") == 0 {
		t.Errorf("expected indexed draw, calls %v", h.dev.Calls())
	}
	if h.dev.CallCount("SetUniform(0,64)") == 0 {
		t.Error("expected matrix uniform to be set")
	}
	if h.platform.Presents() == 0 {
		t.Error("expected frames to be presented")
	}
}

func TestUpdateOnlyDoesNotDraw(t *testing.T) {
	h := newDisplay(t)
	tr := newTriangle()
	h.subscribe(1, scenegraph.SceneRendered, tr.update(1))
	h.dev.ResetCalls()
	presents := h.platform.Presents()
	for range 5 {
		h.b.DoOneLoop(UpdateOnly, 0)
	}
	if h.dev.CallCount("Draw") != 0 || h.platform.Presents() != presents {
		t.Errorf("expected no drawing in update only mode, calls %v", h.dev.Calls())
	}
}

func TestHiddenRenderableIsNotDrawn(t *testing.T) {
	h := newDisplay(t)
	tr := newTriangle()
	u := tr.update(1)
	u.Actions = append(u.Actions, scenegraph.SetRenderableVisibility{Renderable: 0, Visibility: scenegraph.VisibilityInvisible})
	h.render(1, u)

	if h.dev.CallCount("Draw") != 0 {
		t.Errorf("expected invisible renderable to be skipped, calls %v", h.dev.Calls())
	}
}

func TestLoweringStateReleasesDeviceObjects(t *testing.T) {
	h := newDisplay(t)
	tr := newTriangle()
	h.render(1, tr.update(1))

	h.push(command.SetSceneState{Scene: 1, State: scenegraph.SceneReady})
	h.loop(1)
	if got := h.states(1); got[len(got)-1] != scenegraph.SceneReady {
		t.Fatalf("expected Ready, got %v", got)
	}
	if h.dev.Live("shader") != 1 {
		t.Error("expected resources to stay uploaded while ready")
	}

	h.push(command.SetSceneState{Scene: 1, State: scenegraph.SceneAvailable})
	h.loop(1)
	if got := h.states(1); got[len(got)-1] != scenegraph.SceneAvailable {
		t.Fatalf("expected Available, got %v", got)
	}
	if !slices.Equal(h.sender.unsubs, []scenegraph.SceneID{1}) {
		t.Errorf("expected unsubscription of scene 1, got %v", h.sender.unsubs)
	}
	for _, kind := range []string{"shader", "indexbuffer", "vertexbuffer", "vertexarray"} {
		if n := h.dev.Live(kind); n != 0 {
			t.Errorf("expected no live %s, got %d", kind, n)
		}
	}
	if h.store.Len() != 0 {
		t.Errorf("expected store to drop released resources, %d left", h.store.Len())
	}
}

func TestUnpublishDoesNotUnsubscribe(t *testing.T) {
	h := newDisplay(t)
	h.render(1, newTriangle().update(1))

	h.push(command.UnpublishScene{Scene: 1})
	h.loop(1)
	if got := h.states(1); got[len(got)-1] != scenegraph.SceneUnavailable {
		t.Errorf("expected Unavailable, got %v", got)
	}
	if len(h.sender.unsubs) != 0 {
		t.Errorf("expected no unsubscription of an unpublished scene, got %v", h.sender.unsubs)
	}
	if h.dev.Live("vertexarray") != 0 {
		t.Error("expected vertex array to be deleted")
	}
}

func TestFlushesPerFrameLimit(t *testing.T) {
	h := newDisplay(t)
	h.push(command.SetLimits{FlushesPerFrame: 1})
	h.subscribe(1, scenegraph.SceneReady, emptyUpdate(1))
	h.push(command.UpdateScene{Scene: 1, Update: emptyUpdate(2)})
	h.loop(1)

	if !h.saw(event.SceneFlushed{Scene: 1, Version: 1}) || h.saw(event.SceneFlushed{Scene: 1, Version: 2}) {
		t.Fatalf("expected one flush applied, got %v", h.scene)
	}
	h.loop(1)
	if !h.saw(event.SceneFlushed{Scene: 1, Version: 2}) {
		t.Errorf("expected second flush on the next loop, got %v", h.scene)
	}
}

func TestFlushWaitsForResourcesThenForces(t *testing.T) {
	h := newDisplay(t)
	h.push(command.SetLimits{ForceApplyAfter: 3})
	h.subscribe(1, scenegraph.SceneReady, emptyUpdate(1))
	h.loopUntil(event.SceneStateChanged{Scene: 1, State: scenegraph.SceneReady})

	missing := scenegraph.SceneUpdate{Flush: scenegraph.FlushInfo{
		Version:   2,
		Resources: scenegraph.ResourceChanges{Added: []resource.Hash{{Low: 0xdead}}},
	}}
	h.push(command.UpdateScene{Scene: 1, Update: missing})
	h.loop(2)
	if h.saw(event.SceneFlushed{Scene: 1, Version: 2}) {
		t.Fatal("expected flush to wait for its resources")
	}
	h.loop(1)
	if !h.saw(event.SceneFlushed{Scene: 1, Version: 2}) {
		t.Error("expected flush to be forced")
	}
}

func TestResourceReaddedInSameBatchStaysUploaded(t *testing.T) {
	h := newDisplay(t)
	tr := newTriangle()
	h.render(1, tr.update(1))

	vertices := []resource.Hash{tr.vertices.Hash()}
	h.push(
		command.UpdateScene{Scene: 1, Update: scenegraph.SceneUpdate{Flush: scenegraph.FlushInfo{
			Version:   2,
			Resources: scenegraph.ResourceChanges{Removed: vertices},
		}}},
		command.UpdateScene{Scene: 1, Update: scenegraph.SceneUpdate{
			Resources: []*resource.Resource{tr.vertices},
			Flush: scenegraph.FlushInfo{
				Version:   3,
				Resources: scenegraph.ResourceChanges{Added: vertices},
			},
		}},
	)
	h.loopUntil(event.SceneFlushed{Scene: 1, Version: 3})
	if m := h.store.Get(tr.vertices.Hash()); m == nil {
		t.Error("expected store to keep the re-added resource")
	} else {
		m.Release()
	}
	if n := h.dev.Live("vertexbuffer"); n != 1 {
		t.Errorf("expected the vertex buffer to stay on the device, got %d", n)
	}

	h.dev.ResetCalls()
	h.loop(1)
	if h.dev.CallCount("DrawIndexed(0,3,1)") == 0 {
		t.Errorf("expected renderable still drawn, calls %v", h.dev.Calls())
	}
}

func TestRemovedResourceInUseStopsDrawing(t *testing.T) {
	h := newDisplay(t)
	tr := newTriangle()
	h.render(1, tr.update(1))

	h.push(command.UpdateScene{Scene: 1, Update: scenegraph.SceneUpdate{Flush: scenegraph.FlushInfo{
		Version:   2,
		Resources: scenegraph.ResourceChanges{Removed: []resource.Hash{tr.vertices.Hash()}},
	}}})
	h.loop(1)
	h.dev.ResetCalls()
	h.loop(1)

	if n := h.dev.Live("vertexbuffer"); n != 0 {
		t.Errorf("expected the vertex buffer deleted, got %d", n)
	}
	if !h.b.scenes[1].scene.RenderableResourcesDirty(0) {
		t.Error("expected renderable dirty once its vertices were unloaded")
	}
	if n := h.dev.Live("vertexarray"); n != 0 {
		t.Errorf("expected the vertex array deleted, got %d", n)
	}
	if h.dev.CallCount("Draw") != 0 {
		t.Errorf("expected no draw without vertices, calls %v", h.dev.Calls())
	}
}

func TestFlushOfUnreceivedSceneIsDropped(t *testing.T) {
	h := newDisplay(t)
	h.push(command.PublishScene{Scene: 4}, command.UpdateScene{Scene: 4, Update: newTriangle().update(1)})
	h.loop(2)
	if h.saw(event.SceneFlushed{Scene: 4, Version: 1}) {
		t.Error("expected flush of a scene that was not received to be dropped")
	}
	if h.store.Len() != 0 {
		t.Errorf("expected dropped flush to leave the store empty, got %d", h.store.Len())
	}
}

func TestSceneExpiration(t *testing.T) {
	h := newDisplay(t)
	u := newTriangle().update(1)
	u.Flush.Expiration = h.now.Add(time.Second)
	h.render(1, u)
	if h.saw(event.SceneExpired{Scene: 1}) {
		t.Fatal("expected scene to be current")
	}

	h.now = h.now.Add(2 * time.Second)
	h.loop(1)
	if !h.saw(event.SceneExpired{Scene: 1}) {
		t.Fatalf("expected expiration, got %v", h.scene)
	}

	next := emptyUpdate(2)
	next.Flush.Expiration = h.now.Add(time.Second)
	h.push(command.UpdateScene{Scene: 1, Update: next})
	h.loop(1)
	if !h.saw(event.SceneRecoveredFromExpiration{Scene: 1}) {
		t.Errorf("expected recovery, got %v", h.scene)
	}
}

func TestOffscreenBuffer(t *testing.T) {
	h := newDisplay(t)
	h.push(command.CreateOffscreenBuffer{Display: testDisplay, Buffer: 5, Width: 8, Height: 8})
	h.loop(1)
	if !h.saw(event.OffscreenBufferCreated{Display: testDisplay, Buffer: 5}) {
		t.Fatalf("expected buffer to be created, got %v", h.renderer)
	}
	if h.dev.Live("renderbuffer") != 2 || h.dev.Live("rendertarget") != 1 {
		t.Errorf("expected color and depth buffers with a target, calls %v", h.dev.Calls())
	}

	h.push(command.SetSceneDisplayBufferAssignment{Scene: 1, Buffer: 9})
	h.loop(1)
	failed := event.CommandFailed{Display: testDisplay,
		Command: command.String(command.SetSceneDisplayBufferAssignment{Scene: 1, Buffer: 9})}
	if !h.saw(failed) {
		t.Errorf("expected assignment to unknown buffer to fail, got %v", h.renderer)
	}

	h.render(1, newTriangle().update(1))
	h.push(command.SetSceneDisplayBufferAssignment{Scene: 1, Buffer: 5, RenderOrder: 1})
	h.dev.ResetCalls()
	h.loop(1)
	calls := h.dev.Calls()
	draw := slices.Index(calls, "DrawIndexed(0,3,1)")
	present := slices.Index(calls, "Submit()")
	if draw < 0 || draw > present {
		t.Errorf("expected scene to be drawn before submit, calls %v", calls)
	}

	h.push(command.DestroyOffscreenBuffer{Display: testDisplay, Buffer: 5})
	h.loop(1)
	if !h.saw(event.OffscreenBufferDestroyed{Display: testDisplay, Buffer: 5, Failed: true}) {
		t.Error("expected destruction of a buffer in use to fail")
	}

	h.push(
		command.SetSceneDisplayBufferAssignment{Scene: 1, Buffer: scenegraph.InvalidOffscreenBuffer},
		command.DestroyOffscreenBuffer{Display: testDisplay, Buffer: 5},
	)
	h.loop(1)
	if !h.saw(event.OffscreenBufferDestroyed{Display: testDisplay, Buffer: 5}) {
		t.Errorf("expected buffer to be destroyed, got %v", h.renderer)
	}
	if h.dev.Live("renderbuffer") != 0 {
		t.Error("expected offscreen buffers to be deleted")
	}
}

func TestExternalAndStreamBuffers(t *testing.T) {
	h := newDisplay(t)
	h.push(
		command.CreateExternalBuffer{Display: testDisplay, Buffer: 1},
		command.CreateExternalBuffer{Display: testDisplay, Buffer: 1},
		command.CreateStreamBuffer{Display: testDisplay, Buffer: 2, Source: 7},
	)
	h.loop(1)
	want := []event.Event{
		event.ExternalBufferCreated{Display: testDisplay, Buffer: 1},
		event.ExternalBufferCreated{Display: testDisplay, Buffer: 1, Failed: true},
		event.StreamBufferCreated{Display: testDisplay, Buffer: 2},
	}
	if !reflect.DeepEqual(h.renderer, want) {
		t.Fatalf("expected %v, got %v", want, h.renderer)
	}

	h.platform.SetStreamSource(7, 50)
	h.loop(1)
	if !h.saw(event.StreamAvailabilityChanged{Source: 7, Available: true}) {
		t.Errorf("expected stream to become available, got %v", h.renderer)
	}
	if got := h.b.rm.StreamBufferDeviceHandle(2); got != 50 {
		t.Errorf("expected composited texture 50, got %d", got)
	}

	h.platform.SetStreamSource(7, device.Invalid)
	h.loop(1)
	if !h.saw(event.StreamAvailabilityChanged{Source: 7, Available: false}) {
		t.Errorf("expected stream to go away, got %v", h.renderer)
	}

	h.renderer = nil
	h.push(
		command.DestroyExternalBuffer{Display: testDisplay, Buffer: 1},
		command.DestroyStreamBuffer{Display: testDisplay, Buffer: 2},
		command.DestroyStreamBuffer{Display: testDisplay, Buffer: 2},
	)
	h.loop(1)
	want = []event.Event{
		event.ExternalBufferDestroyed{Display: testDisplay, Buffer: 1},
		event.StreamBufferDestroyed{Display: testDisplay, Buffer: 2},
		event.StreamBufferDestroyed{Display: testDisplay, Buffer: 2, Failed: true},
	}
	if !reflect.DeepEqual(h.renderer, want) {
		t.Errorf("expected %v, got %v", want, h.renderer)
	}
	if h.dev.Live("texture") != 0 {
		t.Error("expected external texture to be deleted")
	}
}

func TestReadPixelsEvent(t *testing.T) {
	h := newDisplay(t)
	h.dev.SetPixels([]byte{1, 2, 3, 4})
	h.push(command.ReadPixels{Display: testDisplay, Buffer: scenegraph.InvalidOffscreenBuffer, FullScreen: true})
	h.loop(1)

	var got *event.ReadPixels
	for _, e := range h.renderer {
		if e, ok := e.(event.ReadPixels); ok {
			got = &e
		}
	}
	if got == nil {
		t.Fatalf("expected pixels, got %v", h.renderer)
	}
	if got.Failed || got.Width != 4 || got.Height != 2 || len(got.Pixels) != 32 {
		t.Errorf("unexpected screenshot %s", event.String(*got))
	}
	if got.Pixels[0] != 1 || got.Pixels[3] != 4 {
		t.Errorf("expected device pixels, got %v", got.Pixels[:4])
	}
}

func TestReadPixelsOutsideBufferFails(t *testing.T) {
	h := newDisplay(t)
	h.push(command.ReadPixels{Display: testDisplay, Buffer: scenegraph.InvalidOffscreenBuffer, Rect: device.Rect{Width: 10, Height: 10}})
	h.loop(1)
	if !h.saw(event.ReadPixels{Display: testDisplay, Buffer: scenegraph.InvalidOffscreenBuffer, Failed: true}) {
		t.Errorf("expected failure, got %v", h.renderer)
	}
	if h.dev.CallCount("ReadPixels") != 0 {
		t.Error("expected no read back")
	}
}

func TestReadPixelsSavesFlippedPNG(t *testing.T) {
	h := newDisplay(t)
	red := []byte{255, 0, 0, 255}
	green := []byte{0, 255, 0, 255}
	var pixels []byte
	for range 4 {
		pixels = append(pixels, red...)
	}
	for range 4 {
		pixels = append(pixels, green...)
	}
	h.dev.SetPixels(pixels)

	path := filepath.Join(t.TempDir(), "shot.png")
	h.push(command.ReadPixels{Display: testDisplay, Buffer: scenegraph.InvalidOffscreenBuffer, FullScreen: true, Filename: path})
	h.loop(1)
	for _, e := range h.renderer {
		if _, ok := e.(event.ReadPixels); ok {
			t.Error("expected no event for a saved screenshot")
		}
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 2 {
		t.Fatalf("expected 4x2 image, got %v", b)
	}
	if r, g, _, _ := img.At(0, 0).RGBA(); r != 0 || g != 0xffff {
		t.Errorf("expected top row to be the last device row, got r=%d g=%d", r, g)
	}
	if r, g, _, _ := img.At(0, 1).RGBA(); r != 0xffff || g != 0 {
		t.Errorf("expected bottom row to be the first device row, got r=%d g=%d", r, g)
	}
}

func TestDestroyDisplay(t *testing.T) {
	h := newDisplay(t)
	h.render(1, newTriangle().update(1))

	h.push(command.DestroyDisplay{Display: testDisplay})
	h.loop(1)
	if !h.saw(event.DisplayDestroyed{Display: testDisplay, Failed: true}) {
		t.Fatalf("expected destruction with a mapped scene to fail, got %v", h.renderer)
	}

	h.push(command.SetSceneState{Scene: 1, State: scenegraph.SceneAvailable})
	h.loop(1)
	h.push(command.DestroyDisplay{Display: testDisplay})
	h.loop(1)
	if !h.saw(event.DisplayDestroyed{Display: testDisplay}) {
		t.Fatalf("expected display to be destroyed, got %v", h.renderer)
	}
	if !h.platform.Closed() {
		t.Error("expected platform to be closed")
	}
	if n := h.dev.Live(""); n != 2 {
		t.Errorf("expected only the framebuffer and empty texture left, got %d objects", n)
	}
}

func TestCloseUnmapsScenes(t *testing.T) {
	h := newDisplay(t)
	h.render(1, newTriangle().update(1))

	h.b.Close()
	if !slices.Equal(h.sender.unsubs, []scenegraph.SceneID{1}) {
		t.Errorf("expected scene to be unsubscribed, got %v", h.sender.unsubs)
	}
	if !h.platform.Closed() || h.dev.Live("") != 2 {
		t.Errorf("expected everything released, %d objects live", h.dev.Live(""))
	}
}

func TestSceneReferences(t *testing.T) {
	h := newDisplay(t)
	h.push(command.PublishScene{Scene: 2})
	h.loop(1)

	master := newTriangle().update(1)
	master.Flush.References = []scenegraph.ReferenceAction{
		{Type: scenegraph.ReferenceAdd, Referenced: 2},
		{Type: scenegraph.ReferenceRequestState, Referenced: 2, State: scenegraph.SceneReady},
	}
	h.render(1, master)
	if m, ok := h.b.MasterSceneOf(2); !ok || m != 1 {
		t.Fatalf("expected master 1, got %d %v", m, ok)
	}
	if !slices.Contains(h.sender.subs, 2) {
		t.Fatalf("expected referenced scene to be subscribed, got %v", h.sender.subs)
	}

	h.push(command.ReceiveScene{Scene: 2}, command.UpdateScene{Scene: 2, Update: emptyUpdate(4)})
	h.loopUntil(event.SceneReferenceStateChanged{Master: 1, Referenced: 2, State: scenegraph.SceneReady})
	if !h.saw(event.SceneReferenceFlushed{Master: 1, Referenced: 2, Version: 4}) {
		t.Errorf("expected referenced flush to be reported to the master, got %v", h.scene)
	}
	if h.saw(event.SceneFlushed{Scene: 2, Version: 4}) {
		t.Error("expected no plain flush event for a referenced scene")
	}

	remove := emptyUpdate(2)
	remove.Flush.References = []scenegraph.ReferenceAction{{Type: scenegraph.ReferenceRemove, Referenced: 2}}
	h.push(command.UpdateScene{Scene: 1, Update: remove})
	h.loop(2)
	if _, ok := h.b.MasterSceneOf(2); ok {
		t.Error("expected reference to be removed")
	}
	if !slices.Contains(h.sender.unsubs, 2) {
		t.Errorf("expected referenced scene to be unsubscribed, got %v", h.sender.unsubs)
	}
}

func TestReferenceToSelfFails(t *testing.T) {
	h := newDisplay(t)
	u := emptyUpdate(1)
	u.Flush.References = []scenegraph.ReferenceAction{{Type: scenegraph.ReferenceAdd, Referenced: 1}}
	h.subscribe(1, scenegraph.SceneReady, u)
	h.loop(2)
	if _, ok := h.b.MasterSceneOf(1); ok {
		t.Error("expected a scene not to reference itself")
	}
}

func TestStateRequestedBeforePublish(t *testing.T) {
	h := newDisplay(t)
	u := emptyUpdate(1)
	u.Flush.References = []scenegraph.ReferenceAction{
		{Type: scenegraph.ReferenceAdd, Referenced: 3},
		{Type: scenegraph.ReferenceRequestState, Referenced: 3, State: scenegraph.SceneReady},
	}
	h.subscribe(1, scenegraph.SceneReady, u)
	h.loop(2)
	if slices.Contains(h.sender.subs, 3) {
		t.Fatal("expected no subscription before the scene is published")
	}

	h.push(command.PublishScene{Scene: 3})
	h.loop(2)
	if !slices.Contains(h.sender.subs, 3) {
		t.Errorf("expected deferred request to subscribe scene 3, got %v", h.sender.subs)
	}
}

func TestDataLinks(t *testing.T) {
	h := newDisplay(t)
	h.subscribe(1, scenegraph.SceneReady, emptyUpdate(1))
	h.subscribe(2, scenegraph.SceneReady, emptyUpdate(1))
	h.loop(1)

	h.scene = nil
	h.push(
		command.LinkData{ProviderScene: 1, Provider: 3, ConsumerScene: 2, Consumer: 4},
		command.LinkData{ProviderScene: 1, Provider: 5, ConsumerScene: 2, Consumer: 4},
		command.LinkData{ProviderScene: 2, Provider: 3, ConsumerScene: 2, Consumer: 6},
		command.LinkData{ProviderScene: 9, Provider: 3, ConsumerScene: 2, Consumer: 7},
		command.UnlinkData{ConsumerScene: 2, Consumer: 4},
		command.UnlinkData{ConsumerScene: 2, Consumer: 4},
	)
	h.loop(1)

	var got []event.Event
	for _, e := range h.scene {
		switch e.(type) {
		case event.DataLinked, event.DataUnlinked:
			got = append(got, e)
		}
	}
	want := []event.Event{
		event.DataLinked{ProviderScene: 1, Provider: 3, ConsumerScene: 2, Consumer: 4},
		event.DataLinked{ProviderScene: 1, Provider: 5, ConsumerScene: 2, Consumer: 4, Failed: true},
		event.DataLinked{ProviderScene: 2, Provider: 3, ConsumerScene: 2, Consumer: 6, Failed: true},
		event.DataLinked{ProviderScene: 9, Provider: 3, ConsumerScene: 2, Consumer: 7, Failed: true},
		event.DataUnlinked{ConsumerScene: 2, Consumer: 4},
		event.DataUnlinked{ConsumerScene: 2, Consumer: 4, Failed: true},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestUnmappingDropsLinks(t *testing.T) {
	h := newDisplay(t)
	h.subscribe(1, scenegraph.SceneReady, emptyUpdate(1))
	h.subscribe(2, scenegraph.SceneReady, emptyUpdate(1))
	h.loop(1)
	h.push(command.LinkData{ProviderScene: 1, Provider: 3, ConsumerScene: 2, Consumer: 4})
	h.loop(1)

	h.push(command.SetSceneState{Scene: 1, State: scenegraph.SceneAvailable})
	h.loop(1)
	if len(h.b.links) != 0 {
		t.Errorf("expected links of a dropped scene to be removed, got %v", h.b.links)
	}
}

func TestWindowEvents(t *testing.T) {
	h := newDisplay(t)
	h.platform.Inject(func(w WindowEventHandler) {
		w.OnKey(event.KeyPressed, event.ModifierShift, 42)
		w.OnMouse(event.MouseLeftDown, 3, 4)
		w.OnResize(640, 480)
		w.OnClose()
	})
	h.loop(1)

	want := []event.Event{
		event.Key{Display: testDisplay, Type: event.KeyPressed, Modifiers: event.ModifierShift, Code: 42},
		event.Mouse{Display: testDisplay, Type: event.MouseLeftDown, X: 3, Y: 4},
		event.WindowResized{Display: testDisplay, Width: 640, Height: 480},
		event.WindowClosed{Display: testDisplay},
	}
	if !reflect.DeepEqual(h.renderer, want) {
		t.Errorf("expected %v, got %v", want, h.renderer)
	}
}

func TestClearColor(t *testing.T) {
	h := newDisplay(t)
	h.push(command.SetClearColor{Display: testDisplay, Buffer: scenegraph.InvalidOffscreenBuffer, Color: [4]float32{0, 0, 1, 1}})
	h.loop(1)
	if h.b.clearColor != [4]float32{0, 0, 1, 1} {
		t.Errorf("expected framebuffer clear color to change, got %v", h.b.clearColor)
	}

	h.push(command.SetClearColor{Display: testDisplay, Buffer: 8, Color: [4]float32{1, 1, 1, 1}})
	h.loop(1)
	if len(h.renderer) != 1 {
		t.Errorf("expected clear color of unknown buffer to fail, got %v", h.renderer)
	}
}

func TestFrameTimingReport(t *testing.T) {
	h := newHarness(t, Options{FrameTimingReportPeriod: time.Second})
	h.loop(1)
	if len(h.renderer) != 0 {
		t.Fatalf("expected no report within the period, got %v", h.renderer)
	}
	h.now = h.now.Add(2 * time.Second)
	h.loop(1)
	want := []event.Event{event.FrameTimingReport{Display: testDisplay}}
	if !reflect.DeepEqual(h.renderer, want) {
		t.Errorf("expected %v, got %v", want, h.renderer)
	}

	h.renderer = nil
	h.push(command.SetFrameTimingReportPeriod{Period: 0})
	h.now = h.now.Add(2 * time.Second)
	h.loop(2)
	if len(h.renderer) != 0 {
		t.Errorf("expected reporting to be disabled, got %v", h.renderer)
	}
}

func TestFrameTimingAverages(t *testing.T) {
	var ft frameTiming
	ft.setPeriod(time.Second)
	start := time.Unix(0, 0)
	if _, _, ok := ft.add(start, 10*time.Millisecond); ok {
		t.Fatal("expected no report on the first loop")
	}
	maxLoop, avg, ok := ft.add(start.Add(time.Second), 30*time.Millisecond)
	if !ok || maxLoop != 30*time.Millisecond || avg != 20*time.Millisecond {
		t.Errorf("expected max 30ms avg 20ms, got %v %v %v", maxLoop, avg, ok)
	}
}

func TestKPIMonitor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kpi.csv")
	h := newHarness(t, Options{FirstDisplay: true, KPIFile: path, KPIInterval: time.Second})
	h.push(command.CreateDisplay{Display: testDisplay, Config: testConfig()})
	h.loop(1)
	h.now = h.now.Add(2 * time.Second)
	h.loop(1)
	h.b.Close()

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected header and one record, got %v", records)
	}
	if !slices.Equal(records[0], kpiHeader) {
		t.Errorf("expected header %v, got %v", kpiHeader, records[0])
	}
	if records[1][1] != "1.00" {
		t.Errorf("expected 1 fps over 2 loops in 2s, got %s", records[1][1])
	}
}

func TestSceneStateNames(t *testing.T) {
	tests := []struct {
		state sceneState
		name  string
		pub   scenegraph.SceneState
	}{
		{stateUnknown, "Unknown", scenegraph.SceneUnavailable},
		{statePublished, "Published", scenegraph.SceneAvailable},
		{stateMappingRequested, "MappingRequested", scenegraph.SceneAvailable},
		{stateMapped, "Mapped", scenegraph.SceneReady},
		{stateRenderRequested, "RenderRequested", scenegraph.SceneReady},
		{stateRendered, "Rendered", scenegraph.SceneRendered},
	}
	for _, tt := range tests {
		if tt.state.String() != tt.name || tt.state.public() != tt.pub {
			t.Errorf("%d: expected %s/%s, got %s/%s", tt.state, tt.name, tt.pub, tt.state, tt.state.public())
		}
	}
}
