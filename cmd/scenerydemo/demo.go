// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/gogpu/scenery"
	"github.com/gogpu/scenery/command"
	"github.com/gogpu/scenery/device/devicetest"
	"github.com/gogpu/scenery/display"
	"github.com/gogpu/scenery/event"
	"github.com/gogpu/scenery/resource"
	"github.com/gogpu/scenery/scenegraph"
)

type demoConfig struct {
	Frames      int
	Displays    int
	Threaded    bool
	MinFrame    time.Duration
	ShaderCache string
	KPIFile     string
}

type demoStats struct {
	draws    int
	presents int
}

// provider answers subscription requests with the scene content, the
// way a client process would.
type provider struct {
	r        *scenery.Renderer
	triangle triangle
}

func (p *provider) SubscribeScene(_ command.DisplayID, s scenegraph.SceneID) {
	p.r.Submit(command.ReceiveScene{Scene: s}, command.UpdateScene{Scene: s, Update: p.triangle.update(1)})
}

func (p *provider) UnsubscribeScene(command.DisplayID, scenegraph.SceneID) {}

// platforms creates headless displays and keeps them for the statistics.
type platforms struct {
	mu   sync.Mutex
	all  []*display.Headless
	devs []*devicetest.Device
}

func (ps *platforms) create(command.DisplayID, display.Config) (display.Platform, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	dev := devicetest.New()
	p := display.NewHeadless(dev, nil)
	ps.all = append(ps.all, p)
	ps.devs = append(ps.devs, dev)
	return p, nil
}

func (ps *platforms) stats() demoStats {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	var s demoStats
	for i, p := range ps.all {
		s.presents += p.Presents()
		s.draws += ps.devs[i].CallCount("DrawIndexed")
	}
	return s
}

// run creates cfg.Displays displays showing one triangle scene each and
// prints the events of cfg.Frames frames to out.
func run(cfg demoConfig, out io.Writer) (demoStats, error) {
	p := &provider{triangle: newTriangle()}
	ps := &platforms{}
	opts := []scenery.Option{
		scenery.WithPlatform(ps.create),
		scenery.WithSceneEventSender(p),
		scenery.WithThreadedDisplays(cfg.Threaded),
		scenery.WithMinFrameDuration(cfg.MinFrame),
	}
	if cfg.ShaderCache != "" {
		opts = append(opts, scenery.WithBinaryShaderCache(cfg.ShaderCache, 256))
	}
	if cfg.KPIFile != "" {
		opts = append(opts, scenery.WithKPIFile(cfg.KPIFile, time.Second))
	}
	r, err := scenery.New(opts...)
	if err != nil {
		return demoStats{}, err
	}
	p.r = r

	for i := range cfg.Displays {
		id := command.DisplayID(i + 1)
		scene := scenegraph.SceneID(i + 1)
		r.Submit(
			command.CreateDisplay{Display: id, Config: display.DefaultConfig()},
			command.PublishScene{Scene: scene},
			command.SetSceneMapping{Scene: scene, Display: id},
			command.SetSceneState{Scene: scene, State: scenegraph.SceneRendered},
		)
	}

	for frame := range cfg.Frames {
		if err := r.Flush(); err != nil {
			return demoStats{}, err
		}
		if cfg.Threaded {
			time.Sleep(cfg.MinFrame)
		} else {
			r.DoOneLoop()
		}
		renderer, sceneControl := r.DispatchEvents()
		for _, e := range append(renderer, sceneControl...) {
			fmt.Fprintf(out, "frame %d: %s\n", frame, event.String(e))
		}
	}
	if err := r.Close(); err != nil {
		return demoStats{}, err
	}
	return ps.stats(), nil
}

type triangle struct {
	effect, indices, vertices *resource.Resource
}

func newTriangle() triangle {
	vertices := make([]byte, 0, 36)
	for _, f := range [][3]float32{{-1, -1, 0}, {1, -1, 0}, {0, 1, 0}} {
		for _, c := range f {
			vertices = appendFloat32(vertices, c)
		}
	}
	return triangle{
		effect: resource.NewEffect(resource.EffectDesc{
			Source: `@vertex fn vs(@location(0) p: vec3f) -> @builtin(position) vec4f { return vec4f(p, 1.0); }
@fragment fn fs() -> @location(0) vec4f { return vec4f(1.0, 0.5, 0.0, 1.0); }`,
			VertexEntry:   "vs",
			FragmentEntry: "fs",
		}, "triangle"),
		indices:  resource.NewArray(resource.TypeIndexArray, resource.ElementUint16, []byte{0, 0, 1, 0, 2, 0}, "indices"),
		vertices: resource.NewArray(resource.TypeVertexArray, resource.ElementVector3F, vertices, "vertices"),
	}
}

// update builds one indexed renderable drawn by a render pass into the
// framebuffer.
func (tr triangle) update(version uint64) scenegraph.SceneUpdate {
	identity := make([]byte, 0, 64)
	for i := range 16 {
		v := float32(0)
		if i%5 == 0 {
			v = 1
		}
		identity = appendFloat32(identity, v)
	}
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
			scenegraph.SetDataValue{Instance: 1, Field: 0, Value: identity},
			scenegraph.AllocateRenderable{Handle: 0},
			scenegraph.SetRenderableDataInstance{Renderable: 0, Slot: scenegraph.SlotGeometry, Instance: 0},
			scenegraph.SetRenderableDataInstance{Renderable: 0, Slot: scenegraph.SlotUniforms, Instance: 1},
			scenegraph.SetRenderableIndexRange{Renderable: 0, IndexCount: 3},
			scenegraph.AllocateRenderPass{Handle: 0, Pass: scenegraph.RenderPass{Target: scenegraph.InvalidRenderTarget, Enabled: true}},
			scenegraph.AddRenderableToRenderPass{Pass: 0, Renderable: 0},
		},
		Resources: []*resource.Resource{tr.effect, tr.indices, tr.vertices},
		Flush: scenegraph.FlushInfo{
			Version: version,
			Resources: scenegraph.ResourceChanges{
				Added: []resource.Hash{tr.effect.Hash(), tr.indices.Hash(), tr.vertices.Hash()},
			},
		},
	}
}

func appendFloat32(b []byte, f float32) []byte {
	return binary.LittleEndian.AppendUint32(b, math.Float32bits(f))
}
