package scenery

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/gogpu/scenery/command"
	"github.com/gogpu/scenery/device"
	"github.com/gogpu/scenery/device/devicetest"
	"github.com/gogpu/scenery/display"
	"github.com/gogpu/scenery/event"
	"github.com/gogpu/scenery/scenegraph"
)

func headless() display.PlatformFactory {
	return display.HeadlessFactory(func() device.Device { return devicetest.New() })
}

func newRenderer(t *testing.T, opts ...Option) *Renderer {
	t.Helper()
	r, err := New(opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := r.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
	})
	return r
}

func TestRendererLockstep(t *testing.T) {
	r := newRenderer(t, WithPlatform(headless()))
	r.Submit(command.CreateDisplay{Display: 1, Config: display.DefaultConfig()}, command.PublishScene{Scene: 3})
	if err := r.Flush(); err != nil {
		t.Fatal(err)
	}
	r.DoOneLoop()

	renderer, scene := r.DispatchEvents()
	if !slices.Contains(renderer, event.Event(event.DisplayCreated{Display: 1})) {
		t.Errorf("expected DisplayCreated, got %v", renderer)
	}
	if !slices.Contains(scene, event.Event(event.SceneStateChanged{Scene: 3, State: scenegraph.SceneAvailable})) {
		t.Errorf("expected scene to be available, got %v", scene)
	}
}

func TestRendererWithoutPlatform(t *testing.T) {
	r := newRenderer(t)
	r.Submit(command.CreateDisplay{Display: 1, Config: display.DefaultConfig()})
	if err := r.Flush(); err != nil {
		t.Fatal(err)
	}
	r.DoOneLoop()
	renderer, _ := r.DispatchEvents()
	if !slices.Contains(renderer, event.Event(event.DisplayCreated{Display: 1, Failed: true})) {
		t.Errorf("expected failed creation, got %v", renderer)
	}
}

func TestRendererAsyncEffectCompile(t *testing.T) {
	r := newRenderer(t, WithPlatform(headless()), WithAsyncEffectCompile(2))
	cmds := []command.Command{command.CreateDisplay{Display: 1, Config: display.DefaultConfig()}}
	r.Submit(cmds...)
	if cmds[0].(command.CreateDisplay).Config.AsyncEffectCompile {
		t.Error("expected submitted commands not to be modified in place")
	}
	if err := r.Flush(); err != nil {
		t.Fatal(err)
	}
	r.DoOneLoop()
	renderer, _ := r.DispatchEvents()
	if !slices.Contains(renderer, event.Event(event.DisplayCreated{Display: 1})) {
		t.Errorf("expected DisplayCreated, got %v", renderer)
	}
}

func TestRendererThreaded(t *testing.T) {
	r := newRenderer(t, WithPlatform(headless()), WithThreadedDisplays(true), WithMinFrameDuration(time.Millisecond))
	r.Submit(command.CreateDisplay{Display: 2, Config: display.DefaultConfig()})
	if err := r.Flush(); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		renderer, _ := r.DispatchEvents()
		if slices.Contains(renderer, event.Event(event.DisplayCreated{Display: 2})) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for display creation")
		}
		time.Sleep(time.Millisecond)
	}
	r.StopThreads()
}

func TestRendererClose(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if err := r.Flush(); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("expected second Close to succeed, got %v", err)
	}
}

func TestRendererShaderCacheUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shaders.bin")
	r, err := New(WithBinaryShaderCache(path, 16))
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected no cache file without new shaders, got %v", err)
	}
}

func TestRendererCorruptShaderCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shaders.bin")
	if err := os.WriteFile(path, []byte("not a cache"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := New(WithBinaryShaderCache(path, 16)); err == nil {
		t.Error("expected corrupt cache file to fail")
	}
}
