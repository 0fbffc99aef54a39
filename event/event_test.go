package event

import (
	"reflect"
	"strings"
	"testing"

	"github.com/gogpu/scenery/command"
	"github.com/gogpu/scenery/scenegraph"
)

func TestCollectorSplitsStreams(t *testing.T) {
	var c Collector
	c.Add(SceneStateChanged{Scene: 1, State: scenegraph.SceneReady})
	c.Add(DisplayCreated{Display: 1})
	c.Add(DataLinked{ConsumerScene: 2})
	c.Add(WindowClosed{Display: 1})

	renderer, scene := c.Take()
	if len(renderer) != 2 || len(scene) != 2 {
		t.Fatalf("expected 2 renderer and 2 scene events, got %d and %d", len(renderer), len(scene))
	}
	if _, ok := renderer[0].(DisplayCreated); !ok {
		t.Errorf("expected DisplayCreated first, got %T", renderer[0])
	}
	if _, ok := scene[1].(DataLinked); !ok {
		t.Errorf("expected DataLinked second, got %T", scene[1])
	}

	renderer, scene = c.Take()
	if len(renderer) != 0 || len(scene) != 0 {
		t.Error("expected Take to clear the streams")
	}
}

func TestCollectorLen(t *testing.T) {
	var c Collector
	c.Add(SceneFlushed{Scene: 3, Version: 1})
	c.Add(WindowResized{Display: 1, Width: 10, Height: 20})
	if c.Len() != 2 {
		t.Fatalf("expected 2 events, got %d", c.Len())
	}
	c.Take()
	if c.Len() != 0 {
		t.Errorf("expected 0 events after Take, got %d", c.Len())
	}
}

func TestFailureFor(t *testing.T) {
	tests := []struct {
		name string
		cmd  command.Command
		want Event
		ok   bool
	}{
		{"read pixels", command.ReadPixels{Display: 4, Buffer: 2},
			ReadPixels{Display: 4, Buffer: 2, Failed: true}, true},
		{"offscreen", command.CreateOffscreenBuffer{Display: 4, Buffer: 1},
			OffscreenBufferCreated{Display: 4, Buffer: 1, Failed: true}, true},
		{"unlink", command.UnlinkData{ConsumerScene: 5, Consumer: 6},
			DataUnlinked{ConsumerScene: 5, Consumer: 6, Failed: true}, true},
		{"destroy display", command.DestroyDisplay{Display: 4},
			DisplayDestroyed{Display: 4, Failed: true}, true},
		{"receive scene", command.ReceiveScene{Scene: 1}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FailureFor(tt.cmd, 4)
			if ok != tt.ok {
				t.Fatalf("expected ok=%t, got %t", tt.ok, ok)
			}
			if ok && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestFailureForGenericCommand(t *testing.T) {
	got, ok := FailureFor(command.SetClearColor{Display: 8}, 8)
	if !ok {
		t.Fatal("expected a failure event")
	}
	f, isFailed := got.(CommandFailed)
	if !isFailed || f.Display != 8 || !strings.HasPrefix(f.Command, "SetClearColor") {
		t.Errorf("unexpected failure event %v", got)
	}
}
