package display

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/scenery/command"
	"github.com/gogpu/scenery/device"
	"github.com/gogpu/scenery/device/devicetest"
	"github.com/gogpu/scenery/event"
)

type countingWatchdog struct {
	mu    sync.Mutex
	count map[command.DisplayID]int
}

func (w *countingWatchdog) Notify(d command.DisplayID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.count == nil {
		w.count = make(map[command.DisplayID]int)
	}
	w.count[d]++
}

func (w *countingWatchdog) notified(d command.DisplayID) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count[d]
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestThreadRunsLoops(t *testing.T) {
	b := NewBundle(3, Options{Platform: HeadlessFactory(func() device.Device { return devicetest.New() })})
	w := &countingWatchdog{}
	th := NewThread(b, w)
	th.SetMinFrameDuration(0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- th.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	if th.FrameCounter() != 0 {
		t.Fatal("expected an idle thread not to loop")
	}

	b.PushCommands(command.CreateDisplay{Display: 3, Config: DefaultConfig()})
	th.StartUpdating()
	waitFor(t, "display creation", func() bool {
		for _, e := range b.TakeRendererEvents() {
			if e == event.Event(event.DisplayCreated{Display: 3}) {
				return true
			}
		}
		return false
	})
	waitFor(t, "watchdog notifications", func() bool { return w.notified(3) >= 2 })

	th.StopUpdating()
	time.Sleep(20 * time.Millisecond)
	frames := th.FrameCounter()
	time.Sleep(20 * time.Millisecond)
	if th.FrameCounter() != frames {
		t.Error("expected a stopped thread to stay idle")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean exit, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("thread did not stop")
	}
	b.Close()
}

func TestThreadMinFrameDuration(t *testing.T) {
	b := NewBundle(4, Options{})
	th := NewThread(b, nil)
	th.SetMinFrameDuration(50 * time.Millisecond)
	th.SetLoopMode(UpdateOnly)
	th.StartUpdating()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	if err := th.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if n := th.FrameCounter(); n == 0 || n > 4 {
		t.Errorf("expected a few loops capped by the frame duration, got %d", n)
	}
}
