package scenegraph

import "testing"

func TestPoolAllocateFirstFree(t *testing.T) {
	var p Pool[RenderableHandle, int]
	a := p.Allocate(InvalidRenderable, 10)
	b := p.Allocate(InvalidRenderable, 20)
	if a != 0 || b != 1 {
		t.Fatalf("expected handles 0 and 1, got %d and %d", a, b)
	}

	p.Release(a)
	if p.IsAllocated(a) {
		t.Error("expected released handle to be free")
	}
	if p.Len() != 2 {
		t.Errorf("expected release to keep slot count 2, got %d", p.Len())
	}

	c := p.Allocate(InvalidRenderable, 30)
	if c != a {
		t.Errorf("expected free slot %d to be reused, got %d", a, c)
	}
	if *p.Get(c) != 30 {
		t.Errorf("expected 30, got %d", *p.Get(c))
	}
}

func TestPoolAllocateExplicitHandleGrows(t *testing.T) {
	var p Pool[DataBufferHandle, string]
	h := p.Allocate(5, "five")
	if h != 5 {
		t.Fatalf("expected handle 5, got %d", h)
	}
	if p.Len() != 6 {
		t.Errorf("expected 6 slots, got %d", p.Len())
	}
	if p.Live() != 1 {
		t.Errorf("expected 1 live slot, got %d", p.Live())
	}
	for i := range DataBufferHandle(5) {
		if p.IsAllocated(i) {
			t.Errorf("expected slot %d to be free", i)
		}
	}
}

func TestPoolReserveNeverShrinks(t *testing.T) {
	var p Pool[BlitPassHandle, int]
	p.Reserve(8)
	p.Reserve(3)
	if p.Len() != 8 {
		t.Errorf("expected 8 slots, got %d", p.Len())
	}
}

func TestPoolEachInHandleOrder(t *testing.T) {
	var p Pool[RenderTargetHandle, int]
	p.Allocate(3, 3)
	p.Allocate(1, 1)
	p.Allocate(2, 2)
	p.Release(2)

	var got []RenderTargetHandle
	p.Each(func(h RenderTargetHandle, v *int) {
		if int(h) != *v {
			t.Errorf("handle %d holds %d", h, *v)
		}
		got = append(got, h)
	})
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Errorf("expected [1 3], got %v", got)
	}
}

func expectPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s: expected panic", name)
		}
	}()
	fn()
}

func TestPoolMisusePanics(t *testing.T) {
	var p Pool[RenderableHandle, int]
	h := p.Allocate(0, 1)

	expectPanic(t, "double allocate", func() { p.Allocate(h, 2) })
	expectPanic(t, "get out of range", func() { p.Get(7) })

	p.Release(h)
	expectPanic(t, "double release", func() { p.Release(h) })
	expectPanic(t, "get released", func() { p.Get(h) })
}
