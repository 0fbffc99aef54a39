package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPool_Create(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	if pool.Workers() != 4 {
		t.Errorf("Workers() = %d, want 4", pool.Workers())
	}
	if !pool.IsRunning() {
		t.Error("Pool should be running after creation")
	}
}

func TestWorkerPool_CreateDefaultWorkers(t *testing.T) {
	for _, n := range []int{0, -5} {
		pool := NewWorkerPool(n)
		if pool.Workers() != runtime.GOMAXPROCS(0) {
			t.Errorf("NewWorkerPool(%d).Workers() = %d, want GOMAXPROCS", n, pool.Workers())
		}
		pool.Close()
	}
}

func TestWorkerPool_ExecuteAll(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	var counter atomic.Int64
	jobs := make([]func(), 100)
	for i := range jobs {
		jobs[i] = func() { counter.Add(1) }
	}
	pool.ExecuteAll(jobs)

	if counter.Load() != 100 {
		t.Errorf("counter = %d, want 100", counter.Load())
	}
	if pool.Pending() != 0 {
		t.Errorf("Pending() = %d after ExecuteAll, want 0", pool.Pending())
	}
}

func TestWorkerPool_SubmitRunsEveryJob(t *testing.T) {
	pool := NewWorkerPool(2)

	var wg sync.WaitGroup
	var counter atomic.Int64
	for range 50 {
		wg.Add(1)
		if !pool.Submit(func() {
			defer wg.Done()
			counter.Add(1)
		}) {
			t.Fatal("Submit rejected a job on a running pool")
		}
	}
	wg.Wait()
	pool.Close()

	if counter.Load() != 50 {
		t.Errorf("counter = %d, want 50", counter.Load())
	}
}

func TestWorkerPool_SlowJobDoesNotBlockOthers(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()

	release := make(chan struct{})
	pool.Submit(func() { <-release })

	done := make(chan struct{})
	pool.Submit(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second job did not run while the first was blocked")
	}
	close(release)
}

func TestWorkerPool_CloseDrainsQueuedJobs(t *testing.T) {
	pool := NewWorkerPool(1)

	var counter atomic.Int64
	for range 10 {
		pool.Submit(func() { counter.Add(1) })
	}
	pool.Close()

	if counter.Load() != 10 {
		t.Errorf("counter = %d after Close, want 10", counter.Load())
	}
}

func TestWorkerPool_ClosedPool(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()
	pool.Close()

	if pool.IsRunning() {
		t.Error("pool should not be running after Close")
	}
	if pool.Submit(func() {}) {
		t.Error("Submit on a closed pool should report false")
	}
	pool.ExecuteAll([]func(){func() { t.Error("job ran on a closed pool") }})
}

func TestWorkerPool_NilJob(t *testing.T) {
	pool := NewWorkerPool(1)
	defer pool.Close()
	if pool.Submit(nil) {
		t.Error("Submit(nil) should report false")
	}
}
