// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// stealInterval is how often an idle worker looks at the other queues.
const stealInterval = 2 * time.Millisecond

// WorkerPool runs jobs on a fixed set of goroutines.
//
// Each worker owns a queue and steals from the others when its own queue
// is empty, so one slow job (a large effect compile) does not hold back
// the jobs queued behind it.
//
// WorkerPool is safe for concurrent use.
type WorkerPool struct {
	workers int
	queues  []chan func()
	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
	pending atomic.Int64
}

// NewWorkerPool starts a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	queueSize := max(workers*4, 8)

	p := &WorkerPool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range workers {
		p.queues[i] = make(chan func(), queueSize)
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	own := p.queues[id]
	ticker := time.NewTicker(stealInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			p.drain(own)
			return
		case job := <-own:
			p.run(job)
			continue
		default:
		}

		if job := p.steal(id); job != nil {
			p.run(job)
			continue
		}

		select {
		case <-p.done:
			p.drain(own)
			return
		case job := <-own:
			p.run(job)
		case <-ticker.C:
		}
	}
}

func (p *WorkerPool) run(job func()) {
	if job == nil {
		return
	}
	defer p.pending.Add(-1)
	job()
}

func (p *WorkerPool) drain(queue chan func()) {
	for {
		select {
		case job := <-queue:
			p.run(job)
		default:
			return
		}
	}
}

func (p *WorkerPool) steal(self int) func() {
	for i := range p.workers {
		if i == self {
			continue
		}
		select {
		case job := <-p.queues[i]:
			return job
		default:
		}
	}
	return nil
}

// Submit queues one job on the worker with the shortest queue.
// It reports false when the pool is closed.
func (p *WorkerPool) Submit(job func()) bool {
	if job == nil || !p.running.Load() {
		return false
	}
	target := 0
	for i := 1; i < p.workers; i++ {
		if len(p.queues[i]) < len(p.queues[target]) {
			target = i
		}
	}
	p.pending.Add(1)
	select {
	case p.queues[target] <- job:
		return true
	case <-p.done:
		p.pending.Add(-1)
		return false
	}
}

// ExecuteAll runs jobs across the workers and waits for all of them.
func (p *WorkerPool) ExecuteAll(jobs []func()) {
	if len(jobs) == 0 || !p.running.Load() {
		return
	}
	var wg sync.WaitGroup
	wg.Add(len(jobs))
	for i, job := range jobs {
		p.pending.Add(1)
		wrapped := func() {
			defer wg.Done()
			job()
		}
		select {
		case p.queues[i%p.workers] <- wrapped:
		case <-p.done:
			p.pending.Add(-1)
			wg.Done()
		}
	}
	wg.Wait()
}

// Close stops accepting jobs, finishes the queued ones and stops the
// workers. Close may be called more than once.
func (p *WorkerPool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers.
func (p *WorkerPool) Workers() int { return p.workers }

// IsRunning reports whether the pool accepts jobs.
func (p *WorkerPool) IsRunning() bool { return p.running.Load() }

// Pending returns the number of submitted jobs that have not finished.
func (p *WorkerPool) Pending() int { return int(p.pending.Load()) }
