// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package upload

import (
	"sync"

	"github.com/gogpu/scenery/device"
	"github.com/gogpu/scenery/internal/logging"
	"github.com/gogpu/scenery/internal/parallel"
	"github.com/gogpu/scenery/resource"
	"github.com/gogpu/scenery/scenegraph"
)

// Compiler compiles effects off the render goroutine.
type Compiler interface {
	CompileShader(effect *resource.Resource) (*device.CompiledShader, error)
}

// CompiledEffect is the outcome of one asynchronous compilation.
// Shader is nil when compilation failed.
type CompiledEffect struct {
	Effect resource.Hash
	Scene  scenegraph.SceneID
	Shader *device.CompiledShader
}

// AsyncEffectCompiler compiles effects on a worker pool. Results are
// collected with TakeCompiled on the render goroutine, which registers
// them with the device.
type AsyncEffectCompiler struct {
	compiler Compiler
	pool     *parallel.WorkerPool

	mu       sync.Mutex
	inFlight map[resource.Hash]struct{}
	done     []CompiledEffect
}

// NewAsyncEffectCompiler starts a compiler with the given number of
// workers (0 for GOMAXPROCS).
func NewAsyncEffectCompiler(c Compiler, workers int) *AsyncEffectCompiler {
	return &AsyncEffectCompiler{
		compiler: c,
		pool:     parallel.NewWorkerPool(workers),
		inFlight: make(map[resource.Hash]struct{}),
	}
}

// Compile schedules effect for compilation. The managed handle is
// retained until the job has run. Requests for an effect already in
// flight are ignored.
func (a *AsyncEffectCompiler) Compile(effect *resource.Managed, scene scenegraph.SceneID) {
	hash := effect.Hash()
	a.mu.Lock()
	if _, ok := a.inFlight[hash]; ok {
		a.mu.Unlock()
		return
	}
	a.inFlight[hash] = struct{}{}
	a.mu.Unlock()

	held := effect.Retain()
	queued := a.pool.Submit(func() {
		res := held.Resource()
		shader, err := a.compiler.CompileShader(res)
		if err != nil {
			logging.Logger().Error("upload: effect compilation failed",
				"hash", hash, "name", res.Name(), "err", err)
		}
		// Let go of the effect before the result becomes visible.
		held.Release()
		a.mu.Lock()
		delete(a.inFlight, hash)
		a.done = append(a.done, CompiledEffect{Effect: hash, Scene: scene, Shader: shader})
		a.mu.Unlock()
	})
	if !queued {
		held.Release()
		a.mu.Lock()
		delete(a.inFlight, hash)
		a.mu.Unlock()
	}
}

// InFlight reports whether effect is scheduled or compiling.
func (a *AsyncEffectCompiler) InFlight(effect resource.Hash) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.inFlight[effect]
	return ok
}

// TakeCompiled returns the results finished since the last call.
func (a *AsyncEffectCompiler) TakeCompiled() []CompiledEffect {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.done
	a.done = nil
	return out
}

// Close waits for queued compilations and stops the workers.
func (a *AsyncEffectCompiler) Close() { a.pool.Close() }
