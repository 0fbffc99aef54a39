// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package cache

import (
	"bufio"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/pierrec/lz4/v4"

	"github.com/gogpu/scenery/device"
	"github.com/gogpu/scenery/internal/logging"
	"github.com/gogpu/scenery/resource"
	"github.com/gogpu/scenery/scenegraph"
	"github.com/gogpu/scenery/upload"
)

// ErrCorruptShaderCache is returned when a persisted shader cache cannot
// be decoded.
var ErrCorruptShaderCache = errors.New("cache: corrupt shader cache")

const shaderCacheVersion = 1

// ShaderCache is an upload.BinaryShaderCache backed by a ShardedCache.
//
// Binaries in a format the device does not support are never handed
// out. A binary the device rejects is dropped and its effect is not
// cached again for the lifetime of the ShaderCache.
//
// ShaderCache is safe for concurrent use.
type ShaderCache struct {
	entries *ShardedCache[resource.Hash, device.BinaryShader]

	mu      sync.Mutex
	formats []device.BinaryShaderFormat
	broken  map[resource.Hash]struct{}
	scenes  map[scenegraph.SceneID]struct{}

	dirty atomic.Bool
}

var _ upload.BinaryShaderCache = (*ShaderCache)(nil)

// NewShaderCache creates an empty cache with capacity entries per shard.
// When scenes are given, only effects compiled for those scenes are
// stored.
func NewShaderCache(capacity int, scenes ...scenegraph.SceneID) *ShaderCache {
	c := &ShaderCache{
		entries: NewSharded[resource.Hash, device.BinaryShader](capacity, ResourceHasher),
		broken:  make(map[resource.Hash]struct{}),
	}
	if len(scenes) > 0 {
		c.scenes = make(map[scenegraph.SceneID]struct{}, len(scenes))
		for _, s := range scenes {
			c.scenes[s] = struct{}{}
		}
	}
	return c
}

func (c *ShaderCache) DeviceSupportsBinaryShaderFormats(formats []device.BinaryShaderFormat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.formats = slices.Clone(formats)
}

func (c *ShaderCache) supported(f device.BinaryShaderFormat) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Contains(c.formats, f)
}

func (c *ShaderCache) BinaryShader(effect resource.Hash) (device.BinaryShader, bool) {
	bin, ok := c.entries.Get(effect)
	if !ok || !c.supported(bin.Format) {
		return device.BinaryShader{}, false
	}
	return bin, true
}

func (c *ShaderCache) BinaryShaderUploaded(effect resource.Hash, ok bool) {
	if ok {
		return
	}
	logging.Logger().Warn("cache: dropping broken binary shader", "hash", effect)
	c.entries.Delete(effect)
	c.mu.Lock()
	c.broken[effect] = struct{}{}
	c.mu.Unlock()
	c.dirty.Store(true)
}

func (c *ShaderCache) ShouldBeCached(effect resource.Hash, scene scenegraph.SceneID) bool {
	c.mu.Lock()
	_, broken := c.broken[effect]
	_, wanted := c.scenes[scene]
	filtered := c.scenes != nil
	c.mu.Unlock()
	if broken || (filtered && !wanted) {
		return false
	}
	return !c.entries.Contains(effect)
}

func (c *ShaderCache) StoreBinaryShader(effect resource.Hash, scene scenegraph.SceneID, bin device.BinaryShader) {
	logging.Logger().Debug("cache: storing binary shader",
		"hash", effect, "scene", scene, "format", bin.Format, "size", len(bin.Data))
	c.entries.Set(effect, device.BinaryShader{Format: bin.Format, Data: slices.Clone(bin.Data)})
	c.dirty.Store(true)
}

// Len returns the number of cached binaries.
func (c *ShaderCache) Len() int { return c.entries.Len() }

// Stats returns the statistics of the underlying cache.
func (c *ShaderCache) Stats() Stats { return c.entries.Stats() }

// Dirty reports whether the content changed since it was last written
// or read.
func (c *ShaderCache) Dirty() bool { return c.dirty.Load() }

type shaderRecord struct {
	Hash   resource.Hash
	Format device.BinaryShaderFormat
	Data   []byte
}

type shaderFile struct {
	Version int
	Shaders []shaderRecord
}

// WriteTo writes every cached binary to w as an lz4 compressed gob
// stream. It implements io.WriterTo.
func (c *ShaderCache) WriteTo(w io.Writer) (int64, error) {
	f := shaderFile{Version: shaderCacheVersion}
	c.entries.Range(func(h resource.Hash, b device.BinaryShader) bool {
		f.Shaders = append(f.Shaders, shaderRecord{Hash: h, Format: b.Format, Data: b.Data})
		return true
	})
	slices.SortFunc(f.Shaders, func(a, b shaderRecord) int {
		switch {
		case a.Hash.Less(b.Hash):
			return -1
		case b.Hash.Less(a.Hash):
			return 1
		}
		return 0
	})

	cw := &countingWriter{w: w}
	zw := lz4.NewWriter(cw)
	if err := gob.NewEncoder(zw).Encode(&f); err != nil {
		return cw.n, fmt.Errorf("cache: encode shaders: %w", err)
	}
	if err := zw.Close(); err != nil {
		return cw.n, fmt.Errorf("cache: compress shaders: %w", err)
	}
	c.dirty.Store(false)
	return cw.n, nil
}

// ReadFrom adds the binaries stored by WriteTo. It implements
// io.ReaderFrom.
func (c *ShaderCache) ReadFrom(r io.Reader) (int64, error) {
	cr := &countingReader{r: r}
	var f shaderFile
	if err := gob.NewDecoder(lz4.NewReader(cr)).Decode(&f); err != nil {
		return cr.n, fmt.Errorf("%v: %w", err, ErrCorruptShaderCache)
	}
	if f.Version != shaderCacheVersion {
		return cr.n, fmt.Errorf("version %d, expected %d: %w", f.Version, shaderCacheVersion, ErrCorruptShaderCache)
	}
	for _, s := range f.Shaders {
		c.entries.Set(s.Hash, device.BinaryShader{Format: s.Format, Data: s.Data})
	}
	c.dirty.Store(false)
	return cr.n, nil
}

// LoadShaderCache reads a cache file written by Save. A missing file
// yields an empty cache.
func LoadShaderCache(path string, capacity int, scenes ...scenegraph.SceneID) (*ShaderCache, error) {
	c := NewShaderCache(capacity, scenes...)
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if _, err := c.ReadFrom(bufio.NewReader(f)); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Save writes the cache to path.
func (c *ShaderCache) Save(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	bw := bufio.NewWriter(f)
	if _, err := c.WriteTo(bw); err != nil {
		return err
	}
	return bw.Flush()
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

type countingReader struct {
	r io.Reader
	n int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.n += int64(n)
	return n, err
}
