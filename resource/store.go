// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/scenery/internal/logging"
)

// ErrUnknownFile is returned for a FileID the store does not know.
var ErrUnknownFile = errors.New("resource: unknown resource file")

// FileID identifies a resource file registered with a Store.
type FileID uint32

// Info is metadata about a resource known to the store, resident or not.
type Info struct {
	Type             Type
	Hash             Hash
	Name             string
	DecompressedSize uint32
	CompressedSize   uint32
}

type entry struct {
	res             *Resource
	refs            int
	deletionAllowed bool
}

type fileRef struct {
	file  FileID
	entry TOCEntry
}

// Store is the content-addressed resource store.
// All methods are safe for concurrent use.
type Store struct {
	mu         sync.Mutex
	resources  map[Hash]*entry
	usage      map[Hash]int
	files      map[FileID]*File
	locations  map[Hash]fileRef
	nextFileID FileID
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		resources:  make(map[Hash]*entry),
		usage:      make(map[Hash]int),
		files:      make(map[FileID]*File),
		locations:  make(map[Hash]fileRef),
		nextFileID: 1,
	}
}

// Managed is a reference-counted handle to a resident resource.
// Every handle obtained from the store must be released exactly once.
type Managed struct {
	store    *Store
	entry    *entry
	released atomic.Bool
}

// Resource returns the managed resource.
func (m *Managed) Resource() *Resource { return m.entry.res }

// Hash returns the content hash of the managed resource.
func (m *Managed) Hash() Hash { return m.entry.res.hash }

// Retain returns a new handle to the same resource.
func (m *Managed) Retain() *Managed {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	return m.store.newHandleLocked(m.entry)
}

// Release drops this handle's reference. The resource is removed from the
// store when no references remain and no resource file pins it.
// Releasing twice panics.
func (m *Managed) Release() {
	if m.released.Swap(true) {
		panic("resource: Managed released twice")
	}
	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()
	m.entry.refs--
	s.dropIfUnusedLocked(m.entry)
}

func (s *Store) newHandleLocked(e *entry) *Managed {
	e.refs++
	return &Managed{store: s, entry: e}
}

func (s *Store) dropIfUnusedLocked(e *entry) {
	if e.refs > 0 || !e.deletionAllowed {
		return
	}
	if cur, ok := s.resources[e.res.hash]; ok && cur == e {
		delete(s.resources, e.res.hash)
	}
}

// Manage takes ownership of res and returns a handle to it. When a resource
// with the same hash is already resident, res is discarded and a handle to
// the resident copy is returned. deletionAllowed false pins the resource in
// the store even without references.
func (s *Store) Manage(res *Resource, deletionAllowed bool) *Managed {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manageLocked(res, deletionAllowed)
}

func (s *Store) manageLocked(res *Resource, deletionAllowed bool) *Managed {
	if e, ok := s.resources[res.hash]; ok {
		if !deletionAllowed {
			e.deletionAllowed = false
		}
		return s.newHandleLocked(e)
	}
	e := &entry{res: res, deletionAllowed: deletionAllowed}
	s.resources[res.hash] = e
	return s.newHandleLocked(e)
}

// pinLocked makes res resident without taking a reference.
func (s *Store) pinLocked(res *Resource) {
	if e, ok := s.resources[res.hash]; ok {
		e.deletionAllowed = false
		return
	}
	s.resources[res.hash] = &entry{res: res}
}

// Get returns a handle to the resident resource with hash h, or nil.
func (s *Store) Get(h Hash) *Managed {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.resources[h]; ok {
		return s.newHandleLocked(e)
	}
	return nil
}

// Len returns the number of resident resources.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.resources)
}

// Reserve grows internal maps for n more resources.
func (s *Store) Reserve(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	grown := make(map[Hash]*entry, len(s.resources)+n)
	for h, e := range s.resources {
		grown[h] = e
	}
	s.resources = grown
}

// Knows reports whether h is resident or listed by a registered file.
func (s *Store) Knows(h Hash) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.resources[h]; ok {
		return true
	}
	_, ok := s.locations[h]
	return ok
}

// Info returns metadata for h, taken from the resident resource or from
// a registered file's table of contents.
func (s *Store) Info(h Hash) (Info, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.resources[h]; ok {
		r := e.res
		info := Info{Type: r.typ, Hash: h, Name: r.name, DecompressedSize: r.Size(), CompressedSize: r.Size()}
		if loc, ok := s.locations[h]; ok {
			info.CompressedSize = uint32(loc.entry.CompressedSize)
		}
		return info, true
	}
	if loc, ok := s.locations[h]; ok {
		return loc.entry.info(), true
	}
	return Info{}, false
}

// HashUsage marks a hash as used by some consumer without holding its data.
// Resource files load only hashes in use.
type HashUsage struct {
	store    *Store
	hash     Hash
	released atomic.Bool
}

// Hash returns the hash this usage refers to.
func (u *HashUsage) Hash() Hash { return u.hash }

// Release ends the usage. Releasing twice panics.
func (u *HashUsage) Release() {
	if u.released.Swap(true) {
		panic("resource: HashUsage released twice")
	}
	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.usage[u.hash]--; s.usage[u.hash] <= 0 {
		delete(s.usage, u.hash)
	}
}

// HashUsage registers a usage of h.
func (s *Store) HashUsage(h Hash) *HashUsage {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage[h]++
	return &HashUsage{store: s, hash: h}
}

// InUse reports whether any HashUsage for h is alive.
func (s *Store) InUse(h Hash) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage[h] > 0
}

// AddFile registers f's table of contents without loading any data.
// The store takes ownership of f and closes it in RemoveFile.
func (s *Store) AddFile(f *File) FileID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextFileID
	s.nextFileID++
	s.files[id] = f
	for _, e := range f.Entries() {
		s.locations[e.Hash] = fileRef{file: id, entry: e}
	}
	logging.Logger().Info("resource: added resource file",
		"file", f.Name(), "id", id, "entries", len(f.Entries()))
	return id
}

// HasFile reports whether id is registered.
func (s *Store) HasFile(id FileID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[id]
	return ok
}

// LoadFromFile loads every entry of file id whose hash is currently in use
// and not yet resident. Loaded resources are pinned until RemoveFile.
func (s *Store) LoadFromFile(id FileID) error {
	s.mu.Lock()
	f, ok := s.files[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("load from file %d: %w", id, ErrUnknownFile)
	}
	var pending []TOCEntry
	for _, e := range f.Entries() {
		if s.usage[e.Hash] == 0 {
			continue
		}
		if _, resident := s.resources[e.Hash]; resident {
			continue
		}
		pending = append(pending, e)
	}
	s.mu.Unlock()

	var failed int
	for _, e := range pending {
		res, err := f.Read(e)
		if err != nil {
			failed++
			logging.Logger().Error("resource: failed to load resource from file",
				"file", f.Name(), "hash", e.Hash, "err", err)
			continue
		}
		s.mu.Lock()
		s.pinLocked(res)
		s.mu.Unlock()
	}
	if failed > 0 {
		return fmt.Errorf("load from file %s: %d of %d entries: %w", f.Name(), failed, len(pending), ErrCorruptFile)
	}
	return nil
}

// RemoveFile unregisters file id, unpins the resources it provided and
// closes it.
func (s *Store) RemoveFile(id FileID) error {
	s.mu.Lock()
	f, ok := s.files[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("remove file %d: %w", id, ErrUnknownFile)
	}
	delete(s.files, id)
	for _, e := range f.Entries() {
		loc, ok := s.locations[e.Hash]
		if !ok || loc.file != id {
			continue
		}
		delete(s.locations, e.Hash)
		if res, ok := s.resources[e.Hash]; ok {
			res.deletionAllowed = true
			s.dropIfUnusedLocked(res)
		}
	}
	s.mu.Unlock()

	logging.Logger().Info("resource: removed resource file", "file", f.Name(), "id", id)
	return f.Close()
}

// Load returns a handle to h, reading it from its resource file when it is
// not resident. Failures are logged and yield nil.
func (s *Store) Load(h Hash) *Managed {
	s.mu.Lock()
	if e, ok := s.resources[h]; ok {
		m := s.newHandleLocked(e)
		s.mu.Unlock()
		return m
	}
	loc, ok := s.locations[h]
	var f *File
	if ok {
		f = s.files[loc.file]
	}
	s.mu.Unlock()

	if f == nil {
		logging.Logger().Error("resource: no resource file lists hash", "hash", h)
		return nil
	}
	res, err := f.Read(loc.entry)
	if err != nil {
		logging.Logger().Error("resource: failed to load resource",
			"file", f.Name(), "hash", h, "err", err)
		return nil
	}
	return s.Manage(res, true)
}

// Resolve returns handles for every hash in hashes, loading from files as
// needed. ok is false when any hash could not be resolved; failed hashes
// are logged and left out of the result.
func (s *Store) Resolve(hashes []Hash) ([]*Managed, bool) {
	out := make([]*Managed, 0, len(hashes))
	var failed []Hash
	for _, h := range hashes {
		if m := s.Load(h); m != nil {
			out = append(out, m)
			continue
		}
		failed = append(failed, h)
	}
	if len(failed) > 0 {
		logging.Logger().Error("resource: failed to resolve resources",
			"count", len(failed), "hashes", failed)
		return out, false
	}
	return out, true
}
