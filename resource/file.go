// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pierrec/lz4/v4"
	"golang.org/x/exp/mmap"
)

// ErrCorruptFile is returned when a resource file or entry cannot be decoded.
var ErrCorruptFile = errors.New("resource: corrupt resource file")

// FileVersion is the resource file format version written by WriteFile.
const FileVersion = 1

var fileMagic = [4]byte{'S', 'C', 'R', 'F'}

// prefixSize is magic + version + header length.
const prefixSize = 12

// TOCEntry is one resource listed in a file's table of contents.
// Offset is relative to the start of the data section.
type TOCEntry struct {
	Hash             Hash
	Type             Type
	Name             string
	Offset           int64
	CompressedSize   int64
	DecompressedSize int64
}

func (e TOCEntry) info() Info {
	return Info{
		Type:             e.Type,
		Hash:             e.Hash,
		Name:             e.Name,
		DecompressedSize: uint32(e.DecompressedSize),
		CompressedSize:   uint32(e.CompressedSize),
	}
}

type fileHeader struct {
	Version int64
	Created int64
	Entries []TOCEntry
}

// record is the gob form of a Resource.
type record struct {
	Type    Type
	Name    string
	Data    []byte
	Element ElementType
	Texture TextureDesc
	Effect  EffectDesc
}

// File is an open resource file. Entries are decoded on demand and may be
// read concurrently.
type File struct {
	name       string
	r          io.ReaderAt
	closer     io.Closer
	header     fileHeader
	dataOffset int64
}

// OpenFile memory-maps the resource file at path and reads its table of
// contents.
func OpenFile(path string) (*File, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open resource file: %w", err)
	}
	f, err := NewFile(m, path)
	if err != nil {
		_ = m.Close()
		return nil, err
	}
	f.closer = m
	return f, nil
}

// NewFile reads the table of contents of a resource file from r.
func NewFile(r io.ReaderAt, name string) (*File, error) {
	var prefix [prefixSize]byte
	if _, err := r.ReadAt(prefix[:], 0); err != nil {
		return nil, fmt.Errorf("%s: read prefix: %w", name, ErrCorruptFile)
	}
	if !bytes.Equal(prefix[:4], fileMagic[:]) {
		return nil, fmt.Errorf("%s: bad magic: %w", name, ErrCorruptFile)
	}
	version := binary.LittleEndian.Uint32(prefix[4:8])
	if version != FileVersion {
		return nil, fmt.Errorf("%s: unsupported version %d: %w", name, version, ErrCorruptFile)
	}
	headerLen := int64(binary.LittleEndian.Uint32(prefix[8:12]))

	f := &File{name: name, r: r, dataOffset: prefixSize + headerLen}
	dec := gob.NewDecoder(io.NewSectionReader(r, prefixSize, headerLen))
	if err := dec.Decode(&f.header); err != nil {
		return nil, fmt.Errorf("%s: decode header: %v: %w", name, err, ErrCorruptFile)
	}
	return f, nil
}

// Name returns the name the file was opened with.
func (f *File) Name() string { return f.name }

// Entries returns the table of contents.
func (f *File) Entries() []TOCEntry { return f.header.Entries }

// Created returns the creation time stored in the file.
func (f *File) Created() time.Time { return time.Unix(0, f.header.Created) }

// Read decodes the resource described by e.
func (f *File) Read(e TOCEntry) (*Resource, error) {
	section := io.NewSectionReader(f.r, f.dataOffset+e.Offset, e.CompressedSize)
	var rec record
	if err := gob.NewDecoder(lz4.NewReader(section)).Decode(&rec); err != nil {
		return nil, fmt.Errorf("%s: entry %s: %v: %w", f.name, e.Hash, err, ErrCorruptFile)
	}
	if rec.Type != e.Type {
		return nil, fmt.Errorf("%s: entry %s: type %s, expected %s: %w", f.name, e.Hash, rec.Type, e.Type, ErrCorruptFile)
	}
	return &Resource{
		typ:          rec.Type,
		name:         rec.Name,
		hash:         e.Hash,
		data:         rec.Data,
		element:      rec.Element,
		elementCount: elementCount(rec.Element, rec.Data),
		texture:      rec.Texture,
		effect:       rec.Effect,
	}, nil
}

// Close releases the underlying mapping, if any.
func (f *File) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}

func elementCount(e ElementType, data []byte) uint32 {
	if s := e.Size(); s > 0 {
		return uint32(len(data)) / s
	}
	return 0
}

// WriteFile writes resources as a resource file to w. Each entry is gob
// encoded and lz4 compressed on its own so it can be read independently.
func WriteFile(w io.Writer, resources []*Resource) error {
	header := fileHeader{Version: FileVersion, Created: time.Now().UnixNano()}
	blobs := make([][]byte, 0, len(resources))
	var offset int64
	for _, r := range resources {
		var raw bytes.Buffer
		rec := record{Type: r.typ, Name: r.name, Data: r.data, Element: r.element, Texture: r.texture, Effect: r.effect}
		if err := gob.NewEncoder(&raw).Encode(&rec); err != nil {
			return fmt.Errorf("encode %s: %w", r.hash, err)
		}
		decompressed := int64(raw.Len())

		var packed bytes.Buffer
		zw := lz4.NewWriter(&packed)
		if _, err := io.Copy(zw, &raw); err != nil {
			return fmt.Errorf("compress %s: %w", r.hash, err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("compress %s: %w", r.hash, err)
		}

		header.Entries = append(header.Entries, TOCEntry{
			Hash:             r.hash,
			Type:             r.typ,
			Name:             r.name,
			Offset:           offset,
			CompressedSize:   int64(packed.Len()),
			DecompressedSize: decompressed,
		})
		offset += int64(packed.Len())
		blobs = append(blobs, packed.Bytes())
	}

	var hdr bytes.Buffer
	if err := gob.NewEncoder(&hdr).Encode(&header); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	var prefix [prefixSize]byte
	copy(prefix[:4], fileMagic[:])
	binary.LittleEndian.PutUint32(prefix[4:8], FileVersion)
	binary.LittleEndian.PutUint32(prefix[8:12], uint32(hdr.Len()))

	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	if _, err := hdr.WriteTo(w); err != nil {
		return err
	}
	for _, b := range blobs {
		if _, err := w.Write(b); err != nil {
			return err
		}
	}
	return nil
}
