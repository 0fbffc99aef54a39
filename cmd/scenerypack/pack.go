// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"bufio"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	// Image formats accepted by pack.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/gogpu/scenery/resource"
	"github.com/gogpu/scenery/upload"
)

type importOptions struct {
	SRGB         bool
	GenerateMips bool
}

// importImage decodes an image file into an RGBA 2D texture named after
// the file.
func importImage(path string, opts importOptions) (*resource.Resource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)

	desc := resource.TextureDesc{
		Width:            uint32(b.Dx()),
		Height:           uint32(b.Dy()),
		Format:           resource.FormatRGBA8,
		GenerateMipChain: opts.GenerateMips,
	}
	if opts.SRGB {
		desc.Format = resource.FormatSRGB8Alpha8
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return resource.NewTexture(resource.TypeTexture2D, desc, rgba.Pix, name), nil
}

// pack imports every image and writes them to a resource file at output.
// Identical images are stored once.
func pack(output string, images []string, opts importOptions) (n int, err error) {
	var resources []*resource.Resource
	seen := make(map[resource.Hash]bool)
	for _, path := range images {
		res, err := importImage(path, opts)
		if err != nil {
			return 0, err
		}
		if seen[res.Hash()] {
			continue
		}
		seen[res.Hash()] = true
		resources = append(resources, res)
	}

	f, err := os.Create(output)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	w := bufio.NewWriter(f)
	if err := resource.WriteFile(w, resources); err != nil {
		return 0, err
	}
	return len(resources), w.Flush()
}

// list prints the table of contents of a resource file.
func list(w io.Writer, path string) error {
	f, err := resource.OpenFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "HASH\tTYPE\tNAME\tSIZE\tCOMPRESSED\tGPU\n")
	for _, e := range f.Entries() {
		gpu := "-"
		if e.Type.IsTexture() {
			res, err := f.Read(e)
			if err != nil {
				return fmt.Errorf("%s: %w", e.Name, err)
			}
			gpu = fmt.Sprint(upload.EstimateTextureSize(res, upload.MipLevelCount(res.Texture())))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n", e.Hash, e.Type, e.Name, e.DecompressedSize, e.CompressedSize, gpu)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "%d resources, created %s\n", len(f.Entries()), f.Created().Format("2006-01-02 15:04:05"))
	return nil
}
