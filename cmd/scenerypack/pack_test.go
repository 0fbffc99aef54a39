package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/gogpu/scenery/resource"
)

func testImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	for y := range 2 {
		for x := range 4 {
			img.Set(x, y, color.NRGBA{R: 40, G: 40, B: 40, A: 255})
		}
	}
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	img.Set(3, 1, color.NRGBA{B: 255, A: 255})
	return img
}

func writeImage(t *testing.T, path string, encode func(*os.File) error) string {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := encode(f); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestImportImage(t *testing.T) {
	dir := t.TempDir()
	img := testImage()
	files := []string{
		writeImage(t, filepath.Join(dir, "red.png"), func(f *os.File) error { return png.Encode(f, img) }),
		writeImage(t, filepath.Join(dir, "red.bmp"), func(f *os.File) error { return bmp.Encode(f, img) }),
		writeImage(t, filepath.Join(dir, "red.tiff"), func(f *os.File) error { return tiff.Encode(f, img, nil) }),
	}

	var first *resource.Resource
	for _, path := range files {
		res, err := importImage(path, importOptions{})
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		desc := res.Texture()
		if desc.Width != 4 || desc.Height != 2 || desc.Format != resource.FormatRGBA8 {
			t.Errorf("%s: expected 4x2 RGBA8, got %+v", path, desc)
		}
		if res.Name() != "red" {
			t.Errorf("%s: expected name red, got %q", path, res.Name())
		}
		if got := res.Data()[:4]; !bytes.Equal(got, []byte{255, 0, 0, 255}) {
			t.Errorf("%s: expected red first texel, got %v", path, got)
		}
		if first == nil {
			first = res
		} else if res.Hash() != first.Hash() {
			t.Errorf("%s: expected same content hash as PNG import", path)
		}
	}
}

func TestImportOptions(t *testing.T) {
	dir := t.TempDir()
	path := writeImage(t, filepath.Join(dir, "a.png"), func(f *os.File) error { return png.Encode(f, testImage()) })
	res, err := importImage(path, importOptions{SRGB: true, GenerateMips: true})
	if err != nil {
		t.Fatal(err)
	}
	if desc := res.Texture(); desc.Format != resource.FormatSRGB8Alpha8 || !desc.GenerateMipChain {
		t.Errorf("expected sRGB texture with mip generation, got %+v", desc)
	}
}

func TestImportInvalidImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.png")
	if err := os.WriteFile(path, []byte("not an image"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := importImage(path, importOptions{}); err == nil {
		t.Error("expected decoding error")
	}
}

func TestPackAndList(t *testing.T) {
	dir := t.TempDir()
	img := testImage()
	a := writeImage(t, filepath.Join(dir, "a.png"), func(f *os.File) error { return png.Encode(f, img) })
	dup := writeImage(t, filepath.Join(dir, "dup.bmp"), func(f *os.File) error { return bmp.Encode(f, img) })
	other := testImage()
	other.Set(1, 1, color.NRGBA{G: 255, A: 255})
	b := writeImage(t, filepath.Join(dir, "b.png"), func(f *os.File) error { return png.Encode(f, other) })

	out := filepath.Join(dir, "textures.res")
	n, err := pack(out, []string{a, dup, b}, importOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected duplicate image to be stored once, got %d resources", n)
	}

	var buf bytes.Buffer
	if err := list(&buf, out); err != nil {
		t.Fatal(err)
	}
	listing := buf.String()
	for _, want := range []string{"Texture2D", " a ", " b ", "2 resources"} {
		if !strings.Contains(listing, want) {
			t.Errorf("expected listing to contain %q, got:\n%s", want, listing)
		}
	}

	f, err := resource.OpenFile(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	res, err := f.Read(f.Entries()[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Data()) != 4*2*4 {
		t.Errorf("expected 32 bytes of texels, got %d", len(res.Data()))
	}
}
