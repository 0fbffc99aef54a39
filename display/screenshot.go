// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package display

import (
	"fmt"
	"image"
	"image/png"
	"os"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/gogpu/scenery/command"
	"github.com/gogpu/scenery/device"
	"github.com/gogpu/scenery/event"
	"github.com/gogpu/scenery/internal/logging"
)

// processScreenshots reads back the display buffers requested by
// ReadPixels commands since the last frame.
func (b *Bundle) processScreenshots() {
	for _, c := range b.screenshots {
		b.readPixels(c)
	}
	b.screenshots = b.screenshots[:0]
}

func (b *Bundle) readPixels(c command.ReadPixels) {
	log := logging.Logger()
	target, width, height := b.dev.Framebuffer(), b.cfg.Width, b.cfg.Height
	if c.Buffer.IsValid() {
		ob, ok := b.rm.offscreen[c.Buffer]
		if !ok {
			b.commandFailed(c, "unknown offscreen buffer")
			return
		}
		target, width, height = ob.target, ob.width, ob.height
	}
	rect := c.Rect
	if c.FullScreen {
		rect = device.Rect{Width: width, Height: height}
	}
	if rect.Width == 0 || rect.Height == 0 || rect.X+rect.Width > width || rect.Y+rect.Height > height {
		b.commandFailed(c, fmt.Sprintf("rectangle %+v outside of %dx%d buffer", rect, width, height))
		return
	}

	b.dev.ActivateRenderTarget(target)
	pixels, err := b.dev.ReadPixels(rect)
	if err != nil {
		log.Error("display: read pixels", "display", b.id, "buffer", c.Buffer, "err", err)
	}
	if err == nil && c.Filename != "" {
		if err := savePNG(c.Filename, pixels, int(rect.Width), int(rect.Height)); err != nil {
			log.Error("display: save screenshot", "display", b.id, "file", c.Filename, "err", err)
		} else {
			log.Info("display: screenshot saved", "display", b.id, "file", c.Filename)
		}
	}
	if c.Filename == "" || c.SendEvent {
		b.events.Add(event.ReadPixels{
			Display: b.id,
			Buffer:  c.Buffer,
			Width:   rect.Width,
			Height:  rect.Height,
			Pixels:  pixels,
			Failed:  err != nil,
		})
	}
}

// savePNG writes RGBA pixels stored bottom row first as a PNG file.
func savePNG(path string, pixels []byte, width, height int) (err error) {
	if len(pixels) < width*height*4 {
		return fmt.Errorf("save %s: have %d bytes for %dx%d pixels", path, len(pixels), width, height)
	}
	src := &image.RGBA{Pix: pixels, Stride: width * 4, Rect: image.Rect(0, 0, width, height)}
	dst := image.NewRGBA(src.Rect)
	flip := f64.Aff3{1, 0, 0, 0, -1, float64(height)}
	draw.NearestNeighbor.Transform(dst, flip, src, src.Bounds(), draw.Src, nil)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return png.Encode(f, dst)
}
