// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package lcdview

import (
	"fmt"
	"image"
	"io"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

// Cell geometry at Scale 1, in pixels.
const (
	cellW  = 12
	cellH  = 20
	margin = 8
	points = 14
)

// Render draws the content of s as an image.
func Render(s Screen, opts *Opts) (image.Image, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	scale := opts.Scale
	if scale < 1 {
		scale = 1
	}
	lines := s.Lines(opts.Cols)
	line, col, shown, _ := s.Cursor()
	cw, ch, m := float64(cellW*scale), float64(cellH*scale), float64(margin*scale)

	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("lcdview: %w", err)
	}
	dc := gg.NewContext(int(2*m+cw*float64(opts.Cols)), int(2*m+ch*float64(len(lines))))
	dc.SetColor(opts.Backlight)
	dc.Clear()
	dc.SetColor(opts.Ink)
	dc.SetFontFace(truetype.NewFace(f, &truetype.Options{Size: float64(points * scale)}))
	for l, text := range lines {
		y := m + ch*float64(l)
		for ix, r := range []rune(text) {
			x := m + cw*float64(ix)
			if r != ' ' {
				dc.DrawStringAnchored(string(r), x+cw/2, y+ch/2, 0.5, 0.5)
			}
			if shown && l == line && ix == col {
				dc.DrawRectangle(x+1, y+ch-float64(2*scale), cw-2, float64(scale))
				dc.Fill()
			}
		}
	}
	return dc.Image(), nil
}

// WritePNG encodes the content of s as a PNG image to w.
func WritePNG(w io.Writer, s Screen, opts *Opts) error {
	img, err := Render(s, opts)
	if err != nil {
		return err
	}
	return gg.NewContextForImage(img).EncodePNG(w)
}

// SavePNG writes the content of s to the PNG file path.
func SavePNG(path string, s Screen, opts *Opts) error {
	img, err := Render(s, opts)
	if err != nil {
		return err
	}
	return gg.SavePNG(path, img)
}
