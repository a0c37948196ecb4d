// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package lcdview renders the contents of a character LCD, either to the
// terminal using ANSI codes or to an image.
//
// Useful to watch a program drive a simulated display.
package lcdview

import (
	"bytes"
	"fmt"
	"image/color"
	"io"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
)

// Screen is a character display that can be rendered.
type Screen interface {
	// Lines returns the visible text, cols characters per line.
	Lines(cols int) []string
	// Cursor returns the 0 based cursor position and whether it is shown.
	Cursor() (line, col int, shown, blink bool)
}

// Opts represents the options available for the views.
type Opts struct {
	// Cols is the number of visible characters per line.
	Cols int
	// Palette is used by the terminal view. Defaults to ansi256.Default.
	Palette *ansi256.Palette
	// Backlight is the color of the glass, Ink the color of the text.
	Backlight color.NRGBA
	Ink       color.NRGBA
	// Scale multiplies the size of the rendered image.
	Scale int

	_ struct{}
}

// DefaultOpts is a 16 characters yellow-green module.
var DefaultOpts = Opts{
	Cols:      16,
	Backlight: color.NRGBA{0x9c, 0xc4, 0x2c, 0xff},
	Ink:       color.NRGBA{0x1c, 0x2c, 0x10, 0xff},
	Scale:     1,
}

// Terminal draws a Screen on a terminal, refreshing in place.
type Terminal struct {
	w       io.Writer
	opts    Opts
	palette ansi256.Palette

	drawn int
	buf   bytes.Buffer
}

// NewTerminal returns a Terminal that draws on stdout.
func NewTerminal(opts *Opts) *Terminal {
	return NewTerminalWriter(colorable.NewColorableStdout(), opts)
}

// NewTerminalWriter returns a Terminal that writes to w.
func NewTerminalWriter(w io.Writer, opts *Opts) *Terminal {
	if opts == nil {
		opts = &DefaultOpts
	}
	p := opts.Palette
	if p == nil {
		p = ansi256.Default
	}
	return &Terminal{w: w, opts: *opts, palette: *p}
}

func (t *Terminal) String() string {
	return fmt.Sprintf("Terminal{%d}", t.opts.Cols)
}

// Halt implements conn.Resource.
//
// It resets the colors so the shell prompt is not corrupted.
func (t *Terminal) Halt() error {
	_, err := io.WriteString(t.w, "\033[0m\n")
	return err
}

// Refresh draws the current content of s over the previous frame.
func (t *Terminal) Refresh(s Screen) error {
	lines := s.Lines(t.opts.Cols)
	line, col, shown, _ := s.Cursor()
	bezel := t.palette.Block(t.opts.Backlight)
	t.buf.Reset()
	if t.drawn != 0 {
		fmt.Fprintf(&t.buf, "\033[%dA", t.drawn)
	}
	for l, text := range lines {
		_, _ = t.buf.WriteString("\r\033[0m")
		_, _ = t.buf.WriteString(bezel)
		_, _ = t.buf.WriteString("\033[0m")
		for ix, r := range []rune(text) {
			if shown && l == line && ix == col {
				fmt.Fprintf(&t.buf, "\033[4m%c\033[24m", r)
				continue
			}
			_, _ = t.buf.WriteRune(r)
		}
		_, _ = t.buf.WriteString(bezel)
		_, _ = t.buf.WriteString("\033[0m\n")
	}
	t.drawn = len(lines)
	_, err := t.buf.WriteTo(t.w)
	return err
}
