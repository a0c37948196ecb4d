// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package lcddemo is the LCD program of the UBMP4: it brings the display up,
// writes a greeting on both lines and sleeps until a pushbutton wakes the
// board, then writes the greeting again.
//
// The second greeting starts where the cursor was left, after "World!" on
// line 2, so line 2 then reads "World!Hello".
package lcddemo

import (
	"context"

	"github.com/GermanBionicSystems/ubmp4/hd44780"
)

// Display is the part of hd44780.Dev the program uses.
type Display interface {
	PowerOn() error
	WriteString(s string) (int, error)
	SendCommand(b byte) error
}

// Sleeper halts the program until it is woken up.
type Sleeper interface {
	Sleep(ctx context.Context) error
}

// Greeting is written on both lines by Frame.
var Greeting = [2]string{"Hello", "World!"}

// Run powers the display on and loops until ctx is done or an error occurs.
func Run(ctx context.Context, d Display, s Sleeper) error {
	if err := d.PowerOn(); err != nil {
		return err
	}
	for {
		if err := Frame(d); err != nil {
			return err
		}
		if err := s.Sleep(ctx); err != nil {
			return err
		}
	}
}

// Frame writes one greeting at the cursor.
func Frame(d Display) error {
	if _, err := d.WriteString(Greeting[0]); err != nil {
		return err
	}
	if err := d.SendCommand(hd44780.Line2); err != nil {
		return err
	}
	_, err := d.WriteString(Greeting[1])
	return err
}

var _ Display = &hd44780.Dev{}
