// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package counter is the button counter program of the UBMP4.
//
// Every 10ms the program samples the pushbuttons. While SW2 is held LED D3 is
// lit and the count goes up by one per loop, so holding the button counts
// fast. Once the count reaches MaxCount LED D4 lights. SW3 clears the count
// and turns D4 off, SW1 resets the board.
package counter

import (
	"context"
	"time"

	"github.com/GermanBionicSystems/ubmp4/ubmp4"
)

// MaxCount is the count that lights LED D4.
const MaxCount = 50

// LoopDelay is the pause at the end of every loop.
const LoopDelay = 10 * time.Millisecond

// Program is the counter program running on a board.
type Program struct {
	b     *ubmp4.Board
	count uint8
}

// New returns the program for b. b must be configured.
func New(b *ubmp4.Board) *Program {
	return &Program{b: b}
}

// Count returns the number of loops SW2 was seen held since the last
// clear. It wraps after 255.
func (p *Program) Count() uint8 {
	return p.count
}

// Step runs one loop without the delay. It returns ubmp4.ErrReset when SW1
// is held.
func (p *Program) Step() error {
	if err := p.update(); err != nil {
		return err
	}
	return p.checkReset()
}

// Run loops until SW1 is pressed or ctx is done.
func (p *Program) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.update(); err != nil {
			return err
		}
		p.b.Delay(LoopDelay)
		if err := p.checkReset(); err != nil {
			return err
		}
	}
}

func (p *Program) update() error {
	if p.b.Pressed(ubmp4.SW2) {
		if err := p.b.SetLED(ubmp4.LED3, true); err != nil {
			return err
		}
		p.count++
	} else if err := p.b.SetLED(ubmp4.LED3, false); err != nil {
		return err
	}
	if p.count >= MaxCount {
		if err := p.b.SetLED(ubmp4.LED4, true); err != nil {
			return err
		}
	}
	if p.b.Pressed(ubmp4.SW3) {
		if err := p.b.SetLED(ubmp4.LED4, false); err != nil {
			return err
		}
		p.count = 0
	}
	return nil
}

func (p *Program) checkReset() error {
	if p.b.Pressed(ubmp4.SW1) {
		return p.b.Reset()
	}
	return nil
}
