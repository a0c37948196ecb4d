// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ubmp4 describes the UBMP4 learning board: its pushbuttons, its LEDs
// and the LCD header, and the start-up configuration the board programs run.
//
// The pushbuttons are active low, pulled up on the board. LEDs D3-D6 share
// RC4-RC7 with the LCD data lines D4-D7, so lighting an LED while the display
// is in use changes what the display sees on its next E pulse.
package ubmp4

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GermanBionicSystems/ubmp4/hd44780"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// ErrReset is returned by Reset. The board programs return it to hand control
// back to the bootloader.
var ErrReset = errors.New("ubmp4: reset")

// Pin names as printed on the board.
const (
	SW1Pin    = "RE3"
	SW2Pin    = "RB0"
	SW3Pin    = "RB1"
	SW4Pin    = "RB2"
	SW5Pin    = "RB3"
	LED3Pin   = "RC4"
	LED4Pin   = "RC5"
	LED5Pin   = "RC6"
	LED6Pin   = "RC7"
	LCDRSPin  = "RA0"
	LCDRWPin  = "RA1"
	LCDEPin   = "RA2"
	wakePoll  = 10 * time.Millisecond
	numSwitch = 5
	numLED    = 4
)

// Switch is one of the pushbuttons SW1-SW5.
type Switch int

const (
	SW1 Switch = iota + 1
	SW2
	SW3
	SW4
	SW5
)

func (s Switch) String() string {
	return fmt.Sprintf("SW%d", int(s))
}

// LED is one of the user LEDs D3-D6.
type LED int

const (
	LED3 LED = iota + 3
	LED4
	LED5
	LED6
)

func (l LED) String() string {
	return fmt.Sprintf("LED%d", int(l))
}

// Board is the set of lines used by the board programs.
type Board struct {
	// Switches holds SW1-SW5.
	Switches [numSwitch]gpio.PinIn
	// LEDs holds D3-D6.
	LEDs [numLED]gpio.PinOut
	// LCD is the display header.
	LCD hd44780.Bus
	// Clock times the program loops. Defaults to the wall clock.
	Clock hd44780.Clock
}

// FromRegistry assembles a Board from the pins registered in gpioreg under
// their board names. data is the register carrying the LCD data lines.
func FromRegistry(data gpio.Group) (*Board, error) {
	b := &Board{LCD: hd44780.Bus{Data: data}}
	lookup := func(name string) (gpio.PinIO, error) {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("ubmp4: pin %s not found", name)
		}
		return p, nil
	}
	var err error
	for ix, name := range []string{SW1Pin, SW2Pin, SW3Pin, SW4Pin, SW5Pin} {
		if b.Switches[ix], err = lookup(name); err != nil {
			return nil, err
		}
	}
	for ix, name := range []string{LED3Pin, LED4Pin, LED5Pin, LED6Pin} {
		if b.LEDs[ix], err = lookup(name); err != nil {
			return nil, err
		}
	}
	if b.LCD.RS, err = lookup(LCDRSPin); err != nil {
		return nil, err
	}
	if b.LCD.RW, err = lookup(LCDRWPin); err != nil {
		return nil, err
	}
	if b.LCD.E, err = lookup(LCDEPin); err != nil {
		return nil, err
	}
	return b, nil
}

// Config puts the lines in their start-up state: pushbuttons as inputs
// reporting edges, LEDs off, LCD control lines low.
func (b *Board) Config() error {
	for ix, sw := range b.Switches {
		if err := sw.In(gpio.PullUp, gpio.BothEdges); err != nil {
			return fmt.Errorf("ubmp4: SW%d: %w", ix+1, err)
		}
	}
	for ix, led := range b.LEDs {
		if err := led.Out(gpio.Low); err != nil {
			return fmt.Errorf("ubmp4: LED%d: %w", ix+3, err)
		}
	}
	for _, p := range []gpio.PinOut{b.LCD.RS, b.LCD.RW, b.LCD.E} {
		if p == nil {
			continue
		}
		if err := p.Out(gpio.Low); err != nil {
			return fmt.Errorf("ubmp4: %s: %w", p, err)
		}
	}
	return nil
}

// Switch returns the line of sw.
func (b *Board) Switch(sw Switch) gpio.PinIn {
	return b.Switches[sw-SW1]
}

// Pressed reports whether sw is held down.
func (b *Board) Pressed(sw Switch) bool {
	return b.Switch(sw).Read() == gpio.Low
}

// SetLED turns an LED on or off.
func (b *Board) SetLED(led LED, on bool) error {
	return b.LEDs[led-LED3].Out(gpio.Level(on))
}

// Delay blocks for d on the board clock.
func (b *Board) Delay(d time.Duration) {
	if b.Clock == nil {
		time.Sleep(d)
		return
	}
	b.Clock.Sleep(d)
}

// Sleep halts until a pushbutton changes state or ctx is done. Edges seen
// before the call are ignored.
func (b *Board) Sleep(ctx context.Context) error {
	for _, sw := range b.Switches {
		if err := sw.In(gpio.PullNoChange, gpio.BothEdges); err != nil {
			return err
		}
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	woke := make(chan struct{}, 1)
	var wg sync.WaitGroup
	for _, sw := range b.Switches {
		wg.Add(1)
		go func(p gpio.PinIn) {
			defer wg.Done()
			for ctx.Err() == nil {
				if p.WaitForEdge(wakePoll) {
					select {
					case woke <- struct{}{}:
					default:
					}
					return
				}
			}
		}(sw)
	}
	var err error
	select {
	case <-woke:
	case <-ctx.Done():
		err = ctx.Err()
	}
	cancel()
	wg.Wait()
	return err
}

// Reset returns ErrReset.
func (b *Board) Reset() error {
	return ErrReset
}
