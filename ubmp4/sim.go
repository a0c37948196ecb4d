// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ubmp4

import (
	"github.com/GermanBionicSystems/ubmp4/hd44780"
	"github.com/GermanBionicSystems/ubmp4/hd44780sim"
	"github.com/GermanBionicSystems/ubmp4/port"
	"periph.io/x/conn/v3/gpio"
)

// Sim is a simulated board with an LCD on its header.
//
// Time only moves when a program sleeps on Clock, so the LCD power on delays
// and the program loop delays cost nothing.
type Sim struct {
	Board

	PortA *port.Dev
	PortB *port.Dev
	PortC *port.Dev
	PortE *port.Dev

	// Controller is the display on the LCD header.
	Controller   *hd44780sim.Controller
	VirtualClock *hd44780sim.VirtualClock

	simA, simB, simC, simE *port.Sim
}

// NewSim returns a configured simulated board. opts configures the display;
// its Clock is replaced by the board clock.
func NewSim(opts *hd44780sim.Opts) (*Sim, error) {
	if opts == nil {
		opts = &hd44780sim.DefaultOpts
	}
	s := &Sim{
		VirtualClock: hd44780sim.NewVirtualClock(),
		simA:         port.NewSim("PORTA"),
		simB:         port.NewSim("PORTB"),
		simC:         port.NewSim("PORTC"),
		simE:         port.NewSim("PORTE"),
	}
	o := *opts
	o.Clock = s.VirtualClock
	s.Controller = hd44780sim.New(&o)
	s.simA.Attach(s.Controller.Control())
	s.simC.Attach(s.Controller.Data())
	s.PortA = port.New("RA", s.simA)
	s.PortB = port.New("RB", s.simB)
	s.PortC = port.New("RC", s.simC)
	s.PortE = port.New("RE", s.simE)

	data, err := s.PortC.Group(0, 1, 2, 3, 4, 5, 6, 7)
	if err != nil {
		return nil, err
	}
	s.Board = Board{
		Switches: [numSwitch]gpio.PinIn{s.PortE.Pins[3], s.PortB.Pins[0], s.PortB.Pins[1], s.PortB.Pins[2], s.PortB.Pins[3]},
		LEDs:     [numLED]gpio.PinOut{s.PortC.Pins[4], s.PortC.Pins[5], s.PortC.Pins[6], s.PortC.Pins[7]},
		LCD: hd44780.Bus{
			RS:   s.PortA.Pins[0],
			RW:   s.PortA.Pins[1],
			E:    s.PortA.Pins[2],
			Data: data,
		},
		Clock: s.VirtualClock,
	}
	if err := s.Config(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewLCD returns a driver for the display on the LCD header, timed by the
// board clock.
func (s *Sim) NewLCD(opts *hd44780.Opts) (*hd44780.Dev, error) {
	if opts == nil {
		opts = &hd44780.DefaultOpts
	}
	o := *opts
	o.Clock = s.VirtualClock
	return hd44780.New(s.LCD, &o)
}

// Press holds sw down.
func (s *Sim) Press(sw Switch) {
	s.set(sw, gpio.Low)
}

// Release lets sw go.
func (s *Sim) Release(sw Switch) {
	s.set(sw, gpio.High)
}

func (s *Sim) set(sw Switch, l gpio.Level) {
	if sw == SW1 {
		s.simE.SetInput(3, l)
		return
	}
	s.simB.SetInput(int(sw-SW2), l)
}

// LEDOn reports whether led is lit.
func (s *Sim) LEDOn(led LED) bool {
	return s.PortC.Latch()&(1<<(4+int(led-LED3))) != 0
}
