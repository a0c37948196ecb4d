// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package port

import (
	"log"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// edgeWaiter is implemented by backends that can report input changes.
type edgeWaiter interface {
	WaitForEdge(bit int, timeout time.Duration) bool
	flushEdges(bit int)
}

// Pin is a single line of a Dev.
type Pin struct {
	dev    *Dev
	number int
	name   string
}

func (pin *Pin) mask() byte {
	return byte(1) << pin.number
}

// DefaultPull returns gpio.Float, the register has no pull configuration.
func (pin *Pin) DefaultPull() gpio.Pull {
	return gpio.Float
}

// Deprecated: returns "In" or "Out" depending on the direction register.
func (pin *Pin) Function() string {
	if pin.dev.Direction()&pin.mask() != 0 {
		return "In"
	}
	return "Out"
}

// Halt implements conn.Resource.
func (pin *Pin) Halt() error {
	return nil
}

// In makes the line an input. pull is ignored. Requesting edge detection
// discards the edges seen so far, when the backend supports it.
func (pin *Pin) In(pull gpio.Pull, edge gpio.Edge) error {
	if err := pin.dev.input(pin.mask()); err != nil {
		return err
	}
	if ew, ok := pin.dev.backend.(edgeWaiter); ok && edge != gpio.NoEdge {
		ew.flushEdges(pin.number)
	}
	return nil
}

// Name returns the name of the line, the register name followed by the bit.
func (pin *Pin) Name() string {
	return pin.name
}

// Number returns the bit number of the line within the register.
func (pin *Pin) Number() int {
	return pin.number
}

// Out makes the line an output driving l. The other lines of the register
// are left untouched.
func (pin *Pin) Out(l gpio.Level) error {
	v := byte(0)
	if l {
		v = pin.mask()
	}
	return pin.dev.write(v, pin.mask())
}

// Pull returns gpio.Float.
func (pin *Pin) Pull() gpio.Pull {
	return gpio.Float
}

// PWM is not supported.
func (pin *Pin) PWM(duty gpio.Duty, f physic.Frequency) error {
	return ErrNotImplemented
}

// Read returns the level of the line. Errors from the backend are logged and
// read as Low since gpio.PinIn has no way to return them.
func (pin *Pin) Read() gpio.Level {
	v, err := pin.dev.read(pin.mask())
	if err != nil {
		log.Println(err)
		return gpio.Low
	}
	return v != 0
}

func (pin *Pin) String() string {
	return pin.name
}

// WaitForEdge waits for the line to change. It returns false right away if
// the backend can't detect edges.
func (pin *Pin) WaitForEdge(timeout time.Duration) bool {
	if ew, ok := pin.dev.backend.(edgeWaiter); ok {
		return ew.WaitForEdge(pin.number, timeout)
	}
	return false
}

var _ gpio.PinIO = &Pin{}
