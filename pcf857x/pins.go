// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package pcf857x

import (
	"log"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

type pcfPin struct {
	dev    *Dev
	number int
	name   string
}

func (pin *pcfPin) mask() gpio.GPIOValue {
	return gpio.GPIOValue(1) << pin.number
}

func (pin *pcfPin) DefaultPull() gpio.Pull {
	return gpio.Float
}

func (pin *pcfPin) Function() string {
	pin.dev.mu.Lock()
	defer pin.dev.mu.Unlock()
	if pin.dev.inputs&pin.mask() != 0 {
		return "In"
	}
	return "Out"
}

func (pin *pcfPin) Halt() error {
	return nil
}

// In releases the line. The chip has no pull configuration and no edge
// detection, so pull and edge are ignored.
func (pin *pcfPin) In(pull gpio.Pull, edge gpio.Edge) error {
	return pin.dev.release(pin.mask())
}

func (pin *pcfPin) Name() string {
	return pin.name
}

func (pin *pcfPin) Number() int {
	return pin.number
}

func (pin *pcfPin) Out(l gpio.Level) error {
	value := gpio.GPIOValue(0)
	if l {
		value = pin.mask()
	}
	return pin.dev.write(value, pin.mask())
}

func (pin *pcfPin) Pull() gpio.Pull {
	return gpio.Float
}

// Read returns the level of the line. Errors are logged and read as Low.
func (pin *pcfPin) Read() gpio.Level {
	v, err := pin.dev.read(pin.mask())
	if err != nil {
		log.Println(err)
		return gpio.Low
	}
	return v != 0
}

func (pin *pcfPin) PWM(duty gpio.Duty, f physic.Frequency) error {
	return ErrNotImplemented
}

func (pin *pcfPin) String() string {
	return pin.name
}

// WaitForEdge always returns false, see Group.WaitForEdge.
func (pin *pcfPin) WaitForEdge(timeout time.Duration) bool {
	return false
}

var _ gpio.PinIO = &pcfPin{}
