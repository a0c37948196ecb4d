// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hd44780

import (
	"github.com/GermanBionicSystems/ubmp4/pcf857x"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
)

// DefaultBackpackAddress is the address of most backpacks, with A0-A2
// pulled high.
const DefaultBackpackAddress uint16 = 0x27

// Lines of the PCF8574 on the common LCD1602/LCD2004 backpacks.
const (
	pcfRS        = 0
	pcfRW        = 1
	pcfE         = 2
	pcfBacklight = 3
)

// NewPCF857xBackpack returns a display behind a PCF8574 I²C backpack.
//
// # Product Information
//
// https://www.handsontec.com/dataspecs/I2C_2004_LCD.pdf
//
// D4-D7 are P4-P7 of the expander and the control lines share P0-P3 with the
// backlight, so Init8 is restricted to P4-P7. The control lines are driven
// low and the backlight turned on; the display itself is not initialized, call
// PowerOn.
func NewPCF857xBackpack(bus i2c.Bus, address uint16, opts *Opts) (*Dev, error) {
	reg, err := pcf857x.New(bus, address, pcf857x.PCF8574)
	if err != nil {
		return nil, err
	}
	data, err := reg.Group(0, 1, 2, 3, 4, 5, 6, 7)
	if err != nil {
		return nil, err
	}
	// The expander powers up with every line released high, E included.
	for _, p := range []int{pcfE, pcfRS, pcfRW} {
		if err = reg.Pins[p].Out(gpio.Low); err != nil {
			return nil, err
		}
	}
	if err = reg.Pins[pcfBacklight].Out(gpio.High); err != nil {
		return nil, err
	}
	return New(Bus{
		RS:        reg.Pins[pcfRS],
		RW:        reg.Pins[pcfRW],
		E:         reg.Pins[pcfE],
		Data:      data,
		InitMask:  dataMask,
		Backlight: reg.Pins[pcfBacklight],
	}, opts)
}
