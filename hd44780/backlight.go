// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hd44780

import (
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"
)

// GPIOMonoBacklight is an on/off backlight switched by a single line.
type GPIOMonoBacklight struct {
	pin gpio.PinOut
}

// NewBacklight returns the backlight switched by pin.
func NewBacklight(pin gpio.PinOut) *GPIOMonoBacklight {
	return &GPIOMonoBacklight{pin: pin}
}

// Backlight drives the line High for any intensity above 0.
func (bl *GPIOMonoBacklight) Backlight(intensity display.Intensity) error {
	return bl.pin.Out(gpio.Level(intensity > 0))
}

var _ display.DisplayBacklight = &GPIOMonoBacklight{}
