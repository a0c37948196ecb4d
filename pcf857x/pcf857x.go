// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package pcf857x drives the TI/NXP PCF857X I²C I/O expanders. These devices
// provide 8 (PCF8574) or 16 (PCF8575) lines of "quasi-bidirectional"
// input/output and sit on most LCD1602/LCD2004 I²C backpacks.
//
// # Datasheet
//
// https://www.ti.com/lit/ds/symlink/pcf8574.pdf
//
// A good description of the I2C LCD backpack usage can be found here:
//
// https://www.handsontec.com/dataspecs/I2C_2004_LCD.pdf
//
// # Notes
//
// There is no direction register. Writing a Low turns on an open drain to
// ground; writing a High releases the line, which then reads whatever the
// external device drives. In() releases a line and keeps it released across
// writes to the other lines until Out() is called on it again.
//
// The chip powers up with every line released.
//
// The interrupt pin can't tell which line changed, so edge detection is not
// supported.
package pcf857x

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/pin"
)

// Variant represents the actual chip model.
type Variant string

const (
	PCF8574 Variant = "PCF8574"
	PCF8575 Variant = "PCF8575"

	// DefaultAddress is the address with A0-A2 tied low.
	DefaultAddress uint16 = 0x20
)

var ErrNotImplemented = errors.New("pcf857x: not implemented")

// Dev is a PCF857x device.
type Dev struct {
	// Pins exposed by the device: 8 for the PCF8574, 16 for the PCF8575.
	Pins  []gpio.PinIO
	mask  gpio.GPIOValue
	width int
	chip  Variant

	mu     sync.Mutex
	d      *i2c.Dev
	latch  gpio.GPIOValue // levels of the output lines
	inputs gpio.GPIOValue // released lines
	wire   gpio.GPIOValue // last value written
	sent   bool
}

// New returns the expander at address on bus and registers its pins in
// gpioreg. chip should be one of the Variant constants.
func New(bus i2c.Bus, address uint16, chip Variant) (*Dev, error) {
	dev := &Dev{d: &i2c.Dev{Bus: bus, Addr: address}, chip: chip}
	switch chip {
	case PCF8574:
		dev.width = 8
	case PCF8575:
		dev.width = 16
	default:
		return nil, fmt.Errorf("pcf857x: unknown variant %q", chip)
	}
	dev.mask = gpio.GPIOValue((1 << dev.width) - 1)
	dev.inputs = dev.mask
	dev.Pins = make([]gpio.PinIO, dev.width)
	sDev := dev.String()
	for ix := range dev.width {
		dev.Pins[ix] = &pcfPin{dev: dev, number: ix, name: fmt.Sprintf("%s_GPIO%d", sDev, ix)}
		_ = gpioreg.Register(dev.Pins[ix])
	}
	return dev, nil
}

// Group returns the pins identified by pinNumbers as a gpio.Group. Offset n of
// the group is pin pinNumbers[n].
func (dev *Dev) Group(pinNumbers ...int) (gpio.Group, error) {
	gr := &Group{dev: dev, pins: make([]*pcfPin, len(pinNumbers))}
	for ix, number := range pinNumbers {
		if number < 0 || number >= dev.width {
			return nil, fmt.Errorf("pcf857x: pin %d out of range on %s", number, dev)
		}
		gr.pins[ix] = dev.Pins[number].(*pcfPin)
	}
	return gr, nil
}

// Halt removes the pins of the device from gpioreg.
func (dev *Dev) Halt() error {
	for _, p := range dev.Pins {
		if gpioreg.ByName(p.Name()) == p {
			_ = gpioreg.Unregister(p.Name())
		}
	}
	return nil
}

func (dev *Dev) String() string {
	return fmt.Sprintf("%s_%x", dev.chip, dev.d.Addr)
}

// write drives value on the lines in mask.
func (dev *Dev) write(value, mask gpio.GPIOValue) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.latch = (dev.latch &^ mask) | (value & mask)
	dev.inputs &^= mask
	return dev.flush()
}

// release writes a High on the lines in mask so they can be read.
func (dev *Dev) release(mask gpio.GPIOValue) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.inputs |= mask
	return dev.flush()
}

// flush sends the lines to the device. Unchanged writes are skipped.
func (dev *Dev) flush() error {
	v := (dev.latch | dev.inputs) & dev.mask
	if dev.sent && v == dev.wire {
		return nil
	}
	w := make([]byte, dev.width/8)
	for ix := range w {
		w[ix] = byte(v >> (ix * 8))
	}
	if err := dev.d.Tx(w, nil); err != nil {
		return fmt.Errorf("pcf857x: %w", err)
	}
	dev.wire = v
	dev.sent = true
	return nil
}

// read returns the level of the lines in mask. Only released lines report
// the external level; an output reads what it drives.
func (dev *Dev) read(mask gpio.GPIOValue) (gpio.GPIOValue, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	r := make([]byte, dev.width/8)
	if err := dev.d.Tx(nil, r); err != nil {
		return 0, fmt.Errorf("pcf857x: %w", err)
	}
	var v gpio.GPIOValue
	for ix, b := range r {
		v |= gpio.GPIOValue(b) << (ix * 8)
	}
	return v & mask, nil
}

// Group is a set of pins of one device, written or read in one transfer.
type Group struct {
	pins []*pcfPin
	dev  *Dev
}

// Pins returns the set of pins that make up this group.
func (gr *Group) Pins() []pin.Pin {
	pins := make([]pin.Pin, len(gr.pins))
	for ix, p := range gr.pins {
		pins[ix] = p
	}
	return pins
}

// devMask converts a group mask into a device mask. Zero selects the whole
// group.
func (gr *Group) devMask(mask gpio.GPIOValue) gpio.GPIOValue {
	if mask == 0 {
		mask = (1 << len(gr.pins)) - 1
	}
	var m gpio.GPIOValue
	for ix, p := range gr.pins {
		if mask&(1<<ix) != 0 {
			m |= 1 << p.number
		}
	}
	return m
}

// ByOffset returns the pin at offset within the group.
func (gr *Group) ByOffset(offset int) pin.Pin {
	if offset < 0 || offset >= len(gr.pins) {
		return nil
	}
	return gr.pins[offset]
}

// ByName returns the pin by name.
func (gr *Group) ByName(name string) pin.Pin {
	for _, p := range gr.pins {
		if p.name == name {
			return p
		}
	}
	return nil
}

// ByNumber returns the pin by its number on the device.
func (gr *Group) ByNumber(number int) pin.Pin {
	for _, p := range gr.pins {
		if p.number == number {
			return p
		}
	}
	return nil
}

// Out writes value to the pins selected by mask in one transfer.
func (gr *Group) Out(value, mask gpio.GPIOValue) error {
	var wr gpio.GPIOValue
	for ix, p := range gr.pins {
		if value&(1<<ix) != 0 {
			wr |= 1 << p.number
		}
	}
	return gr.dev.write(wr, gr.devMask(mask))
}

// Read returns the levels of the pins selected by mask.
func (gr *Group) Read(mask gpio.GPIOValue) (gpio.GPIOValue, error) {
	if mask == 0 {
		mask = (1 << len(gr.pins)) - 1
	}
	v, err := gr.dev.read(gr.devMask(mask))
	if err != nil {
		return 0, err
	}
	var result gpio.GPIOValue
	for ix, p := range gr.pins {
		if mask&(1<<ix) != 0 && v&(1<<p.number) != 0 {
			result |= 1 << ix
		}
	}
	return result, nil
}

// WaitForEdge is not supported. The INT line of the chip can be watched with
// a host pin instead.
func (gr *Group) WaitForEdge(timeout time.Duration) (number int, edge gpio.Edge, err error) {
	return 0, gpio.NoEdge, gpio.ErrGroupFeatureNotImplemented
}

// Halt implements conn.Resource.
func (gr *Group) Halt() error {
	return nil
}

func (gr *Group) String() string {
	numbers := make([]string, len(gr.pins))
	for ix, p := range gr.pins {
		numbers[ix] = fmt.Sprint(p.number)
	}
	return fmt.Sprintf("%s[%s]", gr.dev, strings.Join(numbers, " "))
}

var _ gpio.Group = &Group{}
