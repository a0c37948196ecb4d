// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package port

import (
	"fmt"
	"strings"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/pin"
)

// Group is a set of lines of one Dev written and read in a single register
// operation.
type Group struct {
	dev  *Dev
	pins []*Pin
}

// Pins returns the lines of the group in offset order.
func (gr *Group) Pins() []pin.Pin {
	pins := make([]pin.Pin, len(gr.pins))
	for ix, p := range gr.pins {
		pins[ix] = p
	}
	return pins
}

// ByOffset returns the line at offset within the group.
func (gr *Group) ByOffset(offset int) pin.Pin {
	if offset < 0 || offset >= len(gr.pins) {
		return nil
	}
	return gr.pins[offset]
}

// ByName returns the line called name, or nil.
func (gr *Group) ByName(name string) pin.Pin {
	for _, p := range gr.pins {
		if p.name == name {
			return p
		}
	}
	return nil
}

// ByNumber returns the line with bit number number, or nil.
func (gr *Group) ByNumber(number int) pin.Pin {
	for _, p := range gr.pins {
		if p.number == number {
			return p
		}
	}
	return nil
}

// toDev converts a group value to register bits. Bit n of v maps to the
// line at offset n.
func (gr *Group) toDev(v gpio.GPIOValue) byte {
	var r byte
	for ix, p := range gr.pins {
		if v&(gpio.GPIOValue(1)<<ix) != 0 {
			r |= p.mask()
		}
	}
	return r
}

func (gr *Group) defaultMask(mask gpio.GPIOValue) gpio.GPIOValue {
	if mask == 0 {
		mask = gpio.GPIOValue(1)<<len(gr.pins) - 1
	}
	return mask
}

// Out writes value to the lines selected by mask, making them outputs. A mask
// of 0 selects every line of the group. Lines outside mask, in the group or
// not, keep their latch value.
func (gr *Group) Out(value, mask gpio.GPIOValue) error {
	mask = gr.defaultMask(mask)
	return gr.dev.write(gr.toDev(value), gr.toDev(mask))
}

// Read returns the levels of the lines selected by mask. A mask of 0 selects
// every line of the group.
func (gr *Group) Read(mask gpio.GPIOValue) (gpio.GPIOValue, error) {
	mask = gr.defaultMask(mask)
	v, err := gr.dev.read(gr.toDev(mask))
	if err != nil {
		return 0, err
	}
	var result gpio.GPIOValue
	for ix, p := range gr.pins {
		bit := gpio.GPIOValue(1) << ix
		if mask&bit != 0 && v&p.mask() != 0 {
			result |= bit
		}
	}
	return result, nil
}

// WaitForEdge is not available on groups.
func (gr *Group) WaitForEdge(timeout time.Duration) (int, gpio.Edge, error) {
	return 0, gpio.NoEdge, gpio.ErrGroupFeatureNotImplemented
}

// Halt implements conn.Resource. The register itself stays usable.
func (gr *Group) Halt() error {
	return nil
}

func (gr *Group) String() string {
	var sb strings.Builder
	sb.WriteString(gr.dev.name)
	sb.WriteString("[")
	for ix, p := range gr.pins {
		if ix > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "%d", p.number)
	}
	sb.WriteString("]")
	return sb.String()
}

var _ gpio.Group = &Group{}
