// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package port models an 8-bit I/O register whose lines are shared between
// unrelated functions, as found on small microcontrollers.
//
// A Dev keeps three registers, named after the PIC18 ones:
//
//	LAT  - output latch. Bit n is the level driven on line n when it is an output.
//	TRIS - direction. Bit n set means line n is an input.
//	PORT - line levels, sampled from the Backend on every read.
//
// Every write is a read-modify-write of the latch: only the bits selected by
// the mask change, the other lines keep whatever they were driving. This is
// what lets an LCD share a register with LEDs or control lines.
//
// The lines are exposed as gpio.PinIO through Dev.Pins, and any subset of
// them can be grouped into a gpio.Group with Dev.Group.
package port

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

const (
	// Width is the number of lines in a register.
	Width = 8

	devMask = 0xff
)

var (
	ErrNotImplemented = errors.New("port: not implemented")
	ErrHalted         = errors.New("port: halted")
)

// Backend moves the register contents of a Dev to the hardware.
type Backend interface {
	// Apply is called with the new latch and direction registers each time
	// either of them changes.
	Apply(lat, tris byte) error
	// Sample returns the level of every line.
	Sample(lat, tris byte) (byte, error)
	String() string
}

// Dev is an 8-bit register with individually addressable lines.
type Dev struct {
	// Pins holds one gpio.PinIO per line, indexed by bit number.
	Pins []gpio.PinIO

	name    string
	mu      sync.Mutex
	backend Backend
	lat     byte
	tris    byte
	halted  bool
}

// New returns a register named name on top of backend. All lines start as
// inputs with a cleared latch, the power-on state of a PIC18 port.
func New(name string, backend Backend) *Dev {
	dev := &Dev{name: name, backend: backend, tris: devMask, Pins: make([]gpio.PinIO, Width)}
	for ix := range Width {
		dev.Pins[ix] = &Pin{dev: dev, number: ix, name: fmt.Sprintf("%s%d", name, ix)}
	}
	return dev
}

// Latch returns the LAT register.
func (dev *Dev) Latch() byte {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.lat
}

// Direction returns the TRIS register. A set bit is an input.
func (dev *Dev) Direction() byte {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.tris
}

// Group returns the lines identified by bits as a gpio.Group. Offset n of
// the group is line bits[n].
func (dev *Dev) Group(bits ...int) (gpio.Group, error) {
	gr := &Group{dev: dev, pins: make([]*Pin, len(bits))}
	for ix, bit := range bits {
		if bit < 0 || bit >= Width {
			return nil, fmt.Errorf("port: line %d out of range on %s", bit, dev.name)
		}
		gr.pins[ix] = dev.Pins[bit].(*Pin)
	}
	return gr, nil
}

// Register adds the lines to gpioreg under their names.
func (dev *Dev) Register() error {
	for _, p := range dev.Pins {
		if err := gpioreg.Register(p); err != nil {
			return err
		}
	}
	return nil
}

// Unregister removes the lines from gpioreg.
func (dev *Dev) Unregister() error {
	var err error
	for _, p := range dev.Pins {
		if e := gpioreg.Unregister(p.Name()); e != nil && err == nil {
			err = e
		}
	}
	return err
}

// Halt marks the register halted: every later read or write of its lines
// returns ErrHalted. The backend is left as is.
func (dev *Dev) Halt() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.halted = true
	return nil
}

func (dev *Dev) String() string {
	return fmt.Sprintf("%s(%s)", dev.name, dev.backend)
}

// write merges value into the latch for the bits in mask and makes those
// lines outputs.
func (dev *Dev) write(value, mask byte) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.halted {
		return ErrHalted
	}
	lat := (dev.lat & (devMask ^ mask)) | (value & mask)
	tris := dev.tris &^ mask
	return dev.apply(lat, tris)
}

// input turns the lines in mask into inputs. Their latch bits are kept.
func (dev *Dev) input(mask byte) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.halted {
		return ErrHalted
	}
	return dev.apply(dev.lat, dev.tris|mask)
}

func (dev *Dev) apply(lat, tris byte) error {
	if lat == dev.lat && tris == dev.tris {
		return nil
	}
	if err := dev.backend.Apply(lat, tris); err != nil {
		return fmt.Errorf("port: %w", err)
	}
	dev.lat = lat
	dev.tris = tris
	return nil
}

// read samples the lines in mask.
func (dev *Dev) read(mask byte) (byte, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.halted {
		return 0, ErrHalted
	}
	v, err := dev.backend.Sample(dev.lat, dev.tris)
	if err != nil {
		return 0, fmt.Errorf("port: %w", err)
	}
	return v & mask, nil
}

var _ conn.Resource = &Dev{}
