// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package hd44780sim simulates an HD44780 controller wired in 4-bit mode to
// simulated port registers.
//
// The Controller watches RS, RW and E on one register and D4-D7 (bits 4-7) on
// another, which may be the same register. Every E pulse is logged, the power
// on handshake is tracked, instructions and data are executed against DDRAM
// and CGRAM, and the busy flag is driven on D7 during status reads.
//
// Anything a real controller would choke on, such as a transfer while busy or
// a handshake delay below the datasheet minimum, is recorded as a violation
// instead of failing, so tests can assert on the whole session.
package hd44780sim

import (
	"fmt"
	"sync"
	"time"

	"github.com/GermanBionicSystems/ubmp4/port"
)

// Mode is the interface state of the controller.
type Mode int

const (
	// Unknown8 is the state after power on: the interface width is unknown
	// and treated as 8 bits.
	Unknown8 Mode = iota
	// Unknown8Repeated follows the first or second 8-bit function set.
	Unknown8Repeated
	// FourBitPending follows the third 8-bit function set. The next one
	// selects the interface width.
	FourBitPending
	// FourBit accepts one nibble pair per transfer.
	FourBit
)

func (m Mode) String() string {
	switch m {
	case Unknown8:
		return "Unknown8"
	case Unknown8Repeated:
		return "Unknown8Repeated"
	case FourBitPending:
		return "FourBitPending"
	case FourBit:
		return "FourBit"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Datasheet minimums for the power on handshake.
const (
	minPowerUp    = 40 * time.Millisecond
	minFirstInit  = 4100 * time.Microsecond
	minSecondInit = 100 * time.Microsecond
)

const (
	ddramSize = 80
	lineSize  = 40
	cgramSize = 64
	line2Addr = 0x40
)

// Pulse is one E pulse seen by the controller.
type Pulse struct {
	RS bool
	RW bool
	// Latch is the data register latch when E fell. Zero for reads.
	Latch byte
	// Nibble is D7-D4.
	Nibble byte
	// Raw is set for 8-bit transfers made before 4-bit mode was entered.
	Raw bool
	At  time.Time
}

// Clock is the time source used to check the handshake delays.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// Opts configures the Controller.
type Opts struct {
	// Clock defaults to the wall clock.
	Clock Clock
	// RSBit, RWBit and EBit are the control lines on the control register.
	RSBit, RWBit, EBit int
	// BusyPolls is the number of status samples reporting busy after an
	// instruction or data write. ClearPolls applies to clear and home.
	BusyPolls  int
	ClearPolls int
	// Stuck keeps the busy flag set forever.
	Stuck bool
}

// DefaultOpts matches the LCD header of the UBMP4: RS, RW and E on bits 0, 1
// and 2.
var DefaultOpts = Opts{
	RSBit:      0,
	RWBit:      1,
	EBit:       2,
	BusyPolls:  1,
	ClearPolls: 4,
}

// Controller is a simulated HD44780.
type Controller struct {
	opts    Opts
	clock   Clock
	started time.Time

	mu       sync.Mutex
	rs, rw   bool
	e        bool
	dataLat  byte
	dataTris byte
	mode     Mode
	inits    []time.Time
	high     byte
	half     bool
	busy     int
	pulses   []Pulse
	problems []string

	twoLines bool
	ddram    [ddramSize]byte
	cgram    [cgramSize]byte
	addr     int
	cgMode   bool
	incr     bool
	autoSh   bool
	shift    int
	on       bool
	cursor   bool
	blink    bool
}

// New returns a Controller in its power on state.
func New(opts *Opts) *Controller {
	if opts == nil {
		opts = &DefaultOpts
	}
	c := &Controller{opts: *opts, clock: opts.Clock, incr: true, dataTris: 0xff}
	if c.clock == nil {
		c.clock = wallClock{}
	}
	c.started = c.clock.Now()
	for ix := range c.ddram {
		c.ddram[ix] = ' '
	}
	return c
}

// Control returns the Peripheral to attach to the register holding RS, RW and
// E.
func (c *Controller) Control() port.Peripheral {
	return controlSide{c}
}

// Data returns the Peripheral to attach to the register holding D4-D7.
func (c *Controller) Data() port.Peripheral {
	return dataSide{c}
}

type controlSide struct{ c *Controller }

func (s controlSide) Latched(lat, tris byte) { s.c.control(lat) }
func (s controlSide) Drive() (byte, byte)    { return 0, 0 }

type dataSide struct{ c *Controller }

func (s dataSide) Latched(lat, tris byte) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	s.c.dataLat = lat
	s.c.dataTris = tris
}

func (s dataSide) Drive() (byte, byte) { return s.c.drive() }

func bit(v byte, n int) bool {
	return v&(1<<n) != 0
}

func (c *Controller) control(lat byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rs := bit(lat, c.opts.RSBit)
	rw := bit(lat, c.opts.RWBit)
	e := bit(lat, c.opts.EBit)
	rising := e && !c.e
	falling := !e && c.e
	c.rs, c.rw, c.e = rs, rw, e
	switch {
	case rising && rw:
		c.pulses = append(c.pulses, Pulse{RS: rs, RW: true, At: c.clock.Now()})
		if c.mode != FourBit {
			c.violation("status read in mode %s", c.mode)
		}
	case falling && !rw:
		c.latch()
	}
}

// latch handles the falling edge of E for a write.
func (c *Controller) latch() {
	if c.dataTris&0xf0 != 0 {
		c.violation("write with data lines as inputs (TRIS=0x%02x)", c.dataTris)
	}
	v := c.dataLat & 0xf0
	p := Pulse{RS: c.rs, Latch: c.dataLat, Nibble: v >> 4, Raw: c.mode != FourBit, At: c.clock.Now()}
	c.pulses = append(c.pulses, p)
	if c.mode != FourBit {
		c.handshake(v, p.At)
		return
	}
	if !c.half {
		c.high = v
		c.half = true
		return
	}
	c.half = false
	b := c.high | v>>4
	if c.busy > 0 || c.opts.Stuck {
		c.violation("transfer 0x%02x while busy", b)
	}
	if c.rs {
		c.writeData(b)
	} else {
		c.instruction(b)
	}
}

// handshake runs the power on state machine on an 8-bit function set. Only
// D7-D4 are wired, so v carries the upper half of the instruction.
func (c *Controller) handshake(v byte, at time.Time) {
	if v&0xe0 != 0x20 {
		c.violation("instruction 0x%02x before 4-bit mode", v)
		return
	}
	if v&0x10 != 0 {
		switch len(c.inits) {
		case 0:
			if d := at.Sub(c.started); d < minPowerUp {
				c.violation("first function set %s after power on, expected %s", d, minPowerUp)
			}
		case 1:
			if d := at.Sub(c.inits[0]); d < minFirstInit {
				c.violation("second function set %s after the first, expected %s", d, minFirstInit)
			}
		case 2:
			if d := at.Sub(c.inits[1]); d < minSecondInit {
				c.violation("third function set %s after the second, expected %s", d, minSecondInit)
			}
		}
		c.inits = append(c.inits, at)
		switch len(c.inits) {
		case 1, 2:
			c.mode = Unknown8Repeated
		default:
			c.mode = FourBitPending
		}
		return
	}
	if c.mode != FourBitPending {
		c.violation("4-bit function set in mode %s", c.mode)
	}
	c.mode = FourBit
	c.half = false
}

func (c *Controller) drive() (byte, byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.e || !c.rw {
		return 0, 0
	}
	if c.rs {
		return c.ddram[c.addr%ddramSize] & 0xf0, 0xf0
	}
	var v byte
	if c.opts.Stuck || c.busy > 0 {
		v |= 0x80
		if c.busy > 0 {
			c.busy--
		}
	}
	return v, 0xf0
}

func (c *Controller) instruction(b byte) {
	c.busy = c.opts.BusyPolls
	switch {
	case b&0x80 != 0:
		c.addr = c.ddramIndex(b & 0x7f)
		c.cgMode = false
	case b&0x40 != 0:
		c.addr = int(b & 0x3f)
		c.cgMode = true
	case b&0x20 != 0:
		if b&0x10 != 0 {
			c.violation("8-bit function set 0x%02x in 4-bit mode", b)
		}
		c.twoLines = b&0x08 != 0
	case b&0x10 != 0:
		right := b&0x04 != 0
		if b&0x08 != 0 {
			c.shiftDisplay(right)
		} else {
			c.moveCursor(right)
		}
	case b&0x08 != 0:
		c.on = b&0x04 != 0
		c.cursor = b&0x02 != 0
		c.blink = b&0x01 != 0
	case b&0x04 != 0:
		c.incr = b&0x02 != 0
		c.autoSh = b&0x01 != 0
	case b&0x02 != 0:
		c.addr, c.shift, c.cgMode = 0, 0, false
		c.busy = c.opts.ClearPolls
	case b&0x01 != 0:
		for ix := range c.ddram {
			c.ddram[ix] = ' '
		}
		c.addr, c.shift, c.cgMode, c.incr = 0, 0, false, true
		c.busy = c.opts.ClearPolls
	}
}

func (c *Controller) writeData(b byte) {
	c.busy = c.opts.BusyPolls
	if c.cgMode {
		c.cgram[c.addr] = b
		if c.incr {
			c.addr = (c.addr + 1) % cgramSize
		} else {
			c.addr = (c.addr + cgramSize - 1) % cgramSize
		}
		return
	}
	c.ddram[c.addr] = b
	c.moveCursor(c.incr)
	if c.autoSh {
		c.shiftDisplay(!c.incr)
	}
}

// ddramIndex converts a DDRAM address to an index into ddram. In two line
// mode line 2 starts at 0x40.
func (c *Controller) ddramIndex(a byte) int {
	if !c.twoLines {
		return int(a) % ddramSize
	}
	if a >= line2Addr {
		return lineSize + int(a-line2Addr)%lineSize
	}
	return int(a) % lineSize
}

func (c *Controller) moveCursor(right bool) {
	if right {
		c.addr = (c.addr + 1) % ddramSize
	} else {
		c.addr = (c.addr + ddramSize - 1) % ddramSize
	}
}

// shiftDisplay moves the window over DDRAM. Each line wraps on its own: 80
// characters in one line mode, 40 in two line mode.
func (c *Controller) shiftDisplay(right bool) {
	w := c.lineWidth()
	if right {
		c.shift = (c.shift + w - 1) % w
	} else {
		c.shift = (c.shift + 1) % w
	}
}

func (c *Controller) lineWidth() int {
	if c.twoLines {
		return lineSize
	}
	return ddramSize
}

func (c *Controller) violation(format string, args ...interface{}) {
	c.problems = append(c.problems, fmt.Sprintf(format, args...))
}

// Mode returns the interface state.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Pulses returns the E pulses seen since the last ClearPulses.
func (c *Controller) Pulses() []Pulse {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Pulse(nil), c.pulses...)
}

// ClearPulses empties the pulse log.
func (c *Controller) ClearPulses() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pulses = nil
}

// Violations returns the protocol errors seen so far.
func (c *Controller) Violations() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.problems...)
}

// On reports whether the display is on.
func (c *Controller) On() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.on
}

// Cursor returns the cursor position as 0 based line and column, and whether
// it is shown and blinking.
func (c *Controller) Cursor() (line, col int, shown, blink bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	line, col = c.position(c.addr)
	return line, col, c.cursor, c.blink
}

func (c *Controller) position(ix int) (int, int) {
	if !c.twoLines {
		return 0, ix
	}
	return ix / lineSize, ix % lineSize
}

// CGRAM returns a copy of the character generator RAM.
func (c *Controller) CGRAM() [cgramSize]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cgram
}

// Lines returns the visible text, cols characters per line. A display that
// is off shows blank lines.
func (c *Controller) Lines(cols int) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, width := 1, c.lineWidth()
	if c.twoLines {
		n = 2
	}
	out := make([]string, n)
	for l := range n {
		buf := make([]rune, cols)
		for ix := range cols {
			buf[ix] = ' '
			if c.on && ix < width {
				buf[ix] = glyph(c.ddram[l*width+(c.shift+ix)%width])
			}
		}
		out[l] = string(buf)
	}
	return out
}

// glyph maps a character code of the A00 ROM to a rune.
func glyph(b byte) rune {
	switch {
	case b < 8:
		return '▒'
	case b >= 0x20 && b < 0x7e && b != 0x5c:
		return rune(b)
	case b == 0x5c:
		return '¥'
	case b == 0x7e:
		return '→'
	case b == 0x7f:
		return '←'
	case b == 0xdf:
		return '°'
	}
	return '?'
}
