// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package hd44780 drives a Hitachi HD44780 compatible character LCD over a
// 4-bit parallel bus, using the busy flag for flow control.
//
// # Datasheet
//
// https://www.sparkfun.com/datasheets/LCD/HD44780.pdf
//
// # Wiring
//
// The four data lines D4-D7 are bits 4-7 of a register shared with other,
// unrelated lines. Writes only ever touch bits 4-7, except for Init8 which
// puts a whole byte on the register as the power-on handshake requires. RS,
// RW and E are separate outputs. RW must be wired: the driver reads the busy
// flag before every transfer.
//
// # Power on
//
// The controller comes out of reset with an unknown interface width and can't
// be polled. PowerOn runs the datasheet sequence: three 8-bit function sets
// with fixed delays, a function set switching to 4-bit mode, then the regular
// setup commands through SendCommand.
package hd44780

import (
	"errors"
	"fmt"
	"log"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"
)

var (
	// ErrNotResponding is returned by WaitUntilReady when Opts.BusyTimeout is
	// set and the busy flag stayed set for longer.
	ErrNotResponding = errors.New("hd44780: controller not responding")
	ErrInvalidBus    = errors.New("hd44780: invalid bus")
	ErrOutOfRange    = errors.New("hd44780: position out of range")
	ErrNoBacklight   = errors.New("hd44780: no backlight pin")
	ErrInvalidCursor = errors.New("hd44780: invalid cursor mode")
)

const (
	maxLines = 2
	maxCols  = 40
)

// Bus is the set of lines connected to the display.
type Bus struct {
	// RS selects the instruction (Low) or data (High) register.
	RS gpio.PinOut
	// RW selects write (Low) or read (High).
	RW gpio.PinOut
	// E latches the data lines on its falling edge.
	E gpio.PinOut
	// Data is the 8-bit register carrying D4-D7 at offsets 4-7. The lines at
	// offsets 4-7 must implement gpio.PinIO so they can be turned around for
	// busy flag reads.
	Data gpio.Group
	// InitMask selects the lines Init8 drives. Zero drives the whole
	// register.
	InitMask gpio.GPIOValue
	// Backlight is optional.
	Backlight gpio.PinOut
}

// Timing holds the delays of the protocol.
type Timing struct {
	// PulseWidth is how long E is held high.
	PulseWidth time.Duration
	// Setup is the settle time between nibbles and around busy reads.
	Setup time.Duration
	// Poll is the delay between two busy flag samples. Zero spins, unless
	// Opts.BusyTimeout is set: the clock must then move, so Setup (or a
	// microsecond when Setup is zero too) is used instead.
	Poll time.Duration
	// PowerUp is the wait before the first Init8.
	PowerUp time.Duration
	// FirstInit and SecondInit follow the first and second Init8 of the
	// power on handshake.
	FirstInit  time.Duration
	SecondInit time.Duration
}

// DefaultTiming is the timing used by the UBMP4 LCD program. The handshake
// delays are the datasheet minimums (40ms, 4.1ms and 100µs) rounded up.
var DefaultTiming = Timing{
	PulseWidth: 6 * time.Microsecond,
	Setup:      6 * time.Microsecond,
	PowerUp:    45 * time.Millisecond,
	FirstInit:  4200 * time.Microsecond,
	SecondInit: 102 * time.Microsecond,
}

// Clock provides time to the driver.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type wallClock struct{}

func (wallClock) Now() time.Time        { return time.Now() }
func (wallClock) Sleep(d time.Duration) { time.Sleep(d) }

// Opts holds the driver configuration. Zero fields take their value from
// DefaultOpts.
type Opts struct {
	Timing Timing
	// Clock defaults to the wall clock.
	Clock Clock
	// BusyTimeout bounds WaitUntilReady. Zero waits forever, like the
	// firmware does.
	BusyTimeout time.Duration
	// Lines is 1 or 2.
	Lines int
	// Cols is the number of visible characters per line, at most 40.
	Cols int
	// DisplayMode is the last command of PowerOn.
	DisplayMode byte
	// Logger traces PowerOn when set.
	Logger *log.Logger
}

// DefaultOpts matches the UBMP4 LCD program: two lines, cursor on and
// blinking.
var DefaultOpts = Opts{
	Timing:      DefaultTiming,
	Lines:       2,
	Cols:        16,
	DisplayMode: DisplayCursorBlink,
}

// Dev is a display on a Bus. It is not safe for concurrent use.
type Dev struct {
	bus   Bus
	opts  Opts
	clock Clock
	data  [4]gpio.PinIO

	// Bits of the last display control instruction.
	control byte
}

// New returns a driver for the display on bus. The display is not touched:
// call PowerOn, or run the Init8 handshake yourself, before anything else.
func New(bus Bus, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	if bus.RS == nil || bus.RW == nil || bus.E == nil || bus.Data == nil {
		return nil, fmt.Errorf("%w: RS, RW, E and Data are required", ErrInvalidBus)
	}
	if n := len(bus.Data.Pins()); n != 8 {
		return nil, fmt.Errorf("%w: Data has %d lines, expected 8", ErrInvalidBus, n)
	}
	o := *opts
	if o.Timing == (Timing{}) {
		o.Timing = DefaultOpts.Timing
	}
	if o.Lines == 0 {
		o.Lines = DefaultOpts.Lines
	}
	if o.Cols == 0 {
		o.Cols = DefaultOpts.Cols
	}
	if o.DisplayMode == 0 {
		o.DisplayMode = DefaultOpts.DisplayMode
	}
	if o.Lines < 1 || o.Lines > maxLines {
		return nil, fmt.Errorf("hd44780: invalid line count %d", o.Lines)
	}
	if o.Cols < 1 || o.Cols > maxCols {
		return nil, fmt.Errorf("hd44780: invalid column count %d", o.Cols)
	}
	if o.DisplayMode&^displayBits != DisplayOff {
		return nil, fmt.Errorf("hd44780: invalid display mode 0x%02x", o.DisplayMode)
	}
	d := &Dev{bus: bus, opts: o, clock: o.Clock, control: o.DisplayMode}
	if d.clock == nil {
		d.clock = wallClock{}
	}
	for ix := range d.data {
		p, ok := bus.Data.ByOffset(4 + ix).(gpio.PinIO)
		if !ok {
			return nil, fmt.Errorf("%w: D%d can't be read", ErrInvalidBus, 4+ix)
		}
		d.data[ix] = p
	}
	return d, nil
}

// Init8 sends b as a single 8-bit transfer: RS and RW low, b on the data
// register, one E pulse. It is only meant for the power on handshake, when
// the interface width is unknown and the busy flag can't be read. The caller
// owns the delay that follows.
func (d *Dev) Init8(b byte) error {
	if err := d.bus.RS.Out(gpio.Low); err != nil {
		return err
	}
	if err := d.bus.RW.Out(gpio.Low); err != nil {
		return err
	}
	if err := d.bus.Data.Out(gpio.GPIOValue(b), d.bus.InitMask); err != nil {
		return err
	}
	return d.strobe()
}

// WaitUntilReady blocks while the controller reports busy. It returns
// ErrNotResponding only when Opts.BusyTimeout is set.
//
// The data lines are inputs for the duration of the call and always outputs
// again when it returns.
func (d *Dev) WaitUntilReady() (err error) {
	defer func() {
		if e := d.dataDirection(true); err == nil {
			err = e
		}
	}()
	if err = d.dataDirection(false); err != nil {
		return err
	}
	if err = d.bus.RS.Out(gpio.Low); err != nil {
		return err
	}
	if err = d.bus.RW.Out(gpio.High); err != nil {
		return err
	}
	d.clock.Sleep(d.opts.Timing.Setup)
	if err = d.bus.E.Out(gpio.High); err != nil {
		return err
	}
	d.clock.Sleep(d.opts.Timing.Setup)
	err = d.spin()
	if e := d.bus.E.Out(gpio.Low); err == nil {
		err = e
	}
	d.clock.Sleep(d.opts.Timing.Setup)
	return err
}

func (d *Dev) spin() error {
	var deadline time.Time
	poll := d.opts.Timing.Poll
	if d.opts.BusyTimeout > 0 {
		deadline = d.clock.Now().Add(d.opts.BusyTimeout)
		if poll == 0 {
			poll = max(d.opts.Timing.Setup, time.Microsecond)
		}
	}
	for {
		v, err := d.bus.Data.Read(busyFlag)
		if err != nil {
			return err
		}
		if v&busyFlag == 0 {
			return nil
		}
		if !deadline.IsZero() && d.clock.Now().After(deadline) {
			return ErrNotResponding
		}
		if poll > 0 {
			d.clock.Sleep(poll)
		}
	}
}

// dataDirection turns D4-D7 into outputs or inputs. Outputs come back
// driving Low; the next transfer overwrites them.
func (d *Dev) dataDirection(output bool) error {
	for _, p := range d.data {
		var err error
		if output {
			err = p.Out(gpio.Low)
		} else {
			err = p.In(gpio.PullNoChange, gpio.NoEdge)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// SendCommand waits for the controller then sends b to the instruction
// register.
func (d *Dev) SendCommand(b byte) error {
	return d.transfer(gpio.Low, b)
}

// WriteData waits for the controller then sends b to the data register, at
// the current DDRAM or CGRAM address.
func (d *Dev) WriteData(b byte) error {
	return d.transfer(gpio.High, b)
}

func (d *Dev) transfer(rs gpio.Level, b byte) error {
	if err := d.WaitUntilReady(); err != nil {
		return err
	}
	if err := d.bus.RS.Out(rs); err != nil {
		return err
	}
	if err := d.bus.RW.Out(gpio.Low); err != nil {
		return err
	}
	if err := d.writeNibble(b); err != nil {
		return err
	}
	d.clock.Sleep(d.opts.Timing.Setup)
	return d.writeNibble(b << 4)
}

// writeNibble puts the upper 4 bits of v on D4-D7 and pulses E. Bits 0-3 of
// the register are left alone.
func (d *Dev) writeNibble(v byte) error {
	if err := d.bus.Data.Out(gpio.GPIOValue(v&dataMask), dataMask); err != nil {
		return err
	}
	return d.strobe()
}

func (d *Dev) strobe() error {
	if err := d.bus.E.Out(gpio.High); err != nil {
		return err
	}
	d.clock.Sleep(d.opts.Timing.PulseWidth)
	return d.bus.E.Out(gpio.Low)
}

// PowerOn brings the controller from power on reset to 4-bit mode, clears
// the display and sets Opts.DisplayMode.
func (d *Dev) PowerOn() error {
	t := d.opts.Timing
	funcSet := FuncSet4
	if d.opts.Lines == 1 {
		funcSet &^= funcTwoLines
	}
	d.clock.Sleep(t.PowerUp)
	handshake := []struct {
		b     byte
		delay time.Duration
	}{
		{FuncSet8, t.FirstInit},
		{FuncSet8, t.SecondInit},
		{FuncSet8, 0},
		{funcSet, 0},
	}
	for _, h := range handshake {
		if err := d.Init8(h.b); err != nil {
			return err
		}
		d.clock.Sleep(h.delay)
	}
	d.control = d.opts.DisplayMode
	for _, c := range []byte{funcSet, DisplayOff, ClearDisplay, EntryIncrement, d.control} {
		if err := d.SendCommand(c); err != nil {
			return err
		}
	}
	if d.opts.Logger != nil {
		d.opts.Logger.Printf("hd44780: %s in 4-bit mode, %d line(s)", d, d.opts.Lines)
	}
	return nil
}

// Write sends p as character data.
func (d *Dev) Write(p []byte) (n int, err error) {
	for _, b := range p {
		if err = d.WriteData(b); err != nil {
			return
		}
		n++
	}
	return
}

// WriteString sends s as character data. Each byte is one character code.
func (d *Dev) WriteString(s string) (int, error) {
	return d.Write([]byte(s))
}

// Clear clears the display and moves the cursor home.
func (d *Dev) Clear() error {
	return d.SendCommand(ClearDisplay)
}

// Home moves the cursor home without clearing.
func (d *Dev) Home() error {
	return d.SendCommand(ReturnHome)
}

// AutoScroll makes the display shift with every character written, so the
// text scrolls past a cursor that stays in place.
func (d *Dev) AutoScroll(enabled bool) error {
	c := EntryIncrement
	if enabled {
		c |= entryShift
	}
	return d.SendCommand(c)
}

// Cursor sets the cursor. The controller has an underline cursor and a
// blinking block, which can be combined:
//
//	Cursor(display.CursorUnderline, display.CursorBlink)
//
// CursorBlock and CursorBlink both select the blinking block.
func (d *Dev) Cursor(modes ...display.CursorMode) error {
	c := d.control &^ (displayCursor | displayBlink)
	for _, m := range modes {
		switch m {
		case display.CursorOff:
			c &^= displayCursor | displayBlink
		case display.CursorUnderline:
			c |= displayCursor
		case display.CursorBlock, display.CursorBlink:
			c |= displayBlink
		default:
			return fmt.Errorf("%w: %d", ErrInvalidCursor, m)
		}
	}
	return d.setControl(c)
}

// Display turns the display on or off. The text and the cursor settings are
// kept.
func (d *Dev) Display(on bool) error {
	c := d.control &^ displayOnBit
	if on {
		c |= displayOnBit
	}
	return d.setControl(c)
}

func (d *Dev) setControl(c byte) error {
	if err := d.SendCommand(c); err != nil {
		return err
	}
	d.control = c
	return nil
}

// Move moves the cursor one position. Only Forward and Backward are
// supported.
func (d *Dev) Move(dir display.CursorDirection) error {
	switch dir {
	case display.Backward:
		return d.SendCommand(CursorLeft)
	case display.Forward:
		return d.SendCommand(CursorRight)
	default:
		return fmt.Errorf("hd44780: move %d: %w", dir, display.ErrNotImplemented)
	}
}

// Rows returns the number of lines.
func (d *Dev) Rows() int {
	return d.opts.Lines
}

// Cols returns the number of visible characters per line.
func (d *Dev) Cols() int {
	return d.opts.Cols
}

// MinRow returns 1, rows are 1 based.
func (d *Dev) MinRow() int {
	return 1
}

// MinCol returns 1, columns are 1 based.
func (d *Dev) MinCol() int {
	return 1
}

// MoveTo moves the cursor to line (1 based) and col (1 based).
func (d *Dev) MoveTo(line, col int) error {
	if line < d.MinRow() || line > d.Rows() || col < d.MinCol() || col > d.Cols() {
		return fmt.Errorf("%w: MoveTo(%d, %d)", ErrOutOfRange, line, col)
	}
	addr := Line1
	if line == 2 {
		addr = Line2
	}
	return d.SendCommand(addr + byte(col-1))
}

// Backlight turns the backlight on for any intensity above 0.
func (d *Dev) Backlight(intensity display.Intensity) error {
	if d.bus.Backlight == nil {
		return ErrNoBacklight
	}
	return NewBacklight(d.bus.Backlight).Backlight(intensity)
}

// Halt clears the display and turns it off, along with the backlight if
// there is one.
func (d *Dev) Halt() error {
	if err := d.Clear(); err != nil {
		return err
	}
	if err := d.Display(false); err != nil {
		return err
	}
	if d.bus.Backlight != nil {
		return d.Backlight(0)
	}
	return nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("HD44780{%s}", d.bus.Data)
}

var _ conn.Resource = &Dev{}
var _ display.TextDisplay = &Dev{}
var _ display.DisplayBacklight = &Dev{}
