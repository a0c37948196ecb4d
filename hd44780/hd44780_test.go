// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hd44780

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/GermanBionicSystems/ubmp4/hd44780sim"
	"github.com/GermanBionicSystems/ubmp4/port"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/display/displaytest"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

const (
	rsBit = 0
	rwBit = 1
	eBit  = 2
)

// rig is a display wired like the UBMP4 LCD header: RS, RW and E on RA0-RA2,
// D4-D7 on RC4-RC7.
type rig struct {
	ctl   *port.Dev
	data  *port.Dev
	lcd   *hd44780sim.Controller
	clock *hd44780sim.VirtualClock
	dev   *Dev
}

func newRig(t *testing.T, simOpts hd44780sim.Opts, opts Opts) *rig {
	t.Helper()
	r := &rig{clock: hd44780sim.NewVirtualClock()}
	simOpts.Clock = r.clock
	r.lcd = hd44780sim.New(&simOpts)
	ctlSim := port.NewSim("PORTA")
	ctlSim.Attach(r.lcd.Control())
	dataSim := port.NewSim("PORTC")
	dataSim.Attach(r.lcd.Data())
	r.ctl = port.New("RA", ctlSim)
	r.data = port.New("RC", dataSim)
	gr, err := r.data.Group(0, 1, 2, 3, 4, 5, 6, 7)
	if err != nil {
		t.Fatal(err)
	}
	opts.Clock = r.clock
	r.dev, err = New(Bus{RS: r.ctl.Pins[rsBit], RW: r.ctl.Pins[rwBit], E: r.ctl.Pins[eBit], Data: gr}, &opts)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func (r *rig) powerOn(t *testing.T) {
	t.Helper()
	if err := r.dev.PowerOn(); err != nil {
		t.Fatal(err)
	}
	r.lcd.ClearPulses()
}

// setLowNibble drives the unrelated lines RC0-RC3.
func (r *rig) setLowNibble(t *testing.T, v byte) {
	t.Helper()
	for ix := range 4 {
		if err := r.data.Pins[ix].Out(v&(1<<ix) != 0); err != nil {
			t.Fatal(err)
		}
	}
}

func checkViolations(t *testing.T, lcd *hd44780sim.Controller) {
	t.Helper()
	for _, v := range lcd.Violations() {
		t.Error(v)
	}
}

func pad(s string) string {
	return fmt.Sprintf("%-16s", s)
}

var ignoreTime = cmpopts.IgnoreFields(hd44780sim.Pulse{}, "At")

func TestPowerOn(t *testing.T) {
	r := newRig(t, hd44780sim.DefaultOpts, DefaultOpts)
	if err := r.dev.PowerOn(); err != nil {
		t.Fatal(err)
	}
	checkViolations(t, r.lcd)
	if m := r.lcd.Mode(); m != hd44780sim.FourBit {
		t.Errorf("mode expected FourBit, found %s", m)
	}
	pulses := r.lcd.Pulses()
	var raw []byte
	for ix, p := range pulses {
		if !p.Raw {
			for _, q := range pulses[ix:] {
				if q.Raw {
					t.Errorf("raw pulse %+v after 4-bit mode", q)
				}
			}
			break
		}
		raw = append(raw, p.Nibble)
	}
	if diff := cmp.Diff(raw, []byte{0x3, 0x3, 0x3, 0x2}); diff != "" {
		t.Errorf("handshake nibbles (-got +want):\n%s", diff)
	}
	if d := pulses[1].At.Sub(pulses[0].At); d < DefaultTiming.FirstInit {
		t.Errorf("first handshake delay %s, expected at least %s", d, DefaultTiming.FirstInit)
	}
	if d := pulses[2].At.Sub(pulses[1].At); d < DefaultTiming.SecondInit {
		t.Errorf("second handshake delay %s, expected at least %s", d, DefaultTiming.SecondInit)
	}
	// Setup commands: status read and a nibble pair each.
	if n := len(pulses) - len(raw); n != 5*3 {
		t.Errorf("expected 15 pulses after the handshake, found %d", n)
	}
	if !r.lcd.On() {
		t.Error("display expected on")
	}
	if _, _, shown, blink := r.lcd.Cursor(); !shown || !blink {
		t.Error("cursor expected on and blinking")
	}
}

func TestTransfers(t *testing.T) {
	tests := []struct {
		name  string
		send  func(d *Dev) error
		rs    bool
		latch [2]byte
	}{
		{
			name:  "WriteData H",
			send:  func(d *Dev) error { return d.WriteData('H') },
			rs:    true,
			latch: [2]byte{0x45, 0x85},
		},
		{
			name:  "SendCommand ClearDisplay",
			send:  func(d *Dev) error { return d.SendCommand(ClearDisplay) },
			latch: [2]byte{0x05, 0x15},
		},
		{
			name:  "SendCommand Line2",
			send:  func(d *Dev) error { return d.SendCommand(Line2) },
			latch: [2]byte{0xc5, 0x05},
		},
		{
			name:  "WriteData 0xff",
			send:  func(d *Dev) error { return d.WriteData(0xff) },
			rs:    true,
			latch: [2]byte{0xf5, 0xf5},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newRig(t, hd44780sim.DefaultOpts, DefaultOpts)
			r.powerOn(t)
			r.setLowNibble(t, 0x05)
			if err := tc.send(r.dev); err != nil {
				t.Fatal(err)
			}
			want := []hd44780sim.Pulse{
				{RW: true},
				{RS: tc.rs, Latch: tc.latch[0], Nibble: tc.latch[0] >> 4},
				{RS: tc.rs, Latch: tc.latch[1], Nibble: tc.latch[1] >> 4},
			}
			if diff := cmp.Diff(r.lcd.Pulses(), want, ignoreTime); diff != "" {
				t.Errorf("pulses (-got +want):\n%s", diff)
			}
			if low := r.data.Latch() & 0x0f; low != 0x05 {
				t.Errorf("RC0-RC3 expected 0x5, found 0x%x", low)
			}
			checkViolations(t, r.lcd)
		})
	}
}

func TestWaitRestoresDirection(t *testing.T) {
	for _, polls := range []int{0, 1, 7} {
		simOpts := hd44780sim.DefaultOpts
		simOpts.BusyPolls = polls
		r := newRig(t, simOpts, DefaultOpts)
		r.powerOn(t)
		if err := r.dev.SendCommand(EntryIncrement); err != nil {
			t.Fatal(err)
		}
		if err := r.dev.WaitUntilReady(); err != nil {
			t.Fatal(err)
		}
		if dir := r.data.Direction() & 0xf0; dir != 0 {
			t.Errorf("BusyPolls=%d: data lines left as inputs, TRIS=0x%02x", polls, r.data.Direction())
		}
		if r.ctl.Latch()&(1<<eBit) != 0 {
			t.Errorf("BusyPolls=%d: E left high", polls)
		}
		checkViolations(t, r.lcd)
	}
}

func TestBusyTimeout(t *testing.T) {
	simOpts := hd44780sim.DefaultOpts
	simOpts.Stuck = true
	opts := DefaultOpts
	opts.BusyTimeout = time.Millisecond
	opts.Timing.Poll = 100 * time.Microsecond
	r := newRig(t, simOpts, opts)
	err := r.dev.WaitUntilReady()
	if !errors.Is(err, ErrNotResponding) {
		t.Fatalf("expected ErrNotResponding, received %v", err)
	}
	if dir := r.data.Direction() & 0xf0; dir != 0 {
		t.Errorf("data lines left as inputs, TRIS=0x%02x", r.data.Direction())
	}
	if r.ctl.Latch()&(1<<eBit) != 0 {
		t.Error("E left high")
	}
	if err = r.dev.WriteData('x'); !errors.Is(err, ErrNotResponding) {
		t.Errorf("WriteData() expected ErrNotResponding, received %v", err)
	}
}

func TestBusyTimeoutWithoutPoll(t *testing.T) {
	simOpts := hd44780sim.DefaultOpts
	simOpts.Stuck = true
	opts := DefaultOpts
	opts.BusyTimeout = time.Millisecond
	opts.Timing.Poll = 0
	for _, setup := range []time.Duration{DefaultTiming.Setup, 0} {
		opts.Timing.Setup = setup
		r := newRig(t, simOpts, opts)
		start := r.clock.Now()
		if err := r.dev.WaitUntilReady(); !errors.Is(err, ErrNotResponding) {
			t.Fatalf("Setup=%s: expected ErrNotResponding, received %v", setup, err)
		}
		if d := r.clock.Now().Sub(start); d < opts.BusyTimeout {
			t.Errorf("Setup=%s: gave up after %s", setup, d)
		}
	}
}

func TestRegisterSelect(t *testing.T) {
	r := newRig(t, hd44780sim.DefaultOpts, DefaultOpts)
	r.powerOn(t)
	if err := r.dev.SendCommand(ReturnHome); err != nil {
		t.Fatal(err)
	}
	if _, err := r.dev.WriteString("ab"); err != nil {
		t.Fatal(err)
	}
	if err := r.dev.MoveTo(2, 1); err != nil {
		t.Fatal(err)
	}
	for _, p := range r.lcd.Pulses() {
		if p.RW && p.RS {
			t.Errorf("read pulse with RS high: %+v", p)
		}
	}
	pulses := r.lcd.Pulses()
	rs := []bool{}
	for _, p := range pulses {
		if !p.RW {
			rs = append(rs, p.RS)
		}
	}
	want := []bool{false, false, true, true, true, true, false, false}
	if diff := cmp.Diff(rs, want); diff != "" {
		t.Errorf("RS per write pulse (-got +want):\n%s", diff)
	}
}

func TestText(t *testing.T) {
	r := newRig(t, hd44780sim.DefaultOpts, DefaultOpts)
	r.powerOn(t)
	if _, err := r.dev.WriteString("Hello"); err != nil {
		t.Fatal(err)
	}
	if err := r.dev.SendCommand(Line2); err != nil {
		t.Fatal(err)
	}
	n, err := r.dev.WriteString("World!")
	if err != nil {
		t.Fatal(err)
	}
	if n != 6 {
		t.Errorf("WriteString() expected 6, received %d", n)
	}
	want := []string{pad("Hello"), pad("World!")}
	if diff := cmp.Diff(r.lcd.Lines(16), want); diff != "" {
		t.Errorf("display (-got +want):\n%s", diff)
	}
	if err = r.dev.MoveTo(1, 3); err != nil {
		t.Fatal(err)
	}
	_, _ = r.dev.WriteString("LP")
	if err = r.dev.Home(); err != nil {
		t.Fatal(err)
	}
	if got := r.lcd.Lines(16)[0]; got != pad("HeLPo") {
		t.Errorf("line 1 expected %q, found %q", pad("HeLPo"), got)
	}
	if err = r.dev.Clear(); err != nil {
		t.Fatal(err)
	}
	if got := r.lcd.Lines(5)[1]; got != "     " {
		t.Errorf("line 2 expected blank after Clear(), found %q", got)
	}
	checkViolations(t, r.lcd)
}

func TestMoveToRange(t *testing.T) {
	r := newRig(t, hd44780sim.DefaultOpts, DefaultOpts)
	for _, pos := range [][2]int{{0, 1}, {3, 1}, {1, 0}, {1, 41}} {
		if err := r.dev.MoveTo(pos[0], pos[1]); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("MoveTo(%d, %d) expected ErrOutOfRange, received %v", pos[0], pos[1], err)
		}
	}
}

func TestHalt(t *testing.T) {
	r := newRig(t, hd44780sim.DefaultOpts, DefaultOpts)
	r.powerOn(t)
	_, _ = r.dev.WriteString("bye")
	if err := r.dev.Halt(); err != nil {
		t.Fatal(err)
	}
	if r.lcd.On() {
		t.Error("display expected off after Halt()")
	}
	if err := r.dev.Backlight(0); !errors.Is(err, ErrNoBacklight) {
		t.Errorf("Backlight() expected ErrNoBacklight, received %v", err)
	}
}

func TestOneLine(t *testing.T) {
	opts := DefaultOpts
	opts.Lines = 1
	r := newRig(t, hd44780sim.DefaultOpts, opts)
	r.powerOn(t)
	if n := len(r.lcd.Lines(8)); n != 1 {
		t.Errorf("expected 1 line, found %d", n)
	}
	if err := r.dev.MoveTo(2, 1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("MoveTo(2, 1) expected ErrOutOfRange, received %v", err)
	}
}

func TestNewInvalidBus(t *testing.T) {
	reg := port.New("RC", port.NewSim("PORTC"))
	short, _ := reg.Group(4, 5, 6, 7)
	full, _ := reg.Group(0, 1, 2, 3, 4, 5, 6, 7)
	tests := []struct {
		name string
		bus  Bus
	}{
		{"no pins", Bus{}},
		{"no data", Bus{RS: reg.Pins[0], RW: reg.Pins[1], E: reg.Pins[2]}},
		{"4 data lines", Bus{RS: reg.Pins[0], RW: reg.Pins[1], E: reg.Pins[2], Data: short}},
	}
	for _, tc := range tests {
		if _, err := New(tc.bus, nil); !errors.Is(err, ErrInvalidBus) {
			t.Errorf("%s: expected ErrInvalidBus, received %v", tc.name, err)
		}
	}
	opts := DefaultOpts
	opts.Lines = 3
	if _, err := New(Bus{RS: reg.Pins[0], RW: reg.Pins[1], E: reg.Pins[2], Data: full}, &opts); err == nil {
		t.Error("Lines=3 expected error")
	}
}

func TestPCF857xBackpack(t *testing.T) {
	rec := &i2ctest.Record{}
	const addr = DefaultBackpackAddress
	dev, err := NewPCF857xBackpack(rec, addr, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err = dev.Init8(FuncSet8); err != nil {
		t.Fatal(err)
	}
	if err = dev.Backlight(0); err != nil {
		t.Fatal(err)
	}
	// P0 RS, P1 RW, P2 E, P3 backlight, P4-P7 D4-D7. The backlight write is
	// skipped since the line idles high.
	want := []i2ctest.IO{
		{Addr: addr, W: []byte{0xfb}},
		{Addr: addr, W: []byte{0xfa}},
		{Addr: addr, W: []byte{0xf8}},
		{Addr: addr, W: []byte{0x38}},
		{Addr: addr, W: []byte{0x3c}},
		{Addr: addr, W: []byte{0x38}},
		{Addr: addr, W: []byte{0x30}},
	}
	if diff := cmp.Diff(rec.Ops, want, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("i2c operations (-got +want):\n%s", diff)
	}
	if s := dev.String(); s != "HD44780{PCF8574_27[0 1 2 3 4 5 6 7]}" {
		t.Errorf("unexpected String() %q", s)
	}
}

func TestPCF857xBackpackBusyRead(t *testing.T) {
	const addr = DefaultBackpackAddress
	w := func(b byte) i2ctest.IO { return i2ctest.IO{Addr: addr, W: []byte{b}} }
	r := func(b byte) i2ctest.IO { return i2ctest.IO{Addr: addr, R: []byte{b}} }
	pb := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			// Control lines low, backlight on.
			w(0xfb), w(0xfa), w(0xf8),
			// D4-D7 are still released: RW high, E high, two status reads
			// with D7 set then clear, E low.
			w(0xfa), w(0xfe), r(0xfe), r(0x7e), w(0xfa),
			// D4-D7 back to outputs driving Low, one line at a time.
			w(0xea), w(0xca), w(0x8a), w(0x0a),
			// RW low, then 0x01 as two nibbles. The high nibble equals the
			// lines already driven so only E moves.
			w(0x08), w(0x0c), w(0x08),
			w(0x18), w(0x1c), w(0x18),
		},
		DontPanic: true,
	}
	dev, err := NewPCF857xBackpack(pb, addr, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err = dev.SendCommand(ClearDisplay); err != nil {
		t.Fatal(err)
	}
	if err = pb.Close(); err != nil {
		t.Error(err)
	}
}

func TestTextDisplay(t *testing.T) {
	r := newRig(t, hd44780sim.DefaultOpts, DefaultOpts)
	r.powerOn(t)
	for _, err := range displaytest.TestTextDisplay(r.dev, false) {
		t.Error(err)
	}
	checkViolations(t, r.lcd)
	if !r.lcd.On() {
		t.Error("display expected on")
	}
	if got := r.lcd.Lines(16)[0]; got != pad("Set dev on") {
		t.Errorf("line 1 expected %q, found %q", pad("Set dev on"), got)
	}
	if rows, cols := r.dev.Rows(), r.dev.Cols(); rows != 2 || cols != 16 {
		t.Errorf("expected 2x16, found %dx%d", rows, cols)
	}
}

func TestCursor(t *testing.T) {
	r := newRig(t, hd44780sim.DefaultOpts, DefaultOpts)
	r.powerOn(t)
	tests := []struct {
		modes        []display.CursorMode
		shown, blink bool
	}{
		{[]display.CursorMode{display.CursorOff}, false, false},
		{[]display.CursorMode{display.CursorUnderline}, true, false},
		{[]display.CursorMode{display.CursorBlock}, false, true},
		{[]display.CursorMode{display.CursorUnderline, display.CursorBlink}, true, true},
		{nil, false, false},
	}
	for _, tc := range tests {
		if err := r.dev.Cursor(tc.modes...); err != nil {
			t.Fatal(err)
		}
		if _, _, shown, blink := r.lcd.Cursor(); shown != tc.shown || blink != tc.blink {
			t.Errorf("Cursor(%v): expected (%t, %t), found (%t, %t)", tc.modes, tc.shown, tc.blink, shown, blink)
		}
	}
	if err := r.dev.Cursor(display.CursorBlink + 1); !errors.Is(err, ErrInvalidCursor) {
		t.Errorf("expected ErrInvalidCursor, received %v", err)
	}

	// Display keeps the cursor settings.
	if err := r.dev.Cursor(display.CursorUnderline); err != nil {
		t.Fatal(err)
	}
	if err := r.dev.Display(false); err != nil {
		t.Fatal(err)
	}
	if r.lcd.On() {
		t.Error("display expected off")
	}
	if err := r.dev.Display(true); err != nil {
		t.Fatal(err)
	}
	if _, _, shown, blink := r.lcd.Cursor(); !r.lcd.On() || !shown || blink {
		t.Error("expected display on with an underline cursor")
	}
	checkViolations(t, r.lcd)
}

func TestMove(t *testing.T) {
	r := newRig(t, hd44780sim.DefaultOpts, DefaultOpts)
	r.powerOn(t)
	for _, dir := range []display.CursorDirection{display.Forward, display.Forward, display.Backward} {
		if err := r.dev.Move(dir); err != nil {
			t.Fatal(err)
		}
	}
	if line, col, _, _ := r.lcd.Cursor(); line != 0 || col != 1 {
		t.Errorf("cursor expected at (0, 1), found (%d, %d)", line, col)
	}
	for _, dir := range []display.CursorDirection{display.Up, display.Down} {
		if err := r.dev.Move(dir); !errors.Is(err, display.ErrNotImplemented) {
			t.Errorf("Move(%d) expected ErrNotImplemented, received %v", dir, err)
		}
	}
}

func TestAutoScroll(t *testing.T) {
	r := newRig(t, hd44780sim.DefaultOpts, DefaultOpts)
	r.powerOn(t)
	if err := r.dev.AutoScroll(true); err != nil {
		t.Fatal(err)
	}
	if _, err := r.dev.WriteString("abc"); err != nil {
		t.Fatal(err)
	}
	// The text moves left under a cursor that stays in place.
	if got := r.lcd.Lines(3)[0]; got != "   " {
		t.Errorf("line 1 expected scrolled out, found %q", got)
	}
	if err := r.dev.AutoScroll(false); err != nil {
		t.Fatal(err)
	}
	if err := r.dev.Home(); err != nil {
		t.Fatal(err)
	}
	if got := r.lcd.Lines(3)[0]; got != "abc" {
		t.Errorf("line 1 expected %q after Home(), found %q", "abc", got)
	}
	checkViolations(t, r.lcd)
}

func TestNewDefaults(t *testing.T) {
	r := newRig(t, hd44780sim.DefaultOpts, Opts{BusyTimeout: time.Second})
	if r.dev.Rows() != DefaultOpts.Lines || r.dev.Cols() != DefaultOpts.Cols {
		t.Errorf("expected %dx%d, found %dx%d", DefaultOpts.Lines, DefaultOpts.Cols, r.dev.Rows(), r.dev.Cols())
	}
	if r.dev.opts.Timing != DefaultTiming {
		t.Errorf("expected DefaultTiming, found %+v", r.dev.opts.Timing)
	}
	if err := r.dev.PowerOn(); err != nil {
		t.Fatal(err)
	}
	checkViolations(t, r.lcd)
	if _, _, shown, blink := r.lcd.Cursor(); !shown || !blink {
		t.Error("cursor expected on and blinking")
	}

	reg := port.New("RC", port.NewSim("PORTC"))
	full, _ := reg.Group(0, 1, 2, 3, 4, 5, 6, 7)
	bus := Bus{RS: reg.Pins[0], RW: reg.Pins[1], E: reg.Pins[2], Data: full}
	for _, o := range []Opts{{Cols: 41}, {Lines: -1}, {DisplayMode: ClearDisplay}} {
		if _, err := New(bus, &o); err == nil {
			t.Errorf("New(%+v) expected an error", o)
		}
	}
}
