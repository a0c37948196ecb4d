// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// ubmp4sim runs a UBMP4 board program on a simulated board.
//
// The lcd program draws the display in the terminal each time the board goes
// to sleep, and wakes it up with SW2. The counter program follows a script
// of pushbutton holds and logs the count and the LEDs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/GermanBionicSystems/ubmp4/counter"
	"github.com/GermanBionicSystems/ubmp4/hd44780"
	"github.com/GermanBionicSystems/ubmp4/lcddemo"
	"github.com/GermanBionicSystems/ubmp4/lcdview"
	"github.com/GermanBionicSystems/ubmp4/ubmp4"
)

var errDone = errors.New("done")

// viewSleeper draws the display, then presses SW2 to wake the board up until
// wakes runs out.
type viewSleeper struct {
	s     *ubmp4.Sim
	view  *lcdview.Terminal
	wakes int
}

func (v *viewSleeper) Sleep(ctx context.Context) error {
	if err := v.view.Refresh(v.s.Controller); err != nil {
		return err
	}
	if v.wakes <= 0 {
		return errDone
	}
	v.wakes--
	go func() {
		time.Sleep(500 * time.Millisecond)
		v.s.Press(ubmp4.SW2)
		v.s.Release(ubmp4.SW2)
	}()
	return v.s.Sleep(ctx)
}

func runLCD(s *ubmp4.Sim, opts *lcdview.Opts, lines, wakes int, pngPath string, verbose bool) error {
	lo := hd44780.DefaultOpts
	lo.Lines = lines
	if verbose {
		lo.Logger = log.Default()
	}
	lcd, err := s.NewLCD(&lo)
	if err != nil {
		return err
	}
	view := lcdview.NewTerminal(opts)
	defer view.Halt()
	err = lcddemo.Run(context.Background(), lcd, &viewSleeper{s: s, view: view, wakes: wakes})
	if !errors.Is(err, errDone) {
		return err
	}
	for _, v := range s.Controller.Violations() {
		log.Printf("protocol violation: %s", v)
	}
	if pngPath != "" {
		return lcdview.SavePNG(pngPath, s.Controller, opts)
	}
	return nil
}

func runCounter(s *ubmp4.Sim, script string) error {
	holds, err := parseScript(script)
	if err != nil {
		return err
	}
	p := counter.New(&s.Board)
	for _, h := range holds {
		s.Press(h.sw)
		for range h.loops {
			if err = p.Step(); err != nil {
				break
			}
			s.Delay(counter.LoopDelay)
		}
		s.Release(h.sw)
		if errors.Is(err, ubmp4.ErrReset) {
			log.Printf("%s: reset", h.sw)
			return nil
		}
		if err != nil {
			return err
		}
		log.Printf("%s held %d loops: count=%d LED3=%t LED4=%t", h.sw, h.loops, p.Count(), s.LEDOn(ubmp4.LED3), s.LEDOn(ubmp4.LED4))
	}
	return nil
}

func mainImpl() error {
	program := flag.String("program", "lcd", "program to run: lcd or counter")
	cols := flag.Int("cols", 16, "lcd: display columns")
	lines := flag.Int("lines", 2, "lcd: display lines")
	wakes := flag.Int("wakes", 1, "lcd: number of SW2 wake ups before exiting")
	pngPath := flag.String("png", "", "lcd: save the display to this PNG file on exit")
	scale := flag.Int("scale", 2, "lcd: PNG scale")
	script := flag.String("script", "SW2:60,SW4:1,SW3:1,SW1:1", "counter: comma separated SWn:loops pushbutton holds")
	verbose := flag.Bool("v", false, "verbose mode")
	flag.Parse()
	if flag.NArg() != 0 {
		return errors.New("unexpected argument, try -help")
	}
	if !*verbose {
		log.SetFlags(0)
	}

	s, err := ubmp4.NewSim(nil)
	if err != nil {
		return err
	}
	switch *program {
	case "lcd":
		opts := lcdview.DefaultOpts
		opts.Cols = *cols
		opts.Scale = *scale
		return runLCD(s, &opts, *lines, *wakes, *pngPath, *verbose)
	case "counter":
		return runCounter(s, *script)
	default:
		return fmt.Errorf("unknown program %q", *program)
	}
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "ubmp4sim: %s.\n", err)
		os.Exit(1)
	}
}
