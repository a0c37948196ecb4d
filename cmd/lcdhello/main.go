// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// lcdhello greets the world on an HD44780 display behind a PCF8574 I²C
// backpack, then waits for Ctrl-C.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/GermanBionicSystems/ubmp4/hd44780"
	"github.com/GermanBionicSystems/ubmp4/lcddemo"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// untilDone sleeps until the context is canceled.
type untilDone struct{}

func (untilDone) Sleep(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func mainImpl() error {
	busName := flag.String("b", "", "I²C bus to use")
	addr := flag.Uint("a", uint(hd44780.DefaultBackpackAddress), "I²C address of the backpack")
	lines := flag.Int("lines", 2, "number of display lines")
	timeout := flag.Duration("timeout", time.Second, "busy flag timeout, 0 to wait forever")
	verbose := flag.Bool("v", false, "verbose mode")
	flag.Parse()
	if flag.NArg() != 0 {
		return errors.New("unexpected argument, try -help")
	}
	if !*verbose {
		log.SetOutput(io.Discard)
	}
	log.SetFlags(log.Lmicroseconds)

	if _, err := host.Init(); err != nil {
		return err
	}
	b, err := i2creg.Open(*busName)
	if err != nil {
		return err
	}
	defer b.Close()

	opts := hd44780.DefaultOpts
	opts.Lines = *lines
	opts.BusyTimeout = *timeout
	opts.Logger = log.Default()
	dev, err := hd44780.NewPCF857xBackpack(b, uint16(*addr), &opts)
	if err != nil {
		return err
	}
	log.Printf("using %s", dev)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	err = lcddemo.Run(ctx, dev, untilDone{})
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err2 := dev.Halt(); err == nil {
		err = err2
	}
	return err
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "lcdhello: %s.\n", err)
		os.Exit(1)
	}
}
